package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realDragonium/bungeespoof/api"
	"github.com/realDragonium/bungeespoof/config"
	"github.com/realDragonium/bungeespoof/identity"
)

type response struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

func newStore(t *testing.T) *config.PolicyStore {
	t.Helper()
	policy := config.DefaultSpoofPolicy()
	policy.TargetAddress = "10.0.0.7"
	store, err := config.NewPolicyStore(policy)
	require.NoError(t, err)
	return store
}

func do(t *testing.T, handler http.Handler, method, path string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var res response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	}
	return rec.Code, res
}

func TestGetPolicy(t *testing.T) {
	a := api.NewAPI(newStore(t), nil, identity.NewResolver(nil, 0, quietLogger()), quietLogger())

	code, res := do(t, a.Handler(), http.MethodGet, "/policy")

	require.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
	var view api.PolicyView
	require.NoError(t, json.Unmarshal(res.Data, &view))
	assert.Equal(t, "10.0.0.7", view.Policy.TargetAddress)
	assert.Equal(t, view.Policy.InfoString(), view.Info)
}

func TestResolveUUID(t *testing.T) {
	a := api.NewAPI(newStore(t), nil, identity.NewResolver(nil, 0, quietLogger()), quietLogger())

	code, res := do(t, a.Handler(), http.MethodGet, "/uuid/Notch")

	require.Equal(t, http.StatusOK, code)
	var view api.IdentityView
	require.NoError(t, json.Unmarshal(res.Data, &view))
	assert.Equal(t, api.IdentityView{
		Username: "Notch",
		UUID:     "b50ad385-829d-3141-a216-7e7d7539ba7f",
		Hex:      "b50ad385829d3141a2167e7d7539ba7f",
		Source:   "offline_derived",
	}, view)
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.MainConfigFileName)
	write := func(content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	store := newStore(t)
	loader := config.NewLoader(path)
	reload := func() error {
		cfg, err := loader.Load()
		if err != nil {
			return err
		}
		return store.Store(cfg.Policy)
	}
	a := api.NewAPI(store, reload, identity.NewResolver(nil, 0, quietLogger()), quietLogger())

	write("policy:\n  target_address: 10.0.0.8\n")
	code, res := do(t, a.Handler(), http.MethodPost, "/reload")
	require.Equal(t, http.StatusOK, code, res.Msg)
	assert.Equal(t, "10.0.0.8", store.Load().TargetAddress)

	write("policy:\n  target_address: 10.0.0.9\n  spoof_port: true\n  spoofed_port: 70000\n")
	code, res = do(t, a.Handler(), http.MethodPost, "/reload")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, res.Success)
	assert.Equal(t, "10.0.0.8", store.Load().TargetAddress, "invalid reload must keep the old policy")
}

func TestReload_Errors(t *testing.T) {
	store := newStore(t)

	a := api.NewAPI(store, nil, identity.NewResolver(nil, 0, quietLogger()), quietLogger())
	code, _ := do(t, a.Handler(), http.MethodPost, "/reload")
	assert.Equal(t, http.StatusNotImplemented, code)

	failing := func() error { return errors.New("disk on fire") }
	a = api.NewAPI(store, failing, identity.NewResolver(nil, 0, quietLogger()), quietLogger())
	code, res := do(t, a.Handler(), http.MethodPost, "/reload")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "disk on fire", res.Msg)
}

func TestMetrics(t *testing.T) {
	a := api.NewAPI(newStore(t), nil, identity.NewResolver(nil, 0, quietLogger()), quietLogger())
	// Resolving once makes sure the resolver counter has a sample.
	identity.NewResolver(nil, 0, quietLogger()).ResolveName(context.Background(), "Notch")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bungeespoof_uuid_resolutions_total")
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestClose_BeforeRun(t *testing.T) {
	a := api.NewAPI(newStore(t), nil, identity.NewResolver(nil, 0, quietLogger()), quietLogger())
	require.NoError(t, a.Close())

	done := make(chan error, 1)
	go func() { done <- a.Run(freeAddr(t)) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run kept serving after close")
	}
}

func TestClose_StopsRunningServer(t *testing.T) {
	a := api.NewAPI(newStore(t), nil, identity.NewResolver(nil, 0, quietLogger()), quietLogger())
	addr := freeAddr(t)

	done := make(chan error, 1)
	go func() { done <- a.Run(addr) }()

	client := &http.Client{Timeout: time.Second}
	url := "http://" + addr + "/policy"
	require.Eventually(t, func() bool {
		resp, err := client.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, a.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after close")
	}
	_, err := client.Get(url)
	assert.Error(t, err, "server still answers after close")
}
