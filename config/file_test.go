package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/realDragonium/bungeespoof/config"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoader_Load(t *testing.T) {
	t.Run("defaults fill missing keys", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), config.MainConfigFileName, "policy:\n  target_address: 10.0.0.7\n")

		cfg, err := config.NewLoader(path).Load()
		require.NoError(t, err)

		expected := config.DefaultConfig()
		expected.Policy.TargetAddress = "10.0.0.7"
		if diff := cmp.Diff(expected, cfg, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("full yaml", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), config.MainConfigFileName, `
policy:
  target_address: 10.0.0.7
  randomize_last_octet: true
  spoof_port: true
  spoofed_port: 1234
  spoof_hostname: false
  whitelist:
    - mc.hypixel.net:25565
  warn_on_skip: false
session:
  username: Notch
lookup:
  enabled: false
  timeout: 2s
relay:
  listen_to: 127.0.0.1:30000
  proxy_to: mc.hypixel.net:25565
  dial_timeout: 2s
  send_proxy_protocol: true
`)

		cfg, err := config.NewLoader(path).Load()
		require.NoError(t, err)

		assert.Equal(t, "10.0.0.7", cfg.Policy.TargetAddress)
		assert.True(t, cfg.Policy.RandomizeLastOctet)
		assert.True(t, cfg.Policy.SpoofPort)
		assert.Equal(t, 1234, cfg.Policy.SpoofedPort)
		assert.False(t, cfg.Policy.SpoofHostname)
		assert.Equal(t, []string{"mc.hypixel.net:25565"}, cfg.Policy.Whitelist)
		assert.False(t, cfg.Policy.WarnOnSkip)
		assert.Equal(t, "Notch", cfg.Session.Username)
		assert.False(t, cfg.Lookup.Enabled)
		assert.Equal(t, 2*time.Second, cfg.Lookup.Timeout)
		assert.Equal(t, "mc.hypixel.net:25565", cfg.Relay.ProxyTo)
		assert.Equal(t, 2*time.Second, cfg.Relay.DialTimeout)
		assert.True(t, cfg.Relay.SendProxyProtocol)
	})

	t.Run("json file", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "bungeespoof.json", `{"policy": {"target_address": "2001:db8::1"}}`)

		cfg, err := config.NewLoader(path).Load()
		require.NoError(t, err)
		assert.Equal(t, "2001:db8::1", cfg.Policy.TargetAddress)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), config.MainConfigFileName, "policy:\n  target_address: 10.0.0.7\n")
		t.Setenv("BUNGEESPOOF_POLICY_TARGET_ADDRESS", "192.168.1.20")

		cfg, err := config.NewLoader(path).Load()
		require.NoError(t, err)
		assert.Equal(t, "192.168.1.20", cfg.Policy.TargetAddress)
	})

	t.Run("invalid policy is rejected", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), config.MainConfigFileName, "policy:\n  target_address: \"bad host\"\n  spoof_port: true\n  spoofed_port: 0\n")

		_, err := config.NewLoader(path).Load()
		require.Error(t, err)
		assert.True(t, errors.Is(err, config.ErrInvalidConfig))

		var fieldErr *config.InvalidFieldError
		assert.True(t, errors.As(err, &fieldErr))
		assert.Contains(t, err.Error(), "target_address")
		assert.Contains(t, err.Error(), "spoofed_port")
	})

	t.Run("invalid session uuid is rejected", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), config.MainConfigFileName, "session:\n  uuid: nope\n")
		_, err := config.NewLoader(path).Load()
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load()
		assert.Error(t, err)
	})
}

func TestNewFileReader_ReadsFreshEveryCall(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, config.MainConfigFileName, "policy:\n  target_address: 10.0.0.7\n")
	read := config.NewFileReader(path)

	cfg, err := read()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", cfg.Policy.TargetAddress)

	writeConfig(t, dir, config.MainConfigFileName, "policy:\n  target_address: 10.0.0.8\n")
	cfg, err = read()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.8", cfg.Policy.TargetAddress)

	writeConfig(t, dir, config.MainConfigFileName, "policy:\n  target_address: \"not a host\"\n")
	_, err = read()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoader_Watch(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, config.MainConfigFileName, "policy:\n  target_address: 10.0.0.7\n")

	loader := config.NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)

	changes := make(chan config.Config, 16)
	loader.Watch(func(cfg config.Config, err error) {
		if err != nil {
			return
		}
		select {
		case changes <- cfg:
		default:
		}
	})

	writeConfig(t, dir, config.MainConfigFileName, "policy:\n  target_address: 10.0.0.8\n")

	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			// a write may be observed half way, wait for the final content
			if cfg.Policy.TargetAddress == "10.0.0.8" {
				return
			}
		case <-timeout:
			t.Fatal("config change was not noticed")
		}
	}
}

func TestMarshalYAML(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Policy.Whitelist = []string{"mc.hypixel.net:25565"}

	bb, err := config.MarshalYAML(cfg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(bb, &decoded))
	policy, ok := decoded["policy"].(map[string]any)
	require.True(t, ok, string(bb))
	assert.Equal(t, "127.0.0.1", policy["target_address"])
	assert.True(t, strings.Contains(string(bb), "mc.hypixel.net:25565"))
}

func TestVerifyConfig_Relay(t *testing.T) {
	tt := []struct {
		name   string
		modify func(cfg *config.Config)
		errs   int
	}{
		{name: "defaults", modify: func(cfg *config.Config) {}},
		{name: "proxy_to without port", modify: func(cfg *config.Config) { cfg.Relay.ProxyTo = "mc.example.net" }, errs: 1},
		{name: "proxy_to port out of range", modify: func(cfg *config.Config) { cfg.Relay.ProxyTo = "mc.example.net:0" }, errs: 1},
		{name: "bad listen_to", modify: func(cfg *config.Config) { cfg.Relay.ListenTo = "nope" }, errs: 1},
		{name: "bad bind", modify: func(cfg *config.Config) { cfg.Relay.ProxyBind = "eth0" }, errs: 1},
		{name: "no timeouts", modify: func(cfg *config.Config) { cfg.Relay.DialTimeout = 0; cfg.Relay.IOTimeout = 0 }, errs: 2},
		{name: "bad log level", modify: func(cfg *config.Config) { cfg.Log.Level = "loud" }, errs: 1},
		{name: "file log without path", modify: func(cfg *config.Config) { cfg.Log.File.Enabled = true; cfg.Log.File.Path = "" }, errs: 1},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tc.modify(&cfg)
			errs := config.VerifyConfig(cfg)
			if len(errs) != tc.errs {
				t.Errorf("expected %d errors but got %d: %v", tc.errs, len(errs), errs)
			}
		})
	}
}
