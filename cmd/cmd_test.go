package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/realDragonium/bungeespoof/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.MainConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := NewRootCmd()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

const testConfig = `
policy:
  target_address: 10.0.0.7
  spoof_hostname: false
  spoof_port: true
  spoofed_port: 1234
  whitelist:
    - mc.hypixel.net:25565
lookup:
  enabled: false
`

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		out, err := execute(t, "validate", "-f", writeConfig(t, testConfig))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "VALID:"), out)
		assert.Equal(t, "VALID: 127.0.0.1:25566 -> 127.0.0.1:25565, forwarding 10.0.0.7, Whitelist: 1\n", out)
	})

	t.Run("invalid", func(t *testing.T) {
		out, err := execute(t, "validate", "-f", writeConfig(t, "policy:\n  target_address: \"not a host\"\n"))
		assert.ErrorIs(t, err, errInvalidConfig)
		assert.True(t, strings.HasPrefix(out, "INVALID:"), out)
		assert.Contains(t, out, "target_address")
	})

	t.Run("missing flag", func(t *testing.T) {
		_, err := execute(t, "validate")
		assert.Error(t, err)
	})
}

func TestRewrite(t *testing.T) {
	path := writeConfig(t, testConfig)

	t.Run("whitelisted login", func(t *testing.T) {
		out, err := execute(t, "-c", path, "rewrite", "--address", "mc.hypixel.net", "--username", "Notch")
		require.NoError(t, err)
		assert.Contains(t, out, "outcome:  applied")
		assert.Contains(t, out, `"mc.hypixel.net\x0010.0.0.7\x00b50ad385829d3141a2167e7d7539ba7f"`)
		assert.Contains(t, out, "port:     1234")
		assert.Contains(t, out, "b50ad385-829d-3141-a216-7e7d7539ba7f (offline_derived)")
		assert.Contains(t, out, "backend sees host=mc.hypixel.net ip=10.0.0.7")
	})

	t.Run("not whitelisted", func(t *testing.T) {
		out, err := execute(t, "-c", path, "rewrite", "--address", "play.example.com", "--username", "Notch")
		require.NoError(t, err)
		assert.Contains(t, out, "outcome:  skipped")
		assert.Contains(t, out, `address:  "play.example.com"`)
	})

	t.Run("status", func(t *testing.T) {
		out, err := execute(t, "-c", path, "rewrite", "--address", "mc.hypixel.net", "--intent", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "outcome:  untouched")
	})

	t.Run("no username", func(t *testing.T) {
		_, err := execute(t, "-c", path, "rewrite", "--address", "mc.hypixel.net")
		assert.Error(t, err)
	})
}

func TestUUID(t *testing.T) {
	out, err := execute(t, "-c", writeConfig(t, testConfig), "uuid", "Notch", "--offline")
	require.NoError(t, err)
	assert.Equal(t, "Notch b50ad385-829d-3141-a216-7e7d7539ba7f (offline_derived)\n", out)
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "-c", writeConfig(t, testConfig), "config")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "10.0.0.7", cfg.Policy.TargetAddress)
	assert.Equal(t, []string{"mc.hypixel.net:25565"}, cfg.Policy.Whitelist)
	assert.Equal(t, config.DefaultConfig().Relay.ListenTo, cfg.Relay.ListenTo)
}

func TestConfigCommand_MissingFileUsesDefaults(t *testing.T) {
	out, err := execute(t, "-c", filepath.Join(t.TempDir(), "nope.yaml"), "config")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, config.DefaultConfig().Policy.TargetAddress, cfg.Policy.TargetAddress)
}

func TestCallReloadAPI(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "success", status: http.StatusOK, body: `{"success":true,"msg":"success"}`},
		{name: "rejected", status: http.StatusBadRequest, body: `{"success":false,"msg":"invalid config"}`, wantErr: "invalid config"},
		{name: "not json", status: http.StatusBadGateway, body: "oops", wantErr: "502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/reload", r.URL.Path)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			var out bytes.Buffer
			err := callReloadAPI(context.Background(), srv.URL+"/reload", &out)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Finished reloading\n", out.String())
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
