// Package cmd implements the bungeespoof command line.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/realDragonium/bungeespoof/config"
	"github.com/realDragonium/bungeespoof/identity"
)

const version = "0.3.0"

var defaultCfgPath = "/etc/bungeespoof/" + config.MainConfigFileName

// NewRootCmd builds the command tree. Every call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	var configFile string
	rootCmd := &cobra.Command{
		Use:   "bungeespoof",
		Short: "Legacy BungeeCord IP forwarding for outgoing Minecraft handshakes",
		Long: `bungeespoof rewrites the handshake a client sends so that a backend running
in legacy BungeeCord IP-forwarding mode accepts it as coming from a proxy.

The forwarded address, port and server whitelist are read from the config
file and can be reloaded while running.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", defaultCfgPath, "config file path")

	rootCmd.AddCommand(
		newRunCmd(&configFile),
		newReloadCmd(&configFile),
		newUUIDCmd(&configFile),
		newRewriteCmd(&configFile),
		newValidateCmd(),
		newConfigCmd(&configFile),
	)
	return rootCmd
}

// Execute runs the command line with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadOrDefault reads path, falling back to the defaults when the file does
// not exist. Commands that work without a running proxy use it.
func loadOrDefault(path string) (config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return config.DefaultConfig(), nil
	}
	return config.NewFileReader(path)()
}

func newResolver(cfg config.Config) identity.Resolver {
	var lookup identity.ProfileLookup
	if cfg.Lookup.Enabled {
		lookup = identity.NewMojangLookup(cfg.Lookup.URL, &http.Client{})
	}
	return identity.NewResolver(lookup, cfg.Lookup.Timeout, nil)
}

func newSession(cfg config.SessionConfig) (identity.StaticSession, error) {
	id, err := cfg.ParseUUID()
	if err != nil {
		return identity.StaticSession{}, fmt.Errorf("session uuid: %w", err)
	}
	return identity.StaticSession{Name: cfg.Username, ID: id}, nil
}
