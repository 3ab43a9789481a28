package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/realDragonium/bungeespoof/config"
)

var errInvalidConfig = errors.New("config is invalid")

func newValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Long: `Validate a config file (YAML, JSON or TOML) without starting the relay.

Examples:
  bungeespoof validate -f bungeespoof.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewFileReader(file)()
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "INVALID: %v\n", err)
				return errInvalidConfig
			}
			fmt.Fprintf(cmd.OutOrStdout(), "VALID: %s -> %s, forwarding %s, %s\n",
				cfg.Relay.ListenTo, cfg.Relay.ProxyTo, cfg.Policy.TargetAddress, cfg.Policy.InfoString())
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "config file to validate (required)")
	cmd.MarkFlagRequired("file")
	return cmd
}
