package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUUIDCmd(configFile *string) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "uuid <name>",
		Short: "Resolve the uuid that would be forwarded for a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOrDefault(*configFile)
			if err != nil {
				return err
			}
			if offline {
				cfg.Lookup.Enabled = false
			}
			id := newResolver(cfg).ResolveName(cmd.Context(), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", args[0], id.UUID, id.Source)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the profile lookup")
	return cmd
}
