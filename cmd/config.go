package cmd

import (
	"github.com/spf13/cobra"

	"github.com/realDragonium/bungeespoof/config"
)

func newConfigCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOrDefault(*configFile)
			if err != nil {
				return err
			}
			out, err := config.MarshalYAML(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
