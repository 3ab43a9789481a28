package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/realDragonium/bungeespoof/api"
)

func newReloadCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask a running instance to reload its spoof policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOrDefault(*configFile)
			if err != nil {
				return err
			}
			url := fmt.Sprintf("http://%s/reload", cfg.API.Bind)
			return callReloadAPI(cmd.Context(), url, cmd.OutOrStdout())
		},
	}
}

func callReloadAPI(ctx context.Context, url string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	defer resp.Body.Close()

	var body api.Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to reload: status %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		return fmt.Errorf("failed to reload: %s", body.Msg)
	}
	fmt.Fprintln(out, "Finished reloading")
	return nil
}
