package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newUpgradeCommand() *cobra.Command {
	var adminAddr, path string

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Trigger a live-upgrade handoff on a running relay",
		Long: `upgrade asks a running relay to serialize its connected clients'
state to the handoff file. aprsisd run does not read a handoff file
at startup, so no process here rebuilds client state from it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 10 * time.Second}
			url := "http://" + adminAddr + "/upgrade"
			if path != "" {
				url += "?path=" + path
			}
			resp, err := client.Post(url, "", nil)
			if err != nil {
				return fmt.Errorf("upgrade: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("upgrade: relay returned %s", resp.Status)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "handoff written")
			return nil
		},
	}

	cmd.Flags().StringVar(&adminAddr, "admin", "localhost:14501", "admin HTTP address of the running relay")
	cmd.Flags().StringVar(&path, "path", "", "handoff file path (default: liveupgrade.json in the relay's working directory)")
	return cmd
}
