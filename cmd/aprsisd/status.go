package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	var adminAddr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Fetch and print the admin status JSON from a running relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get("http://" + adminAddr + "/status")
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}

	cmd.Flags().StringVar(&adminAddr, "admin", "localhost:14501", "admin HTTP address of the running relay")
	return cmd
}
