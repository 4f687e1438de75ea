package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hamrelay/aprsis"
)

func newRunCommand() *cobra.Command {
	var (
		listenAddr string
		adminAddr  string
		callsign   string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the relay in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := aprsis.NewApp(aprsis.Config{
				ListenAddr:     listenAddr,
				AdminAddr:      adminAddr,
				ServerCallsign: callsign,
				Logging:        &aprsis.Logging{Sinks: []string{"stderr"}, Debug: debug},
			})
			if err != nil {
				return err
			}
			if err := app.Start(); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh

			return app.Stop()
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":14580", "relay listen address")
	cmd.Flags().StringVar(&adminAddr, "admin", ":14501", "admin HTTP status/metrics listen address")
	cmd.Flags().StringVar(&callsign, "callsign", "", "this server's callsign, used for Q-construct attribution (required)")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug-level logging")
	_ = cmd.MarkFlagRequired("callsign")

	return cmd
}
