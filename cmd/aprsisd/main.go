// Command aprsisd runs the APRS-IS fan-out relay core, following the
// teacher's cmd/ package shape (a cobra root command with run/status
// subcommands) scaled down to this core's much smaller surface: no
// config-adapter or module-plugin machinery, since this core has
// exactly one App and no on-disk config format (§1's explicit
// Non-goal).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "aprsisd",
		Short: "APRS-IS fan-out relay core",
		Long: `aprsisd accepts amateur-radio APRS-IS packet streams from connected
clients, deduplicates and classifies them, maintains per-station
positional memory, and redistributes matching packets to subscribers
according to per-client filters.`,
		SilenceUsage: true,
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newUpgradeCommand())
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
