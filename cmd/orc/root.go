package main

import (
	"fmt"

	"orc/internal/appversion"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root orc command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "orc",
		Short:         "Orc terminal worker coordinator",
		Long:          "orc coordinates a team of terminal-driven workers.\nIt monitors each worker's pane, routes mail between workers, and records anomalies.",
		Version:       fmt.Sprintf("orc %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newStartCmd(),
		newStopCmd(),
		newStatusCmd(),
		newSendCmd(),
		newAgentsCmd(),
		newLogsCmd(),
		newDashCmd(),
	)

	return cmd
}
