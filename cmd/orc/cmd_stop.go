package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newStopCmd creates the "orc stop" subcommand.
func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Graceful shutdown of the coordinator",
		Long:  "Sends SIGTERM to the coordinator daemon.\nMonitoring loops drain and the PID file is removed on exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath, err := DefaultPIDPath()
			if err != nil {
				return err
			}

			status, pid, err := DaemonStatus(pidPath)
			if err != nil {
				return err
			}

			switch status {
			case StatusStopped:
				fmt.Fprintln(cmd.OutOrStdout(), "coordinator is not running")
				return nil
			case StatusStale:
				fmt.Fprintln(cmd.OutOrStdout(), "removing stale PID file (process already dead)")
				return RemovePIDFile(pidPath)
			case StatusRunning:
				fmt.Fprintf(cmd.OutOrStdout(), "sending SIGTERM to coordinator (PID %d)\n", pid)
				if err := StopDaemon(pidPath); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "stop signal sent")
				return nil
			}

			return nil
		},
	}
}
