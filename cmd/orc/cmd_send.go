package main

import (
	"fmt"
	"path/filepath"

	"orc/pkg/config"
	"orc/pkg/protocol"
	"orc/pkg/term"

	"github.com/spf13/cobra"
)

// newSendCmd creates the "orc send" subcommand. It appends a send_message
// tag to the control drop-box transcript; the running coordinator picks it
// up and routes it like any worker-issued command.
func newSendCmd() *cobra.Command {
	var (
		title    string
		priority string
	)

	cmd := &cobra.Command{
		Use:   "send <worker-id> <body>",
		Short: "Send a message to a worker's mailbox",
		Long:  "Queues a message for a worker (or \"*\" to broadcast).\nDelivery honors the worker's current state; no daemon restart required.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			orcDir, err := config.OrcDir()
			if err != nil {
				return err
			}

			payload := protocol.SendPayload{
				From:     protocol.ControlWorkerID,
				To:       args[0],
				Title:    title,
				Body:     args[1],
				Priority: protocol.ParsePriority(priority),
			}

			transcripts := term.NewFileTranscripts(filepath.Join(orcDir, protocol.TranscriptsDir))
			if err := transcripts.Append(protocol.ControlWorkerID, protocol.EncodeSend(payload)); err != nil {
				return fmt.Errorf("queue message: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "queued message for %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "message title")
	cmd.Flags().StringVarP(&priority, "priority", "p", "normal", "message priority (normal|high)")

	return cmd
}
