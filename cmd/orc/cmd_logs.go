package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"orc/pkg/eventlog"
	"orc/pkg/protocol"

	"github.com/spf13/cobra"
)

// logsConfig holds configuration for the logs command.
type logsConfig struct {
	tail   int
	follow bool
	evType string
}

// newLogsCmd creates the "orc logs" subcommand.
func newLogsCmd() *cobra.Command {
	var cfg logsConfig

	cmd := &cobra.Command{
		Use:   "logs [worker-id]",
		Short: "Query and tail coordinator events",
		Long:  "Displays events from the coordinator event log.\nOptionally filter by worker-id or event type and follow new events.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var workerID string
			if len(args) == 1 {
				workerID = normalizeID(args[0])
			}

			log, err := eventlog.OpenReadOnly(eventlog.DefaultDBPath())
			if err != nil {
				return fmt.Errorf("open event log: %w", err)
			}
			defer func() { _ = log.Close() }()

			w := cmd.OutOrStdout()
			if cfg.follow {
				return followLogs(cmd.Context(), log, w, workerID, cfg)
			}
			return printLogs(cmd.Context(), log, w, workerID, cfg)
		},
	}

	cmd.Flags().IntVar(&cfg.tail, "tail", 20, "number of recent events to show")
	cmd.Flags().BoolVarP(&cfg.follow, "follow", "f", false, "poll for new events every 1s")
	cmd.Flags().StringVar(&cfg.evType, "type", "", "filter by event type (state_change, anomaly, ...)")

	return cmd
}

// printLogs displays the last N events in chronological order.
func printLogs(ctx context.Context, log *eventlog.Log, w io.Writer, workerID string, cfg logsConfig) error {
	events, err := log.Query(ctx, eventlog.QueryOpts{
		WorkerID:  workerID,
		EventType: cfg.evType,
		Limit:     cfg.tail,
	})
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(w, "no events found")
		return nil
	}

	reverseEvents(events)
	for _, evt := range events {
		formatEvent(w, evt)
	}
	return nil
}

// followLogs displays the initial tail, then polls for new events.
func followLogs(ctx context.Context, log *eventlog.Log, w io.Writer, workerID string, cfg logsConfig) error {
	events, err := log.Query(ctx, eventlog.QueryOpts{
		WorkerID:  workerID,
		EventType: cfg.evType,
		Limit:     cfg.tail,
	})
	if err != nil {
		return err
	}

	var lastID int64
	reverseEvents(events)
	for _, evt := range events {
		formatEvent(w, evt)
		lastID = evt.ID
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fresh, err := log.Query(ctx, eventlog.QueryOpts{
				WorkerID:  workerID,
				EventType: cfg.evType,
				AfterID:   lastID,
			})
			if err != nil {
				return err
			}
			reverseEvents(fresh)
			for _, evt := range fresh {
				formatEvent(w, evt)
				lastID = evt.ID
			}
		}
	}
}

// formatEvent writes one event line.
func formatEvent(w io.Writer, evt protocol.Event) {
	worker := evt.WorkerID
	if worker == "" {
		worker = "-"
	}
	fmt.Fprintf(w, "%s  %-14s %-10s %-12s %s\n", evt.CreatedAt, evt.Type, evt.Source, worker, evt.Payload)
}

// reverseEvents flips newest-first query results into chronological order.
func reverseEvents(events []protocol.Event) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
