package main

import (
	"fmt"
	"sort"
	"strings"

	"orc/pkg/config"
	"orc/pkg/eventlog"

	"github.com/spf13/cobra"
)

// newAgentsCmd creates the "orc agents" subcommand.
func newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List configured workers and their last observed state",
		RunE: func(cmd *cobra.Command, args []string) error {
			orcDir, err := config.OrcDir()
			if err != nil {
				return err
			}
			team, err := config.LoadTeam(orcDir)
			if err != nil {
				return err
			}

			states := map[string]string{}
			if log, err := eventlog.OpenReadOnly(eventlog.DefaultDBPath()); err == nil {
				defer func() { _ = log.Close() }()
				if latest, err := log.LatestStates(cmd.Context()); err == nil {
					for id, payload := range latest {
						states[id] = stateFromPayload(payload)
					}
				}
			}

			w := cmd.OutOrStdout()
			paint := newPainter(w)

			if len(team.Workers) == 0 {
				fmt.Fprintln(w, "no workers in team.yaml")
				return nil
			}

			members := append([]config.TeamMember(nil), team.Workers...)
			sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

			for _, m := range members {
				state, ok := states[normalizeID(m.ID)]
				if !ok {
					state = "unknown"
				}
				name := m.DisplayName
				if name == "" {
					name = m.ID
				}
				fmt.Fprintf(w, "  %-16s %-24s %s\n", m.ID, name, paint.state(state))
			}
			return nil
		},
	}
}

// normalizeID matches the registry's case-insensitive id folding.
func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
