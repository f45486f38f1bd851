package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TeamMember describes one worker in the roster.
type TeamMember struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name,omitempty"`
	PaneTarget  string `yaml:"pane_target"`
}

// Team is the roster read from team.yaml.
type Team struct {
	Workers []TeamMember `yaml:"workers"`
}

// LoadTeam reads team.yaml from dir. A missing file is an empty roster.
// Duplicate ids (case-insensitive) and members without a pane target are
// rejected here, before anything touches the registry.
func LoadTeam(dir string) (Team, error) {
	var team Team
	data, err := os.ReadFile(filepath.Join(dir, "team.yaml")) //nolint:gosec // path derived from orc dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return team, nil
		}
		return team, fmt.Errorf("read team.yaml: %w", err)
	}
	if err := yaml.Unmarshal(data, &team); err != nil {
		return team, fmt.Errorf("parse team.yaml: %w", err)
	}

	seen := make(map[string]bool, len(team.Workers))
	for i, m := range team.Workers {
		id := strings.ToLower(strings.TrimSpace(m.ID))
		if id == "" {
			return team, fmt.Errorf("team.yaml: worker %d has no id", i)
		}
		if seen[id] {
			return team, fmt.Errorf("team.yaml: duplicate worker id %q", m.ID)
		}
		seen[id] = true
		if m.PaneTarget == "" {
			return team, fmt.Errorf("team.yaml: worker %q has no pane_target", m.ID)
		}
	}
	return team, nil
}
