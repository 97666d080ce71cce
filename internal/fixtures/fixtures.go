// Package fixtures loads the seed table used to populate an empty activity store.
package fixtures

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/mergington/internal/domain"
)

//go:embed activities.yaml
var defaultActivities []byte

type document struct {
	Activities []record `yaml:"activities"`
}

type record struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Schedule        string   `yaml:"schedule"`
	MaxParticipants int      `yaml:"max_participants"`
	Participants    []string `yaml:"participants"`
}

// Load reads the seed table at path, falling back to the embedded defaults when path is empty.
func Load(path string) ([]domain.Activity, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultActivities)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture file: %w", err)
	}
	return Parse(data)
}

// Defaults returns the embedded seed table.
func Defaults() []domain.Activity {
	activities, err := Parse(defaultActivities)
	if err != nil {
		panic(fmt.Sprintf("embedded fixtures are invalid: %v", err))
	}
	return activities
}

// Parse decodes and validates a YAML seed table.
func Parse(data []byte) ([]domain.Activity, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Activities))
	out := make([]domain.Activity, 0, len(doc.Activities))
	for i, rec := range doc.Activities {
		if err := rec.validate(); err != nil {
			return nil, fmt.Errorf("activity %d: %w", i, err)
		}
		if _, dup := seen[rec.Name]; dup {
			return nil, fmt.Errorf("activity %d: duplicate name %q", i, rec.Name)
		}
		seen[rec.Name] = struct{}{}

		out = append(out, domain.Activity{
			Name:            rec.Name,
			Description:     rec.Description,
			Schedule:        rec.Schedule,
			MaxParticipants: rec.MaxParticipants,
			Participants:    append([]string{}, rec.Participants...),
		})
	}
	return out, nil
}

func (r record) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if r.MaxParticipants <= 0 {
		return fmt.Errorf("%s: max_participants must be > 0", r.Name)
	}
	emails := make(map[string]struct{}, len(r.Participants))
	for _, email := range r.Participants {
		if strings.TrimSpace(email) == "" {
			return fmt.Errorf("%s: blank participant email", r.Name)
		}
		if _, dup := emails[email]; dup {
			return fmt.Errorf("%s: participant %s listed twice", r.Name, email)
		}
		emails[email] = struct{}{}
	}
	return nil
}
