package fixtures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsContainCatalogue(t *testing.T) {
	activities := Defaults()
	require.Len(t, activities, 9)

	chess := activities[0]
	require.Equal(t, "Chess Club", chess.Name)
	require.Equal(t, 12, chess.MaxParticipants)
	require.Equal(t, []string{"michael@mergington.edu", "daniel@mergington.edu"}, chess.Participants)
	require.Equal(t, "Fridays, 3:30 PM - 5:00 PM", chess.Schedule)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	activities, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Defaults(), activities)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
activities:
  - name: Robotics
    description: Build robots
    schedule: Saturdays
    max_participants: 4
`), 0o600))

	activities, err := Load(path)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	require.Equal(t, "Robotics", activities[0].Name)
	require.Empty(t, activities[0].Participants)
	require.NotNil(t, activities[0].Participants)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseRejectsInvalidTables(t *testing.T) {
	cases := map[string]string{
		"missing name": `
activities:
  - description: x
    max_participants: 1`,
		"zero capacity": `
activities:
  - name: A
    max_participants: 0`,
		"duplicate name": `
activities:
  - name: A
    max_participants: 1
  - name: A
    max_participants: 2`,
		"duplicate participant": `
activities:
  - name: A
    max_participants: 3
    participants: [a@x.edu, a@x.edu]`,
		"malformed": `activities: [`,
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			require.Error(t, err)
		})
	}
}
