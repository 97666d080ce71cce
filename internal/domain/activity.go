package domain

import "slices"

// Activity is an extracurricular offering keyed by its unique name.
type Activity struct {
	Name            string
	Description     string
	Schedule        string
	MaxParticipants int
	Participants    []string
}

// HasParticipant reports whether email is already on the roster.
func (a Activity) HasParticipant(email string) bool {
	return slices.Contains(a.Participants, email)
}

// SpotsLeft returns the remaining seats, which may be negative when the roster was
// filled past capacity before enforcement was enabled.
func (a Activity) SpotsLeft() int {
	return a.MaxParticipants - len(a.Participants)
}

// Clone returns a deep copy so callers cannot alias a store's roster slice.
func (a Activity) Clone() Activity {
	out := a
	out.Participants = append([]string{}, a.Participants...)
	return out
}
