package auth

// Known OAuth scopes used by the activity directory.
const (
	// ScopeRegistrationsWrite allows adding and removing roster entries.
	ScopeRegistrationsWrite = "registrations:write"
)
