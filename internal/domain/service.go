// Package domain defines the business logic for the activity directory.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"example.com/mergington/internal/observability"
)

var (
	// ErrActivityNotFound is returned when no activity exists under the requested name.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrConflict groups every roster rule violation.
	ErrConflict = errors.New("registration conflict")
	// ErrAlreadySignedUp indicates the email is already on the roster.
	ErrAlreadySignedUp = fmt.Errorf("%w: student already signed up", ErrConflict)
	// ErrNotRegistered indicates the email is not on the roster.
	ErrNotRegistered = fmt.Errorf("%w: student not registered", ErrConflict)
	// ErrActivityFull is only returned when capacity enforcement is enabled.
	ErrActivityFull = fmt.Errorf("%w: activity is full", ErrConflict)
	// ErrInvalidEmail is returned for blank emails.
	ErrInvalidEmail = errors.New("email is required")
)

// maxUpdateAttempts bounds retries when a conditional update loses a race with another writer.
const maxUpdateAttempts = 3

// Store captures the document operations the directory needs. AddParticipant and
// RemoveParticipant must be atomic conditional updates on a single document: they report
// applied=false without error when the guard did not match.
type Store interface {
	Count(ctx context.Context) (int64, error)
	InsertMissing(ctx context.Context, activities []Activity) (int, error)
	List(ctx context.Context) ([]Activity, error)
	Get(ctx context.Context, name string) (*Activity, error)
	AddParticipant(ctx context.Context, name, email string, enforceCapacity bool) (bool, error)
	RemoveParticipant(ctx context.Context, name, email string) (bool, error)
}

// Option configures a Service.
type Option func(*Service)

// WithCapacityEnforcement rejects signups once the roster reaches max participants.
func WithCapacityEnforcement(enabled bool) Option {
	return func(s *Service) {
		s.enforceCapacity = enabled
	}
}

// Service orchestrates directory workflows.
type Service struct {
	store           Store
	enforceCapacity bool
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed inserts the provided defaults when the collection is empty and returns how many
// documents were written. A populated collection is left untouched.
func (s *Service) Seed(ctx context.Context, defaults []Activity) (int, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	if count > 0 || len(defaults) == 0 {
		return 0, nil
	}

	inserted, err := s.store.InsertMissing(ctx, defaults)
	if err != nil {
		return inserted, fmt.Errorf("seed activities: %w", err)
	}
	observability.RecordSeeded(inserted)
	return inserted, nil
}

// ListActivities returns every activity in store order.
func (s *Service) ListActivities(ctx context.Context) ([]Activity, error) {
	activities, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return activities, nil
}

// Signup appends email to the roster of the named activity.
func (s *Service) Signup(ctx context.Context, name, email string) (string, error) {
	email = strings.TrimSpace(email)
	err := s.signup(ctx, name, email)
	observability.RecordRegistration(observability.OperationSignup, outcome(err))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Signed up %s for %s", email, name), nil
}

// Unregister removes email from the roster of the named activity.
func (s *Service) Unregister(ctx context.Context, name, email string) (string, error) {
	email = strings.TrimSpace(email)
	err := s.unregister(ctx, name, email)
	observability.RecordRegistration(observability.OperationUnregister, outcome(err))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed %s from %s", email, name), nil
}

func (s *Service) signup(ctx context.Context, name, email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		applied, err := s.store.AddParticipant(ctx, name, email, s.enforceCapacity)
		if err != nil {
			return fmt.Errorf("add participant: %w", err)
		}
		if applied {
			return nil
		}
		if err := s.classifySignupMiss(ctx, name, email); err != nil {
			return err
		}
	}
	return fmt.Errorf("add participant: roster for %q kept changing", name)
}

func (s *Service) unregister(ctx context.Context, name, email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		applied, err := s.store.RemoveParticipant(ctx, name, email)
		if err != nil {
			return fmt.Errorf("remove participant: %w", err)
		}
		if applied {
			return nil
		}

		activity, err := s.store.Get(ctx, name)
		if err != nil {
			return fmt.Errorf("get activity: %w", err)
		}
		if activity == nil {
			return ErrActivityNotFound
		}
		if !activity.HasParticipant(email) {
			return ErrNotRegistered
		}
	}
	return fmt.Errorf("remove participant: roster for %q kept changing", name)
}

// classifySignupMiss explains why a conditional append matched nothing. A nil return means
// the document changed between the update and this read, so the caller should retry.
func (s *Service) classifySignupMiss(ctx context.Context, name, email string) error {
	activity, err := s.store.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("get activity: %w", err)
	}
	if activity == nil {
		return ErrActivityNotFound
	}
	if activity.HasParticipant(email) {
		return ErrAlreadySignedUp
	}
	if s.enforceCapacity && activity.SpotsLeft() <= 0 {
		return ErrActivityFull
	}
	return nil
}

// outcome maps an operation result to a metric label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrActivityNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidEmail):
		return "invalid"
	default:
		return "error"
	}
}
