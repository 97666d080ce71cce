// Package memory provides an in-process activity store for tests and local development.
package memory

import (
	"context"
	"slices"
	"sync"

	"example.com/mergington/internal/domain"
)

// Store keeps activity documents in memory. Every mutation holds the write lock for the
// whole check-and-update, which gives the same atomicity as a conditional document update.
type Store struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
	order      []string
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{activities: make(map[string]domain.Activity)}
}

// Count implements domain.Store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.activities)), nil
}

// InsertMissing implements domain.Store; names already present are skipped.
func (s *Store) InsertMissing(ctx context.Context, activities []domain.Activity) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, activity := range activities {
		if _, exists := s.activities[activity.Name]; exists {
			continue
		}
		s.activities[activity.Name] = activity.Clone()
		s.order = append(s.order, activity.Name)
		inserted++
	}
	return inserted, nil
}

// List implements domain.Store, returning activities in insertion order.
func (s *Store) List(ctx context.Context) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Activity, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.activities[name].Clone())
	}
	return out, nil
}

// Get implements domain.Store.
func (s *Store) Get(ctx context.Context, name string) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activity, ok := s.activities[name]
	if !ok {
		return nil, nil
	}
	clone := activity.Clone()
	return &clone, nil
}

// AddParticipant implements domain.Store.
func (s *Store) AddParticipant(ctx context.Context, name, email string, enforceCapacity bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, ok := s.activities[name]
	if !ok || activity.HasParticipant(email) {
		return false, nil
	}
	if enforceCapacity && activity.SpotsLeft() <= 0 {
		return false, nil
	}
	activity.Participants = append(slices.Clip(activity.Participants), email)
	s.activities[name] = activity
	return true, nil
}

// RemoveParticipant implements domain.Store.
func (s *Store) RemoveParticipant(ctx context.Context, name, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, ok := s.activities[name]
	if !ok || !activity.HasParticipant(email) {
		return false, nil
	}
	activity.Participants = slices.DeleteFunc(slices.Clone(activity.Participants), func(p string) bool {
		return p == email
	})
	s.activities[name] = activity
	return true, nil
}
