package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/events"
)

// Option configures a Repository.
type Option func(*Repository)

// WithOutbox records a registration event in the outbox table inside the same transaction
// as every roster change.
func WithOutbox() Option {
	return func(r *Repository) {
		r.outbox = true
	}
}

// Repository stores activity documents as JSONB rows keyed by activity name.
type Repository struct {
	pool   *pgxpool.Pool
	outbox bool
	now    func() time.Time
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool, opts ...Option) *Repository {
	r := &Repository{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// activityBody is the JSON document stored per activity; the name lives in the key column.
type activityBody struct {
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

func toBody(a domain.Activity) activityBody {
	participants := a.Participants
	if participants == nil {
		participants = []string{}
	}
	return activityBody{
		Description:     a.Description,
		Schedule:        a.Schedule,
		MaxParticipants: a.MaxParticipants,
		Participants:    participants,
	}
}

func fromBody(name string, raw []byte) (domain.Activity, error) {
	var body activityBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return domain.Activity{}, fmt.Errorf("decode activity %q: %w", name, err)
	}
	if body.Participants == nil {
		body.Participants = []string{}
	}
	return domain.Activity{
		Name:            name,
		Description:     body.Description,
		Schedule:        body.Schedule,
		MaxParticipants: body.MaxParticipants,
		Participants:    body.Participants,
	}, nil
}

// Count implements domain.Store.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activities`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// InsertMissing writes every activity whose name is not yet taken, inside one transaction.
func (r *Repository) InsertMissing(ctx context.Context, activities []domain.Activity) (inserted int, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO activities (name, body) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`

	for _, activity := range activities {
		body, marshalErr := json.Marshal(toBody(activity))
		if marshalErr != nil {
			return 0, marshalErr
		}
		tag, execErr := tx.Exec(ctx, stmt, activity.Name, body)
		if execErr != nil {
			return 0, execErr
		}
		inserted += int(tag.RowsAffected())
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// List implements domain.Store, ordered by creation so seeded order is kept.
func (r *Repository) List(ctx context.Context) ([]domain.Activity, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, body FROM activities ORDER BY created_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		var (
			name string
			raw  []byte
		)
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, err
		}
		activity, err := fromBody(name, raw)
		if err != nil {
			return nil, err
		}
		results = append(results, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Get implements domain.Store.
func (r *Repository) Get(ctx context.Context, name string) (*domain.Activity, error) {
	var raw []byte
	if err := r.pool.QueryRow(ctx, `SELECT body FROM activities WHERE name = $1`, name).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	activity, err := fromBody(name, raw)
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

// The guards live in the WHERE clause so the membership check and the write are one statement.
const addParticipantStmt = `UPDATE activities
    SET body = jsonb_set(body, '{participants}', (body->'participants') || to_jsonb($2::text)),
        updated_at = NOW()
  WHERE name = $1
    AND NOT ((body->'participants') ? $2::text)
    AND (NOT $3::boolean OR jsonb_array_length(body->'participants') < (body->>'max_participants')::int)
  RETURNING jsonb_array_length(body->'participants')`

// jsonb minus text drops every matching string element and keeps the order of the rest.
const removeParticipantStmt = `UPDATE activities
    SET body = jsonb_set(body, '{participants}', (body->'participants') - $2::text),
        updated_at = NOW()
  WHERE name = $1
    AND (body->'participants') ? $2::text
  RETURNING jsonb_array_length(body->'participants')`

// AddParticipant implements domain.Store.
func (r *Repository) AddParticipant(ctx context.Context, name, email string, enforceCapacity bool) (bool, error) {
	return r.mutate(ctx, name, addParticipantStmt, []any{name, email, enforceCapacity}, func(count int) outboxEvent {
		id := uuid.NewString()
		return outboxEvent{
			ID:   id,
			Type: events.TypeParticipantAdded,
			Payload: events.ParticipantAdded{
				EventID:          id,
				ActivityName:     name,
				Email:            email,
				ParticipantCount: count,
				OccurredAt:       r.now(),
			},
		}
	})
}

// RemoveParticipant implements domain.Store.
func (r *Repository) RemoveParticipant(ctx context.Context, name, email string) (bool, error) {
	return r.mutate(ctx, name, removeParticipantStmt, []any{name, email}, func(count int) outboxEvent {
		id := uuid.NewString()
		return outboxEvent{
			ID:   id,
			Type: events.TypeParticipantRemoved,
			Payload: events.ParticipantRemoved{
				EventID:          id,
				ActivityName:     name,
				Email:            email,
				ParticipantCount: count,
				OccurredAt:       r.now(),
			},
		}
	})
}

type outboxEvent struct {
	ID      string
	Type    string
	Payload any
}

// mutate runs a guarded roster update and, when it applied, records the outbox event
// built by eventFn in the same transaction.
func (r *Repository) mutate(ctx context.Context, name, stmt string, args []any, eventFn func(count int) outboxEvent) (applied bool, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil || !applied {
			tx.Rollback(ctx)
		}
	}()

	var count int
	if err = tx.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	if r.outbox {
		if err = r.insertOutbox(ctx, tx, name, eventFn(count)); err != nil {
			return false, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, activityName string, event outboxEvent) error {
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[event.Type]
	if !ok {
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		"activity",
		activityName,
		event.Type,
		meta.Topic,
		meta.SchemaSubject,
		activityName,
		body,
		event.ID,
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

// RegistrationsTopic carries every roster change, keyed by activity name so per-activity
// ordering is kept within a partition.
const RegistrationsTopic = "activity_registrations"

var eventCatalog = map[string]EventMetadata{
	events.TypeParticipantAdded: {
		Topic:         RegistrationsTopic,
		SchemaSubject: "registration_added-value",
	},
	events.TypeParticipantRemoved: {
		Topic:         RegistrationsTopic,
		SchemaSubject: "registration_removed-value",
	},
}
