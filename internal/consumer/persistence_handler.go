package consumer

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PersistenceHandler appends consumed registration events to registration_event_log.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler constructs a handler backed by the provided pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle stores the event. A record already logged at the same topic, partition and
// offset is skipped so redelivery after a failed commit is harmless.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	var eventID any
	if msg.EventID != "" {
		eventID = msg.EventID
	}

	tag, err := h.pool.Exec(ctx,
		`INSERT INTO registration_event_log (event_id, event_type, activity_name, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		eventID,
		msg.EventType,
		msg.ActivityName,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		recordDuplicate(msg.Topic)
	}
	return nil
}
