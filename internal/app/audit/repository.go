package audit

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventdesk/roster/internal/contracts"
)

const createEventsTableSQL = `
CREATE TABLE IF NOT EXISTS participant_events (
  event_id text PRIMARY KEY,
  stream_seq bigint NOT NULL,
  event_type text NOT NULL,
  participant_id text NOT NULL,
  name text NOT NULL DEFAULT '',
  checked_in boolean NOT NULL DEFAULT false,
  list_number integer,
  actor_subject text NOT NULL DEFAULT '',
  occurred_at timestamptz NOT NULL,
  inserted_at timestamptz NOT NULL DEFAULT now()
)`

const createEventsParticipantIndexSQL = `
CREATE INDEX IF NOT EXISTS participant_events_participant_idx
ON participant_events (participant_id, stream_seq DESC)`

const insertEventSQL = `
INSERT INTO participant_events (
  event_id, stream_seq, event_type, participant_id, name,
  checked_in, list_number, actor_subject, occurred_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (event_id) DO NOTHING
`

const recentEventsSQL = `
SELECT event_id, stream_seq, event_type, participant_id, name,
       checked_in, list_number, actor_subject, occurred_at
FROM participant_events
WHERE $1::text = '' OR participant_id = $1
ORDER BY stream_seq DESC
LIMIT $2
`

type EventRepository struct {
	Pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{Pool: pool}
}

func (r *EventRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createEventsTableSQL, createEventsParticipantIndexSQL} {
		if _, err := r.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *EventRepository) InsertEvent(ctx context.Context, event contracts.ParticipantEvent, streamSeq uint64) error {
	_, err := r.Pool.Exec(ctx, insertEventSQL,
		event.EventID,
		int64(streamSeq),
		event.EventType,
		event.ParticipantID,
		event.Name,
		event.CheckedIn,
		event.ListNumber,
		event.ActorSubject,
		event.OccurredAt,
	)
	return err
}

func (r *EventRepository) Recent(ctx context.Context, participantID string, limit int) ([]Entry, error) {
	rows, err := r.Pool.Query(ctx, recentEventsSQL, participantID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e   Entry
			seq int64
		)
		err := row.Scan(
			&e.EventID,
			&seq,
			&e.EventType,
			&e.ParticipantID,
			&e.Name,
			&e.CheckedIn,
			&e.ListNumber,
			&e.ActorSubject,
			&e.OccurredAt,
		)
		e.StreamSeq = uint64(seq)
		return e, err
	})
}

func (r *EventRepository) Ping(ctx context.Context) error {
	return r.Pool.Ping(ctx)
}
