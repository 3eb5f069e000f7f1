package authority

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventdesk/roster/internal/roster"
)

// NextNumber draws the next queue number within the running update.
type NextNumber func() (int, error)

// UpdateFunc mutates p in place. next is bound to the same transaction as
// the row lock.
type UpdateFunc func(p *roster.Participant, next NextNumber) error

type Repository interface {
	EnsureSchema(ctx context.Context) error
	Insert(ctx context.Context, p roster.Participant) error
	List(ctx context.Context) ([]roster.Participant, error)
	Get(ctx context.Context, id string) (roster.Participant, error)
	// Update loads id, applies fn and stores the result atomically.
	Update(ctx context.Context, id string, fn UpdateFunc) (roster.Participant, error)
	Delete(ctx context.Context, id string) (roster.Participant, error)
	Ping(ctx context.Context) error
}

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

const createParticipantsSQL = `
CREATE TABLE IF NOT EXISTS participants (
  id text PRIMARY KEY,
  name text NOT NULL,
  checked_in boolean NOT NULL DEFAULT false,
  checked_in_at timestamptz,
  list_number integer,
  created_at timestamptz NOT NULL DEFAULT now()
)`

const createListNumberSeqSQL = `CREATE SEQUENCE IF NOT EXISTS participant_list_number_seq START 1`

const createCheckedInIndexSQL = `
CREATE INDEX IF NOT EXISTS participants_checked_in_idx
ON participants (checked_in, checked_in_at)`

const nextListNumberSQL = `SELECT nextval('participant_list_number_seq')`

const selectParticipantSQL = `SELECT id, name, checked_in, checked_in_at, list_number FROM participants`

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createParticipantsSQL, createListNumberSeqSQL, createCheckedInIndexSQL} {
		if _, err := r.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) Insert(ctx context.Context, p roster.Participant) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO participants (id, name, checked_in, checked_in_at, list_number) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.CheckedIn, p.CheckedInAt, p.ListNumber,
	)
	return err
}

func (r *PostgresRepository) List(ctx context.Context) ([]roster.Participant, error) {
	rows, err := r.Pool.Query(ctx, selectParticipantSQL+` ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]roster.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (roster.Participant, error) {
	p, err := scanParticipant(r.Pool.QueryRow(ctx, selectParticipantSQL+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return roster.Participant{}, ErrNotFound
		}
		return roster.Participant{}, err
	}
	return p, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, fn UpdateFunc) (roster.Participant, error) {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return roster.Participant{}, err
	}
	defer tx.Rollback(ctx)

	p, err := scanParticipant(tx.QueryRow(ctx, selectParticipantSQL+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return roster.Participant{}, ErrNotFound
		}
		return roster.Participant{}, err
	}
	next := func() (int, error) {
		var n int64
		if err := tx.QueryRow(ctx, nextListNumberSQL).Scan(&n); err != nil {
			return 0, err
		}
		return int(n), nil
	}
	if err := fn(&p, next); err != nil {
		return roster.Participant{}, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE participants SET name = $2, checked_in = $3, checked_in_at = $4, list_number = $5 WHERE id = $1`,
		p.ID, p.Name, p.CheckedIn, p.CheckedInAt, p.ListNumber,
	); err != nil {
		return roster.Participant{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return roster.Participant{}, err
	}
	return p, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (roster.Participant, error) {
	p, err := scanParticipant(r.Pool.QueryRow(ctx,
		`DELETE FROM participants WHERE id = $1 RETURNING id, name, checked_in, checked_in_at, list_number`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return roster.Participant{}, ErrNotFound
		}
		return roster.Participant{}, err
	}
	return p, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.Pool.Ping(ctx)
}

func scanParticipant(row pgx.Row) (roster.Participant, error) {
	var (
		p          roster.Participant
		checkedAt  *time.Time
		listNumber *int32
	)
	if err := row.Scan(&p.ID, &p.Name, &p.CheckedIn, &checkedAt, &listNumber); err != nil {
		return roster.Participant{}, err
	}
	if checkedAt != nil {
		t := checkedAt.UTC()
		p.CheckedInAt = &t
	}
	if listNumber != nil {
		n := int(*listNumber)
		p.ListNumber = &n
	}
	return p, nil
}

// MemoryRepository keeps participants in process. It backs the authority
// when no database is configured.
type MemoryRepository struct {
	mu      sync.Mutex
	order   []string
	entries map[string]roster.Participant
	seq     int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: map[string]roster.Participant{}}
}

func (m *MemoryRepository) EnsureSchema(context.Context) error { return nil }
func (m *MemoryRepository) Ping(context.Context) error         { return nil }

func (m *MemoryRepository) Insert(_ context.Context, p roster.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[p.ID]; ok {
		return errors.New("duplicate participant id")
	}
	m.entries[p.ID] = p
	m.order = append(m.order, p.ID)
	return nil
}

func (m *MemoryRepository) List(context.Context) ([]roster.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]roster.Participant, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entries[id])
	}
	return out, nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (roster.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entries[id]
	if !ok {
		return roster.Participant{}, ErrNotFound
	}
	return p, nil
}

// Update runs fn under the repository lock. A number drawn by a failed
// update stays consumed, as with a sequence.
func (m *MemoryRepository) Update(_ context.Context, id string, fn UpdateFunc) (roster.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entries[id]
	if !ok {
		return roster.Participant{}, ErrNotFound
	}
	next := func() (int, error) {
		m.seq++
		return m.seq, nil
	}
	if err := fn(&p, next); err != nil {
		return roster.Participant{}, err
	}
	m.entries[id] = p
	return p, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) (roster.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entries[id]
	if !ok {
		return roster.Participant{}, ErrNotFound
	}
	delete(m.entries, id)
	m.order = slices.DeleteFunc(m.order, func(v string) bool { return v == id })
	return p, nil
}
