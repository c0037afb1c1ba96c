package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/magiclogon/faceid/internal/config"
	"github.com/magiclogon/faceid/internal/models"
)

// PostgresStore is the pgvector-backed embedding store. It also holds the
// face event log written by the recorder.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ EmbeddingStore = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	return NewPostgresStoreDSN(ctx, cfg.DSN(), cfg.MaxConns)
}

func NewPostgresStoreDSN(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS identities (
	key           TEXT PRIMARY KEY,
	embedding     vector NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	last_updated  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS face_events (
	id          UUID PRIMARY KEY,
	type        TEXT NOT NULL,
	employee_id TEXT NOT NULL,
	match       BOOLEAN,
	distance    DOUBLE PRECISION,
	threshold   DOUBLE PRECISION,
	timestamp   TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS face_events_employee_idx ON face_events (employee_id, timestamp DESC);
`

// EnsureSchema creates the tables the service needs when they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Identities ---

func (s *PostgresStore) Get(ctx context.Context, key string) (*models.IdentityRecord, error) {
	rec := &models.IdentityRecord{}
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT key, embedding, registered_at, last_updated FROM identities WHERE key = $1`, key,
	).Scan(&rec.Key, &vec, &rec.RegisteredAt, &rec.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	rec.Embedding = vec.Slice()
	return rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec *models.IdentityRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO identities (key, embedding, registered_at, last_updated) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE
		 SET embedding = EXCLUDED.embedding, registered_at = EXCLUDED.registered_at, last_updated = EXCLUDED.last_updated`,
		rec.Key, pgvector.NewVector(rec.Embedding), rec.RegisteredAt, rec.LastUpdated)
	if err != nil {
		return fmt.Errorf("put identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM identities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return n, nil
}

// --- Face events ---

// RecordEvent stores ev. Redelivered events (same ID) are ignored.
func (s *PostgresStore) RecordEvent(ctx context.Context, ev *models.FaceEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO face_events (id, type, employee_id, match, distance, threshold, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
		ev.ID, string(ev.Type), ev.EmployeeID, ev.Match, ev.Distance, ev.Threshold, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("record face event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events for one employee, newest first.
func (s *PostgresStore) ListEvents(ctx context.Context, employeeID string, limit int) ([]models.FaceEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, type, employee_id, match, distance, threshold, timestamp
		 FROM face_events WHERE employee_id = $1 ORDER BY timestamp DESC LIMIT $2`,
		employeeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list face events: %w", err)
	}
	defer rows.Close()

	var events []models.FaceEvent
	for rows.Next() {
		var ev models.FaceEvent
		var typ string
		if err := rows.Scan(&ev.ID, &typ, &ev.EmployeeID, &ev.Match, &ev.Distance, &ev.Threshold, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan face event: %w", err)
		}
		ev.Type = models.FaceEventType(typ)
		events = append(events, ev)
	}
	return events, rows.Err()
}
