// internal/adapter/storage/postgres_store.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pulse/internal/domain/signal"
)

// DB is the subset of *pgxpool.Pool used by the Postgres store
type DB interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PostgresSnapshotStore keeps one snapshot row per key
type PostgresSnapshotStore struct {
	db    DB
	table string
}

// NewPostgresPool opens and verifies a connection pool
func NewPostgresPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("error parsing database config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}
	return pool, nil
}

// NewPostgresSnapshotStore creates a store over table
func NewPostgresSnapshotStore(db DB, table string) *PostgresSnapshotStore {
	if table == "" {
		table = "analysis_snapshots"
	}
	return &PostgresSnapshotStore{db: db, table: pgx.Identifier{table}.Sanitize()}
}

// EnsureSchema creates the snapshot table if it does not exist
func (s *PostgresSnapshotStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			payload    JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, s.table)

	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("error creating snapshot table: %w", err)
	}
	return nil
}

// Get returns the snapshot stored under key, or nil if there is none
func (s *PostgresSnapshotStore) Get(ctx context.Context, key string) (*signal.AnalysisSnapshot, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE key = $1`, s.table)

	var payload []byte
	err := s.db.QueryRow(ctx, query, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying snapshot: %w", err)
	}

	return decodeSnapshot(key, payload)
}

// Put upserts the snapshot for key
func (s *PostgresSnapshotStore) Put(ctx context.Context, key string, snap signal.AnalysisSnapshot) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (key, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET payload = $2, updated_at = $3
	`, s.table)

	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	updated := snap.Timestamp
	if updated.IsZero() {
		updated = time.Now()
	}

	if _, err := s.db.Exec(ctx, query, key, payload, updated); err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}
	return nil
}
