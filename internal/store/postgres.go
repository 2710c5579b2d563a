package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"go.uber.org/zap"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	sqlCreateSchema = `
        CREATE TABLE IF NOT EXISTS action_sequences (
            key          TEXT PRIMARY KEY,
            action_count INTEGER NOT NULL,
            saved_at     TIMESTAMPTZ NOT NULL
        );
        CREATE TABLE IF NOT EXISTS recorded_actions (
            sequence_key TEXT NOT NULL REFERENCES action_sequences (key) ON DELETE CASCADE,
            position     INTEGER NOT NULL,
            kind         TEXT NOT NULL,
            ts           DOUBLE PRECISION NOT NULL,
            x            INTEGER NOT NULL,
            y            INTEGER NOT NULL,
            button       TEXT NOT NULL,
            PRIMARY KEY (sequence_key, position)
        );
    `
	sqlDeleteActions  = `DELETE FROM recorded_actions WHERE sequence_key = $1;`
	sqlUpsertSequence = `
        INSERT INTO action_sequences (key, action_count, saved_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE SET
            action_count = EXCLUDED.action_count,
            saved_at = EXCLUDED.saved_at;
    `
	sqlSelectSequence = `SELECT action_count FROM action_sequences WHERE key = $1;`
	sqlSelectActions  = `
        SELECT kind, ts, x, y, button
        FROM recorded_actions
        WHERE sequence_key = $1
        ORDER BY position ASC;
    `
)

var actionColumns = []string{"sequence_key", "position", "kind", "ts", "x", "y", "button"}

// PostgresActionStore keeps sequences in shared tables, one sequence per key.
type PostgresActionStore struct {
	pool DBPool
	key  string
	log  *zap.Logger
}

var _ ActionStore = (*PostgresActionStore)(nil)

// NewPool opens a pgx connection pool for url.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}

// NewPostgresActionStore creates a store instance and verifies the connection.
func NewPostgresActionStore(ctx context.Context, pool DBPool, key string, logger *zap.Logger) (*PostgresActionStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresActionStore{
		pool: pool,
		key:  key,
		log:  logger.Named("action_store").With(zap.String("key", key)),
	}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresActionStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save replaces the stored sequence in a single transaction.
func (s *PostgresActionStore) Save(ctx context.Context, seq schemas.ActionSequence) error {
	if err := seq.ValidateRecords(); err != nil {
		return fmt.Errorf("refusing to save invalid sequence: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed, which is expected.
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlDeleteActions, s.key); err != nil {
		return fmt.Errorf("failed to clear previous actions: %w", err)
	}
	if _, err := tx.Exec(ctx, sqlUpsertSequence, s.key, len(seq), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert sequence: %w", err)
	}

	if len(seq) > 0 {
		rows := make([][]any, len(seq))
		for i, a := range seq {
			rows[i] = []any{s.key, i, string(a.Kind), a.Timestamp, a.X, a.Y, string(a.Button)}
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"recorded_actions"}, actionColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy actions: %w", err)
		}
		if int(n) != len(seq) {
			return fmt.Errorf("mismatch in copied actions count: expected %d, got %d", len(seq), n)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Action sequence saved", zap.Int("actions", len(seq)))
	return nil
}

// Load reads the stored sequence in recorded order.
func (s *PostgresActionStore) Load(ctx context.Context) (schemas.ActionSequence, error) {
	var count int
	if err := s.pool.QueryRow(ctx, sqlSelectSequence, s.key).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sequence %q: %w", s.key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query sequence: %w", err)
	}

	rows, err := s.pool.Query(ctx, sqlSelectActions, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	seq := make(schemas.ActionSequence, 0, count)
	for rows.Next() {
		var a schemas.RecordedAction
		var kind, button string
		if err := rows.Scan(&kind, &a.Timestamp, &a.X, &a.Y, &button); err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}
		a.Kind = schemas.ActionKind(kind)
		a.Button = schemas.MouseButton(button)
		seq = append(seq, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	if len(seq) != count {
		return nil, fmt.Errorf("sequence %q is incomplete: expected %d actions, found %d", s.key, count, len(seq))
	}
	if err := seq.ValidateRecords(); err != nil {
		return nil, fmt.Errorf("sequence %q is invalid: %w", s.key, err)
	}
	return seq, nil
}
