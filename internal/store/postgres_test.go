package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockStore(t *testing.T, logger *zap.Logger) (*PostgresActionStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	s, err := NewPostgresActionStore(context.Background(), mockPool, "default", logger)
	require.NoError(t, err)
	return s, mockPool
}

func TestNewPostgresActionStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = NewPostgresActionStore(context.Background(), mockPool, "default", zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresActionStoreEnsureSchema(t *testing.T) {
	s, mockPool := newMockStore(t, zap.NewNop())
	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateSchema)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresActionStoreSave(t *testing.T) {
	ctx := context.Background()

	t.Run("should replace the sequence in one transaction", func(t *testing.T) {
		observedCore, observedLogs := observer.New(zapcore.ErrorLevel)
		s, mockPool := newMockStore(t, zap.New(observedCore))
		seq := sampleSequence()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlDeleteActions)).
			WithArgs("default").
			WillReturnResult(pgxmock.NewResult("DELETE", 5))
		mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertSequence)).
			WithArgs("default", len(seq), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"recorded_actions"}, actionColumns).
			WillReturnResult(int64(len(seq)))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.Save(ctx, seq))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "no rollback error is logged after commit")
	})

	t.Run("should roll back when copy fails", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		copyErr := errors.New("disk full")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlDeleteActions)).
			WithArgs("default").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertSequence)).
			WithArgs("default", 3, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"recorded_actions"}, actionColumns).
			WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err := s.Save(ctx, sampleSequence())
		assert.ErrorIs(t, err, copyErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should skip copy for an empty sequence", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlDeleteActions)).
			WithArgs("default").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertSequence)).
			WithArgs("default", 0, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.Save(ctx, nil))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresActionStoreLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("should load actions in recorded order", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		want := sampleSequence()

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectSequence)).
			WithArgs("default").
			WillReturnRows(pgxmock.NewRows([]string{"action_count"}).AddRow(len(want)))
		rows := pgxmock.NewRows([]string{"kind", "ts", "x", "y", "button"})
		for _, a := range want {
			rows.AddRow(string(a.Kind), a.Timestamp, a.X, a.Y, string(a.Button))
		}
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectActions)).
			WithArgs("default").
			WillReturnRows(rows)

		got, err := s.Load(ctx)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("load mismatch (-want +got):\n%s", diff)
		}
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report not found", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectSequence)).
			WithArgs("default").
			WillReturnError(pgx.ErrNoRows)

		_, err := s.Load(ctx)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should refuse a partial sequence", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		a := sampleSequence()[0]

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectSequence)).
			WithArgs("default").
			WillReturnRows(pgxmock.NewRows([]string{"action_count"}).AddRow(3))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectActions)).
			WithArgs("default").
			WillReturnRows(pgxmock.NewRows([]string{"kind", "ts", "x", "y", "button"}).
				AddRow(string(a.Kind), a.Timestamp, a.X, a.Y, string(a.Button)))

		seq, err := s.Load(ctx)
		require.Error(t, err)
		assert.Nil(t, seq)
		assert.Contains(t, err.Error(), "incomplete")
	})
}
