package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewSQLiteStore(db, nil)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_PutGetDelete(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Put(ctx, "k", []byte(`[1]`)))
	require.NoError(t, s.Put(ctx, "k", []byte(`[1,2]`)))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(got))

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestSQLiteStore_PutUsesClock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	clk := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	s := NewSQLiteStore(db, clk)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO options (name, value, updated_at) VALUES (?, ?, ?)")).
		WithArgs("k", []byte("v"), int64(1700000000)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Put(context.Background(), "k", []byte("v")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ErrorsAreWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLiteStore(db, nil)
	diskErr := errors.New("disk I/O error")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM options WHERE name = ?")).
		WithArgs("k").
		WillReturnError(diskErr)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO options")).
		WillReturnError(diskErr)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM options WHERE name = ?")).
		WithArgs("k").
		WillReturnError(diskErr)

	ctx := context.Background()
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, diskErr)
	assert.ErrorIs(t, s.Put(ctx, "k", []byte("v")), diskErr)
	assert.ErrorIs(t, s.Delete(ctx, "k"), diskErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_GetNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM options WHERE name = ?")).
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err = NewSQLiteStore(db, nil).Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuildDSN(t *testing.T) {
	dsn, err := buildDSN("file:/tmp/x.db?mode=rwc")
	require.NoError(t, err)
	assert.Equal(t, "file:/tmp/x.db?mode=rwc&_busy_timeout=5000&_journal_mode=WAL", dsn)

	dsn, err = buildDSN(":memory:")
	require.NoError(t, err)
	assert.Contains(t, dsn, "memory")
}
