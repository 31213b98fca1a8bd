package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countUsers(t *testing.T, db *DB) int64 {
	t.Helper()
	n, err := db.Count(context.Background(), "users", Condition{})
	require.NoError(t, err)
	return n
}

func TestTx_CommitAndRollback(t *testing.T) {
	db := openSQLite(t)
	createUsers(t, db)
	ctx := context.Background()

	require.NoError(t, db.Begin(ctx))
	assert.True(t, db.InTransaction())
	_, err := db.Insert(ctx, "users", []Row{{"email": "a@x"}})
	require.NoError(t, err)
	require.NoError(t, db.Commit(ctx))
	assert.False(t, db.InTransaction())
	assert.Equal(t, int64(1), countUsers(t, db))

	require.NoError(t, db.Begin(ctx))
	_, err = db.Insert(ctx, "users", []Row{{"email": "b@x"}})
	require.NoError(t, err)
	require.NoError(t, db.Rollback(ctx))
	assert.Equal(t, int64(1), countUsers(t, db))
}

func TestTx_BeginIsIdempotent(t *testing.T) {
	db := openSQLite(t)
	createUsers(t, db)
	ctx := context.Background()

	require.NoError(t, db.Begin(ctx))
	_, err := db.Insert(ctx, "users", []Row{{"email": "a@x"}})
	require.NoError(t, err)
	require.NoError(t, db.Begin(ctx))
	_, err = db.Insert(ctx, "users", []Row{{"email": "b@x"}})
	require.NoError(t, err)

	require.NoError(t, db.Rollback(ctx))
	assert.False(t, db.InTransaction())
	assert.Equal(t, int64(0), countUsers(t, db))
}

func TestTx_CommitWithoutTransaction(t *testing.T) {
	db := openSQLite(t)
	err := db.Commit(context.Background())
	assert.ErrorIs(t, err, ErrNoTransaction)
	assert.NoError(t, db.Rollback(context.Background()))
}

func TestTx_Savepoints(t *testing.T) {
	db := openSQLite(t)
	createUsers(t, db)
	ctx := context.Background()

	require.NoError(t, db.Begin(ctx))
	_, err := db.Insert(ctx, "users", []Row{{"email": "a@x"}})
	require.NoError(t, err)

	require.NoError(t, db.Begin(ctx, "before_b"))
	_, err = db.Insert(ctx, "users", []Row{{"email": "b@x"}})
	require.NoError(t, err)

	require.NoError(t, db.Rollback(ctx, "before_b"))
	assert.True(t, db.InTransaction())
	require.NoError(t, db.Commit(ctx))

	ok, err := db.Exists(ctx, "users", Cond("email = ?", "a@x"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.Exists(ctx, "users", Cond("email = ?", "b@x"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTx_UnknownSavepointRollsBackEverything(t *testing.T) {
	db := openSQLite(t)
	createUsers(t, db)
	ctx := context.Background()

	require.NoError(t, db.Begin(ctx))
	_, err := db.Insert(ctx, "users", []Row{{"email": "a@x"}})
	require.NoError(t, err)

	require.NoError(t, db.Rollback(ctx, "never_set"))
	assert.False(t, db.InTransaction())
	require.NotNil(t, db.LastError())
	assert.Contains(t, db.ErrorMessage(), "never_set")
	assert.Equal(t, int64(0), countUsers(t, db))
}

func TestTx_InvalidSavepointName(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	err := db.Begin(ctx, "x; DROP TABLE users")
	assert.ErrorIs(t, err, ErrStatement)
	assert.False(t, db.InTransaction())
}

func TestTransactional(t *testing.T) {
	db := openSQLite(t)
	createUsers(t, db)
	ctx := context.Background()

	err := db.Transactional(ctx, func(ctx context.Context) error {
		_, err := db.Insert(ctx, "users", []Row{{"email": "a@x"}})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), countUsers(t, db))

	boom := errors.New("boom")
	err = db.Transactional(ctx, func(ctx context.Context) error {
		if _, err := db.Insert(ctx, "users", []Row{{"email": "b@x"}}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, db.InTransaction())
	assert.Equal(t, int64(1), countUsers(t, db))

	assert.Panics(t, func() {
		_ = db.Transactional(ctx, func(ctx context.Context) error {
			_, _ = db.Insert(ctx, "users", []Row{{"email": "c@x"}})
			panic("fatal")
		})
	})
	assert.False(t, db.InTransaction())
	assert.Equal(t, int64(1), countUsers(t, db))
}

func TestTransactional_JoinsOuterTransaction(t *testing.T) {
	db := openSQLite(t)
	createUsers(t, db)
	ctx := context.Background()

	require.NoError(t, db.Begin(ctx))
	err := db.Transactional(ctx, func(ctx context.Context) error {
		_, err := db.Insert(ctx, "users", []Row{{"email": "a@x"}})
		return err
	})
	require.NoError(t, err)
	assert.True(t, db.InTransaction())

	require.NoError(t, db.Rollback(ctx))
	assert.Equal(t, int64(0), countUsers(t, db))
}
