package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userName(t *testing.T, db *DB, email string) interface{} {
	t.Helper()
	v, err := db.Get(context.Background(), "users", "name", Cond("email = ?", email))
	require.NoError(t, err)
	return v
}

func TestUpdateOrInsert_Idempotent(t *testing.T) {
	db := openSQLite(t)
	createUsers(t, db)
	ctx := context.Background()
	data := Row{"email": "a@x", "name": "Ann"}

	n, err := db.UpdateOrInsert(ctx, "users", data, []string{"email"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = db.UpdateOrInsert(ctx, "users", data, []string{"email"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), countUsers(t, db))

	_, err = db.UpdateOrInsert(ctx, "users", Row{"email": "a@x", "name": "Anna"}, []string{"email"})
	require.NoError(t, err)
	assert.Equal(t, "Anna", userName(t, db, "a@x"))
	assert.Equal(t, int64(1), countUsers(t, db))
}

func TestUpdateOrInsert_PrimaryKeyDefault(t *testing.T) {
	db := openSQLite(t)
	createUsers(t, db)
	ctx := context.Background()

	_, err := db.UpdateOrInsert(ctx, "users", Row{"id": 7, "email": "a@x"}, nil)
	require.NoError(t, err)
	_, err = db.UpdateOrInsert(ctx, "users", Row{"id": 7, "email": "b@x"}, nil)
	require.NoError(t, err)

	v, err := db.Get(ctx, "users", "email", Cond("id = ?", 7))
	require.NoError(t, err)
	assert.Equal(t, "b@x", v)
	assert.Equal(t, int64(1), countUsers(t, db))

	_, err = db.UpdateOrInsert(ctx, "users", Row{"email": "c@x"}, nil)
	assert.ErrorIs(t, err, ErrNoUniqueKey)
	_, err = db.UpdateOrInsert(ctx, "users", Row{}, []string{"email"})
	assert.ErrorIs(t, err, ErrEmptyData)
}

func TestReplace_OnConflict(t *testing.T) {
	var statements []string
	db := openSQLite(t, WithQueryHook(func(_ context.Context, e QueryEvent) {
		statements = append(statements, e.SQL)
	}))
	createUsers(t, db)
	ctx := context.Background()

	n, err := db.Replace(ctx, "users", Row{"email": "a@x", "name": "Ann"}, []string{"email"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = db.Replace(ctx, "users", Row{"email": "a@x", "name": "Bob"}, []string{"email"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, "Bob", userName(t, db, "a@x"))
	assert.Equal(t, int64(1), countUsers(t, db))

	assert.Contains(t, statements,
		`INSERT INTO "users" ("email", "name") VALUES ('a@x', 'Bob') ON CONFLICT ("email") DO UPDATE SET "name" = excluded."name"`)
}

func TestReplace_PrimaryKeyDefault(t *testing.T) {
	db := openSQLite(t)
	createUsers(t, db)
	ctx := context.Background()

	_, err := db.Replace(ctx, "users", Row{"id": 1, "email": "a@x", "name": "Ann"}, nil)
	require.NoError(t, err)
	_, err = db.Replace(ctx, "users", Row{"id": 1, "email": "a@y", "name": "Ann"}, nil)
	require.NoError(t, err)

	v, err := db.Get(ctx, "users", "email", Cond("id = ?", 1))
	require.NoError(t, err)
	assert.Equal(t, "a@y", v)
}

func TestReplace_LegacySniffing(t *testing.T) {
	db := openSQLite(t, WithLegacyUpsert(true))
	createUsers(t, db)
	ctx := context.Background()

	_, err := db.Insert(ctx, "users", []Row{{"email": "a@x", "name": "Ann"}})
	require.NoError(t, err)

	n, err := db.Replace(ctx, "users", Row{"email": "a@x", "name": "Bob"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Nil(t, db.LastError())
	assert.Equal(t, "Bob", userName(t, db, "a@x"))
	assert.Equal(t, int64(1), countUsers(t, db))

	n, err = db.Replace(ctx, "users", Row{"email": "new@x", "name": "Cy"}, []string{"email"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(2), countUsers(t, db))
}

func TestReplace_UnknownKeyFallsBackToSniffing(t *testing.T) {
	db := openSQLite(t)
	createUsers(t, db)
	ctx := context.Background()

	_, err := db.Insert(ctx, "users", []Row{{"email": "a@x", "name": "Ann"}})
	require.NoError(t, err)

	n, err := db.Replace(ctx, "users", Row{"email": "a@x", "name": "Bob"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, "Bob", userName(t, db, "a@x"))
}

func TestReplace_OtherErrorsAreReturned(t *testing.T) {
	db := openSQLite(t, WithLegacyUpsert(true))
	createUsers(t, db)
	ctx := context.Background()

	_, err := db.Replace(ctx, "users", Row{"name": "no email"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatement)
	assert.Contains(t, db.ErrorMessage(), "NOT NULL")

	_, err = db.Replace(ctx, "users", Row{}, nil)
	assert.ErrorIs(t, err, ErrEmptyData)
}

func TestInsert_QuotingFollowsFieldSet(t *testing.T) {
	var last string
	db := openSQLite(t, WithQueryHook(func(_ context.Context, e QueryEvent) { last = e.SQL }))
	mustExec(t, db, "CREATE TABLE people (age TEXT)")
	ctx := context.Background()

	_, err := db.Insert(ctx, "people", []Row{{"age": 5}}, WithFieldSet(FieldSet{{Name: "age", Type: "int"}}))
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "people" ("age") VALUES (5)`, last)

	_, err = db.Insert(ctx, "people", []Row{{"age": 5}}, WithFieldSet(nil))
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "people" ("age") VALUES ('5')`, last)

	_, err = db.Insert(ctx, "people", []Row{{"age": Int(5)}}, WithFieldSet(nil))
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "people" ("age") VALUES (5)`, last)
}
