package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizer_MaskParams(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		params []interface{}
		want   []interface{}
	}{
		{
			name:   "password column",
			sql:    `UPDATE "users" SET "password" = ? WHERE "id" = ?`,
			params: []interface{}{"secret123", 1},
			want:   []interface{}{DefaultMask, DefaultMask},
		},
		{
			name:   "session data column",
			sql:    `SELECT "session_data" FROM "sessions" WHERE "id" = ?`,
			params: []interface{}{"abc"},
			want:   []interface{}{DefaultMask},
		},
		{
			name:   "no sensitive columns",
			sql:    `SELECT * FROM "users" WHERE "id" = ?`,
			params: []interface{}{1},
			want:   []interface{}{1},
		},
		{
			name:   "empty params",
			sql:    `SELECT COUNT(*) FROM "users" WHERE "password" IS NULL`,
			params: []interface{}{},
			want:   []interface{}{},
		},
	}

	s := NewSanitizer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.MaskParams(tt.sql, tt.params))
		})
	}
}

func TestSanitizer_MaskParams_DoesNotModifyInput(t *testing.T) {
	params := []interface{}{"secret"}
	NewSanitizer(nil).MaskParams("UPDATE users SET token = ?", params)
	assert.Equal(t, "secret", params[0])
}

func TestSanitizer_MaskSQL(t *testing.T) {
	s := NewSanitizer(nil)

	got := s.MaskSQL(`INSERT INTO "users" ("name", "password") VALUES ('Alice', 'it''s s3cret')`)
	assert.Equal(t, `INSERT INTO "users" ("name", "password") VALUES ('`+DefaultMask+`', '`+DefaultMask+`')`, got)

	got = s.MaskSQL(`UPDATE "users" SET "token" = 'a\'b' WHERE "id" = 1`)
	assert.Equal(t, `UPDATE "users" SET "token" = '`+DefaultMask+`' WHERE "id" = `+DefaultMask, got)

	plain := `SELECT * FROM "users" WHERE "name" = 'Alice'`
	assert.Equal(t, plain, s.MaskSQL(plain))
}

func TestSanitizer_MaskSQL_BareNumbers(t *testing.T) {
	s := NewSanitizer(nil)

	got := s.MaskSQL(`INSERT INTO "cards" ("card_number", "cvv", "exp2") VALUES (4111111111111111, 123, -0.5e3)`)
	assert.Equal(t, `INSERT INTO "cards" ("card_number", "cvv", "exp2") VALUES (`+
		DefaultMask+`, `+DefaultMask+`, -`+DefaultMask+`)`, got)
	assert.NotContains(t, got, "4111")

	// Identifiers and bind markers keep their digits.
	got = s.MaskSQL(`UPDATE t1 SET "pwd" = $1 WHERE "v2" = 7`)
	assert.Equal(t, `UPDATE t1 SET "pwd" = $1 WHERE "v2" = `+DefaultMask, got)

	plain := `SELECT * FROM "users" WHERE "id" = 42`
	assert.Equal(t, plain, s.MaskSQL(plain))
}

func TestSanitizer_CustomFields(t *testing.T) {
	s := NewSanitizer([]string{"pin"})
	assert.True(t, s.Sensitive("UPDATE cards SET pin = '1234'"))
	assert.False(t, s.Sensitive("UPDATE users SET password = 'x'"))
	assert.False(t, s.Sensitive("SELECT spinner FROM toys"))
}

func TestSanitizer_FormatParams(t *testing.T) {
	s := NewSanitizer(nil)
	assert.Equal(t, "[]", s.FormatParams(nil))
	assert.Equal(t, "[1, Alice, NULL]", s.FormatParams([]interface{}{1, "Alice", nil}))

	long := strings.Repeat("x", 150)
	assert.Equal(t, "["+strings.Repeat("x", 100)+"...]", s.FormatParams([]interface{}{long}))
}
