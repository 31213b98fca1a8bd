package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSQL(t *testing.T) {
	b := mockBuilder(t, PostgreSQL)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"limit offset", "SELECT * FROM t LIMIT 10,20", "SELECT * FROM t LIMIT 20 OFFSET 10"},
		{"limit with spaces", "select * from t limit 5 , 1", "select * from t LIMIT 1 OFFSET 5"},
		{"plain limit untouched", "SELECT * FROM t LIMIT 10", "SELECT * FROM t LIMIT 10"},
		{"backticks", "SELECT `id` FROM `my table`", `SELECT "id" FROM "my table"`},
		{"literal untouched", "SELECT 'LIMIT 1,2 `x`' FROM t", "SELECT 'LIMIT 1,2 `x`' FROM t"},
		{"comment untouched", "SELECT 1 -- LIMIT 1,2", "SELECT 1 -- LIMIT 1,2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.NormalizeSQL(tt.in))
		})
	}
}

func TestPrepareStatement_Positional(t *testing.T) {
	b := mockBuilder(t, SQLite)

	got, err := b.PrepareStatement("id = ? AND name = ?", 5, "O'Brien")
	require.NoError(t, err)
	assert.Equal(t, "id = 5 AND name = 'O''Brien'", got)

	got, err = b.PrepareStatement("id IN (?) AND flag = ?", []int{1, 2, 3}, true)
	require.NoError(t, err)
	assert.Equal(t, "id IN (1, 2, 3) AND flag = '1'", got)

	got, err = b.PrepareStatement("id IN (?)", []string{})
	require.NoError(t, err)
	assert.Equal(t, "id IN (NULL)", got)

	got, err = b.PrepareStatement("note = '?' AND id = ?", Int(3))
	require.NoError(t, err)
	assert.Equal(t, "note = '?' AND id = 3", got)
}

func TestPrepareStatement_Named(t *testing.T) {
	b := mockBuilder(t, MySQL)

	got, err := b.PrepareStatement("email = :email AND age > :age", Params{"email": "a@b.c", "age": 30})
	require.NoError(t, err)
	assert.Equal(t, "email = 'a@b.c' AND age > 30", got)

	got, err = b.PrepareStatement("a = :x OR b = :x", Params{"x": Text("7")})
	require.NoError(t, err)
	assert.Equal(t, "a = '7' OR b = '7'", got)

	got, err = b.PrepareStatement("created::date = :d", Params{"d": "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "created::date = '2024-01-01'", got)

	_, err = b.PrepareStatement("email = :email", Params{})
	assert.ErrorIs(t, err, ErrMissingParam)
}

func TestPrepareStatement_Errors(t *testing.T) {
	b := mockBuilder(t, SQLite)

	_, err := b.PrepareStatement("a = ? AND b = :b", 1, Params{"b": 2})
	assert.ErrorIs(t, err, ErrMixedPlaceholders)

	_, err = b.PrepareStatement("a = ?", Params{"a": 1})
	assert.ErrorIs(t, err, ErrMixedPlaceholders)

	_, err = b.PrepareStatement("a = :a", 1)
	assert.ErrorIs(t, err, ErrMixedPlaceholders)

	_, err = b.PrepareStatement("a = ? AND b = ?", 1)
	assert.ErrorIs(t, err, ErrParamCount)

	_, err = b.PrepareStatement("a = 1", 1)
	assert.ErrorIs(t, err, ErrParamCount)
}

func TestPrepareStatement_NoArgs(t *testing.T) {
	b := mockBuilder(t, SQLite)
	got, err := b.PrepareStatement("deleted_at IS NULL")
	require.NoError(t, err)
	assert.Equal(t, "deleted_at IS NULL", got)
}

func TestBind(t *testing.T) {
	pg := mockBuilder(t, PostgreSQL)

	sql, args, err := pg.Bind("SELECT * FROM t WHERE a = ? AND b IN (?)", 1, []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)", sql)
	assert.Equal(t, []interface{}{1, "x", "y"}, args)

	sql, args, err = pg.Bind("UPDATE t SET n = :n, at = :at WHERE id = :id",
		Params{"n": "v", "at": Raw("NOW()"), "id": 4})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE t SET n = $1, at = NOW() WHERE id = $2", sql)
	assert.Equal(t, []interface{}{"v", 4}, args)

	sql, args, err = pg.Bind("SELECT $1::int", 9)
	require.NoError(t, err)
	assert.Equal(t, "SELECT $1::int", sql)
	assert.Equal(t, []interface{}{9}, args)

	lite := mockBuilder(t, SQLite)
	sql, args, err = lite.Bind("SELECT 1", Params{"unused": 1})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
	assert.Nil(t, args)

	sql, args, err = lite.Bind("SELECT * FROM t WHERE a = :a", Params{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = ?", sql)
	assert.Equal(t, []interface{}{1}, args)
}

func TestLex_QuotesAndComments(t *testing.T) {
	toks := lex(`SELECT 'a\'?' , "c?" /* :x */ FROM t WHERE x = ?`, true)
	var kinds []tokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.kind)
	}
	assert.Equal(t, []tokenKind{tokCode, tokLiteral, tokCode, tokIdent, tokCode, tokComment, tokCode, tokPositional}, kinds)

	// Without backslash escapes the literal ends at the second quote.
	toks = lex(`SELECT 'a\'?'`, false)
	kinds = kinds[:0]
	for _, tok := range toks {
		kinds = append(kinds, tok.kind)
	}
	assert.Equal(t, []tokenKind{tokCode, tokLiteral, tokPositional, tokLiteral}, kinds)
}
