//go:build integration
// +build integration

package test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/webdb"
)

var productsTable = map[webdb.Driver]string{
	webdb.MySQL: `CREATE TABLE products (
		id INT AUTO_INCREMENT PRIMARY KEY COMMENT 'row id',
		sku VARCHAR(32) NOT NULL UNIQUE COMMENT 'stock keeping unit',
		price DECIMAL(10,2),
		note TEXT
	)`,
	webdb.PostgreSQL: `CREATE TABLE products (
		id SERIAL PRIMARY KEY,
		sku VARCHAR(32) NOT NULL UNIQUE,
		price NUMERIC(10,2),
		note TEXT
	)`,
	webdb.SQLite: `CREATE TABLE products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sku VARCHAR(32) NOT NULL UNIQUE,
		price DECIMAL(10,2),
		note TEXT
	)`,
}

func TestFields_PrimaryKeyAndTypes(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			db := open(t, b.params)
			recreate(t, db, "products", productsTable)

			fields, err := db.Fields(context.Background(), "products", webdb.FieldsOptions{})
			require.NoError(t, err)
			require.Equal(t, []string{"id", "sku", "price", "note"}, fields.Names())
			assert.Equal(t, []string{"id"}, fields.PrimaryKeys())

			assert.True(t, webdb.IsNumericType(fields.Lookup("price").Type), fields.Lookup("price").Type)
			assert.False(t, webdb.IsNumericType(fields.Lookup("sku").Type), fields.Lookup("sku").Type)
			assert.False(t, webdb.IsNumericType(fields.Lookup("note").Type), fields.Lookup("note").Type)
		})
	}
}

func TestMySQL_FieldsWithComments(t *testing.T) {
	ctx := context.Background()
	db := open(t, mysqlParams)
	recreate(t, db, "products", productsTable)

	fields, err := db.Fields(ctx, "products", webdb.FieldsOptions{WithComments: true})
	require.NoError(t, err)
	assert.Equal(t, "row id", fields.Lookup("id").Comment)
	assert.Equal(t, "stock keeping unit", fields.Lookup("sku").Comment)
	assert.Equal(t, "", fields.Lookup("note").Comment)
	assert.Equal(t, "varchar(32)", fields.Lookup("sku").Type)

	fields, err = db.Fields(ctx, "products", webdb.FieldsOptions{Clause: "LIKE 's%'"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sku"}, fields.Names())
}

func TestPostgres_FieldsWithComments(t *testing.T) {
	ctx := context.Background()
	db := open(t, pgParams)
	recreate(t, db, "products", productsTable)
	_, err := db.Exec(ctx, "COMMENT ON COLUMN products.sku IS 'stock keeping unit'")
	require.NoError(t, err)

	fields, err := db.Fields(ctx, "products", webdb.FieldsOptions{WithComments: true})
	require.NoError(t, err)
	assert.Equal(t, "stock keeping unit", fields.Lookup("sku").Comment)
	assert.Equal(t, "", fields.Lookup("id").Comment)
	assert.Equal(t, "character varying", fields.Lookup("sku").Type)
	assert.True(t, fields.Lookup("id").IsPrimary)

	fields, err = db.Fields(ctx, "public.products", webdb.FieldsOptions{Clause: "c.column_name LIKE 'p%'"})
	require.NoError(t, err)
	assert.Equal(t, []string{"price"}, fields.Names())
}

func TestMySQL_ANSIQuotes(t *testing.T) {
	ctx := context.Background()
	db := open(t, mysqlParams)
	recreate(t, db, "products", productsTable)

	q, err := db.Query(ctx, "SELECT @@SESSION.sql_mode")
	require.NoError(t, err)
	mode, err := q.FetchColumn(0)
	require.NoError(t, err)
	assert.Contains(t, mode, "ANSI_QUOTES")

	_, err = db.Exec(ctx, `INSERT INTO "products" ("sku", "price") VALUES (?, ?)`, "A-1", 9.5)
	require.NoError(t, err)
	v, err := db.Get(ctx, "products", "sku", webdb.Cond(`"price" > ?`, 9))
	require.NoError(t, err)
	assert.Equal(t, "A-1", v)
}

func TestLiteralEscaping_RoundTrip(t *testing.T) {
	values := []string{
		`it's`,
		`back\slash`,
		`trailing\`,
		`"double" and 'single'`,
		"line\nbreak\ttab",
		`\'; DROP TABLE products; --`,
		"ünïcödé ✓",
	}
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			db := open(t, b.params)
			recreate(t, db, "products", productsTable)

			for i, s := range values {
				sku := "sku-" + strings.Repeat("x", i)
				_, err := db.Insert(ctx, "products", []webdb.Row{{"sku": sku, "note": s}})
				require.NoError(t, err, s)

				got, err := db.Get(ctx, "products", "note", webdb.Cond("sku = ?", sku))
				require.NoError(t, err, s)
				assert.Equal(t, s, got)

				n, err := db.Count(ctx, "products", webdb.Cond("note = :note", webdb.Params{"note": s}))
				require.NoError(t, err, s)
				assert.Equal(t, int64(1), n, s)
			}
		})
	}
}

func TestRecordCountAndLimit(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			db := open(t, b.params)
			recreate(t, db, "products", productsTable)

			rows := make([]webdb.Row, 0, 5)
			for _, sku := range []string{"a", "b", "c", "d", "e"} {
				rows = append(rows, webdb.Row{"sku": sku, "price": "1.50"})
			}
			n, err := db.Insert(ctx, "products", rows)
			require.NoError(t, err)
			assert.Equal(t, int64(5), n)

			total, err := db.RecordCount(ctx, "SELECT sku FROM products WHERE price > ?", 1)
			require.NoError(t, err)
			assert.Equal(t, int64(5), total)

			q, err := db.Query(ctx, "SELECT sku FROM products ORDER BY sku LIMIT 1, 2")
			require.NoError(t, err)
			got, err := q.FetchAll()
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "b", got[0]["sku"])
			assert.Equal(t, "c", got[1]["sku"])
		})
	}
}
