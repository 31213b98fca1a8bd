package core

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/coregx/webdb/internal/dialects"
	"github.com/coregx/webdb/internal/tracer"
)

// FieldDescriptor is the introspected metadata of one column.
type FieldDescriptor = dialects.Column

// FieldSet is the ordered column list of a table.
type FieldSet []FieldDescriptor

// Lookup returns the descriptor of the named column, matching case-insensitively
// when there is no exact match. It returns nil for unknown columns.
func (fs FieldSet) Lookup(name string) *FieldDescriptor {
	for i := range fs {
		if fs[i].Name == name {
			return &fs[i]
		}
	}
	for i := range fs {
		if strings.EqualFold(fs[i].Name, name) {
			return &fs[i]
		}
	}
	return nil
}

// Names returns the column names in table order.
func (fs FieldSet) Names() []string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}

// PrimaryKeys returns the primary key columns in table order.
func (fs FieldSet) PrimaryKeys() []string {
	var keys []string
	for _, f := range fs {
		if f.IsPrimary {
			keys = append(keys, f.Name)
		}
	}
	return keys
}

var numericTypeRegex = regexp.MustCompile(`(?i)(double|float|real|dec|int|serial|numeric|number|bit)`)

// IsNumericType reports whether a native column type holds numbers.
func IsNumericType(typ string) bool {
	return numericTypeRegex.MatchString(typ)
}

// FieldsOptions selects what Fields returns.
type FieldsOptions struct {
	// WithComments also reads column comments (MySQL, PostgreSQL).
	WithComments bool
	// Clause is appended to the introspection query (MySQL LIKE/WHERE,
	// PostgreSQL condition over information_schema.columns c).
	Clause string
}

// Fields introspects the columns of table. A table without primary key or
// comments yields zero values for them.
func (db *DB) Fields(ctx context.Context, table string, opts FieldsOptions) (FieldSet, error) {
	db.mu.Lock()
	defer db.unlock()
	if err := db.validate(ctx, opts.Clause, false); err != nil {
		return nil, err
	}
	return db.fieldsLocked(ctx, table, opts)
}

// FieldNames returns the column names of table in order.
func (db *DB) FieldNames(ctx context.Context, table, clause string) ([]string, error) {
	fs, err := db.Fields(ctx, table, FieldsOptions{Clause: clause})
	if err != nil {
		return nil, err
	}
	return fs.Names(), nil
}

// InvalidateFields drops cached field sets for the given tables, or for all
// tables when none is named.
func (db *DB) InvalidateFields(tables ...string) {
	db.mu.Lock()
	defer db.unlock()
	if db.fieldCache == nil {
		return
	}
	keys := make([]string, 0, 2*len(tables))
	for _, t := range tables {
		keys = append(keys, t, t+commentsKeySuffix)
	}
	db.fieldCache.Invalidate(keys...)
}

const commentsKeySuffix = "\x00comments"

func (db *DB) fieldsLocked(ctx context.Context, table string, opts FieldsOptions) (FieldSet, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}

	key := table
	if opts.WithComments {
		key += commentsKeySuffix
	}
	cacheable := db.fieldCache != nil && strings.TrimSpace(opts.Clause) == ""
	if cacheable {
		if cols, ok := db.fieldCache.Get(key); ok {
			return FieldSet(cols), nil
		}
	}

	db.releaseActive()
	q, args := db.dialect.FieldsQuery(table, opts.WithComments, opts.Clause)
	st := statement{sql: q, args: args, table: table}

	ctx, span := db.tracer.StartSpan(ctx, tracer.SpanIntrospect)
	start := time.Now()
	fs, err := db.readFields(ctx, st)
	db.observe(ctx, span, st, int64(len(fs)), time.Since(start), err)
	if err != nil {
		e := db.fail(newError(KindSchemaLookup, q, err))
		return nil, e
	}

	db.clear()
	if cacheable {
		db.fieldCache.Set(key, fs)
	}
	return fs, nil
}

func (db *DB) readFields(ctx context.Context, st statement) (FieldSet, error) {
	rows, err := db.handle().QueryContext(ctx, st.sql, st.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fs := FieldSet{}
	for rows.Next() {
		row := make(map[string]interface{})
		if err := sqlx.MapScan(rows, row); err != nil {
			return nil, err
		}
		fs = append(fs, db.dialect.ParseColumn(row))
	}
	return fs, rows.Err()
}

// writeFields resolves the field set used to quote a write. Lookup failures
// are logged and treated as "no fields known".
func (db *DB) writeFields(ctx context.Context, table string, w *writeOptions) FieldSet {
	if w.fields != nil {
		return w.fields
	}
	fs, err := db.fieldsLocked(ctx, table, FieldsOptions{})
	if err != nil {
		db.logger.Warn("field lookup failed, quoting all values", "table", table, "error", err)
		return FieldSet{}
	}
	return fs
}
