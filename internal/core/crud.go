package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// WriteOption configures Insert, Update, Replace and UpdateOrInsert.
type WriteOption func(*writeOptions)

type writeOptions struct {
	raws   map[string]string
	fields FieldSet
}

// WithRaws adds column = expression pairs written verbatim, e.g.
// {"updated_at": "CURRENT_TIMESTAMP"}. A raw expression replaces a data
// value for the same column.
func WithRaws(raws map[string]string) WriteOption {
	return func(o *writeOptions) {
		if o.raws == nil {
			o.raws = make(map[string]string, len(raws))
		}
		for k, v := range raws {
			o.raws[k] = v
		}
	}
}

// WithFieldSet supplies the field descriptors instead of introspecting the table.
func WithFieldSet(fs FieldSet) WriteOption {
	return func(o *writeOptions) {
		if fs == nil {
			fs = FieldSet{}
		}
		o.fields = fs
	}
}

func (db *DB) writeOpts(ctx context.Context, opts []WriteOption) (*writeOptions, error) {
	w := &writeOptions{}
	for _, opt := range opts {
		opt(w)
	}
	for _, expr := range w.raws {
		if err := db.validate(ctx, expr, false); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// where validates and prepares a condition.
func (db *DB) where(ctx context.Context, cond Condition) (string, error) {
	if err := db.validate(ctx, cond.Clause, false); err != nil {
		return "", err
	}
	clause, err := db.builder.PrepareStatement(db.builder.NormalizeSQL(cond.Clause), cond.Args...)
	if err != nil {
		return "", db.fail(newError(KindStatement, cond.Clause, err))
	}
	return clause, nil
}

// Select runs SELECT columns FROM table WHERE cond. columns is a select list;
// bare identifiers are quoted.
func (db *DB) Select(ctx context.Context, columns, table string, cond Condition) (*ActiveQuery, error) {
	db.mu.Lock()
	defer db.unlock()
	if err := db.ready(); err != nil {
		return nil, err
	}
	clause, err := db.where(ctx, cond)
	if err != nil {
		return nil, err
	}
	return db.queryLocked(ctx, statement{sql: db.builder.SelectSQL(columns, table, clause), table: table})
}

// Insert writes one or more rows with a single statement and returns the
// number of rows inserted. All rows are quoted against the same field set.
func (db *DB) Insert(ctx context.Context, table string, rows []Row, opts ...WriteOption) (int64, error) {
	db.mu.Lock()
	defer db.unlock()
	if err := db.ready(); err != nil {
		return 0, err
	}
	w, err := db.writeOpts(ctx, opts)
	if err != nil {
		return 0, err
	}
	return db.insertLocked(ctx, table, rows, w, "")
}

func (db *DB) insertLocked(ctx context.Context, table string, rows []Row, w *writeOptions, suffix string) (int64, error) {
	fields := db.writeFields(ctx, table, w)
	q, err := db.builder.InsertSQL(table, rows, fields, w.raws)
	if err != nil {
		return 0, db.fail(newError(KindStatement, "", err))
	}
	return db.execLocked(ctx, statement{sql: q + suffix, table: table})
}

// Update sets data on the rows matching cond and returns the affected count.
func (db *DB) Update(ctx context.Context, table string, data Row, cond Condition, opts ...WriteOption) (int64, error) {
	db.mu.Lock()
	defer db.unlock()
	if err := db.ready(); err != nil {
		return 0, err
	}
	w, err := db.writeOpts(ctx, opts)
	if err != nil {
		return 0, err
	}
	clause, err := db.where(ctx, cond)
	if err != nil {
		return 0, err
	}
	return db.updateLocked(ctx, table, data, clause, w)
}

func (db *DB) updateLocked(ctx context.Context, table string, data Row, clause string, w *writeOptions) (int64, error) {
	fields := db.writeFields(ctx, table, w)
	q, err := db.builder.UpdateSQL(table, data, clause, fields, w.raws)
	if err != nil {
		return 0, db.fail(newError(KindStatement, "", err))
	}
	return db.execLocked(ctx, statement{sql: q, table: table})
}

// Delete removes the rows matching cond and returns the affected count.
func (db *DB) Delete(ctx context.Context, table string, cond Condition) (int64, error) {
	db.mu.Lock()
	defer db.unlock()
	if err := db.ready(); err != nil {
		return 0, err
	}
	clause, err := db.where(ctx, cond)
	if err != nil {
		return 0, err
	}
	return db.execLocked(ctx, statement{sql: db.builder.DeleteSQL(table, clause), table: table})
}

// Count returns the number of rows matching cond.
func (db *DB) Count(ctx context.Context, table string, cond Condition) (int64, error) {
	db.mu.Lock()
	defer db.unlock()
	return db.countLocked(ctx, table, cond)
}

func (db *DB) countLocked(ctx context.Context, table string, cond Condition) (int64, error) {
	v, err := db.aggregateLocked(ctx, "COUNT(*)", table, cond)
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

// Exists reports whether any row matches cond.
func (db *DB) Exists(ctx context.Context, table string, cond Condition) (bool, error) {
	n, err := db.Count(ctx, table, cond)
	return n > 0, err
}

// Min returns the smallest value of column among the rows matching cond, or
// nil when none match.
func (db *DB) Min(ctx context.Context, table, column string, cond Condition) (interface{}, error) {
	db.mu.Lock()
	defer db.unlock()
	return db.aggregateLocked(ctx, "MIN("+db.quoteColumn(column)+")", table, cond)
}

// Max returns the largest value of column among the rows matching cond, or
// nil when none match.
func (db *DB) Max(ctx context.Context, table, column string, cond Condition) (interface{}, error) {
	db.mu.Lock()
	defer db.unlock()
	return db.aggregateLocked(ctx, "MAX("+db.quoteColumn(column)+")", table, cond)
}

// Get returns column of the first row matching cond, or ErrNoRows.
func (db *DB) Get(ctx context.Context, table, column string, cond Condition) (interface{}, error) {
	db.mu.Lock()
	defer db.unlock()
	if err := db.ready(); err != nil {
		return nil, err
	}
	clause, err := db.where(ctx, cond)
	if err != nil {
		return nil, err
	}
	q := db.builder.SelectSQL(column, table, clause) + " LIMIT 1"
	return db.scalarLocked(ctx, statement{sql: q, table: table})
}

func (db *DB) quoteColumn(column string) string {
	if db.builder == nil {
		return column
	}
	return db.builder.VerifyColumns(column)
}

func (db *DB) aggregateLocked(ctx context.Context, expr, table string, cond Condition) (interface{}, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	clause, err := db.where(ctx, cond)
	if err != nil {
		return nil, err
	}
	return db.aggregateWhereLocked(ctx, expr, table, clause)
}

// aggregateWhereLocked runs an aggregate over an already prepared clause.
func (db *DB) aggregateWhereLocked(ctx context.Context, expr, table, clause string) (interface{}, error) {
	q := "SELECT " + expr + " FROM " + db.builder.Quote(table) + whereSQL(clause)
	return db.scalarLocked(ctx, statement{sql: q, table: table})
}

// scalarLocked runs st and returns the first column of its first row.
func (db *DB) scalarLocked(ctx context.Context, st statement) (interface{}, error) {
	aq, err := db.queryLocked(ctx, st)
	if err != nil {
		return nil, err
	}
	defer db.releaseActive()
	return aq.fetchColumnLocked(0)
}

// RecordCount returns the number of rows query would return, without
// fetching them. Arguments are bound as for Query.
func (db *DB) RecordCount(ctx context.Context, query string, args ...interface{}) (int64, error) {
	db.mu.Lock()
	defer db.unlock()

	inner := strings.TrimRight(strings.TrimSpace(query), "; \t\n")
	st, err := db.bindStatement(ctx, "SELECT COUNT(*) FROM ("+inner+") AS rc", args)
	if err != nil {
		return 0, err
	}
	v, err := db.scalarLocked(ctx, st)
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

// LastInsertID returns the id generated by the last insert. PostgreSQL reads
// the sequence owned by table.column (column defaults to "id"), or lastval()
// when table is empty.
func (db *DB) LastInsertID(ctx context.Context, table, column string) (int64, error) {
	db.mu.Lock()
	defer db.unlock()
	if err := db.ready(); err != nil {
		return 0, err
	}

	q := db.dialect.LastInsertIDQuery(table, column)
	if q == "" {
		if !db.hasLastID {
			return 0, ErrNoRows
		}
		return db.lastID, nil
	}
	v, err := db.scalarLocked(ctx, statement{sql: q, table: table})
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	case []byte:
		return strconv.ParseInt(string(t), 10, 64)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("unexpected count type %T", v)
}
