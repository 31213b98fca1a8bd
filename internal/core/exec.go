package core

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/coregx/webdb/internal/tracer"
)

// statement is one unit of work sent to the driver.
type statement struct {
	sql   string
	args  []interface{}
	table string
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// handle returns the open transaction, or the connection outside one.
func (db *DB) handle() execer {
	if db.tx != nil {
		return db.tx
	}
	return db.sqlDB
}

// Exec runs a statement and returns the number of affected rows. Positional
// (?) or named (:name, from one Params argument) markers are bound by the
// driver.
func (db *DB) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	db.mu.Lock()
	defer db.unlock()

	st, err := db.bindStatement(ctx, query, args)
	if err != nil {
		return 0, err
	}
	return db.execLocked(ctx, st)
}

// Query runs a statement and returns its result set as the DB's active query.
func (db *DB) Query(ctx context.Context, query string, args ...interface{}) (*ActiveQuery, error) {
	db.mu.Lock()
	defer db.unlock()

	st, err := db.bindStatement(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return db.queryLocked(ctx, st)
}

// bindStatement validates, normalizes and binds caller-written SQL.
func (db *DB) bindStatement(ctx context.Context, query string, args []interface{}) (statement, error) {
	if err := db.ready(); err != nil {
		return statement{}, err
	}
	if err := db.validate(ctx, query, true); err != nil {
		return statement{}, err
	}
	q, bound, err := db.builder.Bind(db.builder.NormalizeSQL(query), args...)
	if err != nil {
		return statement{}, db.fail(newError(KindStatement, query, err))
	}
	return statement{sql: q, args: bound}, nil
}

// validate runs the configured validator over caller-supplied SQL.
func (db *DB) validate(ctx context.Context, fragment string, whole bool) error {
	if db.validator == nil || strings.TrimSpace(fragment) == "" {
		return nil
	}
	check := db.validator.ValidateFragment
	if whole {
		check = db.validator.ValidateStatement
	}
	if err := check(fragment); err != nil {
		db.auditor.RecordRejected(ctx, fragment, err)
		db.logger.Warn("statement rejected", "error", err)
		return db.fail(newError(KindStatement, fragment, err))
	}
	return nil
}

func (db *DB) execLocked(ctx context.Context, st statement) (int64, error) {
	if err := db.ready(); err != nil {
		return 0, err
	}
	db.releaseActive()

	ctx, span := db.tracer.StartSpan(ctx, tracer.SpanExec)
	start := time.Now()
	res, err := db.handle().ExecContext(ctx, st.sql, st.args...)
	elapsed := time.Since(start)

	var rows int64
	if err == nil {
		rows, _ = res.RowsAffected()
	}
	db.observe(ctx, span, st, rows, elapsed, err)
	if err != nil {
		return 0, db.fail(newError(KindStatement, st.sql, err))
	}

	db.clear()
	db.result.RowCount = rows
	if id, ok := insertID(st.sql, res); ok {
		db.result.LastInsertID = id
		db.result.HasLastInsertID = true
		db.lastID, db.hasLastID = id, true
	}
	if db.fieldCache != nil && tracer.IsDDL(st.sql) {
		db.fieldCache.Invalidate()
	}
	return rows, nil
}

func (db *DB) queryLocked(ctx context.Context, st statement) (*ActiveQuery, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	db.releaseActive()

	ctx, span := db.tracer.StartSpan(ctx, tracer.SpanQuery)
	start := time.Now()
	rows, err := db.handle().QueryContext(ctx, st.sql, st.args...)
	db.observe(ctx, span, st, 0, time.Since(start), err)
	if err != nil {
		return nil, db.fail(newError(KindStatement, st.sql, err))
	}

	db.clear()
	q := &ActiveQuery{db: db, rows: rows, sql: st.sql}
	db.active = q
	return q, nil
}

// insertID reads the generated id of an INSERT or REPLACE. SQLite keeps
// reporting the last rowid after other statements, so they are skipped.
func insertID(query string, res sql.Result) (int64, bool) {
	if op := tracer.DetectOperation(query); op != "INSERT" && op != "REPLACE" {
		return 0, false
	}
	id, err := res.LastInsertId()
	return id, err == nil && id != 0
}

// releaseActive closes the active query; fetching from it afterwards fails
// with ErrStatementClosed.
func (db *DB) releaseActive() {
	if db.active != nil {
		db.active.closeLocked(ErrStatementClosed)
		db.active = nil
	}
}

// observe logs, traces, audits and reports one statement.
func (db *DB) observe(ctx context.Context, span tracer.Span, st statement, rows int64, elapsed time.Duration, err error) {
	op := tracer.DetectOperation(st.sql)
	name := ""
	if db.dialect != nil {
		name = db.dialect.Name()
	}

	tracer.Finish(span, &tracer.Statement{
		System:        name,
		SQL:           db.sanitizer.MaskSQL(st.sql),
		Operation:     op,
		Table:         st.table,
		Duration:      elapsed,
		RowsAffected:  rows,
		InTransaction: db.tx != nil,
		Err:           err,
	})

	maskedSQL := db.sanitizer.MaskSQL(st.sql)
	params := db.sanitizer.FormatParams(db.sanitizer.MaskParams(st.sql, st.args))
	if err != nil {
		db.logger.Error("statement failed",
			"sql", maskedSQL,
			"params", params,
			"duration_ms", elapsed.Milliseconds(),
			"database", name,
			"error", err,
		)
	} else {
		db.logger.Debug("statement executed",
			"sql", maskedSQL,
			"params", params,
			"duration_ms", elapsed.Milliseconds(),
			"rows_affected", rows,
			"database", name,
		)
	}

	db.auditor.Record(ctx, op, st.table, st.sql, rows, err, elapsed)
	db.invokeHook(ctx, QueryEvent{
		SQL:          st.sql,
		Args:         st.args,
		Table:        st.table,
		Duration:     elapsed,
		RowsAffected: rows,
		Error:        err,
		Operation:    op,
	})
}
