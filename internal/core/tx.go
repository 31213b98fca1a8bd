package core

import (
	"context"
	"fmt"
	"time"

	"github.com/coregx/webdb/internal/tracer"
	"github.com/coregx/webdb/internal/util"
)

// Begin starts a transaction. Inside a transaction it does not start another
// one; with a savepoint name it then only issues SAVEPOINT. Savepoints are
// not tracked, so nesting them correctly is up to the caller.
func (db *DB) Begin(ctx context.Context, savepoint ...string) error {
	db.mu.Lock()
	defer db.unlock()
	if err := db.ready(); err != nil {
		return err
	}
	name, ok, err := savepointArg(savepoint)
	if err != nil {
		return db.fail(newError(KindStatement, "", err))
	}

	if db.tx == nil {
		db.releaseActive()
		ctx, span := db.tracer.StartSpan(ctx, tracer.SpanBegin)
		start := time.Now()
		tx, err := db.sqlDB.BeginTx(ctx, nil)
		tracer.Finish(span, &tracer.Statement{System: db.dialect.Name(), Operation: "BEGIN", Duration: time.Since(start), Err: err})
		if err != nil {
			return db.fail(newError(KindStatement, "BEGIN", err))
		}
		db.tx = tx
		db.clear()
		db.logger.Debug("transaction started", "database", db.dialect.Name())
	}

	if ok {
		if _, err := db.execLocked(ctx, statement{sql: "SAVEPOINT " + name}); err != nil {
			return err
		}
	}
	return nil
}

// Commit commits the transaction.
func (db *DB) Commit(ctx context.Context) error {
	db.mu.Lock()
	defer db.unlock()
	if err := db.ready(); err != nil {
		return err
	}
	if db.tx == nil {
		return db.fail(newError(KindStatement, "COMMIT", ErrNoTransaction))
	}

	db.releaseActive()
	_, span := db.tracer.StartSpan(ctx, tracer.SpanCommit)
	start := time.Now()
	err := db.tx.Commit()
	tracer.Finish(span, &tracer.Statement{System: db.dialect.Name(), Operation: "COMMIT", Duration: time.Since(start), InTransaction: true, Err: err})
	db.tx = nil
	if err != nil {
		return db.fail(newError(KindStatement, "COMMIT", err))
	}
	db.clear()
	db.logger.Debug("transaction committed", "database", db.dialect.Name())
	return nil
}

// Rollback rolls back the transaction, or to the named savepoint. Outside a
// transaction it does nothing. If rolling back to the savepoint fails, the
// whole transaction is rolled back instead; LastError then still reports
// the savepoint failure.
func (db *DB) Rollback(ctx context.Context, savepoint ...string) error {
	db.mu.Lock()
	defer db.unlock()
	if db.tx == nil {
		return nil
	}

	name, ok, err := savepointArg(savepoint)
	if err != nil {
		return db.fail(newError(KindStatement, "", err))
	}
	if ok {
		_, spErr := db.execLocked(ctx, statement{sql: "ROLLBACK TO SAVEPOINT " + name})
		if spErr == nil {
			return nil
		}
		db.logger.Warn("rollback to savepoint failed, rolling back transaction", "savepoint", name, "error", spErr)
	}

	db.releaseActive()
	_, span := db.tracer.StartSpan(ctx, tracer.SpanRollback)
	start := time.Now()
	err = db.tx.Rollback()
	tracer.Finish(span, &tracer.Statement{System: db.dialect.Name(), Operation: "ROLLBACK", Duration: time.Since(start), InTransaction: true, Err: err})
	db.tx = nil
	if err != nil {
		return db.fail(newError(KindStatement, "ROLLBACK", err))
	}
	if !ok {
		db.clear()
	}
	db.logger.Debug("transaction rolled back", "database", db.dialect.Name())
	return nil
}

// InTransaction reports whether a transaction is open.
func (db *DB) InTransaction() bool {
	db.mu.Lock()
	defer db.unlock()
	return db.tx != nil
}

// Transactional runs fn inside a transaction, committing when it returns nil
// and rolling back on error or panic. Inside an existing transaction fn runs
// in it and the outer caller decides the outcome.
func (db *DB) Transactional(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if db.InTransaction() {
		return fn(ctx)
	}
	if err := db.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = db.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := db.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return db.Commit(ctx)
}

func savepointArg(args []string) (string, bool, error) {
	if len(args) == 0 || args[0] == "" {
		return "", false, nil
	}
	name, err := util.SavepointName(args[0])
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}
