package core

import (
	"context"
	"time"
)

// QueryEvent contains information about an executed statement.
// This is passed to QueryHook callbacks for logging, metrics, or tracing.
type QueryEvent struct {
	// SQL is the executed statement as sent to the driver
	SQL string
	// Args are the bound driver arguments (values built into SQL are not repeated)
	Args []interface{}
	// Table is the target table for builder operations (empty for raw SQL)
	Table string
	// Duration is how long the statement took to execute
	Duration time.Duration
	// RowsAffected is the number of rows affected (for INSERT/UPDATE/DELETE)
	RowsAffected int64
	// Error is any error that occurred during execution (nil on success)
	Error error
	// Operation is the leading SQL verb (SELECT, INSERT, SHOW, PRAGMA, ...)
	Operation string
}

// QueryHook is a callback function invoked after each statement. Hooks run
// once the DB is unlocked, so a hook may call back into the DB. Events of a
// compound operation such as Replace are delivered when it returns.
//
// Example:
//
//	db := webdb.New(webdb.WithQueryHook(func(ctx context.Context, e webdb.QueryEvent) {
//	    slog.Info("statement", "sql", e.SQL, "duration", e.Duration, "err", e.Error)
//	}))
type QueryHook func(ctx context.Context, event QueryEvent)

type hookEvent struct {
	ctx   context.Context
	event QueryEvent
}

// invokeHook queues an event for the query hook. Callers hold db.mu.
func (db *DB) invokeHook(ctx context.Context, event QueryEvent) {
	if db.queryHook != nil {
		db.hookEvents = append(db.hookEvents, hookEvent{ctx: ctx, event: event})
	}
}

// unlock releases db.mu and then delivers queued hook events.
func (db *DB) unlock() {
	events, hook := db.hookEvents, db.queryHook
	db.hookEvents = nil
	db.mu.Unlock()
	for _, e := range events {
		hook(e.ctx, e.event)
	}
}
