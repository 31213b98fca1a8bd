// Package core implements the webdb connection manager, statement builder,
// schema introspector, execution layer, transactions and upserts.
package core

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/coregx/webdb/internal/cache"
	"github.com/coregx/webdb/internal/dialects"
	"github.com/coregx/webdb/internal/logger"
	"github.com/coregx/webdb/internal/security"
	"github.com/coregx/webdb/internal/tracer"
)

// Driver names a supported database.
type Driver string

// Supported drivers.
const (
	MySQL      Driver = "mysql"
	PostgreSQL Driver = "pgsql"
	SQLite     Driver = "sqlite"
)

// ConnParams describes a connection.
type ConnParams struct {
	Driver   Driver
	Host     string // server host, unix socket path (MySQL) or database directory (SQLite)
	Database string
	User     string
	Password string
	Port     int
	// Encoding is a character set name or the path of a MySQL client option
	// file whose default-character-set is used.
	Encoding string
	Options  map[string]string
	// Timeout is passed to the driver as its connect/busy timeout.
	Timeout time.Duration
	// DriverName overrides the database/sql driver, e.g. "pgx" or "sqlite" (modernc).
	DriverName string
}

// ExecutionResult describes the most recent execution on a DB.
type ExecutionResult struct {
	RowCount        int64
	LastInsertID    int64
	HasLastInsertID bool
	ErrorCode       string
	ErrorMessage    string
}

// DB is one database connection with at most one active statement. It is
// safe for concurrent use; calls are serialized.
type DB struct {
	mu sync.Mutex

	params     ConnParams
	dialect    dialects.Dialect
	builder    *Builder
	driverName string
	sqlDB      *sql.DB
	tx         *sql.Tx
	active     *ActiveQuery

	result    ExecutionResult
	lastErr   *Error
	lastID    int64
	hasLastID bool

	logger       logger.Logger
	sanitizer    *logger.Sanitizer
	tracer       tracer.Tracer
	queryHook    QueryHook
	validator    *security.Validator
	auditor      *security.Auditor
	fieldCache   *cache.FieldCache
	legacyUpsert bool

	hookEvents []hookEvent

	opts []Option
}

// Option is a functional option for configuring DB.
type Option func(*DB)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// WithSensitiveFields replaces the column names whose values are masked in logs.
func WithSensitiveFields(fields ...string) Option {
	return func(db *DB) {
		db.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithTracer enables OpenTelemetry spans.
func WithTracer(t trace.Tracer) Option {
	return func(db *DB) {
		if ot := tracer.NewOtelTracer(t); ot != nil {
			db.tracer = ot
		}
	}
}

// WithQueryHook registers a callback invoked after every statement.
func WithQueryHook(h QueryHook) Option {
	return func(db *DB) {
		db.queryHook = h
	}
}

// WithValidator checks caller-supplied clauses, raw expressions and
// statements before they are executed.
func WithValidator(v *security.Validator) Option {
	return func(db *DB) {
		db.validator = v
	}
}

// WithAuditor records mutating statements.
func WithAuditor(a *security.Auditor) Option {
	return func(db *DB) {
		db.auditor = a
	}
}

// WithFieldCache caches introspected field sets for up to n tables.
func WithFieldCache(n int) Option {
	return func(db *DB) {
		db.fieldCache = cache.NewFieldCache(n)
	}
}

// WithLegacyUpsert makes SQLite Replace always use the insert-then-update
// fallback driven by the uniqueness error message, instead of ON CONFLICT.
func WithLegacyUpsert(enabled bool) Option {
	return func(db *DB) {
		db.legacyUpsert = enabled
	}
}

// New creates an unopened DB.
func New(opts ...Option) *DB {
	db := &DB{
		logger:    &logger.NoopLogger{},
		sanitizer: logger.NewSanitizer(nil),
		tracer:    tracer.NoopTracer{},
		opts:      opts,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Open creates a DB and connects it.
func Open(ctx context.Context, p ConnParams, opts ...Option) (*DB, error) {
	db := New(opts...)
	if err := db.Open(ctx, p); err != nil {
		return db, err
	}
	return db, nil
}

// Open connects the DB, closing any previous connection first. Failures are
// returned and also kept for LastError.
func (db *DB) Open(ctx context.Context, p ConnParams) (err error) {
	db.mu.Lock()
	defer db.unlock()

	_ = db.closeLocked()
	db.params = p

	ctx, span := db.tracer.StartSpan(ctx, tracer.SpanConnect)
	start := time.Now()
	defer func() {
		tracer.Finish(span, &tracer.Statement{System: string(p.Driver), Operation: "CONNECT", Duration: time.Since(start), Err: err})
	}()

	d, lookupErr := dialects.Lookup(string(p.Driver))
	if lookupErr != nil {
		return db.fail(newError(KindConnection, "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, p.Driver)))
	}

	cfg := dialects.ConnConfig{
		Host:       p.Host,
		Database:   p.Database,
		User:       p.User,
		Password:   p.Password,
		Port:       p.Port,
		Charset:    resolveEncoding(p.Encoding),
		Timeout:    p.Timeout,
		Options:    p.Options,
		DriverName: p.DriverName,
	}
	if cfg.DriverName == "" {
		cfg.DriverName = d.DefaultDriverName()
	}

	if err := d.Prepare(cfg); err != nil {
		return db.fail(newError(KindConnection, "", err))
	}
	dsn, err := d.DSN(cfg)
	if err != nil {
		return db.fail(newError(KindConnection, "", err))
	}

	sqlDB, err := sql.Open(cfg.DriverName, dsn)
	if err != nil {
		return db.fail(newError(KindConnection, "", err))
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	pingCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		e := db.fail(newError(KindConnection, "", err))
		db.logger.Error("connection failed", "database", d.Name(), "host", p.Host, "error", e)
		return e
	}

	db.dialect = d
	db.builder = &Builder{dialect: d}
	db.driverName = cfg.DriverName
	db.sqlDB = sqlDB
	db.clear()
	db.logger.Info("connection opened", "database", d.Name(), "driver", cfg.DriverName, "host", p.Host, "name", p.Database)
	return nil
}

// Close releases the active statement, rolls back an open transaction and
// closes the connection. It is safe to call on a DB that was never opened.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.unlock()
	return db.closeLocked()
}

func (db *DB) closeLocked() error {
	if db.sqlDB == nil {
		return nil
	}
	db.releaseActive()
	if db.tx != nil {
		if err := db.tx.Rollback(); err != nil {
			db.logger.Warn("rollback on close failed", "error", err)
		}
		db.tx = nil
	}
	if db.fieldCache != nil {
		db.fieldCache.Invalidate()
	}
	err := db.sqlDB.Close()
	db.sqlDB = nil
	db.hasLastID = false
	db.logger.Info("connection closed", "database", db.dialect.Name())
	return err
}

// Clone opens an independent connection with the same parameters and options.
func (db *DB) Clone(ctx context.Context) (*DB, error) {
	db.mu.Lock()
	params, opts := db.params, db.opts
	db.mu.Unlock()
	return Open(ctx, params, opts...)
}

// Ping verifies the connection is alive. It closes the active query.
func (db *DB) Ping(ctx context.Context) error {
	db.mu.Lock()
	defer db.unlock()
	if err := db.ready(); err != nil {
		return err
	}
	// The single connection is held by an open transaction or result set;
	// pinging the pool would wait for it forever.
	db.releaseActive()
	var err error
	if db.tx != nil {
		var one int
		err = db.tx.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	} else {
		err = db.sqlDB.PingContext(ctx)
	}
	if err != nil {
		return db.fail(newError(KindConnection, "", err))
	}
	return nil
}

// IsOpen reports whether the DB holds a connection.
func (db *DB) IsOpen() bool {
	db.mu.Lock()
	defer db.unlock()
	return db.sqlDB != nil
}

// Driver returns the canonical driver of the open connection.
func (db *DB) Driver() Driver {
	db.mu.Lock()
	defer db.unlock()
	if db.dialect == nil {
		return db.params.Driver
	}
	return Driver(db.dialect.Name())
}

// DSN returns the connection string with the password masked.
func (db *DB) DSN() string {
	db.mu.Lock()
	defer db.unlock()
	if db.dialect == nil {
		return ""
	}
	p := db.params
	cfg := dialects.ConnConfig{
		Host: p.Host, Database: p.Database, User: p.User, Port: p.Port,
		Charset: resolveEncoding(p.Encoding), Timeout: p.Timeout,
		Options: p.Options, DriverName: db.driverName,
	}
	if p.Password != "" {
		cfg.Password = "xxxxx"
	}
	dsn, _ := db.dialect.DSN(cfg)
	return dsn
}

// Builder returns the statement builder of the open connection, or nil.
func (db *DB) Builder() *Builder {
	db.mu.Lock()
	defer db.unlock()
	return db.builder
}

// SQLDB exposes the underlying handle for collaborators that need it.
func (db *DB) SQLDB() *sql.DB {
	db.mu.Lock()
	defer db.unlock()
	return db.sqlDB
}

// LastError returns the error of the most recent call, or nil if it succeeded.
func (db *DB) LastError() *Error {
	db.mu.Lock()
	defer db.unlock()
	return db.lastErr
}

// ErrorCode returns the driver code of the most recent error.
func (db *DB) ErrorCode() string {
	code, _ := db.ErrorInfo()
	return code
}

// ErrorMessage returns the message of the most recent error.
func (db *DB) ErrorMessage() string {
	_, msg := db.ErrorInfo()
	return msg
}

// ErrorInfo returns the driver code and message of the most recent error.
func (db *DB) ErrorInfo() (code, message string) {
	db.mu.Lock()
	defer db.unlock()
	if db.lastErr == nil {
		return "", ""
	}
	msg := db.lastErr.Message
	if msg == "" && db.lastErr.Err != nil {
		msg = db.lastErr.Err.Error()
	}
	return db.lastErr.Code, msg
}

// Result returns the outcome of the most recent execution.
func (db *DB) Result() ExecutionResult {
	db.mu.Lock()
	defer db.unlock()
	return db.result
}

// ready fails with ErrNotConnected when there is no connection.
func (db *DB) ready() error {
	if db.sqlDB == nil {
		return db.fail(&Error{Kind: KindNotConnected, Message: ErrNotConnected.Error()})
	}
	return nil
}

// fail records e as the outcome of the current call.
func (db *DB) fail(e *Error) *Error {
	db.lastErr = e
	db.result = ExecutionResult{ErrorCode: e.Code, ErrorMessage: e.Message}
	if e.Message == "" && e.Err != nil {
		db.result.ErrorMessage = e.Err.Error()
	}
	return e
}

func (db *DB) clear() {
	db.lastErr = nil
	db.result = ExecutionResult{}
}

// resolveEncoding returns the charset named by encoding. When encoding is
// the path of an existing option file, its default-character-set from the
// [client] or [mysql] group is used.
func resolveEncoding(encoding string) string {
	if encoding == "" {
		return ""
	}
	info, err := os.Stat(encoding)
	if err != nil || info.IsDir() {
		return encoding
	}
	f, err := os.Open(encoding)
	if err != nil {
		return ""
	}
	defer f.Close()

	group := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		if line[0] == '[' {
			group = strings.ToLower(strings.Trim(line, "[] "))
			continue
		}
		if group != "" && group != "client" && group != "mysql" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "_", "-")
		if key == "default-character-set" {
			return strings.Trim(strings.TrimSpace(value), `"'`)
		}
	}
	return ""
}
