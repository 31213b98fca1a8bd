// Package webdb is the database layer of a web application. It connects to
// MySQL, PostgreSQL or SQLite, builds INSERT/UPDATE/DELETE/SELECT statements
// with values quoted against the introspected column types, runs statements
// on a single connection with one active result set, and offers
// transactions with savepoints and per-dialect upserts.
//
//	db, err := webdb.Open(ctx, webdb.ConnParams{Driver: webdb.SQLite, Database: "app.db"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	_, err = db.Insert(ctx, "users", []webdb.Row{{"email": "ann@example.com", "age": 31}})
//	q, err := db.Select(ctx, "id, email", "users", webdb.Cond("age > ?", 30))
//	row, err := q.Fetch()
package webdb

import (
	"github.com/coregx/webdb/internal/core"
)

type (
	// DB is one database connection with at most one active statement.
	DB = core.DB
	// Option is a functional option for configuring DB.
	Option = core.Option
	// ConnParams describes a connection.
	ConnParams = core.ConnParams
	// Driver names a supported database.
	Driver = core.Driver
	// ExecutionResult describes the most recent execution on a DB.
	ExecutionResult = core.ExecutionResult
	// ActiveQuery is the result set of the most recent query.
	ActiveQuery = core.ActiveQuery
	// Builder renders SQL for one dialect without I/O.
	Builder = core.Builder

	// Row maps column names to values.
	Row = core.Row
	// Params binds named placeholders.
	Params = core.Params
	// Condition is a WHERE clause with its arguments.
	Condition = core.Condition

	// FieldDescriptor is the introspected metadata of one column.
	FieldDescriptor = core.FieldDescriptor
	// FieldSet is the ordered column list of a table.
	FieldSet = core.FieldSet
	// FieldsOptions selects what Fields returns.
	FieldsOptions = core.FieldsOptions

	// WriteOption configures Insert, Update, Replace and UpdateOrInsert.
	WriteOption = core.WriteOption

	// Error is a failure recorded by a DB.
	Error = core.Error
	// ErrorKind classifies an Error.
	ErrorKind = core.Kind

	// QueryEvent is passed to query hooks after every statement.
	QueryEvent = core.QueryEvent
	// QueryHook is called after every statement.
	QueryHook = core.QueryHook

	// Null is always written as NULL.
	Null = core.Null
	// Int is always written as a bare integer.
	Int = core.Int
	// Float is always written as a bare number.
	Float = core.Float
	// Text is always written as a quoted literal.
	Text = core.Text
	// Raw is written verbatim.
	Raw = core.Raw
)

// Supported drivers.
const (
	MySQL      = core.MySQL
	PostgreSQL = core.PostgreSQL
	SQLite     = core.SQLite
)

// Error kinds.
const (
	KindStatement    = core.KindStatement
	KindConnection   = core.KindConnection
	KindNotConnected = core.KindNotConnected
	KindSchemaLookup = core.KindSchemaLookup
)

// DateTimeFormat is the layout used for time.Time literals.
const DateTimeFormat = core.DateTimeFormat

// Re-export core functions.
var (
	Open       = core.Open
	New        = core.New
	NewBuilder = core.NewBuilder
	Cond       = core.Cond
	WrapError  = core.WrapError

	IsNumericType = core.IsNumericType

	WithLogger          = core.WithLogger
	WithSensitiveFields = core.WithSensitiveFields
	WithTracer          = core.WithTracer
	WithQueryHook       = core.WithQueryHook
	WithValidator       = core.WithValidator
	WithAuditor         = core.WithAuditor
	WithFieldCache      = core.WithFieldCache
	WithLegacyUpsert    = core.WithLegacyUpsert

	WithRaws     = core.WithRaws
	WithFieldSet = core.WithFieldSet
)

// Re-export errors.
var (
	ErrStatement         = core.ErrStatement
	ErrConnection        = core.ErrConnection
	ErrNotConnected      = core.ErrNotConnected
	ErrSchemaLookup      = core.ErrSchemaLookup
	ErrNoRows            = core.ErrNoRows
	ErrStatementClosed   = core.ErrStatementClosed
	ErrNoTransaction     = core.ErrNoTransaction
	ErrMixedPlaceholders = core.ErrMixedPlaceholders
	ErrParamCount        = core.ErrParamCount
	ErrMissingParam      = core.ErrMissingParam
	ErrUnsupportedDriver = core.ErrUnsupportedDriver
	ErrEmptyData         = core.ErrEmptyData
	ErrColumnMismatch    = core.ErrColumnMismatch
	ErrNoUniqueKey       = core.ErrNoUniqueKey
)
