package core

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
)

// Kind classifies an *Error.
type Kind int

// Error kinds.
const (
	KindStatement Kind = iota + 1
	KindConnection
	KindNotConnected
	KindSchemaLookup
)

func (k Kind) String() string {
	switch k {
	case KindStatement:
		return "statement"
	case KindConnection:
		return "connection"
	case KindNotConnected:
		return "not connected"
	case KindSchemaLookup:
		return "schema lookup"
	}
	return "unknown"
}

// Errors returned by webdb. The first four match an *Error of the same kind
// through errors.Is.
var (
	ErrStatement    = errors.New("statement error")
	ErrConnection   = errors.New("connection error")
	ErrNotConnected = errors.New("database is not connected")
	ErrSchemaLookup = errors.New("schema lookup failed")

	// ErrNoRows is returned by fetches past the last row.
	ErrNoRows = errors.New("no rows in result set")
	// ErrStatementClosed is returned when fetching from a query that was closed
	// or superseded by a newer execution on the same DB.
	ErrStatementClosed = errors.New("statement is closed")
	// ErrNoTransaction is returned by Commit outside a transaction.
	ErrNoTransaction = errors.New("no transaction in progress")
	// ErrMixedPlaceholders is returned when positional and named placeholders
	// are combined in one statement.
	ErrMixedPlaceholders = errors.New("positional and named placeholders cannot be mixed")
	// ErrParamCount is returned when the number of positional arguments does
	// not match the placeholders.
	ErrParamCount = errors.New("wrong number of parameters")
	// ErrMissingParam is returned when a named placeholder has no value.
	ErrMissingParam = errors.New("missing named parameter")
	// ErrUnsupportedDriver is returned for unknown drivers.
	ErrUnsupportedDriver = errors.New("unsupported driver")
	// ErrEmptyData is returned by writes without columns.
	ErrEmptyData = errors.New("no data to write")
	// ErrColumnMismatch is returned when rows of a multi-row insert differ in columns.
	ErrColumnMismatch = errors.New("rows have different columns")
	// ErrNoUniqueKey is returned by upserts that cannot determine a key.
	ErrNoUniqueKey = errors.New("no unique key for upsert")
)

// Error is a failure recorded by a DB. Code and Message are the driver's own
// error code and text when the failure came from the driver.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	SQL     string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("webdb: %s error [%s]: %s", e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("webdb: %s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrStatement:
		return e.Kind == KindStatement
	case ErrConnection:
		return e.Kind == KindConnection
	case ErrNotConnected:
		return e.Kind == KindNotConnected
	case ErrSchemaLookup:
		return e.Kind == KindSchemaLookup
	}
	return false
}

func newError(kind Kind, sql string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	code, msg := driverError(err)
	return &Error{Kind: kind, Code: code, Message: msg, SQL: sql, Err: err}
}

// driverError extracts the native code and message of a driver error.
func driverError(err error) (code, message string) {
	var (
		myErr   *mysql.MySQLError
		pqErr   *pq.Error
		pgErr   *pgconn.PgError
		liteErr *sqlite.Error
	)
	switch {
	case errors.As(err, &myErr):
		return strconv.Itoa(int(myErr.Number)), myErr.Message
	case errors.As(err, &pqErr):
		return string(pqErr.Code), pqErr.Message
	case errors.As(err, &pgErr):
		return pgErr.Code, pgErr.Message
	case errors.As(err, &liteErr):
		return strconv.Itoa(liteErr.Code()), liteErr.Error()
	}
	if code, msg, ok := cgoDriverError(err); ok {
		return code, msg
	}
	return "", err.Error()
}

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
