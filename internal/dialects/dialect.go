// Package dialects provides database-specific SQL dialect implementations for
// PostgreSQL, MySQL, and SQLite, handling DSN construction, identifier and
// literal quoting, placeholders, schema introspection and UPSERT statements.
package dialects

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// UpsertMode selects the algorithm used to replace-or-insert a row.
type UpsertMode int

const (
	// UpsertDuplicateKey uses a single INSERT ... ON DUPLICATE KEY UPDATE statement.
	UpsertDuplicateKey UpsertMode = iota
	// UpsertUpdateFirst issues an UPDATE and falls back to INSERT when no row matched.
	UpsertUpdateFirst
	// UpsertOnConflict uses INSERT ... ON CONFLICT (...) DO UPDATE.
	UpsertOnConflict
)

// ConnConfig carries the connection parameters a dialect needs to build its DSN.
type ConnConfig struct {
	Host     string
	Database string
	User     string
	Password string
	Port     int
	// Charset is the client character set (already resolved from an option file).
	Charset string
	// Timeout is the driver-level connect/busy timeout. Zero means driver default.
	Timeout time.Duration
	// Options are appended to the DSN as driver parameters.
	Options map[string]string
	// DriverName is the database/sql driver the DSN is meant for.
	DriverName string
}

// Column is the introspected metadata of one table column.
type Column struct {
	Name      string
	Type      string
	IsPrimary bool
	Comment   string
}

// Dialect defines database-specific behaviors.
type Dialect interface {
	// Name returns the canonical dialect name: "mysql", "pgsql" or "sqlite".
	Name() string
	// DefaultDriverName returns the database/sql driver used when none is configured.
	DefaultDriverName() string
	// Prepare performs filesystem or environment setup before connecting.
	Prepare(cfg ConnConfig) error
	// DSN builds the driver-specific data source name.
	DSN(cfg ConnConfig) (string, error)

	QuoteIdentifier(string) string
	QuoteLiteral(string) string
	Placeholder(int) string
	// BackslashEscapes reports whether backslash escapes characters inside string literals.
	BackslashEscapes() bool

	// FieldsQuery returns the introspection query for a table.
	FieldsQuery(table string, withComments bool, clause string) (string, []interface{})
	// ParseColumn converts one introspection row into a Column.
	ParseColumn(row map[string]interface{}) Column

	UpsertMode() UpsertMode
	// UpsertSQL returns the conflict clause appended to an INSERT, or "" when the
	// dialect has no native form.
	UpsertSQL(conflictCols, updateCols []string) string

	// LastInsertIDQuery returns the query yielding the last generated id, or ""
	// when the driver result carries it.
	LastInsertIDQuery(table, column string) string
}

// ConflictSniffer is implemented by dialects that can recover the conflicting
// columns from a uniqueness-violation error message.
type ConflictSniffer interface {
	ConflictColumns(message string) []string
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[strings.ToLower(name)] = d
}

// Lookup retrieves a registered dialect by name.
func Lookup(name string) (Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()
	if d, ok := dialects[strings.ToLower(name)]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("unsupported dialect: %q", name)
}

// GetDialect retrieves a registered dialect by name, panics if not found.
func GetDialect(name string) Dialect {
	d, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return d
}

// quoteDouble quotes an identifier with double quotes, quoting each part of a
// schema-qualified name separately.
func quoteDouble(s string) string {
	parts := strings.Split(s, ".")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if len(part) >= 2 && part[0] == '"' && part[len(part)-1] == '"' {
			parts[i] = part
			continue
		}
		parts[i] = `"` + strings.ReplaceAll(part, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

// quoteList quotes every identifier and joins them with ", ".
func quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteDouble(c)
	}
	return strings.Join(quoted, ", ")
}

// stringValue renders an introspection cell as a string.
func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// truthy interprets an introspection cell as a boolean flag.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case int32:
		return t != 0
	}
	s := strings.ToLower(stringValue(v))
	return s != "" && s != "0" && s != "f" && s != "false"
}
