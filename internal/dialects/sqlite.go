package dialects

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// SQLiteDialect implements SQLite-specific SQL dialect.
type SQLiteDialect struct{}

func init() {
	RegisterDialect("sqlite", &SQLiteDialect{})
	RegisterDialect("sqlite3", &SQLiteDialect{})
}

var (
	// Pre-3.8 message: "column email is not unique" / "columns a, b are not unique".
	legacyUniqueRegex = regexp.MustCompile(`columns? (.+?) (?:is|are) not unique`)
	// Current message: "UNIQUE constraint failed: users.email, users.name".
	uniqueFailedRegex = regexp.MustCompile(`UNIQUE constraint failed: ([^\n(]+)`)
)

// Name returns "sqlite".
func (d *SQLiteDialect) Name() string { return "sqlite" }

// DefaultDriverName returns the mattn/go-sqlite3 driver name.
func (d *SQLiteDialect) DefaultDriverName() string { return "sqlite3" }

// Prepare creates the database directory when it does not exist yet.
func (d *SQLiteDialect) Prepare(cfg ConnConfig) error {
	if isMemory(cfg.Database) || cfg.Host == "" || filepath.IsAbs(cfg.Database) {
		return nil
	}
	if err := os.MkdirAll(cfg.Host, 0o755); err != nil {
		return fmt.Errorf("create sqlite directory %s: %w", cfg.Host, err)
	}
	return nil
}

// DSN builds a file-path DSN. Host is the directory holding the database file.
func (d *SQLiteDialect) DSN(cfg ConnConfig) (string, error) {
	path := ":memory:"
	if !isMemory(cfg.Database) {
		path = cfg.Database
		if cfg.Host != "" && !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Host, path)
		}
	}

	params := url.Values{}
	keys := make([]string, 0, len(cfg.Options))
	for k := range cfg.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		params.Add(k, cfg.Options[k])
	}
	if cfg.Timeout > 0 {
		ms := cfg.Timeout.Milliseconds()
		if cfg.DriverName == "sqlite" {
			params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", ms))
		} else {
			params.Set("_busy_timeout", fmt.Sprint(ms))
		}
	}

	if len(params) == 0 {
		return path, nil
	}
	return path + "?" + params.Encode(), nil
}

func isMemory(name string) bool {
	return name == "" || name == ":memory:"
}

// QuoteIdentifier quotes a SQLite identifier using double quotes.
func (d *SQLiteDialect) QuoteIdentifier(s string) string {
	return quoteDouble(s)
}

// QuoteLiteral quotes a string literal by doubling single quotes.
func (d *SQLiteDialect) QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Placeholder returns SQLite placeholder format (always "?").
func (d *SQLiteDialect) Placeholder(_ int) string {
	return "?"
}

// BackslashEscapes returns false.
func (d *SQLiteDialect) BackslashEscapes() bool { return false }

// FieldsQuery returns PRAGMA table_info. SQLite has no column comments and the
// pragma accepts no filter, so both are ignored.
func (d *SQLiteDialect) FieldsQuery(table string, _ bool, _ string) (string, []interface{}) {
	return "PRAGMA table_info(" + d.QuoteIdentifier(table) + ")", nil
}

// ParseColumn reads a PRAGMA table_info row.
func (d *SQLiteDialect) ParseColumn(row map[string]interface{}) Column {
	return Column{
		Name:      stringValue(row["name"]),
		Type:      stringValue(row["type"]),
		IsPrimary: truthy(row["pk"]),
	}
}

// UpsertMode returns UpsertOnConflict.
func (d *SQLiteDialect) UpsertMode() UpsertMode { return UpsertOnConflict }

// UpsertSQL generates SQLite UPSERT syntax using ON CONFLICT.
func (d *SQLiteDialect) UpsertSQL(conflictCols, updateCols []string) string {
	if len(conflictCols) == 0 {
		return ""
	}
	if len(updateCols) == 0 {
		return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", quoteList(conflictCols))
	}

	updates := make([]string, len(updateCols))
	for i, col := range updateCols {
		c := d.QuoteIdentifier(col)
		updates[i] = c + " = excluded." + c
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s",
		quoteList(conflictCols),
		strings.Join(updates, ", "))
}

// LastInsertIDQuery returns "": the driver result carries the id.
func (d *SQLiteDialect) LastInsertIDQuery(_, _ string) string { return "" }

// ConflictColumns extracts the columns named in a uniqueness-violation message.
// Table prefixes ("users.email") are stripped. Returns nil when the message is
// not a uniqueness violation.
func (d *SQLiteDialect) ConflictColumns(message string) []string {
	var list string
	if m := uniqueFailedRegex.FindStringSubmatch(message); m != nil {
		list = m[1]
	} else if m := legacyUniqueRegex.FindStringSubmatch(message); m != nil {
		list = m[1]
	} else {
		return nil
	}

	var cols []string
	for _, c := range strings.Split(list, ",") {
		c = strings.TrimSpace(c)
		if i := strings.LastIndex(c, "."); i >= 0 {
			c = c[i+1:]
		}
		c = strings.Trim(c, "\"`")
		if c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}
