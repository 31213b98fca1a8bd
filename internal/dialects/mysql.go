package dialects

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ansiQuotesMode is applied as the session sql_mode on every connection so that
// double-quoted identifiers work the same way as on PostgreSQL and SQLite.
const ansiQuotesMode = "CONCAT(@@sql_mode, ',ANSI_QUOTES')"

// ErrUnsafeCharset is returned for connection character sets in which a
// multibyte character can end in 0x5c, so backslash escaping of literals
// cannot be trusted.
var ErrUnsafeCharset = errors.New("unsafe connection character set")

var unsafeCharsets = map[string]bool{
	"big5":    true,
	"cp932":   true,
	"gb2312":  true,
	"gbk":     true,
	"gb18030": true,
	"sjis":    true,
}

// checkCharset rejects charset lists and collations naming an unsafe set.
func checkCharset(value string, collation bool) error {
	for _, name := range strings.Split(value, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if collation {
			name, _, _ = strings.Cut(name, "_")
		}
		if unsafeCharsets[name] {
			return fmt.Errorf("%w: %s", ErrUnsafeCharset, name)
		}
	}
	return nil
}

// MySQLDialect implements MySQL-specific SQL dialect.
type MySQLDialect struct{}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
}

// Name returns "mysql".
func (d *MySQLDialect) Name() string { return "mysql" }

// DefaultDriverName returns the go-sql-driver name.
func (d *MySQLDialect) DefaultDriverName() string { return "mysql" }

// Prepare does nothing for MySQL.
func (d *MySQLDialect) Prepare(_ ConnConfig) error { return nil }

// DSN builds a go-sql-driver DSN with ANSI_QUOTES forced into the session sql_mode.
func (d *MySQLDialect) DSN(cfg ConnConfig) (string, error) {
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.DBName = cfg.Database

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	if strings.HasPrefix(host, "/") {
		c.Net = "unix"
		c.Addr = host
	} else {
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		c.Net = "tcp"
		c.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	}

	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
		c.ReadTimeout = cfg.Timeout
		c.WriteTimeout = cfg.Timeout
	}

	c.Params = make(map[string]string, len(cfg.Options)+2)
	for k, v := range cfg.Options {
		switch k {
		case "collation":
			if err := checkCharset(v, true); err != nil {
				return "", err
			}
			c.Collation = v
			continue
		case "charset":
			if err := checkCharset(v, false); err != nil {
				return "", err
			}
		}
		c.Params[k] = v
	}
	if cfg.Charset != "" {
		if err := checkCharset(cfg.Charset, false); err != nil {
			return "", err
		}
		c.Params["charset"] = cfg.Charset
	}
	c.Params["sql_mode"] = ansiQuotesMode

	return c.FormatDSN(), nil
}

// QuoteIdentifier quotes a MySQL identifier using double quotes (ANSI_QUOTES is
// enabled on every connection).
func (d *MySQLDialect) QuoteIdentifier(s string) string {
	return quoteDouble(s)
}

// QuoteLiteral quotes a string literal with backslash escaping, matching the
// server's default (non NO_BACKSLASH_ESCAPES) mode. It is only safe for
// character sets accepted by DSN.
func (d *MySQLDialect) QuoteLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\x1a':
			b.WriteString(`\Z`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// Placeholder returns MySQL placeholder format (always "?").
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}

// BackslashEscapes returns true.
func (d *MySQLDialect) BackslashEscapes() bool { return true }

// FieldsQuery returns SHOW [FULL] COLUMNS for the table.
func (d *MySQLDialect) FieldsQuery(table string, withComments bool, clause string) (string, []interface{}) {
	q := "SHOW COLUMNS FROM " + d.QuoteIdentifier(table)
	if withComments {
		q = "SHOW FULL COLUMNS FROM " + d.QuoteIdentifier(table)
	}
	if clause = strings.TrimSpace(clause); clause != "" {
		q += " " + clause
	}
	return q, nil
}

// ParseColumn reads a SHOW COLUMNS row.
func (d *MySQLDialect) ParseColumn(row map[string]interface{}) Column {
	return Column{
		Name:      stringValue(row["Field"]),
		Type:      stringValue(row["Type"]),
		IsPrimary: stringValue(row["Key"]) == "PRI",
		Comment:   stringValue(row["Comment"]),
	}
}

// UpsertMode returns UpsertDuplicateKey.
func (d *MySQLDialect) UpsertMode() UpsertMode { return UpsertDuplicateKey }

// UpsertSQL generates MySQL UPSERT syntax using ON DUPLICATE KEY UPDATE.
// With nothing to update, the first conflict column is assigned to itself so
// that duplicates are accepted without changes.
func (d *MySQLDialect) UpsertSQL(conflictCols, updateCols []string) string {
	if len(updateCols) == 0 {
		if len(conflictCols) == 0 {
			return ""
		}
		c := d.QuoteIdentifier(conflictCols[0])
		return " ON DUPLICATE KEY UPDATE " + c + " = " + c
	}

	updates := make([]string, len(updateCols))
	for i, col := range updateCols {
		c := d.QuoteIdentifier(col)
		updates[i] = c + " = VALUES(" + c + ")"
	}
	return " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
}

// LastInsertIDQuery returns "": the driver result carries the id.
func (d *MySQLDialect) LastInsertIDQuery(_, _ string) string { return "" }
