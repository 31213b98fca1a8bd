package dialects

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct{}

func init() {
	RegisterDialect("pgsql", &PostgresDialect{})
	RegisterDialect("postgres", &PostgresDialect{})
	RegisterDialect("postgresql", &PostgresDialect{})
	RegisterDialect("pgx", &PostgresDialect{})
}

// Name returns "pgsql".
func (d *PostgresDialect) Name() string { return "pgsql" }

// DefaultDriverName returns the lib/pq driver name.
func (d *PostgresDialect) DefaultDriverName() string { return "postgres" }

// Prepare does nothing for PostgreSQL.
func (d *PostgresDialect) Prepare(_ ConnConfig) error { return nil }

// DSN builds a libpq key/value connection string. sslmode defaults to disable
// unless given in the options.
func (d *PostgresDialect) DSN(cfg ConnConfig) (string, error) {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+dsnValue(v))
		}
	}

	add("host", cfg.Host)
	if cfg.Port > 0 {
		add("port", strconv.Itoa(cfg.Port))
	}
	add("dbname", cfg.Database)
	add("user", cfg.User)
	add("password", cfg.Password)
	add("client_encoding", cfg.Charset)
	if cfg.Timeout > 0 {
		secs := int(cfg.Timeout.Seconds())
		if secs < 1 {
			secs = 1
		}
		add("connect_timeout", strconv.Itoa(secs))
	}

	keys := make([]string, 0, len(cfg.Options))
	for k := range cfg.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, cfg.Options[k])
	}
	if _, ok := cfg.Options["sslmode"]; !ok {
		add("sslmode", "disable")
	}

	return strings.Join(parts, " "), nil
}

// dsnValue quotes a key/value DSN value when it contains spaces, quotes or backslashes.
func dsnValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// QuoteIdentifier quotes a PostgreSQL identifier using double quotes.
func (d *PostgresDialect) QuoteIdentifier(s string) string {
	return quoteDouble(s)
}

// QuoteLiteral quotes a string literal using lib/pq's escaping rules.
func (d *PostgresDialect) QuoteLiteral(s string) string {
	return pq.QuoteLiteral(s)
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// BackslashEscapes returns false: standard_conforming_strings is on by default.
func (d *PostgresDialect) BackslashEscapes() bool { return false }

// FieldsQuery reads information_schema.columns, flags primary key columns through
// table_constraints/constraint_column_usage and, with comments, joins pg_description.
func (d *PostgresDialect) FieldsQuery(table string, withComments bool, clause string) (string, []interface{}) {
	schemaCond := "c.table_schema = current_schema()"
	args := []interface{}{table}
	if i := strings.LastIndex(table, "."); i > 0 {
		args = []interface{}{table[i+1:], table[:i]}
		schemaCond = "c.table_schema = $2"
	}

	comment := "NULL"
	commentJoin := ""
	if withComments {
		comment = "pgd.description"
		commentJoin = `
LEFT JOIN pg_catalog.pg_statio_all_tables st
	ON st.schemaname = c.table_schema AND st.relname = c.table_name
LEFT JOIN pg_catalog.pg_description pgd
	ON pgd.objoid = st.relid AND pgd.objsubid = c.ordinal_position`
	}

	q := `SELECT c.column_name AS name, c.data_type AS type,
	CASE WHEN pk.column_name IS NULL THEN 0 ELSE 1 END AS is_primary,
	` + comment + ` AS comment
FROM information_schema.columns c
LEFT JOIN (
	SELECT ccu.table_schema, ccu.table_name, ccu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.constraint_column_usage ccu
		ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
	WHERE tc.constraint_type = 'PRIMARY KEY'
) pk ON pk.table_schema = c.table_schema AND pk.table_name = c.table_name AND pk.column_name = c.column_name` +
		commentJoin + `
WHERE c.table_name = $1 AND ` + schemaCond

	if clause = strings.TrimSpace(clause); clause != "" {
		q += " AND (" + clause + ")"
	}
	q += " ORDER BY c.ordinal_position"
	return q, args
}

// ParseColumn reads one row of the introspection query.
func (d *PostgresDialect) ParseColumn(row map[string]interface{}) Column {
	return Column{
		Name:      stringValue(row["name"]),
		Type:      stringValue(row["type"]),
		IsPrimary: truthy(row["is_primary"]),
		Comment:   stringValue(row["comment"]),
	}
}

// UpsertMode returns UpsertUpdateFirst.
func (d *PostgresDialect) UpsertMode() UpsertMode { return UpsertUpdateFirst }

// UpsertSQL returns "": replace runs as UPDATE then INSERT.
func (d *PostgresDialect) UpsertSQL(_, _ []string) string { return "" }

// LastInsertIDQuery reads the current value of the column's owned sequence, or
// lastval() when no table is given.
func (d *PostgresDialect) LastInsertIDQuery(table, column string) string {
	if table == "" {
		return "SELECT lastval()"
	}
	if column == "" {
		column = "id"
	}
	return "SELECT currval(pg_get_serial_sequence(" + d.QuoteLiteral(table) + ", " + d.QuoteLiteral(column) + "))"
}
