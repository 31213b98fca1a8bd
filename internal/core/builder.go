package core

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/coregx/webdb/internal/dialects"
)

// Builder renders SQL text for one dialect. It performs no I/O.
type Builder struct {
	dialect dialects.Dialect
}

// NewBuilder creates a builder for the named driver ("mysql", "pgsql", "sqlite").
func NewBuilder(driver Driver) (*Builder, error) {
	d, err := dialects.Lookup(string(driver))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
	return &Builder{dialect: d}, nil
}

// Dialect returns the dialect the builder renders for.
func (b *Builder) Dialect() dialects.Dialect { return b.dialect }

// Quote quotes an identifier; schema-qualified names are quoted per part.
func (b *Builder) Quote(ident string) string {
	return b.dialect.QuoteIdentifier(ident)
}

// Literal renders a value for the given column. A nil field means the
// column is unknown and untagged values are quoted.
func (b *Builder) Literal(v interface{}, field *FieldDescriptor) string {
	return b.literal(v, field != nil && IsNumericType(field.Type))
}

// InsertSQL builds a single- or multi-row INSERT. Columns come from the first
// row in sorted order, followed by the raw expressions; every row must carry
// the same columns. fields is consulted for every row.
func (b *Builder) InsertSQL(table string, rows []Row, fields FieldSet, raws map[string]string) (string, error) {
	if len(rows) == 0 {
		return "", ErrEmptyData
	}

	cols := dataColumns(rows[0], raws)
	rawCols := sortedKeys(raws)
	if len(cols)+len(rawCols) == 0 {
		return "", ErrEmptyData
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.Quote(table))
	sb.WriteString(" (")
	for i, c := range append(append([]string{}, cols...), rawCols...) {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.Quote(c))
	}
	sb.WriteString(") VALUES ")

	for i, row := range rows {
		if i > 0 {
			if !sameColumns(row, cols, raws) {
				return "", fmt.Errorf("row %d: %w", i, ErrColumnMismatch)
			}
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j, c := range cols {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(b.Literal(row[c], fields.Lookup(c)))
		}
		for j, c := range rawCols {
			if j > 0 || len(cols) > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(raws[c])
		}
		sb.WriteByte(')')
	}
	return sb.String(), nil
}

// UpdateSQL builds an UPDATE. where is an already prepared clause; an empty
// clause updates every row.
func (b *Builder) UpdateSQL(table string, data Row, where string, fields FieldSet, raws map[string]string) (string, error) {
	cols := dataColumns(data, raws)
	rawCols := sortedKeys(raws)
	if len(cols)+len(rawCols) == 0 {
		return "", ErrEmptyData
	}

	sets := make([]string, 0, len(cols)+len(rawCols))
	for _, c := range cols {
		sets = append(sets, b.Quote(c)+" = "+b.Literal(data[c], fields.Lookup(c)))
	}
	for _, c := range rawCols {
		sets = append(sets, b.Quote(c)+" = "+raws[c])
	}
	return "UPDATE " + b.Quote(table) + " SET " + strings.Join(sets, ", ") + whereSQL(where), nil
}

// DeleteSQL builds a DELETE with an already prepared clause.
func (b *Builder) DeleteSQL(table, where string) string {
	return "DELETE FROM " + b.Quote(table) + whereSQL(where)
}

// SelectSQL builds a SELECT with an already prepared clause.
func (b *Builder) SelectSQL(columns, table, where string) string {
	return "SELECT " + b.VerifyColumns(columns) + " FROM " + b.Quote(table) + whereSQL(where)
}

var (
	plainIdentRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)
	starRegex       = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_$]*)\.\*$`)
	aliasRegex      = regexp.MustCompile(`(?i)^(.+?)\s+AS\s+([A-Za-z_][A-Za-z0-9_$]*|"[^"]+")$`)
)

// VerifyColumns quotes the bare identifiers of a select list. "*", "t.*"
// and expressions pass through; "expr AS alias" keeps the expression and
// quotes the alias.
func (b *Builder) VerifyColumns(columns string) string {
	columns = strings.TrimSpace(columns)
	if columns == "" {
		return "*"
	}
	items := splitTopLevel(columns)
	for i, item := range items {
		items[i] = b.verifyColumn(strings.TrimSpace(item))
	}
	return strings.Join(items, ", ")
}

func (b *Builder) verifyColumn(item string) string {
	switch {
	case item == "*":
		return item
	case starRegex.MatchString(item):
		m := starRegex.FindStringSubmatch(item)
		return b.Quote(m[1]) + ".*"
	case plainIdentRegex.MatchString(item):
		return b.Quote(item)
	}
	if m := aliasRegex.FindStringSubmatch(item); m != nil {
		return b.verifyColumn(strings.TrimSpace(m[1])) + " AS " + b.Quote(m[2])
	}
	return item
}

// splitTopLevel splits a select list on commas outside parentheses and quotes.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '"', '`':
			i = skipQuoted(s, i, false) - 1
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func whereSQL(where string) string {
	if where = strings.TrimSpace(where); where == "" {
		return ""
	}
	return " WHERE " + where
}

// dataColumns returns the sorted data columns not overridden by a raw expression.
func dataColumns(row Row, raws map[string]string) []string {
	cols := make([]string, 0, len(row))
	for c := range row {
		if _, ok := raws[c]; !ok {
			cols = append(cols, c)
		}
	}
	sort.Strings(cols)
	return cols
}

func sameColumns(row Row, cols []string, raws map[string]string) bool {
	n := 0
	for c := range row {
		if _, ok := raws[c]; !ok {
			n++
		}
	}
	if n != len(cols) {
		return false
	}
	for _, c := range cols {
		if _, ok := row[c]; !ok {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
