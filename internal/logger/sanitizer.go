package logger

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMask replaces sensitive values in log output.
const DefaultMask = "***REDACTED***"

var defaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv",
	"session_data", "private_key",
}

// sqlTokenRegex splits SQL into single-quoted literals (including doubled and
// backslash-escaped quotes), quoted identifiers, bare words, bind markers and
// numbers. Only literals and numbers are masked.
var sqlTokenRegex = regexp.MustCompile(
	`'(?:[^'\\]|''|\\.)*'` +
		`|"(?:[^"]|"")*"` +
		"|`[^`]*`" +
		`|[A-Za-z_][A-Za-z0-9_$]*` +
		`|\$[0-9]+` +
		`|[0-9]+(?:\.[0-9]*)?(?:[eE][+-]?[0-9]+)?|\.[0-9]+`)

// Sanitizer masks sensitive data before it reaches the logs. Statements built
// by webdb carry their values inline, so both bound parameters and quoted
// literals are masked once a sensitive column name appears in the SQL.
type Sanitizer struct {
	patterns []*regexp.Regexp
	mask     string
}

// NewSanitizer creates a sanitizer for the given column names. An empty list
// selects a default set of common secret-bearing names.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = defaultSensitiveFields
	}
	patterns := make([]*regexp.Regexp, 0, len(sensitiveFields))
	for _, field := range sensitiveFields {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(field)+`\b`))
	}
	return &Sanitizer{patterns: patterns, mask: DefaultMask}
}

// Sensitive reports whether the SQL mentions a sensitive column.
func (s *Sanitizer) Sensitive(sql string) bool {
	for _, p := range s.patterns {
		if p.MatchString(sql) {
			return true
		}
	}
	return false
}

// MaskParams returns a copy of params with every value masked when the SQL is
// sensitive. The input slice is never modified.
func (s *Sanitizer) MaskParams(sql string, params []interface{}) []interface{} {
	if len(params) == 0 || !s.Sensitive(sql) {
		return params
	}
	masked := make([]interface{}, len(params))
	for i := range params {
		masked[i] = s.mask
	}
	return masked
}

// MaskSQL replaces every quoted and numeric literal in a sensitive statement.
func (s *Sanitizer) MaskSQL(sql string) string {
	if !s.Sensitive(sql) {
		return sql
	}
	return sqlTokenRegex.ReplaceAllStringFunc(sql, func(tok string) string {
		switch c := tok[0]; {
		case c == '\'':
			return "'" + s.mask + "'"
		case c == '.' || (c >= '0' && c <= '9'):
			return s.mask
		}
		return tok
	})
}

// FormatParams renders parameters for logging, truncating long values.
func (s *Sanitizer) FormatParams(params []interface{}) string {
	if len(params) == 0 {
		return "[]"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = formatValue(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	str := fmt.Sprintf("%v", v)
	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
