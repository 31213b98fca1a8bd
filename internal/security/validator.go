// Package security checks caller-supplied SQL fragments for injection
// patterns and writes an audit trail of mutating statements.
package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrDangerousSQL is returned when a fragment matches an injection pattern.
var ErrDangerousSQL = errors.New("dangerous SQL pattern")

// Validator checks WHERE clauses, raw expressions and free-form statements
// handed to webdb by application code. String literals are blanked before
// matching, so a value such as 'a -- b' does not trip the comment rule.
type Validator struct {
	patterns []namedPattern
	strict   bool
}

type namedPattern struct {
	name string
	re   *regexp.Regexp
}

// ValidatorOption configures the Validator.
type ValidatorOption func(*Validator)

// WithStrict adds patterns with a higher false-positive rate, such as any
// access to information_schema.
func WithStrict(strict bool) ValidatorOption {
	return func(v *Validator) {
		v.strict = strict
	}
}

var defaultPatterns = []namedPattern{
	{"line comment", regexp.MustCompile(`--`)},
	{"block comment", regexp.MustCompile(`/\*`)},
	{"hash comment", regexp.MustCompile(`#`)},
	{"stacked statement", regexp.MustCompile(`;\s*\S`)},
	{"union select", regexp.MustCompile(`(?i)\bUNION\s+(ALL\s+)?SELECT\b`)},
	{"tautology", regexp.MustCompile(`(?i)\bOR\s+(\d+)\s*=\s*(\d+)\b`)},
	{"quoted tautology", regexp.MustCompile(`(?i)\bOR\s+''\s*=\s*''`)},
	{"timing function", regexp.MustCompile(`(?i)\b(PG_SLEEP|SLEEP|BENCHMARK)\s*\(`)},
	{"file access", regexp.MustCompile(`(?i)\b(LOAD_FILE\s*\(|INTO\s+(OUT|DUMP)FILE\b)`)},
	{"attach database", regexp.MustCompile(`(?i)\bATTACH\s+DATABASE\b`)},
}

var strictPatterns = []namedPattern{
	{"catalog access", regexp.MustCompile(`(?i)\b(INFORMATION_SCHEMA|PG_CATALOG|SQLITE_MASTER)\b`)},
	{"stacked statement", regexp.MustCompile(`;`)},
}

// NewValidator creates a validator with the default pattern set.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{patterns: append([]namedPattern(nil), defaultPatterns...)}
	for _, opt := range opts {
		opt(v)
	}
	if v.strict {
		v.patterns = append(v.patterns, strictPatterns...)
	}
	return v
}

// ValidateFragment checks a WHERE clause or raw expression.
func (v *Validator) ValidateFragment(fragment string) error {
	stripped := blankLiterals(fragment)
	for _, p := range v.patterns {
		if p.re.MatchString(stripped) {
			return fmt.Errorf("%w: %s", ErrDangerousSQL, p.name)
		}
	}
	return nil
}

// ValidateStatement checks a complete statement. A single trailing semicolon
// is allowed.
func (v *Validator) ValidateStatement(sql string) error {
	return v.ValidateFragment(strings.TrimRight(strings.TrimSpace(sql), ";"))
}

// blankLiterals empties single-quoted literals and double-quoted identifiers.
// Doubled quotes and backslash escapes inside literals are honored.
func blankLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\'' && c != '"' {
			b.WriteByte(c)
			continue
		}
		quote := c
		b.WriteByte(quote)
		i++
		for ; i < len(s); i++ {
			if s[i] == '\\' && quote == '\'' {
				i++
				continue
			}
			if s[i] == quote {
				if i+1 < len(s) && s[i+1] == quote {
					i++
					continue
				}
				break
			}
		}
		b.WriteByte(quote)
	}
	return b.String()
}
