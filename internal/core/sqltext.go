package core

import (
	"fmt"
	"regexp"
	"strings"
)

type tokenKind int

const (
	tokCode tokenKind = iota
	tokLiteral
	tokIdent
	tokComment
	tokPositional
	tokNamed
)

type token struct {
	kind tokenKind
	text string
	name string
}

// lex splits SQL into code, quoted literals, quoted identifiers, comments and
// placeholders. backslash enables backslash escapes inside single-quoted
// literals. A "::" cast is kept as code.
func lex(sql string, backslash bool) []token {
	var toks []token
	start := 0
	flush := func(end int) {
		if end > start {
			toks = append(toks, token{kind: tokCode, text: sql[start:end]})
		}
	}
	emit := func(i, end int, kind tokenKind, name string) int {
		flush(i)
		toks = append(toks, token{kind: kind, text: sql[i:end], name: name})
		start = end
		return end
	}

	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '\'':
			i = emit(i, skipQuoted(sql, i, backslash), tokLiteral, "")
		case c == '"' || c == '`':
			i = emit(i, skipQuoted(sql, i, false), tokIdent, "")
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql)
			} else {
				end += i
			}
			i = emit(i, end, tokComment, "")
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				end = len(sql)
			} else {
				end += i + 4
			}
			i = emit(i, end, tokComment, "")
		case c == '?':
			i = emit(i, i+1, tokPositional, "")
		case c == ':':
			if i+1 < len(sql) && sql[i+1] == ':' {
				i += 2
				continue
			}
			end := i + 1
			for end < len(sql) && isNameByte(sql[end], end == i+1) {
				end++
			}
			if end == i+1 {
				i++
				continue
			}
			i = emit(i, end, tokNamed, sql[i+1:end])
		default:
			i++
		}
	}
	flush(len(sql))
	return toks
}

func isNameByte(c byte, first bool) bool {
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return true
	}
	return !first && c >= '0' && c <= '9'
}

// skipQuoted returns the index just past the quoted section starting at i.
// A doubled quote character is an escaped quote. An unterminated section
// runs to the end of the input.
func skipQuoted(s string, i int, backslash bool) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch {
		case backslash && s[j] == '\\':
			j++
		case s[j] == q:
			if j+1 < len(s) && s[j+1] == q {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(s)
}

var limitRegex = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)\s*,\s*(\d+)`)

// NormalizeSQL rewrites MySQL-only syntax into the portable form: LIMIT o,c
// becomes LIMIT c OFFSET o and backtick identifiers become double-quoted.
// String literals are left untouched.
func (b *Builder) NormalizeSQL(sql string) string {
	toks := lex(sql, b.dialect.BackslashEscapes())
	var out strings.Builder
	out.Grow(len(sql))
	for _, t := range toks {
		switch {
		case t.kind == tokCode:
			out.WriteString(limitRegex.ReplaceAllString(t.text, "LIMIT $2 OFFSET $1"))
		case t.kind == tokIdent && t.text[0] == '`':
			inner := strings.TrimSuffix(t.text[1:], "`")
			inner = strings.ReplaceAll(inner, "``", "`")
			out.WriteString(`"` + strings.ReplaceAll(inner, `"`, `""`) + `"`)
		default:
			out.WriteString(t.text)
		}
	}
	return out.String()
}

// substitute replaces the placeholders of sql, calling write for every value.
// List values are spread over one placeholder as a comma-separated list; an
// empty list becomes NULL.
func substitute(toks []token, args []interface{}, write func(*strings.Builder, interface{})) (string, error) {
	positional, named := 0, 0
	for _, t := range toks {
		switch t.kind {
		case tokPositional:
			positional++
		case tokNamed:
			named++
		}
	}

	var params Params
	if len(args) == 1 {
		params, _ = args[0].(Params)
	}

	switch {
	case positional > 0 && named > 0:
		return "", ErrMixedPlaceholders
	case positional > 0 && params != nil:
		return "", ErrMixedPlaceholders
	case named > 0 && params == nil && len(args) > 0:
		return "", ErrMixedPlaceholders
	case positional != len(args) && params == nil && named == 0:
		return "", fmt.Errorf("%w: %d placeholders, %d arguments", ErrParamCount, positional, len(args))
	}

	writeValue := func(out *strings.Builder, v interface{}) {
		rv, ok := expandable(v)
		if !ok {
			write(out, v)
			return
		}
		if rv.Len() == 0 {
			out.WriteString("NULL")
			return
		}
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				out.WriteString(", ")
			}
			write(out, rv.Index(i).Interface())
		}
	}

	var out strings.Builder
	next := 0
	for _, t := range toks {
		switch t.kind {
		case tokPositional:
			writeValue(&out, args[next])
			next++
		case tokNamed:
			v, ok := params[t.name]
			if !ok {
				return "", fmt.Errorf("%w: %s", ErrMissingParam, t.name)
			}
			writeValue(&out, v)
		default:
			out.WriteString(t.text)
		}
	}
	return out.String(), nil
}

// PrepareStatement substitutes the placeholders of a WHERE clause with quoted
// literals. Markers are either all positional (?) or all named (:name, bound
// from a single Params argument). Go numeric arguments are written bare;
// everything else is quoted unless tagged.
func (b *Builder) PrepareStatement(clause string, args ...interface{}) (string, error) {
	toks := lex(clause, b.dialect.BackslashEscapes())
	return substitute(toks, args, func(out *strings.Builder, v interface{}) {
		out.WriteString(b.literal(v, isGoNumber(v)))
	})
}

// Bind rewrites the placeholders of sql into the dialect's bind markers and
// returns the driver arguments in order. Named placeholders are resolved from
// a single Params argument; Raw arguments are inlined. A statement without
// ? or :name markers is returned unchanged with its arguments, so native
// markers such as $1 pass through.
func (b *Builder) Bind(sql string, args ...interface{}) (string, []interface{}, error) {
	toks := lex(sql, b.dialect.BackslashEscapes())
	hasMarkers := false
	for _, t := range toks {
		if t.kind == tokPositional || t.kind == tokNamed {
			hasMarkers = true
			break
		}
	}
	if !hasMarkers {
		if len(args) == 1 {
			if _, ok := args[0].(Params); ok {
				return sql, nil, nil
			}
		}
		return sql, args, nil
	}

	var bound []interface{}
	out, err := substitute(toks, args, func(out *strings.Builder, v interface{}) {
		if raw, ok := v.(Raw); ok {
			out.WriteString(string(raw))
			return
		}
		bound = append(bound, v)
		out.WriteString(b.dialect.Placeholder(len(bound)))
	})
	if err != nil {
		return "", nil, err
	}
	return out, bound, nil
}
