package core

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"time"
)

// Row maps column names to values. It is used both for writes and fetches.
type Row map[string]interface{}

// Params binds named placeholders (:name) in a statement or condition.
type Params map[string]interface{}

// Tagged values carry their own quoting decision and bypass the field
// descriptor lookup.
type (
	// Null is always written as NULL.
	Null struct{}
	// Int is always written as a bare integer.
	Int int64
	// Float is always written as a bare number.
	Float float64
	// Text is always written as a quoted string literal.
	Text string
	// Raw is written verbatim. It must never carry user input.
	Raw string
)

// Value implements driver.Valuer.
func (Null) Value() (driver.Value, error) { return nil, nil }

// Value implements driver.Valuer.
func (v Int) Value() (driver.Value, error) { return int64(v), nil }

// Value implements driver.Valuer.
func (v Float) Value() (driver.Value, error) { return float64(v), nil }

// Value implements driver.Valuer.
func (v Text) Value() (driver.Value, error) { return string(v), nil }

// Condition is a WHERE clause with its placeholder arguments.
type Condition struct {
	Clause string
	Args   []interface{}
}

// Cond builds a Condition. Pass a single Params value for named placeholders.
func Cond(clause string, args ...interface{}) Condition {
	return Condition{Clause: clause, Args: args}
}

// DateTimeFormat is the layout used for time.Time literals.
const DateTimeFormat = "2006-01-02 15:04:05"

var numberRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// literal renders v as SQL. Untagged values are emitted bare only when
// numeric is set and their text is a number.
func (b *Builder) literal(v interface{}, numeric bool) string {
	if valuer, ok := v.(driver.Valuer); ok && !isTagged(v) {
		if nilValuerPointer(v) {
			return "NULL"
		}
		val, err := valuer.Value()
		if err != nil {
			return b.dialect.QuoteLiteral(fmt.Sprint(v))
		}
		v = val
	}

	var s string
	switch t := v.(type) {
	case nil, Null:
		return "NULL"
	case Raw:
		return string(t)
	case Int:
		return strconv.FormatInt(int64(t), 10)
	case Float:
		return strconv.FormatFloat(float64(t), 'f', -1, 64)
	case Text:
		return b.dialect.QuoteLiteral(string(t))
	case string:
		s = t
	case []byte:
		s = string(t)
	case bool:
		s = "0"
		if t {
			s = "1"
		}
	case time.Time:
		return b.dialect.QuoteLiteral(t.Format(DateTimeFormat))
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				return "NULL"
			}
			return b.literal(rv.Elem().Interface(), numeric)
		}
		s = fmt.Sprint(v)
	}

	if numeric && numberRegex.MatchString(s) {
		return s
	}
	return b.dialect.QuoteLiteral(s)
}

var valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()

// nilValuerPointer reports a nil pointer whose element type implements
// driver.Valuer with a value receiver; calling Value on it would panic.
func nilValuerPointer(v interface{}) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil() && rv.Type().Elem().Implements(valuerType)
}

func isTagged(v interface{}) bool {
	switch v.(type) {
	case Null, Int, Float, Text, Raw:
		return true
	}
	return false
}

// isGoNumber reports whether v is a Go numeric value.
func isGoNumber(v interface{}) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// expandable reports whether v is a list argument to be spread over one
// placeholder ([]byte is a scalar).
func expandable(v interface{}) (reflect.Value, bool) {
	if v == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
		return rv, true
	}
	return reflect.Value{}, false
}
