// Package tracer adapts OpenTelemetry to the span lifecycle of webdb
// statements and transactions.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanExec       = "webdb.exec"
	SpanQuery      = "webdb.query"
	SpanConnect    = "webdb.connect"
	SpanIntrospect = "webdb.fields"
	SpanBegin      = "webdb.tx.begin"
	SpanCommit     = "webdb.tx.commit"
	SpanRollback   = "webdb.tx.rollback"
)

// Tracer starts spans around database work.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is the subset of an OpenTelemetry span used by webdb.
type Span interface {
	SetAttributes(attrs ...attribute.KeyValue)
	RecordError(err error)
	SetStatus(code codes.Code, description string)
	End()
}

// NoopTracer discards all spans. It is the default.
type NoopTracer struct{}

// StartSpan returns ctx unchanged and a span that records nothing.
func (NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) SetAttributes(...attribute.KeyValue) {}
func (noopSpan) RecordError(error)                   {}
func (noopSpan) SetStatus(codes.Code, string)        {}
func (noopSpan) End()                                {}

// OtelTracer wraps an OpenTelemetry tracer.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer creates an adapter over t. A nil tracer yields nil so callers
// can fall back to NoopTracer.
func NewOtelTracer(t trace.Tracer) *OtelTracer {
	if t == nil {
		return nil
	}
	return &OtelTracer{tracer: t}
}

// StartSpan starts a client span.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	return ctx, &OtelSpan{span: span}
}

// OtelSpan wraps an OpenTelemetry span.
type OtelSpan struct {
	span trace.Span
}

func (s *OtelSpan) SetAttributes(attrs ...attribute.KeyValue) { s.span.SetAttributes(attrs...) }
func (s *OtelSpan) RecordError(err error)                     { s.span.RecordError(err) }
func (s *OtelSpan) SetStatus(code codes.Code, desc string)    { s.span.SetStatus(code, desc) }

// End completes the span.
func (s *OtelSpan) End() { s.span.End() }

// Statement describes one executed statement, following the OpenTelemetry
// database semantic conventions.
type Statement struct {
	System        string
	SQL           string
	Operation     string
	Table         string
	Duration      time.Duration
	RowsAffected  int64
	InTransaction bool
	Err           error
}

// Finish records the statement on the span and ends it.
func Finish(span Span, st *Statement) {
	op := st.Operation
	if op == "" {
		op = DetectOperation(st.SQL)
	}
	attrs := []attribute.KeyValue{
		attribute.String("db.system", st.System),
		attribute.String("db.statement", st.SQL),
		attribute.String("db.operation", op),
		attribute.Float64("db.duration_ms", float64(st.Duration.Microseconds())/1000.0),
	}
	if st.Table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", st.Table))
	}
	if st.RowsAffected > 0 {
		attrs = append(attrs, attribute.Int64("db.rows_affected", st.RowsAffected))
	}
	if st.InTransaction {
		attrs = append(attrs, attribute.Bool("db.in_transaction", true))
	}
	span.SetAttributes(attrs...)

	if st.Err != nil {
		span.RecordError(st.Err)
		span.SetStatus(codes.Error, st.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// DetectOperation returns the leading SQL verb in upper case, mapping WITH to
// SELECT. Unknown statements yield "UNKNOWN".
func DetectOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	verb := strings.ToUpper(strings.TrimLeft(fields[0], "("))
	switch verb {
	case "WITH":
		return "SELECT"
	case "SELECT", "INSERT", "UPDATE", "DELETE", "REPLACE",
		"SHOW", "PRAGMA", "CREATE", "ALTER", "DROP", "TRUNCATE",
		"BEGIN", "COMMIT", "ROLLBACK", "SAVEPOINT", "RELEASE":
		return verb
	}
	return "UNKNOWN"
}

// IsDDL reports whether the statement changes schema.
func IsDDL(sql string) bool {
	switch DetectOperation(sql) {
	case "CREATE", "ALTER", "DROP", "TRUNCATE":
		return true
	}
	return false
}
