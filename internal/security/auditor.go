package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// AuditLevel selects which operations are recorded.
type AuditLevel int

const (
	// AuditNone disables auditing.
	AuditNone AuditLevel = iota
	// AuditWrites records INSERT, UPDATE, DELETE, REPLACE and DDL.
	AuditWrites
	// AuditAll records every statement.
	AuditAll
)

// AuditEvent is one audited operation. The statement itself is not logged
// because webdb inlines values into SQL text; its SHA-256 is logged instead.
type AuditEvent struct {
	Timestamp    time.Time
	Operation    string
	Table        string
	RowsAffected int64
	SQLHash      string
	User         string
	ClientIP     string
	RequestID    string
	Success      bool
	Error        string
	Duration     time.Duration
}

// Auditor writes audit events to a slog logger.
type Auditor struct {
	logger *slog.Logger
	level  AuditLevel
}

// NewAuditor creates an auditor. A nil logger disables it.
func NewAuditor(logger *slog.Logger, level AuditLevel) *Auditor {
	return &Auditor{logger: logger, level: level}
}

// Record logs a finished operation if the audit level covers it.
func (a *Auditor) Record(ctx context.Context, operation, table, sql string, rows int64, err error, d time.Duration) {
	if !a.covers(operation) {
		return
	}
	ev := AuditEvent{
		Timestamp:    time.Now().UTC(),
		Operation:    operation,
		Table:        table,
		RowsAffected: rows,
		SQLHash:      hashSQL(sql),
		User:         UserFrom(ctx),
		ClientIP:     ClientIPFrom(ctx),
		RequestID:    RequestIDFrom(ctx),
		Success:      err == nil,
		Duration:     d,
	}
	if err != nil {
		ev.Error = err.Error()
	}

	level := slog.LevelInfo
	if !ev.Success {
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(ctx, level, "audit_event",
		slog.Time("timestamp", ev.Timestamp),
		slog.String("operation", ev.Operation),
		slog.String("table", ev.Table),
		slog.Int64("rows_affected", ev.RowsAffected),
		slog.String("sql_hash", ev.SQLHash),
		slog.String("user", ev.User),
		slog.String("client_ip", ev.ClientIP),
		slog.String("request_id", ev.RequestID),
		slog.Bool("success", ev.Success),
		slog.String("error", ev.Error),
		slog.Int64("duration_ms", ev.Duration.Milliseconds()),
	)
}

// RecordRejected logs a fragment refused by the Validator.
func (a *Auditor) RecordRejected(ctx context.Context, fragment string, err error) {
	if a == nil || a.logger == nil || a.level == AuditNone {
		return
	}
	a.logger.LogAttrs(ctx, slog.LevelWarn, "security_event",
		slog.String("event_type", "fragment_rejected"),
		slog.String("sql_hash", hashSQL(fragment)),
		slog.String("user", UserFrom(ctx)),
		slog.String("request_id", RequestIDFrom(ctx)),
		slog.String("error", err.Error()),
	)
}

func (a *Auditor) covers(operation string) bool {
	if a == nil || a.logger == nil {
		return false
	}
	switch a.level {
	case AuditAll:
		return true
	case AuditWrites:
		switch operation {
		case "INSERT", "UPDATE", "DELETE", "REPLACE", "CREATE", "ALTER", "DROP", "TRUNCATE":
			return true
		}
	}
	return false
}

func hashSQL(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}

type contextKey string

const (
	userKey      contextKey = "webdb:user"
	clientIPKey  contextKey = "webdb:client_ip"
	requestIDKey contextKey = "webdb:request_id"
)

// WithUser attaches the acting user to ctx for auditing.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// WithClientIP attaches the client address to ctx for auditing.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// WithRequestID attaches a request id to ctx for auditing.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// UserFrom returns the user stored by WithUser.
func UserFrom(ctx context.Context) string {
	s, _ := ctx.Value(userKey).(string)
	return s
}

// ClientIPFrom returns the address stored by WithClientIP.
func ClientIPFrom(ctx context.Context) string {
	s, _ := ctx.Value(clientIPKey).(string)
	return s
}

// RequestIDFrom returns the id stored by WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}
