// Package session stores web sessions in a database table. A Store works on
// its own clone of the application DB, so session writes at the end of a
// request never disturb the caller's active statement or transaction.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coregx/webdb/internal/core"
	"github.com/coregx/webdb/internal/util"
)

// Defaults.
const (
	DefaultTable    = "sessions"
	DefaultLifetime = 24 * time.Minute
)

// Store is a DB-backed session handler.
type Store struct {
	db       *core.DB
	table    string
	lifetime time.Duration
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTable sets the session table name.
func WithTable(name string) Option {
	return func(s *Store) { s.table = name }
}

// WithLifetime sets how long a session stays readable after its last write.
func WithLifetime(d time.Duration) Option {
	return func(s *Store) { s.lifetime = d }
}

// Open clones db and returns a store on the clone.
func Open(ctx context.Context, db *core.DB, opts ...Option) (*Store, error) {
	s := &Store{table: DefaultTable, lifetime: DefaultLifetime, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if !util.IsIdentifier(s.table, true) {
		return nil, fmt.Errorf("invalid session table name %q", s.table)
	}

	clone, err := db.Clone(ctx)
	if err != nil {
		return nil, fmt.Errorf("clone session connection: %w", err)
	}
	s.db = clone
	return s, nil
}

// fields describes the session table so writes skip introspection.
var fields = core.FieldSet{
	{Name: "id", Type: "varchar(64)", IsPrimary: true},
	{Name: "data", Type: "text"},
	{Name: "updated_at", Type: "bigint"},
}

// EnsureTable creates the session table when it does not exist.
func (s *Store) EnsureTable(ctx context.Context) error {
	q := "CREATE TABLE IF NOT EXISTS " + s.db.Builder().Quote(s.table) + ` (
		"id" VARCHAR(64) NOT NULL PRIMARY KEY,
		"data" TEXT,
		"updated_at" BIGINT NOT NULL
	)`
	_, err := s.db.Exec(ctx, q)
	return err
}

// NewID returns a fresh session id.
func (s *Store) NewID() string {
	return uuid.NewString()
}

// Read returns the data of a live session, or "" when it does not exist or
// has expired.
func (s *Store) Read(ctx context.Context, id string) (string, error) {
	cutoff := s.now().Add(-s.lifetime).Unix()
	v, err := s.db.Get(ctx, s.table, "data", core.Cond("id = ? AND updated_at >= ?", id, cutoff))
	if errors.Is(err, core.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	if str, ok := v.(string); ok {
		return str, nil
	}
	return fmt.Sprint(v), nil
}

// Write stores data for the session and refreshes its timestamp.
func (s *Store) Write(ctx context.Context, id, data string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	row := core.Row{
		"id":         core.Text(id),
		"data":       core.Text(data),
		"updated_at": core.Int(s.now().Unix()),
	}
	_, err := s.db.UpdateOrInsert(ctx, s.table, row, []string{"id"}, core.WithFieldSet(fields))
	return err
}

// Destroy removes the session.
func (s *Store) Destroy(ctx context.Context, id string) error {
	_, err := s.db.Delete(ctx, s.table, core.Cond("id = ?", id))
	return err
}

// GC removes sessions not written within maxLifetime and returns how many
// were removed. A zero maxLifetime uses the store lifetime.
func (s *Store) GC(ctx context.Context, maxLifetime time.Duration) (int64, error) {
	if maxLifetime <= 0 {
		maxLifetime = s.lifetime
	}
	cutoff := s.now().Add(-maxLifetime).Unix()
	return s.db.Delete(ctx, s.table, core.Cond("updated_at < ?", cutoff))
}

// Close closes the store's connection.
func (s *Store) Close() error {
	return s.db.Close()
}
