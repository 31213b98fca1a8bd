package core

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
)

var structMapper = reflectx.NewMapperFunc("db", strings.ToLower)

// ActiveQuery is the result set of the most recent query on a DB. Any later
// execution on the same DB closes it.
type ActiveQuery struct {
	db     *DB
	rows   *sql.Rows
	sql    string
	cols   []string
	closed error
}

// SQL returns the executed statement.
func (q *ActiveQuery) SQL() string {
	if q == nil {
		return ""
	}
	return q.sql
}

// Columns returns the column names of the result set.
func (q *ActiveQuery) Columns() ([]string, error) {
	if q == nil {
		return nil, ErrStatementClosed
	}
	q.db.mu.Lock()
	defer q.db.unlock()
	if err := q.columnsLocked(); err != nil {
		return nil, err
	}
	return append([]string(nil), q.cols...), nil
}

func (q *ActiveQuery) columnsLocked() error {
	if q.cols != nil {
		return nil
	}
	if q.closed != nil {
		return q.closed
	}
	cols, err := q.rows.Columns()
	if err != nil {
		return q.db.fail(newError(KindStatement, q.sql, err))
	}
	q.cols = cols
	return nil
}

// Fetch returns the next row, or ErrNoRows after the last one.
func (q *ActiveQuery) Fetch() (Row, error) {
	if q == nil {
		return nil, ErrStatementClosed
	}
	q.db.mu.Lock()
	defer q.db.unlock()
	return q.fetchLocked()
}

func (q *ActiveQuery) fetchLocked() (Row, error) {
	if err := q.nextLocked(); err != nil {
		return nil, err
	}
	row := make(map[string]interface{}, len(q.cols))
	if err := sqlx.MapScan(q.rows, row); err != nil {
		return nil, q.failLocked(err)
	}
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return row, nil
}

// FetchAll returns all remaining rows and closes the query.
func (q *ActiveQuery) FetchAll() ([]Row, error) {
	if q == nil {
		return nil, ErrStatementClosed
	}
	q.db.mu.Lock()
	defer q.db.unlock()

	var out []Row
	for {
		row, err := q.fetchLocked()
		if errors.Is(err, ErrNoRows) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
}

// FetchColumn returns column idx of the next row, or ErrNoRows after the last one.
func (q *ActiveQuery) FetchColumn(idx int) (interface{}, error) {
	if q == nil {
		return nil, ErrStatementClosed
	}
	q.db.mu.Lock()
	defer q.db.unlock()
	return q.fetchColumnLocked(idx)
}

func (q *ActiveQuery) fetchColumnLocked(idx int) (interface{}, error) {
	if err := q.nextLocked(); err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(q.cols) {
		return nil, fmt.Errorf("column index %d out of range [0,%d)", idx, len(q.cols))
	}
	vals := make([]interface{}, len(q.cols))
	ptrs := make([]interface{}, len(q.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := q.rows.Scan(ptrs...); err != nil {
		return nil, q.failLocked(err)
	}
	if b, ok := vals[idx].([]byte); ok {
		return string(b), nil
	}
	return vals[idx], nil
}

// FetchInto scans the next row into the struct pointed to by dest, matching
// columns to `db` tags.
func (q *ActiveQuery) FetchInto(dest interface{}) error {
	if q == nil {
		return ErrStatementClosed
	}
	q.db.mu.Lock()
	defer q.db.unlock()
	if err := q.nextLocked(); err != nil {
		return err
	}
	rows := &sqlx.Rows{Rows: q.rows, Mapper: structMapper}
	if err := rows.StructScan(dest); err != nil {
		return q.failLocked(err)
	}
	return nil
}

// FetchAllInto scans all remaining rows into the slice pointed to by dest and
// closes the query.
func (q *ActiveQuery) FetchAllInto(dest interface{}) error {
	if q == nil {
		return ErrStatementClosed
	}
	q.db.mu.Lock()
	defer q.db.unlock()
	if q.closed != nil {
		return q.closed
	}
	err := sqlx.StructScan(q.rows, dest)
	q.closeLocked(ErrNoRows)
	if err != nil {
		return q.db.fail(newError(KindStatement, q.sql, err))
	}
	return nil
}

// Close releases the result set. It is idempotent.
func (q *ActiveQuery) Close() error {
	if q == nil {
		return nil
	}
	q.db.mu.Lock()
	defer q.db.unlock()
	if q.closed != nil {
		return nil
	}
	q.closeLocked(ErrStatementClosed)
	if q.db.active == q {
		q.db.active = nil
	}
	return nil
}

// nextLocked advances to the next row. At the end the query closes itself
// and reports ErrNoRows from then on.
func (q *ActiveQuery) nextLocked() error {
	if q.closed != nil {
		return q.closed
	}
	if err := q.columnsLocked(); err != nil {
		return err
	}
	if q.rows.Next() {
		return nil
	}
	err := q.rows.Err()
	q.closeLocked(ErrNoRows)
	if err != nil {
		return q.db.fail(newError(KindStatement, q.sql, err))
	}
	return ErrNoRows
}

func (q *ActiveQuery) failLocked(err error) error {
	q.closeLocked(ErrStatementClosed)
	return q.db.fail(newError(KindStatement, q.sql, err))
}

func (q *ActiveQuery) closeLocked(reason error) {
	if q.closed == nil {
		_ = q.rows.Close()
		q.closed = reason
	}
}
