// Package csvio exports query results to CSV and imports CSV files into a
// table through the statement builder.
package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/coregx/webdb/internal/core"
)

// DefaultBatch is the number of rows per INSERT used by Import.
const DefaultBatch = 100

// Export writes the remaining rows of q as CSV, preceded by the column names
// when header is set, and returns the number of data rows written. NULL is
// written as an empty cell.
func Export(ctx context.Context, q *core.ActiveQuery, w io.Writer, header bool) (int, error) {
	cols, err := q.Columns()
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(cols); err != nil {
			return 0, err
		}
	}

	n := 0
	record := make([]string, len(cols))
	for {
		if err := ctx.Err(); err != nil {
			_ = q.Close()
			return n, err
		}
		row, err := q.Fetch()
		if errors.Is(err, core.ErrNoRows) {
			break
		}
		if err != nil {
			return n, err
		}
		for i, c := range cols {
			record[i] = cell(row[c])
		}
		if err := cw.Write(record); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}

func cell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(core.DateTimeFormat)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	}
	return fmt.Sprint(v)
}

// Import inserts the rows of a CSV stream into table. The first record names
// the columns. Rows are written batch at a time inside one transaction, so a
// failure leaves the table unchanged. Empty cells are written as NULL; other
// cells are quoted according to the column types of the table.
func Import(ctx context.Context, db *core.DB, table string, r io.Reader, batch int) (int64, error) {
	if batch <= 0 {
		batch = DefaultBatch
	}
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	cr.FieldsPerRecord = len(header)

	var total int64
	err = db.Transactional(ctx, func(ctx context.Context) error {
		rows := make([]core.Row, 0, batch)
		flush := func() error {
			if len(rows) == 0 {
				return nil
			}
			n, err := db.Insert(ctx, table, rows)
			if err != nil {
				return err
			}
			total += n
			rows = rows[:0]
			return nil
		}

		line := 1
		for {
			record, err := cr.Read()
			if err == io.EOF {
				break
			}
			line++
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			row := make(core.Row, len(header))
			for i, col := range header {
				if record[i] == "" {
					row[col] = nil
				} else {
					row[col] = record[i]
				}
			}
			rows = append(rows, row)
			if len(rows) == batch {
				if err := flush(); err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
			}
		}
		if err := flush(); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
