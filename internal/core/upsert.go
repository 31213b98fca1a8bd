package core

import (
	"context"
	"sort"

	"github.com/coregx/webdb/internal/dialects"
)

// Replace writes data, updating the existing row that collides on the
// unique columns. When unique is empty the table's primary key columns
// present in data are used.
//
//   - MySQL: INSERT ... ON DUPLICATE KEY UPDATE.
//   - PostgreSQL: UPDATE keyed on the unique columns, INSERT when nothing matched.
//   - SQLite: INSERT ... ON CONFLICT DO UPDATE when unique columns are known.
//     Otherwise, or WithLegacyUpsert, the INSERT is attempted plain and a
//     uniqueness violation is answered with an UPDATE keyed on the columns
//     named in the error message.
//
// It returns the affected row count reported by the final statement.
func (db *DB) Replace(ctx context.Context, table string, data Row, unique []string, opts ...WriteOption) (int64, error) {
	db.mu.Lock()
	defer db.unlock()
	if err := db.ready(); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, db.fail(newError(KindStatement, "", ErrEmptyData))
	}
	w, err := db.writeOpts(ctx, opts)
	if err != nil {
		return 0, err
	}
	w.fields = db.writeFields(ctx, table, w)
	if len(unique) == 0 {
		unique = presentKeys(w.fields.PrimaryKeys(), data)
	}

	switch db.dialect.UpsertMode() {
	case dialects.UpsertDuplicateKey:
		suffix := db.dialect.UpsertSQL(unique, updateColumns(data, w.raws, unique))
		if suffix == "" {
			suffix = db.dialect.UpsertSQL(sortedRowKeys(data)[:1], nil)
		}
		return db.insertLocked(ctx, table, []Row{data}, w, suffix)

	case dialects.UpsertOnConflict:
		if !db.legacyUpsert && len(unique) > 0 {
			suffix := db.dialect.UpsertSQL(unique, updateColumns(data, w.raws, unique))
			return db.insertLocked(ctx, table, []Row{data}, w, suffix)
		}
		return db.insertThenUpdate(ctx, table, data, w)

	default:
		if len(unique) == 0 {
			return db.insertLocked(ctx, table, []Row{data}, w, "")
		}
		n, err := db.updateByKey(ctx, table, data, unique, w)
		if err != nil || n > 0 {
			return n, err
		}
		return db.insertLocked(ctx, table, []Row{data}, w, "")
	}
}

// insertThenUpdate is the legacy SQLite path: try the INSERT, and on a
// uniqueness violation update the row keyed on the reported columns.
func (db *DB) insertThenUpdate(ctx context.Context, table string, data Row, w *writeOptions) (int64, error) {
	n, err := db.insertLocked(ctx, table, []Row{data}, w, "")
	if err == nil {
		return n, nil
	}
	sniffer, ok := db.dialect.(dialects.ConflictSniffer)
	if !ok || db.lastErr == nil {
		return 0, err
	}
	msg := db.lastErr.Message
	if msg == "" && db.lastErr.Err != nil {
		msg = db.lastErr.Err.Error()
	}
	cols := sniffer.ConflictColumns(msg)
	if len(cols) == 0 || len(presentKeys(cols, data)) != len(cols) {
		return 0, err
	}

	db.logger.Info("unique conflict, updating existing row", "table", table, "columns", cols)
	return db.updateByKey(ctx, table, data, cols, w)
}

// updateByKey updates the row whose unique columns equal those in data.
// Non-key columns are set; when there are none the key columns are set to
// themselves so the matched row is still counted.
func (db *DB) updateByKey(ctx context.Context, table string, data Row, unique []string, w *writeOptions) (int64, error) {
	where, err := db.keyClause(data, unique, w.fields)
	if err != nil {
		return 0, err
	}
	set := make(Row, len(data))
	for k, v := range data {
		if !contains(unique, k) {
			set[k] = v
		}
	}
	if len(set) == 0 && len(w.raws) == 0 {
		set = data
	}
	return db.updateLocked(ctx, table, set, where, w)
}

// keyClause builds "k1" = v1 AND "k2" = v2 from data.
func (db *DB) keyClause(data Row, unique []string, fields FieldSet) (string, error) {
	if len(unique) == 0 {
		return "", db.fail(newError(KindStatement, "", ErrNoUniqueKey))
	}
	clause := ""
	for i, k := range unique {
		v, ok := data[k]
		if !ok {
			return "", db.fail(newError(KindStatement, "", ErrNoUniqueKey))
		}
		if i > 0 {
			clause += " AND "
		}
		if v == nil {
			clause += db.builder.Quote(k) + " IS NULL"
			continue
		}
		clause += db.builder.Quote(k) + " = " + db.builder.Literal(v, fields.Lookup(k))
	}
	return clause, nil
}

// UpdateOrInsert updates the row keyed on the unique columns and inserts
// data when no such row exists. It never inspects driver errors. When
// unique is empty the primary key columns present in data are used.
func (db *DB) UpdateOrInsert(ctx context.Context, table string, data Row, unique []string, opts ...WriteOption) (int64, error) {
	db.mu.Lock()
	defer db.unlock()
	if err := db.ready(); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, db.fail(newError(KindStatement, "", ErrEmptyData))
	}
	w, err := db.writeOpts(ctx, opts)
	if err != nil {
		return 0, err
	}
	w.fields = db.writeFields(ctx, table, w)
	if len(unique) == 0 {
		unique = presentKeys(w.fields.PrimaryKeys(), data)
	}

	n, err := db.updateByKey(ctx, table, data, unique, w)
	if err != nil || n > 0 {
		return n, err
	}

	// MySQL reports zero affected rows when the values did not change.
	where, err := db.keyClause(data, unique, w.fields)
	if err != nil {
		return 0, err
	}
	v, err := db.aggregateWhereLocked(ctx, "COUNT(*)", table, where)
	if err != nil {
		return 0, err
	}
	if c, _ := toInt64(v); c > 0 {
		return 0, nil
	}
	return db.insertLocked(ctx, table, []Row{data}, w, "")
}

// updateColumns returns the columns assigned on conflict: data columns
// outside the unique key, then raw columns.
func updateColumns(data Row, raws map[string]string, unique []string) []string {
	var cols []string
	for _, c := range sortedRowKeys(data) {
		if _, raw := raws[c]; !raw && !contains(unique, c) {
			cols = append(cols, c)
		}
	}
	for _, c := range sortedKeys(raws) {
		if !contains(unique, c) {
			cols = append(cols, c)
		}
	}
	return cols
}

func presentKeys(keys []string, data Row) []string {
	var out []string
	for _, k := range keys {
		if _, ok := data[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func sortedRowKeys(r Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
