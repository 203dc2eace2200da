package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Record is one row keyed by column name, as decoded from row_to_json.
type Record = map[string]any

// Filter narrows FetchRecords. Eq conditions are ANDed.
type Filter struct {
	Eq      map[string]any
	OrderBy string
	Desc    bool
	Limit   int
}

func quote(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}

func (s *PostgresStore) FetchRecords(ctx context.Context, table string, filter Filter) ([]Record, error) {
	t, err := LookupTable(table)
	if err != nil {
		return nil, err
	}

	var (
		query strings.Builder
		args  []any
	)
	fmt.Fprintf(&query, "SELECT row_to_json(r) FROM %s r", quote(t.Name))
	if len(filter.Eq) > 0 {
		conds := make([]string, 0, len(filter.Eq))
		for _, col := range sortedKeys(filter.Eq) {
			if _, ok := t.Column(col); !ok {
				return nil, fmt.Errorf("%s: %w %q", t.Name, ErrUnknownColumn, col)
			}
			args = append(args, filter.Eq[col])
			conds = append(conds, fmt.Sprintf("r.%s = $%d", quote(col), len(args)))
		}
		query.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	if _, ok := t.Column(orderBy); !ok {
		return nil, fmt.Errorf("%s: %w %q", t.Name, ErrUnknownColumn, orderBy)
	}
	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}
	fmt.Fprintf(&query, " ORDER BY r.%s %s, r.id ASC", quote(orderBy), direction)
	if filter.Limit > 0 {
		fmt.Fprintf(&query, " LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", t.Name, err)
	}
	defer rows.Close()

	items := make([]Record, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Name, err)
		}
		rec, err := decodeRow(t, raw)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.Name, err)
	}
	return items, nil
}

func (s *PostgresStore) FetchRecord(ctx context.Context, table, id string) (Record, error) {
	t, err := LookupTable(table)
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT row_to_json(r) FROM %s r WHERE r.id::text = $1", quote(t.Name)), id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", t.Name, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", t.Name, id, err)
	}
	return decodeRow(t, raw)
}

func (s *PostgresStore) InsertRecord(ctx context.Context, table string, rec Record) (Record, error) {
	items, err := s.InsertRecords(ctx, table, []Record{rec})
	if err != nil {
		return nil, err
	}
	if len(items) != 1 {
		return nil, fmt.Errorf("insert %s: expected 1 row, got %d", table, len(items))
	}
	return items[0], nil
}

// InsertRecords inserts every record in one statement. Columns are the union of the
// records' keys; a record missing a column inserts NULL for it.
func (s *PostgresStore) InsertRecords(ctx context.Context, table string, recs []Record) ([]Record, error) {
	t, err := LookupTable(table)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return []Record{}, nil
	}

	rows := make([]Record, 0, len(recs))
	seen := map[string]bool{}
	var cols []string
	for _, rec := range recs {
		row, err := t.writable(rec)
		if err != nil {
			return nil, err
		}
		for _, col := range sortedKeys(row) {
			if !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
		rows = append(rows, row)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("insert %s: no columns", t.Name)
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode %s rows: %w", t.Name, err)
	}

	colList := quoteList(cols)
	query := fmt.Sprintf(
		"INSERT INTO %s AS r (%s) SELECT %s FROM json_populate_recordset(NULL::%s, $1::json) RETURNING row_to_json(r)",
		quote(t.Name), colList, colList, quote(t.Name),
	)
	return s.queryRecords(ctx, t, "insert", query, string(payload))
}

// UpdateRecord writes the given columns and returns the updated row.
func (s *PostgresStore) UpdateRecord(ctx context.Context, table, id string, changes Record) (Record, error) {
	t, err := LookupTable(table)
	if err != nil {
		return nil, err
	}
	row, err := t.writable(changes)
	if err != nil {
		return nil, err
	}
	delete(row, "id")
	if len(row) == 0 {
		return s.FetchRecord(ctx, table, id)
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode %s changes: %w", t.Name, err)
	}

	colList := quoteList(sortedKeys(row))
	query := fmt.Sprintf(
		"UPDATE %s AS r SET (%s) = (SELECT %s FROM json_populate_record(NULL::%s, $2::json)), updated_at = NOW() WHERE r.id::text = $1 RETURNING row_to_json(r)",
		quote(t.Name), colList, colList, quote(t.Name),
	)
	items, err := s.queryRecords(ctx, t, "update", query, id, string(payload))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s %s: %w", t.Name, id, ErrNotFound)
	}
	return items[0], nil
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, table, id string) error {
	t, err := LookupTable(table)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id::text = $1", quote(t.Name)), id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", t.Name, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", t.Name, id, ErrNotFound)
	}
	return nil
}

// BulkDelete removes the rows with the given ids and returns how many existed.
func (s *PostgresStore) BulkDelete(ctx context.Context, table string, ids []string) (int64, error) {
	t, err := LookupTable(table)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id::text = ANY($1::text[])", quote(t.Name)), ids)
	if err != nil {
		return 0, fmt.Errorf("bulk delete %s: %w", t.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk delete %s: %w", t.Name, err)
	}
	return n, nil
}

// DeleteAll empties a table. Used by the seeders.
func (s *PostgresStore) DeleteAll(ctx context.Context, table string) (int64, error) {
	t, err := LookupTable(table)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", quote(t.Name)))
	if err != nil {
		return 0, fmt.Errorf("delete all %s: %w", t.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete all %s: %w", t.Name, err)
	}
	return n, nil
}

func (s *PostgresStore) queryRecords(ctx context.Context, t Table, verb, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", verb, t.Name, err)
	}
	defer rows.Close()

	items := make([]Record, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Name, err)
		}
		rec, err := decodeRow(t, raw)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s %s: %w", verb, t.Name, err)
	}
	return items, nil
}

// decodeRow parses a row_to_json document and validates it against the table's columns.
func decodeRow(t Table, raw []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode %s row: %w", t.Name, err)
	}
	if err := t.Validate(rec); err != nil {
		return nil, fmt.Errorf("validate row: %w", err)
	}
	delete(rec, searchVector.Name)
	return rec, nil
}

func quoteList(cols []string) string {
	quoted := make([]string, 0, len(cols))
	for _, col := range cols {
		quoted = append(quoted, quote(col))
	}
	return strings.Join(quoted, ", ")
}
