package dataaccess

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/schemasmith/schemasmith/ports"
)

// Record is one row keyed by column name.
type Record = map[string]any

// Accessor performs CRUD against a single catalog table. Identifiers come
// from the catalog and values are always bound as parameters.
type Accessor struct {
	db    *sql.DB
	table Table
}

// Table returns the catalog entry this accessor serves.
func (a *Accessor) Table() Table {
	return a.table
}

// FindMany returns every row, primary key ascending.
func (a *Accessor) FindMany(ctx context.Context) ([]Record, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s",
		quoteIdent(a.table.Name), quoteIdent(a.table.PrimaryKey()))
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", a.table.Name, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// FindByID returns the row with the given primary key. A missing row is not
// an error: the result is a nil record, which callers surface as JSON null.
func (a *Accessor) FindByID(ctx context.Context, id any) (Record, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?",
		quoteIdent(a.table.Name), quoteIdent(a.table.PrimaryKey()))
	rows, err := a.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", a.table.Name, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Create inserts a row and returns it as stored, defaults included. Unknown
// keys and the primary key are dropped from data.
func (a *Accessor) Create(ctx context.Context, data Record) (Record, error) {
	cols, args := a.writable(data)
	if len(cols) == 0 {
		return nil, fmt.Errorf("create %s: no recognized columns in payload", a.table.Name)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(a.table.Name), strings.Join(cols, ", "), placeholders)

	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", a.table.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", a.table.Name, err)
	}
	return a.FindByID(ctx, id)
}

// Update applies the recognized columns of data to the row with the given
// primary key and returns the updated row, or ports.ErrNotFound. A payload
// with no recognized columns leaves the row untouched.
func (a *Accessor) Update(ctx context.Context, id any, data Record) (Record, error) {
	cols, args := a.writable(data)
	if len(cols) == 0 {
		record, err := a.FindByID(ctx, id)
		if err == nil && record == nil {
			return nil, ports.ErrNotFound
		}
		return record, err
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		quoteIdent(a.table.Name), strings.Join(sets, ", "), quoteIdent(a.table.PrimaryKey()))

	res, err := a.db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", a.table.Name, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("update %s: %w", a.table.Name, err)
	} else if n == 0 {
		return nil, ports.ErrNotFound
	}
	return a.FindByID(ctx, id)
}

// Delete removes the row with the given primary key, or ports.ErrNotFound.
func (a *Accessor) Delete(ctx context.Context, id any) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
		quoteIdent(a.table.Name), quoteIdent(a.table.PrimaryKey()))
	res, err := a.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", a.table.Name, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete from %s: %w", a.table.Name, err)
	} else if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// writable filters data down to catalog columns that may be written,
// returning quoted column names and matching args in a stable order.
func (a *Accessor) writable(data Record) ([]string, []any) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var cols []string
	var args []any
	for _, k := range keys {
		col, ok := a.table.Column(k)
		if !ok || col.PrimaryKey {
			continue
		}
		cols = append(cols, quoteIdent(col.Name))
		args = append(args, data[k])
	}
	return cols, args
}

// scanRecords drains rows into records, converting raw bytes to strings so
// results JSON-encode as text rather than base64.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var records []Record
	for rows.Next() {
		values := make([]any, len(cols))
		scans := make([]any, len(cols))
		for i := range values {
			scans[i] = &values[i]
		}
		if err := rows.Scan(scans...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		record := make(Record, len(cols))
		for i, c := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			record[c] = v
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}
