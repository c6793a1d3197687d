package dataaccess

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// catalogFile is the optional artifact the generate step may leave in a build
// directory describing the tables it produced. When absent the handle falls
// back to introspecting the database itself.
const catalogFile = "catalog.json"

// Column describes one column of a synthesized table.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"notNull"`
	PrimaryKey bool   `json:"primaryKey"`
}

// Table describes one synthesized table.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column returns the named column, matched case-insensitively.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// PrimaryKey returns the primary key column name, defaulting to id.
func (t Table) PrimaryKey() string {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return "id"
}

// Catalog is a snapshot of the tables a build makes accessible.
type Catalog struct {
	Tables []Table `json:"tables"`
}

// Table returns the named table, matched case-insensitively.
func (c Catalog) Table(name string) (Table, bool) {
	for _, t := range c.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

// loadCatalog reads the build artifact if present, otherwise introspects the
// database.
func loadCatalog(db *sql.DB, buildDir string) (Catalog, error) {
	path := filepath.Join(buildDir, catalogFile)
	if raw, err := os.ReadFile(path); err == nil {
		var cat Catalog
		if err := json.Unmarshal(raw, &cat); err != nil {
			return Catalog{}, fmt.Errorf("decode %s: %w", catalogFile, err)
		}
		return cat, nil
	}
	return introspect(db)
}

// introspect builds a catalog from sqlite_master and PRAGMA table_info,
// skipping SQLite internals and migration bookkeeping tables.
func introspect(db *sql.DB) (Catalog, error) {
	rows, err := db.Query(
		`SELECT name FROM sqlite_master WHERE type = 'table'
		 AND name NOT LIKE 'sqlite_%' AND name NOT LIKE '\_%' ESCAPE '\'`)
	if err != nil {
		return Catalog{}, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Catalog{}, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return Catalog{}, fmt.Errorf("list tables: %w", err)
	}
	sort.Strings(names)

	var cat Catalog
	for _, name := range names {
		table, err := introspectTable(db, name)
		if err != nil {
			return Catalog{}, err
		}
		cat.Tables = append(cat.Tables, table)
	}
	return cat, nil
}

func introspectTable(db *sql.DB, name string) (Table, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(name)))
	if err != nil {
		return Table{}, fmt.Errorf("describe table %s: %w", name, err)
	}
	defer rows.Close()

	table := Table{Name: name}
	for rows.Next() {
		var (
			cid     int
			colName string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return Table{}, fmt.Errorf("scan column of %s: %w", name, err)
		}
		table.Columns = append(table.Columns, Column{
			Name:       colName,
			Type:       colType,
			NotNull:    notNull != 0,
			PrimaryKey: pk != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return Table{}, fmt.Errorf("describe table %s: %w", name, err)
	}
	return table, nil
}

// quoteIdent quotes an identifier for direct SQL interpolation. Identifiers
// come from the catalog, never the request, but quoting keeps reserved words
// and odd characters safe.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
