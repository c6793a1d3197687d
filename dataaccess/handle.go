// Package dataaccess owns the live database handle built from a pipeline
// run. A Handle pairs a connection pool with the catalog of tables the build
// produced; the Manager swaps handles atomically so request handlers always
// see a consistent pairing.
package dataaccess

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Handle is one immutable generation of data access. It is never mutated
// after Open; replacement happens by swapping the whole handle.
type Handle struct {
	db       *sql.DB
	catalog  Catalog
	buildDir string
}

// Open connects to the database and loads the catalog for buildDir.
func Open(driver, dsn, buildDir string) (*Handle, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == "sqlite3" {
		pragmas := []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA synchronous = NORMAL",
		}
		for _, pragma := range pragmas {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("set pragma: %w", err)
			}
		}
	}

	catalog, err := loadCatalog(db, buildDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Handle{db: db, catalog: catalog, buildDir: buildDir}, nil
}

// Catalog returns the table snapshot this handle was built with.
func (h *Handle) Catalog() Catalog {
	return h.catalog
}

// BuildDir returns the build directory this handle was opened against.
func (h *Handle) BuildDir() string {
	return h.buildDir
}

// Accessor returns a table accessor, or false when the catalog has no such
// table. Matching is case-insensitive.
func (h *Handle) Accessor(table string) (*Accessor, bool) {
	t, ok := h.catalog.Table(table)
	if !ok {
		return nil, false
	}
	return &Accessor{db: h.db, table: t}, true
}

// Close releases the connection pool.
func (h *Handle) Close() error {
	return h.db.Close()
}

// Ping verifies the connection is usable.
func (h *Handle) Ping() error {
	return h.db.Ping()
}
