// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/ and the engine packages.
package ports

import (
	"context"
	"errors"

	"github.com/schemasmith/schemasmith/domain/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// ModelStore persists entity definitions durably, one record per entity.
// It is the source of truth consulted at startup and after every pipeline
// run to decide which routes must exist.
type ModelStore interface {
	// Put persists or overwrites a definition atomically.
	Put(ctx context.Context, def model.Definition) error

	// Get returns a definition by canonical name, or ErrNotFound.
	Get(ctx context.Context, name string) (model.Definition, error)

	// List returns all definitions sorted by name.
	List(ctx context.Context) ([]model.Definition, error)

	// Delete removes a definition. Deleting an absent entity is not an error.
	Delete(ctx context.Context, name string) error
}

// -----------------------------------------------------------------------------
// Synthesis Ports
// -----------------------------------------------------------------------------

// PipelineRunner drives the external schema-migration and code-generation
// toolchain: it applies the schema document to the backing store, generates a
// fresh data-access artifact, and returns the new build directory.
type PipelineRunner interface {
	Run(ctx context.Context, destructive bool) (buildDir string, err error)
}

// HandleSwapper owns the live data-access handle used by all request
// handlers.
type HandleSwapper interface {
	// Swap replaces the live handle with one built from buildDir.
	Swap(buildDir string) error
}

// RouteMounter owns the mounted CRUD route groups on the live server.
type RouteMounter interface {
	// Mount builds and installs the route group for a definition.
	// A definition whose accessor cannot be resolved is skipped, not an
	// error.
	Mount(def model.Definition) error

	// Unmount removes the entity's route group; no-op when absent.
	Unmount(name string)

	// Reconcile mounts every registered definition not yet mounted.
	Reconcile(ctx context.Context)
}
