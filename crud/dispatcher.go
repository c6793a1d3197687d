// Package crud synthesizes and serves per-entity CRUD route groups.
//
// Mounted groups live in an explicit dispatcher table consulted on every
// request instead of being woven into the server's static router, so groups
// can appear and disappear while the server runs.
package crud

import (
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Dispatcher routes requests to mounted entity route groups by the first
// path segment, case-insensitively. Safe for concurrent use.
type Dispatcher struct {
	mu     sync.RWMutex
	groups map[string]http.Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{groups: make(map[string]http.Handler)}
}

// Set installs or replaces the route group for a base path.
func (d *Dispatcher) Set(base string, h http.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[strings.ToLower(base)] = h
}

// Remove uninstalls the route group for a base path; no-op when absent.
func (d *Dispatcher) Remove(base string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.groups, strings.ToLower(base))
}

// Has reports whether a route group is mounted for the base path.
func (d *Dispatcher) Has(base string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.groups[strings.ToLower(base)]
	return ok
}

// Bases returns the mounted base paths, sorted.
func (d *Dispatcher) Bases() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	bases := make([]string, 0, len(d.groups))
	for b := range d.groups {
		bases = append(bases, b)
	}
	sort.Strings(bases)
	return bases
}

// ServeHTTP dispatches to the group mounted for the request's first path
// segment, stripping that segment before delegating.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	base := firstSegment(r.URL.Path)
	if base == "" {
		respondError(w, http.StatusNotFound, "not found")
		return
	}

	d.mu.RLock()
	h, ok := d.groups[strings.ToLower(base)]
	d.mu.RUnlock()
	if !ok {
		respondError(w, http.StatusNotFound, "not found")
		return
	}

	http.StripPrefix("/"+base, h).ServeHTTP(w, r)
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}
