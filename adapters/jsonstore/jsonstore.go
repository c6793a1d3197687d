// Package jsonstore implements ports.ModelStore with one JSON file per
// entity definition under a models directory.
package jsonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schemasmith/schemasmith/domain/model"
	"github.com/schemasmith/schemasmith/ports"
)

// Store persists definitions as <dir>/<CanonicalName>.json.
type Store struct {
	dir string
}

// New creates the store, ensuring the directory exists.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create models dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, model.Normalize(name)+".json")
}

// Put writes the definition atomically: marshal to a temp file in the same
// directory, then rename over the target. On failure no partial write is
// visible.
func (s *Store) Put(ctx context.Context, def model.Definition) error {
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal definition %q: %w", def.Name, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+def.Name+".*.json")
	if err != nil {
		return fmt.Errorf("create temp definition file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write definition %q: %w", def.Name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close definition %q: %w", def.Name, err)
	}

	if err := os.Rename(tmpName, s.path(def.Name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist definition %q: %w", def.Name, err)
	}
	return nil
}

// Get returns the definition or ports.ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (model.Definition, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return model.Definition{}, ports.ErrNotFound
		}
		return model.Definition{}, fmt.Errorf("read definition %q: %w", name, err)
	}

	var def model.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return model.Definition{}, fmt.Errorf("decode definition %q: %w", name, err)
	}
	return def, nil
}

// List returns all definitions sorted by name. Files that fail to decode are
// skipped rather than failing the whole listing.
func (s *Store) List(ctx context.Context) ([]model.Definition, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read models dir: %w", err)
	}

	var defs []model.Definition
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		var def model.Definition
		if err := json.Unmarshal(data, &def); err != nil {
			continue
		}
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// Delete removes the definition file. Absent entities are not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete definition %q: %w", name, err)
	}
	return nil
}
