// Package registry persists the set of tag databases codenav has built so
// they can be listed and cleaned up later.
package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

var ErrNotFound = errors.New("database record not found")

// Record describes one tag database. Root is the key.
type Record struct {
	Root      string    `json:"root"`
	DBPath    string    `json:"dbpath"`
	Mode      string    `json:"mode"`
	MTime     int64     `json:"mtime"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Registry interface {
	Put(rec Record) error
	Get(root string) (Record, error)
	List() ([]Record, error)
	Delete(root string) error
	Close() error
}

func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "", "sqlite", "sqlite3":
		return "sqlite"
	case "bolt", "bbolt", "boltdb":
		return "bolt"
	default:
		return name
	}
}

// Open opens the registry backend at path. Backend "none" yields a registry
// that remembers nothing.
func Open(backend string, path string) (Registry, error) {
	backend = NormalizeName(backend)
	if backend == "none" {
		return Nop{}, nil
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("registry path is required")
	}
	switch backend {
	case "sqlite":
		return OpenSQLite(filepath.Clean(path))
	case "bolt":
		return OpenBolt(filepath.Clean(path))
	default:
		return nil, fmt.Errorf("unknown registry backend: %s", backend)
	}
}

func validate(rec Record) (Record, error) {
	rec.Root = strings.TrimSpace(rec.Root)
	if rec.Root == "" {
		return rec, fmt.Errorf("record root is required")
	}
	if strings.TrimSpace(rec.DBPath) == "" {
		return rec, fmt.Errorf("record dbpath is required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	return rec, nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) Put(Record) error { return nil }
func (Nop) Get(string) (Record, error) { return Record{}, ErrNotFound }
func (Nop) List() ([]Record, error) { return nil, nil }
func (Nop) Delete(string) error { return nil }
func (Nop) Close() error { return nil }
