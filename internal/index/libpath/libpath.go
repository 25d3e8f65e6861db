// Package libpath reads and writes the GTAGSLIBPATH sidecar that links a
// project database to the databases of its library paths.
package libpath

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"codenav/internal/core/root"
)

const FileName = "GTAGSLIBPATH"

// Entry pairs a library root with the database built for it.
type Entry struct {
	Root   string `json:"root"`
	DBPath string `json:"dbpath"`
}

// Read loads the sidecar in dbpath. A missing sidecar is not an error.
func Read(dbpath string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dbpath, FileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open library path file: %w", err)
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r\n")
		if line == "" {
			continue
		}
		rootPath, db, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		out = append(out, Entry{Root: rootPath, DBPath: db})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read library path file: %w", err)
	}
	return out, nil
}

// Write replaces the sidecar in dbpath. An empty list leaves any existing
// sidecar untouched.
func Write(dbpath string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Root)
		b.WriteByte('\t')
		b.WriteString(e.DBPath)
		b.WriteByte('\n')
	}
	if err := os.MkdirAll(dbpath, 0o755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	path := filepath.Join(dbpath, FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write library path file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write library path file: %w", err)
	}
	return nil
}

// Lookup returns the first entry whose root contains filename.
func Lookup(entries []Entry, filename string) (Entry, bool) {
	for _, e := range entries {
		if root.Within(e.Root, filename) {
			return e, true
		}
	}
	return Entry{}, false
}
