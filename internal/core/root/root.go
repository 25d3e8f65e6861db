// Package root finds the project root a file belongs to by walking up to the
// nearest directory that holds a marker such as .git.
package root

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var DefaultMarkers = []string{".git", ".hg", ".svn"}

// NearestAncestor returns the closest ancestor of path, path itself
// included, that contains one of markers. It returns "" when none does.
func NearestAncestor(markers []string, path string) string {
	if len(markers) == 0 || path == "" {
		return ""
	}
	dir := filepath.Clean(path)
	for {
		for _, name := range markers {
			if name == "" {
				continue
			}
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Within reports whether path equals root or lies below it, comparing whole
// path components.
func Within(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Resolver remembers the last root found through a marker and reuses it for
// files below it.
type Resolver struct {
	Markers []string
	Getwd   func() (string, error)

	mu     sync.Mutex
	cached string
}

func NewResolver(markers []string) *Resolver {
	if markers == nil {
		markers = DefaultMarkers
	}
	return &Resolver{Markers: markers, Getwd: os.Getwd}
}

func (r *Resolver) getwd() (string, error) {
	getwd := r.Getwd
	if getwd == nil {
		getwd = os.Getwd
	}
	wd, err := getwd()
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	return wd, nil
}

// Abs makes filename absolute against the resolver's working directory. An
// empty filename stands for an unnamed buffer in the working directory.
func (r *Resolver) Abs(filename string) (string, error) {
	if filename != "" && filepath.IsAbs(filename) {
		return filepath.Clean(filename), nil
	}
	wd, err := r.getwd()
	if err != nil {
		return "", err
	}
	if filename == "" {
		filename = "no_name"
	}
	return filepath.Join(wd, filename), nil
}

// Resolve returns the project root for filename. found is false when no
// marker was seen and the working directory is used as a fallback.
func (r *Resolver) Resolve(filename string) (root string, found bool, err error) {
	if r == nil {
		return "", false, fmt.Errorf("root resolver is nil")
	}
	abs, err := r.Abs(filename)
	if err != nil {
		return "", false, err
	}

	r.mu.Lock()
	cached := r.cached
	r.mu.Unlock()
	if cached != "" && Within(cached, abs) {
		return cached, true, nil
	}

	start := filepath.Dir(abs)
	if st, err := os.Stat(abs); err == nil && st.IsDir() {
		start = abs
	}
	if ancestor := NearestAncestor(r.Markers, start); ancestor != "" {
		r.remember(ancestor)
		return ancestor, true, nil
	}

	wd, err := r.getwd()
	if err != nil {
		return "", false, err
	}
	if ancestor := NearestAncestor(r.Markers, wd); ancestor != "" {
		r.remember(ancestor)
		return ancestor, true, nil
	}
	return filepath.Clean(wd), false, nil
}

// Cached returns the remembered root, if any.
func (r *Resolver) Cached() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cached
}

func (r *Resolver) remember(root string) {
	r.mu.Lock()
	r.cached = root
	r.mu.Unlock()
}
