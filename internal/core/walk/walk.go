// Package walk lists the files of a project the way a version-controlled
// checkout sees them, for feeding gtags its file list.
package walk

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

type Options struct {
	IncludeGlobs []string
	ExcludeGlobs []string
	// ScanAll disables gitignore, hidden-file and vendor-directory filtering.
	ScanAll bool
	// Dotfiles keeps hidden files and directories (gtags --accept-dotfiles).
	Dotfiles bool
	// SkipNames are base names that are never listed, such as tag database files.
	SkipNames []string
}

// ListFiles returns slash-separated paths relative to root, sorted.
func ListFiles(root string, opts Options) ([]string, error) {
	f, err := NewFilter(root, opts)
	if err != nil {
		return nil, err
	}

	var files []string
	err = walkFiltered(root, f, func(rel string) error {
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// WriteList writes one path per line, relative to root, in walk order.
func WriteList(w io.Writer, root string, opts Options) (int, error) {
	f, err := NewFilter(root, opts)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	n := 0
	err = walkFiltered(root, f, func(rel string) error {
		n++
		if _, err := bw.WriteString(filepath.FromSlash(rel)); err != nil {
			return err
		}
		return bw.WriteByte('\n')
	})
	if err != nil {
		return n, err
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("write file list: %w", err)
	}
	return n, nil
}

func walkFiltered(root string, f *Filter, emit func(rel string) error) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if !f.ShouldInclude(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !f.ShouldInclude(rel, false) {
			return nil
		}
		return emit(rel)
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isDefaultSkippedDir(name string) bool {
	switch name {
	case "node_modules", "vendor", "dist", "target":
		return true
	default:
		return false
	}
}
