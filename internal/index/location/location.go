// Package location decides where the tag database for a project root lives.
package location

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"codenav/internal/config"
)

type Mode string

const (
	// ModeCache keeps every database under one central cache directory.
	ModeCache Mode = "cache"
	// ModeProject writes GTAGS, GRTAGS and GPATH into the root itself.
	ModeProject Mode = "project"
	// ModeRootMarker stores the database inside the marker directory.
	ModeRootMarker Mode = "rootmarker"
)

// DirName is the database folder used by rootmarker mode.
const DirName = ".codenav"

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeCache, ModeProject, ModeRootMarker:
		return m, nil
	case "":
		return ModeCache, nil
	default:
		return "", &config.Error{Field: "storage", Value: s, Reason: "must be one of cache, project, rootmarker"}
	}
}

type Options struct {
	Mode     Mode
	CacheDir string
	Markers  []string
	// Gutentags uses '-' as the folder separator and drops the leading one,
	// matching vim-gutentags' cache layout.
	Gutentags bool
}

// Locate returns the database directory for root.
func Locate(root string, opts Options) string {
	switch opts.Mode {
	case ModeProject:
		return root
	case ModeRootMarker:
		for _, name := range opts.Markers {
			if name == "" {
				continue
			}
			if _, err := os.Stat(filepath.Join(root, name)); err == nil {
				return filepath.Join(root, name, DirName)
			}
		}
		return filepath.Join(root, DirName)
	default:
		return filepath.Join(opts.CacheDir, "gtags", Folder(root, opts.Gutentags))
	}
}

// Folder flattens root into a single directory name.
func Folder(root string, gutentags bool) string {
	return folder(root, gutentags, runtime.GOOS == "windows")
}

func folder(root string, gutentags, windows bool) string {
	sep := "_"
	if gutentags {
		sep = "-"
	}
	if windows {
		if gutentags {
			return strings.NewReplacer(":", sep, `\`, sep, "/", sep).Replace(root)
		}
		root = strings.Replace(root, `:\`, sep, 1)
		return strings.NewReplacer(`\`, sep, "/", sep).Replace(root)
	}
	if gutentags {
		root = strings.TrimPrefix(root, "/")
	}
	return strings.ReplaceAll(root, "/", sep)
}
