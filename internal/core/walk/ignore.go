package walk

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

type ignoreMatcher struct {
	matcher gitignore.Matcher
}

// loadIgnoreMatcher reads every .gitignore under root plus .git/info/exclude.
func loadIgnoreMatcher(root string, scanAll bool) (*ignoreMatcher, error) {
	if scanAll {
		return &ignoreMatcher{matcher: nil}, nil
	}

	patterns, err := gitignore.ReadPatterns(osfs.New(root), nil)
	if err != nil {
		return nil, err
	}
	excludes, err := readExcludeFile(filepath.Join(root, ".git", "info", "exclude"))
	if err != nil {
		return nil, err
	}
	patterns = append(excludes, patterns...)
	return &ignoreMatcher{matcher: gitignore.NewMatcher(patterns)}, nil
}

func readExcludeFile(path string) ([]gitignore.Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []gitignore.Pattern
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, gitignore.ParsePattern(line, nil))
	}
	return out, sc.Err()
}

func (m *ignoreMatcher) isIgnored(relPath string, isDir bool) bool {
	if m == nil || m.matcher == nil {
		return false
	}

	relPath = strings.Trim(relPath, "/")
	if relPath == "" {
		return false
	}

	segments := strings.Split(relPath, "/")
	return m.matcher.Match(segments, isDir)
}
