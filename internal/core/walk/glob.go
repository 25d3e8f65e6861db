package walk

import (
	"path"
	"strings"
)

// globSet holds include or exclude patterns. A pattern without a slash
// matches the base name; one with a slash matches the whole relative path.
// Comma-separated lists are split so "-x '*.js,*.sql'" works.
type globSet struct {
	base []string
	full []string
}

func newGlobSet(patterns []string) globSet {
	var g globSet
	for _, p := range patterns {
		for _, piece := range strings.Split(p, ",") {
			piece = strings.ReplaceAll(strings.TrimSpace(piece), "\\", "/")
			switch {
			case piece == "":
			case strings.Contains(piece, "/"):
				g.full = append(g.full, strings.TrimPrefix(piece, "./"))
			default:
				g.base = append(g.base, piece)
			}
		}
	}
	return g
}

func (g globSet) empty() bool { return len(g.base) == 0 && len(g.full) == 0 }

// match expects a slash-separated rel.
func (g globSet) match(rel string) bool {
	name := path.Base(rel)
	for _, p := range g.base {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	for _, p := range g.full {
		if ok, _ := path.Match(p, rel); ok {
			return true
		}
	}
	return false
}
