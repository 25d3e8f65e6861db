// Package search builds ripgrep invocations and their highlight overlays.
package search

import (
	"fmt"
	"strconv"
	"strings"

	"codenav/internal/core/proc"
	"codenav/internal/core/regex"
	"codenav/internal/model"
)

type Case string

const (
	CaseSmart     Case = "smart"
	CaseSensitive Case = "sensitive"
	CaseIgnore    Case = "ignore"
)

func ParseCase(s string) (Case, error) {
	switch c := Case(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CaseSmart, nil
	case CaseSmart, CaseSensitive, CaseIgnore:
		return c, nil
	default:
		return "", fmt.Errorf("unknown case mode %q", s)
	}
}

type Request struct {
	Patterns   []string
	Paths      []string
	Case       Case
	Word       bool
	LineRegexp bool
	Fixed      bool
	Perl       bool
	Globs      []string
	Hidden     bool
	NoIgnore   bool
	MaxCount   int
	Context    int
}

// Format is the layout of the lines BuildCommand produces.
const Format = model.FormatVimgrep

// BuildCommand returns the rg command line for req. Output is always in
// vimgrep layout.
func BuildCommand(rgBin string, req Request) (string, error) {
	if len(req.Patterns) == 0 {
		return "", fmt.Errorf("rg needs at least one pattern")
	}
	if rgBin == "" {
		rgBin = "rg"
	}

	args := []string{rgBin, "--vimgrep", "--color=never"}
	switch req.Case {
	case CaseSensitive:
		args = append(args, "--case-sensitive")
	case CaseIgnore:
		args = append(args, "--ignore-case")
	default:
		args = append(args, "--smart-case")
	}
	if req.Word {
		args = append(args, "--word-regexp")
	}
	if req.LineRegexp {
		args = append(args, "--line-regexp")
	}
	if req.Fixed {
		args = append(args, "--fixed-strings")
	}
	if req.Perl {
		args = append(args, "--pcre2")
	}
	for _, g := range req.Globs {
		args = append(args, "--glob", g)
	}
	if req.Hidden {
		args = append(args, "--hidden")
	}
	if req.NoIgnore {
		args = append(args, "--no-ignore")
	}
	if req.MaxCount > 0 {
		args = append(args, "--max-count", strconv.Itoa(req.MaxCount))
	}
	if req.Context > 0 {
		args = append(args, "--context", strconv.Itoa(req.Context))
	}
	for _, p := range req.Patterns {
		s, _ := regex.Unquote(p)
		args = append(args, "-e", s)
	}
	if len(req.Paths) > 0 {
		args = append(args, "--")
		args = append(args, req.Paths...)
	}
	return proc.Quote(args...), nil
}

// Highlights returns one overlay per non-empty pattern.
func Highlights(t *regex.Translator, req Request) []regex.Pattern {
	opts := regex.HighlightOptions{
		IgnoreCase: req.Case == CaseIgnore,
		SmartCase:  req.Case == "" || req.Case == CaseSmart,
		Literal:    req.Fixed,
		Word:       req.Word,
		PerlLike:   req.Perl,
	}
	var out []regex.Pattern
	for _, p := range req.Patterns {
		src := p
		if req.LineRegexp && !req.Fixed {
			src = "^" + unquoted(p) + "$"
		}
		if hp, ok := t.Highlight(src, opts); ok {
			out = append(out, hp)
		}
	}
	return out
}

func unquoted(p string) string {
	s, _ := regex.Unquote(p)
	return s
}

// Column returns the 1-based byte column of the first occurrence of pattern
// in text, or 0.
func Column(text string, pattern string, ignoreCase bool) int {
	if pattern == "" {
		return 0
	}
	hay, needle := text, pattern
	if ignoreCase {
		hay = strings.ToLower(hay)
		needle = strings.ToLower(needle)
	}
	idx := strings.Index(hay, needle)
	if idx < 0 {
		return 0
	}
	return idx + 1
}
