package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Format names a fixed result-line layout produced by global or rg.
type Format string

const (
	FormatCtags    Format = "ctags"     // name<TAB>file<TAB>line
	FormatCtagsX   Format = "ctags-x"   // name line file text
	FormatCtagsMod Format = "ctags-mod" // file<TAB>line<TAB>text
	FormatGrep     Format = "grep"      // file:line:text
	FormatPath     Format = "path"
	FormatVimgrep  Format = "vimgrep" // file:line:col:text
)

var ErrMalformed = errors.New("malformed result line")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimSpace(s)); f {
	case FormatCtags, FormatCtagsX, FormatCtagsMod, FormatGrep, FormatPath, FormatVimgrep:
		return f, nil
	case "":
		return FormatCtags, nil
	default:
		return "", fmt.Errorf("unknown result format %q", s)
	}
}

// Location is one jump target parsed from a result line.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line,omitempty"`
	Col  int    `json:"col,omitempty"`
	Name string `json:"name,omitempty"`
	Text string `json:"text,omitempty"`
}

// Abs resolves a relative File against dir.
func (l Location) Abs(dir string) Location {
	if l.File != "" && !filepath.IsAbs(l.File) && dir != "" {
		l.File = filepath.Clean(filepath.Join(dir, l.File))
	}
	return l
}

func ParseLine(format Format, line string) (Location, error) {
	switch format {
	case FormatCtags:
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			return Location{}, malformed(format, line)
		}
		n, err := atoiField(parts[2])
		if err != nil {
			return Location{}, malformed(format, line)
		}
		return Location{Name: parts[0], File: parts[1], Line: n}, nil

	case FormatCtagsX:
		fields := splitFields(line, 4)
		if len(fields) < 3 {
			return Location{}, malformed(format, line)
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return Location{}, malformed(format, line)
		}
		loc := Location{Name: fields[0], Line: n, File: fields[2]}
		if len(fields) == 4 {
			loc.Text = fields[3]
		}
		return loc, nil

	case FormatCtagsMod:
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 2 {
			return Location{}, malformed(format, line)
		}
		n, err := atoiField(parts[1])
		if err != nil {
			return Location{}, malformed(format, line)
		}
		loc := Location{File: parts[0], Line: n}
		if len(parts) == 3 {
			loc.Text = parts[2]
		}
		return loc, nil

	case FormatGrep, FormatVimgrep:
		want := 3
		if format == FormatVimgrep {
			want = 4
		}
		parts := splitColons(line, want)
		if len(parts) < want {
			return Location{}, malformed(format, line)
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return Location{}, malformed(format, line)
		}
		loc := Location{File: parts[0], Line: n, Text: parts[want-1]}
		if format == FormatVimgrep {
			col, err := strconv.Atoi(parts[2])
			if err != nil {
				return Location{}, malformed(format, line)
			}
			loc.Col = col
		}
		return loc, nil

	case FormatPath:
		if line == "" {
			return Location{}, malformed(format, line)
		}
		return Location{File: line}, nil

	default:
		return Location{}, fmt.Errorf("unknown result format %q", format)
	}
}

func malformed(format Format, line string) error {
	return fmt.Errorf("%w (%s): %q", ErrMalformed, format, line)
}

func atoiField(s string) (int, error) {
	s = strings.TrimSpace(s)
	// ctags lines may carry a ;" extension after the line number
	if i := strings.IndexAny(s, ";\t "); i >= 0 {
		s = s[:i]
	}
	return strconv.Atoi(s)
}

// splitFields splits on runs of blanks into at most n fields; the last one
// keeps its inner spacing.
func splitFields(s string, n int) []string {
	var out []string
	s = strings.TrimLeft(s, " \t")
	for len(out) < n-1 && s != "" {
		i := strings.IndexAny(s, " \t")
		if i < 0 {
			break
		}
		out = append(out, s[:i])
		s = strings.TrimLeft(s[i:], " \t")
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// splitColons splits into at most n parts, keeping a Windows drive prefix
// such as C: inside the first one.
func splitColons(s string, n int) []string {
	prefix := ""
	if len(s) > 2 && s[1] == ':' && (s[2] == '\\' || s[2] == '/') && isLetter(s[0]) {
		prefix, s = s[:2], s[2:]
	}
	parts := strings.SplitN(s, ":", n)
	if len(parts) > 0 {
		parts[0] = prefix + parts[0]
	}
	return parts
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
