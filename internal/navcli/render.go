package navcli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"codenav/internal/core/regex"
	"codenav/internal/model"
)

// Theme colors the parts of a result line. The zero Theme prints plain text.
type Theme struct {
	File *color.Color
	Line *color.Color
	Name *color.Color
}

func newTheme(noColor bool) Theme {
	if noColor {
		return Theme{}
	}
	return Theme{
		File: color.New(color.FgMagenta),
		Line: color.New(color.FgGreen),
		Name: color.New(color.FgRed, color.Bold),
	}
}

func paint(c *color.Color, s string) string {
	if c == nil || s == "" {
		return s
	}
	return c.Sprint(s)
}

func RenderJSONL(locs []model.Location) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	for _, loc := range locs {
		_ = enc.Encode(loc)
	}
	return b.String()
}

func writeJSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func RenderDefault(locs []model.Location, th Theme) string {
	var b strings.Builder
	for _, loc := range locs {
		_, _ = fmt.Fprintf(&b, "%s:%s: %s\n", paint(th.File, loc.File), paint(th.Line, fmt.Sprint(loc.Line)), snippet(loc, th))
	}
	return b.String()
}

func RenderVim(locs []model.Location, th Theme) string {
	var b strings.Builder
	for _, loc := range locs {
		col := loc.Col
		if col <= 0 {
			col = 1
		}
		_, _ = fmt.Fprintf(&b, "%s:%s:%d: %s\n", paint(th.File, loc.File), paint(th.Line, fmt.Sprint(loc.Line)), col, snippet(loc, th))
	}
	return b.String()
}

func snippet(loc model.Location, th Theme) string {
	text := strings.TrimSpace(loc.Text)
	if text == "" {
		return paint(th.Name, loc.Name)
	}
	if loc.Name != "" && th.Name != nil {
		text = strings.Replace(text, loc.Name, paint(th.Name, loc.Name), 1)
	}
	return text
}

// printHighlights writes one "highlight:" line per overlay pattern.
func printHighlights(w io.Writer, hs []regex.Pattern) {
	for _, h := range hs {
		_, _ = fmt.Fprintf(w, "highlight: %s\n", h.Regex)
	}
}
