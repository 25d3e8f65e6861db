package navcli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"codenav/internal/model"
)

// RenderShow prints every location with ctx lines of surrounding source.
// The matching line is marked with '>'.
func RenderShow(locs []model.Location, ctx int) string {
	var b strings.Builder
	fileCache := map[string][]string{}
	seen := map[string]bool{}

	for _, loc := range locs {
		key := fmt.Sprintf("%s:%d", loc.File, loc.Line)
		if seen[key] {
			continue
		}
		seen[key] = true

		lines := loadFileLines(loc.File, fileCache)
		if len(lines) == 0 || loc.Line <= 0 {
			_, _ = fmt.Fprintf(&b, "%s:%d\n\n", loc.File, loc.Line)
			continue
		}

		line := clampInt(loc.Line, 1, len(lines))
		sl := clampInt(line-ctx, 1, len(lines))
		el := clampInt(line+ctx, line, len(lines))
		_, _ = fmt.Fprintf(&b, "%s:%d (%d-%d)\n", loc.File, line, sl, el)

		width := len(strconv.Itoa(el))
		for i := sl; i <= el; i++ {
			prefix := " "
			if i == line {
				prefix = ">"
			}
			_, _ = fmt.Fprintf(&b, "%s %*d| %s\n", prefix, width, i, lines[i-1])
		}
		_, _ = fmt.Fprintln(&b)
	}

	return b.String()
}

// AttachText fills in the source line of locations whose format carries
// none, such as plain ctags output.
func AttachText(locs []model.Location) {
	fileCache := map[string][]string{}
	for i := range locs {
		if strings.TrimSpace(locs[i].Text) != "" || locs[i].Line <= 0 {
			continue
		}
		lines := loadFileLines(locs[i].File, fileCache)
		if locs[i].Line > len(lines) {
			continue
		}
		locs[i].Text = lines[locs[i].Line-1]
	}
}

func loadFileLines(path string, cache map[string][]string) []string {
	if v, ok := cache[path]; ok {
		return v
	}
	b, err := os.ReadFile(path)
	if err != nil {
		cache[path] = nil
		return nil
	}
	lines := splitLines(string(b))
	cache[path] = lines
	return lines
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
