package navcli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codenav/internal/model"
)

func TestRenderShow_PrintsLinesWithMatchMarker(t *testing.T) {
	full := filepath.Join(t.TempDir(), "b.c")
	if err := os.WriteFile(full, []byte("1\n2\n3\n4\n5\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out := RenderShow([]model.Location{{File: full, Line: 3}, {File: full, Line: 3}}, 1)

	if strings.Count(out, full+":3 (2-4)") != 1 {
		t.Fatalf("header: %s", out)
	}
	for _, want := range []string{"  2| 2", "> 3| 3", "  4| 4"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, "| 5") {
		t.Fatalf("context too wide: %s", out)
	}
}

func TestRenderShow_MissingFile(t *testing.T) {
	out := RenderShow([]model.Location{{File: "/nonexistent/x.c", Line: 9}}, 2)
	if out != "/nonexistent/x.c:9\n\n" {
		t.Fatalf("out=%q", out)
	}
}

func TestAttachText_FillsSourceLine(t *testing.T) {
	full := filepath.Join(t.TempDir(), "a.c")
	if err := os.WriteFile(full, []byte("a\r\nb\r\nc\r\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	locs := []model.Location{{File: full, Line: 2}, {File: full, Line: 9}, {File: full, Line: 1, Text: "keep"}}
	AttachText(locs)
	if locs[0].Text != "b" || locs[1].Text != "" || locs[2].Text != "keep" {
		t.Fatalf("locs=%+v", locs)
	}
}
