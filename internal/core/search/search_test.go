package search

import (
	"slices"
	"strings"
	"testing"

	"codenav/internal/core/proc"
	"codenav/internal/core/regex"
)

func TestBuildCommand_Defaults(t *testing.T) {
	cmd, err := BuildCommand("", Request{Patterns: []string{"'foo bar'"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	args, err := proc.Split(cmd)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	want := []string{"rg", "--vimgrep", "--color=never", "--smart-case", "-e", "foo bar"}
	if !slices.Equal(args, want) {
		t.Fatalf("args=%q, want %q", args, want)
	}
}

func TestBuildCommand_AllFlags(t *testing.T) {
	req := Request{
		Patterns:   []string{"a", "b"},
		Paths:      []string{"src", "-weird"},
		Case:       CaseIgnore,
		Word:       true,
		LineRegexp: true,
		Fixed:      true,
		Perl:       true,
		Globs:      []string{"*.go"},
		Hidden:     true,
		NoIgnore:   true,
		MaxCount:   5,
		Context:    2,
	}
	cmd, err := BuildCommand("/usr/bin/rg", req)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	args, err := proc.Split(cmd)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	want := []string{
		"/usr/bin/rg", "--vimgrep", "--color=never", "--ignore-case", "--word-regexp",
		"--line-regexp", "--fixed-strings", "--pcre2", "--glob", "*.go", "--hidden",
		"--no-ignore", "--max-count", "5", "--context", "2", "-e", "a", "-e", "b",
		"--", "src", "-weird",
	}
	if !slices.Equal(args, want) {
		t.Fatalf("args=%q, want %q", args, want)
	}
}

func TestBuildCommand_NoPattern(t *testing.T) {
	if _, err := BuildCommand("rg", Request{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestHighlights_SmartCase(t *testing.T) {
	tr := regex.NewTranslator(8)
	hs := Highlights(tr, Request{Patterns: []string{"foo", "Bar", ""}})
	if len(hs) != 2 {
		t.Fatalf("highlights=%+v", hs)
	}
	if !hs[0].IgnoreCase || !strings.HasPrefix(hs[0].Regex, `\v\c`) {
		t.Fatalf("lower-case pattern should ignore case: %+v", hs[0])
	}
	if hs[1].IgnoreCase || !strings.HasPrefix(hs[1].Regex, `\v\C`) {
		t.Fatalf("mixed-case pattern should match case: %+v", hs[1])
	}
}

func TestHighlights_FixedAndSensitive(t *testing.T) {
	tr := regex.NewTranslator(8)
	hs := Highlights(tr, Request{Patterns: []string{"a.b"}, Fixed: true, Case: CaseSensitive})
	if len(hs) != 1 || !hs[0].Literal || hs[0].IgnoreCase || hs[0].Regex != `\V\Ca.b` {
		t.Fatalf("highlights=%+v", hs)
	}
}

func TestColumn(t *testing.T) {
	if c := Column("abc hello", "hello", false); c != 5 {
		t.Fatalf("col=%d", c)
	}
	if c := Column("x HeLLo", "hello", true); c != 3 {
		t.Fatalf("col=%d", c)
	}
	if c := Column("x HeLLo", "hello", false); c != 0 {
		t.Fatalf("col=%d", c)
	}
	if c := Column("abc", "", false); c != 0 {
		t.Fatalf("col=%d", c)
	}
}

func TestParseCase(t *testing.T) {
	if c, err := ParseCase(""); err != nil || c != CaseSmart {
		t.Fatalf("empty: %q %v", c, err)
	}
	if _, err := ParseCase("loud"); err == nil {
		t.Fatalf("expected error")
	}
}
