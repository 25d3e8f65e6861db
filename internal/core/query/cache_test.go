package query

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, path string, mt time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

type kvRecorder map[string]any

func (r kvRecorder) KV(key string, value any) { r[key] = value }
func (r kvRecorder) Timer(string) func()      { return func() {} }

func TestCache_ReplayUntilModified(t *testing.T) {
	gtags := filepath.Join(t.TempDir(), "GTAGS")
	base := time.Unix(1_700_000_000, 0)
	touch(t, gtags, base)

	c := NewCache()
	rec := kvRecorder{}
	c.Explain = rec

	if _, ok := c.Lookup("cmd", gtags); ok {
		t.Fatalf("first lookup should miss")
	}
	c.Store("cmd", []string{"a", "b"})

	lines, ok := c.Lookup("cmd", gtags)
	if !ok || len(lines) != 2 || lines[0] != "a" {
		t.Fatalf("expected replay, got %v %v", lines, ok)
	}
	if rec["cache_hit"] != "replay" {
		t.Fatalf("explain cache_hit=%v", rec["cache_hit"])
	}

	touch(t, gtags, base.Add(time.Second))
	if _, ok := c.Lookup("cmd", gtags); ok {
		t.Fatalf("modified database should miss")
	}
	if rec["cache_hit"] != "miss" {
		t.Fatalf("explain cache_hit=%v", rec["cache_hit"])
	}
}

func TestCache_DifferentCommandMisses(t *testing.T) {
	gtags := filepath.Join(t.TempDir(), "GTAGS")
	touch(t, gtags, time.Unix(1_700_000_000, 0))

	c := NewCache()
	c.Lookup("one", gtags)
	c.Store("one", []string{"a"})

	if _, ok := c.Lookup("two", gtags); ok {
		t.Fatalf("other command should miss")
	}
	// Store for a command that is no longer current is dropped.
	c.Store("one", []string{"a"})
	if _, ok := c.Lookup("one", gtags); ok {
		t.Fatalf("stale store should be ignored")
	}
}

func TestCache_EmptyListingNotReplayed(t *testing.T) {
	gtags := filepath.Join(t.TempDir(), "GTAGS")
	touch(t, gtags, time.Unix(1_700_000_000, 0))

	c := NewCache()
	c.Lookup("cmd", gtags)
	c.Store("cmd", nil)
	if _, ok := c.Lookup("cmd", gtags); ok {
		t.Fatalf("empty listing should not replay")
	}
}

func TestCache_StatErrorCountsAsModified(t *testing.T) {
	c := NewCache()
	calls := 0
	c.Stat = func(string) (fs.FileInfo, error) {
		calls++
		return nil, errors.New("boom")
	}
	if !c.Modified("GTAGS") || !c.Modified("GTAGS") {
		t.Fatalf("stat error should count as modified")
	}
	if calls != 2 {
		t.Fatalf("expected stat on every check, got %d", calls)
	}
}

func TestCache_ModifiedRecordsTimestamp(t *testing.T) {
	gtags := filepath.Join(t.TempDir(), "GTAGS")
	touch(t, gtags, time.Unix(1_700_000_000, 0))

	c := NewCache()
	if !c.Modified(gtags) {
		t.Fatalf("first check should report modified")
	}
	if c.Modified(gtags) {
		t.Fatalf("second check should report unchanged")
	}
}

func TestCache_Reset(t *testing.T) {
	gtags := filepath.Join(t.TempDir(), "GTAGS")
	touch(t, gtags, time.Unix(1_700_000_000, 0))

	c := NewCache()
	c.Lookup("cmd", gtags)
	c.Store("cmd", []string{"a"})
	c.Reset()
	if _, ok := c.Lookup("cmd", gtags); ok {
		t.Fatalf("reset cache should miss")
	}
}
