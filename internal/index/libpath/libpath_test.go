package libpath

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	db := filepath.Join(t.TempDir(), "db")
	in := []Entry{
		{Root: "/usr/include", DBPath: "/cache/gtags/_usr_include"},
		{Root: "/opt/lib", DBPath: "/cache/gtags/_opt_lib"},
	}
	if err := Write(db, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(db, FileName))
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if string(raw) != "/usr/include\t/cache/gtags/_usr_include\n/opt/lib\t/cache/gtags/_opt_lib\n" {
		t.Fatalf("unexpected file: %q", raw)
	}

	got, err := Read(db)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0] != in[0] || got[1] != in[1] {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestRead_Missing(t *testing.T) {
	got, err := Read(t.TempDir())
	if err != nil || got != nil {
		t.Fatalf("expected empty, got %v %v", got, err)
	}
}

func TestLookup(t *testing.T) {
	entries := []Entry{{Root: filepath.FromSlash("/opt/lib"), DBPath: "x"}}
	if _, ok := Lookup(entries, filepath.FromSlash("/opt/lib/a/b.h")); !ok {
		t.Fatal("expected match")
	}
	if _, ok := Lookup(entries, filepath.FromSlash("/opt/library/b.h")); ok {
		t.Fatal("prefix sibling must not match")
	}
}
