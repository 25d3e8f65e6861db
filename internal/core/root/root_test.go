package root

import (
	"os"
	"path/filepath"
	"testing"
)

func mkdirs(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := os.MkdirAll(p, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", p, err)
		}
	}
}

func TestNearestAncestor(t *testing.T) {
	base := t.TempDir()
	proj := filepath.Join(base, "proj")
	deep := filepath.Join(proj, "a", "b")
	mkdirs(t, filepath.Join(proj, ".git"), deep)

	if got := NearestAncestor([]string{".git"}, deep); got != proj {
		t.Fatalf("expected %s, got %s", proj, got)
	}
	if got := NearestAncestor([]string{".git"}, proj); got != proj {
		t.Fatalf("path itself should count, got %s", got)
	}
	if got := NearestAncestor([]string{".nope-marker"}, deep); got != "" {
		t.Fatalf("expected empty, got %s", got)
	}
}

func TestWithin_ComponentWise(t *testing.T) {
	root := filepath.FromSlash("/home/u/proj")
	if !Within(root, filepath.FromSlash("/home/u/proj/a.go")) {
		t.Fatal("expected file under root")
	}
	if !Within(root, root) {
		t.Fatal("root contains itself")
	}
	if Within(root, filepath.FromSlash("/home/u/project2/a.go")) {
		t.Fatal("sibling with shared prefix must not match")
	}
}

func TestResolver_FallbackChain(t *testing.T) {
	base := t.TempDir()
	proj := filepath.Join(base, "proj")
	other := filepath.Join(base, "other")
	wdProj := filepath.Join(base, "wdproj")
	mkdirs(t, filepath.Join(proj, ".git"), filepath.Join(proj, "src"), other, filepath.Join(wdProj, ".hg"))

	wd := wdProj
	r := &Resolver{Markers: []string{".git", ".hg"}, Getwd: func() (string, error) { return wd, nil }}

	got, found, err := r.Resolve(filepath.Join(proj, "src", "main.go"))
	if err != nil || !found || got != proj {
		t.Fatalf("expected marker root %s, got %s found=%v err=%v", proj, got, found, err)
	}

	// cached root is reused for files below it
	got, found, _ = r.Resolve(filepath.Join(proj, "x.go"))
	if got != proj || !found {
		t.Fatalf("expected cached root, got %s", got)
	}

	// file without marker falls back to the working directory's ancestor
	got, found, _ = r.Resolve(filepath.Join(other, "x.go"))
	if got != wdProj || !found {
		t.Fatalf("expected cwd ancestor %s, got %s found=%v", wdProj, got, found)
	}

	// no marker anywhere: the working directory itself
	wd = other
	r2 := &Resolver{Markers: []string{".git", ".hg"}, Getwd: func() (string, error) { return wd, nil }}
	got, found, _ = r2.Resolve(filepath.Join(other, "y.go"))
	if got != other || found {
		t.Fatalf("expected cwd %s without marker, got %s found=%v", other, got, found)
	}
}

func TestResolver_EmptyFilename(t *testing.T) {
	base := t.TempDir()
	mkdirs(t, filepath.Join(base, ".git"))
	r := &Resolver{Markers: []string{".git"}, Getwd: func() (string, error) { return base, nil }}

	abs, err := r.Abs("")
	if err != nil || abs != filepath.Join(base, "no_name") {
		t.Fatalf("unexpected abs: %s %v", abs, err)
	}
	got, found, err := r.Resolve("")
	if err != nil || got != base || !found {
		t.Fatalf("expected %s, got %s found=%v err=%v", base, got, found, err)
	}
}

func TestResolver_DirectoryIsItsOwnCandidate(t *testing.T) {
	base := t.TempDir()
	proj := filepath.Join(base, "proj")
	mkdirs(t, filepath.Join(proj, ".git"))
	r := &Resolver{Markers: []string{".git"}, Getwd: func() (string, error) { return base, nil }}

	got, found, err := r.Resolve(proj)
	if err != nil || !found || got != proj {
		t.Fatalf("expected %s, got %s found=%v err=%v", proj, got, found, err)
	}
}
