package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) ScheduleUpdate(path string, singleFile bool, auto bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !singleFile || !auto {
		r.calls = append(r.calls, "bad:"+path)
		return nil
	}
	r.calls = append(r.calls, path)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func TestNew_Debounce(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, &recorder{}, Options{Debounce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	if w.Debounce() != 50*time.Millisecond {
		t.Fatalf("expected debounce 50ms, got=%v", w.Debounce())
	}
	if w.Root() != filepath.Clean(root) {
		t.Fatalf("root=%q", w.Root())
	}
}

func TestNew_RequiresScheduler(t *testing.T) {
	if _, err := New(t.TempDir(), nil, Options{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWatcher_SchedulesChangedFiles(t *testing.T) {
	root := t.TempDir()
	dbDir := filepath.Join(root, "tags")
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	rec := &recorder{}
	w, err := New(root, rec, Options{Debounce: 50 * time.Millisecond, DBPath: dbDir})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// Database writes must not feed back into updates.
	_ = os.WriteFile(filepath.Join(root, "GTAGS"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(dbDir, "GPATH"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(dbDir, "other"), []byte("x"), 0o644)

	src := filepath.Join(root, "a.c")
	if err := os.WriteFile(src, []byte("int a;\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(rec.snapshot()) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	got := rec.snapshot()
	if !slices.Equal(got, []string{src}) {
		t.Fatalf("calls=%q, want only %q", got, src)
	}
	if w.Scheduled() != 1 {
		t.Fatalf("scheduled=%d", w.Scheduled())
	}
}
