// Package watch turns file changes under a project root into single-file
// database updates.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"codenav/internal/core/indexer"
	"codenav/internal/core/walk"
	"codenav/internal/index/libpath"
	"codenav/internal/index/location"
)

// Scheduler receives one update request per changed file.
type Scheduler interface {
	ScheduleUpdate(path string, singleFile bool, auto bool) error
}

type Watcher struct {
	rootAbs string
	dbRel   string

	sched     Scheduler
	log       *slog.Logger
	filter    *walk.Filter
	debouncer *Debouncer
	debounce  time.Duration
	scheduled atomic.Int64

	watcher   *fsnotify.Watcher
	closeOnce sync.Once
	closed    chan struct{}
}

type Options struct {
	Debounce         time.Duration
	AdaptiveDebounce bool
	DebounceMin      time.Duration
	DebounceMax      time.Duration
	Walk             walk.Options
	// DBPath is the database directory. Changes below it are ignored.
	DBPath string
	Logger *slog.Logger
}

// ignoredNames are written by gtags and codenav itself.
var ignoredNames = append(slices.Clone(indexer.DatabaseFiles), libpath.FileName, libpath.FileName+".tmp", location.DirName)

func New(root string, sched Scheduler, opts Options) (*Watcher, error) {
	if sched == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	rootAbs = filepath.Clean(rootAbs)
	if strings.TrimSpace(rootAbs) == "" {
		return nil, fmt.Errorf("root is required")
	}

	dbRel := ""
	if opts.DBPath != "" {
		dbAbs := opts.DBPath
		if abs, err := filepath.Abs(dbAbs); err == nil {
			dbAbs = abs
		}
		if rel, err := filepath.Rel(rootAbs, dbAbs); err == nil {
			if rel != "." && !strings.HasPrefix(rel, "..") {
				dbRel = filepath.ToSlash(rel)
			}
		}
	}

	walkOpts := opts.Walk
	walkOpts.SkipNames = append(slices.Clone(walkOpts.SkipNames), ignoredNames...)
	filter, err := walk.NewFilter(rootAbs, walkOpts)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	minDelay := opts.DebounceMin
	if minDelay <= 0 {
		minDelay = 50 * time.Millisecond
	}
	maxDelay := opts.DebounceMax
	if maxDelay <= 0 {
		maxDelay = 500 * time.Millisecond
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	w := &Watcher{
		rootAbs:   rootAbs,
		dbRel:     dbRel,
		sched:     sched,
		log:       log,
		filter:    filter,
		debounce:  debounce,
		watcher:   fsw,
		closed:    make(chan struct{}),
	}
	w.debouncer = NewDebouncer(debounce, w.schedule)
	if opts.AdaptiveDebounce {
		w.debouncer.SetDelayFunc(func(count int) time.Duration {
			switch {
			case count <= 10:
				return minDelay
			case count <= 100:
				return minDelay * 2
			case count <= 500:
				return minDelay * 4
			default:
				return maxDelay
			}
		})
	}

	if err := w.addExistingDirs(); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

func (w *Watcher) Root() string {
	if w == nil {
		return ""
	}
	return w.rootAbs
}

func (w *Watcher) Debounce() time.Duration {
	if w == nil {
		return 0
	}
	return w.debounce
}

// Scheduled is the number of update requests handed to the scheduler.
func (w *Watcher) Scheduled() int64 {
	if w == nil {
		return 0
	}
	return w.scheduled.Load()
}

// Flush schedules the changes still waiting out the debounce.
func (w *Watcher) Flush() {
	if w == nil {
		return
	}
	w.debouncer.Flush()
}

func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}

	w.closeOnce.Do(func() {
		close(w.closed)
		if dropped := w.debouncer.Stop(); len(dropped) > 0 {
			w.log.Debug("pending changes dropped", "root", w.rootAbs, "paths", len(dropped))
		}
	})

	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}

func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.watcher == nil {
		return fmt.Errorf("watcher is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.closed:
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (w *Watcher) schedule(paths []string) {
	for _, rel := range paths {
		abs := filepath.Join(w.rootAbs, filepath.FromSlash(rel))
		if err := w.sched.ScheduleUpdate(abs, true, true); err != nil {
			w.log.Warn("schedule update", "path", abs, "err", err)
			continue
		}
		w.scheduled.Add(1)
	}
}

func (w *Watcher) addExistingDirs() error {
	return filepath.WalkDir(w.rootAbs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p == w.rootAbs {
			return w.watcher.Add(p)
		}

		rel, err := filepath.Rel(w.rootAbs, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if w.isDBRel(rel) || !w.filter.ShouldInclude(rel, true) {
			return filepath.SkipDir
		}

		return w.watcher.Add(p)
	})
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	rel, ok := w.toRel(ev.Name)
	if !ok {
		return
	}
	if w.isDBRel(rel) {
		return
	}

	if ev.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			_ = w.addDirRecursive(ev.Name)
			return
		}
	}

	if reason := w.filter.Reason(rel, false); reason != "" {
		w.log.Debug("watch skip", "path", rel, "reason", reason)
		return
	}

	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.debouncer.Push(rel)
	}
}

func (w *Watcher) toRel(abs string) (string, bool) {
	if strings.TrimSpace(abs) == "" {
		return "", false
	}

	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(w.rootAbs, abs)
	if err != nil {
		return "", false
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	return rel, true
}

func (w *Watcher) isDBRel(rel string) bool {
	if w.dbRel == "" {
		return false
	}
	return rel == w.dbRel || strings.HasPrefix(rel, w.dbRel+"/")
}

func (w *Watcher) addDirRecursive(absDir string) error {
	absDir = filepath.Clean(absDir)

	return filepath.WalkDir(absDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		rel, ok := w.toRel(p)
		if !ok {
			return nil
		}
		if w.isDBRel(rel) || !w.filter.ShouldInclude(rel, true) {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}
