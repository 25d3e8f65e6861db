// Package gtags manages the lifecycle of GNU Global tag databases: where they
// live, when they are (re)built, how they are queried and removed.
package gtags

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"codenav/internal/config"
	"codenav/internal/core/indexer"
	"codenav/internal/core/proc"
	"codenav/internal/core/query"
	"codenav/internal/core/regex"
	"codenav/internal/core/root"
	"codenav/internal/core/worker"
	"codenav/internal/index/location"
	"codenav/internal/index/registry"
	"codenav/internal/model"
)

type Options struct {
	Markers   []string
	Storage   location.Mode
	CacheDir  string
	Gutentags bool

	Global    query.Global
	Indexer   indexer.Options
	LibPaths  []string
	PathStyle string
	MaxCount  int
	// Rg is the ripgrep binary used by Grep.
	Rg string

	Registry   registry.Registry
	Runner     *proc.Runner
	Translator *regex.Translator
	// Workdir stands in for the editor's working directory and File for
	// the buffer a query without an explicit path applies to.
	Workdir model.WorkdirProvider
	File    model.FileProvider
	// MarkerSource, when set, replaces Markers.
	MarkerSource model.MarkerProvider

	QueueSize int
	Logger    *slog.Logger
}

// OptionsFromConfig maps loaded settings onto store options. Registry,
// runner and logger are left for the caller.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := location.ParseMode(cfg.Storage)
	if err != nil {
		return Options{}, err
	}
	g := cfg.Gtags
	return Options{
		Markers:   cfg.RootMarkers,
		Storage:   mode,
		CacheDir:  cfg.CacheDir,
		Gutentags: cfg.Gutentags,
		Global:    query.Global{Bin: g.Global, Label: g.Label, Conf: g.Conf},
		Indexer: indexer.Options{
			Gtags:          g.Gtags,
			Label:          g.Label,
			Conf:           g.Conf,
			AcceptDotfiles: g.AcceptDotfiles,
			SkipUnreadable: g.SkipUnreadable,
			SkipSymlink:    g.SkipSymlink,
			Source:         indexer.Source(g.Source),
			FilesCommand:   g.FilesCommand,
		},
		LibPaths:  g.LibPaths,
		PathStyle: g.PathStyle,
		MaxCount:  cfg.MaxCount,
		Rg:        cfg.Rg.Bin,
	}, nil
}

// Store is one IndexStore: it owns a root resolver, a replay cache, the
// current highlight overlays and a single background worker.
type Store struct {
	opts       Options
	log        *slog.Logger
	resolver   *root.Resolver
	cache      *query.Cache
	runner     *proc.Runner
	translator *regex.Translator
	registry   registry.Registry
	queue      *worker.Queue
	locOpts    location.Options

	mu         sync.Mutex
	highlights []regex.Pattern
	running    map[*proc.Result]struct{}
	closed     bool
}

func New(opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	runner := opts.Runner
	if runner == nil {
		runner = proc.NewRunner()
		runner.Logger = log
	}
	tr := opts.Translator
	if tr == nil {
		tr = regex.NewTranslator(256)
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.Nop{}
	}
	markers := opts.Markers
	if opts.MarkerSource != nil {
		markers = opts.MarkerSource.RootMarkers()
	}
	if len(markers) == 0 {
		markers = root.DefaultMarkers
	}
	opts.Markers = markers

	resolver := root.NewResolver(markers)
	if opts.Workdir != nil {
		resolver.Getwd = opts.Workdir.Getwd
	}

	opts.Indexer.Runner = runner
	opts.Indexer.Logger = log

	return &Store{
		opts:       opts,
		log:        log,
		resolver:   resolver,
		cache:      query.NewCache(),
		runner:     runner,
		translator: tr,
		registry:   reg,
		queue:      worker.New(worker.Options{Size: opts.QueueSize, Logger: log}),
		locOpts: location.Options{
			Mode:      opts.Storage,
			CacheDir:  opts.CacheDir,
			Markers:   markers,
			Gutentags: opts.Gutentags,
		},
		running: map[*proc.Result]struct{}{},
	}
}

// ResolveRoot returns the project root for path and whether it was found
// through a marker.
func (s *Store) ResolveRoot(path string) (string, bool, error) {
	r, found, err := s.resolver.Resolve(path)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrNoRoot, err)
	}
	if r == "" {
		return "", false, ErrNoRoot
	}
	return r, found, nil
}

// Locate returns the database directory for root.
func (s *Store) Locate(r string) string {
	return location.Locate(r, s.locOpts)
}

// RootDB resolves filename to its root and database directory, and reports
// whether a database has been built there. An empty filename means the
// current file, when a File provider is configured.
func (s *Store) RootDB(filename string) (r string, dbpath string, exists bool, err error) {
	if filename == "" && s.opts.File != nil {
		filename = s.opts.File.CurrentFile()
	}
	r, _, err = s.ResolveRoot(filename)
	if err != nil {
		return "", "", false, err
	}
	dbpath = s.Locate(r)
	return r, dbpath, databaseExists(dbpath), nil
}

func (s *Store) Cache() *query.Cache { return s.cache }

// Databases lists the databases this store's registry knows about.
func (s *Store) Databases() ([]registry.Record, error) {
	return s.registry.List()
}

// Highlights returns the overlays of the most recent pattern queries.
func (s *Store) Highlights() []regex.Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]regex.Pattern, len(s.highlights))
	copy(out, s.highlights)
	return out
}

// HighlightGroup is the group name passed to highlight sinks.
const HighlightGroup = "CodenavMatch"

// ApplyHighlights pushes the current overlays to sink.
func (s *Store) ApplyHighlights(sink model.HighlightSink) error {
	if sink == nil {
		return nil
	}
	var errs []error
	for _, p := range s.Highlights() {
		if err := sink.AddHighlight(p.Regex, HighlightGroup); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) setHighlight(p regex.Pattern, ok bool, appendTo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !appendTo {
		s.highlights = nil
	}
	if ok {
		s.highlights = append(s.highlights, p)
	}
}

// Cleanup kills every process started by this store that is still running.
func (s *Store) Cleanup() {
	s.mu.Lock()
	running := make([]*proc.Result, 0, len(s.running))
	for r := range s.running {
		running = append(running, r)
	}
	s.mu.Unlock()
	for _, r := range running {
		r.Kill()
	}
}

// Close stops the worker after its queued tasks finish, then kills running
// queries.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.queue.Close()
	s.Cleanup()
	return err
}

func (s *Store) track(r *proc.Result) {
	s.mu.Lock()
	s.running[r] = struct{}{}
	s.mu.Unlock()
}

func (s *Store) untrack(r *proc.Result) {
	s.mu.Lock()
	delete(s.running, r)
	s.mu.Unlock()
}

func databaseExists(dbpath string) bool {
	st, err := os.Stat(filepath.Join(dbpath, "GTAGS"))
	return err == nil && st.Mode().IsRegular()
}

func missingDatabase(op string, dbpath string) error {
	return &FilesystemError{Op: op, Path: dbpath, Err: fs.ErrNotExist}
}
