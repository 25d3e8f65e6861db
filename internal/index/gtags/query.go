package gtags

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"codenav/internal/core/proc"
	"codenav/internal/core/query"
	"codenav/internal/core/root"
	"codenav/internal/core/search"
	"codenav/internal/index/libpath"
	"codenav/internal/model"
)

type Request struct {
	query.Request
	// Target is the current file. It selects the project root, and for
	// listings outside that root, the library database to read.
	Target string
}

// Query runs req against the database of its root and returns the output
// lines lazily. Pattern queries are followed by the results of every
// library database in sidecar order.
func (s *Store) Query(ctx context.Context, req Request) (proc.Sequence, error) {
	q := req.Request
	if q.PathStyle == "" {
		q.PathStyle = s.opts.PathStyle
	}
	if q.Kind == query.KindFiles && len(q.Files) == 0 && req.Target != "" {
		q.Files = []string{req.Target}
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	r, _, err := s.ResolveRoot(req.Target)
	if err != nil {
		return nil, err
	}
	dbpath := s.Locate(r)

	if !q.IsPattern() {
		return s.listing(ctx, q, req.Target, r, dbpath)
	}
	return s.search(ctx, q, r, dbpath)
}

// QueryAll drains Query. On failure no partial output is returned.
func (s *Store) QueryAll(ctx context.Context, req Request) ([]string, error) {
	seq, err := s.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	return proc.Collect(seq)
}

// Navigate runs req, parses the results and jumps straight to the only
// result when auto-jump is requested.
func (s *Store) Navigate(ctx context.Context, req Request, sink model.JumpSink) ([]model.Location, error) {
	lines, err := s.QueryAll(ctx, req)
	if err != nil {
		return nil, err
	}
	r, _, err := s.ResolveRoot(req.Target)
	if err != nil {
		return nil, err
	}
	locs := s.parse(req.Format(), lines, r)
	if sink != nil && req.AutoJumps() && len(locs) == 1 {
		if err := sink.Jump(locs[0]); err != nil {
			return locs, err
		}
	}
	return locs, nil
}

func (s *Store) parse(format model.Format, lines []string, dir string) []model.Location {
	locs := make([]model.Location, 0, len(lines))
	for _, line := range lines {
		loc, err := model.ParseLine(format, line)
		if err != nil {
			s.log.Debug("result line skipped", "line", line, "err", err)
			continue
		}
		locs = append(locs, loc.Abs(dir))
	}
	return locs
}

func (s *Store) listing(ctx context.Context, q query.Request, target string, r string, dbpath string) (proc.Sequence, error) {
	if target != "" {
		if abs, err := s.resolver.Abs(target); err == nil && !root.Within(r, abs) {
			if e, ok := s.libraryFor(abs); ok {
				r, dbpath = e.Root, e.DBPath
			}
		}
	}
	if !databaseExists(dbpath) {
		return nil, missingDatabase("open database", dbpath)
	}

	files := make([]string, 0, len(q.Files))
	for _, f := range q.Files {
		abs, err := s.resolver.Abs(f)
		if err != nil {
			return nil, err
		}
		files = append(files, abs)
	}
	q.Files = files

	cmd, err := query.BuildCommand(q, s.opts.Global)
	if err != nil {
		return nil, err
	}

	if q.Kind != query.KindProject {
		return s.execute(ctx, cmd, r, dbpath)
	}
	if lines, ok := s.cache.Lookup(cmd, filepath.Join(dbpath, "GTAGS")); ok {
		s.log.Debug("project listing replayed", "root", r, "lines", len(lines))
		return proc.FromLines(lines), nil
	}
	res, err := s.execute(ctx, cmd, r, dbpath)
	if err != nil {
		return nil, err
	}
	return &recording{res: res, cache: s.cache, cmd: cmd}, nil
}

// libraryFor looks abs up in the sidecar of the remembered primary root.
func (s *Store) libraryFor(abs string) (libpath.Entry, bool) {
	primary := s.resolver.Cached()
	if primary == "" {
		return libpath.Entry{}, false
	}
	entries, err := libpath.Read(s.Locate(primary))
	if err != nil {
		s.log.Warn("read library paths", "root", primary, "err", err)
		return libpath.Entry{}, false
	}
	return libpath.Lookup(entries, abs)
}

func (s *Store) search(ctx context.Context, q query.Request, r string, dbpath string) (proc.Sequence, error) {
	if !databaseExists(dbpath) {
		return nil, missingDatabase("open database", dbpath)
	}
	if q.Kind == query.KindContext {
		abs, err := s.resolver.Abs(q.File)
		if err != nil {
			return nil, err
		}
		q.File = abs
	}

	p, ok := query.Highlight(s.translator, q)
	s.setHighlight(p, ok, q.Append)

	cmd, err := query.BuildCommand(q, s.opts.Global)
	if err != nil {
		return nil, err
	}
	primary, err := s.execute(ctx, cmd, r, dbpath)
	if err != nil {
		return nil, err
	}
	parts := []proc.Sequence{primary}

	entries, err := libpath.Read(dbpath)
	if err != nil {
		s.log.Warn("read library paths", "root", r, "err", err)
	}
	if len(entries) > 0 {
		libCmd, err := query.LibraryCommand(q, s.opts.Global)
		if err != nil {
			_ = primary.Close()
			return nil, err
		}
		for _, e := range entries {
			if !databaseExists(e.DBPath) {
				s.log.Debug("library database missing", "root", e.Root, "dbpath", e.DBPath)
				continue
			}
			res, err := s.execute(ctx, libCmd, e.Root, e.DBPath)
			if err != nil {
				for _, started := range parts {
					_ = started.Close()
				}
				return nil, err
			}
			parts = append(parts, res)
		}
	}
	return proc.Concat(parts...), nil
}

// Grep runs ripgrep in the current root and replaces (or extends) the
// highlight overlays with its patterns.
func (s *Store) Grep(ctx context.Context, target string, req search.Request, appendTo bool) (proc.Sequence, error) {
	cmd, err := search.BuildCommand(s.opts.Rg, req)
	if err != nil {
		return nil, err
	}
	r, _, err := s.ResolveRoot(target)
	if err != nil {
		return nil, err
	}

	hs := search.Highlights(s.translator, req)
	s.mu.Lock()
	if !appendTo {
		s.highlights = nil
	}
	s.highlights = append(s.highlights, hs...)
	s.mu.Unlock()

	return s.run(ctx, cmd, r, nil)
}

func (s *Store) execute(ctx context.Context, cmd string, r string, dbpath string) (*proc.Result, error) {
	return s.run(ctx, cmd, r, childEnv(os.Environ(), r, dbpath))
}

func (s *Store) run(ctx context.Context, cmd string, dir string, env []string) (*proc.Result, error) {
	var res *proc.Result
	res, err := s.runner.Execute(ctx, cmd, proc.Options{
		Env:      env,
		Dir:      dir,
		MaxCount: s.opts.MaxCount,
		Cleanup:  func() { s.untrack(res) },
	})
	if err != nil {
		return nil, err
	}
	s.track(res)
	return res, nil
}

// childEnv copies base with GTAGSROOT and GTAGSDBPATH pointing at one
// database. The parent environment is left alone.
func childEnv(base []string, r string, dbpath string) []string {
	out := make([]string, 0, len(base)+2)
	for _, kv := range base {
		if strings.HasPrefix(kv, "GTAGSROOT=") || strings.HasPrefix(kv, "GTAGSDBPATH=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "GTAGSROOT="+r, "GTAGSDBPATH="+dbpath)
}

// recording stores a project listing in the replay cache once it has been
// read to the end.
type recording struct {
	res    *proc.Result
	cache  *query.Cache
	cmd    string
	lines  []string
	stored bool
}

func (r *recording) Next() bool {
	if r.res.Next() {
		r.lines = append(r.lines, r.res.Line())
		return true
	}
	if !r.stored && r.res.Complete() {
		r.cache.Store(r.cmd, r.lines)
		r.stored = true
	}
	return false
}

func (r *recording) Line() string { return r.res.Line() }

func (r *recording) Err() error { return r.res.Err() }

func (r *recording) Close() error { return r.res.Close() }
