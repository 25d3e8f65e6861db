package gtags

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codenav/internal/core/indexer"
	"codenav/internal/core/root"
	"codenav/internal/index/registry"
)

// ScheduleUpdate queues a refresh of the database that path belongs to.
// Tasks run one at a time in submission order.
//
// With singleFile set and a database in place only path is re-tagged.
// Otherwise a manual trigger rebuilds the whole root, while an automatic
// one only bootstraps a missing database for a root found through a marker.
func (s *Store) ScheduleUpdate(path string, singleFile bool, auto bool) error {
	return s.queue.Submit("update "+path, func(ctx context.Context) error {
		return s.update(ctx, path, singleFile, auto)
	})
}

// Flush waits for every update scheduled so far.
func (s *Store) Flush(ctx context.Context) error {
	return s.queue.Flush(ctx)
}

// Pending is the number of queued updates.
func (s *Store) Pending() int {
	return s.queue.Pending()
}

func (s *Store) update(ctx context.Context, path string, singleFile bool, auto bool) error {
	r, found, err := s.ResolveRoot(path)
	if err != nil {
		s.log.Debug("update skipped", "path", path, "err", err)
		return nil
	}
	abs, err := s.resolver.Abs(path)
	if err != nil {
		return err
	}
	if !root.Within(r, abs) {
		s.log.Debug("update skipped, path outside root", "root", r, "path", abs)
		return nil
	}
	dbpath := s.Locate(r)

	if len(s.opts.LibPaths) > 0 {
		if err := indexer.BuildLibraries(ctx, r, dbpath, s.opts.LibPaths, s.Locate, s.opts.Indexer); err != nil {
			s.log.Warn("library update failed", "root", r, "err", err)
		}
	}

	exists := databaseExists(dbpath)
	switch {
	case singleFile && exists:
		err := indexer.UpdateFile(ctx, r, dbpath, abs, s.opts.Indexer)
		if err != nil {
			return err
		}
	case !auto, !exists && found:
		if err := indexer.Build(ctx, r, dbpath, s.opts.Indexer); err != nil {
			return err
		}
	default:
		return nil
	}

	s.record(r, dbpath)
	return nil
}

func (s *Store) record(r string, dbpath string) {
	rec := registry.Record{
		Root:      r,
		DBPath:    dbpath,
		Mode:      string(s.opts.Storage),
		UpdatedAt: time.Now(),
	}
	if st, err := os.Stat(filepath.Join(dbpath, "GTAGS")); err == nil {
		rec.MTime = st.ModTime().UnixNano()
	}
	if err := s.registry.Put(rec); err != nil {
		s.log.Warn("record database", "root", r, "err", fmt.Errorf("registry: %w", err))
	}
}
