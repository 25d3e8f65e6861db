package gtags

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"codenav/internal/core/indexer"
	"codenav/internal/index/libpath"
	"codenav/internal/index/location"
	"codenav/internal/index/registry"
	"codenav/internal/model"
)

// Remove deletes the database of path's root once confirm agrees. In
// project mode only the gtags files are deleted; otherwise the whole
// database directory goes.
func (s *Store) Remove(ctx context.Context, path string, confirm model.Confirmer) error {
	r, _, err := s.ResolveRoot(path)
	if err != nil {
		return err
	}
	dbpath := s.Locate(r)
	project := s.opts.Storage == location.ModeProject

	if project {
		if !databaseExists(dbpath) {
			return missingDatabase("remove database", dbpath)
		}
	} else if st, err := os.Stat(dbpath); err != nil || !st.IsDir() {
		return missingDatabase("remove database", dbpath)
	}

	if confirm == nil {
		return ErrCancelled
	}
	ok, err := confirm.Confirm(fmt.Sprintf("Delete database %s? (y/N)", dbpath))
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		return ErrCancelled
	}

	// Let an update already queued for this root finish first.
	if err := s.queue.Flush(ctx); err != nil {
		return err
	}

	if project {
		names := append(append([]string{}, indexer.DatabaseFiles...), libpath.FileName)
		for _, name := range names {
			p := filepath.Join(dbpath, name)
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return &FilesystemError{Op: "remove database", Path: p, Err: err}
			}
		}
	} else if err := os.RemoveAll(dbpath); err != nil {
		return &FilesystemError{Op: "remove database", Path: dbpath, Err: err}
	}

	s.cache.Reset()
	if err := s.registry.Delete(r); err != nil && !errors.Is(err, registry.ErrNotFound) {
		s.log.Warn("forget database", "root", r, "err", err)
	}
	s.log.Info("database removed", "root", r, "dbpath", dbpath)
	return nil
}
