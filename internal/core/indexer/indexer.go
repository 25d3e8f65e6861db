// Package indexer runs gtags to build and incrementally update tag databases.
package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"codenav/internal/core/proc"
	"codenav/internal/core/walk"
	"codenav/internal/index/libpath"
)

// Source selects where gtags gets its file list from.
type Source string

const (
	// SourceGtags lets gtags find files itself.
	SourceGtags Source = "gtags"
	// SourceWalk pipes the builtin gitignore-aware listing on stdin.
	SourceWalk Source = "walk"
	// SourceCommand pipes the output of a configured shell command.
	SourceCommand Source = "command"
)

// DatabaseFiles are the files gtags writes into a database directory.
var DatabaseFiles = []string{"GTAGS", "GRTAGS", "GPATH"}

type Options struct {
	Gtags          string
	Label          string
	Conf           string
	AcceptDotfiles bool
	SkipUnreadable bool
	SkipSymlink    string

	Source Source
	// FilesCommand maps a root marker or "default" to a listing command.
	FilesCommand map[string]string
	Walk         walk.Options
	// LibraryLimit bounds concurrent library builds.
	LibraryLimit int

	Env    []string
	Runner *proc.Runner
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) runner() *proc.Runner {
	if o.Runner == nil {
		return proc.NewRunner()
	}
	return o.Runner
}

func (o Options) gtagsArgs(initial bool) []string {
	bin := o.Gtags
	if bin == "" {
		bin = "gtags"
	}
	args := []string{bin}
	if initial {
		args = append(args, "-i")
	}
	if o.AcceptDotfiles {
		args = append(args, "--accept-dotfiles")
	}
	if o.SkipUnreadable {
		args = append(args, "--skip-unreadable")
	}
	switch o.SkipSymlink {
	case "":
	case "all":
		args = append(args, "--skip-symlink")
	default:
		args = append(args, "--skip-symlink="+o.SkipSymlink)
	}
	if o.Conf != "" {
		args = append(args, "--gtagsconf", o.Conf)
	}
	label := o.Label
	if label == "" {
		label = "default"
	}
	return append(args, "--gtagslabel", label)
}

// FilesystemError reports a database directory that could not be read or
// written.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &FilesystemError{Op: "create database dir", Path: dir, Err: err}
	}
	return nil
}

// Build runs a full gtags pass over root, writing the database to dbpath.
func Build(ctx context.Context, root string, dbpath string, opts Options) error {
	root = filepath.Clean(root)
	if strings.TrimSpace(root) == "" {
		return fmt.Errorf("root is required")
	}
	if strings.TrimSpace(dbpath) == "" {
		return fmt.Errorf("dbpath is required")
	}
	if err := ensureDir(dbpath); err != nil {
		return err
	}

	args := opts.gtagsArgs(true)
	var stdin io.Reader
	var cmd string
	switch opts.Source {
	case SourceWalk:
		var buf bytes.Buffer
		walkOpts := opts.Walk
		walkOpts.Dotfiles = walkOpts.Dotfiles || opts.AcceptDotfiles
		if _, err := walk.WriteList(&buf, root, walkOpts); err != nil {
			return fmt.Errorf("list files under %s: %w", root, err)
		}
		stdin = &buf
		cmd = proc.Quote(append(args, "-f", "-", dbpath)...)
	case SourceCommand:
		list := FilesCommandFor(root, opts.FilesCommand)
		if list == "" {
			return fmt.Errorf("no files command configured for %s", root)
		}
		cmd = pipeline(list, proc.Quote(append(args, "-f", "-", dbpath)...))
	default:
		cmd = proc.Quote(append(args, dbpath)...)
	}

	opts.logger().Info("gtags build", "root", root, "dbpath", dbpath, "source", string(opts.Source))
	if err := run(ctx, opts, cmd, root, stdin); err != nil {
		return fmt.Errorf("gtags build %s: %w", root, err)
	}
	return nil
}

// UpdateFile incrementally updates the entry for one file.
func UpdateFile(ctx context.Context, root string, dbpath string, file string, opts Options) error {
	if strings.TrimSpace(file) == "" {
		return fmt.Errorf("file is required")
	}
	args := append(opts.gtagsArgs(false), "--single-update", file, dbpath)
	opts.logger().Debug("gtags single update", "root", root, "file", file)
	if err := run(ctx, opts, proc.Quote(args...), root, nil); err != nil {
		return fmt.Errorf("gtags update %s: %w", file, err)
	}
	return nil
}

// BuildLibraries records the library databases of root in its sidecar and
// rebuilds each of them. Missing paths and root itself are skipped; one
// failing library does not stop the others.
func BuildLibraries(ctx context.Context, root string, dbpath string, libs []string, locate func(string) string, opts Options) error {
	if len(libs) == 0 {
		return nil
	}
	if err := ensureDir(dbpath); err != nil {
		return err
	}

	var entries []libpath.Entry
	var present []string
	for _, p := range libs {
		if _, err := os.Stat(p); err != nil {
			opts.logger().Debug("library path skipped", "path", p, "err", err)
			continue
		}
		present = append(present, p)
		if p != root {
			entries = append(entries, libpath.Entry{Root: p, DBPath: locate(p)})
		}
	}
	if err := libpath.Write(dbpath, entries); err != nil {
		return &FilesystemError{Op: "write library paths", Path: dbpath, Err: err}
	}

	limit := opts.LibraryLimit
	if limit <= 0 {
		limit = max(1, min(4, runtime.NumCPU()))
	}
	libOpts := opts
	libOpts.Source = SourceGtags

	var (
		g    errgroup.Group
		errs = make([]error, len(present))
	)
	g.SetLimit(limit)
	for i, p := range present {
		g.Go(func() error {
			libdb := locate(p)
			if err := ensureDir(libdb); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = Build(ctx, p, libdb, libOpts)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// FilesCommandFor picks the listing command for root: the entry of the
// first marker present in root, else "default".
func FilesCommandFor(root string, commands map[string]string) string {
	if len(commands) == 0 {
		return ""
	}
	markers := make([]string, 0, len(commands))
	for k := range commands {
		if k != "default" {
			markers = append(markers, k)
		}
	}
	slices.SortFunc(markers, func(a, b string) int {
		if d := markerRank(a) - markerRank(b); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	for _, m := range markers {
		if st, err := os.Stat(filepath.Join(root, m)); err == nil && st.IsDir() {
			return commands[m]
		}
	}
	return commands["default"]
}

func markerRank(m string) int {
	switch m {
	case ".git":
		return 0
	case ".hg":
		return 1
	default:
		return 2
	}
}

func pipeline(list string, consumer string) string {
	if runtime.GOOS == "windows" {
		return "( " + list + " ) | " + consumer
	}
	return "{ " + list + "; } | " + consumer
}

func run(ctx context.Context, opts Options, cmd string, dir string, stdin io.Reader) error {
	res, err := opts.runner().Execute(ctx, cmd, proc.Options{
		Env:          opts.Env,
		Dir:          dir,
		Stdin:        stdin,
		IgnoreStderr: true,
		CheckExit:    true,
	})
	if err != nil {
		return err
	}
	for res.Next() {
		opts.logger().Debug("gtags", "out", res.Line())
	}
	return res.Close()
}
