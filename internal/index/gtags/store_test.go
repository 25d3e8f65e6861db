//go:build !windows

package gtags

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"codenav/internal/core/proc"
	"codenav/internal/core/query"
	"codenav/internal/index/libpath"
	"codenav/internal/index/location"
	"codenav/internal/index/registry"
	"codenav/internal/model"
)

const fakeGlobal = `#!/bin/sh
printf '%s\n' "$*" >> '@LOG@'
case " $* " in
  *" -P "*) printf 'a.c\nb.c\n' ;;
  *" -L- "*) while read f; do printf 'sym\t%s\t1\n' "$f"; done ;;
  *" -f "*) printf 'main\ta.c\t2\n' ;;
  *FAIL*) echo "global: broken database" >&2; exit 1 ;;
  *HANG*) sleep 30 ;;
  *) case "$GTAGSROOT" in *slowlib*) sleep 0.3 ;; esac
     printf '%s/x.c\t3\tfrom %s\n' "$GTAGSROOT" "$(basename "$GTAGSROOT")" ;;
esac
`

const fakeGtags = `#!/bin/sh
mkdir '@LOCK@' 2>/dev/null || echo overlap >> '@LOG@'
printf '%s\n' "$*" >> '@LOG@'
for last; do :; done
mkdir -p "$last"
sleep 0.05
touch "$last/GTAGS" "$last/GRTAGS" "$last/GPATH"
rmdir '@LOCK@'
`

type fixture struct {
	dir       string
	root      string
	file      string
	elsewhere string
	globalLog string
	gtagsLog  string
}

func writeScript(t *testing.T, path string, body string, repl ...string) {
	t.Helper()
	body = strings.NewReplacer(repl...).Replace(body)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
}

func lines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimRight(string(b), "\n"), "\n")
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:       dir,
		root:      filepath.Join(dir, "proj"),
		elsewhere: filepath.Join(dir, "elsewhere"),
		globalLog: filepath.Join(dir, "global.log"),
		gtagsLog:  filepath.Join(dir, "gtags.log"),
	}
	f.file = filepath.Join(f.root, "src", "deep", "a.c")
	for _, d := range []string{filepath.Join(f.root, ".git"), filepath.Dir(f.file), f.elsewhere} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(f.file, []byte("int main;\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	writeScript(t, filepath.Join(dir, "global"), fakeGlobal, "@LOG@", f.globalLog)
	writeScript(t, filepath.Join(dir, "gtags"), fakeGtags, "@LOG@", f.gtagsLog, "@LOCK@", filepath.Join(dir, "lock"))
	return f
}

func (f *fixture) options(mode location.Mode) Options {
	opts := Options{
		Markers:  []string{".git"},
		Storage:  mode,
		CacheDir: filepath.Join(f.dir, "cache"),
		Global:   query.Global{Bin: filepath.Join(f.dir, "global")},
		Workdir:  model.WorkdirFunc(func() (string, error) { return f.elsewhere, nil }),
	}
	opts.Indexer.Gtags = filepath.Join(f.dir, "gtags")
	return opts
}

func (f *fixture) store(t *testing.T, mode location.Mode) *Store {
	t.Helper()
	s := New(f.options(mode))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func build(t *testing.T, s *Store, path string) {
	t.Helper()
	if err := s.ScheduleUpdate(path, false, false); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestResolveRoot_MarkerThreeLevelsUp(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)

	r, found, err := s.ResolveRoot(f.file)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r != f.root || !found {
		t.Fatalf("root=%q found=%v, want %q", r, found, f.root)
	}
}

func TestLocate_Idempotent(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)

	a, b := s.Locate(f.root), s.Locate(f.root)
	if a != b {
		t.Fatalf("locate not stable: %q vs %q", a, b)
	}
	if filepath.Dir(a) != filepath.Join(f.dir, "cache", "gtags") {
		t.Fatalf("cache db outside cache dir: %q", a)
	}
	if strings.Contains(filepath.Base(a), "/") {
		t.Fatalf("folder not sanitized: %q", a)
	}
}

func TestRootDB(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeProject)

	r, db, exists, err := s.RootDB(f.file)
	if err != nil || r != f.root || db != f.root || exists {
		t.Fatalf("before build: %q %q %v %v", r, db, exists, err)
	}
	build(t, s, f.file)
	if _, _, exists, _ := s.RootDB(f.file); !exists {
		t.Fatalf("expected database after build")
	}
}

func TestRootDB_EditorProviders(t *testing.T) {
	f := newFixture(t)
	opts := f.options(location.ModeProject)
	opts.Markers = nil
	opts.MarkerSource = model.Markers{".git"}
	opts.File = model.FileFunc(func() string { return f.file })
	s := New(opts)
	t.Cleanup(func() { _ = s.Close() })

	r, db, _, err := s.RootDB("")
	if err != nil {
		t.Fatalf("RootDB: %v", err)
	}
	if r != f.root || db != f.root {
		t.Fatalf("root=%q db=%q", r, db)
	}
}

func TestQuery_ProjectListingReplayedUntilModified(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)
	build(t, s, f.file)

	req := Request{Request: query.Request{Kind: query.KindProject}, Target: f.file}
	first, err := s.QueryAll(context.Background(), req)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	want := []string{"sym\ta.c\t1", "sym\tb.c\t1"}
	if !slices.Equal(first, want) {
		t.Fatalf("lines=%q, want %q", first, want)
	}
	calls := len(lines(t, f.globalLog))

	second, err := s.QueryAll(context.Background(), req)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !slices.Equal(second, want) {
		t.Fatalf("replayed lines=%q", second)
	}
	if got := len(lines(t, f.globalLog)); got != calls {
		t.Fatalf("expected replay without invoking global, calls %d -> %d", calls, got)
	}

	gtagsFile := filepath.Join(s.Locate(f.root), "GTAGS")
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(gtagsFile, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if _, err := s.QueryAll(context.Background(), req); err != nil {
		t.Fatalf("query: %v", err)
	}
	if got := len(lines(t, f.globalLog)); got == calls {
		t.Fatalf("modified database should re-run global")
	}
}

func TestQuery_EnvironmentSetOnChildOnly(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)
	build(t, s, f.file)

	got, err := s.QueryAll(context.Background(), Request{
		Request: query.Request{Kind: query.KindDefinition, Pattern: "main"},
		Target:  f.file,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	want := []string{f.root + "/x.c\t3\tfrom proj"}
	if !slices.Equal(got, want) {
		t.Fatalf("lines=%q, want %q", got, want)
	}
	if _, ok := os.LookupEnv("GTAGSROOT"); ok {
		t.Fatalf("parent environment was modified")
	}
}

func TestQuery_LibrariesFollowPrimaryInOrder(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)
	build(t, s, f.file)

	var entries []libpath.Entry
	for _, name := range []string{"slowlib", "fastlib", "gonelib"} {
		libRoot := filepath.Join(f.dir, name)
		libDB := filepath.Join(f.dir, "db-"+name)
		if err := os.MkdirAll(libRoot, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if name != "gonelib" {
			if err := os.MkdirAll(libDB, 0o755); err != nil {
				t.Fatalf("mkdir: %v", err)
			}
			if err := os.WriteFile(filepath.Join(libDB, "GTAGS"), nil, 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
		}
		entries = append(entries, libpath.Entry{Root: libRoot, DBPath: libDB})
	}
	if err := libpath.Write(s.Locate(f.root), entries); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	got, err := s.QueryAll(context.Background(), Request{
		Request: query.Request{Kind: query.KindReference, Pattern: "main"},
		Target:  f.file,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	want := []string{
		f.root + "/x.c\t3\tfrom proj",
		filepath.Join(f.dir, "slowlib") + "/x.c\t3\tfrom slowlib",
		filepath.Join(f.dir, "fastlib") + "/x.c\t3\tfrom fastlib",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("lines=%q, want %q", got, want)
	}
	var quiet int
	for _, l := range lines(t, f.globalLog) {
		if strings.HasSuffix(l, " -q") {
			quiet++
		}
	}
	if quiet != 2 {
		t.Fatalf("expected 2 library queries, got %d", quiet)
	}
}

func TestQuery_FailureYieldsNoLines(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)
	build(t, s, f.file)

	got, err := s.QueryAll(context.Background(), Request{
		Request: query.Request{Kind: query.KindGrep, Pattern: "FAIL"},
		Target:  f.file,
	})
	if !errors.Is(err, proc.ErrTool) {
		t.Fatalf("expected ErrTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken database") {
		t.Fatalf("expected stderr text, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected no lines, got %q", got)
	}
}

func TestQuery_MissingDatabase(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)

	_, err := s.Query(context.Background(), Request{Request: query.Request{Kind: query.KindProject}, Target: f.file})
	var fe *FilesystemError
	if !errors.As(err, &fe) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected missing database error, got %v", err)
	}
}

func TestQuery_HighlightsReplacedUnlessAppend(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)
	build(t, s, f.file)

	run := func(pattern string, appendTo bool) {
		t.Helper()
		_, err := s.QueryAll(context.Background(), Request{
			Request: query.Request{Kind: query.KindDefinition, Pattern: pattern, Append: appendTo},
			Target:  f.file,
		})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
	}
	run("foo", false)
	run("bar", true)
	if hs := s.Highlights(); len(hs) != 2 {
		t.Fatalf("expected 2 highlights, got %+v", hs)
	}
	run("baz", false)
	hs := s.Highlights()
	if len(hs) != 1 || !strings.Contains(hs[0].Regex, "baz") {
		t.Fatalf("expected only baz, got %+v", hs)
	}

	var pushed []string
	err := s.ApplyHighlights(model.HighlightFunc(func(pattern, group string) error {
		pushed = append(pushed, group+" "+pattern)
		return nil
	}))
	if err != nil || len(pushed) != 1 || !strings.HasPrefix(pushed[0], HighlightGroup+" ") {
		t.Fatalf("pushed=%q err=%v", pushed, err)
	}
}

type jumpRecorder struct{ got []model.Location }

func (j *jumpRecorder) Jump(loc model.Location) error {
	j.got = append(j.got, loc)
	return nil
}

func TestNavigate_AutoJumpSingleResult(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)
	build(t, s, f.file)

	sink := &jumpRecorder{}
	locs, err := s.Navigate(context.Background(), Request{
		Request: query.Request{Kind: query.KindDefinition, Pattern: "main", AutoJump: true},
		Target:  f.file,
	}, sink)
	if err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if len(locs) != 1 || len(sink.got) != 1 {
		t.Fatalf("locs=%+v jumps=%+v", locs, sink.got)
	}
	if sink.got[0].File != filepath.Join(f.root, "x.c") || sink.got[0].Line != 3 {
		t.Fatalf("jump=%+v", sink.got[0])
	}
}

func TestCleanup_KillsRunningQuery(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)
	build(t, s, f.file)

	seq, err := s.Query(context.Background(), Request{
		Request: query.Request{Kind: query.KindGrep, Pattern: "HANG"},
		Target:  f.file,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	done := make(chan bool, 1)
	go func() { done <- seq.Next() }()

	time.Sleep(50 * time.Millisecond)
	s.Cleanup()
	select {
	case more := <-done:
		if more {
			t.Fatalf("expected sequence to end")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("cleanup did not wake the consumer")
	}
	_ = seq.Close()
}

func TestScheduleUpdate_FIFOAndSerial(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)
	build(t, s, f.file)

	var files []string
	for i := range 5 {
		p := filepath.Join(filepath.Dir(f.file), "f"+strconv.Itoa(i)+".c")
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		files = append(files, p)
		if err := s.ScheduleUpdate(p, true, true); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	log := lines(t, f.gtagsLog)
	if slices.Contains(log, "overlap") {
		t.Fatalf("updates ran concurrently: %q", log)
	}
	var order []string
	for _, l := range log {
		fields := strings.Fields(l)
		if i := slices.Index(fields, "--single-update"); i >= 0 {
			order = append(order, fields[i+1])
		}
	}
	if !slices.Equal(order, files) {
		t.Fatalf("order=%q, want %q", order, files)
	}
}

func TestScheduleUpdate_AutomaticTriggers(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)
	ctx := context.Background()

	// No marker above the file and no database: nothing to bootstrap.
	loose := filepath.Join(f.elsewhere, "loose.c")
	if err := s.ScheduleUpdate(loose, false, true); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n := len(lines(t, f.gtagsLog)); n != 0 {
		t.Fatalf("expected no build for unmarked root, got %d runs", n)
	}

	// Marker root without a database: lazy bootstrap.
	if err := s.ScheduleUpdate(f.file, true, true); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	log := lines(t, f.gtagsLog)
	if len(log) != 1 || !strings.Contains(log[0], "-i") {
		t.Fatalf("expected one full build, got %q", log)
	}

	// Database present, automatic, whole root: no rebuild.
	if err := s.ScheduleUpdate(f.file, false, true); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n := len(lines(t, f.gtagsLog)); n != 1 {
		t.Fatalf("expected no rebuild, got %d runs", n)
	}
}

func TestScheduleUpdate_PathOutsideRootIsNoop(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)

	other := filepath.Join(f.dir, "other", "y.c")
	if err := os.MkdirAll(filepath.Dir(other), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, auto := range []bool{false, true} {
		if err := s.ScheduleUpdate(other, false, auto); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := lines(t, f.gtagsLog); len(got) != 0 {
		t.Fatalf("expected no gtags run, got %v", got)
	}
}

func TestScheduleUpdate_RootDirectory(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeProject)
	build(t, s, f.root)
	if _, _, exists, _ := s.RootDB(f.file); !exists {
		t.Fatalf("expected database in %s", f.root)
	}
}

func TestScheduleUpdate_RecordsInRegistry(t *testing.T) {
	f := newFixture(t)
	reg, err := registry.Open("sqlite", filepath.Join(f.dir, "registry.db"))
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	defer reg.Close()

	opts := f.options(location.ModeRootMarker)
	opts.Registry = reg
	s := New(opts)
	defer s.Close()
	build(t, s, f.file)

	recs, err := s.Databases()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].Root != f.root || recs[0].Mode != "rootmarker" || recs[0].MTime == 0 {
		t.Fatalf("records=%+v", recs)
	}
	if want := filepath.Join(f.root, ".git", location.DirName); recs[0].DBPath != want {
		t.Fatalf("dbpath=%q, want %q", recs[0].DBPath, want)
	}
}

func TestRemove_MissingDatabase(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)

	asked := false
	err := s.Remove(context.Background(), f.file, model.ConfirmFunc(func(string) (bool, error) {
		asked = true
		return true, nil
	}))
	var fe *FilesystemError
	if !errors.As(err, &fe) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected missing database error, got %v", err)
	}
	if asked {
		t.Fatalf("should not ask before finding a database")
	}
}

func TestRemove_DeclinedKeepsFiles(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeProject)
	build(t, s, f.file)

	err := s.Remove(context.Background(), f.file, model.ConfirmFunc(func(string) (bool, error) { return false, nil }))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.root, "GTAGS")); err != nil {
		t.Fatalf("database was touched: %v", err)
	}
}

func TestRemove_ProjectModeDeletesFilesOnly(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeProject)
	build(t, s, f.file)

	err := s.Remove(context.Background(), f.file, model.ConfirmFunc(func(string) (bool, error) { return true, nil }))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	for _, name := range []string{"GTAGS", "GRTAGS", "GPATH"} {
		if _, err := os.Stat(filepath.Join(f.root, name)); !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("%s still present: %v", name, err)
		}
	}
	if _, err := os.Stat(f.file); err != nil {
		t.Fatalf("source file removed: %v", err)
	}
}

func TestRemove_CacheModeDeletesDirectory(t *testing.T) {
	f := newFixture(t)
	s := f.store(t, location.ModeCache)
	build(t, s, f.file)

	db := s.Locate(f.root)
	err := s.Remove(context.Background(), f.file, model.ConfirmFunc(func(string) (bool, error) { return true, nil }))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(db); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("database dir still present: %v", err)
	}
}

func TestChildEnv(t *testing.T) {
	got := childEnv([]string{"A=1", "GTAGSROOT=/old", "GTAGSDBPATH=/olddb"}, "/r", "/db")
	want := []string{"A=1", "GTAGSROOT=/r", "GTAGSDBPATH=/db"}
	if !slices.Equal(got, want) {
		t.Fatalf("env=%q, want %q", got, want)
	}
}
