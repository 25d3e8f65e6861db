package navcli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"codenav/internal/core/query"
)

// Facts reported for a query. cache_hit arrives through KV from the replay
// cache as "replay" or "miss".
const (
	keyKind     = "kind"
	keyRoot     = "root"
	keyDBPath   = "dbpath"
	keyDBExists = "db_exists"
	keyResults  = "results"
	keyAutoJump = "auto_jump"
	keyCacheHit = "cache_hit"
)

type ExplainOptions struct {
	Format string
}

// ExplainCollector gathers key/value facts and timings about one command
// and prints them to stderr at the end.
type ExplainCollector struct {
	mu      sync.Mutex
	format  string
	kv      map[string]any
	timings map[string]time.Duration
}

func NewExplainCollector(opts ExplainOptions) *ExplainCollector {
	format := strings.TrimSpace(opts.Format)
	if format == "" {
		format = "text"
	}
	return &ExplainCollector{
		format:  format,
		kv:      map[string]any{},
		timings: map[string]time.Duration{},
	}
}

func (e *ExplainCollector) KV(key string, value any) {
	if e == nil {
		return
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	e.mu.Lock()
	e.kv[key] = value
	e.mu.Unlock()
}

// Query records the kind of lookup being explained.
func (e *ExplainCollector) Query(kind query.Kind) {
	e.KV(keyKind, string(kind))
}

// Database records where the store looked for the tag files of root.
func (e *ExplainCollector) Database(root string, dbpath string, exists bool) {
	e.KV(keyRoot, root)
	e.KV(keyDBPath, dbpath)
	e.KV(keyDBExists, exists)
}

// Results records the number of locations and whether the query jumped
// straight to the only one.
func (e *ExplainCollector) Results(n int, jumped bool) {
	e.KV(keyResults, n)
	if jumped {
		e.KV(keyAutoJump, true)
	}
}

// CacheHit reports what the replay cache did, "" when it was not consulted.
func (e *ExplainCollector) CacheHit() string {
	if e == nil {
		return ""
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s, _ := e.kv[keyCacheHit].(string)
	return s
}

func (e *ExplainCollector) Timer(name string) func() {
	if e == nil {
		return func() {}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return func() {}
	}
	start := time.Now()
	return func() {
		d := time.Since(start)
		e.mu.Lock()
		e.timings[name] += d
		e.mu.Unlock()
	}
}

func (e *ExplainCollector) Snapshot() map[string]any {
	if e == nil {
		return map[string]any{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := maps.Clone(e.kv)
	if len(e.timings) > 0 {
		tm := make(map[string]int64, len(e.timings))
		for k, d := range e.timings {
			tm[k] = d.Milliseconds()
		}
		out["timings_ms"] = tm
	}
	return out
}

func (e *ExplainCollector) Emit(w io.Writer) error {
	if e == nil || w == nil {
		return nil
	}

	snap := e.Snapshot()
	if e.format == "json" {
		b, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}

	_, _ = fmt.Fprintln(w, "explain:")
	tm, _ := snap["timings_ms"].(map[string]int64)
	delete(snap, "timings_ms")
	if db, ok := snap[keyDBPath]; ok {
		state := "missing"
		if exists, _ := snap[keyDBExists].(bool); exists {
			state = "present"
		}
		_, _ = fmt.Fprintf(w, "  database: %v (%s)\n", db, state)
		delete(snap, keyDBPath)
		delete(snap, keyDBExists)
	}
	for _, k := range slices.Sorted(maps.Keys(snap)) {
		_, _ = fmt.Fprintf(w, "  %s: %v\n", k, snap[k])
	}
	for _, name := range slices.Sorted(maps.Keys(tm)) {
		_, _ = fmt.Fprintf(w, "  elapsed_ms_%s: %d\n", name, tm[name])
	}
	return nil
}

func (e *ExplainCollector) EmitToStringForTest() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	_ = e.Emit(&b)
	return strings.TrimRight(b.String(), "\r\n")
}
