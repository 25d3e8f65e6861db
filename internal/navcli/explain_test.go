package navcli

import (
	"encoding/json"
	"strings"
	"testing"

	"codenav/internal/core/query"
)

func TestExplainJSON_Parseable(t *testing.T) {
	ex := NewExplainCollector(ExplainOptions{Format: "json"})
	ex.KV("kind", "definition")
	ex.KV("cache_hit", "miss")
	ex.Timer("query")()
	line := ex.EmitToStringForTest()
	var v map[string]any
	if err := json.Unmarshal([]byte(line), &v); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if v["cache_hit"] != "miss" {
		t.Fatalf("cache_hit=%v", v["cache_hit"])
	}
	if _, ok := v["timings_ms"]; !ok {
		t.Fatalf("timings missing: %s", line)
	}
}

func TestExplainText_SortedKeys(t *testing.T) {
	ex := NewExplainCollector(ExplainOptions{})
	ex.KV("zeta", 1)
	ex.KV("alpha", 2)
	ex.KV("  ", 3)
	ex.Timer("query")()
	out := ex.EmitToStringForTest()
	if !strings.HasPrefix(out, "explain:\n  alpha: 2\n  zeta: 1\n") {
		t.Fatalf("out=%q", out)
	}
	if !strings.Contains(out, "elapsed_ms_query: ") {
		t.Fatalf("timing missing: %q", out)
	}
}

func TestExplain_NilSafe(t *testing.T) {
	var ex *ExplainCollector
	ex.KV("k", "v")
	ex.Timer("t")()
	if ex.EmitToStringForTest() != "" {
		t.Fatal("nil collector emitted output")
	}
}

func TestExplain_QueryFacts(t *testing.T) {
	ex := NewExplainCollector(ExplainOptions{})
	ex.Query(query.KindReference)
	ex.Database("/src/proj", "/cache/proj", false)
	ex.KV("cache_hit", "replay")
	ex.Results(1, true)
	if ex.CacheHit() != "replay" {
		t.Fatalf("cache hit=%q", ex.CacheHit())
	}
	out := ex.EmitToStringForTest()
	want := "explain:\n  database: /cache/proj (missing)\n  auto_jump: true\n  cache_hit: replay\n  kind: reference\n  results: 1\n  root: /src/proj"
	if out != want {
		t.Fatalf("out=%q", out)
	}

	snap := ex.Snapshot()
	if snap["db_exists"] != false || snap["dbpath"] != "/cache/proj" {
		t.Fatalf("snapshot=%v", snap)
	}
}
