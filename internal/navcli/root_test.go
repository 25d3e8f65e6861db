package navcli

import (
	"bytes"
	"strings"
	"testing"
)

func TestHelpContainsSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--help"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	s := out.String()
	for _, want := range []string{"codenav", "query", "update", "remove", "grep", "translate", "watch"} {
		if !strings.Contains(s, want) {
			t.Fatalf("help missing %q: %s", want, s)
		}
	}
}

func TestTranslateCommand(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"translate", "-P", `foo(?=bar)`})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != `\vfoo(bar)@=` {
		t.Fatalf("got %q", got)
	}
}
