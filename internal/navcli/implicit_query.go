package navcli

import (
	"strings"

	"github.com/spf13/cobra"
)

// RewriteArgsForImplicitQuery prefixes args with "query" when the first
// positional argument is not a known subcommand.
func RewriteArgsForImplicitQuery(root *cobra.Command, args []string) []string {
	if root == nil || len(args) == 0 {
		return args
	}

	first, ok := firstPositionalArgAfterFlags(args)
	if !ok {
		return args
	}

	known := knownTopLevelCommands(root)
	if known[strings.TrimSpace(first)] {
		return args
	}

	return append([]string{"query"}, args...)
}

func knownTopLevelCommands(root *cobra.Command) map[string]bool {
	known := map[string]bool{
		"help":       true,
		"completion": true,
	}

	for _, c := range root.Commands() {
		if c == nil {
			continue
		}
		known[c.Name()] = true
		for _, a := range c.Aliases {
			known[a] = true
		}
	}

	return known
}

// valueFlags are the long flags, across all subcommands, that consume the
// following argument.
var valueFlags = map[string]bool{
	"config": true, "file": true, "log-level": true, "storage": true,
	"by-context": true, "path-style": true, "scope": true, "result": true, "show": true,
	"case": true, "glob": true, "max-count": true, "context": true, "debounce": true,
}

func firstPositionalArgAfterFlags(args []string) (string, bool) {
	skipNext := false
	positionalOnly := false

	for i := 0; i < len(args); i++ {
		a := strings.TrimSpace(args[i])
		if a == "" {
			continue
		}
		if skipNext {
			skipNext = false
			continue
		}

		if a == "--" {
			positionalOnly = true
			continue
		}

		if positionalOnly {
			return a, true
		}

		if strings.HasPrefix(a, "--") {
			if !strings.Contains(a, "=") && valueFlags[strings.TrimPrefix(a, "--")] {
				skipNext = true
			}
			continue
		}

		if strings.HasPrefix(a, "-") && a != "-" {
			// -f FILE is the only value-taking short flag before a query.
			if a == "-f" {
				skipNext = true
			}
			continue
		}

		return a, true
	}

	return "", false
}
