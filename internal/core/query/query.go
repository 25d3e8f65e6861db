// Package query builds global(1) command lines and replays whole-project
// listings while the tag database is unchanged.
package query

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"codenav/internal/core/proc"
	"codenav/internal/core/regex"
	"codenav/internal/model"
)

type Kind string

const (
	KindDefinition Kind = "definition"
	KindReference  Kind = "reference"
	KindSymbol     Kind = "symbol"
	KindGrep       Kind = "grep"
	// KindContext lets global pick definition or reference from the cursor.
	KindContext Kind = "context"
	// KindProject lists every tag of the project.
	KindProject Kind = "project"
	// KindFiles lists the tags of specific files.
	KindFiles Kind = "files"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindDefinition, KindReference, KindSymbol, KindGrep, KindContext, KindProject, KindFiles:
		return k, nil
	case "":
		return KindProject, nil
	default:
		return "", fmt.Errorf("unknown query kind %q", s)
	}
}

type Request struct {
	Kind    Kind
	Pattern string
	// Files are the targets of a KindFiles listing.
	Files []string
	// Line and File locate the cursor for KindContext.
	Line int
	File string

	IgnoreCase bool
	Literal    bool
	PathStyle  string
	Scope      string
	// Result is the output layout of project and files listings; pattern
	// queries always use ctags-mod.
	Result model.Format

	AutoJump bool
	// Append keeps previous highlight patterns instead of replacing them.
	Append bool
}

// Global holds the fixed part of every global invocation.
type Global struct {
	Bin   string
	Label string
	Conf  string
}

func (g Global) bin() string {
	if g.Bin == "" {
		return "global"
	}
	return g.Bin
}

func (g Global) label() string {
	if g.Label == "" {
		return "default"
	}
	return g.Label
}

// IsPattern reports whether req searches for a pattern rather than listing.
func (r Request) IsPattern() bool {
	return r.Kind != KindProject && r.Kind != KindFiles
}

// Format is the layout of the lines req produces.
func (r Request) Format() model.Format {
	if r.IsPattern() {
		return model.FormatCtagsMod
	}
	if r.Result == "" {
		return model.FormatCtags
	}
	return r.Result
}

// AutoJumps reports whether a single result should be jumped to directly.
func (r Request) AutoJumps() bool {
	switch r.Kind {
	case KindDefinition, KindReference, KindContext:
		return r.AutoJump
	default:
		return false
	}
}

func (r Request) Validate() error {
	switch r.Kind {
	case KindDefinition, KindReference, KindSymbol, KindGrep:
		if p, _ := regex.Unquote(r.Pattern); p == "" {
			return fmt.Errorf("%s query needs a pattern", r.Kind)
		}
	case KindContext:
		if r.Pattern == "" || r.File == "" || r.Line <= 0 {
			return fmt.Errorf("context query needs pattern, file and line")
		}
	case KindFiles:
		if len(r.Files) == 0 {
			return fmt.Errorf("files query needs at least one file")
		}
	case KindProject:
	default:
		return fmt.Errorf("unknown query kind %q", r.Kind)
	}
	return nil
}

// BuildCommand returns the shell command for the primary database.
func BuildCommand(req Request, g Global) (string, error) {
	return build(req, g, false)
}

// LibraryCommand returns the command run against one library database:
// quiet, with abslib mapped to absolute.
func LibraryCommand(req Request, g Global) (string, error) {
	return build(req, g, true)
}

func build(req Request, g Global, library bool) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	pathStyle := req.PathStyle
	if library && pathStyle == "abslib" {
		pathStyle = "absolute"
	}

	var common []string
	if g.Conf != "" {
		common = append(common, "--gtagsconf", g.Conf)
	}
	common = append(common, "--gtagslabel="+g.label())

	if req.Kind == KindProject {
		args := []string{g.bin(), "-L-", "-f"}
		args = append(args, common...)
		args = appendPathStyle(args, pathStyle)
		args = append(args, "--color=never", "--result="+string(req.Format()))
		return proc.Quote(g.bin(), "-P") + " | " + proc.Quote(args...), nil
	}

	args := append([]string{g.bin()}, common...)
	switch req.Kind {
	case KindFiles:
		args = append(args, "-f")
		args = append(args, req.Files...)
		args = append(args, "-q")
		args = appendPathStyle(args, pathStyle)
		args = append(args, "--color=never", "--result="+string(req.Format()))
		return proc.Quote(args...), nil
	case KindContext:
		here := strconv.Itoa(req.Line) + ":" + req.File
		args = append(args, "--from-here", here, unquoted(req.Pattern))
	default:
		args = append(args, kindFlag(req.Kind), "-e", unquoted(req.Pattern))
	}

	args = appendPathStyle(args, pathStyle)
	if req.Scope != "" {
		scope, err := filepath.Abs(req.Scope)
		if err != nil {
			return "", fmt.Errorf("scope %s: %w", req.Scope, err)
		}
		args = append(args, "--scope", scope)
	}
	if req.Literal {
		args = append(args, "--literal")
	}
	if req.IgnoreCase {
		args = append(args, "-i")
	}
	args = append(args, "--color=never", "--result="+string(model.FormatCtagsMod))
	if library {
		args = append(args, "-q")
	}
	return proc.Quote(args...), nil
}

func kindFlag(k Kind) string {
	switch k {
	case KindDefinition:
		return "-d"
	case KindReference:
		return "-r"
	case KindSymbol:
		return "-s"
	default:
		return "-g"
	}
}

func appendPathStyle(args []string, style string) []string {
	if style == "" {
		return args
	}
	return append(args, "--path-style", style)
}

func unquoted(p string) string {
	s, _ := regex.Unquote(p)
	return s
}

// Highlight builds the overlay pattern for a pattern query.
func Highlight(t *regex.Translator, req Request) (regex.Pattern, bool) {
	if !req.IsPattern() {
		return regex.Pattern{}, false
	}
	return t.Highlight(req.Pattern, regex.HighlightOptions{
		IgnoreCase: req.IgnoreCase,
		Literal:    req.Literal,
		Symbol:     req.Kind != KindGrep,
	})
}
