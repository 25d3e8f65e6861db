package navcli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"codenav/internal/core/query"
	"codenav/internal/index/gtags"
	"codenav/internal/model"
)

type queryFlags struct {
	definition bool
	reference  bool
	symbol     bool
	grep       bool
	byContext  string
	all        bool
	files      bool

	ignoreCase bool
	literal    bool
	pathStyle  string
	scope      string
	result     string
	autoJump   bool
	show       int
	highlight  bool
}

// kind picks the query kind from the flags. Without any, a pattern looks up
// definitions and no pattern lists the whole project.
func (f *queryFlags) kind(args []string) (query.Kind, error) {
	var kinds []query.Kind
	for _, c := range []struct {
		set  bool
		kind query.Kind
	}{
		{f.definition, query.KindDefinition},
		{f.reference, query.KindReference},
		{f.symbol, query.KindSymbol},
		{f.grep, query.KindGrep},
		{f.byContext != "", query.KindContext},
		{f.all, query.KindProject},
		{f.files, query.KindFiles},
	} {
		if c.set {
			kinds = append(kinds, c.kind)
		}
	}
	switch {
	case len(kinds) > 1:
		return "", fmt.Errorf("only one of -d, -r, -s, -g, --by-context, --all, --files may be given")
	case len(kinds) == 1:
		return kinds[0], nil
	case len(args) > 0:
		return query.KindDefinition, nil
	default:
		return query.KindProject, nil
	}
}

// parseContext splits "LINE:FILE".
func parseContext(s string) (int, string, error) {
	lineText, file, ok := strings.Cut(s, ":")
	if !ok || file == "" {
		return 0, "", fmt.Errorf("invalid --by-context %q (expected: LINE:FILE)", s)
	}
	line, err := strconv.Atoi(lineText)
	if err != nil || line <= 0 {
		return 0, "", fmt.Errorf("invalid --by-context line %q", lineText)
	}
	return line, file, nil
}

func (f *queryFlags) request(target string, args []string) (gtags.Request, error) {
	kind, err := f.kind(args)
	if err != nil {
		return gtags.Request{}, err
	}
	req := gtags.Request{
		Request: query.Request{
			Kind:       kind,
			IgnoreCase: f.ignoreCase,
			Literal:    f.literal,
			PathStyle:  f.pathStyle,
			Scope:      f.scope,
			AutoJump:   f.autoJump,
		},
		Target: target,
	}
	if f.result != "" {
		if req.Result, err = model.ParseFormat(f.result); err != nil {
			return gtags.Request{}, err
		}
	}

	switch kind {
	case query.KindFiles:
		req.Files = args
	case query.KindProject:
		if len(args) > 0 {
			return gtags.Request{}, fmt.Errorf("--all takes no pattern")
		}
	case query.KindContext:
		if req.Line, req.File, err = parseContext(f.byContext); err != nil {
			return gtags.Request{}, err
		}
		fallthrough
	default:
		if len(args) != 1 {
			return gtags.Request{}, fmt.Errorf("%s query takes exactly one pattern", kind)
		}
		req.Pattern = args[0]
	}
	return req, req.Validate()
}

type jumpRecorder struct{ loc *model.Location }

func (j *jumpRecorder) Jump(loc model.Location) error {
	j.loc = &loc
	return nil
}

func newQueryCommand() *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:     "query [pattern | files...]",
		Aliases: []string{"q"},
		Short:   "Query the tag database of the current project",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := optionsFrom(cmd)
			if opts == nil {
				return fmt.Errorf("options missing")
			}
			req, err := f.request(opts.File, args)
			if err != nil {
				return err
			}
			if isTestMode(cmd) {
				return nil
			}

			st, closeStore, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			var ex *ExplainCollector
			if opts.Explain != "" {
				ex = NewExplainCollector(ExplainOptions{Format: opts.Explain})
				st.Cache().Explain = ex
				ex.Query(req.Kind)
				if r, dbpath, exists, err := st.RootDB(opts.File); err == nil {
					ex.Database(r, dbpath, exists)
				}
			}

			jump := &jumpRecorder{}
			stop := ex.Timer("query")
			locs, err := st.Navigate(cmd.Context(), req, jump)
			stop()
			if err != nil {
				return err
			}
			ex.Results(len(locs), jump.loc != nil)
			if jump.loc != nil {
				locs = []model.Location{*jump.loc}
			}
			if req.Format() == model.FormatCtags {
				AttachText(locs)
			}

			var out string
			switch {
			case opts.Jsonl:
				out = RenderJSONL(locs)
			case f.show > 0:
				out = RenderShow(locs, f.show)
			case opts.VimLines || jump.loc != nil:
				out = RenderVim(locs, newTheme(opts.NoColor))
			default:
				out = RenderDefault(locs, newTheme(opts.NoColor))
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), out)
			if f.highlight {
				printHighlights(cmd.ErrOrStderr(), st.Highlights())
			}

			if ex != nil {
				_ = ex.Emit(cmd.ErrOrStderr())
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.BoolVarP(&f.definition, "definition", "d", false, "locate definitions")
	fl.BoolVarP(&f.reference, "reference", "r", false, "locate references")
	fl.BoolVarP(&f.symbol, "symbol", "s", false, "locate symbols without a definition")
	fl.BoolVarP(&f.grep, "grep", "g", false, "search the pattern in all tagged files")
	fl.StringVar(&f.byContext, "by-context", "", "pick definition or reference from the cursor (LINE:FILE)")
	fl.BoolVarP(&f.all, "all", "a", false, "list every tag of the project")
	fl.BoolVar(&f.files, "files", false, "list the tags of the given files")
	fl.BoolVarP(&f.ignoreCase, "ignore-case", "i", false, "case insensitive match")
	fl.BoolVar(&f.literal, "literal", false, "match the pattern literally")
	fl.StringVar(&f.pathStyle, "path-style", "", "path style: relative|absolute|shorter|abslib|through")
	fl.StringVar(&f.scope, "scope", "", "limit results to this directory")
	fl.StringVar(&f.result, "result", "", "listing format: ctags|ctags-x|ctags-mod|grep")
	fl.BoolVar(&f.autoJump, "auto-jump", false, "print only the target when there is exactly one result")
	fl.IntVar(&f.show, "show", 0, "print this many lines of source around each result")
	fl.BoolVar(&f.highlight, "highlight", false, "print the Vim highlight pattern to stderr")
	return cmd
}
