package navcli

import (
	"fmt"

	"github.com/spf13/cobra"

	"codenav/internal/core/proc"
	"codenav/internal/core/search"
	"codenav/internal/model"
)

func newGrepCommand() *cobra.Command {
	var (
		req      search.Request
		caseMode  string
		highlight bool
	)
	cmd := &cobra.Command{
		Use:   "grep <pattern> [paths...]",
		Short: "Search the current project with ripgrep",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := optionsFrom(cmd)
			if opts == nil {
				return fmt.Errorf("options missing")
			}
			c, err := search.ParseCase(caseMode)
			if err != nil {
				return err
			}
			r := req
			r.Case = c
			r.Patterns = []string{args[0]}
			r.Paths = args[1:]
			if isTestMode(cmd) {
				return nil
			}

			st, closeStore, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			seq, err := st.Grep(cmd.Context(), opts.File, r, false)
			if err != nil {
				return err
			}
			lines, err := proc.Collect(seq)
			if err != nil {
				return err
			}

			locs := make([]model.Location, 0, len(lines))
			for _, line := range lines {
				loc, err := model.ParseLine(search.Format, line)
				if err != nil {
					continue
				}
				locs = append(locs, loc)
			}

			th := newTheme(opts.NoColor)
			switch {
			case opts.Jsonl:
				_, _ = fmt.Fprint(cmd.OutOrStdout(), RenderJSONL(locs))
			case opts.VimLines:
				_, _ = fmt.Fprint(cmd.OutOrStdout(), RenderVim(locs, th))
			default:
				_, _ = fmt.Fprint(cmd.OutOrStdout(), RenderDefault(locs, th))
			}
			if highlight {
				printHighlights(cmd.ErrOrStderr(), st.Highlights())
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&caseMode, "case", "smart", "case mode: smart|sensitive|ignore")
	fl.BoolVarP(&req.Word, "word-regexp", "w", false, "match whole words")
	fl.BoolVarP(&req.LineRegexp, "line-regexp", "x", false, "match whole lines")
	fl.BoolVarP(&req.Fixed, "fixed-strings", "F", false, "treat the pattern as a literal string")
	fl.BoolVarP(&req.Perl, "pcre2", "P", false, "use the PCRE2 engine")
	fl.StringArrayVar(&req.Globs, "glob", nil, "include or exclude files (can repeat)")
	fl.BoolVar(&req.Hidden, "hidden", false, "search hidden files")
	fl.BoolVar(&req.NoIgnore, "no-ignore", false, "do not respect ignore files")
	fl.IntVar(&req.MaxCount, "max-count", 0, "stop after this many matches per file")
	fl.BoolVar(&highlight, "highlight", false, "print the Vim highlight patterns to stderr")
	return cmd
}
