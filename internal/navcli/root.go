// Package navcli is the codenav command line.
package navcli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"codenav/internal/version"
)

func NewRootCommand() *cobra.Command {
	opts := newDefaultOptions()
	cmd := &cobra.Command{
		Use:           "codenav",
		Short:         "Source navigation on top of GNU global and ripgrep",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if isTestMode(cmd) {
				return nil
			}

			opts := optionsFrom(cmd)
			if opts == nil {
				return fmt.Errorf("options missing")
			}
			if opts.ListDatabases {
				return listDatabases(cmd, opts)
			}
			return cmd.Help()
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.Version = version.String()
	cmd.InitDefaultVersionFlag()
	if f := cmd.Flags().Lookup("version"); f != nil {
		f.Shorthand = "v"
	}

	withOptionsContext(cmd, opts)
	bindFlags(cmd, opts)

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if opts := optionsFrom(cmd); opts != nil {
			return opts.Prepare()
		}
		return nil
	}

	cmd.AddCommand(newQueryCommand())
	cmd.AddCommand(newUpdateCommand())
	cmd.AddCommand(newRemoveCommand())
	cmd.AddCommand(newGrepCommand())
	cmd.AddCommand(newTranslateCommand())
	cmd.AddCommand(newWatchCommand())
	return cmd
}

// Execute runs the command line in args; a leading pattern without a
// subcommand is treated as a query.
func Execute(args []string) error {
	root := NewRootCommand()
	root.SetArgs(RewriteArgsForImplicitQuery(root, args))
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "codenav:", err)
		return err
	}
	return nil
}

func listDatabases(cmd *cobra.Command, opts *Options) error {
	st, closeStore, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	recs, err := st.Databases()
	if err != nil {
		return err
	}
	if opts.Jsonl {
		return writeJSONL(cmd.OutOrStdout(), recs)
	}
	th := newTheme(opts.NoColor)
	for _, r := range recs {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
			paint(th.File, r.Root), r.DBPath, r.Mode, r.UpdatedAt.Local().Format(time.DateTime))
	}
	return nil
}
