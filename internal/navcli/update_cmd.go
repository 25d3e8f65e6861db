package navcli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUpdateCommand() *cobra.Command {
	var single, auto bool
	cmd := &cobra.Command{
		Use:   "update [file]",
		Short: "Build or refresh the tag database of the current project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := optionsFrom(cmd)
			if opts == nil {
				return fmt.Errorf("options missing")
			}
			path := opts.File
			if len(args) == 1 {
				path = args[0]
			}
			if single && path == "" {
				return fmt.Errorf("--single needs a file")
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
			}
			stop := ex.Timer("update")
			if err := st.ScheduleUpdate(path, single, auto); err != nil {
				return err
			}
			if err := st.Flush(cmd.Context()); err != nil {
				return err
			}
			stop()

			r, dbpath, exists, err := st.RootDB(path)
			if err != nil {
				return err
			}
			ex.Database(r, dbpath, exists)
			switch {
			case exists:
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), dbpath)
			case !auto:
				return fmt.Errorf("no database was built in %s", dbpath)
			}
			if ex != nil {
				_ = ex.Emit(cmd.ErrOrStderr())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&single, "single", false, "re-tag only the given file when a database exists")
	cmd.Flags().BoolVar(&auto, "auto", false, "behave like an automatic trigger: only bootstrap a missing database")
	return cmd
}
