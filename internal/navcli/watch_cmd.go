package navcli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codenav/internal/core/watch"
)

func newWatchCommand() *cobra.Command {
	var (
		debounce time.Duration
		adaptive bool
	)
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Keep the tag database current while files change",
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
			if isTestMode(cmd) {
				return nil
			}

			st, closeStore, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			r, dbpath, _, err := st.RootDB(path)
			if err != nil {
				return err
			}
			// Bootstrap a missing database before watching.
			if err := st.ScheduleUpdate(path, false, true); err != nil {
				return err
			}

			w, err := watch.New(r, st, watch.Options{
				Debounce:         debounce,
				AdaptiveDebounce: adaptive,
				DBPath:           dbpath,
				Logger:           opts.logger(cmd),
			})
			if err != nil {
				return err
			}
			defer w.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "watching %s (debounce %s)\n", w.Root(), w.Debounce())
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			w.Flush()
			return st.Flush(context.Background())
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before an update (default 200ms)")
	cmd.Flags().BoolVar(&adaptive, "adaptive", false, "grow the debounce while changes keep coming")
	return cmd
}
