package navcli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"codenav/internal/index/gtags"
	"codenav/internal/model"
)

// promptConfirmer asks on out and reads a y/N answer from in.
func promptConfirmer(in io.Reader, out io.Writer) model.Confirmer {
	return model.ConfirmFunc(func(prompt string) (bool, error) {
		_, _ = fmt.Fprintf(out, "%s [y/N] ", prompt)
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	})
}

func newRemoveCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "remove [file]",
		Short: "Delete the tag database of the current project",
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

			confirm := promptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
			if yes {
				confirm = model.ConfirmFunc(func(string) (bool, error) { return true, nil })
			}
			err = st.Remove(cmd.Context(), path, confirm)
			if errors.Is(err, gtags.ErrCancelled) {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "cancelled")
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
