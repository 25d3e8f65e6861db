package navcli

import (
	"fmt"

	"github.com/spf13/cobra"

	"codenav/internal/core/regex"
)

func newTranslateCommand() *cobra.Command {
	var perl bool
	cmd := &cobra.Command{
		Use:   "translate <pattern>",
		Short: "Print the Vim very-magic form of a PCRE/ripgrep pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if isTestMode(cmd) {
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), regex.Translate(args[0], perl))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&perl, "perl", "P", false, "accept PCRE2-only syntax (lookaround, possessive, comments)")
	return cmd
}
