package proc

import (
	"runtime"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Quote joins args into one shell word list safe for the platform shell.
func Quote(args ...string) string {
	if runtime.GOOS != "windows" {
		return shellquote.Join(args...)
	}
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, `"`+strings.ReplaceAll(a, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

// Split is the inverse of Quote for configured command templates.
func Split(command string) ([]string, error) {
	return shellquote.Split(command)
}
