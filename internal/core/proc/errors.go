package proc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSpawn means the shell could not be started.
	ErrSpawn = errors.New("process spawn failed")
	// ErrStream means reading stdout or stderr failed mid-stream.
	ErrStream = errors.New("process stream failed")
	// ErrTool means the command wrote to stderr or exited non-zero.
	ErrTool = errors.New("external tool failed")
)

type Error struct {
	Kind    error
	Command string
	Stderr  string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Command != "" {
		_, _ = fmt.Fprintf(&b, " (%s)", e.Command)
	}
	if e.Err != nil {
		_, _ = fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		_, _ = fmt.Fprintf(&b, ": %s", s)
	}
	return b.String()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }
