package model

// The editor side of a query: what file is current, where the user is and
// where highlights and jumps go. Implementations live with the caller.

type FileProvider interface {
	CurrentFile() string
}

type WorkdirProvider interface {
	Getwd() (string, error)
}

type FileFunc func() string

func (f FileFunc) CurrentFile() string { return f() }

type WorkdirFunc func() (string, error)

func (f WorkdirFunc) Getwd() (string, error) { return f() }

// Markers is a fixed marker list.
type Markers []string

func (m Markers) RootMarkers() []string { return m }

type MarkerProvider interface {
	RootMarkers() []string
}

type HighlightSink interface {
	AddHighlight(pattern string, group string) error
}

type JumpSink interface {
	Jump(loc Location) error
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

type ConfirmFunc func(prompt string) (bool, error)

func (f ConfirmFunc) Confirm(prompt string) (bool, error) { return f(prompt) }

// HighlightFunc adapts a plain function to HighlightSink.
type HighlightFunc func(pattern string, group string) error

func (f HighlightFunc) AddHighlight(pattern string, group string) error { return f(pattern, group) }
