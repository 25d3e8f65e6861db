// Package explain carries optional diagnostics out of a code path without
// tying it to a particular reporter.
package explain

// Explain records facts about one operation.
type Explain interface {
	KV(key string, value any)
	// Timer starts a named measurement; calling the result stops it.
	Timer(name string) func()
}

// Discard ignores everything it is told.
type Discard struct{}

func (Discard) KV(string, any) {}

func (Discard) Timer(string) func() { return func() {} }

// Or returns e, or Discard when e is nil.
func Or(e Explain) Explain {
	if e == nil {
		return Discard{}
	}
	return e
}
