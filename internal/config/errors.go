package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is matched by every *Error.
var ErrInvalid = errors.New("invalid configuration")

// Error reports one invalid setting.
type Error struct {
	Field  string
	Value  string
	Reason string
}

func (e *Error) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("config %s=%q: %s", e.Field, e.Value, e.Reason)
}

func (e *Error) Is(target error) bool { return target == ErrInvalid }
