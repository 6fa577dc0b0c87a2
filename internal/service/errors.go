package service

import (
	"errors"
	"fmt"
)

// Mutator and resolution errors.
var (
	ErrNotMember       = errors.New("sender is not a member of the list")
	ErrTargetNotMember = errors.New("target is not a member of the list")
	ErrLastMember      = errors.New("cannot remove the last member of a list")
	ErrAliasExhausted  = errors.New("could not generate an unused alias")
	ErrAmbiguousList   = errors.New("more than one list matches")
	ErrNoList          = errors.New("no list matches")
)

// CommandError is an expected, user-facing failure. Message is sent back to
// the sender verbatim; Err, if set, is the cause kept for logs.
type CommandError struct {
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CommandError) Unwrap() error { return e.Err }

func userErrorf(cause error, format string, args ...any) *CommandError {
	return &CommandError{Message: fmt.Sprintf(format, args...), Err: cause}
}

// AsCommandError extracts a *CommandError from err's chain.
func AsCommandError(err error) (*CommandError, bool) {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
