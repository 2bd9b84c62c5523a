package syncer

import "errors"

// terminalError marks a delivery failure that can never succeed on retry,
// e.g. the round service rejected the payload on business-rule grounds.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err so the orchestrator drops the action immediately
// instead of spending its retry budget. Returns nil if err is nil.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err (or anything it wraps) was marked Terminal.
func IsTerminal(err error) bool {
	var t *terminalError
	return errors.As(err, &t)
}
