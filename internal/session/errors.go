package session

import "errors"

// TerminalError marks a collaborator failure that cannot be recovered by
// waiting for the next tick. A coordinator that receives one transitions the
// session to StatusFailed immediately. Any other error from a collaborator is
// treated as transient: logged and retried on the next scheduled tick.
type TerminalError struct {
	// Message is safe to surface to the user. Raw response bodies must not
	// end up here.
	Message string
	Err     error
}

func (e *TerminalError) Error() string {
	return e.Message
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// NewTerminalError creates a terminal error with a user-facing message
func NewTerminalError(message string, err error) *TerminalError {
	return &TerminalError{Message: message, Err: err}
}

// IsTerminal reports whether err carries a TerminalError in its chain
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}

// TerminalMessage extracts the user-facing message from a terminal error,
// falling back to a generic message for anything else.
func TerminalMessage(err error, fallback string) string {
	var te *TerminalError
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return fallback
}
