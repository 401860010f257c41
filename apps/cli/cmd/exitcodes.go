package cmd

import "errors"

// Exit codes for the fetchforge CLI
const (
	// ExitSuccess indicates every request passed
	ExitSuccess = 0

	// ExitTestFailure indicates a failed check or threshold
	ExitTestFailure = 1

	// ExitParseError indicates a definition that could not be loaded or resolved
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

var (
	errRequestsFailed   = errors.New("one or more requests failed")
	errThresholdsFailed = errors.New("one or more thresholds failed")
)

// exitError attaches a process exit code to a command error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode maps err to the code the process exits with. Errors raised by
// cobra itself (unknown flags, wrong argument counts) are usage errors.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsageError
}
