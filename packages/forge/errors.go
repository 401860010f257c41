package forge

import "errors"

var (
	// ErrCycle is returned when a builder is reachable from its own sources.
	ErrCycle = errors.New("source contains itself")
	// ErrNoTransport is returned when a request is sent without a transport.
	ErrNoTransport = errors.New("no transport configured")
)
