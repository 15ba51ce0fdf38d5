package policy

import "errors"

// Every error returned by this package wraps one of these.
var (
	// ErrInvalidArgument covers non-positive caps, lengths and max attempts,
	// and negative attempt counts.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoCandidates is returned when a default is requested from an empty
	// candidate list.
	ErrNoCandidates = errors.New("no candidates available")
)
