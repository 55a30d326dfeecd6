package ring

import "errors"

var (
	// ErrNoOwner is returned when the view has no members. Callers should
	// treat it as retryable: membership may not be known yet.
	ErrNoOwner = errors.New("no owner known yet")

	ErrInvalidDescriptor = errors.New("invalid node descriptor")
	ErrInvalidSize       = errors.New("invalid ring size")
	ErrUnknownHash       = errors.New("unknown hash algorithm")
)
