package cache

import "errors"

var (
	// ErrMalformedDigest is returned when a layer digest or diff-id string
	// fails validation. The condition is not retriable.
	ErrMalformedDigest = errors.New("malformed digest")
)
