package protocol

import "errors"

var (
	// ErrMalformed is returned when a section cannot be decoded with its build's type tables.
	ErrMalformed = errors.New("malformed replay data")
	// ErrUnsupportedVersion is returned when no schema is registered for a base build.
	ErrUnsupportedVersion = errors.New("unsupported replay version")
)
