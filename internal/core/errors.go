package core

import "errors"

var (
	// ErrInvalidFormat is returned when a source is not a CSV file or its
	// content is empty.
	ErrInvalidFormat = errors.New("invalid file format")

	// ErrRead is returned when the source content could not be read.
	ErrRead = errors.New("read failed")

	// ErrSchemaMismatch is returned when a record's fields diverge from its schema.
	ErrSchemaMismatch = errors.New("record does not match schema")

	// ErrNotFound is returned by a Persister when nothing is stored under a key.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is returned when a client exceeds its request budget.
	ErrRateLimited = errors.New("rate limit exceeded")
)
