// Package marketindex keeps an ordered in-memory board of market athletes.
package marketindex

import "errors"

// Error constants.
var (
	ErrNotFound     = errors.New("athlete not tracked")
	ErrInvalidLimit = errors.New("limit must be positive")
)
