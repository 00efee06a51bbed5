package datasource

import "errors"

// Sentinel kinds for data source errors.
var (
	ErrNotFound   = errors.New("snapshot not found")
	ErrBadPayload = errors.New("malformed snapshot payload")
)
