package sessionstore

import "errors"

// Sentinel kinds for session store errors.
var (
	ErrNotFound  = errors.New("session not found")
	ErrStoreFull = errors.New("session store full")
)
