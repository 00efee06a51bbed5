package service

import "errors"

// Sentinel kinds for service lifecycle errors.
var (
	ErrNotStarted = errors.New("service not started")
	ErrNoProvider = errors.New("no data provider configured")
)
