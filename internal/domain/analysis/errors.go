package analysis

import "errors"

// Sentinel kinds for analysis errors.
var (
	// ErrInsufficientData means the roster itself could not be resolved.
	// Missing per-athlete statistics never produce this; they are tolerated.
	ErrInsufficientData = errors.New("insufficient data")
)
