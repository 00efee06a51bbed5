package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// NewKind annotates a sentinel kind with the operation that raised it.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind annotates a cause with the operation and sentinel kind, keeping
// both reachable through errors.Is.
func WrapKind(op string, kind, cause error) error {
	return fmt.Errorf("%s: %v: %w", op, cause, kind)
}
