package composer

import "errors"

var (
	// ErrGenerationValidation indicates the generative backend produced a
	// suggestion set that failed validation twice in a row.
	ErrGenerationValidation = errors.New("generated suggestions failed validation")

	// ErrInvalidInput indicates the compose input was malformed.
	ErrInvalidInput = errors.New("invalid compose input")

	// ErrInvalidPin indicates a pinned suggestion named a negative slot or
	// a slot that was already pinned.
	ErrInvalidPin = errors.New("invalid pinned suggestion")
)
