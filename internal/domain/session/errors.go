package session

import "errors"

var (
	// ErrEmptySession indicates a refinement turn was requested before the
	// first suggestion set was generated.
	ErrEmptySession = errors.New("session has no suggestion set yet")

	// ErrAlreadyGenerated indicates Generate was called on a session that
	// already holds a set; refinement turns should be used instead.
	ErrAlreadyGenerated = errors.New("session already generated")

	// ErrUnknownSuggestion indicates the suggestion named in a replace turn
	// is not part of the session's current set.
	ErrUnknownSuggestion = errors.New("suggestion not in current set")
)
