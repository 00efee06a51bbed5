package candidates

import "errors"

// Sentinel kinds for candidate generation errors.
var (
	// ErrNoLegalCandidate means no same-role athlete is affordable and
	// within the team cap for one flagged slot. Per-slot and non-fatal:
	// callers drop the slot and continue the pass.
	ErrNoLegalCandidate = errors.New("no legal candidate")

	// ErrInvalidRules means the squad-composition rule set is inconsistent.
	ErrInvalidRules = errors.New("invalid squad rules")
)
