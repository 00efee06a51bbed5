package marketindex

import "context"

// Entry represents one board row.
type Entry struct {
	Rank      int
	AthleteID int
	Score     float64
}

// Board provides read/write access to the ordered market state.
type Board interface {
	// Upsert sets the current score for an athlete, replacing any previous
	// one. Returns true if the board changed.
	Upsert(ctx context.Context, athleteID int, score float64) (bool, error)

	// Remove drops an athlete from the board.
	// Returns ErrNotFound if the athlete is unknown.
	Remove(ctx context.Context, athleteID int) error

	// Rank returns the current rank and score for an athlete.
	// Returns ErrNotFound if the athlete is unknown.
	Rank(ctx context.Context, athleteID int) (Entry, error)

	// TopN returns the top-N entries ordered by score desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of athletes tracked on the board.
	Count(ctx context.Context) int
}
