package candidates

import (
	"fmt"

	"github.com/okian/gaffer/internal/domain/model"
)

// SquadRules is the explicit squad-composition constraint object: exact
// counts per role, the per-source-team cap, and the squad size. Keeping it
// separate from the roster makes the rule set testable independently of any
// particular league format.
type SquadRules struct {
	RoleCounts map[model.Role]int
	MaxPerTeam int
	SquadSize  int
}

// DefaultRules returns the standard 15-athlete composition with at most
// three athletes per source team.
func DefaultRules() SquadRules {
	return SquadRules{
		RoleCounts: map[model.Role]int{
			model.RoleGoalkeeper: 2,
			model.RoleDefender:   5,
			model.RoleMidfielder: 5,
			model.RoleForward:    3,
		},
		MaxPerTeam: 3,
		SquadSize:  15,
	}
}

// Validate checks the rule set for internal consistency.
func (r SquadRules) Validate() error {
	if r.SquadSize <= 0 || r.MaxPerTeam <= 0 {
		return fmt.Errorf("non-positive sizes: %w", ErrInvalidRules)
	}
	total := 0
	for role, n := range r.RoleCounts {
		if !role.Valid() {
			return fmt.Errorf("unknown role %q: %w", role, ErrInvalidRules)
		}
		if n < 0 {
			return fmt.Errorf("negative count for role %q: %w", role, ErrInvalidRules)
		}
		total += n
	}
	if total != r.SquadSize {
		return fmt.Errorf("role counts sum to %d, want %d: %w", total, r.SquadSize, ErrInvalidRules)
	}
	return nil
}

// CheckSwap reports whether replacing out with in keeps the squad legal:
// same role, affordable against the bank, and within the team cap after the
// swap. A nil return means the swap is legal.
func (r SquadRules) CheckSwap(roster model.Roster, out, in model.Athlete) error {
	if in.Role != out.Role {
		return fmt.Errorf("role mismatch %q vs %q: %w", in.Role, out.Role, ErrNoLegalCandidate)
	}
	if in.Cost > out.Cost+roster.Bank {
		return fmt.Errorf("cost %d exceeds budget %d: %w", in.Cost, out.Cost+roster.Bank, ErrNoLegalCandidate)
	}
	if roster.Contains(in.ID) {
		return fmt.Errorf("athlete %d already in squad: %w", in.ID, ErrNoLegalCandidate)
	}
	count := roster.TeamCount(in.Team)
	if out.Team == in.Team {
		count--
	}
	if count+1 > r.MaxPerTeam {
		return fmt.Errorf("team %d over the cap of %d: %w", in.Team, r.MaxPerTeam, ErrNoLegalCandidate)
	}
	return nil
}
