package testsession

import (
	"context"
	"fmt"

	"github.com/okian/gaffer/pkg/logger"
)

// verifySession checks the structural invariants of the final suggestion set
// and the recorded turn history.
func verifySession(ctx context.Context, config *Config, detail *SessionDetail, stats *Stats) error {
	logger.Get().Info(ctx, "verifying session", logger.String("sessionID", detail.SessionID))

	if detail.ManagerID != config.ManagerID {
		return fmt.Errorf("session manager %d does not match requested manager %d",
			detail.ManagerID, config.ManagerID)
	}
	if len(detail.Set.Suggestions) == 0 {
		return fmt.Errorf("final set has no suggestions")
	}

	if err := verifySetInvariants(&detail.Set); err != nil {
		return err
	}

	// Every turn but failed ones must be marked ok; count failures for stats.
	for i, turn := range detail.Turns {
		if !turn.Ok && turn.Error == "" {
			return fmt.Errorf("turn %d (%s) failed without an error", i, turn.Kind)
		}
	}
	if len(detail.Turns) == 0 {
		return fmt.Errorf("session recorded no turns")
	}
	if detail.Turns[0].Kind != "generate" {
		return fmt.Errorf("first turn is %q, want generate", detail.Turns[0].Kind)
	}

	logger.Get().Info(ctx, "session verified",
		logger.Int("suggestions", len(detail.Set.Suggestions)),
		logger.Int("turns", len(detail.Turns)))
	return nil
}

// verifySetInvariants checks the legality a client can see from the wire view:
// disjoint swaps, like-for-like roles, contiguous priorities and consistent
// cost arithmetic.
func verifySetInvariants(set *SuggestionSet) error {
	outs := make(map[int]bool, len(set.Suggestions))
	ins := make(map[int]bool, len(set.Suggestions))

	for i, s := range set.Suggestions {
		if s.Priority != i+1 {
			return fmt.Errorf("suggestion %d has priority %d, want %d", i, s.Priority, i+1)
		}
		if s.Out.Role != s.In.Role {
			return fmt.Errorf("suggestion %d swaps %s for %s across roles",
				i, s.Out.Role, s.In.Role)
		}
		if outs[s.Out.ID] {
			return fmt.Errorf("athlete %d is removed by more than one suggestion", s.Out.ID)
		}
		if ins[s.In.ID] {
			return fmt.Errorf("athlete %d is brought in by more than one suggestion", s.In.ID)
		}
		outs[s.Out.ID] = true
		ins[s.In.ID] = true

		if got := s.In.CostTenths - s.Out.CostTenths; got != s.CostDeltaTenths {
			return fmt.Errorf("suggestion %d cost delta is %d, want %d", i, s.CostDeltaTenths, got)
		}
		if s.BankAfterTenths < 0 {
			return fmt.Errorf("suggestion %d leaves a negative bank: %d", i, s.BankAfterTenths)
		}
		if s.Rationale == "" {
			return fmt.Errorf("suggestion %d has no rationale", i)
		}
	}
	return nil
}
