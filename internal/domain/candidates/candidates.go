// Package candidates enumerates and ranks legal single-swap replacements for
// flagged roster athletes, honoring budget, role, and team-cap constraints.
package candidates

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/okian/gaffer/internal/domain/analysis"
	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/internal/domain/scoring"
	"github.com/okian/gaffer/pkg/logger"
)

// Default ranking configuration constants.
const (
	defaultPerSlotLimit     = 5   // ranked candidates kept per flagged slot
	defaultPointDeltaWeight = 0.7 // projected point gain dominates the ranking
	defaultFixtureWeight    = 0.3
)

// Candidate is one legal replacement for a flagged athlete, ephemeral to the
// pass that produced it.
type Candidate struct {
	Out        model.Athlete
	In         model.Athlete
	CostDelta  int // tenths; negative frees budget
	PointDelta float64
	Fixture    scoring.SubScore
	Composite  float64
}

// Slot groups the ranked candidates for one flagged roster athlete.
type Slot struct {
	Out     model.Athlete
	Reasons []string
	Ranked  []Candidate // best first; "in" athletes are unique across slots
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithPerSlotLimit caps how many ranked candidates each slot keeps.
func WithPerSlotLimit(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.perSlot = n
		}
	}
}

// WithRankWeights sets the composite ranking weights for projected point
// gain and fixture score.
func WithRankWeights(pointDelta, fixture float64) Option {
	return func(g *Generator) {
		if pointDelta+fixture > 0 {
			g.pointDeltaWeight = pointDelta
			g.fixtureWeight = fixture
		}
	}
}

// WithLogger sets a custom logger for the generator.
func WithLogger(log logger.Logger) Option {
	return func(g *Generator) {
		if log != nil {
			g.log = log
		}
	}
}

// Generator ranks replacement candidates for every flagged slot of a report.
type Generator struct {
	model            *scoring.Model
	rules            SquadRules
	perSlot          int
	pointDeltaWeight float64
	fixtureWeight    float64
	log              logger.Logger
}

// New creates a Generator with the given score model and composition rules.
func New(m *scoring.Model, rules SquadRules, opts ...Option) *Generator {
	g := &Generator{
		model:            m,
		rules:            rules,
		perSlot:          defaultPerSlotLimit,
		pointDeltaWeight: defaultPointDeltaWeight,
		fixtureWeight:    defaultFixtureWeight,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Get().Named("candidates")
	}
	return g
}

// Generate produces one Slot per flagged athlete that has at least one legal
// replacement. Slots with no legal candidate are dropped, not fatal. The
// "in" athletes across all returned slots are disjoint: a candidate is kept
// only by the first (most severe) slot that ranks it, and later slots fall
// back to their next-best alternatives.
func (g *Generator) Generate(ctx context.Context, report *analysis.Report, roster model.Roster, universe []model.Athlete, fixtures []model.Fixture) ([]Slot, error) {
	if err := g.rules.Validate(); err != nil {
		return nil, err
	}

	fromGW := roster.Gameweek + 1
	used := make(map[int]struct{}) // in-athlete ids already claimed by a slot

	var slots []Slot
	for _, flag := range report.Flagged() {
		slot, err := g.fillSlot(flag, report, roster, universe, fixtures, fromGW, used)
		if err != nil {
			if errors.Is(err, ErrNoLegalCandidate) {
				g.log.Debug(ctx, "dropping flagged slot",
					logger.Int("athlete", flag.Athlete.ID),
					logger.String("name", flag.Athlete.Name),
				)
				continue
			}
			return nil, err
		}
		for _, c := range slot.Ranked {
			used[c.In.ID] = struct{}{}
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// fillSlot ranks every legal replacement for one flagged athlete.
func (g *Generator) fillSlot(flag analysis.Flag, report *analysis.Report, roster model.Roster, universe []model.Athlete, fixtures []model.Fixture, fromGW int, used map[int]struct{}) (Slot, error) {
	out := flag.Athlete
	outScore := report.Breakdowns[out.ID]

	var ranked []Candidate
	for _, in := range universe {
		if _, taken := used[in.ID]; taken {
			continue
		}
		if !in.Status.Selectable() {
			continue
		}
		if err := g.rules.CheckSwap(roster, out, in); err != nil {
			continue
		}

		inScore := g.model.Score(in, fixtures, fromGW)
		c := Candidate{
			Out:        out,
			In:         in,
			CostDelta:  in.Cost - out.Cost,
			PointDelta: inScore.Aggregate - outScore.Aggregate,
			Fixture:    inScore.Fixture,
		}
		c.Composite = c.PointDelta * g.pointDeltaWeight
		if c.Fixture.OK {
			c.Composite += c.Fixture.Value * g.fixtureWeight
		}
		ranked = append(ranked, c)
	}

	if len(ranked) == 0 {
		return Slot{}, fmt.Errorf("athlete %d (%s): %w", out.ID, out.Name, ErrNoLegalCandidate)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Composite != ranked[j].Composite {
			return ranked[i].Composite > ranked[j].Composite
		}
		if ranked[i].In.Cost != ranked[j].In.Cost {
			return ranked[i].In.Cost < ranked[j].In.Cost
		}
		return ranked[i].In.ID < ranked[j].In.ID
	})
	if len(ranked) > g.perSlot {
		ranked = ranked[:g.perSlot]
	}

	return Slot{Out: out, Reasons: flag.Reasons, Ranked: ranked}, nil
}
