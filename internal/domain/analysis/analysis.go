// Package analysis inspects a squad snapshot and produces a structured
// report of its weaknesses: underperformers, weak fixture runs, value traps,
// and unavailable athletes.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/internal/domain/scoring"
	"github.com/okian/gaffer/pkg/logger"
)

// Default classification constants.
const (
	defaultBottomTier       = 0.25 // bottom quartile counts as underperforming
	defaultWeakFixtureScore = 4.0  // fixture score below this flags a weak run
	defaultBudgetMaxCost    = 55   // tenths; at or below is the budget bracket
	defaultPremiumMinCost   = 85   // tenths; above is the premium bracket
)

// costBracket buckets athletes by price so form is judged against peers.
type costBracket int

const (
	bracketBudget costBracket = iota
	bracketMid
	bracketPremium
)

// Flag marks one roster athlete the analyzer wants replaced, with the
// breakdown that justified it.
type Flag struct {
	Athlete   model.Athlete
	Breakdown scoring.Breakdown
	Reasons   []string
}

// Report is the immutable outcome of one analysis pass. It is created once
// per pass and owned by that pass; it is never persisted.
type Report struct {
	CreatedAt  time.Time
	Gameweek   int
	Window     int
	Weights    scoring.Weights
	SquadScore float64

	Unavailable     []Flag
	Underperformers []Flag
	WeakFixtures    []Flag
	ValueTraps      []Flag

	// Breakdowns holds the per-athlete scoring detail for every roster slot,
	// keyed by athlete id, so downstream consumers need not rescore.
	Breakdowns map[int]scoring.Breakdown
}

// Flagged returns the union of all flag categories, most severe first,
// deduplicated by athlete with reasons merged.
func (r *Report) Flagged() []Flag {
	seen := make(map[int]int) // athlete id -> index in out
	var out []Flag
	for _, group := range [][]Flag{r.Unavailable, r.Underperformers, r.WeakFixtures, r.ValueTraps} {
		for _, f := range group {
			if i, ok := seen[f.Athlete.ID]; ok {
				out[i].Reasons = append(out[i].Reasons, f.Reasons...)
				continue
			}
			seen[f.Athlete.ID] = len(out)
			out = append(out, f)
		}
	}
	return out
}

// IsFlagged reports whether the given athlete appears in any category.
func (r *Report) IsFlagged(athleteID int) bool {
	for _, f := range r.Flagged() {
		if f.Athlete.ID == athleteID {
			return true
		}
	}
	return false
}

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithBottomTier sets the fraction of a peer group treated as underperforming.
func WithBottomTier(fraction float64) Option {
	return func(a *Analyzer) {
		if fraction > 0 && fraction < 1 {
			a.bottomTier = fraction
		}
	}
}

// WithWeakFixtureThreshold sets the fixture score below which a run is weak.
func WithWeakFixtureThreshold(threshold float64) Option {
	return func(a *Analyzer) {
		if threshold > 0 {
			a.weakFixture = threshold
		}
	}
}

// WithCostBrackets sets the bracket boundaries in tenths.
func WithCostBrackets(budgetMax, premiumMin int) Option {
	return func(a *Analyzer) {
		if budgetMax > 0 && premiumMin > budgetMax {
			a.budgetMax = budgetMax
			a.premiumMin = premiumMin
		}
	}
}

// WithLogger sets a custom logger for the analyzer.
func WithLogger(log logger.Logger) Option {
	return func(a *Analyzer) {
		if log != nil {
			a.log = log
		}
	}
}

// Analyzer runs the score model over a roster and classifies its weaknesses.
type Analyzer struct {
	model       *scoring.Model
	bottomTier  float64
	weakFixture float64
	budgetMax   int
	premiumMin  int
	log         logger.Logger
}

// New creates an Analyzer around the given score model.
func New(m *scoring.Model, opts ...Option) *Analyzer {
	a := &Analyzer{
		model:       m,
		bottomTier:  defaultBottomTier,
		weakFixture: defaultWeakFixtureScore,
		budgetMax:   defaultBudgetMaxCost,
		premiumMin:  defaultPremiumMinCost,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Get().Named("analysis")
	}
	return a
}

// Analyze scores every roster athlete and produces a Report. It fails with
// ErrInsufficientData only when the roster itself cannot be resolved; missing
// per-athlete statistics are tolerated and defaulted by the score model.
func (a *Analyzer) Analyze(ctx context.Context, roster model.Roster, universe []model.Athlete, fixtures []model.Fixture) (*Report, error) {
	if len(roster.Entries) == 0 {
		return nil, fmt.Errorf("empty roster: %w", ErrInsufficientData)
	}
	for _, e := range roster.Entries {
		if e.Athlete.ID == 0 || !e.Athlete.Role.Valid() {
			return nil, fmt.Errorf("malformed roster entry (id=%d role=%q): %w", e.Athlete.ID, e.Athlete.Role, ErrInsufficientData)
		}
	}

	fromGW := roster.Gameweek + 1

	report := &Report{
		CreatedAt:  time.Now().UTC(),
		Gameweek:   roster.Gameweek,
		Window:     a.model.Lookahead(),
		Weights:    a.model.Weights(),
		Breakdowns: make(map[int]scoring.Breakdown, len(roster.Entries)),
	}

	// Peer thresholds computed over the full universe, not the squad, so a
	// cheap athlete is judged against cheap peers league-wide.
	formCut := a.bracketFormCuts(universe)
	valueCut := a.valueCut(universe)

	var total float64
	for _, e := range roster.Entries {
		ath := e.Athlete
		b := a.model.Score(ath, fixtures, fromGW)
		report.Breakdowns[ath.ID] = b
		total += b.Aggregate

		if ath.Status.Unavailable() {
			report.Unavailable = append(report.Unavailable, Flag{
				Athlete:   ath,
				Breakdown: b,
				Reasons:   []string{"unavailable (" + string(ath.Status) + ")"},
			})
		}
		if b.Form <= formCut[a.bracketOf(ath.Cost)] {
			report.Underperformers = append(report.Underperformers, Flag{
				Athlete:   ath,
				Breakdown: b,
				Reasons:   []string{fmt.Sprintf("form %.1f in the bottom tier of its cost bracket", b.Form)},
			})
		}
		if b.Fixture.OK && b.Fixture.Value < a.weakFixture {
			report.WeakFixtures = append(report.WeakFixtures, Flag{
				Athlete:   ath,
				Breakdown: b,
				Reasons:   []string{fmt.Sprintf("fixture score %.1f over the next %d gameweeks", b.Fixture.Value, a.model.Lookahead())},
			})
		}
		if a.bracketOf(ath.Cost) == bracketPremium && b.Value <= valueCut {
			report.ValueTraps = append(report.ValueTraps, Flag{
				Athlete:   ath,
				Breakdown: b,
				Reasons:   []string{fmt.Sprintf("value score %.1f in the league-wide bottom tier at a premium price", b.Value)},
			})
		}
	}
	report.SquadScore = total / float64(len(roster.Entries))

	sortFlags(report.Underperformers, func(f Flag) float64 { return f.Breakdown.Form })
	sortFlags(report.WeakFixtures, func(f Flag) float64 { return f.Breakdown.Fixture.Value })
	sortFlags(report.ValueTraps, func(f Flag) float64 { return f.Breakdown.Value })
	sortFlags(report.Unavailable, func(f Flag) float64 { return f.Breakdown.Aggregate })

	a.log.Debug(ctx, "analysis pass complete",
		logger.Int("roster", len(roster.Entries)),
		logger.Int("unavailable", len(report.Unavailable)),
		logger.Int("underperformers", len(report.Underperformers)),
		logger.Int("weak_fixtures", len(report.WeakFixtures)),
		logger.Int("value_traps", len(report.ValueTraps)),
		logger.Float64("squad_score", report.SquadScore),
	)

	return report, nil
}

// sortFlags orders worst-first by the given score, breaking ties by lowest
// cost (the cheaper asset is the safer replacement call), then by id so the
// ordering is fully deterministic.
func sortFlags(flags []Flag, score func(Flag) float64) {
	sort.SliceStable(flags, func(i, j int) bool {
		si, sj := score(flags[i]), score(flags[j])
		if si != sj {
			return si < sj
		}
		if flags[i].Athlete.Cost != flags[j].Athlete.Cost {
			return flags[i].Athlete.Cost < flags[j].Athlete.Cost
		}
		return flags[i].Athlete.ID < flags[j].Athlete.ID
	})
}

func (a *Analyzer) bracketOf(cost int) costBracket {
	switch {
	case cost <= a.budgetMax:
		return bracketBudget
	case cost > a.premiumMin:
		return bracketPremium
	default:
		return bracketMid
	}
}

// bracketFormCuts returns the bottom-tier form cut per cost bracket.
func (a *Analyzer) bracketFormCuts(universe []model.Athlete) map[costBracket]float64 {
	groups := make(map[costBracket][]float64)
	for _, ath := range universe {
		groups[a.bracketOf(ath.Cost)] = append(groups[a.bracketOf(ath.Cost)], a.model.FormScore(ath))
	}
	cuts := make(map[costBracket]float64, len(groups))
	for _, b := range []costBracket{bracketBudget, bracketMid, bracketPremium} {
		cuts[b] = quantile(groups[b], a.bottomTier)
	}
	return cuts
}

// valueCut returns the league-wide bottom-tier value score cut.
func (a *Analyzer) valueCut(universe []model.Athlete) float64 {
	vals := make([]float64, 0, len(universe))
	for _, ath := range universe {
		vals = append(vals, a.model.ValueScore(ath))
	}
	return quantile(vals, a.bottomTier)
}

// quantile returns the q-th quantile of vals by rank, without interpolation.
// An empty slice yields -1 so no athlete can fall at or below the cut.
func quantile(vals []float64, q float64) float64 {
	if len(vals) == 0 {
		return -1
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}
