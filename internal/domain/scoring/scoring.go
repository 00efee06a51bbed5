// Package scoring computes per-athlete sub-scores from raw snapshot records.
// All functions are pure; missing statistics produce absent sub-scores or a
// documented default, never an error.
package scoring

import (
	"math"

	"github.com/okian/gaffer/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultLookahead     = 5   // gameweeks of fixtures considered
	maxDifficulty        = 5   // upper bound of the fixture difficulty scale
	scoreScale           = 10  // all sub-scores land on 0..10
	valueFullScaleRatio  = 2.5 // points-per-unit that maps to a full value score
	attackRoleAttackWt   = 0.7 // predictive blend for MID/FWD
	attackRoleDefenseWt  = 0.3
	defenseRoleAttackWt  = 0.3 // predictive blend for GKP/DEF
	defenseRoleDefenseWt = 0.7
)

// Weights controls how sub-scores combine into an aggregate. They are
// renormalized over whichever sub-scores are present, so absent statistics
// are omitted rather than treated as zero.
type Weights struct {
	Form       float64
	Fixture    float64
	Value      float64
	Predictive float64
}

// DefaultWeights mirror the ranking weights used for waiver recommendations
// upstream: fixtures lead, form and value follow, predictive stats trail.
var DefaultWeights = Weights{
	Form:       0.25,
	Fixture:    0.35,
	Value:      0.25,
	Predictive: 0.15,
}

// SubScore is a sub-score that may be absent. OK is false when the underlying
// statistic was missing; the value is then meaningless.
type SubScore struct {
	Value float64
	OK    bool
}

// Breakdown carries every sub-score for one athlete together with the weights
// that produced the aggregate, so a result is reproducible from its inputs.
type Breakdown struct {
	AthleteID  int
	Form       float64
	Value      float64
	Fixture    SubScore
	Predictive SubScore
	Aggregate  float64
	Weights    Weights
}

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithLookahead sets the fixture lookahead window in gameweeks.
func WithLookahead(weeks int) Option {
	return func(m *Model) {
		if weeks > 0 {
			m.lookahead = weeks
		}
	}
}

// WithWeights sets the aggregate weights.
func WithWeights(w Weights) Option {
	return func(m *Model) {
		if w.Form+w.Fixture+w.Value+w.Predictive > 0 {
			m.weights = w
		}
	}
}

// Model computes sub-scores and weighted aggregates. It holds configuration
// only; it is safe for concurrent use.
type Model struct {
	lookahead int
	weights   Weights
}

// New creates a Model with configuration options.
func New(opts ...Option) *Model {
	m := &Model{
		lookahead: defaultLookahead,
		weights:   DefaultWeights,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lookahead returns the configured fixture window in gameweeks.
func (m *Model) Lookahead() int {
	return m.lookahead
}

// Weights returns the configured aggregate weights.
func (m *Model) Weights() Weights {
	return m.weights
}

// FormScore normalizes the rolling-form statistic to 0..10. A missing value
// scores 0.
func (m *Model) FormScore(a model.Athlete) float64 {
	if a.Form == nil {
		return 0
	}
	return clamp(*a.Form, 0, scoreScale)
}

// FixtureScore averages fixture difficulty for a source team over the next
// lookahead gameweeks starting at fromGW, inverted so easy runs score high.
// Gameweeks with no fixture (blanks) are excluded from the average; a second
// fixture in one gameweek counts separately. With no fixtures at all in the
// window the sub-score is absent.
func (m *Model) FixtureScore(team int, fixtures []model.Fixture, fromGW int) SubScore {
	var sum float64
	var n int
	for _, f := range fixtures {
		if f.Team != team {
			continue
		}
		if f.Gameweek < fromGW || f.Gameweek >= fromGW+m.lookahead {
			continue
		}
		sum += float64(f.Difficulty)
		n++
	}
	if n == 0 {
		return SubScore{}
	}
	avg := sum / float64(n)
	// avg 1 -> 10, avg 5 -> 0
	score := (maxDifficulty - avg) * scoreScale / (maxDifficulty - 1)
	return SubScore{Value: clamp(score, 0, scoreScale), OK: true}
}

// ValueScore rates total points against cost in whole currency units,
// mapped to 0..10. A cost at or below zero is treated as one unit.
func (m *Model) ValueScore(a model.Athlete) float64 {
	units := a.CostUnits()
	if units <= 0 {
		units = 1
	}
	ratio := float64(a.TotalPoints) / units
	return clamp(ratio/valueFullScaleRatio, 0, scoreScale)
}

// PredictiveBlend combines the predictive attack and defense estimates,
// weighted by role. The blend is absent when both estimates are missing;
// with one present the blend renormalizes onto it alone.
func (m *Model) PredictiveBlend(a model.Athlete) SubScore {
	if a.ExpAttack == nil && a.ExpDefense == nil {
		return SubScore{}
	}

	attackWt, defenseWt := attackRoleAttackWt, attackRoleDefenseWt
	if a.Role == model.RoleGoalkeeper || a.Role == model.RoleDefender {
		attackWt, defenseWt = defenseRoleAttackWt, defenseRoleDefenseWt
	}

	var sum, wt float64
	if a.ExpAttack != nil {
		sum += *a.ExpAttack * attackWt
		wt += attackWt
	}
	if a.ExpDefense != nil {
		sum += *a.ExpDefense * defenseWt
		wt += defenseWt
	}
	return SubScore{Value: clamp(sum/wt, 0, scoreScale), OK: true}
}

// Score computes the full breakdown for one athlete. The aggregate is the
// weighted mean of the sub-scores that exist, with weights renormalized over
// that subset and recorded on the breakdown.
func (m *Model) Score(a model.Athlete, fixtures []model.Fixture, fromGW int) Breakdown {
	b := Breakdown{
		AthleteID:  a.ID,
		Form:       m.FormScore(a),
		Value:      m.ValueScore(a),
		Fixture:    m.FixtureScore(a.Team, fixtures, fromGW),
		Predictive: m.PredictiveBlend(a),
		Weights:    m.weights,
	}

	sum := b.Form*m.weights.Form + b.Value*m.weights.Value
	wt := m.weights.Form + m.weights.Value
	if b.Fixture.OK {
		sum += b.Fixture.Value * m.weights.Fixture
		wt += m.weights.Fixture
	}
	if b.Predictive.OK {
		sum += b.Predictive.Value * m.weights.Predictive
		wt += m.weights.Predictive
	}
	if wt > 0 {
		b.Aggregate = sum / wt
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
