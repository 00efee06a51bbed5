// Package service wires the suggestion pipeline together and implements
// the dependencies required by the HTTP API: it opens refinement sessions,
// runs their turns, and tracks service-level statistics.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/okian/gaffer/internal/adapters/datasource"
	"github.com/okian/gaffer/internal/adapters/generative"
	"github.com/okian/gaffer/internal/adapters/marketindex"
	"github.com/okian/gaffer/internal/adapters/mq/queue"
	"github.com/okian/gaffer/internal/adapters/mq/worker"
	"github.com/okian/gaffer/internal/adapters/sessionstore"
	"github.com/okian/gaffer/internal/domain/analysis"
	"github.com/okian/gaffer/internal/domain/candidates"
	"github.com/okian/gaffer/internal/domain/composer"
	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/internal/domain/scoring"
	"github.com/okian/gaffer/internal/domain/session"
	"github.com/okian/gaffer/pkg/logger"
	"github.com/okian/gaffer/pkg/metrics"
)

const (
	watchSetSize          = 5
	initialMarketCapacity = 512
	tickQueueCapacity     = 8192
	tickWorkerCount       = 4
)

// Service implements the API dependencies for the suggestion system.
type Service struct {
	mu sync.RWMutex

	// Core components
	provider datasource.Provider
	client   generative.Client
	model    *scoring.Model
	analyzer *analysis.Analyzer
	ranker   *candidates.Generator
	composer *composer.Composer
	store    sessionstore.Store
	market   marketindex.Board
	ticks    queue.Queue
	pool     *worker.Pool

	// Configuration
	suggestionCount int
	lookahead       int
	perSlot         int
	maxPerTeam      int
	scoreWeights    scoring.Weights
	retryBackoff    time.Duration
	maxSessions     int
	// Scripted backend latency bounds, used when no client is injected.
	scriptedMinLatency time.Duration
	scriptedMaxLatency time.Duration

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithProvider sets the game-state provider.
func WithProvider(p datasource.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.provider = p
		}
	}
}

// WithClient sets the generative backend client. When absent the service
// starts a scripted backend that deterministically picks top candidates.
func WithClient(c generative.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.client = c
		}
	}
}

// WithSuggestionCount sets how many suggestions a full set carries.
func WithSuggestionCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.suggestionCount = n
		}
	}
}

// WithLookahead sets the fixture lookahead window in gameweeks.
func WithLookahead(weeks int) Option {
	return func(s *Service) {
		if weeks > 0 {
			s.lookahead = weeks
		}
	}
}

// WithPerSlotLimit caps ranked candidates per flagged slot.
func WithPerSlotLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.perSlot = n
		}
	}
}

// WithMaxPerTeam caps squad athletes per source team.
func WithMaxPerTeam(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPerTeam = n
		}
	}
}

// WithScoreWeights sets the sub-score weights from a config map. Unknown
// keys are ignored; missing keys keep their defaults.
func WithScoreWeights(weights map[string]float64) Option {
	return func(s *Service) {
		for name, w := range weights {
			switch name {
			case "form":
				s.scoreWeights.Form = w
			case "fixture":
				s.scoreWeights.Fixture = w
			case "value":
				s.scoreWeights.Value = w
			case "predictive":
				s.scoreWeights.Predictive = w
			}
		}
	}
}

// WithRetryBackoff sets the pause before the single backend retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryBackoff = d
		}
	}
}

// WithMaxSessions caps concurrently live sessions.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithScriptedLatencyRange sets the simulated backend latency range.
func WithScriptedLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(s *Service) {
		if minLatency > 0 && maxLatency > minLatency {
			s.scriptedMinLatency = minLatency
			s.scriptedMaxLatency = maxLatency
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		suggestionCount:    5,
		lookahead:          5,
		perSlot:            5,
		maxPerTeam:         3,
		scoreWeights:       scoring.DefaultWeights,
		retryBackoff:       2 * time.Second,
		maxSessions:        1024,
		scriptedMinLatency: 80 * time.Millisecond,
		scriptedMaxLatency: 150 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the pipeline components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.provider == nil {
		return ErrNoProvider
	}

	s.logger.Info(ctx, "starting suggestion service...")

	s.model = scoring.New(
		scoring.WithLookahead(s.lookahead),
		scoring.WithWeights(s.scoreWeights),
	)
	s.analyzer = analysis.New(s.model)

	rules := candidates.DefaultRules()
	rules.MaxPerTeam = s.maxPerTeam
	s.ranker = candidates.New(s.model, rules,
		candidates.WithPerSlotLimit(s.perSlot),
	)

	if s.client == nil {
		s.client = generative.NewScriptedClient(
			generative.WithLatencyRange(s.scriptedMinLatency, s.scriptedMaxLatency),
			generative.WithResponder(topPickResponder),
		)
		s.logger.Info(ctx, "using scripted generative backend")
	}
	s.composer = composer.New(
		generative.WithRetry(s.client, s.retryBackoff),
		composer.WithSuggestionCount(s.suggestionCount),
	)

	if s.store == nil {
		s.store = sessionstore.NewMemStore(
			sessionstore.WithMaxSessions(s.maxSessions),
		)
	}
	if s.market == nil {
		s.market = marketindex.NewTreapBoard(
			marketindex.WithInitialCapacity(initialMarketCapacity),
		)
	}
	s.ticks = queue.NewInMemoryQueue(
		queue.WithCapacity(tickQueueCapacity),
		queue.WithBufferSize(tickQueueCapacity),
	)
	s.pool = worker.NewPool(tickWorkerCount, s.ticks, s.market)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "suggestion service started",
		logger.Int("suggestionCount", s.suggestionCount),
		logger.Int("lookahead", s.lookahead),
		logger.Int("maxSessions", s.maxSessions),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.pool.Shutdown(context.Background()); err != nil {
		s.logger.Warn(context.Background(), "tick pipeline shutdown failed", logger.Error(err))
	}
	s.logger.Info(context.Background(), "suggestion service stopped")
	s.started = false
}

// OpenSession loads the manager's roster, registers a session, and runs the
// first generation turn. A failed first turn tears the session down again.
func (s *Service) OpenSession(ctx context.Context, managerID int) (string, model.SuggestionSet, error) {
	if err := s.ensureStarted(); err != nil {
		return "", model.SuggestionSet{}, err
	}

	roster, err := s.provider.Roster(ctx, managerID)
	if err != nil {
		return "", model.SuggestionSet{}, fmt.Errorf("load roster: %w", err)
	}

	sess := session.New("", roster, s)
	id, err := s.store.Put(ctx, sess)
	if err != nil {
		return "", model.SuggestionSet{}, err
	}

	set, err := sess.Generate(ctx)
	if err != nil {
		s.store.Delete(ctx, id)
		metrics.RecordTurn("generate", "error")
		return "", model.SuggestionSet{}, err
	}
	metrics.RecordTurn("generate", "ok")

	s.logger.Info(ctx, "session opened",
		logger.String("sessionID", id),
		logger.Int("managerID", managerID),
		logger.Int("suggestions", len(set.Suggestions)),
	)
	return id, set, nil
}

// SessionFeedback runs a feedback turn on the given session.
func (s *Service) SessionFeedback(ctx context.Context, id, feedback string) (model.SuggestionSet, error) {
	if err := s.ensureStarted(); err != nil {
		return model.SuggestionSet{}, err
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return model.SuggestionSet{}, err
	}

	set, err := sess.Feedback(ctx, feedback)
	if err != nil {
		metrics.RecordTurn("feedback", "error")
		return model.SuggestionSet{}, err
	}
	metrics.RecordTurn("feedback", "ok")
	return set, nil
}

// SessionReplace runs a replace-one turn, naming the target swap by its
// outgoing and incoming athlete ids.
func (s *Service) SessionReplace(ctx context.Context, id string, outID, inID int) (model.SuggestionSet, error) {
	if err := s.ensureStarted(); err != nil {
		return model.SuggestionSet{}, err
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return model.SuggestionSet{}, err
	}

	target := model.Suggestion{Out: model.Athlete{ID: outID}, In: model.Athlete{ID: inID}}
	set, err := sess.ReplaceOne(ctx, target)
	if err != nil {
		metrics.RecordTurn("replace", "error")
		return model.SuggestionSet{}, err
	}
	metrics.RecordTurn("replace", "ok")
	return set, nil
}

// SessionView is the read model of one session exposed to the API.
type SessionView struct {
	ID        string
	ManagerID int
	State     session.State
	CreatedAt time.Time
	Turns     []session.Turn
	Current   model.SuggestionSet
}

// SessionState returns a point-in-time view of the given session.
func (s *Service) SessionState(ctx context.Context, id string) (SessionView, error) {
	if err := s.ensureStarted(); err != nil {
		return SessionView{}, err
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{
		ID:        sess.ID,
		ManagerID: sess.ManagerID,
		State:     sess.State(),
		CreatedAt: sess.CreatedAt,
		Turns:     sess.Turns(),
		Current:   sess.Current(),
	}, nil
}

// CloseSession drops the session, freeing its slot in the store.
func (s *Service) CloseSession(ctx context.Context, id string) {
	if s.store != nil {
		s.store.Delete(ctx, id)
	}
}

// RunTurn executes one full analyze-rank-compose pass. Sessions call this
// for every turn; they never reach the pipeline components directly.
func (s *Service) RunTurn(ctx context.Context, req session.TurnRequest) (model.SuggestionSet, error) {
	universe, err := s.provider.Universe(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("datasource", "load_failed")
		return model.SuggestionSet{}, fmt.Errorf("load universe: %w", err)
	}
	fixtures, err := s.provider.Fixtures(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("datasource", "load_failed")
		return model.SuggestionSet{}, fmt.Errorf("load fixtures: %w", err)
	}

	s.publishMarketTicks(ctx, universe)

	began := time.Now()
	report, err := s.analyzer.Analyze(ctx, req.Roster, universe, fixtures)
	if err != nil {
		metrics.RecordErrorByComponent("analysis", "analyze_failed")
		return model.SuggestionSet{}, err
	}
	metrics.RecordAnalysisPass()
	metrics.RecordAnalysisLatency(float64(time.Since(began).Milliseconds()))

	slots, err := s.ranker.Generate(ctx, report, req.Roster, universe, fixtures)
	if err != nil {
		metrics.RecordErrorByComponent("candidates", "rank_failed")
		return model.SuggestionSet{}, err
	}
	// Exhaustion is counted before pruning; slots removed because their
	// out-athlete is pinned are kept slots, not dropped ones.
	if dropped := len(report.Flagged()) - len(slots); dropped > 0 {
		for i := 0; i < dropped; i++ {
			metrics.RecordSlotDropped()
		}
	}
	slots = pruneCandidates(slots, req.ExcludeIn, req.Pins)
	ranked := 0
	for _, slot := range slots {
		ranked += len(slot.Ranked)
	}
	metrics.RecordCandidatesRanked(ranked)

	set, err := s.composer.Compose(ctx, composer.Input{
		Report:   report,
		Slots:    slots,
		Roster:   req.Roster,
		Feedback: req.Feedback,
		WatchSet: s.watchSet(ctx, req.Roster, universe),
		Pins:     req.Pins,
	})
	if err != nil {
		metrics.RecordErrorByComponent("composer", "compose_failed")
		return model.SuggestionSet{}, err
	}
	return set, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"suggestionCount": s.suggestionCount,
		"lookahead":       s.lookahead,
		"maxSessions":     s.maxSessions,
	}
	if s.started {
		stats["activeSessions"] = s.store.Count(context.Background())
		stats["marketTracked"] = s.market.Count(context.Background())
	}
	return stats
}

func (s *Service) ensureStarted() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// pruneCandidates removes excluded incoming athletes from every slot's
// ranked list and drops slots whose outgoing athlete is already covered by
// a pinned suggestion, so a refinement turn cannot collide with kept slots.
func pruneCandidates(slots []candidates.Slot, excludeIn []int, pins []composer.Pin) []candidates.Slot {
	if len(excludeIn) == 0 && len(pins) == 0 {
		return slots
	}
	excluded := make(map[int]struct{}, len(excludeIn))
	for _, id := range excludeIn {
		excluded[id] = struct{}{}
	}
	pinnedOut := make(map[int]struct{}, len(pins))
	for _, p := range pins {
		pinnedOut[p.Suggestion.Out.ID] = struct{}{}
	}

	out := slots[:0]
	for _, slot := range slots {
		if _, held := pinnedOut[slot.Out.ID]; held {
			continue
		}
		kept := slot.Ranked[:0]
		for _, cand := range slot.Ranked {
			if _, skip := excluded[cand.In.ID]; !skip {
				kept = append(kept, cand)
			}
		}
		slot.Ranked = kept
		if len(slot.Ranked) > 0 {
			out = append(out, slot)
		}
	}
	return out
}

// publishMarketTicks feeds the turn's universe through the tick queue; the
// worker pool folds the ticks into the market board. The board may lag the
// current turn, so the watch set reflects the last settled market state.
func (s *Service) publishMarketTicks(ctx context.Context, universe []model.Athlete) {
	for _, a := range universe {
		tick := queue.Tick{
			AthleteID:  a.ID,
			Momentum:   float64(a.NetTransfers),
			Selectable: a.Status.Selectable(),
		}
		if !s.ticks.Enqueue(ctx, tick) {
			metrics.RecordErrorByComponent("marketindex", "tick_dropped")
			return
		}
	}
}

// watchSet picks the hottest athletes outside the squad from the market
// board, a small momentum hint handed to the backend for rationale color.
func (s *Service) watchSet(ctx context.Context, roster model.Roster, universe []model.Athlete) []model.Athlete {
	byID := make(map[int]model.Athlete, len(universe))
	for _, a := range universe {
		byID[a.ID] = a
	}

	// Over-fetch so squad members near the top cannot starve the set.
	top, err := s.market.TopN(ctx, watchSetSize+len(roster.Entries))
	if err != nil {
		metrics.RecordErrorByComponent("marketindex", "topn_failed")
		return nil
	}

	var out []model.Athlete
	for _, entry := range top {
		if roster.Contains(entry.AthleteID) {
			continue
		}
		a, ok := byID[entry.AthleteID]
		if !ok {
			continue
		}
		out = append(out, a)
		if len(out) == watchSetSize {
			break
		}
	}
	return out
}

// topPickResponder answers compose requests with each open slot's
// top-ranked candidate. It stands in for the real backend in tests and
// demos, the same way a simulated scorer would stand in for a remote model.
func topPickResponder(req generative.Request) (string, error) {
	var payload struct {
		OpenSlots []struct {
			Slot int `json:"slot"`
			Out  struct {
				ID   int    `json:"id"`
				Name string `json:"name"`
			} `json:"out"`
			Reasons    []string `json:"reasons"`
			Candidates []struct {
				ID   int    `json:"id"`
				Name string `json:"name"`
			} `json:"candidates"`
		} `json:"open_slots"`
	}
	if err := json.Unmarshal([]byte(req.Payload), &payload); err != nil {
		return "", err
	}

	type answer struct {
		Slot      int    `json:"slot"`
		OutID     int    `json:"out_id"`
		InID      int    `json:"in_id"`
		Rationale string `json:"rationale"`
	}
	var answers []answer
	for _, slot := range payload.OpenSlots {
		if len(slot.Candidates) == 0 {
			continue
		}
		reason := "squad analysis"
		if len(slot.Reasons) > 0 {
			reason = slot.Reasons[0]
		}
		answers = append(answers, answer{
			Slot:  slot.Slot,
			OutID: slot.Out.ID,
			InID:  slot.Candidates[0].ID,
			Rationale: fmt.Sprintf("%s is the strongest available upgrade on %s (%s).",
				slot.Candidates[0].Name, slot.Out.Name, reason),
		})
	}
	raw, err := json.Marshal(map[string]any{"suggestions": answers})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
