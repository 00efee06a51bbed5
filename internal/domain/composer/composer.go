// Package composer turns ranked candidate slots into a narrated suggestion
// set by delegating slot selection and rationale writing to a generative
// backend, then validating everything the backend claims against the
// deterministic candidate data before accepting it.
package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/gaffer/internal/adapters/generative"
	"github.com/okian/gaffer/internal/domain/analysis"
	"github.com/okian/gaffer/internal/domain/candidates"
	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/pkg/logger"
	"github.com/okian/gaffer/pkg/metrics"
)

const (
	defaultSuggestionCount = 5

	systemPrompt = "You are an assistant manager for a fantasy football squad. " +
		"You pick transfers only from the candidate lists you are given and " +
		"explain each pick in one or two plain sentences. You answer with a " +
		"single JSON object and nothing else."

	strictSuffix = "\n\nYour previous answer was rejected. Reply with ONLY a " +
		"JSON object of the form {\"suggestions\":[...]}. Every entry must " +
		"use an out_id and in_id taken verbatim from the candidate list of " +
		"its slot. Do not invent athletes and do not add commentary."
)

// Pin carries one suggestion that must survive a turn untouched, anchored to
// its position in the set.
type Pin struct {
	Slot       int
	Suggestion model.Suggestion
}

// Input bundles everything one compose turn needs.
type Input struct {
	Report   *analysis.Report
	Slots    []candidates.Slot
	Roster   model.Roster
	Feedback string
	WatchSet []model.Athlete
	Pins     []Pin
}

// Option applies a configuration option to the Composer.
type Option func(*Composer)

// WithSuggestionCount sets how many suggestions a full set carries.
func WithSuggestionCount(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.count = n
		}
	}
}

// WithLogger sets a custom logger for the composer.
func WithLogger(log logger.Logger) Option {
	return func(c *Composer) {
		if log != nil {
			c.log = log
		}
	}
}

// Composer assembles suggestion sets. Pinned slots never reach the backend;
// they are spliced back verbatim after the open slots are filled.
type Composer struct {
	client generative.Client
	count  int
	log    logger.Logger
}

// New creates a Composer over the given generative client.
func New(client generative.Client, opts ...Option) *Composer {
	c := &Composer{
		client: client,
		count:  defaultSuggestionCount,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("composer")
	}
	return c
}

// promptPayload is the machine-readable half of the request. The narrative
// prompt references it, and scripted backends parse it directly.
type promptPayload struct {
	Gameweek  int              `json:"gameweek"`
	Bank      int              `json:"bank_tenths"`
	Count     int              `json:"suggestion_count"`
	Feedback  string           `json:"feedback,omitempty"`
	OpenSlots []payloadSlot    `json:"open_slots"`
	WatchSet  []payloadAthlete `json:"watch_set,omitempty"`
	Squad     []payloadAthlete `json:"squad"`
}

type payloadSlot struct {
	Slot       int              `json:"slot"`
	Out        payloadAthlete   `json:"out"`
	Reasons    []string         `json:"reasons"`
	Candidates []payloadInsider `json:"candidates"`
}

type payloadAthlete struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Team   string  `json:"team"`
	Role   string  `json:"role"`
	Cost   int     `json:"cost_tenths"`
	Points int     `json:"total_points"`
	Form   float64 `json:"form,omitempty"`
}

type payloadInsider struct {
	payloadAthlete
	PointDelta float64 `json:"projected_gain"`
	CostDelta  int     `json:"cost_delta_tenths"`
}

// generatedSet is the shape the backend must answer with.
type generatedSet struct {
	Suggestions []generatedSuggestion `json:"suggestions"`
}

type generatedSuggestion struct {
	Slot          int    `json:"slot"`
	OutID         int    `json:"out_id"`
	InID          int    `json:"in_id"`
	Rationale     string `json:"rationale"`
	CaptainID     int    `json:"captain_id,omitempty"`
	ViceCaptainID int    `json:"vice_captain_id,omitempty"`
}

// Compose produces a full suggestion set. Open slots are filled from the
// backend's answer after validation; pinned slots are copied through without
// regeneration, so a rejected backend answer can never disturb them.
func (c *Composer) Compose(ctx context.Context, in Input) (model.SuggestionSet, error) {
	if in.Report == nil {
		return model.SuggestionSet{}, fmt.Errorf("nil report: %w", ErrInvalidInput)
	}

	size := c.count
	if avail := len(in.Pins) + len(in.Slots); avail < size {
		size = avail
	}

	pinned := make(map[int]model.Suggestion, len(in.Pins))
	for _, p := range in.Pins {
		if p.Slot < 0 {
			return model.SuggestionSet{}, fmt.Errorf("pin slot %d out of range: %w", p.Slot, ErrInvalidPin)
		}
		if _, dup := pinned[p.Slot]; dup {
			return model.SuggestionSet{}, fmt.Errorf("pin slot %d repeated: %w", p.Slot, ErrInvalidPin)
		}
		pinned[p.Slot] = p.Suggestion
		// Pins keep the position they held in the set they came from, so
		// the new set can never shrink past the highest pinned slot.
		if p.Slot+1 > size {
			size = p.Slot + 1
		}
	}
	if size == 0 {
		return model.SuggestionSet{}, fmt.Errorf("no slots and no pins: %w", ErrInvalidInput)
	}

	// Assign candidate slots to the open positions in order. openBySlot maps
	// the position index the backend will see to its candidate slot.
	openBySlot := make(map[int]candidates.Slot)
	next := 0
	for pos := 0; pos < size; pos++ {
		if _, ok := pinned[pos]; ok {
			continue
		}
		if next >= len(in.Slots) {
			// Trailing open positions without candidates just shrink the
			// set; an open position between pins has run out of legal
			// replacements and cannot be dropped without moving them.
			if pinnedAtOrAfter(pinned, pos) {
				return model.SuggestionSet{}, fmt.Errorf("no candidates left for slot %d: %w", pos, candidates.ErrNoLegalCandidate)
			}
			size = pos
			break
		}
		openBySlot[pos] = in.Slots[next]
		next++
	}

	result := model.SuggestionSet{
		CreatedAt:   time.Now().UTC(),
		Gameweek:    in.Report.Gameweek,
		Suggestions: make([]model.Suggestion, size),
	}
	for pos, sug := range pinned {
		if pos < size {
			result.Suggestions[pos] = sug
		}
	}

	if len(openBySlot) == 0 {
		metrics.RecordSuggestionSet(len(result.Suggestions))
		return result, nil
	}

	req, err := c.buildRequest(in, openBySlot)
	if err != nil {
		return model.SuggestionSet{}, err
	}

	filled, err := c.generate(ctx, req, in, openBySlot)
	if err != nil {
		return model.SuggestionSet{}, err
	}
	for pos, sug := range filled {
		result.Suggestions[pos] = sug
	}

	if err := checkDisjoint(result.Suggestions); err != nil {
		return model.SuggestionSet{}, err
	}
	metrics.RecordSuggestionSet(len(result.Suggestions))
	return result, nil
}

// generate runs the backend once and, if the answer fails validation, once
// more with a stricter instruction before giving up.
func (c *Composer) generate(ctx context.Context, req generative.Request, in Input, open map[int]candidates.Slot) (map[int]model.Suggestion, error) {
	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	filled, verr := c.validate(resp.Text, in, open)
	if verr == nil {
		return filled, nil
	}

	metrics.RecordGenerationRejected()
	c.log.Warn(ctx, "backend answer rejected, retrying with strict prompt",
		logger.Error(verr))

	strict := req
	strict.Prompt += strictSuffix
	resp, err = c.client.Complete(ctx, strict)
	if err != nil {
		return nil, err
	}
	filled, verr = c.validate(resp.Text, in, open)
	if verr == nil {
		return filled, nil
	}
	metrics.RecordGenerationRejected()
	return nil, fmt.Errorf("%v: %w", verr, ErrGenerationValidation)
}

func (c *Composer) buildRequest(in Input, open map[int]candidates.Slot) (generative.Request, error) {
	payload := promptPayload{
		Gameweek: in.Report.Gameweek,
		Bank:     in.Roster.Bank,
		Count:    len(open),
		Feedback: in.Feedback,
	}
	for _, e := range in.Roster.Entries {
		payload.Squad = append(payload.Squad, toPayloadAthlete(e.Athlete))
	}
	for _, a := range in.WatchSet {
		payload.WatchSet = append(payload.WatchSet, toPayloadAthlete(a))
	}
	positions := make([]int, 0, len(open))
	for pos := range open {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	for _, pos := range positions {
		slot := open[pos]
		ps := payloadSlot{Slot: pos, Out: toPayloadAthlete(slot.Out), Reasons: slot.Reasons}
		for _, cand := range slot.Ranked {
			ps.Candidates = append(ps.Candidates, payloadInsider{
				payloadAthlete: toPayloadAthlete(cand.In),
				PointDelta:     cand.PointDelta,
				CostDelta:      cand.CostDelta,
			})
		}
		payload.OpenSlots = append(payload.OpenSlots, ps)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return generative.Request{}, fmt.Errorf("marshal payload: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pick exactly one replacement for each of the %d open slots below, ", len(open))
	b.WriteString("choosing only from that slot's candidate list. ")
	if in.Feedback != "" {
		b.WriteString("The manager gave feedback on the previous picks; weigh it when choosing and when writing rationales. ")
	}
	b.WriteString("Answer with a JSON object {\"suggestions\":[{\"slot\":...,\"out_id\":...,\"in_id\":...,\"rationale\":\"...\"}]}. ")
	b.WriteString("Optionally include captain_id and vice_captain_id on a suggestion when an armband change is clearly justified.")

	return generative.Request{
		System:  systemPrompt,
		Prompt:  b.String(),
		Payload: string(raw),
	}, nil
}

// validate parses the backend answer and verifies every claim against the
// candidate data. All numeric fields on the accepted suggestions come from
// the deterministic side, never from the backend.
func (c *Composer) validate(text string, in Input, open map[int]candidates.Slot) (map[int]model.Suggestion, error) {
	var parsed generatedSet
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return nil, fmt.Errorf("unparseable answer: %w", err)
	}
	if len(parsed.Suggestions) != len(open) {
		return nil, fmt.Errorf("answered %d suggestions, expected %d", len(parsed.Suggestions), len(open))
	}

	filled := make(map[int]model.Suggestion, len(open))
	for _, gs := range parsed.Suggestions {
		slot, ok := open[gs.Slot]
		if !ok {
			return nil, fmt.Errorf("slot %d is not open", gs.Slot)
		}
		if _, dup := filled[gs.Slot]; dup {
			return nil, fmt.Errorf("slot %d answered twice", gs.Slot)
		}
		if gs.OutID != slot.Out.ID {
			return nil, fmt.Errorf("slot %d proposes removing athlete %d, expected %d", gs.Slot, gs.OutID, slot.Out.ID)
		}
		cand, ok := findCandidate(slot, gs.InID)
		if !ok {
			return nil, fmt.Errorf("slot %d proposes athlete %d outside its candidate list", gs.Slot, gs.InID)
		}
		if strings.TrimSpace(gs.Rationale) == "" {
			return nil, fmt.Errorf("slot %d has an empty rationale", gs.Slot)
		}

		sug := model.Suggestion{
			Out:           slot.Out,
			In:            cand.In,
			Priority:      gs.Slot + 1,
			ProjectedGain: cand.PointDelta,
			Rationale:     strings.TrimSpace(gs.Rationale),
			BankAfter:     in.Roster.Bank - cand.CostDelta,
		}
		sug.Captaincy = c.captaincy(gs, in.Roster, slot.Out, cand.In)
		filled[gs.Slot] = sug
	}
	return filled, nil
}

// captaincy accepts an armband recommendation only when both athletes would
// actually be in the squad after the swap. A bad recommendation is dropped,
// not fatal, since the swap itself already validated.
func (c *Composer) captaincy(gs generatedSuggestion, roster model.Roster, out, in model.Athlete) *model.Captaincy {
	if gs.CaptainID == 0 {
		return nil
	}
	postSwap := make(map[int]string, len(roster.Entries))
	for _, e := range roster.Entries {
		if e.Athlete.ID != out.ID {
			postSwap[e.Athlete.ID] = e.Athlete.Name
		}
	}
	postSwap[in.ID] = in.Name

	capName, ok := postSwap[gs.CaptainID]
	if !ok {
		return nil
	}
	cpt := &model.Captaincy{CaptainID: gs.CaptainID, CaptainName: capName}
	if gs.ViceCaptainID != 0 && gs.ViceCaptainID != gs.CaptainID {
		if viceName, ok := postSwap[gs.ViceCaptainID]; ok {
			cpt.ViceCaptainID = gs.ViceCaptainID
			cpt.ViceCaptainName = viceName
		}
	}
	return cpt
}

// checkDisjoint confirms no athlete is proposed in twice and no slot removes
// the same athlete twice across the whole set, pins included.
func checkDisjoint(suggestions []model.Suggestion) error {
	outs := make(map[int]struct{}, len(suggestions))
	ins := make(map[int]struct{}, len(suggestions))
	for _, s := range suggestions {
		if _, dup := outs[s.Out.ID]; dup {
			return fmt.Errorf("athlete %d removed by two suggestions: %w", s.Out.ID, ErrGenerationValidation)
		}
		if _, dup := ins[s.In.ID]; dup {
			return fmt.Errorf("athlete %d proposed in twice: %w", s.In.ID, ErrGenerationValidation)
		}
		outs[s.Out.ID] = struct{}{}
		ins[s.In.ID] = struct{}{}
	}
	return nil
}

func pinnedAtOrAfter(pinned map[int]model.Suggestion, pos int) bool {
	for slot := range pinned {
		if slot >= pos {
			return true
		}
	}
	return false
}

func findCandidate(slot candidates.Slot, inID int) (candidates.Candidate, bool) {
	for _, cand := range slot.Ranked {
		if cand.In.ID == inID {
			return cand, true
		}
	}
	return candidates.Candidate{}, false
}

func toPayloadAthlete(a model.Athlete) payloadAthlete {
	p := payloadAthlete{
		ID:     a.ID,
		Name:   a.Name,
		Team:   a.TeamName,
		Role:   string(a.Role),
		Cost:   a.Cost,
		Points: a.TotalPoints,
	}
	if a.Form != nil {
		p.Form = *a.Form
	}
	return p
}

// stripFences removes a markdown code fence wrapper if the backend added
// one despite being told not to.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	if idx := strings.Index(t, "\n"); idx >= 0 {
		t = t[idx+1:]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
