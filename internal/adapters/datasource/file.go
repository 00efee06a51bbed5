package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/pkg/logger"
)

// Snapshot file names under the data root. Rosters live in a subdirectory,
// one file per manager id.
const (
	athletesFile = "athletes.json"
	fixturesFile = "fixtures.json"
	stateFile    = "state.json"
	rostersDir   = "rosters"
)

// FileOption applies a configuration option to the FileProvider.
type FileOption func(*FileProvider)

// WithFileLogger sets a custom logger for the provider.
func WithFileLogger(log logger.Logger) FileOption {
	return func(p *FileProvider) {
		if log != nil {
			p.log = log
		}
	}
}

// FileProvider reads game-state snapshots from a directory of JSON files.
// Files are parsed lazily and cached for the provider's lifetime; a provider
// represents one consistent snapshot, not a live feed.
type FileProvider struct {
	root string
	log  logger.Logger

	mu       sync.Mutex
	athletes []model.Athlete
	byID     map[int]model.Athlete
	fixtures []model.Fixture
	gameweek int
	loaded   bool
}

// NewFileProvider creates a provider over the given snapshot directory.
func NewFileProvider(root string, opts ...FileOption) *FileProvider {
	p := &FileProvider{root: root}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get().Named("datasource")
	}
	return p
}

type wireAthlete struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	Team         int      `json:"team"`
	TeamName     string   `json:"team_name"`
	Role         string   `json:"role"`
	CostTenths   int      `json:"cost_tenths"`
	Status       string   `json:"status"`
	Form         *float64 `json:"form"`
	TotalPoints  int      `json:"total_points"`
	ExpAttack    *float64 `json:"expected_attack"`
	ExpDefense   *float64 `json:"expected_defense"`
	Ownership    float64  `json:"ownership_pct"`
	NetTransfers int      `json:"net_transfers"`
}

type wireFixture struct {
	Team       int  `json:"team"`
	Opponent   int  `json:"opponent"`
	Home       bool `json:"home"`
	Difficulty int  `json:"difficulty"`
	Gameweek   int  `json:"gameweek"`
}

type wireState struct {
	Gameweek int `json:"gameweek"`
}

type wireRoster struct {
	ManagerID  int         `json:"manager_id"`
	Gameweek   int         `json:"gameweek"`
	Bank       int         `json:"bank_tenths"`
	SquadValue int         `json:"squad_value_tenths"`
	Entries    []wireEntry `json:"entries"`
}

type wireEntry struct {
	AthleteID   int  `json:"athlete_id"`
	Starting    bool `json:"starting"`
	Captain     bool `json:"captain"`
	ViceCaptain bool `json:"vice_captain"`
}

// Universe returns the athlete snapshot.
func (p *FileProvider) Universe(ctx context.Context) ([]model.Athlete, error) {
	if err := p.load(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Athlete, len(p.athletes))
	copy(out, p.athletes)
	return out, nil
}

// Fixtures returns the fixture snapshot.
func (p *FileProvider) Fixtures(ctx context.Context) ([]model.Fixture, error) {
	if err := p.load(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Fixture, len(p.fixtures))
	copy(out, p.fixtures)
	return out, nil
}

// Gameweek returns the snapshot's current gameweek.
func (p *FileProvider) Gameweek(ctx context.Context) (int, error) {
	if err := p.load(ctx); err != nil {
		return 0, err
	}
	return p.gameweek, nil
}

// Roster returns the given manager's squad, with entries resolved against
// the athlete universe.
func (p *FileProvider) Roster(ctx context.Context, managerID int) (model.Roster, error) {
	if err := p.load(ctx); err != nil {
		return model.Roster{}, err
	}

	path := filepath.Join(p.root, rostersDir, strconv.Itoa(managerID)+".json")
	var wire wireRoster
	if err := readJSON(path, &wire); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Roster{}, fmt.Errorf("manager %d: %w", managerID, ErrNotFound)
		}
		return model.Roster{}, err
	}

	roster := model.Roster{
		ManagerID:  wire.ManagerID,
		Gameweek:   wire.Gameweek,
		Bank:       wire.Bank,
		SquadValue: wire.SquadValue,
	}
	if roster.ManagerID == 0 {
		roster.ManagerID = managerID
	}
	if roster.Gameweek == 0 {
		roster.Gameweek = p.gameweek
	}
	for _, e := range wire.Entries {
		ath, ok := p.byID[e.AthleteID]
		if !ok {
			return model.Roster{}, fmt.Errorf("roster of manager %d references unknown athlete %d: %w",
				managerID, e.AthleteID, ErrBadPayload)
		}
		roster.Entries = append(roster.Entries, model.RosterEntry{
			Athlete:     ath,
			Starting:    e.Starting,
			Captain:     e.Captain,
			ViceCaptain: e.ViceCaptain,
		})
	}
	return roster, nil
}

// load reads and validates the shared snapshot files once.
func (p *FileProvider) load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return nil
	}

	var wireAthletes []wireAthlete
	if err := readJSON(filepath.Join(p.root, athletesFile), &wireAthletes); err != nil {
		return err
	}
	p.byID = make(map[int]model.Athlete, len(wireAthletes))
	for _, w := range wireAthletes {
		ath := model.Athlete{
			ID:           w.ID,
			Name:         w.Name,
			Team:         w.Team,
			TeamName:     w.TeamName,
			Role:         model.Role(w.Role),
			Cost:         w.CostTenths,
			Status:       model.Availability(w.Status),
			Form:         w.Form,
			TotalPoints:  w.TotalPoints,
			ExpAttack:    w.ExpAttack,
			ExpDefense:   w.ExpDefense,
			Ownership:    w.Ownership,
			NetTransfers: w.NetTransfers,
		}
		if ath.ID == 0 || !ath.Role.Valid() {
			return fmt.Errorf("athlete %d has id/role %q: %w", w.ID, w.Role, ErrBadPayload)
		}
		p.athletes = append(p.athletes, ath)
		p.byID[ath.ID] = ath
	}

	var wireFixtures []wireFixture
	if err := readJSON(filepath.Join(p.root, fixturesFile), &wireFixtures); err != nil {
		return err
	}
	for _, w := range wireFixtures {
		p.fixtures = append(p.fixtures, model.Fixture{
			Team:       w.Team,
			Opponent:   w.Opponent,
			Home:       w.Home,
			Difficulty: w.Difficulty,
			Gameweek:   w.Gameweek,
		})
	}

	var state wireState
	if err := readJSON(filepath.Join(p.root, stateFile), &state); err != nil {
		return err
	}
	p.gameweek = state.Gameweek

	p.loaded = true
	p.log.Debug(ctx, "snapshot loaded",
		logger.String("root", p.root),
		logger.Int("athletes", len(p.athletes)),
		logger.Int("fixtures", len(p.fixtures)),
		logger.Int("gameweek", p.gameweek))
	return nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse %s: %v: %w", path, err, ErrBadPayload)
	}
	return nil
}
