package testsession

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/okian/gaffer/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

type snapshotAthlete struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	Team         int      `json:"team"`
	TeamName     string   `json:"team_name"`
	Role         string   `json:"role"`
	CostTenths   int      `json:"cost_tenths"`
	Status       string   `json:"status"`
	Form         *float64 `json:"form"`
	TotalPoints  int      `json:"total_points"`
	Ownership    float64  `json:"ownership_pct"`
	NetTransfers int      `json:"net_transfers"`
}

type snapshotFixture struct {
	Team       int  `json:"team"`
	Opponent   int  `json:"opponent"`
	Home       bool `json:"home"`
	Difficulty int  `json:"difficulty"`
	Gameweek   int  `json:"gameweek"`
}

type snapshotState struct {
	Gameweek int `json:"gameweek"`
}

type snapshotEntry struct {
	AthleteID   int  `json:"athlete_id"`
	Starting    bool `json:"starting"`
	Captain     bool `json:"captain"`
	ViceCaptain bool `json:"vice_captain"`
}

type snapshotRoster struct {
	ManagerID  int             `json:"manager_id"`
	Gameweek   int             `json:"gameweek"`
	Bank       int             `json:"bank_tenths"`
	SquadValue int             `json:"squad_value_tenths"`
	Entries    []snapshotEntry `json:"entries"`
}

// squad roles by slot index: 2 GKP, 5 DEF, 5 MID, 3 FWD.
var squadRoles = []string{
	"GKP", "GKP",
	"DEF", "DEF", "DEF", "DEF", "DEF",
	"MID", "MID", "MID", "MID", "MID",
	"FWD", "FWD", "FWD",
}

// GenerateSnapshot writes a deterministic data snapshot into config.DataDir:
// a squad with a handful of out-of-form athletes and one injury, a market of
// affordable upgrades in every role, and a fixture grid for the lookahead
// window. The service pointed at this directory will flag the weak slots and
// always find legal candidates for them.
func GenerateSnapshot(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "generating data snapshot",
		logger.String("dataDir", config.DataDir),
		logger.Int("managerID", config.ManagerID))

	if err := os.MkdirAll(filepath.Join(config.DataDir, "rosters"), directoryPermission); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	athletes := buildAthletes()
	if err := writeSnapshotFile(config.DataDir, "athletes.json", athletes); err != nil {
		return err
	}

	if err := writeSnapshotFile(config.DataDir, "fixtures.json", buildFixtures()); err != nil {
		return err
	}

	if err := writeSnapshotFile(config.DataDir, "state.json", snapshotState{Gameweek: 7}); err != nil {
		return err
	}

	roster := buildRoster(config.ManagerID)
	name := filepath.Join("rosters", strconv.Itoa(config.ManagerID)+".json")
	if err := writeSnapshotFile(config.DataDir, name, roster); err != nil {
		return err
	}

	logger.Get().Info(ctx, "snapshot written",
		logger.Int("athletes", len(athletes)),
		logger.Int("squadSize", len(roster.Entries)))
	return nil
}

func buildAthletes() []snapshotAthlete {
	athletes := make([]snapshotAthlete, 0, squadSize+marketSize)

	// Squad athletes 1..15, mostly healthy form with a weak tail.
	poorForm := map[int]float64{5: 2.0, 10: 2.5, 12: 3.0, 13: 1.5}
	for i := 0; i < squadSize; i++ {
		id := i + 1
		form := 6.0
		if f, ok := poorForm[id]; ok {
			form = f
		}
		status := "available"
		if id == squadSize {
			status = "injured"
		}
		athletes = append(athletes, snapshotAthlete{
			ID:           id,
			Name:         "Squad Athlete " + strconv.Itoa(id),
			Team:         id,
			TeamName:     "Team " + strconv.Itoa(id),
			Role:         squadRoles[i],
			CostTenths:   60,
			Status:       status,
			Form:         &form,
			TotalPoints:  40 + id,
			Ownership:    10.0,
			NetTransfers: -id * 100,
		})
	}

	// Market athletes 101..140 spread across roles and teams, all in form
	// and affordable against a 6.0m squad slot plus the bank.
	for i := 0; i < marketSize; i++ {
		id := 101 + i
		form := 7.0 + float64(i%4)*0.5
		athletes = append(athletes, snapshotAthlete{
			ID:           id,
			Name:         "Market Athlete " + strconv.Itoa(id),
			Team:         16 + i%(teamCount-15),
			TeamName:     "Team " + strconv.Itoa(16+i%(teamCount-15)),
			Role:         squadRoles[i%len(squadRoles)],
			CostTenths:   45 + (i%8)*5,
			Status:       "available",
			Form:         &form,
			TotalPoints:  50 + i,
			Ownership:    5.0 + float64(i),
			NetTransfers: 1000 * (i + 1),
		})
	}
	return athletes
}

func buildFixtures() []snapshotFixture {
	fixtures := make([]snapshotFixture, 0, teamCount*lookaheadWeeks)
	for team := 1; team <= teamCount; team++ {
		for gw := 8; gw < 8+lookaheadWeeks; gw++ {
			fixtures = append(fixtures, snapshotFixture{
				Team:       team,
				Opponent:   (team % teamCount) + 1,
				Home:       (team+gw)%2 == 0,
				Difficulty: 2 + (team+gw)%3,
				Gameweek:   gw,
			})
		}
	}
	return fixtures
}

func buildRoster(managerID int) snapshotRoster {
	entries := make([]snapshotEntry, squadSize)
	for i := range entries {
		entries[i] = snapshotEntry{
			AthleteID:   i + 1,
			Starting:    i < 11,
			Captain:     i == 7,
			ViceCaptain: i == 8,
		}
	}
	return snapshotRoster{
		ManagerID:  managerID,
		Gameweek:   7,
		Bank:       defaultBankTenth,
		SquadValue: squadSize * 60,
		Entries:    entries,
	}
}

func writeSnapshotFile(root, name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	path := filepath.Join(root, name)
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
