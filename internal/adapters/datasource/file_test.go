package datasource_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/gaffer/internal/adapters/datasource"
	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

const athletesJSON = `[
	{"id": 1, "name": "First Keeper", "team": 1, "team_name": "Alpha", "role": "GKP",
	 "cost_tenths": 45, "status": "a", "form": 3.2, "total_points": 40},
	{"id": 2, "name": "Star Mid", "team": 2, "team_name": "Beta", "role": "MID",
	 "cost_tenths": 120, "status": "a", "form": 8.1, "total_points": 90,
	 "expected_attack": 5.5, "ownership_pct": 45.2, "net_transfers": 120000},
	{"id": 3, "name": "Injured Fwd", "team": 3, "team_name": "Gamma", "role": "FWD",
	 "cost_tenths": 80, "status": "i", "form": null, "total_points": 21}
]`

const fixturesJSON = `[
	{"team": 1, "opponent": 2, "home": true, "difficulty": 2, "gameweek": 8},
	{"team": 2, "opponent": 1, "home": false, "difficulty": 4, "gameweek": 8}
]`

const stateJSON = `{"gameweek": 7}`

const rosterJSON = `{
	"manager_id": 42,
	"bank_tenths": 15,
	"squad_value_tenths": 1000,
	"entries": [
		{"athlete_id": 1, "starting": true},
		{"athlete_id": 2, "starting": true, "captain": true}
	]
}`

func writeSnapshot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"athletes.json": athletesJSON,
		"fixtures.json": fixturesJSON,
		"state.json":    stateJSON,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "rosters"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "rosters", "42.json"), []byte(rosterJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestFileProvider(t *testing.T) {
	Convey("Given a snapshot directory", t, func() {
		root := writeSnapshot(t)
		provider := datasource.NewFileProvider(root)
		ctx := context.Background()

		Convey("When the universe is read", func() {
			universe, err := provider.Universe(ctx)

			Convey("Then every athlete parses with typed fields", func() {
				So(err, ShouldBeNil)
				So(universe, ShouldHaveLength, 3)
				So(universe[1].Name, ShouldEqual, "Star Mid")
				So(universe[1].Role, ShouldEqual, model.RoleMidfielder)
				So(universe[1].Cost, ShouldEqual, 120)
				So(*universe[1].Form, ShouldEqual, 8.1)
				So(*universe[1].ExpAttack, ShouldEqual, 5.5)
				So(universe[2].Status, ShouldEqual, model.StatusInjured)
				So(universe[2].Form, ShouldBeNil)
			})
		})

		Convey("When fixtures and gameweek are read", func() {
			fixtures, ferr := provider.Fixtures(ctx)
			gw, gerr := provider.Gameweek(ctx)

			Convey("Then both reflect the snapshot", func() {
				So(ferr, ShouldBeNil)
				So(fixtures, ShouldHaveLength, 2)
				So(fixtures[0].Difficulty, ShouldEqual, 2)
				So(gerr, ShouldBeNil)
				So(gw, ShouldEqual, 7)
			})
		})

		Convey("When a roster is read", func() {
			roster, err := provider.Roster(ctx, 42)

			Convey("Then entries resolve against the universe", func() {
				So(err, ShouldBeNil)
				So(roster.ManagerID, ShouldEqual, 42)
				So(roster.Bank, ShouldEqual, 15)
				So(roster.Gameweek, ShouldEqual, 7) // falls back to snapshot state
				So(roster.Entries, ShouldHaveLength, 2)
				So(roster.Entries[1].Athlete.Name, ShouldEqual, "Star Mid")
				So(roster.Entries[1].Captain, ShouldBeTrue)
			})
		})

		Convey("When an unknown manager is requested", func() {
			_, err := provider.Roster(ctx, 7)

			Convey("Then the not-found kind is returned", func() {
				So(err, ShouldWrap, datasource.ErrNotFound)
			})
		})
	})

	Convey("Given a snapshot with a corrupt athlete", t, func() {
		root := t.TempDir()
		So(os.WriteFile(filepath.Join(root, "athletes.json"),
			[]byte(`[{"id": 1, "role": "XYZ"}]`), 0o644), ShouldBeNil)
		So(os.WriteFile(filepath.Join(root, "fixtures.json"), []byte(`[]`), 0o644), ShouldBeNil)
		So(os.WriteFile(filepath.Join(root, "state.json"), []byte(stateJSON), 0o644), ShouldBeNil)
		provider := datasource.NewFileProvider(root)

		Convey("When the universe is read", func() {
			_, err := provider.Universe(context.Background())

			Convey("Then the payload is rejected", func() {
				So(err, ShouldWrap, datasource.ErrBadPayload)
			})
		})
	})

	Convey("Given a roster referencing an unknown athlete", t, func() {
		root := writeSnapshot(t)
		bad := `{"manager_id": 9, "entries": [{"athlete_id": 999}]}`
		So(os.WriteFile(filepath.Join(root, "rosters", "9.json"), []byte(bad), 0o644), ShouldBeNil)
		provider := datasource.NewFileProvider(root)

		Convey("When that roster is read", func() {
			_, err := provider.Roster(context.Background(), 9)

			Convey("Then the payload is rejected", func() {
				So(err, ShouldWrap, datasource.ErrBadPayload)
			})
		})
	})

	Convey("Given a missing snapshot directory", t, func() {
		provider := datasource.NewFileProvider(filepath.Join(t.TempDir(), "absent"))

		Convey("When the universe is read", func() {
			_, err := provider.Universe(context.Background())

			Convey("Then the read fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
