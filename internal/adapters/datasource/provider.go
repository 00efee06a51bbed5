// Package datasource provides the read side of the suggestion pipeline:
// athlete universe, fixture list, and manager rosters.
package datasource

import (
	"context"

	"github.com/okian/gaffer/internal/domain/model"
)

// Provider supplies the snapshots a suggestion pass works from.
type Provider interface {
	// Universe returns every athlete in the current game state.
	Universe(ctx context.Context) ([]model.Athlete, error)

	// Fixtures returns the known upcoming fixtures for all teams.
	Fixtures(ctx context.Context) ([]model.Fixture, error)

	// Roster returns the squad of the given manager.
	// Returns ErrNotFound for unknown managers.
	Roster(ctx context.Context, managerID int) (model.Roster, error)

	// Gameweek returns the current gameweek number.
	Gameweek(ctx context.Context) (int, error)
}
