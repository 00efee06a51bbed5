// Package model contains domain models passed between layers.
package model

// Role is an athlete's position in the squad.
type Role string

// The fixed set of roster positions.
const (
	RoleGoalkeeper Role = "GKP"
	RoleDefender   Role = "DEF"
	RoleMidfielder Role = "MID"
	RoleForward    Role = "FWD"
)

// Valid reports whether r is one of the known positions.
func (r Role) Valid() bool {
	switch r {
	case RoleGoalkeeper, RoleDefender, RoleMidfielder, RoleForward:
		return true
	}
	return false
}

// Availability is an athlete's selection status.
type Availability string

// Availability statuses as reported by the upstream data source.
const (
	StatusAvailable Availability = "a"
	StatusDoubtful  Availability = "d"
	StatusInjured   Availability = "i"
	StatusSuspended Availability = "s"
	StatusLeft      Availability = "u" // no longer in the athlete universe
)

// Selectable reports whether an athlete with this status can be transferred in.
func (s Availability) Selectable() bool {
	return s == StatusAvailable || s == StatusDoubtful
}

// Unavailable reports whether the status rules an athlete out entirely.
func (s Availability) Unavailable() bool {
	return s == StatusInjured || s == StatusSuspended || s == StatusLeft
}

// Athlete is an immutable snapshot of one athlete in the universe, valid for
// the duration of a single analysis pass. Optional statistics use pointers so
// that "missing" stays distinct from zero.
type Athlete struct {
	ID       int
	Name     string
	Team     int    // source-team id
	TeamName string
	Role     Role
	Cost     int // tenths of a currency unit, e.g. 95 = 9.5
	Status   Availability

	Form         *float64 // rolling recent-performance statistic
	TotalPoints  int      // season total
	ExpAttack    *float64 // predictive attack estimate
	ExpDefense   *float64 // predictive defense estimate
	Ownership    float64  // selected-by percentage
	NetTransfers int      // transfers in minus out, current gameweek
}

// CostUnits returns the cost in whole currency units.
func (a Athlete) CostUnits() float64 {
	return float64(a.Cost) / 10
}
