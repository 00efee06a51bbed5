package model

// RosterEntry is one slot in the current squad. Entries are replaced
// wholesale on each analysis pass, never mutated in place.
type RosterEntry struct {
	Athlete     Athlete
	Starting    bool
	Captain     bool
	ViceCaptain bool
}

// Roster is the manager's current squad snapshot plus budget state.
type Roster struct {
	ManagerID  int
	Gameweek   int
	Entries    []RosterEntry
	Bank       int // tenths of a currency unit
	SquadValue int // tenths of a currency unit
}

// Contains reports whether the squad already holds the given athlete.
func (r Roster) Contains(athleteID int) bool {
	for _, e := range r.Entries {
		if e.Athlete.ID == athleteID {
			return true
		}
	}
	return false
}

// TeamCount returns how many squad athletes belong to the given source team.
func (r Roster) TeamCount(team int) int {
	n := 0
	for _, e := range r.Entries {
		if e.Athlete.Team == team {
			n++
		}
	}
	return n
}
