package model

// Fixture is one scheduled match from a source team's point of view.
// Difficulty is a bounded rating, higher = harder.
type Fixture struct {
	Team       int
	Opponent   int
	Home       bool
	Difficulty int // 1..5
	Gameweek   int // time ordering index
}
