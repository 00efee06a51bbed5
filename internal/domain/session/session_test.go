package session_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/internal/domain/session"
	"github.com/okian/gaffer/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// fakeRunner answers turns from a small pool of athletes, honoring pins and
// exclusions the way the real pipeline does.
type fakeRunner struct {
	calls    []session.TurnRequest
	failWith error
	pool     []model.Athlete // incoming athletes handed out in order
	size     int
}

func (r *fakeRunner) RunTurn(ctx context.Context, req session.TurnRequest) (model.SuggestionSet, error) {
	r.calls = append(r.calls, req)
	if r.failWith != nil {
		return model.SuggestionSet{}, r.failWith
	}

	excluded := make(map[int]bool, len(req.ExcludeIn))
	for _, id := range req.ExcludeIn {
		excluded[id] = true
	}
	pinned := make(map[int]model.Suggestion, len(req.Pins))
	for _, p := range req.Pins {
		pinned[p.Slot] = p.Suggestion
	}

	set := model.SuggestionSet{CreatedAt: time.Now().UTC(), Gameweek: 8}
	next := 0
	for slot := 0; slot < r.size; slot++ {
		if sug, ok := pinned[slot]; ok {
			set.Suggestions = append(set.Suggestions, sug)
			continue
		}
		for next < len(r.pool) && excluded[r.pool[next].ID] {
			next++
		}
		if next >= len(r.pool) {
			return model.SuggestionSet{}, errors.New("pool exhausted")
		}
		in := r.pool[next]
		next++
		set.Suggestions = append(set.Suggestions, model.Suggestion{
			Out:       model.Athlete{ID: 100 + slot, Name: fmt.Sprintf("Out %d", slot)},
			In:        in,
			Priority:  slot + 1,
			Rationale: fmt.Sprintf("swap for %s", in.Name),
		})
	}
	return set, nil
}

func pool(n int) []model.Athlete {
	out := make([]model.Athlete, n)
	for i := range out {
		out[i] = model.Athlete{ID: 200 + i, Name: fmt.Sprintf("In %d", i)}
	}
	return out
}

func testRoster() model.Roster {
	return model.Roster{ManagerID: 42, Gameweek: 7, Bank: 10}
}

func TestSessionLifecycle(t *testing.T) {
	Convey("Given a fresh session", t, func() {
		runner := &fakeRunner{pool: pool(20), size: 3}
		s := session.New("sess-1", testRoster(), runner)
		ctx := context.Background()

		Convey("Then it starts empty", func() {
			So(s.State(), ShouldEqual, session.StateEmpty)
			So(s.Current().Suggestions, ShouldBeEmpty)
		})

		Convey("When refinement is attempted before generation", func() {
			_, ferr := s.Feedback(ctx, "more defenders")
			_, rerr := s.ReplaceOne(ctx, model.Suggestion{})

			Convey("Then both turns are rejected", func() {
				So(ferr, ShouldWrap, session.ErrEmptySession)
				So(rerr, ShouldWrap, session.ErrEmptySession)
			})
		})

		Convey("When the first set is generated", func() {
			set, err := s.Generate(ctx)

			Convey("Then the session holds it", func() {
				So(err, ShouldBeNil)
				So(set.Suggestions, ShouldHaveLength, 3)
				So(s.State(), ShouldEqual, session.StateGenerated)
				So(s.Current().Suggestions, ShouldHaveLength, 3)
				So(s.Turns(), ShouldHaveLength, 1)
				So(s.Turns()[0].Kind, ShouldEqual, session.TurnGenerate)
				So(s.Turns()[0].Ok, ShouldBeTrue)
			})

			Convey("And a second Generate is rejected", func() {
				_, err := s.Generate(ctx)
				So(err, ShouldWrap, session.ErrAlreadyGenerated)
			})
		})
	})
}

func TestSessionFeedback(t *testing.T) {
	Convey("Given a generated session", t, func() {
		runner := &fakeRunner{pool: pool(20), size: 3}
		s := session.New("sess-2", testRoster(), runner)
		ctx := context.Background()
		_, err := s.Generate(ctx)
		So(err, ShouldBeNil)

		Convey("When feedback drives a new turn", func() {
			set, err := s.Feedback(ctx, "avoid premium forwards")

			Convey("Then the whole set is regenerated with the feedback threaded through", func() {
				So(err, ShouldBeNil)
				So(set.Suggestions, ShouldHaveLength, 3)
				So(runner.calls, ShouldHaveLength, 2)
				So(runner.calls[1].Feedback, ShouldEqual, "avoid premium forwards")
				So(runner.calls[1].Pins, ShouldBeEmpty)
				So(s.Turns()[1].Feedback, ShouldEqual, "avoid premium forwards")
			})
		})

		Convey("When the turn fails downstream", func() {
			before := s.Current()
			runner.failWith = errors.New("backend down")
			_, err := s.Feedback(ctx, "anything")

			Convey("Then the last good set is untouched", func() {
				So(err, ShouldNotBeNil)
				So(s.State(), ShouldEqual, session.StateGenerated)
				So(s.Current(), ShouldResemble, before)
				So(s.Turns()[1].Ok, ShouldBeFalse)
				So(s.Turns()[1].Err, ShouldContainSubstring, "backend down")
			})
		})
	})
}

func TestSessionReplaceOne(t *testing.T) {
	Convey("Given a generated session of three suggestions", t, func() {
		runner := &fakeRunner{pool: pool(20), size: 3}
		s := session.New("sess-3", testRoster(), runner)
		ctx := context.Background()
		original, err := s.Generate(ctx)
		So(err, ShouldBeNil)

		Convey("When the middle suggestion is replaced", func() {
			target := original.Suggestions[1]
			updated, err := s.ReplaceOne(ctx, target)

			Convey("Then only that slot changed", func() {
				So(err, ShouldBeNil)
				So(updated.Suggestions, ShouldHaveLength, 3)
				So(updated.Suggestions[0].Equal(original.Suggestions[0]), ShouldBeTrue)
				So(updated.Suggestions[2].Equal(original.Suggestions[2]), ShouldBeTrue)
				So(updated.Suggestions[1].Equal(target), ShouldBeFalse)
			})

			Convey("And the replaced swap cannot come back", func() {
				req := runner.calls[1]
				So(req.ExcludeIn, ShouldContain, target.In.ID)
				So(updated.Suggestions[1].In.ID, ShouldNotEqual, target.In.ID)
			})

			Convey("And the kept slots were pinned, not regenerated", func() {
				req := runner.calls[1]
				So(req.Pins, ShouldHaveLength, 2)
				So(req.Pins[0].Slot, ShouldEqual, 0)
				So(req.Pins[1].Slot, ShouldEqual, 2)
			})
		})

		Convey("When the target is not part of the current set", func() {
			_, err := s.ReplaceOne(ctx, model.Suggestion{
				Out: model.Athlete{ID: 1}, In: model.Athlete{ID: 2},
			})

			Convey("Then the turn is rejected", func() {
				So(err, ShouldWrap, session.ErrUnknownSuggestion)
			})
		})

		Convey("When the replace turn fails", func() {
			runner.failWith = errors.New("validation gave up")
			before := s.Current()
			_, err := s.ReplaceOne(ctx, original.Suggestions[0])

			Convey("Then the set is exactly as before", func() {
				So(err, ShouldNotBeNil)
				So(s.Current(), ShouldResemble, before)
			})
		})
	})
}

// Compose pins flow through the session untouched.
func TestSessionPinFidelity(t *testing.T) {
	Convey("Given replace turns driven back to back", t, func() {
		runner := &fakeRunner{pool: pool(50), size: 5}
		s := session.New("sess-4", testRoster(), runner)
		ctx := context.Background()
		original, err := s.Generate(ctx)
		So(err, ShouldBeNil)

		Convey("When every slot is replaced one at a time", func() {
			current := original
			for i := 0; i < 5; i++ {
				next, err := s.ReplaceOne(ctx, current.Suggestions[i])
				So(err, ShouldBeNil)
				for j := 0; j < 5; j++ {
					if j == i {
						continue
					}
					So(next.Suggestions[j].Equal(current.Suggestions[j]), ShouldBeTrue)
				}
				current = next
			}

			Convey("Then the pins arriving at the runner always matched the kept slots", func() {
				So(runner.calls, ShouldHaveLength, 6)
				for _, p := range runner.calls[5].Pins {
					So(p.Suggestion.In.ID, ShouldNotEqual, 0)
				}
			})
		})
	})
}
