package composer_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/gaffer/internal/adapters/generative"
	"github.com/okian/gaffer/internal/domain/analysis"
	"github.com/okian/gaffer/internal/domain/candidates"
	"github.com/okian/gaffer/internal/domain/composer"
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

func ath(id int, name string, role model.Role, cost int) model.Athlete {
	return model.Athlete{ID: id, Name: name, Team: id%10 + 1, TeamName: fmt.Sprintf("Team %d", id%10+1), Role: role, Cost: cost, Status: model.StatusAvailable}
}

func slotFor(out model.Athlete, reasons []string, ins ...model.Athlete) candidates.Slot {
	s := candidates.Slot{Out: out, Reasons: reasons}
	for i, in := range ins {
		s.Ranked = append(s.Ranked, candidates.Candidate{
			Out:        out,
			In:         in,
			CostDelta:  in.Cost - out.Cost,
			PointDelta: float64(10 - i),
			Composite:  float64(10 - i),
		})
	}
	return s
}

func testInput() composer.Input {
	out1 := ath(101, "Fading Mid", model.RoleMidfielder, 80)
	out2 := ath(102, "Injured Fwd", model.RoleForward, 90)

	roster := model.Roster{
		Gameweek: 7,
		Bank:     15,
		Entries: []model.RosterEntry{
			{Athlete: out1},
			{Athlete: out2},
			{Athlete: ath(103, "Keeper", model.RoleGoalkeeper, 45)},
		},
	}
	return composer.Input{
		Report: &analysis.Report{Gameweek: 8},
		Roster: roster,
		Slots: []candidates.Slot{
			slotFor(out1, []string{"poor recent form"},
				ath(201, "Rising Mid", model.RoleMidfielder, 75),
				ath(202, "Steady Mid", model.RoleMidfielder, 70)),
			slotFor(out2, []string{"unavailable"},
				ath(301, "Fit Fwd", model.RoleForward, 85)),
		},
	}
}

// pickTop parses the compose payload and answers with each open slot's
// top-ranked candidate, mirroring what a well-behaved backend would do.
func pickTop(req generative.Request) (string, error) {
	var payload struct {
		OpenSlots []struct {
			Slot int `json:"slot"`
			Out  struct {
				ID int `json:"id"`
			} `json:"out"`
			Candidates []struct {
				ID   int    `json:"id"`
				Name string `json:"name"`
			} `json:"candidates"`
		} `json:"open_slots"`
	}
	if err := json.Unmarshal([]byte(req.Payload), &payload); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(`{"suggestions":[`)
	for i, s := range payload.OpenSlots {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"slot":%d,"out_id":%d,"in_id":%d,"rationale":"Better short-term outlook than %d."}`,
			s.Slot, s.Out.ID, s.Candidates[0].ID, s.Out.ID)
	}
	sb.WriteString("]}")
	return sb.String(), nil
}

func scripted(opts ...generative.ScriptedOption) *generative.ScriptedClient {
	base := []generative.ScriptedOption{
		generative.WithLatencyRange(time.Millisecond, 2*time.Millisecond),
	}
	return generative.NewScriptedClient(append(base, opts...)...)
}

func TestCompose(t *testing.T) {
	Convey("Given a composer over a well-behaved backend", t, func() {
		client := scripted(generative.WithResponder(pickTop))
		c := composer.New(client, composer.WithSuggestionCount(5))
		ctx := context.Background()

		Convey("When composing from two open slots", func() {
			set, err := c.Compose(ctx, testInput())

			Convey("Then the set holds one suggestion per slot with derived numbers", func() {
				So(err, ShouldBeNil)
				So(set.Gameweek, ShouldEqual, 8)
				So(set.Suggestions, ShouldHaveLength, 2)

				first := set.Suggestions[0]
				So(first.Out.ID, ShouldEqual, 101)
				So(first.In.ID, ShouldEqual, 201)
				So(first.Priority, ShouldEqual, 1)
				So(first.ProjectedGain, ShouldEqual, 10)
				So(first.BankAfter, ShouldEqual, 15-(75-80))
				So(first.Rationale, ShouldNotBeEmpty)

				second := set.Suggestions[1]
				So(second.Out.ID, ShouldEqual, 102)
				So(second.In.ID, ShouldEqual, 301)
				So(second.Priority, ShouldEqual, 2)
			})

			Convey("And no athlete appears twice across the set", func() {
				seen := map[int]bool{}
				for _, s := range set.Suggestions {
					So(seen[s.In.ID], ShouldBeFalse)
					seen[s.In.ID] = true
				}
			})
		})

		Convey("When the backend wraps its answer in a code fence", func() {
			fenced := generative.NewScriptedClient(
				generative.WithLatencyRange(time.Millisecond, 2*time.Millisecond),
				generative.WithResponder(func(req generative.Request) (string, error) {
					raw, err := pickTop(req)
					if err != nil {
						return "", err
					}
					return "```json\n" + raw + "\n```", nil
				}),
			)
			set, err := composer.New(fenced).Compose(ctx, testInput())

			Convey("Then the fence is stripped and the answer accepted", func() {
				So(err, ShouldBeNil)
				So(set.Suggestions, ShouldHaveLength, 2)
			})
		})
	})
}

func TestComposePins(t *testing.T) {
	Convey("Given a composer and a pinned suggestion", t, func() {
		client := scripted(generative.WithResponder(pickTop))
		c := composer.New(client)
		ctx := context.Background()

		in := testInput()
		pinnedSug := model.Suggestion{
			Out:       in.Slots[0].Out,
			In:        ath(401, "Held Pick", model.RoleMidfielder, 78),
			Priority:  1,
			Rationale: "Kept from the previous turn.",
			BankAfter: 17,
		}
		in.Pins = []composer.Pin{{Slot: 0, Suggestion: pinnedSug}}
		in.Slots = in.Slots[1:]

		Convey("When composing", func() {
			set, err := c.Compose(ctx, in)

			Convey("Then the pinned slot survives verbatim", func() {
				So(err, ShouldBeNil)
				So(set.Suggestions, ShouldHaveLength, 2)
				So(set.Suggestions[0].Equal(pinnedSug), ShouldBeTrue)
				So(set.Suggestions[0].BankAfter, ShouldEqual, 17)
			})

			Convey("And the open slot was regenerated around it", func() {
				So(set.Suggestions[1].Out.ID, ShouldEqual, 102)
				So(set.Suggestions[1].In.ID, ShouldEqual, 301)
				So(client.Calls(), ShouldEqual, 1)
			})
		})

		Convey("When every slot is pinned", func() {
			in2 := testInput()
			in2.Slots = nil
			in2.Pins = []composer.Pin{{Slot: 0, Suggestion: pinnedSug}}
			set, err := c.Compose(ctx, in2)

			Convey("Then the backend is never consulted", func() {
				So(err, ShouldBeNil)
				So(set.Suggestions, ShouldHaveLength, 1)
				So(client.Calls(), ShouldEqual, 0)
			})
		})

		Convey("When a pin names a negative slot", func() {
			in3 := testInput()
			in3.Pins = []composer.Pin{{Slot: -1, Suggestion: pinnedSug}}
			_, err := c.Compose(ctx, in3)

			Convey("Then the input is rejected", func() {
				So(err, ShouldWrap, composer.ErrInvalidPin)
			})
		})

		Convey("When the same slot is pinned twice", func() {
			in4 := testInput()
			in4.Pins = []composer.Pin{
				{Slot: 0, Suggestion: pinnedSug},
				{Slot: 0, Suggestion: pinnedSug},
			}
			_, err := c.Compose(ctx, in4)

			Convey("Then the input is rejected", func() {
				So(err, ShouldWrap, composer.ErrInvalidPin)
			})
		})
	})
}

func TestComposeExhaustedOpenSlot(t *testing.T) {
	Convey("Given four pins from a five-suggestion set and no candidates left", t, func() {
		client := scripted(generative.WithResponder(pickTop))
		c := composer.New(client, composer.WithSuggestionCount(5))
		ctx := context.Background()

		pinAt := func(slot int) composer.Pin {
			return composer.Pin{Slot: slot, Suggestion: model.Suggestion{
				Out:       ath(110+slot, fmt.Sprintf("Held Out %d", slot), model.RoleMidfielder, 70),
				In:        ath(410+slot, fmt.Sprintf("Held In %d", slot), model.RoleMidfielder, 68),
				Priority:  slot + 1,
				Rationale: "Kept from the previous turn.",
			}}
		}

		Convey("When the open slot sits between pinned positions", func() {
			in := testInput()
			in.Slots = nil
			in.Pins = []composer.Pin{pinAt(0), pinAt(1), pinAt(3), pinAt(4)}
			_, err := c.Compose(ctx, in)

			Convey("Then the turn fails as candidate exhaustion, not a pin defect", func() {
				So(err, ShouldWrap, candidates.ErrNoLegalCandidate)
				So(errors.Is(err, composer.ErrInvalidPin), ShouldBeFalse)
				So(client.Calls(), ShouldEqual, 0)
			})
		})

		Convey("When the open slot is the last position", func() {
			in := testInput()
			in.Slots = nil
			in.Pins = []composer.Pin{pinAt(0), pinAt(1), pinAt(2), pinAt(3)}
			set, err := c.Compose(ctx, in)

			Convey("Then the set shrinks around the pins instead of failing", func() {
				So(err, ShouldBeNil)
				So(set.Suggestions, ShouldHaveLength, 4)
				for i, sug := range set.Suggestions {
					So(sug.Out.ID, ShouldEqual, 110+i)
				}
				So(client.Calls(), ShouldEqual, 0)
			})
		})
	})
}

func TestComposeValidation(t *testing.T) {
	Convey("Given a backend that first invents an athlete", t, func() {
		ctx := context.Background()
		bogus := `{"suggestions":[
			{"slot":0,"out_id":101,"in_id":999,"rationale":"made up"},
			{"slot":1,"out_id":102,"in_id":301,"rationale":"fine"}]}`

		Convey("When the strict retry answers correctly", func() {
			calls := 0
			client := scripted(generative.WithResponder(func(req generative.Request) (string, error) {
				calls++
				if calls == 1 {
					return bogus, nil
				}
				return pickTop(req)
			}))
			set, err := composer.New(client).Compose(ctx, testInput())

			Convey("Then the compose succeeds on the second attempt", func() {
				So(err, ShouldBeNil)
				So(set.Suggestions, ShouldHaveLength, 2)
				So(calls, ShouldEqual, 2)
			})

			Convey("And the retry prompt is stricter than the first", func() {
				So(client.Calls(), ShouldEqual, 2)
			})
		})

		Convey("When the backend never produces a valid answer", func() {
			client := scripted(generative.WithResponder(func(generative.Request) (string, error) {
				return bogus, nil
			}))
			_, err := composer.New(client).Compose(ctx, testInput())

			Convey("Then the compose fails with the validation kind", func() {
				So(err, ShouldWrap, composer.ErrGenerationValidation)
			})
		})

		Convey("When the backend answers prose instead of JSON", func() {
			client := scripted(generative.WithResponder(func(generative.Request) (string, error) {
				return "I think you should sign a striker.", nil
			}))
			_, err := composer.New(client).Compose(ctx, testInput())

			Convey("Then the compose fails with the validation kind", func() {
				So(err, ShouldWrap, composer.ErrGenerationValidation)
			})
		})
	})
}

func TestComposeCaptaincy(t *testing.T) {
	Convey("Given a backend that recommends the armband", t, func() {
		ctx := context.Background()
		answer := func(captain, vice int) string {
			return fmt.Sprintf(`{"suggestions":[
				{"slot":0,"out_id":101,"in_id":201,"rationale":"ok","captain_id":%d,"vice_captain_id":%d},
				{"slot":1,"out_id":102,"in_id":301,"rationale":"ok"}]}`, captain, vice)
		}

		Convey("When the captain is in the post-swap squad", func() {
			client := scripted(generative.WithResponses(answer(201, 103)))
			set, err := composer.New(client).Compose(ctx, testInput())

			Convey("Then the recommendation is attached with names resolved", func() {
				So(err, ShouldBeNil)
				So(set.Suggestions[0].Captaincy, ShouldNotBeNil)
				So(set.Suggestions[0].Captaincy.CaptainID, ShouldEqual, 201)
				So(set.Suggestions[0].Captaincy.CaptainName, ShouldEqual, "Rising Mid")
				So(set.Suggestions[0].Captaincy.ViceCaptainID, ShouldEqual, 103)
			})
		})

		Convey("When the captain is the athlete being removed", func() {
			client := scripted(generative.WithResponses(answer(101, 103)))
			set, err := composer.New(client).Compose(ctx, testInput())

			Convey("Then the recommendation is dropped, not fatal", func() {
				So(err, ShouldBeNil)
				So(set.Suggestions[0].Captaincy, ShouldBeNil)
			})
		})
	})
}
