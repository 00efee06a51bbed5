package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/gaffer/internal/adapters/http/api"
	"github.com/okian/gaffer/internal/adapters/sessionstore"
	service "github.com/okian/gaffer/internal/app"
	"github.com/okian/gaffer/internal/domain/analysis"
	"github.com/okian/gaffer/internal/domain/candidates"
	"github.com/okian/gaffer/internal/domain/composer"
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

func sampleSet() model.SuggestionSet {
	return model.SuggestionSet{
		CreatedAt: time.Now().UTC(),
		Gameweek:  8,
		Suggestions: []model.Suggestion{
			{
				Out:           model.Athlete{ID: 15, Name: "Injured Fwd", TeamName: "Club 15", Role: model.RoleForward, Cost: 60},
				In:            model.Athlete{ID: 101, Name: "Fit Fwd", TeamName: "Club 31", Role: model.RoleForward, Cost: 65},
				Priority:      1,
				ProjectedGain: 3.4,
				Rationale:     "Fit Fwd offers an immediate upgrade.",
				BankAfter:     5,
			},
		},
	}
}

// fakeDeps answers the handler interface from canned data.
type fakeDeps struct {
	sessions map[string]service.SessionView
	openErr  error
	turnErr  error
	lastCall string
}

func (f *fakeDeps) OpenSession(ctx context.Context, managerID int) (string, model.SuggestionSet, error) {
	f.lastCall = fmt.Sprintf("open:%d", managerID)
	if f.openErr != nil {
		return "", model.SuggestionSet{}, f.openErr
	}
	return "sess-1", sampleSet(), nil
}

func (f *fakeDeps) SessionFeedback(ctx context.Context, id, feedback string) (model.SuggestionSet, error) {
	f.lastCall = fmt.Sprintf("feedback:%s:%s", id, feedback)
	if f.turnErr != nil {
		return model.SuggestionSet{}, f.turnErr
	}
	if _, ok := f.sessions[id]; !ok {
		return model.SuggestionSet{}, fmt.Errorf("id %q: %w", id, sessionstore.ErrNotFound)
	}
	return sampleSet(), nil
}

func (f *fakeDeps) SessionReplace(ctx context.Context, id string, outID, inID int) (model.SuggestionSet, error) {
	f.lastCall = fmt.Sprintf("replace:%s:%d:%d", id, outID, inID)
	if f.turnErr != nil {
		return model.SuggestionSet{}, f.turnErr
	}
	if _, ok := f.sessions[id]; !ok {
		return model.SuggestionSet{}, fmt.Errorf("id %q: %w", id, sessionstore.ErrNotFound)
	}
	return sampleSet(), nil
}

func (f *fakeDeps) SessionState(ctx context.Context, id string) (service.SessionView, error) {
	view, ok := f.sessions[id]
	if !ok {
		return service.SessionView{}, fmt.Errorf("id %q: %w", id, sessionstore.ErrNotFound)
	}
	return view, nil
}

func (f *fakeDeps) CloseSession(ctx context.Context, id string) {
	delete(f.sessions, id)
}

type fakeStats struct{}

func (fakeStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestServer(deps *fakeDeps) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(deps, fakeStats{}).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var parsed map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&parsed)
	return resp, parsed
}

func TestOpenSessionEndpoint(t *testing.T) {
	Convey("Given the API over a healthy service", t, func() {
		deps := &fakeDeps{sessions: map[string]service.SessionView{}}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When POST /sessions carries a valid manager", func() {
			resp, body := postJSON(t, srv.URL+"/sessions", `{"manager_id": 42}`)

			Convey("Then a session with its first set is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				So(body["session_id"], ShouldEqual, "sess-1")
				So(body["state"], ShouldEqual, "generated")
				set := body["set"].(map[string]any)
				suggestions := set["suggestions"].([]any)
				So(suggestions, ShouldHaveLength, 1)
				first := suggestions[0].(map[string]any)
				So(first["priority"], ShouldEqual, 1)
				So(first["cost_delta_tenths"], ShouldEqual, 5)
				So(first["rationale"], ShouldNotBeEmpty)
				So(deps.lastCall, ShouldEqual, "open:42")
			})
		})

		Convey("When the body is not JSON", func() {
			resp, body := postJSON(t, srv.URL+"/sessions", `{manager`)

			Convey("Then the request is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(body["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When manager_id is missing", func() {
			resp, _ := postJSON(t, srv.URL+"/sessions", `{}`)

			Convey("Then the request is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the store is full", func() {
			deps.openErr = fmt.Errorf("capacity 2 reached: %w", sessionstore.ErrStoreFull)
			resp, body := postJSON(t, srv.URL+"/sessions", `{"manager_id": 42}`)

			Convey("Then the API answers 429", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusTooManyRequests)
				So(body["code"], ShouldEqual, "store_full")
			})
		})

		Convey("When the method is wrong", func() {
			resp, err := http.Get(srv.URL + "/sessions")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the route does not exist", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestSessionSubRoutes(t *testing.T) {
	Convey("Given an API that knows one session", t, func() {
		deps := &fakeDeps{sessions: map[string]service.SessionView{
			"sess-1": {
				ID:        "sess-1",
				ManagerID: 42,
				State:     session.StateGenerated,
				CreatedAt: time.Now().UTC(),
				Turns:     []session.Turn{{Kind: session.TurnGenerate, Ok: true}},
				Current:   sampleSet(),
			},
		}}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When GET /sessions/{id} is requested", func() {
			resp, err := http.Get(srv.URL + "/sessions/sess-1")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var body map[string]any
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)

			Convey("Then the detail view comes back", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body["manager_id"], ShouldEqual, 42)
				So(body["state"], ShouldEqual, "generated")
				So(body["turns"].([]any), ShouldHaveLength, 1)
			})
		})

		Convey("When an unknown session is fetched", func() {
			resp, err := http.Get(srv.URL + "/sessions/nope")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the API answers 404", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When feedback is posted", func() {
			resp, body := postJSON(t, srv.URL+"/sessions/sess-1/feedback", `{"feedback": "cheaper picks"}`)

			Convey("Then the refreshed set is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body["state"], ShouldEqual, "generated")
				So(deps.lastCall, ShouldEqual, "feedback:sess-1:cheaper picks")
			})
		})

		Convey("When empty feedback is posted", func() {
			resp, _ := postJSON(t, srv.URL+"/sessions/sess-1/feedback", `{"feedback": "  "}`)

			Convey("Then the request is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a replace is posted", func() {
			resp, _ := postJSON(t, srv.URL+"/sessions/sess-1/replace", `{"out_id": 15, "in_id": 101}`)

			Convey("Then the refreshed set is returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(deps.lastCall, ShouldEqual, "replace:sess-1:15:101")
			})
		})

		Convey("When a replace names a swap the session does not hold", func() {
			deps.turnErr = fmt.Errorf("out 1 in 2: %w", session.ErrUnknownSuggestion)
			resp, body := postJSON(t, srv.URL+"/sessions/sess-1/replace", `{"out_id": 1, "in_id": 2}`)

			Convey("Then the API answers 409", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
				So(body["code"], ShouldEqual, "invalid_turn")
			})
		})

		Convey("When generation validation gave up", func() {
			deps.turnErr = fmt.Errorf("slot 0: %w", composer.ErrGenerationValidation)
			resp, body := postJSON(t, srv.URL+"/sessions/sess-1/feedback", `{"feedback": "x"}`)

			Convey("Then the API answers 502", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadGateway)
				So(body["code"], ShouldEqual, "generation_failed")
			})
		})

		Convey("When the roster cannot be analyzed", func() {
			deps.turnErr = fmt.Errorf("empty roster: %w", analysis.ErrInsufficientData)
			resp, body := postJSON(t, srv.URL+"/sessions/sess-1/feedback", `{"feedback": "x"}`)

			Convey("Then the failure reads as a data problem, not a server bug", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
				So(body["code"], ShouldEqual, "insufficient_data")
			})
		})

		Convey("When a replace turn has no legal replacement left", func() {
			deps.turnErr = fmt.Errorf("no candidates left for slot 2: %w", candidates.ErrNoLegalCandidate)
			resp, body := postJSON(t, srv.URL+"/sessions/sess-1/replace", `{"out_id": 15, "in_id": 101}`)

			Convey("Then the failure reads as candidate exhaustion", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
				So(body["code"], ShouldEqual, "candidate_exhaustion")
			})
		})

		Convey("When the composer had nothing to work with", func() {
			deps.turnErr = fmt.Errorf("no slots and no pins: %w", composer.ErrInvalidInput)
			resp, body := postJSON(t, srv.URL+"/sessions/sess-1/feedback", `{"feedback": "x"}`)

			Convey("Then the failure reads as candidate exhaustion", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
				So(body["code"], ShouldEqual, "candidate_exhaustion")
			})
		})

		Convey("When the session is deleted", func() {
			req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/sess-1", nil)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then it is gone", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNoContent)
				after, err := http.Get(srv.URL + "/sessions/sess-1")
				So(err, ShouldBeNil)
				defer after.Body.Close()
				So(after.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given the API", t, func() {
		deps := &fakeDeps{sessions: map[string]service.SessionView{}}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When GET /stats is requested", func() {
			resp, err := http.Get(srv.URL + "/stats")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var body map[string]any
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)

			Convey("Then service stats come back", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body["started"], ShouldBeTrue)
			})
		})

		Convey("When GET /healthz is requested", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the metrics exposition is served", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			})
		})
	})
}
