package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/okian/coachd/internal/adapters/http/api"
	"github.com/okian/coachd/internal/adapters/mq/queue"
	"github.com/okian/coachd/internal/domain/dedupe"
	"github.com/okian/coachd/internal/domain/model"
	"github.com/okian/coachd/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	cronSecret = "cron-secret"
	apiToken   = "api-token"
)

type mockScorer struct {
	mu    sync.Mutex
	calls int
	res   types.BatchResult
	err   error
}

func (m *mockScorer) RecomputeAll(context.Context) (types.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.res, m.err
}

type mockSynthesizer struct {
	allCalls int
	coaches  []string
	content  string
	res      types.BatchResult
	err      error
}

func (m *mockSynthesizer) Synthesize(_ context.Context, coachID string) (string, error) {
	m.coaches = append(m.coaches, coachID)
	return m.content, m.err
}

func (m *mockSynthesizer) SynthesizeAll(context.Context) (types.BatchResult, error) {
	m.allCalls++
	return m.res, m.err
}

type mockAssistant struct {
	coachID, message string
	answer           string
	err              error
}

func (m *mockAssistant) Run(_ context.Context, coachID, message string) (string, error) {
	m.coachID, m.message = coachID, message
	return m.answer, m.err
}

type mockUpdates struct {
	known map[string]bool
}

func (m *mockUpdates) GetUpdate(_ context.Context, id string) (model.Update, error) {
	if !m.known[id] {
		return model.Update{}, model.ErrNotFound
	}
	return model.Update{ID: id}, nil
}

type mockQueue struct {
	err  error
	jobs []queue.Job
}

func (m *mockQueue) Enqueue(_ context.Context, j queue.Job) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, j)
	return nil
}

type mockStats struct{}

func (mockStats) GetStats() map[string]any {
	return map[string]any{"queue_size": 0, "workers": 2}
}

type fixture struct {
	scorer      *mockScorer
	synthesizer *mockSynthesizer
	assistant   *mockAssistant
	queue       *mockQueue
	deduper     dedupe.Deduper
	mux         *http.ServeMux
}

func newFixture() *fixture {
	f := &fixture{
		scorer:      &mockScorer{res: types.BatchResult{Updated: 3, Total: 4}},
		synthesizer: &mockSynthesizer{content: "# Briefing", res: types.BatchResult{Updated: 2, Total: 2}},
		assistant:   &mockAssistant{answer: "You have 3 active clients."},
		queue:       &mockQueue{},
		deduper:     dedupe.NewInMemoryDeduper(),
		mux:         http.NewServeMux(),
	}
	srv := api.NewServer(api.Dependencies{
		Scorer:      f.scorer,
		Synthesizer: f.synthesizer,
		Assistant:   f.assistant,
		Updates:     &mockUpdates{known: map[string]bool{"upd-1": true, "upd-2": true}},
		Queue:       f.queue,
		Deduper:     f.deduper,
		Stats:       mockStats{},
		CronSecret:  cronSecret,
		APIToken:    apiToken,
	})
	srv.Register(context.Background(), f.mux)
	return f
}

func (f *fixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode(rec *httptest.ResponseRecorder) map[string]any {
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out
}

func TestCronRoutes(t *testing.T) {
	Convey("Given a server with cron routes", t, func() {
		f := newFixture()

		Convey("A request without a token is rejected and runs nothing", func() {
			rec := f.do(http.MethodGet, "/cron/engagement-score", "", "")
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
			So(decode(rec)["code"], ShouldEqual, "unauthorized")
			So(f.scorer.calls, ShouldEqual, 0)
		})

		Convey("A request with the wrong token is rejected", func() {
			rec := f.do(http.MethodGet, "/cron/engagement-score", "nope", "")
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
			So(f.scorer.calls, ShouldEqual, 0)
		})

		Convey("The API token does not open cron routes", func() {
			rec := f.do(http.MethodGet, "/cron/daily-synthesis", apiToken, "")
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
			So(f.synthesizer.allCalls, ShouldEqual, 0)
		})

		Convey("An authorized recompute reports updated and total", func() {
			rec := f.do(http.MethodGet, "/cron/engagement-score", cronSecret, "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			body := decode(rec)
			So(body["updated"], ShouldEqual, 3.0)
			So(body["total"], ShouldEqual, 4.0)
			So(f.scorer.calls, ShouldEqual, 1)
		})

		Convey("A listing failure is a 500 with a generic message", func() {
			f.scorer.err = errors.New("select clients: connection refused")
			rec := f.do(http.MethodGet, "/cron/engagement-score", cronSecret, "")
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(rec.Body.String(), ShouldNotContainSubstring, "connection refused")
		})

		Convey("An authorized synthesis fan-out reports its counts", func() {
			rec := f.do(http.MethodGet, "/cron/daily-synthesis", cronSecret, "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(decode(rec)["updated"], ShouldEqual, 2.0)
			So(f.synthesizer.allCalls, ShouldEqual, 1)
		})

		Convey("POST is not routed", func() {
			rec := f.do(http.MethodPost, "/cron/engagement-score", cronSecret, "")
			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestEmptySecretRejectsEverything(t *testing.T) {
	Convey("Given a server with no configured cron secret", t, func() {
		scorer := &mockScorer{}
		mux := http.NewServeMux()
		api.NewServer(api.Dependencies{Scorer: scorer}).Register(context.Background(), mux)

		req := httptest.NewRequest(http.MethodGet, "/cron/engagement-score", nil)
		req.Header.Set("Authorization", "Bearer ")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		So(scorer.calls, ShouldEqual, 0)
	})
}

func TestAssistantRoute(t *testing.T) {
	Convey("Given the assistant route", t, func() {
		f := newFixture()

		Convey("It answers with the orchestrator's response", func() {
			rec := f.do(http.MethodPost, "/api/assistant", apiToken, `{"coach_id":"coach-1","message":" how many clients? "}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(decode(rec)["response"], ShouldEqual, "You have 3 active clients.")
			So(f.assistant.coachID, ShouldEqual, "coach-1")
			So(f.assistant.message, ShouldEqual, "how many clients?")
		})

		Convey("Missing fields are a bad request", func() {
			rec := f.do(http.MethodPost, "/api/assistant", apiToken, `{"coach_id":"coach-1"}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(rec)["code"], ShouldEqual, "bad_request")
		})

		Convey("Malformed JSON is a bad request", func() {
			rec := f.do(http.MethodPost, "/api/assistant", apiToken, `{`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("It requires the API token", func() {
			rec := f.do(http.MethodPost, "/api/assistant", cronSecret, `{"coach_id":"c","message":"m"}`)
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
			So(f.assistant.coachID, ShouldEqual, "")
		})
	})
}

func TestSynthesisRoute(t *testing.T) {
	Convey("Given the synthesis route", t, func() {
		f := newFixture()

		Convey("It returns the generated content", func() {
			rec := f.do(http.MethodPost, "/api/synthesis", apiToken, `{"coach_id":"coach-9"}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(decode(rec)["content"], ShouldEqual, "# Briefing")
			So(f.synthesizer.coaches, ShouldResemble, []string{"coach-9"})
		})

		Convey("An empty coach id is a bad request", func() {
			rec := f.do(http.MethodPost, "/api/synthesis", apiToken, `{"coach_id":"  "}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(f.synthesizer.coaches, ShouldBeEmpty)
		})
	})
}

func TestTriageRoute(t *testing.T) {
	Convey("Given the triage route", t, func() {
		f := newFixture()

		Convey("A known update is accepted and queued", func() {
			rec := f.do(http.MethodPost, "/api/updates/upd-1/triage", apiToken, "")
			So(rec.Code, ShouldEqual, http.StatusAccepted)
			So(decode(rec)["status"], ShouldEqual, "accepted")
			So(f.queue.jobs, ShouldHaveLength, 1)
			So(f.queue.jobs[0].UpdateID, ShouldEqual, "upd-1")

			Convey("A repeat request is reported as a duplicate", func() {
				rec := f.do(http.MethodPost, "/api/updates/upd-1/triage", apiToken, "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(decode(rec)["status"], ShouldEqual, "duplicate")
				So(f.queue.jobs, ShouldHaveLength, 1)
			})
		})

		Convey("An unknown update is a 404 and is not recorded", func() {
			rec := f.do(http.MethodPost, "/api/updates/missing/triage", apiToken, "")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
			So(f.deduper.Size(), ShouldEqual, int64(0))
		})

		Convey("A full queue is backpressure and the id is released", func() {
			f.queue.err = queue.ErrFull
			rec := f.do(http.MethodPost, "/api/updates/upd-2/triage", apiToken, "")
			So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decode(rec)["code"], ShouldEqual, "backpressure")

			f.queue.err = nil
			rec = f.do(http.MethodPost, "/api/updates/upd-2/triage", apiToken, "")
			So(rec.Code, ShouldEqual, http.StatusAccepted)
		})

		Convey("A closed queue is unavailable", func() {
			f.queue.err = queue.ErrClosed
			rec := f.do(http.MethodPost, "/api/updates/upd-1/triage", apiToken, "")
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestOpsRoutes(t *testing.T) {
	Convey("Given the operational routes", t, func() {
		f := newFixture()

		Convey("Stats are served as JSON without auth", func() {
			rec := f.do(http.MethodGet, "/stats", "", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")
			So(decode(rec)["workers"], ShouldEqual, 2.0)
		})

		Convey("Healthz exposes the metrics registry", func() {
			rec := f.do(http.MethodGet, "/healthz", "", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestErrorHelpers(t *testing.T) {
	Convey("Given the API error helpers", t, func() {
		cause := errors.New("boom")

		Convey("WrapKind matches both the kind and the cause", func() {
			err := api.WrapKind("api.triage", api.ErrBackpressure, cause)
			So(errors.Is(err, api.ErrBackpressure), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.triage: backpressure: boom")
		})

		Convey("Wrap keeps nil as nil", func() {
			So(api.Wrap("op", nil), ShouldBeNil)
			So(errors.Is(api.Wrap("op", cause), cause), ShouldBeTrue)
		})

		Convey("NewKind carries only the kind", func() {
			err := api.NewKind("api.cron", api.ErrUnauthorized)
			So(errors.Is(err, api.ErrUnauthorized), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.cron: unauthorized")
		})
	})
}
