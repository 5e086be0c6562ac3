package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/coachd/internal/app"
	"github.com/okian/coachd/internal/adapters/llm"
	"github.com/okian/coachd/internal/adapters/repository"
	"github.com/okian/coachd/internal/config"
	"github.com/okian/coachd/internal/domain/chat"
)

var fixedNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC) //nolint:gochecknoglobals // fixed clock for tests

func clock() time.Time { return fixedNow }

// fakeModel answers by the kind of request it receives.
type fakeModel struct {
	mu    sync.Mutex
	calls map[string]int
}

func newFakeModel() *fakeModel { return &fakeModel{calls: map[string]int{}} }

func (f *fakeModel) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *fakeModel) Complete(_ context.Context, req chat.Request) (chat.Response, error) {
	kind, text := "assistant", "All quiet today."
	switch {
	case strings.HasPrefix(req.System, "You label"):
		kind, text = "classify", "blocker"
	case strings.HasPrefix(req.System, "You match"):
		kind, text = "infer", "Acme Corp"
	case strings.HasPrefix(req.System, "Extract"):
		kind, text = "extract", `[{"title":"Send the contract draft","priority":"high"}]`
	case strings.HasPrefix(req.System, "You are a chief of staff"):
		kind, text = "synthesis", "Acme is blocked on the vendor contract. Send the draft today."
	}
	f.mu.Lock()
	f.calls[kind]++
	f.mu.Unlock()
	return chat.Response{StopReason: chat.StopEndTurn, Blocks: []chat.Block{chat.TextBlock(text)}}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "coachd.db")
	cfg.Triage.WorkerCount = 2
	cfg.Triage.QueueSize = 16
	return cfg
}

func openStore(t *testing.T) *repository.SQLStore {
	t.Helper()
	st, err := repository.Open(context.Background(),
		repository.WithDSN(filepath.Join(t.TempDir(), "coachd.db")),
		repository.WithMigrate(true),
		repository.WithClock(clock),
	)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestService_New(t *testing.T) {
	Convey("Given a new service without configuration", t, func() {
		svc := service.New(nil)

		Convey("Then it uses the defaults and has built nothing", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["workerCount"], ShouldEqual, 4)
			So(stats["llmProvider"], ShouldEqual, "anthropic")
			So(stats, ShouldNotContainKey, "queueLength")
			So(svc.Ping(context.Background()), ShouldEqual, service.ErrNotInitialized)
		})
	})
}

func TestService_Init(t *testing.T) {
	Convey("Given a service over a fresh SQLite file", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		svc := service.New(cfg, service.WithLLM(newFakeModel()), service.WithClock(clock))
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When initialized", func() {
			So(svc.Init(ctx), ShouldBeNil)

			Convey("Then every component is available", func() {
				So(svc.Store(), ShouldNotBeNil)
				So(svc.Scorer(), ShouldNotBeNil)
				So(svc.Synthesizer(), ShouldNotBeNil)
				So(svc.Pipeline(), ShouldNotBeNil)
				So(svc.Assistant(), ShouldNotBeNil)
				So(svc.Deduper(), ShouldNotBeNil)
				So(svc.Queue(), ShouldNotBeNil)
				So(svc.Ping(ctx), ShouldBeNil)
			})

			Convey("And stats report the queue without starting workers", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, false)
				So(stats["queueLength"], ShouldEqual, 0)
				So(stats["scheduledJobs"], ShouldEqual, 0)
			})

			Convey("And a second Init is a no-op", func() {
				before := svc.Scorer()
				So(svc.Init(ctx), ShouldBeNil)
				So(svc.Scorer(), ShouldEqual, before)
			})
		})
	})

	Convey("Given an unknown database driver", t, func() {
		cfg := testConfig(t)
		cfg.Database.Driver = "oracle"
		svc := service.New(cfg, service.WithLLM(newFakeModel()))

		Convey("Then Init fails", func() {
			So(svc.Init(context.Background()), ShouldNotBeNil)
		})
	})

	Convey("Given an invalid schedule", t, func() {
		cfg := testConfig(t)
		cfg.Schedule.Engagement = "every now and then"
		svc := service.New(cfg, service.WithLLM(newFakeModel()), service.WithStore(openStore(t)))

		Convey("Then Init reports the job", func() {
			err := svc.Init(context.Background())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, service.JobEngagement)
		})
	})

	Convey("Given an invalid schedule and a store the service opens itself", t, func() {
		cfg := testConfig(t)
		cfg.Schedule.Engagement = "every now and then"
		svc := service.New(cfg, service.WithLLM(newFakeModel()), service.WithClock(clock))

		Convey("Then a failed Init closes and forgets the store", func() {
			So(svc.Init(context.Background()), ShouldNotBeNil)
			So(svc.Store(), ShouldBeNil)
			So(svc.Ping(context.Background()), ShouldEqual, service.ErrNotInitialized)
			So(svc.Stop(context.Background()), ShouldBeNil)
		})
	})
}

func TestService_MissingAPIKey(t *testing.T) {
	Convey("Given no model client and no api key", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.LLM.APIKey = ""
		svc := service.New(cfg, service.WithStore(openStore(t)), service.WithClock(clock))
		defer func() { _ = svc.Stop(ctx) }()

		Convey("Then Init still succeeds", func() {
			So(svc.Init(ctx), ShouldBeNil)

			Convey("And model-backed calls report the missing key", func() {
				_, err := svc.Assistant().Run(ctx, "coach-1", "hello")
				So(errors.Is(err, llm.ErrMissingAPIKey), ShouldBeTrue)
			})
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a started service with schedules", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cfg := testConfig(t)
		cfg.Schedule.Engagement = "0 2 * * *"
		cfg.Schedule.Synthesis = "@daily"
		svc := service.New(cfg, service.WithLLM(newFakeModel()), service.WithClock(clock))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Then both jobs are scheduled", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["scheduledJobs"], ShouldEqual, 2)
			So(stats, ShouldContainKey, "next_engagement")
			So(stats, ShouldContainKey, "next_synthesis")
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("When stopped", func() {
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it reports stopped and a second Stop is harmless", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})
}
