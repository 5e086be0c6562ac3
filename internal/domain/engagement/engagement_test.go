package engagement_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/coachd/internal/domain/engagement"
	"github.com/okian/coachd/internal/domain/model"
)

type fakeStore struct {
	mu       sync.Mutex
	clients  []model.Client
	samples  map[string]model.ActivitySample
	listErr  error
	failRead map[string]bool
	failSave map[string]bool
	scores   map[string]int
	windows  map[string][2]time.Time
}

func newFakeStore(clients ...model.Client) *fakeStore {
	return &fakeStore{
		clients:  clients,
		samples:  map[string]model.ActivitySample{},
		failRead: map[string]bool{},
		failSave: map[string]bool{},
		scores:   map[string]int{},
		windows:  map[string][2]time.Time{},
	}
}

func (f *fakeStore) ListAllClients(context.Context) ([]model.Client, error) {
	return f.clients, f.listErr
}

func (f *fakeStore) CountReflections(_ context.Context, id string, since, until time.Time) (int, error) {
	if f.failRead[id] {
		return 0, errors.New("read failed")
	}
	f.mu.Lock()
	f.windows[id] = [2]time.Time{since, until}
	f.mu.Unlock()
	return f.samples[id].Reflections, nil
}

func (f *fakeStore) CountLinkedUpdates(_ context.Context, id string, _, _ time.Time) (int, error) {
	return f.samples[id].Updates, nil
}

func (f *fakeStore) CountTasksDue(_ context.Context, id string, _, _ model.Date) (int, int, error) {
	s := f.samples[id]
	return s.TasksCompleted, s.TasksTotal, nil
}

func (f *fakeStore) UpdateEngagementScore(_ context.Context, id string, score int) error {
	if f.failSave[id] {
		return errors.New("write failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[id] = score
	return nil
}

func TestScore(t *testing.T) {
	w := engagement.DefaultWeights()

	Convey("Given the default weights", t, func() {
		Convey("Then every sample scores inside [0,100]", func() {
			for r := -1; r <= 6; r++ {
				for u := -1; u <= 10; u += 2 {
					for done := 0; done <= 12; done += 3 {
						for total := done; total <= 15; total += 5 {
							s := engagement.Score(model.ActivitySample{Reflections: r, Updates: u, TasksCompleted: done, TasksTotal: total}, w)
							So(s, ShouldBeBetweenOrEqual, 0, 100)
						}
					}
				}
			}
		})

		Convey("Then raising any one input never lowers the score", func() {
			base := model.ActivitySample{Reflections: 1, Updates: 2, TasksCompleted: 3, TasksTotal: 6}
			bumps := []func(*model.ActivitySample){
				func(s *model.ActivitySample) { s.Reflections++ },
				func(s *model.ActivitySample) { s.Updates++ },
				func(s *model.ActivitySample) { s.TasksCompleted++ },
				func(s *model.ActivitySample) { s.TasksTotal++ },
			}
			for _, bump := range bumps {
				cur := base
				prev := engagement.Score(cur, w)
				for i := 0; i < 20; i++ {
					bump(&cur)
					next := engagement.Score(cur, w)
					So(next, ShouldBeGreaterThanOrEqualTo, prev)
					prev = next
				}
			}
		})

		Convey("Then full activity saturates at 100", func() {
			s := engagement.Score(model.ActivitySample{Reflections: 50, Updates: 50, TasksCompleted: 50, TasksTotal: 50}, w)
			So(s, ShouldEqual, 100)
		})

		Convey("Then an active client outranks an idle one", func() {
			active := engagement.Score(model.ActivitySample{Reflections: 3, Updates: 5, TasksCompleted: 8, TasksTotal: 10}, w)
			idle := engagement.Score(model.ActivitySample{Reflections: 0, Updates: 0, TasksCompleted: 0, TasksTotal: 10}, w)
			So(active, ShouldEqual, 36+20+30+10)
			So(idle, ShouldEqual, 10)
			So(active, ShouldBeGreaterThan, idle)
		})

		Convey("Then huge counts do not overflow", func() {
			s := engagement.Score(model.ActivitySample{Reflections: int(^uint(0) >> 1)}, w)
			So(s, ShouldEqual, 36)
		})
	})

	Convey("Given weights whose caps exceed 100 in total", t, func() {
		heavy := engagement.Weights{Reflection: 50, ReflectionCap: 80, Update: 50, UpdateCap: 80}
		So(engagement.Score(model.ActivitySample{Reflections: 2, Updates: 2}, heavy), ShouldEqual, 100)
	})
}

func TestRecomputeAll(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	Convey("Given three clients with activity", t, func() {
		store := newFakeStore(
			model.Client{ID: "active"},
			model.Client{ID: "idle"},
			model.Client{ID: "broken"},
		)
		store.samples["active"] = model.ActivitySample{Reflections: 3, Updates: 5, TasksCompleted: 8, TasksTotal: 10}
		store.samples["idle"] = model.ActivitySample{TasksTotal: 10}
		scorer := engagement.NewScorer(store,
			engagement.WithClock(func() time.Time { return now }),
			engagement.WithConcurrency(2),
		)

		Convey("When one client's write fails", func() {
			store.failSave["broken"] = true
			res, err := scorer.RecomputeAll(context.Background())

			Convey("Then the batch continues and reports the split", func() {
				So(err, ShouldBeNil)
				So(res.Updated, ShouldEqual, 2)
				So(res.Total, ShouldEqual, 3)
				So(store.scores["active"], ShouldBeGreaterThan, store.scores["idle"])
			})
		})

		Convey("When one client's read fails", func() {
			store.failRead["idle"] = true
			res, err := scorer.RecomputeAll(context.Background())
			So(err, ShouldBeNil)
			So(res.Updated, ShouldEqual, 2)
			_, written := store.scores["idle"]
			So(written, ShouldBeFalse)
		})

		Convey("When run twice over unchanged data", func() {
			_, err := scorer.RecomputeAll(context.Background())
			So(err, ShouldBeNil)
			first := map[string]int{}
			for k, v := range store.scores {
				first[k] = v
			}
			_, err = scorer.RecomputeAll(context.Background())
			So(err, ShouldBeNil)

			Convey("Then the scores are identical", func() {
				So(store.scores, ShouldResemble, first)
			})
		})

		Convey("When the window is read", func() {
			_, _ = scorer.RecomputeAll(context.Background())

			Convey("Then it spans the last four weeks ending now", func() {
				win := store.windows["active"]
				So(win[1].Equal(now), ShouldBeTrue)
				So(win[0].Equal(now.AddDate(0, 0, -28)), ShouldBeTrue)
			})
		})

		Convey("When the lookback is configured", func() {
			scorer = engagement.NewScorer(store,
				engagement.WithClock(func() time.Time { return now }),
				engagement.WithLookbackWeeks(2),
			)
			_, _ = scorer.RecomputeAll(context.Background())
			So(store.windows["active"][0].Equal(now.AddDate(0, 0, -14)), ShouldBeTrue)
		})

		Convey("When clients cannot be listed", func() {
			store.listErr = errors.New("db down")
			_, err := scorer.RecomputeAll(context.Background())
			So(err, ShouldNotBeNil)
			So(store.scores, ShouldBeEmpty)
		})
	})
}
