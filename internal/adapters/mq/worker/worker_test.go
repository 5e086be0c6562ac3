package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/coachd/internal/adapters/mq/queue"
	"github.com/okian/coachd/internal/adapters/mq/worker"
	"github.com/okian/coachd/internal/domain/dedupe"
	"github.com/okian/coachd/internal/domain/types"
)

type fakeProcessor struct {
	mu      sync.Mutex
	done    []string
	fail    map[string]bool
	sawDead bool
	wg      sync.WaitGroup
}

func newFakeProcessor(n int) *fakeProcessor {
	p := &fakeProcessor{fail: map[string]bool{}}
	p.wg.Add(n)
	return p
}

func (p *fakeProcessor) Process(ctx context.Context, id string) (types.TriageResult, error) {
	defer p.wg.Done()
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := ctx.Deadline(); ok {
		p.sawDead = true
	}
	if p.fail[id] {
		return types.TriageResult{}, fmt.Errorf("model unavailable for %s", id)
	}
	p.done = append(p.done, id)
	return types.TriageResult{UpdateID: id}, nil
}

func (p *fakeProcessor) processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.done...)
}

func waitFor(wg *sync.WaitGroup) bool {
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
		return true
	case <-time.After(2 * time.Second):
		return false
	}
}

func TestInMemoryWorker(t *testing.T) {
	Convey("Given a worker over a queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		d := dedupe.NewInMemoryDeduper()
		p := newFakeProcessor(2)
		p.fail["u2"] = true
		w := worker.NewInMemoryWorker(q, p,
			worker.WithName("test"),
			worker.WithReleaser(d),
			worker.WithJobTimeout(time.Second),
		)

		for _, id := range []string{"u1", "u2"} {
			So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
			So(q.Enqueue(ctx, queue.Job{UpdateID: id}), ShouldBeNil)
		}
		go w.Run(ctx)
		So(waitFor(&p.wg), ShouldBeTrue)
		So(w.Shutdown(ctx), ShouldBeNil)

		Convey("Successful jobs keep their id recorded", func() {
			So(p.processed(), ShouldResemble, []string{"u1"})
			So(d.SeenAndRecord(ctx, "u1"), ShouldBeTrue)
		})

		Convey("Failed jobs release their id for retry", func() {
			So(d.SeenAndRecord(ctx, "u2"), ShouldBeFalse)
		})

		Convey("Each job runs under a deadline", func() {
			So(p.sawDead, ShouldBeTrue)
		})

		Convey("Shutdown twice is safe", func() {
			So(w.Shutdown(ctx), ShouldBeNil)
		})
	})

	Convey("Given a worker that never stops", t, func() {
		q := queue.NewInMemoryQueue()
		w := worker.NewInMemoryWorker(q, newFakeProcessor(0))

		Convey("Shutdown respects the caller's deadline", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			err := w.Shutdown(ctx)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of three workers", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		p := newFakeProcessor(30)
		pool := worker.NewPool(3, q, p)
		pool.Start(ctx)

		for i := 0; i < 30; i++ {
			So(q.Enqueue(ctx, queue.Job{UpdateID: fmt.Sprintf("u%d", i)}), ShouldBeNil)
		}

		Convey("Every job is processed once and shutdown drains", func() {
			So(waitFor(&p.wg), ShouldBeTrue)
			So(pool.Shutdown(ctx), ShouldBeNil)
			So(len(p.processed()), ShouldEqual, 30)
			So(q.IsClosed(), ShouldBeTrue)
		})
	})
}

type slowProcessor struct {
	mu      sync.Mutex
	started chan struct{}
	done    []string
	errs    int
}

func (p *slowProcessor) Process(ctx context.Context, id string) (types.TriageResult, error) {
	select {
	case p.started <- struct{}{}:
	default:
	}
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		p.mu.Lock()
		p.errs++
		p.mu.Unlock()
		return types.TriageResult{}, ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = append(p.done, id)
	return types.TriageResult{UpdateID: id}, nil
}

func TestPool_StartContextCancelled(t *testing.T) {
	Convey("Given a pool started with a context that is later cancelled", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		p := &slowProcessor{started: make(chan struct{}, 1)}
		pool := worker.NewPool(1, q, p)
		pool.Start(ctx)

		for _, id := range []string{"u1", "u2", "u3"} {
			So(q.Enqueue(context.Background(), queue.Job{UpdateID: id}), ShouldBeNil)
		}
		<-p.started
		cancel()

		Convey("Then Shutdown still drains every queued job", func() {
			So(pool.Shutdown(context.Background()), ShouldBeNil)
			p.mu.Lock()
			defer p.mu.Unlock()
			So(p.done, ShouldResemble, []string{"u1", "u2", "u3"})
			So(p.errs, ShouldEqual, 0)
		})
	})
}
