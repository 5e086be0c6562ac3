package triage_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/coachd/internal/domain/chat"
	"github.com/okian/coachd/internal/domain/model"
	"github.com/okian/coachd/internal/domain/triage"
)

// scripted replies with the given texts in order and records every request.
type scripted struct {
	mu      sync.Mutex
	replies []string
	err     error
	reqs    []chat.Request
}

func (s *scripted) client() chat.Client {
	return chat.ClientFunc(func(_ context.Context, req chat.Request) (chat.Response, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.reqs = append(s.reqs, req)
		if s.err != nil {
			return chat.Response{}, s.err
		}
		text := ""
		if len(s.replies) > 0 {
			text, s.replies = s.replies[0], s.replies[1:]
		}
		return chat.Response{StopReason: chat.StopEndTurn, Blocks: []chat.Block{chat.TextBlock(text)}}, nil
	})
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

type memStore struct {
	clients     []model.Client
	updates     map[string]model.Update
	reflections []model.Reflection
	tasks       []model.Task
	syntheses   map[string]model.DailySynthesis
	patches     []model.TriagePatch
	listErr     error
	insertErr   error
}

func newMemStore(clients ...model.Client) *memStore {
	return &memStore{clients: clients, updates: map[string]model.Update{}, syntheses: map[string]model.DailySynthesis{}}
}

func (m *memStore) ListClients(_ context.Context, coachID string, _ model.ClientStatus) ([]model.Client, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.Client
	for _, c := range m.clients {
		if c.CoachID == coachID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ListCoachIDs(context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, c := range m.clients {
		if !seen[c.CoachID] {
			seen[c.CoachID] = true
			out = append(out, c.CoachID)
		}
	}
	return out, nil
}

func (m *memStore) ListUpdates(_ context.Context, f model.UpdateFilter) ([]model.Update, error) {
	var out []model.Update
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		u, ok := m.updates[id]
		if !ok || u.CoachID != f.CoachID {
			continue
		}
		if u.CreatedAt.Before(f.Since) || !u.CreatedAt.Before(f.Until) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *memStore) ListReflections(_ context.Context, f model.ReflectionFilter) ([]model.Reflection, error) {
	var out []model.Reflection
	for _, r := range m.reflections {
		if r.CoachID == f.CoachID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListTasks(_ context.Context, f model.TaskFilter) ([]model.Task, error) {
	var out []model.Task
	for _, t := range m.tasks {
		if t.CoachID == f.CoachID && t.Status.IsOpen() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) InsertTasks(_ context.Context, tasks ...model.Task) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.tasks = append(m.tasks, tasks...)
	return nil
}

func (m *memStore) UpsertSynthesis(_ context.Context, ds model.DailySynthesis) error {
	m.syntheses[ds.CoachID+"/"+ds.Date.String()] = ds
	return nil
}

func (m *memStore) GetUpdate(_ context.Context, id string) (model.Update, error) {
	u, ok := m.updates[id]
	if !ok {
		return model.Update{}, errors.New("not found")
	}
	return u, nil
}

func (m *memStore) UpdateTriage(_ context.Context, id string, p model.TriagePatch) error {
	m.patches = append(m.patches, p)
	u := m.updates[id]
	if p.Classification != nil {
		u.Classification = *p.Classification
	}
	if p.ClientID != nil {
		u.ClientID = *p.ClientID
	}
	if p.ActionItems != nil {
		u.ActionItems = *p.ActionItems
	}
	m.updates[id] = u
	return nil
}

var fixedNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func acme() []model.Client {
	return []model.Client{
		{ID: "c1", CoachID: "coach", CompanyName: "Acme Corp"},
		{ID: "c2", CoachID: "coach", CompanyName: "Globex"},
	}
}

func TestClassifier(t *testing.T) {
	Convey("Given a classifier", t, func() {
		llm := &scripted{}
		c := triage.NewClassifier(llm.client())
		ctx := context.Background()

		Convey("A clean label is returned as is", func() {
			llm.replies = []string{"Blocker."}
			So(c.Classify(ctx, "we are stuck on hiring"), ShouldEqual, model.ClassBlocker)
			So(llm.reqs[0].Model, ShouldEqual, "claude-haiku-4-5")
		})

		Convey("Garbage falls back to communication", func() {
			llm.replies = []string{"I think this is mostly about feelings"}
			So(c.Classify(ctx, "hello"), ShouldEqual, model.ClassCommunication)
		})

		Convey("Model errors fall back to communication", func() {
			llm.err = errors.New("boom")
			So(c.Classify(ctx, "hello"), ShouldEqual, model.ClassCommunication)
		})

		Convey("Empty text makes no model call", func() {
			So(c.Classify(ctx, "   "), ShouldEqual, model.ClassCommunication)
			So(llm.calls(), ShouldEqual, 0)
		})
	})
}

func TestInferrer(t *testing.T) {
	Convey("Given an inferrer over two clients", t, func() {
		store := newMemStore(acme()...)
		llm := &scripted{}
		inf := triage.NewInferrer(store, llm.client())
		ctx := context.Background()

		Convey("A hashtag resolves without a model call", func() {
			id, err := inf.Infer(ctx, "coach", "shipped the beta #AcmeCorp")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "c1")
			So(llm.calls(), ShouldEqual, 0)
		})

		Convey("A partial hashtag matches by containment", func() {
			id, err := inf.Infer(ctx, "coach", "#glob. call went well")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "c2")
		})

		Convey("Without a hashtag the model answer is matched case-insensitively", func() {
			llm.replies = []string{"\"globex\""}
			id, err := inf.Infer(ctx, "coach", "their CFO left")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "c2")
			So(llm.reqs[0].System, ShouldContainSubstring, "- Acme Corp")
		})

		Convey("UNKNOWN and unlisted names give no client", func() {
			llm.replies = []string{"UNKNOWN", "Initech"}
			id, err := inf.Infer(ctx, "coach", "random note")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "")
			id, err = inf.Infer(ctx, "coach", "random note")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "")
		})

		Convey("A coach with no clients gets no model call", func() {
			id, err := inf.Infer(ctx, "other", "anything at all")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "")
			So(llm.calls(), ShouldEqual, 0)
		})

		Convey("Store errors surface", func() {
			store.listErr = errors.New("db down")
			_, err := inf.Infer(ctx, "coach", "x")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestExtractor(t *testing.T) {
	Convey("ParseActionItems tolerates messy replies", t, func() {
		So(triage.ParseActionItems("no actions here"), ShouldBeEmpty)
		So(triage.ParseActionItems("[{bad json"), ShouldBeEmpty)

		items := triage.ParseActionItems("Sure!\n```json\n[{\"title\":\"Send deck\",\"priority\":\"high\"},{\"title\":\"Book call\"},]\n```")
		So(len(items), ShouldEqual, 2)
		So(items[0], ShouldResemble, model.ActionItem{Title: "Send deck", Priority: model.PriorityHigh})
		So(items[1].Priority, ShouldEqual, model.PriorityMedium)

		items = triage.ParseActionItems("[{\"title\":\"Send contract\",\"priority\":\"high\"}]\nNote: [see above]")
		So(items, ShouldResemble, model.ActionItemList{{Title: "Send contract", Priority: model.PriorityHigh}})

		items = triage.ParseActionItems("Here you go: [{\"title\":\"Book call\",},] and [thanks]")
		So(items, ShouldResemble, model.ActionItemList{{Title: "Book call", Priority: model.PriorityMedium}})

		items = triage.ParseActionItems(`[{"title":"Ping Bob, ]asap","priority":"low"}]`)
		So(len(items), ShouldEqual, 1)
		So(items[0].Title, ShouldEqual, "Ping Bob, ]asap")
	})

	Convey("Given an extractor", t, func() {
		store := newMemStore()
		llm := &scripted{}
		ex := triage.NewExtractor(store, llm.client())
		ctx := context.Background()

		Convey("Non-JSON replies give an empty list", func() {
			llm.replies = []string{"Nothing to do."}
			items := ex.Extract(ctx, "thanks!")
			So(items, ShouldNotBeNil)
			So(items, ShouldBeEmpty)
		})

		Convey("Materialize inserts pending AI tasks", func() {
			err := ex.Materialize(ctx, "coach", "c1", model.ActionItemList{{Title: "Review plan", Priority: model.PriorityLow}})
			So(err, ShouldBeNil)
			So(len(store.tasks), ShouldEqual, 1)
			So(store.tasks[0].Status, ShouldEqual, model.TaskPending)
			So(store.tasks[0].Source, ShouldEqual, model.SourceAIExtracted)
			So(store.tasks[0].ClientID, ShouldEqual, "c1")
		})

		Convey("Materialize of nothing is a no-op", func() {
			store.insertErr = errors.New("should not be called")
			So(ex.Materialize(ctx, "coach", "", nil), ShouldBeNil)
		})
	})
}

func TestSynthesizer(t *testing.T) {
	Convey("Given a day of activity", t, func() {
		store := newMemStore(acme()...)
		store.updates["u1"] = model.Update{ID: "u1", CoachID: "coach", ClientID: "c2", Content: "hiring plan done", Classification: model.ClassProgress, CreatedAt: fixedNow.Add(-5 * time.Hour)}
		store.updates["u2"] = model.Update{ID: "u2", CoachID: "coach", ClientID: "c1", Content: "blocked on legal", CreatedAt: fixedNow.Add(-2 * time.Hour)}
		store.updates["u3"] = model.Update{ID: "u3", CoachID: "coach", ClientID: "c2", Content: "follow up", CreatedAt: fixedNow.Add(-time.Hour)}
		store.updates["u4"] = model.Update{ID: "u4", CoachID: "coach", Content: "yesterday", CreatedAt: fixedNow.Add(-24 * time.Hour)}
		store.reflections = []model.Reflection{{ClientID: "c1", CoachID: "coach", EnergyLevel: 3, AccountabilityScore: 7, Win: "closed a deal"}}
		store.tasks = []model.Task{
			{CoachID: "coach", ClientID: "c1", Title: "Call lawyer", Priority: model.PriorityHigh, Status: model.TaskPending},
			{CoachID: "coach", ClientID: "c1", Title: "Old", Priority: model.PriorityLow, Status: model.TaskCompleted},
		}
		llm := &scripted{}
		syn := triage.NewSynthesizer(store, llm.client(), triage.WithClock(clock))
		ctx := context.Background()

		Convey("The briefing is stored with highlights and open tasks", func() {
			long := strings.Repeat("é", 600)
			llm.replies = []string{long}
			out, err := syn.Synthesize(ctx, "coach")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, long)

			ds, ok := store.syntheses["coach/2026-03-10"]
			So(ok, ShouldBeTrue)
			So(len([]rune(ds.Summary)), ShouldEqual, 500)
			So(ds.ClientHighlights, ShouldResemble, model.Highlights{
				{ClientID: "c2", CompanyName: "Globex"},
				{ClientID: "c1", CompanyName: "Acme Corp"},
			})
			So(ds.ActionItems, ShouldResemble, model.ActionItemList{{Title: "Call lawyer", Priority: model.PriorityHigh}})

			prompt := llm.reqs[0].Messages[0].Blocks[0].Text
			So(prompt, ShouldContainSubstring, "2026-03-10")
			So(prompt, ShouldContainSubstring, "[10:30] Globex (progress): hiring plan done")
			So(prompt, ShouldContainSubstring, "Acme Corp (unclassified)")
			So(prompt, ShouldNotContainSubstring, "yesterday")
			So(prompt, ShouldContainSubstring, "win: closed a deal")
			So(llm.reqs[0].Model, ShouldEqual, "claude-sonnet-4-5")
		})

		Convey("A rerun on the same day overwrites", func() {
			llm.replies = []string{"first", "second"}
			_, err := syn.Synthesize(ctx, "coach")
			So(err, ShouldBeNil)
			_, err = syn.Synthesize(ctx, "coach")
			So(err, ShouldBeNil)
			So(len(store.syntheses), ShouldEqual, 1)
			So(store.syntheses["coach/2026-03-10"].Content, ShouldEqual, "second")
		})

		Convey("Empty replies are errors and store nothing", func() {
			llm.replies = []string{"  "}
			_, err := syn.Synthesize(ctx, "coach")
			So(errors.Is(err, chat.ErrEmptyResponse), ShouldBeTrue)
			So(store.syntheses, ShouldBeEmpty)
		})

		Convey("SynthesizeAll counts failures without stopping", func() {
			store.clients = append(store.clients, model.Client{ID: "c9", CoachID: "other", CompanyName: "Solo"})
			llm.replies = []string{"ok", ""}
			res, err := syn.SynthesizeAll(ctx)
			So(err, ShouldBeNil)
			So(res.Total, ShouldEqual, 2)
			So(res.Updated, ShouldEqual, 1)
		})
	})
}

func TestPipeline(t *testing.T) {
	Convey("Given a pipeline", t, func() {
		store := newMemStore(acme()...)
		llm := &scripted{}
		c := llm.client()
		p := triage.NewPipeline(store,
			triage.NewClassifier(c),
			triage.NewInferrer(store, c),
			triage.NewExtractor(store, c),
		)
		ctx := context.Background()

		Convey("A raw update is fully enriched", func() {
			store.updates["u1"] = model.Update{ID: "u1", CoachID: "coach", Content: "#Globex stuck on pricing, need to send proposal"}
			llm.replies = []string{"blocker", `[{"title":"Send proposal","priority":"high"}]`}

			res, err := p.Process(ctx, "u1")
			So(err, ShouldBeNil)
			So(res.Classification, ShouldEqual, "blocker")
			So(res.ClientID, ShouldEqual, "c2")
			So(res.TasksCreated, ShouldEqual, 1)
			So(llm.calls(), ShouldEqual, 2)

			u := store.updates["u1"]
			So(u.Classification, ShouldEqual, model.ClassBlocker)
			So(u.ClientID, ShouldEqual, "c2")
			So(len(u.ActionItems), ShouldEqual, 1)
			So(store.tasks[0].ClientID, ShouldEqual, "c2")
		})

		Convey("Fields already set are not recomputed", func() {
			store.updates["u2"] = model.Update{
				ID: "u2", CoachID: "coach", ClientID: "c1", Content: "done",
				Classification: model.ClassProgress,
				ActionItems:    model.ActionItemList{{Title: "x", Priority: model.PriorityLow}},
			}
			res, err := p.Process(ctx, "u2")
			So(err, ShouldBeNil)
			So(res.Classification, ShouldEqual, "progress")
			So(res.ActionItems, ShouldEqual, 1)
			So(llm.calls(), ShouldEqual, 0)
			So(store.tasks, ShouldBeEmpty)
		})

		Convey("A task insert failure leaves the update untouched", func() {
			store.updates["u3"] = model.Update{ID: "u3", CoachID: "coach", ClientID: "c1", Content: "todo"}
			store.insertErr = errors.New("disk full")
			llm.replies = []string{"admin", `[{"title":"Sign"}]`}
			_, err := p.Process(ctx, "u3")
			So(err, ShouldNotBeNil)
			So(store.patches, ShouldBeEmpty)
		})

		Convey("Unknown updates are errors", func() {
			_, err := p.Process(ctx, "missing")
			So(err, ShouldNotBeNil)
		})
	})
}
