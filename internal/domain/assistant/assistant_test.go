package assistant_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/coachd/internal/domain/assistant"
	"github.com/okian/coachd/internal/domain/chat"
	"github.com/okian/coachd/internal/domain/model"
)

type fakeStore struct {
	mu        sync.Mutex
	clients   []model.Client
	tasks     []model.Task
	updates   []model.Update
	syntheses map[model.Date]model.DailySynthesis
	coachIDs  []string
	taskErr   error
}

func (f *fakeStore) seen(coachID string) {
	f.mu.Lock()
	f.coachIDs = append(f.coachIDs, coachID)
	f.mu.Unlock()
}

func (f *fakeStore) ListClients(_ context.Context, coachID string, status model.ClientStatus) ([]model.Client, error) {
	f.seen(coachID)
	var out []model.Client
	for _, c := range f.clients {
		if c.CoachID == coachID && (status == "" || c.Status == status) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) FindClientByName(_ context.Context, coachID, name string) (model.Client, error) {
	f.seen(coachID)
	for _, c := range f.clients {
		if c.CoachID == coachID && strings.EqualFold(c.CompanyName, name) {
			return c, nil
		}
	}
	return model.Client{}, fmt.Errorf("client %q: %w", name, model.ErrNotFound)
}

func (f *fakeStore) ListContacts(_ context.Context, coachID, _ string) ([]model.Contact, error) {
	f.seen(coachID)
	return nil, nil
}

func (f *fakeStore) ListTasks(_ context.Context, tf model.TaskFilter) ([]model.Task, error) {
	f.seen(tf.CoachID)
	if f.taskErr != nil {
		return nil, f.taskErr
	}
	var out []model.Task
	for _, t := range f.tasks {
		if tf.ClientID != "" && t.ClientID != tf.ClientID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) ListUpdates(_ context.Context, uf model.UpdateFilter) ([]model.Update, error) {
	f.seen(uf.CoachID)
	return f.updates, nil
}

func (f *fakeStore) ListReflections(_ context.Context, rf model.ReflectionFilter) ([]model.Reflection, error) {
	f.seen(rf.CoachID)
	return nil, nil
}

func (f *fakeStore) SearchNotes(_ context.Context, nf model.NoteFilter) ([]model.SessionNote, error) {
	f.seen(nf.CoachID)
	return []model.SessionNote{{ID: "n1", Content: "talked about " + nf.Query}}, nil
}

func (f *fakeStore) GetSynthesis(_ context.Context, coachID string, date model.Date) (model.DailySynthesis, error) {
	f.seen(coachID)
	ds, ok := f.syntheses[date]
	if !ok {
		return model.DailySynthesis{}, model.ErrNotFound
	}
	return ds, nil
}

// scriptedModel replies with the next response and records every request.
type scriptedModel struct {
	mu        sync.Mutex
	responses []chat.Response
	repeat    *chat.Response
	err       error
	reqs      []chat.Request
}

func (s *scriptedModel) Complete(_ context.Context, req chat.Request) (chat.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return chat.Response{}, s.err
	}
	if len(s.responses) > 0 {
		r := s.responses[0]
		s.responses = s.responses[1:]
		return r, nil
	}
	if s.repeat != nil {
		return *s.repeat, nil
	}
	return chat.Response{StopReason: chat.StopEndTurn, Blocks: []chat.Block{chat.TextBlock("done")}}, nil
}

func answer(text string) chat.Response {
	return chat.Response{StopReason: chat.StopEndTurn, Blocks: []chat.Block{chat.TextBlock(text)}}
}

func toolCall(blocks ...chat.Block) chat.Response {
	return chat.Response{StopReason: chat.StopToolUse, Blocks: blocks}
}

func use(id, name, input string) chat.Block {
	return chat.ToolUseBlock(id, name, json.RawMessage(input))
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newStore() *fakeStore {
	return &fakeStore{
		clients: []model.Client{
			{ID: "c1", CoachID: "coach", CompanyName: "Acme Corp", Status: model.ClientActive, EngagementScore: 80},
			{ID: "c2", CoachID: "coach", CompanyName: "Globex", Status: model.ClientAtRisk, EngagementScore: 20},
			{ID: "c3", CoachID: "someone-else", CompanyName: "Initech", Status: model.ClientActive},
		},
		tasks: []model.Task{
			{ID: "t1", ClientID: "c1", Title: "Send deck", Status: model.TaskPending, DueDate: "2026-03-01"},
			{ID: "t2", ClientID: "c2", Title: "Call", Status: model.TaskInProgress, DueDate: "2026-03-20"},
			{ID: "t3", ClientID: "c2", Title: "Plan", Status: model.TaskPending},
		},
		updates: []model.Update{
			{ID: "u1", ClientID: "c2", Classification: model.ClassBlocker},
			{ID: "u2", ClientID: "c1", Classification: model.ClassProgress},
		},
		syntheses: map[model.Date]model.DailySynthesis{},
	}
}

func TestOrchestrator(t *testing.T) {
	Convey("Given an orchestrator with the coach tools", t, func() {
		store := newStore()
		reg, err := assistant.NewCoachTools(store, func() time.Time { return now })
		So(err, ShouldBeNil)
		llm := &scriptedModel{}
		o := assistant.NewOrchestrator(llm, reg)
		ctx := context.Background()

		Convey("A direct answer returns after one call", func() {
			llm.responses = []chat.Response{answer("  You have two clients.  ")}
			out, err := o.Run(ctx, "coach", "how many clients?")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "You have two clients.")
			So(len(llm.reqs), ShouldEqual, 1)
			So(len(llm.reqs[0].Tools), ShouldEqual, 8)
			So(llm.reqs[0].System, ShouldNotBeBlank)
		})

		Convey("Tool results are fed back in request order", func() {
			llm.responses = []chat.Response{
				toolCall(
					use("a", "list_companies", `{}`),
					use("b", "no_such_tool", `{}`),
					use("c", "list_tasks", `{"company_name":"Nope"}`),
				),
				answer("summary"),
			}
			out, err := o.Run(ctx, "coach", "status?")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "summary")
			So(len(llm.reqs), ShouldEqual, 2)

			So(len(llm.reqs[0].Messages), ShouldEqual, 1)
			second := llm.reqs[1].Messages
			So(len(second), ShouldEqual, 3)
			So(second[1].Role, ShouldEqual, chat.RoleAssistant)
			So(second[2].Role, ShouldEqual, chat.RoleUser)

			results := second[2].Blocks
			So(len(results), ShouldEqual, 3)
			So(results[0].ToolUseID, ShouldEqual, "a")
			So(results[0].IsError, ShouldBeFalse)
			So(results[0].Text, ShouldContainSubstring, "Acme Corp")
			So(results[0].Text, ShouldNotContainSubstring, "Initech")
			So(results[1].ToolUseID, ShouldEqual, "b")
			So(results[1].IsError, ShouldBeTrue)
			So(results[1].Text, ShouldContainSubstring, "unknown tool")
			So(results[2].ToolUseID, ShouldEqual, "c")
			So(results[2].IsError, ShouldBeTrue)
			So(results[2].Text, ShouldContainSubstring, "company not found")
		})

		Convey("The coach id always comes from the caller", func() {
			llm.responses = []chat.Response{
				toolCall(use("a", "list_companies", `{"coach_id":"someone-else"}`)),
				answer("ok"),
			}
			_, err := o.Run(ctx, "coach", "list")
			So(err, ShouldBeNil)
			for _, id := range store.coachIDs {
				So(id, ShouldEqual, "coach")
			}
			So(llm.reqs[1].Messages[2].Blocks[0].Text, ShouldNotContainSubstring, "Initech")
		})

		Convey("A model that never stops asking gets the fallback", func() {
			loop := toolCall(use("x", "get_stats", `{}`))
			llm.repeat = &loop
			out, err := o.Run(ctx, "coach", "loop forever")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, assistant.FallbackResponse)
			So(len(llm.reqs), ShouldEqual, 5)
			So(len(llm.reqs[4].Messages), ShouldEqual, 9)
		})

		Convey("The iteration cap is configurable", func() {
			loop := toolCall(use("x", "get_stats", `{}`))
			llm.repeat = &loop
			o := assistant.NewOrchestrator(llm, reg, assistant.WithMaxIterations(2))
			out, err := o.Run(ctx, "coach", "loop")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, assistant.FallbackResponse)
			So(len(llm.reqs), ShouldEqual, 2)
		})

		Convey("Model errors are returned", func() {
			llm.err = errors.New("rate limited")
			_, err := o.Run(ctx, "coach", "hi")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "rate limited")
		})
	})
}

func TestCoachTools(t *testing.T) {
	Convey("Given the coach tools", t, func() {
		store := newStore()
		reg, err := assistant.NewCoachTools(store, func() time.Time { return now })
		So(err, ShouldBeNil)
		ctx := context.Background()

		call := func(name, input string) (map[string]any, error) {
			out, err := reg.Call(ctx, "coach", name, json.RawMessage(input))
			if err != nil {
				return nil, err
			}
			var m map[string]any
			So(json.Unmarshal([]byte(out), &m), ShouldBeNil)
			return m, nil
		}

		Convey("Names are registered in a stable order", func() {
			var names []string
			for _, d := range reg.Definitions() {
				names = append(names, d.Name)
				So(d.InputSchema["type"], ShouldEqual, "object")
			}
			So(names, ShouldResemble, []string{
				"list_companies", "get_company_detail", "list_tasks", "list_updates",
				"get_synthesis", "list_reflections", "search_notes", "get_stats",
			})
		})

		Convey("get_synthesis reports a missing briefing", func() {
			m, err := call("get_synthesis", `{}`)
			So(err, ShouldBeNil)
			So(m["found"], ShouldEqual, false)
			So(m["date"], ShouldEqual, "2026-03-10")
		})

		Convey("get_synthesis returns a stored briefing", func() {
			store.syntheses["2026-03-09"] = model.DailySynthesis{Date: "2026-03-09", Content: "busy day"}
			m, err := call("get_synthesis", `{"date":"2026-03-09"}`)
			So(err, ShouldBeNil)
			So(m["found"], ShouldEqual, true)
			So(m["synthesis"].(map[string]any)["content"], ShouldEqual, "busy day")
		})

		Convey("get_stats summarizes the portfolio", func() {
			m, err := call("get_stats", ``)
			So(err, ShouldBeNil)
			So(m["clients"], ShouldEqual, float64(2))
			So(m["average_engagement"], ShouldEqual, float64(50))
			So(m["open_tasks"], ShouldEqual, float64(3))
			So(m["overdue_tasks"], ShouldEqual, float64(1))
			So(m["updates_last_7_days"], ShouldEqual, float64(2))
			So(m["blockers_last_7_days"], ShouldEqual, float64(1))
		})

		Convey("get_company_detail resolves names case-insensitively", func() {
			m, err := call("get_company_detail", `{"company_name":"globex"}`)
			So(err, ShouldBeNil)
			So(m["company"].(map[string]any)["id"], ShouldEqual, "c2")
			So(len(m["open_tasks"].([]any)), ShouldEqual, 2)
			So(m["contacts"], ShouldResemble, []any{})
		})

		Convey("Invalid input is rejected", func() {
			_, err := call("search_notes", `{"query":"  "}`)
			So(errors.Is(err, assistant.ErrInvalidInput), ShouldBeTrue)
			_, err = call("list_tasks", `{"status":"someday"}`)
			So(errors.Is(err, assistant.ErrInvalidInput), ShouldBeTrue)
			_, err = call("list_updates", `not json`)
			So(errors.Is(err, assistant.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("Store errors surface", func() {
			store.taskErr = errors.New("db down")
			_, err := call("list_tasks", `{}`)
			So(err, ShouldNotBeNil)
		})

		Convey("Duplicate registration fails", func() {
			err := reg.Register(chat.Tool{Name: "get_stats"}, func(context.Context, string, json.RawMessage) (any, error) { return nil, nil })
			So(errors.Is(err, assistant.ErrDuplicateTool), ShouldBeTrue)
		})
	})
}
