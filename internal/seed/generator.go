package seed

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/coachd/internal/domain/model"
)

// Activity rates per client per day, in percent.
const (
	reflectionChance = 35
	updateChance     = 60
	taskChance       = 25
	completedChance  = 50
)

var companies = []string{ //nolint:gochecknoglobals // fixed vocabulary
	"Acme Corp", "Brightline Labs", "Cobalt Freight", "Dunmore Bakery", "Evergreen Dental",
	"Fieldstone Legal", "Granite Analytics", "Harbor Yoga", "Ironwood Builders", "Juniper Health",
}

var industries = []string{"software", "logistics", "food", "healthcare", "legal", "construction"} //nolint:gochecknoglobals // fixed vocabulary

var firstNames = []string{"Ana", "Ben", "Chloe", "Dev", "Erin", "Femi", "Gus", "Hana"} //nolint:gochecknoglobals // fixed vocabulary

var updateTemplates = []string{ //nolint:gochecknoglobals // fixed vocabulary
	"#%s shipped the new onboarding flow this week, signups are up",
	"We're blocked on hiring for %s, the senior role has been open for two months",
	"Can we move Thursday's session for %s to Friday morning?",
	"Realised at %s that our best customers all came from referrals",
	"Invoice for %s attached, please confirm the billing address",
	"Need to send the revised proposal to the %s board before Monday",
}

var wins = []string{"closed a new account", "hired an ops lead", "cut churn", "launched pricing page"} //nolint:gochecknoglobals // fixed vocabulary

var taskTitles = []string{ //nolint:gochecknoglobals // fixed vocabulary
	"Review hiring plan", "Prepare quarterly goals", "Follow up on proposal", "Send session recap",
}

type dataset struct {
	coachIDs    []string
	clients     []model.Client
	contacts    []model.Contact
	notes       []model.SessionNote
	reflections []model.Reflection
	updates     []model.Update
	tasks       []model.Task
}

// generate builds the rows for cfg. It is pure: the same cfg yields the
// same data apart from row ids.
func generate(cfg Config) dataset {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	pick := func(xs []string) string { return xs[rng.IntN(len(xs))] }
	chance := func(pct int) bool { return rng.IntN(100) < pct }
	day := func(d int) time.Time {
		base := cfg.Now.AddDate(0, 0, -d).Truncate(24 * time.Hour)
		return base.Add(time.Duration(8+rng.IntN(10))*time.Hour + time.Duration(rng.IntN(60))*time.Minute)
	}

	var ds dataset
	for c := range cfg.Coaches {
		coachID := fmt.Sprintf("coach-%d", c+1)
		ds.coachIDs = append(ds.coachIDs, coachID)

		for i := range cfg.ClientsPerCoach {
			name := companies[(c*cfg.ClientsPerCoach+i)%len(companies)]
			if n := (c*cfg.ClientsPerCoach + i) / len(companies); n > 0 {
				name = fmt.Sprintf("%s %d", name, n+1)
			}
			client := model.Client{
				ID:          uuid.NewString(),
				CoachID:     coachID,
				CompanyName: name,
				Status:      model.ClientActive,
				Industry:    pick(industries),
				CreatedAt:   cfg.Now.AddDate(0, -3, 0),
			}
			if chance(15) {
				client.Status = model.ClientAtRisk
			}
			ds.clients = append(ds.clients, client)

			first := pick(firstNames)
			ds.contacts = append(ds.contacts, model.Contact{
				ID:        uuid.NewString(),
				ClientID:  client.ID,
				CoachID:   coachID,
				Name:      first + " " + strings.Fields(name)[0],
				Email:     strings.ToLower(first) + "@" + slug(name) + ".example",
				Role:      "founder",
				IsPrimary: true,
			})
			ds.notes = append(ds.notes, model.SessionNote{
				ID:          uuid.NewString(),
				ClientID:    client.ID,
				CoachID:     coachID,
				Content:     fmt.Sprintf("Kickoff with %s: agreed to focus on %s goals for the quarter.", name, client.Industry),
				SessionDate: model.DateOf(day(cfg.Days)),
				CreatedAt:   day(cfg.Days),
			})

			for d := cfg.Days - 1; d >= 0; d-- {
				if chance(reflectionChance) {
					ds.reflections = append(ds.reflections, model.Reflection{
						ID:                  uuid.NewString(),
						ClientID:            client.ID,
						CoachID:             coachID,
						EnergyLevel:         1 + rng.IntN(10),
						AccountabilityScore: 1 + rng.IntN(10),
						GoalProgress:        "on track with weekly priorities",
						Win:                 pick(wins),
						CreatedAt:           day(d),
					})
				}
				if chance(updateChance) {
					tmpl, ref := pick(updateTemplates), name
					if strings.HasPrefix(tmpl, "#") {
						ref = slug(name)
					}
					ds.updates = append(ds.updates, model.Update{
						ID:        uuid.NewString(),
						CoachID:   coachID,
						Content:   fmt.Sprintf(tmpl, ref),
						CreatedAt: day(d),
					})
				}
				if chance(taskChance) {
					t := model.Task{
						ID:        uuid.NewString(),
						CoachID:   coachID,
						ClientID:  client.ID,
						Title:     pick(taskTitles),
						Priority:  model.PriorityMedium,
						Status:    model.TaskPending,
						DueDate:   model.DateOf(cfg.Now.AddDate(0, 0, 3-d)),
						Source:    model.SourceManual,
						CreatedAt: day(d),
					}
					if chance(completedChance) {
						t.Status = model.TaskCompleted
					}
					ds.tasks = append(ds.tasks, t)
				}
			}
		}
	}
	return ds
}

func slug(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}
