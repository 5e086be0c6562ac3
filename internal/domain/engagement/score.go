// Package engagement turns per-client activity into a bounded engagement score.
package engagement

import "github.com/okian/coachd/internal/domain/model"

// Weights sets the per-unit points and cap of each activity term.
type Weights struct {
	Reflection    int `koanf:"reflection"`
	ReflectionCap int `koanf:"reflection_cap"`
	Update        int `koanf:"update"`
	UpdateCap     int `koanf:"update_cap"`
	Completed     int `koanf:"completed"`
	CompletedCap  int `koanf:"completed_cap"`
	Total         int `koanf:"total"`
	TotalCap      int `koanf:"total_cap"`
}

// DefaultWeights caps the four terms at 36, 24, 30 and 10 points.
func DefaultWeights() Weights {
	return Weights{
		Reflection: 12, ReflectionCap: 36,
		Update: 4, UpdateCap: 24,
		Completed: 5, CompletedCap: 30,
		Total: 1, TotalCap: 10,
	}
}

// Valid reports whether no weight or cap is negative.
func (w Weights) Valid() bool {
	for _, v := range []int{w.Reflection, w.ReflectionCap, w.Update, w.UpdateCap, w.Completed, w.CompletedCap, w.Total, w.TotalCap} {
		if v < 0 {
			return false
		}
	}
	return true
}

// Score maps an activity sample to [0,100]. Each term is a capped linear
// function of one count, so raising any count never lowers the score.
// Negative counts and weights count as zero.
func Score(s model.ActivitySample, w Weights) int {
	score := term(s.Reflections, w.Reflection, w.ReflectionCap) +
		term(s.Updates, w.Update, w.UpdateCap) +
		term(s.TasksCompleted, w.Completed, w.CompletedCap) +
		term(s.TasksTotal, w.Total, w.TotalCap)
	return clamp(score)
}

func term(count, weight, limit int) int {
	if count <= 0 || weight <= 0 || limit <= 0 {
		return 0
	}
	// Compare before multiplying so huge counts cannot overflow.
	if count >= (limit+weight-1)/weight {
		return limit
	}
	return min(count*weight, limit)
}

func clamp(v int) int {
	return max(model.MinEngagementScore, min(model.MaxEngagementScore, v))
}
