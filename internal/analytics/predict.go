package analytics

import (
	"math"
	"time"

	"pulseboard/internal/config"
	"pulseboard/internal/domain"
)

// Prediction is a heuristic completion forecast. It always carries a
// date; there are no error states.
type Prediction struct {
	EstimatedDate       time.Time `json:"estimated_date"`
	Velocity            float64   `json:"velocity"`
	AverageTaskDuration float64   `json:"average_task_duration_days"`
	RemainingTasks      int       `json:"remaining_tasks"`
}

// PredictCompletion forecasts when a project's remaining tasks will be
// done, from the observed completion velocity. With nothing remaining
// the project's recorded end date is returned unchanged.
//
// Velocity is completed tasks per elapsed calendar day since project
// start. A project with no elapsed days gets the configured idle
// velocity substituted outright rather than a denominator floor; the
// separate minimum velocity floor only guards the final division.
func PredictCompletion(p domain.Project, tasks []domain.Task, cfg config.AnalyticsConfig, now time.Time) Prediction {
	var completed, remaining int
	var durationSum float64
	var durationCount int
	for _, t := range tasks {
		switch {
		case t.Status == "Completed":
			completed++
			if t.StartDate != nil && t.CompletedDate != nil {
				d := t.CompletedDate.Sub(*t.StartDate).Hours() / 24
				if d > 0 {
					durationSum += d
					durationCount++
				}
			}
		case t.Open():
			remaining++
		}
	}

	avgDuration := cfg.DefaultTaskDurationDays
	if durationCount > 0 {
		avgDuration = durationSum / float64(durationCount)
	}

	daysSinceStart := now.Sub(p.StartDate).Hours() / 24
	velocity := cfg.IdleVelocity
	if daysSinceStart > 0 {
		velocity = float64(completed) / daysSinceStart
	}

	pred := Prediction{
		Velocity:            velocity,
		AverageTaskDuration: avgDuration,
		RemainingTasks:      remaining,
	}
	if remaining == 0 {
		pred.EstimatedDate = p.EndDate
		return pred
	}
	estimatedDays := float64(remaining) / math.Max(velocity, cfg.MinVelocity)
	pred.EstimatedDate = now.Add(time.Duration(estimatedDays * 24 * float64(time.Hour)))
	return pred
}
