package analytics

import (
	"pulseboard/internal/domain"
)

// Breakdown counts tasks per category over a closed label set. Every
// label appears in the result, zero-count ones included; values outside
// the set are excluded.
func Breakdown(tasks []domain.Task, labels []string, key func(domain.Task) string) map[string]int {
	out := make(map[string]int, len(labels))
	for _, l := range labels {
		out[l] = 0
	}
	for _, t := range tasks {
		k := key(t)
		if _, ok := out[k]; ok {
			out[k]++
		}
	}
	return out
}

func StatusBreakdown(tasks []domain.Task) map[string]int {
	return Breakdown(tasks, domain.TaskStatuses, func(t domain.Task) string { return t.Status })
}

func PriorityBreakdown(tasks []domain.Task) map[string]int {
	return Breakdown(tasks, domain.TaskPriorities, func(t domain.Task) string { return t.Priority })
}

func TypeBreakdown(tasks []domain.Task) map[string]int {
	return Breakdown(tasks, domain.TaskTypes, func(t domain.Task) string { return t.Type })
}

type TimeRollup struct {
	TotalLogged      float64 `json:"total_logged"`
	BillableHours    float64 `json:"billable_hours"`
	NonBillableHours float64 `json:"non_billable_hours"`
	AverageTaskTime  float64 `json:"average_task_time"`
}

// TimeRollupOf sums time tracking across tasks. AverageTaskTime is mean
// actual hours per task, 0 for an empty set.
func TimeRollupOf(tasks []domain.Task) TimeRollup {
	var r TimeRollup
	var actual float64
	for _, t := range tasks {
		r.TotalLogged += t.TimeTracking.TotalLogged
		r.BillableHours += t.TimeTracking.BillableHours
		r.NonBillableHours += t.TimeTracking.NonBillableHours
		actual += t.ActualHours
	}
	if len(tasks) > 0 {
		r.AverageTaskTime = actual / float64(len(tasks))
	}
	return r
}

type QualityRollup struct {
	BugsFound           int     `json:"bugs_found"`
	BugsFixed           int     `json:"bugs_fixed"`
	AverageTestCoverage float64 `json:"average_test_coverage"`
	AverageCodeQuality  float64 `json:"average_code_quality"`
}

func QualityRollupOf(tasks []domain.Task) QualityRollup {
	var r QualityRollup
	var coverage, quality float64
	for _, t := range tasks {
		r.BugsFound += t.Quality.BugsFound
		r.BugsFixed += t.Quality.BugsFixed
		coverage += t.Quality.TestCoverage
		quality += t.Quality.CodeQualityScore
	}
	if len(tasks) > 0 {
		r.AverageTestCoverage = coverage / float64(len(tasks))
		r.AverageCodeQuality = quality / float64(len(tasks))
	}
	return r
}

type MemberPerformance struct {
	UserID              string  `json:"user_id"`
	Name                string  `json:"name"`
	TasksAssigned       int     `json:"tasks_assigned"`
	TasksCompleted      int     `json:"tasks_completed"`
	CompletionRate      float64 `json:"completion_rate"`
	TotalHours          float64 `json:"total_hours"`
	AverageHoursPerTask float64 `json:"average_hours_per_task"`
}

// TeamPerformanceOf computes per-member rollups in team order. Names are
// resolved from the users map when available, the user id otherwise.
func TeamPerformanceOf(team []domain.TeamMember, tasks []domain.Task, users map[string]domain.User) []MemberPerformance {
	out := make([]MemberPerformance, 0, len(team))
	for _, m := range team {
		perf := MemberPerformance{UserID: m.UserID, Name: m.UserID}
		if u, ok := users[m.UserID]; ok {
			perf.Name = u.FullName()
		}
		for _, t := range tasks {
			if !t.AssignedTo(m.UserID) {
				continue
			}
			perf.TasksAssigned++
			perf.TotalHours += t.ActualHours
			if t.Status == "Completed" {
				perf.TasksCompleted++
			}
		}
		if perf.TasksAssigned > 0 {
			perf.CompletionRate = float64(perf.TasksCompleted) / float64(perf.TasksAssigned) * 100
			perf.AverageHoursPerTask = perf.TotalHours / float64(perf.TasksAssigned)
		}
		out = append(out, perf)
	}
	return out
}
