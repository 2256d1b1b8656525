package analytics

import (
	"fmt"
	"testing"
	"time"

	"pulseboard/internal/config"
	"pulseboard/internal/domain"
)

var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func cfg() config.AnalyticsConfig { return config.Default().Analytics }

func task(status string, mutate ...func(*domain.Task)) domain.Task {
	t := domain.Task{Status: status, Priority: "Medium", Type: "Feature"}
	for _, m := range mutate {
		m(&t)
	}
	return t
}

func assigned(userIDs ...string) func(*domain.Task) {
	return func(t *domain.Task) { t.Assignees = userIDs }
}

func TestBreakdownZeroFillsAndExcludesUnknown(t *testing.T) {
	tasks := []domain.Task{
		task("To Do"),
		task("To Do"),
		task("Completed"),
		task("Retired"), // not in the closed set
	}
	got := StatusBreakdown(tasks)
	if len(got) != len(domain.TaskStatuses) {
		t.Fatalf("got %d buckets, want %d", len(got), len(domain.TaskStatuses))
	}
	if got["To Do"] != 2 || got["Completed"] != 1 {
		t.Fatalf("counts wrong: %v", got)
	}
	if got["Blocked"] != 0 {
		t.Fatalf("zero bucket missing: %v", got)
	}
	if _, ok := got["Retired"]; ok {
		t.Fatal("unknown status leaked into breakdown")
	}
}

func TestRollupsEmptySetIsZero(t *testing.T) {
	tr := TimeRollupOf(nil)
	if tr.AverageTaskTime != 0 {
		t.Fatalf("average task time = %v, want 0", tr.AverageTaskTime)
	}
	qr := QualityRollupOf(nil)
	if qr.AverageTestCoverage != 0 || qr.AverageCodeQuality != 0 {
		t.Fatalf("quality averages not zero: %+v", qr)
	}
}

func TestTeamPerformanceCompletionRateBounds(t *testing.T) {
	team := []domain.TeamMember{{UserID: "u1"}, {UserID: "u2"}}
	tasks := []domain.Task{
		task("Completed", assigned("u1")),
		task("Completed", assigned("u1")),
		task("To Do", assigned("u1")),
	}
	perf := TeamPerformanceOf(team, tasks, nil)
	if len(perf) != 2 {
		t.Fatalf("got %d members", len(perf))
	}
	for _, p := range perf {
		if p.CompletionRate < 0 || p.CompletionRate > 100 {
			t.Fatalf("completion rate %v out of range", p.CompletionRate)
		}
	}
	if perf[1].TasksAssigned != 0 || perf[1].CompletionRate != 0 {
		t.Fatalf("idle member should be all zero: %+v", perf[1])
	}
}

// A project with nothing left to do keeps its recorded end date.
func TestPredictNoRemainingTasksReturnsEndDate(t *testing.T) {
	end := now.AddDate(0, 1, 0)
	p := domain.Project{StartDate: now.AddDate(0, -1, 0), EndDate: end}
	tasks := []domain.Task{task("Completed"), task("Cancelled")}
	pred := PredictCompletion(p, tasks, cfg(), now)
	if !pred.EstimatedDate.Equal(end) {
		t.Fatalf("estimate = %v, want end date %v", pred.EstimatedDate, end)
	}
}

func TestPredictVelocityFromElapsedDays(t *testing.T) {
	p := domain.Project{StartDate: now.AddDate(0, 0, -10), EndDate: now.AddDate(0, 0, 30)}
	var tasks []domain.Task
	for i := 0; i < 5; i++ {
		tasks = append(tasks, task("Completed"))
	}
	tasks = append(tasks, task("To Do"), task("To Do"))

	pred := PredictCompletion(p, tasks, cfg(), now)
	if pred.Velocity != 0.5 { // 5 completed over 10 days
		t.Fatalf("velocity = %v, want 0.5", pred.Velocity)
	}
	// 2 remaining at 0.5 tasks/day -> 4 days out.
	want := now.Add(4 * 24 * time.Hour)
	if !pred.EstimatedDate.Equal(want) {
		t.Fatalf("estimate = %v, want %v", pred.EstimatedDate, want)
	}
}

// A project with no elapsed days gets the idle velocity substituted
// outright, not a denominator floor.
func TestPredictIdleVelocitySubstitution(t *testing.T) {
	p := domain.Project{StartDate: now.AddDate(0, 0, 1), EndDate: now.AddDate(0, 0, 30)}
	tasks := []domain.Task{task("To Do")}
	pred := PredictCompletion(p, tasks, cfg(), now)
	if pred.Velocity != 0.5 {
		t.Fatalf("idle velocity = %v, want 0.5", pred.Velocity)
	}
	want := now.Add(2 * 24 * time.Hour) // 1 / 0.5
	if !pred.EstimatedDate.Equal(want) {
		t.Fatalf("estimate = %v, want %v", pred.EstimatedDate, want)
	}
}

func TestPredictMinVelocityFloor(t *testing.T) {
	// Long-running project, nothing completed: raw velocity 0 is
	// floored to 0.1 so the forecast stays finite.
	p := domain.Project{StartDate: now.AddDate(0, 0, -100), EndDate: now.AddDate(0, 0, 30)}
	tasks := []domain.Task{task("To Do")}
	pred := PredictCompletion(p, tasks, cfg(), now)
	want := now.Add(10 * 24 * time.Hour) // 1 / 0.1
	if !pred.EstimatedDate.Equal(want) {
		t.Fatalf("estimate = %v, want %v", pred.EstimatedDate, want)
	}
}

func TestPredictIsDeterministic(t *testing.T) {
	p := domain.Project{StartDate: now.AddDate(0, 0, -7), EndDate: now.AddDate(0, 0, 14)}
	tasks := []domain.Task{task("Completed"), task("To Do"), task("In Progress")}
	a := PredictCompletion(p, tasks, cfg(), now)
	b := PredictCompletion(p, tasks, cfg(), now)
	if !a.EstimatedDate.Equal(b.EstimatedDate) || a.Velocity != b.Velocity {
		t.Fatalf("prediction not deterministic: %+v vs %+v", a, b)
	}
}

func TestPredictDefaultTaskDuration(t *testing.T) {
	p := domain.Project{StartDate: now.AddDate(0, 0, -10), EndDate: now.AddDate(0, 0, 10)}
	tasks := []domain.Task{task("Completed"), task("To Do")} // completed task has no dates
	pred := PredictCompletion(p, tasks, cfg(), now)
	if pred.AverageTaskDuration != 3 {
		t.Fatalf("average duration = %v, want default 3", pred.AverageTaskDuration)
	}
}

// Budget 90% utilized, behind schedule, 6 active tasks per member:
// 25 + 30 + 20 = 75, Critical.
func TestRiskScenarioBudgetScheduleWorkload(t *testing.T) {
	p := domain.Project{
		Budget:     1000,
		ActualCost: 900,
		Progress:   50,
		StartDate:  now.AddDate(0, 0, -20),
		EndDate:    now.AddDate(0, 0, 10), // duration 30, due in 10
		Team:       []domain.TeamMember{{UserID: "u1"}, {UserID: "u2"}},
	}
	var tasks []domain.Task
	for i := 0; i < 12; i++ {
		tasks = append(tasks, task("In Progress"))
	}
	got := AssessRisk(p, tasks, cfg(), now)
	if got.Score != 75 {
		t.Fatalf("score = %v, want 75 (factors: %v)", got.Score, got.Factors)
	}
	if got.Level != "Critical" {
		t.Fatalf("level = %q, want Critical", got.Level)
	}
	if len(got.Factors) != 3 {
		t.Fatalf("got %d factors, want 3: %v", len(got.Factors), got.Factors)
	}
}

func TestRiskQualityAndDependencySignals(t *testing.T) {
	p := domain.Project{
		Progress:  100, // no schedule slip
		StartDate: now.AddDate(0, 0, -10),
		EndDate:   now.AddDate(0, 0, 10),
	}
	tasks := []domain.Task{
		task("To Do", func(t *domain.Task) { t.Quality.BugsFound = 2; t.Dependencies = []string{"a"} }),
		task("To Do", func(t *domain.Task) { t.Quality.BugsFound = 1 }),
		task("To Do"),
	}
	// bug rate 2/3 > 0.3 (+15), dependency rate 1/3 <= 0.4 (no hit)
	got := AssessRisk(p, tasks, cfg(), now)
	if got.Score != 15 {
		t.Fatalf("score = %v, want 15 (factors: %v)", got.Score, got.Factors)
	}
	if got.Level != "Low" {
		t.Fatalf("level = %q, want Low", got.Level)
	}
}

func TestRiskScoreClampedAndLevels(t *testing.T) {
	for _, tc := range []struct {
		score float64
		level string
	}{
		{0, "Low"}, {29.9, "Low"}, {30, "Medium"}, {49.9, "Medium"},
		{50, "High"}, {69.9, "High"}, {70, "Critical"}, {100, "Critical"},
	} {
		if got := riskLevel(tc.score); got != tc.level {
			t.Fatalf("riskLevel(%v) = %q, want %q", tc.score, got, tc.level)
		}
	}
}

func TestRiskZeroDurationSkipsSchedule(t *testing.T) {
	at := now
	p := domain.Project{StartDate: at, EndDate: at, Progress: 0}
	got := AssessRisk(p, nil, cfg(), now)
	if got.Score != 0 {
		t.Fatalf("score = %v, want 0 for zero-duration project", got.Score)
	}
}

// Team of 4 averaging 5 tasks: one member at 9 gets exactly one
// reduction, one at 2 gets exactly one increase.
func TestRecommendWorkloadImbalance(t *testing.T) {
	p := domain.Project{Team: []domain.TeamMember{
		{UserID: "x"}, {UserID: "y"}, {UserID: "a"}, {UserID: "b"},
	}}
	var tasks []domain.Task
	addTasks := func(user string, n int) {
		for i := 0; i < n; i++ {
			tasks = append(tasks, task("To Do", assigned(user)))
		}
	}
	addTasks("x", 9)
	addTasks("y", 2)
	addTasks("a", 5)
	addTasks("b", 4)

	recs := Recommend(p, tasks, nil, cfg())
	var reductions, increases []domain.Recommendation
	for _, r := range recs {
		switch r.Type {
		case "workload_reduction":
			reductions = append(reductions, r)
		case "workload_increase":
			increases = append(increases, r)
		}
	}
	if len(reductions) != 1 || reductions[0].UserID != "x" || reductions[0].Priority != "high" {
		t.Fatalf("reductions = %+v", reductions)
	}
	if len(increases) != 1 || increases[0].UserID != "y" || increases[0].Priority != "medium" {
		t.Fatalf("increases = %+v", increases)
	}
}

func TestRecommendSkillGapLast(t *testing.T) {
	p := domain.Project{
		Team:           []domain.TeamMember{{UserID: "x"}, {UserID: "y"}},
		RequiredSkills: []string{"go", "sql"},
	}
	tasks := []domain.Task{
		task("To Do", assigned("x")), task("To Do", assigned("x")),
		task("To Do", assigned("x")), task("To Do", assigned("x")),
	}
	recs := Recommend(p, tasks, nil, cfg())
	if len(recs) == 0 {
		t.Fatal("expected recommendations")
	}
	last := recs[len(recs)-1]
	if last.Type != "skill_gap" || last.Priority != "medium" {
		t.Fatalf("last recommendation = %+v, want skill_gap", last)
	}
}

func TestRecommendEmptyTeamNoWorkloadRecs(t *testing.T) {
	p := domain.Project{RequiredSkills: []string{"go"}}
	recs := Recommend(p, nil, nil, cfg())
	if len(recs) != 1 || recs[0].Type != "skill_gap" {
		t.Fatalf("recs = %+v", recs)
	}
}

func TestOverview(t *testing.T) {
	projects := []domain.Project{
		{Status: "In Progress"}, {Status: "Completed"}, {Status: "Planning"},
	}
	tasks := []domain.Task{
		task("Completed"),
		task("To Do", func(t *domain.Task) { t.DueDate = now.AddDate(0, 0, -1) }),
		task("To Do", func(t *domain.Task) { t.DueDate = now.AddDate(0, 0, 1) }),
		task("Cancelled", func(t *domain.Task) { t.DueDate = now.AddDate(0, 0, -5) }),
	}
	o := overviewOf(projects, tasks, now)
	if o.ActiveProjects != 1 || o.CompletedProjects != 1 {
		t.Fatalf("project counts wrong: %+v", o)
	}
	if o.OverdueTasks != 1 {
		t.Fatalf("overdue = %d, want 1 (cancelled tasks never overdue)", o.OverdueTasks)
	}
	if o.CompletionRate != 25 {
		t.Fatalf("completion rate = %v, want 25", o.CompletionRate)
	}
}

func TestProductivityTrendCoversThirtyDays(t *testing.T) {
	done := now.AddDate(0, 0, -2)
	started := done.AddDate(0, 0, -4)
	tasks := []domain.Task{
		task("Completed", func(t *domain.Task) { t.StartDate = &started; t.CompletedDate = &done }),
	}
	p := productivityOf(tasks, now)
	if len(p.CompletionTrend) != 30 {
		t.Fatalf("trend length = %d, want 30", len(p.CompletionTrend))
	}
	day := done.Format("2006-01-02")
	found := false
	for _, pt := range p.CompletionTrend {
		if pt.Date == day {
			found = true
			if pt.Completed != 1 {
				t.Fatalf("completed on %s = %d, want 1", day, pt.Completed)
			}
		}
	}
	if !found {
		t.Fatalf("day %s missing from trend", day)
	}
	if p.AverageTaskDuration != 4 {
		t.Fatalf("average duration = %v, want 4", p.AverageTaskDuration)
	}
}

func TestFinancialZeroBudget(t *testing.T) {
	f := financialOf([]domain.Project{{Budget: 0, ActualCost: 500}})
	if f.TotalVariance != 0 || f.BudgetUtilization != 0 {
		t.Fatalf("zero-budget ratios must be 0: %+v", f)
	}
}

func TestRiskFactorFormatting(t *testing.T) {
	p := domain.Project{Budget: 1000, ActualCost: 905, Progress: 100,
		StartDate: now.AddDate(0, 0, -10), EndDate: now.AddDate(0, 0, 10)}
	got := AssessRisk(p, nil, cfg(), now)
	want := fmt.Sprintf("Budget utilization at %.1f%%", 90.5)
	if len(got.Factors) != 1 || got.Factors[0] != want {
		t.Fatalf("factors = %v, want [%q]", got.Factors, want)
	}
}
