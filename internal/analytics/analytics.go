package analytics

import (
	"context"
	"sort"
	"time"

	"pulseboard/internal/config"
	"pulseboard/internal/domain"
	"pulseboard/internal/repo"
)

// Service assembles analytics payloads from stored records. All
// computations are per request; nothing here is persisted.
type Service struct {
	Repo   repo.Repo
	Config *config.Config
	Now    func() time.Time
}

func NewService(r repo.Repo, cfg *config.Config) Service {
	return Service{Repo: r, Config: cfg, Now: time.Now}
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type TaskBreakdowns struct {
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
	ByType     map[string]int `json:"by_type"`
}

type ProjectMetrics struct {
	Tasks        TaskBreakdowns `json:"tasks"`
	TimeTracking TimeRollup     `json:"time_tracking"`
	Quality      QualityRollup  `json:"quality"`
	Velocity     float64        `json:"velocity"`
}

type ProjectSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Progress   float64   `json:"progress"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Budget     float64   `json:"budget"`
	ActualCost float64   `json:"actual_cost"`
}

type ProjectInsights struct {
	CompletionPrediction    Prediction              `json:"completion_prediction"`
	RiskAssessment          domain.RiskAssessment   `json:"risk_assessment"`
	ResourceRecommendations []domain.Recommendation `json:"resource_recommendations"`
}

type ProjectReport struct {
	Project  ProjectSummary      `json:"project"`
	Metrics  ProjectMetrics      `json:"metrics"`
	Team     []MemberPerformance `json:"team"`
	Insights ProjectInsights     `json:"insights"`
}

// ProjectAnalytics computes the full per-project payload: breakdowns,
// rollups, team performance, forecast, risk and recommendations.
func (s Service) ProjectAnalytics(ctx context.Context, projectID string) (ProjectReport, error) {
	p, err := s.Repo.GetProject(ctx, projectID)
	if err != nil {
		return ProjectReport{}, err
	}
	tasks, err := s.Repo.ListTasks(ctx, repo.TaskFilters{ProjectID: projectID})
	if err != nil {
		return ProjectReport{}, err
	}
	users, err := s.userIndex(ctx)
	if err != nil {
		return ProjectReport{}, err
	}

	now := s.now()
	pred := PredictCompletion(p, tasks, s.Config.Analytics, now)
	recs := Recommend(p, tasks, users, s.Config.Analytics)
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	return ProjectReport{
		Project: ProjectSummary{
			ID: p.ID, Name: p.Name, Status: p.Status, Progress: p.Progress,
			StartDate: p.StartDate, EndDate: p.EndDate,
			Budget: p.Budget, ActualCost: p.ActualCost,
		},
		Metrics: ProjectMetrics{
			Tasks: TaskBreakdowns{
				ByStatus:   StatusBreakdown(tasks),
				ByPriority: PriorityBreakdown(tasks),
				ByType:     TypeBreakdown(tasks),
			},
			TimeTracking: TimeRollupOf(tasks),
			Quality:      QualityRollupOf(tasks),
			Velocity:     pred.Velocity,
		},
		Team: TeamPerformanceOf(p.Team, tasks, users),
		Insights: ProjectInsights{
			CompletionPrediction:    pred,
			RiskAssessment:          AssessRisk(p, tasks, s.Config.Analytics, now),
			ResourceRecommendations: recs,
		},
	}, nil
}

type Overview struct {
	TotalProjects     int     `json:"total_projects"`
	ActiveProjects    int     `json:"active_projects"`
	CompletedProjects int     `json:"completed_projects"`
	TotalTasks        int     `json:"total_tasks"`
	CompletedTasks    int     `json:"completed_tasks"`
	OverdueTasks      int     `json:"overdue_tasks"`
	CompletionRate    float64 `json:"completion_rate"`
}

type TrendPoint struct {
	Date      string `json:"date"`
	Completed int    `json:"completed"`
}

type Productivity struct {
	CompletionTrend     []TrendPoint `json:"completion_trend"`
	AverageTaskDuration float64      `json:"average_task_duration_days"`
	AverageTasksPerDay  float64      `json:"average_tasks_per_day"`
}

type Financial struct {
	TotalBudget       float64 `json:"total_budget"`
	TotalActualCost   float64 `json:"total_actual_cost"`
	BudgetUtilization float64 `json:"budget_utilization"`
	TotalVariance     float64 `json:"total_variance"`
}

type RiskSummary struct {
	ProjectID string  `json:"project_id"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Level     string  `json:"level"`
}

type Deadline struct {
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	EndDate   time.Time `json:"end_date"`
	DaysLeft  float64   `json:"days_left"`
}

type ProjectRecommendations struct {
	ProjectID       string                  `json:"project_id"`
	Name            string                  `json:"name"`
	Recommendations []domain.Recommendation `json:"recommendations"`
}

type DashboardInsights struct {
	HighRiskProjects  []RiskSummary            `json:"high_risk_projects"`
	UpcomingDeadlines []Deadline               `json:"upcoming_deadlines"`
	Recommendations   []ProjectRecommendations `json:"recommendations"`
}

type Dashboard struct {
	Overview     Overview          `json:"overview"`
	Productivity Productivity      `json:"productivity"`
	Financial    Financial         `json:"financial"`
	Insights     DashboardInsights `json:"insights"`
}

const (
	trendDays           = 30
	deadlineLimit       = 5
	recommendationLimit = 3
	highRiskScoreCutoff = 50
)

// DashboardAnalytics computes the workspace-wide dashboard. A non-empty
// userID narrows projects and tasks to that user's.
func (s Service) DashboardAnalytics(ctx context.Context, userID string) (Dashboard, error) {
	projects, err := s.Repo.ListProjects(ctx, repo.ProjectFilters{MemberID: userID})
	if err != nil {
		return Dashboard{}, err
	}
	tasks, err := s.Repo.ListTasks(ctx, repo.TaskFilters{AssigneeID: userID})
	if err != nil {
		return Dashboard{}, err
	}
	users, err := s.userIndex(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	now := s.now()

	var d Dashboard
	d.Overview = overviewOf(projects, tasks, now)
	d.Productivity = productivityOf(tasks, now)
	d.Financial = financialOf(projects)
	d.Insights = s.insightsOf(ctx, projects, users, now)
	return d, nil
}

func overviewOf(projects []domain.Project, tasks []domain.Task, now time.Time) Overview {
	var o Overview
	o.TotalProjects = len(projects)
	for _, p := range projects {
		switch p.Status {
		case "In Progress":
			o.ActiveProjects++
		case "Completed":
			o.CompletedProjects++
		}
	}
	o.TotalTasks = len(tasks)
	for _, t := range tasks {
		if t.Status == "Completed" {
			o.CompletedTasks++
		}
		if t.Open() && t.DueDate.Before(now) {
			o.OverdueTasks++
		}
	}
	if o.TotalTasks > 0 {
		o.CompletionRate = float64(o.CompletedTasks) / float64(o.TotalTasks) * 100
	}
	return o
}

func productivityOf(tasks []domain.Task, now time.Time) Productivity {
	var p Productivity
	start := now.AddDate(0, 0, -(trendDays - 1))
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	byDay := map[string]int{}
	recent := 0
	var durationSum float64
	var durationCount int
	for _, t := range tasks {
		if t.Status != "Completed" || t.CompletedDate == nil {
			continue
		}
		if t.StartDate != nil {
			if d := t.CompletedDate.Sub(*t.StartDate).Hours() / 24; d > 0 {
				durationSum += d
				durationCount++
			}
		}
		if !t.CompletedDate.Before(startDay) {
			byDay[t.CompletedDate.UTC().Format("2006-01-02")]++
			recent++
		}
	}
	p.CompletionTrend = make([]TrendPoint, 0, trendDays)
	for i := 0; i < trendDays; i++ {
		day := startDay.AddDate(0, 0, i).Format("2006-01-02")
		p.CompletionTrend = append(p.CompletionTrend, TrendPoint{Date: day, Completed: byDay[day]})
	}
	if durationCount > 0 {
		p.AverageTaskDuration = durationSum / float64(durationCount)
	}
	p.AverageTasksPerDay = float64(recent) / trendDays
	return p
}

func financialOf(projects []domain.Project) Financial {
	var f Financial
	for _, p := range projects {
		f.TotalBudget += p.Budget
		f.TotalActualCost += p.ActualCost
	}
	if f.TotalBudget > 0 {
		f.BudgetUtilization = f.TotalActualCost / f.TotalBudget * 100
		f.TotalVariance = (f.TotalActualCost - f.TotalBudget) / f.TotalBudget * 100
	}
	return f
}

func (s Service) insightsOf(ctx context.Context, projects []domain.Project, users map[string]domain.User, now time.Time) DashboardInsights {
	in := DashboardInsights{
		HighRiskProjects:  []RiskSummary{},
		UpcomingDeadlines: []Deadline{},
		Recommendations:   []ProjectRecommendations{},
	}

	type assessed struct {
		project domain.Project
		tasks   []domain.Task
		risk    domain.RiskAssessment
	}
	var all []assessed
	for _, p := range projects {
		tasks, err := s.Repo.ListTasks(ctx, repo.TaskFilters{ProjectID: p.ID})
		if err != nil {
			continue
		}
		all = append(all, assessed{p, tasks, AssessRisk(p, tasks, s.Config.Analytics, now)})
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].risk.Score > all[j].risk.Score })
	for _, a := range all {
		if a.risk.Score >= highRiskScoreCutoff {
			in.HighRiskProjects = append(in.HighRiskProjects, RiskSummary{
				ProjectID: a.project.ID, Name: a.project.Name,
				Score: a.risk.Score, Level: a.risk.Level,
			})
		}
	}

	for _, a := range all {
		if len(in.Recommendations) == recommendationLimit {
			break
		}
		recs := Recommend(a.project, a.tasks, users, s.Config.Analytics)
		if len(recs) == 0 {
			continue
		}
		in.Recommendations = append(in.Recommendations, ProjectRecommendations{
			ProjectID: a.project.ID, Name: a.project.Name, Recommendations: recs,
		})
	}

	var open []domain.Project
	for _, p := range projects {
		if p.Status != "Completed" && p.Status != "Cancelled" && !p.EndDate.Before(now) {
			open = append(open, p)
		}
	}
	sort.SliceStable(open, func(i, j int) bool { return open[i].EndDate.Before(open[j].EndDate) })
	for i, p := range open {
		if i == deadlineLimit {
			break
		}
		in.UpcomingDeadlines = append(in.UpcomingDeadlines, Deadline{
			ProjectID: p.ID, Name: p.Name, EndDate: p.EndDate,
			DaysLeft: p.EndDate.Sub(now).Hours() / 24,
		})
	}
	return in
}

type TeamMemberStats struct {
	UserID            string  `json:"user_id"`
	Name              string  `json:"name"`
	Role              string  `json:"role"`
	Department        string  `json:"department,omitempty"`
	TasksAssigned     int     `json:"tasks_assigned"`
	TasksCompleted    int     `json:"tasks_completed"`
	CompletionRate    float64 `json:"completion_rate"`
	OnTimeRate        float64 `json:"on_time_rate"`
	TotalHours        float64 `json:"total_hours"`
	Efficiency        float64 `json:"efficiency"`
	ProductivityScore float64 `json:"productivity_score"`
}

type DepartmentStats struct {
	Department            string  `json:"department"`
	Members               int     `json:"members"`
	TasksCompleted        int     `json:"tasks_completed"`
	AverageCompletionRate float64 `json:"average_completion_rate"`
}

type TeamReport struct {
	Members     []TeamMemberStats `json:"members"`
	Departments []DepartmentStats `json:"departments"`
}

// TeamAnalytics rolls up performance for every active employee and
// manager, plus per-department aggregates. Efficiency is estimated over
// actual hours across a member's completed tasks.
func (s Service) TeamAnalytics(ctx context.Context) (TeamReport, error) {
	users, err := s.Repo.ListUsers(ctx, repo.UserFilters{Roles: []string{"employee", "manager"}, ActiveOnly: true})
	if err != nil {
		return TeamReport{}, err
	}
	tasks, err := s.Repo.ListTasks(ctx, repo.TaskFilters{})
	if err != nil {
		return TeamReport{}, err
	}

	report := TeamReport{Members: []TeamMemberStats{}, Departments: []DepartmentStats{}}
	deptMembers := map[string]int{}
	deptCompleted := map[string]int{}
	deptRateSum := map[string]float64{}
	for _, u := range users {
		st := TeamMemberStats{
			UserID: u.ID, Name: u.FullName(), Role: u.Role,
			Department: u.Department, ProductivityScore: u.ProductivityScore,
		}
		var onTime, estimated, actual float64
		for _, t := range tasks {
			if !t.AssignedTo(u.ID) {
				continue
			}
			st.TasksAssigned++
			st.TotalHours += t.ActualHours
			if t.Status != "Completed" {
				continue
			}
			st.TasksCompleted++
			estimated += t.EstimatedHours
			actual += t.ActualHours
			if t.CompletedDate != nil && !t.CompletedDate.After(t.DueDate) {
				onTime++
			}
		}
		if st.TasksAssigned > 0 {
			st.CompletionRate = float64(st.TasksCompleted) / float64(st.TasksAssigned) * 100
		}
		if st.TasksCompleted > 0 {
			st.OnTimeRate = onTime / float64(st.TasksCompleted) * 100
		}
		if actual > 0 {
			st.Efficiency = estimated / actual * 100
		}
		report.Members = append(report.Members, st)

		dept := u.Department
		if dept == "" {
			dept = "unassigned"
		}
		deptMembers[dept]++
		deptCompleted[dept] += st.TasksCompleted
		deptRateSum[dept] += st.CompletionRate
	}

	depts := make([]string, 0, len(deptMembers))
	for d := range deptMembers {
		depts = append(depts, d)
	}
	sort.Strings(depts)
	for _, d := range depts {
		report.Departments = append(report.Departments, DepartmentStats{
			Department:            d,
			Members:               deptMembers[d],
			TasksCompleted:        deptCompleted[d],
			AverageCompletionRate: deptRateSum[d] / float64(deptMembers[d]),
		})
	}
	return report, nil
}

func (s Service) userIndex(ctx context.Context) (map[string]domain.User, error) {
	users, err := s.Repo.ListUsers(ctx, repo.UserFilters{})
	if err != nil {
		return nil, err
	}
	idx := make(map[string]domain.User, len(users))
	for _, u := range users {
		idx[u.ID] = u
	}
	return idx, nil
}
