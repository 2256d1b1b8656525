package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pulseboard/internal/domain"
	"pulseboard/internal/repo"
)

var (
	ErrInvalidReportType = errors.New("invalid report type")
	ErrInvalidRange      = errors.New("invalid date range")
)

// ReportTypes is the closed set of supported report kinds.
var ReportTypes = []string{"project_summary", "team_performance", "financial_summary"}

// Request describes a report query. Start and End are inclusive.
type Request struct {
	Type  string
	Start time.Time
	End   time.Time
}

// Report is a tagged payload: exactly one of the three sections is set,
// matching Type.
type Report struct {
	Type        string    `json:"type"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	GeneratedAt time.Time `json:"generated_at"`

	ProjectSummary   *ProjectSummaryReport   `json:"project_summary,omitempty"`
	TeamPerformance  *TeamPerformanceReport  `json:"team_performance,omitempty"`
	FinancialSummary *FinancialSummaryReport `json:"financial_summary,omitempty"`
}

// Filename is the export name convention for CSV downloads.
func (r Report) Filename() string {
	return fmt.Sprintf("%s_%s_%s.csv", r.Type, r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
}

type ProjectSummaryReport struct {
	TotalProjects   int            `json:"total_projects"`
	ByStatus        map[string]int `json:"by_status"`
	TotalBudget     float64        `json:"total_budget"`
	TotalActualCost float64        `json:"total_actual_cost"`
	Projects        []ProjectRow   `json:"projects"`
}

type ProjectRow struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Progress   float64   `json:"progress"`
	Budget     float64   `json:"budget"`
	ActualCost float64   `json:"actual_cost"`
	Manager    string    `json:"manager"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}

type TeamPerformanceReport struct {
	TotalMembers        int         `json:"total_members"`
	CompletedTasks      int         `json:"completed_tasks"`
	AverageProductivity float64     `json:"average_productivity"`
	Members             []MemberRow `json:"members"`
}

type MemberRow struct {
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	Department     string  `json:"department,omitempty"`
	TasksAssigned  int     `json:"tasks_assigned"`
	TasksCompleted int     `json:"tasks_completed"`
	CompletionRate float64 `json:"completion_rate"`
	AverageDays    float64 `json:"average_days"`
}

type FinancialSummaryReport struct {
	TotalBudget     float64      `json:"total_budget"`
	TotalActualCost float64      `json:"total_actual_cost"`
	TotalVariance   float64      `json:"total_variance"`
	Projects        []FinanceRow `json:"projects"`
}

type FinanceRow struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Budget     float64 `json:"budget"`
	ActualCost float64 `json:"actual_cost"`
	Variance   float64 `json:"variance"`
}

// Generator builds reports from stored records.
type Generator struct {
	Repo repo.Repo
	Now  func() time.Time
}

func NewGenerator(r repo.Repo) Generator {
	return Generator{Repo: r, Now: time.Now}
}

// Generate validates the request, then assembles the matching payload.
// Both validation failures fire before any data access.
func (g Generator) Generate(ctx context.Context, req Request) (Report, error) {
	valid := false
	for _, t := range ReportTypes {
		if t == req.Type {
			valid = true
			break
		}
	}
	if !valid {
		return Report{}, fmt.Errorf("%w: %s", ErrInvalidReportType, req.Type)
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return Report{}, fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	if req.End.Before(req.Start) {
		return Report{}, fmt.Errorf("%w: end before start", ErrInvalidRange)
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	out := Report{Type: req.Type, Start: req.Start, End: req.End, GeneratedAt: now().UTC()}

	var err error
	switch req.Type {
	case "project_summary":
		out.ProjectSummary, err = g.projectSummary(ctx, req)
	case "team_performance":
		out.TeamPerformance, err = g.teamPerformance(ctx, req)
	case "financial_summary":
		out.FinancialSummary, err = g.financialSummary(ctx, req)
	}
	if err != nil {
		return Report{}, err
	}
	return out, nil
}

func (g Generator) projectsInRange(ctx context.Context, req Request) ([]domain.Project, error) {
	return g.Repo.ListProjects(ctx, repo.ProjectFilters{
		CreatedFrom:  req.Start,
		CreatedUntil: endOfDay(req.End),
	})
}

func (g Generator) projectSummary(ctx context.Context, req Request) (*ProjectSummaryReport, error) {
	projects, err := g.projectsInRange(ctx, req)
	if err != nil {
		return nil, err
	}
	users, err := g.userIndex(ctx)
	if err != nil {
		return nil, err
	}
	rep := &ProjectSummaryReport{
		TotalProjects: len(projects),
		ByStatus:      map[string]int{},
		Projects:      []ProjectRow{},
	}
	for _, s := range domain.ProjectStatuses {
		rep.ByStatus[s] = 0
	}
	for _, p := range projects {
		if _, ok := rep.ByStatus[p.Status]; ok {
			rep.ByStatus[p.Status]++
		}
		rep.TotalBudget += p.Budget
		rep.TotalActualCost += p.ActualCost
		manager := ""
		if u, ok := users[p.ManagerID]; ok {
			manager = u.FullName()
		}
		rep.Projects = append(rep.Projects, ProjectRow{
			ID: p.ID, Name: p.Name, Status: p.Status, Progress: p.Progress,
			Budget: p.Budget, ActualCost: p.ActualCost, Manager: manager,
			StartDate: p.StartDate, EndDate: p.EndDate,
		})
	}
	return rep, nil
}

func (g Generator) teamPerformance(ctx context.Context, req Request) (*TeamPerformanceReport, error) {
	tasks, err := g.Repo.ListTasks(ctx, repo.TaskFilters{
		CreatedFrom:  req.Start,
		CreatedUntil: endOfDay(req.End),
	})
	if err != nil {
		return nil, err
	}
	users, err := g.Repo.ListUsers(ctx, repo.UserFilters{Roles: []string{"employee", "manager"}})
	if err != nil {
		return nil, err
	}
	rep := &TeamPerformanceReport{TotalMembers: len(users), Members: []MemberRow{}}
	var rateSum float64
	for _, u := range users {
		row := MemberRow{UserID: u.ID, Name: u.FullName(), Role: u.Role, Department: u.Department}
		var daysSum float64
		var daysCount int
		for _, t := range tasks {
			if !t.AssignedTo(u.ID) {
				continue
			}
			row.TasksAssigned++
			if t.Status != "Completed" {
				continue
			}
			row.TasksCompleted++
			if t.StartDate != nil && t.CompletedDate != nil {
				daysSum += t.CompletedDate.Sub(*t.StartDate).Hours() / 24
				daysCount++
			}
		}
		if row.TasksAssigned > 0 {
			row.CompletionRate = float64(row.TasksCompleted) / float64(row.TasksAssigned) * 100
		}
		if daysCount > 0 {
			row.AverageDays = daysSum / float64(daysCount)
		}
		rep.CompletedTasks += row.TasksCompleted
		rateSum += row.CompletionRate
		rep.Members = append(rep.Members, row)
	}
	if len(users) > 0 {
		rep.AverageProductivity = rateSum / float64(len(users))
	}
	return rep, nil
}

func (g Generator) financialSummary(ctx context.Context, req Request) (*FinancialSummaryReport, error) {
	projects, err := g.projectsInRange(ctx, req)
	if err != nil {
		return nil, err
	}
	rep := &FinancialSummaryReport{Projects: []FinanceRow{}}
	for _, p := range projects {
		rep.TotalBudget += p.Budget
		rep.TotalActualCost += p.ActualCost
		rep.Projects = append(rep.Projects, FinanceRow{
			ID: p.ID, Name: p.Name, Budget: p.Budget, ActualCost: p.ActualCost,
			Variance: variance(p.Budget, p.ActualCost),
		})
	}
	rep.TotalVariance = variance(rep.TotalBudget, rep.TotalActualCost)
	return rep, nil
}

// variance is the signed percentage deviation of cost from budget,
// 0 when there is no budget.
func variance(budget, cost float64) float64 {
	if budget == 0 {
		return 0
	}
	return (cost - budget) / budget * 100
}

func (g Generator) userIndex(ctx context.Context) (map[string]domain.User, error) {
	users, err := g.Repo.ListUsers(ctx, repo.UserFilters{})
	if err != nil {
		return nil, err
	}
	idx := make(map[string]domain.User, len(users))
	for _, u := range users {
		idx[u.ID] = u
	}
	return idx, nil
}

// endOfDay widens the inclusive range bound to the last instant of the
// end date, so a date-only bound covers that whole day.
func endOfDay(t time.Time) time.Time {
	if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 {
		return t
	}
	return t.Add(24*time.Hour - time.Second)
}
