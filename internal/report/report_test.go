package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pulseboard/internal/db"
	"pulseboard/internal/domain"
	"pulseboard/internal/migrate"
	"pulseboard/internal/repo"
)

var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestGenerator(t *testing.T) Generator {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	g := NewGenerator(repo.Repo{DB: conn})
	g.Now = func() time.Time { return now }
	return g
}

func seedProject(t *testing.T, g Generator, id, name string, budget, cost float64, created time.Time) {
	t.Helper()
	err := g.Repo.InsertProject(context.Background(), nil, domain.Project{
		ID: id, Name: name, Status: "In Progress",
		StartDate: created, EndDate: created.AddDate(0, 2, 0),
		Budget: budget, ActualCost: cost,
		CreatedAt: created, UpdatedAt: created,
	})
	if err != nil {
		t.Fatalf("insert project %s: %v", id, err)
	}
}

func rangeReq(reportType string) Request {
	return Request{
		Type:  reportType,
		Start: now.AddDate(0, -1, 0),
		End:   now,
	}
}

// An unknown report type must fail before any data access; the nil DB
// would blow up otherwise.
func TestGenerateInvalidTypeBeforeDataAccess(t *testing.T) {
	g := Generator{}
	_, err := g.Generate(context.Background(), rangeReq("invalid_type"))
	if !errors.Is(err, ErrInvalidReportType) {
		t.Fatalf("err = %v, want ErrInvalidReportType", err)
	}
}

func TestGenerateInvalidRange(t *testing.T) {
	g := Generator{}
	_, err := g.Generate(context.Background(), Request{
		Type:  "project_summary",
		Start: now,
		End:   now.AddDate(0, 0, -1),
	})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
	_, err = g.Generate(context.Background(), Request{Type: "project_summary"})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("missing dates: err = %v, want ErrInvalidRange", err)
	}
}

func TestProjectSummaryReport(t *testing.T) {
	g := newTestGenerator(t)
	seedProject(t, g, "p1", "in range", 1000, 500, now.AddDate(0, 0, -5))
	seedProject(t, g, "p2", "too old", 9999, 9999, now.AddDate(0, -3, 0))

	rep, err := g.Generate(context.Background(), rangeReq("project_summary"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	ps := rep.ProjectSummary
	if ps == nil {
		t.Fatal("missing project summary payload")
	}
	if ps.TotalProjects != 1 || ps.TotalBudget != 1000 {
		t.Fatalf("summary = %+v", ps)
	}
	if ps.ByStatus["In Progress"] != 1 || ps.ByStatus["Planning"] != 0 {
		t.Fatalf("status counts = %v (zero buckets must be present)", ps.ByStatus)
	}
	if len(ps.Projects) != 1 || ps.Projects[0].ID != "p1" {
		t.Fatalf("rows = %+v", ps.Projects)
	}
}

// Budgets 1000+2000 against costs 1200+1800 net out to zero variance.
func TestFinancialSummaryVariance(t *testing.T) {
	g := newTestGenerator(t)
	seedProject(t, g, "p1", "over", 1000, 1200, now.AddDate(0, 0, -10))
	seedProject(t, g, "p2", "under", 2000, 1800, now.AddDate(0, 0, -10))

	rep, err := g.Generate(context.Background(), rangeReq("financial_summary"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	fs := rep.FinancialSummary
	if fs.TotalBudget != 3000 || fs.TotalActualCost != 3000 {
		t.Fatalf("totals = %+v", fs)
	}
	if fs.TotalVariance != 0 {
		t.Fatalf("total variance = %v, want 0", fs.TotalVariance)
	}
	if len(fs.Projects) != 2 {
		t.Fatalf("rows = %+v", fs.Projects)
	}
	for _, row := range fs.Projects {
		switch row.ID {
		case "p1":
			if row.Variance != 20 {
				t.Fatalf("p1 variance = %v, want 20", row.Variance)
			}
		case "p2":
			if row.Variance != -10 {
				t.Fatalf("p2 variance = %v, want -10", row.Variance)
			}
		}
	}
}

func TestFinancialVarianceZeroBudget(t *testing.T) {
	if v := variance(0, 500); v != 0 {
		t.Fatalf("variance(0, 500) = %v, want 0", v)
	}
}

func TestTeamPerformanceReport(t *testing.T) {
	g := newTestGenerator(t)
	ctx := context.Background()
	for _, u := range []domain.User{
		{ID: "u1", Username: "alice", Role: "employee", Active: true, CreatedAt: now},
		{ID: "u2", Username: "bob", Role: "manager", Active: true, CreatedAt: now},
		{ID: "u3", Username: "root", Role: "admin", Active: true, CreatedAt: now},
	} {
		if err := g.Repo.InsertUser(ctx, nil, u); err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}
	seedProject(t, g, "p1", "work", 0, 0, now.AddDate(0, 0, -20))
	started := now.AddDate(0, 0, -6)
	done := now.AddDate(0, 0, -2)
	err := g.Repo.InsertTask(ctx, nil, domain.Task{
		ID: "t1", ProjectID: "p1", Title: "a", Status: "Completed",
		Priority: "Medium", Type: "Feature",
		Assignees: []string{"u1"}, DueDate: now,
		StartDate: &started, CompletedDate: &done,
		CreatedAt: now.AddDate(0, 0, -6), UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}

	rep, err := g.Generate(ctx, rangeReq("team_performance"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	tp := rep.TeamPerformance
	if tp.TotalMembers != 2 {
		t.Fatalf("members = %d, want 2 (admin excluded)", tp.TotalMembers)
	}
	if tp.CompletedTasks != 1 {
		t.Fatalf("completed = %d", tp.CompletedTasks)
	}
	// alice at 100%, bob at 0% -> mean 50.
	if tp.AverageProductivity != 50 {
		t.Fatalf("average productivity = %v, want 50", tp.AverageProductivity)
	}
	var alice MemberRow
	for _, m := range tp.Members {
		if m.UserID == "u1" {
			alice = m
		}
	}
	if alice.CompletionRate != 100 || alice.AverageDays != 4 {
		t.Fatalf("alice = %+v", alice)
	}
}

func TestFilename(t *testing.T) {
	r := Report{Type: "financial_summary", Start: now.AddDate(0, -1, 0), End: now}
	want := "financial_summary_2024-02-15_2024-03-15.csv"
	if got := r.Filename(); got != want {
		t.Fatalf("filename = %q, want %q", got, want)
	}
}

func TestCSVFlattening(t *testing.T) {
	g := newTestGenerator(t)
	seedProject(t, g, "p1", "alpha", 1000, 1200, now.AddDate(0, 0, -10))

	rep, err := g.Generate(context.Background(), rangeReq("financial_summary"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	out, err := rep.CSV()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	text := string(out)
	for _, want := range []string{
		"metric,value",
		"total_budget,1000",
		"total_variance,20",
		"id,name,budget,actual_cost,variance",
		"p1,alpha,1000,1200,20",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("csv missing %q:\n%s", want, text)
		}
	}
}
