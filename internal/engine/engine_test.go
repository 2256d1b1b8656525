package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"pulseboard/internal/config"
	"pulseboard/internal/db"
	"pulseboard/internal/domain"
	"pulseboard/internal/migrate"
	"pulseboard/internal/repo"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := New(conn, config.Default())
	e.Now = func() time.Time { return testNow }
	e.Events.Now = e.Now
	return e
}

func mustUser(t *testing.T, e Engine, username string) domain.User {
	t.Helper()
	u, err := e.CreateUser(context.Background(), UserCreateOptions{Username: username})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func mustProject(t *testing.T, e Engine, name string) domain.Project {
	t.Helper()
	p, err := e.CreateProject(context.Background(), ProjectCreateOptions{
		Name:      name,
		StartDate: testNow.AddDate(0, 0, -30),
		EndDate:   testNow.AddDate(0, 0, 60),
		Budget:    10000,
	})
	if err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return p
}

func TestCreateProjectValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CreateProject(ctx, ProjectCreateOptions{
		StartDate: testNow,
		EndDate:   testNow.AddDate(0, 0, 10),
	})
	if err == nil {
		t.Fatal("expected error for missing name")
	}

	_, err = e.CreateProject(ctx, ProjectCreateOptions{
		Name:      "backwards",
		StartDate: testNow.AddDate(0, 0, 10),
		EndDate:   testNow,
	})
	if err == nil {
		t.Fatal("expected error for start after end")
	}

	_, err = e.CreateProject(ctx, ProjectCreateOptions{
		Name:      "broke",
		StartDate: testNow,
		EndDate:   testNow.AddDate(0, 0, 10),
		Budget:    -1,
	})
	if err == nil {
		t.Fatal("expected error for negative budget")
	}
}

func TestCreateProjectDefaultsAndTeam(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	alice := mustUser(t, e, "alice")
	bob := mustUser(t, e, "bob")

	p, err := e.CreateProject(ctx, ProjectCreateOptions{
		Name:      "launch",
		StartDate: testNow,
		EndDate:   testNow.AddDate(0, 0, 90),
		Team: []domain.TeamMember{
			{UserID: bob.ID, Role: "developer", Allocation: 1},
			{UserID: alice.ID, Role: "designer", Allocation: 0.5},
		},
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if p.Status != "Planning" {
		t.Fatalf("default status = %q, want Planning", p.Status)
	}
	if p.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := e.Repo.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if len(got.Team) != 2 || got.Team[0].UserID != bob.ID || got.Team[1].UserID != alice.ID {
		t.Fatalf("team order not preserved: %+v", got.Team)
	}
}

func TestCreateProjectUnknownTeamMember(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateProject(context.Background(), ProjectCreateOptions{
		Name:      "ghosts",
		StartDate: testNow,
		EndDate:   testNow.AddDate(0, 0, 10),
		Team:      []domain.TeamMember{{UserID: "nobody", Allocation: 1}},
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateProjectProgressBounds(t *testing.T) {
	e := newTestEngine(t)
	p := mustProject(t, e, "bounds")

	bad := 101.0
	_, err := e.UpdateProject(context.Background(), ProjectUpdateOptions{ID: p.ID, Progress: &bad})
	if err == nil {
		t.Fatal("expected error for progress > 100")
	}

	ok := 42.5
	updated, err := e.UpdateProject(context.Background(), ProjectUpdateOptions{ID: p.ID, Progress: &ok})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Progress != 42.5 {
		t.Fatalf("progress = %v, want 42.5", updated.Progress)
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	e := newTestEngine(t)
	p := mustProject(t, e, "defaults")

	task, err := e.CreateTask(context.Background(), TaskCreateOptions{
		ProjectID: p.ID,
		Title:     "write docs",
		DueDate:   testNow.AddDate(0, 0, 7),
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != "To Do" || task.Priority != "Medium" || task.Type != "Feature" {
		t.Fatalf("defaults = %s/%s/%s", task.Status, task.Priority, task.Type)
	}
}

func TestCreateTaskRejectsBadEnums(t *testing.T) {
	e := newTestEngine(t)
	p := mustProject(t, e, "enums")
	ctx := context.Background()

	cases := []TaskCreateOptions{
		{ProjectID: p.ID, Title: "t", DueDate: testNow, Status: "Doing"},
		{ProjectID: p.ID, Title: "t", DueDate: testNow, Priority: "Mega"},
		{ProjectID: p.ID, Title: "t", DueDate: testNow, Type: "Chore"},
	}
	for _, opts := range cases {
		if _, err := e.CreateTask(ctx, opts); err == nil {
			t.Fatalf("expected enum error for %+v", opts)
		}
	}
}

func TestCreateTaskDependencyMustShareProject(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p1 := mustProject(t, e, "one")
	p2 := mustProject(t, e, "two")

	dep, err := e.CreateTask(ctx, TaskCreateOptions{ProjectID: p1.ID, Title: "dep", DueDate: testNow})
	if err != nil {
		t.Fatalf("create dep: %v", err)
	}
	_, err = e.CreateTask(ctx, TaskCreateOptions{
		ProjectID:    p2.ID,
		Title:        "cross",
		DueDate:      testNow,
		Dependencies: []string{dep.ID},
	})
	if err == nil {
		t.Fatal("expected cross-project dependency to fail")
	}
}

func TestTaskStatusTransitions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e, "flow")

	task, err := e.CreateTask(ctx, TaskCreateOptions{ProjectID: p.ID, Title: "flow", DueDate: testNow.AddDate(0, 0, 5)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// To Do -> Completed is not allowed without force.
	completed := "Completed"
	if _, err := e.UpdateTask(ctx, TaskUpdateOptions{ID: task.ID, Status: &completed}); err == nil {
		t.Fatal("expected transition error To Do -> Completed")
	}

	inProgress := "In Progress"
	task, err = e.UpdateTask(ctx, TaskUpdateOptions{ID: task.ID, Status: &inProgress})
	if err != nil {
		t.Fatalf("to in progress: %v", err)
	}
	if task.StartDate == nil || !task.StartDate.Equal(testNow) {
		t.Fatalf("start date = %v, want %v", task.StartDate, testNow)
	}

	review := "Review"
	if task, err = e.UpdateTask(ctx, TaskUpdateOptions{ID: task.ID, Status: &review}); err != nil {
		t.Fatalf("to review: %v", err)
	}
	if task, err = e.UpdateTask(ctx, TaskUpdateOptions{ID: task.ID, Status: &completed}); err != nil {
		t.Fatalf("to completed: %v", err)
	}
	if task.CompletedDate == nil || !task.CompletedDate.Equal(testNow) {
		t.Fatalf("completed date = %v, want %v", task.CompletedDate, testNow)
	}
	if task.Progress != 100 {
		t.Fatalf("progress = %v, want 100", task.Progress)
	}
}

func TestTaskForceTransition(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e, "force")

	task, err := e.CreateTask(ctx, TaskCreateOptions{ProjectID: p.ID, Title: "skip", DueDate: testNow})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	task, err = e.CompleteTask(ctx, task.ID, "", true)
	if err != nil {
		t.Fatalf("forced complete: %v", err)
	}
	if task.Status != "Completed" {
		t.Fatalf("status = %q", task.Status)
	}
}

func TestEventsRecorded(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := mustProject(t, e, "audited")

	task, err := e.CreateTask(ctx, TaskCreateOptions{ProjectID: p.ID, Title: "t", DueDate: testNow, ActorID: "cli"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	inProgress := "In Progress"
	if _, err := e.UpdateTask(ctx, TaskUpdateOptions{ID: task.ID, Status: &inProgress, ActorID: "cli"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	events, err := e.Repo.ListEvents(ctx, p.ID, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 { // project.created, task.created, task.updated
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Type != "task.updated" {
		t.Fatalf("newest event = %s, want task.updated", events[0].Type)
	}
}

func TestCreateUserRole(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	u, err := e.CreateUser(ctx, UserCreateOptions{Username: "carol"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Role != "employee" || !u.Active {
		t.Fatalf("defaults = %s active=%v", u.Role, u.Active)
	}

	if _, err := e.CreateUser(ctx, UserCreateOptions{Username: "dave", Role: "overlord"}); err == nil {
		t.Fatal("expected role validation error")
	}
}
