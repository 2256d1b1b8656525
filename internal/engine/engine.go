package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pulseboard/internal/config"
	"pulseboard/internal/domain"
	"pulseboard/internal/events"
	"pulseboard/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	ID             string
	Name           string
	Description    string
	Status         string
	Priority       string
	StartDate      time.Time
	EndDate        time.Time
	Budget         float64
	ActualCost     float64
	ManagerID      string
	Team           []domain.TeamMember
	RequiredSkills []string
	ActorID        string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.Name == "" {
		return domain.Project{}, errors.New("name is required")
	}
	if opts.StartDate.IsZero() || opts.EndDate.IsZero() {
		return domain.Project{}, errors.New("start_date and end_date are required")
	}
	if !opts.StartDate.Before(opts.EndDate) {
		return domain.Project{}, errors.New("start_date must be before end_date")
	}
	if opts.Budget < 0 || opts.ActualCost < 0 {
		return domain.Project{}, errors.New("budget and actual_cost must be non-negative")
	}
	if opts.Status == "" {
		opts.Status = "Planning"
	}
	if !contains(domain.ProjectStatuses, opts.Status) {
		return domain.Project{}, fmt.Errorf("invalid project status %s", opts.Status)
	}
	for _, m := range opts.Team {
		if _, err := e.Repo.GetUser(ctx, m.UserID); err != nil {
			return domain.Project{}, fmt.Errorf("team member %s: %w", m.UserID, err)
		}
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.now().UTC()
	p := domain.Project{
		ID:             id,
		Name:           opts.Name,
		Description:    opts.Description,
		Status:         opts.Status,
		Priority:       opts.Priority,
		StartDate:      opts.StartDate,
		EndDate:        opts.EndDate,
		Budget:         opts.Budget,
		ActualCost:     opts.ActualCost,
		ManagerID:      opts.ManagerID,
		Team:           opts.Team,
		RequiredSkills: opts.RequiredSkills,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "project.created", p.ID, "project", p.ID, opts.ActorID, events.EventPayload{"name": p.Name, "status": p.Status}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// ProjectUpdateOptions encapsulates allowed project updates. Nil fields
// are left untouched.
type ProjectUpdateOptions struct {
	ID             string
	Name           *string
	Description    *string
	Status         *string
	Priority       *string
	EndDate        *time.Time
	Budget         *float64
	ActualCost     *float64
	Progress       *float64
	ManagerID      *string
	Team           []domain.TeamMember
	TeamProvided   bool
	RequiredSkills []string
	SkillsProvided bool
	ActorID        string
}

func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, opts.ID)
	if err != nil {
		return p, err
	}
	original := p
	if opts.Name != nil {
		p.Name = *opts.Name
	}
	if opts.Description != nil {
		p.Description = *opts.Description
	}
	if opts.Status != nil {
		if !contains(domain.ProjectStatuses, *opts.Status) {
			return p, fmt.Errorf("invalid project status %s", *opts.Status)
		}
		p.Status = *opts.Status
	}
	if opts.Priority != nil {
		p.Priority = *opts.Priority
	}
	if opts.EndDate != nil {
		if !p.StartDate.Before(*opts.EndDate) {
			return p, errors.New("end_date must be after start_date")
		}
		p.EndDate = *opts.EndDate
	}
	if opts.Budget != nil {
		if *opts.Budget < 0 {
			return p, errors.New("budget must be non-negative")
		}
		p.Budget = *opts.Budget
	}
	if opts.ActualCost != nil {
		if *opts.ActualCost < 0 {
			return p, errors.New("actual_cost must be non-negative")
		}
		p.ActualCost = *opts.ActualCost
	}
	if opts.Progress != nil {
		if *opts.Progress < 0 || *opts.Progress > 100 {
			return p, errors.New("progress must be within 0..100")
		}
		p.Progress = *opts.Progress
	}
	if opts.ManagerID != nil {
		p.ManagerID = *opts.ManagerID
	}
	if opts.TeamProvided {
		for _, m := range opts.Team {
			if _, err := e.Repo.GetUser(ctx, m.UserID); err != nil {
				return p, fmt.Errorf("team member %s: %w", m.UserID, err)
			}
		}
		p.Team = opts.Team
	}
	if opts.SkillsProvided {
		p.RequiredSkills = opts.RequiredSkills
	}
	p.UpdatedAt = e.now().UTC()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, "project.updated", p.ID, "project", p.ID, opts.ActorID, events.EventPayload{
		"from_status": original.Status,
		"to_status":   p.Status,
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	return p, nil
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID             string
	ProjectID      string
	Title          string
	Description    string
	Status         string
	Priority       string
	Type           string
	Assignees      []string
	DueDate        time.Time
	StartDate      *time.Time
	EstimatedHours float64
	Dependencies   []string
	ActorID        string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.ProjectID == "" {
		return domain.Task{}, errors.New("project is required")
	}
	if opts.DueDate.IsZero() {
		return domain.Task{}, errors.New("due_date is required")
	}
	if opts.EstimatedHours < 0 {
		return domain.Task{}, errors.New("estimated_hours must be non-negative")
	}
	if opts.Status == "" {
		opts.Status = "To Do"
	}
	if opts.Priority == "" {
		opts.Priority = "Medium"
	}
	if opts.Type == "" {
		opts.Type = "Feature"
	}
	if !contains(domain.TaskStatuses, opts.Status) {
		return domain.Task{}, fmt.Errorf("invalid task status %s", opts.Status)
	}
	if !contains(domain.TaskPriorities, opts.Priority) {
		return domain.Task{}, fmt.Errorf("invalid task priority %s", opts.Priority)
	}
	if !contains(domain.TaskTypes, opts.Type) {
		return domain.Task{}, fmt.Errorf("invalid task type %s", opts.Type)
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Task{}, err
	}
	for _, dep := range opts.Dependencies {
		d, err := e.Repo.GetTask(ctx, dep)
		if err != nil {
			return domain.Task{}, fmt.Errorf("dependency %s: %w", dep, err)
		}
		if d.ProjectID != opts.ProjectID {
			return domain.Task{}, fmt.Errorf("dependency %s not in project %s", dep, opts.ProjectID)
		}
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.now().UTC()
	t := domain.Task{
		ID:             id,
		ProjectID:      opts.ProjectID,
		Title:          opts.Title,
		Description:    opts.Description,
		Status:         opts.Status,
		Priority:       opts.Priority,
		Type:           opts.Type,
		Assignees:      opts.Assignees,
		DueDate:        opts.DueDate,
		StartDate:      opts.StartDate,
		EstimatedHours: opts.EstimatedHours,
		Dependencies:   opts.Dependencies,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.created", t.ProjectID, "task", t.ID, opts.ActorID, events.EventPayload{"title": t.Title, "status": t.Status}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// TaskUpdateOptions encapsulates allowed task updates.
type TaskUpdateOptions struct {
	ID                string
	Title             *string
	Description       *string
	Status            *string
	Priority          *string
	Progress          *float64
	ActualHours       *float64
	Assignees         []string
	AssigneesProvided bool
	AddDeps           []string
	RemoveDeps        []string
	Quality           *domain.Quality
	TimeTracking      *domain.TimeTracking
	ActorID           string
	Force             bool
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return t, err
	}
	original := t
	if opts.Title != nil {
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.Priority != nil {
		if !contains(domain.TaskPriorities, *opts.Priority) {
			return t, fmt.Errorf("invalid task priority %s", *opts.Priority)
		}
		t.Priority = *opts.Priority
	}
	if opts.Progress != nil {
		if *opts.Progress < 0 || *opts.Progress > 100 {
			return t, errors.New("progress must be within 0..100")
		}
		t.Progress = *opts.Progress
	}
	if opts.ActualHours != nil {
		if *opts.ActualHours < 0 {
			return t, errors.New("actual_hours must be non-negative")
		}
		t.ActualHours = *opts.ActualHours
	}
	if opts.AssigneesProvided {
		t.Assignees = opts.Assignees
	}
	if opts.Quality != nil {
		t.Quality = *opts.Quality
	}
	if opts.TimeTracking != nil {
		t.TimeTracking = *opts.TimeTracking
	}
	if len(opts.AddDeps) > 0 || len(opts.RemoveDeps) > 0 {
		t.Dependencies = mergeDeps(t.Dependencies, opts.AddDeps, opts.RemoveDeps)
		for _, dep := range t.Dependencies {
			d, err := e.Repo.GetTask(ctx, dep)
			if err != nil {
				return t, fmt.Errorf("dependency %s: %w", dep, err)
			}
			if d.ProjectID != t.ProjectID {
				return t, fmt.Errorf("dependency %s not in project %s", dep, t.ProjectID)
			}
		}
	}
	if opts.Status != nil && *opts.Status != t.Status {
		if !contains(domain.TaskStatuses, *opts.Status) {
			return t, fmt.Errorf("invalid task status %s", *opts.Status)
		}
		if err := ensureTaskTransition(t.Status, *opts.Status, opts.Force); err != nil {
			return t, err
		}
		t.Status = *opts.Status
		now := e.now().UTC()
		switch t.Status {
		case "In Progress":
			if t.StartDate == nil {
				t.StartDate = &now
			}
		case "Completed":
			t.CompletedDate = &now
			t.Progress = 100
		}
	}
	t.UpdatedAt = e.now().UTC()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.updated", t.ProjectID, "task", t.ID, opts.ActorID, events.EventPayload{
		"from_status": original.Status,
		"to_status":   t.Status,
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

// CompleteTask marks a task Completed, stamping the completion date.
func (e Engine) CompleteTask(ctx context.Context, taskID, actorID string, force bool) (domain.Task, error) {
	status := "Completed"
	return e.UpdateTask(ctx, TaskUpdateOptions{ID: taskID, Status: &status, ActorID: actorID, Force: force})
}

func ensureTaskTransition(oldStatus, newStatus string, force bool) error {
	if force {
		return nil
	}
	allowed := map[string][]string{
		"Backlog":     {"To Do", "Cancelled"},
		"To Do":       {"In Progress", "Blocked", "Cancelled"},
		"In Progress": {"Review", "Testing", "Blocked", "Cancelled"},
		"Review":      {"Testing", "Completed", "In Progress"},
		"Testing":     {"Completed", "In Progress"},
		"Blocked":     {"To Do", "In Progress", "Cancelled"},
	}
	if contains(allowed[oldStatus], newStatus) {
		return nil
	}
	return fmt.Errorf("invalid task status transition %s -> %s", oldStatus, newStatus)
}

// UserCreateOptions are parameters for registering a user.
type UserCreateOptions struct {
	ID                string
	Username          string
	FirstName         string
	LastName          string
	Role              string
	Department        string
	ProductivityScore float64
	ActorID           string
}

func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if opts.Username == "" {
		return domain.User{}, errors.New("username is required")
	}
	if opts.Role == "" {
		opts.Role = "employee"
	}
	switch opts.Role {
	case "admin", "manager", "employee":
	default:
		return domain.User{}, fmt.Errorf("invalid role %s", opts.Role)
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	u := domain.User{
		ID:                id,
		Username:          opts.Username,
		FirstName:         opts.FirstName,
		LastName:          opts.LastName,
		Role:              opts.Role,
		Department:        opts.Department,
		Active:            true,
		ProductivityScore: opts.ProductivityScore,
		CreatedAt:         e.now().UTC(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return u, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return u, fmt.Errorf("insert user: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "user.created", "", "user", u.ID, opts.ActorID, events.EventPayload{"username": u.Username, "role": u.Role}); err != nil {
		return u, err
	}
	if err := tx.Commit(); err != nil {
		return u, err
	}
	return u, nil
}

// --- helpers ---

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func mergeDeps(current, add, remove []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range current {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, d := range add {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	if len(remove) > 0 {
		drop := map[string]bool{}
		for _, d := range remove {
			drop[d] = true
		}
		filtered := out[:0]
		for _, d := range out {
			if !drop[d] {
				filtered = append(filtered, d)
			}
		}
		out = filtered
	}
	return out
}
