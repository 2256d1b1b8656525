package server

import (
	"time"

	"pulseboard/internal/domain"
	"pulseboard/internal/repo"
)

type TeamMemberRequest struct {
	UserID     string  `json:"user_id"`
	Role       string  `json:"role,omitempty"`
	Allocation float64 `json:"allocation,omitempty"`
}

type CreateProjectRequest struct {
	ID             string              `json:"id,omitempty"`
	Name           string              `json:"name"`
	Description    string              `json:"description,omitempty"`
	Status         string              `json:"status,omitempty"`
	Priority       string              `json:"priority,omitempty"`
	StartDate      time.Time           `json:"start_date"`
	EndDate        time.Time           `json:"end_date"`
	Budget         float64             `json:"budget,omitempty"`
	ActualCost     float64             `json:"actual_cost,omitempty"`
	ManagerID      string              `json:"manager_id,omitempty"`
	Team           []TeamMemberRequest `json:"team,omitempty"`
	RequiredSkills []string            `json:"required_skills,omitempty"`
}

type UpdateProjectRequest struct {
	Name           *string              `json:"name,omitempty"`
	Description    *string              `json:"description,omitempty"`
	Status         *string              `json:"status,omitempty"`
	Priority       *string              `json:"priority,omitempty"`
	EndDate        *time.Time           `json:"end_date,omitempty"`
	Budget         *float64             `json:"budget,omitempty"`
	ActualCost     *float64             `json:"actual_cost,omitempty"`
	Progress       *float64             `json:"progress,omitempty"`
	ManagerID      *string              `json:"manager_id,omitempty"`
	Team           *[]TeamMemberRequest `json:"team,omitempty"`
	RequiredSkills *[]string            `json:"required_skills,omitempty"`
}

type ProjectResponse struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Description    string              `json:"description,omitempty"`
	Status         string              `json:"status"`
	Priority       string              `json:"priority,omitempty"`
	StartDate      time.Time           `json:"start_date"`
	EndDate        time.Time           `json:"end_date"`
	Budget         float64             `json:"budget"`
	ActualCost     float64             `json:"actual_cost"`
	Progress       float64             `json:"progress"`
	ManagerID      string              `json:"manager_id,omitempty"`
	Team           []domain.TeamMember `json:"team"`
	RequiredSkills []string            `json:"required_skills,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func projectResponse(p domain.Project) ProjectResponse {
	team := p.Team
	if team == nil {
		team = []domain.TeamMember{}
	}
	return ProjectResponse{
		ID: p.ID, Name: p.Name, Description: p.Description,
		Status: p.Status, Priority: p.Priority,
		StartDate: p.StartDate, EndDate: p.EndDate,
		Budget: p.Budget, ActualCost: p.ActualCost, Progress: p.Progress,
		ManagerID: p.ManagerID, Team: team, RequiredSkills: p.RequiredSkills,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func mapProjects(in []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(in))
	for _, p := range in {
		out = append(out, projectResponse(p))
	}
	return out
}

type CreateTaskRequest struct {
	ID             string     `json:"id,omitempty"`
	ProjectID      string     `json:"project_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	Type           string     `json:"type,omitempty"`
	Assignees      []string   `json:"assignees,omitempty"`
	DueDate        time.Time  `json:"due_date"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EstimatedHours float64    `json:"estimated_hours,omitempty"`
	Dependencies   []string   `json:"dependencies,omitempty"`
}

type UpdateTaskRequest struct {
	Title        *string              `json:"title,omitempty"`
	Description  *string              `json:"description,omitempty"`
	Status       *string              `json:"status,omitempty"`
	Priority     *string              `json:"priority,omitempty"`
	Progress     *float64             `json:"progress,omitempty"`
	ActualHours  *float64             `json:"actual_hours,omitempty"`
	Assignees    *[]string            `json:"assignees,omitempty"`
	AddDeps      []string             `json:"add_dependencies,omitempty"`
	RemoveDeps   []string             `json:"remove_dependencies,omitempty"`
	Quality      *domain.Quality      `json:"quality,omitempty"`
	TimeTracking *domain.TimeTracking `json:"time_tracking,omitempty"`
}

type TaskResponse struct {
	ID             string              `json:"id"`
	ProjectID      string              `json:"project_id"`
	Title          string              `json:"title"`
	Description    string              `json:"description,omitempty"`
	Status         string              `json:"status"`
	Priority       string              `json:"priority"`
	Type           string              `json:"type"`
	Assignees      []string            `json:"assignees"`
	DueDate        time.Time           `json:"due_date"`
	StartDate      *time.Time          `json:"start_date,omitempty"`
	CompletedDate  *time.Time          `json:"completed_date,omitempty"`
	EstimatedHours float64             `json:"estimated_hours"`
	ActualHours    float64             `json:"actual_hours"`
	Progress       float64             `json:"progress"`
	Dependencies   []string            `json:"dependencies"`
	Quality        domain.Quality      `json:"quality"`
	TimeTracking   domain.TimeTracking `json:"time_tracking"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func taskResponse(t domain.Task) TaskResponse {
	assignees := t.Assignees
	if assignees == nil {
		assignees = []string{}
	}
	deps := t.Dependencies
	if deps == nil {
		deps = []string{}
	}
	return TaskResponse{
		ID: t.ID, ProjectID: t.ProjectID, Title: t.Title, Description: t.Description,
		Status: t.Status, Priority: t.Priority, Type: t.Type,
		Assignees: assignees, DueDate: t.DueDate,
		StartDate: t.StartDate, CompletedDate: t.CompletedDate,
		EstimatedHours: t.EstimatedHours, ActualHours: t.ActualHours, Progress: t.Progress,
		Dependencies: deps, Quality: t.Quality, TimeTracking: t.TimeTracking,
		CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

func mapTasks(in []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(in))
	for _, t := range in {
		out = append(out, taskResponse(t))
	}
	return out
}

type CreateUserRequest struct {
	ID                string  `json:"id,omitempty"`
	Username          string  `json:"username"`
	FirstName         string  `json:"first_name,omitempty"`
	LastName          string  `json:"last_name,omitempty"`
	Role              string  `json:"role,omitempty"`
	Department        string  `json:"department,omitempty"`
	ProductivityScore float64 `json:"productivity_score,omitempty"`
}

type UserResponse struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	Name              string    `json:"name"`
	Role              string    `json:"role"`
	Department        string    `json:"department,omitempty"`
	Active            bool      `json:"active"`
	ProductivityScore float64   `json:"productivity_score"`
	CreatedAt         time.Time `json:"created_at"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID: u.ID, Username: u.Username, Name: u.FullName(),
		Role: u.Role, Department: u.Department, Active: u.Active,
		ProductivityScore: u.ProductivityScore, CreatedAt: u.CreatedAt,
	}
}

func mapUsers(in []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(in))
	for _, u := range in {
		out = append(out, userResponse(u))
	}
	return out
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload"`
}

func mapEvents(in []repo.Event) []EventResponse {
	out := make([]EventResponse, 0, len(in))
	for _, e := range in {
		out = append(out, EventResponse{
			ID: e.ID, TS: e.TS, Type: e.Type, ProjectID: e.ProjectID,
			EntityKind: e.EntityKind, EntityID: e.EntityID,
			ActorID: e.ActorID, Payload: e.Payload,
		})
	}
	return out
}

func teamMembers(in []TeamMemberRequest) []domain.TeamMember {
	out := make([]domain.TeamMember, 0, len(in))
	for _, m := range in {
		alloc := m.Allocation
		if alloc == 0 {
			alloc = 1
		}
		out = append(out, domain.TeamMember{UserID: m.UserID, Role: m.Role, Allocation: alloc})
	}
	return out
}
