package domain

import "time"

// Project statuses form a closed set; analytics breakdowns zero-fill them.
var ProjectStatuses = []string{"Planning", "In Progress", "On Hold", "Completed", "Cancelled"}

var (
	TaskStatuses = []string{"Backlog", "To Do", "In Progress", "Review", "Testing", "Completed", "Cancelled", "Blocked"}

	TaskPriorities = []string{"Low", "Medium", "High", "Critical", "Urgent"}

	TaskTypes = []string{"Feature", "Bug", "Improvement", "Documentation", "Research", "Design", "Testing", "Deployment", "Maintenance"}
)

// TeamMember ties a user to a project with an allocation fraction.
type TeamMember struct {
	UserID     string  `json:"user_id"`
	Role       string  `json:"role,omitempty"`
	Allocation float64 `json:"allocation"`
}

type Project struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	Status         string       `json:"status" enum:"Planning,In Progress,On Hold,Completed,Cancelled"`
	Priority       string       `json:"priority,omitempty"`
	StartDate      time.Time    `json:"start_date"`
	EndDate        time.Time    `json:"end_date"`
	Budget         float64      `json:"budget"`
	ActualCost     float64      `json:"actual_cost"`
	Progress       float64      `json:"progress"`
	ManagerID      string       `json:"manager_id,omitempty"`
	Team           []TeamMember `json:"team,omitempty"`
	RequiredSkills []string     `json:"required_skills,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// DurationDays is the planned project length in days.
func (p Project) DurationDays() float64 {
	return p.EndDate.Sub(p.StartDate).Hours() / 24
}

// Quality holds per-task quality counters. Missing upstream values are
// normalized to zero when records are loaded, never inside formulas.
type Quality struct {
	BugsFound        int     `json:"bugs_found"`
	BugsFixed        int     `json:"bugs_fixed"`
	TestCoverage     float64 `json:"test_coverage"`
	CodeQualityScore float64 `json:"code_quality_score"`
}

type TimeTracking struct {
	TotalLogged      float64 `json:"total_logged"`
	BillableHours    float64 `json:"billable_hours"`
	NonBillableHours float64 `json:"non_billable_hours"`
}

type Task struct {
	ID             string       `json:"id"`
	ProjectID      string       `json:"project_id"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	Status         string       `json:"status" enum:"Backlog,To Do,In Progress,Review,Testing,Completed,Cancelled,Blocked"`
	Priority       string       `json:"priority" enum:"Low,Medium,High,Critical,Urgent"`
	Type           string       `json:"type" enum:"Feature,Bug,Improvement,Documentation,Research,Design,Testing,Deployment,Maintenance"`
	Assignees      []string     `json:"assignees,omitempty"`
	DueDate        time.Time    `json:"due_date"`
	StartDate      *time.Time   `json:"start_date,omitempty"`
	CompletedDate  *time.Time   `json:"completed_date,omitempty"`
	EstimatedHours float64      `json:"estimated_hours"`
	ActualHours    float64      `json:"actual_hours"`
	Progress       float64      `json:"progress"`
	Dependencies   []string     `json:"dependencies,omitempty"`
	Quality        Quality      `json:"quality"`
	TimeTracking   TimeTracking `json:"time_tracking"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Open reports whether the task still counts toward remaining work.
func (t Task) Open() bool {
	return t.Status != "Completed" && t.Status != "Cancelled"
}

// AssignedTo reports whether userID appears among the task assignees.
func (t Task) AssignedTo(userID string) bool {
	for _, a := range t.Assignees {
		if a == userID {
			return true
		}
	}
	return false
}

type User struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	FirstName         string     `json:"first_name,omitempty"`
	LastName          string     `json:"last_name,omitempty"`
	Role              string     `json:"role" enum:"admin,manager,employee"`
	Department        string     `json:"department,omitempty"`
	Active            bool       `json:"active"`
	ProductivityScore float64    `json:"productivity_score"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
	TotalLogins       int        `json:"total_logins"`
	CreatedAt         time.Time  `json:"created_at"`
}

// FullName falls back to the username when no display name is set.
func (u User) FullName() string {
	switch {
	case u.FirstName == "" && u.LastName == "":
		return u.Username
	case u.LastName == "":
		return u.FirstName
	case u.FirstName == "":
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

// RiskAssessment is computed per request and never persisted.
type RiskAssessment struct {
	Score   float64  `json:"score"`
	Level   string   `json:"level" enum:"Low,Medium,High,Critical"`
	Factors []string `json:"factors"`
}

type Recommendation struct {
	Type     string `json:"type" enum:"workload_reduction,workload_increase,skill_gap"`
	Priority string `json:"priority" enum:"low,medium,high"`
	Message  string `json:"message"`
	UserID   string `json:"user_id,omitempty"`
}
