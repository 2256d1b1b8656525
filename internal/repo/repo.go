package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pulseboard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

// --- users ---

const userCols = `id,username,COALESCE(first_name,'') AS first_name,COALESCE(last_name,'') AS last_name,role,COALESCE(department,'') AS department,active,productivity_score,last_login,total_logins,created_at`

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	var lastLogin sql.NullString
	var created string
	var active int
	err := scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Role, &u.Department, &active, &u.ProductivityScore, &lastLogin, &u.TotalLogins, &created)
	if err != nil {
		return u, err
	}
	u.Active = active != 0
	u.LastLogin = parseTimePtr(lastLogin)
	u.CreatedAt = parseTime(created)
	return u, nil
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO users(id,username,first_name,last_name,role,department,active,productivity_score,last_login,total_logins,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Username, nullable(u.FirstName), nullable(u.LastName), u.Role, nullable(u.Department),
		boolInt(u.Active), u.ProductivityScore, nullableTimePtr(u.LastLogin), u.TotalLogins, formatTime(u.CreatedAt))
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, id)
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

// UserFilters narrows ListUsers. Empty fields match everything.
type UserFilters struct {
	Roles      []string
	Department string
	ActiveOnly bool
}

func (r Repo) ListUsers(ctx context.Context, f UserFilters) ([]domain.User, error) {
	clauses := []string{"1=1"}
	var args []any
	if len(f.Roles) > 0 {
		clauses = append(clauses, "role IN ("+placeholders(len(f.Roles))+")")
		for _, role := range f.Roles {
			args = append(args, role)
		}
	}
	if f.Department != "" {
		clauses = append(clauses, "department=?")
		args = append(args, f.Department)
	}
	if f.ActiveOnly {
		clauses = append(clauses, "active=1")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userCols+` FROM users WHERE `+strings.Join(clauses, " AND ")+` ORDER BY username`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) UpdateUser(ctx context.Context, u domain.User) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET username=?,first_name=?,last_name=?,role=?,department=?,active=?,productivity_score=?,last_login=?,total_logins=? WHERE id=?`,
		u.Username, nullable(u.FirstName), nullable(u.LastName), u.Role, nullable(u.Department),
		boolInt(u.Active), u.ProductivityScore, nullableTimePtr(u.LastLogin), u.TotalLogins, u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- projects ---

const projectCols = `id,name,COALESCE(description,'') AS description,status,COALESCE(priority,'') AS priority,start_date,end_date,budget,actual_cost,progress,COALESCE(manager_id,'') AS manager_id,required_skills_json,created_at,updated_at`

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var start, end, created, updated string
	var skillsJSON sql.NullString
	err := scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.Priority, &start, &end,
		&p.Budget, &p.ActualCost, &p.Progress, &p.ManagerID, &skillsJSON, &created, &updated)
	if err != nil {
		return p, err
	}
	p.StartDate = parseTime(start)
	p.EndDate = parseTime(end)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	if skillsJSON.Valid && skillsJSON.String != "" {
		_ = json.Unmarshal([]byte(skillsJSON.String), &p.RequiredSkills)
	}
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	skills, err := marshalStrings(p.RequiredSkills)
	if err != nil {
		return err
	}
	if _, err := r.q(tx).ExecContext(ctx, `INSERT INTO projects(id,name,description,status,priority,start_date,end_date,budget,actual_cost,progress,manager_id,required_skills_json,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, nullable(p.Description), p.Status, nullable(p.Priority),
		formatTime(p.StartDate), formatTime(p.EndDate), p.Budget, p.ActualCost, p.Progress,
		nullable(p.ManagerID), skills, formatTime(p.CreatedAt), formatTime(p.UpdatedAt)); err != nil {
		return err
	}
	return r.replaceTeam(ctx, tx, p.ID, p.Team)
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id)
	p, err := scanProject(row.Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Team, err = r.projectTeam(ctx, id)
	return p, err
}

// ProjectFilters narrows ListProjects. Zero times mean unbounded.
type ProjectFilters struct {
	Status       string
	MemberID     string
	CreatedFrom  time.Time
	CreatedUntil time.Time
}

func (r Repo) ListProjects(ctx context.Context, f ProjectFilters) ([]domain.Project, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.MemberID != "" {
		clauses = append(clauses, "(manager_id=? OR id IN (SELECT project_id FROM project_members WHERE user_id=?))")
		args = append(args, f.MemberID, f.MemberID)
	}
	if !f.CreatedFrom.IsZero() {
		clauses = append(clauses, "created_at>=?")
		args = append(args, formatTime(f.CreatedFrom))
	}
	if !f.CreatedUntil.IsZero() {
		clauses = append(clauses, "created_at<=?")
		args = append(args, formatTime(f.CreatedUntil))
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectCols+` FROM projects WHERE `+strings.Join(clauses, " AND ")+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		team, err := r.projectTeam(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].Team = team
	}
	return res, nil
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	skills, err := marshalStrings(p.RequiredSkills)
	if err != nil {
		return err
	}
	res, err := r.q(tx).ExecContext(ctx, `UPDATE projects SET name=?,description=?,status=?,priority=?,start_date=?,end_date=?,budget=?,actual_cost=?,progress=?,manager_id=?,required_skills_json=?,updated_at=? WHERE id=?`,
		p.Name, nullable(p.Description), p.Status, nullable(p.Priority),
		formatTime(p.StartDate), formatTime(p.EndDate), p.Budget, p.ActualCost, p.Progress,
		nullable(p.ManagerID), skills, formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return r.replaceTeam(ctx, tx, p.ID, p.Team)
}

func (r Repo) DeleteProject(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) projectTeam(ctx context.Context, projectID string) ([]domain.TeamMember, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id,COALESCE(role,''),allocation FROM project_members WHERE project_id=? ORDER BY position, user_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var team []domain.TeamMember
	for rows.Next() {
		var m domain.TeamMember
		if err := rows.Scan(&m.UserID, &m.Role, &m.Allocation); err != nil {
			return nil, err
		}
		team = append(team, m)
	}
	return team, rows.Err()
}

func (r Repo) replaceTeam(ctx context.Context, tx *sql.Tx, projectID string, team []domain.TeamMember) error {
	if _, err := r.q(tx).ExecContext(ctx, `DELETE FROM project_members WHERE project_id=?`, projectID); err != nil {
		return err
	}
	for i, m := range team {
		if _, err := r.q(tx).ExecContext(ctx, `INSERT INTO project_members(project_id,user_id,role,allocation,position) VALUES (?,?,?,?,?)`,
			projectID, m.UserID, nullable(m.Role), m.Allocation, i); err != nil {
			return fmt.Errorf("insert team member %s: %w", m.UserID, err)
		}
	}
	return nil
}

// --- tasks ---

const taskCols = `id,project_id,title,COALESCE(description,'') AS description,status,priority,type,due_date,start_date,completed_date,estimated_hours,actual_hours,progress,bugs_found,bugs_fixed,test_coverage,code_quality_score,time_logged,billable_hours,non_billable_hours,created_at,updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var due, created, updated string
	var start, completed sql.NullString
	err := scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Type,
		&due, &start, &completed, &t.EstimatedHours, &t.ActualHours, &t.Progress,
		&t.Quality.BugsFound, &t.Quality.BugsFixed, &t.Quality.TestCoverage, &t.Quality.CodeQualityScore,
		&t.TimeTracking.TotalLogged, &t.TimeTracking.BillableHours, &t.TimeTracking.NonBillableHours,
		&created, &updated)
	if err != nil {
		return t, err
	}
	t.DueDate = parseTime(due)
	t.StartDate = parseTimePtr(start)
	t.CompletedDate = parseTimePtr(completed)
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	if _, err := r.q(tx).ExecContext(ctx, `INSERT INTO tasks(id,project_id,title,description,status,priority,type,due_date,start_date,completed_date,estimated_hours,actual_hours,progress,bugs_found,bugs_fixed,test_coverage,code_quality_score,time_logged,billable_hours,non_billable_hours,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, t.Title, nullable(t.Description), t.Status, t.Priority, t.Type,
		formatTime(t.DueDate), nullableTimePtr(t.StartDate), nullableTimePtr(t.CompletedDate),
		t.EstimatedHours, t.ActualHours, t.Progress,
		t.Quality.BugsFound, t.Quality.BugsFixed, t.Quality.TestCoverage, t.Quality.CodeQualityScore,
		t.TimeTracking.TotalLogged, t.TimeTracking.BillableHours, t.TimeTracking.NonBillableHours,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt)); err != nil {
		return err
	}
	if err := r.replaceAssignees(ctx, tx, t.ID, t.Assignees); err != nil {
		return err
	}
	return r.replaceDependencies(ctx, tx, t.ID, t.Dependencies)
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	return r.attachTaskRefs(ctx, t)
}

// TaskFilters narrows ListTasks. Zero times mean unbounded.
type TaskFilters struct {
	ProjectID    string
	Status       string
	AssigneeID   string
	AssigneeIDs  []string
	CreatedFrom  time.Time
	CreatedUntil time.Time
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "id IN (SELECT task_id FROM task_assignees WHERE user_id=?)")
		args = append(args, f.AssigneeID)
	}
	if len(f.AssigneeIDs) > 0 {
		clauses = append(clauses, "id IN (SELECT task_id FROM task_assignees WHERE user_id IN ("+placeholders(len(f.AssigneeIDs))+"))")
		for _, id := range f.AssigneeIDs {
			args = append(args, id)
		}
	}
	if !f.CreatedFrom.IsZero() {
		clauses = append(clauses, "created_at>=?")
		args = append(args, formatTime(f.CreatedFrom))
	}
	if !f.CreatedUntil.IsZero() {
		clauses = append(clauses, "created_at<=?")
		args = append(args, formatTime(f.CreatedUntil))
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE `+strings.Join(clauses, " AND ")+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		res[i], err = r.attachTaskRefs(ctx, res[i])
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE tasks SET title=?,description=?,status=?,priority=?,type=?,due_date=?,start_date=?,completed_date=?,estimated_hours=?,actual_hours=?,progress=?,bugs_found=?,bugs_fixed=?,test_coverage=?,code_quality_score=?,time_logged=?,billable_hours=?,non_billable_hours=?,updated_at=? WHERE id=?`,
		t.Title, nullable(t.Description), t.Status, t.Priority, t.Type,
		formatTime(t.DueDate), nullableTimePtr(t.StartDate), nullableTimePtr(t.CompletedDate),
		t.EstimatedHours, t.ActualHours, t.Progress,
		t.Quality.BugsFound, t.Quality.BugsFixed, t.Quality.TestCoverage, t.Quality.CodeQualityScore,
		t.TimeTracking.TotalLogged, t.TimeTracking.BillableHours, t.TimeTracking.NonBillableHours,
		formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := r.replaceAssignees(ctx, tx, t.ID, t.Assignees); err != nil {
		return err
	}
	return r.replaceDependencies(ctx, tx, t.ID, t.Dependencies)
}

func (r Repo) DeleteTask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) attachTaskRefs(ctx context.Context, t domain.Task) (domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id FROM task_assignees WHERE task_id=? ORDER BY user_id`, t.ID)
	if err != nil {
		return t, err
	}
	defer rows.Close()
	t.Assignees = nil
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return t, err
		}
		t.Assignees = append(t.Assignees, id)
	}
	if err := rows.Err(); err != nil {
		return t, err
	}
	deps, err := r.DB.QueryContext(ctx, `SELECT depends_on_id FROM task_dependencies WHERE task_id=? ORDER BY depends_on_id`, t.ID)
	if err != nil {
		return t, err
	}
	defer deps.Close()
	t.Dependencies = nil
	for deps.Next() {
		var id string
		if err := deps.Scan(&id); err != nil {
			return t, err
		}
		t.Dependencies = append(t.Dependencies, id)
	}
	return t, deps.Err()
}

func (r Repo) replaceAssignees(ctx context.Context, tx *sql.Tx, taskID string, assignees []string) error {
	if _, err := r.q(tx).ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id=?`, taskID); err != nil {
		return err
	}
	for _, userID := range assignees {
		if _, err := r.q(tx).ExecContext(ctx, `INSERT INTO task_assignees(task_id,user_id) VALUES (?,?)`, taskID, userID); err != nil {
			return fmt.Errorf("insert assignee %s: %w", userID, err)
		}
	}
	return nil
}

func (r Repo) replaceDependencies(ctx context.Context, tx *sql.Tx, taskID string, deps []string) error {
	if _, err := r.q(tx).ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id=?`, taskID); err != nil {
		return err
	}
	for _, dep := range deps {
		if _, err := r.q(tx).ExecContext(ctx, `INSERT INTO task_dependencies(task_id,depends_on_id) VALUES (?,?)`, taskID, dep); err != nil {
			return fmt.Errorf("insert dependency %s: %w", dep, err)
		}
	}
	return nil
}

// --- events ---

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func (r Repo) ListEvents(ctx context.Context, projectID string, limit int) ([]Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	query := `SELECT id,ts,type,COALESCE(project_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ProjectID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func marshalStrings(in []string) (any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
