package pulseboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Pulseboard HTTP API client.
type Client struct {
	BaseURL    string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Project represents the API project model (partial).
type Project struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	Progress   float64 `json:"progress"`
	Budget     float64 `json:"budget"`
	ActualCost float64 `json:"actual_cost"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
}

// Task represents the API task model (partial).
type Task struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	Title     string   `json:"title"`
	Status    string   `json:"status"`
	Priority  string   `json:"priority"`
	Type      string   `json:"type"`
	Assignees []string `json:"assignees"`
	DueDate   string   `json:"due_date"`
	Progress  float64  `json:"progress"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload"`
}

// RiskAssessment mirrors the analytics risk payload.
type RiskAssessment struct {
	Score   float64  `json:"score"`
	Level   string   `json:"level"`
	Factors []string `json:"factors"`
}

// Recommendation mirrors the analytics recommendation payload.
type Recommendation struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Message  string `json:"message"`
	UserID   string `json:"user_id,omitempty"`
}

// ProjectAnalytics is the per-project analytics payload (partial).
type ProjectAnalytics struct {
	Project struct {
		ID       string  `json:"id"`
		Name     string  `json:"name"`
		Status   string  `json:"status"`
		Progress float64 `json:"progress"`
	} `json:"project"`
	Metrics struct {
		Velocity float64 `json:"velocity"`
		Tasks    struct {
			ByStatus map[string]int `json:"by_status"`
		} `json:"tasks"`
	} `json:"metrics"`
	Insights struct {
		CompletionPrediction struct {
			EstimatedDate  string  `json:"estimated_date"`
			Velocity       float64 `json:"velocity"`
			RemainingTasks int     `json:"remaining_tasks"`
		} `json:"completion_prediction"`
		RiskAssessment          RiskAssessment   `json:"risk_assessment"`
		ResourceRecommendations []Recommendation `json:"resource_recommendations"`
	} `json:"insights"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateProject creates a project. Dates are RFC 3339.
func (c *Client) CreateProject(ctx context.Context, name, startDate, endDate string, budget float64) (Project, error) {
	body := map[string]any{
		"name":       name,
		"start_date": startDate,
		"end_date":   endDate,
		"budget":     budget,
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "v0/projects", body, &resp)
	return resp, err
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "v0/projects/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateTask creates a task in a project. dueDate is RFC 3339.
func (c *Client) CreateTask(ctx context.Context, projectID, title, dueDate string) (Task, error) {
	body := map[string]any{
		"project_id": projectID,
		"title":      title,
		"due_date":   dueDate,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", body, &resp)
	return resp, err
}

// UpdateTaskStatus moves a task to a new status.
func (c *Client) UpdateTaskStatus(ctx context.Context, taskID, status string) (Task, error) {
	body := map[string]any{"status": status}
	var resp Task
	err := c.do(ctx, http.MethodPatch, "v0/tasks/"+url.PathEscape(taskID), body, &resp)
	return resp, err
}

// CompleteTask marks a task done. force bypasses transition checks.
func (c *Client) CompleteTask(ctx context.Context, taskID string, force bool) (Task, error) {
	endpoint := "v0/tasks/" + url.PathEscape(taskID) + "/done"
	if force {
		endpoint += "?force=true"
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// ListTasks returns tasks, optionally filtered by project.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	endpoint := "v0/tasks"
	if projectID != "" {
		endpoint += "?project_id=" + url.QueryEscape(projectID)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ProjectAnalytics returns the analytics payload for a project.
func (c *Client) ProjectAnalytics(ctx context.Context, projectID string) (ProjectAnalytics, error) {
	var resp ProjectAnalytics
	endpoint := "v0/analytics/projects/" + url.PathEscape(projectID)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ReportCSV fetches a report as CSV bytes. Dates are YYYY-MM-DD.
func (c *Client) ReportCSV(ctx context.Context, reportType, startDate, endDate string) ([]byte, error) {
	endpoint := fmt.Sprintf("v0/analytics/reports?type=%s&start_date=%s&end_date=%s&format=csv",
		url.QueryEscape(reportType), url.QueryEscape(startDate), url.QueryEscape(endDate))
	return c.raw(ctx, endpoint)
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, projectID string, limit int) ([]Event, error) {
	endpoint := "v0/events"
	params := url.Values{}
	if projectID != "" {
		params.Set("project_id", projectID)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	resp, err := c.send(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) raw(ctx context.Context, endpoint string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return b, nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	return c.HTTPClient.Do(req)
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
