package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"pulseboard/internal/analytics"
	"pulseboard/internal/config"
	"pulseboard/internal/db"
	"pulseboard/internal/engine"
	"pulseboard/internal/migrate"
	"pulseboard/internal/report"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.Default()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return testNow }
	svc := analytics.NewService(e.Repo, cfg)
	svc.Now = e.Now
	gen := report.NewGenerator(e.Repo)
	gen.Now = e.Now
	handler, err := New(Config{Engine: e, Analytics: svc, Reports: gen, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createProject(t *testing.T, srv *testServer, name string) ProjectResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name":       name,
		"start_date": testNow.AddDate(0, 0, -10).Format(time.RFC3339),
		"end_date":   testNow.AddDate(0, 0, 50).Format(time.RFC3339),
		"budget":     1000,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project status %d: %s", res.StatusCode, string(data))
	}
	var p ProjectResponse
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	return p
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestProjectCRUDAndTaskFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	p := createProject(t, srv, "launch")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"project_id": p.ID,
		"title":      "ship it",
		"due_date":   testNow.AddDate(0, 0, 7).Format(time.RFC3339),
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", res.StatusCode, string(data))
	}
	var task TaskResponse
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.Status != "To Do" {
		t.Fatalf("default status = %q", task.Status)
	}

	// Illegal transition surfaces as 409.
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tasks/"+task.ID, map[string]any{
		"status": "Completed",
	})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("transition status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/done?force=true", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("force done status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.Status != "Completed" || task.CompletedDate == nil {
		t.Fatalf("task after done = %+v", task)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+p.ID, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get project status %d: %s", res.StatusCode, string(data))
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/nope", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("code = %q, want not_found", envelope.Error.Code)
	}
}

func TestProjectAnalyticsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	p := createProject(t, srv, "analyzed")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/analytics/projects/"+p.ID, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("analytics status %d: %s", res.StatusCode, string(data))
	}
	var rep analytics.ProjectReport
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if rep.Project.ID != p.ID {
		t.Fatalf("project id = %q", rep.Project.ID)
	}
	if len(rep.Metrics.Tasks.ByStatus) == 0 {
		t.Fatal("expected zero-filled status breakdown")
	}
}

func TestDashboardEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	createProject(t, srv, "dash")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/analytics/dashboard", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status %d: %s", res.StatusCode, string(data))
	}
	var d analytics.Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		t.Fatalf("unmarshal dashboard: %v", err)
	}
	if d.Overview.TotalProjects != 1 {
		t.Fatalf("total projects = %d", d.Overview.TotalProjects)
	}
}

func TestReportEndpointJSONAndCSV(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	createProject(t, srv, "reported")
	base := srv.URL + "/v0/analytics/reports?type=financial_summary&start_date=2024-02-01&end_date=2024-03-20"

	res, data := doJSON(t, srv.Client(), http.MethodGet, base, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("json report status %d: %s", res.StatusCode, string(data))
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if rep.FinancialSummary == nil || rep.FinancialSummary.TotalBudget != 1000 {
		t.Fatalf("financial summary = %+v", rep.FinancialSummary)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, base+"&format=csv", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("csv report status %d: %s", res.StatusCode, string(data))
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	cd := res.Header.Get("Content-Disposition")
	if !strings.Contains(cd, "financial_summary_2024-02-01_2024-03-20.csv") {
		t.Fatalf("content disposition = %q", cd)
	}
	if !strings.Contains(string(data), "metric,value") {
		t.Fatalf("csv body missing summary header:\n%s", string(data))
	}
}

func TestReportEndpointInvalidType(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	url := srv.URL + "/v0/analytics/reports?type=bogus&start_date=2024-02-01&end_date=2024-03-20"
	res, data := doJSON(t, srv.Client(), http.MethodGet, url, nil)
	if res.StatusCode != http.StatusBadRequest && res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
}
