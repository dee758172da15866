package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	charmlog "github.com/charmbracelet/log"

	"caseflow/internal/db"
	"caseflow/internal/domain"
	"caseflow/internal/engine"
	"caseflow/internal/graph"
	"caseflow/internal/migrate"
)

const testSecret = "test-secret"

// stubProvider fakes the calendar/to-do provider for API tests.
type stubProvider struct {
	seq int64
}

func (s *stubProvider) id(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, atomic.AddInt64(&s.seq, 1))
}

func (s *stubProvider) CreateList(ctx context.Context, token, name string) (string, error) {
	return s.id("list"), nil
}
func (s *stubProvider) DeleteList(ctx context.Context, token, listID string) error { return nil }
func (s *stubProvider) AddTodo(ctx context.Context, token, listID, title, due string) (string, error) {
	return s.id("todo"), nil
}
func (s *stubProvider) PatchTodo(ctx context.Context, token, listID, todoID string, patch graph.TodoPatch) error {
	return nil
}
func (s *stubProvider) DeleteTodo(ctx context.Context, token, listID, todoID string) error {
	return nil
}
func (s *stubProvider) AddEvent(ctx context.Context, token string, ev graph.Event) (string, error) {
	return s.id("event"), nil
}
func (s *stubProvider) PatchEvent(ctx context.Context, token, eventID string, patch graph.EventPatch) error {
	return nil
}
func (s *stubProvider) CancelEvent(ctx context.Context, token, eventID, comment string) error {
	return nil
}
func (s *stubProvider) DeleteEvent(ctx context.Context, token, eventID string) error { return nil }
func (s *stubProvider) ListEvents(ctx context.Context, token string) ([]graph.Event, error) {
	return nil, nil
}
func (s *stubProvider) Profile(ctx context.Context, token string) (graph.UserProfile, error) {
	return graph.UserProfile{ID: "staff-1", Name: "Sam Lee", Email: "sam@example.org"}, nil
}

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Close() { s.close() }

func newTestServer(t *testing.T) (*testServer, string) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, &stubProvider{}, charmlog.New(io.Discard))
	e.Now = func() time.Time {
		return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	}
	staff := domain.User{
		ID: "staff-1", Name: "Sam Lee", Email: "sam@example.org", Role: domain.RoleStaff,
		CreatedAt: "2024-06-01T10:00:00Z", UpdatedAt: "2024-06-01T10:00:00Z",
	}
	if err := e.Repo.UpsertUser(context.Background(), staff); err != nil {
		t.Fatalf("seed staff: %v", err)
	}

	handler, err := New(Config{
		Engine:  e,
		AuthCfg: AuthConfig{JWTSecret: testSecret},
	})
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
	t.Cleanup(testSrv.Close)

	session, err := issueJWT(AuthConfig{JWTSecret: testSecret}, staff, "provider-token", time.Now())
	if err != nil {
		t.Fatalf("issue jwt: %v", err)
	}
	return testSrv, session
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any) (*http.Response, []byte) {
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
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
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

func TestHealthUnauthenticated(t *testing.T) {
	srv, _ := newTestServer(t)
	res, data := doJSON(t, srv.client, http.MethodGet, srv.URL+"/v1/health", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestMissingTokenRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	res, data := doJSON(t, srv.client, http.MethodGet, srv.URL+"/v1/client", "", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v (%s)", err, string(data))
	}
	if envelope.Error != "unauthorized" {
		t.Fatalf("expected error code unauthorized, got %q", envelope.Error)
	}
}

func TestClientLifecycle(t *testing.T) {
	srv, token := newTestServer(t)

	res, data := doJSON(t, srv.client, http.MethodPost, srv.URL+"/v1/client", token, map[string]any{
		"first_name":       "Alice",
		"last_name":        "Nguyen",
		"email":            "alice@example.org",
		"region":           "WINDSOR",
		"reference_number": 1001,
		"dob":              "1990-03-15T00:00:00Z",
		"referral_date":    "2024-01-01T00:00:00Z",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create client status %d: %s", res.StatusCode, string(data))
	}
	var created domain.Client
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal client: %v", err)
	}

	// duplicate email conflicts
	res, data = doJSON(t, srv.client, http.MethodPost, srv.URL+"/v1/client", token, map[string]any{
		"first_name":       "Other",
		"last_name":        "Person",
		"email":            "alice@example.org",
		"region":           "SARNIA",
		"reference_number": 1002,
		"dob":              "1991-01-01T00:00:00Z",
		"referral_date":    "2024-01-01T00:00:00Z",
	})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.client, http.MethodGet, srv.URL+"/v1/client/"+created.ID, token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get client status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.client, http.MethodDelete, srv.URL+"/v1/client/"+created.ID, token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete client status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.client, http.MethodGet, srv.URL+"/v1/client/"+created.ID, token, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d: %s", res.StatusCode, string(data))
	}
}

func TestCaseCreationDerivesTasks(t *testing.T) {
	srv, token := newTestServer(t)

	_, clientData := doJSON(t, srv.client, http.MethodPost, srv.URL+"/v1/client", token, map[string]any{
		"first_name":       "Alice",
		"last_name":        "Nguyen",
		"email":            "alice@example.org",
		"region":           "WINDSOR",
		"reference_number": 1001,
		"dob":              "1990-03-15T00:00:00Z",
		"referral_date":    "2024-01-01T00:00:00Z",
	})
	var person domain.Client
	_ = json.Unmarshal(clientData, &person)

	_, svcData := doJSON(t, srv.client, http.MethodPost, srv.URL+"/v1/service", token, map[string]any{
		"name":                  "Employment Support",
		"initial_contact_days":  1,
		"intake_interview_days": 5,
		"action_plan_weeks":     2,
	})
	var svc domain.Service
	_ = json.Unmarshal(svcData, &svc)

	res, data := doJSON(t, srv.client, http.MethodPost, srv.URL+"/v1/case", token, map[string]any{
		"client_id":       person.ID,
		"case_manager_id": "staff-1",
		"staff_id":        "staff-1",
		"service_id":      svc.ID,
		"region":          "WINDSOR",
		"start_at":        "2024-01-01T00:00:00Z",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create case status %d: %s", res.StatusCode, string(data))
	}
	var created domain.Case
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal case: %v", err)
	}
	if len(created.Tasks) != 3 {
		t.Fatalf("expected 3 derived tasks, got %d", len(created.Tasks))
	}
	if created.Tasks[0].DueDate != "2024-01-02T00:00:00Z" {
		t.Fatalf("unexpected first due date %s", created.Tasks[0].DueDate)
	}

	// status filter
	res, data = doJSON(t, srv.client, http.MethodGet, srv.URL+"/v1/case?status=OPEN", token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list cases status %d: %s", res.StatusCode, string(data))
	}
	var cases []domain.Case
	if err := json.Unmarshal(data, &cases); err != nil {
		t.Fatalf("unmarshal cases: %v", err)
	}
	if len(cases) != 1 {
		t.Fatalf("expected 1 open case, got %d", len(cases))
	}

	// closing stamps closed_at
	res, data = doJSON(t, srv.client, http.MethodPatch, srv.URL+"/v1/case/"+created.ID, token, map[string]any{
		"status": "CLOSED",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("close case status %d: %s", res.StatusCode, string(data))
	}
	var closed domain.Case
	_ = json.Unmarshal(data, &closed)
	if closed.ClosedAt == nil {
		t.Fatal("expected closed_at to be stamped")
	}

	res, data = doJSON(t, srv.client, http.MethodDelete, srv.URL+"/v1/case/"+created.ID, token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete case status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, srv.client, http.MethodGet, srv.URL+"/v1/task?case_id="+created.ID, token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list tasks status %d", res.StatusCode)
	}
}

func TestTaskByUserRoutes(t *testing.T) {
	srv, token := newTestServer(t)

	res, data := doJSON(t, srv.client, http.MethodGet, srv.URL+"/v1/task/user/staff-1", token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("tasks by user status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.client, http.MethodGet, srv.URL+"/v1/task/user/nobody", token, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d: %s", res.StatusCode, string(data))
	}
}

func TestInvalidStatusRejected(t *testing.T) {
	srv, token := newTestServer(t)
	res, data := doJSON(t, srv.client, http.MethodGet, srv.URL+"/v1/case?status=WHATEVER", token, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %d: %s", res.StatusCode, string(data))
	}
}
