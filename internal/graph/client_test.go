package graph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"caseflow/internal/config"
)

func TestAddTodoWireFormat(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"todo-1"}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	id, err := c.AddTodo(context.Background(), "tok", "list-9", "Initial contact", "2024-01-02T00:00:00Z")
	if err != nil {
		t.Fatalf("add todo: %v", err)
	}
	if id != "todo-1" {
		t.Fatalf("expected todo-1, got %s", id)
	}
	if gotPath != "/me/todo/lists/list-9/tasks" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	due, ok := gotBody["dueDateTime"].(map[string]any)
	if !ok {
		t.Fatalf("missing dueDateTime: %v", gotBody)
	}
	if due["timeZone"] != "UTC" || due["dateTime"] != "2024-01-02T00:00:00Z" {
		t.Fatalf("unexpected dueDateTime: %v", due)
	}
}

func TestAddEventAttendees(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"event-1"}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	_, err := c.AddEvent(context.Background(), "tok", Event{
		Subject:   "Intake Interview",
		Body:      "Intake Interview for client - Alice Nguyen",
		Start:     "2024-01-06T00:00:00Z",
		End:       "2024-01-06T01:00:00Z",
		Attendees: []Attendee{{Email: "alice@example.org", Name: "Alice Nguyen"}},
	})
	if err != nil {
		t.Fatalf("add event: %v", err)
	}
	attendees, ok := gotBody["attendees"].([]any)
	if !ok || len(attendees) != 1 {
		t.Fatalf("expected one attendee: %v", gotBody)
	}
	att := attendees[0].(map[string]any)
	if att["type"] != "required" {
		t.Fatalf("attendee should be required: %v", att)
	}
	body := gotBody["body"].(map[string]any)
	if body["contentType"] != "HTML" {
		t.Fatalf("expected HTML body: %v", body)
	}
}

func TestProviderErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"InvalidAuthenticationToken"}}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	_, err := c.CreateList(context.Background(), "bad", "Tasks for Client - Alice Nguyen")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", apiErr.StatusCode)
	}
}

func TestClientSafeForConcurrentUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"list-1"}`))
	}))
	defer srv.Close()

	c := NewClient(config.Provider{BaseURL: srv.URL})
	if c.HTTPClient == nil {
		t.Fatal("NewClient must initialize HTTPClient up front")
	}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.CreateList(context.Background(), "tok", "Tasks for Client - Alice Nguyen"); err != nil {
				t.Errorf("create list: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestProfileFallsBackToUPN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1","displayName":"Sam","userPrincipalName":"sam@org.example"}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	p, err := c.Profile(context.Background(), "tok")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.Email != "sam@org.example" {
		t.Fatalf("expected UPN fallback, got %q", p.Email)
	}
}
