package caseflowsdk

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

// Client is a minimal Caseflow HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Person is the API client (person) model.
type Person struct {
	ID              string `json:"id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	Address         string `json:"address,omitempty"`
	Region          string `json:"region"`
	ReferenceNumber int    `json:"reference_number"`
	DOB             string `json:"dob"`
	ReferralDate    string `json:"referral_date"`
	CaseCount       int    `json:"case_count,omitempty"`
}

// Service is a case-type template.
type Service struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	InitialContactDays  int    `json:"initial_contact_days"`
	IntakeInterviewDays int    `json:"intake_interview_days"`
	ActionPlanWeeks     int    `json:"action_plan_weeks"`
	MonthlyContact      bool   `json:"monthly_contact"`
	MonthlyReports      bool   `json:"monthly_reports"`
}

// Case is the API case model.
type Case struct {
	ID            string  `json:"id"`
	ClientID      string  `json:"client_id"`
	CaseManagerID string  `json:"case_manager_id"`
	StaffID       string  `json:"staff_id"`
	ServiceID     string  `json:"service_id"`
	Region        string  `json:"region"`
	Status        string  `json:"status"`
	StartAt       string  `json:"start_at"`
	ClosedAt      *string `json:"closed_at,omitempty"`
	Client        *Person `json:"client,omitempty"`
	Tasks         []Task  `json:"tasks,omitempty"`
}

// Task is the API task model.
type Task struct {
	ID          string  `json:"id"`
	CaseID      string  `json:"case_id"`
	StaffID     string  `json:"staff_id"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date"`
	IsComplete  bool    `json:"is_complete"`
	CompletedAt *string `json:"completed_at,omitempty"`
	ListID      *string `json:"list_id,omitempty"`
	TodoID      *string `json:"todo_id,omitempty"`
	EventID     *string `json:"event_id,omitempty"`
}

// User is a staff account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// CalendarEvent is the reduced calendar projection.
type CalendarEvent struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Location  string `json:"location"`
	Organizer string `json:"organizer"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) ListClients(ctx context.Context) ([]Person, error) {
	var resp []Person
	err := c.do(ctx, http.MethodGet, "client", nil, &resp)
	return resp, err
}

func (c *Client) GetClient(ctx context.Context, id string) (Person, error) {
	var resp Person
	err := c.do(ctx, http.MethodGet, "client/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) CreateClient(ctx context.Context, p Person) (Person, error) {
	var resp Person
	err := c.do(ctx, http.MethodPost, "client", p, &resp)
	return resp, err
}

func (c *Client) DeleteClient(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "client/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	var resp []Service
	err := c.do(ctx, http.MethodGet, "service", nil, &resp)
	return resp, err
}

func (c *Client) CreateService(ctx context.Context, s Service) (Service, error) {
	var resp Service
	err := c.do(ctx, http.MethodPost, "service", s, &resp)
	return resp, err
}

// ListCases returns cases, optionally filtered by status.
func (c *Client) ListCases(ctx context.Context, status string) ([]Case, error) {
	endpoint := "case"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Case
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) GetCase(ctx context.Context, id string) (Case, error) {
	var resp Case
	err := c.do(ctx, http.MethodGet, "case/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateCase opens a case; the backend derives and mirrors its initial tasks.
func (c *Client) CreateCase(ctx context.Context, clientID, caseManagerID, staffID, serviceID, region, startAt string) (Case, error) {
	body := map[string]any{
		"client_id":       clientID,
		"case_manager_id": caseManagerID,
		"staff_id":        staffID,
		"service_id":      serviceID,
		"region":          region,
		"start_at":        startAt,
	}
	var resp Case
	err := c.do(ctx, http.MethodPost, "case", body, &resp)
	return resp, err
}

// UpdateCaseStatus sets the case status.
func (c *Client) UpdateCaseStatus(ctx context.Context, id, status string) (Case, error) {
	var resp Case
	err := c.do(ctx, http.MethodPatch, "case/"+url.PathEscape(id), map[string]any{"status": status}, &resp)
	return resp, err
}

func (c *Client) DeleteCase(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "case/"+url.PathEscape(id), nil, nil)
}

// CalendarEvents lists the signed-in user's calendar.
func (c *Client) CalendarEvents(ctx context.Context) ([]CalendarEvent, error) {
	var resp []CalendarEvent
	err := c.do(ctx, http.MethodGet, "case/events", nil, &resp)
	return resp, err
}

func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "task", nil, &resp)
	return resp, err
}

func (c *Client) TasksByUser(ctx context.Context, userID string) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "task/user/"+url.PathEscape(userID), nil, &resp)
	return resp, err
}

func (c *Client) CreateTask(ctx context.Context, caseID, description, dueDate string) (Task, error) {
	body := map[string]any{
		"case_id":     caseID,
		"description": description,
		"due_date":    dueDate,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "task", body, &resp)
	return resp, err
}

// CompleteTask marks a task done (cancels its calendar event server-side).
func (c *Client) CompleteTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, "task/"+url.PathEscape(id), map[string]any{"is_complete": true}, &resp)
	return resp, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "task/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, "user", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
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

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
