package graph

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

	"caseflow/internal/config"
)

// Client is the HTTP implementation of Provider.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient creates a provider client with sane defaults. The returned client
// is shared across request handlers and must not be mutated after this point.
func NewClient(cfg config.Provider) *Client {
	return &Client{
		BaseURL:    cfg.BaseURL,
		Timeout:    15 * time.Second,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type wireDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type wireBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type wireEmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type wireAttendee struct {
	EmailAddress wireEmailAddress `json:"emailAddress"`
	Type         string           `json:"type"`
}

type wireEvent struct {
	ID        string         `json:"id,omitempty"`
	Subject   string         `json:"subject"`
	Body      *wireBody      `json:"body,omitempty"`
	Start     *wireDateTime  `json:"start,omitempty"`
	End       *wireDateTime  `json:"end,omitempty"`
	Attendees []wireAttendee `json:"attendees,omitempty"`
	Location  *struct {
		DisplayName string `json:"displayName"`
	} `json:"location,omitempty"`
	Organizer *struct {
		EmailAddress wireEmailAddress `json:"emailAddress"`
	} `json:"organizer,omitempty"`
}

func (c *Client) CreateList(ctx context.Context, token, name string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, token, http.MethodPost, "me/todo/lists", map[string]any{"displayName": name}, &resp)
	return resp.ID, err
}

func (c *Client) DeleteList(ctx context.Context, token, listID string) error {
	return c.do(ctx, token, http.MethodDelete, "me/todo/lists/"+url.PathEscape(listID), nil, nil)
}

func (c *Client) AddTodo(ctx context.Context, token, listID, title, dueDateTime string) (string, error) {
	body := map[string]any{
		"title": title,
		"dueDateTime": wireDateTime{
			DateTime: dueDateTime,
			TimeZone: "UTC",
		},
	}
	var resp struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("me/todo/lists/%s/tasks", url.PathEscape(listID))
	err := c.do(ctx, token, http.MethodPost, endpoint, body, &resp)
	return resp.ID, err
}

func (c *Client) PatchTodo(ctx context.Context, token, listID, todoID string, patch TodoPatch) error {
	body := map[string]any{}
	if patch.Title != nil {
		body["title"] = *patch.Title
	}
	if patch.DueDateTime != nil {
		body["dueDateTime"] = wireDateTime{DateTime: *patch.DueDateTime, TimeZone: "UTC"}
	}
	if patch.Status != nil {
		body["status"] = *patch.Status
	}
	endpoint := fmt.Sprintf("me/todo/lists/%s/tasks/%s", url.PathEscape(listID), url.PathEscape(todoID))
	return c.do(ctx, token, http.MethodPatch, endpoint, body, nil)
}

func (c *Client) DeleteTodo(ctx context.Context, token, listID, todoID string) error {
	endpoint := fmt.Sprintf("me/todo/lists/%s/tasks/%s", url.PathEscape(listID), url.PathEscape(todoID))
	return c.do(ctx, token, http.MethodDelete, endpoint, nil)
}

func (c *Client) AddEvent(ctx context.Context, token string, ev Event) (string, error) {
	we := wireEvent{
		Subject: ev.Subject,
		Body:    &wireBody{ContentType: "HTML", Content: ev.Body},
		Start:   &wireDateTime{DateTime: ev.Start, TimeZone: "UTC"},
		End:     &wireDateTime{DateTime: ev.End, TimeZone: "UTC"},
	}
	for _, a := range ev.Attendees {
		we.Attendees = append(we.Attendees, wireAttendee{
			EmailAddress: wireEmailAddress{Address: a.Email, Name: a.Name},
			Type:         "required",
		})
	}
	var resp struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, token, http.MethodPost, "me/events", we, &resp)
	return resp.ID, err
}

func (c *Client) PatchEvent(ctx context.Context, token, eventID string, patch EventPatch) error {
	body := map[string]any{}
	if patch.IsCancelled != nil {
		body["isCancelled"] = *patch.IsCancelled
	}
	return c.do(ctx, token, http.MethodPatch, "me/calendar/events/"+url.PathEscape(eventID), body, nil)
}

func (c *Client) CancelEvent(ctx context.Context, token, eventID, comment string) error {
	endpoint := fmt.Sprintf("me/events/%s/cancel", url.PathEscape(eventID))
	return c.do(ctx, token, http.MethodPost, endpoint, map[string]any{"comment": comment}, nil)
}

func (c *Client) DeleteEvent(ctx context.Context, token, eventID string) error {
	return c.do(ctx, token, http.MethodDelete, "me/calendar/events/"+url.PathEscape(eventID), nil)
}

func (c *Client) ListEvents(ctx context.Context, token string) ([]Event, error) {
	var resp struct {
		Value []wireEvent `json:"value"`
	}
	if err := c.do(ctx, token, http.MethodGet, "me/events", nil, &resp); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(resp.Value))
	for _, we := range resp.Value {
		ev := Event{ID: we.ID, Subject: we.Subject}
		if we.Start != nil {
			ev.Start = we.Start.DateTime
		}
		if we.End != nil {
			ev.End = we.End.DateTime
		}
		if we.Location != nil {
			ev.Location = we.Location.DisplayName
		}
		if we.Organizer != nil {
			ev.Organizer = we.Organizer.EmailAddress.Name
		}
		events = append(events, ev)
	}
	return events, nil
}

func (c *Client) Profile(ctx context.Context, token string) (UserProfile, error) {
	var resp UserProfile
	err := c.do(ctx, token, http.MethodGet, "me", nil, &resp)
	if err == nil && resp.Email == "" {
		resp.Email = resp.UPN
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, token, method, endpoint string, body any, out ...any) error {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}
	u := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if len(out) > 0 && out[0] != nil {
		return json.NewDecoder(resp.Body).Decode(out[0])
	}
	return nil
}
