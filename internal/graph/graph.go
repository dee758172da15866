// Package graph wraps the external calendar/to-do provider's REST API
// (Microsoft Graph shaped): to-do lists, to-do tasks, and calendar events
// under the /me namespace, bearer-token authenticated. Calls are synchronous
// request/response with no batching or retries; a transient provider failure
// surfaces immediately to the caller.
package graph

import (
	"context"
	"fmt"
)

// Event is the reduced calendar event shape the backend reads and writes.
type Event struct {
	ID        string
	Subject   string
	Body      string
	Start     string
	End       string
	Location  string
	Organizer string
	Attendees []Attendee
}

type Attendee struct {
	Email string
	Name  string
}

// TodoPatch is a partial update of a provider to-do item. Nil fields are
// omitted from the request body.
type TodoPatch struct {
	Title       *string
	DueDateTime *string
	Status      *string // "completed" or "notStarted"
}

// EventPatch is a partial update of a provider calendar event.
type EventPatch struct {
	IsCancelled *bool
}

// Provider is the narrow contract the orchestrators consume. The HTTP client
// below implements it; tests substitute a recording fake.
type Provider interface {
	CreateList(ctx context.Context, token, name string) (string, error)
	DeleteList(ctx context.Context, token, listID string) error
	AddTodo(ctx context.Context, token, listID, title, dueDateTime string) (string, error)
	PatchTodo(ctx context.Context, token, listID, todoID string, patch TodoPatch) error
	DeleteTodo(ctx context.Context, token, listID, todoID string) error
	AddEvent(ctx context.Context, token string, ev Event) (string, error)
	PatchEvent(ctx context.Context, token, eventID string, patch EventPatch) error
	CancelEvent(ctx context.Context, token, eventID, comment string) error
	DeleteEvent(ctx context.Context, token, eventID string) error
	ListEvents(ctx context.Context, token string) ([]Event, error)
	Profile(ctx context.Context, token string) (UserProfile, error)
}

// UserProfile is the identity returned by the provider's /me endpoint.
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"displayName"`
	Email string `json:"mail"`
	UPN   string `json:"userPrincipalName"`
}

// APIError wraps non-2xx provider responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider error: status=%d body=%s", e.StatusCode, e.Body)
}
