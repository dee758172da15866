package engine

import (
	"context"
	"fmt"
	"sync"

	"caseflow/internal/graph"
)

// fakeProvider records every provider call and can be told to fail the Nth
// call of a given method.
type fakeProvider struct {
	mu           sync.Mutex
	calls        []string
	counts       map[string]int
	failAt       map[string]int // method -> call number (1-based) that fails
	seq          int
	events       []graph.Event
	eventPatches []graph.EventPatch
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		counts: map[string]int{},
		failAt: map[string]int{},
	}
}

func (f *fakeProvider) step(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[method]++
	f.calls = append(f.calls, method)
	if n, ok := f.failAt[method]; ok && f.counts[method] == n {
		return &graph.APIError{StatusCode: 502, Body: "upstream unavailable"}
	}
	return nil
}

func (f *fakeProvider) nextID(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeProvider) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[method]
}

func (f *fakeProvider) CreateList(ctx context.Context, token, name string) (string, error) {
	if err := f.step("CreateList"); err != nil {
		return "", err
	}
	return f.nextID("list"), nil
}

func (f *fakeProvider) DeleteList(ctx context.Context, token, listID string) error {
	return f.step("DeleteList")
}

func (f *fakeProvider) AddTodo(ctx context.Context, token, listID, title, dueDateTime string) (string, error) {
	if err := f.step("AddTodo"); err != nil {
		return "", err
	}
	return f.nextID("todo"), nil
}

func (f *fakeProvider) PatchTodo(ctx context.Context, token, listID, todoID string, patch graph.TodoPatch) error {
	return f.step("PatchTodo")
}

func (f *fakeProvider) DeleteTodo(ctx context.Context, token, listID, todoID string) error {
	return f.step("DeleteTodo")
}

func (f *fakeProvider) AddEvent(ctx context.Context, token string, ev graph.Event) (string, error) {
	if err := f.step("AddEvent"); err != nil {
		return "", err
	}
	id := f.nextID("event")
	f.mu.Lock()
	ev.ID = id
	f.events = append(f.events, ev)
	f.mu.Unlock()
	return id, nil
}

func (f *fakeProvider) PatchEvent(ctx context.Context, token, eventID string, patch graph.EventPatch) error {
	if err := f.step("PatchEvent"); err != nil {
		return err
	}
	f.mu.Lock()
	f.eventPatches = append(f.eventPatches, patch)
	f.mu.Unlock()
	return nil
}

func (f *fakeProvider) CancelEvent(ctx context.Context, token, eventID, comment string) error {
	return f.step("CancelEvent")
}

func (f *fakeProvider) DeleteEvent(ctx context.Context, token, eventID string) error {
	return f.step("DeleteEvent")
}

func (f *fakeProvider) ListEvents(ctx context.Context, token string) ([]graph.Event, error) {
	if err := f.step("ListEvents"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]graph.Event(nil), f.events...), nil
}

func (f *fakeProvider) Profile(ctx context.Context, token string) (graph.UserProfile, error) {
	if err := f.step("Profile"); err != nil {
		return graph.UserProfile{}, err
	}
	return graph.UserProfile{ID: "user-1", Name: "Test Staff", Email: "staff@example.org"}, nil
}
