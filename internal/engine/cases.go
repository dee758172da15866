package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caseflow/internal/domain"
	"caseflow/internal/events"
	"caseflow/internal/graph"
	"caseflow/internal/repo"
)

type CaseCreateOptions struct {
	ClientID      string
	CaseManagerID string
	StaffID       string
	ServiceID     string
	Region        string
	Status        string
	StartAt       string
	ActorID       string
}

// listName is the provider to-do list shared by all of a case's tasks.
func listName(c domain.Client) string {
	return fmt.Sprintf("Tasks for Client - %s %s", c.FirstName, c.LastName)
}

// calendarEvent builds the one-hour event mirrored for a task, with the
// client as the sole required attendee.
func calendarEvent(description, due string, client domain.Client) (graph.Event, error) {
	start, err := time.Parse(timeFormat, due)
	if err != nil {
		return graph.Event{}, fmt.Errorf("invalid due date %q: %w", due, ErrBadRequest)
	}
	name := client.FirstName + " " + client.LastName
	return graph.Event{
		Subject:   description,
		Body:      fmt.Sprintf("%s for client - %s", description, name),
		Start:     start.UTC().Format(timeFormat),
		End:       start.UTC().Add(time.Hour).Format(timeFormat),
		Attendees: []graph.Attendee{{Email: client.Email, Name: name}},
	}, nil
}

// deriveTasks expands the service template into the case's initial tasks.
// A zero offset skips its task; the offsets are read once, here, so later
// edits to the service never rewrite existing cases.
func (e Engine) deriveTasks(caseID, staffID string, start time.Time, svc domain.Service) []domain.Task {
	now := e.nowString()
	task := func(description string, days int) domain.Task {
		return domain.Task{
			ID:          newID(),
			CaseID:      caseID,
			StaffID:     staffID,
			Description: description,
			DueDate:     start.AddDate(0, 0, days).UTC().Format(timeFormat),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	var tasks []domain.Task
	if svc.InitialContactDays > 0 {
		tasks = append(tasks, task("Initial contact", svc.InitialContactDays))
	}
	if svc.IntakeInterviewDays > 0 {
		tasks = append(tasks, task("Intake Interview", svc.IntakeInterviewDays))
	}
	if svc.ActionPlanWeeks > 0 {
		tasks = append(tasks, task("Employment Action Plan (EAP)", svc.ActionPlanWeeks*7))
	}
	return tasks
}

// CreateCase persists the case and its derived tasks, then mirrors the tasks
// into the provider: one to-do list for the case, plus a to-do item and a
// calendar event per task. If any provider call fails mid-mirror, the created
// provider resources are rolled back best-effort and the persisted mirror ids
// cleared, so the case survives with its tasks readable as mirror-pending, and
// the provider error is returned.
func (e Engine) CreateCase(ctx context.Context, opts CaseCreateOptions, token string) (domain.Case, error) {
	if err := requireToken(token); err != nil {
		return domain.Case{}, err
	}
	status := opts.Status
	if status == "" {
		status = domain.StatusOpen
	}
	if !domain.ValidStatus(status) {
		return domain.Case{}, fmt.Errorf("invalid status %q: %w", status, ErrBadRequest)
	}
	start, err := parseDate(opts.StartAt)
	if err != nil {
		return domain.Case{}, err
	}
	client, err := e.GetClient(ctx, opts.ClientID)
	if err != nil {
		return domain.Case{}, err
	}
	svc, err := e.GetService(ctx, opts.ServiceID)
	if err != nil {
		return domain.Case{}, err
	}

	now := e.nowString()
	c := domain.Case{
		ID:            newID(),
		ClientID:      client.ID,
		CaseManagerID: opts.CaseManagerID,
		StaffID:       opts.StaffID,
		ServiceID:     svc.ID,
		Region:        opts.Region,
		Status:        status,
		StartAt:       start.Format(timeFormat),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status == domain.StatusClosed {
		c.ClosedAt = &now
	}
	tasks := e.deriveTasks(c.ID, c.StaffID, start, svc)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Case{}, err
	}
	if err := e.Repo.InsertCaseTx(ctx, tx, c); err != nil {
		tx.Rollback()
		return domain.Case{}, err
	}
	if err := e.Repo.InsertTasksTx(ctx, tx, tasks); err != nil {
		tx.Rollback()
		return domain.Case{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Case{}, err
	}

	if len(tasks) > 0 {
		tasks, err = e.mirrorTasks(ctx, token, c.ID, client, tasks)
		if err != nil {
			return domain.Case{}, err
		}
	}

	e.appendEvent(ctx, "case.created", "case", c.ID, opts.ActorID, events.EventPayload{
		"client_id":  c.ClientID,
		"service_id": c.ServiceID,
		"tasks":      len(tasks),
	})
	c.Client = &client
	c.Service = &svc
	c.Tasks = tasks
	return c, nil
}

// mirrorTasks creates the case list and mirrors each task, persisting
// provider ids as it goes. On failure it compensates and returns the upstream
// error.
func (e Engine) mirrorTasks(ctx context.Context, token, caseID string, client domain.Client, tasks []domain.Task) ([]domain.Task, error) {
	listID, err := e.Graph.CreateList(ctx, token, listName(client))
	if err != nil {
		e.Log.Warn("case list creation failed, tasks left mirror-pending", "case", caseID, "err", err)
		return nil, err
	}
	var eventIDs []string
	fail := func(cause error) ([]domain.Task, error) {
		e.compensateMirrors(ctx, token, caseID, listID, eventIDs)
		return nil, cause
	}
	for i, t := range tasks {
		todoID, err := e.Graph.AddTodo(ctx, token, listID, t.Description, t.DueDate)
		if err != nil {
			return fail(err)
		}
		ev, err := calendarEvent(t.Description, t.DueDate, client)
		if err != nil {
			return fail(err)
		}
		eventID, err := e.Graph.AddEvent(ctx, token, ev)
		if err != nil {
			return fail(err)
		}
		eventIDs = append(eventIDs, eventID)
		t.ListID = &listID
		t.TodoID = &todoID
		t.EventID = &eventID
		t.UpdatedAt = e.nowString()
		if err := e.Repo.UpdateTask(ctx, t); err != nil {
			return fail(err)
		}
		tasks[i] = t
	}
	return tasks, nil
}

// compensateMirrors unwinds a partial mirror: delete created events, delete
// the list (removing its to-dos), and null the persisted mirror ids. Every
// step is best-effort.
func (e Engine) compensateMirrors(ctx context.Context, token, caseID, listID string, eventIDs []string) {
	ops := make([]mirrorOp, 0, len(eventIDs)+1)
	for _, id := range eventIDs {
		id := id
		ops = append(ops, mirrorOp{kind: "event", id: id, run: func(ctx context.Context) error {
			return e.Graph.DeleteEvent(ctx, token, id)
		}})
	}
	ops = append(ops, mirrorOp{kind: "list", id: listID, run: func(ctx context.Context) error {
		return e.Graph.DeleteList(ctx, token, listID)
	}})
	e.bestEffort(ctx, ops)
	if err := e.Repo.ClearTaskMirrors(ctx, caseID, e.nowString()); err != nil {
		e.Log.Error("clearing task mirrors failed", "case", caseID, "err", err)
	}
}

func (e Engine) ListCases(ctx context.Context, f repo.CaseFilters) ([]domain.Case, error) {
	if f.Status != "" && !domain.ValidStatus(f.Status) {
		return nil, fmt.Errorf("invalid status %q: %w", f.Status, ErrBadRequest)
	}
	return e.Repo.ListCases(ctx, f)
}

// GetCase returns the case with its client, service, assigned staff and
// tasks embedded.
func (e Engine) GetCase(ctx context.Context, id string) (domain.Case, error) {
	c, err := e.Repo.GetCase(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return c, fmt.Errorf("case %s: %w", id, repo.ErrNotFound)
	}
	if err != nil {
		return c, err
	}
	if client, err := e.Repo.GetClient(ctx, c.ClientID); err == nil {
		c.Client = &client
	}
	if svc, err := e.Repo.GetService(ctx, c.ServiceID); err == nil {
		c.Service = &svc
	}
	if staff, err := e.Repo.GetUser(ctx, c.StaffID); err == nil {
		c.Staff = &staff
	}
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{CaseID: c.ID})
	if err != nil {
		return c, err
	}
	c.Tasks = tasks
	c.TaskCount = len(tasks)
	return c, nil
}

type CaseUpdateOptions struct {
	Status  string
	Tasks   []TaskCompletionPatch
	ActorID string
}

type TaskCompletionPatch struct {
	ID         string
	IsComplete bool
}

// UpdateCase changes the case status and applies per-task completion patches.
// Moving to CLOSED stamps closed_at; any other status clears it, so repeated
// updates are idempotent. Task completion is persisted locally first; the
// matching provider to-do/event sync is attempted per task and a sync failure
// is logged without aborting the remaining patches.
func (e Engine) UpdateCase(ctx context.Context, id string, opts CaseUpdateOptions, token string) (domain.Case, error) {
	c, err := e.GetCase(ctx, id)
	if err != nil {
		return c, err
	}

	status := c.Status
	if opts.Status != "" {
		if !domain.ValidStatus(opts.Status) {
			return c, fmt.Errorf("invalid status %q: %w", opts.Status, ErrBadRequest)
		}
		status = opts.Status
	}
	now := e.nowString()
	var closedAt *string
	if status == domain.StatusClosed {
		if c.ClosedAt != nil {
			closedAt = c.ClosedAt
		} else {
			closedAt = &now
		}
	}
	if err := e.Repo.UpdateCaseStatus(ctx, id, status, closedAt, now); err != nil {
		return c, err
	}

	byID := make(map[string]domain.Task, len(c.Tasks))
	for _, t := range c.Tasks {
		byID[t.ID] = t
	}
	for _, patch := range opts.Tasks {
		t, ok := byID[patch.ID]
		if !ok {
			return c, fmt.Errorf("task %s does not belong to case %s: %w", patch.ID, id, repo.ErrNotFound)
		}
		var completedAt *string
		if patch.IsComplete {
			completedAt = &now
		}
		if err := e.Repo.UpdateTaskCompletion(ctx, t.ID, patch.IsComplete, completedAt, now); err != nil {
			return c, err
		}
		e.syncTaskMirror(ctx, token, t, patch.IsComplete)
	}

	e.appendEvent(ctx, "case.updated", "case", id, opts.ActorID, events.EventPayload{"status": status})
	return e.GetCase(ctx, id)
}

// syncTaskMirror reflects a completion change onto the provider to-do and
// calendar event. Failures are logged and swallowed so one unreachable mirror
// never blocks the rest of a batch update.
func (e Engine) syncTaskMirror(ctx context.Context, token string, t domain.Task, isComplete bool) {
	if token == "" {
		return
	}
	if t.ListID != nil && t.TodoID != nil {
		status := "notStarted"
		if isComplete {
			status = "completed"
		}
		e.bestEffort(ctx, []mirrorOp{{kind: "todo", id: *t.TodoID, run: func(ctx context.Context) error {
			return e.Graph.PatchTodo(ctx, token, *t.ListID, *t.TodoID, graph.TodoPatch{Status: &status})
		}}})
	}
	if t.EventID != nil {
		cancelled := isComplete
		e.bestEffort(ctx, []mirrorOp{{kind: "event", id: *t.EventID, run: func(ctx context.Context) error {
			return e.Graph.PatchEvent(ctx, token, *t.EventID, graph.EventPatch{IsCancelled: &cancelled})
		}}})
	}
}

// DeleteCase removes the case's provider resources best-effort, then deletes
// the case and its tasks in one transaction. Provider failures never leave
// the local rows behind.
func (e Engine) DeleteCase(ctx context.Context, id, token, actorID string) error {
	if err := requireToken(token); err != nil {
		return err
	}
	c, err := e.GetCase(ctx, id)
	if err != nil {
		return err
	}

	var ops []mirrorOp
	seenList := ""
	for _, t := range c.Tasks {
		if t.EventID != nil {
			id := *t.EventID
			ops = append(ops, mirrorOp{kind: "event", id: id, run: func(ctx context.Context) error {
				return e.Graph.DeleteEvent(ctx, token, id)
			}})
		}
		if t.ListID != nil && seenList == "" {
			seenList = *t.ListID
		}
	}
	if seenList != "" {
		// deleting the list removes its to-do items with it
		listID := seenList
		ops = append(ops, mirrorOp{kind: "list", id: listID, run: func(ctx context.Context) error {
			return e.Graph.DeleteList(ctx, token, listID)
		}})
	}
	e.bestEffort(ctx, ops)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteCaseTx(ctx, tx, id); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.appendEvent(ctx, "case.deleted", "case", id, actorID, events.EventPayload{})
	return nil
}

// CalendarEvent is the reduced projection served to the dashboard calendar.
type CalendarEvent struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Location  string `json:"location"`
	Organizer string `json:"organizer"`
}

// CalendarEvents lists the signed-in user's provider calendar, reduced to the
// fields the dashboard renders.
func (e Engine) CalendarEvents(ctx context.Context, token string) ([]CalendarEvent, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	items, err := e.Graph.ListEvents(ctx, token)
	if err != nil {
		return nil, err
	}
	res := make([]CalendarEvent, 0, len(items))
	for _, ev := range items {
		ce := CalendarEvent{
			ID:        ev.ID,
			Title:     ev.Subject,
			StartDate: ev.Start,
			EndDate:   ev.End,
			Location:  ev.Location,
			Organizer: ev.Organizer,
		}
		if ce.Location == "" {
			ce.Location = "No location"
		}
		if ce.Organizer == "" {
			ce.Organizer = "Unknown organizer"
		}
		res = append(res, ce)
	}
	return res, nil
}
