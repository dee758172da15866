package engine

import (
	"context"
	"errors"
	"fmt"

	"caseflow/internal/domain"
	"caseflow/internal/events"
	"caseflow/internal/graph"
	"caseflow/internal/repo"
)

type TaskCreateOptions struct {
	CaseID      string
	StaffID     string
	Description string
	DueDate     string
	ActorID     string
}

// CreateTask adds a task to an existing case and mirrors it immediately. The
// provider to-do joins the case's existing list when a sibling task already
// carries one; otherwise a fresh list is created first. The local row is only
// written once all provider resources exist, so a provider failure leaves no
// half-mirrored task behind.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions, token string) (domain.Task, error) {
	if err := requireToken(token); err != nil {
		return domain.Task{}, err
	}
	c, err := e.Repo.GetCase(ctx, opts.CaseID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Task{}, fmt.Errorf("case %s: %w", opts.CaseID, repo.ErrNotFound)
	}
	if err != nil {
		return domain.Task{}, err
	}
	client, err := e.GetClient(ctx, c.ClientID)
	if err != nil {
		return domain.Task{}, err
	}
	due, err := parseDate(opts.DueDate)
	if err != nil {
		return domain.Task{}, err
	}
	dueDate := due.Format(timeFormat)

	createdList := false
	listID, err := e.Repo.CaseListID(ctx, c.ID)
	if errors.Is(err, repo.ErrNotFound) {
		listID, err = e.Graph.CreateList(ctx, token, listName(client))
		createdList = err == nil
	}
	if err != nil {
		return domain.Task{}, err
	}

	cleanup := func(todoID, eventID string) {
		var ops []mirrorOp
		if eventID != "" {
			ops = append(ops, mirrorOp{kind: "event", id: eventID, run: func(ctx context.Context) error {
				return e.Graph.DeleteEvent(ctx, token, eventID)
			}})
		}
		if todoID != "" && !createdList {
			ops = append(ops, mirrorOp{kind: "todo", id: todoID, run: func(ctx context.Context) error {
				return e.Graph.DeleteTodo(ctx, token, listID, todoID)
			}})
		}
		if createdList {
			ops = append(ops, mirrorOp{kind: "list", id: listID, run: func(ctx context.Context) error {
				return e.Graph.DeleteList(ctx, token, listID)
			}})
		}
		e.bestEffort(ctx, ops)
	}

	todoID, err := e.Graph.AddTodo(ctx, token, listID, opts.Description, dueDate)
	if err != nil {
		cleanup("", "")
		return domain.Task{}, err
	}
	ev, err := calendarEvent(opts.Description, dueDate, client)
	if err != nil {
		cleanup(todoID, "")
		return domain.Task{}, err
	}
	eventID, err := e.Graph.AddEvent(ctx, token, ev)
	if err != nil {
		cleanup(todoID, "")
		return domain.Task{}, err
	}

	now := e.nowString()
	t := domain.Task{
		ID:          newID(),
		CaseID:      c.ID,
		StaffID:     opts.StaffID,
		Description: opts.Description,
		DueDate:     dueDate,
		ListID:      &listID,
		TodoID:      &todoID,
		EventID:     &eventID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.StaffID == "" {
		t.StaffID = c.StaffID
	}
	if err := e.Repo.InsertTask(ctx, t); err != nil {
		cleanup(todoID, eventID)
		return domain.Task{}, err
	}
	e.appendEvent(ctx, "task.created", "task", t.ID, opts.ActorID, events.EventPayload{"case_id": c.ID})
	return t, nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return t, fmt.Errorf("task %s: %w", id, repo.ErrNotFound)
	}
	return t, err
}

func (e Engine) ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error) {
	return e.Repo.ListTasks(ctx, f)
}

// ListTasksByUser returns the tasks assigned to a staff member.
func (e Engine) ListTasksByUser(ctx context.Context, userID string) ([]domain.Task, error) {
	if _, err := e.Repo.GetUser(ctx, userID); errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", userID, repo.ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	return e.Repo.ListTasks(ctx, repo.TaskFilters{StaffID: userID})
}

type TaskUpdateOptions struct {
	Description *string
	DueDate     *string
	IsComplete  *bool
	ActorID     string
}

// UpdateTask edits a task and keeps its calendar event in step: completing
// the task, or changing its description or due date, cancels the existing
// event; if the task stays (or becomes) pending a fresh event is created so a
// pending task always carries one. The to-do mirror is patched last,
// best-effort. Event cancel/create failures propagate.
func (e Engine) UpdateTask(ctx context.Context, id string, opts TaskUpdateOptions, token string) (domain.Task, error) {
	if err := requireToken(token); err != nil {
		return domain.Task{}, err
	}
	t, err := e.GetTask(ctx, id)
	if err != nil {
		return t, err
	}
	c, err := e.Repo.GetCase(ctx, t.CaseID)
	if err != nil {
		return t, err
	}
	client, err := e.GetClient(ctx, c.ClientID)
	if err != nil {
		return t, err
	}

	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.DueDate != nil {
		due, err := parseDate(*opts.DueDate)
		if err != nil {
			return t, err
		}
		t.DueDate = due.Format(timeFormat)
	}
	if opts.IsComplete != nil {
		t.IsComplete = *opts.IsComplete
	}

	now := e.nowString()
	completing := opts.IsComplete != nil && *opts.IsComplete
	editing := opts.Description != nil || opts.DueDate != nil
	if completing || editing {
		if t.EventID != nil {
			if err := e.Graph.CancelEvent(ctx, token, *t.EventID, "Task updated"); err != nil {
				return t, err
			}
			t.EventID = nil
		}
		if opts.IsComplete != nil && !*opts.IsComplete {
			if err := e.recreateEvent(ctx, token, &t, client); err != nil {
				return t, err
			}
		}
	} else if t.EventID == nil {
		// a pending task always ends up with a mirrored event
		if err := e.recreateEvent(ctx, token, &t, client); err != nil {
			return t, err
		}
	}

	if t.IsComplete {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	t.UpdatedAt = now
	if err := e.Repo.UpdateTask(ctx, t); err != nil {
		return t, err
	}

	if t.ListID != nil && t.TodoID != nil {
		patch := graph.TodoPatch{Title: &t.Description}
		if opts.DueDate != nil {
			patch.DueDateTime = &t.DueDate
		}
		status := "notStarted"
		if t.IsComplete {
			status = "completed"
		}
		patch.Status = &status
		e.bestEffort(ctx, []mirrorOp{{kind: "todo", id: *t.TodoID, run: func(ctx context.Context) error {
			return e.Graph.PatchTodo(ctx, token, *t.ListID, *t.TodoID, patch)
		}}})
	}

	e.appendEvent(ctx, "task.updated", "task", t.ID, opts.ActorID, events.EventPayload{"is_complete": t.IsComplete})
	return t, nil
}

func (e Engine) recreateEvent(ctx context.Context, token string, t *domain.Task, client domain.Client) error {
	ev, err := calendarEvent(t.Description, t.DueDate, client)
	if err != nil {
		return err
	}
	eventID, err := e.Graph.AddEvent(ctx, token, ev)
	if err != nil {
		return err
	}
	t.EventID = &eventID
	return nil
}

// DeleteTask removes the provider mirrors best-effort, then the local row.
func (e Engine) DeleteTask(ctx context.Context, id, token, actorID string) error {
	if err := requireToken(token); err != nil {
		return err
	}
	t, err := e.GetTask(ctx, id)
	if err != nil {
		return err
	}
	var ops []mirrorOp
	if t.ListID != nil && t.TodoID != nil {
		ops = append(ops, mirrorOp{kind: "todo", id: *t.TodoID, run: func(ctx context.Context) error {
			return e.Graph.DeleteTodo(ctx, token, *t.ListID, *t.TodoID)
		}})
	}
	if t.EventID != nil {
		ops = append(ops, mirrorOp{kind: "event", id: *t.EventID, run: func(ctx context.Context) error {
			return e.Graph.DeleteEvent(ctx, token, *t.EventID)
		}})
	}
	e.bestEffort(ctx, ops)
	if err := e.Repo.DeleteTask(ctx, id); err != nil {
		return err
	}
	e.appendEvent(ctx, "task.deleted", "task", id, actorID, events.EventPayload{"case_id": t.CaseID})
	return nil
}
