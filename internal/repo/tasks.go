package repo

import (
	"context"
	"database/sql"
	"strings"

	"caseflow/internal/domain"
)

const taskColumns = `id,case_id,staff_id,description,due_date,is_complete,completed_at,list_id,todo_id,event_id,created_at,updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var completedAt, listID, todoID, eventID sql.NullString
	err := scan(&t.ID, &t.CaseID, &t.StaffID, &t.Description, &t.DueDate, &t.IsComplete,
		&completedAt, &listID, &todoID, &eventID, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	if listID.Valid {
		t.ListID = &listID.String
	}
	if todoID.Valid {
		t.TodoID = &todoID.String
	}
	if eventID.Valid {
		t.EventID = &eventID.String
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO tasks(id,case_id,staff_id,description,due_date,is_complete,completed_at,list_id,todo_id,event_id,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.CaseID, t.StaffID, t.Description, t.DueDate, boolToInt(t.IsComplete),
		nullableStringPtr(t.CompletedAt), nullableStringPtr(t.ListID), nullableStringPtr(t.TodoID),
		nullableStringPtr(t.EventID), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) InsertTasksTx(ctx context.Context, tx *sql.Tx, tasks []domain.Task) error {
	for _, t := range tasks {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,case_id,staff_id,description,due_date,is_complete,completed_at,list_id,todo_id,event_id,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
			t.ID, t.CaseID, t.StaffID, t.Description, t.DueDate, boolToInt(t.IsComplete),
			nullableStringPtr(t.CompletedAt), nullableStringPtr(t.ListID), nullableStringPtr(t.TodoID),
			nullableStringPtr(t.EventID), t.CreatedAt, t.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

type TaskFilters struct {
	CaseID  string
	StaffID string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.CaseID != "" {
		clauses = append(clauses, "case_id=?")
		args = append(args, f.CaseID)
	}
	if f.StaffID != "" {
		clauses = append(clauses, "staff_id=?")
		args = append(args, f.StaffID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// CaseListID returns the provider list id shared by the case's mirrored
// tasks, or ErrNotFound when no task of the case has been mirrored yet.
func (r Repo) CaseListID(ctx context.Context, caseID string) (string, error) {
	var listID string
	err := r.DB.QueryRowContext(ctx, `SELECT list_id FROM tasks WHERE case_id=? AND list_id IS NOT NULL ORDER BY created_at ASC, id ASC LIMIT 1`, caseID).Scan(&listID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return listID, err
}

func (r Repo) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET description=?, due_date=?, is_complete=?, completed_at=?, list_id=?, todo_id=?, event_id=?, updated_at=? WHERE id=?`,
		t.Description, t.DueDate, boolToInt(t.IsComplete), nullableStringPtr(t.CompletedAt),
		nullableStringPtr(t.ListID), nullableStringPtr(t.TodoID), nullableStringPtr(t.EventID),
		t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateTaskCompletion(ctx context.Context, id string, isComplete bool, completedAt *string, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET is_complete=?, completed_at=?, updated_at=? WHERE id=?`,
		boolToInt(isComplete), nullableStringPtr(completedAt), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearTaskMirrors nulls the provider ids persisted on the case's tasks.
// Used by saga compensation after a failed mirroring pass.
func (r Repo) ClearTaskMirrors(ctx context.Context, caseID string, updatedAt string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE tasks SET list_id=NULL, todo_id=NULL, event_id=NULL, updated_at=? WHERE case_id=?`, updatedAt, caseID)
	return err
}

func (r Repo) DeleteTask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
