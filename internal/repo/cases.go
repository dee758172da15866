package repo

import (
	"context"
	"database/sql"
	"strings"

	"caseflow/internal/domain"
)

const caseColumns = `id,client_id,case_manager_id,staff_id,service_id,region,status,start_at,closed_at,created_at,updated_at`

func scanCase(scan func(dest ...any) error) (domain.Case, error) {
	var c domain.Case
	var closedAt sql.NullString
	err := scan(&c.ID, &c.ClientID, &c.CaseManagerID, &c.StaffID, &c.ServiceID,
		&c.Region, &c.Status, &c.StartAt, &closedAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if closedAt.Valid {
		c.ClosedAt = &closedAt.String
	}
	return c, err
}

func (r Repo) InsertCaseTx(ctx context.Context, tx *sql.Tx, c domain.Case) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO cases(id,client_id,case_manager_id,staff_id,service_id,region,status,start_at,closed_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.ClientID, c.CaseManagerID, c.StaffID, c.ServiceID, c.Region, c.Status,
		c.StartAt, nullableStringPtr(c.ClosedAt), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCase(ctx context.Context, id string) (domain.Case, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id=?`, id)
	return scanCase(row.Scan)
}

type CaseFilters struct {
	ClientID string
	Status   string
}

func (r Repo) ListCases(ctx context.Context, f CaseFilters) ([]domain.Case, error) {
	var clauses []string
	var args []any
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + caseColumns + `,
(SELECT count(*) FROM tasks WHERE tasks.case_id=cases.id) AS task_count
FROM cases ` + where + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Case
	for rows.Next() {
		var c domain.Case
		var closedAt sql.NullString
		if err := rows.Scan(&c.ID, &c.ClientID, &c.CaseManagerID, &c.StaffID, &c.ServiceID,
			&c.Region, &c.Status, &c.StartAt, &closedAt, &c.CreatedAt, &c.UpdatedAt, &c.TaskCount); err != nil {
			return nil, err
		}
		if closedAt.Valid {
			c.ClosedAt = &closedAt.String
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateCaseStatus(ctx context.Context, id, status string, closedAt *string, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE cases SET status=?, closed_at=?, updated_at=? WHERE id=?`,
		status, nullableStringPtr(closedAt), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteCaseTx(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE case_id=?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cases WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
