package repo

import (
	"context"
	"database/sql"

	"caseflow/internal/domain"
)

const serviceColumns = `id,name,initial_contact_days,intake_interview_days,action_plan_weeks,monthly_contact,monthly_reports,created_at,updated_at`

func scanService(scan func(dest ...any) error) (domain.Service, error) {
	var s domain.Service
	err := scan(&s.ID, &s.Name, &s.InitialContactDays, &s.IntakeInterviewDays,
		&s.ActionPlanWeeks, &s.MonthlyContact, &s.MonthlyReports, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) InsertService(ctx context.Context, s domain.Service) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO services(id,name,initial_contact_days,intake_interview_days,action_plan_weeks,monthly_contact,monthly_reports,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		s.ID, s.Name, s.InitialContactDays, s.IntakeInterviewDays, s.ActionPlanWeeks,
		boolToInt(s.MonthlyContact), boolToInt(s.MonthlyReports), s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) GetService(ctx context.Context, id string) (domain.Service, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id=?`, id)
	return scanService(row.Scan)
}

func (r Repo) GetServiceByName(ctx context.Context, name, excludeID string) (domain.Service, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE name=? AND id != ?`, name, excludeID)
	return scanService(row.Scan)
}

func (r Repo) ListServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+serviceColumns+`,
(SELECT count(*) FROM cases WHERE cases.service_id=services.id) AS case_count
FROM services ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Service
	for rows.Next() {
		var s domain.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.InitialContactDays, &s.IntakeInterviewDays,
			&s.ActionPlanWeeks, &s.MonthlyContact, &s.MonthlyReports, &s.CreatedAt, &s.UpdatedAt, &s.CaseCount); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) UpdateService(ctx context.Context, s domain.Service) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE services SET name=?, initial_contact_days=?, intake_interview_days=?, action_plan_weeks=?, monthly_contact=?, monthly_reports=?, updated_at=? WHERE id=?`,
		s.Name, s.InitialContactDays, s.IntakeInterviewDays, s.ActionPlanWeeks,
		boolToInt(s.MonthlyContact), boolToInt(s.MonthlyReports), s.UpdatedAt, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteService(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM services WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
