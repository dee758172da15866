package repo

import (
	"context"
	"database/sql"
	"errors"

	"caseflow/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

const clientColumns = `id,first_name,last_name,email,COALESCE(phone,''),COALESCE(address,''),region,reference_number,dob,referral_date,created_at,updated_at`

func scanClient(scan func(dest ...any) error) (domain.Client, error) {
	var c domain.Client
	err := scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address,
		&c.Region, &c.ReferenceNumber, &c.DOB, &c.ReferralDate, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) InsertClient(ctx context.Context, c domain.Client) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO clients(id,first_name,last_name,email,phone,address,region,reference_number,dob,referral_date,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.FirstName, c.LastName, c.Email, nullable(c.Phone), nullable(c.Address),
		c.Region, c.ReferenceNumber, c.DOB, c.ReferralDate, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetClient(ctx context.Context, id string) (domain.Client, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=?`, id)
	return scanClient(row.Scan)
}

// GetClientByEmail looks up a client by unique email; excludeID skips a row
// (used for update conflict checks against other clients).
func (r Repo) GetClientByEmail(ctx context.Context, email, excludeID string) (domain.Client, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE email=? AND id != ?`, email, excludeID)
	return scanClient(row.Scan)
}

func (r Repo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+clientColumns+`,
(SELECT count(*) FROM cases WHERE cases.client_id=clients.id) AS case_count
FROM clients ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address,
			&c.Region, &c.ReferenceNumber, &c.DOB, &c.ReferralDate, &c.CreatedAt, &c.UpdatedAt, &c.CaseCount); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateClient(ctx context.Context, c domain.Client) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE clients SET first_name=?, last_name=?, email=?, phone=?, address=?, region=?, reference_number=?, dob=?, referral_date=?, updated_at=? WHERE id=?`,
		c.FirstName, c.LastName, c.Email, nullable(c.Phone), nullable(c.Address),
		c.Region, c.ReferenceNumber, c.DOB, c.ReferralDate, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteClient(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM clients WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
