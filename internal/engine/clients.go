package engine

import (
	"context"
	"errors"
	"fmt"

	"caseflow/internal/domain"
	"caseflow/internal/events"
	"caseflow/internal/repo"
)

type ClientCreateOptions struct {
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Address         string
	Region          string
	ReferenceNumber int
	DOB             string
	ReferralDate    string
	ActorID         string
}

func (e Engine) CreateClient(ctx context.Context, opts ClientCreateOptions) (domain.Client, error) {
	if _, err := e.Repo.GetClientByEmail(ctx, opts.Email, ""); err == nil {
		return domain.Client{}, fmt.Errorf("client with email %s already exists: %w", opts.Email, ErrConflict)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Client{}, err
	}
	dob, err := parseDate(opts.DOB)
	if err != nil {
		return domain.Client{}, err
	}
	referral, err := parseDate(opts.ReferralDate)
	if err != nil {
		return domain.Client{}, err
	}
	now := e.nowString()
	c := domain.Client{
		ID:              newID(),
		FirstName:       opts.FirstName,
		LastName:        opts.LastName,
		Email:           opts.Email,
		Phone:           opts.Phone,
		Address:         opts.Address,
		Region:          opts.Region,
		ReferenceNumber: opts.ReferenceNumber,
		DOB:             dob.Format(timeFormat),
		ReferralDate:    referral.Format(timeFormat),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.Repo.InsertClient(ctx, c); err != nil {
		return domain.Client{}, err
	}
	e.appendEvent(ctx, "client.created", "client", c.ID, opts.ActorID, events.EventPayload{"email": c.Email})
	return c, nil
}

func (e Engine) GetClient(ctx context.Context, id string) (domain.Client, error) {
	c, err := e.Repo.GetClient(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return c, fmt.Errorf("client %s: %w", id, repo.ErrNotFound)
	}
	return c, err
}

func (e Engine) ListClients(ctx context.Context) ([]domain.Client, error) {
	return e.Repo.ListClients(ctx)
}

type ClientUpdateOptions struct {
	FirstName       *string
	LastName        *string
	Email           *string
	Phone           *string
	Address         *string
	Region          *string
	ReferenceNumber *int
	DOB             *string
	ReferralDate    *string
	ActorID         string
}

func (e Engine) UpdateClient(ctx context.Context, id string, opts ClientUpdateOptions) (domain.Client, error) {
	c, err := e.GetClient(ctx, id)
	if err != nil {
		return c, err
	}
	if opts.Email != nil && *opts.Email != c.Email {
		if _, err := e.Repo.GetClientByEmail(ctx, *opts.Email, id); err == nil {
			return c, fmt.Errorf("client with email %s already exists: %w", *opts.Email, ErrConflict)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return c, err
		}
		c.Email = *opts.Email
	}
	if opts.FirstName != nil {
		c.FirstName = *opts.FirstName
	}
	if opts.LastName != nil {
		c.LastName = *opts.LastName
	}
	if opts.Phone != nil {
		c.Phone = *opts.Phone
	}
	if opts.Address != nil {
		c.Address = *opts.Address
	}
	if opts.Region != nil {
		c.Region = *opts.Region
	}
	if opts.ReferenceNumber != nil {
		c.ReferenceNumber = *opts.ReferenceNumber
	}
	if opts.DOB != nil {
		dob, err := parseDate(*opts.DOB)
		if err != nil {
			return c, err
		}
		c.DOB = dob.Format(timeFormat)
	}
	if opts.ReferralDate != nil {
		referral, err := parseDate(*opts.ReferralDate)
		if err != nil {
			return c, err
		}
		c.ReferralDate = referral.Format(timeFormat)
	}
	c.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateClient(ctx, c); err != nil {
		return c, err
	}
	e.appendEvent(ctx, "client.updated", "client", c.ID, opts.ActorID, events.EventPayload{})
	return c, nil
}

// DeleteClient refuses while any of the client's cases is not CLOSED; closed
// history is removed along with the client via the schema's cascade.
func (e Engine) DeleteClient(ctx context.Context, id, actorID string) error {
	if _, err := e.GetClient(ctx, id); err != nil {
		return err
	}
	cases, err := e.Repo.ListCases(ctx, repo.CaseFilters{ClientID: id})
	if err != nil {
		return err
	}
	for _, c := range cases {
		if c.Status != domain.StatusClosed {
			return fmt.Errorf("client %s has a case with status %s: %w", id, c.Status, ErrForbidden)
		}
	}
	if err := e.Repo.DeleteClient(ctx, id); err != nil {
		return err
	}
	e.appendEvent(ctx, "client.deleted", "client", id, actorID, events.EventPayload{})
	return nil
}
