package engine

import (
	"context"
	"errors"
	"fmt"

	"caseflow/internal/domain"
	"caseflow/internal/events"
	"caseflow/internal/repo"
)

type ServiceCreateOptions struct {
	Name                string
	InitialContactDays  int
	IntakeInterviewDays int
	ActionPlanWeeks     int
	MonthlyContact      bool
	MonthlyReports      bool
	ActorID             string
}

func (e Engine) CreateService(ctx context.Context, opts ServiceCreateOptions) (domain.Service, error) {
	if _, err := e.Repo.GetServiceByName(ctx, opts.Name, ""); err == nil {
		return domain.Service{}, fmt.Errorf("service named %q already exists: %w", opts.Name, ErrConflict)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Service{}, err
	}
	now := e.nowString()
	s := domain.Service{
		ID:                  newID(),
		Name:                opts.Name,
		InitialContactDays:  opts.InitialContactDays,
		IntakeInterviewDays: opts.IntakeInterviewDays,
		ActionPlanWeeks:     opts.ActionPlanWeeks,
		MonthlyContact:      opts.MonthlyContact,
		MonthlyReports:      opts.MonthlyReports,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := e.Repo.InsertService(ctx, s); err != nil {
		return domain.Service{}, err
	}
	e.appendEvent(ctx, "service.created", "service", s.ID, opts.ActorID, events.EventPayload{"name": s.Name})
	return s, nil
}

func (e Engine) GetService(ctx context.Context, id string) (domain.Service, error) {
	s, err := e.Repo.GetService(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return s, fmt.Errorf("service %s: %w", id, repo.ErrNotFound)
	}
	return s, err
}

func (e Engine) ListServices(ctx context.Context) ([]domain.Service, error) {
	return e.Repo.ListServices(ctx)
}

type ServiceUpdateOptions struct {
	Name                *string
	InitialContactDays  *int
	IntakeInterviewDays *int
	ActionPlanWeeks     *int
	MonthlyContact      *bool
	MonthlyReports      *bool
	ActorID             string
}

// UpdateService edits the template only. Tasks already derived from it are
// untouched.
func (e Engine) UpdateService(ctx context.Context, id string, opts ServiceUpdateOptions) (domain.Service, error) {
	s, err := e.GetService(ctx, id)
	if err != nil {
		return s, err
	}
	if opts.Name != nil && *opts.Name != s.Name {
		if _, err := e.Repo.GetServiceByName(ctx, *opts.Name, id); err == nil {
			return s, fmt.Errorf("service named %q already exists: %w", *opts.Name, ErrConflict)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return s, err
		}
		s.Name = *opts.Name
	}
	if opts.InitialContactDays != nil {
		s.InitialContactDays = *opts.InitialContactDays
	}
	if opts.IntakeInterviewDays != nil {
		s.IntakeInterviewDays = *opts.IntakeInterviewDays
	}
	if opts.ActionPlanWeeks != nil {
		s.ActionPlanWeeks = *opts.ActionPlanWeeks
	}
	if opts.MonthlyContact != nil {
		s.MonthlyContact = *opts.MonthlyContact
	}
	if opts.MonthlyReports != nil {
		s.MonthlyReports = *opts.MonthlyReports
	}
	s.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateService(ctx, s); err != nil {
		return s, err
	}
	e.appendEvent(ctx, "service.updated", "service", s.ID, opts.ActorID, events.EventPayload{})
	return s, nil
}

// DeleteService refuses while cases still reference the service.
func (e Engine) DeleteService(ctx context.Context, id, actorID string) error {
	if _, err := e.GetService(ctx, id); err != nil {
		return err
	}
	services, err := e.Repo.ListServices(ctx)
	if err != nil {
		return err
	}
	for _, s := range services {
		if s.ID == id && s.CaseCount > 0 {
			return fmt.Errorf("service %s is referenced by %d case(s): %w", id, s.CaseCount, ErrForbidden)
		}
	}
	if err := e.Repo.DeleteService(ctx, id); err != nil {
		return err
	}
	e.appendEvent(ctx, "service.deleted", "service", id, actorID, events.EventPayload{})
	return nil
}
