package engine

import (
	"context"
	"errors"
	"fmt"

	"caseflow/internal/domain"
	"caseflow/internal/graph"
	"caseflow/internal/repo"
)

func (e Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	return e.Repo.ListUsers(ctx)
}

func (e Engine) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := e.Repo.GetUser(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return u, fmt.Errorf("user %s: %w", id, repo.ErrNotFound)
	}
	return u, err
}

// EnsureUser records the identity the provider reported at login. First login
// creates the row with the STAFF role; later logins refresh name and email
// but never touch the locally managed role.
func (e Engine) EnsureUser(ctx context.Context, profile graph.UserProfile) (domain.User, error) {
	now := e.nowString()
	u := domain.User{
		ID:        profile.ID,
		Name:      profile.Name,
		Email:     profile.Email,
		Role:      domain.RoleStaff,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, err := e.Repo.GetUser(ctx, profile.ID); err == nil {
		u.Role = existing.Role
		u.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, repo.ErrNotFound) {
		return u, err
	}
	if err := e.Repo.UpsertUser(ctx, u); err != nil {
		return u, err
	}
	return u, nil
}

// LatestEvents exposes the audit log.
func (e Engine) LatestEvents(ctx context.Context, limit int, entityKind, entityID string) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, limit, entityKind, entityID)
}
