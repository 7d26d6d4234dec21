// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/repository"
)

// Pagination bounds shared by every list operation.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// pageBounds clamps page/limit and returns the matching offset.
func pageBounds(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit, (page - 1) * limit
}

// loadUser resolves the acting user. Unknown or inactive accounts are
// reported as KindUnauthorized.
func loadUser(ctx context.Context, users repository.UserStore, id string) (*model.User, error) {
	if id == "" {
		return nil, newError(KindUnauthorized, msgUserNotFound)
	}
	u, err := users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindUnauthorized, msgUserNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !u.IsActive {
		return nil, newError(KindUnauthorized, "User account is inactive")
	}
	return u, nil
}

func loadCompetition(ctx context.Context, store repository.CompetitionStore, id string) (*model.Competition, error) {
	if id == "" {
		return nil, newError(KindNotFound, msgCompetitionNotFound)
	}
	c, err := store.GetCompetition(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, msgCompetitionNotFound)
		}
		return nil, fmt.Errorf("get competition: %w", err)
	}
	return c, nil
}

// canManage reports whether u may edit or delete c.
func canManage(u *model.User, c *model.Competition) bool {
	return u.IsAdmin() || (c.CreatedBy != "" && c.CreatedBy == u.ID)
}
