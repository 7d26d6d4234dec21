// Package capacity owns every change to a competition's seats_remaining.
//
// Reserve and Release are the pure rules. Manager applies them to a
// store, where each call is a single conditional update so that two
// concurrent reservations for the last seat cannot both succeed.
package capacity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/repository"
)

// SeatsPerRegistration is the number of seats one registration consumes,
// independent of team size.
const SeatsPerRegistration = 1

// ErrCapacityExceeded is returned when fewer seats remain than requested.
var ErrCapacityExceeded = repository.ErrCapacityExceeded

// ErrInvalidCount is returned for counts below one.
var ErrInvalidCount = repository.ErrInvalidSeatCount

// Reserve returns c with count seats taken. When fewer than count seats
// remain it returns ErrCapacityExceeded and c unchanged.
func Reserve(c model.Competition, count int) (model.Competition, error) {
	if count < 1 {
		return c, ErrInvalidCount
	}
	if c.SeatsRemaining < count {
		return c, ErrCapacityExceeded
	}
	c.SeatsRemaining -= count
	return c, nil
}

// Release returns c with count seats given back, never above TotalSeats.
// Non-positive counts are a no-op.
func Release(c model.Competition, count int) model.Competition {
	if count < 1 {
		return c
	}
	c.SeatsRemaining = min(c.TotalSeats, c.SeatsRemaining+count)
	return c
}

// Manager routes seat changes to the competition store.
type Manager struct {
	store  repository.CompetitionStore
	logger *zap.Logger
}

// NewManager constructs a Manager.
func NewManager(store repository.CompetitionStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger}
}

// ReserveSeats atomically takes count seats from the competition.
func (m *Manager) ReserveSeats(ctx context.Context, competitionID string, count int) (*model.Competition, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}
	c, err := m.store.ReserveSeats(ctx, competitionID, count)
	if err != nil {
		if errors.Is(err, repository.ErrCapacityExceeded) || errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("reserve %d seats: %w", count, err)
	}
	m.logger.Debug("seats reserved",
		zap.String("competition_id", competitionID),
		zap.Int("count", count),
		zap.Int("seats_remaining", c.SeatsRemaining),
	)
	return c, nil
}

// ReleaseSeats atomically returns count seats, clamped to total_seats.
func (m *Manager) ReleaseSeats(ctx context.Context, competitionID string, count int) (*model.Competition, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}
	c, err := m.store.ReleaseSeats(ctx, competitionID, count)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("release %d seats: %w", count, err)
	}
	m.logger.Debug("seats released",
		zap.String("competition_id", competitionID),
		zap.Int("count", count),
		zap.Int("seats_remaining", c.SeatsRemaining),
	)
	return c, nil
}
