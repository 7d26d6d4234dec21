package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/capacity"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/clock"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/notify"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/repository"
)

// t0 is "now" at the start of every test.
var t0 = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type fixture struct {
	store    *repository.MemoryStore
	clock    *clock.Manual
	notifier *notify.LogNotifier
	regs     *RegistrationService
	comps    *CompetitionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	clk := clock.NewManual(t0)
	notifier := notify.NewLogNotifier(zap.NewNop())
	return &fixture{
		store:    store,
		clock:    clk,
		notifier: notifier,
		regs:     NewRegistrationService(store, capacity.NewManager(store, zap.NewNop()), notifier, clk, zap.NewNop()),
		comps:    NewCompetitionService(store, clk, zap.NewNop()),
	}
}

func (f *fixture) user(t *testing.T, id, email string) *model.User {
	t.Helper()
	u := &model.User{ID: id, Name: id, Email: email, Role: model.RoleStudent, IsActive: true}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) admin(t *testing.T, id string) *model.User {
	t.Helper()
	u := &model.User{ID: id, Name: id, Email: id + "@admin.test", Role: model.RoleAdmin, IsActive: true}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

// competition stores an active competition starting one day after t0 and
// ending two days after.
func (f *fixture) competition(t *testing.T, seats, maxTeam int) *model.Competition {
	t.Helper()
	c := &model.Competition{
		ID:             "comp-1",
		Title:          "Spring Hack",
		SourceType:     model.SourceHackathon,
		StartDate:      t0.Add(day),
		EndDate:        t0.Add(2 * day),
		MaxTeamSize:    maxTeam,
		TotalSeats:     seats,
		SeatsRemaining: seats,
		Status:         model.StatusPublished,
		IsActive:       true,
		CreatedBy:      "admin",
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}
	require.NoError(t, f.store.CreateCompetition(context.Background(), c))
	return c
}

func (f *fixture) seats(t *testing.T, id string) int {
	t.Helper()
	c, err := f.store.GetCompetition(context.Background(), id)
	require.NoError(t, err)
	return c.SeatsRemaining
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "error: %v", err)
}

// failingNotifier always errors.
type failingNotifier struct{}

func (failingNotifier) Send(context.Context, notify.Message) error {
	return errors.New("smtp down")
}

// insertFailStore fails every CreateRegistration with err.
type insertFailStore struct {
	*repository.MemoryStore
	err error
}

func (s insertFailStore) CreateRegistration(context.Context, *model.Registration) error {
	return s.err
}

// gatedStore holds every CreateRegistration until n callers have reached
// it, so concurrent registrations all pass their checks first.
type gatedStore struct {
	*repository.MemoryStore
	arrived sync.WaitGroup
}

func newGatedStore(inner *repository.MemoryStore, n int) *gatedStore {
	s := &gatedStore{MemoryStore: inner}
	s.arrived.Add(n)
	return s
}

func (s *gatedStore) CreateRegistration(ctx context.Context, r *model.Registration) error {
	s.arrived.Done()
	s.arrived.Wait()
	return s.MemoryStore.CreateRegistration(ctx, r)
}

// releaseFailStore fails the next `failures` ReleaseSeats calls.
type releaseFailStore struct {
	*repository.MemoryStore
	failures atomic.Int32
}

func (s *releaseFailStore) ReleaseSeats(ctx context.Context, id string, n int) (*model.Competition, error) {
	if s.failures.Add(-1) >= 0 {
		return nil, errors.New("connection reset")
	}
	return s.MemoryStore.ReleaseSeats(ctx, id, n)
}
