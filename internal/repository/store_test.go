package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
)

// testStore runs the behaviour every backend must share. IDs and emails
// are unique per run so the database backends can reuse one schema.
func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	tag := uuid.NewString()[:8]
	start := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)

	admin := &model.User{ID: "admin-" + tag, Name: "Admin", Email: "admin-" + tag + "@eph.test", Role: model.RoleAdmin, IsActive: true}
	leader := &model.User{ID: "leader-" + tag, Name: "Lea", Email: "Lea-" + tag + "@EPH.test", Role: model.RoleStudent, IsActive: true}
	member := &model.User{ID: "member-" + tag, Name: "Max", Email: "max-" + tag + "@eph.test", Role: model.RoleStudent, IsActive: true}
	dormant := &model.User{ID: "dormant-" + tag, Name: "Dee", Email: "dee-" + tag + "@eph.test", Role: model.RoleStudent}

	t.Run("users", func(t *testing.T) {
		for _, u := range []*model.User{admin, leader, member, dormant} {
			require.NoError(t, s.CreateUser(ctx, u))
		}
		dup := &model.User{ID: "dup-" + tag, Name: "Dup", Email: "MAX-" + tag + "@eph.test", Role: model.RoleStudent, IsActive: true}
		assert.ErrorIs(t, s.CreateUser(ctx, dup), ErrDuplicateEmail)

		got, err := s.GetUser(ctx, leader.ID)
		require.NoError(t, err)
		assert.Equal(t, "lea-"+tag+"@eph.test", got.Email)

		_, err = s.GetUser(ctx, "missing-"+tag)
		assert.ErrorIs(t, err, ErrNotFound)

		found, err := s.FindActiveUsersByEmail(ctx, []string{
			" MAX-" + tag + "@eph.test ", dormant.Email, "nobody-" + tag + "@eph.test",
		})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, member.ID, found[0].ID)
	})

	c := &model.Competition{
		ID:             "comp-" + tag,
		Title:          "Store Cup " + tag,
		Description:    "contract run",
		SourceType:     model.SourceHackathon,
		Tags:           []string{"go"},
		StartDate:      start,
		EndDate:        start.Add(24 * time.Hour),
		MaxTeamSize:    3,
		TotalSeats:     2,
		SeatsRemaining: 2,
		Status:         model.StatusPublished,
		IsActive:       true,
		Stages:         model.Structured([]any{"build", "demo"}),
		CreatedBy:      admin.ID,
		CreatedAt:      start.Add(-96 * time.Hour),
		UpdatedAt:      start.Add(-96 * time.Hour),
	}

	t.Run("competitions", func(t *testing.T) {
		require.NoError(t, s.CreateCompetition(ctx, c))

		got, err := s.GetCompetition(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.Title, got.Title)
		assert.Equal(t, []string{"go"}, got.Tags)
		assert.True(t, got.StartDate.Equal(c.StartDate))
		assert.Equal(t, []any{"build", "demo"}, got.Stages.Value())

		_, err = s.GetCompetition(ctx, "missing-"+tag)
		assert.ErrorIs(t, err, ErrNotFound)

		items, total, err := s.ListCompetitions(ctx, model.ListFilter{Search: "store cup " + tag, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, c.ID, items[0].ID)
	})

	t.Run("seats", func(t *testing.T) {
		got, err := s.ReserveSeats(ctx, c.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, got.SeatsRemaining)

		_, err = s.ReserveSeats(ctx, c.ID, 2)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
		cur, err := s.GetCompetition(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, cur.SeatsRemaining)

		_, err = s.ReserveSeats(ctx, c.ID, 0)
		assert.ErrorIs(t, err, ErrInvalidSeatCount)
		_, err = s.ReserveSeats(ctx, "missing-"+tag, 1)
		assert.ErrorIs(t, err, ErrNotFound)

		got, err = s.ReleaseSeats(ctx, c.ID, 5)
		require.NoError(t, err)
		assert.Equal(t, 2, got.SeatsRemaining)
		_, err = s.ReleaseSeats(ctx, "missing-"+tag, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update keeps seat counters", func(t *testing.T) {
		_, err := s.ReserveSeats(ctx, c.ID, 1)
		require.NoError(t, err)

		edit := *c
		edit.Title = "Renamed " + tag
		edit.SeatsRemaining = 99
		edit.TotalSeats = 99
		edit.UpdatedAt = start.Add(-time.Hour)
		require.NoError(t, s.UpdateCompetition(ctx, &edit))

		got, err := s.GetCompetition(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed "+tag, got.Title)
		assert.Equal(t, 2, got.TotalSeats)
		assert.Equal(t, 1, got.SeatsRemaining)

		missing := edit
		missing.ID = "missing-" + tag
		assert.ErrorIs(t, s.UpdateCompetition(ctx, &missing), ErrNotFound)

		_, err = s.ReleaseSeats(ctx, c.ID, 1)
		require.NoError(t, err)
	})

	reg := &model.Registration{
		ID:            "reg-" + tag,
		CompetitionID: c.ID,
		LeaderID:      leader.ID,
		Type:          model.RegistrationTeam,
		TeamName:      "Gophers",
		TeamMemberIDs: []string{member.ID},
		Status:        model.RegistrationConfirmed,
		CreatedAt:     start.Add(-48 * time.Hour),
	}

	t.Run("registrations", func(t *testing.T) {
		require.NoError(t, s.CreateRegistration(ctx, reg))

		again := *reg
		again.ID = "reg2-" + tag
		again.TeamMemberIDs = nil
		assert.ErrorIs(t, s.CreateRegistration(ctx, &again), ErrAlreadyRegistered)

		got, err := s.GetRegistration(ctx, reg.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{member.ID}, got.TeamMemberIDs)
		assert.Equal(t, "Gophers", got.TeamName)

		got, err = s.FindRegistration(ctx, c.ID, leader.ID)
		require.NoError(t, err)
		assert.Equal(t, reg.ID, got.ID)
		_, err = s.FindRegistration(ctx, c.ID, member.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		// A user belongs to at most one registration per competition.
		rival := *reg
		rival.ID = "reg3-" + tag
		rival.LeaderID = admin.ID
		assert.ErrorIs(t, s.CreateRegistration(ctx, &rival), ErrMemberConflict)
		rival.TeamMemberIDs = []string{leader.ID}
		assert.ErrorIs(t, s.CreateRegistration(ctx, &rival), ErrMemberConflict)
		rival.LeaderID = member.ID
		rival.TeamMemberIDs = []string{dormant.ID}
		assert.ErrorIs(t, s.CreateRegistration(ctx, &rival), ErrAlreadyRegistered)
		_, err = s.GetRegistration(ctx, rival.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		for id, want := range map[string]bool{leader.ID: true, member.ID: true, admin.ID: false, dormant.ID: false} {
			ok, err := s.IsParticipant(ctx, c.ID, id)
			require.NoError(t, err)
			assert.Equal(t, want, ok, id)
		}

		mine, total, err := s.ListRegistrationsByUser(ctx, member.ID, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, mine, 1)
		assert.Equal(t, reg.ID, mine[0].ID)

		_, total, err = s.ListRegistrationsByCompetition(ctx, c.ID, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, total)

		n, err := s.CountRegistrations(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("submissions", func(t *testing.T) {
		sub := &model.Submission{
			ID: "sub-" + tag, CompetitionID: c.ID, LeaderID: leader.ID,
			Title: "Seat tracker", Status: model.SubmissionSubmitted, CreatedAt: start.Add(time.Hour),
		}
		require.NoError(t, s.CreateSubmission(ctx, sub))

		dup := *sub
		dup.ID = "sub2-" + tag
		assert.ErrorIs(t, s.CreateSubmission(ctx, &dup), ErrAlreadySubmitted)

		ok, err := s.HasSubmission(ctx, c.ID, leader.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.HasSubmission(ctx, c.ID, member.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		n, err := s.CountSubmissions(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("deletes", func(t *testing.T) {
		require.NoError(t, s.DeleteRegistration(ctx, reg.ID))
		assert.ErrorIs(t, s.DeleteRegistration(ctx, reg.ID), ErrNotFound)
		_, err := s.GetRegistration(ctx, reg.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		ok, err := s.IsParticipant(ctx, c.ID, member.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.DeleteCompetition(ctx, c.ID))
		assert.ErrorIs(t, s.DeleteCompetition(ctx, c.ID), ErrNotFound)
	})
}

// testReserveRace fires more concurrent single-seat reservations than
// there are seats and checks that exactly the seat count succeeds.
func testReserveRace(t *testing.T, s Store) {
	ctx := context.Background()
	tag := uuid.NewString()[:8]
	start := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)
	const seats, callers = 3, 40

	c := &model.Competition{
		ID: "race-" + tag, Title: "Race " + tag, SourceType: model.SourceInternal, Tags: []string{},
		StartDate: start, EndDate: start.Add(time.Hour), MaxTeamSize: 1,
		TotalSeats: seats, SeatsRemaining: seats, Status: model.StatusPublished, IsActive: true,
		CreatedAt: start.Add(-time.Hour), UpdatedAt: start.Add(-time.Hour),
	}
	require.NoError(t, s.CreateCompetition(ctx, c))
	t.Cleanup(func() { _ = s.DeleteCompetition(context.Background(), c.ID) })

	var (
		wg       sync.WaitGroup
		won, out atomic.Int32
		gate     = make(chan struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			_, err := s.ReserveSeats(ctx, c.ID, 1)
			switch {
			case err == nil:
				won.Add(1)
			case assert.ErrorIs(t, err, ErrCapacityExceeded):
				out.Add(1)
			}
		}()
	}
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(seats), won.Load())
	assert.Equal(t, int32(callers-seats), out.Load())
	got, err := s.GetCompetition(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SeatsRemaining)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStore_ReserveRace(t *testing.T) {
	testReserveRace(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateCompetition(ctx, &model.Competition{ID: "c", Tags: []string{"a"}, TotalSeats: 1, SeatsRemaining: 1}))

	got, err := s.GetCompetition(ctx, "c")
	require.NoError(t, err)
	got.Tags[0] = "mutated"
	got.SeatsRemaining = 0

	again, err := s.GetCompetition(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again.Tags)
	assert.Equal(t, 1, again.SeatsRemaining)
}

func TestMemoryStore_ListCompetitions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	add := func(id string, startOffset time.Duration, active bool, source string) {
		st := now.Add(startOffset)
		require.NoError(t, s.CreateCompetition(ctx, &model.Competition{
			ID: id, Title: "Comp " + id, SourceType: source, IsActive: active,
			StartDate: st, EndDate: st.Add(48 * time.Hour), TotalSeats: 1, SeatsRemaining: 1,
		}))
	}
	add("past", -96*time.Hour, true, model.SourceCompany)
	add("live", -time.Hour, true, model.SourceHackathon)
	add("soon", 24*time.Hour, true, model.SourceHackathon)
	add("later", 48*time.Hour, false, model.SourceHackathon)

	active := true
	ids := func(f model.ListFilter) []string {
		f.Now = now
		items, _, err := s.ListCompetitions(ctx, f)
		require.NoError(t, err)
		var out []string
		for _, c := range items {
			out = append(out, c.ID)
		}
		return out
	}

	assert.Equal(t, []string{"past", "live", "soon", "later"}, ids(model.ListFilter{}))
	assert.Equal(t, []string{"past", "live", "soon"}, ids(model.ListFilter{Active: &active}))
	assert.Equal(t, []string{"live", "soon", "later"}, ids(model.ListFilter{SourceType: model.SourceHackathon}))
	assert.Equal(t, []string{"soon", "later"}, ids(model.ListFilter{Phase: model.PhaseFilterUpcoming}))
	assert.Equal(t, []string{"live"}, ids(model.ListFilter{Phase: model.PhaseFilterOngoing}))
	assert.Equal(t, []string{"past"}, ids(model.ListFilter{Phase: model.PhaseFilterPast}))
	assert.Equal(t, []string{"soon"}, ids(model.ListFilter{Limit: 1, Offset: 2}))
	assert.Empty(t, ids(model.ListFilter{Offset: 10}))
}
