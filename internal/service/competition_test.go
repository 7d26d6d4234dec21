package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
)

func createRequest() model.CreateCompetitionRequest {
	return model.CreateCompetitionRequest{
		Title:       "  Robotics Cup  ",
		SourceType:  model.SourceUniversity,
		Tags:        []string{"robots", " robots ", "", "ai"},
		StartDate:   t0.Add(3 * day),
		EndDate:     t0.Add(5 * day),
		MaxTeamSize: 4,
		TotalSeats:  25,
		Stages:      model.Text("registration, build, demo"),
	}
}

func TestCreateCompetition(t *testing.T) {
	f := newFixture(t)
	f.admin(t, "admin")

	c, err := f.comps.CreateCompetition(context.Background(), "admin", createRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Robotics Cup", c.Title)
	assert.Equal(t, []string{"robots", "ai"}, c.Tags)
	assert.Equal(t, 25, c.TotalSeats)
	assert.Equal(t, 25, c.SeatsRemaining)
	assert.Equal(t, model.StatusPublished, c.Status)
	assert.True(t, c.IsActive)
	assert.Equal(t, "admin", c.CreatedBy)
	assert.Equal(t, []any{"registration", "build", "demo"}, c.Stages.Value())

	stored, err := f.store.GetCompetition(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.SeatsRemaining, stored.SeatsRemaining)
}

func TestCreateCompetition_Defaults(t *testing.T) {
	f := newFixture(t)
	f.admin(t, "admin")

	c, err := f.comps.CreateCompetition(context.Background(), "admin", model.CreateCompetitionRequest{
		Title:     "Quiz Night",
		StartDate: t0.Add(-time.Hour),
		EndDate:   t0.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, model.SourceInternal, c.SourceType)
	assert.Equal(t, DefaultTotalSeats, c.SeatsRemaining)
	assert.Equal(t, DefaultMaxTeamSize, c.MaxTeamSize)
	assert.Equal(t, model.StatusOngoing, c.Status)
	assert.Equal(t, model.DefaultStages().Value(), c.Stages.Value())
}

func TestCreateCompetition_Rejections(t *testing.T) {
	f := newFixture(t)
	f.admin(t, "admin")
	f.user(t, "student", "student@example.com")
	ctx := context.Background()

	_, err := f.comps.CreateCompetition(ctx, "student", createRequest())
	requireKind(t, err, KindForbidden)

	req := createRequest()
	req.Title = ""
	_, err = f.comps.CreateCompetition(ctx, "admin", req)
	requireKind(t, err, KindValidation)
	assert.Contains(t, err.(*Error).Fields, "title")

	req = createRequest()
	req.EndDate = req.StartDate
	_, err = f.comps.CreateCompetition(ctx, "admin", req)
	requireKind(t, err, KindValidation)
	assert.Equal(t, "End date must be after start date", err.Error())

	req = createRequest()
	late := req.StartDate.Add(time.Minute)
	req.RegistrationDeadline = &late
	_, err = f.comps.CreateCompetition(ctx, "admin", req)
	requireKind(t, err, KindValidation)

	req = createRequest()
	req.MaxTeamSize = 11
	_, err = f.comps.CreateCompetition(ctx, "admin", req)
	requireKind(t, err, KindValidation)
	assert.Contains(t, err.(*Error).Fields, "max_team_size")

	req = createRequest()
	req.TotalSeats = -1
	_, err = f.comps.CreateCompetition(ctx, "admin", req)
	requireKind(t, err, KindValidation)
}

func TestGetCompetition_Stats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.competition(t, 3, 1)
	f.user(t, "a", "a@example.com")
	f.user(t, "b", "b@example.com")

	_, err := f.regs.Register(ctx, c.ID, "a", individual)
	require.NoError(t, err)

	view, err := f.comps.GetCompetition(ctx, c.ID, "a")
	require.NoError(t, err)
	assert.True(t, view.UserRegistered)
	assert.False(t, view.UserSubmitted)
	assert.Equal(t, 1, view.Stats.TotalRegistrations)
	assert.Equal(t, 2, view.Stats.SeatsRemaining)
	assert.Equal(t, "upcoming", view.Stats.Phase)
	assert.True(t, view.Stats.IsUpcoming)
	assert.True(t, view.Stats.RegistrationOpen)
	assert.Equal(t, 2, view.Stats.DaysRemaining)

	view, err = f.comps.GetCompetition(ctx, c.ID, "b")
	require.NoError(t, err)
	assert.False(t, view.UserRegistered)

	f.clock.Set(c.StartDate)
	view, err = f.comps.GetCompetition(ctx, c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOngoing, view.Status)
	assert.True(t, view.Stats.IsOngoing)
	assert.False(t, view.Stats.RegistrationOpen)

	_, err = f.comps.GetCompetition(ctx, "missing", "")
	requireKind(t, err, KindNotFound)
}

func TestListCompetitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admin(t, "admin")

	mk := func(title string, start, end time.Duration) {
		req := createRequest()
		req.Title = title
		req.StartDate = t0.Add(start)
		req.EndDate = t0.Add(end)
		_, err := f.comps.CreateCompetition(ctx, "admin", req)
		require.NoError(t, err)
	}
	mk("Past Cup", -3*day, -2*day)
	mk("Live Cup", -day, day)
	mk("Future Cup", 2*day, 3*day)

	all, page, err := f.comps.ListCompetitions(ctx, model.ListFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, "Past Cup", all[0].Title)
	assert.Equal(t, model.StatusCompleted, all[0].Status)

	live, _, err := f.comps.ListCompetitions(ctx, model.ListFilter{Phase: model.PhaseFilterOngoing}, 1, 10)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "Live Cup", live[0].Title)

	found, _, err := f.comps.ListCompetitions(ctx, model.ListFilter{Search: "future"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, _, err = f.comps.ListCompetitions(ctx, model.ListFilter{Phase: "someday"}, 1, 10)
	requireKind(t, err, KindValidation)
}

func TestUpdateCompetition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admin(t, "admin")
	f.user(t, "student", "student@example.com")
	c := f.competition(t, 5, 2)

	title := "Spring Hack 2"
	_, err := f.comps.UpdateCompetition(ctx, c.ID, "student", model.UpdateCompetitionRequest{Title: &title})
	requireKind(t, err, KindForbidden)

	updated, err := f.comps.UpdateCompetition(ctx, c.ID, "admin", model.UpdateCompetitionRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, 5, updated.SeatsRemaining)

	badEnd := c.StartDate.Add(-time.Hour)
	_, err = f.comps.UpdateCompetition(ctx, c.ID, "admin", model.UpdateCompetitionRequest{EndDate: &badEnd})
	requireKind(t, err, KindValidation)

	cancelled := model.StatusCancelled
	updated, err = f.comps.UpdateCompetition(ctx, c.ID, "admin", model.UpdateCompetitionRequest{Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, updated.Status)

	f.clock.Set(c.StartDate.Add(time.Hour))
	view, err := f.comps.GetCompetition(ctx, c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, view.Status)
}

func TestUpdateCompetition_RegistrationDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admin(t, "admin")
	c := f.competition(t, 5, 2)

	deadline := c.StartDate.Add(-12 * time.Hour)
	updated, err := f.comps.UpdateCompetition(ctx, c.ID, "admin", model.UpdateCompetitionRequest{
		RegistrationDeadline: model.OptionalTimeOf(deadline),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.RegistrationDeadline)
	assert.True(t, updated.RegistrationDeadline.Equal(deadline))

	// Absent leaves it alone.
	title := "Spring Hack 2"
	updated, err = f.comps.UpdateCompetition(ctx, c.ID, "admin", model.UpdateCompetitionRequest{Title: &title})
	require.NoError(t, err)
	require.NotNil(t, updated.RegistrationDeadline)

	// Null clears it.
	updated, err = f.comps.UpdateCompetition(ctx, c.ID, "admin", model.UpdateCompetitionRequest{
		RegistrationDeadline: model.NullOptionalTime(),
	})
	require.NoError(t, err)
	assert.Nil(t, updated.RegistrationDeadline)

	stored, err := f.store.GetCompetition(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RegistrationDeadline)
}

func TestDeleteCompetition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admin(t, "admin")
	f.user(t, "a", "a@example.com")
	c := f.competition(t, 5, 1)

	_, err := f.regs.Register(ctx, c.ID, "a", individual)
	require.NoError(t, err)

	err = f.comps.DeleteCompetition(ctx, c.ID, "a")
	requireKind(t, err, KindForbidden)

	err = f.comps.DeleteCompetition(ctx, c.ID, "admin")
	requireKind(t, err, KindConflict)

	reg, err := f.store.FindRegistration(ctx, c.ID, "a")
	require.NoError(t, err)
	require.NoError(t, f.regs.Cancel(ctx, reg.ID, "a"))

	require.NoError(t, f.comps.DeleteCompetition(ctx, c.ID, "admin"))
	_, err = f.comps.GetCompetition(ctx, c.ID, "")
	requireKind(t, err, KindNotFound)
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := newError(KindCapacityExceeded, msgNoSeats)
	assert.ErrorIs(t, err, &Error{Kind: KindCapacityExceeded})
	assert.NotErrorIs(t, err, &Error{Kind: KindNotFound})
	assert.Equal(t, Kind(""), KindOf(assert.AnError))
}
