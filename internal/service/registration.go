package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/capacity"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/clock"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/notify"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/repository"
)

// DefaultNotifyTimeout bounds a single background notification.
const DefaultNotifyTimeout = 10 * time.Second

// RegistrationService guards the register, cancel and submit transitions
// for a (competition, user) pair.
//
// Every precondition is checked before anything is written. The seat is
// then taken with a single conditional update, so a registration that
// loses the race for the last seat still fails with KindCapacityExceeded.
type RegistrationService struct {
	store    repository.Store
	seats    *capacity.Manager
	notifier notify.Notifier
	clock    clock.Clock
	logger   *zap.Logger

	notifyTimeout time.Duration
	inflight      sync.WaitGroup
}

// NewRegistrationService constructs a RegistrationService with its dependencies.
func NewRegistrationService(
	store repository.Store,
	seats *capacity.Manager,
	notifier notify.Notifier,
	clk clock.Clock,
	logger *zap.Logger,
) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		store:         store,
		seats:         seats,
		notifier:      notifier,
		clock:         clk,
		logger:        logger,
		notifyTimeout: DefaultNotifyTimeout,
	}
}

// SetNotifyTimeout changes the per-notification deadline. Non-positive
// values keep the current one.
func (s *RegistrationService) SetNotifyTimeout(d time.Duration) {
	if d > 0 {
		s.notifyTimeout = d
	}
}

// Wait blocks until background notifications have finished.
func (s *RegistrationService) Wait() {
	s.inflight.Wait()
}

// dispatch sends msg on its own goroutine with a context detached from
// the request. Failures are logged and never reach the caller.
func (s *RegistrationService) dispatch(msg notify.Message, fields ...zap.Field) {
	if s.notifier == nil || !msg.HasRecipients() {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("notification failed",
				append(fields, zap.String("subject", msg.Subject), zap.Error(err))...)
		}
	}()
}

func normalizeEmails(emails []string) []string {
	out := make([]string, 0, len(emails))
	seen := make(map[string]bool, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// ─── Register ─────────────────────────────────────────────────────────────────

// Register enters actorID, optionally with a team, into a competition.
//
// Checks run in this order and the first failure is returned:
//  1. the competition exists and is active
//  2. the competition has not ended
//  3. the actor is not already registered
//  4. a seat is available
//  5. the team fits max_team_size
//  6. every member is an active user not already taking part
func (s *RegistrationService) Register(ctx context.Context, competitionID, actorID string, req model.RegisterRequest) (*model.Registration, error) {
	leader, err := loadUser(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}
	req.MemberEmails = normalizeEmails(req.MemberEmails)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	emails := req.MemberEmails
	regType := req.Type
	if regType == "" {
		regType = model.RegistrationIndividual
		if len(emails) > 0 {
			regType = model.RegistrationTeam
		}
	}
	teamName := strings.TrimSpace(req.TeamName)
	if regType == model.RegistrationIndividual && len(emails) > 0 {
		return nil, newError(KindValidation, "Individual registrations cannot include team members")
	}
	if regType == model.RegistrationTeam && teamName == "" {
		return nil, newError(KindValidation, "Team name is required for team registrations")
	}

	// 1.
	c, err := loadCompetition(ctx, s.store, competitionID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive || c.Status == model.StatusCancelled {
		return nil, newError(KindRegistrationClosed, msgCompetitionInactive)
	}
	// 2.
	if s.clock.Now().After(c.EndDate) {
		return nil, newError(KindRegistrationClosed, msgRegistrationEnded)
	}
	// 3.
	registered, err := s.store.IsParticipant(ctx, c.ID, leader.ID)
	if err != nil {
		return nil, fmt.Errorf("check existing registration: %w", err)
	}
	if registered {
		return nil, newError(KindAlreadyRegistered, msgAlreadyRegistered)
	}
	// 4.
	if _, err := capacity.Reserve(*c, capacity.SeatsPerRegistration); err != nil {
		return nil, newError(KindCapacityExceeded, msgNoSeats)
	}
	// 5.
	if 1+len(emails) > c.MaxTeamSize {
		return nil, newError(KindTeamTooLarge, msgTeamTooLarge, c.MaxTeamSize)
	}
	// 6.
	memberIDs, err := s.resolveMembers(ctx, c.ID, leader, emails)
	if err != nil {
		return nil, err
	}

	if _, err := s.seats.ReserveSeats(ctx, c.ID, capacity.SeatsPerRegistration); err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityExceeded):
			return nil, newError(KindCapacityExceeded, msgNoSeats)
		case errors.Is(err, repository.ErrNotFound):
			return nil, newError(KindNotFound, msgCompetitionNotFound)
		}
		return nil, err
	}

	reg := &model.Registration{
		ID:            uuid.NewString(),
		CompetitionID: c.ID,
		LeaderID:      leader.ID,
		Type:          regType,
		TeamName:      teamName,
		Abstract:      strings.TrimSpace(req.Abstract),
		TeamMemberIDs: memberIDs,
		Status:        model.RegistrationConfirmed,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.store.CreateRegistration(ctx, reg); err != nil {
		s.returnSeat(c.ID, zap.String("leader_id", leader.ID))
		switch {
		case errors.Is(err, repository.ErrAlreadyRegistered):
			return nil, newError(KindAlreadyRegistered, msgAlreadyRegistered)
		case errors.Is(err, repository.ErrMemberConflict):
			return nil, newError(KindMemberConflict, msgMembersTaken)
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}

	s.logger.Info("registration created",
		zap.String("registration_id", reg.ID),
		zap.String("competition_id", c.ID),
		zap.String("leader_id", leader.ID),
		zap.Int("team_size", reg.TeamSize()),
	)
	s.dispatch(notify.RegistrationConfirmed(leader, c, reg),
		zap.String("registration_id", reg.ID))
	return reg, nil
}

// resolveMembers maps member emails to user ids, rejecting unknown or
// inactive accounts, the leader, and anyone already taking part.
func (s *RegistrationService) resolveMembers(ctx context.Context, competitionID string, leader *model.User, emails []string) ([]string, error) {
	if len(emails) == 0 {
		return []string{}, nil
	}
	users, err := s.store.FindActiveUsersByEmail(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("find team members: %w", err)
	}
	if len(users) != len(emails) {
		return nil, newError(KindMemberConflict, msgMembersUnavailable)
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if u.ID == leader.ID {
			return nil, newError(KindMemberConflict, msgMemberIsLeader)
		}
		taken, err := s.store.IsParticipant(ctx, competitionID, u.ID)
		if err != nil {
			return nil, fmt.Errorf("check team member: %w", err)
		}
		if taken {
			return nil, newError(KindMemberConflict, msgMemberRegistered, u.Email)
		}
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// Seat returns run detached from the request and are retried before the
// loss is logged.
const (
	releaseAttempts = 3
	releaseTimeout  = 5 * time.Second
	releaseBackoff  = 50 * time.Millisecond
)

// returnSeat gives back the seat of a registration that no longer exists
// (or was never stored). It uses a fresh context so a cancelled request
// cannot strand the seat. It reports false, after logging, when every
// attempt failed.
func (s *RegistrationService) returnSeat(competitionID string, fields ...zap.Field) (*model.Competition, bool) {
	var lastErr error
	for attempt := 1; attempt <= releaseAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		c, err := s.seats.ReleaseSeats(ctx, competitionID, capacity.SeatsPerRegistration)
		cancel()
		if err == nil {
			return c, true
		}
		lastErr = err
		if errors.Is(err, repository.ErrNotFound) {
			break
		}
		if attempt < releaseAttempts {
			time.Sleep(time.Duration(attempt) * releaseBackoff)
		}
	}
	s.logger.Error("seat not returned",
		append(fields, zap.String("competition_id", competitionID), zap.Error(lastErr))...)
	return nil, false
}

// ─── Cancel ───────────────────────────────────────────────────────────────────

// Cancel removes a registration and returns its seat. Only the leader may
// cancel, and only before the competition starts and before any submission.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID, actorID string) error {
	reg, err := s.store.GetRegistration(ctx, registrationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindNotFound, msgRegistrationNotFound)
		}
		return fmt.Errorf("get registration: %w", err)
	}
	if reg.LeaderID != actorID {
		return newError(KindUnauthorized, msgOnlyLeaderCancels)
	}
	c, err := loadCompetition(ctx, s.store, reg.CompetitionID)
	if err != nil {
		return err
	}
	if !s.clock.Now().Before(c.StartDate) {
		return newError(KindCancellationNotAllowed, msgCancelAfterStart)
	}
	submitted, err := s.store.HasSubmission(ctx, c.ID, actorID)
	if err != nil {
		return fmt.Errorf("check submission: %w", err)
	}
	if submitted {
		return newError(KindCancellationNotAllowed, msgCancelAfterSubmission)
	}

	if err := s.store.DeleteRegistration(ctx, reg.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindNotFound, msgRegistrationNotFound)
		}
		return fmt.Errorf("delete registration: %w", err)
	}
	// The registration is gone; a seat that cannot be returned is logged
	// for reconciliation rather than failing the cancellation.
	fields := []zap.Field{zap.String("registration_id", reg.ID), zap.String("competition_id", c.ID)}
	if updated, ok := s.returnSeat(c.ID, zap.String("registration_id", reg.ID)); ok {
		fields = append(fields, zap.Int("seats_remaining", updated.SeatsRemaining))
	}
	s.logger.Info("registration cancelled", fields...)
	if leader, err := s.store.GetUser(ctx, actorID); err == nil {
		s.dispatch(notify.RegistrationCancelled(leader, c),
			zap.String("registration_id", reg.ID))
	}
	return nil
}

// ─── Queries ──────────────────────────────────────────────────────────────────

// ListMine returns registrations the actor leads or belongs to.
func (s *RegistrationService) ListMine(ctx context.Context, actorID string, page, limit int) ([]model.Registration, model.Page, error) {
	if _, err := loadUser(ctx, s.store, actorID); err != nil {
		return nil, model.Page{}, err
	}
	page, limit, offset := pageBounds(page, limit)
	regs, total, err := s.store.ListRegistrationsByUser(ctx, actorID, limit, offset)
	if err != nil {
		return nil, model.Page{}, fmt.Errorf("list registrations: %w", err)
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	return regs, model.NewPage(page, limit, total), nil
}

// ListForCompetition returns a competition's registrations. Only the
// creator or an admin may see them.
func (s *RegistrationService) ListForCompetition(ctx context.Context, competitionID, actorID string, page, limit int) ([]model.Registration, model.Page, error) {
	actor, err := loadUser(ctx, s.store, actorID)
	if err != nil {
		return nil, model.Page{}, err
	}
	c, err := loadCompetition(ctx, s.store, competitionID)
	if err != nil {
		return nil, model.Page{}, err
	}
	if !canManage(actor, c) {
		return nil, model.Page{}, newError(KindForbidden, "Not authorized to view registrations for this competition")
	}
	page, limit, offset := pageBounds(page, limit)
	regs, total, err := s.store.ListRegistrationsByCompetition(ctx, c.ID, limit, offset)
	if err != nil {
		return nil, model.Page{}, fmt.Errorf("list registrations: %w", err)
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	return regs, model.NewPage(page, limit, total), nil
}

// ─── Submit ───────────────────────────────────────────────────────────────────

// Submit records a project for the actor's registration. Submissions are
// accepted while the competition is running; once one exists the
// registration can no longer be cancelled.
func (s *RegistrationService) Submit(ctx context.Context, competitionID, actorID string, req model.SubmitRequest) (*model.Submission, error) {
	if _, err := loadUser(ctx, s.store, actorID); err != nil {
		return nil, err
	}
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	c, err := loadCompetition(ctx, s.store, competitionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.FindRegistration(ctx, c.ID, actorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindForbidden, "Only registered team leaders can submit a project")
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	now := s.clock.Now()
	if now.Before(c.StartDate) {
		return nil, newError(KindSubmissionClosed, "Submissions open when the competition starts")
	}
	if !now.Before(c.EndDate) {
		return nil, newError(KindSubmissionClosed, "Submissions are closed for this competition")
	}

	sub := &model.Submission{
		ID:            uuid.NewString(),
		CompetitionID: c.ID,
		LeaderID:      actorID,
		Title:         strings.TrimSpace(req.Title),
		Summary:       strings.TrimSpace(req.Summary),
		Status:        model.SubmissionSubmitted,
		CreatedAt:     now,
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrAlreadySubmitted) {
			return nil, newError(KindConflict, "A project has already been submitted for this registration")
		}
		return nil, fmt.Errorf("create submission: %w", err)
	}
	s.logger.Info("submission recorded",
		zap.String("submission_id", sub.ID),
		zap.String("competition_id", c.ID),
		zap.String("leader_id", actorID),
	)
	return sub, nil
}
