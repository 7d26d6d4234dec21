package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/clock"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/lifecycle"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/repository"
)

// Defaults applied to new competitions when the request leaves them out.
const (
	DefaultTotalSeats  = 100
	DefaultMaxTeamSize = 1
)

// CompetitionService manages competition records.
type CompetitionService struct {
	store  repository.Store
	clock  clock.Clock
	logger *zap.Logger
}

// NewCompetitionService constructs a CompetitionService with its dependencies.
func NewCompetitionService(store repository.Store, clk clock.Clock, logger *zap.Logger) *CompetitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompetitionService{store: store, clock: clk, logger: logger}
}

func checkDates(c *model.Competition) error {
	if !c.StartDate.Before(c.EndDate) {
		return newError(KindValidation, "End date must be after start date")
	}
	if c.RegistrationDeadline != nil && c.RegistrationDeadline.After(c.StartDate) {
		return newError(KindValidation, "Registration deadline must be before start date")
	}
	return nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// CreateCompetition validates the request and stores a new competition
// with every seat available. Only admins may create competitions.
func (s *CompetitionService) CreateCompetition(ctx context.Context, actorID string, req model.CreateCompetitionRequest) (*model.Competition, error) {
	actor, err := loadUser(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, newError(KindForbidden, "Only admins can create competitions")
	}
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	c := &model.Competition{
		ID:                   uuid.NewString(),
		Title:                strings.TrimSpace(req.Title),
		Description:          req.Description,
		SourceType:           req.SourceType,
		Sponsor:              strings.TrimSpace(req.Sponsor),
		Location:             strings.TrimSpace(req.Location),
		BannerImageURL:       req.BannerImageURL,
		Rules:                req.Rules,
		Tags:                 cleanTags(req.Tags),
		PrizePool:            req.PrizePool,
		StartDate:            req.StartDate.UTC(),
		EndDate:              req.EndDate.UTC(),
		RegistrationDeadline: utcPtr(req.RegistrationDeadline),
		MaxTeamSize:          req.MaxTeamSize,
		TotalSeats:           req.TotalSeats,
		Status:               req.Status,
		IsActive:             true,
		IsFeatured:           req.IsFeatured,
		Stages:               model.NormalizeStages(req.Stages),
		EligibilityCriteria:  model.OrEmptyObject(req.EligibilityCriteria),
		ContactInfo:          model.OrEmptyObject(req.ContactInfo),
		CreatedBy:            actor.ID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if c.SourceType == "" {
		c.SourceType = model.SourceInternal
	}
	if c.MaxTeamSize == 0 {
		c.MaxTeamSize = DefaultMaxTeamSize
	}
	if c.TotalSeats == 0 {
		c.TotalSeats = DefaultTotalSeats
	}
	c.SeatsRemaining = c.TotalSeats
	if c.Status == "" {
		c.Status = model.StatusPublished
	}
	if req.Stages.IsZero() {
		c.Stages = model.DefaultStages()
	}
	if err := checkDates(c); err != nil {
		return nil, err
	}
	c.Status = lifecycle.CachedStatus(c, now)

	if err := s.store.CreateCompetition(ctx, c); err != nil {
		return nil, fmt.Errorf("create competition: %w", err)
	}
	s.logger.Info("competition created",
		zap.String("competition_id", c.ID),
		zap.String("created_by", actor.ID),
		zap.Int("total_seats", c.TotalSeats),
	)
	return c, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// GetCompetition returns a competition with participation stats. viewerID
// may be empty for anonymous callers.
func (s *CompetitionService) GetCompetition(ctx context.Context, id, viewerID string) (*model.CompetitionView, error) {
	c, err := loadCompetition(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	c.Status = lifecycle.CachedStatus(c, now)

	stats, err := s.stats(ctx, c)
	if err != nil {
		return nil, err
	}
	view := &model.CompetitionView{Competition: *c, Stats: stats}
	if viewerID != "" {
		if view.UserRegistered, err = s.store.IsParticipant(ctx, c.ID, viewerID); err != nil {
			return nil, fmt.Errorf("check participant: %w", err)
		}
		if view.UserSubmitted, err = s.store.HasSubmission(ctx, c.ID, viewerID); err != nil {
			return nil, fmt.Errorf("check submission: %w", err)
		}
	}
	return view, nil
}

func (s *CompetitionService) stats(ctx context.Context, c *model.Competition) (model.CompetitionStats, error) {
	regs, err := s.store.CountRegistrations(ctx, c.ID)
	if err != nil {
		return model.CompetitionStats{}, fmt.Errorf("count registrations: %w", err)
	}
	subs, err := s.store.CountSubmissions(ctx, c.ID)
	if err != nil {
		return model.CompetitionStats{}, fmt.Errorf("count submissions: %w", err)
	}
	now := s.clock.Now()
	phase := lifecycle.Of(c, now)
	return model.CompetitionStats{
		TotalRegistrations:     regs,
		ConfirmedRegistrations: regs,
		SeatsRemaining:         c.SeatsRemaining,
		TotalSubmissions:       subs,
		Phase:                  string(phase),
		IsUpcoming:             phase == lifecycle.Upcoming,
		IsOngoing:              phase == lifecycle.Ongoing,
		IsPast:                 phase == lifecycle.Completed,
		RegistrationOpen:       c.IsActive && c.Status != model.StatusCancelled && lifecycle.IsRegistrationOpen(c, now),
		DaysRemaining:          lifecycle.DaysRemaining(c.EndDate, now),
	}, nil
}

// ListCompetitions returns one page of competitions matching f.
func (s *CompetitionService) ListCompetitions(ctx context.Context, f model.ListFilter, page, limit int) ([]model.Competition, model.Page, error) {
	switch f.Phase {
	case "", model.PhaseFilterUpcoming, model.PhaseFilterOngoing, model.PhaseFilterPast:
	default:
		return nil, model.Page{}, newError(KindValidation, "phase must be one of upcoming, ongoing, past")
	}
	page, limit, offset := pageBounds(page, limit)
	f.Now = s.clock.Now()
	f.Limit = limit
	f.Offset = offset

	items, total, err := s.store.ListCompetitions(ctx, f)
	if err != nil {
		return nil, model.Page{}, fmt.Errorf("list competitions: %w", err)
	}
	for i := range items {
		items[i].Status = lifecycle.CachedStatus(&items[i], f.Now)
	}
	if items == nil {
		items = []model.Competition{}
	}
	return items, model.NewPage(page, limit, total), nil
}

// UpdateCompetition applies a partial update. Only the creator or an
// admin may update; date invariants are re-checked against the result.
func (s *CompetitionService) UpdateCompetition(ctx context.Context, id, actorID string, req model.UpdateCompetitionRequest) (*model.Competition, error) {
	actor, err := loadUser(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}
	c, err := loadCompetition(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, c) {
		return nil, newError(KindForbidden, "Not authorized to update this competition")
	}
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	applyUpdate(c, req)
	if err := checkDates(c); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	c.Status = lifecycle.CachedStatus(c, now)
	c.UpdatedAt = now

	if err := s.store.UpdateCompetition(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, msgCompetitionNotFound)
		}
		return nil, fmt.Errorf("update competition: %w", err)
	}
	s.logger.Info("competition updated",
		zap.String("competition_id", c.ID),
		zap.String("actor_id", actor.ID),
		zap.String("status", string(c.Status)),
	)
	return c, nil
}

func applyUpdate(c *model.Competition, req model.UpdateCompetitionRequest) {
	if req.Title != nil {
		c.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.SourceType != nil {
		c.SourceType = *req.SourceType
	}
	if req.Sponsor != nil {
		c.Sponsor = strings.TrimSpace(*req.Sponsor)
	}
	if req.Location != nil {
		c.Location = strings.TrimSpace(*req.Location)
	}
	if req.BannerImageURL != nil {
		c.BannerImageURL = *req.BannerImageURL
	}
	if req.Rules != nil {
		c.Rules = *req.Rules
	}
	if req.Tags != nil {
		c.Tags = cleanTags(req.Tags)
	}
	if req.PrizePool != nil {
		c.PrizePool = req.PrizePool
	}
	if req.StartDate != nil {
		c.StartDate = req.StartDate.UTC()
	}
	if req.EndDate != nil {
		c.EndDate = req.EndDate.UTC()
	}
	if req.RegistrationDeadline.Set {
		c.RegistrationDeadline = utcPtr(req.RegistrationDeadline.Time)
	}
	if req.MaxTeamSize != nil {
		c.MaxTeamSize = *req.MaxTeamSize
	}
	if req.Status != nil {
		c.Status = *req.Status
	} else if c.Status != model.StatusDraft && c.Status != model.StatusCancelled {
		c.Status = model.StatusPublished
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		c.IsFeatured = *req.IsFeatured
	}
	if req.Stages != nil {
		c.Stages = model.NormalizeStages(*req.Stages)
	}
	if req.EligibilityCriteria != nil {
		c.EligibilityCriteria = model.OrEmptyObject(*req.EligibilityCriteria)
	}
	if req.ContactInfo != nil {
		c.ContactInfo = model.OrEmptyObject(*req.ContactInfo)
	}
}

// DeleteCompetition removes a competition that nobody has registered for
// or submitted to.
func (s *CompetitionService) DeleteCompetition(ctx context.Context, id, actorID string) error {
	actor, err := loadUser(ctx, s.store, actorID)
	if err != nil {
		return err
	}
	c, err := loadCompetition(ctx, s.store, id)
	if err != nil {
		return err
	}
	if !canManage(actor, c) {
		return newError(KindForbidden, "Not authorized to delete this competition")
	}

	regs, err := s.store.CountRegistrations(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("count registrations: %w", err)
	}
	subs, err := s.store.CountSubmissions(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("count submissions: %w", err)
	}
	if regs > 0 || subs > 0 {
		return newError(KindConflict, "Cannot delete competition with existing registrations or submissions")
	}

	if err := s.store.DeleteCompetition(ctx, c.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindNotFound, msgCompetitionNotFound)
		}
		return fmt.Errorf("delete competition: %w", err)
	}
	s.logger.Info("competition deleted", zap.String("competition_id", c.ID), zap.String("actor_id", actor.ID))
	return nil
}
