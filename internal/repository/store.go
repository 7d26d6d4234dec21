// Package repository persists competitions, registrations, submissions
// and users. Three backends share one contract: PostgreSQL (pgx),
// MongoDB and an in-memory store used by tests and local runs.
package repository

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrCapacityExceeded is returned when a conditional seat decrement finds
// fewer seats than requested.
var ErrCapacityExceeded = errors.New("no seats remaining")

// ErrAlreadyRegistered is returned when a leader registers twice for the
// same competition.
var ErrAlreadyRegistered = errors.New("already registered for this competition")

// ErrMemberConflict is returned when a team member already leads or
// belongs to another registration in the same competition.
var ErrMemberConflict = errors.New("team member already registered for this competition")

// ErrAlreadySubmitted is returned when a leader submits twice.
var ErrAlreadySubmitted = errors.New("submission already exists")

// ErrDuplicateEmail is returned when two users share an email.
var ErrDuplicateEmail = errors.New("email already in use")

// ErrInvalidSeatCount is returned for seat adjustments below one.
var ErrInvalidSeatCount = errors.New("seat count must be at least 1")

// CompetitionStore persists competitions. Seat counters are only ever
// written by ReserveSeats and ReleaseSeats.
type CompetitionStore interface {
	CreateCompetition(ctx context.Context, c *model.Competition) error
	GetCompetition(ctx context.Context, id string) (*model.Competition, error)
	ListCompetitions(ctx context.Context, f model.ListFilter) ([]model.Competition, int, error)
	// UpdateCompetition writes every editable field except the seat counters.
	UpdateCompetition(ctx context.Context, c *model.Competition) error
	DeleteCompetition(ctx context.Context, id string) error

	// ReserveSeats decrements seats_remaining by n in a single conditional
	// update. It returns ErrCapacityExceeded, leaving the record untouched,
	// when fewer than n seats remain.
	ReserveSeats(ctx context.Context, id string, n int) (*model.Competition, error)
	// ReleaseSeats increments seats_remaining by n, clamped to total_seats.
	ReleaseSeats(ctx context.Context, id string, n int) (*model.Competition, error)
}

// RegistrationStore persists registrations and their team members.
type RegistrationStore interface {
	// CreateRegistration stores r. Every participant (leader and members)
	// may appear in at most one registration per competition: a leader
	// already taking part yields ErrAlreadyRegistered, a member already
	// taking part yields ErrMemberConflict. The check and the write are
	// atomic.
	CreateRegistration(ctx context.Context, r *model.Registration) error
	GetRegistration(ctx context.Context, id string) (*model.Registration, error)
	// FindRegistration looks up the registration led by leaderID.
	FindRegistration(ctx context.Context, competitionID, leaderID string) (*model.Registration, error)
	// IsParticipant reports whether userID leads or belongs to any
	// registration in the competition.
	IsParticipant(ctx context.Context, competitionID, userID string) (bool, error)
	DeleteRegistration(ctx context.Context, id string) error
	ListRegistrationsByCompetition(ctx context.Context, competitionID string, limit, offset int) ([]model.Registration, int, error)
	ListRegistrationsByUser(ctx context.Context, userID string, limit, offset int) ([]model.Registration, int, error)
	CountRegistrations(ctx context.Context, competitionID string) (int, error)
}

// SubmissionStore persists project submissions.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, s *model.Submission) error
	HasSubmission(ctx context.Context, competitionID, leaderID string) (bool, error)
	CountSubmissions(ctx context.Context, competitionID string) (int, error)
}

// UserStore resolves accounts. Account management lives elsewhere;
// CreateUser exists for seeding.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	FindActiveUsersByEmail(ctx context.Context, emails []string) ([]model.User, error)
}

// Store is the full persistence contract.
type Store interface {
	CompetitionStore
	RegistrationStore
	SubmissionStore
	UserStore
}

func checkSeatCount(n int) error {
	if n < 1 {
		return ErrInvalidSeatCount
	}
	return nil
}
