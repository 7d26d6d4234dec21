// Package model defines the core domain types for the competition platform.
package model

import "time"

// Status is the cached lifecycle label stored on a competition.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known labels.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Source types a competition can be posted under.
const (
	SourceCompany    = "company"
	SourceHackathon  = "hackathon"
	SourceUniversity = "university"
	SourceInternal   = "internal"
)

// Competition is a registrable event with a fixed number of seats.
type Competition struct {
	ID                   string     `json:"id" bson:"_id"`
	Title                string     `json:"title" bson:"title"`
	Description          string     `json:"description" bson:"description"`
	SourceType           string     `json:"source_type" bson:"source_type"`
	Sponsor              string     `json:"sponsor,omitempty" bson:"sponsor,omitempty"`
	Location             string     `json:"location,omitempty" bson:"location,omitempty"`
	BannerImageURL       string     `json:"banner_image_url,omitempty" bson:"banner_image_url,omitempty"`
	Rules                string     `json:"rules,omitempty" bson:"rules,omitempty"`
	Tags                 []string   `json:"tags" bson:"tags"`
	PrizePool            *float64   `json:"prize_pool,omitempty" bson:"prize_pool,omitempty"`
	StartDate            time.Time  `json:"start_date" bson:"start_date"`
	EndDate              time.Time  `json:"end_date" bson:"end_date"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty" bson:"registration_deadline,omitempty"`
	MaxTeamSize          int        `json:"max_team_size" bson:"max_team_size"`
	TotalSeats           int        `json:"total_seats" bson:"total_seats"`
	SeatsRemaining       int        `json:"seats_remaining" bson:"seats_remaining"`
	Status               Status     `json:"status" bson:"status"`
	IsActive             bool       `json:"is_active" bson:"is_active"`
	IsFeatured           bool       `json:"is_featured" bson:"is_featured"`
	Stages               Flex       `json:"stages" bson:"stages"`
	EligibilityCriteria  Flex       `json:"eligibility_criteria" bson:"eligibility_criteria"`
	ContactInfo          Flex       `json:"contact_info" bson:"contact_info"`
	CreatedBy            string     `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt            time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" bson:"updated_at"`
}

// RegistrationCloses returns the deadline if set, otherwise the start date.
func (c *Competition) RegistrationCloses() time.Time {
	if c.RegistrationDeadline != nil {
		return *c.RegistrationDeadline
	}
	return c.StartDate
}

// IsFull returns true when no seats remain.
func (c *Competition) IsFull() bool {
	return c.SeatsRemaining <= 0
}

// Registration types.
const (
	RegistrationIndividual = "individual"
	RegistrationTeam       = "team"
)

// RegistrationConfirmed is the only status the registration flow produces.
const RegistrationConfirmed = "confirmed"

// Registration represents a leader's (and optionally a team's) entry
// into a competition.
type Registration struct {
	ID            string    `json:"id" bson:"_id"`
	CompetitionID string    `json:"competition_id" bson:"competition_id"`
	LeaderID      string    `json:"leader_id" bson:"leader_id"`
	Type          string    `json:"type" bson:"type"`
	TeamName      string    `json:"team_name,omitempty" bson:"team_name,omitempty"`
	Abstract      string    `json:"abstract,omitempty" bson:"abstract,omitempty"`
	TeamMemberIDs []string  `json:"team_member_ids" bson:"team_member_ids"`
	Status        string    `json:"status" bson:"status"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// TeamSize counts the leader plus members.
func (r *Registration) TeamSize() int {
	return 1 + len(r.TeamMemberIDs)
}

// Includes reports whether userID is the leader or a member.
func (r *Registration) Includes(userID string) bool {
	if r.LeaderID == userID {
		return true
	}
	for _, id := range r.TeamMemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// SubmissionSubmitted is the status of a freshly recorded submission.
const SubmissionSubmitted = "submitted"

// Submission is a project handed in by a registration leader.
type Submission struct {
	ID            string    `json:"id" bson:"_id"`
	CompetitionID string    `json:"competition_id" bson:"competition_id"`
	LeaderID      string    `json:"leader_id" bson:"leader_id"`
	Title         string    `json:"title" bson:"title"`
	Summary       string    `json:"summary,omitempty" bson:"summary,omitempty"`
	Status        string    `json:"status" bson:"status"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// User roles.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User is the subset of an account the competition flows need.
type User struct {
	ID       string `json:"id" bson:"_id"`
	Name     string `json:"name" bson:"name"`
	Email    string `json:"email" bson:"email"`
	Role     string `json:"role" bson:"role"`
	IsActive bool   `json:"is_active" bson:"is_active"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
