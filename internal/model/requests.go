package model

import (
	"encoding/json"
	"time"
)

// CreateCompetitionRequest is the payload for creating a competition.
type CreateCompetitionRequest struct {
	Title                string     `json:"title" validate:"required,notblank,min=3,max=200"`
	Description          string     `json:"description"`
	SourceType           string     `json:"source_type" validate:"omitempty,oneof=company hackathon university internal"`
	Sponsor              string     `json:"sponsor" validate:"max=200"`
	Location             string     `json:"location" validate:"max=255"`
	BannerImageURL       string     `json:"banner_image_url" validate:"omitempty,url"`
	Rules                string     `json:"rules"`
	Tags                 []string   `json:"tags"`
	PrizePool            *float64   `json:"prize_pool" validate:"omitempty,min=0"`
	StartDate            time.Time  `json:"start_date" validate:"required"`
	EndDate              time.Time  `json:"end_date" validate:"required"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	MaxTeamSize          int        `json:"max_team_size" validate:"omitempty,min=1,max=10"`
	TotalSeats           int        `json:"total_seats" validate:"omitempty,min=1,max=100000"`
	Status               Status     `json:"status" validate:"omitempty,oneof=draft published"`
	IsFeatured           bool       `json:"is_featured"`
	Stages               Flex       `json:"stages"`
	EligibilityCriteria  Flex       `json:"eligibility_criteria"`
	ContactInfo          Flex       `json:"contact_info"`
}

// UpdateCompetitionRequest carries a partial update; nil fields are left alone.
// Seat counters are deliberately absent: they only move through the
// capacity manager.
type UpdateCompetitionRequest struct {
	Title                *string    `json:"title" validate:"omitempty,min=3,max=200"`
	Description          *string    `json:"description"`
	SourceType           *string    `json:"source_type" validate:"omitempty,oneof=company hackathon university internal"`
	Sponsor              *string    `json:"sponsor" validate:"omitempty,max=200"`
	Location             *string    `json:"location" validate:"omitempty,max=255"`
	BannerImageURL       *string    `json:"banner_image_url" validate:"omitempty,url"`
	Rules                *string    `json:"rules"`
	Tags                 []string   `json:"tags"`
	PrizePool            *float64   `json:"prize_pool" validate:"omitempty,min=0"`
	StartDate            *time.Time `json:"start_date"`
	EndDate              *time.Time `json:"end_date"`
	RegistrationDeadline OptionalTime `json:"registration_deadline"`
	MaxTeamSize          *int       `json:"max_team_size" validate:"omitempty,min=1,max=10"`
	Status               *Status    `json:"status" validate:"omitempty,oneof=draft published cancelled"`
	IsActive             *bool      `json:"is_active"`
	IsFeatured           *bool      `json:"is_featured"`
	Stages               *Flex      `json:"stages"`
	EligibilityCriteria  *Flex      `json:"eligibility_criteria"`
	ContactInfo          *Flex      `json:"contact_info"`
}

// OptionalTime is a PATCH field that tells "absent" apart from an
// explicit null. Set is true whenever the key was present; Time is nil
// for null.
type OptionalTime struct {
	Set  bool
	Time *time.Time
}

// OptionalTimeOf returns an OptionalTime holding t.
func OptionalTimeOf(t time.Time) OptionalTime {
	return OptionalTime{Set: true, Time: &t}
}

// NullOptionalTime returns an OptionalTime holding an explicit null.
func NullOptionalTime() OptionalTime {
	return OptionalTime{Set: true}
}

// UnmarshalJSON is only invoked when the key is present, including for null.
func (o *OptionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Time = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	o.Time = &t
	return nil
}

// MarshalJSON writes the time or null.
func (o OptionalTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Time)
}

// RegisterRequest is the payload for POST /competitions/{id}/register.
type RegisterRequest struct {
	Type         string   `json:"type" validate:"omitempty,oneof=individual team"`
	TeamName     string   `json:"team_name" validate:"max=120"`
	MemberEmails []string `json:"member_emails" validate:"omitempty,dive,email"`
	Abstract     string   `json:"abstract" validate:"max=5000"`
}

// SubmitRequest records a project submission.
type SubmitRequest struct {
	Title   string `json:"title" validate:"required,notblank,min=3,max=200"`
	Summary string `json:"summary" validate:"max=10000"`
}

// ListFilter narrows a competition listing.
type ListFilter struct {
	SourceType string
	// Active is nil for "all".
	Active *bool
	Phase  string
	Search string
	Now    time.Time
	Limit  int
	Offset int
}

// Phase filter values accepted by ListFilter.
const (
	PhaseFilterUpcoming = "upcoming"
	PhaseFilterOngoing  = "ongoing"
	PhaseFilterPast     = "past"
)

// Page holds pagination metadata for list responses.
type Page struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	Total       int  `json:"total"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// NewPage builds pagination metadata.
func NewPage(page, limit, total int) Page {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Page{
		CurrentPage: page,
		TotalPages:  pages,
		Total:       total,
		HasNextPage: page < pages,
		HasPrevPage: page > 1,
	}
}

// CompetitionStats summarises participation for a competition.
type CompetitionStats struct {
	TotalRegistrations     int    `json:"totalRegistrations"`
	ConfirmedRegistrations int    `json:"confirmedRegistrations"`
	SeatsRemaining         int    `json:"seatsRemaining"`
	TotalSubmissions       int    `json:"totalSubmissions"`
	Phase                  string `json:"phase"`
	IsUpcoming             bool   `json:"isUpcoming"`
	IsOngoing              bool   `json:"isOngoing"`
	IsPast                 bool   `json:"isPast"`
	RegistrationOpen       bool   `json:"registrationOpen"`
	DaysRemaining          int    `json:"daysRemaining"`
}

// CompetitionView is a competition enriched for a particular viewer.
type CompetitionView struct {
	Competition
	UserRegistered bool             `json:"user_registered"`
	UserSubmitted  bool             `json:"user_submitted"`
	Stats          CompetitionStats `json:"stats"`
}

// Envelope is the JSON response wrapper used by every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// RegistrationResult summarises the outcome of a single registration attempt.
// Used in the concurrent test harness.
type RegistrationResult struct {
	UserID  string
	Success bool
	Error   error
}
