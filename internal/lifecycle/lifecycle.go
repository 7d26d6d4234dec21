// Package lifecycle derives a competition's phase from its dates.
// Stored status labels are a cache; these functions are the source of truth.
package lifecycle

import (
	"math"
	"time"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
)

// Phase is the time-derived stage of a competition.
type Phase string

const (
	Upcoming  Phase = "upcoming"
	Ongoing   Phase = "ongoing"
	Completed Phase = "completed"
)

// Classify maps (start, end, now) to exactly one phase.
// now == start is ongoing; now == end is completed.
func Classify(start, end, now time.Time) Phase {
	switch {
	case !now.Before(end):
		return Completed
	case now.Before(start):
		return Upcoming
	default:
		return Ongoing
	}
}

// Of classifies a competition at now.
func Of(c *model.Competition, now time.Time) Phase {
	return Classify(c.StartDate, c.EndDate, now)
}

// IsRegistrationOpen reports whether new registrations are still being
// taken: before the deadline (or start date when no deadline is set)
// and with at least one seat left.
func IsRegistrationOpen(c *model.Competition, now time.Time) bool {
	return now.Before(c.RegistrationCloses()) && c.SeatsRemaining > 0
}

// CachedStatus computes the status label persisted alongside a
// competition. Draft and cancelled are editorial states and are kept;
// anything else follows the dates.
func CachedStatus(c *model.Competition, now time.Time) model.Status {
	if c.Status == model.StatusCancelled || c.Status == model.StatusDraft {
		return c.Status
	}
	switch Of(c, now) {
	case Ongoing:
		return model.StatusOngoing
	case Completed:
		return model.StatusCompleted
	}
	return model.StatusPublished
}

// DaysRemaining returns whole days (rounded up) until end, negative once past.
func DaysRemaining(end, now time.Time) int {
	return int(math.Ceil(end.Sub(now).Hours() / 24))
}
