package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
)

// MemoryStore keeps everything in process memory behind a single mutex.
// Every method is atomic, which gives ReserveSeats the same
// all-or-nothing behaviour as the database backends.
type MemoryStore struct {
	mu            sync.Mutex
	competitions  map[string]model.Competition
	registrations map[string]model.Registration
	submissions   map[string]model.Submission
	users         map[string]model.User
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		competitions:  make(map[string]model.Competition),
		registrations: make(map[string]model.Registration),
		submissions:   make(map[string]model.Submission),
		users:         make(map[string]model.User),
	}
}

func cloneCompetition(c model.Competition) *model.Competition {
	c.Tags = append([]string{}, c.Tags...)
	if c.RegistrationDeadline != nil {
		d := *c.RegistrationDeadline
		c.RegistrationDeadline = &d
	}
	if c.PrizePool != nil {
		p := *c.PrizePool
		c.PrizePool = &p
	}
	return &c
}

func cloneRegistration(r model.Registration) *model.Registration {
	r.TeamMemberIDs = append([]string{}, r.TeamMemberIDs...)
	return &r
}

// CreateCompetition stores a copy of c.
func (s *MemoryStore) CreateCompetition(_ context.Context, c *model.Competition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.competitions[c.ID] = *cloneCompetition(*c)
	return nil
}

// GetCompetition returns a copy of the stored competition.
func (s *MemoryStore) GetCompetition(_ context.Context, id string) (*model.Competition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.competitions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCompetition(c), nil
}

func matchesFilter(c *model.Competition, f model.ListFilter) bool {
	if f.SourceType != "" && c.SourceType != f.SourceType {
		return false
	}
	if f.Active != nil && c.IsActive != *f.Active {
		return false
	}
	switch f.Phase {
	case model.PhaseFilterUpcoming:
		if !c.StartDate.After(f.Now) {
			return false
		}
	case model.PhaseFilterOngoing:
		if c.StartDate.After(f.Now) || !c.EndDate.After(f.Now) {
			return false
		}
	case model.PhaseFilterPast:
		if c.EndDate.After(f.Now) {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hay := strings.ToLower(c.Title + "\n" + c.Description + "\n" + c.Sponsor)
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

// ListCompetitions filters, sorts by start date and pages.
func (s *MemoryStore) ListCompetitions(_ context.Context, f model.ListFilter) ([]model.Competition, int, error) {
	s.mu.Lock()
	var all []model.Competition
	for _, c := range s.competitions {
		if matchesFilter(&c, f) {
			all = append(all, *cloneCompetition(c))
		}
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].StartDate.Equal(all[j].StartDate) {
			return all[i].ID < all[j].ID
		}
		return all[i].StartDate.Before(all[j].StartDate)
	})
	return paginate(all, f.Limit, f.Offset), len(all), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// UpdateCompetition replaces editable fields, keeping the stored seat counters.
func (s *MemoryStore) UpdateCompetition(_ context.Context, c *model.Competition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.competitions[c.ID]
	if !ok {
		return ErrNotFound
	}
	next := *cloneCompetition(*c)
	next.TotalSeats = cur.TotalSeats
	next.SeatsRemaining = cur.SeatsRemaining
	next.CreatedAt = cur.CreatedAt
	next.CreatedBy = cur.CreatedBy
	s.competitions[c.ID] = next
	return nil
}

// DeleteCompetition removes a competition.
func (s *MemoryStore) DeleteCompetition(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.competitions[id]; !ok {
		return ErrNotFound
	}
	delete(s.competitions, id)
	return nil
}

// ReserveSeats decrements seats_remaining by n if at least n remain.
func (s *MemoryStore) ReserveSeats(_ context.Context, id string, n int) (*model.Competition, error) {
	if err := checkSeatCount(n); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.competitions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c.SeatsRemaining < n {
		return nil, ErrCapacityExceeded
	}
	c.SeatsRemaining -= n
	s.competitions[id] = c
	return cloneCompetition(c), nil
}

// ReleaseSeats increments seats_remaining by n, clamped to total_seats.
func (s *MemoryStore) ReleaseSeats(_ context.Context, id string, n int) (*model.Competition, error) {
	if err := checkSeatCount(n); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.competitions[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.SeatsRemaining = min(c.TotalSeats, c.SeatsRemaining+n)
	s.competitions[id] = c
	return cloneCompetition(c), nil
}

// CreateRegistration stores r unless one of its participants already
// takes part in the competition.
func (s *MemoryStore) CreateRegistration(_ context.Context, r *model.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.registrations {
		if existing.CompetitionID != r.CompetitionID {
			continue
		}
		if existing.Includes(r.LeaderID) {
			return ErrAlreadyRegistered
		}
		for _, id := range r.TeamMemberIDs {
			if existing.Includes(id) {
				return ErrMemberConflict
			}
		}
	}
	for _, id := range r.TeamMemberIDs {
		if id == r.LeaderID {
			return ErrMemberConflict
		}
	}
	s.registrations[r.ID] = *cloneRegistration(*r)
	return nil
}

// GetRegistration returns a registration or ErrNotFound.
func (s *MemoryStore) GetRegistration(_ context.Context, id string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRegistration(r), nil
}

// FindRegistration returns the registration led by leaderID.
func (s *MemoryStore) FindRegistration(_ context.Context, competitionID, leaderID string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.registrations {
		if r.CompetitionID == competitionID && r.LeaderID == leaderID {
			return cloneRegistration(r), nil
		}
	}
	return nil, ErrNotFound
}

// IsParticipant reports whether userID leads or belongs to a registration.
func (s *MemoryStore) IsParticipant(_ context.Context, competitionID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.registrations {
		if r.CompetitionID == competitionID && r.Includes(userID) {
			return true, nil
		}
	}
	return false, nil
}

// DeleteRegistration removes a registration.
func (s *MemoryStore) DeleteRegistration(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registrations[id]; !ok {
		return ErrNotFound
	}
	delete(s.registrations, id)
	return nil
}

func (s *MemoryStore) listRegistrations(match func(*model.Registration) bool) []model.Registration {
	s.mu.Lock()
	var out []model.Registration
	for _, r := range s.registrations {
		if match(&r) {
			out = append(out, *cloneRegistration(r))
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ListRegistrationsByCompetition returns registrations newest first.
func (s *MemoryStore) ListRegistrationsByCompetition(_ context.Context, competitionID string, limit, offset int) ([]model.Registration, int, error) {
	all := s.listRegistrations(func(r *model.Registration) bool {
		return r.CompetitionID == competitionID
	})
	return paginate(all, limit, offset), len(all), nil
}

// ListRegistrationsByUser returns registrations the user leads or belongs to.
func (s *MemoryStore) ListRegistrationsByUser(_ context.Context, userID string, limit, offset int) ([]model.Registration, int, error) {
	all := s.listRegistrations(func(r *model.Registration) bool {
		return r.Includes(userID)
	})
	return paginate(all, limit, offset), len(all), nil
}

// CountRegistrations counts registrations for a competition.
func (s *MemoryStore) CountRegistrations(_ context.Context, competitionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.registrations {
		if r.CompetitionID == competitionID {
			n++
		}
	}
	return n, nil
}

// CreateSubmission stores a submission; one per leader per competition.
func (s *MemoryStore) CreateSubmission(_ context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.submissions {
		if existing.CompetitionID == sub.CompetitionID && existing.LeaderID == sub.LeaderID {
			return ErrAlreadySubmitted
		}
	}
	s.submissions[sub.ID] = *sub
	return nil
}

// HasSubmission reports whether leaderID has submitted to the competition.
func (s *MemoryStore) HasSubmission(_ context.Context, competitionID, leaderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.submissions {
		if sub.CompetitionID == competitionID && sub.LeaderID == leaderID {
			return true, nil
		}
	}
	return false, nil
}

// CountSubmissions counts submissions for a competition.
func (s *MemoryStore) CountSubmissions(_ context.Context, competitionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.submissions {
		if sub.CompetitionID == competitionID {
			n++
		}
	}
	return n, nil
}

// CreateUser stores a user; emails are unique case-insensitively.
func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	for _, existing := range s.users {
		if existing.Email == email {
			return ErrDuplicateEmail
		}
	}
	stored := *u
	stored.Email = email
	s.users[u.ID] = stored
	return nil
}

// GetUser returns a user or ErrNotFound.
func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// FindActiveUsersByEmail returns the active users among emails, ordered by email.
func (s *MemoryStore) FindActiveUsersByEmail(_ context.Context, emails []string) ([]model.User, error) {
	want := make(map[string]bool, len(emails))
	for _, e := range emails {
		want[strings.ToLower(strings.TrimSpace(e))] = true
	}
	s.mu.Lock()
	var out []model.User
	for _, u := range s.users {
		if u.IsActive && want[u.Email] {
			out = append(out, u)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}
