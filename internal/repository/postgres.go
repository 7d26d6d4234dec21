package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresStore implements Store on PostgreSQL using pgx directly (no ORM).
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// ─── Competitions ─────────────────────────────────────────────────────────────

const competitionColumns = `id, title, description, source_type, sponsor, location,
	banner_image_url, rules, tags, prize_pool, start_date, end_date,
	registration_deadline, max_team_size, total_seats, seats_remaining, status,
	is_active, is_featured, stages, eligibility_criteria, contact_info,
	created_by, created_at, updated_at`

func scanCompetition(row pgx.Row) (*model.Competition, error) {
	var (
		c                                         model.Competition
		sponsor, location, banner, rules, creator *string
		stages, eligibility, contact, status      string
	)
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.SourceType, &sponsor, &location,
		&banner, &rules, &c.Tags, &c.PrizePool, &c.StartDate, &c.EndDate,
		&c.RegistrationDeadline, &c.MaxTeamSize, &c.TotalSeats, &c.SeatsRemaining, &status,
		&c.IsActive, &c.IsFeatured, &stages, &eligibility, &contact,
		&creator, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Sponsor = deref(sponsor)
	c.Location = deref(location)
	c.BannerImageURL = deref(banner)
	c.Rules = deref(rules)
	c.CreatedBy = deref(creator)
	c.Status = model.Status(status)
	c.Stages = model.ParseFlex(stages)
	c.EligibilityCriteria = model.ParseFlex(eligibility)
	c.ContactInfo = model.ParseFlex(contact)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return &c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// tags is NOT NULL; pgx encodes a nil slice as NULL.
func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// CreateCompetition inserts a new competition.
func (s *PostgresStore) CreateCompetition(ctx context.Context, c *model.Competition) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO competitions (`+competitionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		         $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		c.ID, c.Title, c.Description, c.SourceType, nullable(c.Sponsor), nullable(c.Location),
		nullable(c.BannerImageURL), nullable(c.Rules), tagsOrEmpty(c.Tags), c.PrizePool, c.StartDate, c.EndDate,
		c.RegistrationDeadline, c.MaxTeamSize, c.TotalSeats, c.SeatsRemaining, string(c.Status),
		c.IsActive, c.IsFeatured, c.Stages.Encode("[]"), c.EligibilityCriteria.Encode("{}"), c.ContactInfo.Encode("{}"),
		nullable(c.CreatedBy), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert competition: %w", err)
	}
	return nil
}

// GetCompetition returns a single competition or ErrNotFound.
func (s *PostgresStore) GetCompetition(ctx context.Context, id string) (*model.Competition, error) {
	c, err := scanCompetition(s.db.QueryRow(ctx,
		`SELECT `+competitionColumns+` FROM competitions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get competition: %w", err)
	}
	return c, nil
}

func competitionWhere(f model.ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.SourceType != "" {
		add("source_type = $%d", f.SourceType)
	}
	if f.Active != nil {
		add("is_active = $%d", *f.Active)
	}
	switch f.Phase {
	case model.PhaseFilterUpcoming:
		add("start_date > $%d", f.Now)
	case model.PhaseFilterOngoing:
		add("start_date <= $%d", f.Now)
		add("end_date > $%d", f.Now)
	case model.PhaseFilterPast:
		add("end_date <= $%d", f.Now)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR sponsor ILIKE $%d)", n, n, n))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListCompetitions returns a page of competitions ordered by start date,
// plus the total number matching the filter.
func (s *PostgresStore) ListCompetitions(ctx context.Context, f model.ListFilter) ([]model.Competition, int, error) {
	where, args := competitionWhere(f)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM competitions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count competitions: %w", err)
	}

	query := `SELECT ` + competitionColumns + ` FROM competitions` + where + ` ORDER BY start_date ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list competitions: %w", err)
	}
	defer rows.Close()

	var out []model.Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan competition: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// UpdateCompetition writes every editable column. Seat counters are not touched.
func (s *PostgresStore) UpdateCompetition(ctx context.Context, c *model.Competition) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE competitions SET
			title = $2, description = $3, source_type = $4, sponsor = $5, location = $6,
			banner_image_url = $7, rules = $8, tags = $9, prize_pool = $10,
			start_date = $11, end_date = $12, registration_deadline = $13,
			max_team_size = $14, status = $15, is_active = $16, is_featured = $17,
			stages = $18, eligibility_criteria = $19, contact_info = $20, updated_at = $21
		 WHERE id = $1`,
		c.ID, c.Title, c.Description, c.SourceType, nullable(c.Sponsor), nullable(c.Location),
		nullable(c.BannerImageURL), nullable(c.Rules), tagsOrEmpty(c.Tags), c.PrizePool,
		c.StartDate, c.EndDate, c.RegistrationDeadline,
		c.MaxTeamSize, string(c.Status), c.IsActive, c.IsFeatured,
		c.Stages.Encode("[]"), c.EligibilityCriteria.Encode("{}"), c.ContactInfo.Encode("{}"), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update competition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCompetition removes a competition.
func (s *PostgresStore) DeleteCompetition(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM competitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete competition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReserveSeats decrements the seat counter with a single conditional UPDATE.
//
// The WHERE clause carries the capacity check, so Postgres evaluates it
// against the latest committed row while holding the row lock. Two
// requests racing for the last seat serialise on that lock; the second
// one re-checks `seats_remaining >= n`, matches nothing and gets no row
// back. There is no read-then-write window in application code.
func (s *PostgresStore) ReserveSeats(ctx context.Context, id string, n int) (*model.Competition, error) {
	if err := checkSeatCount(n); err != nil {
		return nil, err
	}
	c, err := scanCompetition(s.db.QueryRow(ctx,
		`UPDATE competitions
		 SET seats_remaining = seats_remaining - $2, updated_at = $3
		 WHERE id = $1 AND seats_remaining >= $2
		 RETURNING `+competitionColumns,
		id, n, time.Now().UTC(),
	))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reserve seats: %w", err)
	}

	// Nothing matched: either the competition is gone or it is full.
	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM competitions WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("reserve seats: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrCapacityExceeded
}

// ReleaseSeats gives n seats back, never exceeding total_seats.
func (s *PostgresStore) ReleaseSeats(ctx context.Context, id string, n int) (*model.Competition, error) {
	if err := checkSeatCount(n); err != nil {
		return nil, err
	}
	c, err := scanCompetition(s.db.QueryRow(ctx,
		`UPDATE competitions
		 SET seats_remaining = LEAST(total_seats, seats_remaining + $2), updated_at = $3
		 WHERE id = $1
		 RETURNING `+competitionColumns,
		id, n, time.Now().UTC(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("release seats: %w", err)
	}
	return c, nil
}

// ─── Registrations ────────────────────────────────────────────────────────────

const registrationColumns = `r.id, r.competition_id, r.leader_id, r.type,
	COALESCE(r.team_name, ''), COALESCE(r.abstract, ''),
	ARRAY(SELECT m.user_id FROM registration_members m WHERE m.registration_id = r.id AND NOT m.is_leader ORDER BY m.user_id),
	r.status, r.created_at`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var r model.Registration
	if err := row.Scan(
		&r.ID, &r.CompetitionID, &r.LeaderID, &r.Type, &r.TeamName, &r.Abstract,
		&r.TeamMemberIDs, &r.Status, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	if r.TeamMemberIDs == nil {
		r.TeamMemberIDs = []string{}
	}
	return &r, nil
}

// CreateRegistration inserts a registration and one registration_members
// row per participant in one transaction. registration_members_uniq turns
// any overlap with another registration into a unique violation: on the
// leader's row it is ErrAlreadyRegistered, on a member's ErrMemberConflict.
func (s *PostgresStore) CreateRegistration(ctx context.Context, r *model.Registration) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO registrations (id, competition_id, leader_id, type, team_name, abstract, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.CompetitionID, r.LeaderID, r.Type, nullable(r.TeamName), nullable(r.Abstract), r.Status, r.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrAlreadyRegistered
			return err
		}
		return fmt.Errorf("insert registration: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO registration_members (registration_id, competition_id, user_id, is_leader) VALUES ($1, $2, $3, TRUE)`,
		r.ID, r.CompetitionID, r.LeaderID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrAlreadyRegistered
			return err
		}
		return fmt.Errorf("insert leader: %w", err)
	}

	for _, memberID := range r.TeamMemberIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO registration_members (registration_id, competition_id, user_id) VALUES ($1, $2, $3)`,
			r.ID, r.CompetitionID, memberID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				err = ErrMemberConflict
				return err
			}
			return fmt.Errorf("insert team member: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetRegistration returns a registration or ErrNotFound.
func (s *PostgresStore) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	r, err := scanRegistration(s.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations r WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return r, nil
}

// FindRegistration returns the registration led by leaderID or ErrNotFound.
func (s *PostgresStore) FindRegistration(ctx context.Context, competitionID, leaderID string) (*model.Registration, error) {
	r, err := scanRegistration(s.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations r
		 WHERE r.competition_id = $1 AND r.leader_id = $2`,
		competitionID, leaderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return r, nil
}

// IsParticipant checks both leaders and team members.
func (s *PostgresStore) IsParticipant(ctx context.Context, competitionID, userID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE competition_id = $1 AND leader_id = $2)
		     OR EXISTS (SELECT 1 FROM registration_members WHERE competition_id = $1 AND user_id = $2)`,
		competitionID, userID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return ok, nil
}

// DeleteRegistration removes a registration; members cascade.
func (s *PostgresStore) DeleteRegistration(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) listRegistrations(ctx context.Context, where string, args []any, limit, offset int) ([]model.Registration, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM registrations r WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}

	query := `SELECT ` + registrationColumns + ` FROM registrations r WHERE ` + where + ` ORDER BY r.created_at DESC`
	if limit > 0 {
		args = append(args, limit, offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *r)
	}
	return regs, total, rows.Err()
}

// ListRegistrationsByCompetition returns registrations newest first.
func (s *PostgresStore) ListRegistrationsByCompetition(ctx context.Context, competitionID string, limit, offset int) ([]model.Registration, int, error) {
	return s.listRegistrations(ctx, `r.competition_id = $1`, []any{competitionID}, limit, offset)
}

// ListRegistrationsByUser returns registrations the user leads or belongs to.
func (s *PostgresStore) ListRegistrationsByUser(ctx context.Context, userID string, limit, offset int) ([]model.Registration, int, error) {
	return s.listRegistrations(ctx,
		`(r.leader_id = $1 OR EXISTS (SELECT 1 FROM registration_members m WHERE m.registration_id = r.id AND m.user_id = $1))`,
		[]any{userID}, limit, offset)
}

// CountRegistrations counts registrations for a competition.
func (s *PostgresStore) CountRegistrations(ctx context.Context, competitionID string) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE competition_id = $1`, competitionID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

// ─── Submissions ──────────────────────────────────────────────────────────────

// CreateSubmission inserts a submission; one per leader per competition.
func (s *PostgresStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO submissions (id, competition_id, leader_id, title, summary, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.CompetitionID, sub.LeaderID, sub.Title, nullable(sub.Summary), sub.Status, sub.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadySubmitted
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// HasSubmission reports whether leaderID has submitted to the competition.
func (s *PostgresStore) HasSubmission(ctx context.Context, competitionID, leaderID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM submissions WHERE competition_id = $1 AND leader_id = $2)`,
		competitionID, leaderID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check submission: %w", err)
	}
	return ok, nil
}

// CountSubmissions counts submissions for a competition.
func (s *PostgresStore) CountSubmissions(ctx context.Context, competitionID string) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE competition_id = $1`, competitionID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

// ─── Users ────────────────────────────────────────────────────────────────────

// CreateUser inserts a user.
func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO users (id, name, email, role, is_active) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Name, strings.ToLower(u.Email), u.Role, u.IsActive,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns a user or ErrNotFound.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRow(ctx,
		`SELECT id, name, email, role, is_active FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// FindActiveUsersByEmail returns the active users among emails.
func (s *PostgresStore) FindActiveUsersByEmail(ctx context.Context, emails []string) ([]model.User, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(emails))
	for i, e := range emails {
		lowered[i] = strings.ToLower(strings.TrimSpace(e))
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, name, email, role, is_active FROM users
		 WHERE email = ANY($1) AND is_active = TRUE
		 ORDER BY email`,
		lowered,
	)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.IsActive); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
