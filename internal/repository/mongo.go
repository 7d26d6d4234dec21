package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on MongoDB. Seat counters are changed with
// single-document conditional updates, which MongoDB applies atomically.
type MongoStore struct {
	competitions  *mongo.Collection
	registrations *mongo.Collection
	submissions   *mongo.Collection
	users         *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore constructs a MongoStore over db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		competitions:  db.Collection("competitions"),
		registrations: db.Collection("registrations"),
		submissions:   db.Collection("submissions"),
		users:         db.Collection("users"),
	}
}

// EnsureIndexes creates the unique indexes the store relies on for
// duplicate detection, plus the lookup indexes used by listings.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.competitions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "start_date", Value: 1}},
			Options: options.Index().SetName("competitions_start_date"),
		},
		{
			Keys:    bson.D{{Key: "is_active", Value: 1}, {Key: "source_type", Value: 1}},
			Options: options.Index().SetName("competitions_active_source"),
		},
	})
	if err != nil {
		return fmt.Errorf("competitions indexes: %w", err)
	}

	_, err = s.registrations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "competition_id", Value: 1}, {Key: "leader_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("registrations_competition_leader_unique"),
		},
		{
			Keys:    bson.D{{Key: "team_member_ids", Value: 1}},
			Options: options.Index().SetName("registrations_team_members"),
		},
		{
			// Multikey unique index: no user may appear in two
			// registrations of one competition.
			Keys: bson.D{{Key: "competition_id", Value: 1}, {Key: "participants", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("registrations_competition_participant_unique").
				SetPartialFilterExpression(bson.M{"participants": bson.M{"$exists": true}}),
		},
	})
	if err != nil {
		return fmt.Errorf("registrations indexes: %w", err)
	}

	_, err = s.submissions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "competition_id", Value: 1}, {Key: "leader_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("submissions_competition_leader_unique"),
	})
	if err != nil {
		return fmt.Errorf("submissions indexes: %w", err)
	}

	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_unique"),
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	return nil
}

func normalizeCompetition(c *model.Competition) *model.Competition {
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c
}

func normalizeRegistration(r *model.Registration) *model.Registration {
	if r.TeamMemberIDs == nil {
		r.TeamMemberIDs = []string{}
	}
	return r
}

// CreateCompetition inserts a competition document.
func (s *MongoStore) CreateCompetition(ctx context.Context, c *model.Competition) error {
	if _, err := s.competitions.InsertOne(ctx, normalizeCompetition(c)); err != nil {
		return fmt.Errorf("insert competition: %w", err)
	}
	return nil
}

// GetCompetition returns a competition or ErrNotFound.
func (s *MongoStore) GetCompetition(ctx context.Context, id string) (*model.Competition, error) {
	var c model.Competition
	if err := s.competitions.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get competition: %w", err)
	}
	return normalizeCompetition(&c), nil
}

func competitionFilter(f model.ListFilter) bson.M {
	filter := bson.M{}
	if f.SourceType != "" {
		filter["source_type"] = f.SourceType
	}
	if f.Active != nil {
		filter["is_active"] = *f.Active
	}
	switch f.Phase {
	case model.PhaseFilterUpcoming:
		filter["start_date"] = bson.M{"$gt": f.Now}
	case model.PhaseFilterOngoing:
		filter["start_date"] = bson.M{"$lte": f.Now}
		filter["end_date"] = bson.M{"$gt": f.Now}
	case model.PhaseFilterPast:
		filter["end_date"] = bson.M{"$lte": f.Now}
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		rx := bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"description": rx},
			bson.M{"sponsor": rx},
		}
	}
	return filter
}

// ListCompetitions returns a page of competitions ordered by start date.
func (s *MongoStore) ListCompetitions(ctx context.Context, f model.ListFilter) ([]model.Competition, int, error) {
	filter := competitionFilter(f)

	total, err := s.competitions.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count competitions: %w", err)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		findOpts.SetLimit(int64(f.Limit)).SetSkip(int64(f.Offset))
	}
	cur, err := s.competitions.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("list competitions: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.Competition
	for cur.Next(ctx) {
		var c model.Competition
		if err := cur.Decode(&c); err != nil {
			return nil, 0, fmt.Errorf("decode competition: %w", err)
		}
		out = append(out, *normalizeCompetition(&c))
	}
	if err := cur.Err(); err != nil {
		return nil, 0, fmt.Errorf("list competitions cursor: %w", err)
	}
	return out, int(total), nil
}

// UpdateCompetition writes every editable field except the seat counters.
func (s *MongoStore) UpdateCompetition(ctx context.Context, c *model.Competition) error {
	set := bson.M{
		"title":                 c.Title,
		"description":           c.Description,
		"source_type":           c.SourceType,
		"sponsor":               c.Sponsor,
		"location":              c.Location,
		"banner_image_url":      c.BannerImageURL,
		"rules":                 c.Rules,
		"tags":                  normalizeCompetition(c).Tags,
		"prize_pool":            c.PrizePool,
		"start_date":            c.StartDate,
		"end_date":              c.EndDate,
		"registration_deadline": c.RegistrationDeadline,
		"max_team_size":         c.MaxTeamSize,
		"status":                c.Status,
		"is_active":             c.IsActive,
		"is_featured":           c.IsFeatured,
		"stages":                c.Stages,
		"eligibility_criteria":  c.EligibilityCriteria,
		"contact_info":          c.ContactInfo,
		"updated_at":            c.UpdatedAt,
	}
	res, err := s.competitions.UpdateByID(ctx, c.ID, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update competition: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCompetition removes a competition.
func (s *MongoStore) DeleteCompetition(ctx context.Context, id string) error {
	res, err := s.competitions.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete competition: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ReserveSeats decrements seats_remaining with a filter that only
// matches while enough seats are left; concurrent callers cannot both
// take the last seat.
func (s *MongoStore) ReserveSeats(ctx context.Context, id string, n int) (*model.Competition, error) {
	if err := checkSeatCount(n); err != nil {
		return nil, err
	}
	filter := bson.M{"_id": id, "seats_remaining": bson.M{"$gte": n}}
	update := bson.M{
		"$inc": bson.M{"seats_remaining": -n},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var c model.Competition
	err := s.competitions.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c)
	if err == nil {
		return normalizeCompetition(&c), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("reserve seats: %w", err)
	}

	count, err := s.competitions.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("reserve seats post-check: %w", err)
	}
	if count == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrCapacityExceeded
}

// ReleaseSeats adds n seats back using an aggregation-pipeline update so
// the clamp to total_seats happens inside the same atomic write.
func (s *MongoStore) ReleaseSeats(ctx context.Context, id string, n int) (*model.Competition, error) {
	if err := checkSeatCount(n); err != nil {
		return nil, err
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "seats_remaining", Value: bson.D{{Key: "$min", Value: bson.A{
				"$total_seats",
				bson.D{{Key: "$add", Value: bson.A{"$seats_remaining", n}}},
			}}}},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var c model.Competition
	if err := s.competitions.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("release seats: %w", err)
	}
	return normalizeCompetition(&c), nil
}

// registrationDoc is the stored form of a registration. participants
// lists the leader and members for the unique participant index.
type registrationDoc struct {
	model.Registration `bson:",inline"`
	Participants       []string `bson:"participants"`
}

// CreateRegistration inserts a registration. The unique participant index
// rejects any overlap with another registration in the competition; the
// duplicate is then attributed to the leader or to a member.
func (s *MongoStore) CreateRegistration(ctx context.Context, r *model.Registration) error {
	doc := registrationDoc{Registration: *normalizeRegistration(r)}
	doc.Participants = append([]string{r.LeaderID}, r.TeamMemberIDs...)
	for _, id := range r.TeamMemberIDs {
		if id == r.LeaderID {
			return ErrMemberConflict
		}
	}

	_, err := s.registrations.InsertOne(ctx, doc)
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert registration: %w", err)
	}
	leaderTaken, cerr := s.IsParticipant(ctx, r.CompetitionID, r.LeaderID)
	if cerr != nil {
		return cerr
	}
	if leaderTaken {
		return ErrAlreadyRegistered
	}
	return ErrMemberConflict
}

func (s *MongoStore) findRegistration(ctx context.Context, filter bson.M) (*model.Registration, error) {
	var r model.Registration
	if err := s.registrations.FindOne(ctx, filter).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return normalizeRegistration(&r), nil
}

// GetRegistration returns a registration or ErrNotFound.
func (s *MongoStore) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	return s.findRegistration(ctx, bson.M{"_id": id})
}

// FindRegistration returns the registration led by leaderID.
func (s *MongoStore) FindRegistration(ctx context.Context, competitionID, leaderID string) (*model.Registration, error) {
	return s.findRegistration(ctx, bson.M{"competition_id": competitionID, "leader_id": leaderID})
}

func participantFilter(userID string) bson.A {
	return bson.A{
		bson.M{"leader_id": userID},
		bson.M{"team_member_ids": userID},
	}
}

// IsParticipant reports whether userID leads or belongs to a registration.
func (s *MongoStore) IsParticipant(ctx context.Context, competitionID, userID string) (bool, error) {
	n, err := s.registrations.CountDocuments(ctx, bson.M{
		"competition_id": competitionID,
		"$or":            participantFilter(userID),
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return n > 0, nil
}

// DeleteRegistration removes a registration.
func (s *MongoStore) DeleteRegistration(ctx context.Context, id string) error {
	res, err := s.registrations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) listRegistrations(ctx context.Context, filter bson.M, limit, offset int) ([]model.Registration, int, error) {
	total, err := s.registrations.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit)).SetSkip(int64(offset))
	}
	cur, err := s.registrations.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	defer cur.Close(ctx)

	var regs []model.Registration
	for cur.Next(ctx) {
		var r model.Registration
		if err := cur.Decode(&r); err != nil {
			return nil, 0, fmt.Errorf("decode registration: %w", err)
		}
		regs = append(regs, *normalizeRegistration(&r))
	}
	if err := cur.Err(); err != nil {
		return nil, 0, fmt.Errorf("list registrations cursor: %w", err)
	}
	return regs, int(total), nil
}

// ListRegistrationsByCompetition returns registrations newest first.
func (s *MongoStore) ListRegistrationsByCompetition(ctx context.Context, competitionID string, limit, offset int) ([]model.Registration, int, error) {
	return s.listRegistrations(ctx, bson.M{"competition_id": competitionID}, limit, offset)
}

// ListRegistrationsByUser returns registrations the user leads or belongs to.
func (s *MongoStore) ListRegistrationsByUser(ctx context.Context, userID string, limit, offset int) ([]model.Registration, int, error) {
	return s.listRegistrations(ctx, bson.M{"$or": participantFilter(userID)}, limit, offset)
}

// CountRegistrations counts registrations for a competition.
func (s *MongoStore) CountRegistrations(ctx context.Context, competitionID string) (int, error) {
	n, err := s.registrations.CountDocuments(ctx, bson.M{"competition_id": competitionID})
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return int(n), nil
}

// CreateSubmission inserts a submission; one per leader per competition.
func (s *MongoStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	if _, err := s.submissions.InsertOne(ctx, sub); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadySubmitted
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// HasSubmission reports whether leaderID has submitted to the competition.
func (s *MongoStore) HasSubmission(ctx context.Context, competitionID, leaderID string) (bool, error) {
	n, err := s.submissions.CountDocuments(ctx,
		bson.M{"competition_id": competitionID, "leader_id": leaderID},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check submission: %w", err)
	}
	return n > 0, nil
}

// CountSubmissions counts submissions for a competition.
func (s *MongoStore) CountSubmissions(ctx context.Context, competitionID string) (int, error) {
	n, err := s.submissions.CountDocuments(ctx, bson.M{"competition_id": competitionID})
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return int(n), nil
}

// CreateUser inserts a user with a lower-cased email.
func (s *MongoStore) CreateUser(ctx context.Context, u *model.User) error {
	stored := *u
	stored.Email = strings.ToLower(u.Email)
	if _, err := s.users.InsertOne(ctx, stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns a user or ErrNotFound.
func (s *MongoStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// FindActiveUsersByEmail returns the active users among emails.
func (s *MongoStore) FindActiveUsersByEmail(ctx context.Context, emails []string) ([]model.User, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(emails))
	for i, e := range emails {
		lowered[i] = strings.ToLower(strings.TrimSpace(e))
	}
	cur, err := s.users.Find(ctx,
		bson.M{"email": bson.M{"$in": lowered}, "is_active": true},
		options.Find().SetSort(bson.D{{Key: "email", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cur.Close(ctx)

	var users []model.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}
