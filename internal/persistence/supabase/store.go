// Package supabase implements persistence.Store over the Supabase REST API, using the same
// tables as the Postgres schema (gift_profiles, recommendations, profiles).
package supabase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/supabase-community/supabase-go"

	"github.com/lewisedginton/present_ponder/internal/gift"
	"github.com/lewisedginton/present_ponder/internal/persistence"
	"github.com/lewisedginton/present_ponder/pkg/logger"
	"github.com/lewisedginton/present_ponder/pkg/prefixed_uuid"
)

const (
	profilesTable        = "gift_profiles"
	recommendationsTable = "recommendations"
	accountsTable        = "profiles"
)

// Config holds Supabase connection configuration
type Config struct {
	URL    string
	APIKey string
	Logger logger.Logger
}

// Store implements persistence.Store.
type Store struct {
	client *supabase.Client
	logger logger.Logger
}

var _ persistence.Store = (*Store)(nil)

// New creates a Store.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{client: client, logger: log}, nil
}

type profileRow struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	Name         string      `json:"name"`
	Relationship string      `json:"relationship"`
	Gender       string      `json:"gender"`
	Age          int         `json:"age"`
	Interest     string      `json:"interest"`
	Notes        []gift.Note `json:"notes"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type profileWrite struct {
	ID           string      `json:"id,omitempty"`
	UserID       string      `json:"user_id,omitempty"`
	Name         string      `json:"name"`
	Relationship string      `json:"relationship"`
	Gender       string      `json:"gender"`
	Age          int         `json:"age"`
	Interest     string      `json:"interest"`
	Notes        []gift.Note `json:"notes"`
	UpdatedAt    *time.Time  `json:"updated_at,omitempty"`
}

type setRow struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	ProfileID       string                `json:"profile_id"`
	Occasion        string                `json:"occasion"`
	OccasionDate    *time.Time            `json:"occasion_date"`
	OccasionNotes   *string               `json:"occasion_notes"`
	Recommendations []gift.Recommendation `json:"recommendations"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

type setWrite struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	ProfileID       string                `json:"profile_id"`
	Occasion        string                `json:"occasion"`
	OccasionDate    *time.Time            `json:"occasion_date"`
	OccasionNotes   *string               `json:"occasion_notes"`
	Recommendations []gift.Recommendation `json:"recommendations"`
}

type accountRow struct {
	ID               string `json:"id"`
	AccumulatedNotes string `json:"accumulated_notes"`
}

func (s *Store) fail(op string, err error) error {
	s.logger.Error("Supabase request failed", logger.StringField("op", op), logger.ErrorField(err))
	return &gift.PersistenceError{Op: op, Err: err}
}

func notFound(op string) error {
	return &gift.PersistenceError{Op: op, Err: gift.ErrNotFound}
}

func (s *Store) ListProfiles(ctx context.Context, accountID string) ([]gift.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, s.fail("list profiles", err)
	}
	var rows []profileRow
	_, err := s.client.From(profilesTable).
		Select("*", "", false).
		Eq("user_id", accountID).
		Order("created_at", nil).
		ExecuteTo(&rows)
	if err != nil {
		return nil, s.fail("list profiles", err)
	}
	out := make([]gift.Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.profile())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetProfile(ctx context.Context, accountID, profileID string) (gift.Profile, error) {
	if err := ctx.Err(); err != nil {
		return gift.Profile{}, s.fail("get profile", err)
	}
	var rows []profileRow
	_, err := s.client.From(profilesTable).
		Select("*", "", false).
		Eq("id", profileID).
		Eq("user_id", accountID).
		ExecuteTo(&rows)
	if err != nil {
		return gift.Profile{}, s.fail("get profile", err)
	}
	if len(rows) == 0 {
		return gift.Profile{}, notFound("get profile")
	}
	return rows[0].profile(), nil
}

func (s *Store) CreateProfile(ctx context.Context, accountID string, draft gift.ProfileDraft) (gift.Profile, error) {
	if err := ctx.Err(); err != nil {
		return gift.Profile{}, s.fail("create profile", err)
	}
	write := newProfileWrite(draft)
	write.ID = prefixed_uuid.New(persistence.ProfileIDPrefix).String()
	write.UserID = accountID

	var rows []profileRow
	_, err := s.client.From(profilesTable).
		Insert(write, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return gift.Profile{}, s.fail("create profile", err)
	}
	if len(rows) == 0 {
		return gift.Profile{}, s.fail("create profile", fmt.Errorf("insert returned no rows"))
	}
	s.logger.Info("Created profile", logger.StringField("profile_id", rows[0].ID))
	return rows[0].profile(), nil
}

func (s *Store) UpdateProfile(ctx context.Context, accountID, profileID string, draft gift.ProfileDraft) (gift.Profile, error) {
	if err := ctx.Err(); err != nil {
		return gift.Profile{}, s.fail("update profile", err)
	}
	write := newProfileWrite(draft)
	now := time.Now().UTC()
	write.UpdatedAt = &now

	var rows []profileRow
	_, err := s.client.From(profilesTable).
		Update(write, "representation", "").
		Eq("id", profileID).
		Eq("user_id", accountID).
		ExecuteTo(&rows)
	if err != nil {
		return gift.Profile{}, s.fail("update profile", err)
	}
	if len(rows) == 0 {
		return gift.Profile{}, notFound("update profile")
	}
	return rows[0].profile(), nil
}

func (s *Store) DeleteProfile(ctx context.Context, accountID, profileID string) error {
	return s.deleteOne(ctx, "delete profile", profilesTable, accountID, profileID)
}

func (s *Store) ListRecommendationSets(ctx context.Context, accountID, profileID string) ([]gift.RecommendationSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, s.fail("list recommendations", err)
	}
	query := s.client.From(recommendationsTable).
		Select("*", "", false).
		Eq("user_id", accountID)
	if profileID != "" {
		query = query.Eq("profile_id", profileID)
	}

	var rows []setRow
	if _, err := query.Order("generated_at", nil).ExecuteTo(&rows); err != nil {
		return nil, s.fail("list recommendations", err)
	}
	out := make([]gift.RecommendationSet, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.set())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	return out, nil
}

func (s *Store) SaveRecommendationSet(ctx context.Context, accountID string, draft gift.SetDraft) (gift.RecommendationSet, error) {
	if _, err := s.GetProfile(ctx, accountID, draft.ProfileID); err != nil {
		return gift.RecommendationSet{}, gift.NewPersistenceError("save recommendations", err)
	}

	write := setWrite{
		ID:              prefixed_uuid.New(persistence.SetIDPrefix).String(),
		UserID:          accountID,
		ProfileID:       draft.ProfileID,
		Occasion:        draft.Occasion,
		OccasionDate:    draft.OccasionDate,
		Recommendations: draft.Recommendations,
	}
	if write.Recommendations == nil {
		write.Recommendations = []gift.Recommendation{}
	}
	if draft.OccasionNotes != "" {
		notes := draft.OccasionNotes
		write.OccasionNotes = &notes
	}

	var rows []setRow
	_, err := s.client.From(recommendationsTable).
		Insert(write, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return gift.RecommendationSet{}, s.fail("save recommendations", err)
	}
	if len(rows) == 0 {
		return gift.RecommendationSet{}, s.fail("save recommendations", fmt.Errorf("insert returned no rows"))
	}
	return rows[0].set(), nil
}

func (s *Store) DeleteRecommendationSet(ctx context.Context, accountID, setID string) error {
	return s.deleteOne(ctx, "delete recommendations", recommendationsTable, accountID, setID)
}

func (s *Store) deleteOne(ctx context.Context, op, table, accountID, id string) error {
	if err := ctx.Err(); err != nil {
		return s.fail(op, err)
	}
	var rows []struct {
		ID string `json:"id"`
	}
	_, err := s.client.From(table).
		Delete("representation", "").
		Eq("id", id).
		Eq("user_id", accountID).
		ExecuteTo(&rows)
	if err != nil {
		return s.fail(op, err)
	}
	if len(rows) == 0 {
		return notFound(op)
	}
	return nil
}

func (s *Store) GetAccumulatedNotes(ctx context.Context, accountID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", s.fail("get accumulated notes", err)
	}
	var rows []accountRow
	_, err := s.client.From(accountsTable).
		Select("id,accumulated_notes", "", false).
		Eq("id", accountID).
		ExecuteTo(&rows)
	if err != nil {
		return "", s.fail("get accumulated notes", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].AccumulatedNotes, nil
}

func (s *Store) SetAccumulatedNotes(ctx context.Context, accountID, notes string) error {
	if err := ctx.Err(); err != nil {
		return s.fail("set accumulated notes", err)
	}
	_, _, err := s.client.From(accountsTable).
		Upsert(accountRow{ID: accountID, AccumulatedNotes: notes}, "id", "minimal", "").
		Execute()
	if err != nil {
		return s.fail("set accumulated notes", err)
	}
	return nil
}

func newProfileWrite(d gift.ProfileDraft) profileWrite {
	notes := d.Notes
	if notes == nil {
		notes = []gift.Note{}
	}
	return profileWrite{
		Name:         d.Name,
		Relationship: d.Relationship,
		Gender:       d.Gender,
		Age:          d.Age,
		Interest:     d.Interest,
		Notes:        notes,
	}
}

func (r profileRow) profile() gift.Profile {
	notes := r.Notes
	if notes == nil {
		notes = []gift.Note{}
	}
	return gift.Profile{
		ID:           r.ID,
		AccountID:    r.UserID,
		Name:         r.Name,
		Relationship: r.Relationship,
		Gender:       r.Gender,
		Age:          r.Age,
		Interest:     r.Interest,
		Notes:        notes,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r setRow) set() gift.RecommendationSet {
	recs := r.Recommendations
	if recs == nil {
		recs = []gift.Recommendation{}
	}
	set := gift.RecommendationSet{
		ID:              r.ID,
		AccountID:       r.UserID,
		ProfileID:       r.ProfileID,
		Occasion:        r.Occasion,
		OccasionDate:    r.OccasionDate,
		Recommendations: recs,
		GeneratedAt:     r.GeneratedAt,
	}
	if r.OccasionNotes != nil {
		set.OccasionNotes = *r.OccasionNotes
	}
	return set
}
