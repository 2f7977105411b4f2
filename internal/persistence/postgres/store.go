// Package postgres implements persistence.Store on Postgres using pgx and sqlc-generated queries.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lewisedginton/present_ponder/internal/gift"
	"github.com/lewisedginton/present_ponder/internal/persistence"
	"github.com/lewisedginton/present_ponder/internal/persistence/postgres/sqlc"
	"github.com/lewisedginton/present_ponder/pkg/config"
	"github.com/lewisedginton/present_ponder/pkg/logger"
	"github.com/lewisedginton/present_ponder/pkg/prefixed_uuid"
)

// NewPool opens a connection pool and verifies it with a ping.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections)
	poolCfg.MinConns = int32(cfg.MinConnections)
	poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.MaxLifetime
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Store implements persistence.Store.
type Store struct {
	db      *pgxpool.Pool
	queries sqlc.Querier
	logger  logger.Logger
}

var _ persistence.Store = (*Store)(nil)

// New creates a Store on pool.
func New(pool *pgxpool.Pool, log logger.Logger) *Store {
	return &Store{
		db:      pool,
		queries: sqlc.New(pool),
		logger:  log,
	}
}

// newWithQuerier lets tests substitute the generated queries.
func newWithQuerier(q sqlc.Querier, log logger.Logger) *Store {
	return &Store{queries: q, logger: log}
}

// fail logs and wraps err, mapping pgx.ErrNoRows to gift.ErrNotFound.
func (s *Store) fail(op string, err error, fields ...logger.LogField) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &gift.PersistenceError{Op: op, Err: gift.ErrNotFound}
	}
	s.logger.Error("Database operation failed", append(fields, logger.StringField("op", op), logger.ErrorField(err))...)
	return &gift.PersistenceError{Op: op, Err: err}
}

func (s *Store) ListProfiles(ctx context.Context, accountID string) ([]gift.Profile, error) {
	rows, err := s.queries.ListGiftProfiles(ctx, accountID)
	if err != nil {
		return nil, s.fail("list profiles", err)
	}
	out := make([]gift.Profile, 0, len(rows))
	for _, row := range rows {
		p, err := toProfile(row)
		if err != nil {
			return nil, s.fail("list profiles", err, logger.StringField("profile_id", row.ID))
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) GetProfile(ctx context.Context, accountID, profileID string) (gift.Profile, error) {
	row, err := s.queries.GetGiftProfile(ctx, sqlc.GetGiftProfileParams{ID: profileID, UserID: accountID})
	if err != nil {
		return gift.Profile{}, s.fail("get profile", err, logger.StringField("profile_id", profileID))
	}
	p, err := toProfile(row)
	if err != nil {
		return gift.Profile{}, s.fail("get profile", err, logger.StringField("profile_id", profileID))
	}
	return p, nil
}

func (s *Store) CreateProfile(ctx context.Context, accountID string, draft gift.ProfileDraft) (gift.Profile, error) {
	notes, err := encodeNotes(draft.Notes)
	if err != nil {
		return gift.Profile{}, s.fail("create profile", err)
	}
	row, err := s.queries.CreateGiftProfile(ctx, sqlc.CreateGiftProfileParams{
		ID:           prefixed_uuid.New(persistence.ProfileIDPrefix).String(),
		UserID:       accountID,
		Name:         draft.Name,
		Relationship: draft.Relationship,
		Gender:       draft.Gender,
		Age:          int32(draft.Age),
		Interest:     draft.Interest,
		Notes:        notes,
	})
	if err != nil {
		return gift.Profile{}, s.fail("create profile", err)
	}
	s.logger.Info("Created profile", logger.StringField("profile_id", row.ID))
	p, err := toProfile(row)
	if err != nil {
		return gift.Profile{}, s.fail("create profile", err)
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, accountID, profileID string, draft gift.ProfileDraft) (gift.Profile, error) {
	notes, err := encodeNotes(draft.Notes)
	if err != nil {
		return gift.Profile{}, s.fail("update profile", err)
	}
	row, err := s.queries.UpdateGiftProfile(ctx, sqlc.UpdateGiftProfileParams{
		ID:           profileID,
		UserID:       accountID,
		Name:         draft.Name,
		Relationship: draft.Relationship,
		Gender:       draft.Gender,
		Age:          int32(draft.Age),
		Interest:     draft.Interest,
		Notes:        notes,
	})
	if err != nil {
		return gift.Profile{}, s.fail("update profile", err, logger.StringField("profile_id", profileID))
	}
	p, err := toProfile(row)
	if err != nil {
		return gift.Profile{}, s.fail("update profile", err)
	}
	return p, nil
}

// DeleteProfile removes the profile. Its recommendation sets cascade.
func (s *Store) DeleteProfile(ctx context.Context, accountID, profileID string) error {
	n, err := s.queries.DeleteGiftProfile(ctx, sqlc.DeleteGiftProfileParams{ID: profileID, UserID: accountID})
	if err != nil {
		return s.fail("delete profile", err, logger.StringField("profile_id", profileID))
	}
	if n == 0 {
		return s.fail("delete profile", pgx.ErrNoRows)
	}
	return nil
}

func (s *Store) ListRecommendationSets(ctx context.Context, accountID, profileID string) ([]gift.RecommendationSet, error) {
	var (
		rows []sqlc.Recommendation
		err  error
	)
	if profileID == "" {
		rows, err = s.queries.ListRecommendations(ctx, accountID)
	} else {
		rows, err = s.queries.ListRecommendationsByProfile(ctx, sqlc.ListRecommendationsByProfileParams{UserID: accountID, ProfileID: profileID})
	}
	if err != nil {
		return nil, s.fail("list recommendations", err)
	}
	out := make([]gift.RecommendationSet, 0, len(rows))
	for _, row := range rows {
		set, err := toSet(row)
		if err != nil {
			return nil, s.fail("list recommendations", err, logger.StringField("set_id", row.ID))
		}
		out = append(out, set)
	}
	return out, nil
}

// SaveRecommendationSet checks the profile belongs to the account and inserts the set
// in one transaction.
func (s *Store) SaveRecommendationSet(ctx context.Context, accountID string, draft gift.SetDraft) (gift.RecommendationSet, error) {
	recs, err := json.Marshal(nonNil(draft.Recommendations))
	if err != nil {
		return gift.RecommendationSet{}, s.fail("save recommendations", err)
	}
	params := sqlc.CreateRecommendationParams{
		ID:              prefixed_uuid.New(persistence.SetIDPrefix).String(),
		UserID:          accountID,
		ProfileID:       draft.ProfileID,
		Occasion:        draft.Occasion,
		OccasionNotes:   pgtype.Text{String: draft.OccasionNotes, Valid: draft.OccasionNotes != ""},
		Recommendations: recs,
	}
	if draft.OccasionDate != nil {
		params.OccasionDate = pgtype.Timestamptz{Time: *draft.OccasionDate, Valid: true}
	}

	var row sqlc.Recommendation
	err = s.withTx(ctx, func(q sqlc.Querier) error {
		if _, err := q.GetGiftProfile(ctx, sqlc.GetGiftProfileParams{ID: draft.ProfileID, UserID: accountID}); err != nil {
			return err
		}
		created, err := q.CreateRecommendation(ctx, params)
		row = created
		return err
	})
	if err != nil {
		return gift.RecommendationSet{}, s.fail("save recommendations", err, logger.StringField("profile_id", draft.ProfileID))
	}
	set, err := toSet(row)
	if err != nil {
		return gift.RecommendationSet{}, s.fail("save recommendations", err)
	}
	return set, nil
}

func (s *Store) DeleteRecommendationSet(ctx context.Context, accountID, setID string) error {
	n, err := s.queries.DeleteRecommendation(ctx, sqlc.DeleteRecommendationParams{ID: setID, UserID: accountID})
	if err != nil {
		return s.fail("delete recommendations", err, logger.StringField("set_id", setID))
	}
	if n == 0 {
		return s.fail("delete recommendations", pgx.ErrNoRows)
	}
	return nil
}

func (s *Store) GetAccumulatedNotes(ctx context.Context, accountID string) (string, error) {
	notes, err := s.queries.GetAccumulatedNotes(ctx, accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", s.fail("get accumulated notes", err)
	}
	return notes, nil
}

func (s *Store) SetAccumulatedNotes(ctx context.Context, accountID, notes string) error {
	if err := s.queries.UpsertAccumulatedNotes(ctx, sqlc.UpsertAccumulatedNotesParams{ID: accountID, AccumulatedNotes: notes}); err != nil {
		return s.fail("set accumulated notes", err)
	}
	return nil
}

// withTx runs fn inside a transaction. Without a pool (tests) fn runs on the plain querier.
func (s *Store) withTx(ctx context.Context, fn func(sqlc.Querier) error) error {
	if s.db == nil {
		return fn(s.queries)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(sqlc.New(s.db).WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func toProfile(row sqlc.GiftProfile) (gift.Profile, error) {
	notes := []gift.Note{}
	if len(row.Notes) > 0 {
		if err := json.Unmarshal(row.Notes, &notes); err != nil {
			return gift.Profile{}, fmt.Errorf("decode notes: %w", err)
		}
	}
	return gift.Profile{
		ID:           row.ID,
		AccountID:    row.UserID,
		Name:         row.Name,
		Relationship: row.Relationship,
		Gender:       row.Gender,
		Age:          int(row.Age),
		Interest:     row.Interest,
		Notes:        notes,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}, nil
}

func toSet(row sqlc.Recommendation) (gift.RecommendationSet, error) {
	recs := []gift.Recommendation{}
	if len(row.Recommendations) > 0 {
		if err := json.Unmarshal(row.Recommendations, &recs); err != nil {
			return gift.RecommendationSet{}, fmt.Errorf("decode recommendations: %w", err)
		}
	}
	set := gift.RecommendationSet{
		ID:              row.ID,
		AccountID:       row.UserID,
		ProfileID:       row.ProfileID,
		Occasion:        row.Occasion,
		OccasionNotes:   row.OccasionNotes.String,
		Recommendations: recs,
		GeneratedAt:     row.GeneratedAt.Time,
	}
	if row.OccasionDate.Valid {
		date := row.OccasionDate.Time
		set.OccasionDate = &date
	}
	return set, nil
}

func encodeNotes(notes []gift.Note) ([]byte, error) {
	return json.Marshal(nonNil(notes))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
