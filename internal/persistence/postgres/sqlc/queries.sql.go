package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createGiftProfile = `-- name: CreateGiftProfile :one
INSERT INTO gift_profiles (id, user_id, name, relationship, gender, age, interest, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, user_id, name, relationship, gender, age, interest, notes, created_at, updated_at
`

type CreateGiftProfileParams struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Gender       string `json:"gender"`
	Age          int32  `json:"age"`
	Interest     string `json:"interest"`
	Notes        []byte `json:"notes"`
}

func (q *Queries) CreateGiftProfile(ctx context.Context, arg CreateGiftProfileParams) (GiftProfile, error) {
	row := q.db.QueryRow(ctx, createGiftProfile,
		arg.ID,
		arg.UserID,
		arg.Name,
		arg.Relationship,
		arg.Gender,
		arg.Age,
		arg.Interest,
		arg.Notes,
	)
	var i GiftProfile
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Name,
		&i.Relationship,
		&i.Gender,
		&i.Age,
		&i.Interest,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createRecommendation = `-- name: CreateRecommendation :one
INSERT INTO recommendations (id, user_id, profile_id, occasion, occasion_date, occasion_notes, recommendations)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, user_id, profile_id, occasion, occasion_date, occasion_notes, recommendations, generated_at, created_at
`

type CreateRecommendationParams struct {
	ID              string             `json:"id"`
	UserID          string             `json:"user_id"`
	ProfileID       string             `json:"profile_id"`
	Occasion        string             `json:"occasion"`
	OccasionDate    pgtype.Timestamptz `json:"occasion_date"`
	OccasionNotes   pgtype.Text        `json:"occasion_notes"`
	Recommendations []byte             `json:"recommendations"`
}

func (q *Queries) CreateRecommendation(ctx context.Context, arg CreateRecommendationParams) (Recommendation, error) {
	row := q.db.QueryRow(ctx, createRecommendation,
		arg.ID,
		arg.UserID,
		arg.ProfileID,
		arg.Occasion,
		arg.OccasionDate,
		arg.OccasionNotes,
		arg.Recommendations,
	)
	var i Recommendation
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.ProfileID,
		&i.Occasion,
		&i.OccasionDate,
		&i.OccasionNotes,
		&i.Recommendations,
		&i.GeneratedAt,
		&i.CreatedAt,
	)
	return i, err
}

const deleteGiftProfile = `-- name: DeleteGiftProfile :execrows
DELETE FROM gift_profiles WHERE id = $1 AND user_id = $2
`

type DeleteGiftProfileParams struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

func (q *Queries) DeleteGiftProfile(ctx context.Context, arg DeleteGiftProfileParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteGiftProfile, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteRecommendation = `-- name: DeleteRecommendation :execrows
DELETE FROM recommendations WHERE id = $1 AND user_id = $2
`

type DeleteRecommendationParams struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

func (q *Queries) DeleteRecommendation(ctx context.Context, arg DeleteRecommendationParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteRecommendation, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getAccumulatedNotes = `-- name: GetAccumulatedNotes :one
SELECT accumulated_notes FROM profiles WHERE id = $1
`

func (q *Queries) GetAccumulatedNotes(ctx context.Context, id string) (string, error) {
	row := q.db.QueryRow(ctx, getAccumulatedNotes, id)
	var accumulated_notes string
	err := row.Scan(&accumulated_notes)
	return accumulated_notes, err
}

const getGiftProfile = `-- name: GetGiftProfile :one
SELECT id, user_id, name, relationship, gender, age, interest, notes, created_at, updated_at FROM gift_profiles
WHERE id = $1 AND user_id = $2
`

type GetGiftProfileParams struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

func (q *Queries) GetGiftProfile(ctx context.Context, arg GetGiftProfileParams) (GiftProfile, error) {
	row := q.db.QueryRow(ctx, getGiftProfile, arg.ID, arg.UserID)
	var i GiftProfile
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Name,
		&i.Relationship,
		&i.Gender,
		&i.Age,
		&i.Interest,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listGiftProfiles = `-- name: ListGiftProfiles :many
SELECT id, user_id, name, relationship, gender, age, interest, notes, created_at, updated_at FROM gift_profiles
WHERE user_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListGiftProfiles(ctx context.Context, userID string) ([]GiftProfile, error) {
	rows, err := q.db.Query(ctx, listGiftProfiles, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GiftProfile
	for rows.Next() {
		var i GiftProfile
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Name,
			&i.Relationship,
			&i.Gender,
			&i.Age,
			&i.Interest,
			&i.Notes,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRecommendations = `-- name: ListRecommendations :many
SELECT id, user_id, profile_id, occasion, occasion_date, occasion_notes, recommendations, generated_at, created_at FROM recommendations
WHERE user_id = $1
ORDER BY generated_at DESC
`

func (q *Queries) ListRecommendations(ctx context.Context, userID string) ([]Recommendation, error) {
	rows, err := q.db.Query(ctx, listRecommendations, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecommendations(rows)
}

const listRecommendationsByProfile = `-- name: ListRecommendationsByProfile :many
SELECT id, user_id, profile_id, occasion, occasion_date, occasion_notes, recommendations, generated_at, created_at FROM recommendations
WHERE user_id = $1 AND profile_id = $2
ORDER BY generated_at DESC
`

type ListRecommendationsByProfileParams struct {
	UserID    string `json:"user_id"`
	ProfileID string `json:"profile_id"`
}

func (q *Queries) ListRecommendationsByProfile(ctx context.Context, arg ListRecommendationsByProfileParams) ([]Recommendation, error) {
	rows, err := q.db.Query(ctx, listRecommendationsByProfile, arg.UserID, arg.ProfileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecommendations(rows)
}

func scanRecommendations(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Recommendation, error) {
	var items []Recommendation
	for rows.Next() {
		var i Recommendation
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.ProfileID,
			&i.Occasion,
			&i.OccasionDate,
			&i.OccasionNotes,
			&i.Recommendations,
			&i.GeneratedAt,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateGiftProfile = `-- name: UpdateGiftProfile :one
UPDATE gift_profiles
SET name = $3, relationship = $4, gender = $5, age = $6, interest = $7, notes = $8, updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, name, relationship, gender, age, interest, notes, created_at, updated_at
`

type UpdateGiftProfileParams struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Gender       string `json:"gender"`
	Age          int32  `json:"age"`
	Interest     string `json:"interest"`
	Notes        []byte `json:"notes"`
}

func (q *Queries) UpdateGiftProfile(ctx context.Context, arg UpdateGiftProfileParams) (GiftProfile, error) {
	row := q.db.QueryRow(ctx, updateGiftProfile,
		arg.ID,
		arg.UserID,
		arg.Name,
		arg.Relationship,
		arg.Gender,
		arg.Age,
		arg.Interest,
		arg.Notes,
	)
	var i GiftProfile
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Name,
		&i.Relationship,
		&i.Gender,
		&i.Age,
		&i.Interest,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertAccumulatedNotes = `-- name: UpsertAccumulatedNotes :exec
INSERT INTO profiles (id, accumulated_notes, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE SET accumulated_notes = EXCLUDED.accumulated_notes, updated_at = now()
`

type UpsertAccumulatedNotesParams struct {
	ID               string `json:"id"`
	AccumulatedNotes string `json:"accumulated_notes"`
}

func (q *Queries) UpsertAccumulatedNotes(ctx context.Context, arg UpsertAccumulatedNotesParams) error {
	_, err := q.db.Exec(ctx, upsertAccumulatedNotes, arg.ID, arg.AccumulatedNotes)
	return err
}
