package sqlc

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type GiftProfile struct {
	ID           string             `json:"id"`
	UserID       string             `json:"user_id"`
	Name         string             `json:"name"`
	Relationship string             `json:"relationship"`
	Gender       string             `json:"gender"`
	Age          int32              `json:"age"`
	Interest     string             `json:"interest"`
	Notes        []byte             `json:"notes"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

type Profile struct {
	ID               string             `json:"id"`
	AccumulatedNotes string             `json:"accumulated_notes"`
	UpdatedAt        pgtype.Timestamptz `json:"updated_at"`
}

type Recommendation struct {
	ID              string             `json:"id"`
	UserID          string             `json:"user_id"`
	ProfileID       string             `json:"profile_id"`
	Occasion        string             `json:"occasion"`
	OccasionDate    pgtype.Timestamptz `json:"occasion_date"`
	OccasionNotes   pgtype.Text        `json:"occasion_notes"`
	Recommendations []byte             `json:"recommendations"`
	GeneratedAt     pgtype.Timestamptz `json:"generated_at"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
}
