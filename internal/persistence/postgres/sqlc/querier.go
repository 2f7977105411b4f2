package sqlc

import (
	"context"
)

type Querier interface {
	CreateGiftProfile(ctx context.Context, arg CreateGiftProfileParams) (GiftProfile, error)
	CreateRecommendation(ctx context.Context, arg CreateRecommendationParams) (Recommendation, error)
	DeleteGiftProfile(ctx context.Context, arg DeleteGiftProfileParams) (int64, error)
	DeleteRecommendation(ctx context.Context, arg DeleteRecommendationParams) (int64, error)
	GetAccumulatedNotes(ctx context.Context, id string) (string, error)
	GetGiftProfile(ctx context.Context, arg GetGiftProfileParams) (GiftProfile, error)
	ListGiftProfiles(ctx context.Context, userID string) ([]GiftProfile, error)
	ListRecommendations(ctx context.Context, userID string) ([]Recommendation, error)
	ListRecommendationsByProfile(ctx context.Context, arg ListRecommendationsByProfileParams) ([]Recommendation, error)
	UpdateGiftProfile(ctx context.Context, arg UpdateGiftProfileParams) (GiftProfile, error)
	UpsertAccumulatedNotes(ctx context.Context, arg UpsertAccumulatedNotesParams) error
}

var _ Querier = (*Queries)(nil)
