// Package persistence defines the account-scoped persistent store for profiles,
// recommendation sets and accumulated notes. Implementations live in sub-packages
// (postgres, supabase); Memory is used in tests and for local development.
package persistence

import (
	"context"

	"github.com/lewisedginton/present_ponder/internal/gift"
)

// Store is keyed by an externally supplied account id. Every failure is a
// *gift.PersistenceError; missing records also match gift.ErrNotFound.
type Store interface {
	// ListProfiles returns the account's profiles, newest first.
	ListProfiles(ctx context.Context, accountID string) ([]gift.Profile, error)
	GetProfile(ctx context.Context, accountID, profileID string) (gift.Profile, error)
	CreateProfile(ctx context.Context, accountID string, draft gift.ProfileDraft) (gift.Profile, error)
	UpdateProfile(ctx context.Context, accountID, profileID string, draft gift.ProfileDraft) (gift.Profile, error)
	DeleteProfile(ctx context.Context, accountID, profileID string) error

	// ListRecommendationSets returns sets newest first. An empty profileID lists all of the account's sets.
	ListRecommendationSets(ctx context.Context, accountID, profileID string) ([]gift.RecommendationSet, error)
	SaveRecommendationSet(ctx context.Context, accountID string, set gift.SetDraft) (gift.RecommendationSet, error)
	DeleteRecommendationSet(ctx context.Context, accountID, setID string) error

	// GetAccumulatedNotes returns "" when the account has none yet.
	GetAccumulatedNotes(ctx context.Context, accountID string) (string, error)
	SetAccumulatedNotes(ctx context.Context, accountID, notes string) error
}

// Ids handed out by the stores.
const (
	ProfileIDPrefix = "profile"
	SetIDPrefix     = "recset"
)
