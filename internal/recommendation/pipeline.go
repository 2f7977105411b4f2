package recommendation

import (
	"context"

	"github.com/lewisedginton/present_ponder/internal/gift"
)

// SetSaver is the slice of the persistent store Save needs.
type SetSaver interface {
	SaveRecommendationSet(ctx context.Context, accountID string, set gift.SetDraft) (gift.RecommendationSet, error)
}

// MetricsRecorder counts upstream calls.
type MetricsRecorder interface {
	ObserveRecommendation(owner string, err error)
}

// Pipeline ties request building, the service call and persistence together.
type Pipeline struct {
	builder     Builder
	recommender Recommender
	store       SetSaver
	metrics     MetricsRecorder
}

// NewPipeline creates a Pipeline. metrics may be nil.
func NewPipeline(builder Builder, recommender Recommender, store SetSaver, metrics MetricsRecorder) *Pipeline {
	return &Pipeline{builder: builder, recommender: recommender, store: store, metrics: metrics}
}

// Builder returns the request builder.
func (p *Pipeline) Builder() Builder {
	return p.builder
}

// Fetch builds and sends a request. Validation failures never reach the network.
func (p *Pipeline) Fetch(ctx context.Context, s Subject, occasion gift.Occasion, notes string) ([]gift.Recommendation, error) {
	req, err := p.builder.BuildRequest(s, occasion, notes)
	if err != nil {
		return nil, err
	}
	recs, err := p.recommender.Recommend(ctx, req)
	if p.metrics != nil {
		owner := "account"
		if s.Guest {
			owner = "guest"
		}
		p.metrics.ObserveRecommendation(owner, err)
	}
	return recs, err
}

// Save persists a recommendation set for an authenticated account.
func (p *Pipeline) Save(ctx context.Context, accountID string, set gift.SetDraft) (gift.RecommendationSet, error) {
	if accountID == "" {
		return gift.RecommendationSet{}, &gift.PersistenceError{Op: "save recommendations", Err: gift.ErrNotAuthenticated}
	}
	saved, err := p.store.SaveRecommendationSet(ctx, accountID, set)
	if err != nil {
		return gift.RecommendationSet{}, gift.NewPersistenceError("save recommendations", err)
	}
	return saved, nil
}
