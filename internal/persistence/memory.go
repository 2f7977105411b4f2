package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lewisedginton/present_ponder/internal/gift"
	"github.com/lewisedginton/present_ponder/pkg/prefixed_uuid"
)

// Memory is a Store held in process memory.
type Memory struct {
	mu       sync.RWMutex
	now      func() time.Time
	profiles map[string]gift.Profile
	sets     map[string]gift.RecommendationSet
	notes    map[string]string
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMemoryClock overrides time.Now for timestamps.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty Memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:      time.Now,
		profiles: make(map[string]gift.Profile),
		sets:     make(map[string]gift.RecommendationSet),
		notes:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Store = (*Memory)(nil)

func notFound(op string) error {
	return &gift.PersistenceError{Op: op, Err: gift.ErrNotFound}
}

func (m *Memory) ListProfiles(_ context.Context, accountID string) ([]gift.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []gift.Profile{}
	for _, p := range m.profiles {
		if p.AccountID == accountID {
			out = append(out, cloneProfile(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetProfile(_ context.Context, accountID, profileID string) (gift.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[profileID]
	if !ok || p.AccountID != accountID {
		return gift.Profile{}, notFound("get profile")
	}
	return cloneProfile(p), nil
}

func (m *Memory) CreateProfile(_ context.Context, accountID string, draft gift.ProfileDraft) (gift.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	p := applyDraft(gift.Profile{
		ID:        prefixed_uuid.New(ProfileIDPrefix).String(),
		AccountID: accountID,
		CreatedAt: now,
	}, draft, now)
	m.profiles[p.ID] = p
	return cloneProfile(p), nil
}

func (m *Memory) UpdateProfile(_ context.Context, accountID, profileID string, draft gift.ProfileDraft) (gift.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[profileID]
	if !ok || p.AccountID != accountID {
		return gift.Profile{}, notFound("update profile")
	}
	p = applyDraft(p, draft, m.now().UTC())
	m.profiles[p.ID] = p
	return cloneProfile(p), nil
}

// DeleteProfile removes the profile and its recommendation sets.
func (m *Memory) DeleteProfile(_ context.Context, accountID, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[profileID]
	if !ok || p.AccountID != accountID {
		return notFound("delete profile")
	}
	delete(m.profiles, profileID)
	for id, s := range m.sets {
		if s.ProfileID == profileID {
			delete(m.sets, id)
		}
	}
	return nil
}

func (m *Memory) ListRecommendationSets(_ context.Context, accountID, profileID string) ([]gift.RecommendationSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []gift.RecommendationSet{}
	for _, s := range m.sets {
		if s.AccountID != accountID || (profileID != "" && s.ProfileID != profileID) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	return out, nil
}

// SaveRecommendationSet requires the profile to exist for the account.
func (m *Memory) SaveRecommendationSet(_ context.Context, accountID string, draft gift.SetDraft) (gift.RecommendationSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.profiles[draft.ProfileID]; !ok || p.AccountID != accountID {
		return gift.RecommendationSet{}, notFound("save recommendations")
	}
	set := gift.RecommendationSet{
		ID:              prefixed_uuid.New(SetIDPrefix).String(),
		AccountID:       accountID,
		ProfileID:       draft.ProfileID,
		Occasion:        draft.Occasion,
		OccasionDate:    draft.OccasionDate,
		OccasionNotes:   draft.OccasionNotes,
		Recommendations: append([]gift.Recommendation{}, draft.Recommendations...),
		GeneratedAt:     m.now().UTC(),
	}
	m.sets[set.ID] = set
	return set, nil
}

func (m *Memory) DeleteRecommendationSet(_ context.Context, accountID, setID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sets[setID]
	if !ok || s.AccountID != accountID {
		return notFound("delete recommendations")
	}
	delete(m.sets, setID)
	return nil
}

func (m *Memory) GetAccumulatedNotes(_ context.Context, accountID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.notes[accountID], nil
}

func (m *Memory) SetAccumulatedNotes(_ context.Context, accountID, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[accountID] = notes
	return nil
}

func applyDraft(p gift.Profile, d gift.ProfileDraft, now time.Time) gift.Profile {
	p.Name = d.Name
	p.Relationship = d.Relationship
	p.Gender = d.Gender
	p.Age = d.Age
	p.Interest = d.Interest
	p.Notes = append([]gift.Note{}, d.Notes...)
	p.UpdatedAt = now
	return p
}

func cloneProfile(p gift.Profile) gift.Profile {
	p.Notes = append([]gift.Note{}, p.Notes...)
	return p
}
