// Package guest implements the guest session store: one TTL-bound slot per browser
// holding the anonymous user's latest quick-recommendation form and results.
package guest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lewisedginton/present_ponder/internal/blob"
	"github.com/lewisedginton/present_ponder/internal/gift"
	"github.com/lewisedginton/present_ponder/pkg/logger"
)

const (
	// SlotKey names the single slot inside a browser's scope.
	SlotKey = "tlc-guest-profile-data"
	// DefaultFreshness is how long a saved session stays readable.
	DefaultFreshness = 24 * time.Hour
)

// Data is the stored guest session.
type Data struct {
	gift.GuestForm
	Recommendations []gift.Recommendation `json:"recommendations,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
}

// Store reads and writes one guest slot. Storage failures never reach the caller:
// they are logged and the operation degrades to a no-op or an absent result.
type Store struct {
	provider  blob.Provider
	key       string
	freshness time.Duration
	now       func() time.Time
	onEvict   func()
	log       logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithFreshness overrides the 24h freshness window.
func WithFreshness(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.freshness = d
		}
	}
}

// WithLogger sets the logger used for swallowed storage failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithEvictionHook is called each time an expired record is evicted on read.
func WithEvictionHook(fn func()) Option {
	return func(s *Store) { s.onEvict = fn }
}

// WithKey overrides SlotKey.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// NewStore creates a Store over provider. The provider should already be scoped to one browser.
func NewStore(provider blob.Provider, opts ...Option) *Store {
	s := &Store{
		provider:  provider,
		key:       SlotKey,
		freshness: DefaultFreshness,
		now:       time.Now,
		onEvict:   func() {},
		log:       logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save overwrites the slot with data, stamping CreatedAt with the current instant.
func (s *Store) Save(ctx context.Context, data Data) {
	data.CreatedAt = s.now()
	raw, err := json.Marshal(data)
	if err != nil {
		s.log.Warn("Failed to encode guest session", logger.ErrorField(err))
		return
	}
	if err := s.provider.Write(ctx, s.key, raw); err != nil {
		s.log.Warn("Failed to save guest session", logger.ErrorField(err))
		return
	}
	s.log.Debug("Guest session saved",
		logger.StringField("recipient", data.RecipientName),
		logger.IntField("recommendations", len(data.Recommendations)),
	)
}

// Read returns the stored session, or false when the slot is empty, unreadable or stale.
// A stale record is evicted as a side effect.
func (s *Store) Read(ctx context.Context) (Data, bool) {
	raw, err := s.provider.Read(ctx, s.key)
	if err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			s.log.Warn("Failed to read guest session", logger.ErrorField(err))
		}
		return Data{}, false
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		s.log.Warn("Discarding unreadable guest session", logger.ErrorField(err))
		s.Clear(ctx)
		return Data{}, false
	}

	if s.now().Sub(data.CreatedAt) > s.freshness {
		s.log.Info("Evicting expired guest session", logger.TimeField("created_at", data.CreatedAt))
		s.Clear(ctx)
		s.onEvict()
		return Data{}, false
	}
	return data, true
}

// Exists reports whether Read would return a session.
func (s *Store) Exists(ctx context.Context) bool {
	_, ok := s.Read(ctx)
	return ok
}

// Clear removes the slot. Clearing an empty slot is a no-op.
func (s *Store) Clear(ctx context.Context) {
	if err := s.provider.Delete(ctx, s.key); err != nil {
		s.log.Warn("Failed to clear guest session", logger.ErrorField(err))
	}
}
