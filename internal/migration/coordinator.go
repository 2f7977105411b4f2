// Package migration moves a guest session into an account's permanent storage the
// first time the account signs in on that browser.
package migration

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/lewisedginton/present_ponder/internal/gift"
	"github.com/lewisedginton/present_ponder/internal/guest"
	"github.com/lewisedginton/present_ponder/internal/identity"
	"github.com/lewisedginton/present_ponder/pkg/logger"
)

// Outcome labels a migration attempt.
type Outcome string

const (
	OutcomeMigrated Outcome = "migrated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
	OutcomePartial  Outcome = "partial"
)

// Result describes one attempt. Profile is set whenever a profile was created.
// Notice is set for every outcome except skipped.
type Result struct {
	Outcome Outcome
	Profile *gift.Profile
	Notice  *gift.Notice
	Err     error
}

// GuestSource is the guest store slice the coordinator uses.
type GuestSource interface {
	Exists(ctx context.Context) bool
	Read(ctx context.Context) (guest.Data, bool)
	Clear(ctx context.Context)
}

// ProfileStore is the persistent store slice the coordinator uses.
type ProfileStore interface {
	CreateProfile(ctx context.Context, accountID string, draft gift.ProfileDraft) (gift.Profile, error)
	SaveRecommendationSet(ctx context.Context, accountID string, set gift.SetDraft) (gift.RecommendationSet, error)
}

// MetricsRecorder counts attempts by outcome.
type MetricsRecorder interface {
	ObserveMigration(outcome string)
}

// Config configures a Coordinator. Metrics and OnResult are optional.
type Config struct {
	Guest   GuestSource
	Store   ProfileStore
	Metrics MetricsRecorder
	Logger  logger.Logger
	// OnResult is called after every attempt that was not skipped.
	OnResult func(ctx context.Context, r Result)
}

// Coordinator runs at most one migration at a time for its guest slot.
type Coordinator struct {
	cfg      Config
	log      logger.Logger
	inFlight atomic.Bool
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Coordinator{cfg: cfg, log: log}
}

// Listener adapts the coordinator to an identity feed.
func (c *Coordinator) Listener() identity.Listener {
	return func(ctx context.Context, s identity.State) {
		c.HandleIdentity(ctx, s)
	}
}

// HandleIdentity reacts to one identity signal. Signals may repeat; only an
// authenticated signal with a fresh guest session and no migration in flight does work.
func (c *Coordinator) HandleIdentity(ctx context.Context, s identity.State) Result {
	if !s.IsAuthenticated() || !c.cfg.Guest.Exists(ctx) {
		return Result{Outcome: OutcomeSkipped}
	}
	return c.Migrate(ctx, s.AccountID)
}

// InFlight reports whether a migration currently holds the latch.
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// Migrate moves the guest session into accountID's storage.
func (c *Coordinator) Migrate(ctx context.Context, accountID string) Result {
	if accountID == "" {
		return Result{Outcome: OutcomeSkipped, Err: gift.ErrNotAuthenticated}
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		c.log.Debug("Migration already in flight, ignoring signal")
		c.observe(OutcomeSkipped)
		return Result{Outcome: OutcomeSkipped}
	}
	defer c.inFlight.Store(false)

	log := logger.GetLoggerFromContext(ctx, c.log).WithFields(logger.StringField("account_id", accountID))

	data, ok := c.cfg.Guest.Read(ctx)
	if !ok {
		// Expired or cleared between the trigger and the read.
		c.observe(OutcomeSkipped)
		return Result{Outcome: OutcomeSkipped}
	}

	result := c.migrate(ctx, log, accountID, data)
	c.observe(result.Outcome)
	if c.cfg.OnResult != nil {
		c.cfg.OnResult(ctx, result)
	}
	return result
}

func (c *Coordinator) observe(o Outcome) {
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ObserveMigration(string(o))
	}
}

func (c *Coordinator) migrate(ctx context.Context, log logger.Logger, accountID string, data guest.Data) Result {
	profile, err := c.cfg.Store.CreateProfile(ctx, accountID, ToProfileDraft(data))
	if err != nil {
		log.Error("Guest migration failed, keeping guest session", logger.ErrorField(err))
		notice := gift.Failure("Profile Save Failed",
			"We couldn't automatically save your guest session data. You can manually recreate the profile if needed.")
		return Result{Outcome: OutcomeFailed, Notice: &notice, Err: gift.NewPersistenceError("create profile", err)}
	}
	log = log.WithFields(logger.StringField("profile_id", profile.ID))

	if len(data.Recommendations) > 0 {
		if _, err := c.cfg.Store.SaveRecommendationSet(ctx, accountID, ToSetDraft(profile.ID, data)); err != nil {
			log.Warn("Guest profile saved without its recommendations", logger.ErrorField(err))
			c.cfg.Guest.Clear(ctx)
			notice := gift.Failure("Profile Saved Without Recommendations",
				"Your guest profile for "+profile.Name+" was saved, but its gift ideas could not be attached. You can generate them again from the profile.")
			return Result{
				Outcome: OutcomePartial,
				Profile: &profile,
				Notice:  &notice,
				Err:     &gift.MigrationPartialFailure{ProfileID: profile.ID, Err: err},
			}
		}
	}

	c.cfg.Guest.Clear(ctx)
	log.Info("Guest session migrated", logger.IntField("recommendations", len(data.Recommendations)))
	notice := gift.Info("Profile Saved Successfully!",
		"Your guest session data for "+profile.Name+" has been automatically saved to your account.")
	return Result{Outcome: OutcomeMigrated, Profile: &profile, Notice: &notice}
}

// ToProfileDraft converts guest form fields to a profile. Guests never give a gender,
// and an unparseable age becomes zero.
func ToProfileDraft(d guest.Data) gift.ProfileDraft {
	return gift.ProfileDraft{
		Name:         d.RecipientName,
		Relationship: d.Relationship,
		Gender:       gift.GenderUnspecified,
		Age:          leadingInt(d.Age),
		Interest:     gift.JoinInterests(d.SelectedInterests),
		Notes:        []gift.Note{},
	}
}

// ToSetDraft attaches the guest's recommendations to profileID, dated at the session's creation.
func ToSetDraft(profileID string, d guest.Data) gift.SetDraft {
	created := d.CreatedAt
	return gift.SetDraft{
		ProfileID:       profileID,
		Occasion:        d.OccasionLabel(),
		OccasionDate:    &created,
		OccasionNotes:   d.AdditionalNotes,
		Recommendations: d.Recommendations,
	}
}

// leadingInt parses an optionally signed leading integer, so "42 years" is 42 and "-5" is -5.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// IsPartial reports whether err is a partial migration failure.
func IsPartial(err error) bool {
	var partial *gift.MigrationPartialFailure
	return errors.As(err, &partial)
}
