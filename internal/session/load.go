package session

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/lewisedginton/present_ponder/internal/gift"
	"github.com/lewisedginton/present_ponder/internal/identity"
	"github.com/lewisedginton/present_ponder/internal/migration"
	"github.com/lewisedginton/present_ponder/pkg/logger"
)

// Listener adapts the controller to an identity feed. It must be subscribed
// after the migration coordinator so a migrated profile is visible to the load.
func (c *Controller) Listener() identity.Listener {
	return func(ctx context.Context, s identity.State) {
		_ = c.SetIdentity(ctx, s)
	}
}

// SetIdentity reacts to an identity signal. A repeated signal for the current
// identity is a no-op. Switching to a new account resets the view and loads
// that account's data; switching to anonymous behaves like a sign-out.
func (c *Controller) SetIdentity(ctx context.Context, s identity.State) error {
	c.mu.Lock()
	if s.AccountID == c.account {
		c.mu.Unlock()
		return nil
	}
	if !s.IsAuthenticated() {
		c.signOutLocked()
		c.mu.Unlock()
		return nil
	}
	c.epoch++
	c.resetLocked()
	c.account = s.AccountID
	c.mu.Unlock()

	c.log.Debug("Session identity changed", logger.StringField("account_id", s.AccountID))
	return c.Load(ctx)
}

// HandleMigration surfaces a migration outcome and refreshes the profile list
// when the migrated profile belongs to the current account.
func (c *Controller) HandleMigration(ctx context.Context, r migration.Result) {
	c.mu.Lock()
	if r.Notice != nil {
		c.notifyLocked(*r.Notice)
	}
	reload := r.Profile != nil && c.account != "" && r.Profile.AccountID == c.account
	c.mu.Unlock()

	if reload {
		_ = c.Load(ctx)
	}
}

// Load fetches the account's profiles, accumulated notes and every saved set
// concurrently. A failed read degrades to an empty result; the remaining reads
// are still applied and one failure notice is queued. The returned error lists
// the failed reads. Results for an account that is no longer current are dropped.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	account, epoch := c.account, c.epoch
	c.mu.Unlock()
	if account == "" {
		return fmt.Errorf("load: %w", gift.ErrNotAuthenticated)
	}

	var (
		profiles                       []gift.Profile
		notes                          string
		sets                           []gift.RecommendationSet
		profilesErr, notesErr, setsErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		profiles, profilesErr = c.store.ListProfiles(ctx, account)
		return nil
	})
	g.Go(func() error {
		notes, notesErr = c.store.GetAccumulatedNotes(ctx, account)
		return nil
	})
	g.Go(func() error {
		sets, setsErr = c.store.ListRecommendationSets(ctx, account, "")
		return nil
	})
	_ = g.Wait()

	var result *multierror.Error
	for _, err := range []error{profilesErr, notesErr, setsErr} {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.account != account {
		return gift.ErrSuperseded
	}

	if profilesErr == nil {
		c.profiles = profiles
	}
	if notesErr == nil {
		c.notes = notes
	}
	if setsErr == nil {
		c.history = historyFromSets(sets)
	}
	if _, ok := c.findLocked(c.selected); c.selected != "" && !ok {
		c.selected = ""
		c.generation++
		if c.view == ViewSelected {
			c.view = ViewManage
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		c.log.Error("Failed to load account data",
			logger.StringField("account_id", account),
			logger.ErrorField(err),
		)
		c.notifyLocked(gift.Failure("Error loading data", "Failed to load profiles and recommendations"))
		return err
	}
	c.log.Debug("Account data loaded",
		logger.StringField("account_id", account),
		logger.IntField("profiles", len(profiles)),
		logger.IntField("sets", len(sets)),
	)
	return nil
}

func historyFromSets(sets []gift.RecommendationSet) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(sets))
	for _, s := range sets {
		form := gift.FormSnapshot{
			ProfileID: s.ProfileID,
			Occasion:  gift.Occasion{Name: s.Occasion, Notes: s.OccasionNotes},
		}
		if s.OccasionDate != nil {
			form.Date = *s.OccasionDate
		}
		out = append(out, HistoryEntry{
			ID:              s.ID,
			Timestamp:       s.GeneratedAt,
			Recommendations: s.Recommendations,
			Form:            form,
		})
	}
	return out
}
