package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lewisedginton/present_ponder/internal/gift"
	"github.com/lewisedginton/present_ponder/internal/guest"
	"github.com/lewisedginton/present_ponder/internal/migration"
	"github.com/lewisedginton/present_ponder/internal/recommendation"
	"github.com/lewisedginton/present_ponder/pkg/logger"
)

// Generate asks for recommendations for the selected profile. The previous
// current batch moves to the front of the history and the new batch replaces it.
// The batch is then saved and, when the occasion carries notes, appended to the
// account's accumulated notes. A completion that arrives after a newer Generate,
// a profile switch or a sign-out returns gift.ErrSuperseded and changes nothing.
func (c *Controller) Generate(ctx context.Context, occasion gift.Occasion) ([]gift.Recommendation, error) {
	c.mu.Lock()
	if c.account == "" {
		c.mu.Unlock()
		return nil, fmt.Errorf("generate: %w", gift.ErrNotAuthenticated)
	}
	if c.view != ViewSelected || c.tab != TabGetGift {
		view := c.view
		c.mu.Unlock()
		return nil, transitionError("generate", view)
	}
	profile, ok := c.findLocked(c.selected)
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("generate: %w", gift.ErrNotFound)
	}
	c.touchLocked()
	c.generation++
	token, account := c.generation, c.account
	c.generating = true
	notes := gift.JoinNotes(c.notes, occasion.Notes)
	c.mu.Unlock()

	log := logger.GetLoggerFromContext(ctx, c.log).WithFields(
		logger.StringField("account_id", account),
		logger.StringField("profile_id", profile.ID),
	)

	recs, err := c.pipeline.Fetch(ctx, recommendation.SubjectFromProfile(profile), occasion, notes)

	c.mu.Lock()
	if token != c.generation {
		c.mu.Unlock()
		log.Info("Discarding superseded recommendations")
		return nil, gift.ErrSuperseded
	}
	c.generating = false
	if err != nil {
		c.notifyLocked(gift.Failure("Failed to generate recommendations", err.Error()))
		c.mu.Unlock()
		log.Warn("Recommendation request failed", logger.ErrorField(err))
		return nil, err
	}
	if len(c.current) > 0 {
		entry := HistoryEntry{
			ID:              c.currentID,
			Timestamp:       c.currentAt,
			Recommendations: c.current,
			Form:            c.lastForm,
		}
		if entry.ID == "" {
			entry.ID = "set-" + strconv.FormatInt(c.currentAt.UnixMilli(), 10)
		}
		c.history = append([]HistoryEntry{entry}, c.history...)
	}
	c.current = recs
	c.currentID = ""
	c.currentAt = c.now()
	c.lastForm = gift.FormSnapshot{ProfileID: profile.ID, Occasion: occasion}
	accumulated := c.notes
	c.mu.Unlock()

	if err := c.persistBatch(ctx, token, account, profile.ID, occasion, recs, accumulated); err != nil {
		log.Error("Failed to save recommendations", logger.ErrorField(err))
		c.notify(gift.Failure("Failed to generate recommendations", err.Error()))
		return recs, err
	}

	log.Info("Recommendations generated", logger.IntField("count", len(recs)))
	c.notify(gift.Info("Recommendations generated!", fmt.Sprintf("Found %d perfect gifts", len(recs))))
	return recs, nil
}

// persistBatch saves the batch and folds the occasion notes into the accumulated notes.
func (c *Controller) persistBatch(ctx context.Context, token uint64, account, profileID string, occasion gift.Occasion, recs []gift.Recommendation, accumulated string) error {
	draft := gift.SetDraft{
		ProfileID:       profileID,
		Occasion:        occasion.Name,
		OccasionNotes:   occasion.Notes,
		Recommendations: recs,
	}
	if !occasion.Date.IsZero() {
		date := occasion.Date
		draft.OccasionDate = &date
	}
	saved, err := c.pipeline.Save(ctx, account, draft)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if token == c.generation {
		c.currentID = saved.ID
		c.currentAt = saved.GeneratedAt
	}
	c.mu.Unlock()

	if strings.TrimSpace(occasion.Notes) == "" {
		return nil
	}
	updated := gift.JoinNotes(accumulated, occasion.Notes)
	if err := c.store.SetAccumulatedNotes(ctx, account, updated); err != nil {
		return gift.NewPersistenceError("save accumulated notes", err)
	}
	c.mu.Lock()
	if c.account == account {
		c.notes = updated
	}
	c.mu.Unlock()
	return nil
}

// Quick runs the quick recommendation form. Guests get their form and results
// saved to the guest slot. An authenticated account gets a new profile built from
// the form, with the results saved against it.
func (c *Controller) Quick(ctx context.Context, form gift.GuestForm) ([]gift.Recommendation, error) {
	form.Normalize()
	if err := form.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.view != ViewQuick {
		view := c.view
		c.mu.Unlock()
		return nil, transitionError("quick recommendation", view)
	}
	c.touchLocked()
	account, epoch := c.account, c.epoch
	now := c.now()
	c.mu.Unlock()

	contextID := "guest-" + strconv.FormatInt(now.UnixMilli(), 10)
	occasion := gift.Occasion{Name: form.OccasionLabel(), Date: now, Notes: form.AdditionalNotes}
	subject := recommendation.SubjectFromGuest(contextID, form)
	log := logger.GetLoggerFromContext(ctx, c.log).WithFields(logger.BoolField("authenticated", account != ""))

	recs, err := c.pipeline.Fetch(ctx, subject, occasion, form.AdditionalNotes)
	if err != nil {
		log.Warn("Quick recommendation failed", logger.ErrorField(err))
		c.notify(gift.Failure("Failed to get recommendations. Please try again.", ""))
		return nil, err
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil, gift.ErrSuperseded
	}
	c.quick = recs
	c.mu.Unlock()

	if account == "" {
		c.guest.Save(ctx, guest.Data{GuestForm: form, Recommendations: recs})
		return recs, nil
	}

	data := guest.Data{GuestForm: form, Recommendations: recs, CreatedAt: now}
	profile, err := c.store.CreateProfile(ctx, account, migration.ToProfileDraft(data))
	if err != nil {
		err = gift.NewPersistenceError("create profile", err)
		log.Error("Failed to save quick recommendation profile", logger.ErrorField(err))
		c.notify(gift.Failure("Error saving profile", "Failed to save profile. Please try again."))
		return recs, err
	}
	if _, err := c.pipeline.Save(ctx, account, migration.ToSetDraft(profile.ID, data)); err != nil {
		log.Error("Failed to save quick recommendations", logger.ErrorField(err))
		c.notify(gift.Failure("Error saving recommendations", fmt.Sprintf("%s's profile was saved, but its gift ideas could not be attached.", profile.Name)))
		_ = c.Load(ctx)
		return recs, err
	}
	c.notify(gift.Info("Profile saved!", fmt.Sprintf("%s's profile has been created.", profile.Name)))
	_ = c.Load(ctx)
	return recs, nil
}

func (c *Controller) notify(n gift.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifyLocked(n)
}
