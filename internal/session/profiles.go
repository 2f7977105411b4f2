package session

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/lewisedginton/present_ponder/internal/gift"
	"github.com/lewisedginton/present_ponder/pkg/logger"
	"github.com/lewisedginton/present_ponder/pkg/prefixed_uuid"
)

// NoteIDPrefix prefixes the ids of profile notes.
const NoteIDPrefix = "note"

// SaveProfile submits the open profile form: an update when editing, a create
// otherwise. The saved profile becomes the selection and the account data is reloaded.
func (c *Controller) SaveProfile(ctx context.Context, draft gift.ProfileDraft) (gift.Profile, error) {
	c.mu.Lock()
	if c.account == "" {
		c.mu.Unlock()
		return gift.Profile{}, fmt.Errorf("save profile: %w", gift.ErrNotAuthenticated)
	}
	if c.view != ViewCreating && c.view != ViewEditing {
		view := c.view
		c.mu.Unlock()
		return gift.Profile{}, transitionError("save profile", view)
	}
	c.touchLocked()
	account, epoch, editing := c.account, c.epoch, ""
	if c.view == ViewEditing {
		editing = c.editing
		if existing, ok := c.findLocked(editing); ok && draft.Notes == nil {
			draft.Notes = existing.Notes
		}
	}
	c.mu.Unlock()

	if strings.TrimSpace(draft.Gender) == "" {
		draft.Gender = gift.GenderUnspecified
	}
	if draft.Notes == nil {
		draft.Notes = []gift.Note{}
	}
	if err := draft.Validate(); err != nil {
		return gift.Profile{}, err
	}

	log := logger.GetLoggerFromContext(ctx, c.log).WithFields(logger.StringField("account_id", account))

	var (
		saved  gift.Profile
		err    error
		notice gift.Notice
	)
	if editing != "" {
		saved, err = c.store.UpdateProfile(ctx, account, editing, draft)
		notice = gift.Info("Profile updated!", fmt.Sprintf("%s's profile has been updated.", saved.Name))
	} else {
		saved, err = c.store.CreateProfile(ctx, account, draft)
		notice = gift.Info("Profile saved!", fmt.Sprintf("%s's profile has been created.", saved.Name))
	}
	if err != nil {
		log.Error("Failed to save profile", logger.ErrorField(err))
		c.notify(gift.Failure("Error saving profile", "Failed to save profile. Please try again."))
		return gift.Profile{}, gift.NewPersistenceError("save profile", err)
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return saved, gift.ErrSuperseded
	}
	c.upsertLocked(saved)
	c.selectLocked(saved.ID)
	c.notifyLocked(notice)
	c.mu.Unlock()

	log.Info("Profile saved", logger.StringField("profile_id", saved.ID), logger.BoolField("updated", editing != ""))
	_ = c.Load(ctx)
	return saved, nil
}

// AddNote attaches a note to the selected profile.
func (c *Controller) AddNote(ctx context.Context, text string) (gift.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return gift.Note{}, gift.NewValidationError("note", "note text is required")
	}
	note := gift.Note{ID: prefixed_uuid.New(NoteIDPrefix).String(), Text: text, CreatedAt: c.now()}
	err := c.updateNotes(ctx, func(notes []gift.Note) ([]gift.Note, error) {
		return append(notes, note), nil
	})
	if err != nil {
		return gift.Note{}, err
	}
	return note, nil
}

// DeleteNote removes a note from the selected profile.
func (c *Controller) DeleteNote(ctx context.Context, noteID string) error {
	return c.updateNotes(ctx, func(notes []gift.Note) ([]gift.Note, error) {
		i := slices.IndexFunc(notes, func(n gift.Note) bool { return n.ID == noteID })
		if i < 0 {
			return nil, fmt.Errorf("note %s: %w", noteID, gift.ErrNotFound)
		}
		return slices.Delete(notes, i, i+1), nil
	})
}

func (c *Controller) updateNotes(ctx context.Context, edit func([]gift.Note) ([]gift.Note, error)) error {
	c.mu.Lock()
	if c.account == "" {
		c.mu.Unlock()
		return fmt.Errorf("update notes: %w", gift.ErrNotAuthenticated)
	}
	profile, ok := c.findLocked(c.selected)
	if c.view != ViewSelected || !ok {
		view := c.view
		c.mu.Unlock()
		return transitionError("update notes", view)
	}
	c.touchLocked()
	account, epoch := c.account, c.epoch
	c.mu.Unlock()

	draft := profile.Draft()
	notes, err := edit(draft.Notes)
	if err != nil {
		return err
	}
	draft.Notes = notes

	saved, err := c.store.UpdateProfile(ctx, account, profile.ID, draft)
	if err != nil {
		c.log.Error("Failed to save notes",
			logger.StringField("profile_id", profile.ID),
			logger.ErrorField(err),
		)
		c.notify(gift.Failure("Error saving notes", "Failed to save notes. Please try again."))
		return gift.NewPersistenceError("save notes", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch == epoch {
		c.upsertLocked(saved)
	}
	c.notifyLocked(gift.Info("Note saved!", "Profile notes have been updated."))
	return nil
}

// DeleteProfile removes a profile and its saved sets.
func (c *Controller) DeleteProfile(ctx context.Context, profileID string) error {
	account, err := c.accountID("delete profile")
	if err != nil {
		return err
	}
	if err := c.store.DeleteProfile(ctx, account, profileID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.account != account {
		return nil
	}
	c.profiles = slices.DeleteFunc(c.profiles, func(p gift.Profile) bool { return p.ID == profileID })
	c.history = slices.DeleteFunc(c.history, func(h HistoryEntry) bool { return h.Form.ProfileID == profileID })
	if c.lastForm.ProfileID == profileID {
		c.current = nil
		c.currentID = ""
		c.lastForm = gift.FormSnapshot{}
	}
	if c.selected == profileID {
		c.selected = ""
		c.generation++
		c.generating = false
		c.view = ViewManage
	}
	if c.editing == profileID {
		c.editing = ""
		c.view = ViewManage
	}
	return nil
}

// ListSets returns the saved sets of one profile, newest first.
func (c *Controller) ListSets(ctx context.Context, profileID string) ([]gift.RecommendationSet, error) {
	account, err := c.accountID("list recommendations")
	if err != nil {
		return nil, err
	}
	return c.store.ListRecommendationSets(ctx, account, profileID)
}

// DeleteSet removes a saved set and its history entry.
func (c *Controller) DeleteSet(ctx context.Context, setID string) error {
	account, err := c.accountID("delete recommendations")
	if err != nil {
		return err
	}
	if err := c.store.DeleteRecommendationSet(ctx, account, setID); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = slices.DeleteFunc(c.history, func(h HistoryEntry) bool { return h.ID == setID })
	return nil
}

func (c *Controller) accountID(op string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.account == "" {
		return "", fmt.Errorf("%s: %w", op, gift.ErrNotAuthenticated)
	}
	c.touchLocked()
	return c.account, nil
}

func (c *Controller) upsertLocked(p gift.Profile) {
	if i := slices.IndexFunc(c.profiles, func(x gift.Profile) bool { return x.ID == p.ID }); i >= 0 {
		c.profiles[i] = p
		return
	}
	c.profiles = append([]gift.Profile{p}, c.profiles...)
}
