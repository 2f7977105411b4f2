// Package session drives one browser's view state: which screen is showing, which
// profile is selected, the current recommendations and the in-memory history.
// It mirrors whichever store is authoritative for the current identity and owns
// none of the data itself.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lewisedginton/present_ponder/internal/gift"
	"github.com/lewisedginton/present_ponder/internal/guest"
	"github.com/lewisedginton/present_ponder/internal/persistence"
	"github.com/lewisedginton/present_ponder/internal/recommendation"
	"github.com/lewisedginton/present_ponder/pkg/logger"
)

// View identifies the top-level screen.
type View string

const (
	ViewWelcome  View = "welcome"
	ViewQuick    View = "quick-recommendation"
	ViewManage   View = "manage-profiles"
	ViewCreating View = "profile-creating"
	ViewEditing  View = "profile-editing"
	ViewSelected View = "profile-selected"
)

// Tab is the sub-toggle shown while a profile is selected.
type Tab string

const (
	TabGetGift Tab = "get-gift"
	TabEnrich  Tab = "enrich-profile"
)

// HistoryEntry is one earlier batch of recommendations.
type HistoryEntry struct {
	ID              string                `json:"id"`
	Timestamp       time.Time             `json:"timestamp"`
	Recommendations []gift.Recommendation `json:"recommendations"`
	Form            gift.FormSnapshot     `json:"formData"`
}

// Snapshot is a read-only copy of the controller state.
type Snapshot struct {
	AccountID        string                `json:"account_id,omitempty"`
	Authenticated    bool                  `json:"authenticated"`
	View             View                  `json:"view"`
	Tab              Tab                   `json:"tab"`
	SelectedProfile  string                `json:"selected_profile_id,omitempty"`
	EditingProfile   string                `json:"editing_profile_id,omitempty"`
	Profiles         []gift.Profile        `json:"profiles"`
	Current          []gift.Recommendation `json:"current_recommendations"`
	History          []HistoryEntry        `json:"history"`
	AccumulatedNotes string                `json:"accumulated_notes"`
	Quick            []gift.Recommendation `json:"quick_recommendations"`
	Generating       bool                  `json:"generating"`
	Notices          []gift.Notice         `json:"notices"`
}

// Recommender is the pipeline slice the controller calls.
type Recommender interface {
	Fetch(ctx context.Context, s recommendation.Subject, occasion gift.Occasion, notes string) ([]gift.Recommendation, error)
	Save(ctx context.Context, accountID string, set gift.SetDraft) (gift.RecommendationSet, error)
}

// GuestStore is the guest slot slice the controller calls.
type GuestStore interface {
	Save(ctx context.Context, data guest.Data)
	Read(ctx context.Context) (guest.Data, bool)
	Clear(ctx context.Context)
}

// Config configures a Controller. Logger and Now are optional.
type Config struct {
	Store    persistence.Store
	Pipeline Recommender
	Guest    GuestStore
	Logger   logger.Logger
	Now      func() time.Time
}

// Controller is safe for concurrent use. Network and store calls are made
// without holding the lock; completions re-check the generation and epoch
// tokens before touching state so late results are discarded.
type Controller struct {
	store    persistence.Store
	pipeline Recommender
	guest    GuestStore
	log      logger.Logger
	now      func() time.Time

	mu         sync.Mutex
	account    string
	view       View
	tab        Tab
	selected   string
	editing    string
	profiles   []gift.Profile
	current    []gift.Recommendation
	currentID  string
	currentAt  time.Time
	lastForm   gift.FormSnapshot
	history    []HistoryEntry
	notes      string
	quick      []gift.Recommendation
	generating bool
	notices    []gift.Notice

	// generation is bumped by every Generate, profile switch and reset.
	generation uint64
	// epoch is bumped whenever the identity changes.
	epoch      uint64
	lastActive time.Time
}

// NewController creates a Controller in the welcome view with no identity.
func NewController(cfg Config) *Controller {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	c := &Controller{
		store:    cfg.Store,
		pipeline: cfg.Pipeline,
		guest:    cfg.Guest,
		log:      log,
		now:      now,
	}
	c.resetLocked()
	c.lastActive = now()
	return c
}

// resetLocked discards all profile and recommendation state. Pending notices are kept.
func (c *Controller) resetLocked() {
	c.view = ViewWelcome
	c.tab = TabGetGift
	c.selected = ""
	c.editing = ""
	c.profiles = nil
	c.current = nil
	c.currentID = ""
	c.currentAt = time.Time{}
	c.lastForm = gift.FormSnapshot{}
	c.history = nil
	c.notes = ""
	c.quick = nil
	c.generating = false
	c.generation++
}

func (c *Controller) notifyLocked(n gift.Notice) {
	c.notices = append(c.notices, n)
}

func (c *Controller) touchLocked() {
	c.lastActive = c.now()
}

// LastActive reports when the controller last handled an action.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Snapshot copies the current state without draining notices.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		AccountID:        c.account,
		Authenticated:    c.account != "",
		View:             c.view,
		Tab:              c.tab,
		SelectedProfile:  c.selected,
		EditingProfile:   c.editing,
		Profiles:         cloneSlice(c.profiles),
		Current:          cloneSlice(c.current),
		History:          cloneSlice(c.history),
		AccumulatedNotes: c.notes,
		Quick:            cloneSlice(c.quick),
		Generating:       c.generating,
		Notices:          cloneSlice(c.notices),
	}
}

// DrainNotices returns and forgets the pending notices.
func (c *Controller) DrainNotices() []gift.Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.notices
	c.notices = nil
	if out == nil {
		out = []gift.Notice{}
	}
	return out
}

// SelectedProfile returns the selected profile, if any.
func (c *Controller) SelectedProfile() (gift.Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findLocked(c.selected)
}

func (c *Controller) findLocked(id string) (gift.Profile, bool) {
	if id == "" {
		return gift.Profile{}, false
	}
	for _, p := range c.profiles {
		if p.ID == id {
			return p, true
		}
	}
	return gift.Profile{}, false
}

func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func transitionError(action string, from View) error {
	return fmt.Errorf("%s from %s: %w", action, from, gift.ErrInvalidTransition)
}
