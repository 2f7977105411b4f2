package session

import (
	"fmt"
	"slices"

	"github.com/lewisedginton/present_ponder/internal/gift"
)

// Action names a user-triggered view change.
type Action string

const (
	ActionQuick      Action = "quick"
	ActionManage     Action = "manage"
	ActionNewProfile Action = "new-profile"
	ActionSelect     Action = "select"
	ActionEdit       Action = "edit"
	ActionCancel     Action = "cancel"
	ActionSignOut    Action = "sign-out"
)

// profileViews are the screens where the profile list is reachable.
var profileViews = []View{ViewManage, ViewCreating, ViewEditing, ViewSelected}

// allowedFrom lists the views each action may start from. Sign-out is global.
var allowedFrom = map[Action][]View{
	ActionQuick:      {ViewWelcome},
	ActionManage:     {ViewWelcome},
	ActionNewProfile: append([]View{ViewWelcome}, profileViews...),
	ActionSelect:     profileViews,
	ActionEdit:       profileViews,
	ActionCancel:     {ViewQuick, ViewManage, ViewCreating, ViewEditing, ViewSelected},
}

// needsAccount marks actions that only make sense for an authenticated account.
var needsAccount = map[Action]bool{
	ActionManage:     true,
	ActionNewProfile: true,
	ActionSelect:     true,
	ActionEdit:       true,
}

func (c *Controller) checkLocked(a Action) error {
	if needsAccount[a] && c.account == "" {
		return fmt.Errorf("%s: %w", a, gift.ErrNotAuthenticated)
	}
	if from, ok := allowedFrom[a]; ok && !slices.Contains(from, c.view) {
		return transitionError(string(a), c.view)
	}
	return nil
}

// Perform runs a view action that takes no argument.
func (c *Controller) Perform(a Action) error {
	switch a {
	case ActionQuick:
		return c.ShowQuick()
	case ActionManage:
		return c.ShowManage()
	case ActionNewProfile:
		return c.NewProfile()
	case ActionCancel:
		return c.Cancel()
	case ActionSignOut:
		c.SignOut()
		return nil
	default:
		return fmt.Errorf("unknown action %q: %w", a, gift.ErrInvalidTransition)
	}
}

// ShowQuick opens the quick recommendation form.
func (c *Controller) ShowQuick() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(ActionQuick); err != nil {
		return err
	}
	c.touchLocked()
	c.view = ViewQuick
	c.quick = nil
	return nil
}

// ShowManage opens the profile list.
func (c *Controller) ShowManage() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(ActionManage); err != nil {
		return err
	}
	c.touchLocked()
	c.view = ViewManage
	return nil
}

// NewProfile opens an empty profile form.
func (c *Controller) NewProfile() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(ActionNewProfile); err != nil {
		return err
	}
	c.touchLocked()
	c.view = ViewCreating
	c.editing = ""
	c.selected = ""
	return nil
}

// SelectProfile shows a profile on its get-gift tab. Any generation in flight
// for the previously selected profile is superseded.
func (c *Controller) SelectProfile(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(ActionSelect); err != nil {
		return err
	}
	if _, ok := c.findLocked(id); !ok {
		return fmt.Errorf("select profile %s: %w", id, gift.ErrNotFound)
	}
	c.touchLocked()
	c.selectLocked(id)
	return nil
}

func (c *Controller) selectLocked(id string) {
	if c.selected != id {
		c.generation++
		c.generating = false
	}
	c.view = ViewSelected
	c.tab = TabGetGift
	c.selected = id
	c.editing = ""
}

// EditProfile opens the form for an existing profile and clears the selection.
func (c *Controller) EditProfile(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(ActionEdit); err != nil {
		return err
	}
	if _, ok := c.findLocked(id); !ok {
		return fmt.Errorf("edit profile %s: %w", id, gift.ErrNotFound)
	}
	c.touchLocked()
	c.view = ViewEditing
	c.editing = id
	if c.selected != "" {
		c.selected = ""
		c.generation++
		c.generating = false
	}
	return nil
}

// Cancel returns to the welcome screen, dropping any selection or open form.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(ActionCancel); err != nil {
		return err
	}
	c.touchLocked()
	c.view = ViewWelcome
	c.editing = ""
	if c.selected != "" {
		c.selected = ""
		c.generation++
		c.generating = false
	}
	return nil
}

// SetTab switches between the get-gift and enrich-profile tabs of a selected profile.
func (c *Controller) SetTab(t Tab) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t != TabGetGift && t != TabEnrich {
		return gift.NewValidationError("tab", fmt.Sprintf("unknown tab %q", t))
	}
	if c.view != ViewSelected {
		return transitionError("switch tab", c.view)
	}
	c.touchLocked()
	c.tab = t
	return nil
}

// SignOut forgets the account and every mirrored record, returning to welcome.
// The guest slot is identity-scoped and left alone.
func (c *Controller) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
	c.signOutLocked()
}

func (c *Controller) signOutLocked() {
	c.account = ""
	c.epoch++
	c.resetLocked()
}
