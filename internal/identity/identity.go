// Package identity models the signal an identity provider emits (anonymous or
// authenticated with an account id) and how the rest of the service subscribes to it.
package identity

import (
	"context"
	"sync"
)

// State is either anonymous (zero value) or authenticated with an account id.
type State struct {
	AccountID string
}

// Anonymous returns the signed-out state.
func Anonymous() State { return State{} }

// Authenticated returns the signed-in state for accountID.
func Authenticated(accountID string) State { return State{AccountID: accountID} }

// IsAuthenticated reports whether an account is attached.
func (s State) IsAuthenticated() bool { return s.AccountID != "" }

func (s State) String() string {
	if s.IsAuthenticated() {
		return "authenticated(" + s.AccountID + ")"
	}
	return "anonymous"
}

// Listener receives every published state, including repeats of the current one.
type Listener func(ctx context.Context, s State)

// Feed fans identity signals out to listeners in subscription order.
type Feed struct {
	mu        sync.RWMutex
	current   State
	nextID    int
	listeners map[int]Listener
	order     []int
}

// NewFeed creates a Feed starting anonymous.
func NewFeed() *Feed {
	return &Feed{listeners: make(map[int]Listener)}
}

// Current returns the last published state.
func (f *Feed) Current() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Subscribe registers l and returns a function that removes it.
func (f *Feed) Subscribe(l Listener) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.listeners[id] = l
	f.order = append(f.order, id)

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
		for i, v := range f.order {
			if v == id {
				f.order = append(f.order[:i], f.order[i+1:]...)
				break
			}
		}
	}
}

// Publish records s and calls every listener synchronously. Repeated signals are
// delivered too; listeners guard against re-entry themselves.
func (f *Feed) Publish(ctx context.Context, s State) {
	f.mu.Lock()
	f.current = s
	listeners := make([]Listener, 0, len(f.order))
	for _, id := range f.order {
		listeners = append(listeners, f.listeners[id])
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l(ctx, s)
	}
}
