package session

import (
	"context"
	"sync"
	"time"

	"github.com/lewisedginton/present_ponder/internal/blob"
	"github.com/lewisedginton/present_ponder/internal/guest"
	"github.com/lewisedginton/present_ponder/internal/identity"
	"github.com/lewisedginton/present_ponder/internal/migration"
	"github.com/lewisedginton/present_ponder/internal/persistence"
	"github.com/lewisedginton/present_ponder/pkg/logger"
	"github.com/lewisedginton/present_ponder/pkg/metrics"
)

// Browser is everything scoped to one browser profile: its identity feed, its
// guest slot, the migration coordinator for that slot and the view controller.
type Browser struct {
	ID         string
	Feed       *identity.Feed
	Guest      *guest.Store
	Migration  *migration.Coordinator
	Controller *Controller
}

// Dependencies are shared by every Browser. Metrics may be nil.
type Dependencies struct {
	Blobs          blob.Provider
	Store          persistence.Store
	Pipeline       Recommender
	Metrics        *metrics.Metrics
	Logger         logger.Logger
	GuestFreshness time.Duration
	Now            func() time.Time
}

// NewBrowser wires a Browser. The guest slot lives under "<id>/" in the shared
// blob provider. The coordinator is subscribed to the feed before the controller
// so that a sign-in migrates first and the controller's load sees the new profile.
func NewBrowser(id string, deps Dependencies) *Browser {
	log := deps.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithFields(logger.StringField("browser_id", id))
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	opts := []guest.Option{
		guest.WithLogger(log),
		guest.WithClock(now),
		guest.WithEvictionHook(deps.Metrics.ObserveGuestEviction),
	}
	if deps.GuestFreshness > 0 {
		opts = append(opts, guest.WithFreshness(deps.GuestFreshness))
	}
	slot := guest.NewStore(blob.NewPrefixed(deps.Blobs, id+"/"), opts...)

	ctrl := NewController(Config{
		Store:    deps.Store,
		Pipeline: deps.Pipeline,
		Guest:    slot,
		Logger:   log,
		Now:      now,
	})
	coord := migration.NewCoordinator(migration.Config{
		Guest:    slot,
		Store:    deps.Store,
		Metrics:  deps.Metrics,
		Logger:   log,
		OnResult: ctrl.HandleMigration,
	})

	feed := identity.NewFeed()
	feed.Subscribe(coord.Listener())
	feed.Subscribe(ctrl.Listener())

	return &Browser{ID: id, Feed: feed, Guest: slot, Migration: coord, Controller: ctrl}
}

// Identify publishes the identity resolved for a request. Repeats are harmless.
func (b *Browser) Identify(ctx context.Context, s identity.State) {
	b.Feed.Publish(ctx, s)
}

// Registry holds the live browsers, creating them on first use.
type Registry struct {
	mu       sync.Mutex
	browsers map[string]*Browser
	factory  func(id string) *Browser
	now      func() time.Time
	log      logger.Logger
}

// NewRegistry creates a Registry that builds browsers with NewBrowser and deps.
func NewRegistry(deps Dependencies) *Registry {
	return NewRegistryWithFactory(func(id string) *Browser { return NewBrowser(id, deps) }, deps.Now, deps.Logger)
}

// NewRegistryWithFactory creates a Registry around a custom factory.
func NewRegistryWithFactory(factory func(id string) *Browser, now func() time.Time, log logger.Logger) *Registry {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Registry{browsers: make(map[string]*Browser), factory: factory, now: now, log: log}
}

// Get returns the browser for id, creating it if needed.
func (r *Registry) Get(id string) *Browser {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.browsers[id]; ok {
		return b
	}
	b := r.factory(id)
	r.browsers[id] = b
	r.log.Debug("Browser session created", logger.StringField("browser_id", id))
	return b
}

// Len reports the number of live browsers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.browsers)
}

// Sweep drops browsers idle for longer than maxIdle and returns how many were
// dropped. Guest slots are stored outside the registry and survive a sweep.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, b := range r.browsers {
		if b.Migration.InFlight() || b.Controller.LastActive().After(cutoff) {
			continue
		}
		delete(r.browsers, id)
		removed++
	}
	if removed > 0 {
		r.log.Info("Swept idle browser sessions", logger.IntField("removed", removed))
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(maxIdle)
		}
	}
}
