package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/present_ponder/internal/blob"
	"github.com/lewisedginton/present_ponder/internal/gift"
	"github.com/lewisedginton/present_ponder/internal/guest"
	"github.com/lewisedginton/present_ponder/internal/identity"
	"github.com/lewisedginton/present_ponder/internal/persistence"
	"github.com/lewisedginton/present_ponder/internal/recommendation"
	"github.com/lewisedginton/present_ponder/pkg/prefixed_uuid"
)

const account = "acct-1"

type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *tickingClock {
	return &tickingClock{t: time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// stubService answers recommendation requests in order. Calls listed in block
// wait for their channel to close after announcing themselves on entered.
type stubService struct {
	mu       sync.Mutex
	batches  [][]gift.Recommendation
	errs     []error
	requests []recommendation.Request
	block    map[int]chan struct{}
	entered  chan int
}

func (s *stubService) Recommend(_ context.Context, req recommendation.Request) ([]gift.Recommendation, error) {
	s.mu.Lock()
	n := len(s.requests)
	s.requests = append(s.requests, req)
	var recs []gift.Recommendation
	var err error
	if n < len(s.batches) {
		recs = s.batches[n]
	}
	if n < len(s.errs) {
		err = s.errs[n]
	}
	gate := s.block[n]
	s.mu.Unlock()

	if gate != nil {
		s.entered <- n
		<-gate
	}
	return recs, err
}

func (s *stubService) calls() []recommendation.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recommendation.Request(nil), s.requests...)
}

func batch(prefix string, names ...string) []gift.Recommendation {
	out := make([]gift.Recommendation, len(names))
	for i, n := range names {
		out[i] = gift.Recommendation{ID: prefix + "-" + string(rune('0'+i)), Name: n, Description: n, Price: "£10", Category: "Gift"}
	}
	return out
}

type harness struct {
	ctrl  *Controller
	store persistence.Store
	mem   *persistence.Memory
	svc   *stubService
	guest *guest.Store
	clock *tickingClock
}

func newHarness(t *testing.T, wrap func(*persistence.Memory) persistence.Store) *harness {
	t.Helper()
	clock := newClock()
	mem := persistence.NewMemory(persistence.WithMemoryClock(clock.now))
	var store persistence.Store = mem
	if wrap != nil {
		store = wrap(mem)
	}
	svc := &stubService{block: map[int]chan struct{}{}, entered: make(chan int, 4)}
	pipeline := recommendation.NewPipeline(recommendation.NewBuilder("", 0), svc, store, nil)
	slot := guest.NewStore(blob.NewMemory(), guest.WithClock(clock.now))
	ctrl := NewController(Config{Store: store, Pipeline: pipeline, Guest: slot, Now: clock.now})
	return &harness{ctrl: ctrl, store: store, mem: mem, svc: svc, guest: slot, clock: clock}
}

func (h *harness) seedProfile(t *testing.T, name string, age int) gift.Profile {
	t.Helper()
	p, err := h.mem.CreateProfile(context.Background(), account, gift.ProfileDraft{
		Name: name, Relationship: "Friend", Gender: "female", Age: age, Interest: "Books, Tea", Notes: []gift.Note{},
	})
	require.NoError(t, err)
	return p
}

// signInAndSelect signs in, opens the profile list and selects p.
func (h *harness) signInAndSelect(t *testing.T, p gift.Profile) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.ctrl.SetIdentity(ctx, identity.Authenticated(account)))
	require.NoError(t, h.ctrl.ShowManage())
	require.NoError(t, h.ctrl.SelectProfile(p.ID))
}

func noticeTitles(ns []gift.Notice) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Title
	}
	return out
}

func TestGenerateKeepsHistoryNewestFirst(t *testing.T) {
	h := newHarness(t, nil)
	p := h.seedProfile(t, "Ada", 36)
	h.signInAndSelect(t, p)
	ctx := context.Background()

	r1 := batch("r1", "Teapot", "Novel")
	r2 := batch("r2", "Bookmark")
	h.svc.batches = [][]gift.Recommendation{r1, r2}

	first := gift.Occasion{Name: "Birthday", Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Notes: "Loves green tea"}
	got, err := h.ctrl.Generate(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, r1, got)

	second := gift.Occasion{Name: "Christmas", Date: time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)}
	_, err = h.ctrl.Generate(ctx, second)
	require.NoError(t, err)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, r2, snap.Current)
	require.Len(t, snap.History, 1)
	assert.Equal(t, r1, snap.History[0].Recommendations)
	assert.Equal(t, p.ID, snap.History[0].Form.ProfileID)
	assert.Equal(t, "Birthday", snap.History[0].Form.Name)
	assert.True(t, prefixed_uuid.HasPrefix(snap.History[0].ID, persistence.SetIDPrefix), snap.History[0].ID)
	assert.Equal(t, "Loves green tea", snap.AccumulatedNotes)

	calls := h.svc.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "Loves green tea", calls[0].Notes)
	assert.Equal(t, "Loves green tea", calls[1].Notes, "accumulated notes are sent with later requests")
	assert.Equal(t, p.ID, calls[1].Profile.ProfileID)

	sets, err := h.mem.ListRecommendationSets(ctx, account, p.ID)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "Christmas", sets[0].Occasion)

	stored, err := h.mem.GetAccumulatedNotes(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, "Loves green tea", stored)

	assert.Equal(t, []string{"Recommendations generated!", "Recommendations generated!"}, noticeTitles(h.ctrl.DrainNotices()))
	assert.Empty(t, h.ctrl.DrainNotices())
}

func TestGenerateAppendsOccasionNotes(t *testing.T) {
	h := newHarness(t, nil)
	p := h.seedProfile(t, "Ada", 36)
	require.NoError(t, h.mem.SetAccumulatedNotes(context.Background(), account, "Allergic to wool"))
	h.signInAndSelect(t, p)
	h.svc.batches = [][]gift.Recommendation{batch("r1", "Mug")}

	_, err := h.ctrl.Generate(context.Background(), gift.Occasion{Name: "Birthday", Notes: "Just started running"})
	require.NoError(t, err)

	assert.Equal(t, "Allergic to wool\n\nJust started running", h.svc.calls()[0].Notes)
	assert.Equal(t, "Allergic to wool\n\nJust started running", h.ctrl.Snapshot().AccumulatedNotes)
}

func TestGenerateDiscardsLateCompletion(t *testing.T) {
	h := newHarness(t, nil)
	p := h.seedProfile(t, "Ada", 36)
	h.signInAndSelect(t, p)
	ctx := context.Background()

	r1 := batch("r1", "Late")
	r2 := batch("r2", "Fresh")
	h.svc.batches = [][]gift.Recommendation{r1, r2}
	release := make(chan struct{})
	h.svc.block[0] = release

	type outcome struct {
		recs []gift.Recommendation
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		recs, err := h.ctrl.Generate(ctx, gift.Occasion{Name: "Birthday"})
		done <- outcome{recs, err}
	}()
	<-h.svc.entered
	assert.True(t, h.ctrl.Snapshot().Generating)

	_, err := h.ctrl.Generate(ctx, gift.Occasion{Name: "Anniversary"})
	require.NoError(t, err)

	close(release)
	late := <-done
	assert.ErrorIs(t, late.err, gift.ErrSuperseded)
	assert.Nil(t, late.recs)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, r2, snap.Current)
	assert.Empty(t, snap.History)
	assert.False(t, snap.Generating)

	sets, err := h.mem.ListRecommendationSets(ctx, account, p.ID)
	require.NoError(t, err)
	assert.Len(t, sets, 1, "superseded results are never saved")
}

func TestProfileSwitchSupersedesGeneration(t *testing.T) {
	h := newHarness(t, nil)
	ada := h.seedProfile(t, "Ada", 36)
	bo := h.seedProfile(t, "Bo", 40)
	h.signInAndSelect(t, ada)
	ctx := context.Background()

	h.svc.batches = [][]gift.Recommendation{batch("r1", "Late")}
	release := make(chan struct{})
	h.svc.block[0] = release

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Generate(ctx, gift.Occasion{Name: "Birthday"})
		done <- err
	}()
	<-h.svc.entered

	require.NoError(t, h.ctrl.SelectProfile(bo.ID))
	close(release)
	assert.ErrorIs(t, <-done, gift.ErrSuperseded)
	assert.Empty(t, h.ctrl.Snapshot().Current)
}

func TestGenerateFailures(t *testing.T) {
	t.Run("upstream error becomes a notice", func(t *testing.T) {
		h := newHarness(t, nil)
		p := h.seedProfile(t, "Ada", 36)
		h.signInAndSelect(t, p)
		upstream := &gift.UpstreamError{StatusCode: 500, Detail: `"model overloaded"`}
		h.svc.errs = []error{upstream}

		_, err := h.ctrl.Generate(context.Background(), gift.Occasion{Name: "Birthday"})
		var ue *gift.UpstreamError
		require.ErrorAs(t, err, &ue)

		notices := h.ctrl.DrainNotices()
		require.Len(t, notices, 1)
		assert.Equal(t, "Failed to generate recommendations", notices[0].Title)
		assert.Equal(t, upstream.Error(), notices[0].Description)
		assert.Equal(t, gift.VariantDestructive, notices[0].Variant)
		assert.False(t, h.ctrl.Snapshot().Generating)
	})

	t.Run("underage profile never reaches the service", func(t *testing.T) {
		h := newHarness(t, nil)
		p := h.seedProfile(t, "Kid", 15)
		h.signInAndSelect(t, p)

		_, err := h.ctrl.Generate(context.Background(), gift.Occasion{Name: "Birthday"})
		var ve *gift.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "invalid age", ve.Error())
		assert.Empty(t, h.svc.calls())
	})

	t.Run("requires the get-gift tab", func(t *testing.T) {
		h := newHarness(t, nil)
		p := h.seedProfile(t, "Ada", 36)
		h.signInAndSelect(t, p)
		require.NoError(t, h.ctrl.SetTab(TabEnrich))

		_, err := h.ctrl.Generate(context.Background(), gift.Occasion{Name: "Birthday"})
		assert.ErrorIs(t, err, gift.ErrInvalidTransition)
	})

	t.Run("anonymous", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.ctrl.Generate(context.Background(), gift.Occasion{Name: "Birthday"})
		assert.ErrorIs(t, err, gift.ErrNotAuthenticated)
	})
}

func TestSignOutDiscardsAccountState(t *testing.T) {
	h := newHarness(t, nil)
	p := h.seedProfile(t, "Ada", 36)
	ctx := context.Background()
	h.guest.Save(ctx, guest.Data{GuestForm: gift.GuestForm{RecipientName: "Sam"}})
	h.signInAndSelect(t, p)
	h.svc.batches = [][]gift.Recommendation{batch("r1", "Mug")}
	_, err := h.ctrl.Generate(ctx, gift.Occasion{Name: "Birthday", Notes: "likes mugs"})
	require.NoError(t, err)

	require.NoError(t, h.ctrl.SetIdentity(ctx, identity.Anonymous()))

	snap := h.ctrl.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Equal(t, ViewWelcome, snap.View)
	assert.Empty(t, snap.Profiles)
	assert.Empty(t, snap.Current)
	assert.Empty(t, snap.History)
	assert.Empty(t, snap.SelectedProfile)
	assert.Empty(t, snap.AccumulatedNotes)

	_, ok := h.guest.Read(ctx)
	assert.True(t, ok, "guest slot is not touched by sign-out")
}

func TestRepeatedIdentitySignalsAreNoOps(t *testing.T) {
	h := newHarness(t, nil)
	p := h.seedProfile(t, "Ada", 36)
	h.signInAndSelect(t, p)
	ctx := context.Background()

	require.NoError(t, h.ctrl.SetIdentity(ctx, identity.Authenticated(account)))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, ViewSelected, snap.View)
	assert.Equal(t, p.ID, snap.SelectedProfile)

	require.NoError(t, h.ctrl.SetIdentity(ctx, identity.Authenticated("acct-2")))
	snap = h.ctrl.Snapshot()
	assert.Equal(t, ViewWelcome, snap.View)
	assert.Equal(t, "acct-2", snap.AccountID)
	assert.Empty(t, snap.Profiles)
}

func TestLoadMirrorsPersistedData(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	p := h.seedProfile(t, "Ada", 36)
	date := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	older, err := h.mem.SaveRecommendationSet(ctx, account, gift.SetDraft{ProfileID: p.ID, Occasion: "Birthday", OccasionDate: &date, Recommendations: batch("a", "One")})
	require.NoError(t, err)
	newer, err := h.mem.SaveRecommendationSet(ctx, account, gift.SetDraft{ProfileID: p.ID, Occasion: "Christmas", OccasionNotes: "wants a bike", Recommendations: batch("b", "Two")})
	require.NoError(t, err)
	require.NoError(t, h.mem.SetAccumulatedNotes(ctx, account, "likes cycling"))

	require.NoError(t, h.ctrl.SetIdentity(ctx, identity.Authenticated(account)))

	snap := h.ctrl.Snapshot()
	require.Len(t, snap.Profiles, 1)
	assert.Equal(t, "likes cycling", snap.AccumulatedNotes)
	require.Len(t, snap.History, 2)
	assert.Equal(t, newer.ID, snap.History[0].ID)
	assert.Equal(t, "wants a bike", snap.History[0].Form.Notes)
	assert.Equal(t, older.ID, snap.History[1].ID)
	assert.Equal(t, date, snap.History[1].Form.Date)
	assert.Equal(t, older.GeneratedAt, snap.History[1].Timestamp)
	assert.Empty(t, snap.Notices)
}

type flakyStore struct {
	*persistence.Memory
	listErr error
}

func (f *flakyStore) ListProfiles(ctx context.Context, accountID string) ([]gift.Profile, error) {
	if f.listErr != nil {
		return nil, &gift.PersistenceError{Op: "list profiles", Err: f.listErr}
	}
	return f.Memory.ListProfiles(ctx, accountID)
}

func TestLoadDegradesPerRead(t *testing.T) {
	h := newHarness(t, func(m *persistence.Memory) persistence.Store {
		return &flakyStore{Memory: m, listErr: errors.New("connection refused")}
	})
	ctx := context.Background()
	require.NoError(t, h.mem.SetAccumulatedNotes(ctx, account, "likes cycling"))

	err := h.ctrl.SetIdentity(ctx, identity.Authenticated(account))
	var pe *gift.PersistenceError
	require.ErrorAs(t, err, &pe)

	snap := h.ctrl.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.Empty(t, snap.Profiles)
	assert.Equal(t, "likes cycling", snap.AccumulatedNotes)
	require.Len(t, snap.Notices, 1)
	assert.Equal(t, gift.Failure("Error loading data", "Failed to load profiles and recommendations"), snap.Notices[0])
}

func TestLoadRequiresAccount(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.ctrl.Load(context.Background()), gift.ErrNotAuthenticated)
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous may only use the quick form", func(t *testing.T) {
		h := newHarness(t, nil)
		assert.ErrorIs(t, h.ctrl.ShowManage(), gift.ErrNotAuthenticated)
		assert.ErrorIs(t, h.ctrl.NewProfile(), gift.ErrNotAuthenticated)
		require.NoError(t, h.ctrl.ShowQuick())
		assert.Equal(t, ViewQuick, h.ctrl.Snapshot().View)
		require.NoError(t, h.ctrl.Cancel())
		assert.Equal(t, ViewWelcome, h.ctrl.Snapshot().View)
	})

	t.Run("actions outside their views are rejected", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.ctrl.SetIdentity(ctx, identity.Authenticated(account)))
		assert.ErrorIs(t, h.ctrl.Cancel(), gift.ErrInvalidTransition)
		assert.ErrorIs(t, h.ctrl.SetTab(TabEnrich), gift.ErrInvalidTransition)
		require.NoError(t, h.ctrl.ShowQuick())
		assert.ErrorIs(t, h.ctrl.ShowManage(), gift.ErrInvalidTransition)
		assert.ErrorIs(t, h.ctrl.Perform(Action("fly")), gift.ErrInvalidTransition)
	})

	t.Run("profile navigation", func(t *testing.T) {
		h := newHarness(t, nil)
		p := h.seedProfile(t, "Ada", 36)
		h.signInAndSelect(t, p)

		snap := h.ctrl.Snapshot()
		assert.Equal(t, ViewSelected, snap.View)
		assert.Equal(t, TabGetGift, snap.Tab)

		require.NoError(t, h.ctrl.SetTab(TabEnrich))
		var ve *gift.ValidationError
		assert.ErrorAs(t, h.ctrl.SetTab(Tab("gallery")), &ve)

		require.NoError(t, h.ctrl.SelectProfile(p.ID))
		assert.Equal(t, TabGetGift, h.ctrl.Snapshot().Tab, "selecting resets the tab")

		require.NoError(t, h.ctrl.EditProfile(p.ID))
		snap = h.ctrl.Snapshot()
		assert.Equal(t, ViewEditing, snap.View)
		assert.Equal(t, p.ID, snap.EditingProfile)
		assert.Empty(t, snap.SelectedProfile)

		require.NoError(t, h.ctrl.NewProfile())
		snap = h.ctrl.Snapshot()
		assert.Equal(t, ViewCreating, snap.View)
		assert.Empty(t, snap.EditingProfile)

		assert.ErrorIs(t, h.ctrl.SelectProfile("profile-missing"), gift.ErrNotFound)

		require.NoError(t, h.ctrl.Perform(ActionCancel))
		assert.Equal(t, ViewWelcome, h.ctrl.Snapshot().View)
		require.NoError(t, h.ctrl.Perform(ActionSignOut))
		assert.False(t, h.ctrl.Snapshot().Authenticated)
	})
}

func TestSaveProfile(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.ctrl.SetIdentity(ctx, identity.Authenticated(account)))
	require.NoError(t, h.ctrl.NewProfile())

	created, err := h.ctrl.SaveProfile(ctx, gift.ProfileDraft{Name: "Ada", Relationship: "Sister", Age: 30, Interest: "Chess"})
	require.NoError(t, err)
	assert.Equal(t, gift.GenderUnspecified, created.Gender)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, ViewSelected, snap.View)
	assert.Equal(t, created.ID, snap.SelectedProfile)
	require.Len(t, snap.Profiles, 1)
	assert.Equal(t, gift.Info("Profile saved!", "Ada's profile has been created."), snap.Notices[0])

	_, err = h.ctrl.AddNote(ctx, "plays online")
	require.NoError(t, err)

	require.NoError(t, h.ctrl.EditProfile(created.ID))
	updated, err := h.ctrl.SaveProfile(ctx, gift.ProfileDraft{Name: "Ada L", Relationship: "Sister", Age: 31, Interest: "Chess, Go"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	require.Len(t, updated.Notes, 1, "notes survive a form update")

	notices := h.ctrl.DrainNotices()
	assert.Equal(t, gift.Info("Profile updated!", "Ada L's profile has been updated."), notices[len(notices)-1])
	assert.Equal(t, updated.ID, h.ctrl.Snapshot().SelectedProfile)

	t.Run("invalid form", func(t *testing.T) {
		require.NoError(t, h.ctrl.NewProfile())
		_, err := h.ctrl.SaveProfile(ctx, gift.ProfileDraft{Relationship: "Sister", Age: 30, Interest: "Chess"})
		var ve *gift.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "name", ve.Field)
	})

	t.Run("outside a form", func(t *testing.T) {
		require.NoError(t, h.ctrl.Cancel())
		_, err := h.ctrl.SaveProfile(ctx, gift.ProfileDraft{Name: "X"})
		assert.ErrorIs(t, err, gift.ErrInvalidTransition)
	})
}

func TestNotes(t *testing.T) {
	h := newHarness(t, nil)
	p := h.seedProfile(t, "Ada", 36)
	h.signInAndSelect(t, p)
	ctx := context.Background()

	note, err := h.ctrl.AddNote(ctx, "  collects vinyl  ")
	require.NoError(t, err)
	assert.Equal(t, "collects vinyl", note.Text)
	assert.True(t, prefixed_uuid.HasPrefix(note.ID, NoteIDPrefix), note.ID)

	stored, err := h.mem.GetProfile(ctx, account, p.ID)
	require.NoError(t, err)
	require.Len(t, stored.Notes, 1)
	assert.Equal(t, note.ID, stored.Notes[0].ID)

	_, err = h.ctrl.AddNote(ctx, "   ")
	var ve *gift.ValidationError
	assert.ErrorAs(t, err, &ve)

	assert.ErrorIs(t, h.ctrl.DeleteNote(ctx, "note-missing"), gift.ErrNotFound)
	require.NoError(t, h.ctrl.DeleteNote(ctx, note.ID))

	stored, err = h.mem.GetProfile(ctx, account, p.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Notes)

	titles := noticeTitles(h.ctrl.DrainNotices())
	assert.Equal(t, []string{"Note saved!", "Note saved!"}, titles)
}

func TestDeleteProfileAndSets(t *testing.T) {
	h := newHarness(t, nil)
	ada := h.seedProfile(t, "Ada", 36)
	bo := h.seedProfile(t, "Bo", 40)
	h.signInAndSelect(t, ada)
	ctx := context.Background()
	h.svc.batches = [][]gift.Recommendation{batch("r1", "Mug")}
	_, err := h.ctrl.Generate(ctx, gift.Occasion{Name: "Birthday"})
	require.NoError(t, err)

	sets, err := h.ctrl.ListSets(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, sets, 1)

	require.NoError(t, h.ctrl.DeleteSet(ctx, sets[0].ID))
	assert.ErrorIs(t, h.ctrl.DeleteSet(ctx, sets[0].ID), gift.ErrNotFound)

	require.NoError(t, h.ctrl.DeleteProfile(ctx, ada.ID))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, ViewManage, snap.View)
	assert.Empty(t, snap.SelectedProfile)
	assert.Empty(t, snap.Current)
	require.Len(t, snap.Profiles, 1)
	assert.Equal(t, bo.ID, snap.Profiles[0].ID)
}

func guestForm() gift.GuestForm {
	return gift.GuestForm{
		RecipientName:     "Sam",
		Age:               "12",
		SelectedInterests: []string{"Lego", "Space"},
		Relationship:      "Nephew",
		Occasion:          gift.OccasionOther,
		CustomOccasion:    "Graduation",
		AdditionalNotes:   "Already has a telescope",
	}
}

func TestQuickAsGuest(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.ctrl.ShowQuick())
	recs := batch("guest", "Rocket kit")
	h.svc.batches = [][]gift.Recommendation{recs}

	got, err := h.ctrl.Quick(ctx, guestForm())
	require.NoError(t, err)
	assert.Equal(t, recs, got)
	assert.Equal(t, recs, h.ctrl.Snapshot().Quick)

	calls := h.svc.calls()
	require.Len(t, calls, 1)
	assert.True(t, strings.HasPrefix(calls[0].Profile.ProfileID, "guest-"), calls[0].Profile.ProfileID)
	assert.Equal(t, 12, calls[0].Profile.Age)
	assert.Equal(t, gift.GenderUnspecified, calls[0].Profile.Gender)
	assert.Equal(t, "Graduation", calls[0].UpcomingEvent)
	assert.Equal(t, "Already has a telescope", calls[0].Notes)
	assert.Equal(t, []string{"Lego", "Space"}, calls[0].ProfileInterests)

	saved, ok := h.guest.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, "Sam", saved.RecipientName)
	assert.Equal(t, recs, saved.Recommendations)
}

func TestQuickDedupsSelectedInterests(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.ctrl.ShowQuick())
	h.svc.batches = [][]gift.Recommendation{batch("guest", "Knife roll")}

	form := guestForm()
	form.SelectedInterests = []string{"Cooking", "Cooking", " Cooking ", "", "Hiking"}
	_, err := h.ctrl.Quick(ctx, form)
	require.NoError(t, err)

	calls := h.svc.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"Cooking", "Hiking"}, calls[0].ProfileInterests)

	saved, ok := h.guest.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, []string{"Cooking", "Hiking"}, saved.SelectedInterests)
}

func TestQuickValidationAndFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("missing fields", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.ctrl.ShowQuick())
		form := guestForm()
		form.SelectedInterests = nil

		_, err := h.ctrl.Quick(ctx, form)
		var ve *gift.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "please fill in all required fields", ve.Error())
		assert.Empty(t, h.svc.calls())
	})

	t.Run("service failure leaves the slot empty", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.ctrl.ShowQuick())
		h.svc.errs = []error{&gift.UpstreamError{StatusCode: 502}}

		_, err := h.ctrl.Quick(ctx, guestForm())
		require.Error(t, err)
		_, ok := h.guest.Read(ctx)
		assert.False(t, ok)
		assert.Equal(t, []string{"Failed to get recommendations. Please try again."}, noticeTitles(h.ctrl.DrainNotices()))
	})

	t.Run("only from the quick view", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.ctrl.Quick(ctx, guestForm())
		assert.ErrorIs(t, err, gift.ErrInvalidTransition)
	})
}

func TestQuickWhileSignedInCreatesProfile(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.ctrl.SetIdentity(ctx, identity.Authenticated(account)))
	require.NoError(t, h.ctrl.ShowQuick())
	recs := batch("q", "Rocket kit", "Star map")
	h.svc.batches = [][]gift.Recommendation{recs}

	_, err := h.ctrl.Quick(ctx, guestForm())
	require.NoError(t, err)

	profiles, err := h.mem.ListProfiles(ctx, account)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Sam", profiles[0].Name)
	assert.Equal(t, 12, profiles[0].Age)
	assert.Equal(t, "Lego, Space", profiles[0].Interest)

	sets, err := h.mem.ListRecommendationSets(ctx, account, profiles[0].ID)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "Graduation", sets[0].Occasion)
	assert.Equal(t, recs, sets[0].Recommendations)

	snap := h.ctrl.Snapshot()
	assert.Len(t, snap.Profiles, 1, "profile list is reloaded")
	assert.Len(t, snap.History, 1)
	assert.Equal(t, "Profile saved!", snap.Notices[len(snap.Notices)-1].Title)

	_, ok := h.guest.Read(ctx)
	assert.False(t, ok, "signed-in quick results do not touch the guest slot")
}
