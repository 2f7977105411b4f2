package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/present_ponder/internal/gift"
)

// fakePostgREST serves the subset of the PostgREST protocol the store uses:
// eq filters, inserts, upserts on id, patches and deletes returning representation.
type fakePostgREST struct {
	mu     sync.Mutex
	tables map[string][]map[string]any
	clock  time.Time
	fail   bool
}

func newFakePostgREST() *fakePostgREST {
	return &fakePostgREST{
		tables: map[string][]map[string]any{},
		clock:  time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (f *fakePostgREST) stamp() string {
	f.clock = f.clock.Add(time.Second)
	return f.clock.Format(time.RFC3339Nano)
}

func (f *fakePostgREST) matches(row map[string]any, r *http.Request) bool {
	for key, values := range r.URL.Query() {
		if !strings.HasPrefix(values[0], "eq.") {
			continue
		}
		if fmt.Sprint(row[key]) != strings.TrimPrefix(values[0], "eq.") {
			return false
		}
	}
	return true
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"XX000","message":"internal error"}`))
		return
	}

	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	rows := f.tables[table]
	var out []map[string]any

	switch r.Method {
	case http.MethodGet:
		for _, row := range rows {
			if f.matches(row, r) {
				out = append(out, row)
			}
		}
	case http.MethodPost:
		var row map[string]any
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			http.Error(w, `{"code":"PGRST102","message":"bad body"}`, http.StatusBadRequest)
			return
		}
		now := f.stamp()
		for _, col := range []string{"created_at", "updated_at", "generated_at"} {
			if _, ok := row[col]; !ok {
				row[col] = now
			}
		}
		replaced := false
		if strings.Contains(r.Header.Get("Prefer"), "merge-duplicates") {
			for i, existing := range rows {
				if existing["id"] == row["id"] {
					rows[i] = row
					replaced = true
				}
			}
		}
		if !replaced {
			rows = append(rows, row)
		}
		out = append(out, row)
	case http.MethodPatch:
		var patch map[string]any
		_ = json.NewDecoder(r.Body).Decode(&patch)
		for _, row := range rows {
			if f.matches(row, r) {
				for k, v := range patch {
					row[k] = v
				}
				out = append(out, row)
			}
		}
	case http.MethodDelete:
		var kept []map[string]any
		for _, row := range rows {
			if f.matches(row, r) {
				out = append(out, row)
			} else {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	f.tables[table] = rows

	if strings.Contains(r.Header.Get("Prefer"), "return=minimal") {
		w.WriteHeader(http.StatusCreated)
		return
	}
	if out == nil {
		out = []map[string]any{}
	}
	_ = json.NewEncoder(w).Encode(out)
}

func newTestStore(t *testing.T) (*Store, *fakePostgREST) {
	t.Helper()
	fake := newFakePostgREST()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := New(Config{URL: srv.URL, APIKey: "anon-key"})
	require.NoError(t, err)
	return s, fake
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "http://localhost"})
	assert.Error(t, err)
}

func TestStoreProfiles(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	ann, err := s.CreateProfile(ctx, "acct-1", gift.ProfileDraft{Name: "Ann", Relationship: "Sister", Gender: "female", Age: 28, Interest: "Climbing"})
	require.NoError(t, err)
	assert.Equal(t, "acct-1", ann.AccountID)
	assert.NotNil(t, ann.Notes)

	bob, err := s.CreateProfile(ctx, "acct-1", gift.ProfileDraft{Name: "Bob", Relationship: "Brother", Age: 31, Interest: "Chess"})
	require.NoError(t, err)
	_, err = s.CreateProfile(ctx, "acct-2", gift.ProfileDraft{Name: "Eve", Relationship: "Friend", Age: 40, Interest: "Art"})
	require.NoError(t, err)

	list, err := s.ListProfiles(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, bob.ID, list[0].ID)

	d := ann.Draft()
	d.Notes = []gift.Note{{ID: "note-a", Text: "vegan"}}
	updated, err := s.UpdateProfile(ctx, "acct-1", ann.ID, d)
	require.NoError(t, err)
	require.Len(t, updated.Notes, 1)
	assert.Equal(t, "vegan", updated.Notes[0].Text)

	_, err = s.GetProfile(ctx, "acct-2", ann.ID)
	assert.ErrorIs(t, err, gift.ErrNotFound)
	_, err = s.UpdateProfile(ctx, "acct-2", ann.ID, d)
	assert.ErrorIs(t, err, gift.ErrNotFound)

	require.NoError(t, s.DeleteProfile(ctx, "acct-1", bob.ID))
	assert.ErrorIs(t, s.DeleteProfile(ctx, "acct-1", bob.ID), gift.ErrNotFound)
}

func TestStoreRecommendationSets(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	p, err := s.CreateProfile(ctx, "acct-1", gift.ProfileDraft{Name: "Ann", Relationship: "Sister", Age: 28, Interest: "Climbing"})
	require.NoError(t, err)

	date := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	set, err := s.SaveRecommendationSet(ctx, "acct-1", gift.SetDraft{
		ProfileID:       p.ID,
		Occasion:        "Birthday",
		OccasionDate:    &date,
		OccasionNotes:   "outdoorsy",
		Recommendations: []gift.Recommendation{{ID: "x-0", Name: "Chalk bag", Price: "£15", Category: "Sport"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "outdoorsy", set.OccasionNotes)
	require.NotNil(t, set.OccasionDate)
	assert.True(t, date.Equal(*set.OccasionDate))

	_, err = s.SaveRecommendationSet(ctx, "acct-1", gift.SetDraft{ProfileID: "profile-unknown", Occasion: "Birthday"})
	assert.ErrorIs(t, err, gift.ErrNotFound)

	sets, err := s.ListRecommendationSets(ctx, "acct-1", p.ID)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "Chalk bag", sets[0].Recommendations[0].Name)

	none, err := s.ListRecommendationSets(ctx, "acct-1", "profile-other")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.DeleteRecommendationSet(ctx, "acct-1", set.ID))
	all, err := s.ListRecommendationSets(ctx, "acct-1", "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStoreAccumulatedNotes(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	notes, err := s.GetAccumulatedNotes(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, notes)

	require.NoError(t, s.SetAccumulatedNotes(ctx, "acct-1", "first"))
	require.NoError(t, s.SetAccumulatedNotes(ctx, "acct-1", "first\n\nsecond"))

	notes, err = s.GetAccumulatedNotes(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "first\n\nsecond", notes)
}

func TestStoreSurfacesServerErrors(t *testing.T) {
	s, fake := newTestStore(t)
	fake.fail = true

	_, err := s.ListProfiles(context.Background(), "acct-1")
	var pe *gift.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "internal error")
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListProfiles(ctx, "acct-1")
	assert.ErrorIs(t, err, context.Canceled)
}
