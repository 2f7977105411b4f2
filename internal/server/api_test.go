package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/present_ponder/internal/blob"
	"github.com/lewisedginton/present_ponder/internal/gift"
	"github.com/lewisedginton/present_ponder/internal/guest"
	"github.com/lewisedginton/present_ponder/internal/identity"
	"github.com/lewisedginton/present_ponder/internal/persistence"
	"github.com/lewisedginton/present_ponder/internal/recommendation"
	"github.com/lewisedginton/present_ponder/internal/session"
)

const (
	testSecret  = "test-secret"
	testBrowser = "browser-test-1"
	testAccount = "acct-42"
)

type apiHarness struct {
	handler  http.Handler
	registry *session.Registry
	store    *persistence.Memory
	verifier *identity.Verifier
	// upstreamStatus is what the fake recommendation service answers with.
	upstreamStatus atomic.Int32
	upstreamCalls  atomic.Int32
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	h := &apiHarness{store: persistence.NewMemory()}
	h.upstreamStatus.Store(http.StatusOK)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.upstreamCalls.Add(1)
		status := int(h.upstreamStatus.Load())
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"detail":"model overloaded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"recommendations":[
			{"product":"Putter","explanation":"For the green","product_cost":"£40","store":"golf.com"},
			{"product":"Gloves","explanation":"Warm hands"}
		]}`))
	}))
	t.Cleanup(upstream.Close)

	client, err := recommendation.NewClient(recommendation.ClientConfig{BaseURL: upstream.URL})
	require.NoError(t, err)

	h.registry = session.NewRegistry(session.Dependencies{
		Blobs:    blob.NewMemory(),
		Store:    h.store,
		Pipeline: recommendation.NewPipeline(recommendation.NewBuilder("United Kingdom", 4), client, h.store, nil),
	})
	h.verifier, err = identity.NewVerifier(identity.VerifierConfig{Secret: testSecret})
	require.NoError(t, err)

	r := chi.NewRouter()
	NewAPI(APIConfig{Registry: h.registry, Verifier: h.verifier}).Mount(r)
	h.handler = r
	return h
}

func (h *apiHarness) token(t *testing.T) string {
	t.Helper()
	tok, err := h.verifier.Sign(testAccount, time.Hour, "")
	require.NoError(t, err)
	return tok
}

// do sends a request for testBrowser. token may be empty for anonymous calls.
func (h *apiHarness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(BrowserHeader, testBrowser)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionResponse {
	t.Helper()
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func titles(notices []gift.Notice) []string {
	out := make([]string, 0, len(notices))
	for _, n := range notices {
		out = append(out, n.Title)
	}
	return out
}

func quickForm() map[string]any {
	return map[string]any{
		"recipientName":     "Sam",
		"age":               "9",
		"selectedInterests": []string{"Lego"},
		"relationship":      "Nephew",
		"occasion":          "Birthday",
		"customInterest":    "Space",
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", gift.NewValidationError("age", "invalid age"), http.StatusBadRequest},
		{"upstream", &gift.UpstreamError{StatusCode: 500}, http.StatusBadGateway},
		{"store", gift.NewPersistenceError("list", errors.New("down")), http.StatusServiceUnavailable},
		{"store not found", gift.NewPersistenceError("get", gift.ErrNotFound), http.StatusNotFound},
		{"store needs account", gift.NewPersistenceError("save", gift.ErrNotAuthenticated), http.StatusUnauthorized},
		{"not authenticated", fmt.Errorf("x: %w", gift.ErrNotAuthenticated), http.StatusUnauthorized},
		{"bad token", fmt.Errorf("%w: expired", identity.ErrInvalidToken), http.StatusUnauthorized},
		{"transition", fmt.Errorf("x: %w", gift.ErrInvalidTransition), http.StatusConflict},
		{"superseded", gift.ErrSuperseded, http.StatusConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestBrowserCookieIsMintedAndReused(t *testing.T) {
	h := newAPIHarness(t)

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, BrowserCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, 1, h.registry.Len())
}

func TestBrowserScopeRejectsBadInput(t *testing.T) {
	h := newAPIHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set(BrowserHeader, "../../etc")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/session", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, h.registry.Len())
}

func TestGuestQuickFlow(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/api/session/views/quick", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.ViewQuick, decodeSession(t, rec).Session.View)

	rec = h.do(t, http.MethodPost, "/api/session/quick", "", quickForm())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeSession(t, rec)
	require.Len(t, resp.Recommendations, 2)
	assert.Equal(t, "Putter", resp.Recommendations[0].Name)
	assert.Equal(t, recommendation.PricePlaceholder, resp.Recommendations[1].Price)
	assert.Equal(t, resp.Recommendations, resp.Session.Quick)

	rec = h.do(t, http.MethodGet, "/api/guest", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var data guest.Data
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Equal(t, "Sam", data.RecipientName)
	assert.Equal(t, []string{"Lego", "Space"}, data.SelectedInterests)
	assert.Len(t, data.Recommendations, 2)

	rec = h.do(t, http.MethodDelete, "/api/guest", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/guest", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuickValidation(t *testing.T) {
	h := newAPIHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/session/views/quick", "", nil).Code)

	form := quickForm()
	delete(form, "relationship")
	rec := h.do(t, http.MethodPost, "/api/session/quick", "", form)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "please fill in all required fields", decodeError(t, rec).Error)
	assert.Equal(t, int32(0), h.upstreamCalls.Load())

	req := httptest.NewRequest(http.MethodPost, "/api/session/quick", bytes.NewBufferString("{"))
	req.Header.Set(BrowserHeader, testBrowser)
	bad := httptest.NewRecorder()
	h.handler.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestSignedInProfileFlow(t *testing.T) {
	h := newAPIHarness(t)
	tok := h.token(t)

	rec := h.do(t, http.MethodGet, "/api/session", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeSession(t, rec).Session.Authenticated)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/session/views/new-profile", tok, nil).Code)

	rec = h.do(t, http.MethodPost, "/api/session/profiles", tok, gift.ProfileDraft{
		Name: "Alex", Relationship: "Friend", Gender: "female", Age: 34, Interest: "Golf, Hiking",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeSession(t, rec)
	require.Len(t, resp.Session.Profiles, 1)
	profileID := resp.Session.Profiles[0].ID
	assert.Equal(t, profileID, resp.Session.SelectedProfile)
	assert.Equal(t, session.ViewSelected, resp.Session.View)
	assert.Contains(t, titles(resp.Session.Notices), "Profile saved!")

	occasion := map[string]any{"occasion": "Birthday", "date": "2026-12-01T00:00:00Z", "notes": "Likes blue"}
	rec = h.do(t, http.MethodPost, "/api/session/generate", tok, occasion)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = decodeSession(t, rec)
	assert.Len(t, resp.Recommendations, 2)
	assert.Equal(t, resp.Recommendations, resp.Session.Current)
	assert.Equal(t, "Likes blue", resp.Session.AccumulatedNotes)
	assert.Contains(t, titles(resp.Session.Notices), "Recommendations generated!")

	rec = h.do(t, http.MethodGet, "/api/profiles/"+profileID+"/recommendations", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sets []gift.RecommendationSet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sets))
	require.Len(t, sets, 1)
	assert.Equal(t, "Birthday", sets[0].Occasion)

	rec = h.do(t, http.MethodDelete, "/api/recommendations/"+sets[0].ID, tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodDelete, "/api/recommendations/"+sets[0].ID, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodDelete, "/api/profiles/"+profileID, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeSession(t, rec).Session.Profiles)
}

func TestNotesAndTabs(t *testing.T) {
	h := newAPIHarness(t)
	tok := h.token(t)
	p, err := h.store.CreateProfile(context.Background(), testAccount, gift.ProfileDraft{
		Name: "Jo", Relationship: "Sister", Gender: "female", Age: 30, Interest: "Books",
	})
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/session/views/manage", tok, nil).Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/session/profiles/"+p.ID+"/select", tok, nil).Code)

	rec := h.do(t, http.MethodPost, "/api/session/tab", tok, map[string]string{"tab": "enrich-profile"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.TabEnrich, decodeSession(t, rec).Session.Tab)

	rec = h.do(t, http.MethodPost, "/api/session/tab", tok, map[string]string{"tab": "wishlist"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/session/notes", tok, map[string]string{"text": "  Reads sci-fi  "})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeSession(t, rec)
	require.Len(t, resp.Session.Profiles, 1)
	notes := resp.Session.Profiles[0].Notes
	require.Len(t, notes, 1)
	assert.Equal(t, "Reads sci-fi", notes[0].Text)

	rec = h.do(t, http.MethodDelete, "/api/session/notes/"+notes[0].ID, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeSession(t, rec).Session.Profiles[0].Notes)

	rec = h.do(t, http.MethodDelete, "/api/session/notes/note-missing", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionErrorMapping(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/api/session/views/manage", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/session/views/cancel", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/session/views/teleport", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	tok := h.token(t)
	p, err := h.store.CreateProfile(context.Background(), testAccount, gift.ProfileDraft{
		Name: "Jo", Relationship: "Sister", Gender: "female", Age: 30, Interest: "Books",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/session/views/manage", tok, nil).Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/session/profiles/"+p.ID+"/select", tok, nil).Code)

	rec = h.do(t, http.MethodPost, "/api/session/generate", tok, map[string]string{"occasion": "Birthday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "date", decodeError(t, rec).Field)

	h.upstreamStatus.Store(http.StatusServiceUnavailable)
	rec = h.do(t, http.MethodPost, "/api/session/generate", tok, map[string]string{
		"occasion": "Birthday", "date": "2026-12-01T00:00:00Z",
	})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeError(t, rec)
	assert.Contains(t, resp.Error, "Request failed: 503")
	assert.Contains(t, titles(resp.Notices), "Failed to generate recommendations")

	rec = h.do(t, http.MethodPost, "/api/session/profiles/missing/select", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignOutViaHeaderDrop(t *testing.T) {
	h := newAPIHarness(t)
	tok := h.token(t)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/session/views/manage", tok, nil).Code)

	rec := h.do(t, http.MethodGet, "/api/session", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeSession(t, rec)
	assert.False(t, resp.Session.Authenticated)
	assert.Equal(t, session.ViewWelcome, resp.Session.View)
}
