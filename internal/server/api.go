package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/present_ponder/internal/gift"
	"github.com/lewisedginton/present_ponder/internal/identity"
	"github.com/lewisedginton/present_ponder/internal/session"
	"github.com/lewisedginton/present_ponder/pkg/logger"
	"github.com/lewisedginton/present_ponder/pkg/prefixed_uuid"
)

const (
	// BrowserHeader carries the client's browser scope.
	BrowserHeader = "X-Browser-ID"
	// BrowserCookie is the fallback browser scope, minted when neither is sent.
	BrowserCookie = "pp_browser"

	browserCookieMaxAge = 365 * 24 * time.Hour
)

var browserIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

type browserKey struct{}

// APIConfig configures the session API handlers.
type APIConfig struct {
	Registry *session.Registry
	// Verifier resolves bearer tokens. Nil treats every request as anonymous.
	Verifier       *identity.Verifier
	Logger         logger.Logger
	MaxRequestSize int64
	SecureCookies  bool
}

// API serves the browser-facing session endpoints.
type API struct {
	registry      *session.Registry
	verifier      *identity.Verifier
	log           logger.Logger
	maxBody       int64
	secureCookies bool
}

// NewAPI creates an API.
func NewAPI(cfg APIConfig) *API {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	maxBody := cfg.MaxRequestSize
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &API{
		registry:      cfg.Registry,
		verifier:      cfg.Verifier,
		log:           log,
		maxBody:       maxBody,
		secureCookies: cfg.SecureCookies,
	}
}

// Mount registers the /api routes on r.
func (a *API) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(a.browserScope)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", a.getSession)
			r.Post("/views/{action}", a.performAction)
			r.Post("/profiles", a.saveProfile)
			r.Post("/profiles/{id}/select", a.selectProfile)
			r.Post("/profiles/{id}/edit", a.editProfile)
			r.Post("/tab", a.setTab)
			r.Post("/notes", a.addNote)
			r.Delete("/notes/{id}", a.deleteNote)
			r.Post("/generate", a.generate)
			r.Post("/quick", a.quick)
		})

		r.Get("/guest", a.getGuest)
		r.Delete("/guest", a.clearGuest)

		r.Delete("/profiles/{id}", a.deleteProfile)
		r.Get("/profiles/{id}/recommendations", a.listSets)
		r.Delete("/recommendations/{id}", a.deleteSet)
	})
}

// browserScope resolves the request's browser and identity, publishes the
// identity to that browser's feed and stores the browser in the context.
func (a *API) browserScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.browserID(w, r)
		if !ok {
			writeError(w, http.StatusBadRequest, gift.NewValidationError(BrowserHeader, "invalid browser id"), nil)
			return
		}

		state := identity.Anonymous()
		if a.verifier != nil {
			var err error
			state, err = a.verifier.FromRequest(r)
			if err != nil {
				a.log.Debug("Rejected bearer token", logger.StringField("browser_id", id), logger.ErrorField(err))
				writeError(w, http.StatusUnauthorized, err, nil)
				return
			}
		}

		b := a.registry.Get(id)
		b.Identify(r.Context(), state)

		ctx := context.WithValue(r.Context(), browserKey{}, b)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) browserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if id := strings.TrimSpace(r.Header.Get(BrowserHeader)); id != "" {
		return id, browserIDPattern.MatchString(id)
	}
	if c, err := r.Cookie(BrowserCookie); err == nil && browserIDPattern.MatchString(c.Value) {
		return c.Value, true
	}

	id := prefixed_uuid.New("browser").String()
	http.SetCookie(w, &http.Cookie{
		Name:     BrowserCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(browserCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return id, true
}

func browserFrom(ctx context.Context) *session.Browser {
	b, _ := ctx.Value(browserKey{}).(*session.Browser)
	return b
}

// sessionResponse is returned by every session endpoint. Notices are drained.
type sessionResponse struct {
	Session         session.Snapshot      `json:"session"`
	Recommendations []gift.Recommendation `json:"recommendations,omitempty"`
}

func (a *API) respond(w http.ResponseWriter, r *http.Request, status int, recs []gift.Recommendation) {
	ctrl := browserFrom(r.Context()).Controller
	notices := ctrl.DrainNotices()
	snap := ctrl.Snapshot()
	snap.Notices = notices
	writeJSON(w, status, sessionResponse{Session: snap, Recommendations: recs})
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.GetLoggerFromContext(r.Context(), a.log).Error("Request failed",
			logger.StringField("path", r.URL.Path),
			logger.IntField("status", status),
			logger.ErrorField(err))
	}
	var notices []gift.Notice
	if b := browserFrom(r.Context()); b != nil {
		notices = b.Controller.DrainNotices()
	}
	writeError(w, status, err, notices)
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxBody))
	if err := dec.Decode(v); err != nil {
		return gift.NewValidationError("body", "invalid request body")
	}
	return nil
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, http.StatusOK, nil)
}

func (a *API) performAction(w http.ResponseWriter, r *http.Request) {
	action := session.Action(chi.URLParam(r, "action"))
	if err := browserFrom(r.Context()).Controller.Perform(action); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, nil)
}

func (a *API) selectProfile(w http.ResponseWriter, r *http.Request) {
	if err := browserFrom(r.Context()).Controller.SelectProfile(chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, nil)
}

func (a *API) editProfile(w http.ResponseWriter, r *http.Request) {
	if err := browserFrom(r.Context()).Controller.EditProfile(chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, nil)
}

type tabRequest struct {
	Tab session.Tab `json:"tab"`
}

func (a *API) setTab(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := browserFrom(r.Context()).Controller.SetTab(req.Tab); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, nil)
}

func (a *API) saveProfile(w http.ResponseWriter, r *http.Request) {
	var draft gift.ProfileDraft
	if err := a.decode(w, r, &draft); err != nil {
		a.fail(w, r, err)
		return
	}
	if _, err := browserFrom(r.Context()).Controller.SaveProfile(r.Context(), draft); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, nil)
}

type noteRequest struct {
	Text string `json:"text"`
}

func (a *API) addNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if _, err := browserFrom(r.Context()).Controller.AddNote(r.Context(), req.Text); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusCreated, nil)
}

func (a *API) deleteNote(w http.ResponseWriter, r *http.Request) {
	if err := browserFrom(r.Context()).Controller.DeleteNote(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, nil)
}

func (a *API) generate(w http.ResponseWriter, r *http.Request) {
	var occasion gift.Occasion
	if err := a.decode(w, r, &occasion); err != nil {
		a.fail(w, r, err)
		return
	}
	if occasion.Date.IsZero() {
		a.fail(w, r, gift.NewValidationError("date", "occasion date is required"))
		return
	}
	recs, err := browserFrom(r.Context()).Controller.Generate(r.Context(), occasion)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, recs)
}

// quickRequest is the guest form plus an optional interest typed by hand.
type quickRequest struct {
	gift.GuestForm
	CustomInterest string `json:"customInterest,omitempty"`
}

func (a *API) quick(w http.ResponseWriter, r *http.Request) {
	var req quickRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	form := req.GuestForm
	form.AddInterest(req.CustomInterest)

	recs, err := browserFrom(r.Context()).Controller.Quick(r.Context(), form)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, recs)
}

func (a *API) getGuest(w http.ResponseWriter, r *http.Request) {
	data, ok := browserFrom(r.Context()).Guest.Read(r.Context())
	if !ok {
		a.fail(w, r, fmt.Errorf("guest session: %w", gift.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (a *API) clearGuest(w http.ResponseWriter, r *http.Request) {
	browserFrom(r.Context()).Guest.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := browserFrom(r.Context()).Controller.DeleteProfile(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, nil)
}

func (a *API) listSets(w http.ResponseWriter, r *http.Request) {
	sets, err := browserFrom(r.Context()).Controller.ListSets(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if sets == nil {
		sets = []gift.RecommendationSet{}
	}
	writeJSON(w, http.StatusOK, sets)
}

func (a *API) deleteSet(w http.ResponseWriter, r *http.Request) {
	if err := browserFrom(r.Context()).Controller.DeleteSet(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
