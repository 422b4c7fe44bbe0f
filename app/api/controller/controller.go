package controller

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vecindia/asambleax/app/api/types"
	communitydb "github.com/vecindia/asambleax/pkg/db/community"
)

// CommunityHeader carries the tenant selector on every community-scoped route.
const CommunityHeader = "X-Community-Id"

type storeKeyType struct{}

var storeKey storeKeyType

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+CommunityHeader)
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodPut+", "+http.MethodPatch+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireCommunity resolves the X-Community-Id header to a tenant store and
// hangs it off the request context. Missing selector is a 400, a selector that
// does not map to an active community is a 403. There is no fallback tenant.
func (c *Controller) RequireCommunity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		taxID := r.Header.Get(CommunityHeader)
		if taxID == "" {
			c.writeError(w, http.StatusBadRequest, "missing "+CommunityHeader+" header")
			return
		}

		store, err := c.App.Router.Resolve(r.Context(), taxID)
		if err != nil {
			c.writeError(w, http.StatusForbidden, "unknown community")
			return
		}

		ctx := context.WithValue(r.Context(), storeKey, store)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// store returns the tenant store the middleware resolved for this request.
func (c *Controller) store(r *http.Request) *communitydb.DB {
	store, _ := r.Context().Value(storeKey).(*communitydb.DB)
	return store
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	// Control plane: community catalog
	r.HandleFunc("/api/communities", c.HandleCommunitiesList).Methods(http.MethodGet)
	r.HandleFunc("/api/communities", c.HandleCommunityCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/communities/{taxId}", c.HandleCommunityDetail).Methods(http.MethodGet)
	r.HandleFunc("/api/communities/{taxId}/active", c.HandleCommunityActive).Methods(http.MethodPatch)
	r.HandleFunc("/api/communities/{taxId}/db", c.HandleCommunityDb).Methods(http.MethodPatch)

	// Tenant plane: everything below requires X-Community-Id
	t := r.PathPrefix("/api").Subrouter()
	t.Use(c.RequireCommunity)

	t.HandleFunc("/properties", c.HandlePropertiesList).Methods(http.MethodGet)
	t.HandleFunc("/properties", c.HandlePropertyCreate).Methods(http.MethodPost)
	t.HandleFunc("/properties/{id}", c.HandlePropertyDetail).Methods(http.MethodGet)
	t.HandleFunc("/properties/{id}", c.HandlePropertyUpdate).Methods(http.MethodPut)

	t.HandleFunc("/attendees", c.HandleAttendeesList).Methods(http.MethodGet)
	t.HandleFunc("/attendees", c.HandleAttendeeCreate).Methods(http.MethodPost)
	t.HandleFunc("/attendees/code/{code}", c.HandleAttendeeByCode).Methods(http.MethodGet)
	t.HandleFunc("/attendees/{id}", c.HandleAttendeeDetail).Methods(http.MethodGet)
	t.HandleFunc("/attendees/{id}", c.HandleAttendeeDelete).Methods(http.MethodDelete)

	t.HandleFunc("/meetings", c.HandleMeetingsList).Methods(http.MethodGet)
	t.HandleFunc("/meetings", c.HandleMeetingCreate).Methods(http.MethodPost)
	t.HandleFunc("/meetings/{id}", c.HandleMeetingDetail).Methods(http.MethodGet)
	t.HandleFunc("/meetings/{id}/start", c.HandleMeetingStart).Methods(http.MethodPost)
	t.HandleFunc("/meetings/{id}/end", c.HandleMeetingEnd).Methods(http.MethodPost)
	t.HandleFunc("/meetings/{id}/questions", c.HandleQuestionsList).Methods(http.MethodGet)
	t.HandleFunc("/meetings/{id}/questions", c.HandleQuestionCreate).Methods(http.MethodPost)

	t.HandleFunc("/questions/{id}", c.HandleQuestionDetail).Methods(http.MethodGet)
	t.HandleFunc("/questions/{id}/open", c.HandleQuestionOpen).Methods(http.MethodPost)
	t.HandleFunc("/questions/{id}/close", c.HandleQuestionClose).Methods(http.MethodPost)
	t.HandleFunc("/questions/{id}/cancel", c.HandleQuestionCancel).Methods(http.MethodPost)
	t.HandleFunc("/questions/{id}/results", c.HandleQuestionResults).Methods(http.MethodGet)
	t.HandleFunc("/questions/{id}/votes", c.HandleVotesList).Methods(http.MethodGet)
	t.HandleFunc("/questions/{id}/options", c.HandleOptionsList).Methods(http.MethodGet)
	t.HandleFunc("/questions/{id}/options", c.HandleOptionCreate).Methods(http.MethodPost)
	t.HandleFunc("/options/{id}", c.HandleOptionUpdate).Methods(http.MethodPut)
	t.HandleFunc("/options/{id}", c.HandleOptionDelete).Methods(http.MethodDelete)

	t.HandleFunc("/votes", c.HandleVoteSubmit).Methods(http.MethodPost)
	t.HandleFunc("/quorum", c.HandleQuorum).Methods(http.MethodGet)

	// WebSocket endpoint for real-time events
	t.HandleFunc("/ws", c.HandleWebSocket).Methods(http.MethodGet)

	return r, nil
}
