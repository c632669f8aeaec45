package presence

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/tourneyhub/internal/access"
	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/pkg/middleware"
	"github.com/fkhayef/tourneyhub/pkg/response"
)

// Handler exposes heartbeats and the online list to community members
type Handler struct {
	tracker Tracker
	authz   *access.Authorizer
	timeout time.Duration
}

// NewHandler creates a new presence handler
func NewHandler(tracker Tracker, authz *access.Authorizer, timeout time.Duration) *Handler {
	return &Handler{tracker: tracker, authz: authz, timeout: timeout}
}

// Routes returns the router for presence endpoints, mounted under a community
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Online)
	r.Post("/heartbeat", h.Heartbeat)
	r.Delete("/", h.Leave)

	return r
}

// member authorizes the caller as a member of the community in the URL
func (h *Handler) member(w http.ResponseWriter, r *http.Request) (context.Context, context.CancelFunc, string, string, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return nil, nil, "", "", false
	}
	communityID := chi.URLParam(r, "communityID")
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	if err := h.authz.Require(ctx, communityID, userID, "", permission.View); err != nil {
		cancel()
		response.Err(w, r, err)
		return nil, nil, "", "", false
	}
	return ctx, cancel, communityID, userID, true
}

// Heartbeat handles POST /communities/{communityID}/presence/heartbeat
// @Summary      Mark the caller online
// @Tags         presence
// @Param        communityID path string true "Community ID"
// @Success      204
// @Router       /communities/{communityID}/presence/heartbeat [post]
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, communityID, userID, ok := h.member(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := h.tracker.Touch(ctx, communityID, userID); err != nil {
		response.Err(w, r, apperr.FromContext("presence.touch", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Leave handles DELETE /communities/{communityID}/presence
// @Summary      Mark the caller offline
// @Tags         presence
// @Param        communityID path string true "Community ID"
// @Success      204
// @Router       /communities/{communityID}/presence [delete]
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, communityID, userID, ok := h.member(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := h.tracker.Leave(ctx, communityID, userID); err != nil {
		response.Err(w, r, apperr.FromContext("presence.leave", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Online handles GET /communities/{communityID}/presence
// @Summary      List online members
// @Tags         presence
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Success      200 {object} response.APIResponse{data=[]string}
// @Router       /communities/{communityID}/presence [get]
func (h *Handler) Online(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, communityID, _, ok := h.member(w, r)
	if !ok {
		return
	}
	defer cancel()

	online, err := h.tracker.Online(ctx, communityID)
	if err != nil {
		response.Err(w, r, apperr.FromContext("presence.online", err))
		return
	}
	response.JSON(w, http.StatusOK, online)
}
