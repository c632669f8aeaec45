package moderation

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/fkhayef/tourneyhub/pkg/middleware"
	"github.com/fkhayef/tourneyhub/pkg/response"
)

// Handler handles HTTP requests for moderation operations
type Handler struct {
	engine *Engine
}

// NewHandler creates a new moderation handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Routes returns the router for moderation endpoints, mounted under a community
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/actions", h.Execute)
	r.Get("/actions", h.History)

	return r
}

// Execute handles POST /communities/{communityID}/moderation/actions
// @Summary      Execute a moderation action
// @Description  Applies ban, unban, warn, mute, unmute, kick or role_change and records it in the audit log
// @Tags         moderation
// @Accept       json
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        request body ActionInput true "Action"
// @Success      201 {object} response.APIResponse{data=ActionResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /communities/{communityID}/moderation/actions [post]
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var in ActionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	action, err := h.engine.Execute(r.Context(), chi.URLParam(r, "communityID"), actor, &in)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, action.ToResponse())
}

// History handles GET /communities/{communityID}/moderation/actions
// @Summary      Read the audit log
// @Tags         moderation
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        target_user_id query string false "Only actions against this user"
// @Success      200 {object} response.APIResponse{data=[]ActionResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /communities/{communityID}/moderation/actions [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	actions, err := h.engine.History(r.Context(), chi.URLParam(r, "communityID"), actor, r.URL.Query().Get("target_user_id"))
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, lo.Map(actions, func(a *Action, _ int) *ActionResponse { return a.ToResponse() }))
}
