package channel

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/pkg/middleware"
	"github.com/fkhayef/tourneyhub/pkg/response"
)

// Handler handles HTTP requests for channel operations
type Handler struct {
	service *Service
}

// NewHandler creates a new channel handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for channel endpoints, mounted under a community
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{channelID}", h.GetByID)
	r.Delete("/{channelID}", h.Delete)

	// Overwrites
	r.Get("/{channelID}/overwrites", h.GetOverwrites)
	r.Put("/{channelID}/overwrites", h.SetOverwrite)
	r.Delete("/{channelID}/overwrites/{subjectType}/{subjectID}", h.RemoveOverwrite)

	return r
}

// Create handles POST /communities/{communityID}/channels
// @Summary      Create a channel
// @Tags         channels
// @Accept       json
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        request body CreateChannelRequest true "Channel creation request"
// @Success      201 {object} response.APIResponse{data=ChannelResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /communities/{communityID}/channels [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	ch, err := h.service.Create(r.Context(), chi.URLParam(r, "communityID"), actor, &req)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, ch.ToResponse())
}

// List handles GET /communities/{communityID}/channels
// @Summary      List visible channels
// @Tags         channels
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Success      200 {object} response.APIResponse{data=[]ChannelResponse}
// @Router       /communities/{communityID}/channels [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	channels, err := h.service.List(r.Context(), chi.URLParam(r, "communityID"), actor)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, lo.Map(channels, func(ch *Channel, _ int) *ChannelResponse { return ch.ToResponse() }))
}

// GetByID handles GET /communities/{communityID}/channels/{channelID}
// @Summary      Get a channel
// @Tags         channels
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        channelID path string true "Channel ID"
// @Success      200 {object} response.APIResponse{data=ChannelResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /communities/{communityID}/channels/{channelID} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	ch, err := h.service.Get(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "channelID"), actor)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, ch.ToResponse())
}

// Delete handles DELETE /communities/{communityID}/channels/{channelID}
// @Summary      Delete a channel
// @Tags         channels
// @Param        communityID path string true "Community ID"
// @Param        channelID path string true "Channel ID"
// @Success      204
// @Failure      400 {object} response.APIResponse
// @Router       /communities/{communityID}/channels/{channelID} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "channelID"), actor); err != nil {
		response.Err(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetOverwrites handles GET /communities/{communityID}/channels/{channelID}/overwrites
// @Summary      List a channel's overwrites
// @Tags         channels
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        channelID path string true "Channel ID"
// @Success      200 {object} response.APIResponse{data=[]OverwriteResponse}
// @Router       /communities/{communityID}/channels/{channelID}/overwrites [get]
func (h *Handler) GetOverwrites(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	ows, err := h.service.GetOverwrites(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "channelID"), actor)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, ToOverwriteResponses(ows))
}

// SetOverwrite handles PUT /communities/{communityID}/channels/{channelID}/overwrites
// @Summary      Set a channel permission overwrite
// @Description  Replaces the overwrite for the subject. Allow and deny must not overlap.
// @Tags         channels
// @Accept       json
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        channelID path string true "Channel ID"
// @Param        request body SetOverwriteRequest true "Overwrite"
// @Success      200 {object} response.APIResponse{data=ChannelResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Router       /communities/{communityID}/channels/{channelID}/overwrites [put]
func (h *Handler) SetOverwrite(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req SetOverwriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	ch, err := h.service.SetOverwrite(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "channelID"), actor, &req)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, ch.ToResponse())
}

// RemoveOverwrite handles DELETE /communities/{communityID}/channels/{channelID}/overwrites/{subjectType}/{subjectID}
// @Summary      Remove a channel permission overwrite
// @Tags         channels
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        channelID path string true "Channel ID"
// @Param        subjectType path string true "role or user"
// @Param        subjectID path string true "Role or user ID"
// @Success      200 {object} response.APIResponse{data=ChannelResponse}
// @Router       /communities/{communityID}/channels/{channelID}/overwrites/{subjectType}/{subjectID} [delete]
func (h *Handler) RemoveOverwrite(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	subjectType := permission.SubjectType(chi.URLParam(r, "subjectType"))
	ch, err := h.service.RemoveOverwrite(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "channelID"), actor, subjectType, chi.URLParam(r, "subjectID"))
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, ch.ToResponse())
}
