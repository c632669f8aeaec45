package mention

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/tourneyhub/pkg/middleware"
	"github.com/fkhayef/tourneyhub/pkg/response"
)

// Handler handles HTTP requests for mention resolution
type Handler struct {
	service *Service
}

// NewHandler creates a new mention handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for mention endpoints, mounted under a community
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/resolve", h.Resolve)
	r.Post("/notify", h.Notify)

	return r
}

// Resolve handles POST /communities/{communityID}/mentions/resolve
// @Summary      Resolve mention recipients
// @Description  Expands everyone, here, role and user mentions to user ids after checking the sender may use them
// @Tags         mentions
// @Accept       json
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        request body ResolveRequest true "Mentions"
// @Success      200 {object} response.APIResponse{data=RecipientsResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /communities/{communityID}/mentions/resolve [post]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.service.Resolve)
}

// Notify handles POST /communities/{communityID}/mentions/notify
// @Summary      Notify mention recipients
// @Description  Resolves the mentions and publishes a mention event to the recipients
// @Tags         mentions
// @Accept       json
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        request body ResolveRequest true "Mentions"
// @Success      200 {object} response.APIResponse{data=RecipientsResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Router       /communities/{communityID}/mentions/notify [post]
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.service.Notify)
}

type resolveFunc func(ctx context.Context, communityID, channelID, sender string, m Mentions) ([]string, error)

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, resolve resolveFunc) {
	sender, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	recipients, err := resolve(r.Context(), chi.URLParam(r, "communityID"), req.ChannelID, sender, req.Mentions)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, toResponse(recipients))
}
