package community

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/fkhayef/tourneyhub/internal/member"
	"github.com/fkhayef/tourneyhub/pkg/middleware"
	"github.com/fkhayef/tourneyhub/pkg/response"
)

// Handler handles HTTP requests for community operations
type Handler struct {
	service *Service
}

// NewHandler creates a new community handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for community endpoints. Feature routers are
// mounted below /{communityID} by the caller.
func (h *Handler) Routes(mount func(r chi.Router)) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Route("/{communityID}", func(r chi.Router) {
		r.Get("/", h.GetByID)
		r.Get("/members", h.ListMembers)
		r.Get("/permissions", h.ResolvePermissions)
		if mount != nil {
			mount(r)
		}
	})

	return r
}

// Create handles POST /communities
// @Summary      Create a community
// @Description  Creates the community with its default role, an organizer role for the caller and the default channels
// @Tags         communities
// @Accept       json
// @Produce      json
// @Param        request body CreateCommunityRequest true "Community creation request"
// @Success      201 {object} response.APIResponse{data=CommunityResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /communities [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateCommunityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	c, err := h.service.Create(r.Context(), actor, &req)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, c.ToResponse())
}

// GetByID handles GET /communities/{communityID}
// @Summary      Get a community
// @Tags         communities
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Success      200 {object} response.APIResponse{data=CommunityResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /communities/{communityID} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "communityID"))
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, c.ToResponse())
}

// ListMembers handles GET /communities/{communityID}/members
// @Summary      List community members
// @Tags         communities
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Success      200 {object} response.APIResponse{data=[]ParticipantResponse}
// @Router       /communities/{communityID}/members [get]
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	members, err := h.service.ListMembers(r.Context(), chi.URLParam(r, "communityID"), actor)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, lo.Map(members, func(p *member.Participant, _ int) *ParticipantResponse {
		return ToParticipantResponse(p)
	}))
}

// ResolvePermissions handles GET /communities/{communityID}/permissions
// @Summary      Resolve effective permissions
// @Tags         communities
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        user_id query string false "User to resolve, defaults to the caller"
// @Param        channel_id query string false "Channel to resolve in"
// @Success      200 {object} response.APIResponse{data=PermissionsResponse}
// @Router       /communities/{communityID}/permissions [get]
func (h *Handler) ResolvePermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = actor
	}
	channelID := r.URL.Query().Get("channel_id")

	set, err := h.service.ResolvePermissions(r.Context(), chi.URLParam(r, "communityID"), actor, userID, channelID)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, &PermissionsResponse{UserID: userID, ChannelID: channelID, Permissions: set.Strings()})
}
