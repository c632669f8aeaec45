package invitation

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/fkhayef/tourneyhub/pkg/middleware"
	"github.com/fkhayef/tourneyhub/pkg/response"
)

// Handler handles HTTP requests for invitation operations
type Handler struct {
	service *Service
}

// NewHandler creates a new invitation handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the community scoped invitation management endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Post("/{code}/deactivate", h.Deactivate)
	r.Delete("/{code}", h.Delete)
	r.Get("/{code}/usages", h.Usages)

	return r
}

// PublicRoutes returns the endpoints used by people joining with a code
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/redeem-link", h.RedeemLink)
	r.Get("/{code}", h.GetByCode)
	r.Post("/{code}/redeem", h.Redeem)

	return r
}

// Create handles POST /communities/{communityID}/invitations
// @Summary      Create an invitation
// @Tags         invitations
// @Accept       json
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        request body CreateInvitationRequest true "Invitation creation request"
// @Success      201 {object} response.APIResponse{data=InvitationResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Router       /communities/{communityID}/invitations [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	inv, err := h.service.Create(r.Context(), chi.URLParam(r, "communityID"), actor, &req)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, inv.ToResponse())
}

// List handles GET /communities/{communityID}/invitations
// @Summary      List invitations
// @Tags         invitations
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Success      200 {object} response.APIResponse{data=[]InvitationResponse}
// @Router       /communities/{communityID}/invitations [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	list, err := h.service.List(r.Context(), chi.URLParam(r, "communityID"), actor)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, lo.Map(list, func(inv *Invitation, _ int) *InvitationResponse { return inv.ToResponse() }))
}

// Deactivate handles POST /communities/{communityID}/invitations/{code}/deactivate
// @Summary      Deactivate an invitation
// @Tags         invitations
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        code path string true "Invitation code"
// @Success      200 {object} response.APIResponse{data=InvitationResponse}
// @Router       /communities/{communityID}/invitations/{code}/deactivate [post]
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	inv, err := h.service.Deactivate(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "code"), actor)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, inv.ToResponse())
}

// Delete handles DELETE /communities/{communityID}/invitations/{code}
// @Summary      Delete an invitation
// @Tags         invitations
// @Param        communityID path string true "Community ID"
// @Param        code path string true "Invitation code"
// @Success      204
// @Router       /communities/{communityID}/invitations/{code} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "code"), actor); err != nil {
		response.Err(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Usages handles GET /communities/{communityID}/invitations/{code}/usages
// @Summary      List an invitation's redemptions
// @Tags         invitations
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        code path string true "Invitation code"
// @Success      200 {object} response.APIResponse{data=[]UsageResponse}
// @Router       /communities/{communityID}/invitations/{code}/usages [get]
func (h *Handler) Usages(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	usages, err := h.service.Usages(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "code"), actor)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, lo.Map(usages, func(u *Usage, _ int) *UsageResponse { return u.ToResponse() }))
}

// GetByCode handles GET /invitations/{code}
// @Summary      Preview an invitation
// @Tags         invitations
// @Produce      json
// @Param        code path string true "Invitation code"
// @Success      200 {object} response.APIResponse{data=InvitationResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /invitations/{code} [get]
func (h *Handler) GetByCode(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, inv.ToResponse())
}

// Redeem handles POST /invitations/{code}/redeem
// @Summary      Redeem an invitation
// @Description  Joins the caller to the community and grants the invitation's role
// @Tags         invitations
// @Produce      json
// @Param        code path string true "Invitation code"
// @Success      200 {object} response.APIResponse{data=RedeemResult}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Failure      410 {object} response.APIResponse
// @Router       /invitations/{code}/redeem [post]
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	result, err := h.service.Redeem(r.Context(), chi.URLParam(r, "code"), userID)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// RedeemLink handles POST /invitations/redeem-link
// @Summary      Redeem an invitation deep link
// @Tags         invitations
// @Accept       json
// @Produce      json
// @Param        request body RedeemLinkRequest true "app://join/{code} link"
// @Success      200 {object} response.APIResponse{data=RedeemResult}
// @Router       /invitations/redeem-link [post]
func (h *Handler) RedeemLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req RedeemLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	result, err := h.service.RedeemLink(r.Context(), req.Link, userID)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}
