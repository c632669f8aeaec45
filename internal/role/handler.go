package role

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/fkhayef/tourneyhub/pkg/middleware"
	"github.com/fkhayef/tourneyhub/pkg/response"
)

// Handler handles HTTP requests for role operations
type Handler struct {
	service *Service
}

// NewHandler creates a new role handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for role endpoints, mounted under a community
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{roleID}", h.GetByID)
	r.Patch("/{roleID}", h.Update)
	r.Put("/{roleID}/permissions", h.SetPermissions)
	r.Delete("/{roleID}", h.Delete)

	// Assignment
	r.Post("/{roleID}/members", h.Assign)
	r.Delete("/{roleID}/members/{userID}", h.Unassign)

	return r
}

// Create handles POST /communities/{communityID}/roles
// @Summary      Create a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        request body CreateRoleRequest true "Role creation request"
// @Success      201 {object} response.APIResponse{data=RoleResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Router       /communities/{communityID}/roles [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	role, err := h.service.Create(r.Context(), chi.URLParam(r, "communityID"), actor, &req)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, role.ToResponse())
}

// List handles GET /communities/{communityID}/roles
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Success      200 {object} response.APIResponse{data=[]RoleResponse}
// @Router       /communities/{communityID}/roles [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	roles, err := h.service.List(r.Context(), chi.URLParam(r, "communityID"), actor)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, lo.Map(roles, func(role *Role, _ int) *RoleResponse { return role.ToResponse() }))
}

// GetByID handles GET /communities/{communityID}/roles/{roleID}
// @Summary      Get a role
// @Tags         roles
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        roleID path string true "Role ID"
// @Success      200 {object} response.APIResponse{data=RoleResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /communities/{communityID}/roles/{roleID} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	role, err := h.service.Get(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "roleID"), actor)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, role.ToResponse())
}

// Update handles PATCH /communities/{communityID}/roles/{roleID}
// @Summary      Update a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        roleID path string true "Role ID"
// @Param        request body UpdateRoleRequest true "Fields to change"
// @Success      200 {object} response.APIResponse{data=RoleResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /communities/{communityID}/roles/{roleID} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	role, err := h.service.Update(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "roleID"), actor, &req)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, role.ToResponse())
}

// SetPermissions handles PUT /communities/{communityID}/roles/{roleID}/permissions
// @Summary      Replace a role's permissions
// @Tags         roles
// @Accept       json
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        roleID path string true "Role ID"
// @Param        request body SetPermissionsRequest true "Permission names"
// @Success      200 {object} response.APIResponse{data=RoleResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /communities/{communityID}/roles/{roleID}/permissions [put]
func (h *Handler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req SetPermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	role, err := h.service.SetPermissions(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "roleID"), actor, req.Permissions)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, role.ToResponse())
}

// Delete handles DELETE /communities/{communityID}/roles/{roleID}
// @Summary      Delete a role
// @Tags         roles
// @Param        communityID path string true "Community ID"
// @Param        roleID path string true "Role ID"
// @Success      204
// @Failure      400 {object} response.APIResponse
// @Router       /communities/{communityID}/roles/{roleID} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "roleID"), actor); err != nil {
		response.Err(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Assign handles POST /communities/{communityID}/roles/{roleID}/members
// @Summary      Assign a role to a member
// @Tags         roles
// @Accept       json
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        roleID path string true "Role ID"
// @Param        request body AssignRequest true "Member to assign"
// @Success      200 {object} response.APIResponse{data=RoleResponse}
// @Router       /communities/{communityID}/roles/{roleID}/members [post]
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		response.BadRequest(w, "Invalid request body")
		return
	}

	role, err := h.service.Assign(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "roleID"), actor, req.UserID)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, role.ToResponse())
}

// Unassign handles DELETE /communities/{communityID}/roles/{roleID}/members/{userID}
// @Summary      Remove a role from a member
// @Tags         roles
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        roleID path string true "Role ID"
// @Param        userID path string true "User ID"
// @Success      200 {object} response.APIResponse{data=RoleResponse}
// @Router       /communities/{communityID}/roles/{roleID}/members/{userID} [delete]
func (h *Handler) Unassign(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	role, err := h.service.Unassign(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "roleID"), actor, chi.URLParam(r, "userID"))
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, role.ToResponse())
}
