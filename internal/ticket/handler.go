package ticket

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/fkhayef/tourneyhub/pkg/middleware"
	"github.com/fkhayef/tourneyhub/pkg/response"
)

// Handler handles HTTP requests for ticket operations
type Handler struct {
	service *Service
}

// NewHandler creates a new ticket handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for ticket endpoints, mounted under a community
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{ticketID}", h.GetByID)
	r.Get("/{ticketID}/events", h.Watch)

	// Workflow
	r.Post("/{ticketID}/messages", h.AddMessage)
	r.Put("/{ticketID}/assignee", h.Assign)
	r.Put("/{ticketID}/status", h.SetStatus)

	return r
}

// Create handles POST /communities/{communityID}/tickets
// @Summary      Open a support ticket
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        request body CreateTicketRequest true "Ticket creation request"
// @Success      201 {object} response.APIResponse{data=TicketResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Router       /communities/{communityID}/tickets [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	t, err := h.service.Create(r.Context(), chi.URLParam(r, "communityID"), userID, &req)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, t.ToResponse())
}

// List handles GET /communities/{communityID}/tickets
// @Summary      List tickets
// @Description  Staff see every ticket, members only their own
// @Tags         tickets
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        status query string false "Filter by status"
// @Success      200 {object} response.APIResponse{data=[]TicketResponse}
// @Router       /communities/{communityID}/tickets [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	tickets, err := h.service.List(r.Context(), chi.URLParam(r, "communityID"), userID, Status(r.URL.Query().Get("status")))
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, lo.Map(tickets, func(t *Ticket, _ int) *TicketResponse { return t.ToSummary() }))
}

// GetByID handles GET /communities/{communityID}/tickets/{ticketID}
// @Summary      Get a ticket with its thread
// @Tags         tickets
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        ticketID path string true "Ticket ID"
// @Success      200 {object} response.APIResponse{data=TicketResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /communities/{communityID}/tickets/{ticketID} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	t, err := h.service.Get(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "ticketID"), userID)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, t.ToResponse())
}

// Watch handles GET /communities/{communityID}/tickets/{ticketID}/events
// @Summary      Stream ticket updates
// @Description  Server-sent events, one "ticket" event per committed change
// @Tags         tickets
// @Produce      text/event-stream
// @Param        communityID path string true "Community ID"
// @Param        ticketID path string true "Ticket ID"
// @Success      200
// @Router       /communities/{communityID}/tickets/{ticketID}/events [get]
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalError(w, "Streaming unsupported")
		return
	}

	updates, err := h.service.Watch(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "ticketID"), userID)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for t := range updates {
		payload, err := json.Marshal(t.ToResponse())
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "event: ticket\ndata: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}

// AddMessage handles POST /communities/{communityID}/tickets/{ticketID}/messages
// @Summary      Reply on a ticket
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        ticketID path string true "Ticket ID"
// @Param        request body AddMessageRequest true "Reply"
// @Success      200 {object} response.APIResponse{data=TicketResponse}
// @Failure      409 {object} response.APIResponse
// @Router       /communities/{communityID}/tickets/{ticketID}/messages [post]
func (h *Handler) AddMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req AddMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	t, err := h.service.AddMessage(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "ticketID"), userID, &req)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, t.ToResponse())
}

// Assign handles PUT /communities/{communityID}/tickets/{ticketID}/assignee
// @Summary      Assign a ticket to staff
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        ticketID path string true "Ticket ID"
// @Param        request body AssignRequest true "Assignee"
// @Success      200 {object} response.APIResponse{data=TicketResponse}
// @Router       /communities/{communityID}/tickets/{ticketID}/assignee [put]
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	t, err := h.service.Assign(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "ticketID"), userID, &req)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, t.ToResponse())
}

// SetStatus handles PUT /communities/{communityID}/tickets/{ticketID}/status
// @Summary      Change a ticket's status
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        communityID path string true "Community ID"
// @Param        ticketID path string true "Ticket ID"
// @Param        request body SetStatusRequest true "New status"
// @Success      200 {object} response.APIResponse{data=TicketResponse}
// @Failure      409 {object} response.APIResponse
// @Router       /communities/{communityID}/tickets/{ticketID}/status [put]
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	t, err := h.service.SetStatus(r.Context(), chi.URLParam(r, "communityID"), chi.URLParam(r, "ticketID"), userID, &req)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, t.ToResponse())
}
