package ticket

import "github.com/samber/lo"

// CreateTicketRequest represents the request to open a ticket
type CreateTicketRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Priority    Priority `json:"priority"`
}

// AddMessageRequest represents a reply on a ticket
type AddMessageRequest struct {
	Content string `json:"content"`
}

// AssignRequest names the staff member taking a ticket
type AssignRequest struct {
	UserID string `json:"user_id"`
}

// SetStatusRequest represents a status change
type SetStatusRequest struct {
	Status Status `json:"status"`
}

// MessageResponse represents one ticket message
type MessageResponse struct {
	ID        string `json:"id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	IsStaff   bool   `json:"is_staff"`
}

// TicketResponse represents the response for a ticket
type TicketResponse struct {
	ID          string             `json:"id"`
	CommunityID string             `json:"community_id"`
	CreatedBy   string             `json:"created_by"`
	Category    string             `json:"category"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Status      Status             `json:"status"`
	Priority    Priority           `json:"priority"`
	AssignedTo  string             `json:"assigned_to,omitempty"`
	Messages    []*MessageResponse `json:"messages,omitempty"`
	CreatedAt   string             `json:"created_at"`
	UpdatedAt   string             `json:"updated_at"`
	ClosedAt    *string            `json:"closed_at,omitempty"`
}

const timeFormat = "2006-01-02T15:04:05Z"

// ToResponse converts a Ticket model to a TicketResponse DTO
func (t *Ticket) ToResponse() *TicketResponse {
	resp := &TicketResponse{
		ID:          t.ID,
		CommunityID: t.CommunityID,
		CreatedBy:   t.CreatedBy,
		Category:    t.Category,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		AssignedTo:  t.AssignedTo,
		Messages: lo.Map(t.Messages, func(m Message, _ int) *MessageResponse {
			return &MessageResponse{
				ID:        m.ID,
				AuthorID:  m.AuthorID,
				Content:   m.Content,
				CreatedAt: m.CreatedAt.Format(timeFormat),
				IsStaff:   m.IsStaff,
			}
		}),
		CreatedAt: t.CreatedAt.Format(timeFormat),
		UpdatedAt: t.UpdatedAt.Format(timeFormat),
	}
	if t.ClosedAt != nil {
		resp.ClosedAt = lo.ToPtr(t.ClosedAt.Format(timeFormat))
	}
	return resp
}

// ToSummary converts a Ticket to a TicketResponse without its thread
func (t *Ticket) ToSummary() *TicketResponse {
	resp := t.ToResponse()
	resp.Messages = nil
	return resp
}
