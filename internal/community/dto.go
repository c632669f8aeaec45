package community

import "github.com/fkhayef/tourneyhub/internal/member"

// CreateCommunityRequest represents the request to create a community
type CreateCommunityRequest struct {
	Name string `json:"name"`
}

// CommunityResponse represents the response for a community
type CommunityResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	OwnerID       string `json:"owner_id"`
	DefaultRoleID string `json:"default_role_id"`
	CreatedAt     string `json:"created_at"`
}

// ParticipantResponse represents a member of a community
type ParticipantResponse struct {
	UserID            string        `json:"user_id"`
	Status            member.Status `json:"status"`
	Warnings          int           `json:"warnings"`
	Role              string        `json:"role,omitempty"`
	SanctionExpiresAt string        `json:"sanction_expires_at,omitempty"`
	JoinedAt          string        `json:"joined_at"`
}

// PermissionsResponse is a user's effective permission set
type PermissionsResponse struct {
	UserID      string   `json:"user_id"`
	ChannelID   string   `json:"channel_id,omitempty"`
	Permissions []string `json:"permissions"`
}

// ToResponse converts a Community model to a CommunityResponse DTO
func (c *Community) ToResponse() *CommunityResponse {
	return &CommunityResponse{
		ID:            c.ID,
		Name:          c.Name,
		OwnerID:       c.OwnerID,
		DefaultRoleID: c.DefaultRoleID,
		CreatedAt:     c.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ToParticipantResponse converts a participant to its response DTO
func ToParticipantResponse(p *member.Participant) *ParticipantResponse {
	resp := &ParticipantResponse{
		UserID:   p.UserID,
		Status:   p.Status,
		Warnings: p.Warnings,
		Role:     p.Role,
		JoinedAt: p.JoinedAt.Format("2006-01-02T15:04:05Z"),
	}
	if p.SanctionExpiresAt != nil {
		resp.SanctionExpiresAt = p.SanctionExpiresAt.Format("2006-01-02T15:04:05Z")
	}
	return resp
}
