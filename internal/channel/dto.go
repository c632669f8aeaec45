package channel

import "github.com/fkhayef/tourneyhub/internal/permission"

// CreateChannelRequest represents the request to create a channel
type CreateChannelRequest struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Position int    `json:"position"`
	ParentID string `json:"parent_id,omitempty"`
}

// SetOverwriteRequest sets the overwrite for one subject on a channel
type SetOverwriteRequest struct {
	SubjectID   string                 `json:"subject_id"`
	SubjectType permission.SubjectType `json:"subject_type"`
	Allow       permission.Set         `json:"allow"`
	Deny        permission.Set         `json:"deny"`
}

// OverwriteResponse represents one overwrite in a response
type OverwriteResponse struct {
	SubjectID   string   `json:"subject_id"`
	SubjectType string   `json:"subject_type"`
	Allow       []string `json:"allow"`
	Deny        []string `json:"deny"`
}

// ChannelResponse represents the response for a channel
type ChannelResponse struct {
	ID          string               `json:"id"`
	CommunityID string               `json:"community_id"`
	Name        string               `json:"name"`
	Type        Type                 `json:"type"`
	Position    int                  `json:"position"`
	ParentID    string               `json:"parent_id,omitempty"`
	Overwrites  []*OverwriteResponse `json:"overwrites"`
	AutoCreated bool                 `json:"auto_created"`
}

// ToOverwriteResponses converts overwrites to their response DTOs
func ToOverwriteResponses(ows []permission.Overwrite) []*OverwriteResponse {
	out := make([]*OverwriteResponse, len(ows))
	for i, ow := range ows {
		out[i] = &OverwriteResponse{
			SubjectID:   ow.SubjectID,
			SubjectType: string(ow.SubjectType),
			Allow:       ow.Allow.Strings(),
			Deny:        ow.Deny.Strings(),
		}
	}
	return out
}

// ToResponse converts a Channel model to a ChannelResponse DTO
func (c *Channel) ToResponse() *ChannelResponse {
	return &ChannelResponse{
		ID:          c.ID,
		CommunityID: c.CommunityID,
		Name:        c.Name,
		Type:        c.Type,
		Position:    c.Position,
		ParentID:    c.ParentID,
		Overwrites:  ToOverwriteResponses(c.Overwrites),
		AutoCreated: c.AutoCreated,
	}
}
