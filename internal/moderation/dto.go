package moderation

import "github.com/fkhayef/tourneyhub/internal/member"

// ActionInput represents a moderation request
type ActionInput struct {
	Type         ActionType `json:"type"`
	TargetUserID string     `json:"target_user_id"`
	Reason       string     `json:"reason"`
	// DurationMinutes makes a ban or mute expire
	DurationMinutes *int `json:"duration_minutes,omitempty"`
	// NewRole is the role a role_change moves the target to
	NewRole string `json:"new_role,omitempty"`
}

// ActionResponse represents the response for an audit record
type ActionResponse struct {
	ID              string        `json:"id"`
	CommunityID     string        `json:"community_id"`
	Type            ActionType    `json:"type"`
	TargetUserID    string        `json:"target_user_id"`
	ModeratorID     string        `json:"moderator_id"`
	Reason          string        `json:"reason"`
	Timestamp       string        `json:"timestamp"`
	DurationMinutes *int          `json:"duration_minutes,omitempty"`
	PreviousStatus  member.Status `json:"previous_status,omitempty"`
	PreviousRole    string        `json:"previous_role,omitempty"`
	NewRole         string        `json:"new_role,omitempty"`
}

// ToResponse converts an Action model to an ActionResponse DTO
func (a *Action) ToResponse() *ActionResponse {
	return &ActionResponse{
		ID:              a.ID,
		CommunityID:     a.CommunityID,
		Type:            a.Type,
		TargetUserID:    a.TargetUserID,
		ModeratorID:     a.ModeratorID,
		Reason:          a.Reason,
		Timestamp:       a.Timestamp.Format("2006-01-02T15:04:05Z"),
		DurationMinutes: a.DurationMinutes,
		PreviousStatus:  a.Details.PreviousStatus,
		PreviousRole:    a.Details.PreviousRole,
		NewRole:         a.Details.NewRole,
	}
}
