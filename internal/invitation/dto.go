package invitation

// CreateInvitationRequest represents the request to create an invitation
type CreateInvitationRequest struct {
	Type Type `json:"type"`
	// MaxUses is only read for multi-use invitations
	MaxUses int `json:"max_uses,omitempty"`
	// TTLMinutes defaults to seven days
	TTLMinutes int    `json:"ttl_minutes,omitempty"`
	TargetRole string `json:"target_role,omitempty"`
}

// RedeemLinkRequest carries a join deep link
type RedeemLinkRequest struct {
	Link string `json:"link"`
}

// RedeemResult is returned by a successful redemption
type RedeemResult struct {
	CommunityID string `json:"community_id"`
	GrantedRole string `json:"granted_role"`
	// AlreadyMember is set when the redemption changed nothing
	AlreadyMember bool `json:"already_member"`
}

// InvitationResponse represents the response for an invitation
type InvitationResponse struct {
	Code        string `json:"code"`
	Link        string `json:"link"`
	CommunityID string `json:"community_id"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at"`
	MaxUses     int    `json:"max_uses"`
	CurrentUses int    `json:"current_uses"`
	IsActive    bool   `json:"is_active"`
	TargetRole  string `json:"target_role,omitempty"`
	Type        Type   `json:"type"`
}

// UsageResponse represents one redemption
type UsageResponse struct {
	UserID string `json:"user_id"`
	UsedAt string `json:"used_at"`
}

// ToResponse converts an Invitation model to an InvitationResponse DTO
func (i *Invitation) ToResponse() *InvitationResponse {
	return &InvitationResponse{
		Code:        i.Code,
		Link:        DeepLink(i.Code),
		CommunityID: i.CommunityID,
		CreatedBy:   i.CreatedBy,
		CreatedAt:   i.CreatedAt.Format("2006-01-02T15:04:05Z"),
		ExpiresAt:   i.ExpiresAt.Format("2006-01-02T15:04:05Z"),
		MaxUses:     i.MaxUses,
		CurrentUses: i.CurrentUses,
		IsActive:    i.IsActive,
		TargetRole:  i.TargetRole,
		Type:        i.Type,
	}
}

// ToResponse converts a Usage model to a UsageResponse DTO
func (u *Usage) ToResponse() *UsageResponse {
	return &UsageResponse{UserID: u.UserID, UsedAt: u.UsedAt.Format("2006-01-02T15:04:05Z")}
}
