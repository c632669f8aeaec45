package invitation

import "time"

const (
	// Collection holds invitations keyed by code
	Collection = "invitations"
	// UsageCollection is the append-only redemption log
	UsageCollection = "invitation_usages"
)

// Type represents how many times an invitation may be used
type Type string

const (
	TypeSingle    Type = "single"
	TypeMulti     Type = "multi"
	TypeUnlimited Type = "unlimited"
)

// Unlimited is the MaxUses value of an invitation without a use limit
const Unlimited = -1

// Invitation is a redeemable token granting membership and optionally a role
type Invitation struct {
	Code        string    `json:"code"`
	CommunityID string    `json:"community_id"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	MaxUses     int       `json:"max_uses"`
	CurrentUses int       `json:"current_uses"`
	IsActive    bool      `json:"is_active"`
	// TargetRole is granted on redemption; empty means the default role
	TargetRole string `json:"target_role,omitempty"`
	Type       Type   `json:"type"`
}

// Expired reports whether the invitation is past its expiry at now
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Exhausted reports whether every use has been consumed
func (i *Invitation) Exhausted() bool {
	return i.MaxUses != Unlimited && i.CurrentUses >= i.MaxUses
}

// Usage records one redemption. Usages are never updated or removed.
type Usage struct {
	ID           string    `json:"id"`
	InvitationID string    `json:"invitation_id"`
	CommunityID  string    `json:"community_id"`
	UserID       string    `json:"user_id"`
	UsedAt       time.Time `json:"used_at"`
}
