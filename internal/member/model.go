package member

import (
	"time"

	"github.com/fkhayef/tourneyhub/internal/store"
)

// Collection holds participants keyed by community and user
const Collection = "participants"

// Status is a participant's moderation standing
type Status string

const (
	StatusActive Status = "active"
	StatusBanned Status = "banned"
	StatusWarned Status = "warned"
	StatusMuted  Status = "muted"
)

// Participant is a user's membership record in one community
type Participant struct {
	CommunityID string `json:"community_id"`
	UserID      string `json:"user_id"`
	Status      Status `json:"status"`
	Warnings    int    `json:"warnings"`
	// Role is the role the participant joined with or was last moved to
	Role              string     `json:"role,omitempty"`
	SanctionExpiresAt *time.Time `json:"sanction_expires_at,omitempty"`
	JoinedAt          time.Time  `json:"joined_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsBanned reports whether the participant is banned
func (p *Participant) IsBanned() bool { return p != nil && p.Status == StatusBanned }

// IsMuted reports whether the participant is muted
func (p *Participant) IsMuted() bool { return p != nil && p.Status == StatusMuted }

// SanctionExpired reports whether a timed ban or mute ended before now
func (p *Participant) SanctionExpired(now time.Time) bool {
	if p == nil || p.SanctionExpiresAt == nil {
		return false
	}
	return (p.IsBanned() || p.IsMuted()) && !p.SanctionExpiresAt.After(now)
}

// ID is the document id of a participant
func ID(communityID, userID string) string {
	return store.Key(communityID, userID)
}
