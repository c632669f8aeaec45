package community

import (
	"time"

	"github.com/fkhayef/tourneyhub/internal/permission"
)

// Collection holds communities keyed by id
const Collection = "communities"

// Community represents a tournament community
type Community struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	OwnerID       string    `json:"owner_id"`
	DefaultRoleID string    `json:"default_role_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// DefaultMemberPermissions is what every member gets through the default role
var DefaultMemberPermissions = permission.NewSet(
	permission.View,
	permission.SendMessage,
	permission.ReadHistory,
	permission.Embed,
	permission.Attach,
	permission.VoiceConnect,
	permission.VoiceSpeak,
)

const (
	defaultRoleName   = "@everyone"
	organizerRoleName = "Organizer"
)
