package notification

import (
	"time"

	"github.com/fkhayef/tourneyhub/internal/store"
)

// Collection holds notifications keyed by recipient
const Collection = "notifications"

// Notification represents a notification in a user's inbox
type Notification struct {
	ID                string    `json:"id"`
	RecipientID       string    `json:"recipient_id"`
	CommunityID       string    `json:"community_id"`
	Type              Type      `json:"type"`
	Message           string    `json:"message"`
	IsRead            bool      `json:"is_read"`
	RelatedEntityType string    `json:"related_entity_type,omitempty"` // e.g., "CHANNEL", "MODERATION_ACTION"
	RelatedEntityID   string    `json:"related_entity_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Type represents the type of notification
type Type string

const (
	TypeMention    Type = "MENTION"
	TypeModeration Type = "MODERATION"
)

// ID is the document id of a notification
func ID(recipientID, notificationID string) string {
	return store.Key(recipientID, notificationID)
}
