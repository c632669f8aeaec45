package channel

import (
	"time"

	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/store"
)

// Collection holds channels keyed by community and channel id
const Collection = "channels"

// Type represents the kind of channel
type Type string

const (
	TypeText         Type = "text"
	TypeVoice        Type = "voice"
	TypeAnnouncement Type = "announcement"
	TypeRules        Type = "rules"
	TypeGeneral      Type = "general"
)

// Valid reports whether t is a known channel type
func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeVoice, TypeAnnouncement, TypeRules, TypeGeneral:
		return true
	}
	return false
}

// Channel represents a community channel and its permission overwrites
type Channel struct {
	ID          string `json:"id"`
	CommunityID string `json:"community_id"`
	Name        string `json:"name"`
	Type        Type   `json:"type"`
	Position    int    `json:"position"`
	ParentID    string `json:"parent_id,omitempty"`
	// Overwrites in stored order, at most one per subject with later writes folded in
	Overwrites  []permission.Overwrite `json:"overwrites"`
	AutoCreated bool                   `json:"auto_created"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// SetOverwrite folds ow into the overwrite for its subject, or appends it.
// Permissions ow names take its value; permissions it leaves out keep theirs.
func (c *Channel) SetOverwrite(ow permission.Overwrite) {
	for i, existing := range c.Overwrites {
		if existing.SubjectType == ow.SubjectType && existing.SubjectID == ow.SubjectID {
			c.Overwrites[i].Deny = ow.Deny.Union(existing.Deny.Without(ow.Allow))
			c.Overwrites[i].Allow = ow.Allow.Union(existing.Allow.Without(ow.Deny))
			return
		}
	}
	c.Overwrites = append(c.Overwrites, ow)
}

// RemoveOverwrite drops the overwrite for a subject, reporting whether one existed
func (c *Channel) RemoveOverwrite(subjectType permission.SubjectType, subjectID string) bool {
	for i, existing := range c.Overwrites {
		if existing.SubjectType == subjectType && existing.SubjectID == subjectID {
			c.Overwrites = append(c.Overwrites[:i], c.Overwrites[i+1:]...)
			return true
		}
	}
	return false
}

// ID is the document id of a channel
func ID(communityID, channelID string) string {
	return store.Key(communityID, channelID)
}
