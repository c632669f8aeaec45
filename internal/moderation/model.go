package moderation

import (
	"time"

	"github.com/fkhayef/tourneyhub/internal/member"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/store"
)

// Collection is the append-only audit log of moderation actions
const Collection = "moderation_actions"

// SystemModerator is the moderator id of actions taken by the sanction sweeper
const SystemModerator = "system"

// ActionType represents the type of a moderation action
type ActionType string

const (
	ActionBan        ActionType = "ban"
	ActionUnban      ActionType = "unban"
	ActionWarn       ActionType = "warn"
	ActionMute       ActionType = "mute"
	ActionUnmute     ActionType = "unmute"
	ActionKick       ActionType = "kick"
	ActionRoleChange ActionType = "role_change"
)

// required maps each action type to the permissions allowing it. Warn takes
// any staff permission.
var required = map[ActionType]permission.Set{
	ActionBan:        permission.NewSet(permission.Ban),
	ActionUnban:      permission.NewSet(permission.Ban),
	ActionMute:       permission.NewSet(permission.MuteMembers),
	ActionUnmute:     permission.NewSet(permission.MuteMembers),
	ActionKick:       permission.NewSet(permission.Kick),
	ActionWarn:       permission.Staff,
	ActionRoleChange: permission.NewSet(permission.ManageRoles),
}

// Valid reports whether t is a known action type
func (t ActionType) Valid() bool {
	_, ok := required[t]
	return ok
}

// Timed reports whether the action may carry a duration
func (t ActionType) Timed() bool {
	return t == ActionBan || t == ActionMute
}

// Action is an audit record of one moderation action. Actions are written
// once, together with their effect, and never changed.
type Action struct {
	ID              string     `json:"id"`
	CommunityID     string     `json:"community_id"`
	Type            ActionType `json:"type"`
	TargetUserID    string     `json:"target_user_id"`
	ModeratorID     string     `json:"moderator_id"`
	Reason          string     `json:"reason"`
	Timestamp       time.Time  `json:"timestamp"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Details         Details    `json:"details"`
}

// Details snapshots the target's standing before the action
type Details struct {
	// PreviousStatus is empty when the target was not a participant
	PreviousStatus   member.Status `json:"previous_status,omitempty"`
	PreviousRole     string        `json:"previous_role,omitempty"`
	PreviousWarnings int           `json:"previous_warnings"`
	NewRole          string        `json:"new_role,omitempty"`
}

// ID is the document id of an action
func ID(communityID, actionID string) string {
	return store.Key(communityID, actionID)
}
