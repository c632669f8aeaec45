// Package permission holds the permission vocabulary and the pure
// resolver that layers role permissions and channel overwrites.
package permission

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"sort"
)

// Permission is a single capability a role or overwrite can grant
type Permission uint8

const (
	View Permission = iota
	SendMessage
	ManageMessage
	Embed
	Attach
	ReadHistory
	MentionEveryone
	ManageChannels
	Kick
	Ban
	ManageRoles
	ManageTournament
	ViewAuditLog
	VoiceConnect
	VoiceSpeak
	MuteMembers
	DeafenMembers
	MoveMembers
	Administrator

	count
)

var names = [count]string{
	View:             "view",
	SendMessage:      "send-message",
	ManageMessage:    "manage-message",
	Embed:            "embed",
	Attach:           "attach",
	ReadHistory:      "read-history",
	MentionEveryone:  "mention-everyone",
	ManageChannels:   "manage-channels",
	Kick:             "kick",
	Ban:              "ban",
	ManageRoles:      "manage-roles",
	ManageTournament: "manage-tournament",
	ViewAuditLog:     "view-audit-log",
	VoiceConnect:     "voice-connect",
	VoiceSpeak:       "voice-speak",
	MuteMembers:      "mute-members",
	DeafenMembers:    "deafen-members",
	MoveMembers:      "move-members",
	Administrator:    "administrator",
}

var aliases = map[string]Permission{
	"kick-users": Kick,
	"ban-users":  Ban,
}

func (p Permission) String() string {
	if p >= count {
		return fmt.Sprintf("permission(%d)", uint8(p))
	}
	return names[p]
}

// Parse maps a permission name (or one of its aliases) to a Permission
func Parse(name string) (Permission, error) {
	for i, n := range names {
		if n == name {
			return Permission(i), nil
		}
	}
	if p, ok := aliases[name]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("unknown permission %q", name)
}

// Set is a bitfield of permissions
type Set uint64

// NewSet builds a set from individual permissions
func NewSet(perms ...Permission) Set {
	var s Set
	for _, p := range perms {
		s = s.Add(p)
	}
	return s
}

// All returns every permission in the vocabulary
func All() Set {
	return Set(1<<uint(count) - 1)
}

// Staff is the set of permissions that make a member staff for tickets and warnings
var Staff = NewSet(ManageMessage, Kick, Ban, MuteMembers, ManageTournament)

func (s Set) Has(p Permission) bool { return s&(1<<uint(p)) != 0 }

func (s Set) Add(p Permission) Set { return s | 1<<uint(p) }

func (s Set) Remove(p Permission) Set { return s &^ (1 << uint(p)) }

func (s Set) Union(o Set) Set { return s | o }

func (s Set) Intersect(o Set) Set { return s & o }

func (s Set) Without(o Set) Set { return s &^ o }

// HasAll reports whether every permission in o is in s
func (s Set) HasAll(o Set) bool { return s&o == o }

// HasAny reports whether s and o share a permission
func (s Set) HasAny(o Set) bool { return s&o != 0 }

func (s Set) IsEmpty() bool { return s == 0 }

func (s Set) Len() int { return bits.OnesCount64(uint64(s & All())) }

// List returns the permissions in s in declaration order
func (s Set) List() []Permission {
	out := make([]Permission, 0, s.Len())
	for p := Permission(0); p < count; p++ {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// Strings returns the sorted permission names in s
func (s Set) Strings() []string {
	list := s.List()
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.String()
	}
	sort.Strings(out)
	return out
}

// ParseSet parses a list of permission names
func ParseSet(names []string) (Set, error) {
	var s Set
	for _, n := range names {
		p, err := Parse(n)
		if err != nil {
			return 0, err
		}
		s = s.Add(p)
	}
	return s, nil
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	parsed, err := ParseSet(list)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
