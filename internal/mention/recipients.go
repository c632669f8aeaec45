// Package mention turns symbolic mentions into concrete recipient lists.
package mention

import (
	"sort"

	"github.com/samber/lo"

	"github.com/fkhayef/tourneyhub/internal/role"
)

// Mentions is the symbolic audience of a message
type Mentions struct {
	Everyone bool     `json:"everyone"`
	Here     bool     `json:"here"`
	Roles    []string `json:"roles,omitempty"`
	Users    []string `json:"users,omitempty"`
}

// IsEmpty reports whether m mentions nobody
func (m Mentions) IsEmpty() bool {
	return !m.Everyone && !m.Here && len(m.Roles) == 0 && len(m.Users) == 0
}

// ResolveRecipients expands m against the community roster. Everyone is all
// members, here is the members that are online, a role is its assigned users
// (all members for the default role) and users pass through. The result is
// the sorted union. Roles missing from roles are ignored.
func ResolveRecipients(m Mentions, members, online []string, roles map[string]*role.Role) []string {
	var out []string
	if m.Everyone {
		out = append(out, members...)
	}
	if m.Here {
		out = append(out, lo.Intersect(members, online)...)
	}
	for _, id := range m.Roles {
		r, ok := roles[id]
		if !ok {
			continue
		}
		if r.IsDefault {
			out = append(out, members...)
			continue
		}
		out = append(out, r.AssignedUsers.Slice()...)
	}
	out = append(out, m.Users...)

	out = lo.Uniq(lo.Compact(out))
	sort.Strings(out)
	return out
}
