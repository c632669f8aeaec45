package role

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/store"
)

// Collection holds roles keyed by community and role id
const Collection = "roles"

// UserSet is a set of user ids, encoded as a sorted JSON list
type UserSet map[string]struct{}

// NewUserSet builds a set from ids
func NewUserSet(ids ...string) UserSet {
	s := make(UserSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s UserSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the ids in sorted order
func (s UserSet) Slice() []string {
	out := lo.Keys(s)
	sort.Strings(out)
	return out
}

func (s UserSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

func (s *UserSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewUserSet(ids...)
	return nil
}

// Role is a named permission bundle in a community
type Role struct {
	ID          string         `json:"id"`
	CommunityID string         `json:"community_id"`
	Name        string         `json:"name"`
	Color       string         `json:"color,omitempty"`
	Permissions permission.Set `json:"permissions"`
	Position    int            `json:"position"`
	Mentionable bool           `json:"mentionable"`
	// IsDefault marks the role every member holds implicitly
	IsDefault     bool      `json:"is_default"`
	AssignedUsers UserSet   `json:"assigned_users"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Grant returns the part of the role the permission resolver reads
func (r *Role) Grant() permission.RoleGrant {
	return permission.RoleGrant{ID: r.ID, Position: r.Position, Permissions: r.Permissions}
}

// Assign adds userID to the role, reporting whether it changed
func (r *Role) Assign(userID string) bool {
	if r.AssignedUsers == nil {
		r.AssignedUsers = UserSet{}
	}
	if r.AssignedUsers.Has(userID) {
		return false
	}
	r.AssignedUsers[userID] = struct{}{}
	return true
}

// Unassign removes userID from the role, reporting whether it changed
func (r *Role) Unassign(userID string) bool {
	if !r.AssignedUsers.Has(userID) {
		return false
	}
	delete(r.AssignedUsers, userID)
	return true
}

// ID is the document id of a role
func ID(communityID, roleID string) string {
	return store.Key(communityID, roleID)
}
