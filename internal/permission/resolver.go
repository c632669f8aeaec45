package permission

import "sort"

// SubjectType identifies what an overwrite applies to
type SubjectType string

const (
	SubjectRole SubjectType = "role"
	SubjectUser SubjectType = "user"
)

// Overwrite is a channel-scoped allow/deny delta for one role or user
type Overwrite struct {
	SubjectID   string      `json:"subject_id"`
	SubjectType SubjectType `json:"subject_type"`
	Allow       Set         `json:"allow"`
	Deny        Set         `json:"deny"`
}

// Overlaps reports whether the overwrite both allows and denies a permission
func (o Overwrite) Overlaps() bool {
	return o.Allow.HasAny(o.Deny)
}

// apply runs deny then allow, so a malformed overlapping overwrite resolves to allow.
func (o Overwrite) apply(s Set) Set {
	return s.Without(o.Deny).Union(o.Allow)
}

// RoleGrant is the slice of a role the resolver needs
type RoleGrant struct {
	ID          string
	Position    int
	Permissions Set
}

// Input is everything needed to resolve one user's permissions
type Input struct {
	UserID      string
	DefaultRole RoleGrant
	// Roles held explicitly, the default role need not be repeated.
	Roles []RoleGrant
	// Overwrites of the target channel in stored order; nil resolves at community level.
	Overwrites []Overwrite
}

// Resolve computes the effective permission set.
//
// Role permissions are unioned (the default role always included). Any
// administrator role returns All. Otherwise role overwrites of held roles
// apply in ascending role position, then user overwrites for UserID, each
// later write replacing the effect of earlier ones per permission.
func Resolve(in Input) Set {
	held := make(map[string]int, len(in.Roles)+1)
	held[in.DefaultRole.ID] = in.DefaultRole.Position

	base := in.DefaultRole.Permissions
	for _, r := range in.Roles {
		base = base.Union(r.Permissions)
		held[r.ID] = r.Position
	}
	if base.Has(Administrator) {
		return All()
	}
	if len(in.Overwrites) == 0 {
		return base
	}

	type ranked struct {
		position int
		ow       Overwrite
	}
	var roleOws []ranked
	var userOws []Overwrite
	for _, ow := range in.Overwrites {
		switch ow.SubjectType {
		case SubjectRole:
			if pos, ok := held[ow.SubjectID]; ok {
				roleOws = append(roleOws, ranked{position: pos, ow: ow})
			}
		case SubjectUser:
			if ow.SubjectID == in.UserID {
				userOws = append(userOws, ow)
			}
		}
	}
	sort.SliceStable(roleOws, func(i, j int) bool {
		return roleOws[i].position < roleOws[j].position
	})

	effective := base
	for _, r := range roleOws {
		effective = r.ow.apply(effective)
	}
	for _, ow := range userOws {
		effective = ow.apply(effective)
	}
	return effective
}
