// Package access feeds stored roles, channel overwrites and member standing
// into the permission resolver and turns the result into authorization checks.
package access

import (
	"context"

	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/member"
	"github.com/fkhayef/tourneyhub/internal/permission"
)

// RoleLookup returns the community's default role and the roles a user holds
type RoleLookup interface {
	RoleGrants(ctx context.Context, communityID, userID string) (permission.RoleGrant, []permission.RoleGrant, error)
}

// ChannelLookup returns a channel's parent id and overwrites
type ChannelLookup interface {
	ChannelOverwrites(ctx context.Context, communityID, channelID string) (string, []permission.Overwrite, error)
}

// MemberLookup returns a participant, nil when the user never joined
type MemberLookup interface {
	Get(ctx context.Context, communityID, userID string) (*member.Participant, int64, error)
}

// Muted members keep everything except speaking
var mutedStrip = permission.NewSet(permission.SendMessage, permission.VoiceSpeak, permission.Attach)

// Authorizer resolves permissions from the repository on every call
type Authorizer struct {
	roles    RoleLookup
	channels ChannelLookup
	members  MemberLookup
}

// NewAuthorizer creates a new authorizer
func NewAuthorizer(roles RoleLookup, channels ChannelLookup, members MemberLookup) *Authorizer {
	return &Authorizer{roles: roles, channels: channels, members: members}
}

// Resolve returns the user's effective permissions in the community, or in
// channelID when it is not empty. Users who never joined resolve to nothing.
func (a *Authorizer) Resolve(ctx context.Context, communityID, userID, channelID string) (permission.Set, error) {
	p, _, err := a.members.Get(ctx, communityID, userID)
	if err != nil {
		return 0, apperr.FromContext("resolve", err)
	}
	if p == nil {
		return 0, nil
	}

	def, held, err := a.roles.RoleGrants(ctx, communityID, userID)
	if err != nil {
		return 0, apperr.FromContext("resolve", err)
	}

	in := permission.Input{UserID: userID, DefaultRole: def, Roles: held}
	if channelID != "" {
		_, overwrites, err := a.channels.ChannelOverwrites(ctx, communityID, channelID)
		if err != nil {
			return 0, apperr.FromContext("resolve", err)
		}
		in.Overwrites = overwrites
	}

	set := permission.Resolve(in)
	if set.Has(permission.Administrator) {
		return set, nil
	}
	switch {
	case p.IsBanned():
		return 0, nil
	case p.IsMuted():
		return set.Without(mutedStrip), nil
	}
	return set, nil
}

// Require fails with Unauthorized unless the user holds every permission in perms
func (a *Authorizer) Require(ctx context.Context, communityID, userID, channelID string, perms ...permission.Permission) error {
	set, err := a.Resolve(ctx, communityID, userID, channelID)
	if err != nil {
		return err
	}
	need := permission.NewSet(perms...)
	if !set.HasAll(need) {
		return apperr.Unauthorized("authorize", "missing permission %v", need.Without(set).Strings())
	}
	return nil
}

// RequireAny fails with Unauthorized unless the user holds one of perms
func (a *Authorizer) RequireAny(ctx context.Context, communityID, userID, channelID string, perms permission.Set) error {
	set, err := a.Resolve(ctx, communityID, userID, channelID)
	if err != nil {
		return err
	}
	if !set.HasAny(perms) {
		return apperr.Unauthorized("authorize", "requires one of %v", perms.Strings())
	}
	return nil
}

// IsStaff reports whether the user holds any staff permission at community level
func (a *Authorizer) IsStaff(ctx context.Context, communityID, userID string) (bool, error) {
	set, err := a.Resolve(ctx, communityID, userID, "")
	if err != nil {
		return false, err
	}
	return set.HasAny(permission.Staff), nil
}

// RequireStaff fails with Unauthorized unless the user is staff
func (a *Authorizer) RequireStaff(ctx context.Context, communityID, userID string) error {
	return a.RequireAny(ctx, communityID, userID, "", permission.Staff)
}
