// Package testenv builds a community on an in-memory store for service tests.
package testenv

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tourneyhub/internal/access"
	"github.com/fkhayef/tourneyhub/internal/channel"
	"github.com/fkhayef/tourneyhub/internal/community"
	"github.com/fkhayef/tourneyhub/internal/member"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/role"
	"github.com/fkhayef/tourneyhub/internal/store"
)

const (
	Owner   = "owner"
	Timeout = 5 * time.Second
)

// Env is a freshly created community and the repositories behind it
type Env struct {
	Log         *slog.Logger
	Store       *store.Memory
	Roles       *role.Repository
	Channels    *channel.Repository
	Members     *member.Repository
	Authz       *access.Authorizer
	Communities *community.Service
	Community   *community.Community
}

// New creates a community owned by Owner
func New(t *testing.T) *Env {
	t.Helper()
	s := store.NewMemory()
	e := &Env{
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:    s,
		Roles:    role.NewRepository(s),
		Channels: channel.NewRepository(s),
		Members:  member.NewRepository(s),
	}
	e.Authz = access.NewAuthorizer(e.Roles, e.Channels, e.Members)
	e.Communities = community.NewService(e.Log, s, e.Roles, e.Channels, e.Members, e.Authz, community.Config{Timeout: Timeout})

	c, err := e.Communities.Create(context.Background(), Owner, &community.CreateCommunityRequest{Name: "Spring Cup"})
	require.NoError(t, err)
	e.Community = c
	return e
}

// ID is the community id
func (e *Env) ID() string { return e.Community.ID }

// AddMember joins userID as an active participant. With perms it also
// creates a role granting them, assigned to the user, and returns its id.
func (e *Env) AddMember(t *testing.T, userID string, perms ...permission.Permission) string {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	p := &member.Participant{
		CommunityID: e.ID(),
		UserID:      userID,
		Status:      member.StatusActive,
		JoinedAt:    now,
		UpdatedAt:   now,
	}
	ops := []store.Op{}
	var roleID string
	if len(perms) > 0 {
		roleID = uuid.NewString()
		r := &role.Role{
			ID:            roleID,
			CommunityID:   e.ID(),
			Name:          userID + "-role",
			Permissions:   permission.NewSet(perms...),
			Position:      10,
			AssignedUsers: role.NewUserSet(userID),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		p.Role = roleID
		roleOp, err := e.Roles.PutOp(r, 0)
		require.NoError(t, err)
		ops = append(ops, roleOp)
	}
	memberOp, err := e.Members.PutOp(p, 0)
	require.NoError(t, err)
	ops = append(ops, memberOp)
	require.NoError(t, e.Store.Commit(ctx, ops...))
	return roleID
}

// AddRole creates an unassigned role and returns it
func (e *Env) AddRole(t *testing.T, name string, position int, mentionable bool, perms ...permission.Permission) *role.Role {
	t.Helper()
	now := time.Now().UTC()
	r := &role.Role{
		ID:            uuid.NewString(),
		CommunityID:   e.ID(),
		Name:          name,
		Permissions:   permission.NewSet(perms...),
		Position:      position,
		Mentionable:   mentionable,
		AssignedUsers: role.UserSet{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	op, err := e.Roles.PutOp(r, 0)
	require.NoError(t, err)
	require.NoError(t, e.Store.Commit(context.Background(), op))
	return r
}

// Participant reads a participant, nil when absent
func (e *Env) Participant(t *testing.T, userID string) *member.Participant {
	t.Helper()
	p, _, err := e.Members.Get(context.Background(), e.ID(), userID)
	require.NoError(t, err)
	return p
}

// Role reads a role by id
func (e *Env) Role(t *testing.T, roleID string) *role.Role {
	t.Helper()
	r, _, err := e.Roles.Get(context.Background(), e.ID(), roleID)
	require.NoError(t, err)
	require.NotNil(t, r)
	return r
}

// Channel returns the auto-created channel with the given name
func (e *Env) Channel(t *testing.T, name string) *channel.Channel {
	t.Helper()
	list, err := e.Channels.List(context.Background(), e.ID())
	require.NoError(t, err)
	for _, v := range list {
		if v.Value.Name == name {
			return v.Value
		}
	}
	t.Fatalf("channel %q not found", name)
	return nil
}
