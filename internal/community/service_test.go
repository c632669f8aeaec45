package community_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/community"
	"github.com/fkhayef/tourneyhub/internal/member"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/testenv"
)

func TestCreateSetsUpCommunity(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	def, _, err := env.Roles.Default(ctx, env.ID())
	require.NoError(t, err)
	assert.Equal(t, env.Community.DefaultRoleID, def.ID)
	assert.Equal(t, community.DefaultMemberPermissions, def.Permissions)

	owner := env.Participant(t, testenv.Owner)
	require.NotNil(t, owner)
	assert.Equal(t, member.StatusActive, owner.Status)

	set, err := env.Authz.Resolve(ctx, env.ID(), testenv.Owner, "")
	require.NoError(t, err)
	assert.Equal(t, permission.All(), set)

	channels, err := env.Channels.List(ctx, env.ID())
	require.NoError(t, err)
	require.Len(t, channels, 3)
	for _, ch := range channels {
		assert.True(t, ch.Value.AutoCreated)
	}
}

func TestNewMemberCannotPostInRules(t *testing.T) {
	env := testenv.New(t)
	env.AddMember(t, "player")
	ctx := context.Background()

	rules := env.Channel(t, "rules")
	set, err := env.Authz.Resolve(ctx, env.ID(), "player", rules.ID)
	require.NoError(t, err)
	assert.True(t, set.Has(permission.View))
	assert.False(t, set.Has(permission.SendMessage))

	general := env.Channel(t, "general")
	set, err = env.Authz.Resolve(ctx, env.ID(), "player", general.ID)
	require.NoError(t, err)
	assert.True(t, set.Has(permission.SendMessage))
}

func TestCreateValidation(t *testing.T) {
	env := testenv.New(t)
	_, err := env.Communities.Create(context.Background(), "someone", &community.CreateCommunityRequest{Name: "  "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestResolvePermissionsOfOthersNeedsManageRoles(t *testing.T) {
	env := testenv.New(t)
	env.AddMember(t, "player")
	ctx := context.Background()

	_, err := env.Communities.ResolvePermissions(ctx, env.ID(), "player", testenv.Owner, "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	set, err := env.Communities.ResolvePermissions(ctx, env.ID(), testenv.Owner, "player", "")
	require.NoError(t, err)
	assert.Equal(t, community.DefaultMemberPermissions, set)
}

func TestListMembers(t *testing.T) {
	env := testenv.New(t)
	env.AddMember(t, "player")

	members, err := env.Communities.ListMembers(context.Background(), env.ID(), "player")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = env.Communities.ListMembers(context.Background(), env.ID(), "stranger")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
