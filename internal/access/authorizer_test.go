package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/member"
	"github.com/fkhayef/tourneyhub/internal/permission"
)

type fakeRoles struct {
	def  permission.RoleGrant
	held map[string][]permission.RoleGrant
}

func (f *fakeRoles) RoleGrants(_ context.Context, _, userID string) (permission.RoleGrant, []permission.RoleGrant, error) {
	return f.def, f.held[userID], nil
}

type fakeChannels map[string][]permission.Overwrite

func (f fakeChannels) ChannelOverwrites(_ context.Context, _, channelID string) (string, []permission.Overwrite, error) {
	ows, ok := f[channelID]
	if !ok {
		return "", nil, apperr.NotFound("channel", "channel %s not found", channelID)
	}
	return "", ows, nil
}

type fakeMembers map[string]*member.Participant

func (f fakeMembers) Get(_ context.Context, _, userID string) (*member.Participant, int64, error) {
	return f[userID], 1, nil
}

func newTestAuthorizer() *Authorizer {
	defaultPerms := permission.NewSet(permission.View, permission.SendMessage, permission.VoiceSpeak, permission.Attach)
	roles := &fakeRoles{
		def: permission.RoleGrant{ID: "everyone", Position: 0, Permissions: defaultPerms},
		held: map[string][]permission.RoleGrant{
			"mod":   {{ID: "mods", Position: 5, Permissions: permission.NewSet(permission.Kick, permission.ManageMessage)}},
			"admin": {{ID: "admins", Position: 10, Permissions: permission.NewSet(permission.Administrator)}},
		},
	}
	channels := fakeChannels{
		"rules": {{SubjectID: "everyone", SubjectType: permission.SubjectRole, Deny: permission.NewSet(permission.SendMessage)}},
	}
	members := fakeMembers{
		"user":   {UserID: "user", Status: member.StatusActive},
		"mod":    {UserID: "mod", Status: member.StatusActive},
		"admin":  {UserID: "admin", Status: member.StatusBanned},
		"banned": {UserID: "banned", Status: member.StatusBanned},
		"muted":  {UserID: "muted", Status: member.StatusMuted},
	}
	return NewAuthorizer(roles, channels, members)
}

func TestResolve(t *testing.T) {
	a := newTestAuthorizer()
	ctx := context.Background()

	tests := []struct {
		name      string
		userID    string
		channelID string
		has       []permission.Permission
		lacks     []permission.Permission
	}{
		{"member gets default role", "user", "", []permission.Permission{permission.View, permission.SendMessage}, []permission.Permission{permission.Kick}},
		{"held role adds", "mod", "", []permission.Permission{permission.Kick, permission.View}, []permission.Permission{permission.Ban}},
		{"channel overwrite denies", "user", "rules", []permission.Permission{permission.View}, []permission.Permission{permission.SendMessage}},
		{"muted loses speaking", "muted", "", []permission.Permission{permission.View}, []permission.Permission{permission.SendMessage, permission.VoiceSpeak, permission.Attach}},
		{"banned resolves to nothing", "banned", "", nil, []permission.Permission{permission.View}},
		{"stranger resolves to nothing", "stranger", "", nil, []permission.Permission{permission.View}},
		{"administrator ignores standing", "admin", "rules", []permission.Permission{permission.SendMessage, permission.Ban}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := a.Resolve(ctx, "c1", tt.userID, tt.channelID)
			require.NoError(t, err)
			for _, p := range tt.has {
				assert.True(t, set.Has(p), "expected %s", p)
			}
			for _, p := range tt.lacks {
				assert.False(t, set.Has(p), "unexpected %s", p)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	a := newTestAuthorizer()
	ctx := context.Background()

	require.NoError(t, a.Require(ctx, "c1", "mod", "", permission.Kick))
	err := a.Require(ctx, "c1", "user", "", permission.Kick)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = a.Resolve(ctx, "c1", "user", "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRequireStaff(t *testing.T) {
	a := newTestAuthorizer()
	ctx := context.Background()

	assert.NoError(t, a.RequireStaff(ctx, "c1", "mod"))
	assert.NoError(t, a.RequireStaff(ctx, "c1", "admin"))
	assert.ErrorIs(t, a.RequireStaff(ctx, "c1", "user"), apperr.ErrUnauthorized)

	staff, err := a.IsStaff(ctx, "c1", "user")
	require.NoError(t, err)
	assert.False(t, staff)
}
