package role_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/role"
	"github.com/fkhayef/tourneyhub/internal/testenv"
)

func newService(env *testenv.Env) *role.Service {
	return role.NewService(env.Log, env.Roles, env.Members, env.Authz, role.Config{
		Timeout: testenv.Timeout,
		Retries: 8,
		Backoff: time.Millisecond,
	})
}

func TestCreateRole(t *testing.T) {
	env := testenv.New(t)
	svc := newService(env)
	ctx := context.Background()

	r, err := svc.Create(ctx, env.ID(), testenv.Owner, &role.CreateRoleRequest{
		Name:        "Referees",
		Permissions: permission.NewSet(permission.ManageMessage, permission.Kick),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Position, "new roles go above existing ones")

	roles, err := svc.List(ctx, env.ID(), testenv.Owner)
	require.NoError(t, err)
	assert.Len(t, roles, 3)
}

func TestOnlyAdministratorsGrantAdministrator(t *testing.T) {
	env := testenv.New(t)
	env.AddMember(t, "manager", permission.ManageRoles)
	svc := newService(env)
	ctx := context.Background()

	_, err := svc.Create(ctx, env.ID(), "manager", &role.CreateRoleRequest{
		Name:        "Coup",
		Permissions: permission.NewSet(permission.Administrator),
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	r, err := svc.Create(ctx, env.ID(), "manager", &role.CreateRoleRequest{Name: "Casters"})
	require.NoError(t, err)

	_, err = svc.SetPermissions(ctx, env.ID(), r.ID, "manager", permission.NewSet(permission.Administrator))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	updated, err := svc.SetPermissions(ctx, env.ID(), r.ID, "manager", permission.NewSet(permission.VoiceSpeak))
	require.NoError(t, err)
	assert.Equal(t, permission.NewSet(permission.VoiceSpeak), updated.Permissions)
}

func TestSetPermissionsRequiresManageRoles(t *testing.T) {
	env := testenv.New(t)
	env.AddMember(t, "player")
	svc := newService(env)

	_, err := svc.SetPermissions(context.Background(), env.ID(), env.Community.DefaultRoleID, "player", permission.All())
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestRevokingFromDefaultRoleAppliesToMembers(t *testing.T) {
	env := testenv.New(t)
	env.AddMember(t, "player")
	svc := newService(env)
	ctx := context.Background()

	_, err := svc.SetPermissions(ctx, env.ID(), env.Community.DefaultRoleID, testenv.Owner, permission.NewSet(permission.View))
	require.NoError(t, err)

	set, err := env.Authz.Resolve(ctx, env.ID(), "player", "")
	require.NoError(t, err)
	assert.Equal(t, permission.NewSet(permission.View), set)
}

func TestAssignAndUnassign(t *testing.T) {
	env := testenv.New(t)
	env.AddMember(t, "player")
	svc := newService(env)
	ctx := context.Background()

	mods := env.AddRole(t, "Mods", 5, true, permission.Kick)

	_, err := svc.Assign(ctx, env.ID(), mods.ID, testenv.Owner, "player")
	require.NoError(t, err)
	require.NoError(t, env.Authz.Require(ctx, env.ID(), "player", "", permission.Kick))

	_, err = svc.Unassign(ctx, env.ID(), mods.ID, testenv.Owner, "player")
	require.NoError(t, err)
	assert.ErrorIs(t, env.Authz.Require(ctx, env.ID(), "player", "", permission.Kick), apperr.ErrUnauthorized)

	_, err = svc.Assign(ctx, env.ID(), mods.ID, testenv.Owner, "stranger")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Assign(ctx, env.ID(), env.Community.DefaultRoleID, testenv.Owner, "player")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeleteRole(t *testing.T) {
	env := testenv.New(t)
	svc := newService(env)
	ctx := context.Background()

	err := svc.Delete(ctx, env.ID(), env.Community.DefaultRoleID, testenv.Owner)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	r := env.AddRole(t, "Temporary", 3, false)
	require.NoError(t, svc.Delete(ctx, env.ID(), r.ID, testenv.Owner))

	_, err = svc.Get(ctx, env.ID(), r.ID, testenv.Owner)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
