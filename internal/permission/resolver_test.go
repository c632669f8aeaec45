package permission

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var everyone = RoleGrant{ID: "everyone", Position: 100, Permissions: NewSet(View, SendMessage, ReadHistory)}

func TestResolveZeroRolesGetsDefault(t *testing.T) {
	got := Resolve(Input{UserID: "u1", DefaultRole: everyone})
	assert.Equal(t, everyone.Permissions, got)
}

func TestResolveUnionOfRoles(t *testing.T) {
	mod := RoleGrant{ID: "mod", Position: 2, Permissions: NewSet(Kick, MuteMembers)}
	got := Resolve(Input{UserID: "u1", DefaultRole: everyone, Roles: []RoleGrant{mod}})
	assert.True(t, got.HasAll(NewSet(View, SendMessage, ReadHistory, Kick, MuteMembers)))
	assert.False(t, got.Has(Ban))
}

func TestResolveAdministratorIgnoresDeny(t *testing.T) {
	admin := RoleGrant{ID: "admin", Position: 1, Permissions: NewSet(Administrator)}
	overwrites := []Overwrite{
		{SubjectID: "admin", SubjectType: SubjectRole, Deny: All()},
		{SubjectID: "u1", SubjectType: SubjectUser, Deny: All()},
		{SubjectID: "everyone", SubjectType: SubjectRole, Deny: All()},
	}
	got := Resolve(Input{UserID: "u1", DefaultRole: everyone, Roles: []RoleGrant{admin}, Overwrites: overwrites})
	assert.Equal(t, All(), got)
}

func TestResolveRoleOverwritesApplyInAscendingPosition(t *testing.T) {
	low := RoleGrant{ID: "low", Position: 1}
	high := RoleGrant{ID: "high", Position: 5}

	tests := []struct {
		name       string
		overwrites []Overwrite
		wantSend   bool
	}{
		{
			name: "higher position applied last wins deny",
			overwrites: []Overwrite{
				{SubjectID: "high", SubjectType: SubjectRole, Deny: NewSet(SendMessage)},
				{SubjectID: "low", SubjectType: SubjectRole, Allow: NewSet(SendMessage)},
			},
			wantSend: false,
		},
		{
			name: "higher position applied last wins allow",
			overwrites: []Overwrite{
				{SubjectID: "low", SubjectType: SubjectRole, Deny: NewSet(SendMessage)},
				{SubjectID: "high", SubjectType: SubjectRole, Allow: NewSet(SendMessage)},
			},
			wantSend: true,
		},
		{
			name: "same subject later entry overrides earlier",
			overwrites: []Overwrite{
				{SubjectID: "low", SubjectType: SubjectRole, Deny: NewSet(SendMessage)},
				{SubjectID: "low", SubjectType: SubjectRole, Allow: NewSet(SendMessage)},
			},
			wantSend: true,
		},
		{
			name: "overwrite of unheld role is ignored",
			overwrites: []Overwrite{
				{SubjectID: "stranger", SubjectType: SubjectRole, Deny: NewSet(SendMessage)},
			},
			wantSend: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(Input{
				UserID:      "u1",
				DefaultRole: everyone,
				Roles:       []RoleGrant{low, high},
				Overwrites:  tt.overwrites,
			})
			assert.Equal(t, tt.wantSend, got.Has(SendMessage))
		})
	}
}

func TestResolveUserOverwriteBeatsRoleOverwrite(t *testing.T) {
	overwrites := []Overwrite{
		{SubjectID: "u1", SubjectType: SubjectUser, Allow: NewSet(SendMessage)},
		{SubjectID: "everyone", SubjectType: SubjectRole, Deny: NewSet(SendMessage, View)},
	}
	got := Resolve(Input{UserID: "u1", DefaultRole: everyone, Overwrites: overwrites})
	assert.True(t, got.Has(SendMessage))
	assert.False(t, got.Has(View), "role deny still applies where the user overwrite is silent")

	other := Resolve(Input{UserID: "u2", DefaultRole: everyone, Overwrites: overwrites})
	assert.False(t, other.Has(SendMessage))
}

func TestResolveOverlappingOverwriteDoesNotPanic(t *testing.T) {
	ow := Overwrite{SubjectID: "everyone", SubjectType: SubjectRole, Allow: NewSet(Embed), Deny: NewSet(Embed)}
	require.True(t, ow.Overlaps())
	got := Resolve(Input{UserID: "u1", DefaultRole: everyone, Overwrites: []Overwrite{ow}})
	assert.True(t, got.Has(Embed))
}

func TestSetJSONRoundTripAndAliases(t *testing.T) {
	var s Set
	require.NoError(t, json.Unmarshal([]byte(`["kick-users","ban-users","view"]`), &s))
	assert.Equal(t, NewSet(Kick, Ban, View), s)

	data, err := json.Marshal(NewSet(Ban, View))
	require.NoError(t, err)
	assert.JSONEq(t, `["ban","view"]`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`["fly"]`), &s))
}

func TestAllHasEveryPermission(t *testing.T) {
	all := All()
	for p := Permission(0); p < count; p++ {
		assert.True(t, all.Has(p), p.String())
	}
	assert.Equal(t, int(count), all.Len())
}
