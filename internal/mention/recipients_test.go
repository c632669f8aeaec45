package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/role"
)

func TestResolveRecipients(t *testing.T) {
	members := []string{"a", "b", "c"}
	online := []string{"a", "z"}
	roles := map[string]*role.Role{
		"R":        {ID: "R", AssignedUsers: role.NewUserSet("b")},
		"S":        {ID: "S", AssignedUsers: role.NewUserSet("b", "c")},
		"everyone": {ID: "everyone", IsDefault: true, AssignedUsers: role.UserSet{}},
	}

	tests := []struct {
		name string
		m    Mentions
		want []string
	}{
		{"everyone", Mentions{Everyone: true}, []string{"a", "b", "c"}},
		{"here only counts online members", Mentions{Here: true}, []string{"a"}},
		{"role", Mentions{Roles: []string{"R"}}, []string{"b"}},
		{"default role is everybody", Mentions{Roles: []string{"everyone"}}, []string{"a", "b", "c"}},
		{"unknown role is ignored", Mentions{Roles: []string{"nope"}}, []string{}},
		{"users pass through", Mentions{Users: []string{"x", "a"}}, []string{"a", "x"}},
		{"union collapses duplicates", Mentions{Here: true, Roles: []string{"R", "S"}, Users: []string{"b", ""}}, []string{"a", "b", "c"}},
		{"nothing", Mentions{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRecipients(tt.m, members, online, roles)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLargeCommunityPolicy(t *testing.T) {
	policy := LargeCommunityPolicy(2)
	assert.True(t, policy(0, 2))
	assert.False(t, policy(permission.NewSet(permission.MentionEveryone), 3))
	assert.True(t, policy(permission.NewSet(permission.Administrator), 3))
}
