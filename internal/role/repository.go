package role

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/store"
)

// Repository handles role persistence
type Repository struct {
	store store.Store
}

// NewRepository creates a new role repository
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// Get returns a role and its version, or nil when it does not exist
func (r *Repository) Get(ctx context.Context, communityID, roleID string) (*Role, int64, error) {
	role, version, err := store.GetAs[Role](ctx, r.store, Collection, ID(communityID, roleID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to get role: %w", err)
	}
	return role, version, nil
}

// List returns the community's roles ordered by ascending position
func (r *Repository) List(ctx context.Context, communityID string) ([]store.Versioned[Role], error) {
	roles, err := store.QueryAs[Role](ctx, r.store, Collection, store.Filter{"community_id": communityID})
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	sort.SliceStable(roles, func(i, j int) bool {
		return roles[i].Value.Position < roles[j].Value.Position
	})
	return roles, nil
}

// Default returns the community's default role
func (r *Repository) Default(ctx context.Context, communityID string) (*Role, int64, error) {
	roles, err := r.List(ctx, communityID)
	if err != nil {
		return nil, 0, err
	}
	def, ok := lo.Find(roles, func(v store.Versioned[Role]) bool { return v.Value.IsDefault })
	if !ok {
		return nil, 0, apperr.NotFound("role.default", "community %s has no default role", communityID)
	}
	return def.Value, def.Version, nil
}

// RoleGrants returns the default role and the other roles userID is assigned
func (r *Repository) RoleGrants(ctx context.Context, communityID, userID string) (permission.RoleGrant, []permission.RoleGrant, error) {
	roles, err := r.List(ctx, communityID)
	if err != nil {
		return permission.RoleGrant{}, nil, err
	}

	var def *Role
	var held []permission.RoleGrant
	for _, v := range roles {
		switch {
		case v.Value.IsDefault:
			def = v.Value
		case v.Value.AssignedUsers.Has(userID):
			held = append(held, v.Value.Grant())
		}
	}
	if def == nil {
		return permission.RoleGrant{}, nil, apperr.NotFound("role.grants", "community %s has no default role", communityID)
	}
	return def.Grant(), held, nil
}

// PutOp builds a conditional write of role
func (r *Repository) PutOp(role *Role, expectedVersion int64) (store.Op, error) {
	return store.PutOp(Collection, ID(role.CommunityID, role.ID), role, expectedVersion)
}

// DeleteOp builds a conditional removal of a role
func (r *Repository) DeleteOp(communityID, roleID string, expectedVersion int64) store.Op {
	return store.DeleteOp(Collection, ID(communityID, roleID), expectedVersion)
}

// Commit applies ops atomically
func (r *Repository) Commit(ctx context.Context, ops ...store.Op) error {
	return r.store.Commit(ctx, ops...)
}
