package invitation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fkhayef/tourneyhub/internal/store"
)

// Repository handles invitation and usage persistence
type Repository struct {
	store store.Store
}

// NewRepository creates a new invitation repository
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// Get returns an invitation by code, or nil when unknown
func (r *Repository) Get(ctx context.Context, code string) (*Invitation, int64, error) {
	inv, version, err := store.GetAs[Invitation](ctx, r.store, Collection, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, version, nil
}

// ListByCommunity returns a community's invitations, newest first
func (r *Repository) ListByCommunity(ctx context.Context, communityID string) ([]*Invitation, error) {
	list, err := store.QueryAs[Invitation](ctx, r.store, Collection, store.Filter{"community_id": communityID})
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	out := make([]*Invitation, len(list))
	for i, v := range list {
		out[i] = v.Value
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListUsages returns the redemptions of one invitation, oldest first
func (r *Repository) ListUsages(ctx context.Context, code string) ([]*Usage, error) {
	list, err := store.QueryAs[Usage](ctx, r.store, UsageCollection, store.Filter{"invitation_id": code})
	if err != nil {
		return nil, fmt.Errorf("failed to list invitation usages: %w", err)
	}
	out := make([]*Usage, len(list))
	for i, v := range list {
		out[i] = v.Value
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UsedAt.Before(out[j].UsedAt) })
	return out, nil
}

// PutOp builds a conditional write of inv
func (r *Repository) PutOp(inv *Invitation, expectedVersion int64) (store.Op, error) {
	return store.PutOp(Collection, inv.Code, inv, expectedVersion)
}

// UsageOp builds the insert of a usage record
func (r *Repository) UsageOp(u *Usage) (store.Op, error) {
	return store.PutOp(UsageCollection, store.Key(u.CommunityID, u.ID), u, 0)
}

// DeleteOp builds a conditional removal of an invitation
func (r *Repository) DeleteOp(code string, expectedVersion int64) store.Op {
	return store.DeleteOp(Collection, code, expectedVersion)
}

// Commit applies ops atomically
func (r *Repository) Commit(ctx context.Context, ops ...store.Op) error {
	return r.store.Commit(ctx, ops...)
}
