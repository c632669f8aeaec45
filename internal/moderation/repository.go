package moderation

import (
	"context"
	"fmt"
	"sort"

	"github.com/fkhayef/tourneyhub/internal/store"
)

// Repository handles audit log persistence
type Repository struct {
	store store.Store
}

// NewRepository creates a new moderation repository
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// InsertOp builds the insert of a new action. Inserts are conditioned on the
// id being unused, so an action is never overwritten.
func (r *Repository) InsertOp(a *Action) (store.Op, error) {
	return store.PutOp(Collection, ID(a.CommunityID, a.ID), a, 0)
}

// List returns a community's actions oldest first, optionally only those
// against one user
func (r *Repository) List(ctx context.Context, communityID, targetUserID string) ([]*Action, error) {
	filter := store.Filter{"community_id": communityID}
	if targetUserID != "" {
		filter["target_user_id"] = targetUserID
	}
	list, err := store.QueryAs[Action](ctx, r.store, Collection, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderation actions: %w", err)
	}

	actions := make([]*Action, 0, len(list))
	for _, v := range list {
		actions = append(actions, v.Value)
	}
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Timestamp.Before(actions[j].Timestamp)
	})
	return actions, nil
}

// Commit applies ops atomically
func (r *Repository) Commit(ctx context.Context, ops ...store.Op) error {
	return r.store.Commit(ctx, ops...)
}
