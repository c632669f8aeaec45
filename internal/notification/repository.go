package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fkhayef/tourneyhub/internal/store"
)

// Repository handles notification persistence
type Repository struct {
	store store.Store
}

// NewRepository creates a new notification repository
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// Get returns a notification and its version, or nil when it does not exist
func (r *Repository) Get(ctx context.Context, recipientID, id string) (*Notification, int64, error) {
	n, version, err := store.GetAs[Notification](ctx, r.store, Collection, ID(recipientID, id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, version, nil
}

// ListByRecipient returns a user's notifications, newest first
func (r *Repository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]store.Versioned[Notification], error) {
	filter := store.Filter{"recipient_id": recipientID}
	if unreadOnly {
		filter["is_read"] = "false"
	}
	list, err := store.QueryAs[Notification](ctx, r.store, Collection, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Value.CreatedAt.After(list[j].Value.CreatedAt)
	})
	return list, nil
}

// PutOp builds a conditional write of n
func (r *Repository) PutOp(n *Notification, expectedVersion int64) (store.Op, error) {
	return store.PutOp(Collection, ID(n.RecipientID, n.ID), n, expectedVersion)
}

// Commit applies ops atomically
func (r *Repository) Commit(ctx context.Context, ops ...store.Op) error {
	return r.store.Commit(ctx, ops...)
}
