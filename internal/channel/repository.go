package channel

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/store"
)

// Repository handles channel persistence
type Repository struct {
	store store.Store
}

// NewRepository creates a new channel repository
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// Get returns a channel and its version, or nil when it does not exist
func (r *Repository) Get(ctx context.Context, communityID, channelID string) (*Channel, int64, error) {
	ch, version, err := store.GetAs[Channel](ctx, r.store, Collection, ID(communityID, channelID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to get channel: %w", err)
	}
	return ch, version, nil
}

// List returns a community's channels ordered by position
func (r *Repository) List(ctx context.Context, communityID string) ([]store.Versioned[Channel], error) {
	channels, err := store.QueryAs[Channel](ctx, r.store, Collection, store.Filter{"community_id": communityID})
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].Value.Position < channels[j].Value.Position
	})
	return channels, nil
}

// ChannelOverwrites returns the channel's parent id and overwrites
func (r *Repository) ChannelOverwrites(ctx context.Context, communityID, channelID string) (string, []permission.Overwrite, error) {
	ch, _, err := r.Get(ctx, communityID, channelID)
	if err != nil {
		return "", nil, err
	}
	if ch == nil {
		return "", nil, apperr.NotFound("channel.overwrites", "channel %s not found", channelID)
	}
	return ch.ParentID, ch.Overwrites, nil
}

// PutOp builds a conditional write of ch
func (r *Repository) PutOp(ch *Channel, expectedVersion int64) (store.Op, error) {
	return store.PutOp(Collection, ID(ch.CommunityID, ch.ID), ch, expectedVersion)
}

// DeleteOp builds a conditional removal of a channel
func (r *Repository) DeleteOp(communityID, channelID string, expectedVersion int64) store.Op {
	return store.DeleteOp(Collection, ID(communityID, channelID), expectedVersion)
}

// Commit applies ops atomically
func (r *Repository) Commit(ctx context.Context, ops ...store.Op) error {
	return r.store.Commit(ctx, ops...)
}
