package member

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/fkhayef/tourneyhub/internal/store"
)

// Repository handles participant persistence
type Repository struct {
	store store.Store
}

// NewRepository creates a new participant repository
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// Get returns the participant and its version, or nil when the user never joined
func (r *Repository) Get(ctx context.Context, communityID, userID string) (*Participant, int64, error) {
	p, version, err := store.GetAs[Participant](ctx, r.store, Collection, ID(communityID, userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, version, nil
}

// ListByCommunity returns every participant of a community, banned ones included
func (r *Repository) ListByCommunity(ctx context.Context, communityID string) ([]store.Versioned[Participant], error) {
	list, err := store.QueryAs[Participant](ctx, r.store, Collection, store.Filter{"community_id": communityID})
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return list, nil
}

// MemberIDs returns the ids of every participant who is not banned
func (r *Repository) MemberIDs(ctx context.Context, communityID string) ([]string, error) {
	list, err := r.ListByCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(list, func(v store.Versioned[Participant], _ int) (string, bool) {
		return v.Value.UserID, !v.Value.IsBanned()
	}), nil
}

// PutOp builds a conditional write of p
func (r *Repository) PutOp(p *Participant, expectedVersion int64) (store.Op, error) {
	return store.PutOp(Collection, ID(p.CommunityID, p.UserID), p, expectedVersion)
}

// DeleteOp builds a conditional removal of a participant
func (r *Repository) DeleteOp(communityID, userID string, expectedVersion int64) store.Op {
	return store.DeleteOp(Collection, ID(communityID, userID), expectedVersion)
}

// ListExpiredSanctions returns banned or muted participants whose timed
// sanction ended before now. An empty communityID scans every community.
func (r *Repository) ListExpiredSanctions(ctx context.Context, communityID string, now time.Time) ([]store.Versioned[Participant], error) {
	filter := store.Filter{}
	if communityID != "" {
		filter["community_id"] = communityID
	}
	list, err := store.QueryAs[Participant](ctx, r.store, Collection, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list sanctioned participants: %w", err)
	}
	return lo.Filter(list, func(v store.Versioned[Participant], _ int) bool {
		return v.Value.SanctionExpired(now)
	}), nil
}
