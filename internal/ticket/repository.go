package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/fkhayef/tourneyhub/internal/store"
)

// Repository handles ticket persistence
type Repository struct {
	store store.Store
}

// NewRepository creates a new ticket repository
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// Get returns a ticket and its version, or nil when it does not exist
func (r *Repository) Get(ctx context.Context, communityID, ticketID string) (*Ticket, int64, error) {
	t, version, err := store.GetAs[Ticket](ctx, r.store, Collection, ID(communityID, ticketID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to get ticket: %w", err)
	}
	return t, version, nil
}

// List returns a community's tickets, newest first. Empty filter values are ignored.
func (r *Repository) List(ctx context.Context, communityID string, status Status, createdBy string) ([]*Ticket, error) {
	filter := store.Filter{"community_id": communityID}
	if status != "" {
		filter["status"] = string(status)
	}
	if createdBy != "" {
		filter["created_by"] = createdBy
	}
	list, err := store.QueryAs[Ticket](ctx, r.store, Collection, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	tickets := make([]*Ticket, 0, len(list))
	for _, v := range list {
		tickets = append(tickets, v.Value)
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
	return tickets, nil
}

// Watch streams every committed state of one ticket until ctx is done.
// The channel is closed when the ticket is deleted or ctx ends.
func (r *Repository) Watch(ctx context.Context, communityID, ticketID string) (<-chan *Ticket, error) {
	events, err := r.store.Subscribe(ctx, Collection, store.Filter{"community_id": communityID, "id": ticketID})
	if err != nil {
		return nil, fmt.Errorf("failed to watch ticket: %w", err)
	}

	id := ID(communityID, ticketID)
	out := make(chan *Ticket)
	go func() {
		defer close(out)
		for ev := range events {
			if ev.ID != id {
				continue
			}
			if ev.Type == store.ChangeDelete {
				return
			}
			var t Ticket
			if len(ev.Data) == 0 || json.Unmarshal(ev.Data, &t) != nil {
				// payload dropped by the feed, read the committed state instead
				current, _, err := r.Get(ctx, communityID, ticketID)
				if err != nil || current == nil {
					continue
				}
				t = *current
			}
			select {
			case out <- &t:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// PutOp builds a conditional write of t
func (r *Repository) PutOp(t *Ticket, expectedVersion int64) (store.Op, error) {
	return store.PutOp(Collection, ID(t.CommunityID, t.ID), t, expectedVersion)
}

// Commit applies ops atomically
func (r *Repository) Commit(ctx context.Context, ops ...store.Op) error {
	return r.store.Commit(ctx, ops...)
}
