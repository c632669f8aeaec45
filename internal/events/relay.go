package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fkhayef/tourneyhub/internal/store"
)

// Relay forwards the committed changes of some collections to a publisher.
// Event types are "<collection>.<put|delete>".
type Relay struct {
	log         *slog.Logger
	store       store.Store
	publisher   Publisher
	collections []string
	timeout     time.Duration
}

// NewRelay creates a relay for the given collections
func NewRelay(log *slog.Logger, s store.Store, publisher Publisher, timeout time.Duration, collections ...string) *Relay {
	return &Relay{log: log, store: s, publisher: publisher, collections: collections, timeout: timeout}
}

// Run subscribes to every collection and publishes changes until ctx is done.
// A failed publish is logged and the relay moves on.
func (r *Relay) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, collection := range r.collections {
		changes, err := r.store.Subscribe(ctx, collection, nil)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", collection, err)
		}
		g.Go(func() error {
			for ev := range changes {
				r.forward(ctx, ev)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Relay) forward(ctx context.Context, change store.ChangeEvent) {
	ev := Event{
		Type:       change.Collection + "." + string(change.Type),
		Key:        change.ID,
		Payload:    change.Data,
		OccurredAt: time.Now().UTC(),
	}
	var scope struct {
		CommunityID string `json:"community_id"`
	}
	if len(change.Data) > 0 && json.Unmarshal(change.Data, &scope) == nil {
		ev.CommunityID = scope.CommunityID
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.publisher.Publish(ctx, ev); err != nil {
		r.log.Error("failed to relay change", "collection", change.Collection, "id", change.ID, "error", err)
	}
}
