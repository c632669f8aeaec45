// Package storetest is a conformance suite every store backend runs in its tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tourneyhub/internal/store"
)

// Run exercises the Store contract against a fresh store from newStore
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "things", "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("InsertOnly", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		v, err := s.Put(ctx, "things", "a", []byte(`{"n":"1"}`), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)

		_, err = s.Put(ctx, "things", "a", []byte(`{"n":"2"}`), 0)
		assert.ErrorIs(t, err, store.ErrVersionConflict)

		doc, err := s.Get(ctx, "things", "a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":"1"}`, string(doc.Data))
	})

	t.Run("ConditionalUpdate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.Put(ctx, "things", "a", []byte(`{"n":"1"}`), 0)
		require.NoError(t, err)

		v, err := s.Put(ctx, "things", "a", []byte(`{"n":"2"}`), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), v)

		_, err = s.Put(ctx, "things", "a", []byte(`{"n":"3"}`), 1)
		assert.ErrorIs(t, err, store.ErrVersionConflict)

		v, err = s.Put(ctx, "things", "a", []byte(`{"n":"4"}`), store.AnyVersion)
		require.NoError(t, err)
		assert.Equal(t, int64(3), v)
	})

	t.Run("DeleteConditional", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.Put(ctx, "things", "a", []byte(`{}`), 0)
		require.NoError(t, err)

		assert.ErrorIs(t, s.Delete(ctx, "things", "a", 7), store.ErrVersionConflict)
		require.NoError(t, s.Delete(ctx, "things", "a", 1))
		assert.ErrorIs(t, s.Delete(ctx, "things", "a", store.AnyVersion), store.ErrNotFound)
	})

	t.Run("QueryFilter", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.Put(ctx, "things", "a", []byte(`{"community_id":"c1","status":"open"}`), 0)
		require.NoError(t, err)
		_, err = s.Put(ctx, "things", "b", []byte(`{"community_id":"c1","status":"closed"}`), 0)
		require.NoError(t, err)
		_, err = s.Put(ctx, "things", "c", []byte(`{"community_id":"c2","status":"open"}`), 0)
		require.NoError(t, err)

		docs, err := s.Query(ctx, "things", store.Filter{"community_id": "c1"})
		require.NoError(t, err)
		assert.Len(t, docs, 2)

		docs, err = s.Query(ctx, "things", store.Filter{"community_id": "c1", "status": "open"})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "a", docs[0].ID)
	})

	t.Run("CommitIsAllOrNothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.Put(ctx, "things", "a", []byte(`{"n":"1"}`), 0)
		require.NoError(t, err)

		err = s.Commit(ctx,
			store.Op{Kind: store.OpPut, Collection: "log", ID: "entry", Data: []byte(`{}`), ExpectedVersion: 0},
			store.Op{Kind: store.OpPut, Collection: "things", ID: "a", Data: []byte(`{"n":"2"}`), ExpectedVersion: 5},
		)
		assert.ErrorIs(t, err, store.ErrVersionConflict)

		_, err = s.Get(ctx, "log", "entry")
		assert.ErrorIs(t, err, store.ErrNotFound, "first op must not be applied when the second conflicts")

		err = s.Commit(ctx,
			store.Op{Kind: store.OpPut, Collection: "log", ID: "entry", Data: []byte(`{}`), ExpectedVersion: 0},
			store.Op{Kind: store.OpPut, Collection: "things", ID: "a", Data: []byte(`{"n":"2"}`), ExpectedVersion: 1},
		)
		require.NoError(t, err)
		doc, err := s.Get(ctx, "things", "a")
		require.NoError(t, err)
		assert.Equal(t, int64(2), doc.Version)
	})

	t.Run("CancelledContextWritesNothing", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := s.Commit(ctx, store.Op{Kind: store.OpPut, Collection: "things", ID: "a", Data: []byte(`{}`), ExpectedVersion: 0})
		require.Error(t, err)

		_, err = s.Get(context.Background(), "things", "a")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ConcurrentIncrementsNeverLost", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.Put(ctx, "counters", "c", []byte(`{"n":0}`), 0)
		require.NoError(t, err)

		const workers = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					doc, err := s.Get(ctx, "counters", "c")
					if err != nil {
						return
					}
					_, err = s.Put(ctx, "counters", "c", doc.Data, doc.Version)
					if errors.Is(err, store.ErrVersionConflict) {
						continue
					}
					if err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
					return
				}
			}()
		}
		wg.Wait()

		doc, err := s.Get(ctx, "counters", "c")
		require.NoError(t, err)
		assert.Equal(t, workers, wins)
		assert.Equal(t, int64(workers+1), doc.Version)
	})

	t.Run("Subscribe", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := s.Subscribe(ctx, "things", store.Filter{"community_id": "c1"})
		require.NoError(t, err)

		_, err = s.Put(context.Background(), "things", "skip", []byte(`{"community_id":"c2"}`), 0)
		require.NoError(t, err)
		_, err = s.Put(context.Background(), "things", "a", []byte(`{"community_id":"c1"}`), 0)
		require.NoError(t, err)

		select {
		case ev := <-events:
			assert.Equal(t, "a", ev.ID)
			assert.Equal(t, store.ChangePut, ev.Type)
		case <-time.After(3 * time.Second):
			t.Fatal("no change event delivered")
		}
	})
}
