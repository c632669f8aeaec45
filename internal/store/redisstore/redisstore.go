// Package redisstore keeps documents in Redis hashes. Conditional writes run
// inside WATCH/MULTI transactions and committed changes are published on a
// pub/sub channel per collection.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fkhayef/tourneyhub/internal/store"
)

const (
	fieldVersion = "v"
	fieldData    = "d"
	fieldUpdated = "u"

	// WATCH aborts when another client touches a watched key, even if the
	// versions we care about did not change, so the check is re-run a few times.
	maxWatchRetries = 32
	feedBuffer      = 64
)

// Store is a store.Store backed by Redis
type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// New creates a Redis store. Keys are namespaced under "th:".
func New(client *redis.Client) *Store {
	return &Store{client: client, prefix: "th:", now: time.Now}
}

func (s *Store) docKey(collection, id string) string {
	return s.prefix + "doc:" + collection + ":" + id
}

func (s *Store) indexKey(collection string) string {
	return s.prefix + "idx:" + collection
}

func (s *Store) channel(collection string) string {
	return s.prefix + "changes:" + collection
}

func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	vals, err := s.client.HMGet(ctx, s.docKey(collection, id), fieldVersion, fieldData, fieldUpdated).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	doc, err := decode(collection, id, vals)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, store.NotFound(collection, id)
	}
	return doc, nil
}

func (s *Store) Put(ctx context.Context, collection, id string, data []byte, expectedVersion int64) (int64, error) {
	versions, err := s.commit(ctx, store.Op{Kind: store.OpPut, Collection: collection, ID: id, Data: data, ExpectedVersion: expectedVersion})
	if err != nil {
		return 0, err
	}
	return versions[0], nil
}

func (s *Store) Delete(ctx context.Context, collection, id string, expectedVersion int64) error {
	_, err := s.commit(ctx, store.DeleteOp(collection, id, expectedVersion))
	return err
}

func (s *Store) Query(ctx context.Context, collection string, filter store.Filter) ([]*store.Document, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	cmds := make([]*redis.SliceCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HMGet(ctx, s.docKey(collection, id), fieldVersion, fieldData, fieldUpdated)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	var out []*store.Document
	for i, cmd := range cmds {
		doc, err := decode(collection, ids[i], cmd.Val())
		if err != nil {
			return nil, err
		}
		if doc == nil || !filter.Match(doc.Data) {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Subscribe returns once the pub/sub subscription is confirmed, so writes
// made after it returns are always observed.
func (s *Store) Subscribe(ctx context.Context, collection string, filter store.Filter) (<-chan store.ChangeEvent, error) {
	ps := s.client.Subscribe(ctx, s.channel(collection))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", collection, err)
	}

	out := make(chan store.ChangeEvent, feedBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev store.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				if len(ev.Data) > 0 && !filter.Match(ev.Data) {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Store) Commit(ctx context.Context, ops ...store.Op) error {
	_, err := s.commit(ctx, ops...)
	return err
}

type write struct {
	key        string
	collection string
	id         string
	doc        *store.Document // nil deletes
}

func (s *Store) commit(ctx context.Context, ops ...store.Op) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keys := make([]string, len(ops))
	for i, op := range ops {
		keys[i] = s.docKey(op.Collection, op.ID)
	}

	var versions []int64
	txf := func(tx *redis.Tx) error {
		versions = versions[:0]
		staged := make(map[string]*write)
		var order []*write
		var events []store.ChangeEvent
		now := s.now().UTC()

		for i, op := range ops {
			key := keys[i]
			var current *store.Document
			if w, ok := staged[key]; ok {
				current = w.doc
			} else {
				vals, err := tx.HMGet(ctx, key, fieldVersion, fieldData, fieldUpdated).Result()
				if err != nil {
					return err
				}
				current, err = decode(op.Collection, op.ID, vals)
				if err != nil {
					return err
				}
			}
			var currentVersion int64
			if current != nil {
				currentVersion = current.Version
			}

			w, ok := staged[key]
			if !ok {
				w = &write{key: key, collection: op.Collection, id: op.ID}
				staged[key] = w
				order = append(order, w)
			}

			switch op.Kind {
			case store.OpPut:
				if err := store.CheckVersion(op.Collection, op.ID, op.ExpectedVersion, currentVersion); err != nil {
					return err
				}
				w.doc = &store.Document{
					Collection: op.Collection,
					ID:         op.ID,
					Version:    currentVersion + 1,
					Data:       append([]byte(nil), op.Data...),
					UpdatedAt:  now,
				}
				versions = append(versions, w.doc.Version)
				events = append(events, store.ChangeEvent{Type: store.ChangePut, Collection: op.Collection, ID: op.ID, Version: w.doc.Version, Data: w.doc.Data})
			case store.OpDelete:
				if current == nil {
					return store.NotFound(op.Collection, op.ID)
				}
				if err := store.CheckVersion(op.Collection, op.ID, op.ExpectedVersion, currentVersion); err != nil {
					return err
				}
				w.doc = nil
				versions = append(versions, currentVersion)
				events = append(events, store.ChangeEvent{Type: store.ChangeDelete, Collection: op.Collection, ID: op.ID, Version: currentVersion, Data: current.Data})
			default:
				return fmt.Errorf("unknown op kind %q", op.Kind)
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for _, w := range order {
				if w.doc == nil {
					p.Del(ctx, w.key)
					p.SRem(ctx, s.indexKey(w.collection), w.id)
					continue
				}
				p.HSet(ctx, w.key,
					fieldVersion, w.doc.Version,
					fieldData, string(w.doc.Data),
					fieldUpdated, w.doc.UpdatedAt.UnixNano(),
				)
				p.SAdd(ctx, s.indexKey(w.collection), w.id)
			}
			for _, ev := range events {
				payload, err := json.Marshal(ev)
				if err != nil {
					return err
				}
				p.Publish(ctx, s.channel(ev.Collection), payload)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.client.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return versions, nil
	}
	return nil, fmt.Errorf("%w: watched keys kept changing", store.ErrVersionConflict)
}

// decode turns an HMGET reply into a document, nil when the hash is absent
func decode(collection, id string, vals []any) (*store.Document, error) {
	if len(vals) != 3 || vals[0] == nil {
		return nil, nil
	}
	rawVersion, _ := vals[0].(string)
	rawData, _ := vals[1].(string)
	rawUpdated, _ := vals[2].(string)

	version, err := strconv.ParseInt(rawVersion, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt version on %s/%s: %w", collection, id, err)
	}
	var updated time.Time
	if nanos, err := strconv.ParseInt(rawUpdated, 10, 64); err == nil {
		updated = time.Unix(0, nanos).UTC()
	}
	return &store.Document{
		Collection: collection,
		ID:         id,
		Version:    version,
		Data:       json.RawMessage(rawData),
		UpdatedAt:  updated,
	}, nil
}
