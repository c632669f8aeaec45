package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a Store kept in process memory. It backs tests and the
// "memory" backend for local runs.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]*Document
	hub  *Hub
	now  func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]map[string]*Document),
		hub:  NewHub(),
		now:  time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[collection][id]
	if !ok {
		return nil, NotFound(collection, id)
	}
	return cloneDoc(doc), nil
}

func (m *Memory) Put(ctx context.Context, collection, id string, data []byte, expectedVersion int64) (int64, error) {
	op := Op{Kind: OpPut, Collection: collection, ID: id, Data: data, ExpectedVersion: expectedVersion}
	versions, err := m.commit(ctx, op)
	if err != nil {
		return 0, err
	}
	return versions[0], nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string, expectedVersion int64) error {
	return m.Commit(ctx, DeleteOp(collection, id, expectedVersion))
}

func (m *Memory) Query(ctx context.Context, collection string, filter Filter) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Document
	for _, doc := range m.docs[collection] {
		if filter.Match(doc.Data) {
			out = append(out, cloneDoc(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Subscribe(ctx context.Context, collection string, filter Filter) (<-chan ChangeEvent, error) {
	return m.hub.Subscribe(ctx, collection, filter), nil
}

// Commit validates every op against a staged view and only then applies
// them, all under one lock.
func (m *Memory) Commit(ctx context.Context, ops ...Op) error {
	_, err := m.commit(ctx, ops...)
	return err
}

func (m *Memory) commit(ctx context.Context, ops ...Op) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type key struct{ collection, id string }
	staged := make(map[key]*Document)
	lookup := func(k key) *Document {
		if d, ok := staged[k]; ok {
			return d
		}
		return m.docs[k.collection][k.id]
	}

	now := m.now()
	versions := make([]int64, 0, len(ops))
	events := make([]ChangeEvent, 0, len(ops))
	for _, op := range ops {
		k := key{op.Collection, op.ID}
		current := lookup(k)
		var currentVersion int64
		if current != nil {
			currentVersion = current.Version
		}

		switch op.Kind {
		case OpPut:
			if err := CheckVersion(op.Collection, op.ID, op.ExpectedVersion, currentVersion); err != nil {
				return nil, err
			}
			next := &Document{
				Collection: op.Collection,
				ID:         op.ID,
				Version:    currentVersion + 1,
				Data:       append([]byte(nil), op.Data...),
				UpdatedAt:  now,
			}
			staged[k] = next
			versions = append(versions, next.Version)
			events = append(events, ChangeEvent{Type: ChangePut, Collection: op.Collection, ID: op.ID, Version: next.Version, Data: next.Data})
		case OpDelete:
			if current == nil {
				return nil, NotFound(op.Collection, op.ID)
			}
			if err := CheckVersion(op.Collection, op.ID, op.ExpectedVersion, currentVersion); err != nil {
				return nil, err
			}
			staged[k] = nil
			versions = append(versions, currentVersion)
			events = append(events, ChangeEvent{Type: ChangeDelete, Collection: op.Collection, ID: op.ID, Version: currentVersion, Data: current.Data})
		}
	}

	for k, doc := range staged {
		coll, ok := m.docs[k.collection]
		if !ok {
			coll = make(map[string]*Document)
			m.docs[k.collection] = coll
		}
		if doc == nil {
			delete(coll, k.id)
			continue
		}
		coll[k.id] = doc
	}
	m.hub.Publish(events...)
	return versions, nil
}

func cloneDoc(d *Document) *Document {
	c := *d
	c.Data = append([]byte(nil), d.Data...)
	return &c
}
