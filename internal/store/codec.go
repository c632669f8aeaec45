package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Versioned pairs a decoded document with the version it was read at
type Versioned[T any] struct {
	Value   *T
	Version int64
}

// GetAs reads and decodes one document
func GetAs[T any](ctx context.Context, s Store, collection, id string) (*T, int64, error) {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return nil, 0, err
	}
	v := new(T)
	if err := json.Unmarshal(doc.Data, v); err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return v, doc.Version, nil
}

// QueryAs reads and decodes every document matching the filter
func QueryAs[T any](ctx context.Context, s Store, collection string, filter Filter) ([]Versioned[T], error) {
	docs, err := s.Query(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Versioned[T], 0, len(docs))
	for _, doc := range docs {
		v := new(T)
		if err := json.Unmarshal(doc.Data, v); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", collection, doc.ID, err)
		}
		out = append(out, Versioned[T]{Value: v, Version: doc.Version})
	}
	return out, nil
}

// PutOp encodes v into a conditional put
func PutOp(collection, id string, v any, expectedVersion int64) (Op, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Op{}, fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	return Op{Kind: OpPut, Collection: collection, ID: id, Data: data, ExpectedVersion: expectedVersion}, nil
}

// DeleteOp builds a conditional delete
func DeleteOp(collection, id string, expectedVersion int64) Op {
	return Op{Kind: OpDelete, Collection: collection, ID: id, ExpectedVersion: expectedVersion}
}

// PutAs encodes and writes one document
func PutAs(ctx context.Context, s Store, collection, id string, v any, expectedVersion int64) (int64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	return s.Put(ctx, collection, id, data, expectedVersion)
}
