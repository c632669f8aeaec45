// Package store is the document repository the services are written against.
//
// Every document carries a version. Writes name the version they expect so
// concurrent read-modify-write cycles detect each other instead of
// clobbering: AnyVersion writes unconditionally, 0 only inserts, and any
// other value must match the stored version. Commit applies a batch of such
// writes atomically.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AnyVersion disables the version check of a write
const AnyVersion int64 = -1

var (
	ErrNotFound        = errors.New("document not found")
	ErrVersionConflict = errors.New("document version conflict")
)

// Document is a stored JSON document
type Document struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Version    int64           `json:"version"`
	Data       json.RawMessage `json:"data"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Filter matches documents whose top-level JSON fields equal the given values
type Filter map[string]string

// Match reports whether data satisfies the filter
func (f Filter) Match(data []byte) bool {
	if len(f) == 0 {
		return true
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	for k, want := range f {
		v, ok := fields[k]
		if !ok || v == nil {
			return false
		}
		if s, isString := v.(string); isString {
			if s != want {
				return false
			}
			continue
		}
		if fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

// ChangeType is the kind of change a ChangeEvent reports
type ChangeType string

const (
	ChangePut    ChangeType = "put"
	ChangeDelete ChangeType = "delete"
)

// ChangeEvent is emitted to subscribers after a write commits
type ChangeEvent struct {
	Type       ChangeType      `json:"type"`
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Version    int64           `json:"version"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// OpKind is the kind of a batched write
type OpKind string

const (
	OpPut    OpKind = "put"
	OpDelete OpKind = "delete"
)

// Op is one conditional write inside a Commit
type Op struct {
	Kind            OpKind
	Collection      string
	ID              string
	Data            []byte
	ExpectedVersion int64
}

// Store is the repository contract required from the backing database
type Store interface {
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Put returns the new version, or ErrVersionConflict.
	Put(ctx context.Context, collection, id string, data []byte, expectedVersion int64) (int64, error)
	Delete(ctx context.Context, collection, id string, expectedVersion int64) error
	Query(ctx context.Context, collection string, filter Filter) ([]*Document, error)
	// Subscribe streams committed changes until ctx is done.
	Subscribe(ctx context.Context, collection string, filter Filter) (<-chan ChangeEvent, error)
	// Commit applies all ops or none of them.
	Commit(ctx context.Context, ops ...Op) error
}

// Key joins id parts into a document id
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// CheckVersion validates an expected version against the current one, where
// current is 0 for a missing document.
func CheckVersion(collection, id string, expected, current int64) error {
	if expected == AnyVersion || expected == current {
		return nil
	}
	return fmt.Errorf("%w: %s/%s expected v%d, found v%d", ErrVersionConflict, collection, id, expected, current)
}

// NotFound wraps ErrNotFound with the document coordinates
func NotFound(collection, id string) error {
	return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
}
