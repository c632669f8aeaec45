// Package sqlstore keeps documents in a single SQL table and runs every
// Commit in one transaction. It works against Postgres and SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/fkhayef/tourneyhub/internal/store"
)

const (
	notifyChannel = "store_changes"
	// pg_notify payloads are capped at 8000 bytes; larger events are sent
	// without their data.
	maxNotifyPayload = 7900
)

// Store is a store.Store backed by a *sqlx.DB
type Store struct {
	db     *sqlx.DB
	hub    *store.Hub
	now    func() time.Time
	notify bool
}

type row struct {
	Collection string    `db:"collection"`
	ID         string    `db:"id"`
	Version    int64     `db:"version"`
	Data       string    `db:"data"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r row) toDocument() *store.Document {
	return &store.Document{
		Collection: r.Collection,
		ID:         r.ID,
		Version:    r.Version,
		Data:       json.RawMessage(r.Data),
		UpdatedAt:  r.UpdatedAt,
	}
}

// New creates a store on an already migrated database
func New(db *sqlx.DB) *Store {
	return &Store{db: db, hub: store.NewHub(), now: time.Now}
}

func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	var r row
	query := s.db.Rebind(`SELECT collection, id, version, data, updated_at FROM documents WHERE collection = ? AND id = ?`)
	if err := s.db.GetContext(ctx, &r, query, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound(collection, id)
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return r.toDocument(), nil
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

// Query selects the collection's documents matching filter. String equality
// is evaluated by the database; non-string fields pass through to the
// in-process check so both backends compare values the same way.
func (s *Store) Query(ctx context.Context, collection string, filter store.Filter) ([]*store.Document, error) {
	where, args := s.filterClause(filter)
	var rows []row
	query := s.db.Rebind(`SELECT collection, id, version, data, updated_at FROM documents WHERE collection = ?` + where + ` ORDER BY id`)
	if err := s.db.SelectContext(ctx, &rows, query, append([]any{collection}, args...)...); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	var out []*store.Document
	for _, r := range rows {
		if filter.Match([]byte(r.Data)) {
			out = append(out, r.toDocument())
		}
	}
	return out, nil
}

// filterClause renders one predicate per filter key, in key order
func (s *Store) filterClause(filter store.Filter) (string, []any) {
	keys := lo.Keys(filter)
	sort.Strings(keys)

	var b strings.Builder
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		if s.db.DriverName() == "postgres" {
			b.WriteString(` AND (jsonb_typeof(data::jsonb -> ?::text) <> 'string' OR data::jsonb ->> ?::text = ?)`)
			args = append(args, k, k, filter[k])
			continue
		}
		path := "$." + strconv.Quote(k)
		b.WriteString(` AND (json_type(data, ?) <> 'text' OR json_extract(data, ?) = ?)`)
		args = append(args, path, path, filter[k])
	}
	return b.String(), args
}

func (s *Store) Subscribe(ctx context.Context, collection string, filter store.Filter) (<-chan store.ChangeEvent, error) {
	return s.hub.Subscribe(ctx, collection, filter), nil
}

func (s *Store) Commit(ctx context.Context, ops ...store.Op) error {
	_, err := s.commit(ctx, ops...)
	return err
}

func (s *Store) commit(ctx context.Context, ops ...store.Op) ([]int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	versions := make([]int64, 0, len(ops))
	events := make([]store.ChangeEvent, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case store.OpPut:
			version, err := s.put(ctx, tx, op, now)
			if err != nil {
				return nil, err
			}
			versions = append(versions, version)
			events = append(events, store.ChangeEvent{Type: store.ChangePut, Collection: op.Collection, ID: op.ID, Version: version, Data: append([]byte(nil), op.Data...)})
		case store.OpDelete:
			prev, err := s.delete(ctx, tx, op)
			if err != nil {
				return nil, err
			}
			versions = append(versions, prev.Version)
			events = append(events, store.ChangeEvent{Type: store.ChangeDelete, Collection: op.Collection, ID: op.ID, Version: prev.Version, Data: json.RawMessage(prev.Data)})
		default:
			return nil, fmt.Errorf("unknown op kind %q", op.Kind)
		}
	}

	if s.notify {
		for _, ev := range events {
			if err := s.pgNotify(ctx, tx, ev); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	if !s.notify {
		s.hub.Publish(events...)
	}
	return versions, nil
}

func (s *Store) put(ctx context.Context, tx *sqlx.Tx, op store.Op, now time.Time) (int64, error) {
	switch {
	case op.ExpectedVersion == store.AnyVersion:
		var version int64
		query := tx.Rebind(`INSERT INTO documents (collection, id, version, data, updated_at)
			VALUES (?, ?, 1, ?, ?)
			ON CONFLICT (collection, id) DO UPDATE
			SET version = documents.version + 1, data = excluded.data, updated_at = excluded.updated_at
			RETURNING version`)
		if err := tx.GetContext(ctx, &version, query, op.Collection, op.ID, string(op.Data), now); err != nil {
			return 0, fmt.Errorf("failed to upsert %s/%s: %w", op.Collection, op.ID, err)
		}
		return version, nil

	case op.ExpectedVersion == 0:
		query := tx.Rebind(`INSERT INTO documents (collection, id, version, data, updated_at)
			VALUES (?, ?, 1, ?, ?)
			ON CONFLICT (collection, id) DO NOTHING`)
		res, err := tx.ExecContext(ctx, query, op.Collection, op.ID, string(op.Data), now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert %s/%s: %w", op.Collection, op.ID, err)
		}
		if err := s.expectOneRow(ctx, tx, res, op); err != nil {
			return 0, err
		}
		return 1, nil

	default:
		query := tx.Rebind(`UPDATE documents SET version = version + 1, data = ?, updated_at = ?
			WHERE collection = ? AND id = ? AND version = ?`)
		res, err := tx.ExecContext(ctx, query, string(op.Data), now, op.Collection, op.ID, op.ExpectedVersion)
		if err != nil {
			return 0, fmt.Errorf("failed to update %s/%s: %w", op.Collection, op.ID, err)
		}
		if err := s.expectOneRow(ctx, tx, res, op); err != nil {
			return 0, err
		}
		return op.ExpectedVersion + 1, nil
	}
}

func (s *Store) delete(ctx context.Context, tx *sqlx.Tx, op store.Op) (*row, error) {
	var current row
	query := tx.Rebind(`SELECT collection, id, version, data, updated_at FROM documents WHERE collection = ? AND id = ?`)
	if err := tx.GetContext(ctx, &current, query, op.Collection, op.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound(op.Collection, op.ID)
		}
		return nil, fmt.Errorf("failed to read %s/%s: %w", op.Collection, op.ID, err)
	}
	if err := store.CheckVersion(op.Collection, op.ID, op.ExpectedVersion, current.Version); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM documents WHERE collection = ? AND id = ? AND version = ?`),
		op.Collection, op.ID, current.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to delete %s/%s: %w", op.Collection, op.ID, err)
	}
	if err := s.expectOneRow(ctx, tx, res, op); err != nil {
		return nil, err
	}
	return &current, nil
}

// expectOneRow turns a conditional write that matched nothing into a
// version conflict naming the version actually stored.
func (s *Store) expectOneRow(ctx context.Context, tx *sqlx.Tx, res sql.Result, op store.Op) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	var current int64
	err = tx.GetContext(ctx, &current, tx.Rebind(`SELECT version FROM documents WHERE collection = ? AND id = ?`), op.Collection, op.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read %s/%s: %w", op.Collection, op.ID, err)
	}
	if err := store.CheckVersion(op.Collection, op.ID, op.ExpectedVersion, current); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s/%s changed concurrently", store.ErrVersionConflict, op.Collection, op.ID)
}

func (s *Store) pgNotify(ctx context.Context, tx *sqlx.Tx, ev store.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if len(payload) > maxNotifyPayload {
		ev.Data = nil
		if payload, err = json.Marshal(ev); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify change: %w", err)
	}
	return nil
}

// Listen switches the change feed to Postgres LISTEN/NOTIFY so every
// instance sharing the database sees every commit. It returns once the
// listener is registered and relays notifications until ctx is done.
func (s *Store) Listen(ctx context.Context, databaseURL string, log *slog.Logger) error {
	if s.db.DriverName() != "postgres" {
		return fmt.Errorf("change notifications need postgres, have %s", s.db.DriverName())
	}

	listener := pq.NewListener(databaseURL, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("store listener event", "event", ev, "error", err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}
	s.notify = true

	go func() {
		defer listener.Close()
		ping := time.NewTicker(90 * time.Second)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				// nil after a reconnect; notifications sent meanwhile are lost
				if n == nil {
					continue
				}
				var ev store.ChangeEvent
				if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
					log.Warn("dropping malformed change notification", "error", err)
					continue
				}
				s.hub.Publish(ev)
			case <-ping.C:
				go listener.Ping()
			}
		}
	}()
	return nil
}
