package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/store"
)

// Config bounds the service's operations
type Config struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// Service handles a user's notification inbox
type Service struct {
	log  *slog.Logger
	repo *Repository
	cfg  Config
	now  func() time.Time
}

// NewService creates a new notification service
func NewService(log *slog.Logger, repo *Repository, cfg Config) *Service {
	return &Service{log: log, repo: repo, cfg: cfg, now: time.Now}
}

// Deliver stores notifications. A notification whose id was already
// delivered to the same recipient is skipped.
func (s *Service) Deliver(ctx context.Context, notifications ...*Notification) error {
	const op = "notification.deliver"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	for _, n := range notifications {
		putOp, err := s.repo.PutOp(n, 0)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, op, err)
		}
		err = s.repo.Commit(ctx, putOp)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return apperr.FromContext(op, err)
		}
	}
	return nil
}

// ListByRecipient returns one page of a user's notifications and the total count
func (s *Service) ListByRecipient(ctx context.Context, recipientID string, page, perPage int, unreadOnly bool) ([]*Notification, int, error) {
	const op = "notification.list"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	list, err := s.repo.ListByRecipient(ctx, recipientID, unreadOnly)
	if err != nil {
		return nil, 0, apperr.FromContext(op, err)
	}
	total := len(list)
	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)

	out := make([]*Notification, 0, end-start)
	for _, v := range list[start:end] {
		out = append(out, v.Value)
	}
	return out, total, nil
}

// MarkAsRead marks one of the user's notifications as read
func (s *Service) MarkAsRead(ctx context.Context, id, userID string) error {
	const op = "notification.read"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err := store.Retry(ctx, s.cfg.Retries, s.cfg.Backoff, func(ctx context.Context) error {
		// keyed by recipient, so another user's notification is simply not found
		n, version, err := s.repo.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		if n == nil {
			return apperr.NotFound(op, "notification %s not found", id)
		}
		if n.IsRead {
			return nil
		}
		n.IsRead = true
		putOp, err := s.repo.PutOp(n, version)
		if err != nil {
			return err
		}
		return s.repo.Commit(ctx, putOp)
	})
	return wrapErr(op, err)
}

// MarkAllAsRead marks all notifications as read for a user
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) error {
	const op = "notification.read_all"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err := store.Retry(ctx, s.cfg.Retries, s.cfg.Backoff, func(ctx context.Context) error {
		unread, err := s.repo.ListByRecipient(ctx, userID, true)
		if err != nil {
			return err
		}
		ops := make([]store.Op, 0, len(unread))
		for _, v := range unread {
			v.Value.IsRead = true
			putOp, err := s.repo.PutOp(v.Value, v.Version)
			if err != nil {
				return err
			}
			ops = append(ops, putOp)
		}
		if len(ops) == 0 {
			return nil
		}
		return s.repo.Commit(ctx, ops...)
	})
	return wrapErr(op, err)
}

// GetUnreadCount returns the count of unread notifications
func (s *Service) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	const op = "notification.unread_count"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	unread, err := s.repo.ListByRecipient(ctx, userID, true)
	if err != nil {
		return 0, apperr.FromContext(op, err)
	}
	return len(unread), nil
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrVersionConflict) {
		return apperr.Wrap(apperr.KindConflict, op, err)
	}
	return apperr.FromContext(op, err)
}
