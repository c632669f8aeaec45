package ticket

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/tourneyhub/internal/access"
	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/store"
)

// DefaultCategory is used when a ticket is opened without one
const DefaultCategory = "general"

// Config bounds the service's operations
type Config struct {
	Timeout time.Duration
	// Retries bounds the read-modify-write cycle of a ticket mutation
	Retries int
	Backoff time.Duration
}

// Service runs the ticket workflow. Every mutation rewrites the whole ticket
// document conditioned on the version it read, so the thread and the status
// always change together.
type Service struct {
	log   *slog.Logger
	repo  *Repository
	authz *access.Authorizer
	cfg   Config
	now   func() time.Time
}

// NewService creates a new ticket service
func NewService(log *slog.Logger, repo *Repository, authz *access.Authorizer, cfg Config) *Service {
	return &Service{log: log, repo: repo, authz: authz, cfg: cfg, now: time.Now}
}

// Create opens a ticket. Any member may open one; the description becomes
// the first message of the thread.
func (s *Service) Create(ctx context.Context, communityID, author string, req *CreateTicketRequest) (*Ticket, error) {
	const op = "ticket.create"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if title == "" {
		return nil, apperr.Validation(op, "title is required")
	}
	if description == "" {
		return nil, apperr.Validation(op, "description is required")
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, apperr.Validation(op, "unknown priority %q", req.Priority)
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = DefaultCategory
	}
	if err := s.authz.Require(ctx, communityID, author, "", permission.View); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &Ticket{
		ID:          uuid.NewString(),
		CommunityID: communityID,
		CreatedBy:   author,
		Category:    category,
		Title:       title,
		Description: description,
		Status:      StatusOpen,
		Priority:    priority,
		Messages: []Message{{
			ID:        uuid.NewString(),
			AuthorID:  author,
			Content:   description,
			CreatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	putOp, err := s.repo.PutOp(t, 0)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Commit(ctx, putOp); err != nil {
		return nil, wrapErr(op, err)
	}

	s.log.Debug("ticket created", "community", communityID, "ticket", t.ID, "author", author)
	return t, nil
}

// Get returns a ticket to its author or to staff
func (s *Service) Get(ctx context.Context, communityID, ticketID, actor string) (*Ticket, error) {
	const op = "ticket.get"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	t, _, err := s.repo.Get(ctx, communityID, ticketID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	if t == nil {
		return nil, apperr.NotFound(op, "ticket %s not found", ticketID)
	}
	if _, err := s.authorizeView(ctx, op, t, actor); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns tickets newest first. Staff see every ticket of the
// community, other members only their own.
func (s *Service) List(ctx context.Context, communityID, actor string, status Status) ([]*Ticket, error) {
	const op = "ticket.list"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if status != "" && !status.Valid() {
		return nil, apperr.Validation(op, "unknown status %q", status)
	}
	if err := s.authz.Require(ctx, communityID, actor, "", permission.View); err != nil {
		return nil, err
	}
	staff, err := s.authz.IsStaff(ctx, communityID, actor)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	createdBy := actor
	if staff {
		createdBy = ""
	}
	tickets, err := s.repo.List(ctx, communityID, status, createdBy)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return tickets, nil
}

// Watch streams the ticket's state after every committed change until ctx
// is done. Access is checked once, when the watch starts.
func (s *Service) Watch(ctx context.Context, communityID, ticketID, actor string) (<-chan *Ticket, error) {
	if _, err := s.Get(ctx, communityID, ticketID, actor); err != nil {
		return nil, err
	}
	ch, err := s.repo.Watch(ctx, communityID, ticketID)
	if err != nil {
		return nil, wrapErr("ticket.watch", err)
	}
	return ch, nil
}

// AddMessage appends a reply. Closed tickets reject it with TicketClosed. A
// staff reply on an open ticket moves it to in_progress in the same write.
func (s *Service) AddMessage(ctx context.Context, communityID, ticketID, author string, req *AddMessageRequest) (*Ticket, error) {
	const op = "ticket.add_message"
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperr.Validation(op, "content is required")
	}

	return s.mutate(ctx, op, communityID, ticketID, author, func(ctx context.Context, t *Ticket, now time.Time) (bool, error) {
		staff, err := s.authorizeView(ctx, op, t, author)
		if err != nil {
			return false, err
		}
		if t.IsClosed() {
			return false, apperr.New(apperr.KindTicketClosed, op, "ticket %s is closed", t.ID)
		}
		t.Messages = append(t.Messages, Message{
			ID:        uuid.NewString(),
			AuthorID:  author,
			Content:   content,
			CreatedAt: now,
			IsStaff:   staff,
		})
		if staff && t.Status == StatusOpen {
			t.setStatus(StatusInProgress, now)
		}
		return true, nil
	})
}

// Assign hands the ticket to a staff member and starts work on an open ticket
func (s *Service) Assign(ctx context.Context, communityID, ticketID, actor string, req *AssignRequest) (*Ticket, error) {
	const op = "ticket.assign"
	assignee := strings.TrimSpace(req.UserID)
	if assignee == "" {
		return nil, apperr.Validation(op, "user_id is required")
	}

	return s.mutate(ctx, op, communityID, ticketID, actor, func(ctx context.Context, t *Ticket, now time.Time) (bool, error) {
		if err := s.authz.RequireStaff(ctx, communityID, actor); err != nil {
			return false, err
		}
		if t.IsClosed() {
			return false, apperr.New(apperr.KindTicketClosed, op, "ticket %s is closed", t.ID)
		}
		staff, err := s.authz.IsStaff(ctx, communityID, assignee)
		if err != nil {
			return false, err
		}
		if !staff {
			return false, apperr.Validation(op, "user %s is not staff", assignee)
		}
		changed := t.AssignedTo != assignee
		t.AssignedTo = assignee
		if t.Status == StatusOpen {
			t.setStatus(StatusInProgress, now)
			changed = true
		}
		return changed, nil
	})
}

// SetStatus moves the ticket through its lifecycle. Setting the current
// status again changes nothing; nothing leaves closed.
func (s *Service) SetStatus(ctx context.Context, communityID, ticketID, actor string, req *SetStatusRequest) (*Ticket, error) {
	const op = "ticket.set_status"
	next := req.Status
	if !next.Valid() {
		return nil, apperr.Validation(op, "unknown status %q", next)
	}

	return s.mutate(ctx, op, communityID, ticketID, actor, func(ctx context.Context, t *Ticket, now time.Time) (bool, error) {
		if err := s.authz.RequireStaff(ctx, communityID, actor); err != nil {
			return false, err
		}
		if t.IsClosed() {
			return false, apperr.New(apperr.KindTicketClosed, op, "ticket %s is closed", t.ID)
		}
		if t.Status == next {
			return false, nil
		}
		if !t.Status.CanTransition(next) {
			return false, apperr.Validation(op, "cannot move ticket from %s to %s", t.Status, next)
		}
		t.setStatus(next, now)
		return true, nil
	})
}

// authorizeView admits the ticket's author and staff, and reports whether
// the actor is staff
func (s *Service) authorizeView(ctx context.Context, op string, t *Ticket, actor string) (bool, error) {
	if err := s.authz.Require(ctx, t.CommunityID, actor, "", permission.View); err != nil {
		return false, err
	}
	staff, err := s.authz.IsStaff(ctx, t.CommunityID, actor)
	if err != nil {
		return false, err
	}
	if !staff && t.CreatedBy != actor {
		return false, apperr.Unauthorized(op, "only the author and staff can access ticket %s", t.ID)
	}
	return staff, nil
}

// mutate runs apply on a fresh read of the ticket and writes the result
// conditioned on the version read. apply reports whether anything changed;
// unchanged tickets are not written.
func (s *Service) mutate(ctx context.Context, op, communityID, ticketID, actor string, apply func(context.Context, *Ticket, time.Time) (bool, error)) (*Ticket, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var out *Ticket
	err := store.Retry(ctx, s.cfg.Retries, s.cfg.Backoff, func(ctx context.Context) error {
		t, version, err := s.repo.Get(ctx, communityID, ticketID)
		if err != nil {
			return err
		}
		if t == nil {
			return apperr.NotFound(op, "ticket %s not found", ticketID)
		}
		now := s.now().UTC()
		changed, err := apply(ctx, t, now)
		if err != nil {
			return err
		}
		out = t
		if !changed {
			return nil
		}
		t.UpdatedAt = now
		putOp, err := s.repo.PutOp(t, version)
		if err != nil {
			return err
		}
		return s.repo.Commit(ctx, putOp)
	})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	s.log.Debug("ticket updated", "op", op, "community", communityID, "ticket", ticketID, "status", out.Status, "actor", actor)
	return out, nil
}

func wrapErr(op string, err error) error {
	if errors.Is(err, store.ErrVersionConflict) {
		return apperr.Wrap(apperr.KindConflict, op, err)
	}
	return apperr.FromContext(op, err)
}
