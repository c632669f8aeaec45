package channel

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
	"github.com/fkhayef/tourneyhub/internal/role"
	"github.com/fkhayef/tourneyhub/internal/store"
)

// Config bounds the service's operations
type Config struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// Service handles channels and their permission overwrites
type Service struct {
	log   *slog.Logger
	repo  *Repository
	roles *role.Repository
	authz *access.Authorizer
	cfg   Config
	now   func() time.Time
}

// NewService creates a new channel service
func NewService(log *slog.Logger, repo *Repository, roles *role.Repository, authz *access.Authorizer, cfg Config) *Service {
	return &Service{log: log, repo: repo, roles: roles, authz: authz, cfg: cfg, now: time.Now}
}

// Create adds a channel to a community
func (s *Service) Create(ctx context.Context, communityID, actor string, req *CreateChannelRequest) (*Channel, error) {
	const op = "channel.create"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation(op, "name is required")
	}
	typ := req.Type
	if typ == "" {
		typ = TypeText
	}
	if !typ.Valid() {
		return nil, apperr.Validation(op, "unknown channel type %q", req.Type)
	}
	if req.ParentID != "" {
		parent, _, err := s.repo.Get(ctx, communityID, req.ParentID)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		if parent == nil {
			return nil, apperr.NotFound(op, "parent channel %s not found", req.ParentID)
		}
	}
	if err := s.authz.Require(ctx, communityID, actor, req.ParentID, permission.ManageChannels); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ch := &Channel{
		ID:          uuid.NewString(),
		CommunityID: communityID,
		Name:        name,
		Type:        typ,
		Position:    req.Position,
		ParentID:    req.ParentID,
		Overwrites:  []permission.Overwrite{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	putOp, err := s.repo.PutOp(ch, 0)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Commit(ctx, putOp); err != nil {
		return nil, wrapErr(op, err)
	}

	s.log.Debug("channel created", "community", communityID, "channel", ch.ID, "actor", actor)
	return ch, nil
}

// Get returns a channel the actor can view
func (s *Service) Get(ctx context.Context, communityID, channelID, actor string) (*Channel, error) {
	const op = "channel.get"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	ch, _, err := s.repo.Get(ctx, communityID, channelID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	if ch == nil {
		return nil, apperr.NotFound(op, "channel %s not found", channelID)
	}
	if err := s.authz.Require(ctx, communityID, actor, channelID, permission.View); err != nil {
		return nil, err
	}
	return ch, nil
}

// List returns the channels the actor can view, by position
func (s *Service) List(ctx context.Context, communityID, actor string) ([]*Channel, error) {
	const op = "channel.list"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	channels, err := s.repo.List(ctx, communityID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	out := make([]*Channel, 0, len(channels))
	for _, v := range channels {
		set, err := s.authz.Resolve(ctx, communityID, actor, v.Value.ID)
		if err != nil {
			return nil, err
		}
		if set.Has(permission.View) {
			out = append(out, v.Value)
		}
	}
	return out, nil
}

// Delete removes a channel. Channels created with the community cannot be deleted.
func (s *Service) Delete(ctx context.Context, communityID, channelID, actor string) error {
	const op = "channel.delete"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err := store.Retry(ctx, s.cfg.Retries, s.cfg.Backoff, func(ctx context.Context) error {
		ch, version, err := s.repo.Get(ctx, communityID, channelID)
		if err != nil {
			return err
		}
		if ch == nil {
			return apperr.NotFound(op, "channel %s not found", channelID)
		}
		if ch.AutoCreated {
			return apperr.Validation(op, "channel %s was created with the community and cannot be deleted", ch.Name)
		}
		if err := s.authz.Require(ctx, communityID, actor, ch.ParentID, permission.ManageChannels); err != nil {
			return err
		}
		return s.repo.Commit(ctx, s.repo.DeleteOp(communityID, channelID, version))
	})
	if err != nil {
		return wrapErr(op, err)
	}
	s.log.Debug("channel deleted", "community", communityID, "channel", channelID, "actor", actor)
	return nil
}

// GetOverwrites returns a channel's overwrites in stored order
func (s *Service) GetOverwrites(ctx context.Context, communityID, channelID, actor string) ([]permission.Overwrite, error) {
	ch, err := s.Get(ctx, communityID, channelID, actor)
	if err != nil {
		return nil, err
	}
	return ch.Overwrites, nil
}

// SetOverwrite merges an allow/deny overwrite into the subject's existing one,
// last write winning per permission. It needs manage-channels resolved
// against the channel's parent, or at community level for top-level channels.
func (s *Service) SetOverwrite(ctx context.Context, communityID, channelID, actor string, req *SetOverwriteRequest) (*Channel, error) {
	const op = "channel.set_overwrite"
	ow := permission.Overwrite{SubjectID: req.SubjectID, SubjectType: req.SubjectType, Allow: req.Allow, Deny: req.Deny}
	if ow.SubjectID == "" {
		return nil, apperr.Validation(op, "subject_id is required")
	}
	if ow.SubjectType != permission.SubjectRole && ow.SubjectType != permission.SubjectUser {
		return nil, apperr.Validation(op, "unknown subject type %q", ow.SubjectType)
	}
	if ow.Overlaps() {
		return nil, apperr.Validation(op, "permissions both allowed and denied: %v", ow.Allow.Intersect(ow.Deny).Strings())
	}

	return s.mutate(ctx, op, communityID, channelID, actor, func(ctx context.Context, ch *Channel) error {
		if ow.SubjectType == permission.SubjectRole {
			r, _, err := s.roles.Get(ctx, communityID, ow.SubjectID)
			if err != nil {
				return err
			}
			if r == nil {
				return apperr.NotFound(op, "role %s not found", ow.SubjectID)
			}
		}
		ch.SetOverwrite(ow)
		return nil
	})
}

// RemoveOverwrite drops the overwrite for one subject; removing a missing one is a no-op
func (s *Service) RemoveOverwrite(ctx context.Context, communityID, channelID, actor string, subjectType permission.SubjectType, subjectID string) (*Channel, error) {
	const op = "channel.remove_overwrite"
	return s.mutate(ctx, op, communityID, channelID, actor, func(_ context.Context, ch *Channel) error {
		ch.RemoveOverwrite(subjectType, subjectID)
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, op, communityID, channelID, actor string, apply func(context.Context, *Channel) error) (*Channel, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var out *Channel
	err := store.Retry(ctx, s.cfg.Retries, s.cfg.Backoff, func(ctx context.Context) error {
		ch, version, err := s.repo.Get(ctx, communityID, channelID)
		if err != nil {
			return err
		}
		if ch == nil {
			return apperr.NotFound(op, "channel %s not found", channelID)
		}
		if err := s.authz.Require(ctx, communityID, actor, ch.ParentID, permission.ManageChannels); err != nil {
			return err
		}
		if err := apply(ctx, ch); err != nil {
			return err
		}
		ch.UpdatedAt = s.now().UTC()
		putOp, err := s.repo.PutOp(ch, version)
		if err != nil {
			return err
		}
		if err := s.repo.Commit(ctx, putOp); err != nil {
			return err
		}
		out = ch
		return nil
	})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	s.log.Debug("channel overwrites changed", "op", op, "community", communityID, "channel", channelID, "actor", actor)
	return out, nil
}

func wrapErr(op string, err error) error {
	if errors.Is(err, store.ErrVersionConflict) {
		return apperr.Wrap(apperr.KindConflict, op, err)
	}
	return apperr.FromContext(op, err)
}
