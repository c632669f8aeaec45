package community

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/fkhayef/tourneyhub/internal/access"
	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/channel"
	"github.com/fkhayef/tourneyhub/internal/member"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/role"
	"github.com/fkhayef/tourneyhub/internal/store"
)

// Config bounds the service's operations
type Config struct {
	Timeout time.Duration
}

// Service creates communities and answers membership and permission queries
type Service struct {
	log      *slog.Logger
	store    store.Store
	roles    *role.Repository
	channels *channel.Repository
	members  *member.Repository
	authz    *access.Authorizer
	cfg      Config
	now      func() time.Time
}

// NewService creates a new community service
func NewService(log *slog.Logger, s store.Store, roles *role.Repository, channels *channel.Repository, members *member.Repository, authz *access.Authorizer, cfg Config) *Service {
	return &Service{log: log, store: s, roles: roles, channels: channels, members: members, authz: authz, cfg: cfg, now: time.Now}
}

// Create sets up a community in one commit: the default role, an organizer
// role held by the owner, the owner's participant record and the
// general, rules and announcements channels.
func (s *Service) Create(ctx context.Context, ownerID string, req *CreateCommunityRequest) (*Community, error) {
	const op = "community.create"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation(op, "name is required")
	}
	if ownerID == "" {
		return nil, apperr.Unauthorized(op, "owner is required")
	}

	now := s.now().UTC()
	c := &Community{
		ID:            uuid.NewString(),
		Name:          name,
		OwnerID:       ownerID,
		DefaultRoleID: uuid.NewString(),
		CreatedAt:     now,
	}
	everyone := &role.Role{
		ID:            c.DefaultRoleID,
		CommunityID:   c.ID,
		Name:          defaultRoleName,
		Permissions:   DefaultMemberPermissions,
		Position:      0,
		IsDefault:     true,
		AssignedUsers: role.UserSet{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	organizer := &role.Role{
		ID:            uuid.NewString(),
		CommunityID:   c.ID,
		Name:          organizerRoleName,
		Permissions:   permission.NewSet(permission.Administrator),
		Position:      1,
		AssignedUsers: role.NewUserSet(ownerID),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	owner := &member.Participant{
		CommunityID: c.ID,
		UserID:      ownerID,
		Status:      member.StatusActive,
		Role:        organizer.ID,
		JoinedAt:    now,
		UpdatedAt:   now,
	}
	readOnly := []permission.Overwrite{{
		SubjectID:   everyone.ID,
		SubjectType: permission.SubjectRole,
		Deny:        permission.NewSet(permission.SendMessage),
	}}
	channels := []*channel.Channel{
		s.autoChannel(c.ID, "general", channel.TypeGeneral, 0, nil, now),
		s.autoChannel(c.ID, "rules", channel.TypeRules, 1, readOnly, now),
		s.autoChannel(c.ID, "announcements", channel.TypeAnnouncement, 2, readOnly, now),
	}

	ops := make([]store.Op, 0, 4+len(channels))
	communityOp, err := store.PutOp(Collection, c.ID, c, 0)
	if err != nil {
		return nil, err
	}
	ops = append(ops, communityOp)
	for _, r := range []*role.Role{everyone, organizer} {
		roleOp, err := s.roles.PutOp(r, 0)
		if err != nil {
			return nil, err
		}
		ops = append(ops, roleOp)
	}
	memberOp, err := s.members.PutOp(owner, 0)
	if err != nil {
		return nil, err
	}
	ops = append(ops, memberOp)
	for _, ch := range channels {
		chOp, err := s.channels.PutOp(ch, 0)
		if err != nil {
			return nil, err
		}
		ops = append(ops, chOp)
	}

	if err := s.store.Commit(ctx, ops...); err != nil {
		return nil, apperr.FromContext(op, err)
	}

	s.log.Info("community created", "community", c.ID, "owner", ownerID)
	return c, nil
}

func (s *Service) autoChannel(communityID, name string, typ channel.Type, position int, overwrites []permission.Overwrite, now time.Time) *channel.Channel {
	if overwrites == nil {
		overwrites = []permission.Overwrite{}
	}
	return &channel.Channel{
		ID:          uuid.NewString(),
		CommunityID: communityID,
		Name:        name,
		Type:        typ,
		Position:    position,
		Overwrites:  append([]permission.Overwrite(nil), overwrites...),
		AutoCreated: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Get returns a community
func (s *Service) Get(ctx context.Context, communityID string) (*Community, error) {
	const op = "community.get"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	c, _, err := store.GetAs[Community](ctx, s.store, Collection, communityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(op, "community %s not found", communityID)
		}
		return nil, apperr.FromContext(op, err)
	}
	return c, nil
}

// ListMembers returns the community's participants to anyone who can view it
func (s *Service) ListMembers(ctx context.Context, communityID, actor string) ([]*member.Participant, error) {
	const op = "community.members"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.authz.Require(ctx, communityID, actor, "", permission.View); err != nil {
		return nil, err
	}
	list, err := s.members.ListByCommunity(ctx, communityID)
	if err != nil {
		return nil, apperr.FromContext(op, err)
	}
	return lo.Map(list, func(v store.Versioned[member.Participant], _ int) *member.Participant { return v.Value }), nil
}

// ResolvePermissions returns userID's effective permissions, in channelID
// when set. Looking up someone else needs manage-roles.
func (s *Service) ResolvePermissions(ctx context.Context, communityID, actor, userID, channelID string) (permission.Set, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if userID == "" {
		userID = actor
	}
	if userID != actor {
		if err := s.authz.Require(ctx, communityID, actor, "", permission.ManageRoles); err != nil {
			return 0, err
		}
	}
	return s.authz.Resolve(ctx, communityID, userID, channelID)
}
