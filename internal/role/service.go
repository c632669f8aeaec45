package role

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
	"github.com/fkhayef/tourneyhub/internal/member"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/store"
)

// Config bounds the service's operations
type Config struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// Service handles role business logic
type Service struct {
	log     *slog.Logger
	repo    *Repository
	members *member.Repository
	authz   *access.Authorizer
	cfg     Config
	now     func() time.Time
}

// NewService creates a new role service
func NewService(log *slog.Logger, repo *Repository, members *member.Repository, authz *access.Authorizer, cfg Config) *Service {
	return &Service{log: log, repo: repo, members: members, authz: authz, cfg: cfg, now: time.Now}
}

// authorizeManage checks manage-roles, and administrator when grants includes it
func (s *Service) authorizeManage(ctx context.Context, op, communityID, actor string, grants permission.Set) error {
	set, err := s.authz.Resolve(ctx, communityID, actor, "")
	if err != nil {
		return err
	}
	if !set.Has(permission.ManageRoles) {
		return apperr.Unauthorized(op, "manage-roles required")
	}
	if grants.Has(permission.Administrator) && !set.Has(permission.Administrator) {
		return apperr.Unauthorized(op, "only administrators can manage administrator roles")
	}
	return nil
}

// Create adds a role to a community
func (s *Service) Create(ctx context.Context, communityID, actor string, req *CreateRoleRequest) (*Role, error) {
	const op = "role.create"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation(op, "name is required")
	}
	if err := s.authorizeManage(ctx, op, communityID, actor, req.Permissions); err != nil {
		return nil, err
	}

	position := 0
	if req.Position != nil {
		position = *req.Position
	} else {
		roles, err := s.repo.List(ctx, communityID)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		if len(roles) == 0 {
			return nil, apperr.NotFound(op, "community %s not found", communityID)
		}
		position = lo.MaxBy(roles, func(a, b store.Versioned[Role]) bool {
			return a.Value.Position > b.Value.Position
		}).Value.Position + 1
	}

	now := s.now().UTC()
	role := &Role{
		ID:            uuid.NewString(),
		CommunityID:   communityID,
		Name:          name,
		Color:         req.Color,
		Permissions:   req.Permissions,
		Position:      position,
		Mentionable:   req.Mentionable,
		AssignedUsers: UserSet{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	putOp, err := s.repo.PutOp(role, 0)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Commit(ctx, putOp); err != nil {
		return nil, wrapErr(op, err)
	}

	s.log.Debug("role created", "community", communityID, "role", role.ID, "actor", actor)
	return role, nil
}

// Get returns one role, visible to anyone who can view the community
func (s *Service) Get(ctx context.Context, communityID, roleID, actor string) (*Role, error) {
	const op = "role.get"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.authz.Require(ctx, communityID, actor, "", permission.View); err != nil {
		return nil, err
	}
	role, _, err := s.repo.Get(ctx, communityID, roleID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	if role == nil {
		return nil, apperr.NotFound(op, "role %s not found", roleID)
	}
	return role, nil
}

// List returns the community's roles by ascending position
func (s *Service) List(ctx context.Context, communityID, actor string) ([]*Role, error) {
	const op = "role.list"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.authz.Require(ctx, communityID, actor, "", permission.View); err != nil {
		return nil, err
	}
	roles, err := s.repo.List(ctx, communityID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return lo.Map(roles, func(v store.Versioned[Role], _ int) *Role { return v.Value }), nil
}

// Update applies a partial update to a role
func (s *Service) Update(ctx context.Context, communityID, roleID, actor string, req *UpdateRoleRequest) (*Role, error) {
	const op = "role.update"
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, apperr.Validation(op, "name cannot be empty")
	}
	return s.mutate(ctx, op, communityID, roleID, actor, func(role *Role) error {
		if req.Permissions != nil {
			touched := role.Permissions.Union(*req.Permissions)
			if err := s.authorizeManage(ctx, op, communityID, actor, touched); err != nil {
				return err
			}
			role.Permissions = *req.Permissions
		}
		if req.Name != nil {
			role.Name = strings.TrimSpace(*req.Name)
		}
		if req.Color != nil {
			role.Color = *req.Color
		}
		if req.Position != nil {
			role.Position = *req.Position
		}
		if req.Mentionable != nil {
			role.Mentionable = *req.Mentionable
		}
		return nil
	})
}

// SetPermissions replaces a role's permission set
func (s *Service) SetPermissions(ctx context.Context, communityID, roleID, actor string, perms permission.Set) (*Role, error) {
	return s.Update(ctx, communityID, roleID, actor, &UpdateRoleRequest{Permissions: &perms})
}

// Assign gives a role to a participant
func (s *Service) Assign(ctx context.Context, communityID, roleID, actor, userID string) (*Role, error) {
	const op = "role.assign"
	return s.mutate(ctx, op, communityID, roleID, actor, func(role *Role) error {
		if role.IsDefault {
			return apperr.Validation(op, "the default role is held by every member")
		}
		p, _, err := s.members.Get(ctx, communityID, userID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperr.NotFound(op, "user %s is not a member", userID)
		}
		role.Assign(userID)
		return nil
	})
}

// Unassign takes a role away from a user
func (s *Service) Unassign(ctx context.Context, communityID, roleID, actor, userID string) (*Role, error) {
	const op = "role.unassign"
	return s.mutate(ctx, op, communityID, roleID, actor, func(role *Role) error {
		if role.IsDefault {
			return apperr.Validation(op, "the default role is held by every member")
		}
		role.Unassign(userID)
		return nil
	})
}

// Delete removes a role. The default role cannot be deleted.
func (s *Service) Delete(ctx context.Context, communityID, roleID, actor string) error {
	const op = "role.delete"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err := store.Retry(ctx, s.cfg.Retries, s.cfg.Backoff, func(ctx context.Context) error {
		role, version, err := s.repo.Get(ctx, communityID, roleID)
		if err != nil {
			return err
		}
		if role == nil {
			return apperr.NotFound(op, "role %s not found", roleID)
		}
		if role.IsDefault {
			return apperr.Validation(op, "the default role cannot be deleted")
		}
		if err := s.authorizeManage(ctx, op, communityID, actor, role.Permissions); err != nil {
			return err
		}
		return s.repo.Commit(ctx, s.repo.DeleteOp(communityID, roleID, version))
	})
	if err != nil {
		return wrapErr(op, err)
	}
	s.log.Debug("role deleted", "community", communityID, "role", roleID, "actor", actor)
	return nil
}

// mutate runs a read-modify-write cycle on one role under manage-roles.
// Roles granting administrator can only be touched by administrators.
func (s *Service) mutate(ctx context.Context, op, communityID, roleID, actor string, apply func(*Role) error) (*Role, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var out *Role
	err := store.Retry(ctx, s.cfg.Retries, s.cfg.Backoff, func(ctx context.Context) error {
		role, version, err := s.repo.Get(ctx, communityID, roleID)
		if err != nil {
			return err
		}
		if role == nil {
			return apperr.NotFound(op, "role %s not found", roleID)
		}
		if err := s.authorizeManage(ctx, op, communityID, actor, role.Permissions); err != nil {
			return err
		}
		if err := apply(role); err != nil {
			return err
		}
		role.UpdatedAt = s.now().UTC()
		putOp, err := s.repo.PutOp(role, version)
		if err != nil {
			return err
		}
		if err := s.repo.Commit(ctx, putOp); err != nil {
			return err
		}
		out = role
		return nil
	})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	s.log.Debug("role updated", "op", op, "community", communityID, "role", roleID, "actor", actor)
	return out, nil
}

func wrapErr(op string, err error) error {
	if errors.Is(err, store.ErrVersionConflict) {
		return apperr.Wrap(apperr.KindConflict, op, err)
	}
	return apperr.FromContext(op, err)
}
