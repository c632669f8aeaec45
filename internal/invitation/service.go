package invitation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/tourneyhub/internal/access"
	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/member"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/role"
	"github.com/fkhayef/tourneyhub/internal/store"
)

const (
	DefaultTTL = 7 * 24 * time.Hour

	// codeAttempts bounds regeneration after a code collision
	codeAttempts = 5
)

// Config bounds the service's operations
type Config struct {
	Timeout time.Duration
	// RedeemMaxAttempts bounds the compare-and-swap loop of a redemption
	RedeemMaxAttempts int
	Backoff           time.Duration
}

// Service creates, redeems and retires invitations
type Service struct {
	log     *slog.Logger
	repo    *Repository
	roles   *role.Repository
	members *member.Repository
	authz   *access.Authorizer
	cfg     Config
	now     func() time.Time
	newCode func() (string, error)
}

// NewService creates a new invitation service
func NewService(log *slog.Logger, repo *Repository, roles *role.Repository, members *member.Repository, authz *access.Authorizer, cfg Config) *Service {
	return &Service{
		log:     log,
		repo:    repo,
		roles:   roles,
		members: members,
		authz:   authz,
		cfg:     cfg,
		now:     time.Now,
		newCode: GenerateCode,
	}
}

func (s *Service) requireManage(ctx context.Context, communityID, actor string) error {
	return s.authz.Require(ctx, communityID, actor, "", permission.ManageTournament)
}

// Create issues a new invitation. The code is inserted with an insert-only
// write and regenerated when it collides with an existing one.
func (s *Service) Create(ctx context.Context, communityID, creator string, req *CreateInvitationRequest) (*Invitation, error) {
	const op = "invitation.create"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	maxUses, err := maxUsesFor(op, req)
	if err != nil {
		return nil, err
	}
	if req.TTLMinutes < 0 {
		return nil, apperr.Validation(op, "ttl cannot be negative")
	}
	if err := s.requireManage(ctx, communityID, creator); err != nil {
		return nil, err
	}
	if req.TargetRole != "" {
		r, _, err := s.roles.Get(ctx, communityID, req.TargetRole)
		if err != nil {
			return nil, apperr.FromContext(op, err)
		}
		if r == nil {
			return nil, apperr.NotFound(op, "role %s not found", req.TargetRole)
		}
		if r.Permissions.Has(permission.Administrator) {
			if err := s.authz.Require(ctx, communityID, creator, "", permission.Administrator); err != nil {
				return nil, err
			}
		}
	}

	ttl := DefaultTTL
	if req.TTLMinutes > 0 {
		ttl = time.Duration(req.TTLMinutes) * time.Minute
	}
	now := s.now().UTC()
	inv := &Invitation{
		CommunityID: communityID,
		CreatedBy:   creator,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		MaxUses:     maxUses,
		IsActive:    true,
		TargetRole:  req.TargetRole,
		Type:        req.Type,
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, op, err)
		}
		inv.Code = code
		putOp, err := s.repo.PutOp(inv, 0)
		if err != nil {
			return nil, err
		}
		err = s.repo.Commit(ctx, putOp)
		if errors.Is(err, store.ErrVersionConflict) {
			s.log.Debug("invitation code collision", "code", code)
			continue
		}
		if err != nil {
			return nil, apperr.FromContext(op, err)
		}
		s.log.Debug("invitation created", "community", communityID, "code", code, "actor", creator)
		return inv, nil
	}
	return nil, apperr.New(apperr.KindConflict, op, "could not allocate a unique code")
}

func maxUsesFor(op string, req *CreateInvitationRequest) (int, error) {
	switch req.Type {
	case TypeSingle:
		return 1, nil
	case TypeUnlimited:
		return Unlimited, nil
	case TypeMulti:
		if req.MaxUses < 1 {
			return 0, apperr.Validation(op, "multi-use invitations need max_uses of at least 1")
		}
		return req.MaxUses, nil
	}
	return 0, apperr.Validation(op, "unknown invitation type %q", req.Type)
}

// Get returns an invitation by code, for previewing before redemption
func (s *Service) Get(ctx context.Context, code string) (*Invitation, error) {
	const op = "invitation.get"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	normalized, err := NormalizeCode(code)
	if err != nil {
		return nil, apperr.New(apperr.KindInvitationInvalid, op, "%v", err)
	}
	inv, _, err := s.repo.Get(ctx, normalized)
	if err != nil {
		return nil, apperr.FromContext(op, err)
	}
	if inv == nil {
		return nil, apperr.New(apperr.KindInvitationInvalid, op, "unknown invitation code")
	}
	return inv, nil
}

// List returns a community's invitations
func (s *Service) List(ctx context.Context, communityID, actor string) ([]*Invitation, error) {
	const op = "invitation.list"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.requireManage(ctx, communityID, actor); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByCommunity(ctx, communityID)
	if err != nil {
		return nil, apperr.FromContext(op, err)
	}
	return list, nil
}

// Usages returns the redemption log of an invitation
func (s *Service) Usages(ctx context.Context, communityID, code, actor string) ([]*Usage, error) {
	const op = "invitation.usages"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.requireManage(ctx, communityID, actor); err != nil {
		return nil, err
	}
	inv, err := s.inCommunity(ctx, op, communityID, code)
	if err != nil {
		return nil, err
	}
	usages, err := s.repo.ListUsages(ctx, inv.Code)
	if err != nil {
		return nil, apperr.FromContext(op, err)
	}
	return usages, nil
}

// Redeem joins userID to the invitation's community and grants its target
// role. Checks run in order: unknown or malformed code, inactive, expired,
// exhausted. The use counter, usage record, participant and role assignment
// are written in one commit conditioned on the versions read, and the whole
// cycle is retried on conflict up to RedeemMaxAttempts times.
func (s *Service) Redeem(ctx context.Context, code, userID string) (*RedeemResult, error) {
	const op = "invitation.redeem"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if userID == "" {
		return nil, apperr.Unauthorized(op, "user is required")
	}
	normalized, err := NormalizeCode(code)
	if err != nil {
		return nil, apperr.New(apperr.KindInvitationInvalid, op, "%v", err)
	}

	var result *RedeemResult
	err = store.Retry(ctx, s.cfg.RedeemMaxAttempts, s.cfg.Backoff, func(ctx context.Context) error {
		r, err := s.tryRedeem(ctx, op, normalized, userID)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			s.log.Warn("invitation redemption starved", "code", normalized, "user", userID)
			return nil, apperr.Wrap(apperr.KindRedeemConflict, op, err)
		}
		return nil, apperr.FromContext(op, err)
	}

	s.log.Debug("invitation redeemed", "code", normalized, "user", userID, "role", result.GrantedRole)
	return result, nil
}

// RedeemLink redeems the code of an app://join/{code} link
func (s *Service) RedeemLink(ctx context.Context, link, userID string) (*RedeemResult, error) {
	code, err := ParseDeepLink(link)
	if err != nil {
		return nil, apperr.New(apperr.KindInvitationInvalid, "invitation.redeem_link", "%v", err)
	}
	return s.Redeem(ctx, code, userID)
}

func (s *Service) tryRedeem(ctx context.Context, op, code, userID string) (*RedeemResult, error) {
	inv, invVersion, err := s.repo.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	switch {
	case inv == nil:
		return nil, apperr.New(apperr.KindInvitationInvalid, op, "unknown invitation code")
	case !inv.IsActive:
		return nil, apperr.New(apperr.KindInvitationInactive, op, "invitation has been deactivated")
	case inv.Expired(now):
		return nil, apperr.New(apperr.KindInvitationExpired, op, "invitation expired at %s", inv.ExpiresAt.Format(time.RFC3339))
	case inv.Exhausted():
		return nil, apperr.New(apperr.KindInvitationExhausted, op, "invitation has no uses left")
	}

	p, memberVersion, err := s.members.Get(ctx, inv.CommunityID, userID)
	if err != nil {
		return nil, err
	}
	if p.IsBanned() {
		return nil, apperr.Unauthorized(op, "user is banned from this community")
	}

	var target *role.Role
	var targetVersion int64
	roleID := inv.TargetRole
	if roleID != "" {
		target, targetVersion, err = s.roles.Get(ctx, inv.CommunityID, roleID)
		if err != nil {
			return nil, err
		}
		if target == nil {
			return nil, apperr.NotFound(op, "target role %s no longer exists", roleID)
		}
		if target.IsDefault {
			target = nil
		}
	}
	if target == nil {
		def, _, err := s.roles.Default(ctx, inv.CommunityID)
		if err != nil {
			return nil, err
		}
		roleID = def.ID
	}

	result := &RedeemResult{CommunityID: inv.CommunityID, GrantedRole: roleID}
	if p != nil && (target == nil || target.AssignedUsers.Has(userID)) {
		result.AlreadyMember = true
		return result, nil
	}

	inv.CurrentUses++
	invOp, err := s.repo.PutOp(inv, invVersion)
	if err != nil {
		return nil, err
	}
	usageOp, err := s.repo.UsageOp(&Usage{
		ID:           uuid.NewString(),
		InvitationID: inv.Code,
		CommunityID:  inv.CommunityID,
		UserID:       userID,
		UsedAt:       now,
	})
	if err != nil {
		return nil, err
	}
	ops := []store.Op{invOp, usageOp}

	if p == nil {
		p = &member.Participant{
			CommunityID: inv.CommunityID,
			UserID:      userID,
			Status:      member.StatusActive,
			JoinedAt:    now,
		}
		memberVersion = 0
	}
	p.Role = roleID
	p.UpdatedAt = now
	memberOp, err := s.members.PutOp(p, memberVersion)
	if err != nil {
		return nil, err
	}
	ops = append(ops, memberOp)

	if target != nil {
		target.Assign(userID)
		target.UpdatedAt = now
		roleOp, err := s.roles.PutOp(target, targetVersion)
		if err != nil {
			return nil, err
		}
		ops = append(ops, roleOp)
	}

	if err := s.repo.Commit(ctx, ops...); err != nil {
		return nil, err
	}
	return result, nil
}

// Deactivate stops an invitation from being redeemed. Deactivating an
// inactive invitation succeeds without writing.
func (s *Service) Deactivate(ctx context.Context, communityID, code, actor string) (*Invitation, error) {
	const op = "invitation.deactivate"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.requireManage(ctx, communityID, actor); err != nil {
		return nil, err
	}

	var out *Invitation
	err := store.Retry(ctx, s.cfg.RedeemMaxAttempts, s.cfg.Backoff, func(ctx context.Context) error {
		inv, version, err := s.getInCommunity(ctx, op, communityID, code)
		if err != nil {
			return err
		}
		out = inv
		if !inv.IsActive {
			return nil
		}
		inv.IsActive = false
		putOp, err := s.repo.PutOp(inv, version)
		if err != nil {
			return err
		}
		return s.repo.Commit(ctx, putOp)
	})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	s.log.Debug("invitation deactivated", "community", communityID, "code", out.Code, "actor", actor)
	return out, nil
}

// Delete hard-removes an invitation. Its usage records are kept.
func (s *Service) Delete(ctx context.Context, communityID, code, actor string) error {
	const op = "invitation.delete"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.requireManage(ctx, communityID, actor); err != nil {
		return err
	}
	err := store.Retry(ctx, s.cfg.RedeemMaxAttempts, s.cfg.Backoff, func(ctx context.Context) error {
		inv, version, err := s.getInCommunity(ctx, op, communityID, code)
		if err != nil {
			return err
		}
		return s.repo.Commit(ctx, s.repo.DeleteOp(inv.Code, version))
	})
	if err != nil {
		return wrapErr(op, err)
	}
	s.log.Debug("invitation deleted", "community", communityID, "code", code, "actor", actor)
	return nil
}

func (s *Service) inCommunity(ctx context.Context, op, communityID, code string) (*Invitation, error) {
	inv, _, err := s.getInCommunity(ctx, op, communityID, code)
	return inv, err
}

// getInCommunity loads an invitation and hides ones of other communities
func (s *Service) getInCommunity(ctx context.Context, op, communityID, code string) (*Invitation, int64, error) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return nil, 0, apperr.NotFound(op, "invitation %s not found", code)
	}
	inv, version, err := s.repo.Get(ctx, normalized)
	if err != nil {
		return nil, 0, err
	}
	if inv == nil || inv.CommunityID != communityID {
		return nil, 0, apperr.NotFound(op, "invitation %s not found", normalized)
	}
	return inv, version, nil
}

func wrapErr(op string, err error) error {
	if errors.Is(err, store.ErrVersionConflict) {
		return apperr.Wrap(apperr.KindConflict, op, err)
	}
	return apperr.FromContext(op, err)
}
