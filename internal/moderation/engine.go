package moderation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/tourneyhub/internal/access"
	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/member"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/role"
	"github.com/fkhayef/tourneyhub/internal/store"
)

// DefaultWarnThreshold is the warning count that marks a participant warned
const DefaultWarnThreshold = 3

// errSkip ends an expiry whose sanction was lifted or extended meanwhile
var errSkip = errors.New("sanction no longer expired")

// Config bounds the engine's operations
type Config struct {
	Timeout       time.Duration
	Retries       int
	Backoff       time.Duration
	WarnThreshold int
}

// Engine applies moderation actions. The effect on the participant (and on
// role assignments) and the audit record are written in one commit.
type Engine struct {
	log     *slog.Logger
	repo    *Repository
	members *member.Repository
	roles   *role.Repository
	authz   *access.Authorizer
	cfg     Config
	now     func() time.Time
}

// NewEngine creates a new moderation engine
func NewEngine(log *slog.Logger, repo *Repository, members *member.Repository, roles *role.Repository, authz *access.Authorizer, cfg Config) *Engine {
	if cfg.WarnThreshold <= 0 {
		cfg.WarnThreshold = DefaultWarnThreshold
	}
	return &Engine{log: log, repo: repo, members: members, roles: roles, authz: authz, cfg: cfg, now: time.Now}
}

// Execute authorizes actor for the action, validates it and applies it
func (e *Engine) Execute(ctx context.Context, communityID, actor string, in *ActionInput) (*Action, error) {
	const op = "moderation.execute"
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if !in.Type.Valid() {
		return nil, apperr.Validation(op, "unknown action type %q", in.Type)
	}
	if err := e.authz.RequireAny(ctx, communityID, actor, "", required[in.Type]); err != nil {
		return nil, err
	}
	if err := validate(op, actor, in); err != nil {
		return nil, err
	}
	if err := e.protectAdministrators(ctx, op, communityID, actor, in.TargetUserID); err != nil {
		return nil, err
	}

	a, err := e.apply(ctx, op, communityID, actor, in, nil)
	if err != nil {
		return nil, err
	}
	e.log.Debug("moderation action applied", "community", communityID, "type", a.Type, "target", a.TargetUserID, "actor", actor)
	return a, nil
}

func validate(op, actor string, in *ActionInput) error {
	in.Reason = strings.TrimSpace(in.Reason)
	in.TargetUserID = strings.TrimSpace(in.TargetUserID)
	switch {
	case in.Reason == "":
		return apperr.Validation(op, "reason is required")
	case in.TargetUserID == "":
		return apperr.Validation(op, "target_user_id is required")
	case in.TargetUserID == actor:
		return apperr.Validation(op, "cannot %s yourself", in.Type)
	case in.DurationMinutes != nil && !in.Type.Timed():
		return apperr.Validation(op, "%s does not take a duration", in.Type)
	case in.DurationMinutes != nil && *in.DurationMinutes <= 0:
		return apperr.Validation(op, "duration must be positive")
	case in.Type == ActionRoleChange && in.NewRole == "":
		return apperr.Validation(op, "new_role is required")
	case in.Type != ActionRoleChange && in.NewRole != "":
		return apperr.Validation(op, "new_role only applies to role_change")
	}
	return nil
}

// protectAdministrators keeps non-administrators from acting on administrators
func (e *Engine) protectAdministrators(ctx context.Context, op, communityID, actor, target string) error {
	targetSet, err := e.authz.Resolve(ctx, communityID, target, "")
	if err != nil {
		return err
	}
	if !targetSet.Has(permission.Administrator) {
		return nil
	}
	actorSet, err := e.authz.Resolve(ctx, communityID, actor, "")
	if err != nil {
		return err
	}
	if !actorSet.Has(permission.Administrator) {
		return apperr.Unauthorized(op, "only administrators can moderate administrators")
	}
	return nil
}

// apply reads the target, computes the transition and commits it with the
// audit record, retrying the whole cycle on a version conflict. guard, when
// set, can abandon the action after the read with errSkip.
func (e *Engine) apply(ctx context.Context, op, communityID, moderator string, in *ActionInput, guard func(*member.Participant, time.Time) bool) (*Action, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var out *Action
	err := store.Retry(ctx, e.cfg.Retries, e.cfg.Backoff, func(ctx context.Context) error {
		now := e.now().UTC()
		p, version, err := e.members.Get(ctx, communityID, in.TargetUserID)
		if err != nil {
			return err
		}
		if guard != nil && !guard(p, now) {
			return errSkip
		}

		a := &Action{
			ID:              uuid.NewString(),
			CommunityID:     communityID,
			Type:            in.Type,
			TargetUserID:    in.TargetUserID,
			ModeratorID:     moderator,
			Reason:          in.Reason,
			Timestamp:       now,
			DurationMinutes: in.DurationMinutes,
		}
		if p != nil {
			a.Details = Details{PreviousStatus: p.Status, PreviousRole: p.Role, PreviousWarnings: p.Warnings}
		}

		ops, err := e.transition(ctx, op, communityID, moderator, in, p, version, a, now)
		if err != nil {
			return err
		}
		insertOp, err := e.repo.InsertOp(a)
		if err != nil {
			return err
		}
		if err := e.repo.Commit(ctx, append(ops, insertOp)...); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return out, nil
}

// transition builds the writes that apply in to the participant p, read at version
func (e *Engine) transition(ctx context.Context, op, communityID, moderator string, in *ActionInput, p *member.Participant, version int64, a *Action, now time.Time) ([]store.Op, error) {
	if p == nil && in.Type != ActionBan {
		return nil, apperr.NotFound(op, "user %s is not a participant", in.TargetUserID)
	}

	var ops []store.Op
	switch in.Type {
	case ActionBan:
		if p == nil {
			// banned before joining; JoinedAt stays zero
			p = &member.Participant{CommunityID: communityID, UserID: in.TargetUserID}
			version = 0
		}
		p.Status = member.StatusBanned
		p.SanctionExpiresAt = expiry(in, now)

	case ActionUnban:
		if !p.IsBanned() {
			return nil, apperr.Validation(op, "user %s is not banned", in.TargetUserID)
		}
		if p.JoinedAt.IsZero() {
			return []store.Op{e.members.DeleteOp(communityID, p.UserID, version)}, nil
		}
		p.Status = member.StatusActive
		p.SanctionExpiresAt = nil

	case ActionMute:
		if p.IsBanned() {
			return nil, apperr.Validation(op, "user %s is banned", in.TargetUserID)
		}
		p.Status = member.StatusMuted
		p.SanctionExpiresAt = expiry(in, now)

	case ActionUnmute:
		if !p.IsMuted() {
			return nil, apperr.Validation(op, "user %s is not muted", in.TargetUserID)
		}
		p.Status = member.StatusActive
		p.SanctionExpiresAt = nil

	case ActionWarn:
		p.Warnings++
		// a warning never downgrades a ban or mute
		if p.Warnings >= e.cfg.WarnThreshold && !p.IsBanned() && !p.IsMuted() {
			p.Status = member.StatusWarned
		}

	case ActionKick:
		roleOps, err := e.unassignAll(ctx, communityID, p.UserID)
		if err != nil {
			return nil, err
		}
		return append(roleOps, e.members.DeleteOp(communityID, p.UserID, version)), nil

	case ActionRoleChange:
		roleOps, err := e.moveRole(ctx, op, communityID, moderator, p, in.NewRole)
		if err != nil {
			return nil, err
		}
		ops = roleOps
		a.Details.NewRole = p.Role
	}

	p.UpdatedAt = now
	putOp, err := e.members.PutOp(p, version)
	if err != nil {
		return nil, err
	}
	return append(ops, putOp), nil
}

func expiry(in *ActionInput, now time.Time) *time.Time {
	if in.DurationMinutes == nil {
		return nil
	}
	at := now.Add(time.Duration(*in.DurationMinutes) * time.Minute)
	return &at
}

// unassignAll removes userID from every role holding it
func (e *Engine) unassignAll(ctx context.Context, communityID, userID string) ([]store.Op, error) {
	roles, err := e.roles.List(ctx, communityID)
	if err != nil {
		return nil, err
	}
	var ops []store.Op
	for _, v := range roles {
		if !v.Value.Unassign(userID) {
			continue
		}
		putOp, err := e.roles.PutOp(v.Value, v.Version)
		if err != nil {
			return nil, err
		}
		ops = append(ops, putOp)
	}
	return ops, nil
}

// moveRole replaces p's role with roleID and moves the role assignment with it
func (e *Engine) moveRole(ctx context.Context, op, communityID, moderator string, p *member.Participant, roleID string) ([]store.Op, error) {
	next, nextVersion, err := e.roles.Get(ctx, communityID, roleID)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, apperr.NotFound(op, "role %s not found", roleID)
	}
	if p.Role == next.ID {
		return nil, apperr.Validation(op, "user %s already has role %s", p.UserID, next.Name)
	}
	if next.Permissions.Has(permission.Administrator) && moderator != SystemModerator {
		if err := e.authz.Require(ctx, communityID, moderator, "", permission.Administrator); err != nil {
			return nil, err
		}
	}

	var ops []store.Op
	if p.Role != "" {
		prev, prevVersion, err := e.roles.Get(ctx, communityID, p.Role)
		if err != nil {
			return nil, err
		}
		if prev != nil && !prev.IsDefault && prev.Unassign(p.UserID) {
			putOp, err := e.roles.PutOp(prev, prevVersion)
			if err != nil {
				return nil, err
			}
			ops = append(ops, putOp)
		}
	}
	if !next.IsDefault && next.Assign(p.UserID) {
		putOp, err := e.roles.PutOp(next, nextVersion)
		if err != nil {
			return nil, err
		}
		ops = append(ops, putOp)
	}
	p.Role = next.ID
	return ops, nil
}

// History returns the audit log of a community, optionally for one target
func (e *Engine) History(ctx context.Context, communityID, actor, targetUserID string) ([]*Action, error) {
	const op = "moderation.history"
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if err := e.authz.Require(ctx, communityID, actor, "", permission.ViewAuditLog); err != nil {
		return nil, err
	}
	actions, err := e.repo.List(ctx, communityID, targetUserID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return actions, nil
}

// ExpireSanctions lifts timed bans and mutes that have run out, recording a
// system unban or unmute for each. An empty communityID covers every community.
func (e *Engine) ExpireSanctions(ctx context.Context, communityID string) ([]*Action, error) {
	const op = "moderation.expire_sanctions"

	list, err := e.members.ListExpiredSanctions(ctx, communityID, e.now().UTC())
	if err != nil {
		return nil, wrapErr(op, err)
	}

	var out []*Action
	for _, v := range list {
		p := v.Value
		in := &ActionInput{Type: ActionUnmute, TargetUserID: p.UserID, Reason: "sanction expired"}
		want := member.StatusMuted
		if p.IsBanned() {
			in.Type = ActionUnban
			want = member.StatusBanned
		}
		a, err := e.apply(ctx, op, p.CommunityID, SystemModerator, in, func(current *member.Participant, now time.Time) bool {
			return current.SanctionExpired(now) && current.Status == want
		})
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			return out, err
		}
		e.log.Debug("sanction expired", "community", p.CommunityID, "user", p.UserID, "type", a.Type)
		out = append(out, a)
	}
	return out, nil
}

func wrapErr(op string, err error) error {
	if errors.Is(err, store.ErrVersionConflict) {
		return apperr.Wrap(apperr.KindConflict, op, err)
	}
	return apperr.FromContext(op, err)
}
