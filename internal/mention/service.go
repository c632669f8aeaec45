package mention

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/fkhayef/tourneyhub/internal/access"
	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/events"
	"github.com/fkhayef/tourneyhub/internal/member"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/role"
	"github.com/fkhayef/tourneyhub/internal/store"
)

// DefaultMassMentionThreshold is the fan-out above which a mass mention
// needs an administrator
const DefaultMassMentionThreshold = 1000

// EventType is the type of published mention notifications
const EventType = "mention"

// OnlineLookup answers which members are online
type OnlineLookup interface {
	Online(ctx context.Context, communityID string) ([]string, error)
}

// MassMentionPolicy decides whether a sender holding perms may reach
// fanOut recipients with an everyone, here or default role mention
type MassMentionPolicy func(perms permission.Set, fanOut int) bool

// LargeCommunityPolicy allows mass mentions up to threshold recipients and
// requires administrator beyond it
func LargeCommunityPolicy(threshold int) MassMentionPolicy {
	return func(perms permission.Set, fanOut int) bool {
		return fanOut <= threshold || perms.Has(permission.Administrator)
	}
}

type Config struct {
	Timeout              time.Duration
	MassMentionThreshold int
	// Policy overrides LargeCommunityPolicy(MassMentionThreshold)
	Policy MassMentionPolicy
}

// Service authorizes mentions and resolves them to recipients
type Service struct {
	log       *slog.Logger
	members   *member.Repository
	roles     *role.Repository
	online    OnlineLookup
	authz     *access.Authorizer
	publisher events.Publisher
	cfg       Config
}

// NewService creates a new mention service
func NewService(log *slog.Logger, members *member.Repository, roles *role.Repository, online OnlineLookup, authz *access.Authorizer, publisher events.Publisher, cfg Config) *Service {
	if cfg.MassMentionThreshold <= 0 {
		cfg.MassMentionThreshold = DefaultMassMentionThreshold
	}
	if cfg.Policy == nil {
		cfg.Policy = LargeCommunityPolicy(cfg.MassMentionThreshold)
	}
	return &Service{log: log, members: members, roles: roles, online: online, authz: authz, publisher: publisher, cfg: cfg}
}

// Resolve checks that sender may post m in channelID and returns who it reaches
func (s *Service) Resolve(ctx context.Context, communityID, channelID, sender string, m Mentions) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return s.resolve(ctx, "mention.resolve", communityID, channelID, sender, m)
}

// Notify resolves m and publishes the recipients as a mention event
func (s *Service) Notify(ctx context.Context, communityID, channelID, sender string, m Mentions) ([]string, error) {
	const op = "mention.notify"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	recipients, err := s.resolve(ctx, op, communityID, channelID, sender, m)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return recipients, nil
	}

	ev, err := events.NewEvent(EventType, communityID, store.Key(communityID, channelID), Notification{
		ChannelID:  channelID,
		SenderID:   sender,
		Recipients: recipients,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		return nil, apperr.FromContext(op, err)
	}

	s.log.Debug("mention published", "community", communityID, "channel", channelID, "recipients", len(recipients))
	return recipients, nil
}

func (s *Service) resolve(ctx context.Context, op, communityID, channelID, sender string, m Mentions) ([]string, error) {
	if channelID == "" {
		return nil, apperr.Validation(op, "channel_id is required")
	}
	perms, err := s.authz.Resolve(ctx, communityID, sender, channelID)
	if err != nil {
		return nil, apperr.FromContext(op, err)
	}
	if !perms.Has(permission.SendMessage) {
		return nil, apperr.Unauthorized(op, "missing %s in channel %s", permission.SendMessage, channelID)
	}
	if m.IsEmpty() {
		return []string{}, nil
	}

	mass := m.Everyone || m.Here
	if mass && !perms.Has(permission.MentionEveryone) {
		return nil, apperr.Unauthorized(op, "missing %s", permission.MentionEveryone)
	}

	roles := map[string]*role.Role{}
	if len(m.Roles) > 0 {
		list, err := s.roles.List(ctx, communityID)
		if err != nil {
			return nil, apperr.FromContext(op, err)
		}
		all := lo.SliceToMap(list, func(v store.Versioned[role.Role]) (string, *role.Role) { return v.Value.ID, v.Value })
		for _, id := range lo.Uniq(m.Roles) {
			r, ok := all[id]
			if !ok {
				return nil, apperr.NotFound(op, "role %s not found", id)
			}
			if (r.IsDefault || !r.Mentionable) && !perms.Has(permission.MentionEveryone) {
				return nil, apperr.Unauthorized(op, "role %s is not mentionable", r.Name)
			}
			mass = mass || r.IsDefault
			roles[id] = r
		}
	}

	members, err := s.members.MemberIDs(ctx, communityID)
	if err != nil {
		return nil, apperr.FromContext(op, err)
	}
	var online []string
	if m.Here {
		if online, err = s.online.Online(ctx, communityID); err != nil {
			return nil, apperr.FromContext(op, err)
		}
	}

	recipients := ResolveRecipients(m, members, online, roles)
	if mass && !s.cfg.Policy(perms, len(recipients)) {
		return nil, apperr.Unauthorized(op, "mass mention of %d members requires %s", len(recipients), permission.Administrator)
	}
	return recipients, nil
}
