package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/fkhayef/tourneyhub/internal/events"
	"github.com/fkhayef/tourneyhub/internal/mention"
	"github.com/fkhayef/tourneyhub/internal/moderation"
	"github.com/fkhayef/tourneyhub/internal/store"
)

var moderationEvent = moderation.Collection + "." + string(store.ChangePut)

// Inbox is an events.Publisher that turns mention and moderation events
// into notifications. Other events are ignored.
type Inbox struct {
	service *Service
}

// NewInbox creates an inbox delivering through service
func NewInbox(service *Service) *Inbox {
	return &Inbox{service: service}
}

func (i *Inbox) Publish(ctx context.Context, evs ...events.Event) error {
	var out []*Notification
	for _, ev := range evs {
		built, err := i.notifications(ev)
		if err != nil {
			return err
		}
		out = append(out, built...)
	}
	if len(out) == 0 {
		return nil
	}
	return i.service.Deliver(ctx, out...)
}

func (i *Inbox) Close() error { return nil }

func (i *Inbox) notifications(ev events.Event) ([]*Notification, error) {
	now := i.service.now().UTC()
	switch ev.Type {
	case mention.EventType:
		var m mention.Notification
		if err := json.Unmarshal(ev.Payload, &m); err != nil {
			return nil, fmt.Errorf("failed to decode mention event: %w", err)
		}
		out := make([]*Notification, 0, len(m.Recipients))
		for _, recipient := range m.Recipients {
			if recipient == m.SenderID {
				continue
			}
			out = append(out, &Notification{
				ID:                uuid.NewString(),
				RecipientID:       recipient,
				CommunityID:       ev.CommunityID,
				Type:              TypeMention,
				Message:           m.SenderID + " mentioned you",
				RelatedEntityType: "CHANNEL",
				RelatedEntityID:   m.ChannelID,
				CreatedAt:         now,
			})
		}
		return out, nil

	case moderationEvent:
		if len(ev.Payload) == 0 {
			return nil, nil
		}
		var a moderation.Action
		if err := json.Unmarshal(ev.Payload, &a); err != nil {
			return nil, fmt.Errorf("failed to decode moderation event: %w", err)
		}
		message := fmt.Sprintf("You received a %s", a.Type)
		if a.Reason != "" {
			message += ": " + a.Reason
		}
		// the action id keeps redelivered events from notifying twice
		return []*Notification{{
			ID:                a.ID,
			RecipientID:       a.TargetUserID,
			CommunityID:       a.CommunityID,
			Type:              TypeModeration,
			Message:           message,
			RelatedEntityType: "MODERATION_ACTION",
			RelatedEntityID:   a.ID,
			CreatedAt:         now,
		}}, nil
	}
	return nil, nil
}
