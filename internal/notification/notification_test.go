package notification_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/events"
	"github.com/fkhayef/tourneyhub/internal/mention"
	"github.com/fkhayef/tourneyhub/internal/moderation"
	"github.com/fkhayef/tourneyhub/internal/notification"
	"github.com/fkhayef/tourneyhub/internal/store"
	"github.com/fkhayef/tourneyhub/pkg/middleware"
)

func newService() *notification.Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return notification.NewService(log, notification.NewRepository(store.NewMemory()), notification.Config{
		Timeout: 5 * time.Second,
		Retries: 8,
		Backoff: time.Millisecond,
	})
}

func mentionEvent(t *testing.T, sender string, recipients ...string) events.Event {
	t.Helper()
	ev, err := events.NewEvent(mention.EventType, "c1", "c1:general", mention.Notification{
		ChannelID:  "general",
		SenderID:   sender,
		Recipients: recipients,
	})
	require.NoError(t, err)
	return ev
}

func TestInboxDeliversMentions(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	inbox := notification.NewInbox(svc)

	require.NoError(t, inbox.Publish(ctx, mentionEvent(t, "alice", "alice", "bob", "carol")))

	list, total, err := svc.ListByRecipient(ctx, "bob", 1, 20, false)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, notification.TypeMention, list[0].Type)
	assert.Equal(t, "alice mentioned you", list[0].Message)
	assert.Equal(t, "general", list[0].RelatedEntityID)

	_, total, err = svc.ListByRecipient(ctx, "alice", 1, 20, false)
	require.NoError(t, err)
	assert.Zero(t, total, "senders are not notified of their own mention")
}

func TestInboxDeliversModerationOnce(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	inbox := notification.NewInbox(svc)

	payload, err := json.Marshal(moderation.Action{
		ID:           "a1",
		CommunityID:  "c1",
		Type:         moderation.ActionWarn,
		TargetUserID: "bob",
		ModeratorID:  "mod",
		Reason:       "spam",
	})
	require.NoError(t, err)
	ev := events.Event{Type: "moderation_actions.put", CommunityID: "c1", Key: "c1:a1", Payload: payload}

	require.NoError(t, inbox.Publish(ctx, ev))
	require.NoError(t, inbox.Publish(ctx, ev))
	require.NoError(t, inbox.Publish(ctx, events.Event{Type: "moderation_actions.put", Key: "c1:a2"}))
	require.NoError(t, inbox.Publish(ctx, events.Event{Type: "tickets.put", Payload: payload}))

	list, total, err := svc.ListByRecipient(ctx, "bob", 1, 20, false)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "You received a warn: spam", list[0].Message)
}

func TestReadState(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	inbox := notification.NewInbox(svc)
	for i := 0; i < 3; i++ {
		require.NoError(t, inbox.Publish(ctx, mentionEvent(t, "alice", "bob")))
	}

	count, err := svc.GetUnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	page, total, err := svc.ListByRecipient(ctx, "bob", 2, 2, false)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)

	err = svc.MarkAsRead(ctx, page[0].ID, "carol")
	assert.ErrorIs(t, err, apperr.ErrNotFound, "only the recipient can read a notification")

	require.NoError(t, svc.MarkAsRead(ctx, page[0].ID, "bob"))
	require.NoError(t, svc.MarkAsRead(ctx, page[0].ID, "bob"))
	count, err = svc.GetUnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, svc.MarkAllAsRead(ctx, "bob"))
	unread, total, err := svc.ListByRecipient(ctx, "bob", 1, 20, true)
	require.NoError(t, err)
	assert.Empty(t, unread)
	assert.Zero(t, total)
}

func TestHandler(t *testing.T) {
	svc := newService()
	require.NoError(t, notification.NewInbox(svc).Publish(context.Background(), mentionEvent(t, "alice", "bob")))

	r := chi.NewRouter()
	r.Use(middleware.TestUserMiddleware)
	r.Mount("/notifications", notification.NewHandler(svc).Routes())

	do := func(method, path, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if user != "" {
			req.Header.Set("X-Test-User-ID", user)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/notifications", "").Code)

	rec := do(http.MethodGet, "/notifications", "bob")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Data []notification.NotificationResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)

	assert.Equal(t, http.StatusNotFound, do(http.MethodPost, "/notifications/"+body.Data[0].ID+"/read", "carol").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/notifications/"+body.Data[0].ID+"/read", "bob").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/notifications/read-all", "bob").Code)

	rec = do(http.MethodGet, "/notifications/unread-count", "bob")
	assert.JSONEq(t, `{"success":true,"data":{"unread_count":0}}`, rec.Body.String())
}
