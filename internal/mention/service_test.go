package mention_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/events"
	"github.com/fkhayef/tourneyhub/internal/member"
	"github.com/fkhayef/tourneyhub/internal/mention"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/presence"
	"github.com/fkhayef/tourneyhub/internal/store"
	"github.com/fkhayef/tourneyhub/internal/testenv"
	"github.com/fkhayef/tourneyhub/pkg/middleware"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, evs ...events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evs...)
	return nil
}

func (r *recorder) Close() error { return nil }

type fixture struct {
	env      *testenv.Env
	svc      *mention.Service
	online   *presence.LocalTracker
	rec      *recorder
	general  string
	rules    string
	referees string
	hidden   string
}

func setup(t *testing.T, threshold int) *fixture {
	t.Helper()
	env := testenv.New(t)
	env.AddMember(t, "a")
	env.AddMember(t, "b")
	env.AddMember(t, "c")
	env.AddMember(t, "herald", permission.MentionEveryone)

	referees := env.AddRole(t, "Referees", 5, true)
	hidden := env.AddRole(t, "Staff", 6, false)
	for _, r := range []struct{ role, user string }{{referees.ID, "b"}, {hidden.ID, "c"}} {
		role := env.Role(t, r.role)
		role.Assign(r.user)
		op, err := env.Roles.PutOp(role, store.AnyVersion)
		require.NoError(t, err)
		require.NoError(t, env.Store.Commit(context.Background(), op))
	}

	f := &fixture{
		env:      env,
		online:   presence.NewLocalTracker(time.Minute),
		rec:      &recorder{},
		general:  env.Channel(t, "general").ID,
		rules:    env.Channel(t, "rules").ID,
		referees: referees.ID,
		hidden:   hidden.ID,
	}
	f.svc = mention.NewService(env.Log, env.Members, env.Roles, f.online, env.Authz, f.rec, mention.Config{
		Timeout:              testenv.Timeout,
		MassMentionThreshold: threshold,
	})
	return f
}

func TestResolve(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()
	require.NoError(t, f.online.Touch(ctx, f.env.ID(), "a"))
	require.NoError(t, f.online.Touch(ctx, f.env.ID(), "outsider"))

	everyone, err := f.svc.Resolve(ctx, f.env.ID(), f.general, "herald", mention.Mentions{Everyone: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "herald", testenv.Owner}, everyone)

	here, err := f.svc.Resolve(ctx, f.env.ID(), f.general, "herald", mention.Mentions{Here: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, here)

	byRole, err := f.svc.Resolve(ctx, f.env.ID(), f.general, "a", mention.Mentions{Roles: []string{f.referees}, Users: []string{"c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, byRole)

	none, err := f.svc.Resolve(ctx, f.env.ID(), f.general, "a", mention.Mentions{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResolveAuthorization(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()
	defaultRole := f.env.Community.DefaultRoleID

	tests := []struct {
		name    string
		sender  string
		channel string
		m       mention.Mentions
		want    error
	}{
		{"everyone needs mention-everyone", "a", f.general, mention.Mentions{Everyone: true}, apperr.ErrUnauthorized},
		{"here needs mention-everyone", "a", f.general, mention.Mentions{Here: true}, apperr.ErrUnauthorized},
		{"unmentionable role", "a", f.general, mention.Mentions{Roles: []string{f.hidden}}, apperr.ErrUnauthorized},
		{"default role", "a", f.general, mention.Mentions{Roles: []string{defaultRole}}, apperr.ErrUnauthorized},
		{"unknown role", "a", f.general, mention.Mentions{Roles: []string{"nope"}}, apperr.ErrNotFound},
		{"read-only channel", "a", f.rules, mention.Mentions{Users: []string{"b"}}, apperr.ErrUnauthorized},
		{"non-member", "stranger", f.general, mention.Mentions{Users: []string{"b"}}, apperr.ErrUnauthorized},
		{"missing channel", "a", "", mention.Mentions{Users: []string{"b"}}, apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Resolve(ctx, f.env.ID(), tt.channel, tt.sender, tt.m)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	got, err := f.svc.Resolve(ctx, f.env.ID(), f.general, "herald", mention.Mentions{Roles: []string{f.hidden}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got, "mention-everyone overrides mentionability")
}

func TestResolveMutedSenderCannotMention(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()

	p := f.env.Participant(t, "a")
	p.Status = member.StatusMuted
	op, err := f.env.Members.PutOp(p, store.AnyVersion)
	require.NoError(t, err)
	require.NoError(t, f.env.Store.Commit(ctx, op))

	_, err = f.svc.Resolve(ctx, f.env.ID(), f.general, "a", mention.Mentions{Users: []string{"b"}})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestMassMentionPolicy(t *testing.T) {
	f := setup(t, 3)
	ctx := context.Background()

	_, err := f.svc.Resolve(ctx, f.env.ID(), f.general, "herald", mention.Mentions{Everyone: true})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized, "five members exceed the threshold")

	_, err = f.svc.Resolve(ctx, f.env.ID(), f.general, "herald", mention.Mentions{Roles: []string{f.env.Community.DefaultRoleID}})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	got, err := f.svc.Resolve(ctx, f.env.ID(), f.general, testenv.Owner, mention.Mentions{Everyone: true})
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = f.svc.Resolve(ctx, f.env.ID(), f.general, "herald", mention.Mentions{Users: []string{"a", "b", "c", "d"}})
	require.NoError(t, err)
	assert.Len(t, got, 4, "direct mentions are not mass mentions")
}

func TestNotifyPublishesRecipients(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()

	got, err := f.svc.Notify(ctx, f.env.ID(), f.general, "a", mention.Mentions{Roles: []string{f.referees}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got)

	require.Len(t, f.rec.events, 1)
	ev := f.rec.events[0]
	assert.Equal(t, mention.EventType, ev.Type)
	assert.Equal(t, f.env.ID(), ev.CommunityID)
	var n mention.Notification
	require.NoError(t, json.Unmarshal(ev.Payload, &n))
	assert.Equal(t, mention.Notification{ChannelID: f.general, SenderID: "a", Recipients: []string{"b"}}, n)

	_, err = f.svc.Notify(ctx, f.env.ID(), f.general, "a", mention.Mentions{})
	require.NoError(t, err)
	assert.Len(t, f.rec.events, 1, "empty audiences publish nothing")

	_, err = f.svc.Notify(ctx, f.env.ID(), f.general, "a", mention.Mentions{Everyone: true})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Len(t, f.rec.events, 1)
}

func TestHandler(t *testing.T) {
	f := setup(t, 0)
	h := mention.NewHandler(f.svc)
	r := chi.NewRouter()
	r.Use(middleware.TestUserMiddleware)
	r.Mount("/communities/{communityID}/mentions", h.Routes())

	do := func(user, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/communities/"+f.env.ID()+"/mentions/resolve", strings.NewReader(body))
		if user != "" {
			req.Header.Set("X-Test-User-ID", user)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do("herald", `{"channel_id":"`+f.general+`","everyone":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Data mention.RecipientsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Data.Count)

	assert.Equal(t, http.StatusForbidden, do("a", `{"channel_id":"`+f.general+`","here":true}`).Code)
	assert.Equal(t, http.StatusBadRequest, do("a", `{`).Code)
	assert.Equal(t, http.StatusUnauthorized, do("", `{}`).Code)
}
