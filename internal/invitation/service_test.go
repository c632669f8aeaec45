package invitation_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/invitation"
	"github.com/fkhayef/tourneyhub/internal/member"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/store"
	"github.com/fkhayef/tourneyhub/internal/testenv"
)

func newService(env *testenv.Env) *invitation.Service {
	return invitation.NewService(env.Log, invitation.NewRepository(env.Store), env.Roles, env.Members, env.Authz, invitation.Config{
		Timeout:           testenv.Timeout,
		RedeemMaxAttempts: 20,
		Backoff:           time.Millisecond,
	})
}

func create(t *testing.T, svc *invitation.Service, env *testenv.Env, req *invitation.CreateInvitationRequest) *invitation.Invitation {
	t.Helper()
	inv, err := svc.Create(context.Background(), env.ID(), testenv.Owner, req)
	require.NoError(t, err)
	return inv
}

func TestCreate(t *testing.T) {
	env := testenv.New(t)
	svc := newService(env)

	single := create(t, svc, env, &invitation.CreateInvitationRequest{Type: invitation.TypeSingle, MaxUses: 50})
	assert.Equal(t, 1, single.MaxUses)
	assert.Len(t, single.Code, invitation.CodeLength)
	assert.True(t, single.IsActive)
	assert.WithinDuration(t, time.Now().Add(invitation.DefaultTTL), single.ExpiresAt, time.Minute)

	unlimited := create(t, svc, env, &invitation.CreateInvitationRequest{Type: invitation.TypeUnlimited})
	assert.Equal(t, invitation.Unlimited, unlimited.MaxUses)

	_, err := svc.Create(context.Background(), env.ID(), testenv.Owner, &invitation.CreateInvitationRequest{Type: invitation.TypeMulti})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateRequiresManageTournament(t *testing.T) {
	env := testenv.New(t)
	env.AddMember(t, "player")
	env.AddMember(t, "organizer", permission.ManageTournament)
	svc := newService(env)
	req := &invitation.CreateInvitationRequest{Type: invitation.TypeSingle}

	_, err := svc.Create(context.Background(), env.ID(), "player", req)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Create(context.Background(), env.ID(), "organizer", req)
	assert.NoError(t, err)
}

func TestCreateRegeneratesOnCollision(t *testing.T) {
	env := testenv.New(t)
	svc := newService(env)

	codes := []string{"AAAAAAAA", "AAAAAAAA", "BBBBBBBB"}
	invitation.SetCodeGenerator(svc, func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	})

	first := create(t, svc, env, &invitation.CreateInvitationRequest{Type: invitation.TypeSingle})
	second := create(t, svc, env, &invitation.CreateInvitationRequest{Type: invitation.TypeSingle})
	assert.Equal(t, "AAAAAAAA", first.Code)
	assert.Equal(t, "BBBBBBBB", second.Code)
}

func TestRedeemJoinsAndGrantsRole(t *testing.T) {
	env := testenv.New(t)
	svc := newService(env)
	ctx := context.Background()
	players := env.AddRole(t, "Players", 2, true, permission.VoiceConnect)

	inv := create(t, svc, env, &invitation.CreateInvitationRequest{Type: invitation.TypeMulti, MaxUses: 5, TargetRole: players.ID})

	result, err := svc.Redeem(ctx, strings.ToLower(inv.Code), "newcomer")
	require.NoError(t, err)
	assert.Equal(t, players.ID, result.GrantedRole)
	assert.Equal(t, env.ID(), result.CommunityID)

	p := env.Participant(t, "newcomer")
	require.NotNil(t, p)
	assert.Equal(t, member.StatusActive, p.Status)
	assert.True(t, env.Role(t, players.ID).AssignedUsers.Has("newcomer"))

	stored, err := svc.Get(ctx, inv.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentUses)

	usages, err := svc.Usages(ctx, env.ID(), inv.Code, testenv.Owner)
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, "newcomer", usages[0].UserID)

	again, err := svc.Redeem(ctx, inv.Code, "newcomer")
	require.NoError(t, err)
	assert.True(t, again.AlreadyMember)
	stored, err = svc.Get(ctx, inv.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentUses, "a redemption that changes nothing does not use the invitation")
}

func TestRedeemFailures(t *testing.T) {
	env := testenv.New(t)
	svc := newService(env)
	ctx := context.Background()

	_, err := svc.Redeem(ctx, "ZZZZZZZZ", "u")
	assert.ErrorIs(t, err, apperr.ErrInvitationInvalid)

	_, err = svc.Redeem(ctx, "bad", "u")
	assert.ErrorIs(t, err, apperr.ErrInvitationInvalid)

	single := create(t, svc, env, &invitation.CreateInvitationRequest{Type: invitation.TypeSingle})
	_, err = svc.Redeem(ctx, single.Code, "first")
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, single.Code, "second")
	assert.ErrorIs(t, err, apperr.ErrInvitationExhausted)

	short := create(t, svc, env, &invitation.CreateInvitationRequest{Type: invitation.TypeUnlimited, TTLMinutes: 10})
	invitation.SetClock(svc, func() time.Time { return time.Now().Add(11 * time.Minute) })
	_, err = svc.Redeem(ctx, short.Code, "late")
	assert.ErrorIs(t, err, apperr.ErrInvitationExpired)
}

func TestRedeemAfterDeactivateIsInactive(t *testing.T) {
	env := testenv.New(t)
	svc := newService(env)
	ctx := context.Background()

	inv := create(t, svc, env, &invitation.CreateInvitationRequest{Type: invitation.TypeUnlimited})
	_, err := svc.Deactivate(ctx, env.ID(), inv.Code, testenv.Owner)
	require.NoError(t, err)
	_, err = svc.Deactivate(ctx, env.ID(), inv.Code, testenv.Owner)
	require.NoError(t, err, "deactivation is idempotent")

	_, err = svc.Redeem(ctx, inv.Code, "someone")
	assert.ErrorIs(t, err, apperr.ErrInvitationInactive)

	// inactive wins over expired
	invitation.SetClock(svc, func() time.Time { return time.Now().Add(30 * 24 * time.Hour) })
	_, err = svc.Redeem(ctx, inv.Code, "someone")
	assert.ErrorIs(t, err, apperr.ErrInvitationInactive)
}

func TestRedeemByBannedUser(t *testing.T) {
	env := testenv.New(t)
	env.AddMember(t, "troll")
	svc := newService(env)
	ctx := context.Background()

	p, version, err := env.Members.Get(ctx, env.ID(), "troll")
	require.NoError(t, err)
	p.Status = member.StatusBanned
	op, err := env.Members.PutOp(p, version)
	require.NoError(t, err)
	require.NoError(t, env.Store.Commit(ctx, op))

	inv := create(t, svc, env, &invitation.CreateInvitationRequest{Type: invitation.TypeUnlimited})
	_, err = svc.Redeem(ctx, inv.Code, "troll")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestDelete(t *testing.T) {
	env := testenv.New(t)
	env.AddMember(t, "player")
	svc := newService(env)
	ctx := context.Background()

	inv := create(t, svc, env, &invitation.CreateInvitationRequest{Type: invitation.TypeSingle})
	assert.ErrorIs(t, svc.Delete(ctx, env.ID(), inv.Code, "player"), apperr.ErrUnauthorized)
	require.NoError(t, svc.Delete(ctx, env.ID(), inv.Code, testenv.Owner))

	_, err := svc.Redeem(ctx, inv.Code, "someone")
	assert.ErrorIs(t, err, apperr.ErrInvitationInvalid)
	assert.ErrorIs(t, svc.Delete(ctx, env.ID(), inv.Code, testenv.Owner), apperr.ErrNotFound)
}

func TestConcurrentRedemptionNeverOverCounts(t *testing.T) {
	const maxUses, attempts = 3, 12

	env := testenv.New(t)
	svc := newService(env)
	players := env.AddRole(t, "Players", 2, true)
	inv := create(t, svc, env, &invitation.CreateInvitationRequest{Type: invitation.TypeMulti, MaxUses: maxUses, TargetRole: players.ID})

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Redeem(context.Background(), inv.Code, fmt.Sprintf("user-%d", i))
		}(i)
	}
	wg.Wait()

	successes, exhausted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, apperr.ErrInvitationExhausted):
			exhausted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, maxUses, successes)
	assert.Equal(t, attempts-maxUses, exhausted)

	stored, err := svc.Get(context.Background(), inv.Code)
	require.NoError(t, err)
	assert.Equal(t, maxUses, stored.CurrentUses)
	assert.Len(t, env.Role(t, players.ID).AssignedUsers, maxUses)

	usages, err := svc.Usages(context.Background(), env.ID(), inv.Code, testenv.Owner)
	require.NoError(t, err)
	assert.Len(t, usages, maxUses)
}

func TestRedeemLink(t *testing.T) {
	env := testenv.New(t)
	svc := newService(env)
	inv := create(t, svc, env, &invitation.CreateInvitationRequest{Type: invitation.TypeSingle})

	_, err := svc.RedeemLink(context.Background(), invitation.DeepLink(inv.Code), "newcomer")
	require.NoError(t, err)

	_, err = svc.RedeemLink(context.Background(), "app://nope/"+inv.Code, "other")
	assert.ErrorIs(t, err, apperr.ErrInvitationInvalid)
}

// conflictingStore loses every commit race
type conflictingStore struct {
	store.Store
	commits atomic.Int32
}

func (s *conflictingStore) Commit(ctx context.Context, ops ...store.Op) error {
	s.commits.Add(1)
	return fmt.Errorf("commit: %w", store.ErrVersionConflict)
}

// stalledStore never finishes a commit before the caller gives up
type stalledStore struct {
	store.Store
}

func (s stalledStore) Commit(ctx context.Context, ops ...store.Op) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRedeemGivesUpAfterMaxAttempts(t *testing.T) {
	env := testenv.New(t)
	svc := newService(env)
	inv := create(t, svc, env, &invitation.CreateInvitationRequest{Type: invitation.TypeUnlimited})

	losing := &conflictingStore{Store: env.Store}
	starved := invitation.NewService(env.Log, invitation.NewRepository(losing), env.Roles, env.Members, env.Authz, invitation.Config{
		Timeout:           testenv.Timeout,
		RedeemMaxAttempts: 3,
		Backoff:           time.Millisecond,
	})

	_, err := starved.Redeem(context.Background(), inv.Code, "newcomer")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrRedeemConflict)
	assert.Equal(t, apperr.KindRedeemConflict, apperr.KindOf(err))
	assert.Equal(t, int32(3), losing.commits.Load())

	got, err := svc.Get(context.Background(), inv.Code)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentUses)
	p, _, err := env.Members.Get(context.Background(), env.ID(), "newcomer")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRedeemTimeoutWritesNothing(t *testing.T) {
	env := testenv.New(t)
	svc := newService(env)
	inv := create(t, svc, env, &invitation.CreateInvitationRequest{Type: invitation.TypeSingle})

	slow := invitation.NewService(env.Log, invitation.NewRepository(stalledStore{Store: env.Store}), env.Roles, env.Members, env.Authz, invitation.Config{
		Timeout:           20 * time.Millisecond,
		RedeemMaxAttempts: 3,
		Backoff:           time.Millisecond,
	})

	_, err := slow.Redeem(context.Background(), inv.Code, "newcomer")
	assert.ErrorIs(t, err, apperr.ErrTimeout)

	got, err := svc.Get(context.Background(), inv.Code)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentUses)
	usages, err := svc.Usages(context.Background(), env.ID(), inv.Code, testenv.Owner)
	require.NoError(t, err)
	assert.Empty(t, usages)

	// the invitation is still usable afterwards
	res, err := svc.Redeem(context.Background(), inv.Code, "newcomer")
	require.NoError(t, err)
	assert.False(t, res.AlreadyMember)
}
