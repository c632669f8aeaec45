package ticket_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tourneyhub/internal/apperr"
	"github.com/fkhayef/tourneyhub/internal/permission"
	"github.com/fkhayef/tourneyhub/internal/store"
	"github.com/fkhayef/tourneyhub/internal/testenv"
	"github.com/fkhayef/tourneyhub/internal/ticket"
)

func setup(t *testing.T) (*testenv.Env, *ticket.Service) {
	t.Helper()
	env := testenv.New(t)
	env.AddMember(t, "player")
	env.AddMember(t, "other")
	env.AddMember(t, "mod", permission.ManageMessage)
	svc := ticket.NewService(env.Log, ticket.NewRepository(env.Store), env.Authz, ticket.Config{
		Timeout: testenv.Timeout,
		Retries: 32,
		Backoff: time.Millisecond,
	})
	return env, svc
}

func open(t *testing.T, env *testenv.Env, svc *ticket.Service, author string) *ticket.Ticket {
	t.Helper()
	tk, err := svc.Create(context.Background(), env.ID(), author, &ticket.CreateTicketRequest{
		Title:       "Match result missing",
		Description: "Round 2 score was not recorded",
		Category:    "results",
	})
	require.NoError(t, err)
	return tk
}

func TestCreate(t *testing.T) {
	env, svc := setup(t)

	tk := open(t, env, svc, "player")
	assert.Equal(t, ticket.StatusOpen, tk.Status)
	assert.Equal(t, ticket.PriorityMedium, tk.Priority)
	require.Len(t, tk.Messages, 1)
	assert.Equal(t, "Round 2 score was not recorded", tk.Messages[0].Content)
	assert.False(t, tk.Messages[0].IsStaff)

	_, err := svc.Create(context.Background(), env.ID(), "player", &ticket.CreateTicketRequest{Title: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(context.Background(), env.ID(), "player", &ticket.CreateTicketRequest{Title: "x", Description: "y", Priority: "asap"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(context.Background(), env.ID(), "stranger", &ticket.CreateTicketRequest{Title: "x", Description: "y"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestStaffReplyStartsWork(t *testing.T) {
	env, svc := setup(t)
	ctx := context.Background()
	tk := open(t, env, svc, "player")

	tk, err := svc.AddMessage(ctx, env.ID(), tk.ID, "player", &ticket.AddMessageRequest{Content: "any news?"})
	require.NoError(t, err)
	assert.Equal(t, ticket.StatusOpen, tk.Status)

	tk, err = svc.AddMessage(ctx, env.ID(), tk.ID, "mod", &ticket.AddMessageRequest{Content: "looking into it"})
	require.NoError(t, err)
	assert.Equal(t, ticket.StatusInProgress, tk.Status)
	require.Len(t, tk.Messages, 3)
	assert.True(t, tk.LastMessage().IsStaff)
	assert.Equal(t, "mod", tk.LastMessage().AuthorID)
}

func TestOnlyAuthorAndStaffSeeTicket(t *testing.T) {
	env, svc := setup(t)
	ctx := context.Background()
	tk := open(t, env, svc, "player")

	_, err := svc.Get(ctx, env.ID(), tk.ID, "other")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.AddMessage(ctx, env.ID(), tk.ID, "other", &ticket.AddMessageRequest{Content: "me too"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Get(ctx, env.ID(), tk.ID, "mod")
	assert.NoError(t, err)
	_, err = svc.Get(ctx, env.ID(), "missing", "mod")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	env, svc := setup(t)
	ctx := context.Background()
	tk := open(t, env, svc, "player")
	set := func(actor string, s ticket.Status) (*ticket.Ticket, error) {
		return svc.SetStatus(ctx, env.ID(), tk.ID, actor, &ticket.SetStatusRequest{Status: s})
	}

	_, err := set("player", ticket.StatusClosed)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = set("mod", ticket.StatusResolved)
	assert.ErrorIs(t, err, apperr.ErrValidation, "open tickets cannot be resolved directly")

	_, err = set("mod", "archived")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := set("mod", ticket.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, ticket.StatusInProgress, got.Status)

	got, err = set("mod", ticket.StatusInProgress)
	require.NoError(t, err, "setting the current status is a no-op")
	assert.Equal(t, ticket.StatusInProgress, got.Status)

	got, err = set("mod", ticket.StatusResolved)
	require.NoError(t, err)
	assert.Nil(t, got.ClosedAt)

	got, err = set("mod", ticket.StatusInProgress)
	require.NoError(t, err, "staff may reopen a resolved ticket")
	assert.Equal(t, ticket.StatusInProgress, got.Status)
}

func TestClosedIsTerminal(t *testing.T) {
	env, svc := setup(t)
	ctx := context.Background()
	tk := open(t, env, svc, "player")

	closed, err := svc.SetStatus(ctx, env.ID(), tk.ID, "mod", &ticket.SetStatusRequest{Status: ticket.StatusClosed})
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)

	_, err = svc.SetStatus(ctx, env.ID(), tk.ID, "mod", &ticket.SetStatusRequest{Status: ticket.StatusClosed})
	assert.ErrorIs(t, err, apperr.ErrTicketClosed)

	_, err = svc.SetStatus(ctx, env.ID(), tk.ID, testenv.Owner, &ticket.SetStatusRequest{Status: ticket.StatusInProgress})
	assert.ErrorIs(t, err, apperr.ErrTicketClosed)

	_, err = svc.AddMessage(ctx, env.ID(), tk.ID, "player", &ticket.AddMessageRequest{Content: "hello?"})
	assert.ErrorIs(t, err, apperr.ErrTicketClosed)

	_, err = svc.Assign(ctx, env.ID(), tk.ID, "mod", &ticket.AssignRequest{UserID: "mod"})
	assert.ErrorIs(t, err, apperr.ErrTicketClosed)

	got, err := svc.Get(ctx, env.ID(), tk.ID, "player")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
	assert.Equal(t, closed.ClosedAt.Unix(), got.ClosedAt.Unix())
}

func TestAssign(t *testing.T) {
	env, svc := setup(t)
	ctx := context.Background()
	tk := open(t, env, svc, "player")

	_, err := svc.Assign(ctx, env.ID(), tk.ID, "player", &ticket.AssignRequest{UserID: "mod"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Assign(ctx, env.ID(), tk.ID, "mod", &ticket.AssignRequest{UserID: "other"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := svc.Assign(ctx, env.ID(), tk.ID, testenv.Owner, &ticket.AssignRequest{UserID: "mod"})
	require.NoError(t, err)
	assert.Equal(t, "mod", got.AssignedTo)
	assert.Equal(t, ticket.StatusInProgress, got.Status)
}

func TestList(t *testing.T) {
	env, svc := setup(t)
	ctx := context.Background()
	mine := open(t, env, svc, "player")
	open(t, env, svc, "other")
	_, err := svc.SetStatus(ctx, env.ID(), mine.ID, "mod", &ticket.SetStatusRequest{Status: ticket.StatusClosed})
	require.NoError(t, err)

	own, err := svc.List(ctx, env.ID(), "player", "")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].ID)

	all, err := svc.List(ctx, env.ID(), "mod", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	openOnly, err := svc.List(ctx, env.ID(), "mod", ticket.StatusOpen)
	require.NoError(t, err)
	require.Len(t, openOnly, 1)
	assert.Equal(t, "other", openOnly[0].CreatedBy)

	_, err = svc.List(ctx, env.ID(), "mod", "pending")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestConcurrentRepliesAreNeverLost(t *testing.T) {
	const replies = 8

	env, svc := setup(t)
	ctx := context.Background()
	tk := open(t, env, svc, "player")

	var wg sync.WaitGroup
	errs := make([]error, replies+1)
	for i := 0; i < replies; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			author := "player"
			if i%2 == 0 {
				author = "mod"
			}
			_, errs[i] = svc.AddMessage(ctx, env.ID(), tk.ID, author, &ticket.AddMessageRequest{Content: fmt.Sprintf("reply %d", i)})
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[replies] = svc.Assign(ctx, env.ID(), tk.ID, testenv.Owner, &ticket.AssignRequest{UserID: "mod"})
	}()
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	got, err := svc.Get(ctx, env.ID(), tk.ID, "mod")
	require.NoError(t, err)
	assert.Len(t, got.Messages, replies+1)
	assert.Equal(t, ticket.StatusInProgress, got.Status)
	assert.Equal(t, "mod", got.AssignedTo)
}

func TestWatch(t *testing.T) {
	env, svc := setup(t)
	tk := open(t, env, svc, "player")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := svc.Watch(ctx, env.ID(), tk.ID, "other")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	updates, err := svc.Watch(ctx, env.ID(), tk.ID, "player")
	require.NoError(t, err)

	_, err = svc.AddMessage(context.Background(), env.ID(), tk.ID, "mod", &ticket.AddMessageRequest{Content: "on it"})
	require.NoError(t, err)

	select {
	case got := <-updates:
		require.NotNil(t, got)
		assert.Len(t, got.Messages, 2)
		assert.Equal(t, ticket.StatusInProgress, got.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}

	cancel()
	for range updates {
	}
}

// stalledStore never finishes a commit before the caller gives up
type stalledStore struct {
	store.Store
}

func (s stalledStore) Commit(ctx context.Context, ops ...store.Op) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestTimeoutWritesNothing(t *testing.T) {
	env, svc := setup(t)
	tk := open(t, env, svc, "player")

	slow := ticket.NewService(env.Log, ticket.NewRepository(stalledStore{Store: env.Store}), env.Authz, ticket.Config{
		Timeout: 20 * time.Millisecond,
		Retries: 3,
		Backoff: time.Millisecond,
	})
	ctx := context.Background()

	_, err := slow.AddMessage(ctx, env.ID(), tk.ID, "mod", &ticket.AddMessageRequest{Content: "looking"})
	assert.ErrorIs(t, err, apperr.ErrTimeout)
	_, err = slow.Create(ctx, env.ID(), "player", &ticket.CreateTicketRequest{Title: "Lag", Description: "Round 3"})
	assert.ErrorIs(t, err, apperr.ErrTimeout)

	got, err := svc.Get(ctx, env.ID(), tk.ID, "player")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
	assert.Equal(t, ticket.StatusOpen, got.Status, "a staff reply that timed out does not start work")

	all, err := svc.List(ctx, env.ID(), "mod", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
