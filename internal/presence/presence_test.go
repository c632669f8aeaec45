package presence_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tourneyhub/internal/presence"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newRedisTracker(t *testing.T, c *clock) *presence.RedisTracker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	tracker := presence.NewRedisTracker(client, time.Minute)
	presence.SetRedisClock(tracker, c.now)
	return tracker
}

func newLocalTracker(_ *testing.T, c *clock) *presence.LocalTracker {
	tracker := presence.NewLocalTracker(time.Minute)
	presence.SetLocalClock(tracker, c.now)
	return tracker
}

func TestTrackers(t *testing.T) {
	backends := map[string]func(*testing.T, *clock) presence.Tracker{
		"redis": func(t *testing.T, c *clock) presence.Tracker { return newRedisTracker(t, c) },
		"local": func(t *testing.T, c *clock) presence.Tracker { return newLocalTracker(t, c) },
	}

	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{t: time.Unix(1_700_000_000, 0)}
			tracker := build(t, c)

			require.NoError(t, tracker.Touch(ctx, "c1", "bob"))
			require.NoError(t, tracker.Touch(ctx, "c1", "alice"))
			require.NoError(t, tracker.Touch(ctx, "c2", "carol"))

			online, err := tracker.Online(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, []string{"alice", "bob"}, online)

			c.advance(45 * time.Second)
			require.NoError(t, tracker.Touch(ctx, "c1", "alice"))
			c.advance(30 * time.Second)

			online, err = tracker.Online(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, []string{"alice"}, online, "bob's heartbeat is older than the window")

			require.NoError(t, tracker.Leave(ctx, "c1", "alice"))
			online, err = tracker.Online(ctx, "c1")
			require.NoError(t, err)
			assert.Empty(t, online)

			online, err = tracker.Online(ctx, "unknown")
			require.NoError(t, err)
			assert.Empty(t, online)
		})
	}
}

func TestRedisTrackerFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	tracker := presence.NewRedisTracker(client, time.Minute)
	assert.Error(t, tracker.Touch(context.Background(), "c1", "bob"))
	_, err := tracker.Online(context.Background(), "c1")
	assert.Error(t, err)
}
