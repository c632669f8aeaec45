// Package presence tracks which community members are currently online.
// A member counts as online for Window after their last heartbeat.
package presence

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultWindow is how long a heartbeat keeps a member online
const DefaultWindow = 2 * time.Minute

const keyPrefix = "th:presence:"

// Tracker records heartbeats and answers who is online
type Tracker interface {
	Touch(ctx context.Context, communityID, userID string) error
	Leave(ctx context.Context, communityID, userID string) error
	Online(ctx context.Context, communityID string) ([]string, error)
}

// RedisTracker keeps one sorted set per community, scored by the unix time
// of each member's last heartbeat
type RedisTracker struct {
	client *redis.Client
	window time.Duration
	now    func() time.Time
}

// NewRedisTracker creates a tracker on client
func NewRedisTracker(client *redis.Client, window time.Duration) *RedisTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisTracker{client: client, window: window, now: time.Now}
}

func key(communityID string) string { return keyPrefix + communityID }

// Touch marks userID online now
func (t *RedisTracker) Touch(ctx context.Context, communityID, userID string) error {
	now := t.now()
	k := key(communityID)
	_, err := t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, k, redis.Z{Score: float64(now.Unix()), Member: userID})
		// the set outlives its newest heartbeat by one window
		p.Expire(ctx, k, t.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	return nil
}

// Leave marks userID offline
func (t *RedisTracker) Leave(ctx context.Context, communityID, userID string) error {
	if err := t.client.ZRem(ctx, key(communityID), userID).Err(); err != nil {
		return fmt.Errorf("failed to clear presence: %w", err)
	}
	return nil
}

// Online returns the members seen within the window, sorted. Stale entries
// are pruned on the way.
func (t *RedisTracker) Online(ctx context.Context, communityID string) ([]string, error) {
	k := key(communityID)
	cutoff := strconv.FormatInt(t.now().Add(-t.window).Unix(), 10)

	var members *redis.StringSliceCmd
	_, err := t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, k, "-inf", "("+cutoff)
		members = p.ZRangeByScore(ctx, k, &redis.ZRangeBy{Min: cutoff, Max: "+inf"})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}
	online := members.Val()
	sort.Strings(online)
	return online, nil
}

// LocalTracker is an in-process Tracker for single-instance deployments
// that run without Redis
type LocalTracker struct {
	mu     sync.Mutex
	seen   map[string]map[string]time.Time
	window time.Duration
	now    func() time.Time
}

// NewLocalTracker creates an empty in-process tracker
func NewLocalTracker(window time.Duration) *LocalTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &LocalTracker{seen: make(map[string]map[string]time.Time), window: window, now: time.Now}
}

func (t *LocalTracker) Touch(_ context.Context, communityID, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.seen[communityID]
	if !ok {
		c = make(map[string]time.Time)
		t.seen[communityID] = c
	}
	c[userID] = t.now()
	return nil
}

func (t *LocalTracker) Leave(_ context.Context, communityID, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seen[communityID], userID)
	return nil
}

func (t *LocalTracker) Online(_ context.Context, communityID string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-t.window)
	online := []string{}
	for userID, at := range t.seen[communityID] {
		if at.Before(cutoff) {
			delete(t.seen[communityID], userID)
			continue
		}
		online = append(online, userID)
	}
	sort.Strings(online)
	return online, nil
}
