package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tourneyhub/internal/store"
	"github.com/fkhayef/tourneyhub/internal/store/storetest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client), mr
}

func TestRedisStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, _ := newTestStore(t)
		return s
	})
}

func TestDocumentLayout(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "roles", "c1:r1", []byte(`{"name":"mods"}`), 0)
	require.NoError(t, err)

	assert.Equal(t, "1", mr.HGet("th:doc:roles:c1:r1", "v"))
	assert.Equal(t, `{"name":"mods"}`, mr.HGet("th:doc:roles:c1:r1", "d"))
	members, err := mr.SMembers("th:idx:roles")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1:r1"}, members)

	require.NoError(t, s.Delete(ctx, "roles", "c1:r1", 1))
	assert.False(t, mr.Exists("th:doc:roles:c1:r1"))
}
