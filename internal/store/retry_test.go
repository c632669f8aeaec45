package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fkhayef/tourneyhub/internal/store"
)

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("stops on success", func(t *testing.T) {
		calls := 0
		err := store.Retry(ctx, 5, time.Millisecond, func(context.Context) error {
			calls++
			if calls < 3 {
				return store.ErrVersionConflict
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns conflict when exhausted", func(t *testing.T) {
		calls := 0
		err := store.Retry(ctx, 4, 0, func(context.Context) error {
			calls++
			return store.ErrVersionConflict
		})
		assert.ErrorIs(t, err, store.ErrVersionConflict)
		assert.Equal(t, 4, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := store.Retry(ctx, 4, 0, func(context.Context) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})
}
