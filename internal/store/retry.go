package store

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Retry runs fn until it returns something other than a version conflict,
// at most attempts times. Between attempts it sleeps a jittered, growing
// multiple of backoff. The last conflict is returned on exhaustion.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); !errors.Is(err, ErrVersionConflict) {
			return err
		}
		if i == attempts-1 || backoff <= 0 {
			continue
		}
		wait := backoff*time.Duration(i+1) + time.Duration(rand.Int63n(int64(backoff)))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
