package presence

import "time"

func SetRedisClock(t *RedisTracker, now func() time.Time) { t.now = now }

func SetLocalClock(t *LocalTracker, now func() time.Time) { t.now = now }
