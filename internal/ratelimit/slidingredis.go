package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter throttles events per key with a sliding window held in a Redis
// sorted set. Scores are event timestamps; each call prunes everything older
// than the window before counting.
type Limiter struct {
	Client *redis.Client
	Prefix string
}

// Allow records one event for key and reports whether the window still has
// room. remaining is the headroom left after this event; reset is the
// earliest instant the window can be clear again. Without a client or a
// positive limit everything passes.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}

	now := time.Now()
	reset := now.Add(window)
	bucket := l.Prefix + key
	// Members only need to be unique within the bucket; two scans landing in
	// the same nanosecond must still count twice.
	member := strconv.FormatInt(now.UnixNano(), 36) + "." + uuid.NewString()[:8]

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, bucket, "-inf", strconv.FormatInt(now.Add(-window).UnixNano(), 10))
	pipe.ZAdd(ctx, bucket, redis.Z{Score: float64(now.UnixNano()), Member: member})
	inWindow := pipe.ZCard(ctx, bucket)
	pipe.Expire(ctx, bucket, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, reset, err
	}

	used := int(inWindow.Val())
	headroom := max - used
	if headroom < 0 {
		headroom = 0
	}
	return used <= max, headroom, reset, nil
}
