package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// offenders counts rate-limit violations per client in Redis and blocks a
// client once it reaches threshold strikes within memory.
type offenders struct {
	client    *redis.Client
	threshold int64
	memory    time.Duration
	blockFor  time.Duration
}

func newOffenders(client *redis.Client) *offenders {
	return &offenders{
		client:    client,
		threshold: 10,
		memory:    time.Hour,
		blockFor:  24 * time.Hour,
	}
}

func strikesKey(ip string) string { return "tweets:strikes:" + ip }
func blockedKey(ip string) string { return "tweets:blocked:" + ip }

// blocked reports whether ip is currently blocked. Redis errors count as
// not blocked.
func (o *offenders) blocked(ctx context.Context, ip string) bool {
	n, err := o.client.Exists(ctx, blockedKey(ip)).Result()
	return err == nil && n > 0
}

// strike records one violation for ip and blocks it when the threshold is
// reached. It returns the strike count and whether a block was placed.
func (o *offenders) strike(ctx context.Context, ip string) (int64, bool, error) {
	var incr *redis.IntCmd
	_, err := o.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, strikesKey(ip))
		pipe.Expire(ctx, strikesKey(ip), o.memory)
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	count := incr.Val()
	if count < o.threshold {
		return count, false, nil
	}
	if err := o.client.Set(ctx, blockedKey(ip), count, o.blockFor).Err(); err != nil {
		return count, false, err
	}
	return count, true, nil
}
