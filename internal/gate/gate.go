package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sig:hash:"

// DuplicateGate is the atomic check-then-insert in front of signal
// persistence. Two concurrent evaluations of the same symbol race on
// SET NX; only the winner proceeds to persist a signal.
type DuplicateGate struct {
	client redis.Cmdable
}

func New(client redis.Cmdable) *DuplicateGate {
	return &DuplicateGate{client: client}
}

// Reserve claims the hash for ttl. Returns false when another evaluation
// already holds it.
func (g *DuplicateGate) Reserve(ctx context.Context, hash string, ttl time.Duration) (bool, error) {
	if g == nil || g.client == nil {
		return true, nil
	}
	ok, err := g.client.SetNX(ctx, keyPrefix+hash, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve signal hash: %w", err)
	}
	return ok, nil
}

// Release frees the hash so a later retry can claim it, used when the
// reservation holder failed to persist.
func (g *DuplicateGate) Release(ctx context.Context, hash string) error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Del(ctx, keyPrefix+hash).Err()
}
