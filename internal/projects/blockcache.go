package projects

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// BlockCache short-circuits submissions that were recently rejected. An
// invalid key or a throttled project is remembered in Redis for a short
// window so repeat offenders never reach the database.
type BlockCache struct {
	client *redis.Client
	ttl    time.Duration
}

const (
	blockPrefix        = "block:"
	blockValueInvalid  = "v"
	blockValueThrottle = "t:"
)

func NewBlockCache(client *redis.Client, ttl time.Duration) *BlockCache {
	return &BlockCache{client: client, ttl: ttl}
}

func (b *BlockCache) key(projectID int64, dsnKey string) string {
	return blockPrefix + strconv.FormatInt(projectID, 10) + ":" + dsnKey
}

// Check returns the cached rejection for this project key, if any. A cache
// miss or an unreachable Redis returns nil; blocking is an optimization and
// must never fail a request on its own.
func (b *BlockCache) Check(ctx context.Context, projectID int64, dsnKey string) error {
	val, err := b.client.Get(ctx, b.key(projectID, dsnKey)).Result()
	if err != nil {
		return nil
	}

	if val == blockValueInvalid {
		return ErrInvalidKey
	}
	if after, ok := strings.CutPrefix(val, blockValueThrottle); ok {
		seconds, err := strconv.Atoi(after)
		if err != nil {
			return nil
		}
		return &ThrottledError{RetryAfter: seconds}
	}
	return nil
}

// BlockInvalid remembers that this key is invalid for the block window.
func (b *BlockCache) BlockInvalid(ctx context.Context, projectID int64, dsnKey string) {
	b.client.Set(ctx, b.key(projectID, dsnKey), blockValueInvalid, b.ttl)
}

// BlockThrottled remembers that this project is throttled. The entry expires
// with the block window, not the full Retry-After, so recovered projects
// come back quickly.
func (b *BlockCache) BlockThrottled(ctx context.Context, projectID int64, dsnKey string, retryAfter int) {
	value := fmt.Sprintf("%s%d", blockValueThrottle, retryAfter)
	b.client.Set(ctx, b.key(projectID, dsnKey), value, b.ttl)
}
