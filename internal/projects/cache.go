package projects

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CachedAuthenticator wraps another Authenticator with an in-process TTL
// cache keyed by project id and DSN key. Invalid-key results are cached too
// so misbehaving SDKs do not hammer the database.
type CachedAuthenticator struct {
	inner Authenticator
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[cacheKey]*cacheEntry
}

type cacheKey struct {
	projectID int64
	key       string
}

type cacheEntry struct {
	auth      *ProjectAuth
	err       error
	expiresAt time.Time
}

func NewCachedAuthenticator(inner Authenticator, ttl time.Duration) *CachedAuthenticator {
	return &CachedAuthenticator{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[cacheKey]*cacheEntry),
	}
}

func (c *CachedAuthenticator) Authenticate(ctx context.Context, projectID int64, key string) (*ProjectAuth, error) {
	ck := cacheKey{projectID: projectID, key: key}

	c.mu.RLock()
	entry, ok := c.entries[ck]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.auth, entry.err
	}

	auth, err := c.inner.Authenticate(ctx, projectID, key)
	if err != nil && !errors.Is(err, ErrInvalidKey) {
		// Transient failures are not cached.
		return nil, err
	}

	c.mu.Lock()
	c.entries[ck] = &cacheEntry{auth: auth, err: err, expiresAt: time.Now().Add(c.ttl)}
	if len(c.entries) > 10000 {
		c.evictExpiredLocked()
	}
	c.mu.Unlock()

	return auth, err
}

func (c *CachedAuthenticator) evictExpiredLocked() {
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

func (c *CachedAuthenticator) Close() {
	c.inner.Close()
}
