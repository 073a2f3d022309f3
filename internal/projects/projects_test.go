package projects

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldScrubIPAddresses(t *testing.T) {
	tests := []struct {
		name    string
		project bool
		org     bool
		want    bool
	}{
		{name: "Neither flag", project: false, org: false, want: false},
		{name: "Project flag only", project: true, org: false, want: true},
		{name: "Org flag only", project: false, org: true, want: true},
		{name: "Both flags", project: true, org: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &ProjectAuth{ScrubIPAddresses: tt.project, OrgScrubIPAddresses: tt.org}
			if got := auth.ShouldScrubIPAddresses(); got != tt.want {
				t.Errorf("ShouldScrubIPAddresses() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestThrottleRate(t *testing.T) {
	tests := []struct {
		name    string
		project int
		org     int
		want    int
	}{
		{name: "Neither set", project: 0, org: 0, want: 0},
		{name: "Project stricter", project: 50, org: 10, want: 50},
		{name: "Org stricter", project: 10, org: 50, want: 50},
		{name: "Equal", project: 30, org: 30, want: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &ProjectAuth{EventThrottleRate: tt.project, OrgEventThrottleRate: tt.org}
			if got := auth.ThrottleRate(); got != tt.want {
				t.Errorf("ThrottleRate() = %d, want %d", got, tt.want)
			}
		})
	}
}

// fakeAuthenticator counts calls so cache tests can observe hits and misses.
type fakeAuthenticator struct {
	calls int
	auth  *ProjectAuth
	err   error
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, projectID int64, key string) (*ProjectAuth, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.auth, nil
}

func (f *fakeAuthenticator) Close() {}

func TestCachedAuthenticatorHit(t *testing.T) {
	inner := &fakeAuthenticator{auth: &ProjectAuth{ProjectID: 1, OrganizationID: 2}}
	cached := NewCachedAuthenticator(inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		auth, err := cached.Authenticate(ctx, 1, testKey)
		require.NoError(t, err)
		assert.Equal(t, int64(1), auth.ProjectID)
	}

	assert.Equal(t, 1, inner.calls, "repeated lookups should hit the cache")
}

func TestCachedAuthenticatorDistinctKeys(t *testing.T) {
	inner := &fakeAuthenticator{auth: &ProjectAuth{ProjectID: 1}}
	cached := NewCachedAuthenticator(inner, time.Minute)
	ctx := context.Background()

	_, err := cached.Authenticate(ctx, 1, testKey)
	require.NoError(t, err)
	_, err = cached.Authenticate(ctx, 2, testKey)
	require.NoError(t, err)
	_, err = cached.Authenticate(ctx, 1, "ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)

	assert.Equal(t, 3, inner.calls)
}

func TestCachedAuthenticatorCachesInvalidKey(t *testing.T) {
	inner := &fakeAuthenticator{err: ErrInvalidKey}
	cached := NewCachedAuthenticator(inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := cached.Authenticate(ctx, 1, testKey)
		assert.ErrorIs(t, err, ErrInvalidKey)
	}

	assert.Equal(t, 1, inner.calls, "invalid-key results should be cached")
}

func TestCachedAuthenticatorDoesNotCacheTransientErrors(t *testing.T) {
	inner := &fakeAuthenticator{err: ErrUnavailable}
	cached := NewCachedAuthenticator(inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := cached.Authenticate(ctx, 1, testKey)
		assert.ErrorIs(t, err, ErrUnavailable)
	}

	assert.Equal(t, 3, inner.calls, "transient errors must reach the store every time")
}

func setupBlockCache(t *testing.T) (*BlockCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewBlockCache(client, 30*time.Second), mr
}

func TestBlockCacheMiss(t *testing.T) {
	cache, _ := setupBlockCache(t)
	assert.NoError(t, cache.Check(context.Background(), 1, testKey))
}

func TestBlockCacheInvalidKey(t *testing.T) {
	cache, _ := setupBlockCache(t)
	ctx := context.Background()

	cache.BlockInvalid(ctx, 1, testKey)

	err := cache.Check(ctx, 1, testKey)
	assert.ErrorIs(t, err, ErrInvalidKey)

	// Other projects and keys unaffected.
	assert.NoError(t, cache.Check(ctx, 2, testKey))
}

func TestBlockCacheThrottled(t *testing.T) {
	cache, _ := setupBlockCache(t)
	ctx := context.Background()

	cache.BlockThrottled(ctx, 1, testKey, 162)

	err := cache.Check(ctx, 1, testKey)
	var throttled *ThrottledError
	require.ErrorAs(t, err, &throttled)
	assert.Equal(t, 162, throttled.RetryAfter)
}

func TestBlockCacheEntriesExpire(t *testing.T) {
	cache, mr := setupBlockCache(t)
	ctx := context.Background()

	cache.BlockInvalid(ctx, 1, testKey)
	mr.FastForward(31 * time.Second)

	assert.NoError(t, cache.Check(ctx, 1, testKey))
}

func TestBlockCacheRedisDownFailsOpen(t *testing.T) {
	cache, mr := setupBlockCache(t)
	mr.Close()

	assert.NoError(t, cache.Check(context.Background(), 1, testKey))
}

func TestThrottledErrorMessage(t *testing.T) {
	err := &ThrottledError{RetryAfter: 42}
	assert.Contains(t, err.Error(), "42")
	assert.True(t, errors.As(error(err), new(*ThrottledError)))
}
