package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLocker(t *testing.T, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, wait), mr
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	locker, _ := newTestRedisLocker(t, 150*time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "profile:user:1", time.Minute)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	if _, err := locker.Acquire(ctx, "profile:user:1", time.Minute); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired while held, got %v", err)
	}

	release()

	release2, err := locker.Acquire(ctx, "profile:user:1", time.Minute)
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	release2()
}

func TestRedisLockerReleaseKeepsForeignToken(t *testing.T) {
	locker, mr := newTestRedisLocker(t, 50*time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "k", time.Second)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// Simulate expiry followed by another holder taking the key.
	mr.FastForward(2 * time.Second)
	if err := mr.Set(keyPrefix+"k", "someone-else"); err != nil {
		t.Fatalf("seed foreign token: %v", err)
	}

	release()

	got, err := mr.Get(keyPrefix + "k")
	if err != nil || got != "someone-else" {
		t.Fatalf("expected foreign token to survive release, got %q (%v)", got, err)
	}
}

func TestMemoryLockerSerializesSameKey(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "a", 0)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	otherKey, err := locker.Acquire(ctx, "b", 0)
	if err != nil {
		t.Fatalf("independent key should not block: %v", err)
	}
	otherKey()

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(waitCtx, "a", 0); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired for held key, got %v", err)
	}

	release()
	release()

	again, err := locker.Acquire(ctx, "a", 0)
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	again()

	if len(locker.slots) != 0 {
		t.Fatalf("expected slots to be reclaimed, got %d", len(locker.slots))
	}
}
