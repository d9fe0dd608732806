package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	srv := miniredis.RunT(t)
	return goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
}

func TestRecoveryLockAcquireRelease(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	lock, err := newRecoveryLock(rdb, "test:recovery:lock", time.Minute)
	if err != nil {
		t.Fatalf("newRecoveryLock() error = %v", err)
	}

	acquired, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !acquired {
		t.Fatal("first Acquire() should succeed")
	}

	other, err := newRecoveryLock(rdb, "test:recovery:lock", time.Minute)
	if err != nil {
		t.Fatalf("newRecoveryLock() error = %v", err)
	}

	acquired, err = other.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if acquired {
		t.Fatal("second holder should not acquire a held lock")
	}

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	acquired, err = other.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !acquired {
		t.Fatal("lock should be acquirable after release")
	}
}

func TestRecoveryLockReleaseDoesNotStealForeignLock(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	first, err := newRecoveryLock(rdb, "test:recovery:steal", time.Minute)
	if err != nil {
		t.Fatalf("newRecoveryLock() error = %v", err)
	}
	second, err := newRecoveryLock(rdb, "test:recovery:steal", time.Minute)
	if err != nil {
		t.Fatalf("newRecoveryLock() error = %v", err)
	}

	if _, err := first.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// A holder that never acquired must not delete the owner's key.
	if err := second.Release(context.Background()); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	acquired, err := second.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if acquired {
		t.Fatal("foreign release must not free the owner's lock")
	}
}

func TestNewRecoveryLockRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewRecoveryLock(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
