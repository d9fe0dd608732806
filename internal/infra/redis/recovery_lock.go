package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLockKey = "http-retryer:recovery:lock"
	defaultLockTTL = 5 * time.Minute
)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RecoveryLock is a best-effort cross-process lock around the startup
// recovery scan, so two replicas sharing one ledger do not resume the same
// pending rows at the same time. The token guards release against deleting a
// lock another holder re-acquired after our TTL expired.
type RecoveryLock struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
	token  string
	script *goredis.Script
}

func NewRecoveryLock(client *goredis.Client) (*RecoveryLock, error) {
	return newRecoveryLock(client, defaultLockKey, defaultLockTTL)
}

func newRecoveryLock(client *goredis.Client, key string, ttl time.Duration) (*RecoveryLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if key == "" {
		key = defaultLockKey
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	return &RecoveryLock{
		client: client,
		key:    key,
		ttl:    ttl,
		token:  uuid.NewString(),
		script: releaseScript,
	}, nil
}

// Acquire reports whether this process obtained the lock. false with a nil
// error means another holder owns it.
func (l *RecoveryLock) Acquire(ctx context.Context) (bool, error) {
	if l == nil || l.client == nil {
		return false, fmt.Errorf("recovery lock is not initialized")
	}

	acquired, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire recovery lock: %w", err)
	}
	return acquired, nil
}

func (l *RecoveryLock) Release(ctx context.Context) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("recovery lock is not initialized")
	}

	if err := l.script.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release recovery lock: %w", err)
	}
	return nil
}
