package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL bounds how long a crashed holder can keep a task locked.
const DefaultLockTTL = 30 * time.Second

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// MoveLocker shares per-task move locks between processes through Redis.
// Each claim stores a random token so a holder never releases a lock it lost
// to expiry and another process then acquired.
type MoveLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// NewMoveLocker creates a locker. A non-positive ttl falls back to DefaultLockTTL.
func NewMoveLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *MoveLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if prefix == "" {
		prefix = "kanboard"
	}
	return &MoveLocker{client: client, prefix: prefix, ttl: ttl, tokens: map[string]string{}}
}

func (l *MoveLocker) key(taskID string) string {
	return fmt.Sprintf("%s:lock:task:%s", l.prefix, taskID)
}

// TryLock claims taskID. It returns false when another holder owns the lock.
func (l *MoveLocker) TryLock(ctx context.Context, taskID string) (bool, error) {
	if taskID == "" {
		return false, errors.New("task id is required")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(taskID), token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim move lock: %w", err)
	}
	if !ok {
		return false, nil
	}
	l.mu.Lock()
	l.tokens[taskID] = token
	l.mu.Unlock()
	return true, nil
}

// Unlock releases a lock claimed by this locker. Unknown ids are a no-op.
func (l *MoveLocker) Unlock(ctx context.Context, taskID string) error {
	l.mu.Lock()
	token, ok := l.tokens[taskID]
	delete(l.tokens, taskID)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key(taskID)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release move lock: %w", err)
	}
	return nil
}
