package store

import (
	"context"
	stderrors "errors"
	"time"

	"notice-push/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultCheckpointKey   = "dispatch:last_success_date"
	DefaultLockKey         = "dispatch:lock"
	DefaultInvalidTokenKey = "dispatch:invalid_tokens"
)

// Checkpoint persists the last successful dispatch date (YYYY-MM-DD).
type Checkpoint struct {
	rdb redis.Cmdable
	key string
}

func NewCheckpoint(rdb redis.Cmdable, key string) *Checkpoint {
	if key == "" {
		key = DefaultCheckpointKey
	}
	return &Checkpoint{rdb: rdb, key: key}
}

// LastSuccess returns "" when no run has completed yet.
func (c *Checkpoint) LastSuccess(ctx context.Context) (string, error) {
	val, err := c.rdb.Get(ctx, c.key).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.NewStoreError("checkpoint_get", err)
	}
	return val, nil
}

func (c *Checkpoint) MarkSuccess(ctx context.Context, date string) error {
	if err := c.rdb.Set(ctx, c.key, date, 0).Err(); err != nil {
		return errors.NewStoreError("checkpoint_set", err)
	}
	return nil
}

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RunLock keeps two dispatch runs from overlapping.
type RunLock struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

func NewRunLock(rdb redis.Cmdable, key string, ttl time.Duration) *RunLock {
	if key == "" {
		key = DefaultLockKey
	}
	return &RunLock{rdb: rdb, key: key, ttl: ttl}
}

// Acquire sets the lock to owner if nobody holds it.
func (l *RunLock) Acquire(ctx context.Context, owner string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, owner, l.ttl).Result()
	if err != nil {
		return false, errors.NewStoreError("lock_acquire", err)
	}
	return ok, nil
}

// Release frees the lock if owner still holds it.
func (l *RunLock) Release(ctx context.Context, owner string) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, owner).Err(); err != nil && !stderrors.Is(err, redis.Nil) {
		return errors.NewStoreError("lock_release", err)
	}
	return nil
}

// InvalidTokenQueue collects provider-rejected tokens for the next cleanup.
type InvalidTokenQueue struct {
	rdb redis.Cmdable
	key string
}

func NewInvalidTokenQueue(rdb redis.Cmdable, key string) *InvalidTokenQueue {
	if key == "" {
		key = DefaultInvalidTokenKey
	}
	return &InvalidTokenQueue{rdb: rdb, key: key}
}

func (q *InvalidTokenQueue) Add(ctx context.Context, tokens ...string) error {
	if len(tokens) == 0 {
		return nil
	}
	members := make([]interface{}, len(tokens))
	for i, t := range tokens {
		members[i] = t
	}
	if err := q.rdb.SAdd(ctx, q.key, members...).Err(); err != nil {
		return errors.NewStoreError("invalid_tokens_add", err)
	}
	return nil
}

func (q *InvalidTokenQueue) Members(ctx context.Context) ([]string, error) {
	tokens, err := q.rdb.SMembers(ctx, q.key).Result()
	if err != nil {
		return nil, errors.NewStoreError("invalid_tokens_members", err)
	}
	return tokens, nil
}

// Remove drops tokens that have been handled; tokens added meanwhile stay.
func (q *InvalidTokenQueue) Remove(ctx context.Context, tokens ...string) error {
	if len(tokens) == 0 {
		return nil
	}
	members := make([]interface{}, len(tokens))
	for i, t := range tokens {
		members[i] = t
	}
	if err := q.rdb.SRem(ctx, q.key, members...).Err(); err != nil {
		return errors.NewStoreError("invalid_tokens_remove", err)
	}
	return nil
}
