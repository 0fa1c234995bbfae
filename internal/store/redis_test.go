package store

import (
	stderrors "errors"
	"testing"
	"time"

	apperrors "notice-push/internal/common/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cp := NewCheckpoint(db, "")

	mock.ExpectGet(DefaultCheckpointKey).RedisNil()
	last, err := cp.LastSuccess(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "", last)

	mock.ExpectSet(DefaultCheckpointKey, "2026-02-23", 0).SetVal("OK")
	require.NoError(t, cp.MarkSuccess(testContext(t), "2026-02-23"))

	mock.ExpectGet(DefaultCheckpointKey).SetVal("2026-02-23")
	last, err = cp.LastSuccess(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "2026-02-23", last)

	mock.ExpectGet(DefaultCheckpointKey).SetErr(stderrors.New("i/o timeout"))
	_, err = cp.LastSuccess(testContext(t))
	var stdErr *apperrors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeStore, stdErr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRunLock(t *testing.T) {
	mr, rdb := newMiniredis(t)
	lock := NewRunLock(rdb, "", 10*time.Minute)

	ok, err := lock.Acquire(testContext(t), "run-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Acquire(testContext(t), "run-2")
	require.NoError(t, err)
	assert.False(t, ok, "second run must not get the lock")

	require.NoError(t, lock.Release(testContext(t), "run-2"))
	assert.True(t, mr.Exists(DefaultLockKey), "foreign owner must not release")

	require.NoError(t, lock.Release(testContext(t), "run-1"))
	assert.False(t, mr.Exists(DefaultLockKey))

	ok, err = lock.Acquire(testContext(t), "run-3")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(11 * time.Minute)
	ok, err = lock.Acquire(testContext(t), "run-4")
	require.NoError(t, err)
	assert.True(t, ok, "expired lock is free again")
}

func TestInvalidTokenQueue(t *testing.T) {
	_, rdb := newMiniredis(t)
	q := NewInvalidTokenQueue(rdb, "")

	require.NoError(t, q.Add(testContext(t)))
	require.NoError(t, q.Add(testContext(t), "t1", "t2", "t1"))

	members, err := q.Members(testContext(t))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2"}, members)

	require.NoError(t, q.Add(testContext(t), "t3"))
	require.NoError(t, q.Remove(testContext(t), members...))

	members, err = q.Members(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"t3"}, members)
}
