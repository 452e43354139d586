package detections

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptySession() (*ModelSession, error) {
	return &ModelSession{}, nil
}

func TestNewSessionPool(t *testing.T) {
	t.Run("fills every slot", func(t *testing.T) {
		calls := 0
		pool, err := NewSessionPool(3, time.Second, func() (*ModelSession, error) {
			calls++
			return &ModelSession{}, nil
		})

		require.NoError(t, err)
		defer pool.Destroy()
		assert.Equal(t, 3, calls)
		assert.Equal(t, 3, pool.Stats().Size)
	})

	t.Run("defaults non-positive size", func(t *testing.T) {
		pool, err := NewSessionPool(0, 0, emptySession)

		require.NoError(t, err)
		defer pool.Destroy()
		assert.Equal(t, DefaultPoolSize, pool.Stats().Size)
	})

	t.Run("fails when a session cannot be created", func(t *testing.T) {
		calls := 0
		_, err := NewSessionPool(2, time.Second, func() (*ModelSession, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("no memory")
			}
			return &ModelSession{}, nil
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "session 1")
		assert.Contains(t, err.Error(), "no memory")
	})
}

func TestSessionPool_AcquireRelease(t *testing.T) {
	pool, err := NewSessionPool(1, 50*time.Millisecond, emptySession)
	require.NoError(t, err)
	defer pool.Destroy()

	t.Run("acquire and release update stats", func(t *testing.T) {
		s, err := pool.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), pool.Stats().InUse)

		pool.Release(s)
		stats := pool.Stats()
		assert.Equal(t, int64(0), stats.InUse)
		assert.Equal(t, int64(1), stats.TotalAcquired)
		assert.Equal(t, int64(1), stats.TotalReleased)
	})

	t.Run("times out when exhausted", func(t *testing.T) {
		s, err := pool.Acquire(context.Background())
		require.NoError(t, err)
		defer pool.Release(s)

		_, err = pool.Acquire(context.Background())
		assert.ErrorIs(t, err, ErrAcquireTimeout)
		assert.Equal(t, int64(1), pool.Stats().AcquireFailures)
	})

	t.Run("honours context cancellation", func(t *testing.T) {
		s, err := pool.Acquire(context.Background())
		require.NoError(t, err)
		defer pool.Release(s)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = pool.Acquire(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSessionPool_ConcurrentUse(t *testing.T) {
	pool, err := NewSessionPool(2, time.Second, emptySession)
	require.NoError(t, err)
	defer pool.Destroy()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := pool.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			time.Sleep(time.Millisecond)
			pool.Release(s)
		}()
	}
	wg.Wait()

	stats := pool.Stats()
	assert.Equal(t, int64(20), stats.TotalAcquired)
	assert.Equal(t, int64(20), stats.TotalReleased)
	assert.Equal(t, int64(0), stats.InUse)
}

func TestSessionPool_Destroy(t *testing.T) {
	pool, err := NewSessionPool(2, time.Second, emptySession)
	require.NoError(t, err)

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	pool.Destroy()
	pool.Destroy()

	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)

	assert.NotPanics(t, func() { pool.Release(held) })
}
