package detections

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

const (
	DefaultPoolSize       = 2
	DefaultAcquireTimeout = 5 * time.Second
)

var (
	ErrPoolClosed     = errors.New("session pool is closed")
	ErrAcquireTimeout = errors.New("timeout waiting for available session")
)

// SessionPool hands out ONNX sessions one request at a time. Each session
// owns fixed input and output tensors, so a session is never shared.
type SessionPool struct {
	sessions       chan *ModelSession
	size           int
	acquireTimeout time.Duration
	mu             sync.Mutex
	closed         bool
	metrics        poolMetrics
}

// Counters are padded apart since every request touches them.
type poolMetrics struct {
	inUse           atomic.Int64
	_               cpu.CacheLinePad
	totalAcquired   atomic.Int64
	_               cpu.CacheLinePad
	totalReleased   atomic.Int64
	_               cpu.CacheLinePad
	acquireFailures atomic.Int64
}

type PoolStats struct {
	Size            int   `json:"pool_size"`
	InUse           int64 `json:"sessions_in_use"`
	TotalAcquired   int64 `json:"total_acquired"`
	TotalReleased   int64 `json:"total_released"`
	AcquireFailures int64 `json:"acquire_failures"`
}

func NewSessionPool(size int, acquireTimeout time.Duration, newSession func() (*ModelSession, error)) (*SessionPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}

	pool := &SessionPool{
		sessions:       make(chan *ModelSession, size),
		size:           size,
		acquireTimeout: acquireTimeout,
	}

	for i := 0; i < size; i++ {
		session, err := newSession()
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		pool.sessions <- session
	}

	return pool, nil
}

func (p *SessionPool) Acquire(ctx context.Context) (*ModelSession, error) {
	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case session, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		p.metrics.inUse.Add(1)
		p.metrics.totalAcquired.Add(1)
		return session, nil
	case <-timer.C:
		p.metrics.acquireFailures.Add(1)
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		p.metrics.acquireFailures.Add(1)
		return nil, ctx.Err()
	}
}

func (p *SessionPool) Release(session *ModelSession) {
	p.metrics.inUse.Add(-1)
	p.metrics.totalReleased.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		session.Destroy()
		return
	}
	p.sessions <- session
}

// Destroy closes the pool and destroys idle sessions. Sessions still checked
// out are destroyed when they are released.
func (p *SessionPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.sessions)

	for session := range p.sessions {
		session.Destroy()
	}
}

func (p *SessionPool) Stats() PoolStats {
	return PoolStats{
		Size:            p.size,
		InUse:           p.metrics.inUse.Load(),
		TotalAcquired:   p.metrics.totalAcquired.Load(),
		TotalReleased:   p.metrics.totalReleased.Load(),
		AcquireFailures: p.metrics.acquireFailures.Load(),
	}
}
