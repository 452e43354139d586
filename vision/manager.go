// Package vision owns the process-wide lifecycle of the detection model.
//
// A Manager is created unloaded, loads its detector exactly once and then
// serves inference to any number of concurrent callers. Load failures leave
// the Manager in StateFailed: the process keeps running and every inference
// call fails fast with ErrModelNotLoaded.
package vision

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/litterly/waste-classification-service/detections"
)

var (
	ErrModelNotLoaded = errors.New("ML model not loaded")
	ErrManagerClosed  = errors.New("model manager closed")
)

type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Detector is the opaque inference capability behind the Manager.
type Detector interface {
	Detect(ctx context.Context, imagePath string, threshold float32) ([]detections.RawDetection, error)
	ClassNames() map[int]string
	Close() error
}

// Loader materializes a Detector from its packaged weights.
type Loader func(ctx context.Context) (Detector, error)

type Manager struct {
	loader Loader
	log    *zap.Logger

	once  sync.Once
	done  chan struct{}
	state atomic.Int32

	mu       sync.RWMutex
	closed   bool
	detector Detector
	names    map[int]string
	loadErr  error
}

func NewManager(loader Loader, log *zap.Logger) *Manager {
	return &Manager{
		loader: loader,
		log:    log.Named("vision"),
		done:   make(chan struct{}),
	}
}

// Load runs the loader once. Later calls return the outcome of the first.
func (m *Manager) Load(ctx context.Context) error {
	m.once.Do(func() {
		defer close(m.done)

		m.mu.Lock()
		if m.closed {
			m.loadErr = ErrManagerClosed
			m.state.Store(int32(StateFailed))
			m.mu.Unlock()
			return
		}
		m.state.Store(int32(StateLoading))
		m.mu.Unlock()
		m.log.Info("Loading detection model")

		detector, err := m.callLoader(ctx)

		m.mu.Lock()
		defer m.mu.Unlock()

		if err == nil && m.closed {
			if cerr := detector.Close(); cerr != nil {
				m.log.Warn("Failed to close detector loaded after shutdown", zap.Error(cerr))
			}
			err = ErrManagerClosed
		}
		if err != nil {
			m.loadErr = err
			m.state.Store(int32(StateFailed))
			m.log.Error("Failed to load detection model; image classification disabled", zap.Error(err))
			return
		}

		m.detector = detector
		m.names = detector.ClassNames()
		m.state.Store(int32(StateLoaded))
		m.logClasses()
	})
	return m.LoadError()
}

func (m *Manager) callLoader(ctx context.Context) (detector Detector, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model loader panicked: %v", r)
		}
	}()

	detector, err = m.loader(ctx)
	if err == nil && detector == nil {
		err = errors.New("model loader returned no detector")
	}
	return detector, err
}

func (m *Manager) logClasses() {
	ids := make([]int, 0, len(m.names))
	for id := range m.names {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	m.log.Info("Model loaded successfully", zap.Int("categories", len(ids)))
	for _, id := range ids {
		m.log.Info("Model category", zap.Int("id", id), zap.String("name", m.names[id]))
	}
}

// Done is closed once the load attempt has finished, successfully or not.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

// IsReady never blocks, so it is safe to call while loading is in progress.
func (m *Manager) IsReady() bool {
	return m.State() == StateLoaded
}

func (m *Manager) LoadError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadErr
}

// ClassNames returns a copy of the index→label table; empty until loaded.
func (m *Manager) ClassNames() map[int]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int]string, len(m.names))
	for k, v := range m.names {
		out[k] = v
	}
	return out
}

func (m *Manager) ClassName(id int) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name, ok := m.names[id]
	return name, ok
}

// Infer runs detection on the image at imagePath. An empty result is a
// successful outcome.
func (m *Manager) Infer(ctx context.Context, imagePath string, threshold float32) ([]detections.RawDetection, error) {
	if !m.IsReady() {
		return nil, ErrModelNotLoaded
	}

	m.mu.RLock()
	detector := m.detector
	m.mu.RUnlock()
	if detector == nil {
		return nil, ErrModelNotLoaded
	}

	return detector.Detect(ctx, imagePath, threshold)
}

// PoolStats reports session pool usage when the loaded detector keeps one.
func (m *Manager) PoolStats() (detections.PoolStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.detector.(interface{ PoolStats() detections.PoolStats })
	if !ok {
		return detections.PoolStats{}, false
	}
	return p.PoolStats(), true
}

// Close releases the detector. A load still in progress is waited for and its
// detector released; a load that has not started yet fails with
// ErrManagerClosed. The Manager reports unloaded afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	loading := m.State() == StateLoading
	m.mu.Unlock()

	if loading {
		<-m.done
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.detector == nil {
		return nil
	}
	m.state.Store(int32(StateUnloaded))
	err := m.detector.Close()
	m.detector = nil
	return err
}
