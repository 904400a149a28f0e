package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/singnet/snet-docstore-go/pkg/retry"
	"github.com/singnet/snet-docstore-go/pkg/storage"
	"go.uber.org/zap"
)

// State is the manager's connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Source tells which backend is active.
type Source string

const (
	SourceNone     Source = ""
	SourcePrimary  Source = "primary"
	SourceEmbedded Source = "embedded"
)

// Dialer creates a backend. It should not block on network I/O beyond what
// constructing a client needs; liveness is checked by the manager.
type Dialer func(ctx context.Context) (storage.Backend, error)

// Options configures a Manager.
type Options struct {
	// Primary dials the preferred endpoint. Nil skips straight to Embedded.
	Primary Dialer
	// Embedded starts the fallback node. It is called at most once per
	// Manager; the node is reused across reconnects.
	Embedded Dialer
	// HealthInterval is the period of the background loop. Default 60s.
	HealthInterval time.Duration
	// ProbeTimeout bounds each version probe. Default 5s.
	ProbeTimeout time.Duration
}

func (o Options) withDefaults() Options {
	oo := o
	if oo.HealthInterval <= 0 {
		oo.HealthInterval = 60 * time.Second
	}
	if oo.ProbeTimeout <= 0 {
		oo.ProbeTimeout = 5 * time.Second
	}
	return oo
}

// Manager holds the process's single active backend.
type Manager struct {
	opts Options

	// connectMu serializes Connect. It is never taken by request paths, so a
	// slow dial does not stall Add/Pin/Cat.
	connectMu sync.Mutex
	embedded  storage.Backend

	mu      sync.RWMutex
	backend storage.Backend
	source  Source
	state   State

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager returns a disconnected manager.
func NewManager(opts Options) *Manager {
	return &Manager{
		opts:  opts.withDefaults(),
		state: Disconnected,
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Connected reports whether a backend is active.
func (m *Manager) Connected() bool { return m.State() == Connected }

// Source reports which backend is active, or SourceNone.
func (m *Manager) Source() Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != Connected {
		return SourceNone
	}
	return m.source
}

// Connect dials the primary endpoint and falls back to the embedded node.
// A manager that is already connected keeps serving requests from its current
// backend until the new one replaces it; only a failed dial takes it down.
func (m *Manager) Connect(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	if m.state != Connected {
		m.state = Connecting
	}
	m.mu.Unlock()

	backend, source, err := m.dial(ctx)
	if err != nil {
		m.mu.Lock()
		m.state = Disconnected
		m.mu.Unlock()
		zap.L().Error("storage connection failed", zap.Error(err))
		return err
	}

	m.mu.Lock()
	old := m.backend
	m.backend = backend
	m.source = source
	m.state = Connected
	m.mu.Unlock()

	if old != nil && old != backend && old != m.embedded {
		if cerr := old.Close(); cerr != nil {
			zap.L().Warn("closing previous backend failed", zap.Error(cerr))
		}
	}
	zap.L().Info("storage connected", zap.String("source", string(source)))
	return nil
}

func (m *Manager) dial(ctx context.Context) (storage.Backend, Source, error) {
	var causes []error

	if m.opts.Primary != nil {
		b, err := m.opts.Primary(ctx)
		if err == nil {
			if err = m.probe(ctx, b); err == nil {
				return b, SourcePrimary, nil
			}
			_ = b.Close()
		}
		zap.L().Warn("primary storage endpoint unavailable, falling back to embedded node", zap.Error(err))
		causes = append(causes, fmt.Errorf("primary: %w", err))
	}

	if m.opts.Embedded != nil {
		b, err := m.embeddedBackend(ctx)
		if err == nil {
			if err = m.probe(ctx, b); err == nil {
				return b, SourceEmbedded, nil
			}
		}
		causes = append(causes, fmt.Errorf("embedded: %w", err))
	}

	if len(causes) == 0 {
		causes = append(causes, errors.New("no storage backend configured"))
	}
	return nil, SourceNone, &ConnectionError{Msg: "no storage backend reachable", Causes: causes}
}

func (m *Manager) embeddedBackend(ctx context.Context) (storage.Backend, error) {
	if m.embedded != nil {
		return m.embedded, nil
	}
	b, err := m.opts.Embedded(ctx)
	if err != nil {
		return nil, err
	}
	m.embedded = b
	return b, nil
}

func (m *Manager) probe(ctx context.Context, b storage.Backend) error {
	pctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()
	_, err := retry.Do(pctx, retry.Once, "storage version probe", b.Version)
	return err
}

// HealthCheck probes the active backend once. A failed probe moves the
// manager to Disconnected.
func (m *Manager) HealthCheck(ctx context.Context) bool {
	m.mu.RLock()
	b, state := m.backend, m.state
	m.mu.RUnlock()

	if b == nil || state != Connected {
		return false
	}

	if err := m.probe(ctx, b); err != nil {
		m.mu.Lock()
		if m.backend == b && m.state == Connected {
			m.state = Disconnected
		}
		m.mu.Unlock()
		zap.L().Warn("storage health check failed", zap.Error(err))
		return false
	}
	return true
}

// tick runs one iteration of the background loop.
func (m *Manager) tick(ctx context.Context) {
	if m.Connected() && m.HealthCheck(ctx) {
		return
	}
	if err := m.Connect(ctx); err != nil {
		zap.L().Warn("storage reconnect failed, retrying next interval",
			zap.Duration("interval", m.opts.HealthInterval), zap.Error(err))
	}
}

// Run performs health checks and reconnects every HealthInterval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Start runs the background loop in its own goroutine. Calling Start on a
// manager whose loop is already running is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel, m.done = cancel, done
	go func() {
		defer close(done)
		m.Run(ctx)
	}()
}

// Close stops the background loop and closes the backends.
func (m *Manager) Close() error {
	m.loopMu.Lock()
	if m.cancel != nil {
		m.cancel()
		<-m.done
		m.cancel, m.done = nil, nil
	}
	m.loopMu.Unlock()

	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	b := m.backend
	m.backend, m.source, m.state = nil, SourceNone, Disconnected
	m.mu.Unlock()

	var err error
	if b != nil && b != m.embedded {
		err = b.Close()
	}
	if m.embedded != nil {
		if cerr := m.embedded.Close(); cerr != nil && err == nil {
			err = cerr
		}
		m.embedded = nil
	}
	return err
}

func (m *Manager) active() (storage.Backend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != Connected || m.backend == nil {
		return nil, NotConnected()
	}
	return m.backend, nil
}

// Add stores data on the active backend.
func (m *Manager) Add(ctx context.Context, data []byte) (string, error) {
	b, err := m.active()
	if err != nil {
		return "", err
	}
	return b.Add(ctx, data)
}

// Pin pins cid on the active backend.
func (m *Manager) Pin(ctx context.Context, cid string) error {
	b, err := m.active()
	if err != nil {
		return err
	}
	return b.Pin(ctx, cid)
}

// Cat reads cid from the active backend.
func (m *Manager) Cat(ctx context.Context, cid string) ([]byte, error) {
	b, err := m.active()
	if err != nil {
		return nil, err
	}
	return b.Cat(ctx, cid)
}

// CatLocal reads cid from the active backend without network egress.
func (m *Manager) CatLocal(ctx context.Context, cid string) ([]byte, error) {
	b, err := m.active()
	if err != nil {
		return nil, err
	}
	return b.CatLocal(ctx, cid)
}

// Version probes the active backend.
func (m *Manager) Version(ctx context.Context) (string, error) {
	b, err := m.active()
	if err != nil {
		return "", err
	}
	return b.Version(ctx)
}
