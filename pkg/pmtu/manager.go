// Package pmtu: Manager lifecycle and locking.
//
// # Concurrency
//
// The Manager is a shared, mutable service reachable from at least two
// producers: the transport's receive path (OnProbeResponse,
// OnIncomingProbe) and a periodic statistics caller (Adapt). All mutating
// entry points serialize on a single mutex guarding both PathStates and
// both probe registries, per spec.md §5. There are no suspension points
// inside the critical section: ConnectionAdapter calls are made while
// holding the lock, which is safe only because the adapter contract
// requires them to be non-blocking and non-reentrant.
package pmtu

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager is the Path MTU Manager: a single long-lived, per-connection
// component that drives Outgoing and Incoming MTU discovery, adapts to
// loss/RTT feedback, and publishes the validated MTU back to the enclosing
// connection through a ConnectionAdapter.
type Manager struct {
	mu sync.Mutex

	cfg     Config
	adapter ConnectionAdapter
	clock   Clock
	logger  *slog.Logger

	// traceID correlates every log line emitted by this Manager instance
	// across both directions, for operators grepping shared transport logs.
	traceID string

	outgoing *PathState
	incoming *PathState

	outgoingProbes *probeRegistry
	incomingProbes *probeRegistry

	lastAdaptiveCheck time.Time
	haveAdaptiveCheck bool

	stopped bool

	metrics *metricsRecorder
}

// NewManager constructs a Manager. Construction is the only place a fatal
// error can occur (spec.md §7, configuration-violation class); every
// steady-state fault after this point is handled internally.
func NewManager(adapter ConnectionAdapter, cfg Config, logger *slog.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newManager(adapter, cfg, systemClock{}, logger), nil
}

// newManager is the unexported constructor used by tests to inject a fake
// Clock without widening the public API.
func newManager(adapter ConnectionAdapter, cfg Config, clock Clock, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	m := &Manager{
		cfg:            cfg,
		adapter:        adapter,
		clock:          clock,
		logger:         logger,
		traceID:        uuid.NewString(),
		outgoing:       newPathState(cfg),
		incoming:       newPathState(cfg),
		outgoingProbes: newProbeRegistry(),
		incomingProbes: newProbeRegistry(),
		metrics:        newMetricsRecorder(),
	}
	m.metrics.observe(Outgoing, m.outgoing.snapshot())
	m.metrics.observe(Incoming, m.incoming.snapshot())
	return m
}

// path returns the PathState for a direction. Callers must hold m.mu.
func (m *Manager) path(d Direction) *PathState {
	switch d {
	case Outgoing:
		return m.outgoing
	case Incoming:
		return m.incoming
	default:
		return nil
	}
}

// registry returns the probe registry for a direction. Callers must hold
// m.mu.
func (m *Manager) registry(d Direction) *probeRegistry {
	switch d {
	case Outgoing:
		return m.outgoingProbes
	case Incoming:
		return m.incomingProbes
	default:
		return nil
	}
}

// Start begins Outgoing MTU discovery. It is the entry point the enclosing
// connection calls once the path is otherwise established.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(Outgoing)
}

// Restart re-enters the Searching state for a direction, the only legal
// transition out of Blackhole (spec.md §4.3).
func (m *Manager) Restart(direction Direction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.path(direction)
	if p == nil {
		return ErrUnknownDirection
	}
	p.ConsecutiveFailures = 0
	return m.startLocked(direction)
}

// startLocked implements Discovery Engine start() under the lock. See
// discovery.go for the convergence algorithm driven from here.
func (m *Manager) startLocked(direction Direction) error {
	p := m.path(direction)
	if p == nil {
		return ErrUnknownDirection
	}
	if p.InSearchPhase {
		return ErrSearchInProgress
	}
	m.beginSearch(direction, p)
	return nil
}

// Stop drains both probe registries. No further callbacks may fire after
// Stop returns; OnProbeResponse, OnIncomingProbe and Adapt all become
// no-ops once stopped is set.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outgoingProbes.clear()
	m.incomingProbes.clear()
	m.stopped = true
}

// CurrentMTU returns the currently active MTU for a direction.
func (m *Manager) CurrentMTU(direction Direction) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.path(direction)
	if p == nil {
		return 0
	}
	return p.CurrentMTU
}

// Status returns the coarse lifecycle state for a direction.
func (m *Manager) Status(direction Direction) MtuStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.path(direction)
	if p == nil {
		return ""
	}
	return p.Status
}

// PathSnapshot returns a value copy of a direction's PathState, useful for
// tests and diagnostics without exposing the live pointer.
func (m *Manager) PathSnapshot(direction Direction) (PathState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.path(direction)
	if p == nil {
		return PathState{}, false
	}
	return p.snapshot(), true
}

// publishMTU commits a new current_mtu for Outgoing and informs the
// enclosing connection. Per spec.md §5, the published value is always
// either the pre-transition value or the fully validated post-transition
// value — callers must set p.CurrentMTU before calling this.
func (m *Manager) publishMTU(direction Direction, p *PathState) {
	if direction == Outgoing {
		m.adapter.SetMTUSize(p.CurrentMTU)
	}
	m.metrics.observe(direction, p.snapshot())
}
