// Package liveness implements the per-connection heartbeat state machine.
// A monitor probes its peer on a fixed interval and declares the
// connection dead when a probe is not answered within the pong timeout.
package liveness

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	StateAlive State = iota
	StateAwaitingPong
	StateDead
)

func (s State) String() string {
	switch s {
	case StateAlive:
		return "ALIVE"
	case StateAwaitingPong:
		return "AWAITING_PONG"
	case StateDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// Probe sends one ping and returns nil once the peer answers, or an error
// when the context expires first or the transport fails.
type Probe func(ctx context.Context) error

// OnDead is invoked at most once, when the monitor declares the
// connection dead. It is never invoked after Stop.
type OnDead func(reason error)

// Monitor runs the ALIVE -> AWAITING_PONG -> (ALIVE | DEAD) cycle for a
// single connection. DEAD is terminal: the probe timer stops and the
// death callback fires exactly once, even if a probe failure races an
// explicit Stop. A pong arriving after the timeout already fired is
// absorbed by the transport and ignored here.
type Monitor struct {
	probe    Probe
	interval time.Duration
	timeout  time.Duration
	onDead   OnDead
	logger   *slog.Logger

	mu         sync.Mutex
	state      State
	cancel     context.CancelFunc
	evicted    bool
	suppressed bool
}

func NewMonitor(probe Probe, interval, timeout time.Duration, onDead OnDead, logger *slog.Logger) *Monitor {
	return &Monitor{
		probe:    probe,
		interval: interval,
		timeout:  timeout,
		onDead:   onDead,
		logger:   logger.With(slog.String("component", "liveness_monitor")),
		state:    StateAlive,
	}
}

// Run drives the heartbeat cycle until the connection dies or ctx is
// cancelled. It is meant to be run as the connection's heartbeat
// goroutine.
func (m *Monitor) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	defer cancel()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Owner-initiated shutdown takes the same terminal state but
			// not the death callback; the close path already handles
			// removal.
			m.setState(StateDead)
			return
		case <-ticker.C:
			m.setState(StateAwaitingPong)
			probeCtx, cancelProbe := context.WithTimeout(ctx, m.timeout)
			err := m.probe(probeCtx)
			cancelProbe()

			if ctx.Err() != nil {
				m.setState(StateDead)
				return
			}
			if err != nil {
				m.logger.Debug("Probe unanswered, declaring connection dead", slog.Any("error", err))
				m.kill(err)
				return
			}
			m.setState(StateAlive)
		}
	}
}

// Stop ends the heartbeat cycle without invoking the death callback.
// Safe to call from any state, any number of times.
func (m *Monitor) Stop() {
	m.mu.Lock()
	// Suppress any racing probe failure: once stopped, the connection's
	// fate is the owner's, not the monitor's.
	m.suppressed = true
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// State reports the current state. Primarily for tests and diagnostics.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateDead {
		return
	}
	m.state = s
}

// Evicted reports whether the monitor itself declared the connection
// dead, as opposed to an owner-initiated Stop.
func (m *Monitor) Evicted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evicted
}

func (m *Monitor) kill(reason error) {
	m.mu.Lock()
	fire := !m.suppressed && !m.evicted
	if fire {
		m.evicted = true
	}
	m.state = StateDead
	m.mu.Unlock()

	// The callback runs outside the lock so it may call back into the
	// monitor, including Stop.
	if fire && m.onDead != nil {
		m.onDead(reason)
	}
}
