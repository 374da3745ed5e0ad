// Package health tracks whether the document store is reachable.
package health

import (
	"context"
	"fmt"
	"sync"

	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/console/internal/metrics"
	"github.com/telhawk-systems/alarm-console/console/internal/store"
)

// State is the store's last known reachability.
type State int

const (
	Unknown State = iota
	Reachable
	Unreachable
)

func (s State) String() string {
	switch s {
	case Reachable:
		return "reachable"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Pinger is satisfied by *store.Client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor records the outcome of store pings. It never retries on its own.
type Monitor struct {
	pinger Pinger
	conn   store.Connection
	logger *logging.Logger

	mu      sync.RWMutex
	state   State
	lastErr error
}

func NewMonitor(pinger Pinger, conn store.Connection, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Monitor{
		pinger: pinger,
		conn:   conn,
		logger: logger.Component("health"),
	}
}

// Check pings the store and records the transition. Any error, including a
// non-success answer, counts as unreachable.
func (m *Monitor) Check(ctx context.Context) (bool, error) {
	err := m.pinger.Ping(ctx)

	m.mu.Lock()
	prev := m.state
	if err != nil {
		m.state = Unreachable
		m.lastErr = err
	} else {
		m.state = Reachable
		m.lastErr = nil
	}
	next := m.state
	m.mu.Unlock()

	metrics.SetStoreUp(err == nil)

	if prev != next {
		if err != nil {
			m.logger.WarnContext(ctx, "store unreachable", logging.Store(m.Label()), logging.Error(err))
		} else {
			m.logger.InfoContext(ctx, "store reachable", logging.Store(m.Label()))
		}
	}

	return err == nil, err
}

func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Label is host[:port] plus " as <user>" when the connection embeds one.
func (m *Monitor) Label() string {
	return m.conn.Label()
}

// Status is the human-readable connection line.
func (m *Monitor) Status() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch m.state {
	case Reachable:
		return "Connected to ES " + m.conn.Label()
	case Unreachable:
		return fmt.Sprintf("Disconnected from ES %s: %v", m.conn.Label(), m.lastErr)
	default:
		return "Connecting to ES " + m.conn.Label()
	}
}
