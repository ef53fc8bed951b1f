package registry

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HarshPratapSingh1/ChatVerse/pkg/identity"
	"github.com/HarshPratapSingh1/ChatVerse/pkg/state"
)

// InMemoryRegistry is the single-process connection registry. All
// mutation and iteration is serialized through one RW mutex; snapshots
// are copies, so broadcast loops never iterate the live set.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*state.Connection
	order []uuid.UUID // registration order for Snapshot

	onChange func()

	logger *slog.Logger
}

func NewInMemoryRegistry(logger *slog.Logger) *InMemoryRegistry {
	return &InMemoryRegistry{
		conns:  make(map[uuid.UUID]*state.Connection),
		logger: logger.With(slog.String("component", "registry_inmemory")),
	}
}

// compile-time check to ensure InMemoryRegistry implements Manager.
var _ state.Manager = (*InMemoryRegistry)(nil)

func (r *InMemoryRegistry) SetOnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

func (r *InMemoryRegistry) Register(conn state.Transport, ipAddr string, id identity.Identity) (*state.Connection, error) {
	r.mu.Lock()

	connID := conn.ID()
	if _, exists := r.conns[connID]; exists {
		r.mu.Unlock()
		return nil, errors.New("connection is already registered")
	}
	newConn := &state.Connection{
		ID:        connID,
		IPAddress: ipAddr,
		Identity:  id,
		Transport: conn,
		CreatedAt: time.Now(),
	}
	r.conns[connID] = newConn
	r.order = append(r.order, connID)
	notify := r.onChange
	r.mu.Unlock()

	r.logger.Debug("Connection registered",
		slog.String("connID", connID.String()),
		slog.String("userID", id.UserID),
	)
	if notify != nil {
		notify()
	}
	return newConn, nil
}

func (r *InMemoryRegistry) Deregister(connID uuid.UUID) error {
	r.mu.Lock()

	if _, ok := r.conns[connID]; !ok {
		// already deregistered
		r.mu.Unlock()
		return nil
	}
	delete(r.conns, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	notify := r.onChange
	r.mu.Unlock()

	r.logger.Debug("Connection deregistered", "connID", connID.String())
	if notify != nil {
		notify()
	}
	return nil
}

func (r *InMemoryRegistry) Get(connID uuid.UUID) (*state.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

func (r *InMemoryRegistry) Snapshot() []*state.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*state.Connection, 0, len(r.order))
	for _, id := range r.order {
		conns = append(conns, r.conns[id])
	}
	return conns
}

func (r *InMemoryRegistry) FindByRecipient(userID string) []*state.Connection {
	if userID == "" {
		// The anonymous identity is never a valid recipient.
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*state.Connection
	for _, id := range r.order {
		if conn := r.conns[id]; conn.Identity.UserID == userID {
			conns = append(conns, conn)
		}
	}
	return conns
}

func (r *InMemoryRegistry) CountByUser(userID string) int {
	if userID == "" {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, conn := range r.conns {
		if conn.Identity.UserID == userID {
			count++
		}
	}
	return count
}

func (r *InMemoryRegistry) FindOldestUserConnection(userID string) (*state.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var oldestConn *state.Connection
	for _, conn := range r.conns {
		if conn.Identity.UserID != userID {
			continue
		}
		if oldestConn == nil || conn.CreatedAt.Before(oldestConn.CreatedAt) {
			oldestConn = conn
		}
	}
	if oldestConn == nil {
		return nil, false
	}
	return oldestConn, true
}
