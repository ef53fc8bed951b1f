package state

import (
	"github.com/google/uuid"

	"github.com/HarshPratapSingh1/ChatVerse/pkg/identity"
)

type Manager interface {
	// --- Connection Lifecycle ---
	// Register adds a connection tagged with its (possibly anonymous)
	// identity. Registering an already-known handle is an error.
	Register(conn Transport, ipAddr string, id identity.Identity) (*Connection, error)
	// Deregister removes a connection. Removing an absent connection is a
	// no-op, not an error.
	Deregister(connID uuid.UUID) error
	Get(connID uuid.UUID) (*Connection, bool)

	// --- Queries ---
	// Snapshot returns the registered connections in registration order.
	// The returned slice is a copy; callers may iterate it while the
	// registry mutates.
	Snapshot() []*Connection
	// FindByRecipient returns every live connection whose verified
	// identity matches userID. Anonymous connections are never returned.
	FindByRecipient(userID string) []*Connection
	CountByUser(userID string) int
	FindOldestUserConnection(userID string) (*Connection, bool)

	// --- Membership notifications ---
	// SetOnChange installs the hook invoked after every effective
	// membership change (successful Register, effective Deregister). The
	// hook runs outside the registry's locks.
	SetOnChange(fn func())
}
