package state

import (
	"time"

	"github.com/google/uuid"

	"github.com/HarshPratapSingh1/ChatVerse/pkg/identity"
)

// Transport is the send/close capability the registry tracks for each
// connection. *transport.Connection satisfies it; tests substitute fakes.
type Transport interface {
	ID() uuid.UUID
	Send(message []byte) error
	Close(err error)
}

// Connection is the registry's representation of one open duplex channel.
// Identity is write-once: set at accept time, never mutated afterward. An
// anonymous connection carries the zero Identity.
type Connection struct {
	ID        uuid.UUID
	IPAddress string
	Identity  identity.Identity
	Transport Transport
	CreatedAt time.Time
}
