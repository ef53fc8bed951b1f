package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// User is a registered account record.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Message is a persisted chat message. ID is assigned at append time and
// is the value clients see as "_id". Records are immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Text      string    `json:"text,omitempty"`
	File      string    `json:"file,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DataStore is the append/query contract the relay persists through.
type DataStore interface {
	Close() error

	// User operations
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)

	// Message operations
	// AppendMessage assigns the record id and creation time and returns
	// the stored record.
	AppendMessage(ctx context.Context, msg Message) (Message, error)
	// Conversation returns every message between the two users, both
	// directions, ascending by creation.
	Conversation(ctx context.Context, userA, userB string) ([]Message, error)
}
