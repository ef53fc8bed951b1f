package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/oklog/ulid/v2"
)

const (
	userPrefix    = "user:name:"
	messagePrefix = "msg:"
)

// BadgerStore persists users and messages in BadgerDB.
//
// Message keys are "msg:{pair}:{timestamp_padded}:{ulid}" where pair is
// the lexicographically sorted user-id pair, so a single prefix scan
// yields one conversation in chronological order: the 19-digit
// zero-padded nanosecond timestamp sorts lexicographically, and the ULID
// disambiguates two messages appended in the same nanosecond.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ DataStore = (*BadgerStore)(nil)

// NewBadgerStore opens (or creates) the store at dir. With inMemory set,
// nothing touches disk; used by tests.
func NewBadgerStore(dir string, inMemory bool, logger *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{
		db:     db,
		logger: logger.With(slog.String("component", "badger_store")),
	}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// --- User operations ---

func (s *BadgerStore) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	user := &User{
		ID:           ulid.Make().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	key := []byte(userPrefix + username)

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return ErrUserExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		bytes, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("User created", slog.String("userID", user.ID), slog.String("username", username))
	return user, nil
}

func (s *BadgerStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userPrefix + username))
		if err == badger.ErrKeyNotFound {
			return ErrUserNotFound
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *BadgerStore) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(userPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var user User
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &user)
			})
			if err != nil {
				return err
			}
			users = append(users, user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// --- Message operations ---

func (s *BadgerStore) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	msg.ID = ulid.Make().String()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	key := messageKey(msg)
	bytes, err := json.Marshal(msg)
	if err != nil {
		return Message{}, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, bytes)
	})
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (s *BadgerStore) Conversation(ctx context.Context, userA, userB string) ([]Message, error) {
	var messages []Message
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(messagePrefix + pairKey(userA, userB) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func messageKey(msg Message) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s",
		messagePrefix,
		pairKey(msg.Sender, msg.Recipient),
		msg.CreatedAt.UnixNano(),
		msg.ID,
	))
}

// pairKey is direction-independent so both sides of a conversation share
// one key range. User ids are ULIDs and never contain the separator.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
