// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

// Package store persists conversations, chat messages, and notifications in
// BadgerDB. All reads and writes go through transactions; message keys embed
// a nanosecond timestamp so a prefix scan yields history in send order.
package store

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/models"
)

// Key prefixes for BadgerDB storage
const (
	conversationKeyPrefix = "conv:"
	messageKeyPrefix      = "msg:"
	notificationKeyPrefix = "notif:"
)

// Sentinel errors surfaced to callers. The relay maps these onto wire error
// codes, so their identity matters more than their text.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotificationNotFound = errors.New("notification not found")
)

// Store is a BadgerDB-backed persistence layer.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database described by cfg. With cfg.InMemory
// set, no files are written; tests use this mode.
func Open(cfg config.StoreConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs one value-log garbage collection pass. Badger returns an error
// when nothing was rewritten; that case is not reported as a failure.
func (s *Store) RunGC() {
	if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		logging.Warn().Err(err).Msg("Badger value log GC failed")
	}
}

func conversationKey(ownerID string, convID uuid.UUID) []byte {
	return []byte(conversationKeyPrefix + ownerID + ":" + convID.String())
}

// messageKey orders messages within a conversation by creation time. The
// message id breaks ties between messages stored in the same nanosecond.
func messageKey(convID uuid.UUID, createdAt time.Time, msgID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", messageKeyPrefix, convID, createdAt.UnixNano(), msgID))
}

func notificationKey(userID string, notifID uuid.UUID) []byte {
	return []byte(notificationKeyPrefix + userID + ":" + notifID.String())
}

// CreateConversation stores a new conversation owned by ownerID.
func (s *Store) CreateConversation(ownerID, title string) (*models.Conversation, error) {
	conv := &models.Conversation{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("marshal conversation: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(conversationKey(ownerID, conv.ID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("set conversation: %w", err)
	}
	return conv, nil
}

// GetConversation retrieves a conversation by id, scoped to its owner.
// A conversation owned by someone else is indistinguishable from one that
// does not exist.
func (s *Store) GetConversation(ownerID string, convID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(ownerID, convID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrConversationNotFound
		}
		if err != nil {
			return fmt.Errorf("get conversation: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &conv)
		})
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns all conversations owned by ownerID, newest first.
func (s *Store) ListConversations(ownerID string) ([]*models.Conversation, error) {
	var convs []*models.Conversation

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(conversationKeyPrefix + ownerID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var conv models.Conversation
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &conv)
			})
			if err != nil {
				return err
			}
			convs = append(convs, &conv)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	// Keys are ordered by conversation id, not recency
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
	return convs, nil
}

// DeleteConversation removes a conversation and all of its messages. Deleting
// a conversation the owner does not have is an ErrConversationNotFound.
func (s *Store) DeleteConversation(ownerID string, convID uuid.UUID) error {
	// Collect message keys first; Badger iterators cannot delete in place.
	var msgKeys [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(conversationKey(ownerID, convID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrConversationNotFound
			}
			return fmt.Errorf("get conversation: %w", err)
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(messageKeyPrefix + convID.String() + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			msgKeys = append(msgKeys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(conversationKey(ownerID, convID)); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		for _, key := range msgKeys {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete message: %w", err)
			}
		}
		return nil
	})
}

// AppendMessage stores a message at the end of a conversation's history and
// returns it with id and timestamp filled in. Ownership must already have
// been checked against the conversation.
func (s *Store) AppendMessage(convID uuid.UUID, role, content string, attachments []string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ID:             uuid.New(),
		ConversationID: convID,
		Role:           role,
		Content:        content,
		Attachments:    attachments,
		CreatedAt:      time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(convID, msg.CreatedAt, msg.ID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("set message: %w", err)
	}
	return msg, nil
}

// ListMessages returns a conversation's messages oldest first, after checking
// that ownerID owns the conversation.
func (s *Store) ListMessages(ownerID string, convID uuid.UUID) ([]*models.ChatMessage, error) {
	var msgs []*models.ChatMessage

	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(conversationKey(ownerID, convID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrConversationNotFound
			}
			return fmt.Errorf("get conversation: %w", err)
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(messageKeyPrefix + convID.String() + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg models.ChatMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return err
			}
			msgs = append(msgs, &msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// SaveNotification persists a notification for userID and returns it with id
// and timestamp filled in.
func (s *Store) SaveNotification(userID, title, body string, data map[string]string) (*models.Notification, error) {
	notif := &models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}

	raw, err := json.Marshal(notif)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(notificationKey(userID, notif.ID), raw)
	})
	if err != nil {
		return nil, fmt.Errorf("set notification: %w", err)
	}
	return notif, nil
}

// MarkNotificationRead flags one of userID's notifications as read.
// Marking an already-read notification is a no-op, not an error.
func (s *Store) MarkNotificationRead(userID string, notifID uuid.UUID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := notificationKey(userID, notifID)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotificationNotFound
		}
		if err != nil {
			return fmt.Errorf("get notification: %w", err)
		}

		var notif models.Notification
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &notif)
		}); err != nil {
			return err
		}
		if notif.Read {
			return nil
		}
		notif.Read = true

		raw, err := json.Marshal(&notif)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		return txn.Set(key, raw)
	})
}

// MarkAllRead flags every unread notification for userID as read and returns
// how many were flipped.
func (s *Store) MarkAllRead(userID string) (int, error) {
	count := 0

	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(notificationKeyPrefix + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var notif models.Notification
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &notif)
			})
			if err != nil {
				return err
			}
			if notif.Read {
				continue
			}
			notif.Read = true

			raw, err := json.Marshal(&notif)
			if err != nil {
				return fmt.Errorf("marshal notification: %w", err)
			}
			if err := txn.Set(it.Item().KeyCopy(nil), raw); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UnreadCount returns the number of unread notifications for userID.
func (s *Store) UnreadCount(userID string) (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(notificationKeyPrefix + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var notif models.Notification
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &notif)
			})
			if err != nil {
				return err
			}
			if !notif.Read {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
