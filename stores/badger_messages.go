package stores

import (
	"context"
	"encoding/json"

	"chat_server/models"

	"github.com/dgraph-io/badger/v4"
)

const messagesPrefix = "msg/"

type storedMessage struct {
	models.Message
	ImageKey string `json:"imageKey,omitempty"`
}

type BadgerMessageStore struct {
	DB *badger.DB
}

func conversationPrefix(conversationID string) []byte {
	return []byte(messagesPrefix + conversationID + "/")
}

func (s *BadgerMessageStore) Append(ctx context.Context, msg models.Message) error {
	if msg.SortKey == "" {
		msg.SortKey = models.MessageSortKey(msg.CreatedAt, msg.MessageID)
	}
	key := append(conversationPrefix(msg.ConversationID), msg.SortKey...)
	return s.DB.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key, storedMessage{Message: msg, ImageKey: msg.ImageKey})
	})
}

// List iterates the conversation backwards from its newest key.
func (s *BadgerMessageStore) List(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.DB.View(func(txn *badger.Txn) error {
		prefix := conversationPrefix(conversationID)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) >= limit {
				break
			}
			var sm storedMessage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sm)
			}); err != nil {
				return err
			}
			msg := sm.Message
			msg.ImageKey = sm.ImageKey
			msg.SortKey = string(it.Item().Key()[len(prefix):])
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	reverseMessages(messages)
	return messages, nil
}
