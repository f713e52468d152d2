package stores

import (
	"context"
	"errors"

	"chat_server/models"

	"github.com/dgraph-io/badger/v4"
)

// Key layout:
//
//	chatreq/pair/<pairKey>          -> ChatRequest JSON
//	chatreq/id/<id>                 -> pairKey
//	chatreq/user/<userId>/<pairKey> -> empty
const (
	pairPrefix = "chatreq/pair/"
	idPrefix   = "chatreq/id/"
	userPrefix = "chatreq/user/"
)

func pairKeyBytes(pairKey string) []byte { return []byte(pairPrefix + pairKey) }
func idKeyBytes(id string) []byte        { return []byte(idPrefix + id) }
func userIndexPrefix(userID string) []byte {
	return []byte(userPrefix + userID + "/")
}

// BadgerConnectionStore keeps one key per pair. Badger's optimistic
// transactions fail a commit when another committed transaction wrote a key
// this one read, so two racing inserts for the same pair cannot both land.
type BadgerConnectionStore struct {
	DB         *badger.DB
	MaxRetries int
}

func (s *BadgerConnectionStore) retries() int {
	if s.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return s.MaxRetries
}

// GetByPair reads the record for pairKey.
func (s *BadgerConnectionStore) GetByPair(ctx context.Context, pairKey string) (*models.ChatRequest, error) {
	var req models.ChatRequest
	err := s.DB.View(func(txn *badger.Txn) error {
		return getJSON(txn, pairKeyBytes(pairKey), &req)
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByID follows the id index to the pair record.
func (s *BadgerConnectionStore) GetByID(ctx context.Context, id string) (*models.ChatRequest, error) {
	var req models.ChatRequest
	err := s.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKeyBytes(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		pairKey, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, pairKeyBytes(string(pairKey)), &req)
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListByUser walks the per-user index.
func (s *BadgerConnectionStore) ListByUser(ctx context.Context, userID string, status models.RequestStatus) ([]models.ChatRequest, error) {
	byPair := map[string]models.ChatRequest{}
	err := s.DB.View(func(txn *badger.Txn) error {
		prefix := userIndexPrefix(userID)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			pairKey := string(it.Item().Key()[len(prefix):])
			var req models.ChatRequest
			if err := getJSON(txn, pairKeyBytes(pairKey), &req); err != nil {
				return err
			}
			if status == "" || req.Status == status {
				byPair[pairKey] = req
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sortNewestFirst(byPair), nil
}

// Mutate applies fn inside one read-write transaction, retrying when the
// commit detects a conflicting writer.
func (s *BadgerConnectionStore) Mutate(ctx context.Context, pairKey string, fn MutateFunc) (*models.ChatRequest, error) {
	for attempt := 0; attempt < s.retries(); attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var result *models.ChatRequest
		err := s.DB.Update(func(txn *badger.Txn) error {
			var current *models.ChatRequest
			var stored models.ChatRequest
			switch err := getJSON(txn, pairKeyBytes(pairKey), &stored); {
			case err == nil:
				current = &stored
			case errors.Is(err, ErrNotFound):
			default:
				return err
			}

			next, err := fn(cloneRequest(current))
			if err != nil {
				return err
			}
			if next == nil {
				result = current
				return nil
			}
			if err := validateNext(pairKey, current, next); err != nil {
				return err
			}

			next.Version = 1
			if current != nil {
				next.Version = current.Version + 1
			}
			if err := setJSON(txn, pairKeyBytes(pairKey), next); err != nil {
				return err
			}
			if current == nil {
				if err := txn.Set(idKeyBytes(next.ID), []byte(pairKey)); err != nil {
					return err
				}
				for _, u := range []string{next.SenderID, next.ReceiverID} {
					if err := txn.Set(append(userIndexPrefix(u), pairKey...), nil); err != nil {
						return err
					}
				}
			}
			result = next
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, ErrWriteConflict
}
