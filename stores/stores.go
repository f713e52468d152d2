// Package stores holds the durable state behind the chat request core: the
// connection table, the user directory it consults, and the message log.
//
// Two backends implement every interface: DynamoDB for deployments and
// Badger for local runs and tests. Both enforce one record per unordered
// pair of users, the DynamoDB one with conditional writes and the Badger one
// with conflict-detecting transactions.
package stores

import (
	"context"
	"errors"

	"chat_server/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrWriteConflict is returned when an atomic update lost too many races.
	ErrWriteConflict = errors.New("concurrent write conflict")
)

// DefaultMaxRetries bounds how often Mutate re-reads after losing a race.
const DefaultMaxRetries = 8

// MutateFunc receives the current record for a pair (nil when none exists)
// and returns the record to persist. Returning (nil, nil) leaves the pair
// untouched. It may be invoked more than once and must not have side effects.
type MutateFunc func(current *models.ChatRequest) (*models.ChatRequest, error)

// ConnectionStore persists ChatRequest records keyed by pair.
type ConnectionStore interface {
	// Mutate performs an atomic read-modify-write of the record for pairKey.
	Mutate(ctx context.Context, pairKey string, fn MutateFunc) (*models.ChatRequest, error)
	GetByID(ctx context.Context, id string) (*models.ChatRequest, error)
	GetByPair(ctx context.Context, pairKey string) (*models.ChatRequest, error)
	// ListByUser returns records involving userID, newest first. An empty
	// status matches every status.
	ListByUser(ctx context.Context, userID string, status models.RequestStatus) ([]models.ChatRequest, error)
}

// UserDirectory is the read side of the identity service.
type UserDirectory interface {
	Get(ctx context.Context, userID string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Put(ctx context.Context, user models.User) error
}

// MessageStore is the message log, keyed by conversation (pair key).
type MessageStore interface {
	Append(ctx context.Context, msg models.Message) error
	// List returns up to limit most recent messages, oldest first.
	List(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
}

// Backend bundles the three stores of one storage engine.
type Backend struct {
	Connections ConnectionStore
	Users       UserDirectory
	Messages    MessageStore
	Close       func() error
}

func validateNext(pairKey string, current, next *models.ChatRequest) error {
	if next.PairKey != pairKey {
		return errors.New("mutate: record pair key does not match")
	}
	if next.SenderID == next.ReceiverID {
		return errors.New("mutate: record parties must differ")
	}
	if models.PairKey(next.SenderID, next.ReceiverID) != pairKey {
		return errors.New("mutate: record parties do not match pair key")
	}
	if current != nil && current.ID != next.ID {
		return errors.New("mutate: record id cannot change")
	}
	return nil
}

func cloneRequest(r *models.ChatRequest) *models.ChatRequest {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
