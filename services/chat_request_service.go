package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chat_server/metrics"
	"chat_server/models"
	"chat_server/stores"

	"github.com/google/uuid"
)

// ChatRequestService owns every transition of the per-pair ChatRequest
// record. Each operation is a single atomic Mutate on the pair; the push to
// the counterpart happens afterwards and cannot fail the operation.
type ChatRequestService struct {
	Connections stores.ConnectionStore
	Users       stores.UserDirectory
	Presence    Presence
	Metrics     *metrics.Metrics
	Logger      *slog.Logger

	// Now and NewID are overridable in tests.
	Now   func() time.Time
	NewID func() string
}

func (s *ChatRequestService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *ChatRequestService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ChatRequestService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *ChatRequestService) notifier() notifier {
	return notifier{presence: s.Presence, metrics: s.Metrics, logger: s.logger()}
}

// SendRequest opens a pending cycle from sender to receiver. A rejected pair
// is revived in place: same record, new direction, status pending.
func (s *ChatRequestService) SendRequest(ctx context.Context, senderID, receiverID string) (req *models.ChatRequest, err error) {
	defer func() { s.Metrics.Transition("send", Outcome(err)) }()

	if senderID == receiverID {
		return nil, newError(ErrSelfRequest, "Cannot send request to yourself")
	}
	if _, err := s.Users.Get(ctx, receiverID); err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return nil, newError(ErrNotFound, "User not found")
		}
		return nil, fmt.Errorf("lookup receiver: %w", err)
	}

	pair := models.PairKey(senderID, receiverID)
	req, err = s.Connections.Mutate(ctx, pair, func(current *models.ChatRequest) (*models.ChatRequest, error) {
		now := s.now()
		if current == nil {
			return &models.ChatRequest{
				ID:         s.newID(),
				PairKey:    pair,
				SenderID:   senderID,
				ReceiverID: receiverID,
				Status:     models.StatusPending,
				CreatedAt:  now,
				UpdatedAt:  now,
			}, nil
		}
		switch current.Status {
		case models.StatusPending:
			return nil, newError(ErrConflict, "Request already pending")
		case models.StatusAccepted:
			return nil, newError(ErrConflict, "You are already connected with this user")
		}
		current.SenderID = senderID
		current.ReceiverID = receiverID
		current.Status = models.StatusPending
		current.UpdatedAt = now
		return current, nil
	})
	if err != nil {
		return nil, s.storeError("send", err)
	}

	s.logger().Info("chat request sent", "request", req.ID, "sender", senderID, "receiver", receiverID)
	s.notifier().notify(receiverID, models.EventNewChatRequest, models.NewRequestEvent(*req))
	return req, nil
}

// AcceptRequest moves a pending request to accepted. Only its receiver may.
func (s *ChatRequestService) AcceptRequest(ctx context.Context, actingUserID, requestID string) (req *models.ChatRequest, err error) {
	defer func() { s.Metrics.Transition("accept", Outcome(err)) }()
	req, err = s.decide(ctx, actingUserID, requestID, models.StatusAccepted)
	if err != nil {
		return nil, err
	}
	s.logger().Info("chat request accepted", "request", req.ID, "by", actingUserID)
	s.notifier().notify(req.SenderID, models.EventChatRequestAccepted, models.NewRequestEvent(*req))
	return req, nil
}

// RejectRequest moves a pending request to rejected. Only its receiver may.
func (s *ChatRequestService) RejectRequest(ctx context.Context, actingUserID, requestID string) (req *models.ChatRequest, err error) {
	defer func() { s.Metrics.Transition("reject", Outcome(err)) }()
	req, err = s.decide(ctx, actingUserID, requestID, models.StatusRejected)
	if err != nil {
		return nil, err
	}
	s.logger().Info("chat request rejected", "request", req.ID, "by", actingUserID)
	s.notifier().notify(req.SenderID, models.EventChatRequestRejected, models.NewRequestEvent(*req))
	return req, nil
}

func (s *ChatRequestService) decide(ctx context.Context, actingUserID, requestID string, to models.RequestStatus) (*models.ChatRequest, error) {
	found, err := s.Connections.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return nil, newError(ErrNotFound, "Request not found")
		}
		return nil, fmt.Errorf("lookup request: %w", err)
	}

	req, err := s.Connections.Mutate(ctx, found.PairKey, func(current *models.ChatRequest) (*models.ChatRequest, error) {
		if current == nil || current.ID != requestID {
			return nil, newError(ErrNotFound, "Request not found")
		}
		if current.ReceiverID != actingUserID {
			return nil, newError(ErrForbidden, "Not authorized")
		}
		if current.Status != models.StatusPending {
			return nil, newError(ErrConflict, fmt.Sprintf("Request is already %s", current.Status))
		}
		current.Status = to
		current.UpdatedAt = s.now()
		return current, nil
	})
	if err != nil {
		return nil, s.storeError(string(to), err)
	}
	return req, nil
}

// storeError passes RequestErrors through and turns an exhausted retry into
// a conflict the caller can re-fetch from.
func (s *ChatRequestService) storeError(op string, err error) error {
	var re *RequestError
	if errors.As(err, &re) {
		return err
	}
	if errors.Is(err, stores.ErrWriteConflict) {
		s.logger().Warn("chat request write conflict", "op", op, "error", err)
		return newError(ErrConflict, "Request was modified concurrently, please retry")
	}
	return fmt.Errorf("%s chat request: %w", op, err)
}

// ListPending returns every pending record involving userID, newest first,
// with both parties expanded.
func (s *ChatRequestService) ListPending(ctx context.Context, userID string) ([]models.ChatRequestView, error) {
	reqs, err := s.Connections.ListByUser(ctx, userID, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	views := make([]models.ChatRequestView, 0, len(reqs))
	profiles := map[string]models.PublicUser{}
	for _, r := range reqs {
		sender, err := s.profile(ctx, profiles, r.SenderID)
		if err != nil {
			return nil, err
		}
		receiver, err := s.profile(ctx, profiles, r.ReceiverID)
		if err != nil {
			return nil, err
		}
		views = append(views, models.ChatRequestView{ChatRequest: r, Sender: sender, Receiver: receiver})
	}
	return views, nil
}

// ListAccepted returns the profiles of everyone userID is connected to.
func (s *ChatRequestService) ListAccepted(ctx context.Context, userID string) ([]models.PublicUser, error) {
	reqs, err := s.Connections.ListByUser(ctx, userID, models.StatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("list accepted: %w", err)
	}
	out := make([]models.PublicUser, 0, len(reqs))
	profiles := map[string]models.PublicUser{}
	for _, r := range reqs {
		p, err := s.profile(ctx, profiles, r.Counterpart(userID))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// IsAccepted reports whether a and b may exchange messages.
func (s *ChatRequestService) IsAccepted(ctx context.Context, a, b string) (bool, error) {
	if a == b {
		return false, nil
	}
	req, err := s.Connections.GetByPair(ctx, models.PairKey(a, b))
	if errors.Is(err, stores.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup pair: %w", err)
	}
	return req.Status == models.StatusAccepted, nil
}

// profile resolves a user to its public projection. A user removed from the
// directory still renders, with only the id.
func (s *ChatRequestService) profile(ctx context.Context, cache map[string]models.PublicUser, userID string) (models.PublicUser, error) {
	if p, ok := cache[userID]; ok {
		return p, nil
	}
	u, err := s.Users.Get(ctx, userID)
	switch {
	case errors.Is(err, stores.ErrNotFound):
		cache[userID] = models.PublicUser{ID: userID}
	case err != nil:
		return models.PublicUser{}, fmt.Errorf("lookup user %s: %w", userID, err)
	default:
		cache[userID] = u.Public()
	}
	return cache[userID], nil
}
