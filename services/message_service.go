package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chat_server/metrics"
	"chat_server/models"
	"chat_server/stores"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DefaultMessageLimit caps ListMessages when no limit is given.
const DefaultMessageLimit = 50

// SendMessageInput is the body of a send message call.
type SendMessageInput struct {
	Text  string `json:"text" validate:"max=4000"`
	Image string `json:"image" validate:"omitempty,startswith=data:image/"`
}

// MessageService stores and lists 1:1 messages. Both directions are gated on
// the pair having an accepted chat request.
type MessageService struct {
	Messages stores.MessageStore
	Requests *ChatRequestService
	Images   ImageStore // optional
	Presence Presence
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

var validate = validator.New()

func (s *MessageService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *MessageService) gate(ctx context.Context, viewerID, counterpartID string) error {
	ok, err := s.Requests.IsAccepted(ctx, viewerID, counterpartID)
	if err != nil {
		return err
	}
	if !ok {
		return newError(ErrForbidden, "Chat request not accepted yet")
	}
	return nil
}

// SendMessage appends a message from senderID to receiverID and pushes it
// to the receiver.
func (s *MessageService) SendMessage(ctx context.Context, senderID, receiverID string, in SendMessageInput) (*models.Message, error) {
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" && in.Image == "" {
		return nil, newError(ErrInvalid, "Message must contain text or an image")
	}
	if err := validate.Struct(in); err != nil {
		return nil, newError(ErrInvalid, "Invalid message")
	}
	if err := s.gate(ctx, senderID, receiverID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	msg := models.Message{
		ConversationID: models.PairKey(senderID, receiverID),
		MessageID:      uuid.NewString(),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Text:           in.Text,
		CreatedAt:      now,
	}

	if in.Image != "" {
		key, err := s.storeImage(ctx, msg.MessageID, in.Image)
		if err != nil {
			return nil, err
		}
		msg.ImageKey = key
	}

	if err := s.Messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	s.resolveImage(ctx, &msg)

	s.logger().Debug("message stored", "message", msg.MessageID, "sender", senderID, "receiver", receiverID)
	notifier{presence: s.Presence, metrics: s.Metrics, logger: s.logger()}.notify(receiverID, models.EventNewMessage, msg)
	return &msg, nil
}

// ListMessages returns the latest messages between viewerID and
// counterpartID, oldest first.
func (s *MessageService) ListMessages(ctx context.Context, viewerID, counterpartID string, limit int) ([]models.Message, error) {
	if err := s.gate(ctx, viewerID, counterpartID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	msgs, err := s.Messages.List(ctx, models.PairKey(viewerID, counterpartID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	for i := range msgs {
		s.resolveImage(ctx, &msgs[i])
	}
	return msgs, nil
}

func (s *MessageService) storeImage(ctx context.Context, messageID, dataURL string) (string, error) {
	if s.Images == nil {
		return "", newError(ErrInvalid, "Image uploads are not configured")
	}
	contentType, data, err := decodeDataURL(dataURL)
	if err != nil {
		return "", newError(ErrInvalid, "Invalid image")
	}
	key := "chat-images/" + messageID + extensionFor(contentType)
	if err := s.Images.Upload(ctx, key, contentType, data); err != nil {
		return "", err
	}
	return key, nil
}

func (s *MessageService) resolveImage(ctx context.Context, msg *models.Message) {
	if msg.ImageKey == "" || s.Images == nil {
		return
	}
	url, err := s.Images.ReadURL(ctx, msg.ImageKey)
	if err != nil {
		s.logger().Warn("failed to presign image", "key", msg.ImageKey, "error", err)
		return
	}
	msg.Image = url
}

// decodeDataURL splits "data:<type>;base64,<payload>".
func decodeDataURL(s string) (string, []byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data url")
	}
	contentType, encoding, _ := strings.Cut(header, ";")
	if encoding != "base64" || !strings.HasPrefix(contentType, "image/") {
		return "", nil, fmt.Errorf("unsupported data url %q", header)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return contentType, data, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}
