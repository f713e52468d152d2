package models

import (
	"encoding/json"
	"time"
)

// Push event names, server to a specific client.
const (
	EventNewChatRequest      = "newChatRequest"
	EventChatRequestAccepted = "chatRequestAccepted"
	EventChatRequestRejected = "chatRequestRejected"
	EventNewMessage          = "newMessage"
	EventOnlineUsers         = "getOnlineUsers"
)

// RequestEvent is the payload of the three chat request events.
type RequestEvent struct {
	ID         string        `json:"_id"`
	SenderID   string        `json:"senderId"`
	ReceiverID string        `json:"receiverId"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// NewRequestEvent builds the event payload for r.
func NewRequestEvent(r ChatRequest) RequestEvent {
	return RequestEvent{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
	}
}

// PushFrame is one event on the raw websocket transport.
type PushFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
