package models

import "time"

// RequestStatus is the state of the relationship between two users.
type RequestStatus string

// Chat request statuses
const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusRejected RequestStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// ChatRequest is the single durable record for an unordered pair of users.
// SenderID is the user who initiated the current cycle (requestedBy).
type ChatRequest struct {
	ID         string        `dynamodbav:"id" json:"_id"`
	PairKey    string        `dynamodbav:"pairKey" json:"pairKey"` // PK, see PairKey
	SenderID   string        `dynamodbav:"senderId" json:"senderId"`
	ReceiverID string        `dynamodbav:"receiverId" json:"receiverId"`
	Status     RequestStatus `dynamodbav:"status" json:"status"`
	Version    int64         `dynamodbav:"version" json:"version"`
	CreatedAt  time.Time     `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time     `dynamodbav:"updatedAt" json:"updatedAt"`
}

// ChatRequestsTable is the DynamoDB table name for chat requests
const ChatRequestsTable = "ChatRequests"

// DynamoDB secondary indexes on ChatRequestsTable
const (
	RequestIDIndex = "RequestIdIndex"
	SenderIndex    = "SenderIndex"
	ReceiverIndex  = "ReceiverIndex"
)

const pairSeparator = "#"

// PairKey returns the canonical identity of the unordered pair {a, b}.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + pairSeparator + b
}

// RequestedBy returns the user who initiated the current cycle.
func (r ChatRequest) RequestedBy() string { return r.SenderID }

// Involves reports whether userID is one of the two parties.
func (r ChatRequest) Involves(userID string) bool {
	return r.SenderID == userID || r.ReceiverID == userID
}

// Counterpart returns the other party from userID's point of view.
func (r ChatRequest) Counterpart(userID string) string {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}

// ChatRequestView is a ChatRequest with both parties expanded to
// profile-safe projections.
type ChatRequestView struct {
	ChatRequest
	Sender   PublicUser `json:"sender"`
	Receiver PublicUser `json:"receiver"`
}
