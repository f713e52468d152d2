package models

import "time"

type Message struct {
	ConversationID string    `dynamodbav:"conversationId" json:"conversationId"` // PK, pair key
	SortKey        string    `dynamodbav:"sortKey" json:"-"`                     // SK, createdAt#messageId
	MessageID      string    `dynamodbav:"messageId" json:"_id"`
	SenderID       string    `dynamodbav:"senderId" json:"senderId"`
	ReceiverID     string    `dynamodbav:"receiverId" json:"receiverId"`
	Text           string    `dynamodbav:"text,omitempty" json:"text,omitempty"`
	ImageKey       string    `dynamodbav:"imageKey,omitempty" json:"-"`
	Image          string    `dynamodbav:"-" json:"image,omitempty"`
	CreatedAt      time.Time `dynamodbav:"createdAt" json:"createdAt"`
}

// MessagesTable is the DynamoDB table name for user messages
const MessagesTable = "Messages"

// MessageSortKey orders messages by creation time, ties broken by id.
func MessageSortKey(createdAt time.Time, messageID string) string {
	return createdAt.UTC().Format("2006-01-02T15:04:05.000000000Z") + "#" + messageID
}
