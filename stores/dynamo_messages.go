package stores

import (
	"context"
	"fmt"

	"chat_server/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type DynamoMessageStore struct {
	Dynamo *DynamoService
}

// Append stores a new message in the Messages table
func (s *DynamoMessageStore) Append(ctx context.Context, msg models.Message) error {
	if msg.SortKey == "" {
		msg.SortKey = models.MessageSortKey(msg.CreatedAt, msg.MessageID)
	}
	return s.Dynamo.PutItem(ctx, s.Dynamo.Table(models.MessagesTable), msg, nil)
}

// List fetches the latest messages of a conversation, oldest first.
func (s *DynamoMessageStore) List(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.Dynamo.Table(models.MessagesTable)),
		KeyConditionExpression:    aws.String("#c = :c"),
		ExpressionAttributeNames:  map[string]string{"#c": "conversationId"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":c": stringAttr(conversationID)},
		ScanIndexForward:          aws.Bool(false), // latest first, reversed below
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	items, err := s.Dynamo.QueryAll(ctx, input, limit)
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	if err := attributevalue.UnmarshalListOfMaps(items, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}
	reverseMessages(messages)
	return messages, nil
}

// MessagesTableInput describes the messages table.
func MessagesTableInput(tableName string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName:   aws.String(tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("conversationId"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sortKey"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("conversationId"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sortKey"), KeyType: types.KeyTypeRange},
		},
	}
}

func reverseMessages(m []models.Message) {
	for i, j := 0, len(m)-1; i < j; i, j = i+1, j-1 {
		m[i], m[j] = m[j], m[i]
	}
}
