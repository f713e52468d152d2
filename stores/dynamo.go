package stores

import (
	"context"

	"chat_server/models"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// NewDynamoBackend wires the three DynamoDB stores over one client.
func NewDynamoBackend(ds *DynamoService) *Backend {
	return &Backend{
		Connections: &DynamoConnectionStore{Dynamo: ds},
		Users:       &DynamoUserDirectory{Dynamo: ds},
		Messages:    &DynamoMessageStore{Dynamo: ds},
		Close:       func() error { return nil },
	}
}

// EnsureTables creates the chat request, user and message tables if missing.
func EnsureTables(ctx context.Context, ds *DynamoService) error {
	for _, input := range []*dynamodb.CreateTableInput{
		ChatRequestsTableInput(ds.Table(models.ChatRequestsTable)),
		UsersTableInput(ds.Table(models.UsersTable)),
		MessagesTableInput(ds.Table(models.MessagesTable)),
	} {
		if err := ds.EnsureTable(ctx, input); err != nil {
			return err
		}
	}
	return nil
}
