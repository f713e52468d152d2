package stores

import (
	"context"

	"chat_server/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type DynamoUserDirectory struct {
	Dynamo *DynamoService
}

// Get retrieves a user by ID
func (d *DynamoUserDirectory) Get(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	key := map[string]types.AttributeValue{"userId": stringAttr(userID)}
	if err := d.Dynamo.GetItem(ctx, d.Dynamo.Table(models.UsersTable), key, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// List scans every user. The directory is small enough for the sidebar.
func (d *DynamoUserDirectory) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := d.Dynamo.ScanAll(ctx, d.Dynamo.Table(models.UsersTable), &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Put adds or replaces a user
func (d *DynamoUserDirectory) Put(ctx context.Context, user models.User) error {
	return d.Dynamo.PutItem(ctx, d.Dynamo.Table(models.UsersTable), user, nil)
}

// UsersTableInput describes the users table.
func UsersTableInput(tableName string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName:   aws.String(tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("userId"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("userId"), KeyType: types.KeyTypeHash},
		},
	}
}
