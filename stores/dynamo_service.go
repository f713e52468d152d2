package stores

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the stores use.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

type DynamoService struct {
	Client      DynamoAPI
	TablePrefix string
	Logger      *slog.Logger
}

// InitializeDynamoDBClient initializes the DynamoDB client
func InitializeDynamoDBClient(ctx context.Context, region string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// Table returns the physical name of a logical table.
func (ds *DynamoService) Table(name string) string {
	return ds.TablePrefix + name
}

func (ds *DynamoService) logger() *slog.Logger {
	if ds.Logger == nil {
		return slog.Default()
	}
	return ds.Logger
}

// Condition is an optional ConditionExpression for a write.
type Condition struct {
	Expression string
	Names      map[string]string
	Values     map[string]types.AttributeValue
}

// PutItem marshals item and writes it. A failed condition is reported as
// ErrWriteConflict.
func (ds *DynamoService) PutItem(ctx context.Context, tableName string, item interface{}, cond *Condition) error {
	marshaledItem, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      marshaledItem,
	}
	if cond != nil {
		input.ConditionExpression = aws.String(cond.Expression)
		if len(cond.Names) > 0 {
			input.ExpressionAttributeNames = cond.Names
		}
		if len(cond.Values) > 0 {
			input.ExpressionAttributeValues = cond.Values
		}
	}

	_, err = ds.Client.PutItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			ds.logger().Debug("conditional put rejected", "table", tableName)
			return ErrWriteConflict
		}
		return fmt.Errorf("failed to put item in table '%s': %w", tableName, err)
	}
	return nil
}

// GetItem retrieves an item with a strongly consistent read.
func (ds *DynamoService) GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue, out interface{}) error {
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(tableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to get item from table '%s': %w", tableName, err)
	}
	if output.Item == nil {
		return ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(output.Item, out); err != nil {
		return fmt.Errorf("failed to unmarshal item from table '%s': %w", tableName, err)
	}
	return nil
}

// QueryAll runs input to exhaustion, following LastEvaluatedKey, and stops
// early once limit items were collected (limit <= 0 means no limit).
func (ds *DynamoService) QueryAll(ctx context.Context, input *dynamodb.QueryInput, limit int) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		output, err := ds.Client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query table '%s': %w", aws.ToString(input.TableName), err)
		}
		items = append(items, output.Items...)
		if limit > 0 && len(items) >= limit {
			return items[:limit], nil
		}
		if len(output.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}
}

// ScanAll performs a full paginated scan of tableName into result, a pointer
// to a slice of structs.
func (ds *DynamoService) ScanAll(ctx context.Context, tableName string, result interface{}) error {
	var items []map[string]types.AttributeValue
	input := &dynamodb.ScanInput{TableName: aws.String(tableName)}
	for {
		output, err := ds.Client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan table '%s': %w", tableName, err)
		}
		items = append(items, output.Items...)
		if len(output.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	if err := attributevalue.UnmarshalListOfMaps(items, result); err != nil {
		return fmt.Errorf("failed to unmarshal scan result: %w", err)
	}
	return nil
}

// EnsureTable creates input's table unless it already exists.
func (ds *DynamoService) EnsureTable(ctx context.Context, input *dynamodb.CreateTableInput) error {
	_, err := ds.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: input.TableName})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table '%s': %w", aws.ToString(input.TableName), err)
	}

	ds.logger().Info("creating table", "table", aws.ToString(input.TableName))
	if _, err := ds.Client.CreateTable(ctx, input); err != nil {
		return fmt.Errorf("failed to create table '%s': %w", aws.ToString(input.TableName), err)
	}
	return nil
}

func stringAttr(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}
