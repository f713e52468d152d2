package stores

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"chat_server/models"
	"chat_server/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoConnectionStore keeps chat requests in a table whose partition key
// is the canonical pair key, so a second row for the same pair cannot exist.
// Inserts are guarded by attribute_not_exists(pairKey) and updates by the
// record version read in the same attempt.
type DynamoConnectionStore struct {
	Dynamo     *DynamoService
	MaxRetries int
}

func (s *DynamoConnectionStore) table() string {
	return s.Dynamo.Table(models.ChatRequestsTable)
}

func (s *DynamoConnectionStore) retries() int {
	if s.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return s.MaxRetries
}

// GetByPair reads the record for pairKey.
func (s *DynamoConnectionStore) GetByPair(ctx context.Context, pairKey string) (*models.ChatRequest, error) {
	var req models.ChatRequest
	key := map[string]types.AttributeValue{"pairKey": stringAttr(pairKey)}
	if err := s.Dynamo.GetItem(ctx, s.table(), key, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByID resolves a request id through RequestIdIndex and then re-reads the
// base table so the caller sees a consistent record.
func (s *DynamoConnectionStore) GetByID(ctx context.Context, id string) (*models.ChatRequest, error) {
	items, err := s.Dynamo.QueryAll(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table()),
		IndexName:                 aws.String(models.RequestIDIndex),
		KeyConditionExpression:    aws.String("#id = :id"),
		ExpressionAttributeNames:  map[string]string{"#id": "id"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":id": stringAttr(id)},
	}, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}

	pairKey := utils.ExtractString(items[0], "pairKey")
	if pairKey == "" {
		return nil, fmt.Errorf("index item for %s has no pairKey", id)
	}
	return s.GetByPair(ctx, pairKey)
}

// ListByUser queries both direction indexes and merges the results.
func (s *DynamoConnectionStore) ListByUser(ctx context.Context, userID string, status models.RequestStatus) ([]models.ChatRequest, error) {
	byPair := map[string]models.ChatRequest{}
	for _, idx := range []struct{ name, attr string }{
		{models.SenderIndex, "senderId"},
		{models.ReceiverIndex, "receiverId"},
	} {
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(s.table()),
			IndexName:                 aws.String(idx.name),
			KeyConditionExpression:    aws.String("#u = :u"),
			ExpressionAttributeNames:  map[string]string{"#u": idx.attr},
			ExpressionAttributeValues: map[string]types.AttributeValue{":u": stringAttr(userID)},
		}
		if status != "" {
			input.FilterExpression = aws.String("#s = :status")
			input.ExpressionAttributeNames["#s"] = "status"
			input.ExpressionAttributeValues[":status"] = stringAttr(string(status))
		}

		items, err := s.Dynamo.QueryAll(ctx, input, 0)
		if err != nil {
			return nil, err
		}
		var reqs []models.ChatRequest
		if err := attributevalue.UnmarshalListOfMaps(items, &reqs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat requests: %w", err)
		}
		for _, r := range reqs {
			byPair[r.PairKey] = r
		}
	}
	return sortNewestFirst(byPair), nil
}

// Mutate reads the pair, applies fn and writes the result conditioned on
// nothing having changed in between. A lost race re-runs the whole cycle.
func (s *DynamoConnectionStore) Mutate(ctx context.Context, pairKey string, fn MutateFunc) (*models.ChatRequest, error) {
	for attempt := 0; attempt < s.retries(); attempt++ {
		current, err := s.GetByPair(ctx, pairKey)
		if errors.Is(err, ErrNotFound) {
			current = nil
		} else if err != nil {
			return nil, err
		}

		next, err := fn(cloneRequest(current))
		if err != nil {
			return nil, err
		}
		if next == nil {
			return current, nil
		}
		if err := validateNext(pairKey, current, next); err != nil {
			return nil, err
		}

		cond := &Condition{Expression: "attribute_not_exists(pairKey)"}
		if current == nil {
			next.Version = 1
		} else {
			next.Version = current.Version + 1
			cond = &Condition{
				Expression: "#version = :expected",
				Names:      map[string]string{"#version": "version"},
				Values: map[string]types.AttributeValue{
					":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(current.Version, 10)},
				},
			}
		}

		err = s.Dynamo.PutItem(ctx, s.table(), next, cond)
		if errors.Is(err, ErrWriteConflict) {
			s.Dynamo.logger().Debug("chat request write raced, retrying", "pairKey", pairKey, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}
	return nil, ErrWriteConflict
}

// ChatRequestsTableInput describes the chat request table and its indexes.
func ChatRequestsTableInput(tableName string) *dynamodb.CreateTableInput {
	gsi := func(name, attr string) types.GlobalSecondaryIndex {
		return types.GlobalSecondaryIndex{
			IndexName:  aws.String(name),
			KeySchema:  []types.KeySchemaElement{{AttributeName: aws.String(attr), KeyType: types.KeyTypeHash}},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}
	}
	return &dynamodb.CreateTableInput{
		TableName:   aws.String(tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pairKey"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("senderId"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("receiverId"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pairKey"), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(models.RequestIDIndex, "id"),
			gsi(models.SenderIndex, "senderId"),
			gsi(models.ReceiverIndex, "receiverId"),
		},
	}
}

func sortNewestFirst(byPair map[string]models.ChatRequest) []models.ChatRequest {
	out := make([]models.ChatRequest, 0, len(byPair))
	for _, r := range byPair {
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].PairKey < out[j].PairKey
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}
