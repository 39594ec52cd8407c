package services

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/mock"
)

// MockDynamo is a testify mock of the DynamoAPI storage surface.
type MockDynamo struct {
	mock.Mock
}

func (m *MockDynamo) PutItem(ctx context.Context, tableName string, item interface{}) error {
	args := m.Called(ctx, tableName, item)
	return args.Error(0)
}

func (m *MockDynamo) PutItemConditional(ctx context.Context, tableName string, item interface{}, conditionExpression string) error {
	args := m.Called(ctx, tableName, item, conditionExpression)
	return args.Error(0)
}

func (m *MockDynamo) GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	args := m.Called(ctx, tableName, key)
	if item, ok := args.Get(0).(map[string]types.AttributeValue); ok {
		return item, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDynamo) QueryItems(ctx context.Context, tableName string, keyConditionExpression string, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string, limit int32) ([]map[string]types.AttributeValue, error) {
	args := m.Called(ctx, tableName, keyConditionExpression, expressionAttributeValues, expressionAttributeNames, limit)
	if items, ok := args.Get(0).([]map[string]types.AttributeValue); ok {
		return items, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDynamo) QueryItemsWithIndex(ctx context.Context, tableName string, indexName string, keyConditionExpression string, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string, limit int32) ([]map[string]types.AttributeValue, error) {
	args := m.Called(ctx, tableName, indexName, keyConditionExpression, expressionAttributeValues, expressionAttributeNames, limit)
	if items, ok := args.Get(0).([]map[string]types.AttributeValue); ok {
		return items, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDynamo) QueryItemsPage(ctx context.Context, tableName string, keyConditionExpression string, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string, limit int32, exclusiveStartKey map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	args := m.Called(ctx, tableName, keyConditionExpression, expressionAttributeValues, expressionAttributeNames, limit, exclusiveStartKey)
	items, _ := args.Get(0).([]map[string]types.AttributeValue)
	lastKey, _ := args.Get(1).(map[string]types.AttributeValue)
	return items, lastKey, args.Error(2)
}

func (m *MockDynamo) UpdateItemConditional(ctx context.Context, tableName string, updateExpression string, conditionExpression string, key map[string]types.AttributeValue, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string) (map[string]types.AttributeValue, error) {
	args := m.Called(ctx, tableName, updateExpression, conditionExpression, key, expressionAttributeValues, expressionAttributeNames)
	if attrs, ok := args.Get(0).(map[string]types.AttributeValue); ok {
		return attrs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDynamo) UpdateItem(ctx context.Context, tableName string, updateExpression string, key map[string]types.AttributeValue, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string) (map[string]types.AttributeValue, error) {
	args := m.Called(ctx, tableName, updateExpression, key, expressionAttributeValues, expressionAttributeNames)
	if attrs, ok := args.Get(0).(map[string]types.AttributeValue); ok {
		return attrs, args.Error(1)
	}
	return map[string]types.AttributeValue{}, args.Error(1)
}

func (m *MockDynamo) DeleteItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) error {
	args := m.Called(ctx, tableName, key)
	return args.Error(0)
}

func (m *MockDynamo) BatchWriteItems(ctx context.Context, tableName string, writeRequests []types.WriteRequest) error {
	args := m.Called(ctx, tableName, writeRequests)
	return args.Error(0)
}

// MockPublisher records published events.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(event string, targetUserIDs []string, payload interface{}) error {
	args := m.Called(event, targetUserIDs, payload)
	return args.Error(0)
}

// published returns the events pushed so far as (event, targets) pairs.
func (m *MockPublisher) published() []publishedEvent {
	var events []publishedEvent
	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}
		events = append(events, publishedEvent{
			event:   call.Arguments.String(0),
			targets: call.Arguments.Get(1).([]string),
		})
	}
	return events
}

type publishedEvent struct {
	event   string
	targets []string
}

func mustMarshal(t *testing.T, item interface{}) map[string]types.AttributeValue {
	t.Helper()
	marshaled, err := attributevalue.MarshalMap(item)
	if err != nil {
		t.Fatalf("failed to marshal test item: %v", err)
	}
	return marshaled
}
