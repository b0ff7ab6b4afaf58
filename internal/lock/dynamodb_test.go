package lock

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// fakeDynamo evaluates the locker's three condition expressions in memory.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func str(av types.AttributeValue) string {
	return av.(*types.AttributeValueMemberS).Value
}

func num(av types.AttributeValue) int64 {
	n, _ := strconv.ParseInt(av.(*types.AttributeValueMemberN).Value, 10, 64)
	return n
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := str(in.Item["key"])
	if existing, ok := f.items[key]; ok && num(existing["ttl"]) >= num(in.ExpressionAttributeValues[":now"]) {
		return nil, conditionFailed()
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := str(in.Key["key"])
	existing, ok := f.items[key]
	if !ok || str(existing["token"]) != str(in.ExpressionAttributeValues[":token"]) {
		return nil, conditionFailed()
	}
	existing["ttl"] = in.ExpressionAttributeValues[":ttl"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := str(in.Key["key"])
	existing, ok := f.items[key]
	if !ok || str(existing["token"]) != str(in.ExpressionAttributeValues[":token"]) {
		return nil, conditionFailed()
	}
	delete(f.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoDBLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := newFakeDynamo()
	l := NewDynamoDBLockerFromClient(fake, "partitioner-locks")
	l.now = func() time.Time { return now }

	lease, err := l.Acquire(ctx, "orders", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "orders", time.Minute)
	assert.True(t, errors.Is(err, core.ErrLocked))

	now = now.Add(30 * time.Second)
	require.NoError(t, lease.Refresh(ctx))
	assert.Equal(t, now.Add(time.Minute).Unix(), num(fake.items["orders"]["ttl"]))

	// Expired leases can be taken over, after which the old holder is out.
	now = now.Add(2 * time.Minute)
	taken, err := l.Acquire(ctx, "orders", time.Minute)
	require.NoError(t, err)
	assert.True(t, errors.Is(lease.Refresh(ctx), core.ErrLocked))
	require.NoError(t, lease.Release(ctx))
	assert.Contains(t, fake.items, "orders")

	require.NoError(t, taken.Release(ctx))
	assert.NotContains(t, fake.items, "orders")
}

func TestDynamoDBLocker_PropagatesErrors(t *testing.T) {
	l := NewDynamoDBLockerFromClient(failingDynamo{}, "locks")
	_, err := l.Acquire(context.Background(), "orders", time.Minute)
	require.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrLocked))
}

type failingDynamo struct{ DynamoDBAPI }

func (failingDynamo) PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return nil, errors.New("throttled")
}
