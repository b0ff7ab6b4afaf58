package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/rzpsarthak13/table-partitioner/internal/config"
	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the locker.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDBLocker implements core.Locker with conditional writes on a table
// keyed by the string attribute "key". The numeric "ttl" attribute holds
// the lease expiry in epoch seconds and can double as the table's TTL
// attribute.
type DynamoDBLocker struct {
	client    DynamoDBAPI
	tableName string
	now       func() time.Time
}

// NewDynamoDBLocker creates a DynamoDB locker and verifies the table exists.
func NewDynamoDBLocker(cfg config.DynamoDBConfig) (*DynamoDBLocker, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.TableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	// Load AWS config
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Override credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	clientOptions := []func(*dynamodb.Options){}
	if cfg.Endpoint != "" {
		// Custom endpoint (e.g., for LocalStack)
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	client := dynamodb.NewFromConfig(awsCfg, clientOptions...)

	// Test connection by describing the table
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(cfg.TableName)}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", cfg.TableName, err)
	}

	return NewDynamoDBLockerFromClient(client, cfg.TableName), nil
}

// NewDynamoDBLockerFromClient wraps an existing client.
func NewDynamoDBLockerFromClient(client DynamoDBAPI, tableName string) *DynamoDBLocker {
	return &DynamoDBLocker{client: client, tableName: tableName, now: time.Now}
}

// Acquire writes the lock item unless an unexpired one exists.
func (d *DynamoDBLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (core.Lease, error) {
	token := uuid.NewString()
	now := d.now()

	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item: map[string]types.AttributeValue{
			"key":        &types.AttributeValueMemberS{Value: key},
			"token":      &types.AttributeValueMemberS{Value: token},
			"ttl":        epochValue(now.Add(ttl)),
			"created_at": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(#k) OR #ttl < :now"),
		ExpressionAttributeNames: map[string]string{
			"#k":   "key",
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": epochValue(now),
		},
	})
	if isConditionFailed(err) {
		return nil, core.NewError(core.KindLocked, key, "lock held by another migration", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return &dynamoLease{locker: d, key: key, token: token, ttl: ttl}, nil
}

// Close is a no-op; the AWS client holds no connections to release.
func (d *DynamoDBLocker) Close() error {
	return nil
}

type dynamoLease struct {
	locker *DynamoDBLocker
	key    string
	token  string
	ttl    time.Duration
}

func (l *dynamoLease) Key() string {
	return l.key
}

func (l *dynamoLease) Refresh(ctx context.Context) error {
	d := l.locker
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.tableName),
		Key:                 map[string]types.AttributeValue{"key": &types.AttributeValueMemberS{Value: l.key}},
		UpdateExpression:    aws.String("SET #ttl = :ttl"),
		ConditionExpression: aws.String("#token = :token"),
		ExpressionAttributeNames: map[string]string{
			"#ttl":   "ttl",
			"#token": "token",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl":   epochValue(d.now().Add(l.ttl)),
			":token": &types.AttributeValueMemberS{Value: l.token},
		},
	})
	if isConditionFailed(err) {
		return core.NewError(core.KindLocked, l.key, "lock lost", nil)
	}
	if err != nil {
		return fmt.Errorf("failed to refresh lock %s: %w", l.key, err)
	}
	return nil
}

func (l *dynamoLease) Release(ctx context.Context) error {
	d := l.locker
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(d.tableName),
		Key:                      map[string]types.AttributeValue{"key": &types.AttributeValueMemberS{Value: l.key}},
		ConditionExpression:      aws.String("#token = :token"),
		ExpressionAttributeNames: map[string]string{"#token": "token"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":token": &types.AttributeValueMemberS{Value: l.token},
		},
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}

func epochValue(t time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// DynamoDBLockerFactory implements LockerFactory for DynamoDB.
type DynamoDBLockerFactory struct{}

// Type returns the type identifier for this factory.
func (f *DynamoDBLockerFactory) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration.
func (f *DynamoDBLockerFactory) Validate(cfg config.LockConfig) error {
	if cfg.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB factory: %s", cfg.Type)
	}
	if cfg.DynamoDBConfig.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if cfg.DynamoDBConfig.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	return nil
}

// Create creates a new DynamoDB locker.
func (f *DynamoDBLockerFactory) Create(cfg config.LockConfig) (core.Locker, error) {
	locker, err := NewDynamoDBLocker(cfg.DynamoDBConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB locker: %w", err)
	}
	return locker, nil
}

func init() {
	RegisterFactory(&DynamoDBLockerFactory{})
}
