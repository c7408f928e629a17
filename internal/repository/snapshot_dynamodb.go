package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

// DynamoAPI is the subset of the DynamoDB client the snapshot backend calls.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type dynamoSnapshotItem struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	Document  string    `dynamodbav:"document"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

type dynamoSnapshotter struct {
	client    DynamoAPI
	tableName string
	name      string
	log       *logrus.Logger
}

func NewDynamoSnapshotter(client DynamoAPI, tableName, name string, logger *logrus.Logger) Snapshotter {
	return &dynamoSnapshotter{client: client, tableName: tableName, name: name, log: logger}
}

func (s *dynamoSnapshotter) Backend() string { return "dynamodb:" + s.tableName + "/" + s.name }

func (s *dynamoSnapshotter) key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "SNAPSHOT#" + s.name},
		"SK": &types.AttributeValueMemberS{Value: "DOCUMENT"},
	}
}

func (s *dynamoSnapshotter) Load(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		s.log.Errorf("Failed to get snapshot item %s: %v", s.name, err)
		return nil, fmt.Errorf("could not get snapshot %s: %w", s.name, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrSnapshotNotFound
	}
	var item dynamoSnapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("could not decode snapshot %s: %w", s.name, err)
	}
	return []byte(item.Document), nil
}

func (s *dynamoSnapshotter) Save(ctx context.Context, document []byte) error {
	av, err := attributevalue.MarshalMap(dynamoSnapshotItem{
		PK:        "SNAPSHOT#" + s.name,
		SK:        "DOCUMENT",
		Document:  string(document),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %s: %w", s.name, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		s.log.Errorf("Failed to put snapshot item %s: %v", s.name, err)
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}
