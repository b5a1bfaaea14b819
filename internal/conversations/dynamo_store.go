package conversations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore keeps summaries in a table keyed by id and messages in a table
// keyed by (conversationId, sk) where sk sorts chronologically.
type DynamoStore struct {
	client             dynamoAPI
	conversationsTable string
	messagesTable      string
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(client dynamoAPI, conversationsTable, messagesTable string) *DynamoStore {
	if client == nil {
		panic("conversations: dynamodb client cannot be nil")
	}
	if conversationsTable == "" || messagesTable == "" {
		panic("conversations: table names cannot be empty")
	}
	return &DynamoStore{client: client, conversationsTable: conversationsTable, messagesTable: messagesTable}
}

func (s *DynamoStore) AppendMessage(ctx context.Context, msg Message) error {
	item, err := attributevalue.MarshalMap(msg.record())
	if err != nil {
		return fmt.Errorf("conversations: encode message: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.messagesTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(sk)"),
	})
	if err != nil {
		return fmt.Errorf("conversations: put message: %w", err)
	}
	return nil
}

func (s *DynamoStore) UpsertSummary(ctx context.Context, update SummaryUpdate) error {
	at := update.At.UTC().Format(time.RFC3339Nano)
	expr := "SET lastMessage = :preview, lastMessageAt = :at, createdAt = if_not_exists(createdAt, :at)"
	values := map[string]types.AttributeValue{
		":preview": &types.AttributeValueMemberS{Value: update.Preview},
		":at":      &types.AttributeValueMemberS{Value: at},
	}
	if update.ClientID != "" {
		expr += ", clientId = :client"
		values[":client"] = &types.AttributeValueMemberS{Value: update.ClientID}
	}
	if update.IncrementUnread {
		expr += " ADD unreadCount :one"
		values[":one"] = &types.AttributeValueMemberN{Value: "1"}
	} else {
		expr += ", unreadCount = if_not_exists(unreadCount, :zero)"
		values[":zero"] = &types.AttributeValueMemberN{Value: "0"}
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.conversationsTable),
		Key:                       s.key(update.ConversationID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("conversations: update summary: %w", err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, id string) (Conversation, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.conversationsTable),
		Key:       s.key(id),
	})
	if err != nil {
		return Conversation{}, false, fmt.Errorf("conversations: get conversation: %w", err)
	}
	if len(out.Item) == 0 {
		return Conversation{}, false, nil
	}
	var conv Conversation
	if err := attributevalue.UnmarshalMap(out.Item, &conv); err != nil {
		return Conversation{}, false, fmt.Errorf("conversations: decode conversation: %w", err)
	}
	return conv, true, nil
}

// List scans the summary table. The inbox is small enough per shop that a
// scan sorted in memory is acceptable.
func (s *DynamoStore) List(ctx context.Context, limit int) ([]Conversation, error) {
	var (
		out   []Conversation
		start map[string]types.AttributeValue
	)
	for {
		page, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.conversationsTable),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("conversations: scan conversations: %w", err)
		}
		var batch []Conversation
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("conversations: decode conversations: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		start = page.LastEvaluatedKey
	}
	sortByActivity(out)
	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *DynamoStore) Messages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.messagesTable),
		KeyConditionExpression: aws.String("conversationId = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: conversationID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(normalizeLimit(limit))),
	})
	if err != nil {
		return nil, fmt.Errorf("conversations: query messages: %w", err)
	}
	var records []messageRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
		return nil, fmt.Errorf("conversations: decode messages: %w", err)
	}
	msgs := make([]Message, len(records))
	for i, rec := range records {
		msgs[len(records)-1-i] = rec.message()
	}
	return msgs, nil
}

func (s *DynamoStore) MarkRead(ctx context.Context, id string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.conversationsTable),
		Key:                 s.key(id),
		UpdateExpression:    aws.String("SET unreadCount = :zero"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrConversationNotFound
		}
		return fmt.Errorf("conversations: mark read: %w", err)
	}
	return nil
}

func (s *DynamoStore) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}
