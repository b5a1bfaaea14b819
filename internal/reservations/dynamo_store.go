package reservations

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
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoTables names the tables and indexes backing DynamoStore.
type DynamoTables struct {
	Clients          string
	Reservations     string
	ClientPhoneIndex string
	ReservationIndex string
}

// DynamoStore reads clientes/reservas from DynamoDB. Clients are found through
// a GSI on phone; reservations through a GSI keyed by clientId with date as
// the sort key.
type DynamoStore struct {
	client dynamoAPI
	tables DynamoTables
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tables DynamoTables) *DynamoStore {
	if client == nil {
		panic("reservations: dynamodb client cannot be nil")
	}
	if tables.Clients == "" || tables.Reservations == "" {
		panic("reservations: table names cannot be empty")
	}
	if tables.ClientPhoneIndex == "" {
		tables.ClientPhoneIndex = "phone-index"
	}
	if tables.ReservationIndex == "" {
		tables.ReservationIndex = "clientId-date-index"
	}
	return &DynamoStore{client: client, tables: tables}
}

func (s *DynamoStore) FindClientByPhone(ctx context.Context, phone string) (Client, bool, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Clients),
		IndexName:              aws.String(s.tables.ClientPhoneIndex),
		KeyConditionExpression: aws.String("phone = :phone"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":phone": &types.AttributeValueMemberS{Value: phone},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return Client{}, false, fmt.Errorf("reservations: query client by phone: %w", err)
	}
	if len(out.Items) == 0 {
		return Client{}, false, nil
	}
	var client Client
	if err := attributevalue.UnmarshalMap(out.Items[0], &client); err != nil {
		return Client{}, false, fmt.Errorf("reservations: decode client: %w", err)
	}
	return client, true, nil
}

func (s *DynamoStore) ListFromDate(ctx context.Context, clientID, fromDate string) ([]Reservation, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Reservations),
		IndexName:              aws.String(s.tables.ReservationIndex),
		KeyConditionExpression: aws.String("clientId = :client AND #date >= :from"),
		ExpressionAttributeNames: map[string]string{
			"#date": "date",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":client": &types.AttributeValueMemberS{Value: clientID},
			":from":   &types.AttributeValueMemberS{Value: fromDate},
		},
	}

	var out []Reservation
	for {
		page, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("reservations: query reservations: %w", err)
		}
		var batch []Reservation
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("reservations: decode reservations: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

func (s *DynamoStore) UpdateStatus(ctx context.Context, reservationID string, status Status) error {
	_, err := s.client.UpdateItem(ctx, s.statusUpdate(reservationID, status).toUpdateInput())
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrReservationNotFound
		}
		return fmt.Errorf("reservations: update status %s: %w", reservationID, err)
	}
	return nil
}

// CancelReservation writes the status and the counter in one TransactWriteItems
// call; DynamoDB applies both or neither.
func (s *DynamoStore) CancelReservation(ctx context.Context, reservationID, clientID string) error {
	statusUpdate := s.statusUpdate(reservationID, StatusCancelled)
	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: statusUpdate.toTransactUpdate()},
			{Update: &types.Update{
				TableName: aws.String(s.tables.Clients),
				Key: map[string]types.AttributeValue{
					"id": &types.AttributeValueMemberS{Value: clientID},
				},
				UpdateExpression:    aws.String("ADD citas_canceladas :one"),
				ConditionExpression: aws.String("attribute_exists(id)"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":one": &types.AttributeValueMemberN{Value: "1"},
				},
			}},
		},
	})
	if err != nil {
		var txErr *types.TransactionCanceledException
		if errors.As(err, &txErr) {
			return fmt.Errorf("reservations: cancel %s: %w", reservationID, cancellationReason(txErr))
		}
		return fmt.Errorf("reservations: cancel %s: %w", reservationID, err)
	}
	return nil
}

type statusUpdate struct {
	table  string
	key    map[string]types.AttributeValue
	expr   string
	cond   string
	names  map[string]string
	values map[string]types.AttributeValue
}

func (s *DynamoStore) statusUpdate(reservationID string, status Status) statusUpdate {
	return statusUpdate{
		table: s.tables.Reservations,
		key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: reservationID},
		},
		expr: "SET #status = :status, updatedAt = :updated",
		cond: "attribute_exists(id)",
		names: map[string]string{
			"#status": "status",
		},
		values: map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(status)},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	}
}

func (u statusUpdate) toUpdateInput() *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(u.table),
		Key:                       u.key,
		UpdateExpression:          aws.String(u.expr),
		ConditionExpression:       aws.String(u.cond),
		ExpressionAttributeNames:  u.names,
		ExpressionAttributeValues: u.values,
	}
}

func (u statusUpdate) toTransactUpdate() *types.Update {
	return &types.Update{
		TableName:                 aws.String(u.table),
		Key:                       u.key,
		UpdateExpression:          aws.String(u.expr),
		ConditionExpression:       aws.String(u.cond),
		ExpressionAttributeNames:  u.names,
		ExpressionAttributeValues: u.values,
	}
}

// cancellationReason maps the per-item reasons of a cancelled transaction to
// the store's sentinels. Item 0 is the reservation, item 1 the client.
func cancellationReason(txErr *types.TransactionCanceledException) error {
	for i, reason := range txErr.CancellationReasons {
		if aws.ToString(reason.Code) != "ConditionalCheckFailed" {
			continue
		}
		if i == 0 {
			return ErrReservationNotFound
		}
		return ErrClientNotFound
	}
	return txErr
}
