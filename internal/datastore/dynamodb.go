package datastore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	dynamoHeaderKey = "#HEADER"
	dynamoRowPrefix = "ROW#"
)

// DynamoAPI is the subset of the DynamoDB client the store calls.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// DynamoStore keeps every logical table in one DynamoDB table: PK is the logical table name,
// SK is the row id. A header item per partition holds the column list and the row sequence.
type DynamoStore struct {
	table string
	cli   DynamoAPI
}

type dynamoItem struct {
	PK      string   `dynamodbav:"PK"`
	SK      string   `dynamodbav:"SK"`
	Seq     int64    `dynamodbav:"seq"`
	Cells   []string `dynamodbav:"cells"`
	NextSeq int64    `dynamodbav:"next_seq,omitempty"`
}

// NewDynamoStore constructs the store over an existing client.
func NewDynamoStore(table string, cli DynamoAPI) *DynamoStore {
	return &DynamoStore{table: table, cli: cli}
}

// Migrate creates the physical table when absent.
func (s *DynamoStore) Migrate(ctx context.Context) error {
	_, err := s.cli.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: ddbTypes.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: ddbTypes.KeyTypeRange},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var inUse *ddbTypes.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("create dynamodb table %s: %w", s.table, err)
	}
	return nil
}

func (s *DynamoStore) ReadTable(ctx context.Context, table string) (*Table, error) {
	paginator := dynamodb.NewQueryPaginator(s.cli, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{":pk": &ddbTypes.AttributeValueMemberS{Value: table}},
		ConsistentRead:            aws.Bool(true),
	})

	var (
		header []string
		found  bool
		items  []dynamoItem
	)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query table %s: %w", table, err)
		}
		var batch []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("decode table %s: %w", table, err)
		}
		for _, item := range batch {
			if item.SK == dynamoHeaderKey {
				header = item.Cells
				found = true
				continue
			}
			items = append(items, item)
		}
	}
	if !found {
		return nil, ErrTableNotFound
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Seq < items[j].Seq })
	out := &Table{Name: table, Header: header, Rows: make([][]string, 0, len(items))}
	for _, item := range items {
		out.Rows = append(out.Rows, item.Cells)
	}
	return out, nil
}

func (s *DynamoStore) AppendRow(ctx context.Context, table string, row []string) error {
	header, err := s.header(ctx, table)
	if err != nil {
		return err
	}
	id, err := rowID(header, row)
	if err != nil {
		return err
	}
	seq, err := s.nextSeq(ctx, table)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(dynamoItem{PK: table, SK: dynamoRowPrefix + id, Seq: seq, Cells: row})
	if err != nil {
		return fmt.Errorf("encode row %s: %w", id, err)
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrDuplicateRow
		}
		return fmt.Errorf("append row to %s: %w", table, err)
	}
	return nil
}

func (s *DynamoStore) UpdateRow(ctx context.Context, table, id string, row []string) error {
	cells, err := attributevalue.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row %s: %w", id, err)
	}
	_, err = s.cli.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       rowKey(table, id),
		UpdateExpression:          aws.String("SET #cells = :cells"),
		ExpressionAttributeNames:  map[string]string{"#cells": "cells"},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{":cells": cells},
		ConditionExpression:       aws.String("attribute_exists(PK) AND attribute_exists(SK)"),
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrRowNotFound
		}
		return fmt.Errorf("update row %s in %s: %w", id, table, err)
	}
	return nil
}

func (s *DynamoStore) DeleteRow(ctx context.Context, table, id string) error {
	_, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.table),
		Key:                 rowKey(table, id),
		ConditionExpression: aws.String("attribute_exists(PK) AND attribute_exists(SK)"),
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrRowNotFound
		}
		return fmt.Errorf("delete row %s from %s: %w", id, table, err)
	}
	return nil
}

func (s *DynamoStore) EnsureTable(ctx context.Context, table string, header []string) ([]string, error) {
	if indexOf(header, IDColumn) < 0 {
		return nil, ErrNoIDColumn
	}
	av, err := attributevalue.MarshalMap(dynamoItem{PK: table, SK: dynamoHeaderKey, Cells: header})
	if err != nil {
		return nil, fmt.Errorf("encode header of %s: %w", table, err)
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if !errors.As(err, &cc) {
			return nil, fmt.Errorf("ensure table %s: %w", table, err)
		}
	}
	return s.header(ctx, table)
}

func (s *DynamoStore) header(ctx context.Context, table string) ([]string, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            headerKey(table),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("load header of %s: %w", table, err)
	}
	if out.Item == nil {
		return nil, ErrTableNotFound
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("decode header of %s: %w", table, err)
	}
	return item.Cells, nil
}

// nextSeq bumps the per-table counter on the header item so ReadTable can restore append order.
func (s *DynamoStore) nextSeq(ctx context.Context, table string) (int64, error) {
	out, err := s.cli.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       headerKey(table),
		UpdateExpression:          aws.String("ADD #seq :one"),
		ExpressionAttributeNames:  map[string]string{"#seq": "next_seq"},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{":one": &ddbTypes.AttributeValueMemberN{Value: "1"}},
		ReturnValues:              ddbTypes.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("allocate sequence for %s: %w", table, err)
	}
	n, ok := out.Attributes["next_seq"].(*ddbTypes.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("allocate sequence for %s: missing counter", table)
	}
	return strconv.ParseInt(strings.TrimSpace(n.Value), 10, 64)
}

func headerKey(table string) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		"PK": &ddbTypes.AttributeValueMemberS{Value: table},
		"SK": &ddbTypes.AttributeValueMemberS{Value: dynamoHeaderKey},
	}
}

func rowKey(table, id string) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		"PK": &ddbTypes.AttributeValueMemberS{Value: table},
		"SK": &ddbTypes.AttributeValueMemberS{Value: dynamoRowPrefix + id},
	}
}
