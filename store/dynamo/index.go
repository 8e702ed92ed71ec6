package ddbstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/goliatone/go-search/core"
)

const (
	AttrPartitionKey = "pk"
	AttrSortKey      = "sk"
	AttrLongID       = "long_id"
	AttrInternal     = "internal"
)

// DDBClient is the subset of the DynamoDB API used by Index.
type DDBClient interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Index is an OrderedIndex over a single DynamoDB table holding the short id
// collection of every organisation.
//
// Table schema:
//   - Partition key: pk (string) - "<org id>#short_ids"
//   - Sort key: sk (string) - canonical nine digit short id
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name search-short-ids \
//	  --attribute-definitions AttributeName=pk,AttributeType=S AttributeName=sk,AttributeType=S \
//	  --key-schema AttributeName=pk,KeyType=HASH AttributeName=sk,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type Index struct {
	client    DDBClient
	tableName string
}

func NewIndex(client DDBClient, tableName string) (*Index, error) {
	if client == nil {
		return nil, fmt.Errorf("ddbstore: dynamodb client is required")
	}
	tableName = strings.TrimSpace(tableName)
	if tableName == "" {
		return nil, fmt.Errorf("ddbstore: table name is required")
	}
	return &Index{client: client, tableName: tableName}, nil
}

// NewFromConfig builds an Index using the default AWS credential chain.
func NewFromConfig(
	ctx context.Context,
	tableName string,
	optFns ...func(*awsconfig.LoadOptions) error,
) (*Index, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("ddbstore: load aws config: %w", err)
	}
	return NewIndex(dynamodb.NewFromConfig(cfg), tableName)
}

// TableDefinition returns the CreateTable input matching the schema Index expects.
func TableDefinition(tableName string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(AttrPartitionKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(AttrSortKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(AttrPartitionKey), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(AttrSortKey), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
}

// PartitionKey returns the partition value of an organisation collection.
func PartitionKey(scope string, collection string) string {
	return strings.TrimSpace(scope) + "#" + collection
}

func (s *Index) Query(ctx context.Context, query core.IndexQuery) (core.IndexPage, error) {
	if s == nil || s.client == nil {
		return core.IndexPage{}, fmt.Errorf("ddbstore: index is not configured")
	}
	scope := strings.TrimSpace(query.Scope)
	if scope == "" {
		return core.IndexPage{}, fmt.Errorf("ddbstore: scope is required")
	}
	if query.Collection != core.CollectionShortIDs {
		return core.IndexPage{}, fmt.Errorf("ddbstore: unsupported collection %q", query.Collection)
	}
	if orderBy := strings.TrimSpace(query.OrderBy); orderBy != "" && orderBy != core.FieldID {
		return core.IndexPage{}, fmt.Errorf("ddbstore: unsupported order field %q", orderBy)
	}
	after, err := core.DecodeSortKeyCursor(query.Collection, query.StartAfter)
	if err != nil {
		return core.IndexPage{}, err
	}

	pk := PartitionKey(scope, query.Collection)
	condition, values, empty, err := keyCondition(query.Where)
	if err != nil {
		return core.IndexPage{}, err
	}
	if empty {
		return core.IndexPage{}, nil
	}
	values[":pk"] = &types.AttributeValueMemberS{Value: pk}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    aws.String(condition),
		ExpressionAttributeNames:  map[string]string{"#pk": AttrPartitionKey},
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(true),
	}
	// DynamoDB rejects unused expression attribute names.
	if strings.Contains(condition, "#sk") {
		input.ExpressionAttributeNames["#sk"] = AttrSortKey
	}
	if query.Limit > 0 {
		input.Limit = aws.Int32(int32(query.Limit))
	}
	if after != "" {
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			AttrPartitionKey: &types.AttributeValueMemberS{Value: pk},
			AttrSortKey:      &types.AttributeValueMemberS{Value: after},
		}
	}

	out, err := s.client.Query(ctx, input)
	if err != nil {
		return core.IndexPage{}, fmt.Errorf("ddbstore: query %s: %w", s.tableName, err)
	}

	page := core.IndexPage{Records: make([]core.RawRecord, 0, len(out.Items))}
	last := ""
	for _, item := range out.Items {
		record, key, err := itemToRecord(item)
		if err != nil {
			return core.IndexPage{}, err
		}
		page.Records = append(page.Records, record)
		last = key
	}
	if last != "" {
		page.Last = core.EncodeSortKeyCursor(query.Collection, last)
	}
	return page, nil
}

func (s *Index) PutShortID(ctx context.Context, orgID string, entry core.ShortIDEntry) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("ddbstore: index is not configured")
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return fmt.Errorf("ddbstore: org id is required")
	}
	shortKey, err := core.NormalizeShortID(entry.ShortID)
	if err != nil {
		return err
	}
	longID := strings.TrimSpace(entry.LongID)
	if longID == "" {
		return fmt.Errorf("ddbstore: long id is required")
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			AttrPartitionKey: &types.AttributeValueMemberS{Value: PartitionKey(orgID, core.CollectionShortIDs)},
			AttrSortKey:      &types.AttributeValueMemberS{Value: shortKey},
			AttrLongID:       &types.AttributeValueMemberS{Value: longID},
			AttrInternal:     &types.AttributeValueMemberBOOL{Value: entry.Internal},
		},
	})
	if err != nil {
		return fmt.Errorf("ddbstore: put short id: %w", err)
	}
	return nil
}

// PutResource is not supported: group membership lives in a nested field and
// DynamoDB can only range-scan the table sort key.
func (s *Index) PutResource(context.Context, string, core.ResourceEntry) error {
	return ErrUnsupportedCollection
}

var ErrUnsupportedCollection = errors.New("ddbstore: only the short id collection is supported")

// keyCondition turns range predicates on the sort key into a key condition.
// Strict upper bounds become inclusive BETWEEN bounds on the preceding key.
func keyCondition(predicates []core.Predicate) (string, map[string]types.AttributeValue, bool, error) {
	var lower, upper, exact *string
	upperInclusive := false
	for _, predicate := range predicates {
		if predicate.Field != core.FieldID && predicate.Field != core.FieldShortID {
			return "", nil, false, fmt.Errorf("ddbstore: unsupported field %q", predicate.Field)
		}
		value := predicate.Value
		switch predicate.Op {
		case core.OpEQ:
			exact = &value
		case core.OpGTE:
			lower = &value
		case core.OpLT:
			upper = &value
			upperInclusive = false
		case core.OpLTE:
			upper = &value
			upperInclusive = true
		default:
			return "", nil, false, fmt.Errorf("ddbstore: unsupported operator %q", predicate.Op)
		}
	}

	values := map[string]types.AttributeValue{}
	switch {
	case exact != nil:
		values[":eq"] = &types.AttributeValueMemberS{Value: *exact}
		return "#pk = :pk AND #sk = :eq", values, false, nil
	case lower != nil && upper != nil:
		hi := *upper
		if !upperInclusive {
			prev, ok := precedingKey(hi)
			if !ok {
				return "", nil, true, nil
			}
			hi = prev
		}
		if hi < *lower {
			return "", nil, true, nil
		}
		values[":lo"] = &types.AttributeValueMemberS{Value: *lower}
		values[":hi"] = &types.AttributeValueMemberS{Value: hi}
		return "#pk = :pk AND #sk BETWEEN :lo AND :hi", values, false, nil
	case lower != nil:
		values[":lo"] = &types.AttributeValueMemberS{Value: *lower}
		return "#pk = :pk AND #sk >= :lo", values, false, nil
	case upper != nil:
		values[":hi"] = &types.AttributeValueMemberS{Value: *upper}
		if upperInclusive {
			return "#pk = :pk AND #sk <= :hi", values, false, nil
		}
		return "#pk = :pk AND #sk < :hi", values, false, nil
	default:
		return "#pk = :pk", values, false, nil
	}
}

// precedingKey returns the greatest fixed width digit key below key.
func precedingKey(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	value, err := strconv.ParseUint(key, 10, 64)
	if err != nil {
		return "", false
	}
	if value == 0 {
		return "", false
	}
	prev := strconv.FormatUint(value-1, 10)
	return strings.Repeat("0", len(key)-len(prev)) + prev, true
}

func itemToRecord(item map[string]types.AttributeValue) (core.RawRecord, string, error) {
	sk, ok := item[AttrSortKey].(*types.AttributeValueMemberS)
	if !ok {
		return nil, "", fmt.Errorf("ddbstore: item is missing sort key")
	}
	record := core.RawRecord{
		core.FieldID:      sk.Value,
		core.FieldShortID: sk.Value,
	}
	if longID, ok := item[AttrLongID].(*types.AttributeValueMemberS); ok {
		record[core.FieldLongID] = longID.Value
	}
	if internal, ok := item[AttrInternal].(*types.AttributeValueMemberBOOL); ok && internal.Value {
		record[core.FieldInternal] = true
	}
	return record, sk.Value, nil
}

var (
	_ core.OrderedIndex = (*Index)(nil)
	_ core.IndexWriter  = (*Index)(nil)
)
