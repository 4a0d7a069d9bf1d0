package services

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrItemNotFound is returned by GetItem when the key does not exist.
var ErrItemNotFound = errors.New("item not found")

// DynamoAPI is the subset of the DynamoDB client used by the services.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

type DynamoService struct {
	Client DynamoAPI
	Log    zerolog.Logger
}

// LoadAWSConfig loads the shared AWS configuration for region.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "load AWS config")
	}
	return cfg, nil
}

// NewDynamoService wraps a DynamoDB client.
func NewDynamoService(client DynamoAPI, log zerolog.Logger) *DynamoService {
	return &DynamoService{Client: client, Log: log.With().Str("component", "dynamo").Logger()}
}

// StringKey builds a single attribute string key.
func StringKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// CompositeKey builds a partition + sort string key.
func CompositeKey(pkName, pk, skName, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkName: &types.AttributeValueMemberS{Value: pk},
		skName: &types.AttributeValueMemberS{Value: sk},
	}
}

// GetItem loads the item at key into out.
func (ds *DynamoService) GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue, out interface{}) error {
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(tableName),
		Key:       key,
	})
	if err != nil {
		return errors.Wrapf(err, "get item from table '%s'", tableName)
	}
	if output.Item == nil {
		return ErrItemNotFound
	}
	if err := attributevalue.UnmarshalMap(output.Item, out); err != nil {
		return errors.Wrapf(err, "unmarshal item from table '%s'", tableName)
	}
	return nil
}

func (ds *DynamoService) PutItem(ctx context.Context, tableName string, item interface{}) error {
	marshaledItem, err := attributevalue.MarshalMap(item)
	if err != nil {
		return errors.Wrap(err, "marshal item")
	}

	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      marshaledItem,
	})
	if err != nil {
		ds.Log.Error().Err(err).Str("table", tableName).Msg("❌ failed to insert item")
		return errors.Wrapf(err, "put item in table '%s'", tableName)
	}
	return nil
}

// PutItemIfAbsent inserts item unless an item with the same partition key
// attribute exists. It reports whether the item was created.
func (ds *DynamoService) PutItemIfAbsent(ctx context.Context, tableName, keyAttr string, item interface{}) (bool, error) {
	marshaledItem, err := attributevalue.MarshalMap(item)
	if err != nil {
		return false, errors.Wrap(err, "marshal item")
	}

	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(tableName),
		Item:                     marshaledItem,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": keyAttr},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return false, nil
		}
		return false, errors.Wrapf(err, "conditional put in table '%s'", tableName)
	}
	return true, nil
}

// UpdateItem runs updateExpression against key and returns the new item.
func (ds *DynamoService) UpdateItem(
	ctx context.Context,
	tableName string,
	updateExpression string,
	key map[string]types.AttributeValue,
	expressionAttributeValues map[string]types.AttributeValue,
	expressionAttributeNames map[string]string,
) (map[string]types.AttributeValue, error) {
	if len(key) == 0 {
		return nil, errors.New("update failed: key cannot be empty")
	}
	if updateExpression == "" {
		return nil, errors.New("update failed: updateExpression cannot be empty")
	}

	updateInput := &dynamodb.UpdateItemInput{
		TableName:        aws.String(tableName),
		Key:              key,
		UpdateExpression: aws.String(updateExpression),
		ReturnValues:     types.ReturnValueAllNew,
	}
	if len(expressionAttributeValues) > 0 {
		updateInput.ExpressionAttributeValues = expressionAttributeValues
	}
	if len(expressionAttributeNames) > 0 {
		updateInput.ExpressionAttributeNames = expressionAttributeNames
	}

	ds.Log.Debug().Str("table", tableName).Str("expression", updateExpression).Msg("🔄 updating item")
	output, err := ds.Client.UpdateItem(ctx, updateInput)
	if err != nil {
		ds.Log.Error().Err(err).Str("table", tableName).Msg("❌ failed to update item")
		return nil, errors.Wrapf(err, "update item in table '%s'", tableName)
	}

	if output.Attributes == nil {
		return map[string]types.AttributeValue{}, nil
	}
	return output.Attributes, nil
}

// QueryItems runs a prepared query and returns every page of results.
func (ds *DynamoService) QueryItems(ctx context.Context, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	in := *input
	for {
		output, err := ds.Client.Query(ctx, &in)
		if err != nil {
			return nil, errors.Wrapf(err, "query table '%s'", aws.ToString(in.TableName))
		}
		items = append(items, output.Items...)

		// an explicit limit means the caller wants a single page
		if len(output.LastEvaluatedKey) == 0 || in.Limit != nil {
			return items, nil
		}
		in.ExclusiveStartKey = output.LastEvaluatedKey
	}
}

// QueryItemsWithIndex queries a global secondary index for keyValue.
func (ds *DynamoService) QueryItemsWithIndex(ctx context.Context, tableName, indexName, keyAttr, keyValue string) ([]map[string]types.AttributeValue, error) {
	ds.Log.Debug().Str("table", tableName).Str("index", indexName).Msg("🔍 querying GSI")
	items, err := ds.QueryItems(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		IndexName:                 aws.String(indexName),
		KeyConditionExpression:    aws.String("#k = :v"),
		ExpressionAttributeNames:  map[string]string{"#k": keyAttr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: keyValue}},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "query GSI '%s'", indexName)
	}
	return items, nil
}

// QueryLatest returns at most limit items of one partition ordered by sort key,
// newest first.
func (ds *DynamoService) QueryLatest(ctx context.Context, tableName, pkAttr, pk string, limit int32) ([]map[string]types.AttributeValue, error) {
	return ds.QueryItems(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		KeyConditionExpression:    aws.String("#pk = :pk"),
		ExpressionAttributeNames:  map[string]string{"#pk": pkAttr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: pk}},
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(limit),
	})
}

// CountItems returns the number of items matched by input across all pages.
func (ds *DynamoService) CountItems(ctx context.Context, input *dynamodb.QueryInput) (int, error) {
	in := *input
	in.Select = types.SelectCount
	total := 0
	for {
		output, err := ds.Client.Query(ctx, &in)
		if err != nil {
			return 0, errors.Wrapf(err, "count items in table '%s'", aws.ToString(in.TableName))
		}
		total += int(output.Count)
		if len(output.LastEvaluatedKey) == 0 {
			return total, nil
		}
		in.ExclusiveStartKey = output.LastEvaluatedKey
	}
}

// ScanAll reads a whole table into out, a pointer to a slice.
func (ds *DynamoService) ScanAll(ctx context.Context, tableName string, out interface{}) error {
	var items []map[string]types.AttributeValue
	input := &dynamodb.ScanInput{TableName: aws.String(tableName)}
	for {
		output, err := ds.Client.Scan(ctx, input)
		if err != nil {
			return errors.Wrapf(err, "scan table '%s'", tableName)
		}
		items = append(items, output.Items...)
		if len(output.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return errors.Wrap(err, "unmarshal scan result")
	}
	return nil
}

const (
	maxBatchSize      = 25
	maxBatchAttempts  = 5
	batchRetryBackoff = 20 * time.Millisecond
)

// BatchPutItems writes items to DynamoDB in batches of 25. Requests the table
// leaves unprocessed are resent with exponential backoff.
func (ds *DynamoService) BatchPutItems(ctx context.Context, tableName string, items []interface{}) error {
	writeRequests := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return errors.Wrap(err, "marshal item")
		}
		writeRequests = append(writeRequests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}

	for i := 0; i < len(writeRequests); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(writeRequests) {
			end = len(writeRequests)
		}
		if err := ds.batchWrite(ctx, tableName, writeRequests[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (ds *DynamoService) batchWrite(ctx context.Context, tableName string, pending []types.WriteRequest) error {
	backoff := batchRetryBackoff
	for attempt := 1; ; attempt++ {
		out, err := ds.Client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{tableName: pending},
		})
		if err != nil {
			return errors.Wrapf(err, "batch write items to table '%s'", tableName)
		}
		pending = out.UnprocessedItems[tableName]
		if len(pending) == 0 {
			return nil
		}
		if attempt == maxBatchAttempts {
			return errors.Errorf("batch write items to table '%s': %d items unprocessed after %d attempts", tableName, len(pending), attempt)
		}

		ds.Log.Warn().Str("table", tableName).Int("unprocessed", len(pending)).Int("attempt", attempt).Msg("⚠️ Retrying unprocessed batch items")
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "batch write items")
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
