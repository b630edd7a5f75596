// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"errors"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/xmidt-org/setsync/model"
	"github.com/xmidt-org/setsync/store"
)

// client captures the methods of interest from the dynamoDB API. This
// should help mock API calls as well.
type client interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// service defines the dynamodb specific DAO interface. It helps keeping middleware
// such as logging and instrumentation orthogonal to business logic.
type service interface {
	Put(ctx context.Context, record model.Record) (*types.ConsumedCapacity, error)
	Delete(ctx context.Context, key model.Key) (*types.ConsumedCapacity, error)
	List(ctx context.Context, resourceID string) ([]model.Record, *types.ConsumedCapacity, error)
}

// executor satisfies the service interface so dao can then adapt the outputs to match
// the abstract record store.
type executor struct {
	// c is the dynamodb client
	c client

	// tableName is the name of the dynamodb table
	tableName string
}

// Dynamo DB attribute keys
const (
	resourceIDAttributeKey = "set_arn"
	statusAttributeKey     = "set_status"
	eventEpochAttributeKey = "event_epoch_ns"
)

const (
	putCondition       = "attribute_not_exists(#pk) OR #ts <= :ts"
	keyConditionByPart = "#pk = :pk"
)

// API error codes that are worth another attempt but have no modeled type.
var retryableErrorCodes = map[string]bool{
	"ThrottlingException":            true,
	"ServiceUnavailable":             true,
	"RequestTimeout":                 true,
	"RequestTimeoutException":        true,
	"TransactionInProgressException": true,
}

func handleClientError(err error) error {
	var (
		conditionFailed *types.ConditionalCheckFailedException
		throughput      *types.ProvisionedThroughputExceededException
		requestLimit    *types.RequestLimitExceeded
		internal        *types.InternalServerError
		apiErr          smithy.APIError
	)
	switch {
	case errors.As(err, &conditionFailed):
		return store.ErrStaleWrite
	case errors.As(err, &throughput), errors.As(err, &requestLimit), errors.As(err, &internal):
		return store.InternalError{Reason: err, Retryable: true}
	case errors.Is(err, context.DeadlineExceeded):
		return store.InternalError{Reason: err, Retryable: true}
	case errors.As(err, &apiErr) && retryableErrorCodes[apiErr.ErrorCode()]:
		return store.InternalError{Reason: err, Retryable: true}
	}
	return store.InternalError{Reason: err, Retryable: false}
}

func keyAttributes(key model.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		resourceIDAttributeKey: &types.AttributeValueMemberS{Value: key.ResourceID},
		statusAttributeKey:     &types.AttributeValueMemberS{Value: string(key.Status)},
	}
}

func eventEpoch(record model.Record) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(record.EventTime.UnixNano(), 10)}
}

func (d *executor) Put(ctx context.Context, record model.Record) (*types.ConsumedCapacity, error) {
	av, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, store.InternalError{Reason: err, Retryable: false}
	}
	av[eventEpochAttributeKey] = eventEpoch(record)

	input := &dynamodb.PutItemInput{
		Item:                av,
		TableName:           aws.String(d.tableName),
		ConditionExpression: aws.String(putCondition),
		ExpressionAttributeNames: map[string]string{
			"#pk": resourceIDAttributeKey,
			"#ts": eventEpochAttributeKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ts": eventEpoch(record),
		},
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	}

	result, err := d.c.PutItem(ctx, input)
	var consumedCapacity *types.ConsumedCapacity
	if result != nil {
		consumedCapacity = result.ConsumedCapacity
	}

	if err != nil {
		return consumedCapacity, handleClientError(err)
	}
	return consumedCapacity, nil
}

func (d *executor) Delete(ctx context.Context, key model.Key) (*types.ConsumedCapacity, error) {
	result, err := d.c.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:              aws.String(d.tableName),
		Key:                    keyAttributes(key),
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	var consumedCapacity *types.ConsumedCapacity
	if result != nil {
		consumedCapacity = result.ConsumedCapacity
	}
	if err != nil {
		return consumedCapacity, handleClientError(err)
	}
	return consumedCapacity, nil
}

func (d *executor) List(ctx context.Context, resourceID string) ([]model.Record, *types.ConsumedCapacity, error) {
	var (
		records  []model.Record
		consumed *types.ConsumedCapacity
		startKey map[string]types.AttributeValue
	)

	for {
		out, err := d.c.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(d.tableName),
			KeyConditionExpression: aws.String(keyConditionByPart),
			ExpressionAttributeNames: map[string]string{
				"#pk": resourceIDAttributeKey,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: resourceID},
			},
			ConsistentRead:         aws.Bool(true),
			ExclusiveStartKey:      startKey,
			ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
		})
		if out != nil {
			consumed = addCapacity(consumed, out.ConsumedCapacity)
		}
		if err != nil {
			return nil, consumed, handleClientError(err)
		}

		page := make([]model.Record, 0, len(out.Items))
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, consumed, store.InternalError{Reason: err, Retryable: false}
		}
		for _, r := range page {
			if r.ResourceID == "" || r.Status == "" {
				continue
			}
			records = append(records, r)
		}

		if len(out.LastEvaluatedKey) == 0 {
			return records, consumed, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func addCapacity(total, page *types.ConsumedCapacity) *types.ConsumedCapacity {
	if page == nil {
		return total
	}
	if total == nil {
		total = &types.ConsumedCapacity{TableName: page.TableName}
	}
	total.CapacityUnits = sumUnits(total.CapacityUnits, page.CapacityUnits)
	total.ReadCapacityUnits = sumUnits(total.ReadCapacityUnits, page.ReadCapacityUnits)
	total.WriteCapacityUnits = sumUnits(total.WriteCapacityUnits, page.WriteCapacityUnits)
	return total
}

func sumUnits(a, b *float64) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return aws.Float64(*b)
	case b == nil:
		return a
	}
	return aws.Float64(*a + *b)
}

func newService(cfg aws.Config, endpoint *string, tableName string) service {
	return &executor{
		c: dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = endpoint
		}),
		tableName: tableName,
	}
}
