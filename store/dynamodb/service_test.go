// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/setsync/model"
	"github.com/xmidt-org/setsync/store"
)

const testTableName = "table01"

var (
	testResourceID = "arn:aws:omics:us-east-1:123456789012:sequenceStore/1/readSet/2"
	testEventTime  = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	testRecord     = model.Record{
		Key:       model.Key{ResourceID: testResourceID, Status: model.StatusActive},
		EventTime: testEventTime,
		Metadata: model.Metadata{
			SetID: "2",
			Name:  "sample",
			Tags:  map[string]string{"project": "p1"},
			Store: &model.StoreInfo{ID: "1", Type: "sequence_store"},
		},
	}
	testConsumedCapacity = &types.ConsumedCapacity{
		CapacityUnits: aws.Float64(1),
		TableName:     aws.String(testTableName),
	}
)

func TestHandleClientError(t *testing.T) {
	tcs := []struct {
		Description       string
		Err               error
		ExpectedStale     bool
		ExpectedRetryable bool
	}{
		{
			Description:   "Condition failed",
			Err:           &types.ConditionalCheckFailedException{Message: aws.String("stale")},
			ExpectedStale: true,
		},
		{
			Description:       "Throughput exceeded",
			Err:               &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")},
			ExpectedRetryable: true,
		},
		{
			Description:       "Request limit",
			Err:               &types.RequestLimitExceeded{Message: aws.String("slow down")},
			ExpectedRetryable: true,
		},
		{
			Description:       "Internal server",
			Err:               &types.InternalServerError{Message: aws.String("oops")},
			ExpectedRetryable: true,
		},
		{
			Description:       "Throttling code",
			Err:               &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"},
			ExpectedRetryable: true,
		},
		{
			Description:       "Deadline",
			Err:               context.DeadlineExceeded,
			ExpectedRetryable: true,
		},
		{
			Description: "Validation",
			Err:         &smithy.GenericAPIError{Code: "ValidationException", Message: "bad"},
		},
		{
			Description: "Unknown",
			Err:         errors.New("unknown"),
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			err := handleClientError(tc.Err)
			if tc.ExpectedStale {
				assert.Equal(store.ErrStaleWrite, err)
				return
			}
			var ie store.InternalError
			assert.True(errors.As(err, &ie))
			assert.Equal(tc.ExpectedRetryable, ie.Retryable)
			assert.Equal(tc.ExpectedRetryable, store.IsRetryable(err))
		})
	}
}

func TestPut(t *testing.T) {
	tcs := []struct {
		Description string
		PutErr      error
		Output      *dynamodb.PutItemOutput
		ExpectedErr error
		ExpectedCC  *types.ConsumedCapacity
	}{
		{
			Description: "Success",
			Output:      &dynamodb.PutItemOutput{ConsumedCapacity: testConsumedCapacity},
			ExpectedCC:  testConsumedCapacity,
		},
		{
			Description: "Stale",
			Output:      &dynamodb.PutItemOutput{},
			PutErr:      &types.ConditionalCheckFailedException{},
			ExpectedErr: store.ErrStaleWrite,
		},
		{
			Description: "Nil output",
			PutErr:      &types.InternalServerError{},
			ExpectedErr: store.InternalError{Reason: &types.InternalServerError{}, Retryable: true},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			m := new(mockClient)
			svc := executor{c: m, tableName: testTableName}
			m.On("PutItem", mock.MatchedBy(func(input *dynamodb.PutItemInput) bool {
				epoch := strconv.FormatInt(testEventTime.UnixNano(), 10)
				ts, ok := input.ExpressionAttributeValues[":ts"].(*types.AttributeValueMemberN)
				stored, ok2 := input.Item[eventEpochAttributeKey].(*types.AttributeValueMemberN)
				pk, ok3 := input.Item[resourceIDAttributeKey].(*types.AttributeValueMemberS)
				sk, ok4 := input.Item[statusAttributeKey].(*types.AttributeValueMemberS)
				return ok && ok2 && ok3 && ok4 &&
					*input.TableName == testTableName &&
					*input.ConditionExpression == putCondition &&
					ts.Value == epoch && stored.Value == epoch &&
					pk.Value == testResourceID && sk.Value == string(model.StatusActive)
			})).Return(tc.Output, tc.PutErr)

			cc, err := svc.Put(context.Background(), testRecord)
			assert.Equal(tc.ExpectedErr, err)
			assert.Equal(tc.ExpectedCC, cc)
			m.AssertExpectations(t)
		})
	}
}

func TestDelete(t *testing.T) {
	assert := assert.New(t)
	m := new(mockClient)
	svc := executor{c: m, tableName: testTableName}
	expectedInput := &dynamodb.DeleteItemInput{
		TableName:              aws.String(testTableName),
		Key:                    keyAttributes(testRecord.Key),
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	}
	m.On("DeleteItem", expectedInput).Return(&dynamodb.DeleteItemOutput{ConsumedCapacity: testConsumedCapacity}, nil).Once()
	m.On("DeleteItem", expectedInput).Return((*dynamodb.DeleteItemOutput)(nil), &types.RequestLimitExceeded{}).Once()

	cc, err := svc.Delete(context.Background(), testRecord.Key)
	assert.NoError(err)
	assert.Equal(testConsumedCapacity, cc)

	cc, err = svc.Delete(context.Background(), testRecord.Key)
	assert.Nil(cc)
	assert.True(store.IsRetryable(err))
	m.AssertExpectations(t)
}

func TestList(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	first, err := attributevalue.MarshalMap(testRecord)
	require.NoError(err)
	terminal := testRecord
	terminal.Status = model.StatusDeleted
	terminal.Terminal = true
	second, err := attributevalue.MarshalMap(terminal)
	require.NoError(err)
	junk := map[string]types.AttributeValue{"other": &types.AttributeValueMemberS{Value: "x"}}

	lastKey := keyAttributes(testRecord.Key)
	m := new(mockClient)
	m.On("Query", mock.MatchedBy(func(input *dynamodb.QueryInput) bool {
		return input.ExclusiveStartKey == nil && *input.KeyConditionExpression == keyConditionByPart
	})).Return(&dynamodb.QueryOutput{
		Items:            []map[string]types.AttributeValue{first},
		LastEvaluatedKey: lastKey,
		ConsumedCapacity: &types.ConsumedCapacity{CapacityUnits: aws.Float64(0.5)},
	}, nil).Once()
	m.On("Query", mock.MatchedBy(func(input *dynamodb.QueryInput) bool {
		return input.ExclusiveStartKey != nil
	})).Return(&dynamodb.QueryOutput{
		Items:            []map[string]types.AttributeValue{second, junk},
		ConsumedCapacity: &types.ConsumedCapacity{CapacityUnits: aws.Float64(0.5)},
	}, nil).Once()

	svc := executor{c: m, tableName: testTableName}
	records, cc, err := svc.List(context.Background(), testResourceID)
	require.NoError(err)
	require.Len(records, 2)
	assert.Equal(testRecord.Key, records[0].Key)
	assert.Equal(testRecord.Metadata, records[0].Metadata)
	assert.True(testEventTime.Equal(records[0].EventTime))
	assert.True(records[1].Terminal)
	require.NotNil(cc)
	assert.Equal(1.0, *cc.CapacityUnits)
	m.AssertExpectations(t)
}

func TestListError(t *testing.T) {
	m := new(mockClient)
	m.On("Query", mock.Anything).Return((*dynamodb.QueryOutput)(nil), &types.ProvisionedThroughputExceededException{})
	svc := executor{c: m, tableName: testTableName}
	records, _, err := svc.List(context.Background(), testResourceID)
	assert.Nil(t, records)
	assert.True(t, store.IsRetryable(err))
}
