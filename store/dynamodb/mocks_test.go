// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/mock"
	"github.com/xmidt-org/setsync/model"
)

type mockService struct {
	mock.Mock
}

func (s *mockService) Put(_ context.Context, record model.Record) (*types.ConsumedCapacity, error) {
	args := s.Called(record)
	return args.Get(0).(*types.ConsumedCapacity), args.Error(1)
}

func (s *mockService) Delete(_ context.Context, key model.Key) (*types.ConsumedCapacity, error) {
	args := s.Called(key)
	return args.Get(0).(*types.ConsumedCapacity), args.Error(1)
}

func (s *mockService) List(_ context.Context, resourceID string) ([]model.Record, *types.ConsumedCapacity, error) {
	args := s.Called(resourceID)
	return args.Get(0).([]model.Record), args.Get(1).(*types.ConsumedCapacity), args.Error(2)
}

type mockClient struct {
	mock.Mock
}

func (c *mockClient) PutItem(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := c.Called(input)
	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

func (c *mockClient) DeleteItem(_ context.Context, input *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := c.Called(input)
	return args.Get(0).(*dynamodb.DeleteItemOutput), args.Error(1)
}

func (c *mockClient) Query(_ context.Context, input *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := c.Called(input)
	return args.Get(0).(*dynamodb.QueryOutput), args.Error(1)
}

type mockMeasuresUpdater struct {
	mock.Mock
}

func (m *mockMeasuresUpdater) Update(request *measureUpdateRequest) {
	m.Called(request)
}
