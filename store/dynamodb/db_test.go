// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/xmidt-org/setsync/model"
	"github.com/xmidt-org/setsync/store"
	"github.com/xmidt-org/setsync/store/db/metric"
)

var errInternal = errors.New("internal dummy error")

func TestPutDAO(t *testing.T) {
	tcs := []struct {
		Description string
		PutErr      error
	}{
		{
			Description: "put error",
			PutErr:      store.InternalError{Reason: errInternal},
		},
		{
			Description: "success",
		},
	}
	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			m := new(mockService)
			m.On("Put", testRecord).Return(&types.ConsumedCapacity{}, tc.PutErr)
			d := dao{s: m}
			assert.Equal(tc.PutErr, d.Put(context.Background(), testRecord))
		})
	}
}

func TestDeleteDAO(t *testing.T) {
	assert := assert.New(t)
	m := new(mockService)
	m.On("Delete", testRecord.Key).Return(&types.ConsumedCapacity{}, nil)
	d := dao{s: m}
	assert.NoError(d.Delete(context.Background(), testRecord.Key))
	m.AssertExpectations(t)
}

func TestListDAO(t *testing.T) {
	assert := assert.New(t)
	m := new(mockService)
	m.On("List", testResourceID).Return([]model.Record{testRecord}, &types.ConsumedCapacity{}, nil)
	d := dao{s: m}
	records, err := d.List(context.Background(), testResourceID)
	assert.NoError(err)
	assert.Equal([]model.Record{testRecord}, records)
}

func TestNewDynamoDBNilMeasures(t *testing.T) {
	_, err := NewDynamoDB(context.Background(), Config{}, nil, nil)
	assert.Equal(t, errNilMeasures, err)
}

func TestNewDynamoDB(t *testing.T) {
	assert := assert.New(t)
	measures := metric.NewTestMeasures()
	s, err := NewDynamoDB(context.Background(), Config{Table: "records"}, &measures, nil)
	assert.NoError(err)
	assert.NotNil(s)
}

func TestValidateConfig(t *testing.T) {
	assert := assert.New(t)
	c := Config{}
	validateConfig(&c)
	assert.Equal(defaultTable, c.Table)
	assert.Equal(defaultMaxRetries, c.MaxRetries)
}
