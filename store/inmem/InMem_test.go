// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/xmidt-org/setsync/model"
	"github.com/xmidt-org/setsync/store"
	"github.com/xmidt-org/setsync/store/storetest"
)

type InMemTestSuite struct {
	suite.Suite
	ResourceID string
	Now        time.Time
	Activating model.Record
	Active     model.Record
}

func (s *InMemTestSuite) SetupSuite() {
	s.ResourceID = "arn:aws:omics:us-east-1:123456789012:sequenceStore/1/readSet/2"
	s.Now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Activating = model.Record{
		Key:       model.Key{ResourceID: s.ResourceID, Status: model.StatusActivating},
		EventTime: s.Now,
	}
	s.Active = model.Record{
		Key:       model.Key{ResourceID: s.ResourceID, Status: model.StatusActive},
		EventTime: s.Now.Add(time.Minute),
		Metadata:  model.Metadata{Name: "sample"},
	}
}

func (s *InMemTestSuite) TestPut() {
	tcs := []struct {
		Description  string
		Data         map[string]map[model.Status]model.Record
		Record       model.Record
		ExpectedErr  error
		ExpectedData map[string]map[model.Status]model.Record
	}{
		{
			Description: "Create resource",
			Data:        map[string]map[model.Status]model.Record{},
			Record:      s.Activating,
			ExpectedData: map[string]map[model.Status]model.Record{
				s.ResourceID: {model.StatusActivating: s.Activating},
			},
		},
		{
			Description: "Add status row",
			Data: map[string]map[model.Status]model.Record{
				s.ResourceID: {model.StatusActivating: s.Activating},
			},
			Record: s.Active,
			ExpectedData: map[string]map[model.Status]model.Record{
				s.ResourceID: {model.StatusActivating: s.Activating, model.StatusActive: s.Active},
			},
		},
		{
			Description: "Stale write rejected",
			Data: map[string]map[model.Status]model.Record{
				s.ResourceID: {model.StatusActive: s.Active},
			},
			Record: model.Record{
				Key:       s.Active.Key,
				EventTime: s.Now,
			},
			ExpectedErr: store.ErrStaleWrite,
			ExpectedData: map[string]map[model.Status]model.Record{
				s.ResourceID: {model.StatusActive: s.Active},
			},
		},
		{
			Description: "Same event time overwrites",
			Data: map[string]map[model.Status]model.Record{
				s.ResourceID: {model.StatusActive: s.Active},
			},
			Record: s.Active,
			ExpectedData: map[string]map[model.Status]model.Record{
				s.ResourceID: {model.StatusActive: s.Active},
			},
		},
	}

	for _, tc := range tcs {
		s.T().Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			storage := InMem{data: tc.Data}
			err := storage.Put(context.Background(), tc.Record)
			assert.Equal(tc.ExpectedErr, err)
			assert.Equal(tc.ExpectedData, storage.data)
		})
	}
}

func (s *InMemTestSuite) TestDelete() {
	tcs := []struct {
		Description  string
		Data         map[string]map[model.Status]model.Record
		Key          model.Key
		ExpectedData map[string]map[model.Status]model.Record
	}{
		{
			Description:  "Resource missing",
			Data:         map[string]map[model.Status]model.Record{},
			Key:          s.Active.Key,
			ExpectedData: map[string]map[model.Status]model.Record{},
		},
		{
			Description: "Status missing",
			Data: map[string]map[model.Status]model.Record{
				s.ResourceID: {model.StatusActivating: s.Activating},
			},
			Key: s.Active.Key,
			ExpectedData: map[string]map[model.Status]model.Record{
				s.ResourceID: {model.StatusActivating: s.Activating},
			},
		},
		{
			Description: "Last row removes resource",
			Data: map[string]map[model.Status]model.Record{
				s.ResourceID: {model.StatusActive: s.Active},
			},
			Key:          s.Active.Key,
			ExpectedData: map[string]map[model.Status]model.Record{},
		},
	}

	for _, tc := range tcs {
		s.T().Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			storage := InMem{data: tc.Data}
			assert.NoError(storage.Delete(context.Background(), tc.Key))
			assert.Equal(tc.ExpectedData, storage.data)
		})
	}
}

func (s *InMemTestSuite) TestList() {
	storage := InMem{data: map[string]map[model.Status]model.Record{
		s.ResourceID: {model.StatusActivating: s.Activating, model.StatusActive: s.Active},
	}}
	records, err := storage.List(context.Background(), s.ResourceID)
	s.NoError(err)
	s.ElementsMatch([]model.Record{s.Activating, s.Active}, records)

	records, err = storage.List(context.Background(), "other")
	s.NoError(err)
	s.Empty(records)
}

func TestInMem(t *testing.T) {
	suite.Run(t, new(InMemTestSuite))
}

func TestInMemConformance(t *testing.T) {
	storetest.StoreTest(NewInMem(), t)
}
