// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/setsync/model"
	"github.com/xmidt-org/setsync/store"
	"github.com/xmidt-org/setsync/store/db/metric"
)

type measureUpdateRequest struct {
	queryType        string
	start            time.Time
	err              error
	consumedCapacity *types.ConsumedCapacity
	records          int
}

type measuresUpdater interface {
	Update(*measureUpdateRequest)
}

type dynamoMeasuresUpdater struct {
	measures metric.Measures
	now      func() time.Time
}

func (m *dynamoMeasuresUpdater) Update(request *measureUpdateRequest) {
	labels := prometheus.Labels{store.TypeLabel: request.queryType}
	m.measures.QueryDuration.With(labels).Observe(m.now().Sub(request.start).Seconds())

	switch {
	case errors.Is(request.err, store.ErrStaleWrite):
		m.measures.StaleWrites.Inc()
		m.measures.QuerySuccessCount.With(labels).Inc()
	case request.err != nil:
		m.measures.QueryFailureCount.With(labels).Inc()
	default:
		m.measures.QuerySuccessCount.With(labels).Inc()
		switch request.queryType {
		case store.InsertType:
			m.measures.RecordsWritten.Inc()
		case store.DeleteType:
			m.measures.RecordsDeleted.Inc()
		case store.ReadType:
			m.measures.RecordsRead.Add(float64(request.records))
		}
	}

	if request.consumedCapacity == nil {
		return
	}
	if request.consumedCapacity.CapacityUnits != nil {
		m.measures.CapacityUnitConsumedCount.With(labels).Add(*request.consumedCapacity.CapacityUnits)
	}
	if request.consumedCapacity.ReadCapacityUnits != nil {
		m.measures.ReadCapacityUnitConsumedCount.With(labels).Add(*request.consumedCapacity.ReadCapacityUnits)
	}
	if request.consumedCapacity.WriteCapacityUnits != nil {
		m.measures.WriteCapacityUnitConsumedCount.With(labels).Add(*request.consumedCapacity.WriteCapacityUnits)
	}
}

type instrumentingService struct {
	service
	measures measuresUpdater
	now      func() time.Time
}

func newInstrumentingService(measures measuresUpdater, s service, now func() time.Time) service {
	return &instrumentingService{measures: measures, service: s, now: now}
}

func (s *instrumentingService) Put(ctx context.Context, record model.Record) (*types.ConsumedCapacity, error) {
	start := s.now()
	consumedCapacity, err := s.service.Put(ctx, record)
	s.measures.Update(&measureUpdateRequest{queryType: store.InsertType, start: start, err: err, consumedCapacity: consumedCapacity})
	return consumedCapacity, err
}

func (s *instrumentingService) Delete(ctx context.Context, key model.Key) (*types.ConsumedCapacity, error) {
	start := s.now()
	consumedCapacity, err := s.service.Delete(ctx, key)
	s.measures.Update(&measureUpdateRequest{queryType: store.DeleteType, start: start, err: err, consumedCapacity: consumedCapacity})
	return consumedCapacity, err
}

func (s *instrumentingService) List(ctx context.Context, resourceID string) ([]model.Record, *types.ConsumedCapacity, error) {
	start := s.now()
	records, consumedCapacity, err := s.service.List(ctx, resourceID)
	s.measures.Update(&measureUpdateRequest{queryType: store.ReadType, start: start, err: err, consumedCapacity: consumedCapacity, records: len(records)})
	return records, consumedCapacity, err
}
