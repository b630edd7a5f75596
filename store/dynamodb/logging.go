// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/xmidt-org/setsync/model"
	"go.uber.org/zap"
)

type loggingService struct {
	service
	logger *zap.Logger
}

func newLoggingService(logger *zap.Logger, s service) service {
	return &loggingService{service: s, logger: logger}
}

func (s *loggingService) Put(ctx context.Context, record model.Record) (consumedCapacity *types.ConsumedCapacity, err error) {
	defer func() {
		s.logger.Debug("dynamodb put", zap.String("resourceID", record.ResourceID),
			zap.String("status", string(record.Status)), zap.Error(err))
	}()
	return s.service.Put(ctx, record)
}

func (s *loggingService) Delete(ctx context.Context, key model.Key) (consumedCapacity *types.ConsumedCapacity, err error) {
	defer func() {
		s.logger.Debug("dynamodb delete", zap.String("resourceID", key.ResourceID),
			zap.String("status", string(key.Status)), zap.Error(err))
	}()
	return s.service.Delete(ctx, key)
}

func (s *loggingService) List(ctx context.Context, resourceID string) (records []model.Record, consumedCapacity *types.ConsumedCapacity, err error) {
	defer func() {
		s.logger.Debug("dynamodb list", zap.Int("recordsSize", len(records)),
			zap.String("resourceID", resourceID), zap.Error(err))
	}()
	return s.service.List(ctx, resourceID)
}
