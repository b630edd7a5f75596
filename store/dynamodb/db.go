// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/xmidt-org/setsync/awsconfig"
	"github.com/xmidt-org/setsync/model"
	"github.com/xmidt-org/setsync/store"
	"github.com/xmidt-org/setsync/store/db/metric"
	"go.uber.org/zap"
)

const (
	defaultTable      = "healthomics_set_metadata"
	defaultMaxRetries = 10
)

var errNilMeasures = errors.New("measures cannot be nil")

// Config is the dynamodb table identity plus the client settings used to reach it.
type Config struct {
	awsconfig.Config `mapstructure:",squash"`

	// Table is the name of the table. Its partition key is set_arn and its sort key
	// is set_status, both strings.
	Table string
}

// dao adapts the underlying dynamodb service to match
// the abstract record store.
type dao struct {
	s service
}

func (d dao) Put(ctx context.Context, record model.Record) error {
	_, err := d.s.Put(ctx, record)
	return err
}

func (d dao) Delete(ctx context.Context, key model.Key) error {
	_, err := d.s.Delete(ctx, key)
	return err
}

func (d dao) List(ctx context.Context, resourceID string) ([]model.Record, error) {
	records, _, err := d.s.List(ctx, resourceID)
	return records, err
}

// NewDynamoDB returns a dynamodb backed record store.
func NewDynamoDB(ctx context.Context, config Config, measures *metric.Measures, logger *zap.Logger) (store.S, error) {
	if measures == nil {
		return nil, errNilMeasures
	}
	validateConfig(&config)

	awsCfg, err := awsconfig.Load(ctx, config.Config)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	svc := newService(awsCfg, config.BaseEndpoint(), config.Table)
	svc = newLoggingService(logger, svc)
	svc = newInstrumentingService(&dynamoMeasuresUpdater{measures: *measures, now: time.Now}, svc, time.Now)
	return &dao{s: svc}, nil
}

func validateConfig(config *Config) {
	if config.Table == "" {
		config.Table = defaultTable
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaultMaxRetries
	}
}
