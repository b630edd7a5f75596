// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"

	"github.com/xmidt-org/setsync/store"
	"github.com/xmidt-org/setsync/store/cassandra"
	"github.com/xmidt-org/setsync/store/db/metric"
	"github.com/xmidt-org/setsync/store/dynamodb"
	"github.com/xmidt-org/setsync/store/inmem"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Configs holds the optional backend sections. The first one present wins.
type Configs struct {
	Dynamo   *dynamodb.Config
	Yugabyte *cassandra.Config
}

type SetupIn struct {
	fx.In
	Configs  Configs
	Measures metric.Measures
	LC       fx.Lifecycle
	Logger   *zap.Logger
}

func Provide() fx.Option {
	return fx.Options(
		metric.ProvideMetrics(),
		fx.Provide(
			SetupStore,
		),
	)
}

func SetupStore(in SetupIn) (store.S, error) {
	if in.Configs.Dynamo != nil {
		in.Logger.Info("using dynamodb store implementation", zap.String("table", in.Configs.Dynamo.Table))
		return dynamodb.NewDynamoDB(context.Background(), *in.Configs.Dynamo, &in.Measures, in.Logger)
	}
	if in.Configs.Yugabyte != nil {
		in.Logger.Info("using yugabyte store implementation")
		return cassandra.NewCassandra(*in.Configs.Yugabyte, in.Measures, in.LC, in.Logger)
	}
	in.Logger.Info("using in memory store implementation")
	return inmem.NewInMem(), nil
}
