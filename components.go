// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/setsync/applier"
	"github.com/xmidt-org/setsync/backfill"
	"github.com/xmidt-org/setsync/consumer"
	"github.com/xmidt-org/setsync/enrich"
	omicsenrich "github.com/xmidt-org/setsync/enrich/omics"
	"github.com/xmidt-org/setsync/ingest"
	"github.com/xmidt-org/setsync/queue"
	"github.com/xmidt-org/setsync/queue/inmem"
	"github.com/xmidt-org/setsync/queue/sqs"
	"github.com/xmidt-org/setsync/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type QueueIn struct {
	fx.In
	Config   QueueConfig
	Measures queue.Measures
	Logger   *zap.Logger
}

type ConsumerIn struct {
	fx.In
	Config   consumer.Config
	Queue    queue.Q
	Enricher enrich.Enricher
	Applier  *applier.Applier
	Measures consumer.Measures
	Logger   *zap.Logger
}

type BackfillIn struct {
	fx.In
	Config   backfill.Config
	Client   omicsenrich.Client
	Enricher enrich.Enricher
	Applier  *applier.Applier
	Logger   *zap.Logger
}

func provideComponents() fx.Option {
	return fx.Options(
		consumer.ProvideMetrics(),
		fx.Provide(
			unmarshalConfig,
			candlelight.New,
			provideQueue,
			func(c QueueConfig) queue.Grouping {
				return c.Grouping
			},
			func(c omicsenrich.Config) (omicsenrich.Client, error) {
				return omicsenrich.NewClient(context.Background(), c)
			},
			func(c omicsenrich.Client, logger *zap.Logger) enrich.Enricher {
				return omicsenrich.NewEnricher(c, logger)
			},
			func(s store.S, p applier.Policy) (*applier.Applier, error) {
				return applier.New(s, p)
			},
			func(in ConsumerIn) (*consumer.Consumer, error) {
				return consumer.New(in.Config, in.Queue, in.Enricher, in.Applier, &in.Measures, in.Logger)
			},
			func(c ingest.Config, q queue.Q, g queue.Grouping, logger *zap.Logger) (ingest.Handler, error) {
				return ingest.New(c, q, g, logger)
			},
			func(in BackfillIn) (*backfill.Backfill, error) {
				return backfill.New(in.Config, in.Client, in.Enricher, in.Applier, in.Logger)
			},
		),
	)
}

func provideQueue(in QueueIn) (queue.Q, error) {
	if in.Config.Type == SQSQueue {
		in.Logger.Info("using sqs queue implementation")
		return sqs.New(context.Background(), in.Config.SQS, &in.Measures, in.Logger)
	}
	in.Logger.Info("using in memory queue implementation")
	return inmem.New(in.Config.InMem, inmem.WithMeasures(&in.Measures)), nil
}

func startConsumer(lc fx.Lifecycle, c *consumer.Consumer) {
	lc.Append(fx.Hook{
		OnStart: c.Start,
		OnStop:  c.Stop,
	})
}

type runBackfillIn struct {
	fx.In
	Backfill   *backfill.Backfill
	StoreID    string `name:"backfill_store_id"`
	LC         fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *zap.Logger
}

// runBackfill runs a single backfill once the application has started and shuts the
// application down when it is over.
func runBackfill(in runBackfillIn) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	in.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				report, err := in.Backfill.Run(ctx, in.StoreID)
				logger := in.Logger.With(
					zap.String("storeID", in.StoreID),
					zap.Int("listed", report.Listed),
					zap.Int("applied", report.Applied),
					zap.Int("stale", report.Stale),
					zap.Int("ignored", report.Ignored),
					zap.Int("failed", report.Failed),
				)
				code := 0
				if err != nil {
					logger.Error("backfill aborted", zap.Error(err))
					code = 1
				} else {
					logger.Info("backfill finished")
				}
				_ = in.Shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
