// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package backfill

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/omics"
	"github.com/xmidt-org/setsync/applier"
	"github.com/xmidt-org/setsync/enrich"
	"github.com/xmidt-org/setsync/model"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 100
	defaultPause    = 25 * time.Millisecond
)

var (
	ErrNoStoreID         = errors.New("sequence store id is required")
	ErrMissingDependency = errors.New("lister, enricher and applier are required")
)

type Config struct {
	// PageSize is the number of read sets listed per call.
	// (Optional). Defaults to 100.
	PageSize int32

	// Pause between read sets keeps the lookup calls under the service rate limits.
	// (Optional). Defaults to 25ms.
	Pause time.Duration
}

// Report summarizes a run.
type Report struct {
	Listed  int
	Applied int
	Stale   int
	Ignored int
	Failed  int
}

// Backfill records every read set of a sequence store as if a status change had
// just been reported for it.
type Backfill struct {
	lister   omics.ListReadSetsAPIClient
	enricher enrich.Enricher
	applier  *applier.Applier
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

func New(config Config, lister omics.ListReadSetsAPIClient, e enrich.Enricher, a *applier.Applier, logger *zap.Logger) (*Backfill, error) {
	if lister == nil || e == nil || a == nil {
		return nil, ErrMissingDependency
	}
	if config.PageSize <= 0 {
		config.PageSize = defaultPageSize
	}
	if config.Pause < 0 {
		config.Pause = 0
	} else if config.Pause == 0 {
		config.Pause = defaultPause
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backfill{
		lister:   lister,
		enricher: e,
		applier:  a,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Run walks the store. Failures of individual read sets are counted and logged;
// only listing failures abort the run.
func (b *Backfill) Run(ctx context.Context, storeID string) (Report, error) {
	var report Report
	if storeID == "" {
		return report, ErrNoStoreID
	}
	logger := b.logger.With(zap.String("storeID", storeID))

	pages := omics.NewListReadSetsPaginator(b.lister, &omics.ListReadSetsInput{
		SequenceStoreId: aws.String(storeID),
		MaxResults:      aws.Int32(b.config.PageSize),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return report, err
		}

		for _, rs := range page.ReadSets {
			report.Listed++
			status := model.Status(rs.Status)
			if status == "" {
				status = model.StatusActive
			}
			n := model.Notification{
				ResourceID:      aws.ToString(rs.Arn),
				Status:          status,
				EventTime:       b.now().UTC(),
				ReadSetID:       aws.ToString(rs.Id),
				SequenceStoreID: storeID,
			}
			b.apply(ctx, logger, n, &report)

			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(b.config.Pause):
			}
		}
		logger.Info("backfill progress", zap.Int("listed", report.Listed), zap.Int("applied", report.Applied))
	}
	return report, nil
}

func (b *Backfill) apply(ctx context.Context, logger *zap.Logger, n model.Notification, report *Report) {
	var (
		md        model.Metadata
		enrichErr error
	)
	if b.applier.Policy().Classify(n.Status) != applier.Ignore {
		md, enrichErr = b.enricher.Enrich(ctx, n)
	}
	result, err := b.applier.Apply(ctx, n, md, enrichErr)
	switch {
	case err != nil:
		report.Failed++
		logger.Error("failed to backfill read set", zap.String("resourceID", n.ResourceID), zap.Error(err))
	case result.Action == applier.Ignore:
		report.Ignored++
	case result.Stale:
		report.Stale++
	default:
		report.Applied++
	}
}
