// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package applier

import (
	"context"
	"errors"
	"fmt"

	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/setsync/enrich"
	"github.com/xmidt-org/setsync/model"
	"github.com/xmidt-org/setsync/store"
	"go.uber.org/zap"
)

var errNilStore = errors.New("record store cannot be nil")

// Result describes what Apply did.
type Result struct {
	Action Action

	// Written is set when a row was put.
	Written bool

	// Deleted counts removed rows.
	Deleted int

	// Stale is set when the notification lost to rows already stored for a later
	// event time and nothing was changed.
	Stale bool
}

// Applier turns notifications into record store mutations. Mutations for one
// resource must not run concurrently; the delivery queue's per-group ordering
// provides that.
type Applier struct {
	store  store.S
	policy Policy
}

func New(s store.S, p Policy) (*Applier, error) {
	if s == nil {
		return nil, errNilStore
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Applier{store: s, policy: p}, nil
}

// Policy returns the validated policy in use.
func (a *Applier) Policy() Policy {
	return a.policy
}

// Apply records n. md and enrichErr are the outcome of the metadata lookup for n.
// Errors returned should be passed to Classify.
func (a *Applier) Apply(ctx context.Context, n model.Notification, md model.Metadata, enrichErr error) (Result, error) {
	if err := n.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}

	result := Result{Action: a.policy.Classify(n.Status)}
	logger := sallust.Get(ctx).With(zap.String("action", string(result.Action)))

	switch result.Action {
	case Upsert:
		if enrichErr != nil {
			if errors.Is(enrichErr, enrich.ErrLookupNotFound) {
				return result, fmt.Errorf("%w: %v", ErrResourceGone, enrichErr)
			}
			return result, enrichErr
		}
		return a.upsert(ctx, logger, n, md, result)

	case TerminalRemove:
		if enrichErr != nil {
			if errors.Is(enrichErr, enrich.ErrLookupTransient) {
				return result, enrichErr
			}
			// the notification alone identifies what to purge
			logger.Debug("removing without metadata", zap.Error(enrichErr))
			md = model.Metadata{}
		}
		return a.terminalRemove(ctx, logger, n, md, result)
	}

	logger.Debug("no updates needed")
	return result, nil
}

func (a *Applier) upsert(ctx context.Context, logger *zap.Logger, n model.Notification, md model.Metadata, result Result) (Result, error) {
	rows, err := a.store.List(ctx, n.ResourceID)
	if err != nil {
		return result, err
	}

	var obsolete []model.Record
	for _, row := range rows {
		if row.Status == n.Status {
			continue
		}
		switch {
		case row.Terminal && row.EventTime.After(n.EventTime):
			logger.Info("upsert predates terminal status, skipping",
				zap.String("terminalStatus", string(row.Status)), zap.Time("terminalTime", row.EventTime))
			result.Stale = true
			return result, nil
		case row.Terminal:
			// the resource was recreated after it was removed
			obsolete = append(obsolete, row)
		case a.policy.PrunePrior && row.EventTime.After(n.EventTime):
			logger.Info("upsert predates the live row, skipping",
				zap.String("liveStatus", string(row.Status)), zap.Time("liveTime", row.EventTime))
			result.Stale = true
			return result, nil
		case a.policy.PrunePrior:
			obsolete = append(obsolete, row)
		}
	}

	err = a.store.Put(ctx, model.NewRecord(n, md))
	if errors.Is(err, store.ErrStaleWrite) {
		logger.Info("stored row is newer, skipping")
		result.Stale = true
		return result, nil
	}
	if err != nil {
		return result, err
	}
	result.Written = true

	for _, row := range obsolete {
		if err := a.store.Delete(ctx, row.Key); err != nil {
			return result, err
		}
		result.Deleted++
	}
	return result, nil
}

func (a *Applier) terminalRemove(ctx context.Context, logger *zap.Logger, n model.Notification, md model.Metadata, result Result) (Result, error) {
	rows, err := a.store.List(ctx, n.ResourceID)
	if err != nil {
		return result, err
	}

	var purge []model.Record
	for _, row := range rows {
		if row.Status == n.Status {
			continue
		}
		if row.EventTime.After(n.EventTime) {
			logger.Info("terminal status predates stored row, skipping",
				zap.String("storedStatus", string(row.Status)), zap.Time("storedTime", row.EventTime))
			result.Stale = true
			return result, nil
		}
		purge = append(purge, row)
	}

	if !a.policy.OmitTerminalMarker {
		marker := model.NewRecord(n, md)
		marker.Terminal = true
		err := a.store.Put(ctx, marker)
		switch {
		case errors.Is(err, store.ErrStaleWrite):
			logger.Info("stored terminal row is newer, skipping")
			result.Stale = true
			return result, nil
		case err != nil:
			return result, err
		}
		result.Written = true
	}

	for _, row := range purge {
		if err := a.store.Delete(ctx, row.Key); err != nil {
			return result, err
		}
		result.Deleted++
	}
	return result, nil
}
