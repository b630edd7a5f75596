// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package applier

import (
	"context"
	"errors"

	"github.com/xmidt-org/setsync/enrich"
	"github.com/xmidt-org/setsync/store"
)

var (
	ErrInvalidNotification = errors.New("invalid notification")

	// ErrResourceGone is returned when an upsert refers to a resource the lookup no
	// longer knows about.
	ErrResourceGone = errors.New("resource no longer exists upstream")
)

// Disposition tells the consumer what to do with a message whose processing failed.
type Disposition int

const (
	// Retry leaves the message unacknowledged so that it is redelivered.
	Retry Disposition = iota

	// Drop acknowledges the message and gives up on it.
	Drop
)

func (d Disposition) String() string {
	if d == Retry {
		return "retry"
	}
	return "drop"
}

// Classify sorts a processing failure into Retry or Drop. Throttling, timeouts and
// transient I/O are retried; everything else is dropped.
func Classify(err error) Disposition {
	switch {
	case err == nil:
		return Drop
	case errors.Is(err, enrich.ErrLookupTransient),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		store.IsRetryable(err):
		return Retry
	}
	return Drop
}
