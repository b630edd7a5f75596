// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	MessageCounter           = "setsync_messages_total"
	ProcessingDurationSecond = "setsync_message_processing_seconds"
)

// Labels
const (
	OutcomeLabel = "outcome"
)

// Label Values
const (
	SuccessOutcome = "success"
	RetryOutcome   = "retry"
	DroppedOutcome = "dropped"
	StaleOutcome   = "stale"
	IgnoredOutcome = "ignored"

	// DeferredOutcome counts messages released unprocessed because an earlier message
	// of their group in the same batch is being retried.
	DeferredOutcome = "deferred"
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: MessageCounter,
				Help: "Counter for processed queue messages by outcome.",
			},
			OutcomeLabel,
		),
		touchstone.HistogramVec(
			prometheus.HistogramOpts{
				Name:    ProcessingDurationSecond,
				Help:    "A histogram of the time spent enriching and applying a message.",
				Buckets: []float64{0.01, 0.05, 0.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			OutcomeLabel,
		),
	)
}

type Measures struct {
	fx.In
	Messages           *prometheus.CounterVec   `name:"setsync_messages_total"`
	ProcessingDuration *prometheus.HistogramVec `name:"setsync_message_processing_seconds"`
}

// NewTestMeasures builds unregistered measures for use in tests.
func NewTestMeasures() *Measures {
	return &Measures{
		Messages:           prometheus.NewCounterVec(prometheus.CounterOpts{Name: "testMessages"}, []string{OutcomeLabel}),
		ProcessingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "testProcessingDuration"}, []string{OutcomeLabel}),
	}
}
