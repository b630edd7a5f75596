// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	OperationCounter    = "setsync_queue_operations_total"
	DeduplicatedCounter = "setsync_queue_deduplicated_total"
	DeadLetteredCounter = "setsync_queue_dead_lettered_total"
)

// Labels
const (
	OperationLabel = "operation"
	OutcomeLabel   = "outcome"
)

// Label Values
const (
	EnqueueOperation = "enqueue"
	ReceiveOperation = "receive"
	AckOperation     = "ack"
	FailOperation    = "fail"

	SuccessOutcome = "success"
	FailureOutcome = "failure"
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: OperationCounter,
				Help: "Counter for queue operations and their outcomes. Receives count messages handed out.",
			},
			OperationLabel,
			OutcomeLabel,
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: DeduplicatedCounter,
				Help: "Counter for enqueued bodies absorbed by content deduplication.",
			},
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: DeadLetteredCounter,
				Help: "Counter for messages moved to the dead-letter queue.",
			},
		),
	)
}

type Measures struct {
	fx.In
	Operations   *prometheus.CounterVec `name:"setsync_queue_operations_total"`
	Deduplicated prometheus.Counter     `name:"setsync_queue_deduplicated_total"`
	DeadLettered prometheus.Counter     `name:"setsync_queue_dead_lettered_total"`
}

// NewTestMeasures builds unregistered measures for use in tests.
func NewTestMeasures() *Measures {
	return &Measures{
		Operations:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "testQueueOperations"}, []string{OperationLabel, OutcomeLabel}),
		Deduplicated: prometheus.NewCounter(prometheus.CounterOpts{Name: "testQueueDeduplicated"}),
		DeadLettered: prometheus.NewCounter(prometheus.CounterOpts{Name: "testQueueDeadLettered"}),
	}
}

// Observe counts n operations. A nil receiver is a no-op.
func (m *Measures) Observe(operation string, err error, n int) {
	if m == nil || m.Operations == nil {
		return
	}
	outcome := SuccessOutcome
	if err != nil {
		outcome = FailureOutcome
		n = 1
	}
	m.Operations.With(prometheus.Labels{OperationLabel: operation, OutcomeLabel: outcome}).Add(float64(n))
}

// ObserveDeduplicated counts an absorbed duplicate. A nil receiver is a no-op.
func (m *Measures) ObserveDeduplicated() {
	if m == nil || m.Deduplicated == nil {
		return
	}
	m.Deduplicated.Inc()
}

// ObserveDeadLettered counts a dead-lettered message. A nil receiver is a no-op.
func (m *Measures) ObserveDeadLettered() {
	if m == nil || m.DeadLettered == nil {
		return
	}
	m.DeadLettered.Inc()
}
