// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/setsync/store"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Generic Metrics
const (
	QueryDurationSeconds  = "db_query_duration_seconds"
	QuerySuccessCounter   = "db_query_success_count"
	QueryFailureCounter   = "db_query_failure_count"
	RecordsWrittenCounter = "db_written_records_count"
	RecordsReadCounter    = "db_read_records_count"
	RecordsDeletedCounter = "db_deleted_records_count"
	StaleWritesCounter    = "db_stale_writes_count"
)

// DynamoDB metrics
const (
	CapacityUnitConsumedCounter  = "capacity_unit_consumed"
	ReadCapacityConsumedCounter  = "read_capacity_unit_consumed"
	WriteCapacityConsumedCounter = "write_capacity_unit_consumed"
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.HistogramVec(
			prometheus.HistogramOpts{
				Name:    QueryDurationSeconds,
				Help:    "A histogram of latencies for record store operations.",
				Buckets: []float64{0.0625, 0.125, .25, .5, 1, 5, 10, 20, 40, 80, 160},
			},
			store.TypeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: QuerySuccessCounter,
				Help: "The total number of successful record store operations",
			},
			store.TypeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: QueryFailureCounter,
				Help: "The total number of failed record store operations",
			},
			store.TypeLabel,
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: RecordsWrittenCounter,
				Help: "The total number of rows written",
			},
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: RecordsReadCounter,
				Help: "The total number of rows read",
			},
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: RecordsDeletedCounter,
				Help: "The total number of rows deleted",
			},
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: StaleWritesCounter,
				Help: "The total number of writes rejected because the stored row was newer",
			},
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: CapacityUnitConsumedCounter,
				Help: "The number of capacity units consumed by the operation.",
			},
			store.TypeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: ReadCapacityConsumedCounter,
				Help: "The number of read capacity units consumed by the operation.",
			},
			store.TypeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: WriteCapacityConsumedCounter,
				Help: "The number of write capacity units consumed by the operation.",
			},
			store.TypeLabel,
		),
	)
}

type Measures struct {
	fx.In
	QueryDuration     *prometheus.HistogramVec `name:"db_query_duration_seconds"`
	QuerySuccessCount *prometheus.CounterVec   `name:"db_query_success_count"`
	QueryFailureCount *prometheus.CounterVec   `name:"db_query_failure_count"`
	RecordsWritten    prometheus.Counter       `name:"db_written_records_count"`
	RecordsRead       prometheus.Counter       `name:"db_read_records_count"`
	RecordsDeleted    prometheus.Counter       `name:"db_deleted_records_count"`
	StaleWrites       prometheus.Counter       `name:"db_stale_writes_count"`

	// DynamoDB Metrics
	CapacityUnitConsumedCount      *prometheus.CounterVec `name:"capacity_unit_consumed"`
	ReadCapacityUnitConsumedCount  *prometheus.CounterVec `name:"read_capacity_unit_consumed"`
	WriteCapacityUnitConsumedCount *prometheus.CounterVec `name:"write_capacity_unit_consumed"`
}

// NewTestMeasures builds unregistered measures for use in tests.
func NewTestMeasures() Measures {
	return Measures{
		QueryDuration:                  prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "testQueryDuration"}, []string{store.TypeLabel}),
		QuerySuccessCount:              prometheus.NewCounterVec(prometheus.CounterOpts{Name: "testQuerySuccessCount"}, []string{store.TypeLabel}),
		QueryFailureCount:              prometheus.NewCounterVec(prometheus.CounterOpts{Name: "testQueryFailureCount"}, []string{store.TypeLabel}),
		RecordsWritten:                 prometheus.NewCounter(prometheus.CounterOpts{Name: "testRecordsWritten"}),
		RecordsRead:                    prometheus.NewCounter(prometheus.CounterOpts{Name: "testRecordsRead"}),
		RecordsDeleted:                 prometheus.NewCounter(prometheus.CounterOpts{Name: "testRecordsDeleted"}),
		StaleWrites:                    prometheus.NewCounter(prometheus.CounterOpts{Name: "testStaleWrites"}),
		CapacityUnitConsumedCount:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "testCapacityUnitConsumed"}, []string{store.TypeLabel}),
		ReadCapacityUnitConsumedCount:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "testReadCapacityUnitConsumed"}, []string{store.TypeLabel}),
		WriteCapacityUnitConsumedCount: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "testWriteCapacityUnitConsumed"}, []string{store.TypeLabel}),
	}
}
