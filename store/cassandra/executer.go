// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cassandra

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gocql/gocql"
	"github.com/hailocab/go-hostpool"
	"github.com/xmidt-org/setsync/model"
	"github.com/xmidt-org/setsync/store"
	"go.uber.org/zap"
)

type dbStore interface {
	store.S
	Close()
	Ping() error
}

var errServerClosed = errors.New("server is closed")

// Table layout. event_time holds Unix nanoseconds; a CQL timestamp would drop
// the sub-millisecond part and let an older event win the IF comparison.
//
//	CREATE TABLE set_records (
//	    set_arn text, set_status text, event_time bigint,
//	    terminal boolean, data blob,
//	    PRIMARY KEY (set_arn, set_status));
const (
	insertQuery = "INSERT INTO set_records (set_arn, set_status, event_time, terminal, data) VALUES (?,?,?,?,?) IF NOT EXISTS"
	updateQuery = "UPDATE set_records SET event_time = ?, terminal = ?, data = ? WHERE set_arn = ? AND set_status = ? IF event_time <= ?"
	deleteQuery = "DELETE FROM set_records WHERE set_arn = ? AND set_status = ?"
	listQuery   = "SELECT set_status, event_time, terminal, data FROM set_records WHERE set_arn = ?"
)

// maxPutAttempts bounds the insert/update dance when a concurrent delete removes the
// row between the two lightweight transactions.
const maxPutAttempts = 3

type cassandraExecutor struct {
	session *gocql.Session
	logger  *zap.Logger
}

func connect(clusterConfig *gocql.ClusterConfig, logger *zap.Logger) (dbStore, error) {
	clusterConfig.PoolConfig.HostSelectionPolicy = gocql.HostPoolHostPolicy(hostpool.New(nil))
	session, err := clusterConfig.CreateSession()
	if err != nil {
		return nil, err
	}

	return &cassandraExecutor{session: session, logger: logger}, nil
}

func (s *cassandraExecutor) Put(ctx context.Context, record model.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return store.InternalError{Reason: err}
	}
	eventTime := toEventTime(record.EventTime)

	for attempt := 0; attempt < maxPutAttempts; attempt++ {
		existing := map[string]interface{}{}
		applied, err := s.session.Query(insertQuery,
			record.ResourceID, string(record.Status), eventTime, record.Terminal, data).
			WithContext(ctx).MapScanCAS(existing)
		if err != nil {
			return handleQueryError(err)
		}
		if applied {
			return nil
		}

		existing = map[string]interface{}{}
		applied, err = s.session.Query(updateQuery,
			eventTime, record.Terminal, data, record.ResourceID, string(record.Status), eventTime).
			WithContext(ctx).MapScanCAS(existing)
		if err != nil {
			return handleQueryError(err)
		}
		if applied {
			return nil
		}
		if rowExists(existing) {
			return store.ErrStaleWrite
		}
		// the row vanished between the two statements; start over
	}
	return store.InternalError{Reason: "row kept changing during put", Retryable: true}
}

func (s *cassandraExecutor) Delete(ctx context.Context, key model.Key) error {
	err := s.session.Query(deleteQuery, key.ResourceID, string(key.Status)).WithContext(ctx).Exec()
	if err != nil {
		return handleQueryError(err)
	}
	return nil
}

func (s *cassandraExecutor) List(ctx context.Context, resourceID string) ([]model.Record, error) {
	var (
		records   []model.Record
		status    string
		eventTime int64
		terminal  bool
		data      []byte
	)
	iter := s.session.Query(listQuery, resourceID).WithContext(ctx).Iter()
	for iter.Scan(&status, &eventTime, &terminal, &data) {
		var record model.Record
		if err := json.Unmarshal(data, &record); err != nil {
			s.logger.Error("failed to unmarshal row", zap.String("resourceID", resourceID),
				zap.String("status", status), zap.Error(err))
			continue
		}
		record.ResourceID = resourceID
		record.Status = model.Status(status)
		record.EventTime = fromEventTime(eventTime)
		record.Terminal = terminal
		records = append(records, record)
	}
	if err := iter.Close(); err != nil {
		return nil, handleQueryError(err)
	}
	return records, nil
}

func toEventTime(t time.Time) int64 {
	return t.UnixNano()
}

func fromEventTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// rowExists reports whether a failed conditional update saw a live row.
func rowExists(existing map[string]interface{}) bool {
	_, ok := existing["event_time"].(int64)
	return ok
}

func (s *cassandraExecutor) Close() {
	s.session.Close()
}

func (s *cassandraExecutor) Ping() error {
	if s.session.Closed() {
		return errServerClosed
	}
	return nil
}

func handleQueryError(err error) error {
	var (
		writeTimeout *gocql.RequestErrWriteTimeout
		readTimeout  *gocql.RequestErrReadTimeout
		unavailable  *gocql.RequestErrUnavailable
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, gocql.ErrTimeoutNoResponse),
		errors.Is(err, gocql.ErrNoConnections),
		errors.Is(err, gocql.ErrConnectionClosed),
		errors.As(err, &writeTimeout),
		errors.As(err, &readTimeout),
		errors.As(err, &unavailable):
		return store.InternalError{Reason: err, Retryable: true}
	}
	return store.InternalError{Reason: err}
}
