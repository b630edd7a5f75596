// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"github.com/xmidt-org/setsync/model"
)

const (
	// TypeLabel is for labeling metrics; if there is a single metric for
	// successful queries, the typeLabel and corresponding type can be used
	// when incrementing the metric.
	TypeLabel  = "type"
	InsertType = "insert"
	DeleteType = "delete"
	ReadType   = "read"
	PingType   = "ping"
)

// S is the record store. Every mutation touches a single key and is safe to repeat.
type S interface {
	// Put writes the record at its key. If the row already stored at that key carries
	// a later event time, the write is rejected with ErrStaleWrite.
	Put(ctx context.Context, record model.Record) error

	// Delete removes the row at key. Deleting a missing row is not an error.
	Delete(ctx context.Context, key model.Key) error

	// List returns every row recorded for a resource.
	List(ctx context.Context, resourceID string) ([]model.Record, error)
}

// Newer reports whether the stored row should win over an incoming write.
func Newer(stored, incoming model.Record) bool {
	return stored.EventTime.After(incoming.EventTime)
}
