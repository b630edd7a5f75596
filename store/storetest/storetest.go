// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/setsync/model"
	"github.com/xmidt-org/setsync/store"
)

const GenericResourceID = "arn:aws:omics:us-east-1:123456789012:sequenceStore/world/readSet/earth"

var genericTime = time.Date(1967, 10, 18, 0, 0, 0, 0, time.UTC)

// GenericRecord is a fully populated row used by StoreTest.
var GenericRecord = model.Record{
	Key: model.Key{
		ResourceID: GenericResourceID,
		Status:     model.StatusActive,
	},
	EventTime: genericTime,
	Metadata: model.Metadata{
		SetID:   "earth",
		SetType: "FASTQ",
		Name:    "What a Wonderful World",
		Tags:    map[string]string{"artist": "Louis Armstrong"},
		Files: []model.File{
			{Path: "s3://bucket/earth/source1", FileType: "source1", ContentLength: 1967, PartSize: 100, TotalParts: 20},
		},
		Store: &model.StoreInfo{ID: "world", Type: "sequence_store"},
	},
}

// StoreTest exercises the behavior every store.S implementation must share.
func StoreTest(s store.S, t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	t.Log("Basic Test")
	require.NoError(s.Put(ctx, GenericRecord))
	records, err := s.List(ctx, GenericResourceID)
	require.NoError(err)
	require.Len(records, 1)
	assert.Equal(GenericRecord.Key, records[0].Key)
	assert.Equal(GenericRecord.Metadata, records[0].Metadata)
	assert.True(GenericRecord.EventTime.Equal(records[0].EventTime))

	t.Log("Idempotent overwrite")
	require.NoError(s.Put(ctx, GenericRecord))
	records, err = s.List(ctx, GenericResourceID)
	require.NoError(err)
	assert.Len(records, 1)

	t.Log("Stale write")
	stale := GenericRecord
	stale.EventTime = genericTime.Add(-time.Hour)
	stale.Metadata = model.Metadata{Name: "stale"}
	assert.ErrorIs(s.Put(ctx, stale), store.ErrStaleWrite)
	records, err = s.List(ctx, GenericResourceID)
	require.NoError(err)
	require.Len(records, 1)
	assert.Equal(GenericRecord.Name, records[0].Name)

	t.Log("Delete")
	require.NoError(s.Delete(ctx, GenericRecord.Key))
	require.NoError(s.Delete(ctx, GenericRecord.Key))
	records, err = s.List(ctx, GenericResourceID)
	require.NoError(err)
	assert.Empty(records)
}
