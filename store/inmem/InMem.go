// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package inmem

import (
	"context"
	"sync"

	"github.com/xmidt-org/setsync/model"
	"github.com/xmidt-org/setsync/store"
)

type InMem struct {
	// data maps resource ID -> status -> row.
	data map[string]map[model.Status]model.Record
	lock sync.Mutex
}

func NewInMem() *InMem {
	return &InMem{
		data: map[string]map[model.Status]model.Record{},
	}
}

func (i *InMem) Put(_ context.Context, record model.Record) error {
	i.lock.Lock()
	defer i.lock.Unlock()
	rows := i.data[record.ResourceID]
	if rows == nil {
		rows = map[model.Status]model.Record{}
		i.data[record.ResourceID] = rows
	}
	if existing, ok := rows[record.Status]; ok && store.Newer(existing, record) {
		return store.ErrStaleWrite
	}
	rows[record.Status] = record
	return nil
}

func (i *InMem) Delete(_ context.Context, key model.Key) error {
	i.lock.Lock()
	defer i.lock.Unlock()
	rows := i.data[key.ResourceID]
	if rows == nil {
		return nil
	}
	delete(rows, key.Status)
	if len(rows) == 0 {
		delete(i.data, key.ResourceID)
	}
	return nil
}

func (i *InMem) List(_ context.Context, resourceID string) ([]model.Record, error) {
	i.lock.Lock()
	defer i.lock.Unlock()
	rows := i.data[resourceID]
	result := make([]model.Record, 0, len(rows))
	for _, r := range rows {
		result = append(result, r)
	}
	return result, nil
}
