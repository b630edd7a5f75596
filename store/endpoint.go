// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"sort"

	"github.com/go-kit/kit/endpoint"
	"github.com/xmidt-org/setsync/model"
)

func newListRecordsEndpoint(s S) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		r := request.(*listRecordsRequest)
		records, err := s.List(ctx, r.resourceID)
		if err != nil {
			return nil, SanitizeError(err)
		}
		if !r.includeTerminal {
			records = filterTerminal(records)
		}
		sort.Slice(records, func(i, j int) bool {
			return records[i].EventTime.Before(records[j].EventTime)
		})
		return records, nil
	}
}

func filterTerminal(records []model.Record) []model.Record {
	filtered := make([]model.Record, 0, len(records))
	for _, r := range records {
		if !r.Terminal {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
