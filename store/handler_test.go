// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/setsync/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testResourceID = "arn:aws:omics:us-east-1:123456789012:sequenceStore/1/readSet/2"

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Put(_ context.Context, record model.Record) error {
	return m.Called(record).Error(0)
}

func (m *mockStore) Delete(_ context.Context, key model.Key) error {
	return m.Called(key).Error(0)
}

func (m *mockStore) List(_ context.Context, resourceID string) ([]model.Record, error) {
	args := m.Called(resourceID)
	return args.Get(0).([]model.Record), args.Error(1)
}

func testRecords() []model.Record {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []model.Record{
		{Key: model.Key{ResourceID: testResourceID, Status: model.StatusDeleted}, EventTime: base.Add(2 * time.Minute), Terminal: true},
		{Key: model.Key{ResourceID: testResourceID, Status: model.StatusActive}, EventTime: base.Add(time.Minute)},
		{Key: model.Key{ResourceID: testResourceID, Status: model.StatusActivating}, EventTime: base},
	}
}

func TestListRecordsHandler(t *testing.T) {
	tcs := []struct {
		Description      string
		Query            url.Values
		ListErr          error
		ExpectedCode     int
		ExpectedStatuses []model.Status
		ExpectedHeader   string
	}{
		{
			Description:      "All rows ordered by event time",
			Query:            url.Values{"resourceId": {testResourceID}},
			ExpectedCode:     http.StatusOK,
			ExpectedStatuses: []model.Status{model.StatusActivating, model.StatusActive, model.StatusDeleted},
		},
		{
			Description:      "Terminal rows hidden",
			Query:            url.Values{"resourceId": {testResourceID}, "includeTerminal": {"false"}},
			ExpectedCode:     http.StatusOK,
			ExpectedStatuses: []model.Status{model.StatusActivating, model.StatusActive},
		},
		{
			Description:    "Missing resource",
			Query:          url.Values{},
			ExpectedCode:   http.StatusBadRequest,
			ExpectedHeader: errResourceIDMissing.Message,
		},
		{
			Description:      "Numeric boolean",
			Query:            url.Values{"resourceId": {testResourceID}, "includeTerminal": {"0"}},
			ExpectedCode:     http.StatusOK,
			ExpectedStatuses: []model.Status{model.StatusActivating, model.StatusActive},
		},
		{
			Description:  "Bad boolean",
			Query:        url.Values{"resourceId": {testResourceID}, "includeTerminal": {"maybe"}},
			ExpectedCode: http.StatusBadRequest,
		},
		{
			Description:    "Retryable backend failure",
			Query:          url.Values{"resourceId": {testResourceID}},
			ListErr:        InternalError{Reason: errors.New("throttled"), Retryable: true},
			ExpectedCode:   http.StatusServiceUnavailable,
			ExpectedHeader: ErrHTTPUnavailable.Error(),
		},
		{
			Description:    "Backend failure",
			Query:          url.Values{"resourceId": {testResourceID}},
			ListErr:        InternalError{Reason: errors.New("table missing")},
			ExpectedCode:   http.StatusInternalServerError,
			ExpectedHeader: ErrHTTPOpFailed.Error(),
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			m := new(mockStore)
			var records []model.Record
			if tc.ListErr == nil {
				records = testRecords()
			}
			m.On("List", testResourceID).Return(records, tc.ListErr)

			h := newListRecordsHandler(m, nil)
			r := httptest.NewRequest(http.MethodGet, "/api/v1/records?"+tc.Query.Encode(), nil)
			rw := httptest.NewRecorder()
			h.ServeHTTP(rw, r)

			assert.Equal(tc.ExpectedCode, rw.Code)
			if tc.ExpectedHeader != "" {
				assert.Equal(tc.ExpectedHeader, rw.Header().Get(XmidtErrorHeaderKey))
			}
			if tc.ExpectedCode != http.StatusOK {
				return
			}

			var got []model.Record
			require.NoError(json.Unmarshal(rw.Body.Bytes(), &got))
			statuses := make([]model.Status, 0, len(got))
			for _, r := range got {
				statuses = append(statuses, r.Status)
			}
			assert.Equal(tc.ExpectedStatuses, statuses)
		})
	}
}

func TestSanitizeError(t *testing.T) {
	assert := assert.New(t)
	assert.Nil(SanitizeError(nil))

	inner := errors.New("secret table name")
	err := SanitizeError(inner)
	var sanitized SanitizedError
	assert.True(errors.As(err, &sanitized))
	assert.Equal(http.StatusInternalServerError, sanitized.StatusCode())
	assert.ErrorIs(err, inner)

	err = SanitizeError(context.DeadlineExceeded)
	assert.True(errors.As(err, &sanitized))
	assert.Equal(http.StatusServiceUnavailable, sanitized.StatusCode())
}

func TestNewer(t *testing.T) {
	now := time.Now()
	assert.True(t, Newer(model.Record{EventTime: now}, model.Record{EventTime: now.Add(-time.Second)}))
	assert.False(t, Newer(model.Record{EventTime: now}, model.Record{EventTime: now}))
}

func TestListRecordsHandlerLogsWithRequestLogger(t *testing.T) {
	assert := assert.New(t)
	core, logs := observer.New(zapcore.ErrorLevel)
	m := new(mockStore)
	m.On("List", testResourceID).Return([]model.Record(nil), InternalError{Reason: errors.New("table missing")})

	h := newListRecordsHandler(m, zap.New(core))
	q := url.Values{"resourceId": {testResourceID}}
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/api/v1/records?"+q.Encode(), nil))

	assert.Equal(http.StatusInternalServerError, rw.Code)
	entries := logs.FilterMessage("record store request failed").All()
	require.Len(t, entries, 1)
	assert.Contains(entries[0].ContextMap()["error"], "table missing")
}
