// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/setsync/model"
	"go.uber.org/zap"
)

// request query keys
const (
	resourceIDQueryKey      = "resourceId"
	includeTerminalQueryKey = "includeTerminal"
)

// XmidtErrorHeaderKey carries the error message on failed responses.
const XmidtErrorHeaderKey = "X-Midt-Error"

// ErrCasting indicates there was a middleware wiring mistake with the go-kit style
// encoders.
var ErrCasting = errors.New("casting error due to middleware wiring mistake")

var errResourceIDMissing = BadRequestErr{Message: "resourceId query parameter missing"}

type listRecordsRequest struct {
	resourceID      string
	includeTerminal bool
}

func decodeListRecordsRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	q := r.URL.Query()
	resourceID := q.Get(resourceIDQueryKey)
	if resourceID == "" {
		return nil, errResourceIDMissing
	}
	includeTerminal := true
	if v := q.Get(includeTerminalQueryKey); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, BadRequestErr{Message: "includeTerminal must be a boolean"}
		}
		includeTerminal = b
	}
	return &listRecordsRequest{
		resourceID:      resourceID,
		includeTerminal: includeTerminal,
	}, nil
}

func encodeListRecordsResponse(ctx context.Context, rw http.ResponseWriter, response interface{}) error {
	records, ok := response.([]model.Record)
	if !ok {
		return ErrCasting
	}
	if records == nil {
		records = []model.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	rw.Header().Add("Content-Type", "application/json")
	_, err = rw.Write(data)
	return err
}

// EncodeError writes err as an HTTP response, honoring any status code or headers
// the error carries.
func EncodeError(ctx context.Context, err error, w http.ResponseWriter) {
	code := http.StatusInternalServerError
	var coder kithttp.StatusCoder
	if errors.As(err, &coder) {
		code = coder.StatusCode()
	}

	msg := err.Error()
	var sanitized SanitizedError
	if errors.As(err, &sanitized) && sanitized.ErrHTTP != nil {
		sallust.Get(ctx).Error("record store request failed", zap.Error(sanitized.Err))
		msg = sanitized.ErrHTTP.Error()
	}

	w.Header().Set(XmidtErrorHeaderKey, msg)
	var headerer kithttp.Headerer
	if errors.As(err, &headerer) {
		for k, values := range headerer.Headers() {
			for _, v := range values {
				w.Header().Add(k, v)
			}
		}
	}
	w.WriteHeader(code)
}
