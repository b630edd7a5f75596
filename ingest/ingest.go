// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-kit/kit/endpoint"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/xmidt-org/httpaux/erraux"
	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/sallust/sallusthttp"
	"github.com/xmidt-org/setsync/model"
	"github.com/xmidt-org/setsync/queue"
	"go.uber.org/zap"
)

const (
	// DefaultSource is the event bus source of read set events.
	DefaultSource = "aws.omics"

	// DefaultDetailType is the event bus detail type of read set events.
	DefaultDetailType = "Read Set Status Change"

	// AnyValue disables an allow-list.
	AnyValue = "*"

	// defaultMaxBodySize matches the largest message the hosted queue accepts.
	defaultMaxBodySize = 256 * 1024
)

// XmidtErrorHeaderKey carries the error message on failed responses.
const XmidtErrorHeaderKey = "X-Midt-Error"

var (
	errBodyTooLarge = badRequest("event body too large")

	ErrQueueUnavailable = &erraux.Error{
		Err:  errors.New("delivery queue unavailable"),
		Code: http.StatusServiceUnavailable,
	}
)

type Config struct {
	// Sources allowed into the queue. (Optional). Defaults to aws.omics; "*" allows any.
	Sources []string

	// DetailTypes allowed into the queue. (Optional). Defaults to
	// "Read Set Status Change"; "*" allows any.
	DetailTypes []string

	// MaxBodySize in bytes. (Optional). Defaults to 256KiB.
	MaxBodySize int64
}

func validateConfig(config *Config) {
	if len(config.Sources) == 0 {
		config.Sources = []string{DefaultSource}
	}
	if len(config.DetailTypes) == 0 {
		config.DetailTypes = []string{DefaultDetailType}
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = defaultMaxBodySize
	}
}

type Handler http.Handler

type eventRequest struct {
	envelope     model.Envelope
	notification model.Notification
}

type eventResponse struct {
	MessageID string `json:"messageId"`
	GroupKey  string `json:"groupKey"`
}

type badRequestErr struct {
	message string
}

func badRequest(format string, args ...interface{}) badRequestErr {
	return badRequestErr{message: fmt.Sprintf(format, args...)}
}

func (e badRequestErr) Error() string {
	return e.message
}

func (e badRequestErr) StatusCode() int {
	return http.StatusBadRequest
}

// New returns the handler that validates structured events and enqueues them.
// Each request context carries logger, or sallust's default when logger is nil.
func New(config Config, q queue.Q, grouping queue.Grouping, logger *zap.Logger) (Handler, error) {
	validateConfig(&config)
	if err := grouping.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = sallust.Default()
	}
	return kithttp.NewServer(
		newEnqueueEndpoint(q, grouping),
		newDecodeEventRequest(config),
		encodeEventResponse,
		kithttp.ServerBefore(sallusthttp.SetLogger(logger, sallusthttp.RequestInfo)),
		kithttp.ServerErrorEncoder(encodeError),
	), nil
}

func newEnqueueEndpoint(q queue.Q, grouping queue.Grouping) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		r := request.(*eventRequest)
		groupKey, err := grouping.GroupKey(r.notification)
		if err != nil {
			return nil, badRequest("%v", err)
		}
		body, err := r.envelope.Encode()
		if err != nil {
			return nil, badRequest("%v", err)
		}
		id, err := q.Enqueue(ctx, body, groupKey)
		if err != nil {
			sallust.Get(ctx).Error("failed to enqueue event", zap.String("resourceID", r.notification.ResourceID), zap.Error(err))
			return nil, ErrQueueUnavailable
		}
		sallust.Get(ctx).Debug("event enqueued", zap.String("messageID", id), zap.String("groupKey", groupKey),
			zap.String("resourceID", r.notification.ResourceID), zap.String("status", string(r.notification.Status)))
		return &eventResponse{MessageID: id, GroupKey: groupKey}, nil
	}
}

func newDecodeEventRequest(config Config) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (interface{}, error) {
		data, err := io.ReadAll(io.LimitReader(r.Body, config.MaxBodySize+1))
		if err != nil {
			return nil, badRequest("failed to read body: %v", err)
		}
		if int64(len(data)) > config.MaxBodySize {
			return nil, errBodyTooLarge
		}

		envelope, err := model.DecodeEnvelope(data)
		if err != nil {
			return nil, badRequest("%v", err)
		}
		if !allowed(config.Sources, envelope.Source) {
			return nil, badRequest("source %q not accepted", envelope.Source)
		}
		if !allowed(config.DetailTypes, envelope.DetailType) {
			return nil, badRequest("detail type %q not accepted", envelope.DetailType)
		}
		n, err := envelope.Notification()
		if err != nil {
			return nil, badRequest("%v", err)
		}
		return &eventRequest{envelope: envelope, notification: n}, nil
	}
}

func allowed(list []string, value string) bool {
	for _, v := range list {
		if v == AnyValue || v == value {
			return true
		}
	}
	return false
}

func encodeEventResponse(_ context.Context, rw http.ResponseWriter, response interface{}) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusAccepted)
	_, err = rw.Write(data)
	return err
}

func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	code := http.StatusInternalServerError
	var coder kithttp.StatusCoder
	if errors.As(err, &coder) {
		code = coder.StatusCode()
	}
	w.Header().Set(XmidtErrorHeaderKey, err.Error())
	w.WriteHeader(code)
}
