// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/setsync/model"
	"github.com/xmidt-org/setsync/store"
	"go.uber.org/zap"
)

var (
	ErrAddressEmpty       = errors.New("setsync address is required")
	ErrResourceIDEmpty    = errors.New("resource ID is required")
	ErrBadRequest         = errors.New("setsync rejected the request as invalid")
	ErrServiceUnavailable = errors.New("setsync is temporarily unavailable")
)

var (
	errNonSuccessResponse = errors.New("setsync responded with a non-success status code")
	errNewRequestFailure  = errors.New("failed creating an HTTP request")
	errDoRequestFailure   = errors.New("http client failed while sending request")
	errReadingBodyFailure = errors.New("failed while reading http response body")
	errJSONUnmarshal      = errors.New("failed unmarshaling JSON response payload")
	errJSONMarshal        = errors.New("failed marshaling event as JSON payload")
)

const (
	eventsAPIPath    = "/api/v1/events"
	recordsAPIPath   = "/api/v1/records"
	errWrappedFmt    = "%w: %s"
	errStatusCodeFmt = "%w: received status %v"
	errorHeaderKey   = "errorHeader"
)

// Config contains config data for the client that will be used to make requests to
// a setsync server.
type Config struct {
	// Address is the setsync URL (i.e. https://example-setsync.io:6600)
	Address string

	// HTTPClient refers to the client that will be used to send requests.
	// (Optional) Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Authorization is sent verbatim in the Authorization header of every request.
	// (Optional) If not provided, no auth header is added.
	Authorization string

	// Logger to be used by the client.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger
}

// Client submits status change events and reads back the recorded rows.
type Client struct {
	client        *http.Client
	authorization string
	baseURL       string
	logger        *zap.Logger
	getLogger     func(context.Context) *zap.Logger
}

// Accepted is the queue's answer to a submitted event.
type Accepted struct {
	MessageID string `json:"messageId"`
	GroupKey  string `json:"groupKey"`
}

type response struct {
	Body        []byte
	ErrorHeader string
	Code        int
}

// New creates a new Client. getLogger extracts a request scoped logger from the
// context and defaults to sallust.Get.
func New(config Config, getLogger func(context.Context) *zap.Logger) (*Client, error) {
	err := validateConfig(&config)
	if err != nil {
		return nil, err
	}
	if getLogger == nil {
		getLogger = sallust.Get
	}

	return &Client{
		client:        config.HTTPClient,
		authorization: config.Authorization,
		logger:        config.Logger,
		baseURL:       config.Address,
		getLogger:     getLogger,
	}, nil
}

// PushEvent submits a status change event for ordered processing.
func (c *Client) PushEvent(ctx context.Context, e model.Envelope) (Accepted, error) {
	data, err := e.Encode()
	if err != nil {
		return Accepted{}, fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
	}

	resp, err := c.sendRequest(ctx, http.MethodPost, c.baseURL+eventsAPIPath, bytes.NewReader(data))
	if err != nil {
		return Accepted{}, err
	}

	if resp.Code != http.StatusAccepted {
		c.loggerFrom(ctx).Error("setsync responded with a non-successful status code for a PushEvent request",
			zap.Int("code", resp.Code), zap.String(errorHeaderKey, resp.ErrorHeader))
		return Accepted{}, fmt.Errorf(errStatusCodeFmt, translateNonSuccessStatusCode(resp.Code), resp.Code)
	}

	var a Accepted
	err = json.Unmarshal(resp.Body, &a)
	if err != nil {
		return Accepted{}, fmt.Errorf("PushEvent: %w: %s", errJSONUnmarshal, err.Error())
	}
	return a, nil
}

// ListRecords fetches the rows recorded for a resource, ordered by event time.
func (c *Client) ListRecords(ctx context.Context, resourceID string, includeTerminal bool) ([]model.Record, error) {
	if resourceID == "" {
		return nil, ErrResourceIDEmpty
	}

	q := url.Values{}
	q.Set("resourceId", resourceID)
	q.Set("includeTerminal", strconv.FormatBool(includeTerminal))
	resp, err := c.sendRequest(ctx, http.MethodGet, c.baseURL+recordsAPIPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	if resp.Code != http.StatusOK {
		c.loggerFrom(ctx).Error("setsync responded with non-200 response for ListRecords request",
			zap.Int("code", resp.Code), zap.String(errorHeaderKey, resp.ErrorHeader))
		return nil, fmt.Errorf(errStatusCodeFmt, translateNonSuccessStatusCode(resp.Code), resp.Code)
	}

	var records []model.Record
	err = json.Unmarshal(resp.Body, &records)
	if err != nil {
		return nil, fmt.Errorf("ListRecords: %w: %s", errJSONUnmarshal, err.Error())
	}
	return records, nil
}

func (c *Client) loggerFrom(ctx context.Context) *zap.Logger {
	if l := c.getLogger(ctx); l != nil {
		return l
	}
	return c.logger
}

func (c *Client) sendRequest(ctx context.Context, method, url string, body io.Reader) (response, error) {
	r, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if len(c.authorization) > 0 {
		r.Header.Set("Authorization", c.authorization)
	}
	resp, err := c.client.Do(r)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, errDoRequestFailure, err.Error())
	}
	defer resp.Body.Close()
	var sqResp = response{
		Code:        resp.StatusCode,
		ErrorHeader: resp.Header.Get(store.XmidtErrorHeaderKey),
	}
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return sqResp, fmt.Errorf(errWrappedFmt, errReadingBodyFailure, err.Error())
	}
	sqResp.Body = bodyBytes
	return sqResp, nil
}

// translateNonSuccessStatusCode returns as specific error
// for known setsync status codes.
func translateNonSuccessStatusCode(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusServiceUnavailable:
		return ErrServiceUnavailable
	default:
		return errNonSuccessResponse
	}
}

func validateConfig(config *Config) error {
	if config.Address == "" {
		return ErrAddressEmpty
	}

	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	return nil
}
