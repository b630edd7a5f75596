// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/xmidt-org/httpaux/erraux"
)

var (
	// ErrStaleWrite is returned by Put when the stored row is newer than the write.
	ErrStaleWrite = errors.New("stored record is newer than the write")

	ErrHTTPOpFailed = &erraux.Error{
		Err:  errors.New("record store operation failed"),
		Code: http.StatusInternalServerError,
	}
	ErrHTTPUnavailable = &erraux.Error{
		Err:  errors.New("record store temporarily unavailable"),
		Code: http.StatusServiceUnavailable,
	}
)

type BadRequestErr struct {
	Message string
}

func (bre BadRequestErr) Error() string {
	return bre.Message
}

func (bre BadRequestErr) StatusCode() int {
	return http.StatusBadRequest
}

// InternalError is a backend failure. Retryable failures (throttling, timeouts,
// transient I/O) are expected to succeed if the same operation is attempted again.
type InternalError struct {
	Reason    interface{}
	Retryable bool
}

func (ie InternalError) Error() string {
	return fmt.Sprintf("Request Failed: %v", ie.Reason)
}

func (ie InternalError) Unwrap() error {
	if err, ok := ie.Reason.(error); ok {
		return err
	}
	return nil
}

func (ie InternalError) StatusCode() int {
	if ie.Retryable {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// SanitizedError keeps the backend error for logging while exposing only ErrHTTP
// to API clients.
type SanitizedError struct {
	Err     error
	ErrHTTP error
}

func (s SanitizedError) Error() string {
	return s.Err.Error()
}

func (s SanitizedError) Unwrap() error {
	return s.Err
}

func (s SanitizedError) StatusCode() int {
	var coder interface{ StatusCode() int }
	if errors.As(s.ErrHTTP, &coder) {
		return coder.StatusCode()
	}
	return http.StatusInternalServerError
}

// SanitizeError wraps err so that only a generic message reaches API clients.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	if IsRetryable(err) {
		return SanitizedError{Err: err, ErrHTTP: ErrHTTPUnavailable}
	}
	return SanitizedError{Err: err, ErrHTTP: ErrHTTPOpFailed}
}

// IsRetryable reports whether a failed store call may succeed on a later attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ie InternalError
	if errors.As(err, &ie) {
		return ie.Retryable
	}
	return false
}
