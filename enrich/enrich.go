// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/xmidt-org/setsync/model"
)

// Lookup failure kinds. Match them with errors.Is.
var (
	// ErrLookupNotFound means the resource no longer exists upstream. Expected for
	// terminal statuses.
	ErrLookupNotFound = errors.New("resource not found")

	// ErrLookupTransient means the same lookup may succeed later.
	ErrLookupTransient = errors.New("transient lookup failure")

	// ErrLookupPermanent means retrying the lookup will not help.
	ErrLookupPermanent = errors.New("permanent lookup failure")
)

// Enricher fetches the current metadata of the resource a notification refers to.
type Enricher interface {
	Enrich(ctx context.Context, n model.Notification) (model.Metadata, error)
}

// Func is an Enricher made from a function.
type Func func(context.Context, model.Notification) (model.Metadata, error)

func (f Func) Enrich(ctx context.Context, n model.Notification) (model.Metadata, error) {
	return f(ctx, n)
}

// LookupError carries the kind of a failed lookup along with its cause.
type LookupError struct {
	// Kind is one of ErrLookupNotFound, ErrLookupTransient or ErrLookupPermanent.
	Kind       error
	ResourceID string
	Err        error
}

func (e *LookupError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("lookup %s: %v", e.ResourceID, e.Kind)
	}
	return fmt.Sprintf("lookup %s: %v: %v", e.ResourceID, e.Kind, e.Err)
}

func (e *LookupError) Is(target error) bool {
	return target == e.Kind
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

func NotFound(resourceID string, err error) error {
	return &LookupError{Kind: ErrLookupNotFound, ResourceID: resourceID, Err: err}
}

func Transient(resourceID string, err error) error {
	return &LookupError{Kind: ErrLookupTransient, ResourceID: resourceID, Err: err}
}

func Permanent(resourceID string, err error) error {
	return &LookupError{Kind: ErrLookupPermanent, ResourceID: resourceID, Err: err}
}
