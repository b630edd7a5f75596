// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package applier

import (
	"fmt"

	"github.com/xmidt-org/setsync/model"
)

// Action is the policy class of a status.
type Action string

const (
	// Upsert records the resource at (resource, status).
	Upsert Action = "upsert"

	// TerminalRemove purges the resource's rows.
	TerminalRemove Action = "terminal_remove"

	// Ignore leaves the store untouched.
	Ignore Action = "ignore"
)

// DefaultUpsertStatuses are the statuses worth a row.
var DefaultUpsertStatuses = []model.Status{
	model.StatusActivating,
	model.StatusActive,
	model.StatusArchived,
	model.StatusDeleting,
	model.StatusFailed,
	model.StatusUploadFailed,
	model.StatusProcessingUpload,
}

// DefaultTerminalStatuses end the store's interest in a resource.
var DefaultTerminalStatuses = []model.Status{
	model.StatusDeleted,
}

// Policy maps statuses onto actions and tunes how rows are kept.
type Policy struct {
	// UpsertStatuses defaults to DefaultUpsertStatuses.
	UpsertStatuses []model.Status

	// TerminalStatuses defaults to DefaultTerminalStatuses.
	TerminalStatuses []model.Status

	// PrunePrior removes the resource's older rows of other statuses whenever a new
	// status is recorded, and rejects an upsert older than a row of another status,
	// so a resource has a single live row.
	PrunePrior bool

	// OmitTerminalMarker skips writing the (resource, terminal status) row. Without
	// the marker there is no audit row and no fence against late stale upserts.
	OmitTerminalMarker bool
}

// Validate fills in defaults and rejects a status listed in both classes.
func (p *Policy) Validate() error {
	if len(p.UpsertStatuses) == 0 {
		p.UpsertStatuses = append([]model.Status(nil), DefaultUpsertStatuses...)
	}
	if len(p.TerminalStatuses) == 0 {
		p.TerminalStatuses = append([]model.Status(nil), DefaultTerminalStatuses...)
	}
	for _, u := range p.UpsertStatuses {
		for _, t := range p.TerminalStatuses {
			if u == t {
				return fmt.Errorf("status %s cannot be both upsert and terminal", u)
			}
		}
	}
	return nil
}

// Classify returns the action for status.
func (p Policy) Classify(status model.Status) Action {
	for _, s := range p.TerminalStatuses {
		if s == status {
			return TerminalRemove
		}
	}
	for _, s := range p.UpsertStatuses {
		if s == status {
			return Upsert
		}
	}
	return Ignore
}
