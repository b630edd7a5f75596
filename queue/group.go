// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"errors"
	"fmt"

	"github.com/xmidt-org/setsync/model"
)

// GroupKeyPolicy decides which notifications share an ordering lane.
type GroupKeyPolicy string

const (
	// PerResource orders notifications of the same resource only. Unrelated
	// resources are processed concurrently.
	PerResource GroupKeyPolicy = "resource"

	// FixedLane puts every notification in one lane, serializing all processing.
	FixedLane GroupKeyPolicy = "fixed"
)

// DefaultFixedGroupID is the lane name used by the fixed policy when none is configured.
const DefaultFixedGroupID = "healthomics-metadata-sync"

var ErrUnknownGroupKeyPolicy = errors.New("unknown group key policy")

// Grouping derives group keys from notifications.
type Grouping struct {
	// Policy defaults to PerResource.
	Policy GroupKeyPolicy

	// FixedGroupID names the single lane of the FixedLane policy.
	FixedGroupID string
}

// Validate fills in defaults and rejects unknown policies.
func (g *Grouping) Validate() error {
	if g.Policy == "" {
		g.Policy = PerResource
	}
	if g.FixedGroupID == "" {
		g.FixedGroupID = DefaultFixedGroupID
	}
	switch g.Policy {
	case PerResource, FixedLane:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownGroupKeyPolicy, g.Policy)
}

// GroupKey returns the ordering lane for n.
func (g Grouping) GroupKey(n model.Notification) (string, error) {
	switch g.Policy {
	case PerResource, "":
		if n.ResourceID == "" {
			return "", ErrEmptyGroupKey
		}
		return n.ResourceID, nil
	case FixedLane:
		if g.FixedGroupID == "" {
			return DefaultFixedGroupID, nil
		}
		return g.FixedGroupID, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGroupKeyPolicy, g.Policy)
}
