// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"time"
)

// Status is the lifecycle state of a read set as reported by the upstream service.
type Status string

// Known read set statuses.
const (
	StatusActivating       Status = "ACTIVATING"
	StatusActive           Status = "ACTIVE"
	StatusArchived         Status = "ARCHIVED"
	StatusDeleting         Status = "DELETING"
	StatusDeleted          Status = "DELETED"
	StatusFailed           Status = "FAILED"
	StatusProcessingUpload Status = "PROCESSING_UPLOAD"
	StatusUploadFailed     Status = "UPLOAD_FAILED"
)

func (s Status) String() string {
	return string(s)
}

// Key defines the field mapping to retrieve a record from storage.
type Key struct {
	// ResourceID is the read set ARN. All rows of a resource share it.
	ResourceID string `json:"set_arn" dynamodbav:"set_arn"`

	// Status is the lifecycle state the row was recorded for.
	Status Status `json:"set_status" dynamodbav:"set_status"`
}

// Notification is a single lifecycle transition of a resource.
type Notification struct {
	ResourceID      string                 `json:"resourceId" validate:"required"`
	Status          Status                 `json:"status" validate:"required"`
	EventTime       time.Time              `json:"eventTime"`
	ReadSetID       string                 `json:"readSetId,omitempty"`
	SequenceStoreID string                 `json:"sequenceStoreId,omitempty"`
	Detail          map[string]interface{} `json:"detail,omitempty"`
}

// Key returns the store key this notification maps onto.
func (n Notification) Key() Key {
	return Key{ResourceID: n.ResourceID, Status: n.Status}
}

// File describes one file belonging to a read set.
type File struct {
	Path          string `json:"file_path" dynamodbav:"file_path"`
	ETag          string `json:"etag" dynamodbav:"etag"`
	FileType      string `json:"file_type" dynamodbav:"file_type"`
	ContentLength int64  `json:"content_length" dynamodbav:"content_length"`
	PartSize      int64  `json:"part_size" dynamodbav:"part_size"`
	TotalParts    int32  `json:"total_parts" dynamodbav:"total_parts"`
}

// StoreInfo describes the sequence store that holds a read set.
type StoreInfo struct {
	ARN            string `json:"store_arn" dynamodbav:"store_arn"`
	ID             string `json:"store_id" dynamodbav:"store_id"`
	Type           string `json:"store_type" dynamodbav:"store_type"`
	Name           string `json:"store_name" dynamodbav:"store_name"`
	AccessPointARN string `json:"store_ap_arn" dynamodbav:"store_ap_arn"`
	URI            string `json:"store_uri" dynamodbav:"store_uri"`
}

// Metadata is the enriched view of a read set fetched from the upstream lookup.
type Metadata struct {
	SetID          string            `json:"set_id,omitempty" dynamodbav:"set_id,omitempty"`
	SetType        string            `json:"set_type,omitempty" dynamodbav:"set_type,omitempty"`
	Name           string            `json:"set_name,omitempty" dynamodbav:"set_name,omitempty"`
	Description    string            `json:"set_description,omitempty" dynamodbav:"set_description,omitempty"`
	ReferenceARN   string            `json:"set_reference_arn,omitempty" dynamodbav:"set_reference_arn,omitempty"`
	SampleID       string            `json:"set_sample_id,omitempty" dynamodbav:"set_sample_id,omitempty"`
	SubjectID      string            `json:"set_subject_id,omitempty" dynamodbav:"set_subject_id,omitempty"`
	UpstreamStatus string            `json:"set_upstream_status,omitempty" dynamodbav:"set_upstream_status,omitempty"`
	CreationTime   *time.Time        `json:"set_creation_time,omitempty" dynamodbav:"set_creation_time,omitempty"`
	Tags           map[string]string `json:"tags,omitempty" dynamodbav:"tags,omitempty"`
	Files          []File            `json:"files,omitempty" dynamodbav:"files,omitempty"`
	Store          *StoreInfo        `json:"store,omitempty" dynamodbav:"store,omitempty"`
}

// Record is the persisted row for a (resource, status) pair.
type Record struct {
	Key
	Metadata

	// EventTime is the transition time of the notification that produced the row.
	// Writes carrying an older EventTime than the stored row are rejected.
	EventTime time.Time `json:"event_time" dynamodbav:"event_time"`

	// Terminal marks the audit row left behind by a terminal status.
	Terminal bool `json:"terminal,omitempty" dynamodbav:"terminal,omitempty"`

	// Detail is the raw notification payload.
	Detail map[string]interface{} `json:"detail,omitempty" dynamodbav:"detail,omitempty"`
}

// NewRecord builds the row for a notification and its enriched metadata.
func NewRecord(n Notification, md Metadata) Record {
	return Record{
		Key:       n.Key(),
		Metadata:  md,
		EventTime: n.EventTime.UTC(),
		Detail:    n.Detail,
	}
}
