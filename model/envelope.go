// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
)

// Detail keys of a read set status change event.
const (
	DetailARNKey             = "arn"
	DetailIDKey              = "id"
	DetailStatusKey          = "status"
	DetailSequenceStoreIDKey = "sequenceStoreId"
)

var (
	ErrMissingDetail  = errors.New("envelope has no detail")
	ErrInvalidPayload = errors.New("invalid notification payload")
)

var validate = validator.New()

// Envelope is the generic structured event that carries a notification through the
// delivery queue.
type Envelope struct {
	Source     string          `json:"source"`
	DetailType string          `json:"detailType"`
	Detail     json.RawMessage `json:"detail"`
	Time       time.Time       `json:"time"`
}

type rawEnvelope struct {
	Source         string          `json:"source"`
	DetailType     string          `json:"detailType"`
	DetailTypeDash string          `json:"detail-type"`
	Detail         json.RawMessage `json:"detail"`
	Time           string          `json:"time"`
}

// UnmarshalJSON accepts both the event bus field name "detail-type" and the
// "detailType" name used in queue messages.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.Source = raw.Source
	e.DetailType = raw.DetailType
	if e.DetailType == "" {
		e.DetailType = raw.DetailTypeDash
	}
	e.Detail = raw.Detail
	e.Time = time.Time{}
	if raw.Time != "" {
		t, err := cast.ToTimeE(raw.Time)
		if err != nil {
			return fmt.Errorf("%w: time: %v", ErrInvalidPayload, err)
		}
		e.Time = t.UTC()
	}
	return nil
}

// Notification extracts and validates the status change carried by the envelope.
func (e Envelope) Notification() (Notification, error) {
	if len(e.Detail) == 0 || string(e.Detail) == "null" {
		return Notification{}, ErrMissingDetail
	}

	var detail map[string]interface{}
	if err := json.Unmarshal(e.Detail, &detail); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	n := Notification{
		ResourceID:      cast.ToString(detail[DetailARNKey]),
		Status:          Status(cast.ToString(detail[DetailStatusKey])),
		EventTime:       e.Time,
		ReadSetID:       cast.ToString(detail[DetailIDKey]),
		SequenceStoreID: cast.ToString(detail[DetailSequenceStoreIDKey]),
		Detail:          detail,
	}
	if n.ResourceID == "" {
		n.ResourceID = n.ReadSetID
	}

	if err := n.Validate(); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// Validate checks the fields every notification must carry.
func (n Notification) Validate() error {
	if err := validate.Struct(n); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// DecodeEnvelope parses a queue message body.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return e, nil
}

// Encode renders the canonical queue message body. Identical envelopes always encode
// to identical bytes, which is what content deduplication relies on.
func (e Envelope) Encode() ([]byte, error) {
	type canonical struct {
		Source     string          `json:"source"`
		DetailType string          `json:"detailType"`
		Detail     json.RawMessage `json:"detail"`
		Time       string          `json:"time,omitempty"`
	}
	c := canonical{
		Source:     e.Source,
		DetailType: e.DetailType,
		Detail:     e.Detail,
	}
	if !e.Time.IsZero() {
		c.Time = e.Time.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(c)
}
