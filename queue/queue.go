// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrEmptyBody     = errors.New("message body cannot be empty")
	ErrEmptyGroupKey = errors.New("message group key cannot be empty")

	// ErrUnknownHandle is returned when acking or failing a handle that is no longer
	// in flight, either because it was already settled or because its visibility
	// expired and the message was handed out again.
	ErrUnknownHandle = errors.New("receipt handle is not in flight")
)

// Message is a single delivery of an enqueued body.
type Message struct {
	// ID is stable across redeliveries of the same message.
	ID string

	// Handle identifies this particular delivery. It is what Ack and Fail take.
	Handle string

	GroupKey string
	Body     []byte

	// ReceiveCount is how many times the message has been handed out, this
	// delivery included.
	ReceiveCount int
}

// Q is an ordered, deduplicating, at-least-once delivery queue.
//
// Messages sharing a group key are delivered strictly in enqueue order, and the
// next message of a group is not handed out while the previous one is in flight.
// Distinct groups make progress independently.
type Q interface {
	// Enqueue accepts body under groupKey. A body byte-identical to one accepted
	// within the deduplication window is absorbed and the earlier message ID is
	// returned.
	Enqueue(ctx context.Context, body []byte, groupKey string) (string, error)

	// Receive hands out up to max visible messages, at most one per group.
	Receive(ctx context.Context, max int) ([]Message, error)

	// Ack removes a delivered message for good and unblocks its group.
	Ack(ctx context.Context, handle string) error

	// Fail returns a delivered message to the head of its group for redelivery.
	Fail(ctx context.Context, handle string) error
}

// DeduplicationID is the content hash used to collapse identical bodies.
func DeduplicationID(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ValidateEnqueue checks the arguments every implementation rejects.
func ValidateEnqueue(body []byte, groupKey string) error {
	if len(body) == 0 {
		return ErrEmptyBody
	}
	if groupKey == "" {
		return ErrEmptyGroupKey
	}
	return nil
}
