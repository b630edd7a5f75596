// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package sqs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/setsync/queue"
)

const (
	testURL    = "https://sqs.us-east-1.amazonaws.com/123456789012/healthomics_set_queue.fifo"
	testDLQURL = "https://sqs.us-east-1.amazonaws.com/123456789012/healthomics_set_dlq.fifo"
)

type mockClient struct {
	mock.Mock
}

func (c *mockClient) SendMessage(_ context.Context, input *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := c.Called(input)
	return args.Get(0).(*sqs.SendMessageOutput), args.Error(1)
}

func (c *mockClient) ReceiveMessage(_ context.Context, input *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	args := c.Called(input)
	return args.Get(0).(*sqs.ReceiveMessageOutput), args.Error(1)
}

func (c *mockClient) DeleteMessage(_ context.Context, input *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	args := c.Called(input)
	return args.Get(0).(*sqs.DeleteMessageOutput), args.Error(1)
}

func (c *mockClient) ChangeMessageVisibility(_ context.Context, input *sqs.ChangeMessageVisibilityInput, _ ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	args := c.Called(input)
	return args.Get(0).(*sqs.ChangeMessageVisibilityOutput), args.Error(1)
}

func (c *mockClient) GetQueueUrl(_ context.Context, input *sqs.GetQueueUrlInput, _ ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	args := c.Called(input)
	return args.Get(0).(*sqs.GetQueueUrlOutput), args.Error(1)
}

func TestNewQueueResolvesURL(t *testing.T) {
	tcs := []struct {
		Description string
		Config      Config
		LookupErr   error
		ExpectedURL string
		ExpectErr   bool
	}{
		{
			Description: "Explicit url",
			Config:      Config{QueueURL: testURL},
			ExpectedURL: testURL,
		},
		{
			Description: "Default name lookup",
			ExpectedURL: testURL,
		},
		{
			Description: "Lookup failure",
			LookupErr:   &types.QueueDoesNotExist{},
			ExpectErr:   true,
		},
	}
	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			m := new(mockClient)
			m.On("GetQueueUrl", &sqs.GetQueueUrlInput{QueueName: aws.String(defaultQueueName)}).
				Return(&sqs.GetQueueUrlOutput{QueueUrl: aws.String(testURL)}, tc.LookupErr)

			q, err := newQueue(context.Background(), m, tc.Config, nil, nil)
			if tc.ExpectErr {
				assert.Error(err)
				return
			}
			require.NoError(t, err)
			assert.Equal(tc.ExpectedURL, q.url)
			assert.Equal(defaultWaitTime, q.config.WaitTime)
		})
	}
}

func TestEnqueue(t *testing.T) {
	assert := assert.New(t)
	m := new(mockClient)
	measures := queue.NewTestMeasures()
	q, err := newQueue(context.Background(), m, Config{QueueURL: testURL}, measures, nil)
	require.NoError(t, err)

	body := []byte(`{"source":"aws.omics"}`)
	m.On("SendMessage", &sqs.SendMessageInput{
		QueueUrl:               aws.String(testURL),
		MessageBody:            aws.String(string(body)),
		MessageGroupId:         aws.String("arn:a"),
		MessageDeduplicationId: aws.String(queue.DeduplicationID(body)),
	}).Return(&sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil).Once()

	id, err := q.Enqueue(context.Background(), body, "arn:a")
	assert.NoError(err)
	assert.Equal("m-1", id)

	_, err = q.Enqueue(context.Background(), body, "")
	assert.ErrorIs(err, queue.ErrEmptyGroupKey)
	m.AssertExpectations(t)
}

func TestReceive(t *testing.T) {
	assert := assert.New(t)
	m := new(mockClient)
	measures := queue.NewTestMeasures()
	q, err := newQueue(context.Background(), m, Config{
		QueueURL:           testURL,
		DeadLetterQueueURL: testDLQURL,
		MaxReceiveCount:    3,
		WaitTime:           time.Minute,
		VisibilityTimeout:  15 * time.Minute,
	}, measures, nil)
	require.NoError(t, err)

	m.On("ReceiveMessage", mock.MatchedBy(func(input *sqs.ReceiveMessageInput) bool {
		return input.MaxNumberOfMessages == maxBatch &&
			input.WaitTimeSeconds == 20 &&
			input.VisibilityTimeout == 900 &&
			aws.ToString(input.QueueUrl) == testURL
	})).Return(&sqs.ReceiveMessageOutput{Messages: []types.Message{
		{
			MessageId:     aws.String("m-1"),
			ReceiptHandle: aws.String("h-1"),
			Body:          aws.String("one"),
			Attributes: map[string]string{
				"ApproximateReceiveCount": "1",
				"MessageGroupId":          "arn:a",
			},
		},
		{
			MessageId:     aws.String("m-2"),
			ReceiptHandle: aws.String("h-2"),
			Body:          aws.String("poison"),
			Attributes: map[string]string{
				"ApproximateReceiveCount": "4",
				"MessageGroupId":          "arn:b",
			},
		},
	}}, nil).Once()
	m.On("SendMessage", mock.MatchedBy(func(input *sqs.SendMessageInput) bool {
		return aws.ToString(input.QueueUrl) == testDLQURL &&
			aws.ToString(input.MessageBody) == "poison" &&
			aws.ToString(input.MessageGroupId) == "arn:b"
	})).Return(&sqs.SendMessageOutput{MessageId: aws.String("d-1")}, nil).Once()
	m.On("DeleteMessage", &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(testURL),
		ReceiptHandle: aws.String("h-2"),
	}).Return(&sqs.DeleteMessageOutput{}, nil).Once()

	msgs, err := q.Receive(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(queue.Message{ID: "m-1", Handle: "h-1", GroupKey: "arn:a", Body: []byte("one"), ReceiveCount: 1}, msgs[0])
	assert.Equal(1.0, testutil.ToFloat64(measures.DeadLettered))
	m.AssertExpectations(t)
}

func TestReceiveError(t *testing.T) {
	m := new(mockClient)
	q, err := newQueue(context.Background(), m, Config{QueueURL: testURL}, nil, nil)
	require.NoError(t, err)
	m.On("ReceiveMessage", mock.Anything).Return((*sqs.ReceiveMessageOutput)(nil), errors.New("network"))
	msgs, err := q.Receive(context.Background(), 1)
	assert.Error(t, err)
	assert.Nil(t, msgs)
}

func TestAckFail(t *testing.T) {
	assert := assert.New(t)
	m := new(mockClient)
	q, err := newQueue(context.Background(), m, Config{QueueURL: testURL}, nil, nil)
	require.NoError(t, err)

	m.On("DeleteMessage", &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(testURL),
		ReceiptHandle: aws.String("h-1"),
	}).Return(&sqs.DeleteMessageOutput{}, nil).Once()
	m.On("DeleteMessage", &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(testURL),
		ReceiptHandle: aws.String("h-old"),
	}).Return((*sqs.DeleteMessageOutput)(nil), &types.ReceiptHandleIsInvalid{}).Once()
	m.On("ChangeMessageVisibility", &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(testURL),
		ReceiptHandle:     aws.String("h-2"),
		VisibilityTimeout: 0,
	}).Return(&sqs.ChangeMessageVisibilityOutput{}, nil).Once()
	m.On("ChangeMessageVisibility", &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(testURL),
		ReceiptHandle:     aws.String("h-3"),
		VisibilityTimeout: 0,
	}).Return((*sqs.ChangeMessageVisibilityOutput)(nil), &types.MessageNotInflight{}).Once()

	assert.NoError(q.Ack(context.Background(), "h-1"))
	assert.ErrorIs(q.Ack(context.Background(), "h-old"), queue.ErrUnknownHandle)
	assert.NoError(q.Fail(context.Background(), "h-2"))
	assert.ErrorIs(q.Fail(context.Background(), "h-3"), queue.ErrUnknownHandle)
	m.AssertExpectations(t)
}
