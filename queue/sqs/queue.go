// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package sqs

import (
	"context"
	"errors"
	"strconv"
	"time"

	"emperror.dev/emperror"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/xmidt-org/setsync/awsconfig"
	"github.com/xmidt-org/setsync/queue"
	"go.uber.org/zap"
)

const (
	defaultQueueName = "healthomics_set_queue.fifo"
	defaultWaitTime  = 20 * time.Second
	maxWaitTime      = 20 * time.Second
	maxBatch         = 10
)

var errNoQueue = errors.New("either a queue url or a queue name is required")

type Config struct {
	awsconfig.Config `mapstructure:",squash"`

	// QueueURL of the FIFO queue. When empty it is resolved from QueueName.
	QueueURL string

	// QueueName is used to look up the queue URL.
	// (Optional). Defaults to healthomics_set_queue.fifo.
	QueueName string

	// DeadLetterQueueURL receives messages delivered more than MaxReceiveCount times.
	// (Optional). Without it, a queue side redrive policy is expected to do the job.
	DeadLetterQueueURL string

	// MaxReceiveCount is only enforced when DeadLetterQueueURL is set.
	MaxReceiveCount int

	// WaitTime is the long polling duration of Receive, capped at 20 seconds.
	WaitTime time.Duration

	// VisibilityTimeout overrides the queue default for received messages.
	VisibilityTimeout time.Duration
}

// client captures the methods of interest from the SQS API.
type client interface {
	SendMessage(context.Context, *sqs.SendMessageInput, ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(context.Context, *sqs.DeleteMessageInput, ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(context.Context, *sqs.ChangeMessageVisibilityInput, ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	GetQueueUrl(context.Context, *sqs.GetQueueUrlInput, ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
}

// Queue is a queue.Q backed by an SQS FIFO queue.
type Queue struct {
	c        client
	url      string
	config   Config
	measures *queue.Measures
	logger   *zap.Logger
}

// New resolves the queue and returns a ready adapter.
func New(ctx context.Context, config Config, measures *queue.Measures, logger *zap.Logger) (*Queue, error) {
	awsCfg, err := awsconfig.Load(ctx, config.Config)
	if err != nil {
		return nil, err
	}
	c := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		o.BaseEndpoint = config.BaseEndpoint()
	})
	return newQueue(ctx, c, config, measures, logger)
}

func newQueue(ctx context.Context, c client, config Config, measures *queue.Measures, logger *zap.Logger) (*Queue, error) {
	validateConfig(&config)
	if logger == nil {
		logger = zap.NewNop()
	}

	url := config.QueueURL
	if url == "" {
		if config.QueueName == "" {
			return nil, errNoQueue
		}
		out, err := c.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(config.QueueName)})
		if err != nil {
			return nil, emperror.WrapWith(err, "resolving queue url failed", "queueName", config.QueueName)
		}
		url = aws.ToString(out.QueueUrl)
	}

	return &Queue{
		c:        c,
		url:      url,
		config:   config,
		measures: measures,
		logger:   logger,
	}, nil
}

func validateConfig(config *Config) {
	if config.QueueURL == "" && config.QueueName == "" {
		config.QueueName = defaultQueueName
	}
	if config.WaitTime <= 0 {
		config.WaitTime = defaultWaitTime
	}
	if config.WaitTime > maxWaitTime {
		config.WaitTime = maxWaitTime
	}
	if config.MaxReceiveCount < 0 {
		config.MaxReceiveCount = 0
	}
}

func (q *Queue) Enqueue(ctx context.Context, body []byte, groupKey string) (string, error) {
	if err := queue.ValidateEnqueue(body, groupKey); err != nil {
		q.measures.Observe(queue.EnqueueOperation, err, 1)
		return "", err
	}
	out, err := q.c.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               aws.String(q.url),
		MessageBody:            aws.String(string(body)),
		MessageGroupId:         aws.String(groupKey),
		MessageDeduplicationId: aws.String(queue.DeduplicationID(body)),
	})
	q.measures.Observe(queue.EnqueueOperation, err, 1)
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

func (q *Queue) Receive(ctx context.Context, max int) ([]queue.Message, error) {
	if max <= 0 {
		max = 1
	}
	if max > maxBatch {
		max = maxBatch
	}

	input := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     int32(q.config.WaitTime / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
			types.MessageSystemAttributeNameMessageGroupId,
		},
	}
	if q.config.VisibilityTimeout > 0 {
		input.VisibilityTimeout = int32(q.config.VisibilityTimeout / time.Second)
	}

	out, err := q.c.ReceiveMessage(ctx, input)
	if err != nil {
		q.measures.Observe(queue.ReceiveOperation, err, 1)
		return nil, err
	}

	msgs := make([]queue.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := queue.Message{
			ID:       aws.ToString(m.MessageId),
			Handle:   aws.ToString(m.ReceiptHandle),
			GroupKey: m.Attributes[string(types.MessageSystemAttributeNameMessageGroupId)],
			Body:     []byte(aws.ToString(m.Body)),
		}
		msg.ReceiveCount, _ = strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])

		if q.overReceiveLimit(msg) {
			if err := q.deadLetter(ctx, msg); err != nil {
				q.logger.Error("failed to dead-letter message", zap.String("messageID", msg.ID), zap.Error(err))
			}
			continue
		}
		msgs = append(msgs, msg)
	}
	q.measures.Observe(queue.ReceiveOperation, nil, len(msgs))
	return msgs, nil
}

func (q *Queue) Ack(ctx context.Context, handle string) error {
	_, err := q.c.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(handle),
	})
	q.measures.Observe(queue.AckOperation, err, 1)
	return handleClientError(err)
}

func (q *Queue) Fail(ctx context.Context, handle string) error {
	_, err := q.c.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.url),
		ReceiptHandle:     aws.String(handle),
		VisibilityTimeout: 0,
	})
	q.measures.Observe(queue.FailOperation, err, 1)
	return handleClientError(err)
}

func (q *Queue) overReceiveLimit(msg queue.Message) bool {
	return q.config.DeadLetterQueueURL != "" &&
		q.config.MaxReceiveCount > 0 &&
		msg.ReceiveCount > q.config.MaxReceiveCount
}

// deadLetter forwards msg to the dead-letter queue and removes it from the source.
func (q *Queue) deadLetter(ctx context.Context, msg queue.Message) error {
	groupKey := msg.GroupKey
	if groupKey == "" {
		groupKey = queue.DefaultFixedGroupID
	}
	_, err := q.c.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               aws.String(q.config.DeadLetterQueueURL),
		MessageBody:            aws.String(string(msg.Body)),
		MessageGroupId:         aws.String(groupKey),
		MessageDeduplicationId: aws.String(queue.DeduplicationID(msg.Body)),
	})
	if err != nil {
		return err
	}
	_, err = q.c.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(msg.Handle),
	})
	if err != nil {
		return err
	}
	q.measures.ObserveDeadLettered()
	q.logger.Warn("message dead-lettered", zap.String("messageID", msg.ID),
		zap.String("groupKey", msg.GroupKey), zap.Int("receiveCount", msg.ReceiveCount))
	return nil
}

// handleClientError maps an expired or unknown receipt handle onto queue.ErrUnknownHandle.
func handleClientError(err error) error {
	if err == nil {
		return nil
	}
	var (
		invalidHandle *types.ReceiptHandleIsInvalid
		notInFlight   *types.MessageNotInflight
	)
	if errors.As(err, &invalidHandle) || errors.As(err, &notInFlight) {
		return errors.Join(queue.ErrUnknownHandle, err)
	}
	return err
}
