// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package consumer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/setsync/applier"
	"github.com/xmidt-org/setsync/enrich"
	"github.com/xmidt-org/setsync/model"
	"github.com/xmidt-org/setsync/queue"
	"go.uber.org/zap"
)

// Errors that can be returned by this package.
var (
	ErrConsumerNotStopped = errors.New("consumer is either running or starting")
	ErrConsumerNotRunning = errors.New("consumer is either stopped or stopping")
	ErrNilMeasures        = errors.New("measures cannot be nil")
	ErrMissingDependency  = errors.New("queue, enricher and applier are required")
)

// consuming states
const (
	stopped int32 = iota
	running
	transitioning
)

const (
	defaultWorkers       = 4
	defaultBatchSize     = 1
	defaultLookupTimeout = 30 * time.Second
	defaultStoreTimeout  = 10 * time.Second
	defaultMaxBackoff    = 30 * time.Second
	initialBackoff       = 100 * time.Millisecond
)

// Config tunes the worker pool.
type Config struct {
	// Workers is the number of goroutines pulling from the queue.
	// (Optional). Defaults to 4.
	Workers int

	// BatchSize is how many messages a worker asks for per receive.
	// (Optional). Defaults to 1.
	BatchSize int

	// LookupTimeout bounds a single metadata lookup.
	// (Optional). Defaults to 30 seconds.
	LookupTimeout time.Duration

	// StoreTimeout bounds applying a single notification to the record store.
	// (Optional). Defaults to 10 seconds.
	StoreTimeout time.Duration

	// MaxBackoff caps the wait between failed receives.
	// (Optional). Defaults to 30 seconds.
	MaxBackoff time.Duration
}

// Consumer drains the delivery queue: every message is decoded, enriched, applied
// and then acked or failed.
type Consumer struct {
	queue    queue.Q
	enricher enrich.Enricher
	applier  *applier.Applier
	config   Config
	logger   *zap.Logger
	measures *Measures

	cancel context.CancelFunc
	wg     sync.WaitGroup
	state  int32
}

func New(config Config, q queue.Q, e enrich.Enricher, a *applier.Applier, measures *Measures, logger *zap.Logger) (*Consumer, error) {
	if q == nil || e == nil || a == nil {
		return nil, ErrMissingDependency
	}
	if measures == nil {
		return nil, ErrNilMeasures
	}
	if logger == nil {
		logger = sallust.Default()
	}
	validateConfig(&config)
	return &Consumer{
		queue:    q,
		enricher: e,
		applier:  a,
		config:   config,
		logger:   logger,
		measures: measures,
	}, nil
}

func validateConfig(config *Config) {
	if config.Workers <= 0 {
		config.Workers = defaultWorkers
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if config.LookupTimeout <= 0 {
		config.LookupTimeout = defaultLookupTimeout
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = defaultStoreTimeout
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaultMaxBackoff
	}
}

// Start launches the workers. If the consumer is already running, Start returns
// ErrConsumerNotStopped; call Stop first to restart it.
func (c *Consumer) Start(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.state, stopped, transitioning) {
		c.logger.Error("Start called when the consumer was not in stopped state", zap.Error(ErrConsumerNotStopped))
		return ErrConsumerNotStopped
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	for i := 0; i < c.config.Workers; i++ {
		c.wg.Add(1)
		go c.work(ctx, i)
	}
	c.logger.Info("consumer started", zap.Int("workers", c.config.Workers))

	atomic.SwapInt32(&c.state, running)
	return nil
}

// Stop asks the workers to finish the message at hand and waits for them, or for
// ctx to end.
func (c *Consumer) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.state, running, transitioning) {
		c.logger.Error("Stop called when the consumer was not in running state", zap.Error(ErrConsumerNotRunning))
		return ErrConsumerNotRunning
	}
	defer atomic.SwapInt32(&c.state, stopped)

	c.cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.logger.Info("consumer stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) work(ctx context.Context, id int) {
	defer c.wg.Done()
	logger := c.logger.With(zap.Int("worker", id))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.MaxInterval = c.config.MaxBackoff
	b.MaxElapsedTime = 0

	for {
		msgs, err := c.queue.Receive(ctx, c.config.BatchSize)
		if ctx.Err() != nil {
			// hand back what arrived while stopping so its groups are not held
			// until the visibility timeout
			for _, msg := range msgs {
				c.release(sallust.With(context.Background(), logger), msg)
			}
			return
		}
		if err != nil {
			wait := b.NextBackOff()
			logger.Error("failed to receive messages", zap.Error(err), zap.Duration("backoff", wait))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()

		// in-flight messages are finished even when stopping
		c.ProcessBatch(sallust.With(context.Background(), logger), msgs)
	}
}

// ProcessBatch handles a batch in order. A batch may hold several messages of one
// group; once one of them is to be retried, the rest of its group is released
// unprocessed so the group is redelivered in its original order.
func (c *Consumer) ProcessBatch(ctx context.Context, msgs []queue.Message) []string {
	outcomes := make([]string, 0, len(msgs))
	blocked := make(map[string]bool)
	for _, msg := range msgs {
		if blocked[msg.GroupKey] {
			outcomes = append(outcomes, c.release(ctx, msg))
			continue
		}
		outcome := c.Process(ctx, msg)
		if outcome == RetryOutcome {
			blocked[msg.GroupKey] = true
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// release fails msg without looking at it.
func (c *Consumer) release(ctx context.Context, msg queue.Message) string {
	if err := c.queue.Fail(ctx, msg.Handle); err != nil {
		sallust.Get(ctx).Error("failed to release message", zap.String("messageID", msg.ID),
			zap.String("groupKey", msg.GroupKey), zap.Error(err))
	}
	c.measures.Messages.With(prometheus.Labels{OutcomeLabel: DeferredOutcome}).Inc()
	return DeferredOutcome
}

// Process handles a single delivery and settles it with the queue.
func (c *Consumer) Process(ctx context.Context, msg queue.Message) string {
	start := time.Now()
	logger := sallust.Get(ctx).With(
		zap.String("messageID", msg.ID),
		zap.String("groupKey", msg.GroupKey),
		zap.Int("receiveCount", msg.ReceiveCount),
	)
	ctx = sallust.With(ctx, logger)

	outcome := c.handle(ctx, msg)
	var err error
	if outcome == RetryOutcome {
		err = c.queue.Fail(ctx, msg.Handle)
	} else {
		err = c.queue.Ack(ctx, msg.Handle)
	}
	if err != nil {
		// the message will come back once its visibility expires
		logger.Error("failed to settle message", zap.String("outcome", outcome), zap.Error(err))
	}

	labels := prometheus.Labels{OutcomeLabel: outcome}
	c.measures.Messages.With(labels).Inc()
	c.measures.ProcessingDuration.With(labels).Observe(time.Since(start).Seconds())
	return outcome
}

func (c *Consumer) handle(ctx context.Context, msg queue.Message) string {
	logger := sallust.Get(ctx)

	envelope, err := model.DecodeEnvelope(msg.Body)
	if err != nil {
		logger.Error("dropping undecodable message", zap.Error(err))
		return DroppedOutcome
	}
	n, err := envelope.Notification()
	if err != nil {
		logger.Error("dropping invalid notification", zap.Error(err))
		return DroppedOutcome
	}

	logger = logger.With(zap.String("resourceID", n.ResourceID), zap.String("status", string(n.Status)))
	ctx = sallust.With(ctx, logger)

	var (
		md        model.Metadata
		enrichErr error
	)
	if c.applier.Policy().Classify(n.Status) != applier.Ignore {
		md, enrichErr = c.enrich(ctx, n)
	}

	storeCtx, cancel := context.WithTimeout(ctx, c.config.StoreTimeout)
	result, err := c.applier.Apply(storeCtx, n, md, enrichErr)
	cancel()

	if err != nil {
		if applier.Classify(err) == applier.Retry {
			logger.Warn("processing failed, message will be redelivered", zap.Error(err))
			return RetryOutcome
		}
		logger.Error("processing failed permanently, dropping message", zap.Error(err))
		return DroppedOutcome
	}

	switch {
	case result.Action == applier.Ignore:
		return IgnoredOutcome
	case result.Stale:
		return StaleOutcome
	}
	logger.Info("notification applied", zap.String("action", string(result.Action)),
		zap.Bool("written", result.Written), zap.Int("deleted", result.Deleted))
	return SuccessOutcome
}

func (c *Consumer) enrich(ctx context.Context, n model.Notification) (model.Metadata, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, c.config.LookupTimeout)
	defer cancel()

	md, err := c.enricher.Enrich(lookupCtx, n)
	if err != nil && !errors.Is(err, enrich.ErrLookupTransient) &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(lookupCtx.Err(), context.DeadlineExceeded)) {
		err = enrich.Transient(n.ResourceID, err)
	}
	return md, err
}
