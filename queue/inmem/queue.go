// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xmidt-org/setsync/queue"
)

const (
	defaultDedupWindow       = 5 * time.Minute
	defaultVisibilityTimeout = 15 * time.Minute
	defaultWaitTime          = time.Second
	pollInterval             = 50 * time.Millisecond
)

type Config struct {
	// DedupWindow is how long an accepted body suppresses identical bodies.
	// (Optional). Defaults to 5 minutes.
	DedupWindow time.Duration

	// VisibilityTimeout is how long a delivered message stays hidden, and its group
	// blocked, before it is handed out again.
	// (Optional). Defaults to 15 minutes.
	VisibilityTimeout time.Duration

	// MaxReceiveCount moves a message to the dead-letter list once it has been
	// delivered this many times without an ack.
	// (Optional). Zero keeps redelivering forever.
	MaxReceiveCount int

	// WaitTime bounds how long Receive waits for a message to become visible.
	// (Optional). Defaults to 1 second.
	WaitTime time.Duration
}

type entry struct {
	id           string
	groupKey     string
	body         []byte
	receiveCount int
	handle       string
	inFlight     bool
	visibleAt    time.Time
}

type dedupEntry struct {
	messageID string
	expires   time.Time
}

// Queue is an in-memory queue.Q.
type Queue struct {
	lock     sync.Mutex
	config   Config
	now      func() time.Time
	measures *queue.Measures

	// groups holds the pending messages of every group, head first.
	groups map[string][]*entry
	// order is the round-robin order of groups with pending messages.
	order []string
	next  int

	dedup       map[string]dedupEntry
	inFlight    map[string]*entry
	deadLetters []queue.Message

	// changed is closed and replaced whenever a message may have become visible.
	changed chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock replaces the wall clock, which drives deduplication windows and
// visibility timeouts.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// WithMeasures counts queue activity.
func WithMeasures(m *queue.Measures) Option {
	return func(q *Queue) {
		q.measures = m
	}
}

func New(config Config, opts ...Option) *Queue {
	validateConfig(&config)
	q := &Queue{
		config:   config,
		now:      time.Now,
		groups:   map[string][]*entry{},
		dedup:    map[string]dedupEntry{},
		inFlight: map[string]*entry{},
		changed:  make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

func validateConfig(config *Config) {
	if config.DedupWindow <= 0 {
		config.DedupWindow = defaultDedupWindow
	}
	if config.VisibilityTimeout <= 0 {
		config.VisibilityTimeout = defaultVisibilityTimeout
	}
	if config.MaxReceiveCount < 0 {
		config.MaxReceiveCount = 0
	}
	if config.WaitTime <= 0 {
		config.WaitTime = defaultWaitTime
	}
}

func (q *Queue) Enqueue(_ context.Context, body []byte, groupKey string) (string, error) {
	if err := queue.ValidateEnqueue(body, groupKey); err != nil {
		q.measures.Observe(queue.EnqueueOperation, err, 1)
		return "", err
	}

	q.lock.Lock()
	defer q.lock.Unlock()

	now := q.now()
	q.purgeDedup(now)
	dedupID := queue.DeduplicationID(body)
	if d, ok := q.dedup[dedupID]; ok {
		q.measures.ObserveDeduplicated()
		return d.messageID, nil
	}

	e := &entry{
		id:       uuid.NewString(),
		groupKey: groupKey,
		body:     append([]byte(nil), body...),
	}
	if _, ok := q.groups[groupKey]; !ok {
		q.order = append(q.order, groupKey)
	}
	q.groups[groupKey] = append(q.groups[groupKey], e)
	q.dedup[dedupID] = dedupEntry{messageID: e.id, expires: now.Add(q.config.DedupWindow)}
	q.measures.Observe(queue.EnqueueOperation, nil, 1)
	q.signal()
	return e.id, nil
}

// Receive waits up to the configured WaitTime for visible messages.
func (q *Queue) Receive(ctx context.Context, max int) ([]queue.Message, error) {
	if max <= 0 {
		max = 1
	}
	deadline := time.NewTimer(q.config.WaitTime)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		q.lock.Lock()
		msgs := q.collect(max)
		changed := q.changed
		q.lock.Unlock()

		if len(msgs) > 0 {
			q.measures.Observe(queue.ReceiveOperation, nil, len(msgs))
			return msgs, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-changed:
		case <-ticker.C:
		}
	}
}

func (q *Queue) Ack(_ context.Context, handle string) error {
	q.lock.Lock()
	defer q.lock.Unlock()

	e, ok := q.inFlight[handle]
	if !ok || !q.now().Before(e.visibleAt) {
		q.measures.Observe(queue.AckOperation, queue.ErrUnknownHandle, 1)
		return queue.ErrUnknownHandle
	}
	delete(q.inFlight, handle)
	q.removeHead(e)
	q.measures.Observe(queue.AckOperation, nil, 1)
	q.signal()
	return nil
}

func (q *Queue) Fail(_ context.Context, handle string) error {
	q.lock.Lock()
	defer q.lock.Unlock()

	e, ok := q.inFlight[handle]
	if !ok || !q.now().Before(e.visibleAt) {
		q.measures.Observe(queue.FailOperation, queue.ErrUnknownHandle, 1)
		return queue.ErrUnknownHandle
	}
	delete(q.inFlight, handle)
	e.inFlight = false
	e.handle = ""
	if q.exhausted(e) {
		q.deadLetter(e)
	}
	q.measures.Observe(queue.FailOperation, nil, 1)
	q.signal()
	return nil
}

// DeadLetters returns the messages that exceeded MaxReceiveCount.
func (q *Queue) DeadLetters() []queue.Message {
	q.lock.Lock()
	defer q.lock.Unlock()
	return append([]queue.Message(nil), q.deadLetters...)
}

// Len is the number of messages not yet acked or dead-lettered, in flight included.
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	n := 0
	for _, g := range q.groups {
		n += len(g)
	}
	return n
}

// collect must be called with the lock held.
func (q *Queue) collect(max int) []queue.Message {
	now := q.now()
	q.expire(now)

	var msgs []queue.Message
	n := len(q.order)
	for i := 0; i < n && len(msgs) < max; i++ {
		key := q.order[(q.next+i)%n]
		g := q.groups[key]
		if len(g) == 0 || g[0].inFlight {
			continue
		}
		head := g[0]
		head.receiveCount++
		head.inFlight = true
		head.handle = uuid.NewString()
		head.visibleAt = now.Add(q.config.VisibilityTimeout)
		q.inFlight[head.handle] = head
		msgs = append(msgs, queue.Message{
			ID:           head.id,
			Handle:       head.handle,
			GroupKey:     head.groupKey,
			Body:         append([]byte(nil), head.body...),
			ReceiveCount: head.receiveCount,
		})
	}
	if n > 0 {
		q.next = (q.next + 1) % n
	}
	return msgs
}

// expire returns timed out deliveries to their group heads.
func (q *Queue) expire(now time.Time) {
	for handle, e := range q.inFlight {
		if now.Before(e.visibleAt) {
			continue
		}
		delete(q.inFlight, handle)
		e.inFlight = false
		e.handle = ""
		if q.exhausted(e) {
			q.deadLetter(e)
		}
	}
}

func (q *Queue) exhausted(e *entry) bool {
	return q.config.MaxReceiveCount > 0 && e.receiveCount >= q.config.MaxReceiveCount
}

func (q *Queue) deadLetter(e *entry) {
	q.removeHead(e)
	q.deadLetters = append(q.deadLetters, queue.Message{
		ID:           e.id,
		GroupKey:     e.groupKey,
		Body:         e.body,
		ReceiveCount: e.receiveCount,
	})
	q.measures.ObserveDeadLettered()
}

// removeHead drops e, which is always the head of its group.
func (q *Queue) removeHead(e *entry) {
	g := q.groups[e.groupKey]
	if len(g) == 0 || g[0] != e {
		return
	}
	g = g[1:]
	if len(g) > 0 {
		q.groups[e.groupKey] = g
		return
	}
	delete(q.groups, e.groupKey)
	for i, key := range q.order {
		if key == e.groupKey {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	if q.next >= len(q.order) {
		q.next = 0
	}
}

func (q *Queue) purgeDedup(now time.Time) {
	for id, d := range q.dedup {
		if !now.Before(d.expires) {
			delete(q.dedup, id)
		}
	}
}

func (q *Queue) signal() {
	close(q.changed)
	q.changed = make(chan struct{})
}
