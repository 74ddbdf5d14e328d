// Package memqueue is an in-process JobQueue used by the memory driver
// and by tests. It models the semantics the worker relies on from a real
// broker: at-least-once delivery, redelivery after a visibility timeout
// and a dead-letter buffer after too many deliveries.
package memqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keyforge/keyforge/internal/interfaces"
)

type Queue struct {
	ready chan *message

	visibility    time.Duration
	maxDeliveries int

	mu     sync.Mutex
	dead   []*interfaces.JobRequest
	closed bool
}

type message struct {
	req      *interfaces.JobRequest
	attempts int
}

// New creates a queue. visibility is how long an unacked delivery stays
// invisible before it is redelivered; maxDeliveries is the delivery
// count after which a message is dead-lettered instead of requeued.
func New(visibility time.Duration, maxDeliveries int) *Queue {
	return &Queue{
		ready:         make(chan *message, 1024),
		visibility:    visibility,
		maxDeliveries: maxDeliveries,
	}
}

func (q *Queue) Publish(_ context.Context, req *interfaces.JobRequest) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return fmt.Errorf("queue closed")
	}

	cp := *req
	select {
	case q.ready <- &message{req: &cp}:
		return nil
	default:
		return interfaces.Transient(fmt.Errorf("queue full"))
	}
}

func (q *Queue) Consume(ctx context.Context, h interfaces.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q.ready:
			msg.attempts++
			h(ctx, q.newDelivery(msg))
		}
	}
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	// The ready channel is left open: Consume exits via context
	// cancellation, and a late visibility timer may still requeue.
	q.closed = true
	return nil
}

// DeadLetters returns the messages diverted to the dead-letter buffer.
func (q *Queue) DeadLetters() []*interfaces.JobRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*interfaces.JobRequest, len(q.dead))
	copy(out, q.dead)
	return out
}

func (q *Queue) newDelivery(msg *message) *delivery {
	d := &delivery{q: q, msg: msg}
	d.timer = time.AfterFunc(q.visibility, func() {
		// Visibility timeout expired without an ack: the consumer
		// crashed or stalled, so hand the message back.
		d.settle(func() { q.requeue(msg) })
	})
	return d
}

// requeue puts the message back on the ready channel, or dead-letters
// it once the delivery budget is spent.
func (q *Queue) requeue(msg *message) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if msg.attempts >= q.maxDeliveries {
		q.dead = append(q.dead, msg.req)
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	select {
	case q.ready <- msg:
	default:
		go func() { q.ready <- msg }()
	}
}

type delivery struct {
	q     *Queue
	msg   *message
	timer *time.Timer

	mu      sync.Mutex
	settled bool
}

func (d *delivery) Request() *interfaces.JobRequest { return d.msg.req }

func (d *delivery) Attempt() int { return d.msg.attempts }

func (d *delivery) Ack() error {
	d.settle(nil)
	return nil
}

func (d *delivery) Nak() error {
	d.settle(func() { d.q.requeue(d.msg) })
	return nil
}

// settle runs fn exactly once across Ack, Nak and the visibility timer.
func (d *delivery) settle(fn func()) {
	d.mu.Lock()
	if d.settled {
		d.mu.Unlock()
		return
	}
	d.settled = true
	d.mu.Unlock()

	d.timer.Stop()
	if fn != nil {
		fn()
	}
}
