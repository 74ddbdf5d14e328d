// Package natsq implements the JobQueue on NATS JetStream. A work-queue
// stream retains each job until a consumer acks it; AckWait acts as the
// visibility timeout and messages that burn through their delivery
// budget are republished to a dead-letter subject for operators.
package natsq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/keyforge/keyforge/internal/interfaces"
	"github.com/keyforge/keyforge/internal/logger"
	"github.com/keyforge/keyforge/internal/metrics"
)

const (
	streamName  = "KEYFORGE"
	jobSubject  = "keyforge.jobs"
	deadSubject = "keyforge.jobs.dead"
	durableName = "keyforge-workers"

	fetchWait  = 2 * time.Second
	retryDelay = 5 * time.Second
)

type Queue struct {
	conn          *nats.Conn
	js            nats.JetStreamContext
	visibility    time.Duration
	maxDeliveries int
}

// New connects to NATS and ensures the job stream exists.
func New(url string, visibility time.Duration, maxDeliveries int) (*Queue, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(streamName); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			conn.Close()
			return nil, fmt.Errorf("failed to look up stream: %w", err)
		}
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      streamName,
			Subjects:  []string{jobSubject, deadSubject},
			Retention: nats.WorkQueuePolicy,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create stream: %w", err)
		}
	}

	return &Queue{
		conn:          conn,
		js:            js,
		visibility:    visibility,
		maxDeliveries: maxDeliveries,
	}, nil
}

func (q *Queue) Publish(_ context.Context, req *interfaces.JobRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal job request: %w", err)
	}

	if _, err := q.js.Publish(jobSubject, data); err != nil {
		return interfaces.Transient(fmt.Errorf("failed to publish job: %w", err))
	}

	return nil
}

// Consume fetches jobs from the shared durable consumer until ctx is
// canceled. Every Consume call binds to the same durable, so each
// message goes to exactly one caller per delivery attempt.
func (q *Queue) Consume(ctx context.Context, h interfaces.Handler) error {
	sub, err := q.js.PullSubscribe(jobSubject, durableName,
		nats.AckWait(q.visibility),
		nats.MaxDeliver(q.maxDeliveries),
		nats.ManualAck())
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(fetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			logger.Logger.Error().Err(err).Msg("Failed to fetch from queue")
			continue
		}

		for _, msg := range msgs {
			d, err := q.newDelivery(msg)
			if err != nil {
				// Unparseable payload can never succeed; drop it.
				logger.Logger.Error().Err(err).Msg("Discarding malformed queue message")
				_ = msg.Term()
				continue
			}
			h(ctx, d)
		}
	}
}

func (q *Queue) Close() error {
	q.conn.Close()
	return nil
}

func (q *Queue) newDelivery(msg *nats.Msg) (*delivery, error) {
	var req interfaces.JobRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job request: %w", err)
	}

	attempt := 1
	if meta, err := msg.Metadata(); err == nil {
		attempt = int(meta.NumDelivered)
	}

	return &delivery{q: q, msg: msg, req: &req, attempt: attempt}, nil
}

type delivery struct {
	q       *Queue
	msg     *nats.Msg
	req     *interfaces.JobRequest
	attempt int
}

func (d *delivery) Request() *interfaces.JobRequest { return d.req }

func (d *delivery) Attempt() int { return d.attempt }

func (d *delivery) Ack() error {
	return d.msg.Ack()
}

func (d *delivery) Nak() error {
	if d.attempt >= d.q.maxDeliveries {
		return d.deadLetter()
	}
	return d.msg.NakWithDelay(retryDelay)
}

// deadLetter republishes the raw message to the dead-letter subject and
// terminates the original so it is never redelivered.
func (d *delivery) deadLetter() error {
	if _, err := d.q.js.Publish(deadSubject, d.msg.Data); err != nil {
		// Keep the original alive for another redelivery rather than
		// losing the message.
		return interfaces.Transient(fmt.Errorf("failed to dead-letter message: %w", err))
	}

	metrics.DeadLetteredTotal.Inc()
	logger.WithRequestID(d.req.RequestID).Warn().
		Int("attempts", d.attempt).
		Msg("Message moved to dead-letter subject")
	return d.msg.Term()
}
