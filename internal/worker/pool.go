package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/keyforge/keyforge/internal/interfaces"
	"github.com/keyforge/keyforge/internal/jobs"
	"github.com/keyforge/keyforge/internal/keygen"
	"github.com/keyforge/keyforge/internal/logger"
	"github.com/keyforge/keyforge/internal/metrics"
)

// Pool runs a fixed number of queue consumers. Consumers share no
// state; every coordination point is a conditional write in the result
// store, so the pool can scale across processes as well as goroutines.
type Pool struct {
	manager     *jobs.Manager
	queue       interfaces.JobQueue
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewPool creates a worker pool consuming from the given queue.
func NewPool(manager *jobs.Manager, queue interfaces.JobQueue, workerCount int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		manager:     manager,
		queue:       queue,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins consuming with the configured number of workers.
func (p *Pool) Start() {
	logger.Logger.Info().Int("worker_count", p.workerCount).Msg("Starting worker pool")
	metrics.ActiveWorkers.Set(float64(p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully shuts down the worker pool
func (p *Pool) Stop() {
	logger.Logger.Info().Msg("Stopping worker pool")
	p.cancel()
	p.wg.Wait()
	metrics.ActiveWorkers.Set(0)
	logger.Logger.Info().Msg("Worker pool stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger.Logger.Info().Int("worker_id", id).Msg("Worker started")

	err := p.queue.Consume(p.ctx, func(ctx context.Context, d interfaces.Delivery) {
		p.processDelivery(ctx, id, d)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Logger.Error().Int("worker_id", id).Err(err).Msg("Consumer stopped")
	}

	logger.Logger.Info().Int("worker_id", id).Msg("Worker shutting down")
}

// processDelivery drives one request through the state machine:
// submitted -> pending -> complete/error. Each step is a conditional
// store write, so a redelivered message either resumes an unfinished
// attempt or collapses into a no-op.
func (p *Pool) processDelivery(ctx context.Context, workerID int, d interfaces.Delivery) {
	req := d.Request()
	log := logger.WithRequestID(req.RequestID)
	log.Info().
		Int("worker_id", workerID).
		Str("key_type", string(req.KeyType)).
		Int("attempt", d.Attempt()).
		Msg("Processing request")

	if !p.claim(ctx, d, log) {
		return
	}

	// Validate again at processing time; a stale or forged message must
	// not reach the generator.
	job := *req
	job.Normalize()
	if err := job.Validate(); err != nil {
		p.writeFailure(ctx, d, req.RequestID, err.Error(), log)
		return
	}

	start := time.Now()
	material, err := keygen.Generate(&job)
	metrics.GenerationDuration.WithLabelValues(string(job.KeyType)).Observe(time.Since(start).Seconds())

	if err != nil {
		if interfaces.IsTransient(err) {
			log.Warn().Err(err).Msg("Transient generation failure, leaving for redelivery")
			_ = d.Nak()
			return
		}
		p.writeFailure(ctx, d, req.RequestID, err.Error(), log)
		return
	}

	err = p.withRetry(ctx, func(ctx context.Context) error {
		return p.manager.Complete(ctx, req.RequestID, material.PublicKey, material.PrivateKey)
	})
	p.settleTerminalWrite(d, err, log)
}

// claim moves the record into pending. Returns false when the delivery
// has been settled without further work: a duplicate of a finished job,
// an expired record, or a transient store failure left for redelivery.
func (p *Pool) claim(ctx context.Context, d interfaces.Delivery, log *zerolog.Logger) bool {
	err := p.withRetry(ctx, func(ctx context.Context) error {
		return p.manager.Begin(ctx, d.Request().RequestID)
	})

	switch {
	case err == nil:
		return true

	case errors.Is(err, interfaces.ErrConflict):
		// The record already left submitted. Terminal means a duplicate
		// delivery of finished work; pending means a previous attempt
		// claimed the job but never wrote a terminal status, so this
		// delivery picks it back up.
		rec, getErr := p.manager.Result(ctx, d.Request().RequestID)
		if getErr != nil {
			if interfaces.IsTransient(getErr) {
				_ = d.Nak()
			} else {
				_ = d.Ack()
			}
			return false
		}
		if rec.Status.Terminal() {
			metrics.DuplicateDeliveriesTotal.Inc()
			log.Debug().Str("status", string(rec.Status)).Msg("Duplicate delivery for finished request")
			_ = d.Ack()
			return false
		}
		return true

	case errors.Is(err, interfaces.ErrNotFound):
		// Record expired or was never written; generating a key nobody
		// can fetch is pointless.
		log.Warn().Msg("No live record for delivery, dropping")
		_ = d.Ack()
		return false

	default:
		log.Error().Err(err).Msg("Failed to claim request, leaving for redelivery")
		_ = d.Nak()
		return false
	}
}

// writeFailure records a permanent processing error. The message is
// acked on success: permanent failures are never retried.
func (p *Pool) writeFailure(ctx context.Context, d interfaces.Delivery, requestID, msg string, log *zerolog.Logger) {
	log.Warn().Str("error", msg).Msg("Recording permanent failure")

	err := p.withRetry(ctx, func(ctx context.Context) error {
		return p.manager.Fail(ctx, requestID, msg)
	})
	p.settleTerminalWrite(d, err, log)
}

// settleTerminalWrite acks or naks based on the outcome of a
// conditional terminal write. A conflict means another delivery already
// wrote a terminal status, which counts as success for at-least-once
// semantics.
func (p *Pool) settleTerminalWrite(d interfaces.Delivery, err error, log *zerolog.Logger) {
	switch {
	case err == nil:
		_ = d.Ack()

	case errors.Is(err, interfaces.ErrConflict):
		metrics.DuplicateDeliveriesTotal.Inc()
		log.Debug().Msg("Terminal status already written by another delivery")
		_ = d.Ack()

	case errors.Is(err, interfaces.ErrNotFound):
		log.Warn().Msg("Record expired before terminal write")
		_ = d.Ack()

	default:
		log.Error().Err(err).Msg("Terminal write failed, leaving for redelivery")
		_ = d.Nak()
	}
}

// withRetry absorbs short store hiccups in place before falling back to
// queue redelivery.
func (p *Pool) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if interfaces.IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
