package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keyforge/keyforge/internal/interfaces"
	"github.com/keyforge/keyforge/internal/logger"
	"github.com/keyforge/keyforge/internal/metrics"
)

// maxIDAttempts bounds how often Submit retries a colliding request id.
// Collisions on random 128-bit ids are effectively theoretical.
const maxIDAttempts = 3

// Manager owns the submission and result-read paths and the status
// transitions the worker drives. All state lives in the result store;
// the manager itself is stateless and safe for concurrent use.
type Manager struct {
	store     interfaces.ResultStore
	queue     interfaces.JobQueue
	resultTTL time.Duration
	now       func() time.Time
}

// NewManager creates a manager writing records with the given TTL.
func NewManager(store interfaces.ResultStore, queue interfaces.JobQueue, resultTTL time.Duration) *Manager {
	return &Manager{
		store:     store,
		queue:     queue,
		resultTTL: resultTTL,
		now:       time.Now,
	}
}

// Submit validates the request, writes the initial submitted record and
// enqueues the job. Validation failures leave no trace: no record is
// written and nothing is enqueued.
//
// The record write and the queue publish are not transactional. If the
// publish fails the submitted record stays behind and the error is
// returned to the caller; a client retry (with a fresh id) covers the
// gap. This is the documented cost of at-least-once delivery.
func (m *Manager) Submit(ctx context.Context, req *interfaces.JobRequest) (*interfaces.ResultRecord, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := m.now()
	rec := &interfaces.ResultRecord{
		Status:    interfaces.StatusSubmitted,
		KeyType:   req.KeyType,
		KeyBits:   req.KeyBits,
		CreatedAt: now,
		ExpiresAt: now.Add(m.resultTTL),
		UpdatedAt: now,
	}

	created := false
	for i := 0; i < maxIDAttempts; i++ {
		rec.RequestID = uuid.New().String()

		err := m.store.Create(ctx, rec)
		if err == nil {
			created = true
			break
		}
		if !errors.Is(err, interfaces.ErrAlreadyExists) {
			return nil, fmt.Errorf("failed to create record: %w", err)
		}
		// Id collision: pick a fresh one and try again.
	}
	if !created {
		return nil, fmt.Errorf("failed to allocate a request id after %d attempts", maxIDAttempts)
	}

	req.RequestID = rec.RequestID
	if err := m.queue.Publish(ctx, req); err != nil {
		logger.WithRequestID(rec.RequestID).Error().Err(err).
			Msg("Record written but enqueue failed; record left in submitted state")
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	metrics.RequestsSubmittedTotal.Inc()
	log := logger.WithRequestID(rec.RequestID)
	log.Info().Str("key_type", string(req.KeyType)).Int("key_bits", req.KeyBits).Msg("Request submitted")
	return rec, nil
}

// Result returns the current record for a request id. Read-only; safe
// for client polling.
func (m *Manager) Result(ctx context.Context, requestID string) (*interfaces.ResultRecord, error) {
	return m.store.Get(ctx, requestID)
}

// Begin moves the record into pending. ErrConflict means another
// delivery already took (or finished) the job.
func (m *Manager) Begin(ctx context.Context, requestID string) error {
	return m.store.MarkPending(ctx, requestID)
}

// Complete records the generated key material.
func (m *Manager) Complete(ctx context.Context, requestID, publicKey, privateKey string) error {
	if err := m.store.Complete(ctx, requestID, publicKey, privateKey); err != nil {
		return err
	}

	metrics.RequestsCompletedTotal.Inc()
	logger.WithRequestID(requestID).Info().Msg("Request completed")
	return nil
}

// Fail records a permanent processing failure.
func (m *Manager) Fail(ctx context.Context, requestID, errorMessage string) error {
	if err := m.store.Fail(ctx, requestID, errorMessage); err != nil {
		return err
	}

	metrics.RequestsFailedTotal.Inc()
	logger.WithRequestID(requestID).Info().Str("error", errorMessage).Msg("Request failed permanently")
	return nil
}
