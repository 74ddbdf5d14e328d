package jobs

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyforge/keyforge/internal/interfaces"
	"github.com/keyforge/keyforge/internal/logger"
	"github.com/keyforge/keyforge/internal/memstore"
)

func TestMain(m *testing.M) {
	logger.Init("test")
	os.Exit(m.Run())
}

// countingStore wraps the memory store to observe Create calls and to
// inject an id collision on the first one.
type countingStore struct {
	*memstore.Store
	creates     int
	collideOnce bool
}

func (s *countingStore) Create(ctx context.Context, rec *interfaces.ResultRecord) error {
	s.creates++
	if s.collideOnce && s.creates == 1 {
		return interfaces.ErrAlreadyExists
	}
	return s.Store.Create(ctx, rec)
}

// captureQueue records published requests and optionally fails.
type captureQueue struct {
	published []*interfaces.JobRequest
	err       error
}

func (q *captureQueue) Publish(_ context.Context, req *interfaces.JobRequest) error {
	cp := *req
	q.published = append(q.published, &cp)
	return q.err
}

func (q *captureQueue) Consume(ctx context.Context, _ interfaces.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (q *captureQueue) Close() error { return nil }

func TestSubmitRejectsInvalidInput(t *testing.T) {
	store := &countingStore{Store: memstore.New()}
	queue := &captureQueue{}
	m := NewManager(store, queue, time.Hour)

	_, err := m.Submit(context.Background(), &interfaces.JobRequest{
		KeyType: interfaces.KeyTypeRSA,
		KeyBits: 3072,
	})
	require.Error(t, err)
	assert.True(t, interfaces.IsValidation(err))

	// Fail fast: no record written, nothing enqueued.
	assert.Equal(t, 0, store.creates)
	assert.Empty(t, queue.published)
}

func TestSubmitAppliesDefaults(t *testing.T) {
	store := &countingStore{Store: memstore.New()}
	queue := &captureQueue{}
	m := NewManager(store, queue, time.Hour)

	rec, err := m.Submit(context.Background(), &interfaces.JobRequest{})
	require.NoError(t, err)

	assert.Equal(t, interfaces.StatusSubmitted, rec.Status)
	assert.Equal(t, interfaces.KeyTypeRSA, rec.KeyType)
	assert.Equal(t, 2048, rec.KeyBits)
	_, err = uuid.Parse(rec.RequestID)
	assert.NoError(t, err, "request id should be a random uuid")
	assert.Equal(t, rec.CreatedAt.Add(time.Hour), rec.ExpiresAt)

	require.Len(t, queue.published, 1)
	assert.Equal(t, rec.RequestID, queue.published[0].RequestID)

	stored, err := m.Result(context.Background(), rec.RequestID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusSubmitted, stored.Status)
}

func TestSubmitRetriesIDCollision(t *testing.T) {
	store := &countingStore{Store: memstore.New(), collideOnce: true}
	queue := &captureQueue{}
	m := NewManager(store, queue, time.Hour)

	rec, err := m.Submit(context.Background(), &interfaces.JobRequest{KeyType: interfaces.KeyTypeEd25519})
	require.NoError(t, err)
	assert.Equal(t, 2, store.creates, "collision should trigger one retry with a fresh id")
	assert.NotEmpty(t, rec.RequestID)
}

func TestSubmitEnqueueFailureLeavesRecord(t *testing.T) {
	store := &countingStore{Store: memstore.New()}
	queue := &captureQueue{err: errors.New("broker unavailable")}
	m := NewManager(store, queue, time.Hour)

	_, err := m.Submit(context.Background(), &interfaces.JobRequest{KeyType: interfaces.KeyTypeEd25519})
	require.Error(t, err)
	assert.False(t, interfaces.IsValidation(err))

	// The submitted record survives the failed publish; the gap is
	// covered by client retry, not by rolling back the write.
	require.Len(t, queue.published, 1)
	rec, err := m.Result(context.Background(), queue.published[0].RequestID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusSubmitted, rec.Status)
}

func TestResultUnknownID(t *testing.T) {
	m := NewManager(memstore.New(), &captureQueue{}, time.Hour)
	_, err := m.Result(context.Background(), "nope")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestTransitionHelpers(t *testing.T) {
	store := memstore.New()
	m := NewManager(store, &captureQueue{}, time.Hour)
	ctx := context.Background()

	rec, err := m.Submit(ctx, &interfaces.JobRequest{KeyType: interfaces.KeyTypeEd25519})
	require.NoError(t, err)

	require.NoError(t, m.Begin(ctx, rec.RequestID))
	assert.ErrorIs(t, m.Begin(ctx, rec.RequestID), interfaces.ErrConflict)

	require.NoError(t, m.Complete(ctx, rec.RequestID, "pub", "priv"))
	assert.ErrorIs(t, m.Fail(ctx, rec.RequestID, "late"), interfaces.ErrConflict)

	final, err := m.Result(ctx, rec.RequestID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusComplete, final.Status)
	assert.Equal(t, "pub", final.PublicKey)
}
