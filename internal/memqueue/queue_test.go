package memqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyforge/keyforge/internal/interfaces"
)

// consume runs a consumer in the background and forwards deliveries
// until ctx is canceled.
func consume(ctx context.Context, q *Queue) <-chan interfaces.Delivery {
	out := make(chan interfaces.Delivery, 16)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, d interfaces.Delivery) {
			out <- d
		})
	}()
	return out
}

func waitDelivery(t *testing.T, ch <-chan interfaces.Delivery, timeout time.Duration) interfaces.Delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(timeout):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}

func TestPublishConsumeAck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(50*time.Millisecond, 3)
	defer q.Close()
	deliveries := consume(ctx, q)

	require.NoError(t, q.Publish(ctx, &interfaces.JobRequest{RequestID: "r1", KeyType: interfaces.KeyTypeEd25519}))

	d := waitDelivery(t, deliveries, time.Second)
	assert.Equal(t, "r1", d.Request().RequestID)
	assert.Equal(t, 1, d.Attempt())
	require.NoError(t, d.Ack())

	// Acked messages stay gone past the visibility timeout.
	select {
	case <-deliveries:
		t.Fatal("acked message was redelivered")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestNakRedelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(time.Second, 3)
	defer q.Close()
	deliveries := consume(ctx, q)

	require.NoError(t, q.Publish(ctx, &interfaces.JobRequest{RequestID: "r1"}))

	d := waitDelivery(t, deliveries, time.Second)
	require.NoError(t, d.Nak())

	d = waitDelivery(t, deliveries, time.Second)
	assert.Equal(t, 2, d.Attempt())
	require.NoError(t, d.Ack())
}

func TestVisibilityTimeoutRedelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(50*time.Millisecond, 3)
	defer q.Close()
	deliveries := consume(ctx, q)

	require.NoError(t, q.Publish(ctx, &interfaces.JobRequest{RequestID: "r1"}))

	// Never ack the first delivery; the queue must hand it back after
	// the visibility timeout.
	first := waitDelivery(t, deliveries, time.Second)
	assert.Equal(t, 1, first.Attempt())

	second := waitDelivery(t, deliveries, time.Second)
	assert.Equal(t, 2, second.Attempt())
	require.NoError(t, second.Ack())

	// Settling the stale delivery after redelivery is a no-op.
	require.NoError(t, first.Ack())
}

func TestDeadLetterAfterMaxDeliveries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(time.Second, 2)
	defer q.Close()
	deliveries := consume(ctx, q)

	require.NoError(t, q.Publish(ctx, &interfaces.JobRequest{RequestID: "r1"}))

	d := waitDelivery(t, deliveries, time.Second)
	require.NoError(t, d.Nak())
	d = waitDelivery(t, deliveries, time.Second)
	assert.Equal(t, 2, d.Attempt())
	require.NoError(t, d.Nak())

	// Delivery budget spent: the message lands in the dead-letter
	// buffer instead of coming back.
	select {
	case <-deliveries:
		t.Fatal("dead-lettered message was redelivered")
	case <-time.After(100 * time.Millisecond):
	}

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "r1", dead[0].RequestID)
}

func TestPublishCopiesRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(time.Second, 3)
	defer q.Close()
	deliveries := consume(ctx, q)

	req := &interfaces.JobRequest{RequestID: "r1", KeyType: interfaces.KeyTypeRSA, KeyBits: 2048}
	require.NoError(t, q.Publish(ctx, req))
	req.KeyBits = 4096

	d := waitDelivery(t, deliveries, time.Second)
	assert.Equal(t, 2048, d.Request().KeyBits)
	require.NoError(t, d.Ack())
}
