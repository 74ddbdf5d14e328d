package interfaces

import "context"

// Delivery is one attempt at handing a JobRequest to a consumer. The
// same request may be delivered more than once; Attempt counts
// deliveries starting at 1.
type Delivery interface {
	Request() *JobRequest
	Attempt() int

	// Ack removes the message from the queue. Called on success, on
	// permanent failure (the record carries the error) and on
	// duplicate delivery.
	Ack() error

	// Nak asks the queue to redeliver after its visibility timeout.
	// Once the delivery count reaches the queue's maximum the message
	// is diverted to the dead-letter path instead.
	Nak() error
}

// Handler processes one delivery. It must call Ack or Nak; a handler
// that does neither leaves redelivery to the visibility timeout.
type Handler func(ctx context.Context, d Delivery)

// JobQueue is a durable at-least-once channel of JobRequests.
type JobQueue interface {
	// Publish enqueues one job.
	Publish(ctx context.Context, req *JobRequest) error

	// Consume delivers messages to h until ctx is canceled. Multiple
	// concurrent Consume calls share the same queue; each message goes
	// to exactly one consumer per delivery attempt.
	Consume(ctx context.Context, h Handler) error

	Close() error
}
