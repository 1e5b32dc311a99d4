package queue

import "context"

// Delivery is one received message.
type Delivery struct {
	ID       string
	Body     []byte
	Attempts int
}

// Source is a queue transport as seen by the consumer.
type Source interface {
	// Receive returns the next delivery, or nil when none is available yet.
	Receive(ctx context.Context) (*Delivery, error)
	// Ack removes a successfully handled delivery.
	Ack(ctx context.Context, d *Delivery) error
	// Nack returns a failed delivery for retry, or dead-letters it once its
	// attempts are exhausted.
	Nack(ctx context.Context, d *Delivery, cause error) error
	// DeadLetter removes a delivery that can never succeed.
	DeadLetter(ctx context.Context, d *Delivery, cause error) error
}

// Stats is a snapshot of queue depth by state.
type Stats map[string]int

// StatsReporter is implemented by sources that can report their depth.
type StatsReporter interface {
	Stats(ctx context.Context) (Stats, error)
}

// Publisher places jobs on a queue. It returns the delivery id when the
// transport assigns one.
type Publisher interface {
	Publish(ctx context.Context, job Job) (string, error)
}
