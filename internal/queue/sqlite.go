package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hakivo/enricher/internal/storage"
)

// JobStore abstracts the job table operations.
type JobStore interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
	ClaimNextJob(ctx context.Context, types []string, lease time.Duration) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
	DeadLetterJob(ctx context.Context, id string, errMsg string) error
	JobStats(ctx context.Context) (map[string]int, error)
}

// DBSource consumes jobs from the relational jobs table. Claimed jobs hold a
// lease; a job whose worker dies is reclaimed after the lease expires.
type DBSource struct {
	store JobStore
	types []string
	lease time.Duration
}

// NewDBSource creates a DBSource claiming every known job type.
// If lease is <= 0, it defaults to 10 minutes.
func NewDBSource(store JobStore, lease time.Duration) *DBSource {
	if lease <= 0 {
		lease = 10 * time.Minute
	}
	types := make([]string, len(JobTypes))
	for i, t := range JobTypes {
		types[i] = string(t)
	}
	return &DBSource{store: store, types: types, lease: lease}
}

func (s *DBSource) Receive(ctx context.Context) (*Delivery, error) {
	job, err := s.store.ClaimNextJob(ctx, s.types, s.lease)
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return nil, nil
	}
	return &Delivery{ID: job.ID, Body: []byte(job.PayloadJSON), Attempts: job.Attempts}, nil
}

func (s *DBSource) Ack(ctx context.Context, d *Delivery) error {
	return s.store.CompleteJob(ctx, d.ID)
}

// Nack records the failure; the store applies backoff and the attempt limit.
func (s *DBSource) Nack(ctx context.Context, d *Delivery, cause error) error {
	return s.store.FailJob(ctx, d.ID, errorText(cause))
}

func (s *DBSource) DeadLetter(ctx context.Context, d *Delivery, cause error) error {
	return s.store.DeadLetterJob(ctx, d.ID, errorText(cause))
}

func (s *DBSource) Stats(ctx context.Context) (Stats, error) {
	st, err := s.store.JobStats(ctx)
	if err != nil {
		return nil, err
	}
	return Stats(st), nil
}

// DBPublisher enqueues jobs into the jobs table.
type DBPublisher struct {
	store       JobStore
	maxAttempts int
}

// NewDBPublisher creates a DBPublisher. maxAttempts <= 0 uses the store default.
func NewDBPublisher(store JobStore, maxAttempts int) *DBPublisher {
	return &DBPublisher{store: store, maxAttempts: maxAttempts}
}

func (p *DBPublisher) Publish(ctx context.Context, job Job) (string, error) {
	if !job.Type.Valid() {
		return "", fmt.Errorf("unknown job type %q", job.Type)
	}
	body, err := job.Encode()
	if err != nil {
		return "", fmt.Errorf("encoding job: %w", err)
	}
	id := uuid.New().String()
	err = p.store.EnqueueJob(ctx, storage.Job{
		ID:          id,
		Type:        string(job.Type),
		PayloadJSON: string(body),
		MaxAttempts: p.maxAttempts,
	})
	if err != nil {
		return "", fmt.Errorf("enqueueing job: %w", err)
	}
	return id, nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
