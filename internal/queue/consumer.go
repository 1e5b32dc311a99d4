package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Handler processes one decoded job. A nil return acknowledges the delivery;
// an error returns it to the source for retry.
type Handler interface {
	Route(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Route(ctx context.Context, job Job) error { return f(ctx, job) }

// Consumer pulls deliveries from a Source and hands decoded jobs to a Handler.
type Consumer struct {
	source      Source
	handler     Handler
	concurrency int
	poll        time.Duration
	logger      *slog.Logger
}

// NewConsumer creates a Consumer running concurrency receive loops.
// If concurrency is <= 0 it defaults to 1; if pollInterval is <= 0, it
// defaults to 500ms.
func NewConsumer(source Source, handler Handler, concurrency int, pollInterval time.Duration) *Consumer {
	if concurrency <= 0 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Consumer{
		source:      source,
		handler:     handler,
		concurrency: concurrency,
		poll:        pollInterval,
		logger:      slog.Default(),
	}
}

// Run processes deliveries until ctx is cancelled. Each loop finishes its
// in-flight job before returning.
func (c *Consumer) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	for i := range c.concurrency {
		g.Go(func() error {
			c.loop(gCtx, i)
			return nil
		})
	}
	return g.Wait()
}

func (c *Consumer) loop(ctx context.Context, worker int) {
	logger := c.logger.With("worker", worker)
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := c.RunOnce(ctx)
		if err != nil {
			logger.Error("consumer iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.poll):
		}
	}
}

// RunOnce receives and processes a single delivery.
// Returns true if a delivery was processed (regardless of success/failure).
func (c *Consumer) RunOnce(ctx context.Context) (bool, error) {
	d, err := c.source.Receive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, fmt.Errorf("receiving: %w", err)
	}
	if d == nil {
		return false, nil
	}

	// Settle the delivery even if ctx was cancelled while the job ran.
	settleCtx := context.WithoutCancel(ctx)

	job, err := Decode(d.Body)
	if err != nil {
		c.logger.Warn("dead-lettering undecodable delivery", "delivery_id", d.ID, "error", err)
		if dlErr := c.source.DeadLetter(settleCtx, d, err); dlErr != nil {
			return true, fmt.Errorf("dead-lettering delivery %s: %w", d.ID, dlErr)
		}
		return true, nil
	}

	logger := c.logger.With("delivery_id", d.ID, "type", job.Type, "entity_id", job.EntityID, "attempt", d.Attempts+1)
	start := time.Now()

	if err := c.handle(ctx, job); err != nil {
		logger.Warn("job failed", "error", err)
		if nackErr := c.source.Nack(settleCtx, d, err); nackErr != nil {
			logger.Error("failed to return job for retry", "error", nackErr)
		}
		return true, nil
	}

	if err := c.source.Ack(settleCtx, d); err != nil {
		return true, fmt.Errorf("acknowledging delivery %s: %w", d.ID, err)
	}
	logger.Info("job complete", "duration_ms", time.Since(start).Milliseconds())
	return true, nil
}

// handle converts a handler panic into an error so one bad job cannot take
// down the consumer.
func (c *Consumer) handle(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(fmt.Sprint("handler panic: ", r))
		}
	}()
	return c.handler.Route(ctx, job)
}
