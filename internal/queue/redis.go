package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default Redis keys.
const (
	DefaultRedisKey      = "enricher:queue:jobs"
	DefaultDeadLetterKey = "enricher:queue:failed"
)

// RedisOptions configures a RedisSource.
type RedisOptions struct {
	Key           string
	DeadLetterKey string
	// Wait bounds each blocking pop so the consumer can observe cancellation.
	Wait        time.Duration
	MaxAttempts int
}

// RedisSource consumes envelopes from a Redis list. Producers LPUSH; the
// source moves each message onto a processing list with BRPOPLPUSH and
// removes it on Ack, so a crashed worker leaves its message recoverable.
// Retries are re-pushed with an attempts counter in the envelope; exhausted
// and malformed messages go to the dead-letter list.
type RedisSource struct {
	client *redis.Client
	opts   RedisOptions
}

// NewRedisClient parses a redis:// URL, falling back to a bare address.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

func NewRedisSource(client *redis.Client, opts RedisOptions) *RedisSource {
	if opts.Key == "" {
		opts.Key = DefaultRedisKey
	}
	if opts.DeadLetterKey == "" {
		opts.DeadLetterKey = DefaultDeadLetterKey
	}
	if opts.Wait <= 0 {
		opts.Wait = time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &RedisSource{client: client, opts: opts}
}

func (s *RedisSource) processingKey() string {
	return s.opts.Key + ":processing"
}

func (s *RedisSource) Receive(ctx context.Context) (*Delivery, error) {
	body, err := s.client.BRPopLPush(ctx, s.opts.Key, s.processingKey(), s.opts.Wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("popping from %s: %w", s.opts.Key, err)
	}

	d := &Delivery{Body: []byte(body)}
	var env envelope
	if json.Unmarshal(d.Body, &env) == nil {
		d.Attempts = env.Attempts
	}
	return d, nil
}

func (s *RedisSource) Ack(ctx context.Context, d *Delivery) error {
	return s.client.LRem(ctx, s.processingKey(), 1, string(d.Body)).Err()
}

func (s *RedisSource) Nack(ctx context.Context, d *Delivery, cause error) error {
	attempts := d.Attempts + 1
	if attempts >= s.opts.MaxAttempts {
		return s.DeadLetter(ctx, d, cause)
	}
	retry, err := withField(d.Body, "attempts", attempts)
	if err != nil {
		return s.DeadLetter(ctx, d, cause)
	}
	return s.move(ctx, d, s.opts.Key, retry)
}

// DeadLetter moves the delivery to the dead-letter list, annotated with the
// failure cause when the body is a JSON object.
func (s *RedisSource) DeadLetter(ctx context.Context, d *Delivery, cause error) error {
	body := d.Body
	if annotated, err := withField(d.Body, "error", errorText(cause)); err == nil {
		body = annotated
	}
	return s.move(ctx, d, s.opts.DeadLetterKey, body)
}

func (s *RedisSource) move(ctx context.Context, d *Delivery, dest string, body []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, s.processingKey(), 1, string(d.Body))
		pipe.LPush(ctx, dest, string(body))
		return nil
	})
	if err != nil {
		return fmt.Errorf("moving delivery to %s: %w", dest, err)
	}
	return nil
}

// Recover moves messages left on the processing list by a previous worker
// back onto the queue. It returns how many were moved.
func (s *RedisSource) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := s.client.RPopLPush(ctx, s.processingKey(), s.opts.Key).Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recovering processing list: %w", err)
		}
		n++
	}
}

func (s *RedisSource) Stats(ctx context.Context) (Stats, error) {
	st := Stats{}
	for name, key := range map[string]string{
		"pending":     s.opts.Key,
		"running":     s.processingKey(),
		"dead_letter": s.opts.DeadLetterKey,
	} {
		n, err := s.client.LLen(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("measuring %s: %w", key, err)
		}
		st[name] = int(n)
	}
	return st, nil
}

// RedisPublisher pushes envelopes onto a Redis list.
type RedisPublisher struct {
	client *redis.Client
	key    string
}

func NewRedisPublisher(client *redis.Client, key string) *RedisPublisher {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisPublisher{client: client, key: key}
}

// Publish returns an empty id; list entries carry no identity.
func (p *RedisPublisher) Publish(ctx context.Context, job Job) (string, error) {
	if !job.Type.Valid() {
		return "", fmt.Errorf("unknown job type %q", job.Type)
	}
	body, err := job.Encode()
	if err != nil {
		return "", fmt.Errorf("encoding job: %w", err)
	}
	if err := p.client.LPush(ctx, p.key, string(body)).Err(); err != nil {
		return "", fmt.Errorf("pushing to %s: %w", p.key, err)
	}
	return "", nil
}

// withField sets one top-level field on a JSON object body.
func withField(body []byte, key string, value any) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("body is not a JSON object")
	}
	m[key] = value
	return json.Marshal(m)
}
