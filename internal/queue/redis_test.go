package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func newTestSource(client *redis.Client) *RedisSource {
	return NewRedisSource(client, RedisOptions{Key: "q", DeadLetterKey: "q:dead", Wait: 50 * time.Millisecond, MaxAttempts: 2})
}

func TestRedis_PublishReceiveAck(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	if _, err := NewRedisPublisher(client, "q").Publish(ctx, NewJob(EnrichNews, "a1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	src := newTestSource(client)
	d, err := src.Receive(ctx)
	if err != nil || d == nil {
		t.Fatalf("Receive() = %v, %v", d, err)
	}
	job, err := Decode(d.Body)
	if err != nil || job.EntityID != "a1" {
		t.Fatalf("Decode() = %+v, %v", job, err)
	}
	if n, _ := client.LLen(ctx, "q:processing").Result(); n != 1 {
		t.Errorf("processing length = %d, want 1", n)
	}

	if err := src.Ack(ctx, d); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if mr.Exists("q:processing") {
		t.Error("processing list not emptied after Ack")
	}
}

func TestRedis_ReceiveEmpty(t *testing.T) {
	_, client := newTestRedis(t)
	d, err := newTestSource(client).Receive(context.Background())
	if err != nil || d != nil {
		t.Errorf("Receive() = %v, %v; want nil, nil", d, err)
	}
}

func TestRedis_NackRetriesThenDeadLetters(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	src := newTestSource(client)

	if _, err := NewRedisPublisher(client, "q").Publish(ctx, NewJob(EnrichBill, "b1")); err != nil {
		t.Fatal(err)
	}

	d, err := src.Receive(ctx)
	if err != nil || d == nil {
		t.Fatalf("Receive: %v, %v", d, err)
	}
	if err := src.Nack(ctx, d, errors.New("boom")); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	d, err = src.Receive(ctx)
	if err != nil || d == nil {
		t.Fatalf("second Receive: %v, %v", d, err)
	}
	if d.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", d.Attempts)
	}
	if err := src.Nack(ctx, d, errors.New("boom again")); err != nil {
		t.Fatalf("second Nack: %v", err)
	}

	if n, _ := client.LLen(ctx, "q").Result(); n != 0 {
		t.Errorf("queue length = %d, want 0", n)
	}
	dead, err := client.LRange(ctx, "q:dead", 0, -1).Result()
	if err != nil || len(dead) != 1 {
		t.Fatalf("dead letters = %v, %v", dead, err)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(dead[0]), &m); err != nil {
		t.Fatal(err)
	}
	if m["error"] != "boom again" || m["bill_id"] != "b1" {
		t.Errorf("dead letter = %s", dead[0])
	}
}

func TestRedis_ConsumerDeadLettersGarbage(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	client.LPush(ctx, "q", "garbage")

	h := &recordingHandler{}
	c := NewConsumer(newTestSource(client), h, 1, time.Millisecond)
	if done, err := c.RunOnce(ctx); err != nil || !done {
		t.Fatalf("RunOnce() = %v, %v", done, err)
	}
	dead, _ := client.LRange(ctx, "q:dead", 0, -1).Result()
	if len(dead) != 1 || dead[0] != "garbage" {
		t.Errorf("dead letters = %v", dead)
	}
	if n, _ := client.LLen(ctx, "q:processing").Result(); n != 0 {
		t.Errorf("processing length = %d, want 0", n)
	}
}

func TestRedis_Recover(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	client.LPush(ctx, "q:processing", "a", "b")

	n, err := newTestSource(client).Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if n != 2 {
		t.Errorf("recovered = %d, want 2", n)
	}
	if l, _ := client.LLen(ctx, "q").Result(); l != 2 {
		t.Errorf("queue length = %d, want 2", l)
	}
}

func TestRedis_Stats(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	client.LPush(ctx, "q", "x", "y")
	client.LPush(ctx, "q:dead", "z")

	st, err := newTestSource(client).Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st["pending"] != 2 || st["dead_letter"] != 1 || st["running"] != 0 {
		t.Errorf("Stats() = %v", st)
	}
}
