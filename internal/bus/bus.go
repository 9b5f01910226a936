package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Message is one domain event on the wire. ID is the outbox event id, so
// consumers can deduplicate across redeliveries.
type Message struct {
	ID        string
	Name      string
	Payload   []byte
	Aggregate string
}

// Publisher delivers outbox messages to downstream consumers. Delivery is
// at-least-once; consumers must treat Message.ID as their idempotency key.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// RedisPublisher appends messages to a Redis stream.
type RedisPublisher struct {
	client redis.Cmdable
	stream string
}

func NewRedisPublisher(client redis.Cmdable, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream}
}

func (p *RedisPublisher) Publish(ctx context.Context, msg Message) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event_id":     msg.ID,
			"event_name":   msg.Name,
			"payload":      string(msg.Payload),
			"aggregate_id": msg.Aggregate,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s to stream %s: %w", msg.Name, p.stream, err)
	}
	return nil
}

// MemoryPublisher collects messages in memory for tests.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message

	// FailNext makes the next Publish call fail, for retry paths.
	FailNext bool
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailNext {
		p.FailNext = false
		return fmt.Errorf("publisher unavailable")
	}
	p.messages = append(p.messages, msg)
	return nil
}

// Messages returns a copy of everything published so far.
func (p *MemoryPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
