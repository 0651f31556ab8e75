package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Redis is a network-backed Bus over Redis pub/sub, for deployments where
// producers live in other processes. Payloads cross the wire as JSON and are
// decoded back into the topic's payload type, so handlers observe the same
// message shapes as with InProc. Delivery per subscription is sequential in
// receive order.
type Redis struct {
	client  redis.UniversalClient
	logger  *slog.Logger
	prefix  string
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	subs    []*redis.PubSub
	wg      sync.WaitGroup
}

// RedisOption configures a Redis bus.
type RedisOption func(*Redis)

// WithRedisLogger sets the logger used for decode and handler failures.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(b *Redis) { b.logger = l }
}

// WithChannelPrefix namespaces the Redis channels (default "steward:").
func WithChannelPrefix(p string) RedisOption {
	return func(b *Redis) { b.prefix = p }
}

// NewRedis returns a Bus backed by the given Redis client. Close releases
// the subscriptions; the client itself stays owned by the caller.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Redis{
		client: client,
		logger: slog.Default(),
		prefix: "steward:",
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "bus.redis")
	return b
}

// Subscribe registers h for topic. Each subscription runs its own delivery
// goroutine; messages within it are handled one at a time.
func (b *Redis) Subscribe(topic string, h Handler) {
	ps := b.client.Subscribe(b.ctx, b.prefix+topic)

	b.mu.Lock()
	b.subs = append(b.subs, ps)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range ps.Channel() {
			payload, err := decodePayload(topic, []byte(msg.Payload))
			if err != nil {
				b.logger.Error("decode failed", "topic", topic, "error", err)
				continue
			}
			if err := h(b.ctx, payload); err != nil {
				b.logger.Error("handler failed", "topic", topic, "error", err)
			}
		}
	}()
}

// Publish marshals msg and publishes it on the topic channel.
func (b *Redis) Publish(ctx context.Context, topic string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	if err := b.client.Publish(ctx, b.prefix+topic, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close stops delivery and waits for in-flight handlers to return.
func (b *Redis) Close() error {
	b.cancel()
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()
	for _, ps := range subs {
		if err := ps.Close(); err != nil {
			b.logger.Warn("subscription close failed", "error", err)
		}
	}
	b.wg.Wait()
	return nil
}

// decodePayload rebuilds the typed payload for a known topic. Unknown topics
// decode to a generic map so external topics still flow through.
func decodePayload(topic string, data []byte) (any, error) {
	switch topic {
	case TopicInputText, TopicInputTextPartial:
		var evt InputText
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case TopicOutputText:
		var evt OutputText
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	default:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
}
