package broadcast

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChannelPrefix namespaces bus keys on the Redis server.
const ChannelPrefix = "staffchat:"

// RedisBus relays envelopes through Redis pub/sub so every process sees every publish.
// One pattern subscription per process feeds a LocalBus that owns the subscribers.
type RedisBus struct {
	client *redis.Client
	pubsub *redis.PubSub
	local  *LocalBus
	logger *zap.Logger

	wg   sync.WaitGroup
	once sync.Once
}

// NewRedisBus subscribes to every staffchat channel and starts the relay loop.
func NewRedisBus(ctx context.Context, client *redis.Client, local *LocalBus, logger *zap.Logger) (*RedisBus, error) {
	pubsub := client.PSubscribe(ctx, ChannelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	b := &RedisBus{client: client, pubsub: pubsub, local: local, logger: logger}
	b.wg.Add(1)
	go b.relay()
	return b, nil
}

func (b *RedisBus) relay() {
	defer b.wg.Done()
	for msg := range b.pubsub.Channel() {
		env, err := decodeEnvelope(msg.Channel, msg.Payload)
		if err != nil {
			b.logger.Warn("dropping malformed broadcast", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		if err := b.local.Publish(context.Background(), env); err != nil {
			return
		}
	}
}

// Publish sends env to Redis; local subscribers receive it through the relay.
func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, ChannelPrefix+env.Key, payload).Err()
}

// Subscribe registers a local subscription.
func (b *RedisBus) Subscribe(key string) *Subscription {
	return b.local.Subscribe(key)
}

// Close stops the relay and ends every local subscription.
func (b *RedisBus) Close() error {
	var err error
	b.once.Do(func() {
		err = b.pubsub.Close()
		b.wg.Wait()
		_ = b.local.Close()
	})
	return err
}

func decodeEnvelope(channel, payload string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Envelope{}, err
	}
	if env.Key == "" {
		env.Key = strings.TrimPrefix(channel, ChannelPrefix)
	}
	return env, nil
}
