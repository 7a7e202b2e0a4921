package chathub

import (
	"context"
	"encoding/json"
	"fmt"

	"shelterlink/backend/internal/logging"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Envelope targets.
const (
	TargetUser = "user"
	TargetRoom = "room"
)

// Envelope carries an encoded event between instances.
type Envelope struct {
	Origin  string          `json:"origin"`
	Target  string          `json:"target"`
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload"`
}

// Broker fans envelopes out to every instance and keeps the shared presence
// set.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe delivers envelopes from all instances, including this one,
	// until ctx is done.
	Subscribe(ctx context.Context) (<-chan Envelope, error)

	SetOnline(ctx context.Context, userID string, online bool) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	OnlineCount(ctx context.Context) (int64, error)
}

const (
	DefaultBroadcastChannel = "shelterlink:realtime"
	DefaultPresenceKey      = "shelterlink:presence"
)

// RedisBroker uses one pub/sub channel for fan-out and a hash of per-user
// session counts for presence, so a user connected to two instances stays
// online until both sessions end.
type RedisBroker struct {
	Client      *redis.Client
	Channel     string
	PresenceKey string
	logger      *zap.Logger
}

// NewRedisBroker обгортає готовий клієнт Redis.
func NewRedisBroker(client *redis.Client, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{
		Client:      client,
		Channel:     DefaultBroadcastChannel,
		PresenceKey: DefaultPresenceKey,
		logger:      logging.OrNop(logger).Named("redis-broker"),
	}
}

func (b *RedisBroker) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return b.Client.Publish(ctx, b.Channel, data).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	pubsub := b.Client.Subscribe(ctx, b.Channel)
	// wait for the subscription to be confirmed before reporting success
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.Channel, err)
	}

	out := make(chan Envelope, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.logger.Warn("error unmarshalling envelope", zap.Error(err))
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBroker) SetOnline(ctx context.Context, userID string, online bool) error {
	if online {
		return b.Client.HIncrBy(ctx, b.PresenceKey, userID, 1).Err()
	}
	n, err := b.Client.HIncrBy(ctx, b.PresenceKey, userID, -1).Result()
	if err != nil {
		return err
	}
	if n <= 0 {
		return b.Client.HDel(ctx, b.PresenceKey, userID).Err()
	}
	return nil
}

func (b *RedisBroker) IsOnline(ctx context.Context, userID string) (bool, error) {
	return b.Client.HExists(ctx, b.PresenceKey, userID).Result()
}

func (b *RedisBroker) OnlineCount(ctx context.Context) (int64, error) {
	return b.Client.HLen(ctx, b.PresenceKey).Result()
}

var _ Broker = (*RedisBroker)(nil)
