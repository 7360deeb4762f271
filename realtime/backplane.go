package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChatChannel is the redis pub/sub channel carrying chat frames between instances
const ChatChannel = "delyra:chat"

// Backplane relays room broadcasts between hub instances
type Backplane interface {
	Publish(ctx context.Context, origin, room string, frame []byte) error
}

type relayEnvelope struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisBackplane uses redis pub/sub as the relay
type RedisBackplane struct {
	rdb     *redis.Client
	channel string
}

// NewRedisBackplane creates a backplane on ChatChannel
func NewRedisBackplane(rdb *redis.Client) *RedisBackplane {
	return &RedisBackplane{rdb: rdb, channel: ChatChannel}
}

// Publish sends frame for room tagged with the publishing instance
func (b *RedisBackplane) Publish(ctx context.Context, origin, room string, frame []byte) error {
	payload, err := json.Marshal(relayEnvelope{Origin: origin, Room: room, Frame: frame})
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	return nil
}

// Listen delivers frames from other instances to hub until ctx is cancelled
func (b *RedisBackplane) Listen(ctx context.Context, hub *Hub) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer func() {
		_ = sub.Close()
	}()

	// wait for the subscription to be confirmed before relaying
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := relay(hub, []byte(msg.Payload)); err != nil {
				hub.log.Warn("dropping malformed backplane message", zap.Error(err))
			}
		}
	}
}

func relay(hub *Hub, payload []byte) error {
	var env relayEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	if env.Room == "" {
		return fmt.Errorf("missing room")
	}
	hub.Deliver(env.Origin, env.Room, env.Frame)
	return nil
}
