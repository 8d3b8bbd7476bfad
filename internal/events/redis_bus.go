package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"

	"chatrelay/pkg/logger"
)

// Bus fans events out to channel subscribers. The production implementation
// goes through Redis Pub/Sub so delivery reaches connections on every gateway
// process.
type Bus interface {
	Publish(ctx context.Context, channel string, event string, data any) error
	// PublishExcept behaves like Publish but skips every connection of the
	// named user.
	PublishExcept(ctx context.Context, channel string, event string, data any, excludeUserID string) error
}

type RedisBus struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisBus(client *redis.Client, log *logger.Logger) *RedisBus {
	return &RedisBus{client: client, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, event string, data any) error {
	return b.publish(ctx, channel, event, data, "")
}

func (b *RedisBus) PublishExcept(ctx context.Context, channel string, event string, data any, excludeUserID string) error {
	return b.publish(ctx, channel, event, data, excludeUserID)
}

func (b *RedisBus) publish(ctx context.Context, channel string, event string, data any, exclude string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{
		Frame:   Frame{Event: event, Data: raw},
		Exclude: exclude,
	})
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		b.log.Errorf("publish to %s failed: %v", channel, err)
		return err
	}
	return nil
}

// Broadcaster receives payloads coming off the bus. Implemented by the
// gateway hub.
type Broadcaster interface {
	Broadcast(channel string, payload []byte)
	BroadcastExcept(channel string, payload []byte, excludeUserID string)
	// DropChannel tears down all local subscriptions to a channel that has
	// no future traffic.
	DropChannel(channel string)
}

// Bridge forwards bus traffic into the local hub.
type Bridge struct {
	client *redis.Client
	sink   Broadcaster
	log    *logger.Logger
}

func NewBridge(client *redis.Client, sink Broadcaster, log *logger.Logger) *Bridge {
	return &Bridge{client: client, sink: sink, log: log}
}

// Run blocks until ctx is cancelled, pumping every gateway channel pattern
// into the sink.
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx,
		ChannelPrefixRoom+"*",
		ChannelPrefixConversation+"*",
		ChannelPrefixUser+"*",
	)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.deliver(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (b *Bridge) deliver(channel string, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.log.Errorf("drop malformed event on %s: %v", channel, err)
		return
	}
	if env.Exclude == "" {
		b.sink.Broadcast(channel, payload)
	} else {
		frame, err := json.Marshal(env.Frame)
		if err != nil {
			return
		}
		b.sink.BroadcastExcept(channel, frame, env.Exclude)
	}

	// A deleted room's channel gets no further traffic; drop the local
	// subscriptions once members have seen the announcement.
	if env.Event == EventRoomDeleted && strings.HasPrefix(channel, ChannelPrefixRoom) {
		b.sink.DropChannel(channel)
	}
}
