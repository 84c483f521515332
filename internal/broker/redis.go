package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/travelbuddy/internal/logger"
)

const (
	channelPrefix  = "room:"
	publishTimeout = 5 * time.Second
)

// RedisBridge routes publishes through Redis pub/sub so every API instance
// (including the publishing one) fans out to its local subscribers. Local
// subscription bookkeeping stays in the wrapped broker. Redis pub/sub keeps
// the at-most-once semantics: a disconnected instance simply misses messages.
type RedisBridge struct {
	local Broker
	cli   *redis.Client
}

func NewRedisBridge(local Broker, cli *redis.Client) *RedisBridge {
	return &RedisBridge{local: local, cli: cli}
}

func (b *RedisBridge) Subscribe(roomID string, sub Subscriber)   { b.local.Subscribe(roomID, sub) }
func (b *RedisBridge) Unsubscribe(roomID string, sub Subscriber) { b.local.Unsubscribe(roomID, sub) }
func (b *RedisBridge) Drop(sub Subscriber)                       { b.local.Drop(sub) }

func (b *RedisBridge) Publish(roomID string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("broker: marshal event room=%s: %v", roomID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.cli.Publish(ctx, channelPrefix+roomID, payload).Err(); err != nil {
		// Best effort: the message is already persisted, readers catch up
		// via history.
		logger.Errorf("broker: redis publish room=%s: %v", roomID, err)
	}
}

// Run consumes the room channels and replays events into the local broker.
// Blocks until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.cli.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Errorf("broker: unmarshal event channel=%s: %v", msg.Channel, err)
				continue
			}
			b.local.Publish(ev.RoomID, ev)
		}
	}
}
