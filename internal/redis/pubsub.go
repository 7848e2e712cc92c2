package redisx

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/eventix/eventix/internal/realtime"
)

// RealtimePubSub carries realtime deltas from the write path to the fanout
// hub over a single Redis channel, so fanout keeps working when the API runs
// as more than one process.
type RealtimePubSub struct {
	rdb     *redis.Client
	channel string
}

func NewRealtimePubSub(rdb *redis.Client) *RealtimePubSub {
	return &RealtimePubSub{
		rdb:     rdb,
		channel: ChannelRealtime(),
	}
}

func (p *RealtimePubSub) Publish(ctx context.Context, msg realtime.Message) error {
	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe blocks, invoking handler for every message published on the
// realtime channel, until ctx is cancelled. Malformed payloads are skipped.
func (p *RealtimePubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, msg realtime.Message)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg realtime.Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err == nil &&
				msg.Kind != "" {
				handler(ctx, msg)
			}
		}
	}
}
