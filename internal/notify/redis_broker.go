package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker carries change events over Redis pub/sub, one channel per table
// (<prefix>:<table>), so multiple API instances observe the same feed.
type RedisBroker struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisBroker constructs a broker on the given client.
func NewRedisBroker(client *redis.Client, prefix string, logger *zap.Logger) *RedisBroker {
	if prefix == "" {
		prefix = "changefeed"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{client: client, prefix: prefix, logger: logger}
}

// Publish sends the event on its table channel.
func (b *RedisBroker) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	channel := b.channel(event.Table)
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change event on %s: %w", channel, err)
	}
	return nil
}

// Subscribe follows the channels for the given tables until teardown.
func (b *RedisBroker) Subscribe(ctx context.Context, tables ...string) (<-chan Event, func(), error) {
	channels := make([]string, len(tables))
	for i, table := range tables {
		channels[i] = b.channel(table)
	}

	sub := b.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe change feed: %w", err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("dropping malformed change event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		_ = sub.Close()
	}
	return out, cancel, nil
}

func (b *RedisBroker) channel(table string) string {
	return fmt.Sprintf("%s:%s", b.prefix, table)
}
