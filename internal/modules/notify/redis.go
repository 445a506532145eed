// README: Redis pub/sub fan-out for multi-instance deployments.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"hmarket/internal/types"
)

const channelPrefix = "notify:%s"

// RedisNotifier publishes notifications on a per-recipient channel so every
// running instance can serve the recipient's live connection.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (r *RedisNotifier) Send(ctx context.Context, userID types.ID, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channelKey(userID), payload).Err()
}

// Subscribe listens for a recipient's notifications until ctx is cancelled.
func (r *RedisNotifier) Subscribe(ctx context.Context, userID types.ID) (<-chan Notification, func()) {
	sub := r.client.Subscribe(ctx, channelKey(userID))
	out := make(chan Notification, subscriberBuffer)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var n Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}

func channelKey(userID types.ID) string {
	return fmt.Sprintf(channelPrefix, string(userID))
}
