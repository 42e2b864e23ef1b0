package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wagerbot/internal/events"
	"wagerbot/internal/metrics"
)

const publishTimeout = 3 * time.Second

// ConnectRedis opens a client and checks it answers.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Redis broadcasts every status event as JSON on a pub/sub channel.
type Redis struct {
	r       *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedis(r *redis.Client, channel string, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	if channel == "" {
		channel = events.Topic
	}
	return &Redis{r: r, channel: channel, log: log.Named("redis")}
}

func (b *Redis) Notify(ctx context.Context, e events.Event) {
	if err := b.publish(ctx, e); err != nil {
		metrics.NotifyFailures.WithLabelValues("redis").Inc()
		b.log.Warn("failed to publish status event",
			zap.String("event_id", e.ID),
			zap.Int64("wager_id", e.WagerID),
			zap.Error(err),
		)
	}
}

func (b *Redis) publish(ctx context.Context, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	return b.r.Publish(ctx, b.channel, payload).Err()
}

func (b *Redis) Close() error {
	return b.r.Close()
}
