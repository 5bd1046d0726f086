package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis stores entries as plain string keys under a prefix so several
// console installations can share one server. Every write is also announced
// on the prefix's "changes" channel for Watch.
type Redis struct {
	client *redis.Client
	prefix string
	origin string
}

type redisChange struct {
	Origin  string `json:"origin"`
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, origin: uuid.NewString()}
}

// OpenRedis parses a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, url string, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedis(client, prefix), nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	r.announce(ctx, redisChange{Key: key, Value: value})
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	r.announce(ctx, redisChange{Key: key, Deleted: true})
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Watch reports writes announced by other Redis stores sharing the prefix.
func (r *Redis) Watch(ctx context.Context) (<-chan Change, error) {
	sub := r.client.Subscribe(ctx, r.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.channel(), err)
	}

	changes := make(chan Change, 16)
	go func() {
		defer close(changes)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var rc redisChange
				if err := json.Unmarshal([]byte(msg.Payload), &rc); err != nil {
					slog.Warn("redis change notification ignored", "error", err)
					continue
				}
				if rc.Origin == r.origin {
					continue
				}
				select {
				case changes <- Change{Key: rc.Key, Value: rc.Value, Deleted: rc.Deleted}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return changes, nil
}

func (r *Redis) channel() string {
	return r.prefix + "changes"
}

func (r *Redis) announce(ctx context.Context, rc redisChange) {
	rc.Origin = r.origin
	payload, err := json.Marshal(rc)
	if err != nil {
		return
	}
	if err := r.client.Publish(ctx, r.channel(), payload).Err(); err != nil {
		slog.Warn("redis change notification failed", "key", rc.Key, "error", err)
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
