package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meghashyamc/clinicsearch/config"
	"github.com/meghashyamc/clinicsearch/logger"
)

var ErrRedisNotConfigured = errors.New("redis address is not configured")

// RedisBus publishes through a redis channel so that every instance sharing
// it delivers the message to its own local subscribers.
type RedisBus struct {
	logger  logger.Logger
	rdb     *redis.Client
	channel string
	hub     *Hub
}

func NewRedisBus(logger logger.Logger, cfg *config.Config, hub *Hub) (*RedisBus, error) {
	addr := cfg.GetRedisAddr()
	if addr == "" {
		return nil, ErrRedisNotConfigured
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("could not reach redis", "addr", addr, "err", err.Error())
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		logger:  logger,
		rdb:     rdb,
		channel: cfg.GetRedisChannel(),
		hub:     hub,
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		b.logger.Error("failed to publish to redis", "topic", msg.Topic, "err", err.Error())
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(topic string) *Subscriber {
	return b.hub.Subscribe(topic)
}

// StartForwarder delivers every message received on the redis channel to the
// local hub until ctx is done.
func (b *RedisBus) StartForwarder(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.logger.Warn("bad redis event payload", "err", err.Error())
					continue
				}
				b.hub.Broadcast(msg)
			}
		}
	}()

	return nil
}

func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
