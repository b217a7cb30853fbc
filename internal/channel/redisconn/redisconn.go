// Package redisconn implements channel.Conn on a Redis server.
//
// Keys and channels are used verbatim, so the ":"-separated names written by
// existing camera producers are read as-is.
package redisconn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/smazurov/nectar/internal/channel"
	"github.com/smazurov/nectar/internal/logging"
)

// Dialer opens single-socket Redis connections.
type Dialer struct {
	Addr     string
	Password string
	DB       int
}

// NewDialer returns a dialer for addr ("host:port").
func NewDialer(addr string) *Dialer {
	return &Dialer{Addr: addr}
}

// Dial connects and pings the server.
func (d *Dialer) Dial(ctx context.Context) (channel.Conn, error) {
	id := uuid.NewString()
	client := redis.NewClient(&redis.Options{
		Addr:       d.Addr,
		Password:   d.Password,
		DB:         d.DB,
		PoolSize:   1,
		MaxRetries: -1,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis %s: %w", channel.ErrConnection, d.Addr, err)
	}
	logging.GetLogger("channel").Debug("Redis connection opened", "addr", d.Addr, "conn_id", id)
	return &Conn{client: client, id: id}, nil
}

// Conn is one Redis connection.
type Conn struct {
	client *redis.Client
	id     string

	mu     sync.Mutex
	pubsub *redis.PubSub
}

// ID returns the connection identifier used in logs.
func (c *Conn) ID() string {
	return c.id
}

// Get returns channel.ErrNotFound for missing keys.
func (c *Conn) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, channel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

// Set stores value without expiry.
func (c *Conn) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (c *Conn) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Publish sends payload on channel.
func (c *Conn) Publish(ctx context.Context, ch string, payload []byte) error {
	if err := c.client.Publish(ctx, ch, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", ch, err)
	}
	return nil
}

// Subscribe blocks until ctx is done or the connection fails.
func (c *Conn) Subscribe(ctx context.Context, ch string, h channel.Handler) error {
	ps := c.client.Subscribe(ctx, ch)
	c.mu.Lock()
	c.pubsub = ps
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.pubsub = nil
		c.mu.Unlock()
		_ = ps.Close()
	}()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: redis subscribe %s: %w", channel.ErrConnection, ch, err)
	}

	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: redis receive %s: %w", channel.ErrConnection, ch, err)
		}
		h(msg.Channel, []byte(msg.Payload))
	}
}

// Close closes the client and any active subscription, which interrupts a
// blocked Subscribe.
func (c *Conn) Close() error {
	c.mu.Lock()
	ps := c.pubsub
	c.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
	return c.client.Close()
}
