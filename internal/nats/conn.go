package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/smazurov/nectar/internal/channel"
	"github.com/smazurov/nectar/internal/logging"
)

// Dialer opens NATS connections backed by a JetStream KeyValue bucket.
type Dialer struct {
	URL    string
	Bucket string
}

// NewDialer returns a dialer for url using the default bucket.
func NewDialer(url string) *Dialer {
	return &Dialer{URL: url, Bucket: DefaultBucket}
}

// Dial connects and binds the KeyValue bucket, creating it when missing.
// Reconnection is left to channel.Channel, so the client never reconnects
// on its own.
func (d *Dialer) Dial(ctx context.Context) (channel.Conn, error) {
	id := uuid.NewString()
	nc, err := nats.Connect(d.URL,
		nats.Name("nectar-"+id),
		nats.NoReconnect(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: nats %s: %w", channel.ErrConnection, d.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: jetstream: %w", channel.ErrConnection, err)
	}

	bucket := d.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:       bucket,
		History:      1,
		MaxValueSize: MaxPayload,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: bind bucket %s: %w", channel.ErrConnection, bucket, err)
	}

	logging.GetLogger("nats").Debug("NATS connection opened", "url", d.URL, "conn_id", id)
	return &Conn{nc: nc, kv: kv, id: id}, nil
}

// Conn is one NATS connection. Channels map to core subjects and keys to
// entries of the KeyValue bucket.
type Conn struct {
	nc *nats.Conn
	kv jetstream.KeyValue
	id string
}

// Get returns channel.ErrNotFound for missing or deleted keys.
func (c *Conn) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := c.kv.Get(ctx, Key(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, channel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Set stores value under key.
func (c *Conn) Set(ctx context.Context, key string, value []byte) error {
	if _, err := c.kv.Put(ctx, Key(key), value); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key holds a value.
func (c *Conn) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	if errors.Is(err, channel.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Publish sends payload on the channel subject.
func (c *Conn) Publish(_ context.Context, ch string, payload []byte) error {
	if err := c.nc.Publish(Subject(ch), payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", ch, err)
	}
	return nil
}

// Subscribe blocks until ctx is done or the connection is lost or closed.
func (c *Conn) Subscribe(ctx context.Context, ch string, h channel.Handler) error {
	status := c.nc.StatusChanged(nats.DISCONNECTED, nats.CLOSED)
	defer c.nc.RemoveStatusListener(status)

	if c.nc.IsClosed() {
		return fmt.Errorf("%w: nats connection closed", channel.ErrConnection)
	}

	msgs := make(chan *nats.Msg, 64)
	sub, err := c.nc.ChanSubscribe(Subject(ch), msgs)
	if err != nil {
		return fmt.Errorf("%w: nats subscribe %s: %w", channel.ErrConnection, ch, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err := c.nc.FlushWithContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: nats flush: %w", channel.ErrConnection, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-status:
			return fmt.Errorf("%w: nats connection %s", channel.ErrConnection, st)
		case msg := <-msgs:
			h(ch, msg.Data)
		}
	}
}

// Close drains nothing and closes the socket.
func (c *Conn) Close() error {
	c.nc.Close()
	return nil
}
