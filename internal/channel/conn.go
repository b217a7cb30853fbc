// Package channel provides a reconnecting pub/sub and point-query client
// over a shared key-value store.
//
// A Channel owns two kinds of connection handles: one query handle used for
// Get/Set/Exists/Publish, and one subscribe handle per SubscribeLoop. A
// store connection cannot serve a blocking subscription and point queries
// at the same time, so the roles never share a handle.
//
// Payload conventions are left to callers. Marker channels carry the data in
// the notification; image channels carry only a notification and the
// handler fetches the bytes with Query on the same key.
package channel

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("channel: key not found")

	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("channel: closed")

	// ErrConnection wraps transport failures. A handle that returned it is
	// discarded and replaced.
	ErrConnection = errors.New("channel: connection failed")
)

// Handler receives one notification. It runs on the subscribe goroutine.
type Handler func(channel string, payload []byte)

// Conn is a single store connection.
type Conn interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe blocks delivering notifications until ctx is done (nil
	// error) or the connection fails or is closed (non-nil error).
	Subscribe(ctx context.Context, channel string, h Handler) error

	Close() error
}

// Dialer opens new connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialFunc adapts a function to the Dialer interface.
type DialFunc func(ctx context.Context) (Conn, error)

// Dial calls f(ctx).
func (f DialFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}
