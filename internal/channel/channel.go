package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/nectar/internal/events"
	"github.com/smazurov/nectar/internal/logging"
	"github.com/smazurov/nectar/internal/metrics"
)

// Options configures a Channel.
type Options struct {
	// Name identifies the channel owner in logs and metrics.
	Name    string
	Backoff Backoff
	Bus     *events.Bus
	Logger  *slog.Logger
}

// Channel is a reconnecting client with a query handle and one subscribe
// handle per running SubscribeLoop.
type Channel struct {
	dialer  Dialer
	name    string
	backoff Backoff
	bus     *events.Bus
	logger  *slog.Logger

	queryMu sync.Mutex
	query   Conn

	subMu sync.Mutex
	subs  map[Conn]string

	closing    atomic.Bool
	done       chan struct{}
	closeOnce  sync.Once
	reconnects atomic.Uint64
}

// New creates a channel. No connection is opened until Connect, a query or
// a SubscribeLoop needs one.
func New(dialer Dialer, opts Options) *Channel {
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("channel")
	}
	if opts.Name != "" {
		logger = logger.With("name", opts.Name)
	}
	return &Channel{
		dialer:  dialer,
		name:    opts.Name,
		backoff: opts.Backoff,
		bus:     opts.Bus,
		logger:  logger,
		subs:    make(map[Conn]string),
		done:    make(chan struct{}),
	}
}

// Connect opens the query handle.
func (c *Channel) Connect(ctx context.Context) error {
	_, err := c.EnsureQuery(ctx)
	return err
}

// EnsureQuery returns the live query handle, dialing a replacement when the
// previous one was discarded.
func (c *Channel) EnsureQuery(ctx context.Context) (Conn, error) {
	c.queryMu.Lock()
	defer c.queryMu.Unlock()
	return c.ensureQueryLocked(ctx)
}

func (c *Channel) ensureQueryLocked(ctx context.Context) (Conn, error) {
	if c.closing.Load() {
		return nil, ErrClosed
	}
	if c.query != nil {
		return c.query, nil
	}
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: dial query handle: %w", ErrConnection, err)
	}
	c.query = conn
	return conn, nil
}

// discardQueryLocked drops a broken query handle. The next call dials a
// new one.
func (c *Channel) discardQueryLocked(err error) {
	if c.query == nil {
		return
	}
	c.logger.Warn("Discarding query connection", "error", err)
	_ = c.query.Close()
	c.query = nil
	metrics.RecordQueryFailure(c.name)
}

// withQuery runs fn on the query handle and discards the handle on any
// error other than ErrNotFound.
func (c *Channel) withQuery(ctx context.Context, fn func(Conn) error) error {
	c.queryMu.Lock()
	defer c.queryMu.Unlock()

	conn, err := c.ensureQueryLocked(ctx)
	if err != nil {
		return err
	}
	err = fn(conn)
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.discardQueryLocked(err)
	if errors.Is(err, ErrConnection) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnection, err)
}

// Query fetches the value stored at key.
func (c *Channel) Query(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.withQuery(ctx, func(conn Conn) error {
		v, err := conn.Get(ctx, key)
		value = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value at key.
func (c *Channel) Set(ctx context.Context, key string, value []byte) error {
	return c.withQuery(ctx, func(conn Conn) error {
		return conn.Set(ctx, key, value)
	})
}

// Exists reports whether key is present.
func (c *Channel) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := c.withQuery(ctx, func(conn Conn) error {
		v, err := conn.Exists(ctx, key)
		ok = v
		return err
	})
	return ok, err
}

// Publish sends payload to every subscriber of channel.
func (c *Channel) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.withQuery(ctx, func(conn Conn) error {
		return conn.Publish(ctx, channel, payload)
	})
}

// SubscribeLoop subscribes to channel and keeps the subscription alive until
// ctx is cancelled or Close is called. Every failure closes the subscribe
// handle, waits with bounded exponential backoff, dials a new handle and
// resubscribes. It never gives up on its own.
//
// It returns ctx.Err() or ErrClosed.
func (c *Channel) SubscribeLoop(ctx context.Context, channel string, h Handler) error {
	logger := c.logger.With("channel", channel)
	attempt := 0
	dropped := false

	defer metrics.SetSubscribed(channel, false)

	for {
		if err := c.stopped(ctx); err != nil {
			c.publish(channel, "closed", attempt, nil)
			return err
		}

		conn, err := c.dialer.Dial(ctx)
		if err != nil {
			attempt++
			logger.Warn("Subscribe dial failed", "attempt", attempt, "error", err)
			c.publish(channel, "reconnecting", attempt, err)
			c.wait(ctx, c.backoff.Delay(attempt))
			continue
		}

		if !c.trackSub(conn, channel) {
			_ = conn.Close()
			continue
		}
		if dropped {
			dropped = false
			c.reconnects.Add(1)
			metrics.RecordReconnect(channel)
			logger.Info("Resubscribed", "attempt", attempt)
		} else {
			logger.Debug("Subscribed")
		}
		c.publish(channel, "subscribed", attempt, nil)
		metrics.SetSubscribed(channel, true)

		started := time.Now()
		err = conn.Subscribe(ctx, channel, h)
		c.untrackSub(conn)
		_ = conn.Close()
		metrics.SetSubscribed(channel, false)

		if stopErr := c.stopped(ctx); stopErr != nil {
			c.publish(channel, "closed", attempt, nil)
			return stopErr
		}

		if time.Since(started) >= c.backoff.StableAfter {
			attempt = 0
		}
		attempt++
		dropped = true
		if err == nil {
			err = ErrConnection
		}
		logger.Warn("Subscription dropped", "attempt", attempt, "error", err)
		c.publish(channel, "reconnecting", attempt, err)
		c.wait(ctx, c.backoff.Delay(attempt))
	}
}

// Reconnects returns how many subscriptions were re-established after a
// drop, across all loops of this channel.
func (c *Channel) Reconnects() uint64 {
	return c.reconnects.Load()
}

// Closing reports whether Close has been called.
func (c *Channel) Closing() bool {
	return c.closing.Load()
}

// Close sets the closing flag and closes every handle. Closing a subscribe
// handle interrupts its blocking Subscribe call.
func (c *Channel) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		close(c.done)

		c.subMu.Lock()
		for conn := range c.subs {
			errs = append(errs, conn.Close())
		}
		c.subs = make(map[Conn]string)
		c.subMu.Unlock()

		c.queryMu.Lock()
		if c.query != nil {
			errs = append(errs, c.query.Close())
			c.query = nil
		}
		c.queryMu.Unlock()
	})
	return errors.Join(errs...)
}

func (c *Channel) stopped(ctx context.Context) error {
	if c.closing.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// trackSub records an active subscribe handle so Close can interrupt it.
// It refuses the handle when Close already ran.
func (c *Channel) trackSub(conn Conn, channel string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.closing.Load() {
		return false
	}
	c.subs[conn] = channel
	return true
}

func (c *Channel) untrackSub(conn Conn) {
	c.subMu.Lock()
	delete(c.subs, conn)
	c.subMu.Unlock()
}

func (c *Channel) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-c.done:
	}
}

func (c *Channel) publish(channel, state string, attempt int, err error) {
	if c.bus == nil {
		return
	}
	ev := events.ConnectionEvent{
		Channel:   channel,
		State:     state,
		Attempt:   attempt,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.bus.Publish(ev)
}
