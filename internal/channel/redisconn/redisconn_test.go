package redisconn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/smazurov/nectar/internal/channel"
)

func TestConnKeyValue(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	conn, err := NewDialer(mr.Addr()).Dial(ctx)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if _, err := conn.Get(ctx, "camera0:width"); !errors.Is(err, channel.ErrNotFound) {
		t.Fatalf("Get() missing key error = %v, want ErrNotFound", err)
	}
	if err := conn.Set(ctx, "camera0:width", []byte("640")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, _ := mr.Get("camera0:width"); got != "640" {
		t.Errorf("stored value = %q, want 640", got)
	}

	got, err := conn.Get(ctx, "camera0:width")
	if err != nil || string(got) != "640" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	ok, err := conn.Exists(ctx, "camera0:width")
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v", ok, err)
	}
}

func TestDialFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewDialer(addr).Dial(ctx); !errors.Is(err, channel.ErrConnection) {
		t.Fatalf("Dial() error = %v, want ErrConnection", err)
	}
}

func TestChannelOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := channel.New(NewDialer(mr.Addr()), channel.Options{
		Name:    "test",
		Backoff: channel.Backoff{Initial: 5 * time.Millisecond, Max: 50 * time.Millisecond, StableAfter: time.Hour},
	})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 4)
	go func() {
		_ = c.SubscribeLoop(ctx, "camera0:markers", func(_ string, payload []byte) {
			received <- string(payload)
		})
	}()

	waitForSubscriber(t, mr, "camera0:markers")
	mr.Publish("camera0:markers", `{"markers":[]}`)

	select {
	case got := <-received:
		if got != `{"markers":[]}` {
			t.Errorf("payload = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestCloseInterruptsRedisSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	conn, err := NewDialer(mr.Addr()).Dial(ctx)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Subscribe(ctx, "camera0", func(string, []byte) {})
	}()
	waitForSubscriber(t, mr, "camera0")

	_ = conn.Close()
	select {
	case err := <-done:
		if err == nil {
			t.Error("Subscribe() returned nil after Close, want an error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not interrupt Subscribe")
	}
}

func waitForSubscriber(t *testing.T, mr *miniredis.Miniredis, ch string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mr.PubSubNumSub(ch)[ch] > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no subscriber on %s", ch)
}
