package events

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan MarkersUpdatedEvent, 1)

	unsub := bus.Subscribe(func(e MarkersUpdatedEvent) {
		received <- e
	})
	defer unsub()

	ev := MarkersUpdatedEvent{CameraID: "camera0", Count: 3}
	bus.Publish(ev)

	got := <-received
	if got.CameraID != ev.CameraID || got.Count != ev.Count {
		t.Errorf("got %+v, want %+v", got, ev)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan ImageUpdatedEvent, 1)

	unsub := bus.Subscribe(func(e ImageUpdatedEvent) {
		received <- e
	})

	bus.Publish(ImageUpdatedEvent{CameraID: "camera0"})
	<-received

	unsub()

	bus.Publish(ImageUpdatedEvent{CameraID: "camera1"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	imageReceived := make(chan bool, 1)
	poseReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ ImageUpdatedEvent) { imageReceived <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(_ PoseUpdatedEvent) { poseReceived <- true })
	defer unsub2()

	bus.Publish(ImageUpdatedEvent{CameraID: "camera0"})
	<-imageReceived

	select {
	case <-poseReceived:
		t.Fatal("Pose subscriber should NOT have received ImageUpdatedEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(PoseUpdatedEvent{Board: "table", CameraID: "camera0"})
	<-poseReceived

	select {
	case <-imageReceived:
		t.Fatal("Image subscriber should NOT have received PoseUpdatedEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)
	unsub := bus.Subscribe(func(_ DepthUpdatedEvent) { receivedCh <- true })
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(DepthUpdatedEvent{CameraID: "camera0", Width: 640, Height: 480})
			}
		}()
	}
	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	if unsub == nil {
		t.Fatal("expected no-op unsubscribe function")
	}
	unsub()
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)

	unsub := SubscribeToChannel[ConnectionEvent](bus, ch)
	defer unsub()

	bus.Publish(ConnectionEvent{Channel: "camera0", State: "reconnecting", Attempt: 1})
	bus.Publish(ConnectionEvent{Channel: "camera0", State: "subscribed"})

	select {
	case got := <-ch:
		ev, ok := got.(ConnectionEvent)
		if !ok || ev.Channel != "camera0" {
			t.Errorf("unexpected event %#v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := New()
	ch := make(chan any, 8)
	unsub := SubscribeAll(bus, ch)

	bus.Publish(PoseUpdatedEvent{Board: "table", CameraID: "camera0"})
	bus.Publish(MarkersUpdatedEvent{CameraID: "camera0"})

	got := map[string]bool{}
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case ev := <-ch:
			got[fmt.Sprintf("%T", ev)] = true
		case <-timeout:
			t.Fatalf("timed out, received %v", got)
		}
	}

	unsub()
	bus.Publish(PoseUpdatedEvent{Board: "table"})
	select {
	case ev := <-ch:
		t.Errorf("event after unsubscribe: %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
