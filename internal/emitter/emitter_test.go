package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/smazurov/nectar/internal/camera"
	"github.com/smazurov/nectar/internal/channel"
	"github.com/smazurov/nectar/internal/channel/redisconn"
	"github.com/smazurov/nectar/internal/geometry"
	"github.com/smazurov/nectar/internal/markers"
)

type published struct {
	channel string
	payload string
}

type recordingStore struct {
	mu      sync.Mutex
	sets    map[string]string
	order   []string
	pubs    []published
	failSet error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{sets: make(map[string]string)}
}

func (s *recordingStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet != nil {
		return s.failSet
	}
	s.sets[key] = string(value)
	s.order = append(s.order, key)
	return nil
}

func (s *recordingStore) Publish(_ context.Context, ch string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pubs = append(s.pubs, published{ch, string(payload)})
	return nil
}

func rgbFrame(w, h int) camera.Frame {
	return camera.Frame{
		Data:      make([]byte, w*h*3),
		Width:     w,
		Height:    h,
		Channels:  3,
		Timestamp: time.UnixMilli(1700000000123),
	}
}

func TestSendImageWritesParamsOnChange(t *testing.T) {
	store := newRecordingStore()
	e := New(store, "camera0")
	ctx := context.Background()

	for _, f := range []camera.Frame{rgbFrame(4, 2), rgbFrame(4, 2), rgbFrame(8, 2)} {
		if err := e.SendImage(ctx, f, camera.RGB); err != nil {
			t.Fatalf("SendImage() error = %v", err)
		}
	}

	widthWrites := 0
	for _, k := range store.order {
		if k == "camera0:width" {
			widthWrites++
		}
	}
	if widthWrites != 2 {
		t.Errorf("width written %d times, want 2", widthWrites)
	}
	want := map[string]string{
		"camera0:width":       "8",
		"camera0:height":      "2",
		"camera0:channels":    "3",
		"camera0:pixelformat": "RGB",
	}
	for k, v := range want {
		if store.sets[k] != v {
			t.Errorf("%s = %q, want %q", k, store.sets[k], v)
		}
	}
	if len(store.sets["camera0"]) != 8*2*3 {
		t.Errorf("frame key holds %d bytes", len(store.sets["camera0"]))
	}

	if len(store.pubs) != 3 {
		t.Fatalf("published %d notifications, want 3", len(store.pubs))
	}
	var note ImageNotification
	if err := json.Unmarshal([]byte(store.pubs[2].payload), &note); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(ImageNotification{Timestamp: 1700000000123, ImageCount: 3}, note); diff != "" {
		t.Errorf("notification mismatch (-want +got):\n%s", diff)
	}
	if c, d := e.Counts(); c != 3 || d != 0 {
		t.Errorf("Counts() = %d, %d", c, d)
	}
}

func TestSendImageShortFrame(t *testing.T) {
	e := New(newRecordingStore(), "camera0")
	f := rgbFrame(4, 2)
	f.Data = f.Data[:5]
	var fse *camera.FrameSizeError
	if err := e.SendImage(context.Background(), f, camera.RGB); !errors.As(err, &fse) {
		t.Errorf("SendImage() error = %v, want *FrameSizeError", err)
	}
}

func TestSendMarkersPublishesPayload(t *testing.T) {
	store := newRecordingStore()
	e := New(store, "camera0")
	list := []markers.DetectedMarker{markers.New(3, [8]float64{0, 0, 10, 0, 10, 10, 0, 10})}

	if err := e.SendMarkers(context.Background(), list); err != nil {
		t.Fatal(err)
	}
	if len(store.pubs) != 1 || store.pubs[0].channel != "camera0:markers" {
		t.Fatalf("publishes = %+v", store.pubs)
	}
	got, err := markers.Decode([]byte(store.pubs[0].payload))
	if err != nil || len(got) != 1 || !got[0].Equal(list[0]) {
		t.Errorf("decoded payload = %+v, %v", got, err)
	}
	if store.sets["camera0:markers"] != store.pubs[0].payload {
		t.Error("stored and published marker payloads differ")
	}
}

func TestSendPropagatesStoreErrors(t *testing.T) {
	store := newRecordingStore()
	store.failSet = channel.ErrConnection
	e := New(store, "camera0")
	if err := e.SendImage(context.Background(), rgbFrame(2, 2), camera.RGB); !errors.Is(err, channel.ErrConnection) {
		t.Errorf("SendImage() error = %v", err)
	}
	if err := e.SendCalibration(context.Background(), geometry.NewProjectiveDevice(2, 2, 1, 1, 1, 1)); !errors.Is(err, channel.ErrConnection) {
		t.Errorf("SendCalibration() error = %v", err)
	}
}

func TestRoundTripThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	ch := channel.New(redisconn.NewDialer(mr.Addr()), channel.Options{Name: "emitter"})
	defer ch.Close()
	e := New(ch, "cam")

	dev := geometry.NewProjectiveDevice(4, 2, 500, 500, 2, 1)
	if err := e.SendCalibration(ctx, dev); err != nil {
		t.Fatal(err)
	}
	if err := e.SendDepthCalibration(ctx, dev, geometry.Identity().Translate(25, 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := e.SendLocation(ctx, "table", geometry.Identity().Translate(0, 0, 700)); err != nil {
		t.Fatal(err)
	}
	frame := rgbFrame(4, 2)
	for i := range frame.Data {
		frame.Data[i] = byte(i)
	}
	if err := e.SendImage(ctx, frame, camera.BGR); err != nil {
		t.Fatal(err)
	}
	depth := camera.Frame{Data: []byte{1, 2, 3, 4}, Width: 2, Height: 1}
	if err := e.SendDepth(ctx, depth); err != nil {
		t.Fatal(err)
	}
	if err := e.SendMarkers(ctx, []markers.DetectedMarker{markers.New(7, [8]float64{0, 0, 1, 0, 1, 1, 0, 1})}); err != nil {
		t.Fatal(err)
	}

	s := camera.NewStream(redisconn.NewDialer(mr.Addr()), camera.Options{ID: "cam", Mode: camera.ModePoll, UseDepth: true})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Close()
	s.Grab(ctx)

	desc := s.Descriptor()
	if desc.PixelFormat != camera.BGR || desc.Width != 4 || desc.Height != 2 {
		t.Errorf("descriptor = %+v", desc)
	}
	if desc.Depth == nil || desc.Depth.Extrinsics.Position().X != 25 {
		t.Errorf("depth descriptor = %+v", desc.Depth)
	}
	got, ok := s.ColorFrame()
	if !ok {
		t.Fatal("no color frame")
	}
	if diff := cmp.Diff(frame.Data, got.Data); diff != "" {
		t.Errorf("color frame mismatch (-want +got):\n%s", diff)
	}
	if m := s.Markers(); len(m) != 1 || m[0].ID != 7 {
		t.Errorf("Markers() = %+v", m)
	}
	table, err := s.TableLocation(ctx)
	if err != nil || table.Position().Z != 700 {
		t.Errorf("TableLocation() = %v, %v", table, err)
	}
}
