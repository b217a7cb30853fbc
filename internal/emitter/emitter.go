// Package emitter is the producer side of the camera protocol: it writes
// frames, detections and calibration to the store and notifies consumers.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/nectar/internal/camera"
	"github.com/smazurov/nectar/internal/geometry"
	"github.com/smazurov/nectar/internal/logging"
	"github.com/smazurov/nectar/internal/markers"
)

// Store is the subset of *channel.Channel the emitter writes through.
type Store interface {
	Set(ctx context.Context, key string, value []byte) error
	Publish(ctx context.Context, channel string, payload []byte) error
}

// ImageNotification is published on the frame channel after each frame.
type ImageNotification struct {
	Timestamp  int64 `json:"timestamp"`
	ImageCount int64 `json:"imageCount"`
}

type params struct {
	width, height, channels int
	format                  camera.PixelFormat
}

// Emitter publishes one camera.
type Emitter struct {
	store  Store
	keys   camera.Keys
	id     string
	logger *slog.Logger

	mu         sync.Mutex
	color      *params
	depth      *params
	colorCount int64
	depthCount int64
}

// New creates an emitter for camera id.
func New(store Store, id string) *Emitter {
	instance := uuid.NewString()
	return &Emitter{
		store:  store,
		keys:   camera.Keys{ID: id},
		id:     instance,
		logger: logging.GetLogger("emitter").With("camera_id", id, "emitter_id", instance),
	}
}

// Keys returns the camera keys written by the emitter.
func (e *Emitter) Keys() camera.Keys {
	return e.keys
}

// SendImage stores a color frame and notifies the frame channel. Size and
// pixel format keys are written first whenever they change.
func (e *Emitter) SendImage(ctx context.Context, f camera.Frame, format camera.PixelFormat) error {
	if len(f.Data) < f.Size() {
		return &camera.FrameSizeError{Width: f.Width, Height: f.Height, Channels: f.Channels, Got: len(f.Data)}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := params{width: f.Width, height: f.Height, channels: f.Channels, format: format}
	if e.color == nil || *e.color != p {
		if err := e.sendParams(ctx, p); err != nil {
			return err
		}
		e.color = &p
		e.logger.Info("Image parameters sent", "width", p.width, "height", p.height, "format", string(format))
	}

	e.colorCount++
	return e.sendFrame(ctx, e.keys.Color(), f, e.colorCount)
}

// SendDepth stores a 16-bit depth frame and notifies the depth channel.
func (e *Emitter) SendDepth(ctx context.Context, f camera.Frame) error {
	f.Channels = camera.Depth16.Channels()
	if len(f.Data) < f.Size() {
		return &camera.FrameSizeError{Width: f.Width, Height: f.Height, Channels: f.Channels, Got: len(f.Data)}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := params{width: f.Width, height: f.Height, channels: f.Channels, format: camera.Depth16}
	if e.depth == nil || *e.depth != p {
		kv := map[string]string{
			e.keys.DepthWidth():  strconv.Itoa(f.Width),
			e.keys.DepthHeight(): strconv.Itoa(f.Height),
		}
		if err := e.setAll(ctx, kv); err != nil {
			return err
		}
		e.depth = &p
	}

	e.depthCount++
	return e.sendFrame(ctx, e.keys.DepthRaw(), f, e.depthCount)
}

func (e *Emitter) sendParams(ctx context.Context, p params) error {
	return e.setAll(ctx, map[string]string{
		e.keys.Width():       strconv.Itoa(p.width),
		e.keys.Height():      strconv.Itoa(p.height),
		e.keys.Channels():    strconv.Itoa(p.channels),
		e.keys.PixelFormat(): string(p.format),
	})
}

func (e *Emitter) setAll(ctx context.Context, kv map[string]string) error {
	for k, v := range kv {
		if err := e.store.Set(ctx, k, []byte(v)); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

func (e *Emitter) sendFrame(ctx context.Context, key string, f camera.Frame, count int64) error {
	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	note, err := json.Marshal(ImageNotification{Timestamp: ts.UnixMilli(), ImageCount: count})
	if err != nil {
		return err
	}
	if err := e.store.Set(ctx, key, f.Data[:f.Size()]); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := e.store.Publish(ctx, key, note); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// SendMarkers stores a detection list and publishes it on the markers
// channel. Consumers use the notification payload directly.
func (e *Emitter) SendMarkers(ctx context.Context, list []markers.DetectedMarker) error {
	payload, err := markers.Encode(list)
	if err != nil {
		return err
	}
	key := e.keys.Markers()
	if err := e.store.Set(ctx, key, payload); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := e.store.Publish(ctx, key, payload); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// SendCalibration stores the color calibration.
func (e *Emitter) SendCalibration(ctx context.Context, dev geometry.ProjectiveDevice) error {
	return e.sendJSON(ctx, e.keys.Calibration(), dev)
}

// SendDepthCalibration stores the depth calibration and the depth-to-color
// extrinsics.
func (e *Emitter) SendDepthCalibration(ctx context.Context, dev geometry.ProjectiveDevice, extrinsics geometry.Matrix4) error {
	if err := e.sendJSON(ctx, e.keys.DepthCalibration(), dev); err != nil {
		return err
	}
	return e.sendJSON(ctx, e.keys.DepthExtrinsics(), extrinsics)
}

// SendLocation stores a named 4x4 location such as "table".
func (e *Emitter) SendLocation(ctx context.Context, name string, m geometry.Matrix4) error {
	return e.sendJSON(ctx, e.keys.Location(name), m)
}

func (e *Emitter) sendJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := e.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Counts returns the number of color and depth frames sent.
func (e *Emitter) Counts() (color, depth int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.colorCount, e.depthCount
}
