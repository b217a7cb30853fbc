package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/nectar/internal/channel"
	"github.com/smazurov/nectar/internal/events"
	"github.com/smazurov/nectar/internal/geometry"
	"github.com/smazurov/nectar/internal/logging"
	"github.com/smazurov/nectar/internal/markers"
	"github.com/smazurov/nectar/internal/metrics"
)

// Mode selects how frames reach the stream.
type Mode int

const (
	// ModePush installs frames from subscriber goroutines as notifications
	// arrive.
	ModePush Mode = iota
	// ModePoll fetches color, markers and depth once per poll interval from
	// the driving loop.
	ModePoll
)

func (m Mode) String() string {
	if m == ModePoll {
		return "poll"
	}
	return "push"
}

// ParseMode accepts "push" and "poll".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "push":
		return ModePush, nil
	case "poll", "get":
		return ModePoll, nil
	default:
		return ModePush, fmt.Errorf("unknown camera mode %q", s)
	}
}

// Default driving-loop periods.
const (
	DefaultPollInterval = 15 * time.Millisecond
	DefaultIdleInterval = 200 * time.Millisecond
)

// Options configures a Stream.
type Options struct {
	ID           string
	Mode         Mode
	UseDepth     bool
	PollInterval time.Duration
	IdleInterval time.Duration
	Backoff      channel.Backoff
	Bus          *events.Bus
}

// Stream owns one camera's configuration and latest frames.
//
// Each role has its own channel and therefore its own connections: control
// (configuration reads and poll mode), color, depth and markers.
type Stream struct {
	opts   Options
	keys   Keys
	logger *slog.Logger

	control *channel.Channel
	color   *channel.Channel
	depth   *channel.Channel
	marks   *channel.Channel

	mu      sync.RWMutex
	desc    Descriptor
	markers []markers.DetectedMarker

	colorBuf FrameBuffer
	depthBuf FrameBuffer

	started atomic.Bool
	closing atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewStream creates a stream for opts.ID. Nothing is read until Start.
func NewStream(dialer channel.Dialer, opts Options) *Stream {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = DefaultIdleInterval
	}
	logger := logging.GetLogger("camera").With("camera_id", opts.ID)
	newChannel := func(role string) *channel.Channel {
		return channel.New(dialer, channel.Options{
			Name:    opts.ID + "/" + role,
			Backoff: opts.Backoff,
			Bus:     opts.Bus,
		})
	}
	return &Stream{
		opts:    opts,
		keys:    Keys{ID: opts.ID},
		logger:  logger,
		control: newChannel("control"),
		color:   newChannel("color"),
		depth:   newChannel("depth"),
		marks:   newChannel("markers"),
		markers: []markers.DetectedMarker{},
	}
}

// ID returns the camera identifier.
func (s *Stream) ID() string { return s.opts.ID }

// Keys returns the store key names of the camera.
func (s *Stream) Keys() Keys { return s.keys }

// Start reads the camera configuration and, in push mode, starts the
// subscriber goroutines. A missing size or calibration key returns
// *ConfigMissingError.
func (s *Stream) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("camera: stream already started")
	}
	if err := s.control.Connect(ctx); err != nil {
		return fmt.Errorf("camera %s: %w", s.opts.ID, err)
	}

	desc, err := s.loadDescriptor(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.desc = desc
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.logger.Info("Camera stream started",
		"mode", s.opts.Mode.String(),
		"width", desc.Width, "height", desc.Height,
		"pixel_format", string(desc.PixelFormat),
		"depth", desc.Depth != nil)

	if s.opts.Mode != ModePush {
		return nil
	}

	s.spawn(runCtx, s.color, s.keys.Color(), func(ch string, _ []byte) {
		s.fetchColor(runCtx, s.color, ch)
	})
	s.spawn(runCtx, s.marks, s.keys.Markers(), func(_ string, payload []byte) {
		s.setMarkers(payload)
	})
	if desc.Depth != nil {
		s.spawn(runCtx, s.depth, s.keys.DepthRaw(), func(ch string, _ []byte) {
			s.fetchDepth(runCtx, s.depth, ch)
		})
	}
	return nil
}

func (s *Stream) spawn(ctx context.Context, c *channel.Channel, key string, h channel.Handler) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := c.SubscribeLoop(ctx, key, h)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, channel.ErrClosed) {
			s.logger.Error("Subscribe loop stopped", "channel", key, "error", err)
		}
	}()
}

// Run drives the stream until ctx is cancelled or Close is called. In poll
// mode every cycle fetches fresh data; in push mode the loop only idles.
func (s *Stream) Run(ctx context.Context) error {
	interval := s.opts.IdleInterval
	if s.opts.Mode == ModePoll {
		interval = s.opts.PollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if s.closing.Load() {
			return channel.ErrClosed
		}
		s.Grab(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Grab performs one poll cycle: markers, color and depth are fetched with
// point queries. It does nothing in push mode or while closing.
func (s *Stream) Grab(ctx context.Context) {
	if s.closing.Load() || s.opts.Mode != ModePoll {
		return
	}

	if payload, err := s.control.Query(ctx, s.keys.Markers()); err == nil {
		s.setMarkers(payload)
	} else if !errors.Is(err, channel.ErrNotFound) {
		s.logger.Debug("Marker fetch failed", "error", err)
	}

	s.fetchColor(ctx, s.control, s.keys.Color())

	s.mu.RLock()
	hasDepth := s.desc.Depth != nil
	s.mu.RUnlock()
	if hasDepth {
		s.fetchDepth(ctx, s.control, s.keys.DepthRaw())
	}
}

// Close stops the subscriber goroutines and closes every connection. Close
// interrupts blocked subscriptions by closing their sockets.
func (s *Stream) Close() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	err := errors.Join(s.color.Close(), s.depth.Close(), s.marks.Close(), s.control.Close())
	s.wg.Wait()
	metrics.DeleteCameraMetrics(s.opts.ID)
	s.logger.Info("Camera stream closed")
	return err
}

// Closing reports whether Close has been called.
func (s *Stream) Closing() bool {
	return s.closing.Load()
}

// Descriptor returns the configuration read at start.
func (s *Stream) Descriptor() Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.desc
}

// Markers returns the latest detection list.
func (s *Stream) Markers() []markers.DetectedMarker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]markers.DetectedMarker(nil), s.markers...)
}

// ColorFrame returns a copy of the latest color frame.
func (s *Stream) ColorFrame() (Frame, bool) {
	return s.colorBuf.Snapshot()
}

// DepthFrame returns a copy of the latest depth frame.
func (s *Stream) DepthFrame() (Frame, bool) {
	return s.depthBuf.Snapshot()
}

// ColorAllocations returns how often the color buffer was allocated.
func (s *Stream) ColorAllocations() int {
	return s.colorBuf.Allocations()
}

// InstallColor installs a color frame and notifies observers.
func (s *Stream) InstallColor(data []byte) error {
	desc := s.Descriptor()
	if err := s.colorBuf.Install(data, desc.Width, desc.Height, desc.Channels()); err != nil {
		metrics.RecordFrameError(s.opts.ID, metrics.KindColor)
		return err
	}
	metrics.RecordFrame(s.opts.ID, metrics.KindColor)
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(events.ImageUpdatedEvent{
			CameraID:  s.opts.ID,
			Width:     desc.Width,
			Height:    desc.Height,
			Timestamp: time.Now().Format(time.RFC3339Nano),
		})
	}
	return nil
}

// InstallDepth installs a depth frame.
func (s *Stream) InstallDepth(data []byte) error {
	desc := s.Descriptor()
	if desc.Depth == nil {
		return fmt.Errorf("camera %s: %w", s.opts.ID, ErrNoDepth)
	}
	if err := s.depthBuf.Install(data, desc.Depth.Width, desc.Depth.Height, Depth16.Channels()); err != nil {
		metrics.RecordFrameError(s.opts.ID, metrics.KindDepth)
		return err
	}
	metrics.RecordFrame(s.opts.ID, metrics.KindDepth)
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(events.DepthUpdatedEvent{
			CameraID:  s.opts.ID,
			Width:     desc.Depth.Width,
			Height:    desc.Depth.Height,
			Timestamp: time.Now().Format(time.RFC3339Nano),
		})
	}
	return nil
}

func (s *Stream) fetchColor(ctx context.Context, c *channel.Channel, key string) {
	data, err := c.Query(ctx, key)
	if err != nil {
		if !errors.Is(err, channel.ErrNotFound) && ctx.Err() == nil {
			s.logger.Warn("Color fetch failed", "error", err)
		}
		return
	}
	if err := s.InstallColor(data); err != nil {
		s.logger.Warn("Dropping color frame", "error", err)
	}
}

func (s *Stream) fetchDepth(ctx context.Context, c *channel.Channel, key string) {
	data, err := c.Query(ctx, key)
	if err != nil {
		if !errors.Is(err, channel.ErrNotFound) && ctx.Err() == nil {
			s.logger.Warn("Depth fetch failed", "error", err)
		}
		return
	}
	if err := s.InstallDepth(data); err != nil {
		s.logger.Warn("Dropping depth frame", "error", err)
	}
}

// setMarkers decodes a detection message. A schema violation drops the
// message and keeps the previous list.
func (s *Stream) setMarkers(payload []byte) {
	list, err := markers.Decode(payload)
	if err != nil {
		s.logger.Warn("Dropping marker message", "error", err)
		return
	}
	s.mu.Lock()
	s.markers = list
	s.mu.Unlock()

	metrics.SetMarkers(s.opts.ID, len(list))
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(events.MarkersUpdatedEvent{
			CameraID:  s.opts.ID,
			Count:     len(list),
			Markers:   list,
			Timestamp: time.Now().Format(time.RFC3339Nano),
		})
	}
}

func (s *Stream) loadDescriptor(ctx context.Context) (Descriptor, error) {
	desc := Descriptor{ID: s.opts.ID, FrameRate: DefaultFrameRate, PixelFormat: RGB}

	var err error
	if desc.Width, err = s.requireInt(ctx, s.keys.Width()); err != nil {
		return desc, err
	}
	if desc.Height, err = s.requireInt(ctx, s.keys.Height()); err != nil {
		return desc, err
	}

	format, err := s.control.Query(ctx, s.keys.PixelFormat())
	switch {
	case err == nil:
		pf, perr := ParsePixelFormat(string(format))
		if perr != nil {
			return desc, &ConfigMissingError{CameraID: s.opts.ID, Key: s.keys.PixelFormat(), Cause: perr}
		}
		desc.PixelFormat = pf
	case !errors.Is(err, channel.ErrNotFound):
		return desc, fmt.Errorf("camera %s: read pixel format: %w", s.opts.ID, err)
	}

	calib, err := s.require(ctx, s.keys.Calibration())
	if err != nil {
		return desc, err
	}
	if desc.Calibration, err = geometry.ParseProjectiveDevice(calib); err != nil {
		return desc, &ConfigMissingError{CameraID: s.opts.ID, Key: s.keys.Calibration(), Cause: err}
	}

	if s.opts.UseDepth {
		depth, err := s.loadDepth(ctx)
		if err != nil {
			return desc, err
		}
		desc.Depth = depth
	}
	return desc, nil
}

// loadDepth reads the depth sensor configuration. A camera without a depth
// size key has no depth sensor; the stream runs color-only.
func (s *Stream) loadDepth(ctx context.Context) (*DepthDescriptor, error) {
	exists, err := s.control.Exists(ctx, s.keys.DepthWidth())
	if err != nil {
		return nil, fmt.Errorf("camera %s: read depth size: %w", s.opts.ID, err)
	}
	if !exists {
		s.logger.Warn("Depth requested but camera publishes no depth size", "key", s.keys.DepthWidth())
		return nil, nil
	}

	depth := &DepthDescriptor{}
	if depth.Width, err = s.requireInt(ctx, s.keys.DepthWidth()); err != nil {
		return nil, err
	}
	if depth.Height, err = s.requireInt(ctx, s.keys.DepthHeight()); err != nil {
		return nil, err
	}

	if calib, err := s.control.Query(ctx, s.keys.DepthCalibration()); err == nil {
		dev, perr := geometry.ParseProjectiveDevice(calib)
		if perr != nil {
			return nil, &ConfigMissingError{CameraID: s.opts.ID, Key: s.keys.DepthCalibration(), Cause: perr}
		}
		depth.Calibration = &dev
	}

	extr, err := s.require(ctx, s.keys.DepthExtrinsics())
	if err != nil {
		return nil, err
	}
	if depth.Extrinsics, err = geometry.ParseMatrix4(extr); err != nil {
		return nil, &ConfigMissingError{CameraID: s.opts.ID, Key: s.keys.DepthExtrinsics(), Cause: err}
	}
	return depth, nil
}

// UpdateCalibration re-reads the color and depth calibrations. It reports
// whether the color calibration was replaced.
func (s *Stream) UpdateCalibration(ctx context.Context) (bool, error) {
	updated := false
	data, err := s.control.Query(ctx, s.keys.Calibration())
	switch {
	case err == nil:
		dev, perr := geometry.ParseProjectiveDevice(data)
		if perr != nil {
			return false, fmt.Errorf("camera %s: %w", s.opts.ID, perr)
		}
		s.mu.Lock()
		s.desc.Calibration = dev
		s.mu.Unlock()
		updated = true
	case !errors.Is(err, channel.ErrNotFound):
		return false, err
	}

	s.mu.RLock()
	hasDepth := s.desc.Depth != nil
	s.mu.RUnlock()
	if !hasDepth {
		return updated, nil
	}

	data, err = s.control.Query(ctx, s.keys.DepthCalibration())
	switch {
	case err == nil:
		dev, perr := geometry.ParseProjectiveDevice(data)
		if perr != nil {
			return updated, fmt.Errorf("camera %s: depth: %w", s.opts.ID, perr)
		}
		s.mu.Lock()
		if s.desc.Depth != nil {
			depth := *s.desc.Depth
			depth.Calibration = &dev
			s.desc.Depth = &depth
		}
		s.mu.Unlock()
	case !errors.Is(err, channel.ErrNotFound):
		return updated, err
	}
	return updated, nil
}

// UpdateExtrinsics re-reads the depth-to-color transform.
func (s *Stream) UpdateExtrinsics(ctx context.Context) error {
	s.mu.RLock()
	hasDepth := s.desc.Depth != nil
	s.mu.RUnlock()
	if !hasDepth {
		return fmt.Errorf("camera %s: %w", s.opts.ID, ErrNoDepth)
	}

	data, err := s.control.Query(ctx, s.keys.DepthExtrinsics())
	if err != nil {
		return fmt.Errorf("camera %s: read extrinsics: %w", s.opts.ID, err)
	}
	m, err := geometry.ParseMatrix4(data)
	if err != nil {
		return fmt.Errorf("camera %s: %w", s.opts.ID, err)
	}
	s.mu.Lock()
	if s.desc.Depth != nil {
		depth := *s.desc.Depth
		depth.Extrinsics = m
		s.desc.Depth = &depth
	}
	s.mu.Unlock()
	return nil
}

// Location reads the named 4x4 transform stored for the camera. An absent
// key yields the identity.
func (s *Stream) Location(ctx context.Context, name string) (geometry.Matrix4, error) {
	data, err := s.control.Query(ctx, s.keys.Location(name))
	if errors.Is(err, channel.ErrNotFound) {
		return geometry.Identity(), nil
	}
	if err != nil {
		return geometry.Identity(), err
	}
	return geometry.ParseMatrix4(data)
}

// TableLocation reads the table transform of the camera.
func (s *Stream) TableLocation(ctx context.Context) (geometry.Matrix4, error) {
	return s.Location(ctx, "table")
}

func (s *Stream) require(ctx context.Context, key string) ([]byte, error) {
	data, err := s.control.Query(ctx, key)
	if errors.Is(err, channel.ErrNotFound) {
		return nil, &ConfigMissingError{CameraID: s.opts.ID, Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("camera %s: read %s: %w", s.opts.ID, key, err)
	}
	return data, nil
}

func (s *Stream) requireInt(ctx context.Context, key string) (int, error) {
	data, err := s.require(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n <= 0 {
		return 0, &ConfigMissingError{CameraID: s.opts.ID, Key: key, Cause: fmt.Errorf("invalid size %q", data)}
	}
	return n, nil
}
