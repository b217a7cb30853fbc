package view

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/smazurov/nectar/internal/camera"
	"github.com/smazurov/nectar/internal/geometry"
	"github.com/smazurov/nectar/internal/logging"
)

// Reasons a view cannot be produced.
var (
	ErrNoSource   = errors.New("view: no source frame")
	ErrNoDevice   = errors.New("view: projective device not set")
	ErrNoCorners  = errors.New("view: corners not set")
	ErrFewPairs   = errors.New("view: fewer than 3 point pairs")
	ErrBadSize    = errors.New("view: output size out of range")
	ErrProjection = errors.New("view: rectangle corner behind the camera")
)

// Extractor warps camera frames into a fixed-size view.
type Extractor struct {
	logger *slog.Logger

	mu     sync.Mutex
	spec   Spec
	device *geometry.ProjectiveDevice
	pose   geometry.Matrix4

	out         []byte
	allocations int
}

// NewExtractor creates an extractor for spec. Zero sizes take the defaults.
func NewExtractor(spec Spec) *Extractor {
	if spec.WidthPx == 0 {
		spec.WidthPx = DefaultWidthPx
	}
	if spec.HeightPx == 0 {
		spec.HeightPx = DefaultHeightPx
	}
	if spec.SizeMM == (geometry.Vec2{}) {
		spec.SizeMM = geometry.Vec2{X: DefaultSizeMM, Y: DefaultSizeMM}
	}
	return &Extractor{
		logger: logging.GetLogger("view"),
		spec:   spec,
		pose:   geometry.Identity(),
	}
}

// Spec returns the current spec.
func (e *Extractor) Spec() Spec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spec
}

// SetSpec replaces the spec.
func (e *Extractor) SetSpec(spec Spec) {
	e.mu.Lock()
	e.spec = spec
	e.mu.Unlock()
}

// SetDevice sets the camera model used to project rectangle corners.
func (e *Extractor) SetDevice(dev geometry.ProjectiveDevice) {
	e.mu.Lock()
	e.device = &dev
	e.mu.Unlock()
}

// SetPose sets the board-to-camera transform used in ModeRectangle.
func (e *Extractor) SetPose(m geometry.Matrix4) {
	e.mu.Lock()
	e.pose = m
	e.mu.Unlock()
}

// SetScale sizes the output at scale pixels per millimetre of the capture
// rectangle. Sizes beyond MaxSidePx are clamped to MaxSidePx+1 so the next
// Extract reports ErrBadSize instead of allocating.
func (e *Extractor) SetScale(scale float64) {
	e.mu.Lock()
	e.spec.WidthPx = scaledSide(e.spec.SizeMM.X, scale)
	e.spec.HeightPx = scaledSide(e.spec.SizeMM.Y, scale)
	e.mu.Unlock()
}

func scaledSide(mm, scale float64) int {
	px := mm * scale
	switch {
	case math.IsNaN(px) || px <= 0:
		return 0
	case px > MaxSidePx:
		return MaxSidePx + 1
	}
	return int(px)
}

// PixelsToMM converts a view pixel into board millimetres.
func (e *Extractor) PixelsToMM(p geometry.Vec2) geometry.Vec2 {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.spec
	return geometry.Vec2{
		X: p.X/float64(s.WidthPx)*s.SizeMM.X + s.Origin.X,
		Y: p.Y/float64(s.HeightPx)*s.SizeMM.Y + s.Origin.Y,
	}
}

// Homography returns the source-to-view transform for the current spec
// and pose.
func (e *Extractor) Homography() (geometry.Homography, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.homographyLocked()
}

func (e *Extractor) homographyLocked() (geometry.Homography, error) {
	s := e.spec
	if s.WidthPx <= 0 || s.HeightPx <= 0 || s.WidthPx > MaxSidePx || s.HeightPx > MaxSidePx {
		return geometry.Homography{}, ErrBadSize
	}
	if e.device == nil {
		return geometry.Homography{}, ErrNoDevice
	}

	switch s.Mode {
	case ModePairs:
		if len(s.Pairs) < 3 {
			return geometry.Homography{}, ErrFewPairs
		}
		src := make([]geometry.Vec2, len(s.Pairs))
		dst := make([]geometry.Vec2, len(s.Pairs))
		for i, p := range s.Pairs {
			src[i], dst[i] = p.Source, p.View
		}
		return geometry.ComputeHomography(src, dst)

	case ModeRectangle:
		src, err := e.rectangleCorners()
		if err != nil {
			return geometry.Homography{}, err
		}
		return geometry.ComputeHomography(src, s.viewCorners())

	default:
		if len(s.Corners) != 4 {
			return geometry.Homography{}, ErrNoCorners
		}
		return geometry.ComputeHomography(s.Corners, s.viewCorners())
	}
}

// rectangleCorners walks the board pose around the capture rectangle and
// projects each corner without clamping to the image bounds. The result
// is ordered bottom-left, bottom-right, top-right, top-left.
func (e *Extractor) rectangleCorners() ([]geometry.Vec2, error) {
	s := e.spec
	w, h := s.SizeMM.X, s.SizeMM.Y

	var corners [4]geometry.Vec3
	tmp := e.pose
	if s.yUp() {
		tmp = tmp.Translate(s.Origin.X, s.Origin.Y, 0)
		corners[0] = tmp.Position()
		tmp = tmp.Translate(w, 0, 0)
		corners[1] = tmp.Position()
		tmp = tmp.Translate(0, -h, 0)
		corners[2] = tmp.Position()
		tmp = tmp.Translate(-w, 0, 0)
		corners[3] = tmp.Position()
	} else {
		tmp = tmp.Translate(s.Origin.X, s.HeightOffset-s.Origin.Y, 0)
		corners[3] = tmp.Position()
		tmp = tmp.Translate(w, 0, 0)
		corners[2] = tmp.Position()
		tmp = tmp.Translate(0, -h, 0)
		corners[1] = tmp.Position()
		tmp = tmp.Translate(-w, 0, 0)
		corners[0] = tmp.Position()
	}

	px := make([]geometry.Vec2, 4)
	for i, c := range corners {
		p, err := e.device.WorldToPixelUnconstrained(c)
		if err != nil {
			return nil, fmt.Errorf("%w: corner %d", ErrProjection, i)
		}
		px[i] = p
	}
	return px, nil
}

// Extract warps src into the view. It returns false when no view can be
// produced: src is nil, the device is unset, the output size is out of
// range, or there are not enough correspondences. The returned frame shares the extractor's
// output buffer and stays valid until the next call.
func (e *Extractor) Extract(src *camera.Frame) (*camera.Frame, bool) {
	if src == nil || len(src.Data) < src.Size() || src.Size() == 0 {
		e.logger.Debug("No view", "error", ErrNoSource)
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.homographyLocked()
	if err != nil {
		e.logger.Debug("No view", "mode", e.spec.Mode.String(), "error", err)
		return nil, false
	}
	inv, err := h.Inverse()
	if err != nil {
		e.logger.Debug("No view", "mode", e.spec.Mode.String(), "error", err)
		return nil, false
	}

	w, hgt, ch := e.spec.WidthPx, e.spec.HeightPx, src.Channels
	size := w * hgt * ch
	if len(e.out) != size {
		e.out = make([]byte, size)
		e.allocations++
	}
	warp(src, inv, e.out, w, hgt)

	return &camera.Frame{
		Data:      e.out,
		Width:     w,
		Height:    hgt,
		Channels:  ch,
		Timestamp: src.Timestamp,
	}, true
}

// Allocations returns how many times the output buffer was allocated.
func (e *Extractor) Allocations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.allocations
}
