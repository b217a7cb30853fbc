// Package view extracts a rectified, fixed-size image of a region of a
// camera frame. The region is given by four source corners, by a physical
// rectangle on a tracked board, or by an explicit list of point pairs; a
// homography maps it onto the output raster.
package view

import "github.com/smazurov/nectar/internal/geometry"

// Default output and capture sizes.
const (
	DefaultWidthPx  = 128
	DefaultHeightPx = 128
	DefaultSizeMM   = 100

	// MaxSidePx bounds each side of the output raster.
	MaxSidePx = 4096
)

// Mode selects how source points are obtained.
type Mode int

// View modes.
const (
	// ModeManualCorners uses four fixed source pixels.
	ModeManualCorners Mode = iota
	// ModeRectangle projects a rectangle of the tracked board.
	ModeRectangle
	// ModePairs uses an explicit list of source/view point pairs.
	ModePairs
)

func (m Mode) String() string {
	switch m {
	case ModeManualCorners:
		return "corners"
	case ModeRectangle:
		return "rectangle"
	case ModePairs:
		return "pairs"
	default:
		return "unknown"
	}
}

// Anchor is the rectangle corner Origin refers to. A bottom-left anchor
// means the board Y axis points up.
type Anchor int

// Anchors.
const (
	AnchorBottomLeft Anchor = iota
	AnchorTopLeft
)

// YAxis selects the direction of the board Y axis in ModeRectangle.
type YAxis int

// Y axis directions. YAxisFromAnchor follows the anchor: bottom-left is
// up, top-left is down.
const (
	YAxisFromAnchor YAxis = iota
	YAxisUp
	YAxisDown
)

// PointPair maps a source pixel onto a view pixel.
type PointPair struct {
	Source geometry.Vec2 `json:"source"`
	View   geometry.Vec2 `json:"view"`
}

// Spec describes a view.
type Spec struct {
	Mode Mode

	// Corners are source pixels in the order bottom-left, bottom-right,
	// top-right, top-left. Used by ModeManualCorners.
	Corners []geometry.Vec2

	// Rectangle on the board, in millimetres. Used by ModeRectangle.
	Anchor       Anchor
	Origin       geometry.Vec2
	SizeMM       geometry.Vec2
	HeightOffset float64

	// YAxis overrides the direction implied by Anchor. With YAxisDown,
	// HeightOffset is the board height the origin is measured from.
	YAxis YAxis

	// Pairs is used by ModePairs; at least three are needed.
	Pairs []PointPair

	WidthPx  int
	HeightPx int
}

// DefaultSpec returns a 128x128 view of a 100x100 mm rectangle anchored at
// the board origin.
func DefaultSpec() Spec {
	return Spec{
		Mode:     ModeRectangle,
		Anchor:   AnchorBottomLeft,
		SizeMM:   geometry.Vec2{X: DefaultSizeMM, Y: DefaultSizeMM},
		WidthPx:  DefaultWidthPx,
		HeightPx: DefaultHeightPx,
	}
}

// yUp reports whether board Y points up from the origin.
func (s Spec) yUp() bool {
	switch s.YAxis {
	case YAxisUp:
		return true
	case YAxisDown:
		return false
	default:
		return s.Anchor == AnchorBottomLeft
	}
}

// viewCorners returns the output corners matching Corners order.
func (s Spec) viewCorners() []geometry.Vec2 {
	w, h := float64(s.WidthPx), float64(s.HeightPx)
	return []geometry.Vec2{{X: 0, Y: h}, {X: w, Y: h}, {X: w, Y: 0}, {X: 0, Y: 0}}
}
