package markers

import (
	"fmt"

	"github.com/smazurov/nectar/internal/geometry"
)

// DefaultConfidence is assigned to detections that carry no confidence field.
const DefaultConfidence = 1.0

// DetectedMarker is one fiducial tag found in an image.
type DetectedMarker struct {
	ID         int        `json:"id"`
	Corners    [8]float64 `json:"corners"`
	Confidence float64    `json:"confidence"`
}

// New returns a marker with the default confidence.
func New(id int, corners [8]float64) DetectedMarker {
	return DetectedMarker{ID: id, Corners: corners, Confidence: DefaultConfidence}
}

// Points returns the four corners as image points.
func (m DetectedMarker) Points() [4]geometry.Vec2 {
	var out [4]geometry.Vec2
	for i := range out {
		out[i] = geometry.Vec2{X: m.Corners[2*i], Y: m.Corners[2*i+1]}
	}
	return out
}

// Center returns the centroid of the four corners.
func (m DetectedMarker) Center() geometry.Vec2 {
	var c geometry.Vec2
	for _, p := range m.Points() {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= 4
	c.Y /= 4
	return c
}

// Equal compares id and corners. Confidence is ignored.
func (m DetectedMarker) Equal(o DetectedMarker) bool {
	return m.ID == o.ID && m.Corners == o.Corners
}

func (m DetectedMarker) String() string {
	return fmt.Sprintf("marker %d corners %v", m.ID, m.Corners)
}
