package markers

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/smazurov/nectar/internal/geometry"
)

// Model is the physical layout of a marker board: for each marker id, its
// four corners in board millimetres on the z = 0 plane.
type Model struct {
	corners map[int][4]geometry.Vec2
}

// NewModel returns an empty board model.
func NewModel() *Model {
	return &Model{corners: make(map[int][4]geometry.Vec2)}
}

// ParseModel decodes a board model. The format matches a detection message,
// with corner values in millimetres instead of pixels.
func ParseModel(data []byte) (*Model, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parse board model: %w", err)
	}
	model := NewModel()
	for i, e := range msg.Markers {
		if len(e.Corners) != 8 {
			return nil, &FormatError{Index: i, ID: e.ID, Corners: len(e.Corners)}
		}
		var c [8]float64
		copy(c[:], e.Corners)
		model.Add(e.ID, c)
	}
	return model, nil
}

// Add places a marker on the board.
func (m *Model) Add(id int, corners [8]float64) {
	m.corners[id] = New(id, corners).Points()
}

// Contains reports whether the board carries the marker id.
func (m *Model) Contains(id int) bool {
	_, ok := m.corners[id]
	return ok
}

// IDs returns the marker ids on the board in ascending order.
func (m *Model) IDs() []int {
	ids := make([]int, 0, len(m.corners))
	for id := range m.corners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Len returns the number of markers on the board.
func (m *Model) Len() int {
	return len(m.corners)
}

// Correspondences pairs the corners of every detected marker that belongs
// to the board and reaches minConfidence with the matching model corners.
// It returns the object points, image points and the number of markers used.
func (m *Model) Correspondences(detected []DetectedMarker, minConfidence float64) ([]geometry.Vec3, []geometry.Vec2, int) {
	var object []geometry.Vec3
	var image []geometry.Vec2
	used := 0
	for _, d := range detected {
		model, ok := m.corners[d.ID]
		if !ok || d.Confidence < minConfidence {
			continue
		}
		points := d.Points()
		for i := range 4 {
			object = append(object, geometry.Vec3{X: model[i].X, Y: model[i].Y})
			image = append(image, points[i])
		}
		used++
	}
	return object, image, used
}

// MarshalJSON encodes the model in the ParseModel format.
func (m *Model) MarshalJSON() ([]byte, error) {
	msg := message{Markers: make([]entry, 0, len(m.corners))}
	for _, id := range m.IDs() {
		pts := m.corners[id]
		c := make([]float64, 0, 8)
		for _, p := range pts {
			c = append(c, p.X, p.Y)
		}
		msg.Markers = append(msg.Markers, entry{ID: id, Corners: c})
	}
	return json.Marshal(msg)
}
