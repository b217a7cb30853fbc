package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a matrix cannot be inverted.
var ErrSingular = errors.New("geometry: singular matrix")

// Vec2 is a point in image or view pixel space.
type Vec2 struct {
	X, Y float64
}

// Vec3 is a point in world (millimetre) space.
type Vec3 struct {
	X, Y, Z float64
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Matrix4 is a row-major 4x4 transform.
type Matrix4 [16]float64

// Identity returns the identity transform.
func Identity() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// At returns the element at row r, column c.
func (m Matrix4) At(r, c int) float64 {
	return m[r*4+c]
}

// IsIdentity reports whether m is exactly the identity transform.
func (m Matrix4) IsIdentity() bool {
	return m == Identity()
}

// Mul returns m * o.
func (m Matrix4) Mul(o Matrix4) Matrix4 {
	var out Matrix4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[r*4+k] * o[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// Translate returns m multiplied on the right by a translation of (x, y, z).
func (m Matrix4) Translate(x, y, z float64) Matrix4 {
	for r := 0; r < 4; r++ {
		m[r*4+3] += x*m[r*4] + y*m[r*4+1] + z*m[r*4+2]
	}
	return m
}

// Position returns the translation column of m.
func (m Matrix4) Position() Vec3 {
	return Vec3{m[3], m[7], m[11]}
}

// TransformPoint applies m to p (w = 1).
func (m Matrix4) TransformPoint(p Vec3) Vec3 {
	return Vec3{
		m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3],
		m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7],
		m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11],
	}
}

// Inverse returns the inverse of m.
func (m Matrix4) Inverse() (Matrix4, error) {
	src := mat.NewDense(4, 4, m[:])
	var inv mat.Dense
	if err := inv.Inverse(src); err != nil {
		return Matrix4{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	var out Matrix4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = inv.At(r, c)
		}
	}
	return out, nil
}

// ParseMatrix4 decodes a JSON array of 16 numbers (row-major) into a transform.
func ParseMatrix4(data []byte) (Matrix4, error) {
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return Matrix4{}, fmt.Errorf("parse matrix: %w", err)
	}
	if len(values) != 16 {
		return Matrix4{}, fmt.Errorf("parse matrix: expected 16 values, got %d", len(values))
	}
	var m Matrix4
	copy(m[:], values)
	return m, nil
}

// MarshalJSON encodes m as a flat row-major array.
func (m Matrix4) MarshalJSON() ([]byte, error) {
	return json.Marshal(m[:])
}
