package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrBehindCamera is returned when a point cannot be projected because it
// lies on or behind the image plane.
var ErrBehindCamera = errors.New("geometry: point behind camera")

// ProjectiveDevice is a calibrated pinhole camera: intrinsics, lens
// distortion coefficients and an optional pose.
type ProjectiveDevice struct {
	Width      int
	Height     int
	Intrinsics [9]float64
	Distortion []float64
	Pose       *Matrix4
}

// calibrationDoc is the structured-text form published under
// "<camera>:calibration" and "<camera>:depth:calibration".
type calibrationDoc struct {
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Intrinsics []float64 `json:"intrinsics"`
	Distortion []float64 `json:"distortion,omitempty"`
	Pose       []float64 `json:"pose,omitempty"`
}

// NewProjectiveDevice builds a device from focal lengths and principal point.
func NewProjectiveDevice(width, height int, fx, fy, cx, cy float64) ProjectiveDevice {
	return ProjectiveDevice{
		Width:      width,
		Height:     height,
		Intrinsics: [9]float64{fx, 0, cx, 0, fy, cy, 0, 0, 1},
	}
}

// ParseProjectiveDevice decodes a calibration document.
func ParseProjectiveDevice(data []byte) (ProjectiveDevice, error) {
	var doc calibrationDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return ProjectiveDevice{}, fmt.Errorf("parse calibration: %w", err)
	}
	if len(doc.Intrinsics) != 9 {
		return ProjectiveDevice{}, fmt.Errorf("parse calibration: expected 9 intrinsic values, got %d", len(doc.Intrinsics))
	}

	dev := ProjectiveDevice{
		Width:      doc.Width,
		Height:     doc.Height,
		Distortion: doc.Distortion,
	}
	copy(dev.Intrinsics[:], doc.Intrinsics)

	if doc.Pose != nil {
		if len(doc.Pose) != 16 {
			return ProjectiveDevice{}, fmt.Errorf("parse calibration: expected 16 pose values, got %d", len(doc.Pose))
		}
		var pose Matrix4
		copy(pose[:], doc.Pose)
		dev.Pose = &pose
	}
	return dev, nil
}

// MarshalJSON encodes the device in the calibration document form.
func (d ProjectiveDevice) MarshalJSON() ([]byte, error) {
	doc := calibrationDoc{
		Width:      d.Width,
		Height:     d.Height,
		Intrinsics: d.Intrinsics[:],
		Distortion: d.Distortion,
	}
	if d.Pose != nil {
		doc.Pose = d.Pose[:]
	}
	return json.Marshal(doc)
}

// Focal returns fx, fy.
func (d ProjectiveDevice) Focal() (float64, float64) {
	return d.Intrinsics[0], d.Intrinsics[4]
}

// Center returns the principal point cx, cy.
func (d ProjectiveDevice) Center() (float64, float64) {
	return d.Intrinsics[2], d.Intrinsics[5]
}

// WorldToPixelUnconstrained projects p through the intrinsics without
// clamping to the image bounds. Points outside the sensor keep their
// coordinates so homographies built from them stay stable.
func (d ProjectiveDevice) WorldToPixelUnconstrained(p Vec3) (Vec2, error) {
	if p.Z <= 0 {
		return Vec2{}, ErrBehindCamera
	}
	fx, fy := d.Focal()
	cx, cy := d.Center()
	return Vec2{
		X: fx*p.X/p.Z + d.Intrinsics[1]*p.Y/p.Z + cx,
		Y: fy*p.Y/p.Z + cy,
	}, nil
}

// WorldToPixel projects p and reports whether it lands inside the image.
func (d ProjectiveDevice) WorldToPixel(p Vec3) (Vec2, bool) {
	px, err := d.WorldToPixelUnconstrained(p)
	if err != nil {
		return Vec2{}, false
	}
	inside := px.X >= 0 && px.Y >= 0 && px.X < float64(d.Width) && px.Y < float64(d.Height)
	return px, inside
}

// PixelToRay returns the direction (z = 1) of the ray through pixel px.
func (d ProjectiveDevice) PixelToRay(px Vec2) Vec3 {
	fx, fy := d.Focal()
	cx, cy := d.Center()
	y := (px.Y - cy) / fy
	x := (px.X - cx - d.Intrinsics[1]*y) / fx
	return Vec3{X: x, Y: y, Z: 1}
}
