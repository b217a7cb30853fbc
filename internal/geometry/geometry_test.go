package geometry

import (
	"errors"
	"math"
	"testing"
)

const tolerance = 1e-6

func near(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestMatrix4Translate(t *testing.T) {
	m := Identity().Translate(10, 20, 30)
	if got := m.Position(); got != (Vec3{10, 20, 30}) {
		t.Fatalf("Position() = %v, want {10 20 30}", got)
	}

	// Rotation of 90 degrees around Z: local X becomes world Y.
	rot := Matrix4{
		0, -1, 0, 0,
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	moved := rot.Translate(5, 0, 0).Position()
	if !near(moved.X, 0) || !near(moved.Y, 5) {
		t.Errorf("Translate along rotated axis = %v, want {0 5 0}", moved)
	}
}

func TestMatrix4Inverse(t *testing.T) {
	m := poseAboutX(0.3, Vec3{-50, 30, 600})
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("Inverse() error = %v", err)
	}
	id := m.Mul(inv)
	for i := range id {
		if !near(id[i], Identity()[i]) {
			t.Fatalf("m * inv(m) = %v, want identity", id)
		}
	}

	var zero Matrix4
	if _, err := zero.Inverse(); !errors.Is(err, ErrSingular) {
		t.Errorf("Inverse(zero) error = %v, want ErrSingular", err)
	}
}

func TestParseMatrix4(t *testing.T) {
	m, err := ParseMatrix4([]byte(`[1,0,0,5, 0,1,0,6, 0,0,1,7, 0,0,0,1]`))
	if err != nil {
		t.Fatalf("ParseMatrix4() error = %v", err)
	}
	if m.Position() != (Vec3{5, 6, 7}) {
		t.Errorf("Position() = %v", m.Position())
	}

	if _, err := ParseMatrix4([]byte(`[1,2,3]`)); err == nil {
		t.Error("expected error for short matrix")
	}
}

func TestParseProjectiveDevice(t *testing.T) {
	data := []byte(`{"width":640,"height":480,"intrinsics":[500,0,320,0,510,240,0,0,1],"distortion":[0.1,0.01]}`)
	dev, err := ParseProjectiveDevice(data)
	if err != nil {
		t.Fatalf("ParseProjectiveDevice() error = %v", err)
	}
	fx, fy := dev.Focal()
	if fx != 500 || fy != 510 {
		t.Errorf("Focal() = %v, %v", fx, fy)
	}
	if dev.Pose != nil {
		t.Error("expected no pose")
	}

	if _, err := ParseProjectiveDevice([]byte(`{"intrinsics":[1,2]}`)); err == nil {
		t.Error("expected error for short intrinsics")
	}
}

func TestWorldToPixelUnconstrained(t *testing.T) {
	dev := NewProjectiveDevice(640, 480, 500, 500, 320, 240)

	px, err := dev.WorldToPixelUnconstrained(Vec3{0, 0, 100})
	if err != nil || px != (Vec2{320, 240}) {
		t.Fatalf("center projection = %v, %v", px, err)
	}

	// Far outside the sensor: coordinates are kept, not clamped.
	px, err = dev.WorldToPixelUnconstrained(Vec3{1000, 0, 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if px.X != 5320 {
		t.Errorf("X = %v, want 5320", px.X)
	}
	if _, inside := dev.WorldToPixel(Vec3{1000, 0, 100}); inside {
		t.Error("WorldToPixel reported an off-sensor point as inside")
	}

	if _, err := dev.WorldToPixelUnconstrained(Vec3{0, 0, -1}); !errors.Is(err, ErrBehindCamera) {
		t.Errorf("error = %v, want ErrBehindCamera", err)
	}

	ray := dev.PixelToRay(Vec2{820, 240})
	if !near(ray.X, 1) || !near(ray.Y, 0) {
		t.Errorf("PixelToRay = %v", ray)
	}
}

func TestComputeHomographyMapsCorrespondences(t *testing.T) {
	tests := []struct {
		name string
		src  []Vec2
		dst  []Vec2
	}{
		{
			name: "square to quad",
			src:  []Vec2{{0, 0}, {100, 0}, {100, 100}, {0, 100}},
			dst:  []Vec2{{12, 7}, {230, 31}, {210, 190}, {5, 160}},
		},
		{
			name: "view corners to image",
			src:  []Vec2{{0, 128}, {128, 128}, {128, 0}, {0, 0}},
			dst:  []Vec2{{301.5, 410.25}, {612, 398}, {590, 88}, {280, 101}},
		},
		{
			name: "three pairs",
			src:  []Vec2{{0, 0}, {10, 0}, {0, 10}},
			dst:  []Vec2{{1, 2}, {21, 4}, {3, 32}},
		},
		{
			name: "five pairs",
			src:  []Vec2{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {50, 50}},
			dst:  []Vec2{{10, 10}, {110, 10}, {110, 110}, {10, 110}, {60, 60}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ComputeHomography(tt.src, tt.dst)
			if err != nil {
				t.Fatalf("ComputeHomography() error = %v", err)
			}
			for i, p := range tt.src {
				got := h.Apply(p)
				if math.Abs(got.X-tt.dst[i].X) > 1e-6 || math.Abs(got.Y-tt.dst[i].Y) > 1e-6 {
					t.Errorf("point %d: Apply(%v) = %v, want %v", i, p, got, tt.dst[i])
				}
			}

			inv, err := h.Inverse()
			if err != nil {
				t.Fatalf("Inverse() error = %v", err)
			}
			back := inv.Apply(tt.dst[0])
			if math.Abs(back.X-tt.src[0].X) > 1e-6 || math.Abs(back.Y-tt.src[0].Y) > 1e-6 {
				t.Errorf("inverse mapped %v to %v, want %v", tt.dst[0], back, tt.src[0])
			}
		})
	}
}

func TestComputeHomographyErrors(t *testing.T) {
	if _, err := ComputeHomography([]Vec2{{0, 0}, {1, 1}}, []Vec2{{0, 0}, {1, 1}}); !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("two pairs: error = %v, want ErrTooFewPoints", err)
	}
	collinear := []Vec2{{0, 0}, {1, 1}, {2, 2}}
	if _, err := ComputeHomography(collinear, collinear); !errors.Is(err, ErrDegenerate) {
		t.Errorf("collinear: error = %v, want ErrDegenerate", err)
	}
	if _, err := ComputeHomography(collinear, collinear[:2]); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

func TestPlanarSolverRecoversPose(t *testing.T) {
	dev := NewProjectiveDevice(640, 480, 500, 500, 320, 240)
	want := poseAboutX(0.35, Vec3{-50, 30, 600})

	model := []Vec3{
		{0, 0, 0}, {100, 0, 0}, {100, 100, 0}, {0, 100, 0},
		{150, 0, 0}, {200, 0, 0}, {200, 50, 0}, {150, 50, 0},
	}
	image := make([]Vec2, len(model))
	for i, p := range model {
		px, err := dev.WorldToPixelUnconstrained(want.TransformPoint(p))
		if err != nil {
			t.Fatalf("projection failed: %v", err)
		}
		image[i] = px
	}

	got, err := PlanarSolver{}.EstimatePose(dev, model, image)
	if err != nil {
		t.Fatalf("EstimatePose() error = %v", err)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-4 {
			t.Fatalf("EstimatePose() = %v, want %v", got, want)
		}
	}
}

func TestPlanarSolverErrors(t *testing.T) {
	dev := NewProjectiveDevice(640, 480, 500, 500, 320, 240)
	solver := PlanarSolver{}

	if _, err := solver.EstimatePose(dev, []Vec3{{0, 0, 0}}, []Vec2{{0, 0}}); !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("error = %v, want ErrTooFewPoints", err)
	}

	object := []Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 5}, {0, 1, 0}}
	image := []Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	if _, err := solver.EstimatePose(dev, object, image); !errors.Is(err, ErrNonPlanar) {
		t.Errorf("error = %v, want ErrNonPlanar", err)
	}
}

func poseAboutX(angle float64, t Vec3) Matrix4 {
	c, s := math.Cos(angle), math.Sin(angle)
	return Matrix4{
		1, 0, 0, t.X,
		0, c, -s, t.Y,
		0, s, c, t.Z,
		0, 0, 0, 1,
	}
}
