package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNonPlanar is returned by PlanarSolver when model points leave the z = 0 plane.
var ErrNonPlanar = errors.New("geometry: model points are not planar")

// PoseSolver estimates the camera-space transform of a rigid model from
// model points and their observed pixel positions.
type PoseSolver interface {
	EstimatePose(dev ProjectiveDevice, object []Vec3, image []Vec2) (Matrix4, error)
}

// PlanarSolver recovers the pose of a planar model (z = 0) by decomposing
// the model-to-image homography with the camera intrinsics.
type PlanarSolver struct{}

// EstimatePose implements PoseSolver.
func (PlanarSolver) EstimatePose(dev ProjectiveDevice, object []Vec3, image []Vec2) (Matrix4, error) {
	if len(object) != len(image) {
		return Matrix4{}, fmt.Errorf("geometry: %d model points for %d image points", len(object), len(image))
	}
	if len(object) < 4 {
		return Matrix4{}, ErrTooFewPoints
	}

	plane := make([]Vec2, len(object))
	for i, p := range object {
		if math.Abs(p.Z) > 1e-9 {
			return Matrix4{}, ErrNonPlanar
		}
		plane[i] = Vec2{X: p.X, Y: p.Y}
	}

	h, err := ComputeHomography(plane, image)
	if err != nil {
		return Matrix4{}, err
	}

	var kInv mat.Dense
	if err := kInv.Inverse(mat.NewDense(3, 3, dev.Intrinsics[:])); err != nil {
		return Matrix4{}, fmt.Errorf("%w: intrinsics: %v", ErrSingular, err)
	}
	var m mat.Dense
	m.Mul(&kInv, mat.NewDense(3, 3, h[:]))

	c1 := mat.Col(nil, 0, &m)
	c2 := mat.Col(nil, 1, &m)
	c3 := mat.Col(nil, 2, &m)

	norm := (floats3Norm(c1) + floats3Norm(c2)) / 2
	if norm < 1e-12 {
		return Matrix4{}, ErrDegenerate
	}
	lambda := 1 / norm
	if c3[2]*lambda < 0 {
		lambda = -lambda
	}

	r1 := scale3(c1, lambda)
	r2 := scale3(c2, lambda)
	t := scale3(c3, lambda)
	r3 := cross3(r1, r2)

	rot := mat.NewDense(3, 3, []float64{
		r1[0], r2[0], r3[0],
		r1[1], r2[1], r3[1],
		r1[2], r2[2], r3[2],
	})
	var svd mat.SVD
	if !svd.Factorize(rot, mat.SVDFull) {
		return Matrix4{}, ErrDegenerate
	}
	var u, v, r mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		return Matrix4{}, ErrDegenerate
	}

	return Matrix4{
		r.At(0, 0), r.At(0, 1), r.At(0, 2), t[0],
		r.At(1, 0), r.At(1, 1), r.At(1, 2), t[1],
		r.At(2, 0), r.At(2, 1), r.At(2, 2), t[2],
		0, 0, 0, 1,
	}, nil
}

func floats3Norm(v []float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func scale3(v []float64, s float64) []float64 {
	return []float64{v[0] * s, v[1] * s, v[2] * s}
}

func cross3(a, b []float64) []float64 {
	return []float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
