package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrTooFewPoints is returned when a solver does not receive enough
// correspondences.
var ErrTooFewPoints = errors.New("geometry: not enough correspondences")

// ErrDegenerate is returned when correspondences are collinear or otherwise
// do not constrain a solution.
var ErrDegenerate = errors.New("geometry: degenerate correspondences")

// Homography is a row-major 3x3 projective transform.
type Homography [9]float64

// Apply maps p through h.
func (h Homography) Apply(p Vec2) Vec2 {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	return Vec2{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// Inverse returns the inverse transform.
func (h Homography) Inverse() (Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(3, 3, h[:])); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = inv.At(r, c)
		}
	}
	return out, nil
}

// ComputeHomography returns the transform mapping each src point onto its
// dst counterpart. Three pairs give the exact affine solution; four or more
// use the normalised direct linear transform.
func ComputeHomography(src, dst []Vec2) (Homography, error) {
	if len(src) != len(dst) {
		return Homography{}, fmt.Errorf("geometry: %d source points for %d targets", len(src), len(dst))
	}
	switch {
	case len(src) < 3:
		return Homography{}, ErrTooFewPoints
	case len(src) == 3:
		return computeAffine(src, dst)
	}

	srcN, srcT := normalize(src)
	dstN, dstT := normalize(dst)

	a := mat.NewDense(2*len(src), 9, nil)
	for i := range srcN {
		x, y := srcN[i].X, srcN[i].Y
		u, v := dstN[i].X, dstN[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return Homography{}, ErrDegenerate
	}
	var v mat.Dense
	svd.VTo(&v)
	values := svd.Values(nil)
	if len(values) >= 8 && values[7] < 1e-12 {
		return Homography{}, ErrDegenerate
	}

	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, v.At(i, 8))
	}

	// H = inv(Tdst) * Hn * Tsrc
	var dstInv mat.Dense
	if err := dstInv.Inverse(dstT); err != nil {
		return Homography{}, ErrDegenerate
	}
	var tmp, full mat.Dense
	tmp.Mul(hn, srcT)
	full.Mul(&dstInv, &tmp)

	scale := full.At(2, 2)
	if math.Abs(scale) < 1e-15 {
		return Homography{}, ErrDegenerate
	}
	var h Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r*3+c] = full.At(r, c) / scale
		}
	}
	return h, nil
}

// computeAffine solves the 6-parameter transform for exactly three pairs.
func computeAffine(src, dst []Vec2) (Homography, error) {
	a := mat.NewDense(3, 3, []float64{
		src[0].X, src[0].Y, 1,
		src[1].X, src[1].Y, 1,
		src[2].X, src[2].Y, 1,
	})
	var lu mat.LU
	lu.Factorize(a)
	if math.Abs(lu.Det()) < 1e-12 {
		return Homography{}, ErrDegenerate
	}

	var rowX, rowY mat.VecDense
	if err := lu.SolveVecTo(&rowX, false, mat.NewVecDense(3, []float64{dst[0].X, dst[1].X, dst[2].X})); err != nil {
		return Homography{}, ErrDegenerate
	}
	if err := lu.SolveVecTo(&rowY, false, mat.NewVecDense(3, []float64{dst[0].Y, dst[1].Y, dst[2].Y})); err != nil {
		return Homography{}, ErrDegenerate
	}
	return Homography{
		rowX.AtVec(0), rowX.AtVec(1), rowX.AtVec(2),
		rowY.AtVec(0), rowY.AtVec(1), rowY.AtVec(2),
		0, 0, 1,
	}, nil
}

// normalize translates points to their centroid and scales them to a mean
// distance of sqrt(2), returning the applied similarity.
func normalize(pts []Vec2) ([]Vec2, *mat.Dense) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var mean float64
	for _, p := range pts {
		mean += math.Hypot(p.X-cx, p.Y-cy)
	}
	mean /= n
	s := 1.0
	if mean > 0 {
		s = math.Sqrt2 / mean
	}

	out := make([]Vec2, len(pts))
	for i, p := range pts {
		out[i] = Vec2{X: (p.X - cx) * s, Y: (p.Y - cy) * s}
	}
	return out, mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
}
