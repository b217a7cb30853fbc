package view

import (
	"math"

	"github.com/smazurov/nectar/internal/camera"
	"github.com/smazurov/nectar/internal/geometry"
)

// warp fills dst (w x h, src.Channels) by sampling src through inv, the
// view-to-source homography. Pixels mapping outside src are zero.
func warp(src *camera.Frame, inv geometry.Homography, dst []byte, w, h int) {
	ch := src.Channels
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := inv.Apply(geometry.Vec2{X: float64(x), Y: float64(y)})
			off := (y*w + x) * ch
			sample(src, p.X, p.Y, dst[off:off+ch])
		}
	}
}

// sample writes the bilinear interpolation of src at (x, y) into px.
func sample(src *camera.Frame, x, y float64, px []byte) {
	maxX, maxY := float64(src.Width-1), float64(src.Height-1)
	if math.IsNaN(x) || math.IsNaN(y) || x < -0.5 || y < -0.5 || x > maxX+0.5 || y > maxY+0.5 {
		clear(px)
		return
	}
	x = math.Min(math.Max(x, 0), maxX)
	y = math.Min(math.Max(y, 0), maxY)

	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, src.Width-1), min(y0+1, src.Height-1)
	fx, fy := x-float64(x0), y-float64(y0)

	ch := src.Channels
	row0, row1 := y0*src.Width, y1*src.Width
	for c := 0; c < ch; c++ {
		a := float64(src.Data[(row0+x0)*ch+c])
		b := float64(src.Data[(row0+x1)*ch+c])
		d := float64(src.Data[(row1+x0)*ch+c])
		e := float64(src.Data[(row1+x1)*ch+c])
		top := a + (b-a)*fx
		bottom := d + (e-d)*fx
		px[c] = byte(math.Round(top + (bottom-top)*fy))
	}
}
