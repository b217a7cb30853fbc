package view

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/smazurov/nectar/internal/camera"
)

// ToImage wraps a packed frame as an image. Color formats are converted to
// RGBA; GRAY and DEPTH16 keep their native image types.
func ToImage(f *camera.Frame, format camera.PixelFormat) (image.Image, error) {
	if f == nil || f.Width <= 0 || f.Height <= 0 {
		return nil, ErrNoSource
	}
	if f.Channels != format.Channels() {
		return nil, fmt.Errorf("view: %d-channel frame is not %s", f.Channels, format)
	}
	if len(f.Data) < f.Size() {
		return nil, fmt.Errorf("view: frame holds %d bytes, want %d", len(f.Data), f.Size())
	}

	rect := image.Rect(0, 0, f.Width, f.Height)
	switch format {
	case camera.Gray:
		return &image.Gray{Pix: f.Data[:f.Size()], Stride: f.Width, Rect: rect}, nil
	case camera.Depth16:
		// Producers write little-endian samples; image.Gray16 is big-endian.
		img := image.NewGray16(rect)
		for i := range f.Width * f.Height {
			img.Pix[2*i] = f.Data[2*i+1]
			img.Pix[2*i+1] = f.Data[2*i]
		}
		return img, nil
	}

	img := image.NewRGBA(rect)
	for i := range f.Width * f.Height {
		p := f.Data[i*f.Channels:]
		var c color.RGBA
		switch format {
		case camera.BGR:
			c = color.RGBA{R: p[2], G: p[1], B: p[0], A: 0xff}
		case camera.ARGB:
			c = color.RGBA{R: p[1], G: p[2], B: p[3], A: 0xff}
		default:
			c = color.RGBA{R: p[0], G: p[1], B: p[2], A: 0xff}
		}
		img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = c.R, c.G, c.B, c.A
	}
	return img, nil
}

// EncodePNG writes f as a PNG image.
func EncodePNG(w io.Writer, f *camera.Frame, format camera.PixelFormat) error {
	img, err := ToImage(f, format)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}
