package camera

import (
	"fmt"
	"strings"

	"github.com/smazurov/nectar/internal/geometry"
)

// DefaultFrameRate is assumed for store-backed cameras.
const DefaultFrameRate = 30

// PixelFormat names the packed layout of a frame.
type PixelFormat string

// Supported pixel formats.
const (
	RGB     PixelFormat = "RGB"
	BGR     PixelFormat = "BGR"
	ARGB    PixelFormat = "ARGB"
	Gray    PixelFormat = "GRAY"
	Depth16 PixelFormat = "DEPTH16"
)

// ParsePixelFormat accepts the names written by camera producers. The
// OpenNI depth name is an alias of DEPTH16.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RGB":
		return RGB, nil
	case "BGR":
		return BGR, nil
	case "ARGB":
		return ARGB, nil
	case "GRAY":
		return Gray, nil
	case "DEPTH16", "OPENNI_2_DEPTH", "REALSENSE_Z16":
		return Depth16, nil
	default:
		return "", fmt.Errorf("unknown pixel format %q", s)
	}
}

// Channels returns the bytes per pixel.
func (f PixelFormat) Channels() int {
	switch f {
	case ARGB:
		return 4
	case Gray:
		return 1
	case Depth16:
		return 2
	default:
		return 3
	}
}

// Descriptor is the configuration of one camera, read from the store at
// stream start.
type Descriptor struct {
	ID          string
	PixelFormat PixelFormat
	Width       int
	Height      int
	FrameRate   int
	Calibration geometry.ProjectiveDevice
	Depth       *DepthDescriptor
}

// Channels returns the bytes per color pixel.
func (d Descriptor) Channels() int {
	return d.PixelFormat.Channels()
}

// DepthDescriptor describes the depth sensor of a camera rig.
type DepthDescriptor struct {
	Width       int
	Height      int
	Calibration *geometry.ProjectiveDevice

	// Extrinsics is the depth-to-color rigid transform.
	Extrinsics geometry.Matrix4
}
