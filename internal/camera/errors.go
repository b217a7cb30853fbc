package camera

import (
	"errors"
	"fmt"
)

// Sentinel errors for camera lookups and depth operations.
var (
	ErrUnknownCamera = errors.New("camera: unknown camera")
	ErrNoDepth       = errors.New("camera: depth not configured")
)

// ConfigMissingError reports a required configuration key that is absent or
// unreadable at stream start. The stream cannot run without it.
type ConfigMissingError struct {
	CameraID string
	Key      string
	Cause    error
}

func (e *ConfigMissingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("camera %s: missing configuration %q: %v", e.CameraID, e.Key, e.Cause)
	}
	return fmt.Sprintf("camera %s: missing configuration %q", e.CameraID, e.Key)
}

func (e *ConfigMissingError) Unwrap() error {
	return e.Cause
}

// FrameSizeError reports a frame payload shorter than width*height*channels.
type FrameSizeError struct {
	Width    int
	Height   int
	Channels int
	Got      int
}

func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("frame %dx%dx%d needs %d bytes, got %d",
		e.Width, e.Height, e.Channels, e.Width*e.Height*e.Channels, e.Got)
}
