package tracking

import (
	"errors"
	"fmt"
)

// ErrUnknownBoard is returned when a board name has not been added.
var ErrUnknownBoard = errors.New("tracking: unknown board")

// ErrUnsupportedBoard is returned for board definitions that need an
// external parser (SVG, image or ARToolKit files).
var ErrUnsupportedBoard = errors.New("tracking: unsupported board type")

// UnregisteredPairError reports a query on a board that was never
// registered with the camera.
type UnregisteredPairError struct {
	Pair Pair
}

func (e *UnregisteredPairError) Error() string {
	return fmt.Sprintf("board %s is not registered with camera %s", e.Pair.Board, e.Pair.Camera)
}
