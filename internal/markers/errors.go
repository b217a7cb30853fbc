package markers

import (
	"errors"
	"fmt"
)

// ErrMarkerFormat identifies a detection entry that violates the message schema.
var ErrMarkerFormat = errors.New("marker format")

// FormatError reports a marker entry whose corner array is not 8 values long.
type FormatError struct {
	Index   int
	ID      int
	Corners int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("marker entry %d (id %d): expected 8 corner values, got %d", e.Index, e.ID, e.Corners)
}

func (e *FormatError) Unwrap() error {
	return ErrMarkerFormat
}
