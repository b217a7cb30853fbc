package camera

import (
	"sync"
	"time"
)

// Frame is a packed pixel buffer.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Channels  int
	Timestamp time.Time
}

// Size returns Width*Height*Channels.
func (f Frame) Size() int {
	return f.Width * f.Height * f.Channels
}

// FrameBuffer holds the latest frame of a stream. A new frame replaces the
// previous one. The backing array is reallocated only when the frame size
// changes and is otherwise overwritten in place.
type FrameBuffer struct {
	mu          sync.RWMutex
	frame       Frame
	allocations int
}

// Install copies data into the buffer. A payload shorter than
// width*height*channels returns *FrameSizeError and leaves the previous
// frame untouched.
func (b *FrameBuffer) Install(data []byte, width, height, channels int) error {
	size := width * height * channels
	if len(data) < size {
		return &FrameSizeError{Width: width, Height: height, Channels: channels, Got: len(data)}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frame.Data == nil || b.frame.Width != width || b.frame.Height != height || len(b.frame.Data) != size {
		b.frame.Data = make([]byte, size)
		b.allocations++
	}
	copy(b.frame.Data, data[:size])
	b.frame.Width = width
	b.frame.Height = height
	b.frame.Channels = channels
	b.frame.Timestamp = time.Now()
	return nil
}

// Snapshot returns a copy of the latest frame, or false before the first
// install.
func (b *FrameBuffer) Snapshot() (Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.frame.Data == nil {
		return Frame{}, false
	}
	f := b.frame
	f.Data = append([]byte(nil), b.frame.Data...)
	return f, true
}

// Allocations returns how many times the backing array was allocated.
func (b *FrameBuffer) Allocations() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.allocations
}
