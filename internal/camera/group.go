package camera

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/smazurov/nectar/internal/geometry"
	"github.com/smazurov/nectar/internal/markers"
)

// Group holds the running streams of a process, keyed by camera id.
type Group struct {
	mu      sync.RWMutex
	streams map[string]*Stream
}

// NewGroup creates an empty group.
func NewGroup() *Group {
	return &Group{streams: make(map[string]*Stream)}
}

// Add registers s, replacing a stream with the same id.
func (g *Group) Add(s *Stream) {
	g.mu.Lock()
	g.streams[s.ID()] = s
	g.mu.Unlock()
}

// Get returns the stream of camera id.
func (g *Group) Get(id string) (*Stream, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.streams[id]
	return s, ok
}

// IDs returns the camera ids in order.
func (g *Group) IDs() []string {
	g.mu.RLock()
	ids := make([]string, 0, len(g.streams))
	for id := range g.streams {
		ids = append(ids, id)
	}
	g.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Markers returns the latest detections of camera id.
func (g *Group) Markers(id string) ([]markers.DetectedMarker, bool) {
	s, ok := g.Get(id)
	if !ok {
		return nil, false
	}
	return s.Markers(), true
}

// Descriptor returns the configuration of camera id.
func (g *Group) Descriptor(id string) (Descriptor, bool) {
	s, ok := g.Get(id)
	if !ok {
		return Descriptor{}, false
	}
	return s.Descriptor(), true
}

// Close closes every stream.
func (g *Group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var errs []error
	for id, s := range g.streams {
		errs = append(errs, s.Close())
		delete(g.streams, id)
	}
	return errors.Join(errs...)
}

// Calibration returns the color calibration of camera id.
func (g *Group) Calibration(id string) (geometry.ProjectiveDevice, bool) {
	s, ok := g.Get(id)
	if !ok {
		return geometry.ProjectiveDevice{}, false
	}
	return s.Descriptor().Calibration, true
}

// ColorFrame returns a copy of the latest color frame of camera id.
func (g *Group) ColorFrame(id string) (Frame, bool) {
	s, ok := g.Get(id)
	if !ok {
		return Frame{}, false
	}
	return s.ColorFrame()
}

// DepthFrame returns a copy of the latest depth frame of camera id.
func (g *Group) DepthFrame(id string) (Frame, bool) {
	s, ok := g.Get(id)
	if !ok {
		return Frame{}, false
	}
	return s.DepthFrame()
}

func (g *Group) stream(id string) (*Stream, error) {
	s, ok := g.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCamera, id)
	}
	return s, nil
}

// UpdateCalibration re-reads the calibrations of camera id and returns the
// resulting descriptor.
func (g *Group) UpdateCalibration(ctx context.Context, id string) (Descriptor, bool, error) {
	s, err := g.stream(id)
	if err != nil {
		return Descriptor{}, false, err
	}
	updated, err := s.UpdateCalibration(ctx)
	return s.Descriptor(), updated, err
}

// UpdateExtrinsics re-reads the depth-to-color transform of camera id.
func (g *Group) UpdateExtrinsics(ctx context.Context, id string) (Descriptor, error) {
	s, err := g.stream(id)
	if err != nil {
		return Descriptor{}, err
	}
	if err := s.UpdateExtrinsics(ctx); err != nil {
		return Descriptor{}, err
	}
	return s.Descriptor(), nil
}

// Location reads the named transform of camera id. The name "table"
// selects the table transform.
func (g *Group) Location(ctx context.Context, id, name string) (geometry.Matrix4, error) {
	s, err := g.stream(id)
	if err != nil {
		return geometry.Identity(), err
	}
	if name == "table" {
		return s.TableLocation(ctx)
	}
	return s.Location(ctx, name)
}
