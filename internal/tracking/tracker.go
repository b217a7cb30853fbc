package tracking

import (
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/nectar/internal/events"
	"github.com/smazurov/nectar/internal/logging"
)

// Tracker feeds marker detections from the event bus into a Registry and
// publishes the recomputed poses.
type Tracker struct {
	registry *Registry
	bus      *events.Bus
	logger   *slog.Logger

	mu    sync.Mutex
	unsub func()
}

// NewTracker creates a tracker. Call Start to begin consuming events.
func NewTracker(registry *Registry, bus *events.Bus) *Tracker {
	return &Tracker{
		registry: registry,
		bus:      bus,
		logger:   logging.GetLogger("tracking"),
	}
}

// Start subscribes to marker updates. Calling Start twice is a no-op.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unsub != nil {
		return
	}
	t.unsub = t.bus.Subscribe(t.handleMarkers)
	t.logger.Info("Tracker started")
}

// Stop unsubscribes from the bus.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unsub != nil {
		t.unsub()
		t.unsub = nil
		t.logger.Info("Tracker stopped")
	}
}

func (t *Tracker) handleMarkers(e events.MarkersUpdatedEvent) {
	t.Update(e.CameraID, e)
}

// Update recomputes every board registered with camera and returns the
// pairs whose transform changed.
func (t *Tracker) Update(camera string, e events.MarkersUpdatedEvent) []Pair {
	var updated []Pair
	for _, pair := range t.registry.Pairs(camera) {
		changed, err := t.registry.UpdateLocation(pair, e.Markers)
		if err != nil {
			t.logger.Warn("Pose update failed", "board", pair.Board, "camera_id", camera, "error", err)
			continue
		}
		if !changed {
			continue
		}
		updated = append(updated, pair)

		st, err := t.registry.State(pair)
		if err != nil {
			continue
		}
		t.bus.Publish(events.PoseUpdatedEvent{
			Board:     pair.Board,
			CameraID:  pair.Camera,
			Transform: st.Transform,
			Distance:  st.LastDistance,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	return updated
}
