// Package metrics provides Prometheus metrics for camera streams, store
// connections and board tracking.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cameraFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nectar",
		Subsystem: "camera",
		Name:      "frames_total",
		Help:      "Frames installed into the camera buffer",
	}, []string{"camera_id", "kind"})

	cameraFrameErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nectar",
		Subsystem: "camera",
		Name:      "frame_errors_total",
		Help:      "Frames dropped because of size or fetch errors",
	}, []string{"camera_id", "kind"})

	cameraMarkers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nectar",
		Subsystem: "camera",
		Name:      "markers",
		Help:      "Markers in the latest detection message",
	}, []string{"camera_id"})

	cameraCache   = make(map[string]*CameraMetrics)
	cameraCacheMu sync.RWMutex
)

// Frame kinds used as the "kind" label.
const (
	KindColor = "color"
	KindDepth = "depth"
)

// CameraMetrics holds current metric values for a camera.
type CameraMetrics struct {
	ColorFrames uint64
	DepthFrames uint64
	FrameErrors uint64
	Markers     int
	LastFrame   time.Time
}

// RecordFrame counts an installed frame.
func RecordFrame(cameraID, kind string) {
	cameraFrames.WithLabelValues(cameraID, kind).Inc()
	updateCameraCache(cameraID, func(m *CameraMetrics) {
		if kind == KindDepth {
			m.DepthFrames++
		} else {
			m.ColorFrames++
		}
		m.LastFrame = time.Now()
	})
}

// RecordFrameError counts a dropped frame.
func RecordFrameError(cameraID, kind string) {
	cameraFrameErrors.WithLabelValues(cameraID, kind).Inc()
	updateCameraCache(cameraID, func(m *CameraMetrics) { m.FrameErrors++ })
}

// SetMarkers sets the marker count of the latest detection message.
func SetMarkers(cameraID string, count int) {
	cameraMarkers.WithLabelValues(cameraID).Set(float64(count))
	updateCameraCache(cameraID, func(m *CameraMetrics) { m.Markers = count })
}

// DeleteCameraMetrics removes all metrics for a camera.
func DeleteCameraMetrics(cameraID string) {
	for _, kind := range []string{KindColor, KindDepth} {
		cameraFrames.DeleteLabelValues(cameraID, kind)
		cameraFrameErrors.DeleteLabelValues(cameraID, kind)
	}
	cameraMarkers.DeleteLabelValues(cameraID)

	cameraCacheMu.Lock()
	delete(cameraCache, cameraID)
	cameraCacheMu.Unlock()
}

// GetCameraMetrics returns current metric values for a camera.
func GetCameraMetrics(cameraID string) *CameraMetrics {
	cameraCacheMu.RLock()
	defer cameraCacheMu.RUnlock()
	if m, ok := cameraCache[cameraID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

func updateCameraCache(cameraID string, update func(*CameraMetrics)) {
	cameraCacheMu.Lock()
	defer cameraCacheMu.Unlock()
	m, ok := cameraCache[cameraID]
	if !ok {
		m = &CameraMetrics{}
		cameraCache[cameraID] = m
	}
	update(m)
}
