package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestCameraMetricsCache(t *testing.T) {
	cameraID := "test-camera-1"
	DeleteCameraMetrics(cameraID)

	if m := GetCameraMetrics(cameraID); m != nil {
		t.Error("expected nil for unknown camera")
	}

	RecordFrame(cameraID, KindColor)
	RecordFrame(cameraID, KindColor)
	RecordFrame(cameraID, KindDepth)
	RecordFrameError(cameraID, KindColor)
	SetMarkers(cameraID, 4)

	m := GetCameraMetrics(cameraID)
	if m == nil {
		t.Fatal("expected non-nil metrics")
	}
	if m.ColorFrames != 2 {
		t.Errorf("ColorFrames = %d, want 2", m.ColorFrames)
	}
	if m.DepthFrames != 1 {
		t.Errorf("DepthFrames = %d, want 1", m.DepthFrames)
	}
	if m.FrameErrors != 1 {
		t.Errorf("FrameErrors = %d, want 1", m.FrameErrors)
	}
	if m.Markers != 4 {
		t.Errorf("Markers = %d, want 4", m.Markers)
	}
	if m.LastFrame.IsZero() {
		t.Error("LastFrame should be set")
	}

	DeleteCameraMetrics(cameraID)
	if GetCameraMetrics(cameraID) != nil {
		t.Error("expected nil after delete")
	}
}

func TestCameraMetricsConcurrentAccess(_ *testing.T) {
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for range 100 {
				RecordFrame("concurrent", KindColor)
				SetMarkers("concurrent", n)
				_ = GetCameraMetrics("concurrent")
			}
		}(i)
	}
	wg.Wait()
	DeleteCameraMetrics("concurrent")
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordReconnect("camera0:markers")
	RecordPoseUpdate("table", "camera0", 1.5)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{
		"nectar_channel_reconnects_total",
		"nectar_tracking_pose_updates_total",
		"nectar_tracking_movement_mm",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
