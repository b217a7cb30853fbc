package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestRunEmit(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	image := filepath.Join(dir, "frame.raw")
	if err := os.WriteFile(image, make([]byte, 4*2*3), 0o644); err != nil {
		t.Fatal(err)
	}
	marks := filepath.Join(dir, "markers.json")
	if err := os.WriteFile(marks, []byte(`{"markers":[{"id":3,"corners":[0,0,1,0,1,1,0,1]}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := EmitOptions{
		Store:   StoreOptions{Backend: BackendRedis, Addr: mr.Addr()},
		Camera:  "camera0",
		Image:   image,
		Width:   4,
		Height:  2,
		Format:  "RGB",
		Markers: marks,
		FPS:     1000,
		Count:   2,
	}
	if err := RunEmit(context.Background(), opts); err != nil {
		t.Fatalf("RunEmit() error = %v", err)
	}

	tests := map[string]string{
		"camera0:width":       "4",
		"camera0:height":      "2",
		"camera0:channels":    "3",
		"camera0:pixelformat": "RGB",
	}
	for key, want := range tests {
		got, err := mr.Get(key)
		if err != nil || got != want {
			t.Errorf("%s = %q (%v), want %q", key, got, err, want)
		}
	}
	if got, _ := mr.Get("camera0"); len(got) != 24 {
		t.Errorf("frame length = %d, want 24", len(got))
	}
	if !mr.Exists("camera0:markers") {
		t.Error("markers key not written")
	}
}

func TestRunEmitShortImage(t *testing.T) {
	image := filepath.Join(t.TempDir(), "frame.raw")
	if err := os.WriteFile(image, make([]byte, 10), 0o644); err != nil {
		t.Fatal(err)
	}
	err := RunEmit(context.Background(), EmitOptions{Image: image, Width: 4, Height: 2, Format: "RGB"})
	if err == nil {
		t.Fatal("RunEmit() error = nil, want frame size error")
	}
}
