package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFieldName(t *testing.T) {
	tests := []struct {
		groups []string
		key    string
		want   string
	}{
		{nil, "camera_id", "CAMERA_ID"},
		{nil, "error", "ERROR"},
		{[]string{"pose"}, "distance", "POSE_DISTANCE"},
		{nil, "board.name", "BOARD_NAME"},
		{nil, "_hidden", "HIDDEN"},
		{nil, "3d", "F_3D"},
		{nil, "", "F_"},
	}
	for _, tt := range tests {
		if got := fieldName(tt.groups, tt.key); got != tt.want {
			t.Errorf("fieldName(%v, %q) = %q, want %q", tt.groups, tt.key, got, tt.want)
		}
	}
}

func TestAddAttrToFields(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fields := map[string]string{}
	for _, a := range []slog.Attr{
		slog.String("board", "table"),
		slog.Float64("distance", 1.5),
		slog.Time("at", at),
		slog.Group("pair", slog.String("camera_id", "camera0"), slog.Int("updates", 3)),
		{},
	} {
		addAttrToFields(fields, a, []string{"tracking"})
	}

	want := map[string]string{
		"TRACKING_BOARD":          "table",
		"TRACKING_DISTANCE":       "1.5",
		"TRACKING_AT":             "2026-01-02T03:04:05.000Z",
		"TRACKING_PAIR_CAMERA_ID": "camera0",
		"TRACKING_PAIR_UPDATES":   "3",
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestMultiHandlerKeepsWritingOnError(t *testing.T) {
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	h := NewMultiHandler(failingHandler{text}, text)

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "pose updated", 0)
	if err := h.Handle(context.Background(), r); err == nil {
		t.Error("Handle() error = nil, want the failing sink's error")
	}
	if !bytes.Contains(buf.Bytes(), []byte("pose updated")) {
		t.Errorf("healthy sink output = %q", buf.String())
	}
}

func TestJournalHandlerAttrGroups(t *testing.T) {
	h := NewJournalHandler(slog.LevelInfo).
		WithAttrs([]slog.Attr{slog.String("module", "tracking")}).
		WithGroup("pose").
		WithAttrs([]slog.Attr{slog.String("board", "table")}).(*JournalHandler)

	want := map[string]string{"MODULE": "tracking", "POSE_BOARD": "table"}
	if diff := cmp.Diff(want, h.attrs); diff != "" {
		t.Errorf("attrs mismatch (-want +got):\n%s", diff)
	}
}
