package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, w *Watcher[BoardsConfig]) {
	t.Helper()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
}

func TestWatcherReloadsBoards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boards.toml")
	writeFile(t, path, "[boards.table]\ncameras = [\"camera0\"]\n")

	w := NewConfigWatcher(path, LoadBoardsConfig, newTestLogger(),
		WithDebounce[BoardsConfig](20*time.Millisecond))
	received := make(chan BoardsConfig, 4)
	w.OnReload(func(cfg BoardsConfig) { received <- cfg })
	startWatcher(t, w)

	writeFile(t, path, "[boards.table]\ncameras = [\"camera0\", \"camera1\"]\nwidth = 420.0\n")

	select {
	case cfg := <-received:
		b := cfg.Boards["table"]
		if len(b.Cameras) != 2 || b.Width != 420 || b.Name != "table" {
			t.Errorf("reloaded board = %+v", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestWatcherFileCreatedLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boards.toml")

	w := NewConfigWatcher(path, LoadBoardsConfig, newTestLogger(),
		WithDebounce[BoardsConfig](20*time.Millisecond))
	received := make(chan BoardsConfig, 4)
	w.OnReload(func(cfg BoardsConfig) { received <- cfg })
	startWatcher(t, w)

	writeFile(t, filepath.Join(filepath.Dir(path), "other.toml"), "x = 1\n")
	writeFile(t, path, "[boards.paper]\ncameras = [\"camera0\"]\n")

	select {
	case cfg := <-received:
		if _, ok := cfg.Boards["paper"]; !ok {
			t.Errorf("boards = %v, want paper", cfg.Boards)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after create")
	}
}

func TestWatcherDebounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boards.toml")
	writeFile(t, path, "version = 1\n")

	var loads atomic.Int32
	loader := func(p string) (BoardsConfig, error) {
		loads.Add(1)
		return LoadBoardsConfig(p)
	}
	w := NewConfigWatcher(path, loader, newTestLogger(),
		WithDebounce[BoardsConfig](200*time.Millisecond))
	startWatcher(t, w)

	for range 5 {
		writeFile(t, path, "version = 1\n")
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := loads.Load(); got != 1 {
		t.Errorf("loads = %d, want 1", got)
	}
}

func TestWatcherErrorHandlerAndUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boards.toml")
	writeFile(t, path, "version = 1\n")

	errs := make(chan error, 4)
	var calls atomic.Int32
	w := NewConfigWatcher(path, LoadBoardsConfig, newTestLogger(),
		WithDebounce[BoardsConfig](20*time.Millisecond),
		WithErrorHandler[BoardsConfig](func(err error) { errs <- err }))
	unsub := w.OnReload(func(BoardsConfig) { calls.Add(1) })
	unsub()
	startWatcher(t, w)

	writeFile(t, path, "[boards\n")
	select {
	case err := <-errs:
		if err == nil {
			t.Error("error handler got nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error handler not called")
	}

	writeFile(t, path, "version = 2\n")
	time.Sleep(200 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("removed handler called %d times", calls.Load())
	}
}

func TestWatcherStopWithoutStart(t *testing.T) {
	w := NewConfigWatcher("boards.toml", LoadBoardsConfig, newTestLogger())
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() = %v", err)
	}
}

func TestWatcherStartMissingDir(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "missing", "boards.toml"), LoadBoardsConfig, newTestLogger())
	if err := w.Start(context.Background()); err == nil {
		_ = w.Stop()
		t.Fatal("Start() with missing directory succeeded")
	} else if !errors.Is(err, os.ErrNotExist) {
		t.Logf("Start() error = %v", err)
	}
}
