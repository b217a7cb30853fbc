package tracking

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/smazurov/nectar/internal/config"
	"github.com/smazurov/nectar/internal/geometry"
	"github.com/smazurov/nectar/internal/logging"
)

// DeviceSource returns the color calibration of a running camera.
// *camera.Group satisfies it.
type DeviceSource interface {
	Calibration(camera string) (geometry.ProjectiveDevice, bool)
}

// Loader keeps a Registry in line with a boards file.
type Loader struct {
	registry *Registry
	models   ModelSource
	devices  DeviceSource
	logger   *slog.Logger
}

// NewLoader creates a loader. models may be nil when every board defines
// its markers inline.
func NewLoader(registry *Registry, models ModelSource, devices DeviceSource) *Loader {
	return &Loader{
		registry: registry,
		models:   models,
		devices:  devices,
		logger:   logging.GetLogger("tracking"),
	}
}

// Apply loads every board of cfg, registers it with its running cameras and
// applies the filter and drawing settings. Boards missing from cfg are
// removed. Per-board failures are logged and joined into the returned error;
// the other boards are still applied.
func (l *Loader) Apply(ctx context.Context, cfg *config.BoardsConfig) error {
	names := make([]string, 0, len(cfg.Boards))
	for name := range cfg.Boards {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := l.applyBoard(ctx, name, cfg.Boards[name]); err != nil {
			l.logger.Warn("Failed to apply board", "board", name, "error", err)
			errs = append(errs, err)
		}
	}

	for _, b := range l.registry.Boards() {
		if _, ok := cfg.Boards[b.Name]; !ok {
			l.registry.RemoveBoard(b.Name)
			l.logger.Info("Board removed", "board", b.Name)
		}
	}
	return errors.Join(errs...)
}

func (l *Loader) applyBoard(ctx context.Context, name string, bc config.BoardConfig) error {
	board, err := LoadBoard(ctx, name, bc, l.models)
	if err != nil {
		return err
	}
	l.registry.AddBoard(board)

	wanted := make(map[string]bool, len(bc.Cameras))
	for _, cam := range bc.Cameras {
		wanted[cam] = true
		device, ok := l.devices.Calibration(cam)
		if !ok {
			l.logger.Warn("Board camera is not running", "board", name, "camera_id", cam)
			continue
		}
		pair := Pair{Board: name, Camera: cam}
		if err := l.registry.Register(pair, device); err != nil {
			return err
		}
		if err := l.configure(pair, bc); err != nil {
			return err
		}
	}

	// Cameras dropped from the board stop tracking it.
	for _, p := range l.registry.Pairs("") {
		if p.Board == name && !wanted[p.Camera] {
			l.registry.Unregister(p)
		}
	}
	return nil
}

func (l *Loader) configure(pair Pair, bc config.BoardConfig) error {
	if bc.Filter != nil {
		if err := l.registry.SetFiltering(pair, bc.Filter.Frequency, bc.Filter.MinCutoff); err != nil {
			return err
		}
	} else if err := l.registry.RemoveFiltering(pair); err != nil {
		return err
	}

	if bc.Drawing != nil {
		dist := bc.Drawing.MinDistance
		if dist <= 0 {
			dist = DefaultDrawingDistance
		}
		return l.registry.SetDrawingMode(pair, bc.Drawing.Enabled, dist)
	}
	return l.registry.SetDrawingMode(pair, false, DefaultDrawingDistance)
}
