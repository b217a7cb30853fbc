// Package systemd controls the producer services of this machine through
// the systemd user manager.
package systemd

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

// UnitPrefix is prepended to bare producer names.
const UnitPrefix = "nectar-"

// UnitName maps a producer name to its unit: "camera0" becomes
// "nectar-camera0.service". Names that already carry a unit suffix are kept.
func UnitName(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return UnitPrefix + name + ".service"
}

// Units is the subset of the systemd manager used by Run.
type Units interface {
	Status(ctx context.Context, unit string) (string, error)
	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error
}

// Run applies action (start, stop, restart or status) to the unit of
// producer name and returns the resulting ActiveState.
func Run(ctx context.Context, u Units, name, action string) (string, error) {
	unit := UnitName(name)
	var err error
	switch action {
	case "start":
		err = u.Start(ctx, unit)
	case "stop":
		err = u.Stop(ctx, unit)
	case "restart":
		err = u.Restart(ctx, unit)
	case "status":
	default:
		return "", fmt.Errorf("unknown service action %q", action)
	}
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", action, unit, err)
	}
	return u.Status(ctx, unit)
}

// Manager handles systemd service lifecycle operations via D-Bus.
type Manager struct {
	conn *dbus.Conn
}

// NewManager creates a new systemd manager with a user-level D-Bus connection.
func NewManager(ctx context.Context) (*Manager, error) {
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return &Manager{conn: conn}, nil
}

// Status retrieves the ActiveState property of a unit.
func (m *Manager) Status(ctx context.Context, unit string) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", err
	}
	return strings.Trim(prop.Value.String(), `"`), nil
}

// Restart restarts a unit using the replace mode and waits for the job.
func (m *Manager) Restart(ctx context.Context, unit string) error {
	return m.job(ctx, unit, m.conn.RestartUnitContext)
}

// Stop stops a unit using the replace mode and waits for the job.
func (m *Manager) Stop(ctx context.Context, unit string) error {
	return m.job(ctx, unit, m.conn.StopUnitContext)
}

// Start starts a unit using the replace mode and waits for the job.
func (m *Manager) Start(ctx context.Context, unit string) error {
	return m.job(ctx, unit, m.conn.StartUnitContext)
}

func (m *Manager) job(ctx context.Context, unit string, fn func(context.Context, string, string, chan<- string) (int, error)) error {
	done := make(chan string, 1)
	if _, err := fn(ctx, unit, "replace", done); err != nil {
		return err
	}
	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("job %s", result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
