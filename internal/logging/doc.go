// Package logging provides structured logging with per-module log levels.
//
// Loggers are plain *slog.Logger values tagged with a "module" attribute.
// Output goes to stdout (text or JSON) and, on hosts running journald, to
// the systemd journal under the identifier "nectar".
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"channel":  "debug",
//			"tracking": "warn",
//		},
//	})
//
// Then take a module logger where it is needed:
//
//	logger := logging.GetLogger("camera").With("camera_id", id)
//	logger.Warn("Dropping frame", "error", err)
//
// Module names used in this repository: channel, camera, markers, tracking,
// view, emitter, calibration, nats, api, http, config, main.
//
// Journal entries can be filtered by their structured fields:
//
//	journalctl -t nectar MODULE=channel
//	journalctl -t nectar CAMERA_ID=camera0 -p warning
package logging
