package events

import "github.com/smazurov/nectar/internal/markers"

// Event type constants for kelindar/event.
const (
	TypeImageUpdated uint32 = iota + 1
	TypeDepthUpdated
	TypeMarkersUpdated
	TypePoseUpdated
	TypeConnection
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ImageUpdatedEvent is published after a color frame has been installed.
type ImageUpdatedEvent struct {
	CameraID  string `json:"camera_id" example:"camera0" doc:"Camera identifier"`
	Width     int    `json:"width" example:"640" doc:"Frame width in pixels"`
	Height    int    `json:"height" example:"480" doc:"Frame height in pixels"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Install time"`
}

// Type returns the event type identifier for ImageUpdatedEvent.
func (e ImageUpdatedEvent) Type() uint32 { return TypeImageUpdated }

// DepthUpdatedEvent is published after a depth frame has been installed.
type DepthUpdatedEvent struct {
	CameraID  string `json:"camera_id" example:"camera0" doc:"Camera identifier"`
	Width     int    `json:"width" example:"640" doc:"Frame width in pixels"`
	Height    int    `json:"height" example:"480" doc:"Frame height in pixels"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Install time"`
}

// Type returns the event type identifier for DepthUpdatedEvent.
func (e DepthUpdatedEvent) Type() uint32 { return TypeDepthUpdated }

// MarkersUpdatedEvent carries a freshly decoded detection list.
type MarkersUpdatedEvent struct {
	CameraID  string                   `json:"camera_id" example:"camera0" doc:"Camera identifier"`
	Count     int                      `json:"count" example:"4" doc:"Number of detected markers"`
	Markers   []markers.DetectedMarker `json:"markers" doc:"Decoded markers"`
	Timestamp string                   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Decode time"`
}

// Type returns the event type identifier for MarkersUpdatedEvent.
func (e MarkersUpdatedEvent) Type() uint32 { return TypeMarkersUpdated }

// PoseUpdatedEvent is published when a board pose was recomputed.
type PoseUpdatedEvent struct {
	Board     string      `json:"board" example:"table" doc:"Board name"`
	CameraID  string      `json:"camera_id" example:"camera0" doc:"Camera identifier"`
	Transform [16]float64 `json:"transform" doc:"Row-major 4x4 board-to-camera transform"`
	Distance  float64     `json:"distance" example:"1.5" doc:"Movement since the previous pose (mm)"`
	Timestamp string      `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Update time"`
}

// Type returns the event type identifier for PoseUpdatedEvent.
func (e PoseUpdatedEvent) Type() uint32 { return TypePoseUpdated }

// ConnectionEvent reports subscribe-loop connection changes.
type ConnectionEvent struct {
	Channel   string `json:"channel" example:"camera0:markers" doc:"Subscribed channel"`
	State     string `json:"state" example:"reconnecting" doc:"subscribed, reconnecting or closed"`
	Attempt   int    `json:"attempt" example:"1" doc:"Consecutive failed attempts"`
	Error     string `json:"error,omitempty" doc:"Last connection error"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event time"`
}

// Type returns the event type identifier for ConnectionEvent.
func (e ConnectionEvent) Type() uint32 { return TypeConnection }
