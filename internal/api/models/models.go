package models

import (
	"time"

	"github.com/smazurov/nectar/internal/markers"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go runtime version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Camera models
type CameraData struct {
	ID          string `json:"id" example:"camera0" doc:"Camera identifier"`
	Width       int    `json:"width" example:"640" doc:"Color frame width"`
	Height      int    `json:"height" example:"480" doc:"Color frame height"`
	PixelFormat string `json:"pixel_format" example:"RGB" doc:"Color pixel format"`
	Depth       bool   `json:"depth" example:"false" doc:"Whether a depth sensor is configured"`
}

type CameraListData struct {
	Cameras []CameraData `json:"cameras" doc:"Running camera streams"`
	Count   int          `json:"count" example:"1" doc:"Number of cameras"`
}

type CameraListResponse struct {
	Body CameraListData
}

type CameraPathInput struct {
	ID string `path:"id" example:"camera0" doc:"Camera identifier"`
}

type MarkersData struct {
	CameraID string                   `json:"camera_id" example:"camera0" doc:"Camera identifier"`
	Count    int                      `json:"count" example:"4" doc:"Number of detected markers"`
	Markers  []markers.DetectedMarker `json:"markers" doc:"Latest detections"`
}

type MarkersResponse struct {
	Body MarkersData
}

type FrameResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type CalibrationData struct {
	Camera  CameraData `json:"camera" doc:"Camera after the reload"`
	Updated bool       `json:"updated" example:"true" doc:"Whether a color calibration was found"`
	Pairs   []PairData `json:"pairs" doc:"Board pairs now using the reloaded calibration"`
}

type CalibrationResponse struct {
	Body CalibrationData
}

type TransformData struct {
	CameraID  string      `json:"camera_id" example:"camera0" doc:"Camera identifier"`
	Name      string      `json:"name" example:"table" doc:"Transform name"`
	Transform [16]float64 `json:"transform" doc:"Row-major 4x4 transform"`
}

type TransformResponse struct {
	Body TransformData
}

type LocationInput struct {
	ID   string `path:"id" example:"camera0" doc:"Camera identifier"`
	Name string `path:"name" example:"table" pattern:"^[A-Za-z0-9_:.-]+$" doc:"Location name"`
}

// Board models
type PairData struct {
	Board  string `json:"board" example:"table" doc:"Board name"`
	Camera string `json:"camera" example:"camera0" doc:"Camera identifier"`
}

type BoardData struct {
	Name        string     `json:"name" example:"table" doc:"Board name"`
	Width       float64    `json:"width" example:"420" doc:"Board width (mm)"`
	Height      float64    `json:"height" example:"297" doc:"Board height (mm)"`
	Markers     int        `json:"markers" example:"12" doc:"Number of markers on the board"`
	Subscribers int        `json:"subscribers" example:"1" doc:"Interested consumers"`
	Pairs       []PairData `json:"pairs" doc:"Cameras tracking the board"`
}

type BoardListData struct {
	Boards []BoardData `json:"boards" doc:"Known boards"`
	Count  int         `json:"count" example:"1" doc:"Number of boards"`
}

type BoardListResponse struct {
	Body BoardListData
}

type BoardPathInput struct {
	Board string `path:"board" example:"table" doc:"Board name"`
}

type SubscribersData struct {
	Board       string `json:"board" example:"table" doc:"Board name"`
	Subscribers int    `json:"subscribers" example:"1" doc:"Interested consumers"`
}

type SubscribersResponse struct {
	Body SubscribersData
}

// Pose models
type PairPathInput struct {
	Board  string `path:"board" example:"table" doc:"Board name"`
	Camera string `path:"camera" example:"camera0" doc:"Camera identifier"`
}

type PoseData struct {
	Board        string      `json:"board" example:"table" doc:"Board name"`
	Camera       string      `json:"camera" example:"camera0" doc:"Camera identifier"`
	Transform    [16]float64 `json:"transform" doc:"Row-major 4x4 board-to-camera transform"`
	Mode         string      `json:"mode" example:"normal" enum:"normal,blocked,forced" doc:"Update mode"`
	Deadline     *time.Time  `json:"deadline,omitempty" doc:"End of the current block or force window"`
	Moving       bool        `json:"moving" example:"true" doc:"Coarse motion hint"`
	LastDistance float64     `json:"last_distance" example:"1.5" doc:"Movement between the last two poses (mm)"`
	Filtered     bool        `json:"filtered" example:"true" doc:"Whether pose smoothing is enabled"`
	Updates      int         `json:"updates" example:"42" doc:"Number of recomputations"`
}

type PoseResponse struct {
	Body PoseData
}

type ThrottleRequest struct {
	Board  string `path:"board" example:"table" doc:"Board name"`
	Camera string `path:"camera" example:"camera0" doc:"Camera identifier"`
	Body   struct {
		DurationMs int `json:"duration_ms" minimum:"0" example:"1000" doc:"Throttle duration in milliseconds"`
	}
}

// View models
type ViewRequest struct {
	Board        string  `path:"board" example:"table" doc:"Board name"`
	Camera       string  `path:"camera" example:"camera0" doc:"Camera identifier"`
	X            float64 `query:"x" example:"0" doc:"Rectangle origin X on the board (mm)"`
	Y            float64 `query:"y" example:"0" doc:"Rectangle origin Y on the board (mm)"`
	WidthMM      float64 `query:"width_mm" default:"100" minimum:"1" maximum:"5000" doc:"Rectangle width (mm)"`
	HeightMM     float64 `query:"height_mm" default:"100" minimum:"1" maximum:"5000" doc:"Rectangle height (mm)"`
	Scale        float64 `query:"scale" default:"1" minimum:"0.05" maximum:"10" doc:"Output pixels per millimetre"`
	Anchor       string  `query:"anchor" default:"bottom-left" enum:"bottom-left,top-left" doc:"Corner the origin refers to"`
	YAxis        string  `query:"y_axis" default:"anchor" enum:"anchor,up,down" doc:"Board Y direction; anchor derives it from the anchor"`
	HeightOffset float64 `query:"height_offset" doc:"Board height used when Y points down (mm)"`
}

type ViewResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}
