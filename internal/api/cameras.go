package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/nectar/internal/api/models"
	"github.com/smazurov/nectar/internal/camera"
	"github.com/smazurov/nectar/internal/channel"
	"github.com/smazurov/nectar/internal/markers"
	"github.com/smazurov/nectar/internal/view"
)

func cameraData(id string, d camera.Descriptor) models.CameraData {
	return models.CameraData{
		ID:          id,
		Width:       d.Width,
		Height:      d.Height,
		PixelFormat: string(d.PixelFormat),
		Depth:       d.Depth != nil,
	}
}

func cameraNotFound(id string) error {
	return huma.Error404NotFound("camera not found: " + id)
}

// cameraError maps camera and store errors to HTTP errors.
func cameraError(id string, err error) error {
	switch {
	case errors.Is(err, camera.ErrUnknownCamera):
		return cameraNotFound(id)
	case errors.Is(err, camera.ErrNoDepth):
		return huma.Error409Conflict("camera has no depth sensor: " + id)
	case errors.Is(err, channel.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	default:
		return huma.Error503ServiceUnavailable("camera store unavailable", err)
	}
}

func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cameras",
		Method:      http.MethodGet,
		Path:        "/api/cameras",
		Summary:     "List Cameras",
		Description: "List running camera streams",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.CameraListResponse, error) {
		list := []models.CameraData{}
		if s.cameras != nil {
			for _, id := range s.cameras.IDs() {
				d, ok := s.cameras.Descriptor(id)
				if !ok {
					continue
				}
				list = append(list, cameraData(id, d))
			}
		}
		return &models.CameraListResponse{
			Body: models.CameraListData{Cameras: list, Count: len(list)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-markers",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{id}/markers",
		Summary:     "Camera Markers",
		Description: "Latest marker detections of a camera",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.CameraPathInput) (*models.MarkersResponse, error) {
		if s.cameras == nil {
			return nil, cameraNotFound(input.ID)
		}
		list, ok := s.cameras.Markers(input.ID)
		if !ok {
			return nil, cameraNotFound(input.ID)
		}
		if list == nil {
			list = []markers.DetectedMarker{}
		}
		return &models.MarkersResponse{
			Body: models.MarkersData{CameraID: input.ID, Count: len(list), Markers: list},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-frame",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{id}/frame",
		Summary:     "Camera Frame",
		Description: "Latest color frame of a camera as PNG",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 503},
	}, func(_ context.Context, input *models.CameraPathInput) (*models.FrameResponse, error) {
		if s.cameras == nil {
			return nil, cameraNotFound(input.ID)
		}
		desc, ok := s.cameras.Descriptor(input.ID)
		if !ok {
			return nil, cameraNotFound(input.ID)
		}
		frame, ok := s.cameras.ColorFrame(input.ID)
		if !ok {
			return nil, huma.Error503ServiceUnavailable("no frame received yet from " + input.ID)
		}
		return s.encodeFrame(input.ID, &frame, desc.PixelFormat)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-depth",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{id}/depth",
		Summary:     "Camera Depth",
		Description: "Latest depth frame of a camera as 16-bit grayscale PNG",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 503},
	}, func(_ context.Context, input *models.CameraPathInput) (*models.FrameResponse, error) {
		if s.cameras == nil {
			return nil, cameraNotFound(input.ID)
		}
		desc, ok := s.cameras.Descriptor(input.ID)
		if !ok {
			return nil, cameraNotFound(input.ID)
		}
		if desc.Depth == nil {
			return nil, cameraError(input.ID, camera.ErrNoDepth)
		}
		frame, ok := s.cameras.DepthFrame(input.ID)
		if !ok {
			return nil, huma.Error503ServiceUnavailable("no depth frame received yet from " + input.ID)
		}
		return s.encodeFrame(input.ID, &frame, camera.Depth16)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "reload-camera-calibration",
		Method:      http.MethodPost,
		Path:        "/api/cameras/{id}/calibration",
		Summary:     "Reload Calibration",
		Description: "Re-read the camera calibrations and hand the new color calibration to every board pair of the camera",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 503},
	}, func(ctx context.Context, input *models.CameraPathInput) (*models.CalibrationResponse, error) {
		if s.cameras == nil {
			return nil, cameraNotFound(input.ID)
		}
		desc, updated, err := s.cameras.UpdateCalibration(ctx, input.ID)
		if err != nil {
			s.logger.Warn("Calibration reload failed", "camera_id", input.ID, "error", err)
			return nil, cameraError(input.ID, err)
		}

		pairs := []models.PairData{}
		for _, pair := range s.registry.Pairs(input.ID) {
			if updated {
				if err := s.registry.Register(pair, desc.Calibration); err != nil {
					return nil, trackingError(err)
				}
			}
			pairs = append(pairs, models.PairData{Board: pair.Board, Camera: pair.Camera})
		}
		s.logger.Info("Calibration reloaded", "camera_id", input.ID, "updated", updated, "pairs", len(pairs))

		return &models.CalibrationResponse{
			Body: models.CalibrationData{Camera: cameraData(input.ID, desc), Updated: updated, Pairs: pairs},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "reload-camera-extrinsics",
		Method:      http.MethodPost,
		Path:        "/api/cameras/{id}/extrinsics",
		Summary:     "Reload Depth Extrinsics",
		Description: "Re-read the depth-to-color transform of a camera",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 503},
	}, func(ctx context.Context, input *models.CameraPathInput) (*models.TransformResponse, error) {
		if s.cameras == nil {
			return nil, cameraNotFound(input.ID)
		}
		desc, err := s.cameras.UpdateExtrinsics(ctx, input.ID)
		if err != nil {
			return nil, cameraError(input.ID, err)
		}
		return &models.TransformResponse{
			Body: models.TransformData{
				CameraID:  input.ID,
				Name:      "extrinsics:depth",
				Transform: [16]float64(desc.Depth.Extrinsics),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-table",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{id}/table",
		Summary:     "Table Location",
		Description: "Table transform of a camera; identity when none is stored",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 503},
	}, func(ctx context.Context, input *models.CameraPathInput) (*models.TransformResponse, error) {
		return s.location(ctx, input.ID, "table")
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-location",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{id}/locations/{name}",
		Summary:     "Named Location",
		Description: "Named transform of a camera; identity when none is stored",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 422, 503},
	}, func(ctx context.Context, input *models.LocationInput) (*models.TransformResponse, error) {
		return s.location(ctx, input.ID, input.Name)
	})
}

func (s *Server) location(ctx context.Context, id, name string) (*models.TransformResponse, error) {
	if s.cameras == nil {
		return nil, cameraNotFound(id)
	}
	m, err := s.cameras.Location(ctx, id, name)
	if err != nil {
		return nil, cameraError(id, err)
	}
	return &models.TransformResponse{
		Body: models.TransformData{CameraID: id, Name: name, Transform: [16]float64(m)},
	}, nil
}

func (s *Server) encodeFrame(id string, frame *camera.Frame, format camera.PixelFormat) (*models.FrameResponse, error) {
	var buf bytes.Buffer
	if err := view.EncodePNG(&buf, frame, format); err != nil {
		s.logger.Warn("Failed to encode frame", "camera_id", id, "error", err)
		return nil, huma.Error422UnprocessableEntity("frame cannot be encoded", err)
	}
	return &models.FrameResponse{ContentType: "image/png", Body: buf.Bytes()}, nil
}
