package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/nectar/internal/api/models"
	"github.com/smazurov/nectar/internal/geometry"
	"github.com/smazurov/nectar/internal/tracking"
	"github.com/smazurov/nectar/internal/view"
)

func (s *Server) registerViewRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-board-view",
		Method:      http.MethodGet,
		Path:        "/api/boards/{board}/cameras/{camera}/view",
		Summary:     "Board View",
		Description: "Rectified PNG of a rectangle on a tracked board, cut from the latest color frame",
		Tags:        []string{"boards"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 422, 503},
	}, func(_ context.Context, input *models.ViewRequest) (*models.ViewResponse, error) {
		pair := tracking.Pair{Board: input.Board, Camera: input.Camera}
		pose, err := s.registry.Position(pair)
		if err != nil {
			return nil, trackingError(err)
		}
		if s.cameras == nil {
			return nil, huma.Error404NotFound("camera not found: " + input.Camera)
		}
		desc, ok := s.cameras.Descriptor(input.Camera)
		if !ok {
			return nil, huma.Error404NotFound("camera not found: " + input.Camera)
		}
		frame, ok := s.cameras.ColorFrame(input.Camera)
		if !ok {
			return nil, huma.Error503ServiceUnavailable("no frame received yet from " + input.Camera)
		}

		spec := view.Spec{
			Mode:         view.ModeRectangle,
			Anchor:       view.AnchorBottomLeft,
			Origin:       geometry.Vec2{X: input.X, Y: input.Y},
			SizeMM:       geometry.Vec2{X: input.WidthMM, Y: input.HeightMM},
			HeightOffset: input.HeightOffset,
		}
		if input.Anchor == "top-left" {
			spec.Anchor = view.AnchorTopLeft
		}
		switch input.YAxis {
		case "up":
			spec.YAxis = view.YAxisUp
		case "down":
			spec.YAxis = view.YAxisDown
		}
		ex := view.NewExtractor(spec)
		ex.SetDevice(desc.Calibration)
		ex.SetPose(pose)
		ex.SetScale(input.Scale)

		out, ok := ex.Extract(&frame)
		if !ok {
			return nil, huma.Error422UnprocessableEntity("board rectangle cannot be viewed from " + input.Camera)
		}
		var buf bytes.Buffer
		if err := view.EncodePNG(&buf, out, desc.PixelFormat); err != nil {
			s.logger.Warn("Failed to encode view", "board", input.Board, "camera_id", input.Camera, "error", err)
			return nil, huma.Error422UnprocessableEntity("frame cannot be encoded", err)
		}
		return &models.ViewResponse{ContentType: "image/png", Body: buf.Bytes()}, nil
	})
}
