package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/nectar/internal/api/models"
	"github.com/smazurov/nectar/internal/tracking"
)

func (s *Server) registerBoardRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/api/boards",
		Summary:     "List Boards",
		Description: "List tracked marker boards and the cameras registered with them",
		Tags:        []string{"boards"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.BoardListResponse, error) {
		pairs := map[string][]models.PairData{}
		for _, p := range s.registry.Pairs("") {
			pairs[p.Board] = append(pairs[p.Board], models.PairData{Board: p.Board, Camera: p.Camera})
		}

		list := []models.BoardData{}
		for _, b := range s.registry.Boards() {
			count := 0
			if b.Model != nil {
				count = b.Model.Len()
			}
			bp := pairs[b.Name]
			if bp == nil {
				bp = []models.PairData{}
			}
			list = append(list, models.BoardData{
				Name:        b.Name,
				Width:       b.Width,
				Height:      b.Height,
				Markers:     count,
				Subscribers: s.registry.Subscribers(b.Name),
				Pairs:       bp,
			})
		}
		return &models.BoardListResponse{
			Body: models.BoardListData{Boards: list, Count: len(list)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-pose",
		Method:      http.MethodGet,
		Path:        "/api/boards/{board}/cameras/{camera}/pose",
		Summary:     "Board Pose",
		Description: "Current pose and update state of a board seen by a camera",
		Tags:        []string{"boards"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.PairPathInput) (*models.PoseResponse, error) {
		return s.poseResponse(tracking.Pair{Board: input.Board, Camera: input.Camera})
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "block-update",
		Method:      http.MethodPost,
		Path:        "/api/boards/{board}/cameras/{camera}/block",
		Summary:     "Block Updates",
		Description: "Suspend pose recomputation for the given duration",
		Tags:        []string{"boards"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.ThrottleRequest) (*models.PoseResponse, error) {
		pair := tracking.Pair{Board: input.Board, Camera: input.Camera}
		d := time.Duration(input.Body.DurationMs) * time.Millisecond
		if err := s.registry.BlockUpdate(pair, d); err != nil {
			return nil, trackingError(err)
		}
		s.logger.Info("Blocked pose updates", "pair", pair.String(), "duration", d)
		return s.poseResponse(pair)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "force-update",
		Method:      http.MethodPost,
		Path:        "/api/boards/{board}/cameras/{camera}/force",
		Summary:     "Force Updates",
		Description: "Recompute the pose on every detection for the given duration",
		Tags:        []string{"boards"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.ThrottleRequest) (*models.PoseResponse, error) {
		pair := tracking.Pair{Board: input.Board, Camera: input.Camera}
		d := time.Duration(input.Body.DurationMs) * time.Millisecond
		if err := s.registry.ForceUpdate(pair, d); err != nil {
			return nil, trackingError(err)
		}
		s.logger.Info("Forced pose updates", "pair", pair.String(), "duration", d)
		return s.poseResponse(pair)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "subscribe-board",
		Method:      http.MethodPost,
		Path:        "/api/boards/{board}/subscribers",
		Summary:     "Subscribe",
		Description: "Declare interest in a board",
		Tags:        []string{"boards"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.BoardPathInput) (*models.SubscribersResponse, error) {
		if _, ok := s.registry.Board(input.Board); !ok {
			return nil, huma.Error404NotFound("board not found: " + input.Board)
		}
		n := s.registry.Subscribe(input.Board)
		return &models.SubscribersResponse{
			Body: models.SubscribersData{Board: input.Board, Subscribers: n},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "unsubscribe-board",
		Method:      http.MethodDelete,
		Path:        "/api/boards/{board}/subscribers",
		Summary:     "Unsubscribe",
		Description: "Withdraw interest in a board",
		Tags:        []string{"boards"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.BoardPathInput) (*models.SubscribersResponse, error) {
		if _, ok := s.registry.Board(input.Board); !ok {
			return nil, huma.Error404NotFound("board not found: " + input.Board)
		}
		n := s.registry.Unsubscribe(input.Board)
		return &models.SubscribersResponse{
			Body: models.SubscribersData{Board: input.Board, Subscribers: n},
		}, nil
	})
}

func (s *Server) poseResponse(pair tracking.Pair) (*models.PoseResponse, error) {
	st, err := s.registry.State(pair)
	if err != nil {
		return nil, trackingError(err)
	}
	moving, err := s.registry.IsMoving(pair)
	if err != nil {
		return nil, trackingError(err)
	}

	data := models.PoseData{
		Board:        pair.Board,
		Camera:       pair.Camera,
		Transform:    [16]float64(st.Transform),
		Mode:         st.Mode.String(),
		Moving:       moving,
		LastDistance: st.LastDistance,
		Filtered:     st.Filtered,
		Updates:      st.Updates,
	}
	if st.Mode != tracking.ModeNormal {
		deadline := st.Deadline
		data.Deadline = &deadline
	}
	return &models.PoseResponse{Body: data}, nil
}

func trackingError(err error) error {
	var unregistered *tracking.UnregisteredPairError
	switch {
	case errors.Is(err, tracking.ErrUnknownBoard):
		return huma.Error404NotFound(err.Error())
	case errors.As(err, &unregistered):
		return huma.Error404NotFound(err.Error())
	default:
		return huma.Error500InternalServerError("tracking error", err)
	}
}
