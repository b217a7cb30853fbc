package tracking

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/smazurov/nectar/internal/config"
	"github.com/smazurov/nectar/internal/markers"
)

// Default physical board size in millimetres.
const (
	DefaultBoardWidth  = 100
	DefaultBoardHeight = 100
)

// Kind classifies a board by its name.
type Kind int

// Board kinds. Only KindStore boards are tracked here; the others need
// external file parsers.
const (
	KindInvalid Kind = iota
	KindStore
	KindARToolkit
	KindSVG
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindStore:
		return "store"
	case KindARToolkit:
		return "artoolkit"
	case KindSVG:
		return "svg"
	case KindImage:
		return "image"
	default:
		return "invalid"
	}
}

// KindOf derives the board kind from its name. A name without a dot refers
// to a model stored in the shared store under that key.
func KindOf(name string) Kind {
	if !strings.Contains(name, ".") {
		return KindStore
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".cfg":
		return KindARToolkit
	case ".svg":
		return KindSVG
	case ".png", ".jpg", ".bmp":
		return KindImage
	default:
		return KindInvalid
	}
}

// Board is a rigid marker board.
type Board struct {
	Name   string
	Width  float64
	Height float64
	Model  *markers.Model
}

// ModelSource reads stored board models. *channel.Channel satisfies it.
type ModelSource interface {
	Query(ctx context.Context, key string) ([]byte, error)
}

// LoadBoard builds a board from its configuration. Inline markers take
// precedence; otherwise the model is read from the store key named after
// the board.
func LoadBoard(ctx context.Context, name string, cfg config.BoardConfig, src ModelSource) (*Board, error) {
	kind := KindOf(name)
	if kind != KindStore {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedBoard, name, kind)
	}

	board := &Board{Name: name, Width: cfg.Width, Height: cfg.Height}
	if board.Width <= 0 {
		board.Width = DefaultBoardWidth
	}
	if board.Height <= 0 {
		board.Height = DefaultBoardHeight
	}

	if len(cfg.Markers) > 0 {
		board.Model = markers.NewModel()
		for i, m := range cfg.Markers {
			if len(m.Corners) != 8 {
				return nil, &markers.FormatError{Index: i, ID: m.ID, Corners: len(m.Corners)}
			}
			var c [8]float64
			copy(c[:], m.Corners)
			board.Model.Add(m.ID, c)
		}
		return board, nil
	}

	if src == nil {
		return nil, fmt.Errorf("board %s: no inline markers and no store to load from", name)
	}
	data, err := src.Query(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("board %s: load model: %w", name, err)
	}
	model, err := markers.ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("board %s: %w", name, err)
	}
	board.Model = model
	return board, nil
}
