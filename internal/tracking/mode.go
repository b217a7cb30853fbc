package tracking

import "fmt"

// Mode is the update mode of a (board, camera) pair.
type Mode int

// Update modes.
const (
	ModeNormal Mode = iota
	ModeBlocked
	ModeForced
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeBlocked:
		return "blocked"
	case ModeForced:
		return "forced"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Pair identifies a board tracked by a camera.
type Pair struct {
	Board  string `json:"board"`
	Camera string `json:"camera"`
}

func (p Pair) String() string {
	return p.Board + "@" + p.Camera
}
