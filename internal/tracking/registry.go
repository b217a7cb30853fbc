package tracking

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/smazurov/nectar/internal/filter"
	"github.com/smazurov/nectar/internal/geometry"
	"github.com/smazurov/nectar/internal/logging"
	"github.com/smazurov/nectar/internal/markers"
	"github.com/smazurov/nectar/internal/metrics"
)

// DefaultDrawingDistance is the drawing mode threshold in millimetres.
const DefaultDrawingDistance = 2.0

// Clock supplies the time used for deadlines and filter timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options configures a Registry.
type Options struct {
	Clock  Clock
	Solver geometry.PoseSolver

	// MinConfidence skips detections below this confidence.
	MinConfidence float64
}

// State is a snapshot of one pair.
type State struct {
	Pair         Pair             `json:"pair"`
	Transform    geometry.Matrix4 `json:"transform"`
	Mode         Mode             `json:"-"`
	Deadline     time.Time        `json:"deadline"`
	LastPosition geometry.Vec3    `json:"last_position"`
	LastDistance float64          `json:"last_distance"`
	Filtered     bool             `json:"filtered"`
	Updates      int              `json:"updates"`

	Device geometry.ProjectiveDevice `json:"-"`
}

type pairState struct {
	mu sync.Mutex

	device    geometry.ProjectiveDevice
	transform geometry.Matrix4
	filters   *filter.Bank

	mode     Mode
	deadline time.Time

	lastPosition geometry.Vec3
	lastDistance float64

	drawing         bool
	drawingDistance float64

	updates int
}

// Registry owns every board and every (board, camera) state. Operations on
// different pairs never contend.
type Registry struct {
	clock         Clock
	solver        geometry.PoseSolver
	minConfidence float64
	logger        *slog.Logger

	mu     sync.RWMutex
	boards map[string]*Board
	pairs  map[Pair]*pairState

	subMu       sync.Mutex
	subscribers map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Solver == nil {
		opts.Solver = geometry.PlanarSolver{}
	}
	if opts.MinConfidence == 0 {
		opts.MinConfidence = markers.DefaultConfidence
	}
	return &Registry{
		clock:         opts.Clock,
		solver:        opts.Solver,
		minConfidence: opts.MinConfidence,
		logger:        logging.GetLogger("tracking"),
		boards:        make(map[string]*Board),
		pairs:         make(map[Pair]*pairState),
		subscribers:   make(map[string]int),
	}
}

// AddBoard adds a board or replaces the definition of a board with the same
// name. Existing pair states are kept.
func (r *Registry) AddBoard(b *Board) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boards[b.Name] = b
}

// RemoveBoard drops a board together with its pairs and subscriber count.
func (r *Registry) RemoveBoard(name string) bool {
	r.mu.Lock()
	_, ok := r.boards[name]
	delete(r.boards, name)
	for p := range r.pairs {
		if p.Board == name {
			delete(r.pairs, p)
		}
	}
	r.mu.Unlock()

	r.subMu.Lock()
	delete(r.subscribers, name)
	r.subMu.Unlock()
	return ok
}

// Board returns a board by name.
func (r *Registry) Board(name string) (*Board, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.boards[name]
	return b, ok
}

// Boards returns every board sorted by name.
func (r *Registry) Boards() []*Board {
	r.mu.RLock()
	out := make([]*Board, 0, len(r.boards))
	for _, b := range r.boards {
		out = append(out, b)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Register starts tracking pair.Board with pair.Camera. Registering an
// existing pair only replaces the camera device.
func (r *Registry) Register(pair Pair, device geometry.ProjectiveDevice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.boards[pair.Board]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBoard, pair.Board)
	}
	if st, ok := r.pairs[pair]; ok {
		st.mu.Lock()
		st.device = device
		st.mu.Unlock()
		return nil
	}
	r.pairs[pair] = &pairState{
		device:          device,
		transform:       geometry.Identity(),
		mode:            ModeNormal,
		drawingDistance: DefaultDrawingDistance,
	}
	r.logger.Info("Board registered", "board", pair.Board, "camera_id", pair.Camera)
	return nil
}

// Unregister stops tracking pair. It reports whether the pair existed.
func (r *Registry) Unregister(pair Pair) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pairs[pair]
	delete(r.pairs, pair)
	return ok
}

// Registered reports whether the pair exists.
func (r *Registry) Registered(pair Pair) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pairs[pair]
	return ok
}

// Pairs returns every registered pair, optionally restricted to one camera.
func (r *Registry) Pairs(camera string) []Pair {
	r.mu.RLock()
	out := make([]Pair, 0, len(r.pairs))
	for p := range r.pairs {
		if camera == "" || p.Camera == camera {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Board != out[j].Board {
			return out[i].Board < out[j].Board
		}
		return out[i].Camera < out[j].Camera
	})
	return out
}

func (r *Registry) state(pair Pair) (*pairState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.pairs[pair]
	if !ok {
		return nil, &UnregisteredPairError{Pair: pair}
	}
	return st, nil
}

// BlockUpdate suppresses recomputation of pair for d.
func (r *Registry) BlockUpdate(pair Pair, d time.Duration) error {
	return r.throttle(pair, ModeBlocked, d)
}

// ForceUpdate makes pair recompute on every update call for d. The first
// call at or after the deadline recomputes too, so a window without calls
// still yields a pose.
func (r *Registry) ForceUpdate(pair Pair, d time.Duration) error {
	return r.throttle(pair, ModeForced, d)
}

func (r *Registry) throttle(pair Pair, mode Mode, d time.Duration) error {
	st, err := r.state(pair)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.mode = mode
	st.deadline = r.clock.Now().Add(d)
	return nil
}

// UpdateLocation recomputes the pose of pair from a detection list, unless
// the pair is throttled. It reports whether the stored transform was
// recomputed. Solver failures store the identity transform and are not
// returned as errors.
func (r *Registry) UpdateLocation(pair Pair, detected []markers.DetectedMarker) (bool, error) {
	st, err := r.state(pair)
	if err != nil {
		return false, err
	}
	board, ok := r.Board(pair.Board)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownBoard, pair.Board)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// A forced pair recomputes inside its window and, like a blocked
	// pair, on every call past the deadline.
	now := r.clock.Now()
	if st.mode == ModeBlocked && now.Before(st.deadline) {
		metrics.RecordPoseSkipped(pair.Board, pair.Camera)
		return false, nil
	}

	next, solved := r.estimate(pair, board, st.device, detected)
	st.updates++

	if !solved {
		st.transform = geometry.Identity()
		return true, nil
	}

	if st.filters != nil {
		next = st.filters.Apply(next, now)
	}

	pos := next.Position()
	dist := pos.Sub(st.lastPosition).Norm()
	if st.drawing && dist < st.drawingDistance {
		return false, nil
	}

	st.transform = next
	st.lastDistance = dist
	st.lastPosition = pos
	metrics.RecordPoseUpdate(pair.Board, pair.Camera, dist)
	return true, nil
}

// estimate runs the pose solver. It returns false when too few markers
// match the board or the solver fails.
func (r *Registry) estimate(pair Pair, board *Board, device geometry.ProjectiveDevice, detected []markers.DetectedMarker) (geometry.Matrix4, bool) {
	if board.Model == nil {
		return geometry.Identity(), false
	}
	object, image, used := board.Model.Correspondences(detected, r.minConfidence)
	if used < 1 {
		return geometry.Identity(), false
	}
	m, err := r.solver.EstimatePose(device, object, image)
	if err != nil {
		metrics.RecordSolverFailure(pair.Board, pair.Camera)
		r.logger.Debug("Pose estimation failed", "board", pair.Board, "camera_id", pair.Camera,
			"markers", used, "error", err)
		return geometry.Identity(), false
	}
	return m, true
}

// Position returns the current transform of pair.
func (r *Registry) Position(pair Pair) (geometry.Matrix4, error) {
	st, err := r.state(pair)
	if err != nil {
		return geometry.Identity(), err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.transform, nil
}

// State returns a snapshot of pair.
func (r *Registry) State(pair Pair) (State, error) {
	st, err := r.state(pair)
	if err != nil {
		return State{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return State{
		Pair:         pair,
		Transform:    st.transform,
		Mode:         st.mode,
		Deadline:     st.deadline,
		LastPosition: st.lastPosition,
		LastDistance: st.lastDistance,
		Filtered:     st.filters != nil,
		Updates:      st.updates,
		Device:       st.device,
	}, nil
}

// IsMoving is a coarse hint: false only while the pair is blocked and its
// deadline has not passed.
func (r *Registry) IsMoving(pair Pair) (bool, error) {
	st, err := r.state(pair)
	if err != nil {
		return false, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.mode == ModeBlocked && r.clock.Now().Before(st.deadline) {
		return false, nil
	}
	return true, nil
}

// LastMovementDistance returns the distance between the last two poses.
func (r *Registry) LastMovementDistance(pair Pair) (float64, error) {
	st, err := r.state(pair)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastDistance, nil
}

// SetFiltering attaches a fresh filter bank to pair.
func (r *Registry) SetFiltering(pair Pair, frequency, minCutoff float64) error {
	st, err := r.state(pair)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.filters = filter.NewBank(frequency, minCutoff)
	return nil
}

// RemoveFiltering detaches the filter bank; poses pass through raw.
func (r *Registry) RemoveFiltering(pair Pair) error {
	st, err := r.state(pair)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.filters = nil
	return nil
}

// SetDrawingMode makes pair ignore recomputed poses that moved less than
// minDistance, which keeps a board still while it is drawn on.
func (r *Registry) SetDrawingMode(pair Pair, enabled bool, minDistance float64) error {
	st, err := r.state(pair)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.drawing = enabled
	st.drawingDistance = minDistance
	return nil
}

// SetFakeLocation overwrites the transform of pair.
func (r *Registry) SetFakeLocation(pair Pair, m geometry.Matrix4) error {
	st, err := r.state(pair)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.transform = m
	return nil
}

// TransformRelativeTo returns pose(other) * pose(board) as seen by camera.
func (r *Registry) TransformRelativeTo(camera, board, other string) (geometry.Matrix4, error) {
	tr1, err := r.Position(Pair{Board: board, Camera: camera})
	if err != nil {
		return geometry.Identity(), err
	}
	tr2, err := r.Position(Pair{Board: other, Camera: camera})
	if err != nil {
		return geometry.Identity(), err
	}
	return tr2.Mul(tr1), nil
}

// Subscribe adds an interested consumer to board and returns the new count.
// The count is informational; tracking never stops on its own.
func (r *Registry) Subscribe(board string) int {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subscribers[board]++
	return r.subscribers[board]
}

// Unsubscribe removes a consumer from board. The count never drops below
// zero.
func (r *Registry) Unsubscribe(board string) int {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if r.subscribers[board] > 0 {
		r.subscribers[board]--
	}
	return r.subscribers[board]
}

// Subscribers returns the consumer count of board.
func (r *Registry) Subscribers(board string) int {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	return r.subscribers[board]
}
