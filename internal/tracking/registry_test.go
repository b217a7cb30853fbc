package tracking

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/smazurov/nectar/internal/config"
	"github.com/smazurov/nectar/internal/geometry"
	"github.com/smazurov/nectar/internal/markers"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 27, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stepSolver returns a pose translated 10mm further along x on every call.
type stepSolver struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stepSolver) EstimatePose(_ geometry.ProjectiveDevice, _ []geometry.Vec3, _ []geometry.Vec2) (geometry.Matrix4, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return geometry.Matrix4{}, s.err
	}
	return geometry.Identity().Translate(float64(10*s.calls), 0, 500), nil
}

func (s *stepSolver) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var square = [8]float64{0, 0, 40, 0, 40, 40, 0, 40}

func testBoard(name string) *Board {
	model := markers.NewModel()
	model.Add(1, square)
	return &Board{Name: name, Width: 100, Height: 100, Model: model}
}

func detection() []markers.DetectedMarker {
	return []markers.DetectedMarker{markers.New(1, [8]float64{300, 200, 340, 200, 340, 240, 300, 240})}
}

func testDevice() geometry.ProjectiveDevice {
	return geometry.NewProjectiveDevice(640, 480, 600, 600, 320, 240)
}

func newTestRegistry(t *testing.T) (*Registry, *fakeClock, *stepSolver, Pair) {
	t.Helper()
	clock := newFakeClock()
	solver := &stepSolver{}
	r := NewRegistry(Options{Clock: clock, Solver: solver})
	r.AddBoard(testBoard("table"))
	pair := Pair{Board: "table", Camera: "camera0"}
	if err := r.Register(pair, testDevice()); err != nil {
		t.Fatal(err)
	}
	return r, clock, solver, pair
}

func mustUpdate(t *testing.T, r *Registry, pair Pair) bool {
	t.Helper()
	changed, err := r.UpdateLocation(pair, detection())
	if err != nil {
		t.Fatalf("UpdateLocation() error = %v", err)
	}
	return changed
}

func TestRegisterUnknownBoard(t *testing.T) {
	r := NewRegistry(Options{})
	err := r.Register(Pair{Board: "ghost", Camera: "camera0"}, testDevice())
	if !errors.Is(err, ErrUnknownBoard) {
		t.Fatalf("Register() error = %v, want ErrUnknownBoard", err)
	}
}

func TestUnregisteredPair(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)
	pair := Pair{Board: "table", Camera: "camera9"}

	var unreg *UnregisteredPairError
	_, err := r.Position(pair)
	if !errors.As(err, &unreg) || unreg.Pair != pair {
		t.Fatalf("Position() error = %v, want UnregisteredPairError", err)
	}
	if _, err := r.UpdateLocation(pair, detection()); !errors.As(err, &unreg) {
		t.Errorf("UpdateLocation() error = %v", err)
	}
	if err := r.BlockUpdate(pair, time.Second); !errors.As(err, &unreg) {
		t.Errorf("BlockUpdate() error = %v", err)
	}
	if _, err := r.IsMoving(pair); !errors.As(err, &unreg) {
		t.Errorf("IsMoving() error = %v", err)
	}
}

func TestNormalModeRecomputesEveryCall(t *testing.T) {
	r, _, solver, pair := newTestRegistry(t)

	for i := 1; i <= 3; i++ {
		if !mustUpdate(t, r, pair) {
			t.Fatalf("update %d not applied", i)
		}
	}
	if solver.Calls() != 3 {
		t.Errorf("solver calls = %d, want 3", solver.Calls())
	}
	pos, _ := r.Position(pair)
	if got := pos.Position(); got != (geometry.Vec3{X: 30, Z: 500}) {
		t.Errorf("position = %+v", got)
	}
	dist, _ := r.LastMovementDistance(pair)
	if dist != 10 {
		t.Errorf("LastMovementDistance() = %v, want 10", dist)
	}
}

func TestBlockedKeepsPoseUntilDeadline(t *testing.T) {
	r, clock, solver, pair := newTestRegistry(t)
	mustUpdate(t, r, pair)
	before, _ := r.Position(pair)

	if err := r.BlockUpdate(pair, time.Second); err != nil {
		t.Fatal(err)
	}
	moving, _ := r.IsMoving(pair)
	if moving {
		t.Error("IsMoving() = true while blocked")
	}

	for range 5 {
		clock.Advance(100 * time.Millisecond)
		if mustUpdate(t, r, pair) {
			t.Fatal("update applied while blocked")
		}
	}
	after, _ := r.Position(pair)
	if after != before {
		t.Errorf("pose changed while blocked:\n%v\n%v", before, after)
	}
	if solver.Calls() != 1 {
		t.Errorf("solver calls = %d, want 1", solver.Calls())
	}

	clock.Advance(500 * time.Millisecond)
	if !mustUpdate(t, r, pair) {
		t.Error("update at the deadline not applied")
	}
	moving, _ = r.IsMoving(pair)
	if !moving {
		t.Error("IsMoving() = false after the deadline")
	}
}

func TestForcedKeepsTrackingAfterDeadline(t *testing.T) {
	tests := []struct {
		name       string
		callsInWin int
		callsAfter int
	}{
		{"no call in window", 0, 1},
		{"calls in window", 3, 2},
		{"many calls long after", 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, clock, solver, pair := newTestRegistry(t)
			if err := r.ForceUpdate(pair, time.Second); err != nil {
				t.Fatal(err)
			}
			for range tt.callsInWin {
				clock.Advance(10 * time.Millisecond)
				if !mustUpdate(t, r, pair) {
					t.Fatal("forced update not applied")
				}
			}

			clock.Advance(time.Hour)
			for i := range tt.callsAfter {
				if !mustUpdate(t, r, pair) {
					t.Fatalf("update %d past the deadline not applied", i)
				}
			}

			if want := tt.callsInWin + tt.callsAfter; solver.Calls() != want {
				t.Errorf("solver calls = %d, want %d", solver.Calls(), want)
			}
			if moving, _ := r.IsMoving(pair); !moving {
				t.Error("IsMoving() = false for a forced pair")
			}
		})
	}
}

func TestSolverFailureStoresIdentity(t *testing.T) {
	r, _, solver, pair := newTestRegistry(t)
	mustUpdate(t, r, pair)

	solver.err = geometry.ErrDegenerate
	if !mustUpdate(t, r, pair) {
		t.Error("failed solve not counted as a recompute")
	}
	pos, _ := r.Position(pair)
	if !pos.IsIdentity() {
		t.Errorf("Position() after failure = %v, want identity", pos)
	}
	st, _ := r.State(pair)
	if st.LastPosition != (geometry.Vec3{X: 10, Z: 500}) {
		t.Errorf("LastPosition changed on failure: %+v", st.LastPosition)
	}
}

func TestNoUsableMarkersStoresIdentity(t *testing.T) {
	r, _, solver, pair := newTestRegistry(t)
	mustUpdate(t, r, pair)

	low := detection()
	low[0].Confidence = 0.2
	changed, err := r.UpdateLocation(pair, low)
	if err != nil || !changed {
		t.Fatalf("UpdateLocation() = %v, %v", changed, err)
	}
	if solver.Calls() != 1 {
		t.Errorf("solver called for low-confidence markers")
	}
	pos, _ := r.Position(pair)
	if !pos.IsIdentity() {
		t.Errorf("Position() = %v, want identity", pos)
	}
}

type constSolver struct{ m geometry.Matrix4 }

func (s constSolver) EstimatePose(geometry.ProjectiveDevice, []geometry.Vec3, []geometry.Vec2) (geometry.Matrix4, error) {
	return s.m, nil
}

func TestFilteringConvergesOnConstantPose(t *testing.T) {
	clock := newFakeClock()
	want := geometry.Identity().Translate(12, -7, 480)
	r := NewRegistry(Options{Clock: clock, Solver: constSolver{want}})
	r.AddBoard(testBoard("table"))
	pair := Pair{Board: "table", Camera: "camera0"}
	if err := r.Register(pair, testDevice()); err != nil {
		t.Fatal(err)
	}
	if err := r.SetFiltering(pair, 30, 1); err != nil {
		t.Fatal(err)
	}

	for range 60 {
		clock.Advance(33 * time.Millisecond)
		mustUpdate(t, r, pair)
	}
	got, _ := r.Position(pair)
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-6 {
			t.Fatalf("filtered[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	st, _ := r.State(pair)
	if !st.Filtered {
		t.Error("State().Filtered = false")
	}
	if err := r.RemoveFiltering(pair); err != nil {
		t.Fatal(err)
	}
	st, _ = r.State(pair)
	if st.Filtered {
		t.Error("State().Filtered = true after RemoveFiltering")
	}
}

func TestDrawingModeIgnoresSmallMoves(t *testing.T) {
	r, _, _, pair := newTestRegistry(t)
	mustUpdate(t, r, pair)

	if err := r.SetDrawingMode(pair, true, 15); err != nil {
		t.Fatal(err)
	}
	if mustUpdate(t, r, pair) {
		t.Error("10mm move applied with a 15mm drawing threshold")
	}
	if err := r.SetDrawingMode(pair, true, 5); err != nil {
		t.Fatal(err)
	}
	if !mustUpdate(t, r, pair) {
		t.Error("move above the drawing threshold ignored")
	}
}

func TestTransformRelativeTo(t *testing.T) {
	r := NewRegistry(Options{Clock: newFakeClock()})
	r.AddBoard(testBoard("table"))
	r.AddBoard(testBoard("paper"))
	for _, b := range []string{"table", "paper"} {
		if err := r.Register(Pair{Board: b, Camera: "camera0"}, testDevice()); err != nil {
			t.Fatal(err)
		}
	}
	tr1 := geometry.Identity().Translate(1, 2, 3)
	tr2 := geometry.Identity().Translate(10, 20, 30)
	_ = r.SetFakeLocation(Pair{Board: "table", Camera: "camera0"}, tr1)
	_ = r.SetFakeLocation(Pair{Board: "paper", Camera: "camera0"}, tr2)

	got, err := r.TransformRelativeTo("camera0", "table", "paper")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(tr2.Mul(tr1), got); diff != "" {
		t.Errorf("TransformRelativeTo() mismatch (-want +got):\n%s", diff)
	}

	var unreg *UnregisteredPairError
	if _, err := r.TransformRelativeTo("camera1", "table", "paper"); !errors.As(err, &unreg) {
		t.Errorf("TransformRelativeTo() unknown camera error = %v", err)
	}
}

func TestSubscribers(t *testing.T) {
	r := NewRegistry(Options{})
	if got := r.Unsubscribe("table"); got != 0 {
		t.Errorf("Unsubscribe() on empty = %d, want 0", got)
	}
	r.Subscribe("table")
	if got := r.Subscribe("table"); got != 2 {
		t.Errorf("Subscribe() = %d, want 2", got)
	}
	r.Unsubscribe("table")
	if got := r.Subscribers("table"); got != 1 {
		t.Errorf("Subscribers() = %d, want 1", got)
	}
}

func TestAddBoardKeepsPairState(t *testing.T) {
	r, _, _, pair := newTestRegistry(t)
	mustUpdate(t, r, pair)
	before, _ := r.Position(pair)

	r.AddBoard(testBoard("table"))
	if !r.Registered(pair) {
		t.Fatal("pair dropped by AddBoard")
	}
	after, _ := r.Position(pair)
	if after != before {
		t.Error("AddBoard reset the pair transform")
	}
}

func TestPairsSortedAndFiltered(t *testing.T) {
	r := NewRegistry(Options{})
	r.AddBoard(testBoard("table"))
	r.AddBoard(testBoard("paper"))
	for _, p := range []Pair{{"table", "camera1"}, {"paper", "camera0"}, {"table", "camera0"}} {
		if err := r.Register(p, testDevice()); err != nil {
			t.Fatal(err)
		}
	}
	want := []Pair{{"paper", "camera0"}, {"table", "camera0"}}
	if diff := cmp.Diff(want, r.Pairs("camera0")); diff != "" {
		t.Errorf("Pairs(camera0) mismatch (-want +got):\n%s", diff)
	}
	if got := len(r.Pairs("")); got != 3 {
		t.Errorf("len(Pairs()) = %d, want 3", got)
	}
}

func TestPlanarSolverEndToEnd(t *testing.T) {
	dev := testDevice()
	truth := geometry.Identity().Translate(-20, 10, 600)

	model := markers.NewModel()
	corners := map[int][8]float64{
		1: {0, 0, 40, 0, 40, 40, 0, 40},
		2: {60, 0, 100, 0, 100, 40, 60, 40},
	}
	var detected []markers.DetectedMarker
	for id, c := range corners {
		model.Add(id, c)
		var px [8]float64
		for i := 0; i < 4; i++ {
			p, err := dev.WorldToPixelUnconstrained(truth.TransformPoint(geometry.Vec3{X: c[2*i], Y: c[2*i+1]}))
			if err != nil {
				t.Fatal(err)
			}
			px[2*i], px[2*i+1] = p.X, p.Y
		}
		detected = append(detected, markers.New(id, px))
	}

	r := NewRegistry(Options{})
	r.AddBoard(&Board{Name: "table", Width: 100, Height: 40, Model: model})
	pair := Pair{Board: "table", Camera: "camera0"}
	if err := r.Register(pair, dev); err != nil {
		t.Fatal(err)
	}
	if _, err := r.UpdateLocation(pair, detected); err != nil {
		t.Fatal(err)
	}
	got, _ := r.Position(pair)
	d := got.Position().Sub(truth.Position()).Norm()
	if d > 1 {
		t.Errorf("recovered position %+v, want %+v", got.Position(), truth.Position())
	}
}

type mapSource map[string][]byte

func (m mapSource) Query(_ context.Context, key string) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return v, nil
}

func TestKindOf(t *testing.T) {
	tests := map[string]Kind{
		"table":          KindStore,
		"board.cfg":      KindARToolkit,
		"A4-default.svg": KindSVG,
		"poster.PNG":     KindImage,
		"photo.jpg":      KindImage,
		"scan.bmp":       KindImage,
		"notes.txt":      KindInvalid,
	}
	for name, want := range tests {
		if got := KindOf(name); got != want {
			t.Errorf("KindOf(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestLoadBoard(t *testing.T) {
	ctx := context.Background()
	src := mapSource{"table": []byte(`{"markers":[{"id":4,"corners":[0,0,10,0,10,10,0,10]}]}`)}

	b, err := LoadBoard(ctx, "table", config.BoardConfig{}, src)
	if err != nil {
		t.Fatalf("LoadBoard() from store error = %v", err)
	}
	if b.Width != DefaultBoardWidth || b.Height != DefaultBoardHeight || !b.Model.Contains(4) {
		t.Errorf("LoadBoard() = %+v", b)
	}

	inline := config.BoardConfig{Width: 297, Markers: []config.MarkerConfig{{ID: 9, Corners: square[:]}}}
	b, err = LoadBoard(ctx, "paper", inline, nil)
	if err != nil {
		t.Fatal(err)
	}
	if b.Width != 297 || b.Height != DefaultBoardHeight || !b.Model.Contains(9) {
		t.Errorf("inline board = %+v", b)
	}

	bad := config.BoardConfig{Markers: []config.MarkerConfig{{ID: 1, Corners: []float64{1, 2}}}}
	if _, err := LoadBoard(ctx, "paper", bad, nil); !errors.Is(err, markers.ErrMarkerFormat) {
		t.Errorf("bad corners error = %v, want ErrMarkerFormat", err)
	}
	if _, err := LoadBoard(ctx, "A4.svg", config.BoardConfig{}, src); !errors.Is(err, ErrUnsupportedBoard) {
		t.Errorf("svg board error = %v, want ErrUnsupportedBoard", err)
	}
	if _, err := LoadBoard(ctx, "missing", config.BoardConfig{}, src); err == nil {
		t.Error("missing store model loaded")
	}
}
