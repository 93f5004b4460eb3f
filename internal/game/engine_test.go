package game

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/imbanker-naver/cursor-pjt/internal/clock"
)

// center returns the middle of cell (r, c) under DefaultLayout.
func center(r, c int) Point {
	b := DefaultLayout.Bounds(Pos{Row: r, Col: c})
	return Point{X: (b.Left + b.Right) / 2, Y: (b.Top + b.Bottom) / 2}
}

// cycling returns a RandomInt walking through min..max in order.
func cycling() RandomInt {
	i := 0
	return func(min, max int) int {
		v := min + i%(max-min+1)
		i++
		return v
	}
}

// board builds a 10x10 grid of 9s with the given overrides.
func board(over map[Pos]int) Grid {
	vals := make([][]int, defaultRows)
	for r := range vals {
		vals[r] = make([]int, defaultCols)
		for c := range vals[r] {
			vals[r][c] = 9
		}
	}
	for p, v := range over {
		vals[p.Row][p.Col] = v
	}
	return GridFromValues(vals)
}

type recorder struct{ events []Event }

func (r *recorder) on(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

// running returns a started engine on a fake clock with g installed as the board.
func running(t *testing.T, g Grid) (*Engine, *clock.Fake, *recorder) {
	t.Helper()
	fc := clock.NewFake(time.Unix(1_700_000_000, 0))
	rec := &recorder{}
	e := New(Options{ID: "r1", Clock: fc, RandomInt: cycling(), OnEvent: rec.on})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.grid = g
	rec.events = nil
	return e, fc, rec
}

func drag(t *testing.T, e *Engine, from, to Point) {
	t.Helper()
	if err := e.BeginSelection(from); err != nil {
		t.Fatalf("BeginSelection: %v", err)
	}
	if err := e.UpdateSelection(to); err != nil {
		t.Fatalf("UpdateSelection: %v", err)
	}
}

func TestNewEngineIsIdleWithPreviewBoard(t *testing.T) {
	e := New(Options{Clock: clock.NewFake(time.Unix(0, 0)), RandomInt: cycling()})
	st := e.State()
	if st.Phase != PhaseIdle || st.Score != 0 || st.TimeRemaining != RoundSeconds {
		t.Fatalf("initial state = %+v", st)
	}
	if e.ID() == "" {
		t.Fatalf("expected generated id")
	}
	snap := e.Snapshot()
	if snap.Rows != 10 || snap.Cols != 10 {
		t.Fatalf("dimensions = %dx%d, want 10x10", snap.Rows, snap.Cols)
	}
	for r, row := range snap.Grid {
		for c, v := range row {
			if v < 1 || v > 9 {
				t.Fatalf("cell (%d,%d) = %d, want 1..9", r, c, v)
			}
		}
	}
}

func TestMatchOfTwoCellsScoresAndEmpties(t *testing.T) {
	e, fc, rec := running(t, board(map[Pos]int{{0, 0}: 4, {0, 1}: 6}))

	drag(t, e, center(0, 0), center(0, 1))
	if got := e.Selected(); !reflect.DeepEqual(got, []Pos{{0, 0}, {0, 1}}) {
		t.Fatalf("selected = %v", got)
	}
	if sum := e.CurrentSelectedSum(); sum != 10 {
		t.Fatalf("live sum = %d, want 10", sum)
	}
	if fb := e.Snapshot().Feedback; fb != FeedbackExact {
		t.Fatalf("feedback = %q, want exact", fb)
	}
	if err := e.EndSelection(); err != nil {
		t.Fatalf("EndSelection: %v", err)
	}

	if st := e.State(); st.Score != 2 {
		t.Fatalf("score = %d, want 2", st.Score)
	}
	for _, p := range []Pos{{0, 0}, {0, 1}} {
		if c := e.Cell(p); c != Empty {
			t.Fatalf("cell %v = %d, want Empty", p, c)
		}
	}
	snap := e.Snapshot()
	if !snap.Clearing || len(snap.Selected) != 2 {
		t.Fatalf("during removal delay: clearing=%v selected=%v", snap.Clearing, snap.Selected)
	}

	last := rec.events[len(rec.events)-1]
	if last.Kind != EventMatch || last.Match == nil || last.Match.Points != 2 || last.Match.Score != 2 {
		t.Fatalf("last event = %+v", last)
	}

	fc.Advance(RemovalDelay)
	snap = e.Snapshot()
	if snap.Clearing || len(snap.Selected) != 0 {
		t.Fatalf("after removal delay: clearing=%v selected=%v", snap.Clearing, snap.Selected)
	}
}

func TestNonMatchingSelectionIsDropped(t *testing.T) {
	e, fc, _ := running(t, board(map[Pos]int{{0, 0}: 2, {0, 1}: 4, {0, 2}: 5}))

	drag(t, e, center(0, 0), center(0, 2))
	if n := len(e.Selected()); n != 3 {
		t.Fatalf("selected %d cells, want 3", n)
	}
	if fb := e.Snapshot().Feedback; fb != FeedbackOver {
		t.Fatalf("feedback = %q, want over", fb)
	}
	if err := e.EndSelection(); err != nil {
		t.Fatalf("EndSelection: %v", err)
	}
	if st := e.State(); st.Score != 0 {
		t.Fatalf("score = %d, want 0", st.Score)
	}
	if n := len(e.Selected()); n != 0 {
		t.Fatalf("selection not cleared: %d cells", n)
	}
	for c, want := range []Cell{2, 4, 5} {
		if got := e.Cell(Pos{0, c}); got != want {
			t.Fatalf("cell (0,%d) = %d, want %d", c, got, want)
		}
	}
	if fc.Pending() != 1 {
		t.Fatalf("pending timers = %d, want only the ticker", fc.Pending())
	}
}

func TestEmptySelectionIsNoop(t *testing.T) {
	e, _, _ := running(t, board(nil))
	if err := e.BeginSelection(Point{X: -500, Y: -500}); err != nil {
		t.Fatalf("BeginSelection: %v", err)
	}
	if err := e.UpdateSelection(Point{X: -400, Y: -400}); err != nil {
		t.Fatalf("UpdateSelection: %v", err)
	}
	if err := e.EndSelection(); err != nil {
		t.Fatalf("EndSelection: %v", err)
	}
	if st := e.State(); st.Score != 0 {
		t.Fatalf("score = %d, want 0", st.Score)
	}
}

func TestLargeMatchGetsBonus(t *testing.T) {
	e, _, _ := running(t, board(map[Pos]int{{0, 0}: 1, {0, 1}: 2, {0, 2}: 3, {0, 3}: 2, {0, 4}: 2}))
	drag(t, e, center(0, 0), center(0, 4))
	if err := e.EndSelection(); err != nil {
		t.Fatalf("EndSelection: %v", err)
	}
	if st := e.State(); st.Score != 15 {
		t.Fatalf("score = %d, want 15", st.Score)
	}
}

func TestMatchedCellsAreSkippedAfterwards(t *testing.T) {
	e, fc, _ := running(t, board(map[Pos]int{{0, 0}: 4, {0, 1}: 6, {0, 2}: 1}))
	drag(t, e, center(0, 0), center(0, 1))
	if err := e.EndSelection(); err != nil {
		t.Fatalf("EndSelection: %v", err)
	}
	fc.Advance(RemovalDelay)

	drag(t, e, center(0, 0), center(0, 2))
	if got := e.Selected(); !reflect.DeepEqual(got, []Pos{{0, 2}}) {
		t.Fatalf("selected = %v, want only (0,2)", got)
	}
	if sum := e.CurrentSelectedSum(); sum != 1 {
		t.Fatalf("sum = %d, want 1", sum)
	}
}

func TestSelectionIsRecomputedNotAccumulated(t *testing.T) {
	e, _, _ := running(t, board(nil))
	drag(t, e, center(0, 0), center(2, 2))
	if n := len(e.Selected()); n != 9 {
		t.Fatalf("wide drag selected %d, want 9", n)
	}
	if err := e.UpdateSelection(center(0, 1)); err != nil {
		t.Fatalf("UpdateSelection: %v", err)
	}
	if got := e.Selected(); !reflect.DeepEqual(got, []Pos{{0, 0}, {0, 1}}) {
		t.Fatalf("narrowed selection = %v", got)
	}

	first := e.Selected()
	if err := e.UpdateSelection(center(0, 1)); err != nil {
		t.Fatalf("UpdateSelection: %v", err)
	}
	if second := e.Selected(); !reflect.DeepEqual(first, second) {
		t.Fatalf("same rectangle gave %v then %v", first, second)
	}
}

func TestTouchingEdgeCountsAsOverlap(t *testing.T) {
	e, _, _ := running(t, board(nil))
	edge := DefaultLayout.Bounds(Pos{0, 1}).Left
	drag(t, e, center(0, 0), Point{X: edge, Y: center(0, 0).Y})
	if got := e.Selected(); !reflect.DeepEqual(got, []Pos{{0, 0}, {0, 1}}) {
		t.Fatalf("selected = %v", got)
	}
}

func TestSixtyTicksEndRound(t *testing.T) {
	e, fc, rec := running(t, board(nil))

	fc.Advance(59 * time.Second)
	if st := e.State(); st.Phase != PhaseRunning || st.TimeRemaining != 1 {
		t.Fatalf("after 59s state = %+v", st)
	}
	if !e.Snapshot().LowTime {
		t.Fatalf("expected low-time flag")
	}

	fc.Advance(time.Second)
	st := e.State()
	if st.Phase != PhaseEnded || st.TimeRemaining != 0 {
		t.Fatalf("after 60s state = %+v", st)
	}
	if fc.Pending() != 0 {
		t.Fatalf("ticker still scheduled: pending=%d", fc.Pending())
	}

	fc.Advance(10 * time.Second)
	if st := e.State(); st.TimeRemaining != 0 {
		t.Fatalf("time went negative: %+v", st)
	}

	last := rec.events[len(rec.events)-1]
	if last.Kind != EventEnded || last.Outcome == nil || last.Outcome.Tier != TierRetry {
		t.Fatalf("last event = %+v", last)
	}
}

func TestManualTicksNeverGoNegative(t *testing.T) {
	e, _, _ := running(t, board(nil))
	for i := 0; i < RoundSeconds; i++ {
		if err := e.Tick(); err != nil {
			t.Fatalf("tick %d: %v", i+1, err)
		}
	}
	if st := e.State(); st.Phase != PhaseEnded || st.TimeRemaining != 0 {
		t.Fatalf("state = %+v", st)
	}
	if err := e.Tick(); !errors.Is(err, ErrRoundNotRunning) {
		t.Fatalf("tick after end: err = %v", err)
	}
	if st := e.State(); st.TimeRemaining != 0 {
		t.Fatalf("time = %d, want 0", st.TimeRemaining)
	}
}

func TestResetStartsFreshRound(t *testing.T) {
	e, fc, rec := running(t, board(map[Pos]int{{0, 0}: 4, {0, 1}: 6}))
	drag(t, e, center(0, 0), center(0, 1))
	if err := e.EndSelection(); err != nil {
		t.Fatalf("EndSelection: %v", err)
	}
	fc.Advance(5 * time.Second)
	before := e.Snapshot()

	if err := e.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	after := e.Snapshot()
	if after.Phase != PhaseRunning || after.Score != 0 || after.TimeRemaining != RoundSeconds {
		t.Fatalf("after reset = %+v", after.RoundState)
	}
	if after.Generation != before.Generation+1 {
		t.Fatalf("generation %d -> %d", before.Generation, after.Generation)
	}
	if reflect.DeepEqual(before.Grid, after.Grid) {
		t.Fatalf("reset kept the old grid")
	}
	if rec.events[len(rec.events)-1].Kind != EventStarted {
		t.Fatalf("last event = %s, want started", rec.events[len(rec.events)-1].Kind)
	}
	if fc.Pending() != 1 {
		t.Fatalf("pending timers = %d, want one ticker", fc.Pending())
	}
}

func TestStartThenImmediateReset(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	e := New(Options{Clock: fc, RandomInt: cycling()})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := e.Snapshot()
	if err := e.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	second := e.Snapshot()
	if second.Phase != PhaseRunning || second.Score != 0 || second.TimeRemaining != 60 {
		t.Fatalf("state = %+v", second.RoundState)
	}
	if reflect.DeepEqual(first.Grid, second.Grid) {
		t.Fatalf("expected a newly generated grid")
	}
}

func TestResetDuringRemovalDelayLeavesNewRoundAlone(t *testing.T) {
	e, fc, _ := running(t, board(map[Pos]int{{0, 0}: 4, {0, 1}: 6}))
	drag(t, e, center(0, 0), center(0, 1))
	if err := e.EndSelection(); err != nil {
		t.Fatalf("EndSelection: %v", err)
	}
	fc.Advance(100 * time.Millisecond)

	if err := e.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	drag(t, e, center(3, 3), center(3, 4))
	want := e.Selected()
	if len(want) != 2 {
		t.Fatalf("new selection = %v", want)
	}

	fc.Advance(RemovalDelay)
	if got := e.Selected(); !reflect.DeepEqual(got, want) {
		t.Fatalf("stale removal touched new round: %v -> %v", want, got)
	}
}

func TestStaleCallbacksAreIgnoredByGeneration(t *testing.T) {
	e, _, _ := running(t, board(map[Pos]int{{0, 0}: 4, {0, 1}: 6}))
	drag(t, e, center(0, 0), center(0, 1))
	if err := e.EndSelection(); err != nil {
		t.Fatalf("EndSelection: %v", err)
	}
	oldGen, oldSeq := e.generation, e.clearSeq
	if err := e.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	drag(t, e, center(5, 5), center(5, 6))

	e.scheduledClear(oldGen, oldSeq)
	e.scheduledTick(oldGen)

	if n := len(e.Selected()); n != 2 {
		t.Fatalf("stale clear dropped selection: %d cells", n)
	}
	if st := e.State(); st.TimeRemaining != RoundSeconds {
		t.Fatalf("stale tick counted: %+v", st)
	}
}

func TestBeginDuringRemovalDelayFlushesClear(t *testing.T) {
	e, fc, _ := running(t, board(map[Pos]int{{0, 0}: 4, {0, 1}: 6}))
	drag(t, e, center(0, 0), center(0, 1))
	if err := e.EndSelection(); err != nil {
		t.Fatalf("EndSelection: %v", err)
	}
	drag(t, e, center(1, 0), center(1, 0))
	if fc.Pending() != 1 {
		t.Fatalf("removal timer not cancelled: pending=%d", fc.Pending())
	}
	fc.Advance(RemovalDelay)
	if got := e.Selected(); !reflect.DeepEqual(got, []Pos{{1, 0}}) {
		t.Fatalf("selection = %v, want [(1,0)]", got)
	}
}

func TestAbortEndsRoundAndDropsDrag(t *testing.T) {
	e, fc, rec := running(t, board(nil))
	drag(t, e, center(0, 0), center(0, 1))
	if err := e.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	snap := e.Snapshot()
	if snap.Phase != PhaseEnded || snap.Selecting || len(snap.Selected) != 0 {
		t.Fatalf("after abort = %+v", snap)
	}
	if fc.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", fc.Pending())
	}
	if err := e.EndSelection(); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("EndSelection after abort: %v", err)
	}
	if got := rec.kinds(); got[len(got)-1] != EventEnded {
		t.Fatalf("events = %v", got)
	}
}

func TestContractViolationsAreRejected(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	e := New(Options{Clock: fc, RandomInt: cycling()})

	if err := e.BeginSelection(Point{}); !errors.Is(err, ErrRoundNotRunning) {
		t.Fatalf("Begin while idle: %v", err)
	}
	if err := e.UpdateSelection(Point{}); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("Update without selection: %v", err)
	}
	if err := e.EndSelection(); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("End without selection: %v", err)
	}
	if err := e.Tick(); !errors.Is(err, ErrRoundNotRunning) {
		t.Fatalf("Tick while idle: %v", err)
	}
	if err := e.Abort(); !errors.Is(err, ErrRoundNotRunning) {
		t.Fatalf("Abort while idle: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Start(); !errors.Is(err, ErrRoundRunning) {
		t.Fatalf("Start while running: %v", err)
	}
	if st := e.State(); st.TimeRemaining != RoundSeconds {
		t.Fatalf("rejected Start mutated state: %+v", st)
	}
}

func TestRestartAfterEnd(t *testing.T) {
	e, fc, _ := running(t, board(nil))
	fc.Advance(RoundSeconds * time.Second)
	if err := e.BeginSelection(center(0, 0)); !errors.Is(err, ErrRoundNotRunning) {
		t.Fatalf("Begin after end: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start after end: %v", err)
	}
	if st := e.State(); st.Phase != PhaseRunning || st.TimeRemaining != RoundSeconds {
		t.Fatalf("state = %+v", st)
	}
}

func TestMatchIffSumIsTen(t *testing.T) {
	cases := []struct {
		name  string
		vals  []int
		match bool
	}{
		{"pair", []int{3, 7}, true},
		{"triple", []int{1, 1, 8}, true},
		{"under", []int{1, 2}, false},
		{"over", []int{5, 6}, false},
		{"quad", []int{1, 2, 3, 4}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			over := map[Pos]int{}
			for c, v := range tc.vals {
				over[Pos{0, c}] = v
			}
			e, _, _ := running(t, board(over))
			drag(t, e, center(0, 0), center(0, len(tc.vals)-1))
			if err := e.EndSelection(); err != nil {
				t.Fatalf("EndSelection: %v", err)
			}
			removed := e.Cell(Pos{0, 0}) == Empty
			if removed != tc.match {
				t.Fatalf("removed=%v, want %v", removed, tc.match)
			}
			wantScore := 0
			if tc.match {
				wantScore = Points(len(tc.vals))
			}
			if st := e.State(); st.Score != wantScore {
				t.Fatalf("score = %d, want %d", st.Score, wantScore)
			}
		})
	}
}
