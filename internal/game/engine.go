// internal/game/engine.go
//
// Match round engine for a single apple game round.
// Responsibilities:
//   - Generate a 10x10 board of digits 1–9 from an injected random source.
//   - Track a drag rectangle and the live set of non-empty cells it overlaps.
//   - Confirm selections that sum to exactly 10, score them, clear the cells.
//   - Run the 60 second countdown: idle → running → ended, reset from anywhere.
//
// Notes:
//   - Time comes from a clock.Clock; the countdown and the cosmetic removal
//     delay are scheduled callbacks tagged with the round generation, so a
//     callback from a superseded round never touches the new one.
//   - All operations hold e.mu. Events are delivered to Options.OnEvent after
//     e.mu is released but under e.deliverMu, which is taken before e.mu is
//     dropped, so deliveries from different goroutines never interleave and
//     arrive in the order they were produced.
//   - Contract violations return a sentinel error and leave state untouched.

package game

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	mrand "math/rand"
	"sync"
	"time"

	"github.com/imbanker-naver/cursor-pjt/internal/clock"
)

const (
	defaultRows = 10
	defaultCols = 10

	// RoundSeconds is the length of a round.
	RoundSeconds = 60
	// TickInterval is the countdown resolution.
	TickInterval = time.Second
	// RemovalDelay is how long matched cells stay selected before clearing.
	RemovalDelay = 300 * time.Millisecond
	// LowTimeSeconds flags the HUD warning threshold.
	LowTimeSeconds = 10
)

var (
	ErrRoundRunning    = errors.New("round already running")
	ErrRoundNotRunning = errors.New("round not running")
	ErrNoSelection     = errors.New("no active selection")
)

// RandomInt returns a uniform integer in [min, max].
type RandomInt func(min, max int) int

func defaultRandomInt(min, max int) int { return min + mrand.Intn(max-min+1) }

// Options configures a new Engine. Zero values pick the defaults.
type Options struct {
	ID        string      // random hex when empty
	Rows      int         // 10
	Cols      int         // 10
	Layout    Layout      // DefaultLayout
	Clock     clock.Clock // clock.Real()
	RandomInt RandomInt   // math/rand/v2
	OnEvent   func(Event) // must not call back into the engine
}

// Engine owns the grid, selection and round state of one player's board.
type Engine struct {
	mu        sync.Mutex
	deliverMu sync.Mutex

	id        string
	rows      int
	cols      int
	layout    Layout
	clock     clock.Clock
	randomInt RandomInt
	onEvent   func(Event)

	grid       Grid
	state      RoundState
	generation uint64

	selecting bool
	anchor    Point
	current   Point
	selected  []Pos
	clearing  bool
	clearSum  int // sum of the matched cells while clearing
	clearSeq  uint64

	ticker     clock.Timer
	clearTimer clock.Timer

	lastActivity time.Time
	outbox       []Event
}

// New constructs an idle engine with a preview board.
func New(opts Options) *Engine {
	e := &Engine{
		id:        opts.ID,
		rows:      opts.Rows,
		cols:      opts.Cols,
		layout:    opts.Layout,
		clock:     opts.Clock,
		randomInt: opts.RandomInt,
		onEvent:   opts.OnEvent,
	}
	if e.id == "" {
		e.id = randomID()
	}
	if e.rows <= 0 {
		e.rows = defaultRows
	}
	if e.cols <= 0 {
		e.cols = defaultCols
	}
	if e.layout == nil {
		e.layout = DefaultLayout
	}
	if e.clock == nil {
		e.clock = clock.Real()
	}
	if e.randomInt == nil {
		e.randomInt = defaultRandomInt
	}
	e.grid = NewGrid(e.rows, e.cols, e.randomInt)
	e.state = RoundState{TimeRemaining: RoundSeconds, Phase: PhaseIdle}
	e.lastActivity = e.clock.Now()
	return e
}

// ID returns the round identifier.
func (e *Engine) ID() string { return e.id }

// ------------------------------ lifecycle ----------------------------------

// Start begins a round from idle or ended.
func (e *Engine) Start() error {
	return e.run(func() error {
		if e.state.Phase == PhaseRunning {
			return ErrRoundRunning
		}
		e.begin()
		return nil
	})
}

// Reset cancels whatever is in flight and starts a fresh round.
func (e *Engine) Reset() error {
	return e.run(func() error {
		e.stopTimers()
		e.begin()
		return nil
	})
}

// Abort ends a running round early.
func (e *Engine) Abort() error {
	return e.run(func() error {
		if e.state.Phase != PhaseRunning {
			return ErrRoundNotRunning
		}
		e.end()
		return nil
	})
}

// Tick advances the countdown by one second. The engine's own ticker calls
// this once per TickInterval; hosts driving time themselves may call it too.
func (e *Engine) Tick() error {
	return e.run(e.tick)
}

func (e *Engine) begin() {
	e.generation++
	e.grid = NewGrid(e.rows, e.cols, e.randomInt)
	e.state = RoundState{Score: 0, TimeRemaining: RoundSeconds, Phase: PhaseRunning}
	e.selecting = false
	e.selected = nil
	e.clearing = false

	gen := e.generation
	e.ticker = e.clock.Every(TickInterval, func() { e.scheduledTick(gen) })
	e.publish(EventStarted, nil, nil)
}

func (e *Engine) tick() error {
	if e.state.Phase != PhaseRunning {
		return ErrRoundNotRunning
	}
	e.state.TimeRemaining--
	if e.state.TimeRemaining <= 0 {
		e.state.TimeRemaining = 0
		e.end()
		return nil
	}
	e.publish(EventState, nil, nil)
	return nil
}

func (e *Engine) scheduledTick(gen uint64) {
	_ = e.run(func() error {
		if gen != e.generation {
			return nil
		}
		return e.tick()
	})
}

func (e *Engine) end() {
	e.stopTimers()
	e.selecting = false
	e.selected = nil
	e.clearing = false
	e.state.Phase = PhaseEnded
	out := OutcomeFor(e.state.Score)
	e.publish(EventEnded, nil, &out)
}

func (e *Engine) stopTimers() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
	if e.clearTimer != nil {
		e.clearTimer.Stop()
		e.clearTimer = nil
	}
}

// ------------------------------ selection ----------------------------------

// BeginSelection anchors a drag at p. Only valid while running.
func (e *Engine) BeginSelection(p Point) error {
	return e.run(func() error {
		if e.state.Phase != PhaseRunning {
			return ErrRoundNotRunning
		}
		if e.clearing {
			e.flushClear()
		}
		e.selecting = true
		e.anchor, e.current = p, p
		e.selected = nil
		e.publish(EventState, nil, nil)
		return nil
	})
}

// UpdateSelection moves the free corner of the drag to p and recomputes the
// selected cells from scratch.
func (e *Engine) UpdateSelection(p Point) error {
	return e.run(func() error {
		if !e.selecting {
			return ErrNoSelection
		}
		e.current = p
		e.recompute()
		e.publish(EventState, nil, nil)
		return nil
	})
}

// EndSelection releases the drag and evaluates the selected cells.
func (e *Engine) EndSelection() error {
	return e.run(func() error {
		if !e.selecting {
			return ErrNoSelection
		}
		e.selecting = false
		e.evaluate()
		return nil
	})
}

// recompute rebuilds the selected set in row-major order.
func (e *Engine) recompute() {
	rect := RectFromCorners(e.anchor, e.current)
	var sel []Pos
	for r := 0; r < e.rows; r++ {
		for c := 0; c < e.cols; c++ {
			p := Pos{Row: r, Col: c}
			if e.grid.At(p) == Empty {
				continue
			}
			if rect.Overlaps(e.layout.Bounds(p)) {
				sel = append(sel, p)
			}
		}
	}
	e.selected = sel
}

// liveSum is the sum shown for the selection; matched cells keep their total
// until the removal delay ends.
func (e *Engine) liveSum() int {
	if e.clearing {
		return e.clearSum
	}
	return e.selectedSum()
}

func (e *Engine) selectedSum() int {
	sum := 0
	for _, p := range e.selected {
		sum += int(e.grid.At(p))
	}
	return sum
}

// evaluate scores the selection if it sums to TargetSum, otherwise drops it.
func (e *Engine) evaluate() {
	if len(e.selected) == 0 {
		e.publish(EventState, nil, nil)
		return
	}
	if e.selectedSum() != TargetSum {
		e.selected = nil
		e.publish(EventState, nil, nil)
		return
	}

	n := len(e.selected)
	points := Points(n)
	e.clearSum = e.selectedSum()
	e.state.Score += points
	cells := make([]Pos, n)
	copy(cells, e.selected)
	for _, p := range cells {
		e.grid.set(p, Empty)
	}

	e.clearing = true
	e.clearSeq++
	gen, seq := e.generation, e.clearSeq
	e.clearTimer = e.clock.AfterFunc(RemovalDelay, func() { e.scheduledClear(gen, seq) })
	e.publish(EventMatch, &Match{Cells: cells, Points: points, Score: e.state.Score}, nil)
}

func (e *Engine) scheduledClear(gen, seq uint64) {
	_ = e.run(func() error {
		if gen != e.generation || seq != e.clearSeq || !e.clearing {
			return nil
		}
		e.clearTimer = nil
		e.clearing = false
		e.selected = nil
		e.publish(EventState, nil, nil)
		return nil
	})
}

// flushClear finishes a pending removal delay immediately.
func (e *Engine) flushClear() {
	if e.clearTimer != nil {
		e.clearTimer.Stop()
		e.clearTimer = nil
	}
	e.clearing = false
	e.selected = nil
}

// -------------------------------- queries ----------------------------------

// CurrentSelectedSum is the sum of the values under the selection. During
// the removal delay it is the matched total.
func (e *Engine) CurrentSelectedSum() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liveSum()
}

// State returns score, time remaining and phase.
func (e *Engine) State() RoundState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Selected returns a copy of the selected positions.
func (e *Engine) Selected() []Pos {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Pos, len(e.selected))
	copy(out, e.selected)
	return out
}

// Cell reads one board cell.
func (e *Engine) Cell(p Pos) Cell {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.At(p)
}

// Snapshot copies the full renderable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// LastActivity is the time of the last successful operation or tick.
func (e *Engine) LastActivity() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActivity
}

func (e *Engine) snapshot() Snapshot {
	sel := make([]Pos, len(e.selected))
	copy(sel, e.selected)
	sum := e.liveSum()
	return Snapshot{
		ID:         e.id,
		Generation: e.generation,
		RoundState: e.state,
		Rows:       e.rows,
		Cols:       e.cols,
		Grid:       e.grid.Values(),
		Selected:   sel,
		Selecting:  e.selecting,
		Clearing:   e.clearing,
		Sum:        sum,
		Feedback:   FeedbackFor(sum, len(sel)),
		LowTime:    e.state.Phase == PhaseRunning && e.state.TimeRemaining <= LowTimeSeconds,
	}
}

// ------------------------------- plumbing ----------------------------------

// Observe calls fn with the current snapshot, ordered against event delivery:
// every event produced before the snapshot has been delivered when fn runs,
// and later ones are delivered after fn returns. fn must not call back into e.
func (e *Engine) Observe(fn func(Snapshot)) {
	e.mu.Lock()
	snap := e.snapshot()
	e.deliverMu.Lock()
	e.mu.Unlock()
	defer e.deliverMu.Unlock()
	fn(snap)
}

// run executes op under the lock, then delivers queued events with only the
// delivery lock held.
func (e *Engine) run(op func() error) error {
	e.mu.Lock()
	err := op()
	if err == nil {
		e.lastActivity = e.clock.Now()
	}
	events := e.outbox
	e.outbox = nil
	e.deliverMu.Lock()
	e.mu.Unlock()
	defer e.deliverMu.Unlock()

	if e.onEvent != nil {
		for _, ev := range events {
			e.onEvent(ev)
		}
	}
	return err
}

func (e *Engine) publish(kind EventKind, m *Match, o *Outcome) {
	if e.onEvent == nil {
		return
	}
	e.outbox = append(e.outbox, Event{Kind: kind, Snapshot: e.snapshot(), Match: m, Outcome: o})
}

// randomID returns a compact 16‑hex‑char identifier.
func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
