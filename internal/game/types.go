// internal/game/types.go
//
// Core type definitions for the apple game round engine.
// Defines:
//   - Phase: round lifecycle state (idle/running/ended).
//   - Tier: advisory outcome label derived from a final score.
//   - RoundState, Snapshot: the host-facing view of a round.
//   - Event, Match, Outcome: notifications pushed to the host.

package game

// Phase is the lifecycle state of a round.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhaseEnded   Phase = "ended"
)

// Tier is the end-of-round label for a final score.
type Tier string

const (
	TierMaster Tier = "master" // 150+
	TierGreat  Tier = "great"  // 100–149
	TierGood   Tier = "good"   // 50–99
	TierRetry  Tier = "retry"  // below 50
)

// Feedback classifies the live selection sum for the HUD.
type Feedback string

const (
	FeedbackUnder Feedback = "under"
	FeedbackExact Feedback = "exact"
	FeedbackOver  Feedback = "over"
)

// RoundState is the score/timer/phase triple shown in the HUD.
type RoundState struct {
	Score         int   `json:"score"`
	TimeRemaining int   `json:"timeRemaining"` // whole seconds, never negative
	Phase         Phase `json:"phase"`
}

// Snapshot is a copy of everything the host needs to render a round.
type Snapshot struct {
	ID         string `json:"id"`
	Generation uint64 `json:"generation"`
	RoundState
	Rows      int      `json:"rows"`
	Cols      int      `json:"cols"`
	Grid      [][]int  `json:"grid"` // 0 marks an empty cell
	Selected  []Pos    `json:"selected"`
	Selecting bool     `json:"selecting"`
	Clearing  bool     `json:"clearing"` // matched cells still on screen
	Sum       int      `json:"sum"`
	Feedback  Feedback `json:"feedback"`
	LowTime   bool     `json:"lowTime"`
}

// EventKind names an engine notification.
type EventKind string

const (
	EventStarted EventKind = "started" // start or reset produced a fresh round
	EventState   EventKind = "state"   // any other visible change
	EventMatch   EventKind = "match"   // a selection summed to 10
	EventEnded   EventKind = "ended"   // timer ran out or round was aborted
)

// Match describes a confirmed selection.
type Match struct {
	Cells  []Pos `json:"cells"`
	Points int   `json:"points"`
	Score  int   `json:"score"`
}

// Outcome is the end-of-round summary.
type Outcome struct {
	Score   int    `json:"score"`
	Tier    Tier   `json:"tier"`
	Message string `json:"message"`
}

// Event is delivered to Options.OnEvent after the engine lock is released.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
	Match    *Match   // set for EventMatch
	Outcome  *Outcome // set for EventEnded
}
