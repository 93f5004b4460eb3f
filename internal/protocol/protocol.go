package protocol

import (
	"encoding/json"

	"github.com/imbanker-naver/cursor-pjt/internal/game"
)

// Client → server
const (
	MsgPointer = "pointer"
	MsgStart   = "start"
	MsgReset   = "reset"
	MsgAbort   = "abort"
)

// Server → client
const (
	MsgState = "state"
	MsgMatch = "match"
	MsgEnded = "ended"
	MsgError = "error"
)

// Envelope frames every WebSocket message.
type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"` // raw payload bytes
}

// Pointer kinds
const (
	PointerDown = "down"
	PointerMove = "move"
	PointerUp   = "up"
)

// Pointer is one pointer/touch event in board coordinates.
type Pointer struct {
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Point converts to engine coordinates.
func (p Pointer) Point() game.Point { return game.Point{X: p.X, Y: p.Y} }

// Match is the payload of MsgMatch.
type Match struct {
	game.Match
	Generation uint64 `json:"generation"`
}

// Ended is the payload of MsgEnded.
type Ended struct {
	game.Outcome
	Generation uint64 `json:"generation"`
}

// Error is the payload of MsgError.
type Error struct {
	Error string `json:"error"`
}
