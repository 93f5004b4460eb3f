package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/imbanker-naver/cursor-pjt/internal/game"
)

// Encode frames payload as a JSON envelope of type t.
func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("encode: empty envelope type")
	}
	if payload == nil {
		return nil, fmt.Errorf("encode %q: nil payload", t)
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{T: t, P: pb})
}

// DecodeEnvelope parses one message and requires a type.
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("decode: empty message")
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, err
	}
	if e.T == "" {
		return Envelope{}, fmt.Errorf("decode: missing envelope type")
	}
	return e, nil
}

// DecodePayload unmarshals the envelope payload into T.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, fmt.Errorf("empty payload for type %q", env.T)
	}
	err := json.Unmarshal(env.P, &out)
	return out, err
}

// EncodeEvent frames an engine event for the wire.
func EncodeEvent(ev game.Event) ([]byte, error) {
	switch ev.Kind {
	case game.EventMatch:
		if ev.Match != nil {
			return Encode(MsgMatch, Match{Match: *ev.Match, Generation: ev.Snapshot.Generation})
		}
	case game.EventEnded:
		if ev.Outcome != nil {
			return Encode(MsgEnded, Ended{Outcome: *ev.Outcome, Generation: ev.Snapshot.Generation})
		}
	}
	return Encode(MsgState, ev.Snapshot)
}
