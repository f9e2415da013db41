// Package feed publishes the session status over a read-only websocket.
package feed

import (
	"time"

	"github.com/soocke/pixel-scan-go/domain/session"
)

type MessageType string

const (
	MsgSnapshot   MessageType = "snapshot"
	MsgTransition MessageType = "transition"
)

// Message is the envelope sent to clients.
type Message struct {
	Type    MessageType  `json:"type"`
	Payload StatePayload `json:"payload"`
}

// StatePayload is the client view of a controller state.
type StatePayload struct {
	SessionID string         `json:"session_id,omitempty"`
	State     string         `json:"state"`
	Status    session.Status `json:"status"`
	Code      string         `json:"code,omitempty"`
	Error     string         `json:"error,omitempty"`
	At        time.Time      `json:"at"`
}

func payloadFor(t session.Transition) StatePayload {
	p := StatePayload{SessionID: t.SessionID, State: t.To.String(), Status: t.Status, Code: t.Code, At: t.At}
	if t.Err != nil {
		p.Error = t.Err.Error()
	}
	return p
}

// Source is the controller surface the feed reads on connect.
type Source interface {
	State() session.State
	Status() session.Status
	Snapshot() (session.ScanSession, bool)
	Err() error
}

func snapshotOf(src Source) StatePayload {
	p := StatePayload{State: src.State().String(), Status: src.Status(), At: time.Now()}
	if s, ok := src.Snapshot(); ok {
		p.SessionID = s.ID
		p.Code = s.DetectedCode
	}
	if err := src.Err(); err != nil {
		p.Error = err.Error()
	}
	return p
}
