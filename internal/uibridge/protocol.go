// Package uibridge carries status and commands between veil-core and the UI
// process over a localhost WebSocket. The status.json / cmd.txt files remain
// the fallback path when the bridge is down.
package uibridge

import (
	"encoding/json"

	"github.com/veilhq/veil/internal/ipc"
)

// DefaultAddr is where the core listens. Loopback only.
const DefaultAddr = "127.0.0.1:48620"

// Message types
const (
	TypeStatus  = "status"
	TypeCommand = "command"
)

// Envelope is the wire frame for every bridge message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CommandPayload wraps an ipc.Command for transport.
type CommandPayload struct {
	Command ipc.Command `json:"command"`
}

func statusEnvelope(snap ipc.StatusSnapshot) (*Envelope, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: TypeStatus, Payload: data}, nil
}

func commandEnvelope(cmd ipc.Command) (*Envelope, error) {
	data, err := json.Marshal(CommandPayload{Command: cmd})
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: TypeCommand, Payload: data}, nil
}
