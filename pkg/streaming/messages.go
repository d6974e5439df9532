// Package streaming defines the wire format of the live telemetry stream.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/reacture/engine/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeSample       = "sample"
	TypeFrame        = "frame"
	TypeDecision     = "decision"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// NewAck acknowledges a message type.
func NewAck(msgType string) AckMessage {
	return AckMessage{Type: TypeAck, For: msgType}
}

// FramePayload carries one frame. Pixels travel base64 encoded.
type FramePayload struct {
	Index       int    `json:"index"`
	Path        string `json:"path"`
	TimestampMS int64  `json:"timestamp_ms"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Shape       []int  `json:"shape"`
	DType       string `json:"dtype"`
	Pixels      []byte `json:"data_base64"`
}

// NewFramePayload describes f for the stream.
func NewFramePayload(f core.FrameRecord) FramePayload {
	return FramePayload{
		Index:       f.Index,
		Path:        f.Path(),
		TimestampMS: f.TimestampMS,
		Width:       f.Width,
		Height:      f.Height,
		Shape:       []int{f.Height, f.Width, 3},
		DType:       "uint8",
		Pixels:      f.Pixels,
	}
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
func Marshal(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
