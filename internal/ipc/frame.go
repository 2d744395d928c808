package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxMessageSize bounds a single frame's JSON body, guarding against a
// corrupt or malicious length prefix causing an unbounded allocation.
const MaxMessageSize = 16 * 1024 * 1024

// WriteFrame encodes v as {"type": typ, "payload": v} and writes it to w as
// a 4-byte big-endian length prefix followed by the JSON body.
func WriteFrame(w io.Writer, typ MsgType, payload any) error {
	body, err := json.Marshal(Envelope{Type: typ, Payload: payload})
	if err != nil {
		return fmt.Errorf("ipc: marshal frame: %w", err)
	}
	if len(body) > MaxMessageSize {
		return fmt.Errorf("ipc: frame body too large (%d bytes)", len(body))
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("ipc: write length header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("ipc: write frame body: %w", err)
	}
	return nil
}

// rawEnvelope lets ReadFrame hand back the payload as undecoded JSON, so
// the caller can unmarshal it into the concrete type its message type
// implies.
type rawEnvelope struct {
	Type    MsgType         `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ReadFrame reads one frame from r: a 4-byte big-endian length prefix and a
// JSON body. It returns the message type and the raw payload bytes, for the
// caller to unmarshal per type.
func ReadFrame(r io.Reader) (MsgType, json.RawMessage, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return "", nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length == 0 || length > MaxMessageSize {
		return "", nil, fmt.Errorf("ipc: invalid frame length %d", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", nil, fmt.Errorf("ipc: read frame body: %w", err)
	}

	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", nil, fmt.Errorf("ipc: decode envelope: %w", err)
	}
	return env.Type, env.Payload, nil
}

// DecodePayload unmarshals a frame's raw payload into dst.
func DecodePayload(payload json.RawMessage, dst any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, dst)
}
