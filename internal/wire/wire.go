// Package wire defines the envelope format carried by the bridge transport.
//
// Every payload crossing the host/sandbox boundary is a single Envelope.
// Four kinds exist:
//   - event: sandbox → host, fire-and-forget
//   - request: sandbox → host, correlated, expects exactly one response
//   - response: host → sandbox, resolves a pending request
//   - push: host → sandbox, fire-and-forget
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// Kind classifies an envelope.
type Kind string

const (
	KindEvent    Kind = "event"
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
	KindPush     Kind = "push"
)

var (
	// ErrMalformed indicates an envelope that cannot be decoded or
	// fails structural validation.
	ErrMalformed = errors.New("malformed envelope")
)

// Envelope is the single message frame crossing the bridge.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Channel string          `json:"channel,omitempty"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Valid checks the structural invariants for the envelope's kind.
func (e *Envelope) Valid() error {
	switch e.Kind {
	case KindEvent, KindPush:
		if e.Channel == "" {
			return fmt.Errorf("%w: %s envelope missing channel", ErrMalformed, e.Kind)
		}
	case KindRequest:
		if e.Channel == "" {
			return fmt.Errorf("%w: request envelope missing channel", ErrMalformed)
		}
		if e.ID == "" {
			return fmt.Errorf("%w: request envelope missing correlation id", ErrMalformed)
		}
	case KindResponse:
		if e.ID == "" {
			return fmt.Errorf("%w: response envelope missing correlation id", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, string(e.Kind))
	}
	return nil
}

// Encode serializes an envelope after validating it.
func Encode(e *Envelope) ([]byte, error) {
	if err := e.Valid(); err != nil {
		return nil, err
	}
	data, err := sonic.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses and validates a raw transport payload.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := sonic.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := e.Valid(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Event builds a fire-and-forget envelope.
func Event(channel string, payload json.RawMessage) *Envelope {
	return &Envelope{Kind: KindEvent, Channel: channel, Payload: payload}
}

// Request builds a correlated request envelope.
func Request(channel, id string, payload json.RawMessage) *Envelope {
	return &Envelope{Kind: KindRequest, Channel: channel, ID: id, Payload: payload}
}

// Response builds a success response for the given correlation ID.
func Response(id string, payload json.RawMessage) *Envelope {
	return &Envelope{Kind: KindResponse, ID: id, Payload: payload}
}

// ErrorResponse builds an error-bearing response for the given correlation ID.
func ErrorResponse(id, channel, message string) *Envelope {
	return &Envelope{Kind: KindResponse, ID: id, Channel: channel, Error: message}
}

// Push builds a host-initiated push envelope.
func Push(channel string, payload json.RawMessage) *Envelope {
	return &Envelope{Kind: KindPush, Channel: channel, Payload: payload}
}
