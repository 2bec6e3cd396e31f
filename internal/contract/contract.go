// Package contract defines the declared channel set shared by both ends of
// the bridge. The contract is the entire wire agreement: a fixed mapping from
// channel name to message shape, built once before the sandbox connects and
// never extended at runtime.
package contract

import (
	"errors"
	"fmt"
	"sort"
)

// Shape is the message pattern a channel carries.
type Shape int

const (
	// ShapeEvent is sandbox → host, fire-and-forget.
	ShapeEvent Shape = iota
	// ShapeRequest is sandbox → host with exactly one response.
	ShapeRequest
	// ShapePush is host → sandbox, fire-and-forget.
	ShapePush
)

func (s Shape) String() string {
	switch s {
	case ShapeEvent:
		return "event"
	case ShapeRequest:
		return "request"
	case ShapePush:
		return "push"
	default:
		return "unknown"
	}
}

var (
	// ErrDuplicateChannel indicates a channel name declared twice.
	ErrDuplicateChannel = errors.New("duplicate channel")
	// ErrEmptyName indicates a channel declared without a name.
	ErrEmptyName = errors.New("channel name cannot be empty")
)

// Channel is one declared capability.
type Channel struct {
	Name  string
	Shape Shape
}

// Contract is an immutable set of declared channels.
type Contract struct {
	channels map[string]Shape
}

// New builds a contract from declared channels. Declaring the same name
// twice is a startup-time error, never silently ignored.
func New(channels ...Channel) (*Contract, error) {
	set := make(map[string]Shape, len(channels))
	for _, ch := range channels {
		if ch.Name == "" {
			return nil, ErrEmptyName
		}
		if _, exists := set[ch.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateChannel, ch.Name)
		}
		set[ch.Name] = ch.Shape
	}
	return &Contract{channels: set}, nil
}

// MustNew is New for static channel sets known correct at compile time.
func MustNew(channels ...Channel) *Contract {
	c, err := New(channels...)
	if err != nil {
		panic(err)
	}
	return c
}

// Shape looks up the declared shape for a name.
func (c *Contract) Shape(name string) (Shape, bool) {
	s, ok := c.channels[name]
	return s, ok
}

// Has reports whether a channel is declared with the given shape.
func (c *Contract) Has(name string, shape Shape) bool {
	s, ok := c.channels[name]
	return ok && s == shape
}

// Len returns the number of declared channels.
func (c *Contract) Len() int {
	return len(c.channels)
}

// Channels returns the declared set, sorted by name.
func (c *Contract) Channels() []Channel {
	out := make([]Channel, 0, len(c.channels))
	for name, shape := range c.channels {
		out = append(out, Channel{Name: name, Shape: shape})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Without returns a copy of the contract with the named channels removed.
// Used at startup to apply a manifest's disabled list; the result is as
// fixed as any other contract.
func (c *Contract) Without(names ...string) *Contract {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	set := make(map[string]Shape, len(c.channels))
	for name, shape := range c.channels {
		if !drop[name] {
			set[name] = shape
		}
	}
	return &Contract{channels: set}
}
