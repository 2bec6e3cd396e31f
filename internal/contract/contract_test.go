package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c, err := New(
		Channel{Name: "system.info", Shape: ShapeRequest},
		Channel{Name: "telemetry.event", Shape: ShapeEvent},
		Channel{Name: "host.heartbeat", Shape: ShapePush},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	shape, ok := c.Shape("system.info")
	require.True(t, ok)
	assert.Equal(t, ShapeRequest, shape)

	assert.True(t, c.Has("host.heartbeat", ShapePush))
	assert.False(t, c.Has("host.heartbeat", ShapeRequest))
	assert.False(t, c.Has("nope", ShapeRequest))
}

func TestDuplicateChannel(t *testing.T) {
	_, err := New(
		Channel{Name: "system.info", Shape: ShapeRequest},
		Channel{Name: "system.info", Shape: ShapeEvent},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateChannel)
}

func TestEmptyName(t *testing.T) {
	_, err := New(Channel{Shape: ShapeRequest})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestChannelsSorted(t *testing.T) {
	c := MustNew(
		Channel{Name: "b", Shape: ShapeEvent},
		Channel{Name: "a", Shape: ShapePush},
		Channel{Name: "c", Shape: ShapeRequest},
	)

	names := []string{}
	for _, ch := range c.Channels() {
		names = append(names, ch.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestWithout(t *testing.T) {
	c := MustNew(
		Channel{Name: "a", Shape: ShapeEvent},
		Channel{Name: "b", Shape: ShapeRequest},
	)

	trimmed := c.Without("a", "missing")
	assert.Equal(t, 1, trimmed.Len())
	assert.True(t, trimmed.Has("b", ShapeRequest))
	assert.False(t, trimmed.Has("a", ShapeEvent))

	// Original is untouched.
	assert.Equal(t, 2, c.Len())
}

func TestShapeString(t *testing.T) {
	assert.Equal(t, "event", ShapeEvent.String())
	assert.Equal(t, "request", ShapeRequest.String())
	assert.Equal(t, "push", ShapePush.String())
	assert.Equal(t, "unknown", Shape(42).String())
}
