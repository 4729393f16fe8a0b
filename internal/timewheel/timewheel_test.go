package timewheel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFiresInExpiryOrderFIFOTies(t *testing.T) {
	w := NewWheel()
	var a, b, c Deadline
	w.Set(&a, "a", 0, 100)
	w.Set(&b, "b", 0, 50)
	w.Set(&c, "c", 0, 50) // ties with b, must fire after b (insertion order)

	var fired []any
	w.Tick(100, func(owner any) { fired = append(fired, owner) })

	require.Equal(t, []any{"b", "c", "a"}, fired)
	require.False(t, a.Linked())
	require.False(t, b.Linked())
	require.False(t, c.Linked())
}

func TestTickStopsAtFirstUnexpired(t *testing.T) {
	w := NewWheel()
	var a, b Deadline
	w.Set(&a, "a", 0, 10)
	w.Set(&b, "b", 0, 20)

	var fired []any
	w.Tick(15, func(owner any) { fired = append(fired, owner) })

	require.Equal(t, []any{"a"}, fired)
	require.True(t, b.Linked())
}

func TestForeverDoesNotLink(t *testing.T) {
	w := NewWheel()
	var a Deadline
	w.Set(&a, "a", 0, Forever)
	require.False(t, a.Linked())
}

func TestRemoveCancelsArm(t *testing.T) {
	w := NewWheel()
	var a Deadline
	w.Set(&a, "a", 0, 10)
	w.Remove(&a, false)

	var fired []any
	w.Tick(100, func(owner any) { fired = append(fired, owner) })
	require.Empty(t, fired)
}

func TestReArmPreservesOrdering(t *testing.T) {
	w := NewWheel()
	var a, b Deadline
	w.Set(&a, "a", 0, 100)
	w.Set(&b, "b", 0, 10)
	// re-arm a to fire before b
	w.Set(&a, "a", 0, 5)

	var fired []any
	w.Tick(100, func(owner any) { fired = append(fired, owner) })
	require.Equal(t, []any{"a", "b"}, fired)
}
