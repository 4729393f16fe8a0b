package kernel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestComputeTriggerBitAlgebra exercises spec §4.G's bit algebra directly,
// one bit at a time, independent of any task/scheduler machinery.
func TestComputeTriggerBitAlgebra(t *testing.T) {
	const bit0 = uint32(1)
	cases := []struct {
		name                       string
		anyMask, modeMask, dirMask uint32
		newValue, changed          uint32
		want                       uint32
	}{
		{"any bit always triggers on change", bit0, 0, 0, bit0, bit0, bit0},
		{"any bit does not trigger without change", bit0, 0, 0, bit0, 0, 0},
		{"edge rising: value rose on the watched direction", 0, bit0, bit0, bit0, bit0, bit0},
		{"edge rising: bit changed but fell, not rose", 0, bit0, bit0, 0, bit0, 0},
		{"edge falling: value fell on the watched direction", 0, bit0, 0, 0, bit0, bit0},
		{"level high: currently high and dir wants high", 0, 0, bit0, bit0, bit0, bit0},
		{"level low: currently low and dir wants low", 0, 0, 0, 0, bit0, bit0},
		{"level high: currently low, dir wants high — no trigger", 0, 0, bit0, 0, bit0, 0},
		{"unchanged bit never triggers regardless of mode", 0, bit0, bit0, bit0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := &Event{anyMask: tc.anyMask, modeMask: tc.modeMask, dirMask: tc.dirMask}
			require.Equal(t, tc.want, computeTrigger(e, tc.newValue, tc.changed))
		})
	}
}

// TestEventEdgeWakeSemantics drives EventSet/EventWait directly (no task
// needed: every call here takes the non-blocking immediate path) to check
// that an edge trigger latches until a waiter observes it, and that a bit
// which never transitioned is untouched by either the recompute or the
// latch.
func TestEventEdgeWakeSemantics(t *testing.T) {
	k, _, _ := newTestKernel(t)
	const bit0 = uint32(1)
	const bit1 = uint32(2)

	// edge mode, rising edge, bit0 and bit1.
	eid, err := k.CreateEvent("e", 0, bit0|bit1, bit0|bit1, 0)
	require.NoError(t, err)

	_, _, res := k.EventWait(eid, bit0, 0)
	require.Equal(t, ErrNoResource, res, "no transition has happened yet")

	// 0 -> 1 on bit0, no waiter present: the edge latches in triggered.
	require.Equal(t, OK, k.EventSet(eid, bit0, 0, 0))
	val, trig, res := k.EventWait(eid, bit0, 0)
	require.Equal(t, OK, res, "a late waiter must still observe the latched edge")
	require.Equal(t, bit0, trig)
	require.Equal(t, bit0, val)

	// bit1 never transitioned: disjoint from the bit0 edge above, so it
	// reports nothing of its own.
	_, _, res = k.EventWait(eid, bit1, 0)
	require.Equal(t, ErrNoResource, res, "bit1 never transitioned and was never set")
}

// TestEventLevelAlreadyHighReturnsImmediately is the concrete regression
// case for the wait-path bug: a level-high bit that was already set at
// event creation (no set() transition ever observed, so triggered is
// empty) must still return immediately, because wait() recomputes the
// trigger expression against the live value instead of only reading the
// (edge-only) triggered latch.
func TestEventLevelAlreadyHighReturnsImmediately(t *testing.T) {
	k, _, _ := newTestKernel(t)
	const bit0 = uint32(1)

	// level mode, high-triggers, bit0, created already high.
	eid, err := k.CreateEvent("e", 0, 0, bit0, bit0)
	require.NoError(t, err)

	val, trig, res := k.EventWait(eid, bit0, 0)
	require.Equal(t, OK, res)
	require.Equal(t, bit0, val)
	require.Equal(t, bit0, trig)
}

// TestEventLevelBitsNeverLatch checks invariant 6 directly: level bits must
// never appear in triggered — level state is recovered live at wait time,
// not from the latch the way edge bits are.
func TestEventLevelBitsNeverLatch(t *testing.T) {
	k, _, _ := newTestKernel(t)
	const bit0 = uint32(1)

	eid, err := k.CreateEvent("e", 0, 0, bit0, 0)
	require.NoError(t, err)
	require.Equal(t, OK, k.EventSet(eid, bit0, 0, 0))

	e, res := k.event(eid)
	require.Equal(t, OK, res)
	require.Equal(t, uint32(0), e.triggered, "a level bit must never be latched into triggered")
}

// TestEventWaitBlocksUntilLevelSet exercises the blocking path end to end:
// a task waits on a level trigger, blocks, and is woken once the level is
// set from outside thread context.
func TestEventWaitBlocksUntilLevelSet(t *testing.T) {
	k, p, cfg := newTestKernel(t)
	const bit0 = uint32(1)

	// level mode, high-triggers, bit0, starts low.
	eid, err := k.CreateEvent("e", 0, 0, bit0, 0)
	require.NoError(t, err)

	report := make(chan string, 2)
	_, err = k.TaskCreate(func() {
		val, trig, res := k.EventWait(eid, bit0, noTimeoutSoon)
		report <- fmt.Sprintf("waiter:%d:%d:%d", val, trig, res)
		select {}
	}, stackBuf(cfg), Priority(5), "waiter")
	require.NoError(t, err)

	k.Start()

	select {
	case msg := <-report:
		t.Fatalf("waiter reported before the level was set: %q", msg)
	default:
	}

	driverCall(p, func() {
		require.Equal(t, OK, k.EventSet(eid, bit0, 0, 0))
	})

	awaitReport(t, report, fmt.Sprintf("waiter:%d:%d:%d", bit0, bit0, OK))
}
