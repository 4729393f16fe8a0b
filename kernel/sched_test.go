package kernel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTaskYieldFIFOOrdering checks spec §4.C's Non-goal-adjacent guarantee
// that same-priority tasks round-robin in FIFO order under TaskYield, never
// by some other ordering (insertion order is the only tie-break).
func TestTaskYieldFIFOOrdering(t *testing.T) {
	k, _, cfg := newTestKernel(t)
	report := make(chan string, 8)

	_, err := k.TaskCreate(func() {
		report <- "A"
		k.TaskYield()
		report <- "A2"
		select {}
	}, stackBuf(cfg), Priority(5), "A")
	require.NoError(t, err)

	_, err = k.TaskCreate(func() {
		report <- "B"
		k.TaskYield()
		select {}
	}, stackBuf(cfg), Priority(5), "B")
	require.NoError(t, err)

	_, err = k.TaskCreate(func() {
		report <- "C"
		k.TaskYield()
		select {}
	}, stackBuf(cfg), Priority(5), "C")
	require.NoError(t, err)

	k.Start()

	awaitReport(t, report, "A")
	awaitReport(t, report, "B")
	awaitReport(t, report, "C")
	awaitReport(t, report, "A2")
}

// TestTaskSleepWakesOnTick exercises the sleep/timeout path end to end: the
// sleeping task must not be runnable before its deadline and must wake with
// ErrTimeout exactly on the tick that reaches it.
func TestTaskSleepWakesOnTick(t *testing.T) {
	k, p, cfg := newTestKernel(t)
	report := make(chan string, 2)

	_, err := k.TaskCreate(func() {
		report <- "start"
		res := k.TaskSleep(50)
		report <- fmt.Sprintf("woke:%d", res)
		select {}
	}, stackBuf(cfg), Priority(5), "sleeper")
	require.NoError(t, err)

	k.Start()
	awaitReport(t, report, "start")

	select {
	case msg := <-report:
		t.Fatalf("sleeper woke before its deadline: %q", msg)
	default:
	}

	driverCall(p, func() { k.Tick(49) })
	select {
	case msg := <-report:
		t.Fatalf("sleeper woke one tick early: %q", msg)
	default:
	}

	driverCall(p, func() { k.Tick(50) })
	awaitReport(t, report, fmt.Sprintf("woke:%d", ErrTimeout))
}
