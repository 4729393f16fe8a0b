package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rtcore/kernel/port/simport"
)

// stackBuf returns a stack buffer large enough for cfg's minimum.
func stackBuf(cfg Config) []byte {
	return make([]byte, cfg.MinStackWords*4)
}

// newTestKernel builds a kernel over a fresh simport.Port with
// DefaultConfig.
func newTestKernel(t *testing.T) (*Kernel, *simport.Port, Config) {
	t.Helper()
	cfg := DefaultConfig()
	p := simport.New()
	k, err := NewKernel(cfg, p)
	require.NoError(t, err)
	return k, p, cfg
}

// awaitReport waits for want on ch, failing the test after a generous
// timeout instead of hanging forever if a scenario deadlocks.
func awaitReport(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for report %q", want)
	}
}

// driverCall runs fn as the simulated tick ISR / interrupt-context caller
// would: wrapped in RunInterrupt so any pend-switch it triggers hands off
// the run token without parking this (the test driver's) goroutine. Every
// kernel call the test driver makes directly, as opposed to a call made
// from inside a task's own entry function, must go through this.
func driverCall(p *simport.Port, fn func()) {
	p.RunInterrupt(fn)
}
