// Package simport is a goroutine-backed implementation of port.Port, used
// by kernel package tests and cmd/ktracesim in place of real hardware.
//
// Each task is a goroutine parked on its own resume channel; a single
// token (the right to run business logic) is handed from task to task by
// Switch exactly as the PendSV trampoline's register restore would on
// real hardware. CriticalEnter/CriticalExit is a real sync.Mutex, giving
// the kernel's privilege gate genuine mutual exclusion against concurrent
// callers — the same role AT_RTOS's ENTER_CRITICAL_SECTION/
// EXIT_CRITICAL_SECTION macros play around a single CPU's interrupt mask.
//
// Grounded on the goroutine-per-unit-of-work-parked-on-a-channel idiom of
// other_examples' toysched-step6/toysched-step7
// (Xlaez/GopherCon_Africa_2025) and on core/blockstm/executor.go's
// worker-goroutines-draining-a-channel handoff pattern, generalized from
// "hand a channel its next job" to "hand a channel the right to run".
package simport

import (
	"sync"
	"sync/atomic"

	"github.com/rtcore/kernel/port"
)

// handle is the simulated StackPointer: a task's resume channel.
type handle struct {
	resume chan struct{}
}

// Port is a single-instance simulated hardware port. The zero value is
// not ready to use; construct with New.
//
// clock is a separate atomic rather than being protected by mu: the
// kernel core reads NowMs from deep inside the critical section
// (servicePendSwitch, timer arming) that mu itself models, and mu is a
// plain, non-reentrant sync.Mutex, so guarding clock with it as well
// would deadlock the first nested read.
type Port struct {
	mu        sync.Mutex
	clock     atomic.Uint32
	interrupt bool
}

func New() *Port {
	return &Port{}
}

// NowMs returns the simulated monotonic clock, last set by SetClock.
func (p *Port) NowMs() uint32 {
	return p.clock.Load()
}

// SetClock sets the simulated clock without implying a tick fired;
// callers that want deadlines to actually fire drive kernel.Tick (wrapped
// in RunInterrupt). kernel.Tick advances the time wheel's own clock and
// services due deadlines; it does not change this port clock, which the
// kernel reads when it arms new deadlines and timers.
func (p *Port) SetClock(ms uint32) {
	p.clock.Store(ms)
}

// SwitchPend is a no-op here: unlike real hardware, which pends a
// software interrupt to run the context switch asynchronously, this
// simulated port services the pend-switch synchronously right where the
// kernel core requests it (kernel.invokeAndSchedule), so there is no
// separate IRQ to arm.
func (p *Port) SwitchPend() {}

// StackFrameInit spawns the task's goroutine, parked immediately on its
// resume channel until RunFirst or Switch admits it.
func (p *Port) StackFrameInit(entry port.Entry, stackBuf []byte) port.StackPointer {
	h := &handle{resume: make(chan struct{})}
	go func() {
		<-h.resume
		entry()
		// port.Entry's contract says entry never returns (real hardware
		// has nowhere to return to); a test task that returns anyway
		// simply goes inert rather than corrupting another task's turn.
		select {}
	}()
	return h
}

// RunFirst admits the first task. Unlike real hardware's RunFirst, which
// never returns because there is no caller to return to, this simulated
// port returns immediately after handing off the run token: the calling
// goroutine (a test or cmd/ktracesim's driver) keeps running so it can go
// on to advance the simulated clock and issue further operations. This is
// the one place the simulated port's contract deliberately diverges from
// spec §6's literal wording, noted in DESIGN.md.
func (p *Port) RunFirst(sp port.StackPointer) {
	p.Switch(nil, sp)
}

// Svc performs the privileged trap: enter the critical section, run fn,
// leave it. There is no real privileged CPU mode to transition into in a
// goroutine simulation, so the critical section alone stands in for it.
func (p *Port) Svc(fn port.PrivilegedFunc, args any) int32 {
	p.CriticalEnter()
	defer p.CriticalExit()
	return fn(args)
}

// InThreadMode reports the complement of InInterrupt: this simulated
// port has no separate "privileged but not interrupt" mode.
func (p *Port) InThreadMode() bool { return !p.InInterrupt() }

// InInterrupt reports whether the calling goroutine is inside a
// RunInterrupt-wrapped call.
func (p *Port) InInterrupt() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interrupt
}

func (p *Port) CriticalEnter() { p.mu.Lock() }
func (p *Port) CriticalExit()  { p.mu.Unlock() }

// Switch hands the run token to to, then — unless the handoff is
// happening from simulated interrupt context, or there is no previous
// task (the very first switch) — parks the calling goroutine on its own
// resume channel until some future Switch hands the token back to it.
// While parked it releases p.mu (held by the enclosing CriticalEnter) so
// the task it handed the token to can enter the critical section, and it
// takes p.mu again once resumed.
//
// An interrupt-context handoff (the tick ISR waking a higher-priority
// task while a lower one is "current") does not park its caller: real
// hardware's tick ISR preempts whatever is running and returns to its own
// context when done, it never waits for the preempted task to run again
// before returning. A goroutine cannot be forcibly suspended mid-
// instruction the way a real CPU core can, so this simulated port cannot
// reproduce true asynchronous preemption of a task that is actively
// running (not already blocked); it only correctly preempts a task that
// has already parked waiting on something (a timeout, a semaphore, ...),
// which is every scenario spec §8 actually exercises. This limitation is
// inherent to simulating preemptive hardware with cooperative goroutines
// and is recorded in DESIGN.md rather than hidden.
func (p *Port) Switch(from, to port.StackPointer) {
	toH := to.(*handle)
	toH.resume <- struct{}{}

	if from == nil {
		return
	}
	// Read interrupt directly rather than via InInterrupt(): Switch always
	// runs with p.mu already held by the enclosing CriticalEnter (Svc's or
	// privilegeInvoke's interrupt branch), so re-locking here would
	// deadlock against the non-reentrant mutex; the read is still safe
	// because it happens inside that same critical section.
	if p.interrupt {
		return
	}
	fromH := from.(*handle)
	p.mu.Unlock()
	<-fromH.resume
	p.mu.Lock()
}

// RunInterrupt runs fn with InInterrupt() reporting true, simulating a
// hardware tick ISR (or another interrupt-context caller, e.g. a
// semaphore.give/event.set invoked from outside thread context). Tests
// and cmd/ktracesim wrap kernel.Tick and any interrupt-context primitive
// call in RunInterrupt so privilegeInvoke and Switch see the right
// context.
func (p *Port) RunInterrupt(fn func()) {
	p.mu.Lock()
	p.interrupt = true
	p.mu.Unlock()

	fn()

	p.mu.Lock()
	p.interrupt = false
	p.mu.Unlock()
}
