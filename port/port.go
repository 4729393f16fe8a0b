// Package port declares the narrow external-collaborator surface the
// scheduling/synchronization core consumes (spec §6). The CPU-port layer
// itself (stack frame layout, privileged-mode trap, pend-switch pin), the
// tick source, and the static allocator are explicitly out of scope of
// this module (spec §1) — only the interface they must satisfy lives
// here.
package port

// StackPointer is an opaque, port-specific saved execution context. The
// core never dereferences it; it only threads it through
// StackFrameInit/RunFirst.
type StackPointer any

// Entry is a task's entry function. It must never return, matching
// AT_RTOS's thread_init contract ("Thread function must be designed to
// never return").
type Entry func()

// PrivilegedFunc is a function the privilege gate (kernel/privilege.go)
// runs with preemption masked. It returns the raw int32 representation
// of a kernel.Result — port stays independent of the kernel package's
// types, the same way AT_RTOS's pPrivilege_callFunc_t returns a plain
// i32p_t rather than a component-specific enum.
type PrivilegedFunc func(args any) int32

// Port is the set of operations the core requires from its environment.
type Port interface {
	// NowMs returns the monotonic millisecond clock. The core never
	// advances this itself; the tick source does (out of scope, spec §1).
	NowMs() uint32

	// SwitchPend requests that the pend-switch handler run at the next
	// safe point (spec §4.C).
	SwitchPend()

	// StackFrameInit prepares a new task's initial saved stack.
	StackFrameInit(entry Entry, stackBuf []byte) StackPointer

	// RunFirst enters the first task and never returns.
	RunFirst(sp StackPointer)

	// Svc performs the privileged trap: if the caller is not already in
	// a privileged execution context, it re-enters fn from handler mode
	// and returns its result.
	Svc(fn PrivilegedFunc, args any) int32

	// InThreadMode reports whether the caller is regular (non-interrupt)
	// task code.
	InThreadMode() bool

	// InInterrupt reports whether the caller is running from interrupt
	// context.
	InInterrupt() bool

	// CriticalEnter/CriticalExit bracket a region that must run
	// atomically with respect to preemption and interrupts.
	CriticalEnter()
	CriticalExit()

	// Switch performs the mechanical handoff from the task owning from to
	// the task owning to. On real hardware this is the PendSV trampoline's
	// assembly register-restore, invisible to the C core; a software
	// simulation has no equivalent free lunch, so the core calls this
	// explicitly once per completed pend-switch decision. from is nil
	// when there is no previously running task (the very first switch).
	Switch(from, to StackPointer)
}
