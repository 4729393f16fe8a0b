package kernel

// privilegeInvoke implements the gate of spec §4.D: if the caller is
// already in a privileged execution context (interrupt/handler mode),
// fn runs inline inside a critical section; otherwise the call traps
// through the port's software-interrupt equivalent, which re-enters fn
// from handler mode with preemption masked and returns its result.
// Grounded on AT_RTOS's kernel_privilege_invoke (kernel/kernel.c).
func (k *Kernel) privilegeInvoke(fn func() Result) Result {
	if k.port.InInterrupt() {
		k.port.CriticalEnter()
		defer k.port.CriticalExit()
		return fn()
	}
	code := k.port.Svc(func(any) int32 { return int32(fn()) }, nil)
	return Result(code)
}

// invokeAndSchedule runs fn under the privilege gate, then services the
// pend-switch handler so that any wake or block fn staged takes effect
// before returning control to the caller. Every public primitive
// operation (Lock, Take, Wait, Send, ...) goes through this, matching
// AT_RTOS's convention that the gate's return point is exactly where
// "the scheduler is asked to run" (spec §4.C/D).
//
// If fn exit-stages the calling task (it returns resultPending), the
// second privileged call's pend-switch decision parks this goroutine via
// port.Switch until something later wakes the task; invokeAndSchedule
// then returns the result recorded at wake time rather than fn's own
// return value, which was never the real outcome.
func (k *Kernel) invokeAndSchedule(fn func() Result) Result {
	t := k.currentTask()
	res := k.privilegeInvoke(fn)
	k.privilegeInvoke(func() Result {
		k.servicePendSwitch()
		return OK
	})
	if res == resultPending {
		return t.wakeResult
	}
	return res
}
