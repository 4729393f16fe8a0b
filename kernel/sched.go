package kernel

import (
	"github.com/rtcore/kernel/internal/list"
	"github.com/rtcore/kernel/internal/timewheel"
	"github.com/rtcore/kernel/port"

	mapset "github.com/deckarep/golang-set/v2"
)

// scheduler holds the ready queue, the entry/exit staging lists and the
// time wheel (components B and C of spec §4). It is embedded in Kernel
// rather than standing alone because every primitive reaches into it
// directly, the same way AT_RTOS's kernel.c functions are all free
// functions over one static g_kernel_rsc rather than methods on a
// separate object.
type scheduler struct {
	ready        list.List
	entryStaging list.List
	exitStaging  list.List
	wheel        *timewheel.Wheel

	currentID TaskID
	hasCurrent bool

	// activePriorities is the live set of priority levels with at least
	// one ready task, kept in sync by syncActivePriority as tasks leave
	// ready. servicePendSwitch consults it as an independent cross-check
	// against ready.Head() (spec §7's INTERNAL_ERROR class: a mismatch
	// means the two structures have drifted apart and is logged, not
	// silently tolerated), and metrics.go exports its cardinality.
	// Grounded on core/blockstm/executor.go's skipCheck/preValidated
	// per-index membership maps, generalized to a real set type
	// (golang-set is a direct dependency of the teacher's go.mod).
	activePriorities mapset.Set[Priority]
}

func newScheduler() scheduler {
	return scheduler{
		wheel:            timewheel.NewWheel(),
		currentID:        -1,
		activePriorities: mapset.NewSet[Priority](),
	}
}

func (k *Kernel) currentTask() *Task {
	if !k.sched.hasCurrent {
		return nil
	}
	return &k.tasks[k.sched.currentID]
}

// scheduleExitTrigger is the scheduler-facing half of blocking a task:
// stage it to leave the run state, optionally arming a timeout, and move
// it onto targetQueue once the exit-staging drain runs. Grounded on
// AT_RTOS's schedule_exit_trigger (kernel/kernel.c). selfDelete frees
// the task's slot in the drain (matches _schedule_exit's null-pToList
// branch); targetQueue == nil without selfDelete links the task nowhere,
// so only its deadline wakes it (TaskSleep).
func (k *Kernel) scheduleExitTrigger(t *Task, pendCtx, pendData any, targetQueue *list.List, timeoutMs uint32, selfDelete bool) {
	t.pendCtx = pendCtx
	t.pendData = pendData
	t.exit.targetQueue = targetQueue
	t.exit.timeoutMs = timeoutMs
	t.exit.selfDelete = selfDelete
	t.state = StateExitStaging
	k.sched.exitStaging.Push(&t.link, list.Tail)
	k.port.SwitchPend()
}

// scheduleEntryTrigger is the scheduler-facing half of waking a task:
// stage it to re-enter the ready queue with a result and an optional
// callback to run during the drain. Grounded on AT_RTOS's
// schedule_entry_trigger.
func (k *Kernel) scheduleEntryTrigger(t *Task, fun func(t *Task), result Result) {
	t.entry.fun = fun
	t.entry.result = result
	t.entry.hasResult = true
	t.state = StateEntryStaging
	k.sched.entryStaging.Push(&t.link, list.Tail)
	k.port.SwitchPend()
}

// drainExit processes every task staged to leave the run state: arms its
// timeout (unless Forever), moves it onto its recorded target queue (or
// wipes it on self-delete), and clears the exit record. Grounded on
// AT_RTOS's _schedule_exit.
func (k *Kernel) drainExit(nowMs uint32) {
	it := k.sched.exitStaging.Iterator()
	for n, ok := it.Next(); ok; n, ok = it.Next() {
		t := n.Owner.(*Task)
		k.sched.exitStaging.Delete(n)

		if t.exit.timeoutMs != timewheel.Forever {
			k.sched.wheel.Set(&t.deadline, t, nowMs, t.exit.timeoutMs)
		}

		if t.exit.selfDelete {
			k.finalizeTaskDeletion(t)
		} else if t.exit.targetQueue != nil {
			t.state = StateWaiting
			t.exit.targetQueue.SortedInsert(&t.link, taskOrderBefore)
		} else {
			// No target queue (TaskSleep): the task is blocked on its
			// deadline alone, not linked into any list. StateDetached is
			// reserved for "currently running" (see servicePendSwitch); using
			// it here would make currentRunnable true for a task that just
			// went to sleep and stop the switch away from it from happening.
			t.state = StateWaiting
		}

		t.exit = exitRecord{}
		t.entry.hasResult = false
	}
}

// drainEntry processes every task staged to (re)join the ready queue:
// disarms any pending deadline, invokes its wake callback if any, clears
// its pending-context pointer, records last_pend_ms, and sorted-inserts it
// into ready. Grounded on AT_RTOS's _schedule_entry.
func (k *Kernel) drainEntry(nowMs uint32) {
	it := k.sched.entryStaging.Iterator()
	for n, ok := it.Next(); ok; n, ok = it.Next() {
		t := n.Owner.(*Task)
		k.sched.entryStaging.Delete(n)
		k.sched.wheel.Remove(&t.deadline, false)

		if t.entry.fun != nil {
			t.entry.fun(t)
			t.entry.fun = nil
		}
		t.wakeResult = t.entry.result
		t.pendCtx = nil
		t.analytics.lastPendMs = nowMs

		t.state = StateReady
		k.sched.ready.SortedInsert(&t.link, taskOrderBefore)
		k.sched.activePriorities.Add(t.priority)
	}
}

// canPreempt implements spec §4.C's preempt gate: given a next task,
// current may be preempted when it is no longer runnable at all (it just
// blocked or self-deleted this cycle), or when next is strictly better
// (lower priority number) than current. Equal-priority tasks never preempt a
// running task — Non-goal: "fairness across tasks of equal priority
// beyond FIFO" means an equal-priority task simply waits its turn in
// ready; it does not time-slice in.
func canPreempt(current, next *Task, currentRunnable bool) bool {
	if next == nil {
		return false
	}
	if current == nil || !currentRunnable {
		return true
	}
	return next.priority < current.priority
}

// servicePendSwitch drains staging, recomputes the ready queue, and
// decides whether to switch away from the currently running task. It
// must run with preemption masked (spec §4.C: "runs in ISR context with
// preemption masked"); callers invoke it from inside privilegeInvoke's
// critical section. Grounded on AT_RTOS's kernel_scheduler_inPendSV_c.
//
// The actual stack-pointer swap that real hardware performs for free in
// the PendSV trampoline's assembly epilogue has no Go analog, so the
// simulated Port is asked to perform it explicitly via Switch — see
// port.Port's doc comment and DESIGN.md for why this one method exists
// beyond spec §6's literal list.
func (k *Kernel) servicePendSwitch() {
	nowMs := k.port.NowMs()
	k.drainExit(nowMs)
	k.drainEntry(nowMs)

	if !k.sched.hasCurrent {
		// Before Start nothing is running: leave the ready queue (idle
		// task included) for Start to pick the first task from.
		return
	}

	cur := k.currentTask()
	// cur.state == StateDetached is the marker this same function leaves
	// on whichever task it last switched to (see below): "currently
	// running, not linked in any list". If the operation that ran under
	// the privilege gate just before this call staged cur to block or
	// delete itself, cur.state has already moved off StateDetached by the
	// time drainExit/drainEntry above ran, and cur is no longer a
	// candidate to keep running.
	currentRunnable := cur != nil && cur.used && cur.state == StateDetached
	nextLink := k.sched.ready.Head()
	var next *Task
	if nextLink != nil {
		next = nextLink.Owner.(*Task)
	}

	if !canPreempt(cur, next, currentRunnable) {
		return
	}

	if next != nil && !k.sched.activePriorities.Contains(next.priority) {
		// The ready head's own priority should always be a member of
		// activePriorities (every ready-queue insertion adds it); a miss
		// here means the two structures have drifted apart.
		k.logger.Error().
			Int32("priority", int32(next.priority)).
			Str("task", next.name).
			Msg("rtcore: ready head's priority missing from active-priority set")
	}

	if cur != nil && next == cur {
		// A yield (or any other self re-entry into ready) can pick the
		// same task back up when nothing else outranks it. That is not a
		// real switch: Switch(self, self) would send on a channel this
		// very goroutine is waiting to receive from, deadlocking it.
		// Undo the transient ready membership and keep running.
		k.sched.ready.Delete(&next.link)
		next.state = StateDetached
		k.syncActivePriority(next.priority)
		return
	}

	var fromSP, toSP port.StackPointer
	if cur != nil {
		fromSP = cur.sp
	}
	toSP = next.sp

	if cur != nil {
		cur.analytics.lastRunMs = nowMs - cur.analytics.lastActiveMs
		cur.analytics.totalRunMs += uint64(cur.analytics.lastRunMs)
		k.metrics.observeTask(cur)
	}
	// currentRunnable means cur is being preempted, not blocking of its own
	// accord (that path already moved cur onto a wait queue via drainExit
	// above). A preempted-but-still-runnable task must go back to ready,
	// or it is silently dropped from every list once Switch hands the run
	// token to next.
	if cur != nil && currentRunnable {
		cur.state = StateReady
		k.sched.ready.SortedInsert(&cur.link, taskOrderBefore)
		k.sched.activePriorities.Add(cur.priority)
	}
	next.analytics.lastActiveMs = nowMs

	k.sched.ready.Delete(&next.link)
	k.syncActivePriority(next.priority)
	next.state = StateDetached // "running" is not a list membership; see task.go doc
	k.sched.currentID = next.id
	k.sched.hasCurrent = true
	k.metrics.observeReadyDepth(k.sched.ready.Len())
	k.metrics.observeActivePriorities(k.sched.activePriorities.Cardinality())

	k.port.Switch(fromSP, toSP)
}

// syncActivePriority drops p from activePriorities once no ready task
// remains at that level. activePriorities.Add is called wherever a task
// joins ready (createTask, drainEntry, the preempted-cur reinsertion
// below); this is the corresponding removal path, called wherever a task
// leaves ready under its own priority, so the set tracks live membership
// instead of only ever growing.
func (k *Kernel) syncActivePriority(p Priority) {
	it := k.sched.ready.Iterator()
	for n, ok := it.Next(); ok; n, ok = it.Next() {
		if n.Owner.(*Task).priority == p {
			return
		}
	}
	k.sched.activePriorities.Remove(p)
}

func (k *Kernel) finalizeTaskDeletion(t *Task) {
	t.used = false
	t.state = StateFree
	t.name = ""
	t.entryFn = nil
	t.sp = nil
	if k.nameIndex != nil {
		k.nameIndex.remove(t.id)
	}
}
