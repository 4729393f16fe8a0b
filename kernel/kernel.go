package kernel

import (
	"fmt"

	"github.com/rtcore/kernel/internal/list"
	"github.com/rtcore/kernel/internal/timewheel"
	"github.com/rtcore/kernel/port"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Kernel is the top-level scheduling/synchronization core of spec §2:
// the priority-ordered ready queue, the context-switch state machine,
// the time wheel, and the four blocking primitives, wired to a caller-
// supplied Port. Grounded on the teacher's ParallelExecutor
// (core/blockstm/executor.go) as the "one struct owns every descriptor
// table and the run loop" shape.
type Kernel struct {
	cfg    Config
	port   port.Port
	logger zerolog.Logger
	metrics *Metrics

	sched scheduler

	tasks      []Task
	mutexes    []Mutex
	semaphores []Semaphore
	events     []Event
	queues     []Queue
	timers     []Timer

	nameIndex *nameIndex
}

// Option configures optional collaborators at construction time,
// mirroring the teacher's functional-option-free but field-initialized
// NewParallelExecutor (profile/metadata switches passed positionally);
// we use the more idiomatic option-struct-free approach of a handful of
// With* setters since there are only two optional collaborators.
type Option func(*Kernel)

// WithLogger attaches a structured logger used for INTERNAL_ERROR
// conditions only (spec §7). The zero value (zerolog.Nop()) is used if
// omitted.
func WithLogger(logger zerolog.Logger) Option {
	return func(k *Kernel) { k.logger = logger }
}

// WithMetrics attaches a Prometheus registry for the per-task analytics
// and scheduler gauges of kernel/metrics.go. Metrics are a no-op if
// omitted.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(k *Kernel) { k.metrics = NewMetrics(reg) }
}

// NewKernel validates cfg, allocates every primitive's contiguous
// descriptor storage (spec §3), and returns a Kernel ready for
// TaskCreate calls. p must not be nil.
func NewKernel(cfg Config, p port.Port, opts ...Option) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	k := &Kernel{
		cfg:        cfg,
		port:       p,
		logger:     zerolog.Nop(),
		sched:      newScheduler(),
		tasks:      make([]Task, cfg.MaxTasks),
		mutexes:    make([]Mutex, cfg.MaxMutexes),
		semaphores: make([]Semaphore, cfg.MaxSemaphores),
		events:     make([]Event, cfg.MaxEvents),
		queues:     make([]Queue, cfg.MaxQueues),
		timers:     make([]Timer, cfg.MaxTimers),
		nameIndex:  newNameIndex(),
	}
	for i := range k.tasks {
		k.tasks[i] = Task{id: TaskID(i)}
	}
	for _, opt := range opts {
		opt(k)
	}
	// The ready queue must never run dry: servicePendSwitch's canPreempt
	// only refuses to switch when there is truly nothing else to run, but
	// if that "nothing else" happens the instant every user task is
	// blocked, the caller that just blocked is left neither switched away
	// from nor woken — it would simply keep executing past its own
	// blocking call. AT_RTOS always has an idle thread parked at the
	// lowest priority precisely to rule this out; config.go's
	// IdlePriority documents the convention, so NewKernel seeds it here
	// rather than leaving every caller to remember to.
	idleStack := make([]byte, cfg.MinStackWords*4)
	if _, err := k.createTask(func() { select {} }, idleStack, cfg.IdlePriority(), "idle"); err != nil {
		return nil, fmt.Errorf("kernel: failed to create idle task: %w", err)
	}
	return k, nil
}

// TaskCreate implements spec §6's task_create(entry, stack_buf,
// stack_len, priority, name): claims the first free task slot, prepares
// its initial stack via the port, and inserts it into the ready queue.
// Non-goal: dynamic task creation after startup — callers are expected
// to create every task before the first RunFirst, though nothing here
// enforces that beyond the fixed-size descriptor storage.
func (k *Kernel) TaskCreate(entry port.Entry, stackBuf []byte, priority Priority, name string) (TaskID, error) {
	if priority < k.cfg.HighestPriority || priority > k.cfg.LowestPriority {
		return -1, ErrInvalidID
	}
	if len(stackBuf) < k.cfg.MinStackWords*4 {
		return -1, ErrInvalidID
	}
	return k.createTask(entry, stackBuf, priority, name)
}

// createTask is TaskCreate's allocation body, shared with NewKernel's
// idle-task seeding, which must bypass TaskCreate's priority bound check
// (the idle task intentionally sits one level below the lowest
// user-assignable priority).
func (k *Kernel) createTask(entry port.Entry, stackBuf []byte, priority Priority, name string) (TaskID, error) {
	for i := range k.tasks {
		if k.tasks[i].used {
			continue
		}
		t := &k.tasks[i]
		*t = Task{
			id:       TaskID(i),
			name:     name,
			stable:   priority,
			priority: priority,
			entryFn:  entry,
			used:     true,
			state:    StateReady,
		}
		t.link.Owner = t
		t.sp = k.port.StackFrameInit(entry, stackBuf)
		k.sched.ready.SortedInsert(&t.link, taskOrderBefore)
		k.sched.activePriorities.Add(priority)
		k.nameIndex.put(name, t.id)
		return t.id, nil
	}
	return -1, ErrNoResource
}

// Start hands control to the first task (the best-priority ready task)
// through the port's RunFirst. On a port whose RunFirst never returns
// (real hardware) Start does not return either; simport.Port's RunFirst
// returns after the handoff, and Start then returns to its caller.
func (k *Kernel) Start() {
	head := k.sched.ready.Head()
	if head == nil {
		return
	}
	first := head.Owner.(*Task)
	k.sched.ready.Delete(head)
	first.state = StateDetached
	k.sched.currentID = first.id
	k.sched.hasCurrent = true
	first.analytics.lastActiveMs = k.port.NowMs()
	k.port.RunFirst(first.sp)
}

// Tick advances the time wheel to nowMs, firing any due task timeouts or
// software timers, then services a pend-switch so the newly-woken tasks
// take effect. Spec §1: the tick source/ISR itself is out of scope; this
// is the entry point it calls.
func (k *Kernel) Tick(nowMs uint32) {
	k.port.CriticalEnter()
	k.sched.wheel.Tick(nowMs, k.dispatchFire)
	k.port.CriticalExit()
	k.invokeAndSchedule(func() Result { return OK })
}

// dispatchFire is the time wheel's Fire callback (kernel.Tick). A *Task
// deadline firing means a blocked task's timeout expired: it must first
// be unlinked from whatever wait queue it's still sitting in (a mutex's,
// semaphore's, event's or queue's waiters; a sleeping task is linked
// nowhere) before being
// staged onto entryStaging — scheduleEntryTrigger's Push requires the
// node not already be linked anywhere, and a timeout is the one wake path
// that does not already know which queue to remove the task from itself.
func (k *Kernel) dispatchFire(owner any) {
	switch o := owner.(type) {
	case *Task:
		if o.link.Linked() {
			k.listOwning(o).Delete(&o.link)
		}
		k.scheduleEntryTrigger(o, nil, ErrTimeout)
	case *Timer:
		k.fireTimer(o)
	}
}

// TaskSleep suspends the calling task for ms milliseconds. targetQueue is
// nil (not ready): a sleeping task must not be runnable until its
// deadline actually fires, and dispatchFire's *Task case is what re-stages
// it onto ready via entry staging at that point.
func (k *Kernel) TaskSleep(ms uint32) Result {
	return k.invokeAndSchedule(func() Result {
		caller := k.currentTask()
		k.scheduleExitTrigger(caller, nil, nil, nil, ms, false)
		return resultPending
	})
}

// TaskYield implements spec §5's explicit yield suspension point: the
// caller re-enters the ready queue behind any other ready task at its
// own priority (FIFO), immediately.
func (k *Kernel) TaskYield() Result {
	return k.invokeAndSchedule(func() Result {
		caller := k.currentTask()
		k.scheduleEntryTrigger(caller, nil, OK)
		return OK
	})
}

// TaskSuspend detaches a ready or sleeping task until TaskResume is
// called — original_source/at_rtos.h's thread_suspend, distinct from the
// blocking primitives' suspension points (SPEC_FULL.md §12).
func (k *Kernel) TaskSuspend(id TaskID) Result {
	return k.invokeAndSchedule(func() Result {
		t, res := k.taskByID(id)
		if res != OK {
			return res
		}
		if t.link.Linked() {
			k.listOwning(t).Delete(&t.link)
		}
		k.sched.wheel.Remove(&t.deadline, false)
		// StateDetached is reserved for "currently running" (see
		// servicePendSwitch); a suspended task is neither running nor
		// linked anywhere, which StateWaiting without list membership
		// already covers (TaskSleep's path after the drainExit fix uses
		// the same convention).
		t.state = StateWaiting
		return OK
	})
}

// TaskResume re-admits a suspended task to the ready queue.
func (k *Kernel) TaskResume(id TaskID) Result {
	return k.invokeAndSchedule(func() Result {
		t, res := k.taskByID(id)
		if res != OK {
			return res
		}
		k.scheduleEntryTrigger(t, nil, OK)
		return OK
	})
}

// TaskDelete self-deletes the calling task (spec §3: "a task may
// self-delete, clearing its stack and its slot").
func (k *Kernel) TaskDelete() Result {
	return k.invokeAndSchedule(func() Result {
		caller := k.currentTask()
		k.scheduleExitTrigger(caller, nil, nil, nil, timewheel.Forever, true)
		return resultPending
	})
}

func (k *Kernel) taskByID(id TaskID) (*Task, Result) {
	if id < 0 || int(id) >= len(k.tasks) || !k.tasks[id].used {
		return nil, ErrInvalidID
	}
	return &k.tasks[id], OK
}

// listOwning returns the list a linked task descriptor currently
// belongs to, for operations (TaskSuspend) that must unlink it from
// whatever wait queue or staging list it happens to be on without the
// caller needing to know which one.
func (k *Kernel) listOwning(t *Task) *list.List {
	return t.link.Owning()
}

// NowMs returns the port's monotonic clock.
func (k *Kernel) NowMs() uint32 { return k.port.NowMs() }
