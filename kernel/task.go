package kernel

import (
	"github.com/rtcore/kernel/internal/list"
	"github.com/rtcore/kernel/internal/timewheel"
	"github.com/rtcore/kernel/port"
)

// TaskID is a stable index into the kernel's contiguous task storage
// (spec §3: "placed in compile-time-reserved, contiguous storage").
type TaskID int32

// TaskState is a debug/diagnostic label for which list a task currently
// sits on. It mirrors, but does not replace, the actual linkage (the
// embedded list.Link is the single source of truth for membership); the
// invariant "a task is linked in at most one list at a time" is enforced
// by internal/list itself, since Push/SortedInsert always operate on an
// unlinked node.
type TaskState int32

const (
	StateFree TaskState = iota
	StateReady
	StateWaiting
	StateEntryStaging
	StateExitStaging
	StateDetached
)

// entryRecord is the scheduler's entry-staging record: {callback, result}
// per spec §3.
type entryRecord struct {
	fun       func(t *Task)
	result    Result
	hasResult bool
}

// exitRecord is the scheduler's exit-staging record: {target_queue,
// timeout_ms} per spec §3.
type exitRecord struct {
	targetQueue *list.List
	timeoutMs   uint32
	selfDelete  bool
}

// analytics is the per-task timing record of spec §3, exported via
// metrics.go as Prometheus gauges.
type analytics struct {
	lastActiveMs uint32
	lastRunMs    uint32
	totalRunMs   uint64
	lastPendMs   uint32
}

// Task is the task descriptor of spec §3.
type Task struct {
	id       TaskID
	name     string
	stable   Priority // stable priority, set at creation
	priority Priority // effective priority (boosted under mutex inheritance)

	link     list.Link        // linkage: ready / a primitive's wait queue / staging / detached
	deadline timewheel.Deadline
	state    TaskState

	pendCtx  any // the primitive this task is blocked on
	pendData any // primitive-specific per-waiter record

	entry entryRecord
	exit  exitRecord

	// wakeResult holds the result a blocked task resumes with, captured by
	// drainEntry from entry.result before the entry record is cleared.
	wakeResult Result

	analytics analytics

	sp      port.StackPointer
	entryFn port.Entry
	used    bool // init marker: claimed slot
}

// ID returns the task's stable identifier.
func (t *Task) ID() TaskID { return t.id }

// Name returns the task's human-readable name.
func (t *Task) Name() string { return t.name }

// Priority returns the task's current effective priority.
func (t *Task) Priority() Priority { return t.priority }

// StablePriority returns the task's configured base priority.
func (t *Task) StablePriority() Priority { return t.stable }

// State returns the task's current diagnostic linkage state.
func (t *Task) State() TaskState { return t.state }

func taskOrderBefore(cur, candidate *list.Link) bool {
	ct := cur.Owner.(*Task)
	nt := candidate.Owner.(*Task)
	return ct.priority <= nt.priority
}
