package kernel

import (
	"github.com/rtcore/kernel/internal/list"
	"github.com/rtcore/kernel/internal/timewheel"
)

// MutexID indexes the kernel's contiguous mutex descriptor storage.
type MutexID int32

// Mutex is the descriptor of spec §3/§4.E: mutual exclusion with
// one-level priority inheritance. Grounded on AT_RTOS's kernel/mutex.c.
type Mutex struct {
	used   bool
	name   string
	locked bool
	holder TaskID

	// holderStablePriority is the holder's priority before any
	// inheritance boost, restored on unlock.
	holderStablePriority Priority

	waiters list.List
}

// CreateMutex claims the first free mutex slot (spec §3: "creation is a
// linear scan that claims the first slot whose init marker is clear").
func (k *Kernel) CreateMutex(name string) (MutexID, error) {
	for i := range k.mutexes {
		if !k.mutexes[i].used {
			k.mutexes[i] = Mutex{used: true, name: name, holder: -1}
			return MutexID(i), nil
		}
	}
	return -1, ErrNoResource
}

func (k *Kernel) mutex(id MutexID) (*Mutex, Result) {
	if id < 0 || int(id) >= len(k.mutexes) || !k.mutexes[id].used {
		return nil, ErrInvalidID
	}
	return &k.mutexes[id], OK
}

// MutexLock implements spec §4.E's lock: immediate grant if unlocked;
// otherwise a one-level inheritance boost of the holder followed by an
// unconditional (forever) block. Thread-context only.
func (k *Kernel) MutexLock(id MutexID) Result {
	if !k.port.InThreadMode() {
		return ErrWrongContext
	}
	return k.invokeAndSchedule(func() Result {
		m, res := k.mutex(id)
		if res != OK {
			return res
		}
		caller := k.currentTask()

		if !m.locked {
			m.locked = true
			m.holder = caller.id
			m.holderStablePriority = caller.stable
			return OK
		}

		holder := &k.tasks[m.holder]
		if caller.priority < holder.priority {
			holder.priority = caller.priority
			// The holder may currently be sitting in ready rather than
			// running (preempted by something that doesn't want this
			// mutex) — exactly the scenario priority inheritance exists
			// to fix. Its position there was sorted under the old,
			// lower priority, so it must be re-sorted under the new one
			// or the boost never actually changes scheduling order.
			if holder.link.Linked() {
				owning := holder.link.Owning()
				owning.Delete(&holder.link)
				owning.SortedInsert(&holder.link, taskOrderBefore)
				if owning == &k.sched.ready {
					k.sched.activePriorities.Add(holder.priority)
				}
			}
		}

		k.scheduleExitTrigger(caller, m, nil, &m.waiters, timewheel.Forever, false)
		return resultPending
	})
}

// MutexUnlock implements spec §4.E's unlock: restore the holder's
// stable priority, then either release the mutex or hand it directly to
// the head waiter. Deliberately does not verify the caller is the
// holder — spec §4.E/Open Questions: "the source permits it; treat as a
// specification gap and decide per product policy." We preserve the
// permissive AT_RTOS behavior rather than tighten it.
func (k *Kernel) MutexUnlock(id MutexID) Result {
	if !k.port.InThreadMode() {
		return ErrWrongContext
	}
	return k.invokeAndSchedule(func() Result {
		m, res := k.mutex(id)
		if res != OK {
			return res
		}
		if !m.locked {
			return internalResult(k, "mutex", m.name, "unlock of an already-unlocked mutex")
		}

		holder := &k.tasks[m.holder]
		holder.priority = m.holderStablePriority

		head := m.waiters.Head()
		if head == nil {
			m.locked = false
			m.holder = -1
			return OK
		}

		next := head.Owner.(*Task)
		m.waiters.Delete(head)
		m.holder = next.id
		m.holderStablePriority = next.stable

		k.scheduleEntryTrigger(next, nil, OK)
		return OK
	})
}

// internalResult logs an INTERNAL_ERROR condition (spec §7) and returns
// ErrInternal. Kept here rather than duplicated per primitive file.
func internalResult(k *Kernel, component, name, detail string) Result {
	logInternalError(k.logger, component, name, internalErrorf("%s", detail))
	return ErrInternal
}
