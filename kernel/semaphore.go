package kernel

import (
	"github.com/rtcore/kernel/internal/list"
)

// SemaphoreID indexes the kernel's contiguous semaphore descriptor
// storage.
type SemaphoreID int32

// Semaphore is the descriptor of spec §3/§4.F: a counting semaphore with
// bounded capacity. Grounded on AT_RTOS's kernel/semaphore.c (take/give/
// flush shape mirrors mutex.c's wait-queue handling).
type Semaphore struct {
	used      bool
	name      string
	available uint8
	limit     uint8
	waiters   list.List
}

// CreateSemaphore claims the first free slot, initialized at available
// permits out of limit (spec §6: "semaphore_create(available, limit)").
func (k *Kernel) CreateSemaphore(name string, available, limit uint8) (SemaphoreID, error) {
	if available > limit {
		return -1, ErrInvalidID
	}
	for i := range k.semaphores {
		if !k.semaphores[i].used {
			k.semaphores[i] = Semaphore{used: true, name: name, available: available, limit: limit}
			return SemaphoreID(i), nil
		}
	}
	return -1, ErrNoResource
}

func (k *Kernel) semaphore(id SemaphoreID) (*Semaphore, Result) {
	if id < 0 || int(id) >= len(k.semaphores) || !k.semaphores[id].used {
		return nil, ErrInvalidID
	}
	return &k.semaphores[id], OK
}

// SemaphoreTake implements spec §4.F's take: immediate grant if permits
// are available; otherwise block with the caller's timeout, or fail
// NO_RESOURCE on a zero (poll) timeout. Thread-context only.
func (k *Kernel) SemaphoreTake(id SemaphoreID, timeoutMs uint32) Result {
	if !k.port.InThreadMode() {
		return ErrWrongContext
	}
	return k.invokeAndSchedule(func() Result {
		s, res := k.semaphore(id)
		if res != OK {
			return res
		}
		if s.available > 0 {
			s.available--
			return OK
		}
		if timeoutMs == 0 {
			return ErrNoResource
		}
		caller := k.currentTask()
		k.scheduleExitTrigger(caller, s, nil, &s.waiters, timeoutMs, false)
		return resultPending
	})
}

// SemaphoreGive implements spec §4.F's give: wake the head waiter if any;
// otherwise increment available, or fail FULL at the limit. Callable
// from interrupt context (spec §5).
func (k *Kernel) SemaphoreGive(id SemaphoreID) Result {
	return k.invokeAndSchedule(func() Result {
		s, res := k.semaphore(id)
		if res != OK {
			return res
		}
		if head := s.waiters.Head(); head != nil {
			waiter := head.Owner.(*Task)
			s.waiters.Delete(head)
			k.scheduleEntryTrigger(waiter, nil, OK)
			return OK
		}
		if s.available >= s.limit {
			return ErrFull
		}
		s.available++
		return OK
	})
}

// SemaphoreFlush implements spec §4.F's flush: wake every waiter with
// FLUSHED and empty the queue; available is left unchanged.
func (k *Kernel) SemaphoreFlush(id SemaphoreID) Result {
	return k.invokeAndSchedule(func() Result {
		s, res := k.semaphore(id)
		if res != OK {
			return res
		}
		it := s.waiters.Iterator()
		for n, ok := it.Next(); ok; n, ok = it.Next() {
			waiter := n.Owner.(*Task)
			s.waiters.Delete(n)
			k.scheduleEntryTrigger(waiter, nil, ErrFlushed)
		}
		return OK
	})
}
