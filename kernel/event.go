package kernel

import (
	"github.com/rtcore/kernel/internal/list"
)

// EventID indexes the kernel's contiguous event-flags descriptor
// storage.
type EventID int32

// eventWaiter is the per-waiter record of spec §3: {listen_mask,
// out_value, out_trigger}.
type eventWaiter struct {
	listenMask uint32
	outValue   uint32
	outTrigger uint32
}

// Event is the descriptor of spec §3/§4.G: a 32-bit signal word with
// per-bit edge/level/any triggering. Grounded on AT_RTOS's
// kernel/event.c.
type Event struct {
	used bool
	name string

	value     uint32
	triggered uint32

	anyMask  uint32
	modeMask uint32
	dirMask  uint32

	waiters list.List
}

// CreateEvent claims the first free slot, configured per spec §4.G's
// per-bit discipline (spec §6: "event_create(any_mask, mode_mask,
// dir_mask, init)").
func (k *Kernel) CreateEvent(name string, anyMask, modeMask, dirMask, initial uint32) (EventID, error) {
	for i := range k.events {
		if !k.events[i].used {
			k.events[i] = Event{
				used: true, name: name,
				value: initial, anyMask: anyMask, modeMask: modeMask, dirMask: dirMask,
			}
			return EventID(i), nil
		}
	}
	return -1, ErrNoResource
}

func (k *Kernel) event(id EventID) (*Event, Result) {
	if id < 0 || int(id) >= len(k.events) || !k.events[id].used {
		return nil, ErrInvalidID
	}
	return &k.events[id], OK
}

// computeTrigger implements spec §4.G's bit algebra, applied identically
// on the set and wait paths:
//
//	edgeMask  = modeMask &^ anyMask
//	levelMask = ^modeMask &^ anyMask
//	trigger = (anyMask & changed) |
//	          (edgeMask & newValue & dirMask & changed) |
//	          (edgeMask &^ newValue &^ dirMask & changed) |
//	          (levelMask & newValue & dirMask & changed) |
//	          (levelMask &^ newValue &^ dirMask & changed)
func computeTrigger(e *Event, newValue, changed uint32) uint32 {
	edgeMask := e.modeMask &^ e.anyMask
	levelMask := ^e.modeMask &^ e.anyMask
	return (e.anyMask & changed) |
		(edgeMask & newValue & e.dirMask & changed) |
		(edgeMask &^ newValue &^ e.dirMask & changed) |
		(levelMask & newValue & e.dirMask & changed) |
		(levelMask &^ newValue &^ e.dirMask & changed)
}

// EventSet implements spec §4.G's set: compute the new value and the
// trigger bits, OR in whatever was already latched in triggered, wake
// every waiter whose listen mask intersects the result (each observing
// the full trigger word, not just its own reported bits — AT_RTOS's
// `_event_set_privilege_routine` writes `pEvtData->trigger = trigger`
// unmasked), and latch the remaining unreported bits back into
// triggered. Callable from interrupt context (spec §5, resolving the
// Open Question in favor of allowing it — see DESIGN.md).
func (k *Kernel) EventSet(id EventID, setBits, clearBits, toggleBits uint32) Result {
	return k.invokeAndSchedule(func() Result {
		e, res := k.event(id)
		if res != OK {
			return res
		}

		newValue := (e.value &^ clearBits) | setBits ^ toggleBits
		changed := newValue ^ e.value
		trigger := computeTrigger(e, newValue, changed) | e.triggered

		var reported uint32
		it := e.waiters.Iterator()
		for n, ok := it.Next(); ok; n, ok = it.Next() {
			waiter := n.Owner.(*Task)
			w := waiter.pendData.(*eventWaiter)
			report := trigger & w.listenMask
			if report == 0 {
				continue
			}
			w.outValue = newValue
			w.outTrigger = trigger
			reported |= report
			e.waiters.Delete(n)
			k.scheduleEntryTrigger(waiter, nil, OK)
		}
		// Invariant 6: only edge/any bits may persist in triggered — level
		// bits reflect the live value and are recomputed by every wait(),
		// never latched.
		e.triggered = (trigger &^ reported) & (e.anyMask | e.modeMask)
		e.value = newValue
		return OK
	})
}

// EventWait implements spec §4.G's wait: recompute the trigger against
// the live value (so level bits reflect the current state, not a stale
// latch) plus the accumulated triggered edges; return immediately if
// listenMask intersects, else block. Thread-context only: returns
// ErrWrongContext from interrupt context. Grounded on
// `_event_wait_privilege_routine` (original_source/kernel/event.c):
// `changed = pEvtData->value ^ pCurEvent->value`, where the waiter's own
// last-known value starts at the zero baseline, so `changed` reduces to
// `value` itself on the immediate-check path — computeTrigger(e, e.value,
// e.value) reproduces exactly that.
func (k *Kernel) EventWait(id EventID, listenMask, timeoutMs uint32) (value, trigger uint32, res Result) {
	if !k.port.InThreadMode() {
		return 0, 0, ErrWrongContext
	}
	var w eventWaiter
	result := k.invokeAndSchedule(func() Result {
		e, r := k.event(id)
		if r != OK {
			return r
		}

		trigger := computeTrigger(e, e.value, e.value) | e.triggered
		report := trigger & listenMask
		if report != 0 {
			w.outValue = e.value
			w.outTrigger = trigger
			e.triggered &^= report
			return OK
		}

		if timeoutMs == 0 {
			return ErrNoResource
		}

		w.listenMask = listenMask
		caller := k.currentTask()
		caller.pendData = &w
		k.scheduleExitTrigger(caller, e, &w, &e.waiters, timeoutMs, false)
		return resultPending
	})
	return w.outValue, w.outTrigger, result
}

// EventRead implements spec §6's event_read(out): a non-blocking
// snapshot of the live value.
func (k *Kernel) EventRead(id EventID) (uint32, Result) {
	var value uint32
	res := k.invokeAndSchedule(func() Result {
		e, r := k.event(id)
		if r != OK {
			return r
		}
		value = e.value
		return OK
	})
	return value, res
}
