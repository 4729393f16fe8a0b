package kernel

import (
	"github.com/rtcore/kernel/internal/timewheel"
)

// TimerID indexes the kernel's contiguous software-timer descriptor
// storage. Software timers are a feature supplemented from
// original_source/at_rtos.h (timer_init/timer_start/timer_stop/
// timer_isBusy) that spec.md's distillation dropped — see
// SPEC_FULL.md §12.
type TimerID int32

// Timer is a one-shot or auto-reload callback armed on the same time
// wheel as task deadlines, but owned by its own descriptor rather than a
// task.
type Timer struct {
	used      bool
	name      string
	deadline  timewheel.Deadline
	periodMs  uint32
	autoReload bool
	busy      bool
	callback  func()
}

// CreateTimer claims the first free timer slot.
func (k *Kernel) CreateTimer(name string, callback func()) (TimerID, error) {
	for i := range k.timers {
		if !k.timers[i].used {
			k.timers[i] = Timer{used: true, name: name, callback: callback}
			return TimerID(i), nil
		}
	}
	return -1, ErrNoResource
}

func (k *Kernel) timer(id TimerID) (*Timer, Result) {
	if id < 0 || int(id) >= len(k.timers) || !k.timers[id].used {
		return nil, ErrInvalidID
	}
	return &k.timers[id], OK
}

// TimerStart arms the timer for periodMs, reusing internal/timewheel
// exactly as task deadlines do. autoReload re-arms the same period each
// time the callback fires; otherwise the timer goes idle after firing
// once.
func (k *Kernel) TimerStart(id TimerID, periodMs uint32, autoReload bool) Result {
	return k.invokeAndSchedule(func() Result {
		t, res := k.timer(id)
		if res != OK {
			return res
		}
		t.periodMs = periodMs
		t.autoReload = autoReload
		t.busy = true
		k.sched.wheel.Set(&t.deadline, t, k.port.NowMs(), periodMs)
		return OK
	})
}

// TimerStop disarms the timer; TimerIsBusy reports whether it is
// currently armed.
func (k *Kernel) TimerStop(id TimerID) Result {
	return k.invokeAndSchedule(func() Result {
		t, res := k.timer(id)
		if res != OK {
			return res
		}
		k.sched.wheel.Remove(&t.deadline, false)
		t.busy = false
		return OK
	})
}

func (k *Kernel) TimerIsBusy(id TimerID) (bool, Result) {
	var busy bool
	res := k.invokeAndSchedule(func() Result {
		t, r := k.timer(id)
		if r != OK {
			return r
		}
		busy = t.busy
		return OK
	})
	return busy, res
}

// fireTimer is the time wheel's Fire callback for a Timer owner (see
// dispatchFire in kernel.go). It runs the user callback and, for
// auto-reload timers, immediately re-arms for another period — matching
// AT_RTOS's timer reload happening inline in the tick handler rather
// than being deferred to a task context.
func (k *Kernel) fireTimer(t *Timer) {
	if t.callback != nil {
		t.callback()
	}
	if t.autoReload {
		k.sched.wheel.Set(&t.deadline, t, k.port.NowMs(), t.periodMs)
		return
	}
	t.busy = false
}
