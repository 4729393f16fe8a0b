// Package timewheel implements the ordered-deadline component the
// scheduler uses to arm and fire waiter timeouts and software timers.
//
// Grounded on AT_RTOS's timeout_set/timeout_remove and the tick-driven
// firing loop in kernel/kernel.c (schedule_callback_fromTimeOut is called
// once per expired deadline, in expiry order, ties broken by insertion
// order — which is exactly internal/list's SortedInsert tie-break).
package timewheel

import "github.com/rtcore/kernel/internal/list"

// Forever means "do not arm a deadline".
const Forever uint32 = 0xFFFFFFFF

// Deadline is one pending expiry. Embed it in whatever owns a timeout
// (a task, in the scheduler's case, or a software timer).
type Deadline struct {
	link      list.Link
	expiresAt uint32
	owner     any
}

// Linked reports whether the deadline is currently armed.
func (d *Deadline) Linked() bool { return d.link.Linked() }

// Owner returns the value this deadline was armed for.
func (d *Deadline) Owner() any { return d.owner }

func before(cur, candidate *list.Link) bool {
	return cur.Owner.(*Deadline).expiresAt <= candidate.Owner.(*Deadline).expiresAt
}

// Wheel holds the ordered set of armed deadlines and the current
// monotonic clock, advanced externally by the tick source (out of scope
// per spec §6 — the Wheel only consumes nowMs, it never reads a clock
// itself).
type Wheel struct {
	pending list.List
	nowMs   uint32
}

// NewWheel returns an empty wheel at time 0.
func NewWheel() *Wheel {
	return &Wheel{}
}

// NowMs returns the last time observed via Tick.
func (w *Wheel) NowMs() uint32 { return w.nowMs }

// Set installs or re-installs d's deadline at nowMs+ms. ms == Forever
// means "do not link" (used by callers that want to cancel any existing
// arm without expiring it). If d is already armed it is first removed so
// re-arming preserves list ordering.
func (w *Wheel) Set(d *Deadline, owner any, nowMs, ms uint32) {
	if d.Linked() {
		w.pending.Delete(&d.link)
	}
	d.owner = owner
	if ms == Forever {
		return
	}
	d.expiresAt = nowMs + ms
	d.link.Owner = d
	w.pending.SortedInsert(&d.link, before)
}

// Remove unlinks d. cancelExpired is accepted for symmetry with AT_RTOS's
// timeout_remove(node, cancel_expired) signature; this wheel has no
// separate "expired but not yet drained" state, so it is a plain unlink.
func (w *Wheel) Remove(d *Deadline, cancelExpired bool) {
	_ = cancelExpired
	w.pending.Delete(&d.link)
}

// Fire is invoked once per deadline that has expired by Tick, in expiry
// order (ties in insertion order). The deadline is already unlinked by
// the time Fire runs, so a callback that re-arms the same deadline (e.g.
// an auto-reload timer) behaves correctly and re-entrant firing from
// inside a callback cannot observe a half-removed node.
type Fire func(owner any)

// Tick advances the wheel's clock to nowMs and fires every deadline with
// expiresAt <= nowMs, in expiry order. Firing removes each node before
// invoking fire, matching AT_RTOS's "firing removes the node before
// invoking the callback" reentrancy guarantee (spec §4.B).
func (w *Wheel) Tick(nowMs uint32, fire Fire) {
	w.nowMs = nowMs
	for {
		head := w.pending.Head()
		if head == nil {
			return
		}
		d := head.Owner.(*Deadline)
		if d.expiresAt > nowMs {
			return
		}
		w.pending.Delete(head)
		fire(d.owner)
	}
}
