package kernel

import (
	"github.com/rtcore/kernel/internal/list"
)

// QueueID indexes the kernel's contiguous message-queue descriptor
// storage.
type QueueID int32

// queueWaiter carries the data a blocked sender hands off, or the
// buffer a blocked receiver will copy into, across the block/wake
// handshake (spec §3's "pending data pointer").
type queueWaiter struct {
	data []byte
}

// Queue is the descriptor of spec §3/§4.H: a bounded circular buffer of
// fixed-size elements with dual sender/receiver wait queues. Grounded on
// AT_RTOS's kernel/queue.c. elemSize and capacity are fixed at creation;
// the backing buffer is a plain Go slice rather than the caller-owned
// byte array AT_RTOS takes, since Go has no analog to its static
// allocator collaborator (spec §1 excludes it; SPEC_FULL.md's ambient
// stack owns storage allocation here instead).
type Queue struct {
	used     bool
	name     string
	elemSize int
	capacity int

	buf        []byte
	head, tail int
	count      int

	senders   list.List
	receivers list.List
}

// CreateQueue claims the first free slot (spec §6:
// "queue_create(buf, elem_size, capacity)"). Capacity 0 is rejected: the
// Open Question ("Queue send capacity-0 mode: ... behavior is
// ambiguous") is resolved by treating a zero-capacity queue as a
// configuration error rather than a rendezvous channel — see
// DESIGN.md.
func (k *Kernel) CreateQueue(name string, elemSize, capacity int) (QueueID, error) {
	if elemSize <= 0 || capacity <= 0 {
		return -1, ErrInvalidID
	}
	for i := range k.queues {
		if !k.queues[i].used {
			k.queues[i] = Queue{
				used: true, name: name,
				elemSize: elemSize, capacity: capacity,
				buf: make([]byte, elemSize*capacity),
			}
			return QueueID(i), nil
		}
	}
	return -1, ErrNoResource
}

func (k *Kernel) queue(id QueueID) (*Queue, Result) {
	if id < 0 || int(id) >= len(k.queues) || !k.queues[id].used {
		return nil, ErrInvalidID
	}
	return &k.queues[id], OK
}

func (q *Queue) slot(index int) []byte {
	off := index * q.elemSize
	return q.buf[off : off+q.elemSize]
}

// QueueSend implements spec §4.H's send: reject a mismatched element
// size; copy into the tail slot if not full, and if a receiver is
// blocked, hand it the head element and wake it; otherwise fail FULL on a
// zero timeout or block on the sender queue.
func (k *Kernel) QueueSend(id QueueID, data []byte, timeoutMs uint32) Result {
	return k.invokeAndSchedule(func() Result {
		q, res := k.queue(id)
		if res != OK {
			return res
		}
		if len(data) != q.elemSize {
			return ErrInvalidID
		}

		if q.count < q.capacity {
			copy(q.slot(q.tail), data)
			q.tail = (q.tail + 1) % q.capacity
			q.count++
			if head := q.receivers.Head(); head != nil {
				waiter := head.Owner.(*Task)
				w := waiter.pendData.(*queueWaiter)
				q.receivers.Delete(head)
				copy(w.data, q.slot(q.head))
				q.head = (q.head + 1) % q.capacity
				q.count--
				k.scheduleEntryTrigger(waiter, nil, OK)
			}
			return OK
		}

		if timeoutMs == 0 {
			return ErrFull
		}
		caller := k.currentTask()
		w := &queueWaiter{data: data}
		caller.pendData = w
		k.scheduleExitTrigger(caller, q, w, &q.senders, timeoutMs, false)
		return resultPending
	})
}

// QueueReceive implements spec §4.H's receive: copy from the head slot
// and wake a blocked sender if non-empty; otherwise fail EMPTY on a zero
// timeout or block on the receiver queue. On wake, a previously-blocked
// sender's data is copied in at the moment its slot is claimed.
func (k *Kernel) QueueReceive(id QueueID, buf []byte, timeoutMs uint32) Result {
	return k.invokeAndSchedule(func() Result {
		q, res := k.queue(id)
		if res != OK {
			return res
		}
		if len(buf) != q.elemSize {
			return ErrInvalidID
		}

		if q.count > 0 {
			copy(buf, q.slot(q.head))
			q.head = (q.head + 1) % q.capacity
			q.count--
			if head := q.senders.Head(); head != nil {
				waiter := head.Owner.(*Task)
				w := waiter.pendData.(*queueWaiter)
				q.senders.Delete(head)
				copy(q.slot(q.tail), w.data)
				q.tail = (q.tail + 1) % q.capacity
				q.count++
				k.scheduleEntryTrigger(waiter, nil, OK)
			}
			return OK
		}

		if timeoutMs == 0 {
			return ErrEmpty
		}
		caller := k.currentTask()
		w := &queueWaiter{data: buf}
		caller.pendData = w
		k.scheduleExitTrigger(caller, q, w, &q.receivers, timeoutMs, false)
		return resultPending
	})
}
