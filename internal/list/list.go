// Package list implements the intrusive linked list used throughout the
// kernel: every schedulable or primitive descriptor embeds a Link value
// directly (no boxing, no extra allocation per insertion) and is linked
// into at most one List at a time.
//
// The shape follows AT_RTOS's linker_list_transaction_common/specific
// (kernel/kernel.c): push at head or tail, predicate-driven sorted
// insertion with FIFO tie-breaking, and an iterator that tolerates
// removal of the node it is currently positioned on.
package list

// Direction selects which end of a list Push/Pop act on.
type Direction int

const (
	Head Direction = iota
	Tail
)

// Link is the intrusive node. Embed it in any descriptor that needs to
// live on a List. Owner holds the descriptor the Link is embedded in, set
// once by whoever constructs the descriptor — it lets list users recover
// the owning struct from a *Link the way AT_RTOS's CONTAINEROF does.
type Link struct {
	next, prev *Link
	list       *List
	Owner      any
}

// Linked reports whether the node is currently linked into some List.
func (n *Link) Linked() bool { return n != nil && n.list != nil }

// Owning returns the List n is currently linked into, or nil if it isn't
// linked anywhere. Lets a caller holding only a *Link (via Owner) unlink
// it without already knowing which wait queue or staging list it's on.
func (n *Link) Owning() *List { return n.list }

// List is a doubly-linked list of *Link nodes. The zero value is an empty
// list ready to use.
type List struct {
	head, tail *Link
	size       int
}

// Len returns the number of linked nodes.
func (l *List) Len() int { return l.size }

// Head returns the first node, or nil if the list is empty.
func (l *List) Head() *Link { return l.head }

// Tail returns the last node, or nil if the list is empty.
func (l *List) Tail() *Link { return l.tail }

// Push links n at the head or tail of the list. n must not already be
// linked anywhere.
func (l *List) Push(n *Link, dir Direction) {
	if dir == Head {
		l.pushFront(n)
	} else {
		l.pushBack(n)
	}
}

func (l *List) pushFront(n *Link) {
	n.list = l
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	} else {
		l.tail = n
	}
	l.head = n
	l.size++
}

func (l *List) pushBack(n *Link) {
	n.list = l
	n.next = nil
	n.prev = l.tail
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.size++
}

// InsertBefore links n immediately before mark, which must already be
// linked into l.
func (l *List) InsertBefore(n, mark *Link) {
	if mark == nil {
		l.pushBack(n)
		return
	}
	n.list = l
	n.prev = mark.prev
	n.next = mark
	if mark.prev != nil {
		mark.prev.next = n
	} else {
		l.head = n
	}
	mark.prev = n
	l.size++
}

// Delete unlinks n from whatever list it is on. It is a no-op if n is not
// currently linked. Safe to call on the node an active Iterator is
// positioned on.
func (l *List) Delete(n *Link) {
	if n == nil || n.list != l {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.next, n.prev, n.list = nil, nil, nil
	l.size--
}

// Pop removes and returns the node at the given end, or nil if empty.
func (l *List) Pop(dir Direction) *Link {
	var n *Link
	if dir == Head {
		n = l.head
	} else {
		n = l.tail
	}
	l.Delete(n)
	return n
}

// Before reports the ordering predicate used by SortedInsert: it returns
// true when cur must stay ahead of candidate (the scan keeps going), and
// false at the first cur that candidate belongs in front of. Equal keys
// must return true so that a newer node with the same key is placed
// after an older one (FIFO tie-break), per spec §4.A.
type Before func(cur, candidate *Link) bool

// SortedInsert walks from the head and inserts n before the first node
// for which before returns false, or at the tail if none does.
func (l *List) SortedInsert(n *Link, before Before) {
	for cur := l.head; cur != nil; cur = cur.next {
		if !before(cur, n) {
			l.InsertBefore(n, cur)
			return
		}
	}
	l.pushBack(n)
}

// Iterator walks a List front to back. Deleting the node Next() just
// returned (via List.Delete) does not disturb iteration: the next node
// is captured before Next() returns.
type Iterator struct {
	next *Link
}

// Iterator returns an iterator positioned before the first node.
func (l *List) Iterator() *Iterator {
	return &Iterator{next: l.head}
}

// Next returns the next node and true, or (nil, false) at the end.
func (it *Iterator) Next() (*Link, bool) {
	n := it.next
	if n == nil {
		return nil, false
	}
	it.next = n.next
	return n, true
}
