package list

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type item struct {
	link     Link
	priority int
}

func byPriority(cur, candidate *Link) bool {
	return cur.Owner.(*item).priority <= candidate.Owner.(*item).priority
}

func TestPushHeadTail(t *testing.T) {
	var l List
	a, b, c := &item{priority: 1}, &item{priority: 2}, &item{priority: 3}
	a.link.Owner, b.link.Owner, c.link.Owner = a, b, c

	l.Push(&a.link, Tail)
	l.Push(&b.link, Tail)
	l.Push(&c.link, Head)

	require.Equal(t, 3, l.Len())
	require.Equal(t, c, l.Head().Owner)
	require.Equal(t, b, l.Tail().Owner)
}

func TestSortedInsertFIFOTieBreak(t *testing.T) {
	var l List
	first := &item{priority: 5}
	second := &item{priority: 5}
	higher := &item{priority: 1}
	first.link.Owner, second.link.Owner, higher.link.Owner = first, second, higher

	l.SortedInsert(&first.link, byPriority)
	l.SortedInsert(&second.link, byPriority)
	l.SortedInsert(&higher.link, byPriority)

	var order []*item
	it := l.Iterator()
	for n, ok := it.Next(); ok; n, ok = it.Next() {
		order = append(order, n.Owner.(*item))
	}
	require.Equal(t, []*item{higher, first, second}, order)
}

func TestDeleteDuringIteration(t *testing.T) {
	var l List
	a, b, c := &item{priority: 1}, &item{priority: 2}, &item{priority: 3}
	a.link.Owner, b.link.Owner, c.link.Owner = a, b, c
	l.Push(&a.link, Tail)
	l.Push(&b.link, Tail)
	l.Push(&c.link, Tail)

	var visited []*item
	it := l.Iterator()
	for n, ok := it.Next(); ok; n, ok = it.Next() {
		cur := n.Owner.(*item)
		visited = append(visited, cur)
		if cur == a {
			l.Delete(n)
		}
	}

	require.Equal(t, []*item{a, b, c}, visited)
	require.Equal(t, 2, l.Len())
	require.False(t, a.link.Linked())
}

func TestPopEmpty(t *testing.T) {
	var l List
	require.Nil(t, l.Pop(Head))
	require.Nil(t, l.Pop(Tail))
}

func TestDeleteNotLinkedIsNoop(t *testing.T) {
	var l1, l2 List
	a := &item{priority: 1}
	a.link.Owner = a
	l1.Push(&a.link, Tail)

	l2.Delete(&a.link)
	require.Equal(t, 1, l1.Len())
	require.True(t, a.link.Linked())
}
