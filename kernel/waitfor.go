package kernel

// WaitForEdge is one snapshot relationship for deadlock diagnosis
// (kernel/diag): task Waiter is blocked on Mutex, which is currently
// held by Holder. This is diagnostic-only state, never consulted by the
// scheduling/synchronization logic itself.
type WaitForEdge struct {
	Mutex  MutexID
	Holder TaskID
	Waiter TaskID
}

// WaitForEdges snapshots every locked mutex's holder/waiter
// relationships under the privilege gate's critical section, without
// servicing a pend-switch afterward (this is a read-only diagnostic, not
// an operation that can block or wake anything).
func (k *Kernel) WaitForEdges() []WaitForEdge {
	var edges []WaitForEdge
	k.privilegeInvoke(func() Result {
		for i := range k.mutexes {
			m := &k.mutexes[i]
			if !m.used || !m.locked {
				continue
			}
			it := m.waiters.Iterator()
			for n, ok := it.Next(); ok; n, ok = it.Next() {
				waiter := n.Owner.(*Task)
				edges = append(edges, WaitForEdge{Mutex: MutexID(i), Holder: m.holder, Waiter: waiter.id})
			}
		}
		return OK
	})
	return edges
}
