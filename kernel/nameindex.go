package kernel

import "github.com/cespare/xxhash/v2"

// nameIndex is an O(1) debug name→task-id index built on top of the
// linear-scan allocation spec §3 mandates. It exists purely for
// diagnostics and tracing (e.g. a demo binary looking up a task by name
// to print its analytics); the allocation path (createTask in kernel.go)
// only records names in it and never consults it, matching SPEC_FULL.md §11's note that xxhash is "used
// only by diagnostics/tracing, never by the allocation path itself."
type nameIndex struct {
	byHash map[uint64]TaskID
}

func newNameIndex() *nameIndex {
	return &nameIndex{byHash: make(map[uint64]TaskID)}
}

func hashName(name string) uint64 {
	return xxhash.Sum64String(name)
}

func (n *nameIndex) put(name string, id TaskID) {
	n.byHash[hashName(name)] = id
}

func (n *nameIndex) remove(id TaskID) {
	for h, v := range n.byHash {
		if v == id {
			delete(n.byHash, h)
			return
		}
	}
}

func (n *nameIndex) lookup(name string) (TaskID, bool) {
	id, ok := n.byHash[hashName(name)]
	return id, ok
}

// LookupTaskByName is the public diagnostic entry point backed by
// nameIndex.
func (k *Kernel) LookupTaskByName(name string) (*Task, bool) {
	if k.nameIndex == nil {
		return nil, false
	}
	id, ok := k.nameIndex.lookup(name)
	if !ok {
		return nil, false
	}
	return &k.tasks[id], true
}
