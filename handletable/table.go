// Package handletable implements the FIFO registry of live handles the
// eviction scheduler drains batches from. Adapted from SharedCode-sop's
// l1_cache doubly linked list (there used for MRU eviction, head-insert /
// tail-evict); generalized here to plain FIFO (tail-insert / head-evict) per
// SPEC_FULL.md §4.2.
package handletable

import (
	"sync"

	"github.com/overflowgraph/refgraph"
)

type node struct {
	handle *refgraph.Handle
	prev   *node
	next   *node
}

// Table is a thread-safe ordered collection of handles eligible for
// eviction, in FIFO insertion order. The zero value is not usable; use New.
type Table struct {
	mu   sync.Mutex
	head *node
	tail *node
	size int
	// index lets Register de-duplicate: a handle already in the table is not
	// inserted a second time, matching the "registered exactly once per
	// materialization" invariant even if a caller re-registers defensively.
	index map[*refgraph.Handle]*node
}

// New returns an empty Table.
func New() *Table {
	return &Table{
		index: make(map[*refgraph.Handle]*node),
	}
}

// Register appends h to the tail of the table. If h is already registered
// this is a no-op (see Table's index field doc).
func (t *Table) Register(h *refgraph.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[h]; ok {
		return
	}
	n := &node{handle: h, prev: t.tail}
	if t.tail != nil {
		t.tail.next = n
	} else {
		t.head = n
	}
	t.tail = n
	t.index[h] = n
	t.size++
}

// DrainUpTo removes up to n handles from the head of the table, in
// insertion order, and returns them. Returns fewer than n (possibly zero)
// if the table holds fewer than n handles.
func (t *Table) DrainUpTo(n int) []*refgraph.Handle {
	if n <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	cap := n
	if t.size < cap {
		cap = t.size
	}
	out := make([]*refgraph.Handle, 0, cap)
	for len(out) < n && t.head != nil {
		cur := t.head
		t.head = cur.next
		if t.head != nil {
			t.head.prev = nil
		} else {
			t.tail = nil
		}
		cur.next = nil
		delete(t.index, cur.handle)
		t.size--
		out = append(out, cur.handle)
	}
	return out
}

// Size returns the number of registered handles.
func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

// IsEmpty reports whether the table holds no handles.
func (t *Table) IsEmpty() bool {
	return t.Size() == 0
}
