// Package soltable implements the two solution-table layouts a bag's
// table can take (spec §3, §4.1): a dense Array indexed directly by
// assignment id, and a sparse Tree (bit-trie) that only materialises
// assignments with a positive count.
package soltable

import (
	"math"
	"sync/atomic"

	"github.com/satcount/gpusatgo/internal/solverr"
)

// Table is the contract both layouts satisfy. Worker lanes within one
// kernel launch call Get/Set/Update concurrently; the layout is
// responsible for whatever synchronisation its own invariants require
// (§5).
type Table interface {
	// Width is the number of bag variables this table is indexed over.
	Width() int
	// StartID is the assignment-id offset of this fragment (chunking).
	StartID() uint64
	// Get returns the count for id and whether it has ever been
	// written (false means "no such assignment", count 0).
	Get(id uint64) (float64, bool)
	// Set writes v at id. Used when exactly one lane owns id for the
	// whole launch (join).
	Set(id uint64, v float64) error
	// Update atomically replaces the value at id with fn(old, found),
	// retrying on a lost compare-and-swap. Used by the introduce-forget
	// kernel, which folds each contribution into the value already
	// stored at id (§4.1).
	Update(id uint64, fn func(old float64, found bool) float64) error
}

// ============================================================================
// Array layout
// ============================================================================

// Array is the dense layout: one IEEE-754 double per assignment,
// bit-reinterpreted as a uint64 so it can be updated with atomic
// operations. Entry at local index id-startID holds the count for id.
type Array struct {
	start uint64
	width int
	words []atomic.Uint64
}

// NewArray allocates an Array table of size 2^width (or a chunk of that
// size when start/size describe a fragment).
func NewArray(start uint64, size uint64, width int) *Array {
	return &Array{
		start: start,
		width: width,
		words: make([]atomic.Uint64, size),
	}
}

// NewArrayFilled allocates an Array table like NewArray but with every
// slot pre-set to fill. The join kernel uses this to pre-fill a fresh
// table with an "uninitialised" sentinel distinct from a real zero
// count (§4.4).
func NewArrayFilled(start uint64, size uint64, width int, fill float64) *Array {
	a := NewArray(start, size, width)
	bits := math.Float64bits(fill)
	for i := range a.words {
		a.words[i].Store(bits)
	}
	return a
}

// Width implements Table.
func (a *Array) Width() int { return a.width }

// StartID implements Table.
func (a *Array) StartID() uint64 { return a.start }

func (a *Array) localIndex(id uint64) (int, bool) {
	if id < a.start {
		return 0, false
	}
	idx := id - a.start
	if idx >= uint64(len(a.words)) {
		return 0, false
	}
	return int(idx), true
}

// Get implements Table. An Array entry is always "found" once the id is
// in range: a never-written slot reads back as count 0, which is
// indistinguishable from an explicit zero write and is treated the same
// way by every kernel that consumes it.
func (a *Array) Get(id uint64) (float64, bool) {
	idx, ok := a.localIndex(id)
	if !ok {
		return 0, false
	}
	return math.Float64frombits(a.words[idx].Load()), true
}

// Set implements Table.
func (a *Array) Set(id uint64, v float64) error {
	idx, ok := a.localIndex(id)
	if !ok {
		return solverr.Newf(solverr.CodeDeviceFault, "array table: id %d outside [%d,%d)", id, a.start, a.start+uint64(len(a.words)))
	}
	a.words[idx].Store(math.Float64bits(v))
	return nil
}

// Update implements Table with a compare-and-swap retry loop, giving the
// introduce-forget kernel (§4.3) the read-modify-write semantics it needs.
func (a *Array) Update(id uint64, fn func(old float64, found bool) float64) error {
	idx, ok := a.localIndex(id)
	if !ok {
		return solverr.Newf(solverr.CodeDeviceFault, "array table: id %d outside range", id)
	}
	word := &a.words[idx]
	for {
		old := word.Load()
		newV := fn(math.Float64frombits(old), true)
		newBits := math.Float64bits(newV)
		if word.CompareAndSwap(old, newBits) {
			return nil
		}
	}
}

// Raw exposes the underlying bit-packed words without a copy. The driver
// does not call it; parents read a child's table through Get.
func (a *Array) Raw() []atomic.Uint64 { return a.words }

// ============================================================================
// Tree (bit-trie) layout
// ============================================================================

// noChild marks an unallocated child slot.
const noChild uint32 = 0

// Tree is the sparse layout: a flat vector of 64-bit words forming a
// bit-trie over the assignment's binary expansion. Word 0 is always the
// root. Internal words pack two 32-bit child indices (low half = bit-0
// child, high half = bit-1 child); the word reached after Width() bit
// decisions holds a float64 bit pattern instead.
//
// Nodes are allocated bump-style from treeSize so that concurrent
// SetCount calls building disjoint paths never contend on anything but
// the shared counter and the one parent word they're attaching to (§4.1).
type Tree struct {
	start    uint64
	width    int
	words    []atomic.Uint64
	treeSize atomic.Int64
}

// NewTree allocates a Tree table with room for capacity nodes (including
// the root). SetCount returns a capacity-exhaustion error once treeSize
// would exceed this. The driver sizes each fragment up front with
// treeCapacity and does not re-launch on this error: the kernel wraps
// it as a device fault and the solve returns it to the caller.
func NewTree(start uint64, width int, capacity int) *Tree {
	t := &Tree{start: start, width: width, words: make([]atomic.Uint64, capacity)}
	t.treeSize.Store(1) // root is node 0, always allocated
	return t
}

// Width implements Table.
func (t *Tree) Width() int { return t.width }

// StartID implements Table.
func (t *Tree) StartID() uint64 { return t.start }

// TreeSize returns the number of allocated nodes.
func (t *Tree) TreeSize() int64 { return t.treeSize.Load() }

// Capacity returns the preallocated node count.
func (t *Tree) Capacity() int { return len(t.words) }

func splitChild(raw uint64, bit uint64) uint32 {
	if bit == 0 {
		return uint32(raw)
	}
	return uint32(raw >> 32)
}

func packChild(raw uint64, bit uint64, child uint32) uint64 {
	if bit == 0 {
		return (raw &^ 0xFFFFFFFF) | uint64(child)
	}
	return (raw &^ (uint64(0xFFFFFFFF) << 32)) | (uint64(child) << 32)
}

// Get implements Table via getCount (§4.1).
func (t *Tree) Get(id uint64) (float64, bool) {
	return t.GetCount(id)
}

// GetCount walks the trie from the root, selecting the child for each
// bit of id from most to least significant. Any unallocated child along
// the way means "no such assignment" -> count 0.
func (t *Tree) GetCount(id uint64) (float64, bool) {
	node := uint32(0)
	for i := 0; i < t.width; i++ {
		bit := (id >> uint(t.width-i-1)) & 1
		raw := t.words[node].Load()
		child := splitChild(raw, bit)
		if child == noChild {
			return 0, false
		}
		node = child
	}
	v := t.words[node].Load()
	return math.Float64frombits(v), true
}

// Set implements Table via setCount.
func (t *Tree) Set(id uint64, v float64) error {
	return t.SetCount(id, v)
}

// SetCount walks the trie, allocating missing children with an atomic
// CAS on the parent word's half, then writes v at the leaf reached after
// Width() steps. Concurrent SetCount calls targeting the *same* leaf
// must be serialised by the caller; the introduce-forget and
// tree-combine kernels are structured to hit each leaf exactly once, so
// this only needs to handle concurrent calls building *disjoint* paths
// that happen to share an ancestor (§4.1).
func (t *Tree) SetCount(id uint64, v float64) error {
	node := uint32(0)
	for i := 0; i < t.width; i++ {
		bit := (id >> uint(t.width-i-1)) & 1
		child, err := t.ensureChild(node, bit)
		if err != nil {
			return err
		}
		node = child
	}
	t.words[node].Store(math.Float64bits(v))
	return nil
}

// Update implements Table; the tree layout does not need CAS-based
// read-modify-write since only introduce-forget and tree-combine write
// to it and each hits a given leaf once, so Update degenerates to
// "fetch, then overwrite" without retrying.
func (t *Tree) Update(id uint64, fn func(old float64, found bool) float64) error {
	old, found := t.GetCount(id)
	return t.SetCount(id, fn(old, found))
}

func (t *Tree) ensureChild(parent uint32, bit uint64) (uint32, error) {
	for {
		raw := t.words[parent].Load()
		child := splitChild(raw, bit)
		if child != noChild {
			return child, nil
		}
		idx, err := t.allocate()
		if err != nil {
			return 0, err
		}
		newRaw := packChild(raw, bit, idx)
		if t.words[parent].CompareAndSwap(raw, newRaw) {
			return idx, nil
		}
		// Lost the race (someone else attached a child, or wrote the
		// other half); re-read and retry. The node we speculatively
		// allocated is simply abandoned.
	}
}

func (t *Tree) allocate() (uint32, error) {
	idx := t.treeSize.Add(1) - 1
	if idx >= int64(len(t.words)) {
		return 0, solverr.Newf(solverr.CodeCapacityExhausted, "tree table: treeSize %d exceeds capacity %d", idx+1, len(t.words))
	}
	return uint32(idx), nil
}
