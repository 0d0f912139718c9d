// Package treedec models the rooted tree decomposition the engine walks:
// bags, their variable orderings, and the four node kinds.
package treedec

import (
	"sort"

	"github.com/satcount/gpusatgo/pkg/collections"
)

// Kind identifies the role a Bag plays in the dynamic program.
type Kind int

const (
	// KindLeaf is a bag with no children; its I/F kernel runs with a
	// null child table.
	KindLeaf Kind = iota
	// KindIntroduce adds variables relative to its single child.
	KindIntroduce
	// KindForget removes variables relative to its single child.
	KindForget
	// KindJoin combines two children that share this bag's variables.
	KindJoin
	// KindIntroduceForget is the compiled form of an introduce
	// immediately followed by a forget at one node (§4.6).
	KindIntroduceForget
)

// String returns the lower-case name of the bag kind.
func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindIntroduce:
		return "introduce"
	case KindForget:
		return "forget"
	case KindJoin:
		return "join"
	case KindIntroduceForget:
		return "introduce-forget"
	default:
		return "unknown"
	}
}

// Bag is one node of the tree decomposition. Vars is kept sorted
// ascending; Vars[a] is held by bit Width()-a-1 of an assignment id, so
// Vars[0] is the most significant bit, not the least.
type Bag struct {
	ID       int
	Kind     Kind
	Vars     []int
	Children []int // indices into Decomposition.Bags; 0, 1 or 2 entries

	// StartID is the assignment-id offset of this bag's table when the
	// bag's space has been split into chunks (§4.6). 0 for unchunked
	// bags.
	StartID uint64

	// MaxTableSize caps 2^len(Vars) before the driver is forced to
	// chunk; 0 means "use the config-wide default".
	MaxTableSize uint64
}

// NewBag creates a Bag with its variable list sorted, matching the
// invariant that Vars is always ascending (§3).
func NewBag(id int, kind Kind, vars []int, children ...int) *Bag {
	v := append([]int(nil), vars...)
	sort.Ints(v)
	return &Bag{ID: id, Kind: kind, Vars: v, Children: children}
}

// Width returns the number of bag variables, i.e. log2 of the
// assignment-id space.
func (b *Bag) Width() int {
	return len(b.Vars)
}

// NumAssignments returns 2^Width(), the size of the full (unchunked)
// assignment-id space for this bag.
func (b *Bag) NumAssignments() uint64 {
	return uint64(1) << uint(b.Width())
}

// IndexOf returns the index of variable v in Vars (its bit in an
// assignment id is Width()-index-1, see Bit), or -1 if v is not a bag
// variable. Vars is sorted, so this is a binary search.
func (b *Bag) IndexOf(v int) int {
	lo, hi := 0, len(b.Vars)
	for lo < hi {
		mid := (lo + hi) / 2
		if b.Vars[mid] < v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(b.Vars) && b.Vars[lo] == v {
		return lo
	}
	return -1
}

// Bit extracts the truth value of variable v from assignment id,
// relative to this bag's ordering. Returns false if v is not a bag
// variable.
func (b *Bag) Bit(id uint64, v int) bool {
	idx := b.IndexOf(v)
	if idx < 0 {
		return false
	}
	return (id>>uint(b.Width()-idx-1))&1 == 1
}

// Decomposition is the full rooted tree: a flat arena of bags indexed by
// ID, plus the root's index. An arena+index layout avoids pointer-chasing
// during the post-order walk and keeps the structure acyclic by
// construction (§9).
type Decomposition struct {
	Bags []*Bag
	Root int
}

// Bag returns the bag with the given id.
func (d *Decomposition) Bag(id int) *Bag {
	return d.Bags[id]
}

// postOrderFrame is one stack entry of the iterative post-order walk:
// the bag being visited and how far through its Children it has gotten.
type postOrderFrame struct {
	id        int
	nextChild int
}

// PostOrder returns bag ids in post-order (children before parents),
// the traversal order the driver executes (§4.6). Decompositions over
// real instances can run to hundreds of thousands of bags, deep enough
// that a recursive walk risks the goroutine stack; both the visited
// set and the walk's own call stack are explicit, bounded structures
// (Bitset, Stack) rather than recursion and a []bool.
func (d *Decomposition) PostOrder() []int {
	order := make([]int, 0, len(d.Bags))
	visited := collections.NewBitset(len(d.Bags))
	stack := collections.NewStack[*postOrderFrame](len(d.Bags))

	visited.Set(d.Root)
	stack.Push(&postOrderFrame{id: d.Root})

	for {
		frame, ok := stack.Peek()
		if !ok {
			break
		}
		bag := d.Bags[frame.id]
		if frame.nextChild < len(bag.Children) {
			c := bag.Children[frame.nextChild]
			frame.nextChild++
			if !visited.Test(c) {
				visited.Set(c)
				stack.Push(&postOrderFrame{id: c})
			}
			continue
		}
		stack.Pop()
		order = append(order, frame.id)
	}
	return order
}
