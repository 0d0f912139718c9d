package treedec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBag_SortsVars(t *testing.T) {
	b := NewBag(0, KindLeaf, []int{3, 1, 2})
	assert.Equal(t, []int{1, 2, 3}, b.Vars)
}

func TestBag_IndexOfAndBit(t *testing.T) {
	b := NewBag(0, KindLeaf, []int{2, 5, 7})
	assert.Equal(t, 0, b.IndexOf(2))
	assert.Equal(t, 1, b.IndexOf(5))
	assert.Equal(t, 2, b.IndexOf(7))
	assert.Equal(t, -1, b.IndexOf(9))

	// id = 0b101 -> bit for 2 (msb) = 1, bit for 5 = 0, bit for 7 (lsb) = 1
	assert.True(t, b.Bit(0b101, 2))
	assert.False(t, b.Bit(0b101, 5))
	assert.True(t, b.Bit(0b101, 7))
}

func TestBag_NumAssignments(t *testing.T) {
	b := NewBag(0, KindLeaf, []int{1, 2, 3})
	assert.Equal(t, uint64(8), b.NumAssignments())
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindLeaf, "leaf"},
		{KindIntroduce, "introduce"},
		{KindForget, "forget"},
		{KindJoin, "join"},
		{KindIntroduceForget, "introduce-forget"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.kind.String())
	}
}

func TestDecomposition_PostOrder(t *testing.T) {
	// bag 0 (leaf), bag 1 (leaf), bag 2 = join(0,1), root = 2
	d := &Decomposition{
		Bags: []*Bag{
			NewBag(0, KindLeaf, []int{1}),
			NewBag(1, KindLeaf, []int{2}),
			NewBag(2, KindJoin, []int{1, 2}, 0, 1),
		},
		Root: 2,
	}
	order := d.PostOrder()
	assert.Equal(t, []int{0, 1, 2}, order)
}
