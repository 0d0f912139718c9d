package soltable

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satcount/gpusatgo/internal/solverr"
)

func TestArray_SetGet(t *testing.T) {
	a := NewArray(0, 8, 3)
	require.NoError(t, a.Set(5, 3.5))

	v, ok := a.Get(5)
	assert.True(t, ok)
	assert.Equal(t, 3.5, v)

	v, ok = a.Get(2)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v) // never written -> 0
}

func TestArray_ChunkedStartID(t *testing.T) {
	a := NewArray(4, 4, 3) // fragment covering ids [4,8)
	require.NoError(t, a.Set(6, 9))

	v, ok := a.Get(6)
	assert.True(t, ok)
	assert.Equal(t, 9.0, v)

	_, ok = a.Get(1) // out of fragment range
	assert.False(t, ok)

	err := a.Set(100, 1)
	assert.Error(t, err)
}

func TestArray_Update(t *testing.T) {
	a := NewArray(0, 4, 2)
	require.NoError(t, a.Set(1, 2))

	err := a.Update(1, func(old float64, found bool) float64 {
		return old * 3
	})
	require.NoError(t, err)

	v, _ := a.Get(1)
	assert.Equal(t, 6.0, v)
}

func TestArray_UpdateConcurrent(t *testing.T) {
	a := NewArray(0, 1, 0)
	require.NoError(t, a.Set(0, 0))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.Update(0, func(old float64, found bool) float64 {
				return old + 1
			})
		}()
	}
	wg.Wait()

	v, _ := a.Get(0)
	assert.Equal(t, 100.0, v)
}

func TestTree_SetGetRoundTrip(t *testing.T) {
	tr := NewTree(0, 3, 64)
	require.NoError(t, tr.SetCount(5, 42))

	v, ok := tr.GetCount(5)
	assert.True(t, ok)
	assert.Equal(t, 42.0, v)

	_, ok = tr.GetCount(2)
	assert.False(t, ok)
}

func TestTree_ZeroWidthRoot(t *testing.T) {
	tr := NewTree(0, 0, 4)
	require.NoError(t, tr.SetCount(0, 7))

	v, ok := tr.GetCount(0)
	assert.True(t, ok)
	assert.Equal(t, 7.0, v)
}

func TestTree_CapacityExhausted(t *testing.T) {
	tr := NewTree(0, 4, 2) // room for the root plus one node; a width-4 path needs four
	err := tr.SetCount(5, 1)
	require.Error(t, err)
	assert.True(t, solverr.IsCapacityExhausted(err))
}

func TestTree_SparseDoesNotAllocateUnrelatedPaths(t *testing.T) {
	tr := NewTree(0, 4, 64)
	require.NoError(t, tr.SetCount(0, 1))
	require.NoError(t, tr.SetCount(15, 1))

	_, ok := tr.GetCount(7)
	assert.False(t, ok)
}

func TestTree_ConcurrentDisjointPaths(t *testing.T) {
	tr := NewTree(0, 6, 1024)
	var wg sync.WaitGroup
	for i := uint64(0); i < 64; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			require.NoError(t, tr.SetCount(id, float64(id)))
		}(i)
	}
	wg.Wait()

	for i := uint64(0); i < 64; i++ {
		v, ok := tr.GetCount(i)
		assert.True(t, ok)
		assert.Equal(t, float64(i), v)
	}
}
