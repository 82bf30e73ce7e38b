package handletable

import (
	"sync"
	"testing"

	"github.com/overflowgraph/refgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandle(id refgraph.NodeId) *refgraph.Handle {
	return refgraph.NewHandle(id, "X", &refgraph.Body{Id: id, Label: "X"}, nil, nil)
}

func TestRegisterAndDrainFIFOOrder(t *testing.T) {
	tbl := New()
	var handles []*refgraph.Handle
	for i := refgraph.NodeId(0); i < 5; i++ {
		h := newTestHandle(i)
		handles = append(handles, h)
		tbl.Register(h)
	}
	require.Equal(t, 5, tbl.Size())

	drained := tbl.DrainUpTo(3)
	require.Len(t, drained, 3)
	for i, h := range drained {
		assert.Equal(t, handles[i].Id, h.Id)
	}
	assert.Equal(t, 2, tbl.Size())

	rest := tbl.DrainUpTo(10)
	require.Len(t, rest, 2)
	assert.Equal(t, handles[3].Id, rest[0].Id)
	assert.Equal(t, handles[4].Id, rest[1].Id)
	assert.True(t, tbl.IsEmpty())
}

func TestDrainUpToMoreThanSize(t *testing.T) {
	tbl := New()
	tbl.Register(newTestHandle(1))
	drained := tbl.DrainUpTo(100)
	require.Len(t, drained, 1)
	assert.True(t, tbl.IsEmpty())
}

func TestDrainEmptyTable(t *testing.T) {
	tbl := New()
	assert.Empty(t, tbl.DrainUpTo(5))
	assert.True(t, tbl.IsEmpty())
}

func TestRegisterIsIdempotentPerHandle(t *testing.T) {
	tbl := New()
	h := newTestHandle(7)
	tbl.Register(h)
	tbl.Register(h)
	assert.Equal(t, 1, tbl.Size())
}

func TestConcurrentRegisterAndDrain(t *testing.T) {
	tbl := New()
	const n = 250

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			tbl.Register(newTestHandle(refgraph.NodeId(i)))
		}(i)
	}
	wg.Wait()
	require.Equal(t, n, tbl.Size())

	drained := tbl.DrainUpTo(n)
	require.Len(t, drained, n)
	assert.True(t, tbl.IsEmpty())
}
