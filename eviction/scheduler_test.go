package eviction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overflowgraph/refgraph"
	"github.com/overflowgraph/refgraph/codec"
	"github.com/overflowgraph/refgraph/handletable"
	"github.com/overflowgraph/refgraph/port"
)

func newLoader(c codec.Codec, store port.Port) refgraph.Loader {
	return func(ctx context.Context, id refgraph.NodeId) (*refgraph.Body, error) {
		data, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return c.Decode(data, nil)
	}
}

func registerHandles(t *handletable.Table, c codec.Codec, store port.Port, n int) []*refgraph.Handle {
	handles := make([]*refgraph.Handle, n)
	for i := 0; i < n; i++ {
		id := refgraph.NodeId(i)
		body := &refgraph.Body{Id: id, Label: "X", Properties: map[string]refgraph.Value{
			"a": {Tag: refgraph.TagInt, Payload: int32(i)},
		}}
		h := refgraph.NewHandle(id, "X", body, t, newLoader(c, store))
		h.MarkDirty()
		handles[i] = h
	}
	return handles
}

func TestPressureEvictionDrainsBatchAndClearsBodies(t *testing.T) {
	table := handletable.New()
	c := codec.NewCodec(0)
	store := port.NewSpy()
	handles := registerHandles(table, c, store, 250)

	s := New(table, c, store, Options{BatchSize: 100, WorkerCount: 4})
	s.OnHeapAboveThreshold()

	require.Eventually(t, func() bool { return table.Size() == 150 }, time.Second, time.Millisecond)
	// The table shrinks as soon as the batch is drained; wait for the round
	// itself to finish before counting what it wrote.
	require.NoError(t, s.ApplyBackpressure(context.Background()))
	assert.Equal(t, 100, store.Count())
	assert.False(t, handles[0].IsSet())
	assert.True(t, handles[249].IsSet())
}

func TestOnHeapAboveThresholdDropsWhileRoundInFlight(t *testing.T) {
	table := handletable.New()
	c := codec.NewCodec(0)
	blockPut := make(chan struct{})
	store := &blockingSpy{Spy: port.NewSpy(), block: blockPut}
	registerHandles(table, c, store, 10)

	s := New(table, c, store, Options{BatchSize: 100, WorkerCount: 1})
	s.OnHeapAboveThreshold()

	require.Eventually(t, func() bool { return store.putStarted() }, time.Second, time.Millisecond)

	// Table is already fully drained into the in-flight round; a second
	// notification must be a no-op since it is also empty.
	s.OnHeapAboveThreshold()
	assert.Equal(t, 0, table.Size())

	close(blockPut)
	require.Eventually(t, func() bool { return store.Count() == 10 }, time.Second, time.Millisecond)
}

func TestApplyBackpressureBlocksUntilRoundCompletes(t *testing.T) {
	table := handletable.New()
	c := codec.NewCodec(0)
	blockPut := make(chan struct{})
	store := &blockingSpy{Spy: port.NewSpy(), block: blockPut}
	registerHandles(table, c, store, 5)

	s := New(table, c, store, Options{BatchSize: 100, WorkerCount: 1})
	s.OnHeapAboveThreshold()
	require.Eventually(t, func() bool { return store.putStarted() }, time.Second, time.Millisecond)

	returned := make(chan struct{})
	go func() {
		err := s.ApplyBackpressure(context.Background())
		assert.NoError(t, err)
		close(returned)
	}()

	select {
	case <-returned:
		t.Fatal("ApplyBackpressure returned before the round completed")
	case <-time.After(50 * time.Millisecond):
	}

	close(blockPut)
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("ApplyBackpressure did not return after round completion")
	}
}

func TestApplyBackpressureRespectsCancellation(t *testing.T) {
	table := handletable.New()
	c := codec.NewCodec(0)
	blockPut := make(chan struct{})
	store := &blockingSpy{Spy: port.NewSpy(), block: blockPut}
	registerHandles(table, c, store, 1)
	defer close(blockPut)

	s := New(table, c, store, Options{BatchSize: 100, WorkerCount: 1})
	s.OnHeapAboveThreshold()
	require.Eventually(t, func() bool { return store.putStarted() }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := s.ApplyBackpressure(ctx)
	assert.True(t, errors.Is(err, refgraph.ErrCancelled))
}

func TestApplyBackpressureTimesOut(t *testing.T) {
	table := handletable.New()
	c := codec.NewCodec(0)
	blockPut := make(chan struct{})
	store := &blockingSpy{Spy: port.NewSpy(), block: blockPut}
	registerHandles(table, c, store, 1)
	defer close(blockPut)

	s := New(table, c, store, Options{BatchSize: 100, WorkerCount: 1, MaxBackpressureWait: 20 * time.Millisecond})
	s.OnHeapAboveThreshold()
	require.Eventually(t, func() bool { return store.putStarted() }, time.Second, time.Millisecond)

	err := s.ApplyBackpressure(context.Background())
	assert.True(t, errors.Is(err, refgraph.ErrTimedOut))
}

func TestReloadAfterEviction(t *testing.T) {
	table := handletable.New()
	c := codec.NewCodec(0)
	store := port.NewSpy()
	handles := registerHandles(table, c, store, 1)
	h := handles[0]

	s := New(table, c, store, Options{BatchSize: 100, WorkerCount: 1})
	require.NoError(t, s.DrainAll(context.Background()))
	require.False(t, h.IsSet())

	body, err := h.GetOrLoad(context.Background())
	require.NoError(t, err)
	assert.Equal(t, refgraph.NodeId(0), body.Id)
	assert.True(t, h.IsSet())
	assert.Equal(t, 1, table.Size())
}

func TestDrainAllOnEmptyTableReturnsImmediately(t *testing.T) {
	table := handletable.New()
	c := codec.NewCodec(0)
	store := port.NewSpy()
	s := New(table, c, store, Options{})

	err := s.DrainAll(context.Background())
	require.NoError(t, err)
}

func TestDrainAllClearsEverythingAndBlocksUntilDone(t *testing.T) {
	table := handletable.New()
	c := codec.NewCodec(0)
	store := port.NewSpy()
	registerHandles(table, c, store, 5)

	s := New(table, c, store, Options{BatchSize: 100, WorkerCount: 2})
	require.NoError(t, s.DrainAll(context.Background()))

	assert.True(t, table.IsEmpty())
	assert.Equal(t, 5, store.Count())
}

func TestErrorIsolationSkipsFailingHandleButClearsRest(t *testing.T) {
	table := handletable.New()
	c := codec.NewCodec(0)
	store := port.NewSpy()
	store.FailPut[3] = errors.New("disk full")
	handles := registerHandles(table, c, store, 10)

	s := New(table, c, store, Options{BatchSize: 100, WorkerCount: 4})
	s.OnHeapAboveThreshold()

	require.Eventually(t, func() bool { return table.Size() == 1 }, time.Second, time.Millisecond)
	// The failed handle is re-registered while other chunks may still be
	// running; wait for the round to finish before counting writes.
	require.NoError(t, s.ApplyBackpressure(context.Background()))
	assert.Equal(t, 9, store.Count())
	assert.True(t, handles[3].IsSet())

	// Backpressure must have been released despite the failure.
	require.NoError(t, s.ApplyBackpressure(context.Background()))
}

// blockingSpy wraps a Spy so the first Put blocks on block, letting tests
// observe a round mid-flight before releasing it.
type blockingSpy struct {
	*port.Spy
	block   chan struct{}
	mu      sync.Mutex
	started bool
}

func (b *blockingSpy) putStarted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

func (b *blockingSpy) Put(ctx context.Context, id refgraph.NodeId, data []byte) error {
	b.mu.Lock()
	b.started = true
	b.mu.Unlock()
	<-b.block
	return b.Spy.Put(ctx, id, data)
}
