// Package eviction implements the reference manager's eviction pipeline:
// heap-pressure-driven rounds that drain batches of handles from the
// Handle Table, clear them through a bounded worker pool, and coordinate
// backpressure against allocators. Grounded directly on OverflowDB's
// ReferenceManager.java (the P-gate, releaseCount batching, and
// clearAllReferences loop). Each round runs on its own errgroup, with one
// goroutine per chunk; concurrency is bounded by partitioning the batch
// into at most WorkerCount chunks.
package eviction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/overflowgraph/refgraph"
	"github.com/overflowgraph/refgraph/codec"
	"github.com/overflowgraph/refgraph/handletable"
	"github.com/overflowgraph/refgraph/port"
)

// WriteMode selects whether eviction writes clean, resident bodies.
type WriteMode int

const (
	// WriteConservative always writes before clearing, regardless of the
	// dirty bit. Safe default when the allocator cannot reliably mark dirty.
	WriteConservative WriteMode = iota
	// WriteDirtyOnly skips the write when a handle's dirty bit is false,
	// since the persisted bytes are already authoritative.
	WriteDirtyOnly
)

// Options configures a Scheduler.
type Options struct {
	// BatchSize caps the number of handles evicted per pressure notification.
	BatchSize int
	// WorkerCount sizes the worker pool consuming a round's batch. Defaults
	// to runtime.NumCPU() when zero.
	WorkerCount int
	// MaxBackpressureWait caps how long ApplyBackpressure blocks. Zero means
	// unbounded.
	MaxBackpressureWait time.Duration
	// WriteMode selects conservative (default) or dirty-only writes.
	WriteMode WriteMode
	// NotifyLimiter, if set, throttles OnHeapAboveThreshold so a noisy
	// monitor can't flood the scheduler with log lines for dropped
	// notifications. Optional; nil means unthrottled.
	NotifyLimiter *rate.Limiter
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 100000
	}
	if o.WorkerCount <= 0 {
		o.WorkerCount = runtime.NumCPU()
	}
	return o
}

// Scheduler is the eviction pipeline's coordinator. The zero value is not
// usable; construct with New.
type Scheduler struct {
	opts  Options
	table *handletable.Table
	codec codec.Codec
	store port.Port

	mu   sync.Mutex
	cond *sync.Cond
	p    int
	closed bool

	clearedTotal uint64
}

// New builds a Scheduler that drains table, encodes bodies with c, and
// writes through store.
func New(table *handletable.Table, c codec.Codec, store port.Port, opts Options) *Scheduler {
	s := &Scheduler{
		opts:  opts.withDefaults(),
		table: table,
		codec: c,
		store: store,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// OnHeapAboveThreshold is the heap monitor's callback. If a round is
// already dispatched (P > 0) the notification is dropped and logged. If the
// handle table is empty this is a no-op. Otherwise a new round is started:
// up to BatchSize handles are drained and partitioned across WorkerCount
// chunks, each submitted to the worker pool.
func (s *Scheduler) OnHeapAboveThreshold() {
	if s.opts.NotifyLimiter != nil && !s.opts.NotifyLimiter.Allow() {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.p > 0 {
		s.mu.Unlock()
		slog.Debug("eviction: round already in flight, dropping notification")
		return
	}
	if s.table.IsEmpty() {
		s.mu.Unlock()
		return
	}
	s.p++
	s.mu.Unlock()

	go s.runRound(context.Background(), s.opts.BatchSize)
}

// DrainAll blocks until the handle table is empty, repeatedly submitting
// full-table rounds and awaiting each to completion. Idempotent and safe
// against concurrent OnHeapAboveThreshold notifications, since each round
// still goes through the same P gate.
func (s *Scheduler) DrainAll(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return refgraph.ErrShutdown
		}
		if s.table.IsEmpty() {
			s.mu.Unlock()
			return nil
		}
		for s.p > 0 {
			s.cond.Wait()
		}
		if s.table.IsEmpty() {
			s.mu.Unlock()
			return nil
		}
		s.p++
		s.mu.Unlock()

		s.runRound(ctx, s.table.Size())
	}
}

// ApplyBackpressure blocks while a round is dispatched (P > 0), returning as
// soon as P == 0. Cancellation of ctx surfaces as ErrCancelled; if
// MaxBackpressureWait is configured and elapses first, it surfaces as
// ErrTimedOut. After Close it returns ErrShutdown.
func (s *Scheduler) ApplyBackpressure(ctx context.Context) error {
	if s.opts.MaxBackpressureWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.MaxBackpressureWait)
		defer cancel()
	}

	// cond.Wait has no notion of ctx, so a watcher goroutine turns ctx
	// cancellation into a Broadcast that wakes the waiter below to
	// re-check ctx.Err(). stop bounds the watcher's lifetime to this call.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-stop:
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return refgraph.ErrShutdown
	}
	for s.p > 0 {
		if err := ctx.Err(); err != nil {
			break
		}
		s.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return refgraph.ErrTimedOut
		}
		return fmt.Errorf("%w: %w", refgraph.ErrCancelled, err)
	}
	return nil
}

// Close shuts the scheduler down cooperatively: in-flight rounds are
// allowed to finish, but OnHeapAboveThreshold and DrainAll reject further
// work afterward. Calling Close while a DrainAll is in progress is
// undefined; callers must sequence these themselves.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// ClearedTotal returns the cumulative number of handles successfully
// persisted and cleared, for observability.
func (s *Scheduler) ClearedTotal() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearedTotal
}

func (s *Scheduler) runRound(ctx context.Context, n int) {
	batch := s.table.DrainUpTo(n)
	slog.Debug("eviction: round starting", "batch", len(batch))

	chunks := partition(batch, s.opts.WorkerCount)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, chunk := range chunks {
		chunk := chunk
		eg.Go(func() error {
			s.clearChunk(egCtx, chunk)
			return nil
		})
	}
	// Per-handle failures are caught inside clearChunk and never returned,
	// so every task returns nil; Wait is called only to block until all
	// chunks have finished.
	_ = eg.Wait()

	s.mu.Lock()
	s.p--
	s.cond.Broadcast()
	s.mu.Unlock()
	slog.Debug("eviction: round complete", "batch", len(batch))
}

func (s *Scheduler) clearChunk(ctx context.Context, chunk []*refgraph.Handle) {
	for _, h := range chunk {
		s.clearOne(ctx, h)
	}
}

func (s *Scheduler) clearOne(ctx context.Context, h *refgraph.Handle) {
	body := h.PeekBody()
	if body == nil {
		return
	}

	shouldWrite := s.opts.WriteMode == WriteConservative || h.IsDirty()
	if shouldWrite {
		data, err := s.codec.Encode(body)
		if err != nil {
			if errors.Is(err, refgraph.ErrUnencodableValue) {
				slog.Warn("eviction: skipping unencodable handle", "node", h.Id, "error", err)
				return
			}
			slog.Error("eviction: unexpected encode error", "node", h.Id, "error", err)
			return
		}
		if err := s.store.Put(ctx, h.Id, data); err != nil {
			slog.Warn("eviction: persistence failed, handle stays resident", "node", h.Id, "error", err)
			// Put it back in the table so a later round retries it.
			s.table.Register(h)
			return
		}
	}

	h.Clear()
	s.mu.Lock()
	s.clearedTotal++
	s.mu.Unlock()
}

// partition splits handles into up to workerCount chunks of size
// ceil(len(handles)/workerCount), dropping empty chunks, matching
// ReferenceManager.java's asynchronouslyClearReferences.
func partition(handles []*refgraph.Handle, workerCount int) [][]*refgraph.Handle {
	if len(handles) == 0 || workerCount <= 0 {
		return nil
	}
	chunkSize := (len(handles) + workerCount - 1) / workerCount
	var chunks [][]*refgraph.Handle
	for start := 0; start < len(handles); start += chunkSize {
		end := start + chunkSize
		if end > len(handles) {
			end = len(handles)
		}
		chunks = append(chunks, handles[start:end])
	}
	return chunks
}
