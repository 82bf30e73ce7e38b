package refgraph

import (
	"context"
	"fmt"
	"sync"
)

// Registrar is the subset of the Handle Table's interface a Handle needs:
// appending itself once its body becomes resident. Implemented by
// package handletable's Table. Kept as a local interface (rather than
// importing handletable directly) so this package stays a leaf with no
// dependency on the eviction pipeline's bookkeeping.
type Registrar interface {
	Register(h *Handle)
}

// Loader fetches and decodes the body for a node id, used by Handle.GetOrLoad
// to rehydrate an evicted handle. Supplied by the composition root that wires
// a Persistence Port and Codec together (see cmd/refgraphd).
type Loader func(ctx context.Context, id NodeId) (*Body, error)

// Handle is the stable identity of a node: its id and label survive
// eviction, independent of whether the body is resident. See SPEC_FULL.md
// §3 "Handle" and §4.5.
type Handle struct {
	Id    NodeId
	Label Label

	mu    sync.Mutex
	body  *Body
	dirty bool

	table  Registrar
	loader Loader
}

// NewHandle constructs a Handle. If body is non-nil (the allocator path: a
// freshly created node) the handle is registered with table immediately. If
// body is nil (the startup-rebuild path: decode_ref without materializing)
// the handle is registered lazily on first GetOrLoad.
func NewHandle(id NodeId, label Label, body *Body, table Registrar, loader Loader) *Handle {
	h := &Handle{
		Id:     id,
		Label:  label,
		body:   body,
		table:  table,
		loader: loader,
	}
	if body != nil && table != nil {
		table.Register(h)
	}
	return h
}

// GetOrLoad returns the resident body, loading it from the Persistence Port
// (via Loader) and re-registering the handle if it was evicted. Failures
// propagate wrapped in ErrLoadFailed.
func (h *Handle) GetOrLoad(ctx context.Context) (*Body, error) {
	h.mu.Lock()
	if h.body != nil {
		b := h.body
		h.mu.Unlock()
		return b, nil
	}
	h.mu.Unlock()

	if h.loader == nil {
		return nil, fmt.Errorf("%w: node %d has no loader configured", ErrLoadFailed, h.Id)
	}
	body, err := h.loader(ctx, h.Id)
	if err != nil {
		return nil, fmt.Errorf("%w: node %d: %w", ErrLoadFailed, h.Id, err)
	}

	h.mu.Lock()
	if h.body != nil {
		// Lost the race against a concurrent load; keep the winner's body.
		b := h.body
		h.mu.Unlock()
		return b, nil
	}
	h.body = body
	h.dirty = false
	h.mu.Unlock()

	if h.table != nil {
		h.table.Register(h)
	}
	return body, nil
}

// MarkDirty sets the dirty bit. Idempotent. No-op if the body isn't
// resident (nothing to mark dirty).
func (h *Handle) MarkDirty() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.body != nil {
		h.dirty = true
	}
}

// IsDirty reports the current dirty bit. Racy by design while a clearing
// worker holds the handle; callers in that window should not rely on it.
func (h *Handle) IsDirty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dirty
}

// IsSet reports whether the body is currently resident. Racy by design: used
// only for skip-logic in eviction workers, per SPEC_FULL.md §4.5.
func (h *Handle) IsSet() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.body != nil
}

// PeekBody returns the resident body without loading it, or nil if evicted.
// Called by eviction workers that already own the handle exclusively for
// clearing (it must not race with GetOrLoad's registration side effect).
func (h *Handle) PeekBody() *Body {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.body
}

// Clear detaches the body. Callers (the eviction scheduler only) must ensure
// the body has already been durably persisted, or that persistence was
// configured to be skipped (dirty-only mode with a clean handle).
func (h *Handle) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.body = nil
	h.dirty = false
}

// SetBody replaces the resident body directly, e.g. when the allocator
// mutates node contents rather than going through the property surface.
// Marks the handle dirty.
func (h *Handle) SetBody(b *Body) {
	h.mu.Lock()
	h.body = b
	h.dirty = true
	wasRegistered := h.body != nil
	h.mu.Unlock()
	if wasRegistered && h.table != nil {
		h.table.Register(h)
	}
}
