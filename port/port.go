// Package port defines the Persistence Port the eviction scheduler writes
// evicted node bodies through, plus decorators that add cross-cutting
// behavior (retry, compression, metrics) around a base implementation.
// Concrete backends live in the sibling store subpackages.
package port

import (
	"context"

	"github.com/overflowgraph/refgraph"
)

// Port is the storage boundary the eviction scheduler and Handle.GetOrLoad
// depend on. Implementations must be safe for concurrent use.
type Port interface {
	// Put persists the encoded body for id. Overwrites any prior value.
	Put(ctx context.Context, id refgraph.NodeId, data []byte) error

	// Get returns the encoded body for id, or refgraph.ErrNotFound if absent.
	Get(ctx context.Context, id refgraph.NodeId) ([]byte, error)

	// Delete removes the stored body for id, if any. Deleting an absent id
	// is not an error.
	Delete(ctx context.Context, id refgraph.NodeId) error
}
