// Package codec encodes and decodes node bodies to and from the
// MessagePack-compatible wire format described in SPEC_FULL.md §4.1,
// hand-rolled against github.com/tinylib/msgp/msgp's Writer/Reader rather
// than generated msgp code — the same low-level-API style
// janelia-flyem-dvid's hand-maintained storage/local package uses, applied
// to our own tagged-value frame instead of theirs.
package codec

import (
	"github.com/overflowgraph/refgraph"
)

// Codec encodes/decodes a node Body to/from the self-describing wire
// format. Implementations must make Encode deterministic modulo unordered
// map iteration, per SPEC_FULL.md §4.1.
type Codec interface {
	// Encode serializes a body to bytes. Fails with refgraph.ErrUnencodableValue
	// if any property or adjacency value carries a tag outside the closed set,
	// a payload of the wrong Go type for its tag, or a nested LIST.
	Encode(b *refgraph.Body) ([]byte, error)

	// Decode deserializes bytes into a body. If resolve is non-nil, NODE_REF
	// values are resolved to a live *refgraph.Handle payload; otherwise the
	// raw refgraph.NodeId is kept as the Value payload. Fails with
	// refgraph.ErrCorruptFormat on any structural problem.
	Decode(data []byte, resolve refgraph.NodeResolver) (*refgraph.Body, error)

	// DecodeRef reads only the id and label prefix, without materializing
	// properties or adjacency. Used during startup rebuild to recreate
	// handles without paying the cost of a full decode.
	DecodeRef(data []byte) (refgraph.NodeId, refgraph.Label, error)

	// Stats returns the advisory counters described in SPEC_FULL.md §6:
	// total nodes decoded and cumulative decode wall-time.
	Stats() Stats
}

// Stats holds advisory, non-contractual observability counters.
type Stats struct {
	NodesDecoded    uint64
	DecodeNanos     uint64
	DecodeRefCalls  uint64
}
