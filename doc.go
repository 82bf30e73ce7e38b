// Package refgraph defines the core types shared across the reference-manager
// eviction pipeline: node identifiers, property values, node bodies, and the
// stable Handle that survives eviction of its body to disk.
//
// Concrete persistence backends live in the store subpackages, the wire codec
// lives in codec, the FIFO registry of live handles lives in handletable, and
// the eviction scheduler lives in eviction. This package is the shared
// vocabulary the rest of the module builds on.
package refgraph
