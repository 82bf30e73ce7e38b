package port

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/s2"

	"github.com/overflowgraph/refgraph"
)

// WithCompression wraps next, S2-compressing bytes on Put and decompressing
// on Get. Delete passes through unchanged since it carries no payload.
func WithCompression(next Port) Port {
	return &compressingPort{next: next}
}

type compressingPort struct {
	next Port
}

func (p *compressingPort) Put(ctx context.Context, id refgraph.NodeId, data []byte) error {
	return p.next.Put(ctx, id, s2.Encode(nil, data))
}

func (p *compressingPort) Get(ctx context.Context, id refgraph.NodeId) ([]byte, error) {
	compressed, err := p.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := s2.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: node %d: s2 decompress: %w", refgraph.ErrCorruptFormat, id, err)
	}
	return data, nil
}

func (p *compressingPort) Delete(ctx context.Context, id refgraph.NodeId) error {
	return p.next.Delete(ctx, id)
}
