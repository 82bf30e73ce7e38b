package codec

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tinylib/msgp/msgp"

	"github.com/overflowgraph/refgraph"
)

const defaultMaxCollectionSize = 1 << 20

// MsgpackCodec implements Codec against github.com/tinylib/msgp/msgp's
// low-level Writer/Reader, writing the frame from SPEC_FULL.md §4.1 field by
// field rather than through msgp code generation.
type MsgpackCodec struct {
	maxCollectionSize uint32

	nodesDecoded   atomic.Uint64
	decodeNanos    atomic.Uint64
	decodeRefCalls atomic.Uint64
}

// NewCodec returns a MsgpackCodec. maxCollectionSize caps how many entries a
// map or array header may declare before Decode rejects the input as
// corrupt; 0 selects a default of 1<<20.
func NewCodec(maxCollectionSize uint32) *MsgpackCodec {
	if maxCollectionSize == 0 {
		maxCollectionSize = defaultMaxCollectionSize
	}
	return &MsgpackCodec{maxCollectionSize: maxCollectionSize}
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{refgraph.ErrCorruptFormat}, args...)...)
}

func unencodable(v refgraph.Value) error {
	return fmt.Errorf("%w: tag %s payload %#v", refgraph.ErrUnencodableValue, v.Tag, v.Payload)
}

// Encode implements Codec.
func (c *MsgpackCodec) Encode(b *refgraph.Body) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)

	if err := w.WriteUint64(uint64(b.Id)); err != nil {
		return nil, err
	}
	if err := w.WriteString(string(b.Label)); err != nil {
		return nil, err
	}

	if err := w.WriteMapHeader(uint32(len(b.Properties))); err != nil {
		return nil, err
	}
	for k, v := range b.Properties {
		if err := w.WriteString(k); err != nil {
			return nil, err
		}
		if err := writeTaggedValue(w, v); err != nil {
			return nil, err
		}
	}

	if err := w.WriteArrayHeader(uint32(len(b.EdgeOffsets))); err != nil {
		return nil, err
	}
	for _, off := range b.EdgeOffsets {
		if err := w.WriteInt32(off); err != nil {
			return nil, err
		}
	}

	if err := w.WriteArrayHeader(uint32(len(b.Adjacency))); err != nil {
		return nil, err
	}
	for _, v := range b.Adjacency {
		if err := writeTaggedValue(w, v); err != nil {
			return nil, err
		}
	}

	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeTaggedValue(w *msgp.Writer, v refgraph.Value) error {
	if err := w.WriteArrayHeader(2); err != nil {
		return err
	}
	if err := w.WriteInt8(int8(v.Tag)); err != nil {
		return err
	}

	switch v.Tag {
	case refgraph.TagNull:
		return w.WriteNil()
	case refgraph.TagBool:
		b, ok := v.Payload.(bool)
		if !ok {
			return unencodable(v)
		}
		return w.WriteBool(b)
	case refgraph.TagString:
		s, ok := v.Payload.(string)
		if !ok {
			return unencodable(v)
		}
		return w.WriteString(s)
	case refgraph.TagByte:
		b, ok := v.Payload.(int8)
		if !ok {
			return unencodable(v)
		}
		return w.WriteInt8(b)
	case refgraph.TagShort:
		s, ok := v.Payload.(int16)
		if !ok {
			return unencodable(v)
		}
		return w.WriteInt16(s)
	case refgraph.TagInt:
		i, ok := v.Payload.(int32)
		if !ok {
			return unencodable(v)
		}
		return w.WriteInt32(i)
	case refgraph.TagLong:
		l, ok := v.Payload.(int64)
		if !ok {
			return unencodable(v)
		}
		return w.WriteInt64(l)
	case refgraph.TagFloat:
		f, ok := v.Payload.(float32)
		if !ok {
			return unencodable(v)
		}
		return w.WriteFloat32(f)
	case refgraph.TagDouble:
		d, ok := v.Payload.(float64)
		if !ok {
			return unencodable(v)
		}
		return w.WriteFloat64(d)
	case refgraph.TagCharacter:
		r, ok := v.Payload.(rune)
		if !ok {
			return unencodable(v)
		}
		return w.WriteInt32(int32(r))
	case refgraph.TagNodeRef:
		id, err := nodeRefId(v.Payload)
		if err != nil {
			return unencodable(v)
		}
		return w.WriteUint64(uint64(id))
	case refgraph.TagList:
		elems, ok := v.Payload.([]refgraph.Value)
		if !ok {
			return unencodable(v)
		}
		if err := w.WriteArrayHeader(uint32(len(elems))); err != nil {
			return err
		}
		for _, e := range elems {
			if e.Tag == refgraph.TagList {
				// Canonical form is non-nested: a list of lists is not
				// representable, per SPEC_FULL.md §3/§4.1.
				return unencodable(v)
			}
			if err := writeTaggedValue(w, e); err != nil {
				return err
			}
		}
		return nil
	default:
		return unencodable(v)
	}
}

func nodeRefId(payload any) (refgraph.NodeId, error) {
	switch p := payload.(type) {
	case refgraph.NodeId:
		return p, nil
	case *refgraph.Handle:
		return p.Id, nil
	default:
		return 0, fmt.Errorf("node ref payload has unexpected type %T", payload)
	}
}

// Decode implements Codec.
func (c *MsgpackCodec) Decode(data []byte, resolve refgraph.NodeResolver) (*refgraph.Body, error) {
	start := time.Now()
	r := msgp.NewReader(bytes.NewReader(data))

	id, err := r.ReadUint64()
	if err != nil {
		return nil, corrupt("reading id: %v", err)
	}
	label, err := r.ReadString()
	if err != nil {
		return nil, corrupt("reading label: %v", err)
	}

	propCount, err := r.ReadMapHeader()
	if err != nil {
		return nil, corrupt("reading properties header: %v", err)
	}
	if propCount > c.maxCollectionSize {
		return nil, corrupt("properties count %d exceeds limit %d", propCount, c.maxCollectionSize)
	}
	properties := make(map[string]refgraph.Value, propCount)
	for i := uint32(0); i < propCount; i++ {
		key, err := r.ReadString()
		if err != nil {
			return nil, corrupt("reading property key %d: %v", i, err)
		}
		val, err := readTaggedValue(r, resolve, c.maxCollectionSize)
		if err != nil {
			return nil, err
		}
		properties[key] = val
	}

	edgeCount, err := r.ReadArrayHeader()
	if err != nil {
		return nil, corrupt("reading edgeOffsets header: %v", err)
	}
	if edgeCount > c.maxCollectionSize {
		return nil, corrupt("edgeOffsets count %d exceeds limit %d", edgeCount, c.maxCollectionSize)
	}
	edgeOffsets := make([]int32, edgeCount)
	for i := range edgeOffsets {
		v, err := r.ReadInt32()
		if err != nil {
			return nil, corrupt("reading edgeOffsets[%d]: %v", i, err)
		}
		edgeOffsets[i] = v
	}

	adjCount, err := r.ReadArrayHeader()
	if err != nil {
		return nil, corrupt("reading adjacency header: %v", err)
	}
	if adjCount > c.maxCollectionSize {
		return nil, corrupt("adjacency count %d exceeds limit %d", adjCount, c.maxCollectionSize)
	}
	adjacency := make([]refgraph.Value, adjCount)
	for i := range adjacency {
		v, err := readTaggedValue(r, resolve, c.maxCollectionSize)
		if err != nil {
			return nil, err
		}
		adjacency[i] = v
	}

	c.nodesDecoded.Add(1)
	c.decodeNanos.Add(uint64(time.Since(start).Nanoseconds()))

	return &refgraph.Body{
		Id:          refgraph.NodeId(id),
		Label:       refgraph.Label(label),
		Properties:  properties,
		EdgeOffsets: edgeOffsets,
		Adjacency:   adjacency,
	}, nil
}

func readTaggedValue(r *msgp.Reader, resolve refgraph.NodeResolver, limit uint32) (refgraph.Value, error) {
	sz, err := r.ReadArrayHeader()
	if err != nil {
		return refgraph.Value{}, corrupt("reading tagged-value frame: %v", err)
	}
	if sz != 2 {
		return refgraph.Value{}, corrupt("tagged-value frame has %d elements, want 2", sz)
	}

	rawTag, err := r.ReadInt8()
	if err != nil {
		return refgraph.Value{}, corrupt("reading tag: %v", err)
	}
	tag := refgraph.ValueTag(rawTag)

	switch tag {
	case refgraph.TagNull:
		if err := r.ReadNil(); err != nil {
			return refgraph.Value{}, corrupt("reading NULL payload: %v", err)
		}
		return refgraph.Value{Tag: tag}, nil
	case refgraph.TagBool:
		b, err := r.ReadBool()
		if err != nil {
			return refgraph.Value{}, corrupt("reading BOOL payload: %v", err)
		}
		return refgraph.Value{Tag: tag, Payload: b}, nil
	case refgraph.TagString:
		s, err := r.ReadString()
		if err != nil {
			return refgraph.Value{}, corrupt("reading STRING payload: %v", err)
		}
		return refgraph.Value{Tag: tag, Payload: s}, nil
	case refgraph.TagByte:
		b, err := r.ReadInt8()
		if err != nil {
			return refgraph.Value{}, corrupt("reading BYTE payload: %v", err)
		}
		return refgraph.Value{Tag: tag, Payload: b}, nil
	case refgraph.TagShort:
		s, err := r.ReadInt16()
		if err != nil {
			return refgraph.Value{}, corrupt("reading SHORT payload: %v", err)
		}
		return refgraph.Value{Tag: tag, Payload: s}, nil
	case refgraph.TagInt:
		i, err := r.ReadInt32()
		if err != nil {
			return refgraph.Value{}, corrupt("reading INT payload: %v", err)
		}
		return refgraph.Value{Tag: tag, Payload: i}, nil
	case refgraph.TagLong:
		l, err := r.ReadInt64()
		if err != nil {
			return refgraph.Value{}, corrupt("reading LONG payload: %v", err)
		}
		return refgraph.Value{Tag: tag, Payload: l}, nil
	case refgraph.TagFloat:
		f, err := r.ReadFloat32()
		if err != nil {
			return refgraph.Value{}, corrupt("reading FLOAT payload: %v", err)
		}
		return refgraph.Value{Tag: tag, Payload: f}, nil
	case refgraph.TagDouble:
		d, err := r.ReadFloat64()
		if err != nil {
			return refgraph.Value{}, corrupt("reading DOUBLE payload: %v", err)
		}
		return refgraph.Value{Tag: tag, Payload: d}, nil
	case refgraph.TagCharacter:
		c, err := r.ReadInt32()
		if err != nil {
			return refgraph.Value{}, corrupt("reading CHARACTER payload: %v", err)
		}
		return refgraph.Value{Tag: tag, Payload: rune(c)}, nil
	case refgraph.TagNodeRef:
		raw, err := r.ReadUint64()
		if err != nil {
			return refgraph.Value{}, corrupt("reading NODE_REF payload: %v", err)
		}
		id := refgraph.NodeId(raw)
		if resolve == nil {
			return refgraph.Value{Tag: tag, Payload: id}, nil
		}
		h, err := resolve(id)
		if err != nil {
			return refgraph.Value{}, fmt.Errorf("resolving node ref %d: %w", id, err)
		}
		return refgraph.Value{Tag: tag, Payload: h}, nil
	case refgraph.TagList:
		sz, err := r.ReadArrayHeader()
		if err != nil {
			return refgraph.Value{}, corrupt("reading LIST header: %v", err)
		}
		if sz > limit {
			return refgraph.Value{}, corrupt("LIST count %d exceeds limit %d", sz, limit)
		}
		elems := make([]refgraph.Value, sz)
		for i := range elems {
			e, err := readTaggedValue(r, resolve, limit)
			if err != nil {
				return refgraph.Value{}, err
			}
			if e.Tag == refgraph.TagList {
				return refgraph.Value{}, corrupt("nested LIST at element %d", i)
			}
			elems[i] = e
		}
		return refgraph.Value{Tag: tag, Payload: elems}, nil
	default:
		return refgraph.Value{}, corrupt("unknown tag %d", rawTag)
	}
}

// DecodeRef implements Codec.
func (c *MsgpackCodec) DecodeRef(data []byte) (refgraph.NodeId, refgraph.Label, error) {
	r := msgp.NewReader(bytes.NewReader(data))

	id, err := r.ReadUint64()
	if err != nil {
		return 0, "", corrupt("reading id: %v", err)
	}
	label, err := r.ReadString()
	if err != nil {
		return 0, "", corrupt("reading label: %v", err)
	}
	c.decodeRefCalls.Add(1)
	return refgraph.NodeId(id), refgraph.Label(label), nil
}

// Stats implements Codec.
func (c *MsgpackCodec) Stats() Stats {
	return Stats{
		NodesDecoded:   c.nodesDecoded.Load(),
		DecodeNanos:    c.decodeNanos.Load(),
		DecodeRefCalls: c.decodeRefCalls.Load(),
	}
}
