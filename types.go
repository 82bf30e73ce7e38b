package refgraph

import "fmt"

// NodeId is a 64-bit identifier unique within a graph instance, immutable for
// the life of the node. See SPEC_FULL.md §3.
type NodeId uint64

// Label is an interned string tag identifying a node's schema: which
// properties and adjacency shapes it's expected to carry.
type Label string

// ValueTag identifies the primitive type carried by a Value. The set is
// closed: codecs must reject any tag outside of it. See SPEC_FULL.md §3/§4.1.
type ValueTag int8

const (
	TagNull ValueTag = iota
	TagBool
	TagString
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagCharacter
	TagNodeRef
	TagList
)

func (t ValueTag) String() string {
	switch t {
	case TagNull:
		return "NULL"
	case TagBool:
		return "BOOL"
	case TagString:
		return "STRING"
	case TagByte:
		return "BYTE"
	case TagShort:
		return "SHORT"
	case TagInt:
		return "INT"
	case TagLong:
		return "LONG"
	case TagFloat:
		return "FLOAT"
	case TagDouble:
		return "DOUBLE"
	case TagCharacter:
		return "CHARACTER"
	case TagNodeRef:
		return "NODE_REF"
	case TagList:
		return "LIST"
	default:
		return fmt.Sprintf("ValueTag(%d)", int8(t))
	}
}

// Value is a tagged property value. Payload holds the Go-native
// representation matching Tag:
//
//	TagNull      -> nil
//	TagBool      -> bool
//	TagString    -> string
//	TagByte      -> int8
//	TagShort     -> int16
//	TagInt       -> int32
//	TagLong      -> int64
//	TagFloat     -> float32
//	TagDouble    -> float64
//	TagCharacter -> rune (int32)
//	TagNodeRef   -> NodeId (or *Handle when decoded with a NodeResolver)
//	TagList      -> []Value (non-nested: no element may itself be TagList)
type Value struct {
	Tag     ValueTag
	Payload any
}

// NewNodeRef returns a Value referencing the given node id.
func NewNodeRef(id NodeId) Value {
	return Value{Tag: TagNodeRef, Payload: id}
}

// Body is a node's fully materialized state: properties and the two opaque
// adjacency arrays interpreted by an external schema. See SPEC_FULL.md §3.
type Body struct {
	Id          NodeId
	Label       Label
	Properties  map[string]Value
	EdgeOffsets []int32
	Adjacency   []Value
}

// FlattenedProperties expands LIST-tagged properties into repeated
// (key, element) pairs, matching the decode-time flattening the owning
// schema layer expects. See SPEC_FULL.md §4.1 "LIST handling". The canonical
// Body.Properties map keeps exactly one entry per key; this method is a view
// over it, not a mutation.
func (b *Body) FlattenedProperties() []KeyValue {
	out := make([]KeyValue, 0, len(b.Properties))
	for k, v := range b.Properties {
		if v.Tag == TagList {
			elems, _ := v.Payload.([]Value)
			for _, e := range elems {
				out = append(out, KeyValue{Key: k, Value: e})
			}
			continue
		}
		out = append(out, KeyValue{Key: k, Value: v})
	}
	return out
}

// KeyValue is a single flattened (key, value) property pair.
type KeyValue struct {
	Key   string
	Value Value
}

// NodeResolver resolves a NodeId to its live Handle within the owning graph.
// The codec is parameterized by one so NODE_REF properties can be resolved
// on decode without the codec knowing about graph-wide bookkeeping.
type NodeResolver func(NodeId) (*Handle, error)
