package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"

	"github.com/overflowgraph/refgraph"
)

func sampleBody() *refgraph.Body {
	return &refgraph.Body{
		Id:    42,
		Label: "X",
		Properties: map[string]refgraph.Value{
			"a": {Tag: refgraph.TagInt, Payload: int32(7)},
			"b": {Tag: refgraph.TagList, Payload: []refgraph.Value{
				{Tag: refgraph.TagString, Payload: "u"},
				{Tag: refgraph.TagString, Payload: "v"},
			}},
		},
		EdgeOffsets: []int32{0, 2},
		Adjacency: []refgraph.Value{
			refgraph.NewNodeRef(43),
			refgraph.NewNodeRef(44),
		},
	}
}

func TestRoundTrip(t *testing.T) {
	c := NewCodec(0)
	body := sampleBody()

	data, err := c.Encode(body)
	require.NoError(t, err)

	decoded, err := c.Decode(data, nil)
	require.NoError(t, err)

	assert.Equal(t, body.Id, decoded.Id)
	assert.Equal(t, body.Label, decoded.Label)
	assert.Equal(t, body.EdgeOffsets, decoded.EdgeOffsets)
	assert.Equal(t, body.Adjacency, decoded.Adjacency)
	assert.Equal(t, body.Properties, decoded.Properties)
}

func TestDecodeRefReadsPrefixOnly(t *testing.T) {
	c := NewCodec(0)
	body := sampleBody()
	data, err := c.Encode(body)
	require.NoError(t, err)

	id, label, err := c.DecodeRef(data)
	require.NoError(t, err)
	assert.Equal(t, body.Id, id)
	assert.Equal(t, body.Label, label)
}

func TestDecodeResolvesNodeRefsWhenResolverProvided(t *testing.T) {
	c := NewCodec(0)
	body := sampleBody()
	data, err := c.Encode(body)
	require.NoError(t, err)

	resolved := map[refgraph.NodeId]*refgraph.Handle{
		43: refgraph.NewHandle(43, "X", nil, nil, nil),
		44: refgraph.NewHandle(44, "X", nil, nil, nil),
	}
	decoded, err := c.Decode(data, func(id refgraph.NodeId) (*refgraph.Handle, error) {
		return resolved[id], nil
	})
	require.NoError(t, err)
	require.Len(t, decoded.Adjacency, 2)
	h, ok := decoded.Adjacency[0].Payload.(*refgraph.Handle)
	require.True(t, ok)
	assert.Equal(t, refgraph.NodeId(43), h.Id)
}

func TestEncodeRejectsUnencodableTag(t *testing.T) {
	c := NewCodec(0)
	body := &refgraph.Body{
		Id:    1,
		Label: "X",
		Properties: map[string]refgraph.Value{
			"bad": {Tag: refgraph.ValueTag(99), Payload: "nope"},
		},
	}
	_, err := c.Encode(body)
	require.Error(t, err)
	assert.True(t, errors.Is(err, refgraph.ErrUnencodableValue))
}

func TestEncodeRejectsNestedList(t *testing.T) {
	c := NewCodec(0)
	body := &refgraph.Body{
		Id:    1,
		Label: "X",
		Properties: map[string]refgraph.Value{
			"nested": {Tag: refgraph.TagList, Payload: []refgraph.Value{
				{Tag: refgraph.TagList, Payload: []refgraph.Value{}},
			}},
		},
	}
	_, err := c.Encode(body)
	require.Error(t, err)
	assert.True(t, errors.Is(err, refgraph.ErrUnencodableValue))
}

func TestDecodeRejectsShortInput(t *testing.T) {
	c := NewCodec(0)
	_, err := c.Decode([]byte{0x01}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, refgraph.ErrCorruptFormat))
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	require.NoError(t, w.WriteUint64(1))
	require.NoError(t, w.WriteString("X"))
	require.NoError(t, w.WriteMapHeader(1))
	require.NoError(t, w.WriteString("k"))
	require.NoError(t, w.WriteArrayHeader(2))
	require.NoError(t, w.WriteInt8(120))
	require.NoError(t, w.WriteBool(true))
	require.NoError(t, w.WriteArrayHeader(0))
	require.NoError(t, w.WriteArrayHeader(0))
	require.NoError(t, w.Flush())

	c := NewCodec(0)
	_, err := c.Decode(buf.Bytes(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, refgraph.ErrCorruptFormat))
}

func TestDecodeEnforcesCollectionSizeLimit(t *testing.T) {
	c := NewCodec(0)
	body := sampleBody()
	data, err := c.Encode(body)
	require.NoError(t, err)

	tiny := NewCodec(1)
	_, err = tiny.Decode(data, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, refgraph.ErrCorruptFormat))
}

func TestStatsAdvanceOnDecode(t *testing.T) {
	c := NewCodec(0)
	body := sampleBody()
	data, err := c.Encode(body)
	require.NoError(t, err)

	before := c.Stats().NodesDecoded
	_, err = c.Decode(data, nil)
	require.NoError(t, err)
	assert.Equal(t, before+1, c.Stats().NodesDecoded)
}
