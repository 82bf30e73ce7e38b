package refgraph

import "github.com/google/uuid"

// InstanceId labels a running graph instance for logs and metrics. It plays
// no role in the wire format or any invariant; it exists purely so that logs
// from multiple graph instances in one process can be told apart, the same
// way SharedCode-sop threads a google/uuid-based identity through its
// transaction and store bookkeeping.
type InstanceId uuid.UUID

// NewInstanceId returns a fresh random instance id.
func NewInstanceId() InstanceId {
	return InstanceId(uuid.New())
}

func (id InstanceId) String() string {
	return uuid.UUID(id).String()
}
