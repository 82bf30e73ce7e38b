package refgraph

import "errors"

// Error taxonomy, see SPEC_FULL.md §7. Checked with errors.Is; wrapped with
// fmt.Errorf("...: %w", ...) by callers that need to attach context.
var (
	// ErrCorruptFormat is returned by codec decode on unknown tag, short read,
	// a structural mismatch, or a map/array size exceeding the configured limit.
	ErrCorruptFormat = errors.New("refgraph: corrupt format")

	// ErrUnencodableValue is returned by codec encode when a property or
	// adjacency value's tag falls outside the closed set, its payload does not
	// have the Go type its tag calls for, or a LIST contains a nested LIST.
	ErrUnencodableValue = errors.New("refgraph: unencodable value")

	// ErrLoadFailed wraps ErrCorruptFormat or a persistence error surfaced to
	// the caller of Handle.GetOrLoad.
	ErrLoadFailed = errors.New("refgraph: load failed")

	// ErrPersistenceFailed wraps a Persistence Port Put/Get failure observed
	// during an eviction round; the affected handle is left resident.
	ErrPersistenceFailed = errors.New("refgraph: persistence failed")

	// ErrCancelled is returned by ApplyBackpressure when the caller's context
	// is cancelled while waiting for P to reach zero.
	ErrCancelled = errors.New("refgraph: cancelled")

	// ErrTimedOut is returned by ApplyBackpressure when MaxBackpressureWait
	// elapses before P reaches zero.
	ErrTimedOut = errors.New("refgraph: backpressure wait timed out")

	// ErrShutdown is returned by the eviction Scheduler's DrainAll and
	// ApplyBackpressure when invoked after Close.
	ErrShutdown = errors.New("refgraph: shutdown")

	// ErrNotFound is returned by a Persistence Port Get when no bytes are
	// stored under the given id.
	ErrNotFound = errors.New("refgraph: not found")
)
