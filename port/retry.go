package port

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/overflowgraph/refgraph"
)

// WithRetry wraps next with Fibonacci backoff, retrying Put and Delete up to
// maxRetries times. Get is retried the same way since a transient read
// failure should not be surfaced as refgraph.ErrNotFound. Adapted from
// SharedCode-sop's Retry helper in retry.go.
func WithRetry(next Port, maxRetries uint64) Port {
	return &retryingPort{next: next, maxRetries: maxRetries}
}

type retryingPort struct {
	next       Port
	maxRetries uint64
}

func (p *retryingPort) Put(ctx context.Context, id refgraph.NodeId, data []byte) error {
	return p.run(ctx, func(ctx context.Context) error {
		return p.next.Put(ctx, id, data)
	})
}

func (p *retryingPort) Get(ctx context.Context, id refgraph.NodeId) ([]byte, error) {
	var out []byte
	err := p.run(ctx, func(ctx context.Context) error {
		data, err := p.next.Get(ctx, id)
		if err != nil {
			return err
		}
		out = data
		return nil
	})
	return out, err
}

func (p *retryingPort) Delete(ctx context.Context, id refgraph.NodeId) error {
	return p.run(ctx, func(ctx context.Context) error {
		return p.next.Delete(ctx, id)
	})
}

func (p *retryingPort) run(ctx context.Context, task func(ctx context.Context) error) error {
	b := retry.NewFibonacci(1 * time.Second)
	err := retry.Do(ctx, retry.WithMaxRetries(p.maxRetries, b), func(ctx context.Context) error {
		err := task(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, refgraph.ErrNotFound) || !shouldRetry(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		slog.Warn("port: gave up retrying", "error", err)
	}
	return err
}

// shouldRetry reports whether err is worth retrying. Context cancellation,
// deadline expiry, and common permanent OS errors are not.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, os.ErrExist) {
		return false
	}
	switch {
	case errors.Is(err, syscall.EROFS),
		errors.Is(err, syscall.ENOSPC),
		errors.Is(err, syscall.EDQUOT),
		errors.Is(err, syscall.EACCES),
		errors.Is(err, syscall.EPERM),
		errors.Is(err, syscall.EINVAL):
		return false
	}
	return true
}
