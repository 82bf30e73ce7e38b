// Package heapmonitor provides a reference implementation of the heap
// monitor interface consumed by the eviction scheduler (SPEC_FULL.md §6):
// an external sampler that periodically checks runtime.MemStats and invokes
// OnHeapAboveThreshold when heap usage crosses a configured threshold. Log
// lines use github.com/dustin/go-humanize to format byte counts, matching
// janelia-flyem-dvid's push_local.go usage of humanize.Bytes for progress
// logging.
package heapmonitor

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
)

// Notifiable is the one method the scheduler exposes to a heap monitor.
type Notifiable interface {
	OnHeapAboveThreshold()
}

// Monitor polls runtime.MemStats at a fixed interval and calls
// target.OnHeapAboveThreshold whenever HeapAlloc exceeds ThresholdBytes.
type Monitor struct {
	target         Notifiable
	thresholdBytes uint64
	interval       time.Duration
}

// New returns a Monitor that samples every interval and notifies target once
// HeapAlloc exceeds thresholdBytes.
func New(target Notifiable, thresholdBytes uint64, interval time.Duration) *Monitor {
	return &Monitor{target: target, thresholdBytes: thresholdBytes, interval: interval}
}

// Run blocks, sampling until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sampleOnce()
		}
	}
}

func (m *Monitor) sampleOnce() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	if stats.HeapAlloc <= m.thresholdBytes {
		return
	}
	slog.Debug("heapmonitor: threshold exceeded",
		"heap_alloc", humanize.Bytes(stats.HeapAlloc),
		"threshold", humanize.Bytes(m.thresholdBytes))
	m.target.OnHeapAboveThreshold()
}
