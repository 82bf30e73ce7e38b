package port

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/overflowgraph/refgraph"
)

// Metrics collectors for the Persistence Port, in the style of
// michaelbomholt665-code-watch's package-level promauto vars.
var (
	putLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "refgraph_port_put_seconds",
		Help:    "Latency of Persistence Port Put calls.",
		Buckets: prometheus.DefBuckets,
	})
	getLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "refgraph_port_get_seconds",
		Help:    "Latency of Persistence Port Get calls.",
		Buckets: prometheus.DefBuckets,
	})
	putErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refgraph_port_put_errors_total",
		Help: "Total number of failed Persistence Port Put calls.",
	})
	getErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refgraph_port_get_errors_total",
		Help: "Total number of failed Persistence Port Get calls.",
	})
	bytesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refgraph_port_bytes_written_total",
		Help: "Total number of bytes written through the Persistence Port.",
	})
)

// WithMetrics wraps next, recording latency and error counters for every
// Put and Get call against the package-level Prometheus collectors above.
// Delete passes through without being recorded.
func WithMetrics(next Port) Port {
	return &metricsPort{next: next}
}

type metricsPort struct {
	next Port
}

func (p *metricsPort) Put(ctx context.Context, id refgraph.NodeId, data []byte) error {
	start := time.Now()
	err := p.next.Put(ctx, id, data)
	putLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		putErrorsTotal.Inc()
		return err
	}
	bytesWrittenTotal.Add(float64(len(data)))
	return nil
}

func (p *metricsPort) Get(ctx context.Context, id refgraph.NodeId) ([]byte, error) {
	start := time.Now()
	data, err := p.next.Get(ctx, id)
	getLatency.Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, refgraph.ErrNotFound) {
		getErrorsTotal.Inc()
	}
	return data, err
}

func (p *metricsPort) Delete(ctx context.Context, id refgraph.NodeId) error {
	return p.next.Delete(ctx, id)
}
