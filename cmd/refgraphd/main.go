// Command refgraphd wires a Handle Table, Codec, Persistence Port, and
// Eviction Scheduler into a running reference-manager instance, the way
// SharedCode-sop's examples/ harnesses wire a database and transaction
// together, with a heap monitor driving evictions instead of a caller.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/overflowgraph/refgraph"
	"github.com/overflowgraph/refgraph/codec"
	"github.com/overflowgraph/refgraph/config"
	"github.com/overflowgraph/refgraph/eviction"
	"github.com/overflowgraph/refgraph/handletable"
	"github.com/overflowgraph/refgraph/heapmonitor"
	"github.com/overflowgraph/refgraph/port"
	"github.com/overflowgraph/refgraph/store/badgerstore"
	"github.com/overflowgraph/refgraph/store/cassandrastore"
	"github.com/overflowgraph/refgraph/store/memstore"
	"github.com/overflowgraph/refgraph/store/redisstore"
	"github.com/overflowgraph/refgraph/store/s3store"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file; defaults are used if omitted")
	demoNodes := flag.Int("demo-nodes", 1000, "number of synthetic nodes to register for the demo run")
	flag.Parse()

	refgraph.ConfigureLogging()

	instanceId := refgraph.NewInstanceId()
	log := refgraph.ForInstance(instanceId)
	log.Info("starting refgraphd")

	opts := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		opts = loaded
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := buildPort(ctx, opts.Port)
	if err != nil {
		log.Error("failed to build persistence port", "error", err)
		os.Exit(1)
	}
	if closeStore != nil {
		defer closeStore()
	}

	table := handletable.New()
	c := codec.NewCodec(0)

	writeMode := eviction.WriteConservative
	if opts.Eviction.DirtyOnly {
		writeMode = eviction.WriteDirtyOnly
	}
	scheduler := eviction.New(table, c, store, eviction.Options{
		BatchSize:           opts.Eviction.BatchSize,
		WorkerCount:         opts.Eviction.WorkerCount,
		MaxBackpressureWait: opts.Eviction.MaxBackpressureWait,
		WriteMode:           writeMode,
	})
	defer scheduler.Close()

	monitor := heapmonitor.New(scheduler, 64<<20, 2*time.Second)
	go monitor.Run(ctx)

	loader := func(ctx context.Context, id refgraph.NodeId) (*refgraph.Body, error) {
		data, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return c.Decode(data, nil)
	}

	for i := 0; i < *demoNodes; i++ {
		id := refgraph.NodeId(i)
		body := &refgraph.Body{
			Id:    id,
			Label: "demo",
			Properties: map[string]refgraph.Value{
				"seq": {Tag: refgraph.TagInt, Payload: int32(i)},
			},
		}
		h := refgraph.NewHandle(id, "demo", body, table, loader)
		h.MarkDirty()
		if err := scheduler.ApplyBackpressure(ctx); err != nil {
			log.Warn("backpressure wait interrupted", "error", err)
			break
		}
	}

	fmt.Printf("registered %d demo handles, table size now %d\n", *demoNodes, table.Size())

	if err := scheduler.DrainAll(ctx); err != nil {
		log.Error("drain_all failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("drained all handles; %d total cleared\n", scheduler.ClearedTotal())
}

func buildPort(ctx context.Context, opts config.PortOptions) (port.Port, func(), error) {
	var base port.Port
	var closeFn func()

	switch opts.Backend {
	case "", "memory":
		base = memstore.New()
	case "badger":
		path := opts.Path
		if path == "" {
			path = "./refgraph-data"
		}
		store, err := badgerstore.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger store at %s: %w", path, err)
		}
		base = store
		closeFn = func() { _ = store.Close() }
	case "redis":
		redisOpts := redisstore.DefaultOptions()
		if opts.Address != "" {
			redisOpts.Address = opts.Address
		}
		store := redisstore.Open(redisOpts)
		base = store
		closeFn = func() { _ = store.Close() }
	case "s3":
		if opts.Bucket == "" {
			return nil, nil, fmt.Errorf("s3 port backend requires a bucket")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		base = s3store.New(client, opts.Bucket, opts.Prefix)
	case "cassandra":
		cassOpts := cassandrastore.DefaultOptions()
		if len(opts.ClusterHosts) > 0 {
			cassOpts.ClusterHosts = opts.ClusterHosts
		}
		if opts.Keyspace != "" {
			cassOpts.Keyspace = opts.Keyspace
		}
		store, err := cassandrastore.Open(cassOpts)
		if err != nil {
			return nil, nil, fmt.Errorf("open cassandra store: %w", err)
		}
		base = store
		closeFn = store.Close
	default:
		return nil, nil, fmt.Errorf("unsupported port backend %q", opts.Backend)
	}

	decorated := base
	if opts.Compress {
		decorated = port.WithCompression(decorated)
	}
	if opts.RetryEnabled {
		maxRetries := opts.MaxRetries
		if maxRetries == 0 {
			maxRetries = 5
		}
		decorated = port.WithRetry(decorated, maxRetries)
	}
	if opts.MetricsEnabled {
		decorated = port.WithMetrics(decorated)
	}
	return decorated, closeFn, nil
}
