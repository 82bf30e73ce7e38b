// Package redisstore provides a Persistence Port backed by Redis, for
// deployments that already run a Redis cluster and want shared overflow
// storage across multiple graph processes. Adapted from SharedCode-sop's
// redis client wrapper (redis/connection.go, redis/redis.go): same Options
// shape and Set/Get/Del command usage, generalized to store raw node bytes
// under a NodeId-derived key instead of arbitrary cache entries.
package redisstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/overflowgraph/refgraph"
)

// Options configures the Redis connection.
type Options struct {
	Address   string
	Password  string
	DB        int
	TLSConfig *tls.Config
	// KeyPrefix is prepended to every node key, so multiple graphs can share
	// one Redis instance without colliding.
	KeyPrefix string
	// Expiration, if positive, sets a TTL on every Put. Zero means no
	// expiration, matching the default overflow semantics.
	Expiration time.Duration
}

// DefaultOptions returns sane local-development defaults.
func DefaultOptions() Options {
	return Options{Address: "localhost:6379", KeyPrefix: "refgraph:"}
}

// Store is a Redis-backed Persistence Port.
type Store struct {
	client *redis.Client
	opts   Options
}

// Open connects to Redis per opts.
func Open(opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:      opts.Address,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	})
	return &Store{client: client, opts: opts}
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(id refgraph.NodeId) string {
	return s.opts.KeyPrefix + strconv.FormatUint(uint64(id), 10)
}

func (s *Store) Put(ctx context.Context, id refgraph.NodeId, data []byte) error {
	if err := s.client.Set(ctx, s.key(id), data, s.opts.Expiration).Err(); err != nil {
		return fmt.Errorf("%w: node %d: %w", refgraph.ErrPersistenceFailed, id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id refgraph.NodeId) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, refgraph.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: node %d: %w", refgraph.ErrPersistenceFailed, id, err)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, id refgraph.NodeId) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: node %d: %w", refgraph.ErrPersistenceFailed, id, err)
	}
	return nil
}
