// Package cassandrastore provides a Persistence Port backed by a Cassandra
// table, for deployments that already run a Cassandra cluster for other
// storage and want overflow bodies replicated the same way. Adapted from
// SharedCode-sop's cassandra package: connection.go's cluster/session setup
// and keyspace/table auto-creation, and blob_store.go's single-table
// GetOne/Add/Remove query shape, narrowed from SOP's per-store blob tables
// down to one fixed table holding node bodies keyed by NodeId.
package cassandrastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/overflowgraph/refgraph"
)

// Options configures the Cassandra cluster connection and keyspace/table
// used for overflow storage.
type Options struct {
	// ClusterHosts lists contact points for the Cassandra cluster.
	ClusterHosts []string
	// Keyspace is the keyspace holding the node-body table.
	Keyspace string
	// Table is the table name within Keyspace.
	Table string
	// Consistency is the consistency level used for all queries.
	Consistency gocql.Consistency
	// ConnectionTimeout is the session connection timeout.
	ConnectionTimeout time.Duration
	// ReplicationClause defines the keyspace replication, e.g. SimpleStrategy.
	ReplicationClause string
}

// DefaultOptions returns sane single-node development defaults.
func DefaultOptions() Options {
	return Options{
		ClusterHosts:      []string{"127.0.0.1"},
		Keyspace:          "refgraph",
		Table:             "node_bodies",
		Consistency:       gocql.LocalQuorum,
		ReplicationClause: "{'class':'SimpleStrategy', 'replication_factor':1}",
	}
}

// Store is a Cassandra-backed Persistence Port.
type Store struct {
	session *gocql.Session
	opts    Options
}

// Open connects to the cluster described by opts, creating the keyspace and
// node-body table if they do not already exist.
func Open(opts Options) (*Store, error) {
	if opts.Keyspace == "" {
		opts.Keyspace = "refgraph"
	}
	if opts.Table == "" {
		opts.Table = "node_bodies"
	}
	if opts.Consistency == gocql.Any {
		opts.Consistency = gocql.LocalQuorum
	}
	if opts.ReplicationClause == "" {
		opts.ReplicationClause = "{'class':'SimpleStrategy', 'replication_factor':1}"
	}

	cluster := gocql.NewCluster(opts.ClusterHosts...)
	cluster.Consistency = opts.Consistency
	if opts.ConnectionTimeout > 0 {
		cluster.ConnectTimeout = opts.ConnectionTimeout
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("%w: cassandra: %w", refgraph.ErrPersistenceFailed, err)
	}

	createKeyspace := fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = %s;", opts.Keyspace, opts.ReplicationClause)
	if err := session.Query(createKeyspace).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("%w: create keyspace %s: %w", refgraph.ErrPersistenceFailed, opts.Keyspace, err)
	}

	createTable := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (id bigint PRIMARY KEY, body blob);", opts.Keyspace, opts.Table)
	if err := session.Query(createTable).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("%w: create table %s: %w", refgraph.ErrPersistenceFailed, opts.Table, err)
	}

	return &Store{session: session, opts: opts}, nil
}

// Close releases the underlying Cassandra session.
func (s *Store) Close() {
	s.session.Close()
}

func (s *Store) Put(ctx context.Context, id refgraph.NodeId, data []byte) error {
	stmt := fmt.Sprintf("INSERT INTO %s.%s (id, body) VALUES (?, ?);", s.opts.Keyspace, s.opts.Table)
	qry := s.session.Query(stmt, int64(id), data).WithContext(ctx)
	if err := qry.Exec(); err != nil {
		return fmt.Errorf("%w: node %d: %w", refgraph.ErrPersistenceFailed, id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id refgraph.NodeId) ([]byte, error) {
	stmt := fmt.Sprintf("SELECT body FROM %s.%s WHERE id = ?;", s.opts.Keyspace, s.opts.Table)
	qry := s.session.Query(stmt, int64(id)).WithContext(ctx)

	var body []byte
	err := qry.Scan(&body)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, refgraph.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: node %d: %w", refgraph.ErrPersistenceFailed, id, err)
	}
	return body, nil
}

func (s *Store) Delete(ctx context.Context, id refgraph.NodeId) error {
	stmt := fmt.Sprintf("DELETE FROM %s.%s WHERE id = ?;", s.opts.Keyspace, s.opts.Table)
	qry := s.session.Query(stmt, int64(id)).WithContext(ctx)
	if err := qry.Exec(); err != nil {
		return fmt.Errorf("%w: node %d: %w", refgraph.ErrPersistenceFailed, id, err)
	}
	return nil
}
