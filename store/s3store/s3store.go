// Package s3store provides a Persistence Port backed by an S3-compatible
// object store, for deployments that want overflow storage decoupled from
// any single machine's disk. Adapted from hupe1980-vecgo's blobstore/s3
// package: the same client/bucket/prefix shape, with a missing object
// detected from GetObject's NoSuchKey error, simplified from its streaming
// Blob/WritableBlob abstraction down to whole-object Put/Get/Delete since
// node bodies are bounded-size blobs.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/overflowgraph/refgraph"
)

// apiClient is the subset of *s3.Client this package calls, narrowed so
// tests can substitute a mock rather than talking to real S3 or a fake
// server, mirroring hupe1980-vecgo's blobstore/s3 Client interface.
type apiClient interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store is an S3-backed Persistence Port.
type Store struct {
	client apiClient
	bucket string
	prefix string
}

// New returns a Store writing objects under bucket, keyed below prefix.
func New(client *s3.Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *Store) key(id refgraph.NodeId) string {
	return path.Join(s.prefix, strconv.FormatUint(uint64(id), 10))
}

func (s *Store) Put(ctx context.Context, id refgraph.NodeId, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("%w: node %d: %w", refgraph.ErrPersistenceFailed, id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id refgraph.NodeId) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, refgraph.ErrNotFound
		}
		return nil, fmt.Errorf("%w: node %d: %w", refgraph.ErrPersistenceFailed, id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: node %d: %w", refgraph.ErrPersistenceFailed, id, err)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, id refgraph.NodeId) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("%w: node %d: %w", refgraph.ErrPersistenceFailed, id, err)
	}
	return nil
}
