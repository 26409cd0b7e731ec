package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Package storage holds the blob side of an upload: the file bytes live in an
// S3-compatible bucket while their metadata row lives in PostgreSQL.

var (
	// ErrBucketNotFound is returned by Put when the bucket is gone. The upload path
	// provisions it with EnsureBucket and retries once.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrObjectNotFound is returned for unknown keys.
	ErrObjectNotFound = errors.New("object not found")
)

// PutObjectOptions describe the blob being written. Size is the exact byte count; the
// upload path has always measured the body before it gets here.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo is what the backend reports about a stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the blob store behind uploads. Implementations are safe for concurrent use.
type Storage interface {
	// EnsureBucket creates the bucket if it does not exist.
	EnsureBucket(ctx context.Context) error
	// Put writes r under key.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a download URL valid for expiry.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
