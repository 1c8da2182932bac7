package storage

import (
	"context"
	"iter"
)

// StorageEngine defines the interface for a storage backend that manages
// objects organized into buckets and addressed by key.
type StorageEngine interface {
	// CreateBucket creates the bucket if it does not already exist.
	CreateBucket(ctx context.Context, bucket string) error

	// BucketExists reports whether the bucket exists.
	BucketExists(ctx context.Context, bucket string) bool

	// ListBuckets returns every bucket under the storage root.
	ListBuckets(ctx context.Context) ([]BucketInfo, error)

	// PutObject replaces the object's content with data. The content type
	// is echoed in the returned metadata but not persisted by the engine.
	PutObject(ctx context.Context, bucket string, key string, data []byte, contentType string) (ObjectMetadata, error)

	// GetObject returns the object's bytes.
	GetObject(ctx context.Context, bucket string, key string) ([]byte, error)

	// ReadObject returns the object's bytes and the stat of the file they
	// were read from.
	ReadObject(ctx context.Context, bucket string, key string) ([]byte, ObjectInfo, error)

	// HeadObject returns the object's metadata, recomputing the ETag from
	// the stored bytes.
	HeadObject(ctx context.Context, bucket string, key string) (ObjectMetadata, error)

	// StatObject returns the object's size and modification time without
	// reading its content.
	StatObject(ctx context.Context, bucket string, key string) (ObjectInfo, error)

	// DeleteObject removes the object.
	DeleteObject(ctx context.Context, bucket string, key string) error

	// Walk lazily enumerates every object in the bucket.
	Walk(ctx context.Context, bucket string) iter.Seq2[ObjectInfo, error]
}
