package storage

import "time"

// ObjectInfo is a single entry produced by enumerating a bucket.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectMetadata describes a stored object. It is derived from the file on
// every call; ContentType is empty when it is not known.
type ObjectMetadata struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
}

// BucketInfo describes a bucket directory.
type BucketInfo struct {
	Name         string
	CreationDate time.Time
}
