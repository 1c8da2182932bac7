package storage

import (
	"path/filepath"
	"strings"
)

// MetadataDirName is the reserved directory under the storage root that holds
// the sidecar metadata database and in-flight uploads. It can never be a
// bucket because S3 bucket names must start with a letter or digit.
const MetadataDirName = ".six7"

// PathMapper maps the logical (bucket, key) namespace onto the filesystem.
// It owns nothing but the root directory and performs no sanitization: the
// caller is responsible for rejecting traversal sequences before they get
// here.
type PathMapper struct {
	root string
}

// NewPathMapper creates a PathMapper rooted at root.
func NewPathMapper(root string) PathMapper {
	return PathMapper{root: root}
}

// Root returns the storage root directory.
func (m PathMapper) Root() string {
	return m.root
}

// BucketPath returns the directory backing bucket.
func (m PathMapper) BucketPath(bucket string) string {
	return filepath.Join(m.root, bucket)
}

// ObjectPath returns the file backing key within bucket. Key separators
// become directory separators.
func (m PathMapper) ObjectPath(bucket string, key string) string {
	return filepath.Join(m.BucketPath(bucket), filepath.FromSlash(key))
}

// TempDir returns the directory used for staging writes before they are
// renamed into place.
func (m PathMapper) TempDir() string {
	return filepath.Join(m.root, MetadataDirName, "tmp")
}

// KeyFromPath converts a file path below the bucket directory back into an
// object key.
func (m PathMapper) KeyFromPath(bucket string, path string) (string, error) {
	rel, err := filepath.Rel(m.BucketPath(bucket), path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// IsReservedName reports whether name is used internally and must be hidden
// from bucket listings.
func IsReservedName(name string) bool {
	return strings.HasPrefix(name, ".")
}
