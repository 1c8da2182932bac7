package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
)

// LocalFileStorage is a StorageEngine implementation that stores objects on
// the local filesystem. Each bucket is a directory under the root and each
// object is a regular file whose path below the bucket directory is the
// object key, so keys containing "/" produce nested directories.
//
// There is no index: listings walk the directory tree on every call. There
// is no locking either; concurrent writers to the same key race and the last
// rename wins.
type LocalFileStorage struct {
	paths PathMapper
}

// NewLocalFileStorage creates a LocalFileStorage rooted at dataDir, creating
// the directory if needed.
func NewLocalFileStorage(dataDir string) (*LocalFileStorage, error) {
	if dataDir == "" {
		return nil, errors.New("data directory must not be empty")
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return &LocalFileStorage{paths: NewPathMapper(dataDir)}, nil
}

// Paths returns the path mapper used by the storage.
func (s *LocalFileStorage) Paths() PathMapper {
	return s.paths
}

func (s *LocalFileStorage) CreateBucket(ctx context.Context, bucket string) error {
	if err := os.MkdirAll(s.paths.BucketPath(bucket), 0o755); err != nil {
		return fmt.Errorf("create bucket %s: %w: %w", bucket, ErrIOFailure, err)
	}
	return nil
}

func (s *LocalFileStorage) BucketExists(ctx context.Context, bucket string) bool {
	info, err := os.Stat(s.paths.BucketPath(bucket))
	return err == nil && info.IsDir()
}

func (s *LocalFileStorage) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	entries, err := os.ReadDir(s.paths.Root())
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w: %w", ErrIOFailure, err)
	}

	buckets := make([]BucketInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || IsReservedName(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}

		buckets = append(buckets, BucketInfo{
			Name:         entry.Name(),
			CreationDate: info.ModTime().UTC(),
		})
	}

	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Name < buckets[j].Name
	})
	return buckets, nil
}

func (s *LocalFileStorage) PutObject(ctx context.Context, bucket string, key string, data []byte, contentType string) (ObjectMetadata, error) {
	objPath := s.paths.ObjectPath(bucket, key)

	if err := WriteFileAtomic(ctx, s.paths.TempDir(), objPath, bytes.NewReader(data)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ObjectMetadata{}, ctxErr
		}
		return ObjectMetadata{}, fmt.Errorf("put %s/%s: %w: %w", bucket, key, ErrIOFailure, err)
	}

	// The size reported back is what landed on disk, not what we were
	// handed.
	info, err := os.Stat(objPath)
	if err != nil {
		return ObjectMetadata{}, fmt.Errorf("put %s/%s: %w: %w", bucket, key, ErrIOFailure, err)
	}
	if info.Size() != int64(len(data)) {
		return ObjectMetadata{}, fmt.Errorf("put %s/%s: %w: short write: wrote %d of %d bytes", bucket, key, ErrIOFailure, info.Size(), len(data))
	}

	return ObjectMetadata{
		Key:          key,
		Size:         info.Size(),
		LastModified: info.ModTime().UTC(),
		ETag:         Fingerprint(data),
		ContentType:  contentType,
	}, nil
}

// statObject returns the file info for key, or ErrNotFound when the path is
// missing or is not a regular file.
func (s *LocalFileStorage) statObject(op string, bucket string, key string) (string, fs.FileInfo, error) {
	objPath := s.paths.ObjectPath(bucket, key)

	info, err := os.Stat(objPath)
	if err != nil {
		return "", nil, wrapError(op, bucket, key, err)
	}
	if !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("%s %s/%s: %w: not a regular file", op, bucket, key, ErrNotFound)
	}
	return objPath, info, nil
}

func (s *LocalFileStorage) GetObject(ctx context.Context, bucket string, key string) ([]byte, error) {
	data, _, err := s.ReadObject(ctx, bucket, key)
	return data, err
}

// ReadObject returns the object's bytes together with the size and
// modification time of the file they were read from. Both come from the same
// open descriptor, so a concurrent replace cannot mix two versions.
func (s *LocalFileStorage) ReadObject(ctx context.Context, bucket string, key string) ([]byte, ObjectInfo, error) {
	f, err := os.Open(s.paths.ObjectPath(bucket, key))
	if err != nil {
		return nil, ObjectInfo{}, wrapError("get", bucket, key, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, ObjectInfo{}, wrapError("get", bucket, key, err)
	}
	if !info.Mode().IsRegular() {
		return nil, ObjectInfo{}, fmt.Errorf("get %s/%s: %w: not a regular file", bucket, key, ErrNotFound)
	}

	data := make([]byte, info.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, ObjectInfo{}, wrapError("get", bucket, key, err)
	}

	return data, ObjectInfo{
		Key:          key,
		Size:         info.Size(),
		LastModified: info.ModTime().UTC(),
	}, nil
}

func (s *LocalFileStorage) HeadObject(ctx context.Context, bucket string, key string) (ObjectMetadata, error) {
	objPath, info, err := s.statObject("head", bucket, key)
	if err != nil {
		return ObjectMetadata{}, err
	}

	etag, err := FingerprintFile(objPath)
	if err != nil {
		return ObjectMetadata{}, wrapError("head", bucket, key, err)
	}

	return ObjectMetadata{
		Key:          key,
		Size:         info.Size(),
		LastModified: info.ModTime().UTC(),
		ETag:         etag,
	}, nil
}

func (s *LocalFileStorage) StatObject(ctx context.Context, bucket string, key string) (ObjectInfo, error) {
	_, info, err := s.statObject("stat", bucket, key)
	if err != nil {
		return ObjectInfo{}, err
	}

	return ObjectInfo{
		Key:          key,
		Size:         info.Size(),
		LastModified: info.ModTime().UTC(),
	}, nil
}

// DeleteObject removes the object's file. Intermediate directories that
// become empty are left behind.
func (s *LocalFileStorage) DeleteObject(ctx context.Context, bucket string, key string) error {
	objPath, _, err := s.statObject("delete", bucket, key)
	if err != nil {
		return err
	}

	if err := os.Remove(objPath); err != nil {
		return wrapError("delete", bucket, key, err)
	}
	return nil
}

// Walk performs a depth-first traversal of the bucket directory and yields
// one entry per regular file. The sequence is recomputed on every call and
// is not a snapshot: files created or removed while walking may or may not
// be observed.
func (s *LocalFileStorage) Walk(ctx context.Context, bucket string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		root := s.paths.BucketPath(bucket)

		info, err := os.Stat(root)
		if err != nil {
			yield(ObjectInfo{}, wrapError("list", bucket, "", err))
			return
		}
		if !info.IsDir() {
			yield(ObjectInfo{}, fmt.Errorf("list %s: %w: not a directory", bucket, ErrNotFound))
			return
		}

		stopped := false
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// A directory removed by a concurrent delete is simply gone.
				if path != root && errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}

			if err := ctx.Err(); err != nil {
				return err
			}

			if !d.Type().IsRegular() {
				return nil
			}

			fi, err := d.Info()
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}

			key, err := s.paths.KeyFromPath(bucket, path)
			if err != nil {
				return err
			}

			entry := ObjectInfo{
				Key:          key,
				Size:         fi.Size(),
				LastModified: fi.ModTime().UTC(),
			}
			if !yield(entry, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})

		if err == nil || stopped {
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			yield(ObjectInfo{}, err)
			return
		}
		yield(ObjectInfo{}, wrapError("list", bucket, "", err))
	}
}
