package core

import (
	"context"
	"fmt"
	"log/slog"
	"six7/internal/listing"
	"six7/internal/metadata"
	"six7/internal/metrics"
	"six7/internal/storage"
	"six7/internal/tracing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store is the object store consumed by the HTTP layer. It combines the
// storage engine holding the bytes with the sidecar metadata database
// holding content types, and instruments every operation.
//
// Mutations of a single key are serialized so the content and its sidecar
// row change together. Reads and listings take no lock and may observe a
// mutation that is in progress.
type Store struct {
	engine   storage.StorageEngine
	meta     *metadata.Store
	lister   *listing.Engine
	locks    keyLocks
	observer metrics.StorageObserver
	tracer   trace.Tracer
}

// NewStore creates a Store. observer may be nil.
func NewStore(engine storage.StorageEngine, meta *metadata.Store, observer metrics.StorageObserver) *Store {
	return &Store{
		engine:   engine,
		meta:     meta,
		lister:   listing.NewEngine(engine),
		observer: observer,
		tracer:   tracing.Tracer(),
	}
}

// begin starts a span for op and returns a function that finishes it and
// records the outcome.
func (s *Store) begin(ctx context.Context, op string, bucket string, key string) (context.Context, func(bytes int64, err error)) {
	attrs := []attribute.KeyValue{attribute.String("s3.bucket", bucket)}
	if key != "" {
		attrs = append(attrs, attribute.String("s3.key", key))
	}

	ctx, span := s.tracer.Start(ctx, "store."+op, trace.WithAttributes(attrs...))
	start := time.Now()

	return ctx, func(bytes int64, err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if s.observer != nil {
			s.observer.Observe(op, bytes, err, time.Since(start))
		}
	}
}

func (s *Store) CreateBucket(ctx context.Context, name string) (err error) {
	ctx, finish := s.begin(ctx, "create_bucket", name, "")
	defer func() { finish(0, err) }()

	return s.engine.CreateBucket(ctx, name)
}

func (s *Store) BucketExists(ctx context.Context, name string) bool {
	return s.engine.BucketExists(ctx, name)
}

func (s *Store) ListBuckets(ctx context.Context) (buckets []storage.BucketInfo, err error) {
	ctx, finish := s.begin(ctx, "list_buckets", "", "")
	defer func() { finish(0, err) }()

	return s.engine.ListBuckets(ctx)
}

// PutObject writes data under key, creating intermediate directories as
// needed, and records contentType in the sidecar. An empty contentType
// clears any previously recorded one.
//
// The sidecar row is written before the content is renamed into place. A
// failed sidecar write leaves the previous object untouched; a failed content
// write restores the previous row.
func (s *Store) PutObject(ctx context.Context, bucket string, key string, data []byte, contentType string) (meta storage.ObjectMetadata, err error) {
	ctx, finish := s.begin(ctx, "put", bucket, key)
	defer func() { finish(int64(len(data)), err) }()

	unlock := s.locks.lock(bucket, key)
	defer unlock()

	prev, hadPrev, err := s.meta.ContentType(ctx, bucket, key)
	if err != nil {
		return storage.ObjectMetadata{}, fmt.Errorf("put %s/%s: %w: %w", bucket, key, storage.ErrIOFailure, err)
	}

	if err := s.meta.PutContentType(ctx, bucket, key, contentType); err != nil {
		return storage.ObjectMetadata{}, fmt.Errorf("put %s/%s: %w: %w", bucket, key, storage.ErrIOFailure, err)
	}

	meta, err = s.engine.PutObject(ctx, bucket, key, data, contentType)
	if err != nil {
		s.restoreContentType(bucket, key, prev, hadPrev)
		return storage.ObjectMetadata{}, err
	}

	return meta, nil
}

// GetObject returns the object's bytes together with metadata describing
// exactly those bytes.
func (s *Store) GetObject(ctx context.Context, bucket string, key string) (data []byte, meta storage.ObjectMetadata, err error) {
	ctx, finish := s.begin(ctx, "get", bucket, key)
	defer func() { finish(int64(len(data)), err) }()

	data, info, err := s.engine.ReadObject(ctx, bucket, key)
	if err != nil {
		return nil, storage.ObjectMetadata{}, err
	}

	meta = storage.ObjectMetadata{
		Key:          key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ETag:         storage.Fingerprint(data),
		ContentType:  s.contentType(ctx, bucket, key),
	}
	return data, meta, nil
}

// HeadObject returns the object's metadata. The ETag is recomputed from the
// stored bytes on every call.
func (s *Store) HeadObject(ctx context.Context, bucket string, key string) (meta storage.ObjectMetadata, err error) {
	ctx, finish := s.begin(ctx, "head", bucket, key)
	defer func() { finish(0, err) }()

	meta, err = s.engine.HeadObject(ctx, bucket, key)
	if err != nil {
		return storage.ObjectMetadata{}, err
	}

	meta.ContentType = s.contentType(ctx, bucket, key)
	return meta, nil
}

// DeleteObject removes the object and its sidecar record. Deleting a
// missing object reports storage.ErrNotFound. The sidecar record goes first,
// so a failure at either step leaves the object readable.
func (s *Store) DeleteObject(ctx context.Context, bucket string, key string) (err error) {
	ctx, finish := s.begin(ctx, "delete", bucket, key)
	defer func() { finish(0, err) }()

	unlock := s.locks.lock(bucket, key)
	defer unlock()

	if _, err := s.engine.StatObject(ctx, bucket, key); err != nil {
		return err
	}

	prev, hadPrev, err := s.meta.ContentType(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w: %w", bucket, key, storage.ErrIOFailure, err)
	}

	if err := s.meta.DeleteContentType(ctx, bucket, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w: %w", bucket, key, storage.ErrIOFailure, err)
	}

	if err := s.engine.DeleteObject(ctx, bucket, key); err != nil {
		s.restoreContentType(bucket, key, prev, hadPrev)
		return err
	}
	return nil
}

// restoreContentType puts back the sidecar row a failed mutation replaced.
// It runs on a fresh context since the request's may already be done.
func (s *Store) restoreContentType(bucket string, key string, contentType string, ok bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if ok {
		err = s.meta.PutContentType(ctx, bucket, key, contentType)
	} else {
		err = s.meta.DeleteContentType(ctx, bucket, key)
	}
	if err != nil {
		slog.Error("Restore content type", "bucket", bucket, "key", key, "err", err)
	}
}

// ListObjects lists bucket according to q. A missing bucket reports
// storage.ErrNotFound; an invalid query storage.ErrInvalidInput.
func (s *Store) ListObjects(ctx context.Context, bucket string, q listing.Query) (result listing.Result, err error) {
	ctx, finish := s.begin(ctx, "list", bucket, "")
	defer func() { finish(0, err) }()

	result, err = s.lister.List(ctx, bucket, q)
	if err != nil {
		return listing.Result{}, err
	}

	for i := range result.Contents {
		result.Contents[i].ContentType = s.contentType(ctx, bucket, result.Contents[i].Key)
	}
	return result, nil
}

// contentType looks up the sidecar record. Lookup failures are logged and
// reported as an absent content type; they never fail the read.
func (s *Store) contentType(ctx context.Context, bucket string, key string) string {
	ct, _, err := s.meta.ContentType(ctx, bucket, key)
	if err != nil {
		slog.Warn("Lookup content type", "bucket", bucket, "key", key, "err", err)
		return ""
	}
	return ct
}
