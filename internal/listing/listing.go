// Package listing implements S3-style bucket listings over an unindexed
// directory walk: prefix filtering, delimiter aggregation into common
// prefixes and max-keys truncation.
package listing

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"six7/internal/storage"
	"sort"
	"strings"
)

// Page is the outcome of filtering an enumeration. Contents keep the
// enumeration order; CommonPrefixes are deduplicated and sorted.
type Page struct {
	Contents       []storage.ObjectInfo
	CommonPrefixes []string
	IsTruncated    bool
}

// Result is a listing whose contents carry full object metadata.
type Result struct {
	Contents       []storage.ObjectMetadata
	CommonPrefixes []string
	IsTruncated    bool
}

// FilterAndAggregate consumes entries and applies q to them. q is expected
// to be normalized. The whole sequence is consumed so that common prefixes
// past the max-keys cut are still reported. The first error yielded by the
// sequence aborts the listing.
func FilterAndAggregate(entries iter.Seq2[storage.ObjectInfo, error], q Query) (Page, error) {
	maxKeys := q.MaxKeys
	if maxKeys <= 0 || maxKeys > MaxKeysLimit {
		maxKeys = DefaultMaxKeys
	}

	var page Page
	prefixes := map[string]struct{}{}

	for entry, err := range entries {
		if err != nil {
			return Page{}, err
		}

		if !strings.HasPrefix(entry.Key, q.Prefix) {
			continue
		}

		if q.Delimiter != "" {
			remainder := entry.Key[len(q.Prefix):]
			if idx := strings.Index(remainder, q.Delimiter); idx >= 0 {
				prefixes[q.Prefix+remainder[:idx+len(q.Delimiter)]] = struct{}{}
				continue
			}
		}

		if len(page.Contents) == maxKeys {
			page.IsTruncated = true
			continue
		}
		page.Contents = append(page.Contents, entry)
	}

	page.CommonPrefixes = make([]string, 0, len(prefixes))
	for p := range prefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, p)
	}
	sort.Strings(page.CommonPrefixes)

	return page, nil
}

// Source is what the Engine needs from the object store.
type Source interface {
	Walk(ctx context.Context, bucket string) iter.Seq2[storage.ObjectInfo, error]
	HeadObject(ctx context.Context, bucket string, key string) (storage.ObjectMetadata, error)
}

// Engine lists buckets of a Source.
type Engine struct {
	source Source
}

// NewEngine returns an Engine reading from source.
func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

// List walks bucket and returns the entries selected by q. Fingerprints are
// only computed for the entries that make it into the result. The listing is
// not a snapshot: an object removed between the walk and its fingerprint is
// dropped from the result. IsTruncated is decided before that drop, so a
// truncated result may carry fewer than MaxKeys entries.
func (e *Engine) List(ctx context.Context, bucket string, q Query) (Result, error) {
	q, err := q.Normalize()
	if err != nil {
		return Result{}, err
	}

	page, err := FilterAndAggregate(e.source.Walk(ctx, bucket), q)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Contents:       make([]storage.ObjectMetadata, 0, len(page.Contents)),
		CommonPrefixes: page.CommonPrefixes,
		IsTruncated:    page.IsTruncated,
	}

	for _, entry := range page.Contents {
		meta, err := e.source.HeadObject(ctx, bucket, entry.Key)
		if errors.Is(err, storage.ErrNotFound) {
			slog.Debug("Object vanished during listing", "bucket", bucket, "key", entry.Key)
			continue
		}
		if err != nil {
			return Result{}, err
		}
		result.Contents = append(result.Contents, meta)
	}

	return result, nil
}
