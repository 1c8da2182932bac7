package listing

import (
	"fmt"
	"net/url"
	"six7/internal/storage"
	"strconv"
)

const (
	// DefaultMaxKeys is used when the caller does not ask for a page size.
	DefaultMaxKeys = 1000

	// MaxKeysLimit is the hard cap on returned contents. Larger requests are
	// clamped, not rejected.
	MaxKeysLimit = 1000
)

// Query holds the parameters of a bucket listing. Empty strings mean the
// parameter was not supplied; a zero MaxKeys means the default.
type Query struct {
	Prefix    string
	Delimiter string
	MaxKeys   int

	// ContinuationToken is accepted and echoed back but does not resume a
	// previous listing: every call scans from the start.
	ContinuationToken string
}

// Normalize validates q and fills in defaults. A negative MaxKeys is
// rejected with storage.ErrInvalidInput; values above MaxKeysLimit are
// clamped.
func (q Query) Normalize() (Query, error) {
	switch {
	case q.MaxKeys < 0:
		return Query{}, fmt.Errorf("%w: max-keys must be positive, got %d", storage.ErrInvalidInput, q.MaxKeys)
	case q.MaxKeys == 0:
		q.MaxKeys = DefaultMaxKeys
	case q.MaxKeys > MaxKeysLimit:
		q.MaxKeys = MaxKeysLimit
	}
	return q, nil
}

// ParseQuery builds a normalized Query from S3 ListObjects query parameters.
// Both the V1 "marker" and the V2 "continuation-token" are accepted as the
// continuation token.
func ParseQuery(values url.Values) (Query, error) {
	q := Query{
		Prefix:            values.Get("prefix"),
		Delimiter:         values.Get("delimiter"),
		ContinuationToken: values.Get("continuation-token"),
	}
	if q.ContinuationToken == "" {
		q.ContinuationToken = values.Get("marker")
	}

	if raw := values.Get("max-keys"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Query{}, fmt.Errorf("%w: max-keys %q is not an integer", storage.ErrInvalidInput, raw)
		}
		if n < 1 {
			return Query{}, fmt.Errorf("%w: max-keys must be positive, got %d", storage.ErrInvalidInput, n)
		}
		// Clamp before Normalize so huge values don't depend on int size.
		q.MaxKeys = min(n, MaxKeysLimit)
	}

	return q.Normalize()
}
