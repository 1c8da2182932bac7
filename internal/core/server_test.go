package core_test

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"six7/internal/auth"
	"six7/internal/core"
	"six7/internal/metrics"
	"six7/internal/storage"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	AccessKeyID     = "minioadmin"
	SecretAccessKey = "minioadmin"
)

func testCredentials() auth.Credentials {
	return auth.Credentials{AccessKeyID: SecretAccessKey}
}

// NewTestServer creates a Server backed by a temporary data directory that
// accepts SigV4 and Basic credentials, and returns it along with an
// httptest.Server wrapping its handler.
func NewTestServer(t *testing.T, opts ...core.ConfigOption) (*core.Server, *httptest.Server) {
	t.Helper()

	creds := testCredentials()
	opts = append([]core.ConfigOption{
		core.WithDataDir(t.TempDir()),
		core.WithAuthEngine(auth.NewCompoundAuthEngine(
			auth.NewAwsHmacAuthEngine(creds),
			auth.NewBasicAuthEngine(creds),
		)),
	}, opts...)

	srv, err := core.NewServer(t.Context(), core.NewConfig(opts...))
	require.NoError(t, err, "NewServer error")

	httpSrv := httptest.NewServer(srv.Handler())

	t.Cleanup(func() { _ = srv.Close() })
	t.Cleanup(httpSrv.Close)

	return srv, httpSrv
}

type RequestOption func(*http.Request)

func WithContentType(contentType string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Content-Type", contentType)
	}
}

func WithContent(body []byte) func(*http.Request) {
	return func(req *http.Request) {
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
	}
}

func WithHeader(key string, value string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

func WithBasicAuth(accessKey string, secretKey string) func(*http.Request) {
	return func(req *http.Request) {
		req.SetBasicAuth(accessKey, secretKey)
	}
}

// WithoutAuth removes the default credentials from the request.
func WithoutAuth() func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Del("Authorization")
	}
}

func DoMethod(t *testing.T, method string, url string, opts ...RequestOption) *http.Response {
	t.Helper()
	client := http.DefaultClient
	req, err := http.NewRequestWithContext(t.Context(), method, url, nil)
	require.NoError(t, err, "creating "+method+" request")
	req.SetBasicAuth(AccessKeyID, SecretAccessKey)
	for _, opt := range opts {
		opt(req)
	}
	resp, err := client.Do(req)
	require.NoErrorf(t, err, "%s %s error", method, url)
	return resp
}

func DoPut(t *testing.T, url string, opts ...RequestOption) *http.Response {
	return DoMethod(t, http.MethodPut, url, opts...)
}

func DoGet(t *testing.T, url string, opts ...RequestOption) *http.Response {
	return DoMethod(t, http.MethodGet, url, opts...)
}

func DoHead(t *testing.T, url string, opts ...RequestOption) *http.Response {
	return DoMethod(t, http.MethodHead, url, opts...)
}

func DoDelete(t *testing.T, url string, opts ...RequestOption) *http.Response {
	return DoMethod(t, http.MethodDelete, url, opts...)
}

// DecodeS3Error decodes a minimal S3 error response and returns its Code.
func DecodeS3Error(t *testing.T, r io.Reader) string {
	t.Helper()
	var s3Err struct {
		Code string `xml:"Code"`
	}
	require.NoError(t, xml.NewDecoder(r).Decode(&s3Err), "decoding S3 error XML")
	return s3Err.Code
}

// CreateBucket creates bucket through the API and fails the test on error.
func CreateBucket(t *testing.T, httpSrv *httptest.Server, bucket string) {
	t.Helper()
	resp := DoPut(t, httpSrv.URL+"/"+bucket)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "PUT bucket status")
}

// PutObject uploads body under key and fails the test on error.
func PutObject(t *testing.T, httpSrv *httptest.Server, bucket string, key string, body []byte) {
	t.Helper()
	resp := DoPut(t, httpSrv.URL+"/"+bucket+"/"+key, WithContent(body))
	defer resp.Body.Close()
	require.Equalf(t, http.StatusOK, resp.StatusCode, "PUT object %s status", key)
}

func ListBucket(t *testing.T, httpSrv *httptest.Server, bucket string, query string) core.ListBucketResult {
	t.Helper()
	resp := DoGet(t, httpSrv.URL+"/"+bucket+query)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "GET bucket status")

	var result core.ListBucketResult
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&result), "decoding ListBucketResult")
	return result
}

func keysOf(result core.ListBucketResult) []string {
	keys := make([]string, 0, len(result.Contents))
	for _, c := range result.Contents {
		keys = append(keys, c.Key)
	}
	return keys
}

func prefixesOf(result core.ListBucketResult) []string {
	prefixes := make([]string, 0, len(result.CommonPrefixes))
	for _, p := range result.CommonPrefixes {
		prefixes = append(prefixes, p.Prefix)
	}
	return prefixes
}

func TestNewServerRequiresDataDir(t *testing.T) {
	t.Parallel()

	_, err := core.NewServer(t.Context(), core.NewConfig())
	require.Error(t, err)
}

func TestCreateAndListBuckets(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	for _, b := range []string{"bucket2", "bucket1"} {
		CreateBucket(t, httpSrv, b)
	}

	// Creating an existing bucket succeeds.
	CreateBucket(t, httpSrv, "bucket1")

	// List buckets
	resp := DoGet(t, httpSrv.URL+"/")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "GET / status")

	var listResp core.ListAllMyBucketsResult
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&listResp), "decoding ListAllMyBucketsResult")

	names := make([]string, 0, len(listResp.Buckets))
	for _, b := range listResp.Buckets {
		names = append(names, b.Name)
		require.NotEmpty(t, b.CreationDate, "bucket creation date")
	}
	require.Equal(t, []string{"bucket1", "bucket2"}, names, "buckets without the metadata directory")
}

func TestHeadBucket(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t, core.WithRegion("eu-west-1"))

	CreateBucket(t, httpSrv, "head-bucket")

	resp := DoHead(t, httpSrv.URL+"/head-bucket")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "HEAD bucket status")
	require.Equal(t, "eu-west-1", resp.Header.Get("x-amz-bucket-region"), "bucket region header")

	resp = DoHead(t, httpSrv.URL+"/missing-bucket")
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode, "HEAD missing bucket status")
}

func TestInvalidBucketNames(t *testing.T) {
	t.Parallel()
	_, httpSrv := NewTestServer(t)

	tests := []struct {
		name   string
		bucket string
	}{
		{name: "too short", bucket: "ab"},
		{name: "too long", bucket: strings.Repeat("a", 64)},
		{name: "uppercase", bucket: "BadBucket"},
		{name: "ip address", bucket: "192.168.0.1"},
		{name: "leading dash", bucket: "-bucket"},
		{name: "dot dash", bucket: "my.-bucket"},
		{name: "metadata directory", bucket: ".six7"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp := DoPut(t, httpSrv.URL+"/"+tc.bucket)
			defer resp.Body.Close()

			require.Equal(t, http.StatusBadRequest, resp.StatusCode, "status code")
			require.Equal(t, "InvalidBucketName", DecodeS3Error(t, resp.Body), "S3 error code")
		})
	}
}

func TestPutGetHeadDeleteObject(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	const (
		bucket = "test-bucket"
		key    = "dir1/object.txt"
	)
	body := []byte("hello world")
	const etag = `"5eb63bbbe01eeed093cb22bb8f5acdc3"`

	CreateBucket(t, httpSrv, bucket)

	// PUT object into existing bucket.
	resp := DoPut(t, httpSrv.URL+"/"+bucket+"/"+key, WithContent(body), WithContentType("text/plain"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "PUT object status")
	require.Equal(t, etag, resp.Header.Get("ETag"), "ETag header on PUT response")

	// GET object
	resp = DoGet(t, httpSrv.URL+"/"+bucket+"/"+key)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "GET object status")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "reading GET body")
	require.Equal(t, string(body), string(data), "GET object body")
	require.Equal(t, "text/plain", resp.Header.Get("Content-Type"), "GET Content-Type")
	require.Equal(t, etag, resp.Header.Get("ETag"), "GET ETag")
	require.NotEmpty(t, resp.Header.Get("Last-Modified"), "GET Last-Modified")

	// HEAD object
	headResp := DoHead(t, httpSrv.URL+"/"+bucket+"/"+key)
	defer headResp.Body.Close()
	require.Equal(t, http.StatusOK, headResp.StatusCode, "HEAD object status")
	require.Equal(t, "text/plain", headResp.Header.Get("Content-Type"), "HEAD Content-Type")
	require.Equal(t, "11", headResp.Header.Get("Content-Length"), "HEAD Content-Length")
	require.Equal(t, etag, headResp.Header.Get("ETag"), "HEAD ETag")

	// DELETE object
	delResp := DoDelete(t, httpSrv.URL+"/"+bucket+"/"+key)
	defer delResp.Body.Close()
	require.Equal(t, http.StatusNoContent, delResp.StatusCode, "DELETE object status")

	// GET after delete should return 404.
	resp = DoGet(t, httpSrv.URL+"/"+bucket+"/"+key)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode, "GET deleted object status")
	require.Equal(t, "NoSuchKey", DecodeS3Error(t, resp.Body), "GET deleted object error code")

	// Deleting again reports the missing key.
	delResp = DoDelete(t, httpSrv.URL+"/"+bucket+"/"+key)
	defer delResp.Body.Close()
	require.Equal(t, http.StatusNotFound, delResp.StatusCode, "DELETE missing object status")
	require.Equal(t, "NoSuchKey", DecodeS3Error(t, delResp.Body), "DELETE missing object error code")
}

func TestKeyBelowObjectIsNoSuchKey(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	CreateBucket(t, httpSrv, "test-bucket")
	PutObject(t, httpSrv, "test-bucket", "a.txt", []byte("x"))

	url := httpSrv.URL + "/test-bucket/a.txt/child"

	resp := DoGet(t, url)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode, "GET below an object")
	require.Equal(t, "NoSuchKey", DecodeS3Error(t, resp.Body))

	headResp := DoHead(t, url)
	defer headResp.Body.Close()
	require.Equal(t, http.StatusNotFound, headResp.StatusCode, "HEAD below an object")

	delResp := DoDelete(t, url)
	defer delResp.Body.Close()
	require.Equal(t, http.StatusNotFound, delResp.StatusCode, "DELETE below an object")
	require.Equal(t, "NoSuchKey", DecodeS3Error(t, delResp.Body))
}

func TestPutObjectOverwriteReplacesContentAndType(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	const bucket = "overwrite-bucket"
	CreateBucket(t, httpSrv, bucket)

	resp := DoPut(t, httpSrv.URL+"/"+bucket+"/doc", WithContent([]byte("first version")), WithContentType("text/plain"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = DoPut(t, httpSrv.URL+"/"+bucket+"/doc", WithContent([]byte("{}")), WithContentType("application/json"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = DoGet(t, httpSrv.URL+"/"+bucket+"/doc")
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "{}", string(data))
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Equal(t, "2", resp.Header.Get("Content-Length"))
}

func TestEmptyObjectDefaultsContentType(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	const bucket = "empty-bucket"
	CreateBucket(t, httpSrv, bucket)

	resp := DoPut(t, httpSrv.URL+"/"+bucket+"/empty")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "PUT empty object status")
	require.Equal(t, createETag(storage.EmptyFingerprint), resp.Header.Get("ETag"), "empty object ETag")

	resp = DoHead(t, httpSrv.URL+"/"+bucket+"/empty")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "HEAD empty object status")
	require.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"), "default content type")
	require.Equal(t, "0", resp.Header.Get("Content-Length"), "empty object length")
}

func createETag(hashHex string) string {
	return `"` + hashHex + `"`
}

func TestPutObjectContentMD5(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	const bucket = "md5-bucket"
	CreateBucket(t, httpSrv, bucket)

	body := []byte("checked payload")
	sum := md5.Sum(body)
	good := base64.StdEncoding.EncodeToString(sum[:])
	bad := base64.StdEncoding.EncodeToString(make([]byte, md5.Size))

	resp := DoPut(t, httpSrv.URL+"/"+bucket+"/good", WithContent(body), WithHeader("Content-MD5", good))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "PUT with matching Content-MD5")

	resp = DoPut(t, httpSrv.URL+"/"+bucket+"/bad", WithContent(body), WithHeader("Content-MD5", bad))
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, "PUT with mismatched Content-MD5")
	require.Equal(t, "BadDigest", DecodeS3Error(t, resp.Body))

	resp = DoHead(t, httpSrv.URL+"/"+bucket+"/bad")
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode, "rejected object must not be stored")
}

func TestPutObjectStreamingPayload(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	const bucket = "stream-bucket"
	CreateBucket(t, httpSrv, bucket)

	body := "5;chunk-signature=aaaa\r\nhello\r\n6;chunk-signature=bbbb\r\n world\r\n0;chunk-signature=cccc\r\n\r\n"
	resp := DoPut(t, httpSrv.URL+"/"+bucket+"/streamed",
		WithContent([]byte(body)),
		WithHeader("X-Amz-Content-Sha256", "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"),
		WithHeader("X-Amz-Decoded-Content-Length", "11"),
	)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "PUT streaming object status")
	require.Equal(t, `"5eb63bbbe01eeed093cb22bb8f5acdc3"`, resp.Header.Get("ETag"), "ETag of decoded payload")

	resp = DoGet(t, httpSrv.URL+"/"+bucket+"/streamed")
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data), "decoded payload")

	// A truncated chunk is rejected.
	resp = DoPut(t, httpSrv.URL+"/"+bucket+"/broken",
		WithContent([]byte("a\r\nshort")),
		WithHeader("X-Amz-Content-Sha256", "STREAMING-UNSIGNED-PAYLOAD-TRAILER"),
	)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, "PUT truncated streaming object status")
	require.Equal(t, "InvalidRequest", DecodeS3Error(t, resp.Body))
}

func TestListObjects(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	const bucket = "list-bucket"
	CreateBucket(t, httpSrv, bucket)

	// Upload objects with and without the prefix.
	for _, key := range []string{"dir/a.txt", "dir/b.txt", "dir/sub/c.txt", "other.txt"} {
		PutObject(t, httpSrv, bucket, key, []byte(key))
	}

	// List without prefix should see all objects.
	listResp := ListBucket(t, httpSrv, bucket, "")
	require.ElementsMatch(t, []string{"dir/a.txt", "dir/b.txt", "dir/sub/c.txt", "other.txt"}, keysOf(listResp))
	require.False(t, listResp.IsTruncated)
	require.Equal(t, 1000, listResp.MaxKeys, "default max keys")
	for _, c := range listResp.Contents {
		require.Equal(t, createETag(storage.Fingerprint([]byte(c.Key))), c.ETag, "listed ETag")
		require.Equal(t, int64(len(c.Key)), c.Size, "listed size")
	}

	// List with prefix should only return the prefixed keys.
	listResp = ListBucket(t, httpSrv, bucket, "?prefix=dir/")
	require.ElementsMatch(t, []string{"dir/a.txt", "dir/b.txt", "dir/sub/c.txt"}, keysOf(listResp))
	require.Equal(t, "dir/", listResp.Prefix)

	// The delimiter collapses one level of hierarchy.
	listResp = ListBucket(t, httpSrv, bucket, "?delimiter=/")
	require.Equal(t, []string{"other.txt"}, keysOf(listResp))
	require.Equal(t, []string{"dir/"}, prefixesOf(listResp))

	listResp = ListBucket(t, httpSrv, bucket, "?prefix=dir/&delimiter=/")
	require.ElementsMatch(t, []string{"dir/a.txt", "dir/b.txt"}, keysOf(listResp))
	require.Equal(t, []string{"dir/sub/"}, prefixesOf(listResp))

	// max-keys truncates contents.
	listResp = ListBucket(t, httpSrv, bucket, "?max-keys=2")
	require.Len(t, listResp.Contents, 2)
	require.True(t, listResp.IsTruncated)

	// Requests above the cap are clamped.
	listResp = ListBucket(t, httpSrv, bucket, "?max-keys=5000")
	require.Equal(t, 1000, listResp.MaxKeys)
	require.Len(t, listResp.Contents, 4)
}

func TestListObjectsV2(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	const bucket = "list-v2-bucket"
	CreateBucket(t, httpSrv, bucket)

	for _, key := range []string{"photos/2024/a.jpg", "photos/2025/b.jpg", "photos/c.jpg", "readme"} {
		PutObject(t, httpSrv, bucket, key, []byte(key))
	}

	resp := DoGet(t, httpSrv.URL+"/"+bucket+"?list-type=2&prefix=photos/&delimiter=/&continuation-token=opaque")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result core.ListBucketResultV2
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&result))

	require.Equal(t, "photos/", result.Prefix)
	require.Equal(t, "/", result.Delimiter)
	require.Equal(t, "opaque", result.ContinuationToken, "continuation token is echoed")
	require.False(t, result.IsTruncated)
	require.Len(t, result.Contents, 1)
	require.Equal(t, "photos/c.jpg", result.Contents[0].Key)
	require.Len(t, result.CommonPrefixes, 2)
	require.Equal(t, "photos/2024/", result.CommonPrefixes[0].Prefix)
	require.Equal(t, "photos/2025/", result.CommonPrefixes[1].Prefix)
	require.Equal(t, 3, result.KeyCount)
}

func TestListObjectsInvalidMaxKeys(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	const bucket = "max-keys-bucket"
	CreateBucket(t, httpSrv, bucket)

	for _, query := range []string{"?max-keys=-1", "?max-keys=abc", "?list-type=2&max-keys=0"} {
		t.Run(query, func(t *testing.T) {
			t.Parallel()

			resp := DoGet(t, httpSrv.URL+"/"+bucket+query)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Equal(t, "InvalidArgument", DecodeS3Error(t, resp.Body))
		})
	}
}

func TestGetBucketLocation(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	const bucket = "location-bucket"
	CreateBucket(t, httpSrv, bucket)

	// Now fetch its location.
	resp := DoGet(t, httpSrv.URL+"/"+bucket+"?location")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "GET bucket location status")

	var loc struct {
		Region string `xml:",chardata"`
	}
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&loc), "decoding LocationConstraint")
	require.Equal(t, "us-east-1", strings.TrimSpace(loc.Region), "bucket region")
}

func TestErrorResponsesTableDriven(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)
	CreateBucket(t, httpSrv, "some-bucket")

	tests := []struct {
		name           string
		method         string
		path           string
		wantStatusCode int
		wantErrorCode  string
		expectBody     bool
	}{
		{
			name:           "NoSuchBucket on HeadBucket",
			method:         http.MethodHead,
			path:           "/nonexistent-bucket",
			wantStatusCode: http.StatusNotFound,
			expectBody:     false,
		},
		{
			name:           "NoSuchBucket on ListObjects",
			method:         http.MethodGet,
			path:           "/nonexistent-bucket",
			wantStatusCode: http.StatusNotFound,
			wantErrorCode:  "NoSuchBucket",
			expectBody:     true,
		},
		{
			name:           "NoSuchBucket on GET object",
			method:         http.MethodGet,
			path:           "/nonexistent-bucket/key",
			wantStatusCode: http.StatusNotFound,
			wantErrorCode:  "NoSuchBucket",
			expectBody:     true,
		},
		{
			name:           "NoSuchBucket on PUT object",
			method:         http.MethodPut,
			path:           "/nonexistent-bucket/key",
			wantStatusCode: http.StatusNotFound,
			wantErrorCode:  "NoSuchBucket",
			expectBody:     true,
		},
		{
			name:           "NoSuchBucket on DELETE object",
			method:         http.MethodDelete,
			path:           "/nonexistent-bucket/key",
			wantStatusCode: http.StatusNotFound,
			wantErrorCode:  "NoSuchBucket",
			expectBody:     true,
		},
		{
			name:           "NoSuchKey on GET object",
			method:         http.MethodGet,
			path:           "/some-bucket/missing-key",
			wantStatusCode: http.StatusNotFound,
			wantErrorCode:  "NoSuchKey",
			expectBody:     true,
		},
		{
			name:           "NoSuchKey on HEAD object",
			method:         http.MethodHead,
			path:           "/some-bucket/missing-key",
			wantStatusCode: http.StatusNotFound,
			expectBody:     false,
		},
		{
			name:           "InvalidObjectName for control characters",
			method:         http.MethodPut,
			path:           "/some-bucket/bad%01key",
			wantStatusCode: http.StatusBadRequest,
			wantErrorCode:  "InvalidObjectName",
			expectBody:     true,
		},
		{
			name:           "InvalidObjectName for oversized keys",
			method:         http.MethodGet,
			path:           "/some-bucket/" + strings.Repeat("k", 1025),
			wantStatusCode: http.StatusBadRequest,
			wantErrorCode:  "InvalidObjectName",
			expectBody:     true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp := DoMethod(t, tc.method, httpSrv.URL+tc.path)
			defer resp.Body.Close()

			require.Equal(t, tc.wantStatusCode, resp.StatusCode, "status code")
			require.NotEmpty(t, resp.Header.Get(core.RequestIDHeader), "request id header")
			if !tc.expectBody {
				return
			}

			require.Equal(t, tc.wantErrorCode, DecodeS3Error(t, resp.Body), "S3 error code")
		})
	}
}

func TestErrorBodyCarriesRequestID(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	resp := DoGet(t, httpSrv.URL+"/missing-bucket")
	defer resp.Body.Close()

	var s3Err core.S3Error
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&s3Err))
	require.Equal(t, "NoSuchBucket", s3Err.Code)
	require.Equal(t, "/missing-bucket", s3Err.Resource)
	require.Equal(t, resp.Header.Get(core.RequestIDHeader), s3Err.RequestID)
	require.Len(t, s3Err.RequestID, 32)
}

// TestUnknownRoutes ensures that requests which use unsupported HTTP methods
// for otherwise valid paths return 405 Method Not Allowed from the standard
// library router.
func TestUnknownRoutes(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{
			name:   "PATCH root",
			method: http.MethodPatch,
			path:   "/",
		},
		{
			name:   "PATCH bucket",
			method: http.MethodPatch,
			path:   "/some-bucket",
		},
		{
			name:   "PATCH object",
			method: http.MethodPatch,
			path:   "/some-bucket/some-key",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp := DoMethod(t, tc.method, httpSrv.URL+tc.path)
			defer resp.Body.Close()

			require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, "status code")
		})
	}
}

// TestNotImplementedRoutes exercises a representative set of S3-style
// operations that are stubbed and should return NotImplemented.
func TestNotImplementedRoutes(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		opts   []RequestOption
	}{
		{name: "DeleteBucket", method: http.MethodDelete, path: "/bucket"},
		{name: "DeleteObjects", method: http.MethodPost, path: "/bucket?delete"},
		{name: "ListMultipartUploads", method: http.MethodGet, path: "/bucket?uploads"},
		{name: "GetBucketVersioning", method: http.MethodGet, path: "/bucket?versioning"},
		{name: "PutBucketPolicy", method: http.MethodPut, path: "/bucket?policy"},
		{name: "CreateMultipartUpload", method: http.MethodPost, path: "/bucket/key?uploads"},
		{name: "UploadPart", method: http.MethodPut, path: "/bucket/key?partNumber=1&uploadId=x"},
		{name: "GetObjectTagging", method: http.MethodGet, path: "/bucket/key?tagging"},
		{
			name:   "CopyObject",
			method: http.MethodPut,
			path:   "/bucket/key",
			opts:   []RequestOption{WithHeader("x-amz-copy-source", "/bucket/other")},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp := DoMethod(t, tc.method, httpSrv.URL+tc.path, tc.opts...)
			defer resp.Body.Close()

			require.Equal(t, http.StatusNotImplemented, resp.StatusCode, "status code")
			require.Equal(t, "NotImplemented", DecodeS3Error(t, resp.Body), "S3 error code")
		})
	}
}

func TestTrailingSlashIsIgnored(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	resp := DoPut(t, httpSrv.URL+"/slash-bucket/")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	listResp := ListBucket(t, httpSrv, "slash-bucket", "/")
	require.Empty(t, listResp.Contents)
}

func TestAuthentication(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	tests := []struct {
		name          string
		opts          []RequestOption
		wantErrorCode string
	}{
		{name: "no credentials", opts: []RequestOption{WithoutAuth()}, wantErrorCode: "AccessDenied"},
		{name: "wrong secret", opts: []RequestOption{WithBasicAuth(AccessKeyID, "wrong")}, wantErrorCode: "SignatureDoesNotMatch"},
		{name: "unknown key", opts: []RequestOption{WithBasicAuth("nobody", SecretAccessKey)}, wantErrorCode: "InvalidAccessKeyId"},
		{
			name:          "malformed signature",
			opts:          []RequestOption{WithHeader("Authorization", "AWS4-HMAC-SHA256 garbage")},
			wantErrorCode: "SignatureDoesNotMatch",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp := DoGet(t, httpSrv.URL+"/", tc.opts...)
			defer resp.Body.Close()

			require.Equal(t, http.StatusForbidden, resp.StatusCode, "status code")
			require.Equal(t, tc.wantErrorCode, DecodeS3Error(t, resp.Body), "S3 error code")
		})
	}
}

func TestAuthenticationDisabled(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t, core.WithAuthEngine(nil))

	resp := DoGet(t, httpSrv.URL+"/", WithoutAuth())
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	_, httpSrv := NewTestServer(t)

	// Preflight requests carry no credentials.
	resp := DoMethod(t, http.MethodOptions, httpSrv.URL+"/bucket/key",
		WithoutAuth(),
		WithHeader("Origin", "http://localhost:8080"),
		WithHeader("Access-Control-Request-Method", "PUT"),
		WithHeader("Access-Control-Request-Headers", "content-type"),
	)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode, "preflight status")
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PUT")
	require.Equal(t, "content-type", resp.Header.Get("Access-Control-Allow-Headers"))

	resp = DoGet(t, httpSrv.URL+"/", WithHeader("Origin", "http://localhost:8080"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), "ETag")
}

func TestServerRecordsMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	_, httpSrv := NewTestServer(t, core.WithMetrics(m))

	const bucket = "metrics-bucket"
	CreateBucket(t, httpSrv, bucket)
	PutObject(t, httpSrv, bucket, "obj", []byte("12345"))

	resp := DoGet(t, httpSrv.URL+"/"+bucket+"/missing")
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	ops := m.Storage().Ops()
	require.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("put", metrics.ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("get", metrics.ResultNotFound)))
	require.Equal(t, 5.0, testutil.ToFloat64(m.Storage().Bytes().WithLabelValues("put")))
}
