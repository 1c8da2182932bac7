package core

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"regexp"
	"six7/internal/listing"
	"six7/internal/metadata"
	"six7/internal/metrics"
	"six7/internal/storage"
	"strconv"
	"strings"
	"time"
)

var (
	bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*[a-z0-9]$`)
)

// Server provides a minimal S3-compatible HTTP API on top of a Store.
type Server struct {
	Config Config
	store  *Store
	meta   *metadata.Store
}

// NewServer opens the sidecar metadata database under the data directory and
// returns a new Server. When cfg.Engine is nil a LocalFileStorage rooted at
// cfg.DataDir is used.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("DataDir must not be empty")
	}

	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	if cfg.Engine == nil {
		engine, err := storage.NewLocalFileStorage(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		cfg.Engine = engine
	}

	dbPath := filepath.Join(cfg.DataDir, storage.MetadataDirName, "metadata.sqlite")
	meta, err := metadata.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	var observer metrics.StorageObserver
	if cfg.Metrics != nil {
		observer = cfg.Metrics.Storage()
	}

	return &Server{
		Config: cfg,
		store:  NewStore(cfg.Engine, meta, observer),
		meta:   meta,
	}, nil
}

// Close closes any resources held by the Server.
func (s *Server) Close() error {
	return s.meta.Close()
}

// Store returns the object store behind the HTTP API.
func (s *Server) Store() *Store {
	return s.store
}

// writeNotImplemented is a helper for stubbing unsupported S3 operations.
func (s *Server) writeNotImplemented(w http.ResponseWriter, r *http.Request, op string) {
	message := op + " is not implemented."
	writeS3Error(w, "NotImplemented", message, r.URL.Path, http.StatusNotImplemented)
}

// writeS3Error writes a minimal S3-style XML error response.
func writeS3Error(w http.ResponseWriter, code string, message string, resource string, status int) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_ = xml.NewEncoder(w).Encode(S3Error{
		Code:      code,
		Message:   message,
		Resource:  resource,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

// writeInternalError writes a generic S3 InternalError response.
func writeInternalError(w http.ResponseWriter, r *http.Request) {
	writeS3Error(w, "InternalError", "We encountered an internal error. Please try again.", r.URL.Path, http.StatusInternalServerError)
}

// writeNoSuchBucketError writes a generic S3 NoSuchBucket error response.
func writeNoSuchBucketError(w http.ResponseWriter, r *http.Request) {
	writeS3Error(w, "NoSuchBucket", "The specified bucket does not exist.", r.URL.Path, http.StatusNotFound)
}

// writeNoSuchKeyError writes a generic S3 NoSuchKey error response.
func writeNoSuchKeyError(w http.ResponseWriter, r *http.Request) {
	writeS3Error(w, "NoSuchKey", "The specified key does not exist.", r.URL.Path, http.StatusNotFound)
}

// writeStoreError maps a Store error onto an S3 error response. notFound
// writes the response used for storage.ErrNotFound.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, notFound func(http.ResponseWriter, *http.Request)) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		notFound(w, r)
	case errors.Is(err, storage.ErrInvalidInput):
		writeS3Error(w, "InvalidArgument", err.Error(), r.URL.Path, http.StatusBadRequest)
	default:
		writeInternalError(w, r)
	}
}

// isValidBucketName implements the standard S3 bucket naming rules for
// "virtual hosted-style" buckets.
func isValidBucketName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}

	// Must consist only of lowercase letters, digits, dots, or hyphens,
	// and must start and end with a letter or digit.
	if !bucketNamePattern.MatchString(name) {
		return false
	}

	// Disallow patterns like "..", ".-", "-.".
	if strings.Contains(name, "..") {
		return false
	}

	for i := 1; i < len(name); i++ {
		if (name[i-1] == '.' && name[i] == '-') || (name[i-1] == '-' && name[i] == '.') {
			return false
		}
	}

	// Bucket name must not be formatted as an IPv4 address.
	ip := net.ParseIP(name)
	return ip == nil
}

// isValidObjectKey enforces basic S3 object key constraints: non-empty,
// at most 1024 bytes, and no control characters. Keys map directly onto
// file paths, so empty, "." and ".." segments are rejected as well.
func isValidObjectKey(key string) bool {
	if len(key) == 0 || len(key) > 1024 {
		return false
	}

	if strings.ContainsFunc(key, func(c rune) bool {
		return c < 0x20 || c == 0x7f || c == '\\'
	}) {
		return false
	}

	for segment := range strings.SplitSeq(key, "/") {
		switch segment {
		case "", ".", "..":
			return false
		}
	}
	return true
}

// validateBucketNameOrError writes an S3 InvalidBucketName error and returns
// false if the provided name does not meet S3 bucket naming rules.
func validateBucketNameOrError(w http.ResponseWriter, r *http.Request, bucket string) bool {
	if !isValidBucketName(bucket) {
		writeS3Error(w, "InvalidBucketName", "The specified bucket is not valid.", r.URL.Path, http.StatusBadRequest)
		return false
	}
	return true
}

// validateObjectKeyOrError writes an S3-style error for invalid object keys.
func validateObjectKeyOrError(w http.ResponseWriter, r *http.Request, key string) bool {
	if !isValidObjectKey(key) {
		writeS3Error(w, "InvalidObjectName", "The specified key is not valid.", r.URL.Path, http.StatusBadRequest)
		return false
	}
	return true
}

// writeXMLResponse encodes v as XML and writes it to w with a 200 OK status.
func writeXMLResponse(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(v)
}

// createETag formats a hash hex string as an ETag value.
func createETag(hashHex string) string {
	return fmt.Sprintf("\"%s\"", hashHex)
}

// setObjectHeaders writes the metadata headers shared by GET and HEAD.
func setObjectHeaders(w http.ResponseWriter, meta storage.ObjectMetadata) {
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.Header().Set("Last-Modified", meta.LastModified.UTC().Format(http.TimeFormat))
	w.Header().Set("ETag", createETag(meta.ETag))
}

// isStreamingPayload reports whether the request body uses the AWS chunked
// upload encoding, signed or unsigned, with or without trailers.
func isStreamingPayload(r *http.Request) bool {
	return strings.HasPrefix(strings.ToUpper(r.Header.Get("X-Amz-Content-Sha256")), "STREAMING-")
}

// decodeStreamingPayload decodes an AWS Signature Version 4 streaming
// (chunked) payload into dst and returns the decoded length. Chunk
// signatures and trailers are not verified.
func decodeStreamingPayload(dst io.Writer, body io.Reader, decodedLen int64) (int64, error) {
	br := bufio.NewReader(body)

	var written int64
	buf := make([]byte, 32*1024)

	for {
		// Each chunk begins with: <size-hex>[;extensions]\r\n
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, errors.New("unexpected EOF while reading chunk header")
			}
			return 0, fmt.Errorf("read chunk header: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			// Skip empty lines if any.
			continue
		}

		// Strip any chunk extensions (e.g. ";chunk-signature=...").
		if idx := strings.IndexByte(line, ';'); idx != -1 {
			line = line[:idx]
		}

		sizeHex := strings.TrimSpace(line)
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("parse chunk size %q: %w", sizeHex, err)
		}

		if size == 0 {
			// Final chunk. Trailers, if any, follow; they are not needed.
			break
		}

		limited := &io.LimitedReader{R: br, N: size}
		n, err := io.CopyBuffer(dst, limited, buf)
		if err != nil {
			return 0, fmt.Errorf("read chunk body: %w", err)
		}
		if n != size {
			return 0, fmt.Errorf("short read while reading chunk body: expected %d bytes, got %d", size, n)
		}
		written += n

		// Consume the trailing CRLF after the chunk body.
		if b, err := br.ReadByte(); err != nil || b != '\r' {
			if err == nil {
				return 0, fmt.Errorf("expected CR after chunk, got %q", b)
			}
			return 0, fmt.Errorf("read CR after chunk: %w", err)
		}
		if b, err := br.ReadByte(); err != nil || b != '\n' {
			if err == nil {
				return 0, fmt.Errorf("expected LF after chunk, got %q", b)
			}
			return 0, fmt.Errorf("read LF after chunk: %w", err)
		}
	}

	// The declared length is only a sanity check; what was decoded is what
	// gets stored.
	if decodedLen >= 0 && written != decodedLen {
		slog.Debug("Decoded streaming payload length mismatch", "expected", decodedLen, "actual", written)
	}

	return written, nil
}

// readObjectBody reads a PUT body, decoding the AWS streaming format when
// the request announces it.
func readObjectBody(r *http.Request) ([]byte, error) {
	if !isStreamingPayload(r) {
		return io.ReadAll(r.Body)
	}

	decodedLen := int64(-1)
	if raw := r.Header.Get("X-Amz-Decoded-Content-Length"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid X-Amz-Decoded-Content-Length %q", raw)
		}
		decodedLen = n
	}

	var buf bytes.Buffer
	if decodedLen > 0 {
		buf.Grow(int(decodedLen))
	}
	if _, err := decodeStreamingPayload(&buf, r.Body, decodedLen); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ------ Dispatchers for bucket-level HTTP handlers ------

// handleBucketPut dispatches PUT /bucket[?subresource].
func (s *Server) handleBucketPut(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string) {
	if !validateBucketNameOrError(w, r, bucket) {
		return
	}

	q := r.URL.Query()
	switch {
	case q.Has("tagging"):
		s.writeNotImplemented(w, r, "PutBucketTagging")
	case q.Has("versioning"):
		s.writeNotImplemented(w, r, "PutBucketVersioning")
	case q.Has("cors"):
		s.writeNotImplemented(w, r, "PutBucketCors")
	case q.Has("policy"):
		s.writeNotImplemented(w, r, "PutBucketPolicy")
	default:
		s.handleCreateBucket(ctx, w, r, bucket)
	}
}

// handleBucketPost implements POST /bucket[?subresource].
func (s *Server) handleBucketPost(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string) {
	if !validateBucketNameOrError(w, r, bucket) {
		return
	}

	q := r.URL.Query()
	switch {
	case q.Has("delete"):
		s.writeNotImplemented(w, r, "DeleteObjects")
	default:
		s.writeNotImplemented(w, r, "BucketPost")
	}
}

// handleBucketGet dispatches GET /bucket[?subresource] between ListObjects
// and bucket-level read APIs.
func (s *Server) handleBucketGet(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string) {
	if !validateBucketNameOrError(w, r, bucket) {
		return
	}

	q := r.URL.Query()
	switch {
	case q.Has("location"):
		s.handleGetBucketLocation(ctx, w, r, bucket)
	case q.Has("tagging"):
		s.writeNotImplemented(w, r, "GetBucketTagging")
	case q.Has("versioning"):
		s.writeNotImplemented(w, r, "GetBucketVersioning")
	case q.Has("cors"):
		s.writeNotImplemented(w, r, "GetBucketCors")
	case q.Has("policy"):
		s.writeNotImplemented(w, r, "GetBucketPolicy")
	case q.Has("versions"):
		s.writeNotImplemented(w, r, "ListObjectVersions")
	case q.Has("uploads"):
		s.writeNotImplemented(w, r, "ListMultipartUploads")
	case q.Get("list-type") == "2":
		s.handleListObjectsV2(ctx, w, r, bucket)
	default:
		s.handleListObjects(ctx, w, r, bucket)
	}
}

// handleBucketDelete implements DELETE /bucket. Buckets are never removed.
func (s *Server) handleBucketDelete(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string) {
	if !validateBucketNameOrError(w, r, bucket) {
		return
	}

	s.writeNotImplemented(w, r, "DeleteBucket")
}

// handleBucketHead implements HEAD /bucket.
func (s *Server) handleBucketHead(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string) {
	if !validateBucketNameOrError(w, r, bucket) {
		return
	}

	if !s.store.BucketExists(ctx, bucket) {
		writeNoSuchBucketError(w, r)
		return
	}

	// S3-compatible HEAD bucket: 200 with no body.
	w.Header().Set("x-amz-bucket-region", s.Config.Region)
	w.WriteHeader(http.StatusOK)
}

// ------ Dispatchers for object-level HTTP handlers ------

// handleObjectPost implements POST /bucket/key[?subresource]. None of the
// object POST APIs are supported.
func (s *Server) handleObjectPost(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string, key string) {
	if !validateBucketNameOrError(w, r, bucket) {
		return
	}
	if !validateObjectKeyOrError(w, r, key) {
		return
	}

	q := r.URL.Query()
	switch {
	case q.Has("uploads"):
		s.writeNotImplemented(w, r, "CreateMultipartUpload")
	case q.Has("uploadId"):
		s.writeNotImplemented(w, r, "CompleteMultipartUpload")
	case q.Has("restore"):
		s.writeNotImplemented(w, r, "RestoreObject")
	default:
		s.writeNotImplemented(w, r, "ObjectPost")
	}
}

// handleObjectGet implements GET /bucket/key to retrieve an object.
func (s *Server) handleObjectGet(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string, key string) {
	if !validateBucketNameOrError(w, r, bucket) {
		return
	}
	if !validateObjectKeyOrError(w, r, key) {
		return
	}

	q := r.URL.Query()
	switch {
	case q.Has("tagging"):
		s.writeNotImplemented(w, r, "GetObjectTagging")
	case q.Has("attributes"):
		s.writeNotImplemented(w, r, "GetObjectAttributes")
	case q.Has("uploadId"):
		s.writeNotImplemented(w, r, "ListParts")
	default:
		s.handleGetObject(ctx, w, r, bucket, key)
	}
}

// handleObjectDelete implements DELETE /bucket/key to delete an object.
func (s *Server) handleObjectDelete(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string, key string) {
	if !validateBucketNameOrError(w, r, bucket) {
		return
	}
	if !validateObjectKeyOrError(w, r, key) {
		return
	}

	q := r.URL.Query()
	switch {
	case q.Has("tagging"):
		s.writeNotImplemented(w, r, "DeleteObjectTagging")
	case q.Has("uploadId"):
		s.writeNotImplemented(w, r, "AbortMultipartUpload")
	default:
		s.handleDeleteObject(ctx, w, r, bucket, key)
	}
}

// handleObjectPut implements PUT /bucket/key to store an object.
func (s *Server) handleObjectPut(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string, key string) {
	if !validateBucketNameOrError(w, r, bucket) {
		return
	}
	if !validateObjectKeyOrError(w, r, key) {
		return
	}

	q := r.URL.Query()
	switch {
	case q.Has("uploadId") || q.Has("partNumber"):
		s.writeNotImplemented(w, r, "UploadPart")
	case q.Has("tagging"):
		s.writeNotImplemented(w, r, "PutObjectTagging")
	case r.Header.Get("x-amz-copy-source") != "":
		s.writeNotImplemented(w, r, "CopyObject")
	default:
		s.handlePutObject(ctx, w, r, bucket, key)
	}
}

// handleObjectHead implements HEAD /bucket/key, returning metadata headers
// compatible with S3 but without a response body.
func (s *Server) handleObjectHead(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string, key string) {
	if !validateBucketNameOrError(w, r, bucket) {
		return
	}
	if !validateObjectKeyOrError(w, r, key) {
		return
	}

	if !s.store.BucketExists(ctx, bucket) {
		writeNoSuchBucketError(w, r)
		return
	}

	meta, err := s.store.HeadObject(ctx, bucket, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Error("Head object", "bucket", bucket, "key", key, "err", err)
		}
		writeStoreError(w, r, err, writeNoSuchKeyError)
		return
	}

	setObjectHeaders(w, meta)
	w.WriteHeader(http.StatusOK)
}

// ------ Individual API HTTP handlers ------

func (s *Server) handlePutObject(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string, key string) {
	defer r.Body.Close()

	// Align with S3 by refusing to create buckets implicitly.
	if !s.store.BucketExists(ctx, bucket) {
		writeNoSuchBucketError(w, r)
		return
	}

	data, err := readObjectBody(r)
	if err != nil {
		slog.Error("Read request body", "bucket", bucket, "key", key, "err", err)
		writeS3Error(w, "InvalidRequest", "Failed to read request body", r.URL.Path, http.StatusBadRequest)
		return
	}

	if want := r.Header.Get("Content-MD5"); want != "" {
		sum := md5.Sum(data)
		if base64.StdEncoding.EncodeToString(sum[:]) != want {
			writeS3Error(w, "BadDigest", "The Content-MD5 you specified did not match what we received.", r.URL.Path, http.StatusBadRequest)
			return
		}
	}

	meta, err := s.store.PutObject(ctx, bucket, key, data, r.Header.Get("Content-Type"))
	if err != nil {
		slog.Error("Put object", "bucket", bucket, "key", key, "err", err)
		writeStoreError(w, r, err, writeNoSuchBucketError)
		return
	}

	w.Header().Set("ETag", createETag(meta.ETag))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetObject(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string, key string) {
	if !s.store.BucketExists(ctx, bucket) {
		writeNoSuchBucketError(w, r)
		return
	}

	data, meta, err := s.store.GetObject(ctx, bucket, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Error("Get object", "bucket", bucket, "key", key, "err", err)
		}
		writeStoreError(w, r, err, writeNoSuchKeyError)
		return
	}

	setObjectHeaders(w, meta)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("Stream object", "bucket", bucket, "key", key, "err", err)
	}
}

func (s *Server) handleDeleteObject(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string, key string) {
	if !s.store.BucketExists(ctx, bucket) {
		writeNoSuchBucketError(w, r)
		return
	}

	if err := s.store.DeleteObject(ctx, bucket, key); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Error("Delete object", "bucket", bucket, "key", key, "err", err)
		}
		writeStoreError(w, r, err, writeNoSuchKeyError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCreateBucket implements PUT /bucket. Creating an existing bucket
// succeeds.
func (s *Server) handleCreateBucket(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string) {
	if err := s.store.CreateBucket(ctx, bucket); err != nil {
		slog.Error("Create bucket", "bucket", bucket, "err", err)
		writeInternalError(w, r)
		return
	}

	w.Header().Set("Location", "/"+bucket)
	w.WriteHeader(http.StatusOK)
}

// handleGetBucketLocation implements GET /bucket?location
func (s *Server) handleGetBucketLocation(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string) {
	if !s.store.BucketExists(ctx, bucket) {
		writeNoSuchBucketError(w, r)
		return
	}

	resp := LocationConstraint{
		XMLNS:  S3XMLNamespace,
		Region: s.Config.Region,
	}

	if err := writeXMLResponse(w, resp); err != nil {
		slog.Error("Encode bucket location XML", "bucket", bucket, "err", err)
	}
}

func (s *Server) handleListBuckets(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.ListBuckets(ctx)
	if err != nil {
		slog.Error("List buckets", "err", err)
		writeInternalError(w, r)
		return
	}

	buckets := make([]BucketEntry, 0, len(infos))
	for _, b := range infos {
		buckets = append(buckets, BucketEntry{
			Name:         b.Name,
			CreationDate: b.CreationDate.UTC().Format(time.RFC3339),
		})
	}

	resp := ListAllMyBucketsResult{
		XMLNS: S3XMLNamespace,
		Owner: Owner{
			ID:          "six7",
			DisplayName: "six7",
		},
		Buckets: buckets,
	}

	if err := writeXMLResponse(w, resp); err != nil {
		slog.Error("Encode list buckets XML", "err", err)
	}
}

// listBucket runs a listing for the request and writes any error response
// itself. ok is false when a response has already been written.
func (s *Server) listBucket(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string) (listing.Query, listing.Result, bool) {
	q, err := listing.ParseQuery(r.URL.Query())
	if err != nil {
		writeS3Error(w, "InvalidArgument", err.Error(), r.URL.Path, http.StatusBadRequest)
		return listing.Query{}, listing.Result{}, false
	}

	result, err := s.store.ListObjects(ctx, bucket, q)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Error("List objects", "bucket", bucket, "err", err)
		}
		writeStoreError(w, r, err, writeNoSuchBucketError)
		return listing.Query{}, listing.Result{}, false
	}

	return q, result, true
}

func summarize(result listing.Result) ([]ObjectSummary, []CommonPrefix) {
	summaries := make([]ObjectSummary, 0, len(result.Contents))
	for _, meta := range result.Contents {
		summaries = append(summaries, ObjectSummary{
			Key:          meta.Key,
			LastModified: meta.LastModified.UTC().Format(time.RFC3339),
			ETag:         createETag(meta.ETag),
			Size:         meta.Size,
			StorageClass: "STANDARD",
		})
	}

	prefixes := make([]CommonPrefix, 0, len(result.CommonPrefixes))
	for _, p := range result.CommonPrefixes {
		prefixes = append(prefixes, CommonPrefix{Prefix: p})
	}
	return summaries, prefixes
}

// handleListObjects implements the V1 ListObjects API. The marker is echoed
// but a listing always starts from the beginning of the bucket.
func (s *Server) handleListObjects(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string) {
	q, result, ok := s.listBucket(ctx, w, r, bucket)
	if !ok {
		return
	}

	summaries, prefixes := summarize(result)
	resp := ListBucketResult{
		XMLNS:          S3XMLNamespace,
		Name:           bucket,
		Prefix:         q.Prefix,
		Marker:         q.ContinuationToken,
		Delimiter:      q.Delimiter,
		MaxKeys:        q.MaxKeys,
		IsTruncated:    result.IsTruncated,
		Contents:       summaries,
		CommonPrefixes: prefixes,
	}

	if err := writeXMLResponse(w, resp); err != nil {
		slog.Error("Encode list objects XML", "bucket", bucket, "err", err)
	}
}

// handleListObjectsV2 implements the V2 ListObjects API. The continuation
// token is echoed but does not resume a previous listing, and no next token
// is returned.
func (s *Server) handleListObjectsV2(ctx context.Context, w http.ResponseWriter, r *http.Request, bucket string) {
	q, result, ok := s.listBucket(ctx, w, r, bucket)
	if !ok {
		return
	}

	summaries, prefixes := summarize(result)
	resp := ListBucketResultV2{
		XMLNS:             S3XMLNamespace,
		Name:              bucket,
		Prefix:            q.Prefix,
		Delimiter:         q.Delimiter,
		KeyCount:          len(summaries) + len(prefixes),
		MaxKeys:           q.MaxKeys,
		IsTruncated:       result.IsTruncated,
		ContinuationToken: q.ContinuationToken,
		StartAfter:        r.URL.Query().Get("start-after"),
		Contents:          summaries,
		CommonPrefixes:    prefixes,
	}

	if err := writeXMLResponse(w, resp); err != nil {
		slog.Error("Encode list objects v2 XML", "bucket", bucket, "err", err)
	}
}
