package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"six7/internal/ui"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"
)

// MaxListed bounds the entries rendered for one folder level.
const MaxListed = 1000

type Server struct {
	client *minio.Client
}

func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buckets, err := s.client.ListBuckets(ctx)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list buckets: %v", err), http.StatusInternalServerError)
		return
	}

	uiBuckets := make([]ui.Bucket, 0, len(buckets))
	for _, b := range buckets {
		uiBuckets = append(uiBuckets, ui.Bucket{
			Name:         b.Name,
			CreationDate: b.CreationDate.UTC().Format(time.RFC3339),
		})
	}

	if err := ui.BucketsPage(uiBuckets).Render(ctx, w); err != nil {
		http.Error(w, fmt.Sprintf("failed to render buckets page: %v", err), http.StatusInternalServerError)
		return
	}
}

// BucketContents renders one folder level of a bucket. The path after the
// bucket name is the prefix being browsed.
func (s *Server) BucketContents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bucket := r.PathValue("bucket")
	if bucket == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	listing := ui.Listing{
		Bucket:  bucket,
		Prefix:  r.PathValue("key"),
		Message: r.URL.Query().Get("msg"),
	}

	opts := minio.ListObjectsOptions{
		Recursive: false,
		Prefix:    listing.Prefix,
	}

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range s.client.ListObjects(listCtx, bucket, opts) {
		if obj.Err != nil {
			slog.Error("ListObjects error", "bucket", bucket, "prefix", listing.Prefix, "err", obj.Err)
			listing.Message = fmt.Sprintf("listing failed: %v", obj.Err)
			break
		}

		if len(listing.Folders)+len(listing.Objects) == MaxListed {
			listing.Trimmed = true
			break
		}

		// Common prefixes come back as entries without an ETag.
		if strings.HasSuffix(obj.Key, "/") && obj.ETag == "" {
			listing.Folders = append(listing.Folders, obj.Key)
			continue
		}

		listing.Objects = append(listing.Objects, ui.Object{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified.UTC().Format(time.RFC3339),
			ETag:         obj.ETag,
		})
	}

	if err := ui.ObjectsPage(listing).Render(ctx, w); err != nil {
		http.Error(w, fmt.Sprintf("failed to render objects page: %v", err), http.StatusInternalServerError)
		return
	}
}

func (s *Server) CreateBucket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, fmt.Sprintf("failed to parse form: %v", err), http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		http.Error(w, "bucket name is required", http.StatusBadRequest)
		return
	}

	if err := s.client.MakeBucket(ctx, name, minio.MakeBucketOptions{}); err != nil {
		slog.Error("failed to create bucket", "bucket", name, "err", err)
		http.Error(w, fmt.Sprintf("failed to create bucket: %v", err), http.StatusBadRequest)
		return
	}

	http.Redirect(w, r, ui.BucketLink(name, ""), http.StatusSeeOther)
}

// redirectToFolder sends the browser back to prefix, optionally with a
// message shown above the listing.
func redirectToFolder(w http.ResponseWriter, r *http.Request, bucket string, prefix string, msg string) {
	target := ui.BucketLink(bucket, prefix)
	if msg != "" {
		target += "?msg=" + url.QueryEscape(msg)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// parentPrefix returns the folder holding key, with its trailing slash.
func parentPrefix(key string) string {
	dir := path.Dir(key)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir + "/"
}

func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bucket := r.PathValue("bucket")

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("failed to parse upload: %v", err), http.StatusBadRequest)
		return
	}

	prefix := r.FormValue("prefix")
	file, header, err := r.FormFile("file")
	if err != nil {
		redirectToFolder(w, r, bucket, prefix, "choose a file to upload")
		return
	}
	defer file.Close()

	key := prefix + path.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, bucket, key, file, header.Size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		slog.Error("failed to upload object", "bucket", bucket, "key", key, "err", err)
		redirectToFolder(w, r, bucket, prefix, fmt.Sprintf("upload failed: %v", err))
		return
	}

	slog.Info("Uploaded object", "bucket", bucket, "key", key, "size", header.Size)
	redirectToFolder(w, r, bucket, prefix, "")
}

func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bucket := r.PathValue("bucket")

	if err := r.ParseForm(); err != nil {
		http.Error(w, fmt.Sprintf("failed to parse form: %v", err), http.StatusBadRequest)
		return
	}

	key := r.FormValue("key")
	if key == "" {
		http.Error(w, "object key is required", http.StatusBadRequest)
		return
	}

	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		slog.Error("failed to delete object", "bucket", bucket, "key", key, "err", err)
		redirectToFolder(w, r, bucket, parentPrefix(key), fmt.Sprintf("delete failed: %v", err))
		return
	}

	slog.Info("Deleted object", "bucket", bucket, "key", key)
	redirectToFolder(w, r, bucket, parentPrefix(key), "")
}

func (s *Server) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bucket := r.PathValue("bucket")
	key := r.URL.Query().Get("key")

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to get object: %v", err), http.StatusBadGateway)
		return
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			http.NotFound(w, r)
			return
		}
		http.Error(w, fmt.Sprintf("failed to stat object: %v", err), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", fmt.Sprint(info.Size))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	if _, err := io.Copy(w, obj); err != nil {
		slog.Error("failed to stream object", "bucket", bucket, "key", key, "err", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func Run(ctx context.Context) error {

	var (
		HttpPort    = getEnv("SIX7_UI_PORT", "9100")
		S3Endpoint  = getEnv("SIX7_UI_S3_ENDPOINT", "localhost:9000")
		S3AccessKey = getEnv("SIX7_UI_S3_ACCESS_KEY", "minioadmin")
		S3SecretKey = getEnv("SIX7_UI_S3_SECRET_KEY", "minioadmin")
		S3Region    = getEnv("SIX7_UI_S3_REGION", "us-east-1")
		S3UseSSL    = getEnv("SIX7_UI_S3_SSL", "false") == "true"
	)

	// Logging setup consistent with the six7 server.
	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           log.DebugLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})
	slog.SetDefault(slog.New(handler))

	client, err := minio.New(S3Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(S3AccessKey, S3SecretKey, ""),
		Secure:       S3UseSSL,
		Region:       S3Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}

	server := &Server{
		client: client,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", server.Home)
	mux.HandleFunc("GET /bucket/{bucket}/{key...}", server.BucketContents)
	mux.HandleFunc("GET /download/{bucket}", server.Download)
	mux.HandleFunc("POST /buckets", server.CreateBucket)
	mux.HandleFunc("POST /upload/{bucket}", server.Upload)
	mux.HandleFunc("POST /delete/{bucket}", server.Delete)

	srv := &http.Server{
		Addr:              ":" + HttpPort,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		slog.Info("Starting six7 UI server", "port", HttpPort, "s3_endpoint", S3Endpoint)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("six7 UI server failed: %w", err)
		}
		return nil
	})

	return eg.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
