package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// getenv returns the value of the environment variable named by key or
// fallback if the variable is not present.
func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

const (
	BucketName      = "example-bucket"
	ObjectName      = "example.txt"
	ObjectContent   = "Hello from the six7 example!\n"
	ReportPrefix    = "home/alice/documents/"
	ReportsToUpload = 3
)

// EnsureBucket checks if a bucket exists, and creates it if it does not.
func EnsureBucket(ctx context.Context, client *minio.Client, bucketName string) error {
	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %q: %w", bucketName, err)
		}
	}
	return nil
}

// UploadFile uploads an object to the specified bucket.
func UploadFile(ctx context.Context, client *minio.Client, bucketName string, objectName string, objectContent []byte, contentType string) error {
	reader := bytes.NewReader(objectContent)
	info, err := client.PutObject(ctx, bucketName, objectName, reader, int64(len(objectContent)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %q to bucket %q: %w", objectName, bucketName, err)
	}

	slog.Info("Uploaded object to bucket", "object", objectName, "bucket", bucketName, "etag", info.ETag)
	return nil
}

// ListBucketObjects lists all objects in the specified bucket.
func ListBucketObjects(ctx context.Context, client *minio.Client, bucketName string) error {
	slog.Info("Objects in bucket", "bucket", bucketName)
	for objectInfo := range client.ListObjects(ctx, bucketName, minio.ListObjectsOptions{Recursive: true}) {
		if objectInfo.Err != nil {
			return fmt.Errorf("failed to list objects in bucket %q: %w", bucketName, objectInfo.Err)
		}
		slog.Info("Object in bucket", "key", objectInfo.Key, "size", objectInfo.Size, "etag", objectInfo.ETag)
	}
	return nil
}

// BrowseFolder lists one level below prefix, the way a file browser would.
func BrowseFolder(ctx context.Context, client *minio.Client, bucketName string, prefix string) error {
	slog.Info("Browsing folder", "bucket", bucketName, "prefix", prefix)
	for objectInfo := range client.ListObjects(ctx, bucketName, minio.ListObjectsOptions{Prefix: prefix}) {
		if objectInfo.Err != nil {
			return fmt.Errorf("failed to browse %q in bucket %q: %w", prefix, bucketName, objectInfo.Err)
		}
		if objectInfo.ETag == "" {
			slog.Info("Folder", "prefix", objectInfo.Key)
			continue
		}
		slog.Info("File", "key", objectInfo.Key, "size", objectInfo.Size)
	}
	return nil
}

// DescribeObject prints the metadata the server keeps for an object.
func DescribeObject(ctx context.Context, client *minio.Client, bucketName string, objectName string) error {
	info, err := client.StatObject(ctx, bucketName, objectName, minio.StatObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to stat object %q: %w", objectName, err)
	}

	slog.Info("Object metadata",
		"key", info.Key,
		"size", info.Size,
		"etag", info.ETag,
		"content_type", info.ContentType,
		"last_modified", info.LastModified.UTC().Format(time.RFC3339),
	)
	return nil
}

// DownloadFile downloads an object from the specified bucket to a local file.
func DownloadFile(ctx context.Context, client *minio.Client, bucketName string, objectName string, downloadPath string) error {
	if err := client.FGetObject(ctx, bucketName, objectName, downloadPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("failed to download object %q from bucket %q: %w", objectName, bucketName, err)
	}
	slog.Info("Downloaded object", "path", downloadPath)
	return nil
}

// RemoveFile deletes an object and confirms it is gone.
func RemoveFile(ctx context.Context, client *minio.Client, bucketName string, objectName string) error {
	if err := client.RemoveObject(ctx, bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %q: %w", objectName, err)
	}

	_, err := client.StatObject(ctx, bucketName, objectName, minio.StatObjectOptions{})
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("object %q still present after removal: %v", objectName, err)
	}

	slog.Info("Removed object", "object", objectName, "bucket", bucketName)
	return nil
}

func Run(ctx context.Context, client *minio.Client) error {
	// Ensure bucket exists.
	if err := EnsureBucket(ctx, client, BucketName); err != nil {
		return fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	// 1. Upload an example.txt file.
	if err := UploadFile(ctx, client, BucketName, ObjectName, []byte(ObjectContent), "text/plain"); err != nil {
		return fmt.Errorf("failed to upload example file: %w", err)
	}

	// 2. Upload a few nested reports.
	for i := range ReportsToUpload {
		key := fmt.Sprintf("%s%d/report-%d.csv", ReportPrefix, 2024+i, i)
		content := fmt.Appendf(nil, "id,value\n%d,%d\n", i, i*i)
		if err := UploadFile(ctx, client, BucketName, key, content, "text/csv"); err != nil {
			return fmt.Errorf("failed to upload report: %w", err)
		}
	}

	// 3. List the contents of the bucket.
	if err := ListBucketObjects(ctx, client, BucketName); err != nil {
		return fmt.Errorf("failed to list bucket objects: %w", err)
	}

	// 4. Walk the virtual folders.
	if err := BrowseFolder(ctx, client, BucketName, ""); err != nil {
		return err
	}
	if err := BrowseFolder(ctx, client, BucketName, ReportPrefix); err != nil {
		return err
	}

	// 5. Inspect and download the file.
	if err := DescribeObject(ctx, client, BucketName, ObjectName); err != nil {
		return err
	}

	downloadPath := filepath.Join(".", "downloaded_"+ObjectName)
	if err := DownloadFile(ctx, client, BucketName, ObjectName, downloadPath); err != nil {
		return err
	}

	// 6. Remove it again.
	if err := RemoveFile(ctx, client, BucketName, ObjectName); err != nil {
		return err
	}

	return nil
}

func main() {
	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           log.InfoLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
	})
	slog.SetDefault(slog.New(handler))

	endpoint := getenv("SIX7_ENDPOINT", "localhost:9000")
	accessKey := getenv("SIX7_ACCESS_KEY", "minioadmin")
	secretKey := getenv("SIX7_SECRET_KEY", "minioadmin")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       false,
		Region:       "us-east-1",
		BucketLookup: minio.BucketLookupPath,
	})

	if err != nil {
		slog.Error("failed to create MinIO client", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if err := Run(ctx, client); err != nil {
		slog.Error("error running example", "err", err)
		os.Exit(1)
	}
}
