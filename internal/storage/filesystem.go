package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
)

// CopyFile copies the contents of srcPath into a newly created destPath.
func CopyFile(srcPath string, destPath string) error {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return err
	}

	if _, err := destFile.ReadFrom(srcFile); err != nil {
		_ = destFile.Close()
		return err
	}

	if err := destFile.Sync(); err != nil {
		_ = destFile.Close()
		return err
	}
	return destFile.Close()
}

// MoveFile renames srcPath onto destPath, replacing any existing file.
func MoveFile(srcPath string, destPath string) error {
	err := os.Rename(srcPath, destPath)
	if err == nil {
		return nil
	}

	// If the source file lives on a different filesystem, fall back to
	// copying its contents into place instead of renaming.
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	if copyErr := CopyFile(srcPath, destPath); copyErr != nil {
		return copyErr
	}

	// Best-effort cleanup of the source file; ignore ENOENT in case
	// something else already removed it.
	if rmErr := os.Remove(srcPath); rmErr != nil && !os.IsNotExist(rmErr) {
		return rmErr
	}
	return nil
}

// SyncDir best-effort fsyncs a directory so that recently renamed files
// become durable.
func SyncDir(dir string) error {
	if dir == "" || runtime.GOOS == "windows" {
		return nil
	}

	df, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer df.Close()

	if err := df.Sync(); err != nil {
		// Some filesystems (e.g. tmpfs) return EINVAL for directory sync.
		if errors.Is(err, syscall.EINVAL) {
			return nil
		}
		return err
	}
	return nil
}

// WriteFileAtomic stages data in tempDir and renames it onto destPath once
// it is fully written and synced. Readers of destPath see either the old or
// the new content, never a partial write. Missing parent directories of
// destPath are created. If ctx is cancelled before the rename, destPath is
// left untouched.
func WriteFileAtomic(ctx context.Context, tempDir string, destPath string, r io.Reader) error {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(tempDir, "upload-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	if err := MoveFile(tmpPath, destPath); err != nil {
		return err
	}
	committed = true

	return SyncDir(destDir)
}
