package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

var (
	// ErrNotFound is returned when a bucket or object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIOFailure marks failures of the underlying filesystem: permission
	// problems, exhausted disks, path conflicts and the like.
	ErrIOFailure = errors.New("storage failure")

	// ErrInvalidInput is returned for out-of-range request parameters.
	ErrInvalidInput = errors.New("invalid input")
)

// wrapError classifies a filesystem error for the given operation. Missing
// paths become ErrNotFound, and so do paths running through an existing
// object file (ENOTDIR). Everything else is ErrIOFailure. The original error
// stays reachable through errors.Is/As.
func wrapError(op string, bucket string, key string, err error) error {
	if err == nil {
		return nil
	}

	target := bucket
	if key != "" {
		target = bucket + "/" + key
	}

	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return fmt.Errorf("%s %s: %w: %w", op, target, ErrNotFound, err)
	}
	return fmt.Errorf("%s %s: %w: %w", op, target, ErrIOFailure, err)
}
