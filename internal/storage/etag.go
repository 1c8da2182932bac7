package storage

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
)

// EmptyFingerprint is the fingerprint of a zero-length payload.
const EmptyFingerprint = "d41d8cd98f00b204e9800998ecf8427e"

// Fingerprint returns the lowercase hex MD5 digest of data. It is used as the
// object's ETag and is an identity tag, not a security primitive.
func Fingerprint(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintReader computes the fingerprint of everything read from r.
func FingerprintReader(r io.Reader) (string, int64, error) {
	h := md5.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// FingerprintFile streams the file at path through the fingerprint without
// loading it into memory.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	etag, _, err := FingerprintReader(f)
	return etag, err
}
