package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

const (
	BasicAuthPrefix = "Basic "
)

type BasicAuthEngine struct {
	credentials Credentials
}

// NewBasicAuthEngine creates a BasicAuthEngine that accepts any of the given
// access key / secret key pairs as user name and password.
func NewBasicAuthEngine(credentials Credentials) *BasicAuthEngine {
	return &BasicAuthEngine{
		credentials: credentials,
	}
}

// AuthenticateRequest checks the Authorization header for valid Basic Auth
// credentials.
func (e *BasicAuthEngine) AuthenticateRequest(ctx context.Context, r *http.Request) (*User, error) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, BasicAuthPrefix) {
		return nil, nil
	}

	payload, err := base64.StdEncoding.DecodeString(strings.TrimSpace(auth[len(BasicAuthPrefix):]))
	if err != nil {
		return nil, ErrBadCredentials
	}

	accessKeyID, secret, ok := strings.Cut(string(payload), ":")
	if !ok {
		return nil, ErrBadCredentials
	}

	expected, ok := e.credentials.Lookup(accessKeyID)
	if !ok {
		return nil, ErrUnknownAccessKey
	}

	if subtle.ConstantTimeCompare([]byte(secret), []byte(expected)) != 1 {
		return nil, ErrBadCredentials
	}

	return &User{AccessKeyID: accessKeyID}, nil
}
