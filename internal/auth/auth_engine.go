// Package auth verifies S3 request credentials. It answers only "who is
// this"; per-bucket authorization is not performed.
package auth

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrUnknownAccessKey is returned when a request names an access key
	// that is not configured.
	ErrUnknownAccessKey = errors.New("unknown access key")

	// ErrBadCredentials is returned when the access key is known but the
	// signature or password does not match.
	ErrBadCredentials = errors.New("credentials do not match")
)

type User struct {
	AccessKeyID string
}

type AuthEngine interface {

	// AuthenticateRequest inspects the given HTTP request for valid
	// authentication credentials. If valid, it returns a User object. If the
	// request carries no credentials the engine understands, it returns
	// (nil, nil). Credentials that are present but wrong produce an error.
	AuthenticateRequest(ctx context.Context, rq *http.Request) (*User, error)
}

// Credentials maps access key IDs to their secret keys.
type Credentials map[string]string

// Lookup returns the secret for accessKeyID.
func (c Credentials) Lookup(accessKeyID string) (string, bool) {
	secret, ok := c[accessKeyID]
	return secret, ok
}
