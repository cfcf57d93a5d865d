// Package blobstore fetches raw document bytes from local paths, HTTP URLs,
// or S3, with the retry/backoff policy spec §4.1 requires.
package blobstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound indicates the referenced blob does not exist.
var ErrNotFound = errors.New("blob not found")

// BlobStore fetches raw document bytes identified by a source URI.
type BlobStore interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Router dispatches Fetch to LocalStore, S3Store, or HTTPStore based on the
// URI scheme. URIs LocalStore handles are read directly; for every other URI
// the local cache directory is checked before any S3 or HTTP fetch.
type Router struct {
	local *LocalStore
	http  *HTTPStore
	s3    *S3Store
}

// NewRouter constructs a BlobStore that resolves local://, uploads/-relative,
// and absolute paths via LocalStore, s3:// via s3 (optional, may be nil),
// and everything else via HTTPStore.
func NewRouter(local *LocalStore, http *HTTPStore, s3 *S3Store) *Router {
	return &Router{local: local, http: http, s3: s3}
}

func (r *Router) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if r.local.handles(uri) {
		return r.local.Fetch(ctx, uri)
	}
	if cached, ok, err := r.local.cached(uri); err != nil {
		return nil, err
	} else if ok {
		return cached, nil
	}
	if r.s3 != nil && r.s3.handles(uri) {
		return r.s3.Fetch(ctx, uri)
	}
	if r.http == nil {
		return nil, fmt.Errorf("no http backend configured for uri %q", uri)
	}
	return r.http.Fetch(ctx, uri)
}
