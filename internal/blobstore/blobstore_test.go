package blobstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreFetchAbsoluteAndRelative(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uploads", "doc.pdf"), []byte("%PDF-1.4 stub"), 0o644))

	ls := NewLocalStore(dir, "")

	data, err := ls.Fetch(context.Background(), "uploads/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 stub", string(data))

	data, err = ls.Fetch(context.Background(), filepath.Join(dir, "uploads", "doc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 stub", string(data))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	ls := NewLocalStore(dir, "")
	_, err := ls.Fetch(context.Background(), "uploads/../../etc/passwd")
	assert.Error(t, err)
}

func TestLocalStoreFetchMissing(t *testing.T) {
	dir := t.TempDir()
	ls := NewLocalStore(dir, "")
	_, err := ls.Fetch(context.Background(), "uploads/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreCacheHitAvoidsNetwork(t *testing.T) {
	cacheDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "remote.pdf"), []byte("cached"), 0o644))

	ls := NewLocalStore(t.TempDir(), cacheDir)
	router := NewRouter(ls, nil, nil)

	data, err := router.Fetch(context.Background(), "https://example.invalid/remote.pdf")
	require.NoError(t, err)
	assert.Equal(t, "cached", string(data))
}

func TestHTTPStoreFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote bytes"))
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.Client())
	data, err := store.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "remote bytes", string(data))
}

func TestHTTPStoreFetchPermanent4xxFailsImmediately(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.Client())
	_, err := store.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestHTTPStoreFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.Client())
	_, err := store.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrNotFound)
}
