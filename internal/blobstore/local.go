package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docpipeline/internal/validation"
)

// LocalStore resolves local://, uploads/…-relative, and absolute paths from
// a configured base directory, and serves as the cache-directory check for
// the HTTP path.
type LocalStore struct {
	baseDir  string
	cacheDir string
}

// NewLocalStore constructs a LocalStore rooted at baseDir. cacheDir is
// consulted for remote URIs before falling back to a remote fetch.
func NewLocalStore(baseDir, cacheDir string) *LocalStore {
	return &LocalStore{baseDir: baseDir, cacheDir: cacheDir}
}

func (l *LocalStore) handles(uri string) bool {
	return strings.HasPrefix(uri, "local://") || strings.HasPrefix(uri, "uploads/") || filepath.IsAbs(uri)
}

func (l *LocalStore) Fetch(_ context.Context, uri string) ([]byte, error) {
	path, err := l.resolve(uri)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, fmt.Errorf("read local blob: %w", err)
	}
	return data, nil
}

func (l *LocalStore) resolve(uri string) (string, error) {
	switch {
	case strings.HasPrefix(uri, "local://"):
		rel, err := validation.RelativePath(strings.TrimPrefix(uri, "local://"))
		if err != nil {
			return "", fmt.Errorf("resolve local uri: %w", err)
		}
		return filepath.Join(l.baseDir, rel), nil
	case filepath.IsAbs(uri):
		return uri, nil
	default:
		rel, err := validation.RelativePath(uri)
		if err != nil {
			return "", fmt.Errorf("resolve relative uri: %w", err)
		}
		return filepath.Join(l.baseDir, rel), nil
	}
}

// Save writes data under baseDir/uploads/<name> and returns the local://
// URI SourceDocument.SourceURI should record, used by the upload endpoint
// when a caller posts raw bytes instead of a pre-existing URI.
func (l *LocalStore) Save(name string, data []byte) (string, error) {
	rel, err := validation.RelativePath(filepath.Join("uploads", name))
	if err != nil {
		return "", fmt.Errorf("resolve upload path: %w", err)
	}
	dest := filepath.Join(l.baseDir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return "local://" + rel, nil
}

// cached checks the configured cache directory for a copy of uri's target
// file, keyed by its basename, without performing any network call.
func (l *LocalStore) cached(uri string) ([]byte, bool, error) {
	if l.cacheDir == "" {
		return nil, false, nil
	}
	name := filepath.Base(uri)
	if name == "" || name == "." || name == "/" {
		return nil, false, nil
	}
	path := filepath.Join(l.cacheDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache: %w", err)
	}
	return data, true, nil
}
