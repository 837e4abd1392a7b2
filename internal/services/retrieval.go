package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Lllllllleong/filearchive/internal/archive"
	"github.com/Lllllllleong/filearchive/internal/metrics"
)

type cacheKey struct {
	hash      string
	rendition archive.Rendition
}

// RetrievalFunction locates the stored file of a rendition using only the
// content hash. It shares its Layout with ingest.
type RetrievalFunction struct {
	layout   archive.Layout
	hasher   *archive.Hasher
	observer metrics.Observer
	cache    *lru.Cache[cacheKey, string]
}

// NewRetrieval returns a resolver. cacheSize bounds the resolved path cache;
// zero disables it.
func NewRetrieval(layout archive.Layout, hasher *archive.Hasher, cacheSize int, observer metrics.Observer) (*RetrievalFunction, error) {
	if hasher == nil {
		return nil, fmt.Errorf("a hasher must be provided")
	}
	if observer == nil {
		observer = metrics.Nop()
	}
	f := &RetrievalFunction{layout: layout, hasher: hasher, observer: observer}
	if cacheSize > 0 {
		cache, err := lru.New[cacheKey, string](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create retrieval cache: %w", err)
		}
		f.cache = cache
	}
	return f, nil
}

// Resolve returns the absolute path of the requested rendition of hash.
// A malformed hash is rejected before the filesystem is touched.
func (f *RetrievalFunction) Resolve(ctx context.Context, hash string, rendition archive.Rendition) (string, error) {
	path, err := f.resolve(hash, rendition)
	f.observer.ObserveRetrieval(rendition.String(), err)
	if err != nil && !archive.IsNotFound(err) {
		slog.Warn("Rejected retrieval request.", "hash", hash, "rendition", rendition.String(), "error", err)
	}
	return path, err
}

func (f *RetrievalFunction) resolve(hash string, rendition archive.Rendition) (string, error) {
	if !f.hasher.Valid(hash) {
		return "", &archive.RetrievalError{Kind: archive.InvalidHash, Hash: hash}
	}
	hash = strings.ToUpper(hash)
	switch rendition {
	case archive.Master, archive.Usage, archive.Thumb:
	default:
		return "", &archive.RetrievalError{Kind: archive.InvalidRendition, Hash: hash}
	}

	key := cacheKey{hash: hash, rendition: rendition}
	if f.cache != nil {
		if path, ok := f.cache.Get(key); ok {
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
			f.cache.Remove(key)
		}
	}

	dir := f.layout.Dir(hash)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", &archive.RetrievalError{Kind: archive.NotFound, Hash: hash, Err: err}
	}

	var matches []string
	for _, entry := range entries {
		if entry.IsDir() || !rendition.Matches(hash, entry.Name()) {
			continue
		}
		matches = append(matches, entry.Name())
	}
	if len(matches) == 0 {
		return "", &archive.RetrievalError{
			Kind: archive.NotFound,
			Hash: hash,
			Err:  fmt.Errorf("no %s rendition in %s", rendition, dir),
		}
	}
	// A failed run may leave both the original and the PDF behind. ReadDir
	// sorts by name, so the choice is stable.
	path := filepath.Join(dir, matches[0])
	if f.cache != nil {
		f.cache.Add(key, path)
	}
	return path, nil
}
