package services

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/filearchive/internal/archive"
)

func TestRetrievalRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ingest := env.ingest(t, false)
	retrieval, err := NewRetrieval(env.layout, env.hasher, 16, nil)
	require.NoError(t, err)

	res, err := ingest.Process(context.Background(), env.upload(t, "scan.tif", "tif content"))
	require.NoError(t, err)

	tests := []struct {
		rendition archive.Rendition
		name      string
	}{
		{archive.Master, res.ContentHash + ".tif"},
		{archive.Usage, res.ContentHash + "_usage.pdf"},
		{archive.Thumb, res.ContentHash + "_thumb.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.rendition.String(), func(t *testing.T) {
			path, err := retrieval.Resolve(context.Background(), res.ContentHash, tt.rendition)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(res.Dir, tt.name), path)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		})
	}

	t.Run("lower case hash", func(t *testing.T) {
		path, err := retrieval.Resolve(context.Background(), "5D41402ABC4B2A76B9719D911017C592", archive.Master)
		assert.Empty(t, path)
		assert.True(t, archive.IsNotFound(err))

		lower := []byte(res.ContentHash)
		for i, c := range lower {
			if c >= 'A' && c <= 'F' {
				lower[i] = c + ('a' - 'A')
			}
		}
		path, err = retrieval.Resolve(context.Background(), string(lower), archive.Usage)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(res.Dir, res.ContentHash+"_usage.pdf"), path)
	})
}

func TestRetrievalInvalidHashTouchesNothing(t *testing.T) {
	// The root does not exist; an invalid hash must be rejected without
	// reporting NotFound from a directory lookup.
	layout := archive.Layout{Root: filepath.Join(t.TempDir(), "missing"), NameLength: 2, Depth: 3}
	hasher, err := archive.NewHasher("md5")
	require.NoError(t, err)
	retrieval, err := NewRetrieval(layout, hasher, 0, nil)
	require.NoError(t, err)

	for _, hash := range []string{"", "ABC", "5D41402ABC4B2A76B9719D911017C5920", "../../../../../../../etc/passwd!"} {
		_, err := retrieval.Resolve(context.Background(), hash, archive.Master)
		var re *archive.RetrievalError
		require.True(t, errors.As(err, &re), hash)
		assert.Equal(t, archive.InvalidHash, re.Kind)
		status, message := archive.StatusOf(err)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Hash not recognized", message)
	}
}

func TestRetrievalNotFound(t *testing.T) {
	env := newTestEnv(t)
	retrieval, err := NewRetrieval(env.layout, env.hasher, 0, nil)
	require.NoError(t, err)

	hash := md5Upper("never uploaded")
	_, err = retrieval.Resolve(context.Background(), hash, archive.Master)
	assert.True(t, archive.IsNotFound(err))
	status, _ := archive.StatusOf(err)
	assert.Equal(t, http.StatusNotFound, status)

	t.Run("directory without the rendition", func(t *testing.T) {
		dir := env.layout.Dir(hash)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, hash+".pdf"), []byte("pdf"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "."+hash+".pdf.partial"), []byte("p"), 0o644))

		_, err := retrieval.Resolve(context.Background(), hash, archive.Thumb)
		assert.True(t, archive.IsNotFound(err))

		path, err := retrieval.Resolve(context.Background(), hash, archive.Master)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, hash+".pdf"), path)
	})
}

func TestRetrievalLayoutMismatchIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.ingest(t, false).Process(context.Background(), env.upload(t, "a.pdf", "%PDF"))
	require.NoError(t, err)

	other := env.layout
	other.NameLength = 3
	retrieval, err := NewRetrieval(other, env.hasher, 0, nil)
	require.NoError(t, err)
	_, err = retrieval.Resolve(context.Background(), res.ContentHash, archive.Master)
	assert.True(t, archive.IsNotFound(err))
}

func TestRetrievalCacheRevalidates(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.ingest(t, false).Process(context.Background(), env.upload(t, "a.pdf", "%PDF"))
	require.NoError(t, err)
	retrieval, err := NewRetrieval(env.layout, env.hasher, 4, nil)
	require.NoError(t, err)

	path, err := retrieval.Resolve(context.Background(), res.ContentHash, archive.Thumb)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	_, err = retrieval.Resolve(context.Background(), res.ContentHash, archive.Thumb)
	assert.True(t, archive.IsNotFound(err))
}

func TestRetrievalRejectsUnknownRendition(t *testing.T) {
	env := newTestEnv(t)
	retrieval, err := NewRetrieval(env.layout, env.hasher, 0, nil)
	require.NoError(t, err)
	_, err = retrieval.Resolve(context.Background(), md5Upper("x"), archive.Rendition(7))
	var re *archive.RetrievalError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, archive.InvalidRendition, re.Kind)
}
